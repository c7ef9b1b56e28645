package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/audio"
	"github.com/MikeSquared-Agency/cue/internal/llm"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingObserver struct {
	mu          sync.Mutex
	transcripts []transcription.Event
	analyses    []analyzer.Analysis
	answers     chan answer.Result
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{answers: make(chan answer.Result, 8)}
}

func (r *recordingObserver) OnTranscript(_ string, ev transcription.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, ev)
}

func (r *recordingObserver) OnAnalysis(_ string, a analyzer.Analysis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, a)
}

func (r *recordingObserver) OnAnswer(_ string, res answer.Result) {
	r.answers <- res
}

func (r *recordingObserver) finals() []transcription.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []transcription.Event
	for _, ev := range r.transcripts {
		if ev.IsFinal {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingObserver) nextAnswer(t *testing.T) answer.Result {
	t.Helper()
	select {
	case res := <-r.answers:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for answer")
	}
	return answer.Result{}
}

type countingGenerator struct {
	calls atomic.Int32
}

func (g *countingGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.calls.Add(1)
	return "an answer", nil
}

type staticTranscriber struct {
	text string
}

func (s staticTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return s.text, nil
}

// blockingSource produces nothing until released, then ends.
type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) Format() audio.Format { return audio.Format{SampleRate: audio.SampleRate} }

func (b *blockingSource) ReadSamples(p []float32) (int, error) {
	<-b.release
	return 0, io.EOF
}

func startPipeline(t *testing.T, comps Components) (*Pipeline, *recordingObserver) {
	t.Helper()
	p, err := New(comps, nil, discardLogger(), Options{SilenceTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	obs := newRecordingObserver()
	p.AddObserver(obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, obs
}

func TestNew_RequiresGenerator(t *testing.T) {
	if _, err := New(Components{}, nil, discardLogger(), Options{}); err == nil {
		t.Fatal("expected error without generator")
	}
}

func TestPipeline_CodingQuestionEndToEnd(t *testing.T) {
	p, obs := startPipeline(t, Components{Generator: &llm.Mock{}})

	a, admitted := p.Inject("Can you implement a debounce function in JavaScript?")
	if !admitted {
		t.Fatal("expected question to be admitted")
	}
	if !a.IsQuestion || !a.IsTechnical || !a.IsCodingRequest || a.Category != analyzer.CategoryGeneralTechnical {
		t.Errorf("unexpected analysis: %+v", a)
	}

	res := obs.nextAnswer(t)
	if res.Failed() || res.Code == "" {
		t.Fatalf("expected generated code, got %+v", res)
	}

	finals := obs.finals()
	if len(finals) != 1 || finals[0].Source != transcription.SourceManual {
		t.Errorf("finals = %+v", finals)
	}
	if got := len(p.History()); got != 2 {
		t.Errorf("history turns = %d, want 2", got)
	}
}

func TestPipeline_NonQuestionNeverAnswered(t *testing.T) {
	gen := &countingGenerator{}
	p, obs := startPipeline(t, Components{Generator: gen})

	a, admitted := p.Inject("Tell me about your weekend.")
	if admitted || a.IsQuestion {
		t.Fatalf("expected drop, got %+v admitted=%v", a, admitted)
	}
	p.WaitAnswers()
	if gen.calls.Load() != 0 {
		t.Errorf("generator called %d times", gen.calls.Load())
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.analyses) != 1 || obs.analyses[0].Category != analyzer.CategoryNotQuestion {
		t.Errorf("analyses = %+v", obs.analyses)
	}
}

func TestPipeline_ListenAccurateOnly(t *testing.T) {
	question := "Can you implement a debounce function in JavaScript?"
	p, obs := startPipeline(t, Components{
		Accurate:  staticTranscriber{text: question},
		Generator: &llm.Mock{},
	})

	wav, err := audio.EncodeWAV(make([]float32, audio.SampleRate), audio.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	src, err := audio.NewWAVSource(wav)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Listen(context.Background(), src); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	finals := obs.finals()
	if len(finals) != 1 || finals[0].Text != question || finals[0].Source != transcription.SourceAccurate {
		t.Fatalf("finals = %+v", finals)
	}
	res := obs.nextAnswer(t)
	if res.Code == "" {
		t.Errorf("expected code in answer, got %+v", res)
	}
	if st := p.Status(); st.Recording || st.SamplesCaptured != audio.SampleRate {
		t.Errorf("status = %+v", st)
	}
}

func TestPipeline_ListenIsExclusive(t *testing.T) {
	p, _ := startPipeline(t, Components{
		Accurate:  staticTranscriber{},
		Generator: &countingGenerator{},
	})

	src := &blockingSource{release: make(chan struct{})}
	errc := make(chan error, 1)
	go func() { errc <- p.Listen(context.Background(), src) }()

	deadline := time.Now().Add(2 * time.Second)
	for !p.Status().Recording {
		if time.Now().After(deadline) {
			t.Fatal("capture never started")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := p.Listen(context.Background(), &blockingSource{}); !errors.Is(err, ErrBusy) {
		t.Errorf("second Listen = %v, want ErrBusy", err)
	}

	close(src.release)
	if err := <-errc; err != nil {
		t.Errorf("Listen: %v", err)
	}
}

func TestPipeline_ClearSession(t *testing.T) {
	p, obs := startPipeline(t, Components{Generator: &llm.Mock{}})

	p.Inject("What is the virtual DOM in react?")
	obs.nextAnswer(t)
	if len(p.History()) == 0 {
		t.Fatal("expected history after an answer")
	}

	old := p.SessionID()
	id := p.ClearSession()
	if id == old || id == "" {
		t.Errorf("session id %q after clear, previous %q", id, old)
	}
	if len(p.History()) != 0 {
		t.Error("history not cleared")
	}
	if st := p.Status(); st.SessionID != id || st.ContextTurns != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestPipeline_AskAnswersSynchronously(t *testing.T) {
	gen := &countingGenerator{}
	p, err := New(Components{Generator: gen}, nil, discardLogger(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Ask(context.Background(), "Tell me about your weekend.")
	if err != nil {
		t.Fatal(err)
	}
	if res.Explanation != "an answer" || gen.calls.Load() != 1 {
		t.Errorf("res = %+v calls = %d", res, gen.calls.Load())
	}
}
