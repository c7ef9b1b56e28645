package hermes

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	subject string
	payload []byte
}

type fakeBus struct {
	msgs     []published
	handlers map[string]func(string, []byte)
	err      error
}

func (b *fakeBus) Publish(subject string, data any) error {
	if b.err != nil {
		return b.err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b.msgs = append(b.msgs, published{subject: subject, payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(subject string, handler func(string, []byte)) error {
	if b.handlers == nil {
		b.handlers = map[string]func(string, []byte){}
	}
	b.handlers[subject] = handler
	return nil
}

func TestPublisher_TranscriptSubjects(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, discardLogger())

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.OnTranscript("s1", transcription.Event{Utterance: 1, Text: "how do", Source: transcription.SourceFast, Timestamp: ts})
	p.OnTranscript("s1", transcription.Event{Utterance: 1, Text: "how do closures work", IsFinal: true, Source: transcription.SourceFast, Timestamp: ts})
	p.OnTranscript("s1", transcription.Event{Utterance: 1, Text: "How do closures work?", IsFinal: true, Correction: true, Source: transcription.SourceAccurate, Timestamp: ts})

	want := []string{SubjectTranscriptPartial, SubjectTranscriptFinal, SubjectTranscriptFinal}
	if len(bus.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(bus.msgs), len(want))
	}
	for i, subject := range want {
		if bus.msgs[i].subject != subject {
			t.Errorf("message %d subject = %s, want %s", i, bus.msgs[i].subject, subject)
		}
	}

	var ev TranscriptEvent
	if err := json.Unmarshal(bus.msgs[2].payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.SessionID != "s1" || !ev.Correction || ev.Source != "accurate" || !ev.Timestamp.Equal(ts) {
		t.Errorf("unexpected payload: %+v", ev)
	}
}

func TestPublisher_AnalysisOnlyForQuestions(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, discardLogger())
	a := analyzer.New()

	p.OnAnalysis("s1", a.Analyze("Tell me about your weekend."))
	p.OnAnalysis("s1", a.Analyze("What is the time complexity of quicksort?"))

	if len(bus.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(bus.msgs))
	}
	var raw map[string]any
	if err := json.Unmarshal(bus.msgs[0].payload, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["session_id"] != "s1" || raw["category"] != "algorithm" || raw["is_question"] != true {
		t.Errorf("unexpected payload: %v", raw)
	}
}

func TestPublisher_Answer(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, discardLogger())

	p.OnAnswer("s1", answer.Result{
		Token:       3,
		Question:    "q",
		Explanation: "Sorry, I couldn't generate a response for this question.",
		Err:         answer.NewError(answer.KindRateLimit, errors.New("429")),
		ErrorKind:   answer.KindRateLimit,
		Latency:     1500 * time.Millisecond,
	})

	var ev AnswerEvent
	if err := json.Unmarshal(bus.msgs[0].payload, &ev); err != nil {
		t.Fatal(err)
	}
	if bus.msgs[0].subject != SubjectAnswerReady || ev.Token != 3 || !ev.Failed || ev.ErrorKind != "rate_limit" || ev.LatencyMS != 1500 {
		t.Errorf("unexpected answer event %s: %+v", bus.msgs[0].subject, ev)
	}
}

func TestPublisher_ErrorsAreSwallowed(t *testing.T) {
	bus := &fakeBus{err: errors.New("nats: connection closed")}
	p := NewPublisher(bus, discardLogger())
	p.OnTranscript("s1", transcription.Event{Text: "x"})
}

type fakeController struct {
	injected []string
	cleared  int
}

func (c *fakeController) Inject(text string) (analyzer.Analysis, bool) {
	c.injected = append(c.injected, text)
	return analyzer.Analysis{IsQuestion: true}, true
}

func (c *fakeController) ClearSession() string {
	c.cleared++
	return "new-session"
}

func TestSubscribeControl(t *testing.T) {
	bus := &fakeBus{}
	ctl := &fakeController{}
	if err := SubscribeControl(bus, ctl, discardLogger()); err != nil {
		t.Fatal(err)
	}

	inject := bus.handlers[SubjectQuestionInject]
	clearSession := bus.handlers[SubjectSessionClear]
	if inject == nil || clearSession == nil {
		t.Fatalf("missing subscriptions, got %d", len(bus.handlers))
	}

	inject(SubjectQuestionInject, []byte(`{"text":"What is a closure?"}`))
	inject(SubjectQuestionInject, []byte(`{"text":"   "}`))
	inject(SubjectQuestionInject, []byte(`not json`))
	clearSession(SubjectSessionClear, nil)

	if len(ctl.injected) != 1 || ctl.injected[0] != "What is a closure?" {
		t.Errorf("injected = %v", ctl.injected)
	}
	if ctl.cleared != 1 {
		t.Errorf("cleared = %d, want 1", ctl.cleared)
	}
}
