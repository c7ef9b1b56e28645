// Package pipeline wires capture, transcription, question analysis and answer
// generation together and fans their output out to observers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/audio"
	"github.com/MikeSquared-Agency/cue/internal/conversation"
	"github.com/MikeSquared-Agency/cue/internal/metrics"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

// ErrBusy is returned by Listen while another capture session is running.
var ErrBusy = errors.New("capture session already running")

// Observer receives the three output streams. Calls for one stream arrive in
// order; different streams may be delivered from different goroutines.
type Observer interface {
	OnTranscript(sessionID string, ev transcription.Event)
	OnAnalysis(sessionID string, a analyzer.Analysis)
	OnAnswer(sessionID string, res answer.Result)
}

// Components are the backends selected at construction time. Fast and
// Accurate may each be nil, not both.
type Components struct {
	Fast      transcription.StreamRecognizer
	Accurate  transcription.Transcriber
	Generator answer.Generator
}

type Options struct {
	SilenceTimeout  time.Duration
	AccurateTimeout time.Duration
	AnswerTimeout   time.Duration
	// Workers bounds concurrent accurate transcriptions.
	Workers int
	// Names reported by Status.
	AnswerBackend     string
	TranscribeBackend string
}

type Status struct {
	SessionID         string    `json:"session_id"`
	StartedAt         time.Time `json:"started_at"`
	Recording         bool      `json:"recording"`
	FastPath          bool      `json:"fast_path"`
	AccuratePath      bool      `json:"accurate_path"`
	AnswerBackend     string    `json:"answer_backend"`
	TranscribeBackend string    `json:"transcribe_backend"`
	ActiveAnswer      uint64    `json:"active_answer"`
	ContextTurns      int       `json:"context_turns"`
	SamplesCaptured   int64     `json:"samples_captured"`
}

// Pipeline owns every core component for the life of the process.
type Pipeline struct {
	comps    Components
	opts     Options
	metrics  *metrics.Metrics
	logger   *slog.Logger
	analyzer *analyzer.Analyzer
	history  *conversation.Context
	answers  *answer.Orchestrator

	base       context.Context
	cancelBase context.CancelFunc

	obsMu     sync.RWMutex
	observers []Observer

	mu        sync.RWMutex
	sessionID string
	startedAt time.Time

	recording atomic.Bool
	samples   atomic.Int64
}

func New(comps Components, m *metrics.Metrics, logger *slog.Logger, opts Options) (*Pipeline, error) {
	if comps.Generator == nil {
		return nil, errors.New("pipeline needs an answer generator")
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	history := conversation.New(conversation.DefaultCapacity)
	p := &Pipeline{
		comps:     comps,
		opts:      opts,
		metrics:   m,
		logger:    logger,
		analyzer:  analyzer.New(),
		history:   history,
		answers:   answer.New(comps.Generator, history, m, logger, answer.Options{Timeout: opts.AnswerTimeout}),
		sessionID: uuid.NewString(),
		startedAt: time.Now().UTC(),
	}
	p.base, p.cancelBase = context.WithCancel(context.Background())
	return p, nil
}

func (p *Pipeline) AddObserver(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, o)
}

// Run delivers answers to observers until ctx is cancelled. In-flight
// generation is cancelled on the way out.
func (p *Pipeline) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		p.cancelBase()
		p.answers.Stop()
	}()
	for res := range p.answers.Results() {
		p.notifyAnswer(res)
	}
	return nil
}

// WaitAnswers blocks until every admitted answer request has finished.
func (p *Pipeline) WaitAnswers() {
	p.answers.Wait()
}

// Listen runs one capture session over src until it ends or ctx is cancelled.
// Only capture errors are returned.
func (p *Pipeline) Listen(ctx context.Context, src audio.Source) error {
	if !p.recording.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer p.recording.Store(false)

	pool := NewWorkerPool(p.opts.Workers, p.opts.Workers*4)
	pool.Start(ctx)
	defer pool.Stop()

	orch, err := transcription.New(p.comps.Fast, p.comps.Accurate, p.metrics, p.logger, transcription.Options{
		SilenceTimeout:  p.opts.SilenceTimeout,
		AccurateTimeout: p.opts.AccurateTimeout,
		Executor:        pool,
	})
	if err != nil {
		return fmt.Errorf("create transcription: %w", err)
	}
	capture, err := audio.NewCapture(src, &sink{orch: orch, samples: &p.samples}, p.logger)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}

	sessionID := p.SessionID()
	p.logger.Info("capture session started", "session_id", sessionID)

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		if err := orch.Run(ctx); err != nil {
			p.logger.Error("transcription stopped", "error", err)
		}
	}()
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for ev := range orch.Events() {
			p.handleTranscript(ev)
		}
	}()

	capErr := capture.Run(ctx)
	orch.CloseInput()
	<-orchDone
	<-eventsDone

	if capErr != nil {
		p.logger.Error("capture session failed", "session_id", sessionID, "error", capErr)
		return capErr
	}
	p.logger.Info("capture session ended", "session_id", sessionID)
	return nil
}

// Inject treats text as a final transcript, as if it had been spoken.
func (p *Pipeline) Inject(text string) (analyzer.Analysis, bool) {
	text = strings.TrimSpace(text)
	p.notifyTranscript(transcription.Event{
		Text:      text,
		IsFinal:   true,
		Source:    transcription.SourceManual,
		Timestamp: time.Now(),
	})
	return p.analyzeAndAdmit(text)
}

// Ask analyzes text and answers it synchronously, whether or not it looks
// technical. Observers see the analysis and the answer.
func (p *Pipeline) Ask(ctx context.Context, text string) (answer.Result, error) {
	a := p.analyze(strings.TrimSpace(text))
	res, err := p.answers.Ask(ctx, a)
	p.notifyAnswer(res)
	return res, err
}

// ClearSession forgets the conversation and the analyzer's recent questions
// and starts a new session id.
func (p *Pipeline) ClearSession() string {
	p.history.Clear()
	p.analyzer.Reset()

	p.mu.Lock()
	old := p.sessionID
	p.sessionID = uuid.NewString()
	p.startedAt = time.Now().UTC()
	id := p.sessionID
	p.mu.Unlock()

	p.logger.Info("session cleared", "previous_session_id", old, "session_id", id)
	return id
}

func (p *Pipeline) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// History returns the conversation turns, oldest first.
func (p *Pipeline) History() []conversation.Turn {
	return p.history.Turns()
}

func (p *Pipeline) Status() Status {
	p.mu.RLock()
	id, started := p.sessionID, p.startedAt
	p.mu.RUnlock()
	return Status{
		SessionID:         id,
		StartedAt:         started,
		Recording:         p.recording.Load(),
		FastPath:          p.comps.Fast != nil,
		AccuratePath:      p.comps.Accurate != nil,
		AnswerBackend:     p.opts.AnswerBackend,
		TranscribeBackend: p.opts.TranscribeBackend,
		ActiveAnswer:      p.answers.Active(),
		ContextTurns:      p.history.Len(),
		SamplesCaptured:   p.samples.Load(),
	}
}

func (p *Pipeline) handleTranscript(ev transcription.Event) {
	p.notifyTranscript(ev)
	if !ev.IsFinal || strings.TrimSpace(ev.Text) == "" {
		return
	}
	// A correction re-runs analysis; a newer admission supersedes the answer
	// started from the fast-path text.
	p.analyzeAndAdmit(ev.Text)
}

func (p *Pipeline) analyzeAndAdmit(text string) (analyzer.Analysis, bool) {
	a := p.analyze(text)
	if p.base.Err() != nil {
		return a, false
	}
	_, admitted := p.answers.Handle(p.base, a)
	return a, admitted
}

func (p *Pipeline) analyze(text string) analyzer.Analysis {
	a := p.analyzer.Analyze(text)
	p.metrics.QuestionAnalyzed(string(a.Category))
	p.logger.Debug("transcript analyzed",
		"category", a.Category,
		"technical", a.IsTechnical,
		"coding", a.IsCodingRequest,
		"keywords", a.Keywords,
	)
	p.notifyAnalysis(a)
	return a
}

func (p *Pipeline) snapshotObservers() []Observer {
	p.obsMu.RLock()
	defer p.obsMu.RUnlock()
	return append([]Observer(nil), p.observers...)
}

func (p *Pipeline) notifyTranscript(ev transcription.Event) {
	id := p.SessionID()
	for _, o := range p.snapshotObservers() {
		o.OnTranscript(id, ev)
	}
}

func (p *Pipeline) notifyAnalysis(a analyzer.Analysis) {
	id := p.SessionID()
	for _, o := range p.snapshotObservers() {
		o.OnAnalysis(id, a)
	}
}

func (p *Pipeline) notifyAnswer(res answer.Result) {
	id := p.SessionID()
	for _, o := range p.snapshotObservers() {
		o.OnAnswer(id, res)
	}
}

// sink forwards capture output to the transcription orchestrator.
type sink struct {
	orch    *transcription.Orchestrator
	samples *atomic.Int64
}

func (s *sink) OnFrame(start int64, frame []float32) {
	s.samples.Add(int64(len(frame)))
	s.orch.OnFrame(start, frame)
}

func (s *sink) OnChunk(chunk audio.Chunk) {
	s.orch.OnChunk(chunk)
}
