package hermes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

const (
	SubjectTranscriptPartial = "cue.transcript.partial"
	SubjectTranscriptFinal   = "cue.transcript.final"
	SubjectQuestionAnalyzed  = "cue.question.analyzed"
	SubjectAnswerReady       = "cue.answer.ready"
	SubjectAgentRegistered   = "swarm.agent.cue.registered"

	// Inbound control subjects.
	SubjectQuestionInject = "cue.question.inject"
	SubjectSessionClear   = "cue.session.clear"
)

type TranscriptEvent struct {
	SessionID  string    `json:"session_id"`
	Utterance  uint64    `json:"utterance"`
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Correction bool      `json:"correction,omitempty"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

type QuestionEvent struct {
	SessionID string `json:"session_id"`
	analyzer.Analysis
}

type AnswerEvent struct {
	SessionID   string    `json:"session_id"`
	Token       uint64    `json:"token"`
	Question    string    `json:"question"`
	Code        string    `json:"code,omitempty"`
	Explanation string    `json:"explanation"`
	Failed      bool      `json:"failed"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// InjectRequest is the body of a cue.question.inject message.
type InjectRequest struct {
	Text string `json:"text"`
}

type publisher interface {
	Publish(subject string, data any) error
}

// Publisher mirrors the pipeline's output streams onto NATS subjects.
// Publish failures are logged and otherwise ignored.
type Publisher struct {
	client publisher
	logger *slog.Logger
}

func NewPublisher(client publisher, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) OnTranscript(sessionID string, ev transcription.Event) {
	subject := SubjectTranscriptPartial
	if ev.IsFinal {
		subject = SubjectTranscriptFinal
	}
	p.publish(subject, TranscriptEvent{
		SessionID:  sessionID,
		Utterance:  ev.Utterance,
		Text:       ev.Text,
		IsFinal:    ev.IsFinal,
		Correction: ev.Correction,
		Source:     string(ev.Source),
		Timestamp:  ev.Timestamp.UTC(),
	})
}

// OnAnalysis publishes questions only.
func (p *Publisher) OnAnalysis(sessionID string, a analyzer.Analysis) {
	if !a.IsQuestion {
		return
	}
	p.publish(SubjectQuestionAnalyzed, QuestionEvent{SessionID: sessionID, Analysis: a})
}

func (p *Publisher) OnAnswer(sessionID string, res answer.Result) {
	p.publish(SubjectAnswerReady, AnswerEvent{
		SessionID:   sessionID,
		Token:       res.Token,
		Question:    res.Question,
		Code:        res.Code,
		Explanation: res.Explanation,
		Failed:      res.Failed(),
		ErrorKind:   string(res.ErrorKind),
		LatencyMS:   res.Latency.Milliseconds(),
		CreatedAt:   res.CreatedAt.UTC(),
	})
}

func (p *Publisher) publish(subject string, data any) {
	if err := p.client.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Controller is the part of the pipeline remote peers may drive.
type Controller interface {
	Inject(text string) (analyzer.Analysis, bool)
	ClearSession() string
}

type subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// SubscribeControl routes inbound control subjects to ctl.
func SubscribeControl(sub subscriber, ctl Controller, logger *slog.Logger) error {
	if err := sub.Subscribe(SubjectQuestionInject, func(_ string, data []byte) {
		if err := handleInject(ctl, data, logger); err != nil {
			logger.Warn("ignoring inject message", "error", err)
		}
	}); err != nil {
		return err
	}
	return sub.Subscribe(SubjectSessionClear, func(_ string, _ []byte) {
		id := ctl.ClearSession()
		logger.Info("session cleared over nats", "session_id", id)
	})
}

func handleInject(ctl Controller, data []byte, logger *slog.Logger) error {
	var req InjectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode inject request: %w", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return errors.New("inject request has no text")
	}
	a, admitted := ctl.Inject(req.Text)
	logger.Info("question injected over nats",
		"category", a.Category,
		"admitted", admitted,
	)
	return nil
}
