package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

const writeTimeout = 5 * time.Second

// Recorder persists finals and answered exchanges as they are produced.
// Write failures are logged; they never reach the pipeline.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) OnTranscript(sessionID string, ev transcription.Event) {
	if !ev.IsFinal || ev.Text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err := r.repo.WriteTranscript(ctx, Transcript{
		SessionID:  sessionID,
		Utterance:  ev.Utterance,
		Text:       ev.Text,
		Source:     string(ev.Source),
		Correction: ev.Correction,
		CreatedAt:  ev.Timestamp.UTC(),
	})
	if err != nil {
		r.logger.Error("failed to persist transcript", "utterance", ev.Utterance, "error", err)
	}
}

func (r *Recorder) OnAnalysis(string, analyzer.Analysis) {}

func (r *Recorder) OnAnswer(sessionID string, res answer.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	id, err := r.repo.WriteExchange(ctx, ExchangeFromResult(sessionID, res))
	if err != nil {
		r.logger.Error("failed to persist exchange", "token", res.Token, "error", err)
		return
	}
	r.logger.Debug("exchange persisted", "id", id, "token", res.Token)
}

func ExchangeFromResult(sessionID string, res answer.Result) Exchange {
	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return Exchange{
		SessionID:   sessionID,
		Token:       res.Token,
		Question:    res.Question,
		Category:    string(res.Analysis.Category),
		Keywords:    res.Analysis.Keywords,
		Code:        res.Code,
		Explanation: res.Explanation,
		Failed:      res.Failed(),
		ErrorKind:   string(res.ErrorKind),
		LatencyMS:   res.Latency.Milliseconds(),
		CreatedAt:   created.UTC(),
	}
}
