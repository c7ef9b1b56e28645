// Package metrics holds the Prometheus instrumentation of the pipeline. All
// methods are safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Audio
	ChunksEmitted prometheus.Counter
	FramesDropped prometheus.Counter

	// Transcription
	TranscriptEvents *prometheus.CounterVec
	FastPathRestarts prometheus.Counter
	AccurateRequests prometheus.Counter
	AccurateFailures prometheus.Counter
	AccurateDuration prometheus.Histogram
	ChunksDropped    prometheus.Counter

	// Analysis and answers
	Questions         *prometheus.CounterVec
	AnswersAdmitted   prometheus.Counter
	AnswersSuperseded prometheus.Counter
	AnswersDropped    prometheus.Counter
	AnswerResults     *prometheus.CounterVec
	AnswerDuration    prometheus.Histogram
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ChunksEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_audio_chunks_total",
			Help: "Audio windows emitted by the chunker",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_audio_frames_dropped_total",
			Help: "Live audio frames dropped because the fast path queue was full",
		}),
		TranscriptEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cue_transcript_events_total",
			Help: "Transcript events emitted, by kind",
		}, []string{"kind"}),
		FastPathRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_fast_path_restarts_total",
			Help: "Restarts of the streaming recognizer",
		}),
		AccurateRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_accurate_requests_total",
			Help: "Accurate transcription requests sent",
		}),
		AccurateFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_accurate_failures_total",
			Help: "Accurate transcription requests that failed",
		}),
		AccurateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cue_accurate_duration_seconds",
			Help:    "Latency of accurate transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_accurate_chunks_dropped_total",
			Help: "Chunks not transcribed because the worker queue was full",
		}),
		Questions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cue_questions_total",
			Help: "Analyzed transcripts, by category",
		}, []string{"category"}),
		AnswersAdmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_answers_admitted_total",
			Help: "Analyses forwarded to answer generation",
		}),
		AnswersSuperseded: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_answers_superseded_total",
			Help: "Answer results discarded because a newer question arrived",
		}),
		AnswersDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "cue_answers_dropped_total",
			Help: "Answer results discarded because the result buffer was full",
		}),
		AnswerResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cue_answer_results_total",
			Help: "Delivered answers, by outcome",
		}, []string{"outcome"}),
		AnswerDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cue_answer_duration_seconds",
			Help:    "Latency of answer generation",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ChunkEmitted() {
	if m != nil {
		m.ChunksEmitted.Inc()
	}
}

func (m *Metrics) FrameDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) TranscriptEvent(kind string) {
	if m != nil {
		m.TranscriptEvents.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) FastPathRestarted() {
	if m != nil {
		m.FastPathRestarts.Inc()
	}
}

func (m *Metrics) ChunkDropped() {
	if m != nil {
		m.ChunksDropped.Inc()
	}
}

func (m *Metrics) AccurateDone(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.AccurateRequests.Inc()
	m.AccurateDuration.Observe(d.Seconds())
	if err != nil {
		m.AccurateFailures.Inc()
	}
}

func (m *Metrics) QuestionAnalyzed(category string) {
	if m != nil {
		m.Questions.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) AnswerAdmitted() {
	if m != nil {
		m.AnswersAdmitted.Inc()
	}
}

func (m *Metrics) AnswerSuperseded() {
	if m != nil {
		m.AnswersSuperseded.Inc()
	}
}

func (m *Metrics) AnswerDropped() {
	if m != nil {
		m.AnswersDropped.Inc()
	}
}

func (m *Metrics) AnswerDone(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AnswerResults.WithLabelValues(outcome).Inc()
	m.AnswerDuration.Observe(d.Seconds())
}
