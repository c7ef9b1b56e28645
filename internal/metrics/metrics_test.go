package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ChunkEmitted()
	m.FrameDropped()
	m.TranscriptEvent("partial")
	m.FastPathRestarted()
	m.ChunkDropped()
	m.AccurateDone(time.Second, nil)
	m.QuestionAnalyzed("algorithm")
	m.AnswerAdmitted()
	m.AnswerSuperseded()
	m.AnswerDropped()
	m.AnswerDone(time.Second, errors.New("boom"))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil metrics, got %d", w.Code)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.ChunkEmitted()
	m.TranscriptEvent("final")
	m.AnswerDone(2*time.Second, nil)
	m.AnswerDropped()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"cue_audio_chunks_total 1",
		`cue_transcript_events_total{kind="final"} 1`,
		`cue_answer_results_total{outcome="ok"} 1`,
		"cue_answers_dropped_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// two instances must not collide on registration
	a, b := New(), New()
	if a.Registry() == b.Registry() {
		t.Error("expected distinct registries")
	}
}
