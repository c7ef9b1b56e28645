// Package transcription turns captured audio into an ordered stream of
// transcript events. A streaming recognizer gives low-latency partials; a
// request/response transcriber gives the accurate text for each audio window.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Source names the path an event came from.
type Source string

const (
	SourceFast     Source = "fast"
	SourceAccurate Source = "accurate"
	// SourceManual marks typed questions injected outside the audio path.
	SourceManual   Source = "manual"
)

// Event is one transcript update. Partials for an utterance may be followed by
// other partials or by its final; a final may be followed by a correction
// (a final with Correction set) but never by another partial.
type Event struct {
	Utterance  uint64    `json:"utterance"`
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Correction bool      `json:"correction,omitempty"`
	Source     Source    `json:"source"`
	Start      int64     `json:"start_sample"`
	End        int64     `json:"end_sample"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result is what a streaming recognizer reports.
type Result struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Stream is a live recognition session.
type Stream interface {
	// Send feeds 16 kHz mono samples.
	Send(frame []float32) error
	// Results is closed when the session ends for any reason.
	Results() <-chan Result
	Close() error
}

// StreamRecognizer opens streaming sessions for the fast path.
type StreamRecognizer interface {
	Start(ctx context.Context) (Stream, error)
}

// Transcriber transcribes one WAV payload for the accurate path.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// ErrStreamClosed is returned by Send after the stream ended.
var ErrStreamClosed = errors.New("stream closed")

// TranscribeError is a failed accurate-path request. Status is the HTTP status
// when the server answered, zero for transport failures.
type TranscribeError struct {
	Status int
	Err    error
}

func (e *TranscribeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transcribe: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transcribe: %v", e.Err)
}

func (e *TranscribeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
func (e *TranscribeError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
