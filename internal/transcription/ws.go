package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MikeSquared-Agency/cue/internal/audio"
)

const wsWriteTimeout = 5 * time.Second

// WSRecognizer is a fast path backed by a streaming speech server reachable
// over websocket. Audio goes out as binary PCM16 frames; results come back as
// JSON {"text": ..., "is_final": ...} messages.
type WSRecognizer struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewWSRecognizer(url, token string, logger *slog.Logger) *WSRecognizer {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &WSRecognizer{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

func (r *WSRecognizer) Start(ctx context.Context) (Stream, error) {
	conn, resp, err := r.dialer.DialContext(ctx, r.url, r.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial recognizer: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}
	s := &wsStream{
		conn:    conn,
		results: make(chan Result, 32),
		closed:  make(chan struct{}),
		logger:  r.logger,
	}
	go s.readLoop()
	return s, nil
}

type wsStream struct {
	conn    *websocket.Conn
	results chan Result
	logger  *slog.Logger

	mu        sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) Results() <-chan Result {
	return s.results
}

func (s *wsStream) Send(frame []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return ErrStreamClosed
	default:
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio.EncodePCM16(frame)); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
		s.mu.Unlock()
	})
	return err
}

func (s *wsStream) readLoop() {
	defer close(s.results)
	for {
		var r Result
		if err := s.conn.ReadJSON(&r); err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Warn("recognizer stream ended", "error", err)
			}
			return
		}
		select {
		case s.results <- r:
		case <-s.closed:
			return
		}
	}
}
