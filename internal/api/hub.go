package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
	pingPeriod   = 30 * time.Second
)

// Message types sent on the events stream.
const (
	TypeTranscript = "transcript"
	TypeAnalysis   = "analysis"
	TypeAnswer     = "answer"
)

type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      any    `json:"data"`
}

// answerPayload adds the error text, which answer.Result does not serialize.
type answerPayload struct {
	answer.Result
	Error string `json:"error,omitempty"`
}

// Hub fans pipeline output out to websocket clients. A client that falls
// behind loses messages rather than slowing the pipeline.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan []byte
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]chan []byte),
		logger:  logger,
	}
}

func (h *Hub) OnTranscript(sessionID string, ev transcription.Event) {
	h.Broadcast(Message{Type: TypeTranscript, SessionID: sessionID, Data: ev})
}

func (h *Hub) OnAnalysis(sessionID string, a analyzer.Analysis) {
	h.Broadcast(Message{Type: TypeAnalysis, SessionID: sessionID, Data: a})
}

func (h *Hub) OnAnswer(sessionID string, res answer.Result) {
	payload := answerPayload{Result: res}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	h.Broadcast(Message{Type: TypeAnswer, SessionID: sessionID, Data: payload})
}

func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, send := range h.clients {
		select {
		case send <- data:
		default:
			h.logger.Debug("event client lagging, dropped message", "client_id", id, "type", msg.Type)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register() (string, chan []byte) {
	id := uuid.NewString()
	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[id] = send
	h.mu.Unlock()
	return id, send
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *Hub) ServeWS(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("events upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, send := h.register()
	defer h.unregister(id)
	h.logger.Info("event client connected", "client_id", id, "remote", r.RemoteAddr)

	// Clients only ever send control frames; reading surfaces the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			h.logger.Info("event client disconnected", "client_id", id)
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("event write failed", "client_id", id, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
