package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/audio"
	"github.com/MikeSquared-Agency/cue/internal/conversation"
	"github.com/MikeSquared-Agency/cue/internal/pipeline"
	"github.com/MikeSquared-Agency/cue/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxAskBytes         = 16 << 10
)

// Session is the part of the pipeline the API drives.
type Session interface {
	Inject(text string) (analyzer.Analysis, bool)
	ClearSession() string
	SessionID() string
	History() []conversation.Turn
	Status() pipeline.Status
	Listen(ctx context.Context, src audio.Source) error
}

// Deps are the collaborators behind the routes. Exchanges and Metrics are
// optional; the routes that need them report 503 or are not mounted.
type Deps struct {
	Session   Session
	Exchanges store.Repository
	Hub       *Hub
	Metrics   http.Handler
	Logger    *slog.Logger
}

type Server struct {
	router   *chi.Mux
	port     int
	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger)
	}
	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
		logger: deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/cue/status", s.status)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	router.Route("/api/v1/cue", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/ask", s.ask)
		r.Get("/context", s.getContext)
		r.Delete("/context", s.clearContext)
		r.Get("/history", s.history)
		r.Get("/events", s.events)
		r.Get("/audio", s.ingestAudio)
	})

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

// BearerAuthMiddleware rejects requests without the configured token. An
// empty token leaves the routes open.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				// Browsers cannot set headers on websocket upgrades.
				got = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Agent string `json:"agent"`
		pipeline.Status
		EventClients int `json:"event_clients"`
	}{
		Agent:        "cue",
		Status:       s.deps.Session.Status(),
		EventClients: s.deps.Hub.Clients(),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	SessionID string            `json:"session_id"`
	Admitted  bool              `json:"admitted"`
	Analysis  analyzer.Analysis `json:"analysis"`
}

// ask injects a typed question. Admitted questions are answered
// asynchronously; the answer arrives on the events stream.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAskBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	a, admitted := s.deps.Session.Inject(req.Question)
	code := http.StatusOK
	if admitted {
		code = http.StatusAccepted
	}
	writeJSON(w, code, askResponse{
		SessionID: s.deps.Session.SessionID(),
		Admitted:  admitted,
		Analysis:  a,
	})
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	turns := s.deps.Session.History()
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.deps.Session.SessionID(),
		"turns":      turns,
	})
}

func (s *Server) clearContext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": s.deps.Session.ClearSession(),
	})
}

// history lists persisted exchanges, newest first. ?session= selects another
// session; ?limit= caps the result.
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exchanges == nil {
		writeError(w, http.StatusServiceUnavailable, "no exchange store configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = s.deps.Session.SessionID()
	}

	exchanges, err := s.deps.Exchanges.ListExchanges(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("failed to list exchanges", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "list exchanges failed")
		return
	}
	if exchanges == nil {
		exchanges = []store.Exchange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"exchanges":  exchanges,
		"count":      len(exchanges),
	})
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	s.deps.Hub.ServeWS(&s.upgrader, w, r)
}

// ingestAudio runs a capture session fed by binary PCM16 frames. The session
// ends when the client closes the socket.
func (s *Server) ingestAudio(w http.ResponseWriter, r *http.Request) {
	rate := audio.SampleRate
	if v := r.URL.Query().Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid rate")
			return
		}
		rate = n
	}
	if s.deps.Session.Status().Recording {
		writeError(w, http.StatusConflict, pipeline.ErrBusy.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("audio upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := s.deps.Session.Listen(ctx, audio.NewPCMSource(pr, rate))
		pr.CloseWithError(err)
		// Unblock the read loop if the session ended first.
		conn.SetReadDeadline(time.Now())
		done <- err
	}()

	var frames int
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if _, err := pw.Write(data); err != nil {
			break
		}
		frames++
	}
	pw.Close()
	err = <-done

	closeCode, reason := websocket.CloseNormalClosure, "session ended"
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		closeCode, reason = websocket.CloseTryAgainLater, err.Error()
	case err != nil:
		closeCode, reason = websocket.CloseInternalServerErr, err.Error()
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, reason), time.Now().Add(writeWait))
	s.logger.Info("audio ingest finished", "frames", frames, "rate", rate, "error", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
