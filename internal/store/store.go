package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Transcript is a persisted final (or corrected final) utterance.
type Transcript struct {
	ID         uuid.UUID `json:"id"`
	SessionID  string    `json:"session_id"`
	Utterance  uint64    `json:"utterance"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Correction bool      `json:"correction"`
	CreatedAt  time.Time `json:"created_at"`
}

// Exchange is one question together with the answer delivered for it.
type Exchange struct {
	ID          uuid.UUID `json:"id"`
	SessionID   string    `json:"session_id"`
	Token       uint64    `json:"token"`
	Question    string    `json:"question"`
	Category    string    `json:"category"`
	Keywords    []string  `json:"keywords"`
	Code        string    `json:"code,omitempty"`
	Explanation string    `json:"explanation"`
	Failed      bool      `json:"failed"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository is implemented by both the Postgres and the embedded store.
type Repository interface {
	WriteTranscript(ctx context.Context, t Transcript) (uuid.UUID, error)
	WriteExchange(ctx context.Context, e Exchange) (uuid.UUID, error)
	GetExchange(ctx context.Context, id uuid.UUID) (*Exchange, error)
	// ListExchanges returns the newest exchanges of a session first.
	ListExchanges(ctx context.Context, sessionID string, limit int) ([]Exchange, error)
	Close()
}

// Store is the Postgres repository.
type Store struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS cue_transcripts (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	utterance   BIGINT NOT NULL,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL,
	correction  BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cue_transcripts_session_idx ON cue_transcripts (session_id, created_at);

CREATE TABLE IF NOT EXISTS cue_exchanges (
	id           UUID PRIMARY KEY,
	session_id   TEXT NOT NULL,
	token        BIGINT NOT NULL,
	question     TEXT NOT NULL,
	category     TEXT NOT NULL,
	keywords     TEXT[] NOT NULL DEFAULT '{}',
	code         TEXT NOT NULL DEFAULT '',
	explanation  TEXT NOT NULL,
	failed       BOOLEAN NOT NULL DEFAULT false,
	error_kind   TEXT NOT NULL DEFAULT '',
	latency_ms   BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cue_exchanges_session_idx ON cue_exchanges (session_id, created_at DESC);
`

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
