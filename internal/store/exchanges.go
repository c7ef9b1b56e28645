package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) WriteTranscript(ctx context.Context, t Transcript) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cue_transcripts (id, session_id, utterance, text, source, correction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.SessionID, int64(t.Utterance), t.Text, t.Source, t.Correction, t.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert transcript: %w", err)
	}
	return t.ID, nil
}

func (s *Store) WriteExchange(ctx context.Context, e Exchange) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Keywords == nil {
		e.Keywords = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cue_exchanges
			(id, session_id, token, question, category, keywords, code, explanation, failed, error_kind, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.SessionID, int64(e.Token), e.Question, e.Category, e.Keywords,
		e.Code, e.Explanation, e.Failed, e.ErrorKind, e.LatencyMS, e.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert exchange: %w", err)
	}
	return e.ID, nil
}

const exchangeColumns = `id, session_id, token, question, category, keywords, code, explanation, failed, error_kind, latency_ms, created_at`

func scanExchange(row pgx.Row) (*Exchange, error) {
	var e Exchange
	var token int64
	err := row.Scan(&e.ID, &e.SessionID, &token, &e.Question, &e.Category, &e.Keywords,
		&e.Code, &e.Explanation, &e.Failed, &e.ErrorKind, &e.LatencyMS, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Token = uint64(token)
	return &e, nil
}

func (s *Store) GetExchange(ctx context.Context, id uuid.UUID) (*Exchange, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+exchangeColumns+` FROM cue_exchanges WHERE id = $1`, id)
	e, err := scanExchange(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange: %w", err)
	}
	return e, nil
}

func (s *Store) ListExchanges(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+exchangeColumns+`
		FROM cue_exchanges
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
