//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_WriteAndListExchanges(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sessionID := "integration-test-" + uuid.New().String()[:8]
	base := time.Now().UTC().Truncate(time.Millisecond)

	first, err := s.WriteExchange(ctx, Exchange{
		SessionID:   sessionID,
		Token:       1,
		Question:    "Can you implement a debounce function in JavaScript?",
		Category:    "general_technical",
		Keywords:    []string{"javascript", "function"},
		Code:        "function debounce() {}",
		Explanation: "Delays calls.",
		LatencyMS:   420,
		CreatedAt:   base,
	})
	if err != nil {
		t.Fatalf("WriteExchange failed: %v", err)
	}
	if _, err := s.WriteExchange(ctx, Exchange{
		SessionID:   sessionID,
		Token:       2,
		Question:    "What about throttling?",
		Category:    "general_technical",
		Explanation: "Sorry, I couldn't generate a response for this question.",
		Failed:      true,
		ErrorKind:   "network",
		CreatedAt:   base.Add(time.Second),
	}); err != nil {
		t.Fatalf("WriteExchange failed: %v", err)
	}

	got, err := s.GetExchange(ctx, first)
	if err != nil {
		t.Fatalf("GetExchange failed: %v", err)
	}
	if got.Code != "function debounce() {}" || len(got.Keywords) != 2 || got.LatencyMS != 420 {
		t.Errorf("unexpected exchange: %+v", got)
	}

	list, err := s.ListExchanges(ctx, sessionID, 10)
	if err != nil {
		t.Fatalf("ListExchanges failed: %v", err)
	}
	if len(list) != 2 || list[0].Token != 2 || !list[0].Failed {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestIntegration_WriteTranscript(t *testing.T) {
	s := setupTestStore(t)
	id, err := s.WriteTranscript(context.Background(), Transcript{
		SessionID: "integration-test-" + uuid.New().String()[:8],
		Utterance: 3,
		Text:      "How would you design a rate limiter?",
		Source:    "accurate",
	})
	if err != nil {
		t.Fatalf("WriteTranscript failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected non-nil transcript ID")
	}
}

func TestIntegration_GetMissingExchange(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetExchange(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
