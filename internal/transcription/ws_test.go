package transcription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSRecognizer_StreamsAudioAndResults(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotAuth := make(chan string, 1)
	gotBytes := make(chan int, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mt, data, err := conn.ReadMessage()
		if err != nil || mt != websocket.BinaryMessage {
			return
		}
		gotBytes <- len(data)
		conn.WriteJSON(Result{Text: "hello", IsFinal: true})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := NewWSRecognizer("ws"+strings.TrimPrefix(srv.URL, "http"), "secret", discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := rec.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if auth := <-gotAuth; auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}

	if err := stream.Send(make([]float32, 160)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := <-gotBytes; n != 320 {
		t.Errorf("server got %d bytes, want 320", n)
	}

	select {
	case r := <-stream.Results():
		if r.Text != "hello" || !r.IsFinal {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}

	if err := stream.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := stream.Send(make([]float32, 160)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Send after close = %v, want ErrStreamClosed", err)
	}
	select {
	case _, ok := <-stream.Results():
		if ok {
			t.Error("expected results to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("results not closed after Close")
	}
}

func TestWSRecognizer_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := NewWSRecognizer("ws"+strings.TrimPrefix(srv.URL, "http"), "", discardLogger())
	if _, err := rec.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}
