package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// HTTPTranscriber posts WAV windows as multipart form data to a
// Whisper-compatible endpoint, e.g. a self-hosted faster-whisper server.
type HTTPTranscriber struct {
	endpoint   string
	token      string
	model      string
	language   string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

var _ Transcriber = (*HTTPTranscriber)(nil)

type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type httpResponse struct {
	Text     string    `json:"text"`
	Segments []segment `json:"segments,omitempty"`
}

func NewHTTPTranscriber(endpoint, token, model, language string, timeout time.Duration) *HTTPTranscriber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTranscriber{
		endpoint:   endpoint,
		token:      token,
		model:      model,
		language:   language,
		maxRetries: 2,
		backoff:    time.Second,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe retries transport failures, 429 and 5xx with exponential backoff.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			wait := t.backoff << (attempt - 1)
			if wait > 30*time.Second {
				wait = 30 * time.Second
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", &TranscribeError{Err: ctx.Err()}
			}
		}

		text, err := t.doRequest(ctx, wav)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var te *TranscribeError
		if !errors.As(err, &te) || !te.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (t *HTTPTranscriber) doRequest(ctx context.Context, wav []byte) (string, error) {
	body, contentType, err := t.multipartBody(wav)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", &TranscribeError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TranscribeError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TranscribeError{Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(respBody)))}
	}

	var out httpResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if text := strings.TrimSpace(out.Text); text != "" || len(out.Segments) == 0 {
		return text, nil
	}
	parts := make([]string, 0, len(out.Segments))
	for _, s := range out.Segments {
		if s := strings.TrimSpace(s.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func (t *HTTPTranscriber) multipartBody(wav []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", err
	}

	fields := map[string]string{"response_format": "json"}
	if t.model != "" {
		fields["model"] = t.model
	}
	if t.language != "" {
		fields["language"] = t.language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
