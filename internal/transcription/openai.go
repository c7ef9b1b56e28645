package transcription

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAITranscriber is an accurate path backed by the Whisper API.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

var _ Transcriber = (*OpenAITranscriber)(nil)

func NewOpenAITranscriber(apiKey, baseURL, model, language string) *OpenAITranscriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAITranscriber{client: &client, model: model, language: language}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "chunk.wav", "audio/wav"),
		Model: t.model,
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &TranscribeError{Status: apiErr.StatusCode, Err: err}
		}
		return "", &TranscribeError{Err: err}
	}
	return strings.TrimSpace(resp.Text), nil
}
