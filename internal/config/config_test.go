package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"CUE_CONFIG", "CUE_PORT", "LOG_LEVEL", "CUE_API_TOKEN", "NATS_URL", "NATS_TOKEN",
	"DATABASE_URL", "CUE_DATA_DIR", "CUE_ANSWER_BACKEND", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"CUE_OPENAI_MODEL", "ANTHROPIC_API_KEY", "CUE_ANTHROPIC_MODEL", "GEMINI_API_KEY",
	"CUE_GEMINI_MODEL", "CUE_MAX_TOKENS", "CUE_TEMPERATURE", "CUE_ANSWER_TIMEOUT",
	"CUE_TRANSCRIBE_BACKEND", "CUE_TRANSCRIBE_URL", "CUE_TRANSCRIBE_TOKEN", "CUE_TRANSCRIBE_MODEL",
	"CUE_TRANSCRIBE_LANGUAGE", "CUE_TRANSCRIBE_TIMEOUT", "CUE_TRANSCRIBE_WORKERS",
	"CUE_STREAM_URL", "CUE_SILENCE_TIMEOUT", "CUE_REALTIME", "SLACK_BOT_TOKEN", "SLACK_ANSWERS_CHANNEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8760 {
		t.Errorf("expected default port 8760, got %d", cfg.Port)
	}
	if cfg.NatsURL != "" {
		t.Errorf("expected nats disabled by default, got %s", cfg.NatsURL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.AnswerBackend != BackendOpenAI || cfg.OpenAIModel != "gpt-4" {
		t.Errorf("expected openai gpt-4, got %s %s", cfg.AnswerBackend, cfg.OpenAIModel)
	}
	if cfg.MaxTokens != 1000 || cfg.Temperature != 0.7 {
		t.Errorf("expected 1000 tokens at 0.7, got %d at %v", cfg.MaxTokens, cfg.Temperature)
	}
	if cfg.SilenceTimeout != 2*time.Second {
		t.Errorf("expected 2s silence timeout, got %s", cfg.SilenceTimeout)
	}
	if cfg.TranscribeModel != "whisper-1" || cfg.TranscribeWorkers != 2 {
		t.Errorf("unexpected transcription defaults %s/%d", cfg.TranscribeModel, cfg.TranscribeWorkers)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUE_PORT", "9999")
	t.Setenv("NATS_URL", "nats://custom:4222")
	t.Setenv("CUE_ANSWER_BACKEND", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("CUE_TEMPERATURE", "0.2")
	t.Setenv("CUE_SILENCE_TIMEOUT", "1500ms")
	t.Setenv("SLACK_ANSWERS_CHANNEL", "C12345")
	t.Setenv("CUE_REALTIME", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.NatsURL != "nats://custom:4222" {
		t.Errorf("expected custom nats url, got %s", cfg.NatsURL)
	}
	if cfg.AnswerBackend != BackendAnthropic {
		t.Errorf("expected lowercased anthropic backend, got %s", cfg.AnswerBackend)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.Temperature)
	}
	if cfg.SilenceTimeout != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", cfg.SilenceTimeout)
	}
	if cfg.SlackChannel != "C12345" {
		t.Errorf("expected custom slack channel, got %s", cfg.SlackChannel)
	}
	if !cfg.Realtime {
		t.Error("expected realtime pacing enabled")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUE_PORT", "notanumber")
	t.Setenv("CUE_ANSWER_TIMEOUT", "soon")
	t.Setenv("CUE_REALTIME", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8760 {
		t.Errorf("expected default port on invalid value, got %d", cfg.Port)
	}
	if cfg.AnswerTimeout != 60*time.Second {
		t.Errorf("expected default timeout on invalid value, got %s", cfg.AnswerTimeout)
	}
	if cfg.Realtime {
		t.Error("expected realtime off on invalid value")
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cue.yaml")
	data := "CUE_PORT: 9100\ncue_answer_backend: mock\nCUE_SILENCE_TIMEOUT: 3s\nCUE_TEMPERATURE: 0.5\nCUE_REALTIME: true\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CUE_CONFIG", path)
	t.Setenv("CUE_PORT", "9200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("expected env to override file, got %d", cfg.Port)
	}
	if cfg.AnswerBackend != BackendMock {
		t.Errorf("expected file backend mock, got %s", cfg.AnswerBackend)
	}
	if cfg.SilenceTimeout != 3*time.Second {
		t.Errorf("expected file silence timeout, got %s", cfg.SilenceTimeout)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("expected file temperature, got %v", cfg.Temperature)
	}
	if !cfg.Realtime {
		t.Error("expected file realtime flag")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"mock with http transcription", func(c *Config) {
			c.AnswerBackend = BackendMock
			c.TranscribeBackend = BackendHTTP
			c.TranscribeURL = "http://whisper:8000"
		}, ""},
		{"openai without key", func(c *Config) {}, "OPENAI_API_KEY"},
		{"unknown answer backend", func(c *Config) {
			c.AnswerBackend = "llama"
			c.OpenAIAPIKey = "k"
		}, "unknown answer backend"},
		{"http without url", func(c *Config) {
			c.AnswerBackend = BackendMock
			c.TranscribeBackend = BackendHTTP
		}, "CUE_TRANSCRIBE_URL"},
		{"no transcription at all", func(c *Config) {
			c.AnswerBackend = BackendMock
			c.TranscribeBackend = BackendNone
		}, "CUE_STREAM_URL"},
		{"zero workers", func(c *Config) {
			c.AnswerBackend = BackendMock
			c.OpenAIAPIKey = "k"
			c.TranscribeWorkers = 0
		}, "CUE_TRANSCRIBE_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAnswer_IgnoresTranscription(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.AnswerBackend = BackendMock
	cfg.TranscribeBackend = "bogus"

	if err := cfg.ValidateAnswer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected full validation to reject the transcription backend")
	}
}
