package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
	BackendMock      = "mock"
	BackendHTTP      = "http"
	BackendNone      = "none"
)

type Config struct {
	Port        int
	LogLevel    string
	APIToken    string
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	DataDir     string

	AnswerBackend   string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	MaxTokens       int
	Temperature     float64
	AnswerTimeout   time.Duration

	TranscribeBackend  string
	TranscribeURL      string
	TranscribeToken    string
	TranscribeModel    string
	TranscribeLanguage string
	TranscribeTimeout  time.Duration
	TranscribeWorkers  int
	StreamURL          string
	SilenceTimeout     time.Duration
	// Realtime paces file input at its natural rate.
	Realtime bool

	SlackBotToken string
	SlackChannel  string
}

// Load builds the configuration from the environment. When CUE_CONFIG names a
// YAML file, its keys (the same names as the environment variables) provide
// the fallbacks that the environment overrides.
func Load() (Config, error) {
	src := source{}
	if path := os.Getenv("CUE_CONFIG"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	return Config{
		Port:        src.envInt("CUE_PORT", 8760),
		LogLevel:    src.envStr("LOG_LEVEL", "info"),
		APIToken:    src.envStr("CUE_API_TOKEN", ""),
		NatsURL:     src.envStr("NATS_URL", ""),
		NatsToken:   src.envStr("NATS_TOKEN", ""),
		DatabaseURL: src.envStr("DATABASE_URL", ""),
		DataDir:     src.envStr("CUE_DATA_DIR", ""),

		AnswerBackend:   strings.ToLower(src.envStr("CUE_ANSWER_BACKEND", BackendOpenAI)),
		OpenAIAPIKey:    src.envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   src.envStr("OPENAI_BASE_URL", ""),
		OpenAIModel:     src.envStr("CUE_OPENAI_MODEL", "gpt-4"),
		AnthropicAPIKey: src.envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  src.envStr("CUE_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:    src.envStr("GEMINI_API_KEY", ""),
		GeminiModel:     src.envStr("CUE_GEMINI_MODEL", "gemini-2.0-flash"),
		MaxTokens:       src.envInt("CUE_MAX_TOKENS", 1000),
		Temperature:     src.envFloat("CUE_TEMPERATURE", 0.7),
		AnswerTimeout:   src.envDuration("CUE_ANSWER_TIMEOUT", 60*time.Second),

		TranscribeBackend:  strings.ToLower(src.envStr("CUE_TRANSCRIBE_BACKEND", BackendOpenAI)),
		TranscribeURL:      src.envStr("CUE_TRANSCRIBE_URL", ""),
		TranscribeToken:    src.envStr("CUE_TRANSCRIBE_TOKEN", ""),
		TranscribeModel:    src.envStr("CUE_TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeLanguage: src.envStr("CUE_TRANSCRIBE_LANGUAGE", "en"),
		TranscribeTimeout:  src.envDuration("CUE_TRANSCRIBE_TIMEOUT", 30*time.Second),
		TranscribeWorkers:  src.envInt("CUE_TRANSCRIBE_WORKERS", 2),
		StreamURL:          src.envStr("CUE_STREAM_URL", ""),
		SilenceTimeout:     src.envDuration("CUE_SILENCE_TIMEOUT", 2*time.Second),
		Realtime:           src.envBool("CUE_REALTIME", false),

		SlackBotToken: src.envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  src.envStr("SLACK_ANSWERS_CHANNEL", ""),
	}, nil
}

// Validate reports every setting the chosen backends cannot run with.
func (c Config) Validate() error {
	errs := []error{c.ValidateAnswer(), c.validateTranscription()}

	if c.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.TranscribeWorkers <= 0 {
		errs = append(errs, fmt.Errorf("CUE_TRANSCRIBE_WORKERS must be positive, got %d", c.TranscribeWorkers))
	}
	if c.TranscribeTimeout <= 0 || c.SilenceTimeout <= 0 {
		errs = append(errs, errors.New("transcription timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateAnswer checks only what answer generation needs; one-shot commands
// that never transcribe use it instead of Validate.
func (c Config) ValidateAnswer() error {
	var errs []error

	switch c.AnswerBackend {
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai answer backend"))
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic answer backend"))
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini answer backend"))
		}
	case BackendMock:
	default:
		errs = append(errs, fmt.Errorf("unknown answer backend %q", c.AnswerBackend))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("CUE_MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}
	if c.AnswerTimeout <= 0 {
		errs = append(errs, errors.New("CUE_ANSWER_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) validateTranscription() error {
	var errs []error

	switch c.TranscribeBackend {
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai transcription backend"))
		}
	case BackendHTTP:
		if c.TranscribeURL == "" {
			errs = append(errs, errors.New("CUE_TRANSCRIBE_URL is required for the http transcription backend"))
		}
	case BackendNone:
		if c.StreamURL == "" {
			errs = append(errs, errors.New("CUE_STREAM_URL is required when accurate transcription is disabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transcription backend %q", c.TranscribeBackend))
	}
	return errors.Join(errs...)
}

type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	file := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return file, nil
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) envStr(key, fallback string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return fallback
}

func (s source) envInt(key string, fallback int) int {
	if v := s.lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) envFloat(key string, fallback float64) float64 {
	if v := s.lookup(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (s source) envDuration(key string, fallback time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func (s source) envBool(key string, fallback bool) bool {
	if v := s.lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
