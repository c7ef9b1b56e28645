// Package llm holds the answer-generation backends. Each one satisfies
// answer.Generator and reports failures as *answer.GenerationError.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/anthropic"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/config"
)

// New builds the backend selected by cfg.AnswerBackend.
func New(ctx context.Context, cfg config.Config) (answer.Generator, error) {
	switch cfg.AnswerBackend {
	case config.BackendOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			MaxRetries:  -1,
		}), nil
	case config.BackendAnthropic:
		client := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		return NewAnthropic(client, cfg.MaxTokens, cfg.Temperature), nil
	case config.BackendGemini:
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.BackendMock:
		return &Mock{Delay: time.Second}, nil
	default:
		return nil, fmt.Errorf("unknown answer backend %q", cfg.AnswerBackend)
	}
}
