package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/cue/internal/anthropic"
	"github.com/MikeSquared-Agency/cue/internal/answer"
)

// Anthropic generates answers through the Messages API client.
type Anthropic struct {
	client *anthropic.Client
	params anthropic.Params
}

var _ answer.Generator = (*Anthropic)(nil)

func NewAnthropic(client *anthropic.Client, maxTokens int, temperature float64) *Anthropic {
	return &Anthropic{
		client: client,
		params: anthropic.Params{MaxTokens: maxTokens, Temperature: temperature},
	}
}

func (a *Anthropic) Generate(ctx context.Context, system, prompt string) (string, error) {
	text, err := a.client.Complete(ctx, system, []anthropic.Message{
		{Role: "user", Content: prompt},
	}, a.params)
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", classifyAnthropic(err))
	}
	return text, nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.APIError
	switch {
	case errors.As(err, &apiErr):
		return answer.NewError(answer.KindForStatus(apiErr.StatusCode), err)
	case errors.Is(err, anthropic.ErrEmptyContent):
		return answer.NewError(answer.KindMalformed, err)
	default:
		return answer.Classify(err)
	}
}
