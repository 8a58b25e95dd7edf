package responder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
)

var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

type Anthropic struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	table       *content.Table
	logger      *zap.Logger
}

func NewAnthropic(apiKey, model string, maxTokens int, temperature float64, table *content.Table, logger *zap.Logger, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Anthropic{
		client:      &client,
		model:       resolveModel(model, anthropicModels),
		maxTokens:   maxTokens,
		temperature: temperature,
		table:       table,
		logger:      logger,
	}, nil
}

func (r *Anthropic) Reply(ctx context.Context, text string, lang models.Language) (string, error) {
	system, err := instructions(r.table, lang)
	if err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: int64(r.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(text)},
			},
		},
	}
	if r.temperature > 0 {
		params.Temperature = anthropic.Float(r.temperature)
	}

	msg, err := r.client.Messages.New(ctx, params)
	if err != nil {
		r.logger.Error("Failed to get Anthropic response", zap.Error(err), zap.String("model", r.model))
		return "", mapAnthropicError(err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			if reply := strings.TrimSpace(block.Text); reply != "" {
				return reply, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no text content in Anthropic response", ErrEmptyReply)
}

func mapAnthropicError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
