package responder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
)

var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.0-flash",
	"gemini-pro":   "gemini-2.0-pro",
}

type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
	table       *content.Table
	logger      *zap.Logger
}

// NewGemini creates a Gemini responder. baseURL is only set in tests.
func NewGemini(ctx context.Context, apiKey, baseURL, model string, maxTokens int, temperature float64, table *content.Table, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       resolveModel(model, geminiModels),
		maxTokens:   maxTokens,
		temperature: temperature,
		table:       table,
		logger:      logger,
	}, nil
}

func (r *Gemini) Reply(ctx context.Context, text string, lang models.Language) (string, error) {
	system, err := instructions(r.table, lang)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(r.maxTokens),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}
	if r.temperature > 0 {
		temp := float32(r.temperature)
		config.Temperature = &temp
	}
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: text}}},
	}

	result, err := r.client.Models.GenerateContent(ctx, r.model, contents, config)
	if err != nil {
		r.logger.Error("Failed to get Gemini response", zap.Error(err), zap.String("model", r.model))
		return "", mapGeminiError(err)
	}

	reply := strings.TrimSpace(result.Text())
	if reply == "" {
		return "", fmt.Errorf("%w: no text in Gemini response", ErrEmptyReply)
	}
	return reply, nil
}

func mapGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := 0
	var ptrErr *genai.APIError
	var valErr genai.APIError
	switch {
	case errors.As(err, &ptrErr):
		code = ptrErr.Code
	case errors.As(err, &valErr):
		code = valErr.Code
	}
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
