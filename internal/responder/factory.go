package responder

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/pkg/config"
)

// New builds the responder selected by chat.provider. Remote providers are
// wrapped with the canned pool as fallback when chat.fallback is set.
func New(ctx context.Context, cfg *config.Config, table *content.Table, rng Rand, logger *zap.Logger) (Responder, error) {
	pool := NewPool(table, rng)
	chat := cfg.Chat

	var (
		base Responder
		err  error
	)
	switch chat.Provider {
	case "pool":
		return pool, nil
	case "openai":
		base, err = NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, chat.MaxTokens, chat.Temperature, table, logger)
	case "anthropic":
		var opts []option.RequestOption
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		base, err = NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model, chat.MaxTokens, chat.Temperature, table, logger, opts...)
	case "gemini":
		base, err = NewGemini(ctx, cfg.Gemini.APIKey, "", cfg.Gemini.Model, chat.MaxTokens, chat.Temperature, table, logger)
	default:
		return nil, fmt.Errorf("unknown chat provider: %q", chat.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s responder: %w", chat.Provider, err)
	}

	if chat.Fallback {
		return WithFallback(base, pool, logger), nil
	}
	return base, nil
}
