package responder

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/models"
)

type fallbackResponder struct {
	primary  Responder
	fallback Responder
	logger   *zap.Logger
}

// WithFallback answers from fallback whenever primary fails. Cancellation
// and deadline errors are returned as is.
func WithFallback(primary, fallback Responder, logger *zap.Logger) Responder {
	return &fallbackResponder{primary: primary, fallback: fallback, logger: logger}
}

func (r *fallbackResponder) Reply(ctx context.Context, text string, lang models.Language) (string, error) {
	reply, err := r.primary.Reply(ctx, text, lang)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}

	r.logger.Warn("Falling back to canned reply",
		zap.Error(err),
		zap.String("language", string(lang)))
	return r.fallback.Reply(ctx, text, lang)
}
