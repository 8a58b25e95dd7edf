// Package responder produces the supportive free-chat replies.
package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
)

// Responder returns exactly one reply for a user turn.
type Responder interface {
	Reply(ctx context.Context, text string, lang models.Language) (string, error)
}

var (
	ErrRateLimited = errors.New("reply provider rate limited")
	ErrUnavailable = errors.New("reply provider unavailable")
	ErrEmptyReply  = errors.New("reply provider returned no text")
)

// Rand picks a pool index. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Pool answers with a random canned reply in the user's language.
type Pool struct {
	table *content.Table

	mu  sync.Mutex
	rng Rand
}

func NewPool(table *content.Table, rng Rand) *Pool {
	return &Pool{table: table, rng: rng}
}

func (p *Pool) Reply(ctx context.Context, _ string, lang models.Language) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bundle, err := p.table.Bundle(lang)
	if err != nil {
		return "", err
	}
	if len(bundle.Replies) == 0 {
		return "", fmt.Errorf("%w: no canned replies for %s", ErrEmptyReply, lang)
	}

	p.mu.Lock()
	i := p.rng.IntN(len(bundle.Replies))
	p.mu.Unlock()
	return bundle.Replies[i], nil
}

// instructions returns the system prompt for lang.
func instructions(table *content.Table, lang models.Language) (string, error) {
	bundle, err := table.Bundle(lang)
	if err != nil {
		return "", err
	}
	return bundle.ReplyInstructions, nil
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, known map[string]string) string {
	if id, ok := known[name]; ok {
		return id
	}
	return name
}
