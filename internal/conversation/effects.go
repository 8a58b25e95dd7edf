package conversation

import (
	"context"

	"github.com/xaenox/moodlift-bot/internal/models"
)

// Replier produces one supportive reply for a free-chat turn.
type Replier interface {
	Reply(ctx context.Context, text string, lang models.Language) (string, error)
}

// Effects receives the side effects of conversation transitions. Calls are
// made in order, after the machine has released its lock, so
// implementations may call back into the machine.
type Effects interface {
	// MessageAppended reports a new history entry and the input the
	// conversation accepts right after it.
	MessageAppended(msg models.Message, accepts Input)
	Speak(text string, lang models.Language)
	OpenBreathing(lang models.Language)
	LoadingChanged(loading bool)
	ReplyFailed(err error)
}

// NopEffects discards every effect.
type NopEffects struct{}

func (NopEffects) MessageAppended(models.Message, Input) {}
func (NopEffects) Speak(string, models.Language)        {}
func (NopEffects) OpenBreathing(models.Language)        {}
func (NopEffects) LoadingChanged(bool)                  {}
func (NopEffects) ReplyFailed(error)                    {}
