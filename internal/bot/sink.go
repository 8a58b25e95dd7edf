package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/breathing"
	"github.com/xaenox/moodlift-bot/internal/conversation"
	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/storage"
)

const (
	// Telegram shows a chat action for about five seconds.
	typingInterval = 4 * time.Second
	speechTimeout  = 30 * time.Second
)

// chatSink renders machine effects into one Telegram chat.
type chatSink struct {
	bot     *Bot
	chatID  int64
	logger  *zap.Logger
	session *storage.Session

	mu     sync.Mutex
	typing chan struct{}

	// cardMu orders sends and edits of the breathing card.
	cardMu sync.Mutex
}

var (
	_ conversation.Effects = (*chatSink)(nil)
	_ breathing.Observer   = (*chatSink)(nil)
)

func (c *chatSink) MessageAppended(msg models.Message, accepts conversation.Input) {
	bundle := c.bot.table.MustBundle(c.session.Machine.Language())

	if msg.Role == models.RoleUser {
		// Typed text and button presses are already visible in the chat.
		if msg.Origin == models.OriginVoice {
			c.bot.sendMessage(c.chatID, fmt.Sprintf(bundle.Bot.Heard, msg.Content))
		}
		return
	}

	switch accepts {
	case conversation.InputRating:
		c.bot.sendKeyboard(c.chatID, msg.Content, ratingKeyboard(bundle))
	case conversation.InputChoice:
		c.bot.sendKeyboard(c.chatID, msg.Content, choiceKeyboard(bundle))
	default:
		c.bot.sendMessage(c.chatID, msg.Content)
	}
}

func (c *chatSink) Speak(text string, lang models.Language) {
	speaker := c.bot.speaker
	if speaker == nil {
		return
	}

	c.bot.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), speechTimeout)
		defer cancel()

		audio, err := speaker.Synthesize(ctx, text, lang)
		if err != nil {
			c.logger.Warn("Failed to synthesize reply", zap.Error(err))
			return
		}
		defer audio.Close()

		note := tgbotapi.NewVoice(c.chatID, tgbotapi.FileReader{Name: "moodlift.ogg", Reader: audio})
		if _, err := c.bot.api.Send(note); err != nil {
			c.logger.Error("Failed to send voice reply", zap.Error(err))
		}
	})
}

func (c *chatSink) OpenBreathing(lang models.Language) {
	if err := c.session.Breathing.Open(lang); err != nil {
		c.logger.Error("Failed to open breathing exercise", zap.Error(err))
	}
}

func (c *chatSink) LoadingChanged(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !loading {
		if c.typing != nil {
			close(c.typing)
			c.typing = nil
		}
		return
	}
	if c.typing != nil {
		return
	}

	stop := make(chan struct{})
	c.typing = stop
	c.bot.chatAction(c.chatID, tgbotapi.ChatTyping)
	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.bot.chatAction(c.chatID, tgbotapi.ChatTyping)
			}
		}
	}()
}

func (c *chatSink) ReplyFailed(err error) {
	c.logger.Warn("Reply failed", zap.Error(err))
	bundle := c.bot.table.MustBundle(c.session.Machine.Language())
	c.bot.sendErrorMessage(c.chatID, bundle.ReplyFailed)
}

// BreathingChanged sends the card on open, edits it while it changes and
// deletes it on close.
func (c *chatSink) BreathingChanged(s breathing.Snapshot) {
	c.cardMu.Lock()
	defer c.cardMu.Unlock()

	id := c.session.BreathingMessage()
	if !s.Open {
		if id == 0 {
			return
		}
		if _, err := c.bot.api.Request(tgbotapi.NewDeleteMessage(c.chatID, id)); err != nil {
			c.logger.Warn("Failed to delete breathing card", zap.Error(err))
		}
		c.session.SetBreathingMessage(0)
		return
	}

	bundle := c.bot.table.MustBundle(s.Language)
	text := renderBreathing(bundle, s)
	keyboard := timerKeyboard(bundle, s)

	if id == 0 {
		msg := tgbotapi.NewMessage(c.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		msg.ReplyMarkup = keyboard
		sent, err := c.bot.api.Send(msg)
		if err != nil {
			c.logger.Error("Failed to send breathing card", zap.Error(err))
			return
		}
		c.session.SetBreathingMessage(sent.MessageID)
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(c.chatID, id, text, keyboard)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := c.bot.api.Request(edit); err != nil {
		c.logger.Debug("Failed to edit breathing card", zap.Error(err))
	}
}
