package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/breathing"
	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/conversation"
	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/schedule"
	"github.com/xaenox/moodlift-bot/internal/speech"
	"github.com/xaenox/moodlift-bot/internal/storage"
	"github.com/xaenox/moodlift-bot/internal/transcribe"
	"github.com/xaenox/moodlift-bot/internal/voice"
	"github.com/xaenox/moodlift-bot/pkg/config"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api         API
	storage     storage.Storage
	table       *content.Table
	replier     conversation.Replier
	transcriber transcribe.Transcriber
	speaker     speech.Synthesizer
	rng         breathing.Rand
	cfg         *config.Config
	logger      *zap.Logger

	sched      schedule.Scheduler
	spawn      func(func())
	httpClient *http.Client
}

type Option func(*Bot)

// WithAPI replaces the Telegram client, mostly for tests.
func WithAPI(api API) Option {
	return func(b *Bot) { b.api = api }
}

// WithTranscriber enables voice notes.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(b *Bot) { b.transcriber = t }
}

// WithSynthesizer enables spoken replies.
func WithSynthesizer(s speech.Synthesizer) Option {
	return func(b *Bot) { b.speaker = s }
}

func WithScheduler(s schedule.Scheduler) Option {
	return func(b *Bot) { b.sched = s }
}

func WithSpawn(spawn func(func())) Option {
	return func(b *Bot) { b.spawn = spawn }
}

func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.httpClient = c }
}

func New(cfg *config.Config, store storage.Storage, table *content.Table, replier conversation.Replier, rng breathing.Rand, logger *zap.Logger, opts ...Option) (*Bot, error) {
	b := &Bot{
		storage:    store,
		table:      table,
		replier:    replier,
		rng:        rng,
		cfg:        cfg,
		logger:     logger,
		sched:      schedule.Real{},
		spawn:      func(fn func()) { go fn() },
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.api == nil {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create bot: %w", err)
		}
		api.Debug = cfg.Telegram.Debug
		logger.Info("Authorized on account", zap.String("username", api.Self.UserName))
		b.api = api
	}
	return b, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.PollTimeout

	updates := b.api.GetUpdatesChan(u)

	if ttl := b.cfg.Telegram.SessionTTL; ttl > 0 {
		go b.evictIdle(ctx, ttl)
	}

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) evictIdle(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.storage.EvictIdle(ttl); n > 0 {
				b.logger.Info("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	switch {
	case message.Voice != nil:
		b.handleVoice(ctx, message)
	case message.Text != "":
		b.handleText(ctx, message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	s, err := b.session(chatID)
	if err != nil {
		return
	}
	bundle := b.bundle(s)

	switch message.Command() {
	case "start":
		if err := s.Machine.Begin(); err != nil {
			b.logger.Error("Failed to begin conversation", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	case "help":
		b.sendMessage(chatID, bundle.Bot.Help)
	case "language":
		if arg := message.CommandArguments(); arg != "" {
			b.setLanguage(s, parseLanguage(arg))
			return
		}
		b.sendLanguagePicker(chatID, bundle)
	case "tts":
		b.handleTTS(s, bundle)
	case "breathe":
		if err := s.Breathing.Open(s.Machine.Language()); err != nil {
			b.logger.Error("Failed to open breathing exercise", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	case "gratitude":
		b.ensureStarted(s)
		if err := s.Machine.Gratitude(); err != nil {
			b.reportInputError(s, err)
		}
	case "stats":
		stats := b.storage.Stats()
		b.sendMessage(chatID, formatStats(bundle, stats.Sessions, stats.CompletedAssessments, stats.AverageRating))
	default:
		b.sendMessage(chatID, bundle.Bot.Unknown)
	}
}

func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) {
	s, err := b.session(message.Chat.ID)
	if err != nil {
		return
	}
	if b.ensureStarted(s) {
		return
	}
	if s.Machine.Snapshot().Loading {
		b.sendMessage(s.ChatID, b.bundle(s).Thinking)
		return
	}

	if err := s.Machine.SubmitInput(ctx, message.Text, models.OriginTyped); err != nil {
		b.reportInputError(s, err)
	}
}

func (b *Bot) handleVoice(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	s, err := b.session(chatID)
	if err != nil {
		return
	}
	bundle := b.bundle(s)

	if s.Recorder == nil {
		b.sendMessage(chatID, bundle.Bot.VoiceUnavailable)
		return
	}
	if b.ensureStarted(s) {
		return
	}
	if s.Machine.Snapshot().Loading {
		b.sendMessage(chatID, bundle.Thinking)
		return
	}
	if limit := b.cfg.Voice.MaxBytes; limit > 0 && int64(message.Voice.FileSize) > limit {
		b.logger.Warn("Voice note too large",
			zap.Int64("chat_id", chatID),
			zap.Int64("size", int64(message.Voice.FileSize)))
		b.sendErrorMessage(chatID, bundle.RecordingError)
		return
	}

	url, err := b.api.GetFileDirectURL(message.Voice.FileID)
	if err != nil {
		b.logger.Error("Failed to get voice file URL", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, bundle.RecordingError)
		return
	}

	if b.cfg.Voice.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Voice.Timeout)
		defer cancel()
	}
	b.chatAction(chatID, tgbotapi.ChatTyping)

	capture := voice.DownloadCapture{URL: url, Filename: transcribe.DefaultFilename, Client: b.httpClient}
	_, err = s.Recorder.Dictate(ctx, capture, s.Machine.Language(), s.Machine)
	switch {
	case err == nil:
	case errors.Is(err, voice.ErrTranscriptionFailure), errors.Is(err, voice.ErrMissingInput):
		b.logger.Warn("Failed to transcribe voice note", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, bundle.TranscriptionFailed)
	case errors.Is(err, voice.ErrCapture):
		b.logger.Error("Failed to download voice note", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, bundle.RecordingError)
	case errors.Is(err, voice.ErrAlreadyRecording):
		b.sendMessage(chatID, bundle.Busy)
	default:
		b.reportInputError(s, err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}
	if query.Message == nil || query.Message.Chat == nil {
		return
	}
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	cb, err := parseCallback(query.Data)
	if err != nil {
		b.logger.Warn("Ignoring callback", zap.Error(err), zap.Int64("chat_id", chatID))
		return
	}

	s, err := b.session(chatID)
	if err != nil {
		return
	}

	switch cb.Action {
	case actionRate:
		rating, _ := strconv.Atoi(cb.Value)
		if err := s.Machine.SubmitRating(rating); err != nil {
			b.reportInputError(s, err)
			return
		}
		b.clearKeyboard(chatID, messageID)
	case actionBreathe:
		choice := conversation.ChoiceNo
		if cb.Value == "yes" {
			choice = conversation.ChoiceYes
		}
		if err := s.Machine.ChooseBreathing(choice); err != nil {
			b.reportInputError(s, err)
			return
		}
		b.clearKeyboard(chatID, messageID)
	case actionTimer:
		b.handleTimer(s, cb.Value)
	case actionLang:
		b.clearKeyboard(chatID, messageID)
		b.setLanguage(s, parseLanguage(cb.Value))
	}
}

func (b *Bot) handleTimer(s *storage.Session, action string) {
	var err error
	switch action {
	case timerToggle:
		err = s.Breathing.Toggle()
	case timerReset:
		err = s.Breathing.Reset()
	case timerClose:
		s.Breathing.Close()
	}
	if err != nil && !errors.Is(err, breathing.ErrNotOpen) && !errors.Is(err, breathing.ErrFinished) {
		b.logger.Error("Failed to update breathing timer", zap.Error(err), zap.Int64("chat_id", s.ChatID))
	}
}

func (b *Bot) handleTTS(s *storage.Session, bundle *content.Bundle) {
	if b.speaker == nil {
		b.sendMessage(s.ChatID, bundle.Bot.TTSUnavailable)
		return
	}
	on := !s.Machine.TTS()
	s.Machine.SetTTS(on)
	if on {
		b.sendMessage(s.ChatID, bundle.Bot.TTSOn)
	} else {
		b.sendMessage(s.ChatID, bundle.Bot.TTSOff)
	}
}

func (b *Bot) setLanguage(s *storage.Session, lang models.Language) {
	if err := s.Machine.SetLanguage(lang); err != nil {
		if errors.Is(err, conversation.ErrUnsupportedLanguage) {
			b.sendLanguagePicker(s.ChatID, b.bundle(s))
			return
		}
		b.logger.Error("Failed to change language", zap.Error(err), zap.Int64("chat_id", s.ChatID))
		return
	}
	// An open card follows the new language.
	if s.Breathing.Snapshot().Open {
		if err := s.Breathing.Open(lang); err != nil {
			b.logger.Error("Failed to reopen breathing exercise", zap.Error(err))
		}
	}
}

// reportInputError tells the user why input was rejected. State is
// unchanged in every case.
func (b *Bot) reportInputError(s *storage.Session, err error) {
	bundle := b.bundle(s)
	state := s.Machine.Snapshot()

	switch {
	case errors.Is(err, conversation.ErrMissingInput):
	case errors.Is(err, conversation.ErrBusy):
		b.sendMessage(s.ChatID, bundle.Busy)
	case errors.Is(err, conversation.ErrMalformedRating):
		b.sendMessage(s.ChatID, bundle.RatingHint)
	case errors.Is(err, conversation.ErrInputNotAccepted):
		if state.Phase == conversation.PhaseAwaitingBreathingChoice {
			b.sendKeyboard(s.ChatID, bundle.BreathingInvitation, choiceKeyboard(bundle))
			return
		}
		b.sendMessage(s.ChatID, bundle.Bot.NotNow)
	case errors.Is(err, conversation.ErrClosed):
		b.logger.Debug("Input for closed session", zap.Int64("chat_id", s.ChatID))
	default:
		b.logger.Error("Failed to handle input", zap.Error(err), zap.Int64("chat_id", s.ChatID))
	}
}

// ensureStarted greets chats that never ran /start. It reports whether the
// greeting was sent, in which case the triggering input is dropped.
func (b *Bot) ensureStarted(s *storage.Session) bool {
	if len(s.Machine.Snapshot().Messages) > 0 {
		return false
	}
	if err := s.Machine.Begin(); err != nil {
		b.logger.Error("Failed to begin conversation", zap.Error(err), zap.Int64("chat_id", s.ChatID))
		return false
	}
	return true
}

func (b *Bot) session(chatID int64) (*storage.Session, error) {
	s, err := b.storage.GetOrCreate(chatID, b.newSession)
	if err != nil {
		b.logger.Error("Failed to get session", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	return s, err
}

func (b *Bot) newSession(chatID int64) (*storage.Session, error) {
	logger := b.logger.With(zap.Int64("chat_id", chatID))
	sink := &chatSink{bot: b, chatID: chatID, logger: logger}

	cfg := conversation.Config{
		Language:       models.Language(b.cfg.Chat.Language),
		PacingDelay:    b.cfg.Chat.PacingDelay,
		BreathingDelay: b.cfg.Chat.BreathingDelay,
		RevealDelay:    b.cfg.Chat.RevealDelay,
		ReplyTimeout:   b.cfg.Chat.ReplyTimeout,
		TTS:            b.cfg.Voice.TTS && b.speaker != nil,
	}
	machine, err := conversation.New(b.table, b.replier, sink, logger, cfg,
		conversation.WithScheduler(b.sched),
		conversation.WithSpawn(b.spawn))
	if err != nil {
		return nil, err
	}
	timer := breathing.NewTimer(b.table, b.sched, b.rng, sink, logger)

	s := storage.NewSession(chatID, machine, timer, time.Now())
	if b.transcriber != nil {
		s.Recorder = voice.NewRecorder(b.transcriber, int(b.cfg.Voice.MaxBytes), logger)
	}
	sink.session = s
	logger.Info("Session created")
	return s, nil
}

func (b *Bot) bundle(s *storage.Session) *content.Bundle {
	return b.table.MustBundle(s.Machine.Language())
}

func (b *Bot) sendLanguagePicker(chatID int64, bundle *content.Bundle) {
	b.sendKeyboard(chatID, bundle.Bot.ChooseLanguage, languageKeyboard(b.table))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) clearKeyboard(chatID int64, messageID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, removeKeyboard())
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Debug("Failed to clear keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) chatAction(chatID int64, action string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		b.logger.Debug("Failed to send chat action", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
