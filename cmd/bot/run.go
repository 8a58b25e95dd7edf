package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/bot"
	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/responder"
	"github.com/xaenox/moodlift-bot/internal/speech"
	"github.com/xaenox/moodlift-bot/internal/storage"
	"github.com/xaenox/moodlift-bot/internal/transcribe"
	"github.com/xaenox/moodlift-bot/pkg/config"
)

// runBot wires the collaborators and polls Telegram until interrupted.
func runBot(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table, err := content.Load()
	if err != nil {
		logger.Fatal("Failed to load locales", zap.Error(err))
	}

	replier, err := responder.New(ctx, cfg, table, globalRand{}, logger)
	if err != nil {
		logger.Fatal("Failed to create responder", zap.Error(err), zap.String("provider", cfg.Chat.Provider))
	}

	var opts []bot.Option
	if t, err := newTranscriber(cfg, logger); err != nil {
		logger.Fatal("Failed to create transcriber", zap.Error(err))
	} else if t != nil {
		opts = append(opts, bot.WithTranscriber(t))
	}
	if cfg.Voice.TTS {
		s, err := speech.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.SpeechModel, cfg.OpenAI.Voice, logger)
		if err != nil {
			logger.Fatal("Failed to create speech synthesizer", zap.Error(err))
		}
		opts = append(opts, bot.WithSynthesizer(s))
	}

	store := storage.NewMemoryStorage()
	defer store.Close()

	b, err := bot.New(cfg, store, table, replier, globalRand{}, logger, opts...)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	logger.Info("Starting bot",
		zap.String("provider", cfg.Chat.Provider),
		zap.String("transcriber", cfg.Voice.Transcriber),
		zap.Bool("tts", cfg.Voice.TTS))
	if err := b.Start(ctx); err != nil {
		logger.Error("Bot error", zap.Error(err))
		return err
	}
	logger.Info("Bot stopped")
	return nil
}

// newTranscriber returns nil when voice input is disabled.
func newTranscriber(cfg *config.Config, logger *zap.Logger) (transcribe.Transcriber, error) {
	switch cfg.Voice.Transcriber {
	case "openai":
		return transcribe.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.TranscriptionModel, logger)
	case "http":
		return transcribe.NewClient(cfg.Voice.Endpoint, nil), nil
	default:
		return nil, nil
	}
}
