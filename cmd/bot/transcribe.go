package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/transcribe"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe-api",
	Short: "Serve the speech-to-text endpoint",
	Long:  "Serves POST " + transcribe.Path + ", which turns an uploaded audio clip into text with Whisper.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscribeAPI(cmd)
	},
}

func init() {
	transcribeCmd.Flags().String("addr", "", "Listen address (overrides transcribe.addr)")
}

func runTranscribeAPI(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Transcribe.Addr = addr
	}
	if err := cfg.ValidateTranscribeAPI(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	whisper, err := transcribe.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.TranscriptionModel, logger)
	if err != nil {
		return fmt.Errorf("create transcriber: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Transcribe.Addr,
		Handler:           transcribe.NewServer(transcribe.NewHandler(whisper, cfg.Transcribe.MaxBytes, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Transcription endpoint listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down transcription endpoint", zap.Error(err))
		return err
	}
	logger.Info("Transcription endpoint stopped")
	return nil
}
