// Package speech synthesizes assistant messages as voice notes.
package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/models"
)

// Synthesizer renders text as an audio stream the caller must close.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang models.Language) (io.ReadCloser, error)
}

// OpenAI uses the text-to-speech endpoint and returns Opus audio, which
// Telegram plays as a voice note.
type OpenAI struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	logger *zap.Logger
}

func NewOpenAI(apiKey, baseURL, model, voice string, logger *zap.Logger) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
		logger: logger,
	}, nil
}

// Synthesize speaks text. The model detects the language from the text;
// lang is only logged.
func (s *OpenAI) Synthesize(ctx context.Context, text string, lang models.Language) (io.ReadCloser, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatOpus,
	})
	if err != nil {
		s.logger.Error("Failed to synthesize speech",
			zap.Error(err),
			zap.String("language", string(lang)),
			zap.Int("chars", len(text)))
		return nil, fmt.Errorf("create speech: %w", err)
	}
	return resp, nil
}
