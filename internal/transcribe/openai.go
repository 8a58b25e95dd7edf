package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAI transcribes with Whisper.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAI(apiKey, baseURL, model string, logger *zap.Logger) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = openai.Whisper1
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}, nil
}

func (t *OpenAI) Transcribe(ctx context.Context, clip Clip) (string, error) {
	if len(clip.Audio) == 0 {
		return "", ErrEmptyClip
	}
	filename := clip.Filename
	if filename == "" {
		filename = DefaultFilename
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   bytes.NewReader(clip.Audio),
		Language: string(clip.Language),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		t.logger.Error("Failed to transcribe audio",
			zap.Error(err),
			zap.Int("bytes", len(clip.Audio)),
			zap.String("language", string(clip.Language)))
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
