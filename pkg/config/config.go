package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Log        LogConfig        `mapstructure:"log"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
	Debug       bool   `mapstructure:"debug"`

	// SessionTTL evicts chats idle for longer; zero keeps them forever.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// ChatConfig drives the conversation and its reply provider.
type ChatConfig struct {
	// Provider is one of pool, openai, anthropic, gemini.
	Provider       string        `mapstructure:"provider"`
	Fallback       bool          `mapstructure:"fallback"`
	Language       string        `mapstructure:"language"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	PacingDelay    time.Duration `mapstructure:"pacing_delay"`
	BreathingDelay time.Duration `mapstructure:"breathing_delay"`
	RevealDelay    time.Duration `mapstructure:"reveal_delay"`
	ReplyTimeout   time.Duration `mapstructure:"reply_timeout"`
}

type VoiceConfig struct {
	// Transcriber is none, openai (Whisper directly) or http (the
	// transcribe-api endpoint at Endpoint).
	Transcriber string        `mapstructure:"transcriber"`
	Endpoint    string        `mapstructure:"endpoint"`
	TTS         bool          `mapstructure:"tts"`
	MaxBytes    int64         `mapstructure:"max_bytes"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TranscribeConfig struct {
	Addr     string `mapstructure:"addr"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Model              string `mapstructure:"model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	SpeechModel        string `mapstructure:"speech_model"`
	Voice              string `mapstructure:"voice"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.session_ttl", 24*time.Hour)
	v.SetDefault("log.development", false)
	v.SetDefault("chat.provider", "pool")
	v.SetDefault("chat.fallback", true)
	v.SetDefault("chat.language", "en")
	v.SetDefault("chat.max_tokens", 200)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.pacing_delay", 800*time.Millisecond)
	v.SetDefault("chat.breathing_delay", 500*time.Millisecond)
	v.SetDefault("chat.reveal_delay", 50*time.Millisecond)
	v.SetDefault("chat.reply_timeout", 30*time.Second)
	v.SetDefault("voice.transcriber", "none")
	v.SetDefault("voice.tts", false)
	v.SetDefault("voice.max_bytes", 20<<20)
	v.SetDefault("voice.timeout", 60*time.Second)
	v.SetDefault("transcribe.addr", ":8080")
	v.SetDefault("transcribe.max_bytes", 25<<20)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.speech_model", "tts-1")
	v.SetDefault("openai.voice", "alloy")
	v.SetDefault("anthropic.model", "claude-haiku")
	v.SetDefault("gemini.model", "gemini-flash")

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Well-known environment variables win over the file
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := v.GetString("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Anthropic.APIKey = apiKey
	}
	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	return &config, nil
}

// Validate checks what the bot needs to start.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	switch c.Chat.Language {
	case "en", "hi":
	default:
		return fmt.Errorf("unsupported chat.language: %q", c.Chat.Language)
	}
	if c.Chat.PacingDelay < 0 || c.Chat.BreathingDelay < 0 || c.Chat.RevealDelay < 0 {
		return fmt.Errorf("chat delays must not be negative")
	}
	if c.Chat.ReplyTimeout <= 0 {
		return fmt.Errorf("chat.reply_timeout must be positive")
	}

	switch c.Chat.Provider {
	case "pool":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown chat provider: %q", c.Chat.Provider)
	}

	switch c.Voice.Transcriber {
	case "none":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai transcriber")
		}
	case "http":
		if c.Voice.Endpoint == "" {
			return fmt.Errorf("voice.endpoint is required for the http transcriber")
		}
	default:
		return fmt.Errorf("unknown voice transcriber: %q", c.Voice.Transcriber)
	}
	if c.Voice.TTS && c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for voice.tts")
	}
	return nil
}

// ValidateTranscribeAPI checks what the transcription endpoint needs.
func (c *Config) ValidateTranscribeAPI() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the transcription endpoint")
	}
	if c.Transcribe.Addr == "" {
		return fmt.Errorf("transcribe.addr is required")
	}
	return nil
}
