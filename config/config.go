package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider and mode names accepted in the environment
const (
	ChatProviderOpenAI = "openai"
	ChatProviderGemini = "gemini"
	ChatProviderMock   = "mock"

	TranscriptModeStreaming = "streaming"
	TranscriptModeRecorded  = "recorded"

	STTProviderGoogle = "google"
	STTProviderMock   = "mock"

	SpeechModeLocal  = "local"
	SpeechModeRemote = "remote"

	TTSProviderGoogle     = "google"
	TTSProviderElevenLabs = "elevenlabs"
)

// Config is the server configuration read from .env and the environment
type Config struct {
	Port           string
	AppEnv         string
	RequestTimeout time.Duration
	IdleTimeout    time.Duration

	ChatProvider string
	OpenAI       OpenAIConfig
	Gemini       GeminiConfig

	TranscriptMode string
	STTProvider    string
	SpeechMode     string
	TTSProvider    string
	Google         GoogleConfig
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   int
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// GoogleConfig covers the Cloud Speech and Text-to-Speech endpoints
type GoogleConfig struct {
	APIKey          string
	SpeechBaseURL   string
	TTSBaseURL      string
	CredentialsFile string
	AudioEncoding   string
	SSMLGender      string
}

// IsDevelopment reports whether APP_ENV selects the development logger
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads .env when present, then the environment, and validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment
func FromEnv() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		Port:           getString("PORT", "8080"),
		AppEnv:         getString("APP_ENV", "production"),
		ChatProvider:   getString("CHAT_PROVIDER", ChatProviderMock),
		TranscriptMode: getString("TRANSCRIPT_MODE", TranscriptModeRecorded),
		STTProvider:    getString("STT_PROVIDER", STTProviderMock),
		SpeechMode:     getString("SPEECH_MODE", SpeechModeLocal),
		TTSProvider:    getString("TTS_PROVIDER", TTSProviderGoogle),
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("OPENAI_MODEL"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_MODEL"),
		},
		Google: GoogleConfig{
			APIKey:          os.Getenv("GOOGLE_API_KEY"),
			SpeechBaseURL:   os.Getenv("GOOGLE_SPEECH_BASE_URL"),
			TTSBaseURL:      os.Getenv("GOOGLE_TTS_BASE_URL"),
			CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
			AudioEncoding:   os.Getenv("TTS_AUDIO_ENCODING"),
			SSMLGender:      os.Getenv("TTS_SSML_GENDER"),
		},
	}

	var err error
	cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", 30*time.Minute)
	collect(err)
	cfg.OpenAI.Temperature, err = getOptionalFloat("OPENAI_TEMPERATURE")
	collect(err)
	cfg.OpenAI.MaxTokens, err = getInt("OPENAI_MAX_TOKENS", 0)
	collect(err)

	collect(oneOf("CHAT_PROVIDER", cfg.ChatProvider, ChatProviderOpenAI, ChatProviderGemini, ChatProviderMock))
	collect(oneOf("TRANSCRIPT_MODE", cfg.TranscriptMode, TranscriptModeStreaming, TranscriptModeRecorded))
	collect(oneOf("STT_PROVIDER", cfg.STTProvider, STTProviderGoogle, STTProviderMock))
	collect(oneOf("SPEECH_MODE", cfg.SpeechMode, SpeechModeLocal, SpeechModeRemote))
	collect(oneOf("TTS_PROVIDER", cfg.TTSProvider, TTSProviderGoogle, TTSProviderElevenLabs))

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

// getOptionalFloat returns nil when the variable is unset so zero stays distinct from absent
func getOptionalFloat(key string) (*float64, error) {
	if os.Getenv(key) == "" {
		return nil, nil
	}
	f, err := getFloat(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v, got %q", key, allowed, value)
}
