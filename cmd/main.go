package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/adapters/llm"
	"github.com/satriahrh/voicechat/adapters/stt"
	"github.com/satriahrh/voicechat/adapters/tts"
	"github.com/satriahrh/voicechat/adapters/voice"
	"github.com/satriahrh/voicechat/config"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
	"github.com/satriahrh/voicechat/internal/api"
	"github.com/satriahrh/voicechat/internal/websocket"
	"github.com/satriahrh/voicechat/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize adapters
	chat, err := newChat(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat backend", zap.Error(err))
	}

	newSource, closeSTT, err := newSourceFactory(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech recognition", zap.Error(err))
	}
	defer closeSTT()

	newOutput, err := newOutputFactory(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech output", zap.Error(err))
	}

	defaults := entities.DefaultVoiceSettings()
	hub := websocket.NewHub(websocket.Pipeline{
		LLM:             chat,
		NewSource:       newSource,
		NewOutput:       newOutput,
		DefaultSettings: defaults,
		Controller:      usecase.SessionControllerConfig{RequestTimeout: cfg.RequestTimeout},
	}, logger)
	go hub.Run(ctx)

	reaper := websocket.NewIdleReaper(hub, cfg.IdleTimeout, 0, logger)
	reaper.Start()
	defer reaper.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, defaults, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("chatProvider", cfg.ChatProvider),
		zap.String("transcriptMode", cfg.TranscriptMode),
		zap.String("speechMode", cfg.SpeechMode))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newChat(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.ChatProvider {
	case config.ChatProviderOpenAI:
		return llm.NewOpenAIChat(llm.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Timeout:     cfg.RequestTimeout,
		}, logger)
	case config.ChatProviderGemini:
		return llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		}, logger)
	default:
		logger.Info("Using mock chat backend")
		return llm.NewMockChat(logger), nil
	}
}

// newSourceFactory returns a per-connection transcript source builder and a
// cleanup for any shared client it opened
func newSourceFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(repositories.Microphone) repositories.TranscriptSource, func(), error) {
	capture := voice.DefaultCaptureConfig()
	noop := func() {}

	if cfg.TranscriptMode == config.TranscriptModeStreaming {
		if cfg.STTProvider == config.STTProviderMock {
			mock := stt.NewMockSpeechToText(logger)
			return func(mic repositories.Microphone) repositories.TranscriptSource {
				return voice.NewStreamingSource(mic, mock, capture, logger)
			}, noop, nil
		}

		google, err := stt.NewGoogleSpeechToText(ctx, stt.GoogleStreamingConfig{CredentialsFile: cfg.Google.CredentialsFile}, logger)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := google.Close(); err != nil {
				logger.Warn("Failed to close speech client", zap.Error(err))
			}
		}
		return func(mic repositories.Microphone) repositories.TranscriptSource {
			return voice.NewStreamingSource(mic, google, capture, logger)
		}, closer, nil
	}

	var recognizer repositories.SpeechToText
	if cfg.STTProvider == config.STTProviderMock {
		recognizer = stt.NewMockSpeechToText(logger)
	} else {
		google, err := stt.NewGoogleRecognizer(stt.GoogleRecognizeConfig{
			APIKey:  cfg.Google.APIKey,
			BaseURL: cfg.Google.SpeechBaseURL,
			Timeout: cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		recognizer = google
	}
	return func(mic repositories.Microphone) repositories.TranscriptSource {
		return voice.NewRecordedSource(mic, recognizer, capture, cfg.RequestTimeout, logger)
	}, noop, nil
}

func newOutputFactory(cfg *config.Config, logger *zap.Logger) (func(repositories.SpeechEngine, repositories.AudioPlayer) repositories.SpeechOutput, error) {
	if cfg.SpeechMode == config.SpeechModeLocal {
		return func(engine repositories.SpeechEngine, _ repositories.AudioPlayer) repositories.SpeechOutput {
			return voice.NewLocalOutput(engine, logger)
		}, nil
	}

	var synth repositories.TextToSpeech
	switch cfg.TTSProvider {
	case config.TTSProviderElevenLabs:
		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return nil, err
		}
		synth = elevenLabs
	default:
		google, err := tts.NewGoogleTTS(tts.GoogleTTSConfig{
			APIKey:        cfg.Google.APIKey,
			BaseURL:       cfg.Google.TTSBaseURL,
			AudioEncoding: cfg.Google.AudioEncoding,
			SSMLGender:    cfg.Google.SSMLGender,
			Timeout:       cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		synth = google
	}

	return func(_ repositories.SpeechEngine, player repositories.AudioPlayer) repositories.SpeechOutput {
		return voice.NewRemoteOutput(synth, player, cfg.RequestTimeout, logger)
	}, nil
}
