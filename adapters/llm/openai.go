package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/adapters/remote"
	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultTemperature   = 0.7
	defaultMaxTokens     = 150
	defaultTimeout       = 30 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI-compatible chat adapter.
// APIKey is required; the rest fall back to defaults.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	// Temperature is optional; nil selects the default, zero is sent as zero
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIChat implements LargeLanguageModel against a chat/completions endpoint
type OpenAIChat struct {
	HTTPClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

var _ repositories.LargeLanguageModel = (*OpenAIChat)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
}

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("openai API key is required")
	}
	if t := config.Temperature; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", *t)
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be positive, got %d", config.MaxTokens)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewOpenAIChat creates a chat adapter, applying defaults where needed
func NewOpenAIChat(config OpenAIConfig, logger *zap.Logger) (*OpenAIChat, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
		logger.Info("Using default chat base URL", zap.String("baseURL", baseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default chat model", zap.String("model", model))
	}

	temperature := float64(defaultTemperature)
	if config.Temperature != nil {
		temperature = *config.Temperature
	} else {
		logger.Info("Using default temperature", zap.Float64("temperature", temperature))
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
		logger.Info("Using default max tokens", zap.Int("maxTokens", maxTokens))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &OpenAIChat{
		HTTPClient:  &http.Client{Timeout: timeout},
		apiKey:      config.APIKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}, nil
}

// Complete posts the conversation and returns the first choice's content
func (c *OpenAIChat) Complete(ctx context.Context, history []entities.ChatTurn) (string, error) {
	messages := make([]chatMessage, 0, len(history))
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("Sending chat completion request",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)))

	var cr chatCompletionsResponse
	err := remote.PostJSON(ctx, c.HTTPClient, c.baseURL+"/chat/completions", header, chatCompletionsRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}, &cr)
	if err != nil {
		c.logger.Warn("Chat completion failed", zap.Error(err))
		return "", err
	}

	if len(cr.Choices) == 0 {
		return "", domain.NewError(domain.KindRemoteAPIError, "Empty response from chat API", nil)
	}

	return cr.Choices[0].Message.Content, nil
}
