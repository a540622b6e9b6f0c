package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/voicechat/domain"
	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
)

// GeminiConfig holds configuration for the Gemini chat adapter
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     *float32
	MaxOutputTokens int
	SystemPrompt    string
	// BaseURL overrides the API endpoint, mostly for tests
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiLLM implements LargeLanguageModel using Google's Gemini API
type GeminiLLM struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	systemPrompt    string
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	if t := config.Temperature; t != nil && (math.IsNaN(float64(*t)) || *t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", *t)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}
	return nil
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := float32(defaultTemperature)
	if config.Temperature != nil {
		temperature = *config.Temperature
	} else {
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int("maxOutputTokens", maxOutputTokens))
	}

	return &GeminiLLM{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		systemPrompt:    config.SystemPrompt,
	}, nil
}

// Complete generates a reply for the whole conversation in one request
func (g *GeminiLLM) Complete(ctx context.Context, history []entities.ChatTurn) (string, error) {
	contents := convertTurnsToGeminiFormat(history)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}
	if g.systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(g.systemPrompt, genai.RoleUser)
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Failed to generate content", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.NewError(domain.KindNetworkFailure, "Request timed out", err)
		}
		return "", domain.NewError(domain.KindRemoteAPIError, "", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", domain.NewError(domain.KindRemoteAPIError, "Empty response from chat API", nil)
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", domain.NewError(domain.KindRemoteAPIError, "Empty response from chat API", nil)
	}

	g.logger.Debug("Gemini reply generated",
		zap.Int("history_length", len(history)),
		zap.Int("reply_length", text.Len()))

	return text.String(), nil
}

// convertTurnsToGeminiFormat maps conversation roles onto Gemini roles
func convertTurnsToGeminiFormat(turns []entities.ChatTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == entities.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}
