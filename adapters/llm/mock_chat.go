package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/domain/repositories"
)

// MockChat is an offline LargeLanguageModel for local development
type MockChat struct {
	logger *zap.Logger
}

// NewMockChat creates a new mock chat backend
func NewMockChat(logger *zap.Logger) repositories.LargeLanguageModel {
	return &MockChat{logger: logger}
}

// Complete echoes the latest user turn
func (m *MockChat) Complete(ctx context.Context, history []entities.ChatTurn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == entities.MessageRoleUser {
			last = history[i].Content
			break
		}
	}

	m.logger.Info("Mock chat completion", zap.Int("turns", len(history)))

	if last == "" {
		return "¡Hola! ¿En qué puedo ayudarte?", nil
	}
	return fmt.Sprintf("Has dicho: %s", last), nil
}
