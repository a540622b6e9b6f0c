package repositories

import (
	"context"

	"github.com/satriahrh/voicechat/domain/entities"
)

// LargeLanguageModel abstracts any chat completion provider
type LargeLanguageModel interface {
	// Complete sends the role/content projection of the conversation
	// and returns the assistant reply
	Complete(ctx context.Context, history []entities.ChatTurn) (string, error)
}
