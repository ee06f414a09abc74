// Package store persists conversations and their messages in PostgreSQL.
package store

import (
	"context"
	"errors"

	"postpilot/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store is the conversation persistence contract. Conversations are
// append-only: messages are never edited or deleted. Both Create and Append
// are atomic; a turn's message pair is either fully written or not at all.
type Store interface {
	// CreateConversation creates a conversation seeded with the given
	// messages and returns its freshly minted id.
	CreateConversation(ctx context.Context, userID string, platform models.Platform, initial []models.Message) (uuid.UUID, error)

	// AppendMessages appends messages to an existing conversation and
	// refreshes its last-updated timestamp. Returns ErrNotFound when the
	// conversation does not exist.
	AppendMessages(ctx context.Context, conversationID uuid.UUID, msgs []models.Message) error

	// GetConversation loads a conversation with its messages in append
	// order. Returns ErrNotFound when absent.
	GetConversation(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error)

	// ListConversations lists a user's conversations without messages,
	// ordered by last-updated descending.
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
}
