package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"postpilot/models"

	"github.com/google/uuid"
)

// PostgresStore implements Store on database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateConversation inserts the conversation and its seed messages in a
// single transaction.
func (s *PostgresStore) CreateConversation(ctx context.Context, userID string, platform models.Platform, initial []models.Message) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, platform, created_at, last_updated) VALUES ($1, $2, $3, $4, $4)",
		id, userID, platform, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	if err := insertMessages(ctx, tx, id, initial, now, 0); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// AppendMessages appends msgs to an existing conversation. The conversation
// row is locked for the duration of the transaction so concurrent appends
// serialize at the storage layer.
func (s *PostgresStore) AppendMessages(ctx context.Context, conversationID uuid.UUID, msgs []models.Message) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM conversations WHERE id = $1 FOR UPDATE", conversationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}

	var lastSeq int64
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = $1", conversationID).Scan(&lastSeq)
	if err != nil {
		return fmt.Errorf("failed to read message sequence: %w", err)
	}

	if err := insertMessages(ctx, tx, conversationID, msgs, now, lastSeq); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE conversations SET last_updated = $1 WHERE id = $2", now, conversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// insertMessages writes msgs inside tx, minting a fresh id per message.
// Identifiers are generated here, at append time, so they are never reused
// across calls. The seq ordinal continues from lastSeq and preserves the
// batch's insertion order: both messages of a turn share one timestamp, so
// the timestamp alone cannot order them.
func insertMessages(ctx context.Context, tx *sql.Tx, conversationID uuid.UUID, msgs []models.Message, now time.Time, lastSeq int64) error {
	for i, msg := range msgs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO messages (id, conversation_id, seq, sender, kind, body, image_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			uuid.New(), conversationID, lastSeq+int64(i)+1, msg.Sender, msg.Kind, msg.Text, msg.ImageURL, now)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}
	return nil
}

// GetConversation loads one conversation together with its messages.
func (s *PostgresStore) GetConversation(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, platform, created_at, last_updated FROM conversations WHERE id = $1",
		conversationID).
		Scan(&conv.ID, &conv.UserID, &conv.Platform, &conv.CreatedAt, &conv.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, sender, kind, body, image_url, created_at FROM messages WHERE conversation_id = $1 ORDER BY seq ASC",
		conversationID)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Sender, &msg.Kind, &msg.Text, &msg.ImageURL, &msg.CreatedAt); err != nil {
			return models.Conversation{}, fmt.Errorf("failed to scan message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversation summaries, most recently
// updated first. Messages are not loaded; use GetConversation for history.
func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, platform, created_at, last_updated FROM conversations WHERE user_id = $1 ORDER BY last_updated DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Platform, &conv.CreatedAt, &conv.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}
