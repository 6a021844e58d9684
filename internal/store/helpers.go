package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/MindHaven/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeCategories serializes a category list as a JSON array; nil encodes as [].
func encodeCategories(categories []models.Category) (string, error) {
	if categories == nil {
		categories = []models.Category{}
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(data), nil
}

// decodeCategories parses a JSON category array. Malformed values decode as empty
// rather than failing the whole read.
func decodeCategories(raw []byte) []models.Category {
	var categories []models.Category
	if len(raw) == 0 {
		return categories
	}
	if err := json.Unmarshal(raw, &categories); err != nil {
		slog.Warn("store: failed to decode categories, using empty list", "error", err)
		return nil
	}
	return categories
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	var topics []byte
	if err := row.Scan(&c.ID, &c.UserID, &topics, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.Topics = decodeCategories(topics)
	return c, nil
}

func scanChatMessage(row rowScanner) (models.ChatMessage, error) {
	var m models.ChatMessage
	var categories []byte
	var intent sql.NullString
	var sentiment string
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &sentiment, &categories, &intent, &m.CreatedAt); err != nil {
		return m, fmt.Errorf("scan chat message failed: %w", err)
	}
	m.Sentiment = models.Sentiment(sentiment)
	m.Categories = decodeCategories(categories)
	m.Intent = models.Intent(intent.String)
	return m, nil
}

// scanOutboxMessage scans an OutboxMessage from sql.Rows.
func scanOutboxMessage(rows rowScanner) (OutboxMessage, error) {
	var m OutboxMessage
	var payloadJSON, dedupeKey, lastError sql.NullString
	var nextAttemptAt, lockedAt sql.NullTime
	err := rows.Scan(
		&m.ID, &m.Recipient, &m.Kind, &payloadJSON, &m.Status, &m.Attempts,
		&nextAttemptAt, &dedupeKey, &lockedAt, &lastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, fmt.Errorf("scan outbox message failed: %w", err)
	}
	m.PayloadJSON = payloadJSON.String
	m.DedupeKey = dedupeKey.String
	m.LastError = lastError.String
	if nextAttemptAt.Valid {
		m.NextAttemptAt = &nextAttemptAt.Time
	}
	if lockedAt.Valid {
		m.LockedAt = &lockedAt.Time
	}
	return m, nil
}

const (
	conversationColumns = `id, user_id, topics, created_at, updated_at`
	chatMessageColumns  = `id, conversation_id, sender, content, sentiment, categories, intent, created_at`
	outboxColumns       = `id, recipient, kind, payload_json, status, attempts, next_attempt_at, dedupe_key, locked_at, last_error, created_at, updated_at`
)
