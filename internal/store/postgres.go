// Package store provides storage backends for MindHaven.
//
// This file implements a PostgreSQL-backed store for conversations and messages.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/MindHaven/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, ErrDSNNotSet
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveConversation stores or updates a conversation.
func (s *PostgresStore) SaveConversation(conv models.Conversation) error {
	topics, err := encodeCategories(conv.Topics)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (id, user_id, topics, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			topics = EXCLUDED.topics,
			updated_at = EXCLUDED.updated_at`,
		conv.ID, conv.UserID, topics, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "conversationID", conv.ID, "userID", conv.UserID)
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "conversationID", conv.ID, "topics", topics)
	return nil
}

// GetConversationByUser retrieves the conversation owned by userID.
func (s *PostgresStore) GetConversationByUser(userID string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT `+conversationColumns+` FROM conversations WHERE user_id = $1`, userID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore GetConversationByUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationByUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get conversation for %s: %w", userID, err)
	}
	return &conv, nil
}

// AppendMessage inserts a message at the end of its conversation.
func (s *PostgresStore) AppendMessage(msg models.ChatMessage) error {
	categories, err := encodeCategories(msg.Categories)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO chat_messages (id, conversation_id, sender, content, sentiment, categories, intent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Content, string(msg.Sentiment), categories,
		nilIfEmpty(string(msg.Intent)), msg.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AppendMessage failed", "error", err, "conversationID", msg.ConversationID, "messageID", msg.ID)
		return fmt.Errorf("failed to append message %s: %w", msg.ID, err)
	}
	slog.Debug("PostgresStore AppendMessage succeeded", "conversationID", msg.ConversationID, "messageID", msg.ID, "sender", msg.Sender)
	return nil
}

// ListMessages returns the most recent messages of a conversation in chronological order.
func (s *PostgresStore) ListMessages(conversationID string, limit int) ([]models.ChatMessage, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(`
			SELECT `+chatMessageColumns+` FROM (
				SELECT seq, `+chatMessageColumns+` FROM chat_messages
				WHERE conversation_id = $1 ORDER BY seq DESC LIMIT $2
			) recent ORDER BY seq ASC`, conversationID, limit)
	} else {
		rows, err = s.db.Query(`SELECT `+chatMessageColumns+` FROM chat_messages WHERE conversation_id = $1 ORDER BY seq ASC`, conversationID)
	}
	if err != nil {
		slog.Error("PostgresStore ListMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			slog.Error("PostgresStore ListMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug("PostgresStore ListMessages succeeded", "conversationID", conversationID, "count", len(messages))
	return messages, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	} else {
		slog.Debug("PostgreSQL database connection closed successfully")
	}
	return err
}
