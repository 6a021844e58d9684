// Package store provides storage backends for MindHaven.
//
// This file implements an SQLite-backed store for conversations and messages.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/MindHaven/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, ErrDSNNotSet
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single connection serializes writers and avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// SaveConversation stores or updates a conversation.
func (s *SQLiteStore) SaveConversation(conv models.Conversation) error {
	topics, err := encodeCategories(conv.Topics)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (id, user_id, topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET topics = excluded.topics, updated_at = excluded.updated_at`,
		conv.ID, conv.UserID, topics, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "conversationID", conv.ID, "userID", conv.UserID)
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "conversationID", conv.ID, "topics", topics)
	return nil
}

// GetConversationByUser retrieves the conversation owned by userID.
func (s *SQLiteStore) GetConversationByUser(userID string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ?`, userID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("SQLiteStore GetConversationByUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationByUser failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get conversation for %s: %w", userID, err)
	}
	return &conv, nil
}

// AppendMessage inserts a message at the end of its conversation.
func (s *SQLiteStore) AppendMessage(msg models.ChatMessage) error {
	categories, err := encodeCategories(msg.Categories)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO chat_messages (id, conversation_id, sender, content, sentiment, categories, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Content, string(msg.Sentiment), categories,
		nilIfEmpty(string(msg.Intent)), msg.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AppendMessage failed", "error", err, "conversationID", msg.ConversationID, "messageID", msg.ID)
		return fmt.Errorf("failed to append message %s: %w", msg.ID, err)
	}
	slog.Debug("SQLiteStore AppendMessage succeeded", "conversationID", msg.ConversationID, "messageID", msg.ID, "sender", msg.Sender)
	return nil
}

// ListMessages returns the most recent messages of a conversation in chronological order.
func (s *SQLiteStore) ListMessages(conversationID string, limit int) ([]models.ChatMessage, error) {
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(`
			SELECT `+chatMessageColumns+` FROM (
				SELECT seq, `+chatMessageColumns+` FROM chat_messages
				WHERE conversation_id = ? ORDER BY seq DESC LIMIT ?
			) ORDER BY seq ASC`, conversationID, limit)
	} else {
		rows, err = s.db.Query(`SELECT `+chatMessageColumns+` FROM chat_messages WHERE conversation_id = ? ORDER BY seq ASC`, conversationID)
	}
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore ListMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	slog.Debug("SQLiteStore ListMessages succeeded", "conversationID", conversationID, "count", len(messages))
	return messages, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	} else {
		slog.Debug("SQLite database connection closed successfully")
	}
	return err
}
