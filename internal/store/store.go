// Package store provides storage backends for MindHaven.
//
// Conversations and their tagged messages are persisted in memory, SQLite or PostgreSQL.
// The SQL backends also carry the inbound deduplication table and the outbox used for
// restart-safe reply delivery.
package store

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/MindHaven/internal/models"
)

// ErrDSNNotSet is returned when a SQL backend is constructed without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// ChatStore persists conversations and their messages.
type ChatStore interface {
	// SaveConversation inserts or updates a conversation by ID.
	SaveConversation(conv models.Conversation) error
	// GetConversationByUser returns the user's conversation, or nil when none exists.
	GetConversationByUser(userID string) (*models.Conversation, error)
	// AppendMessage adds a message to the end of its conversation.
	AppendMessage(msg models.ChatMessage) error
	// ListMessages returns up to limit of the most recent messages in chronological order.
	// A non-positive limit returns all messages.
	ListMessages(conversationID string, limit int) ([]models.ChatMessage, error)
	Close() error
}

// Store is the full persistence surface used by the application.
type Store interface {
	ChatStore
	DedupRepo
	OutboxRepo
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Opts holds configuration for SQL backends.
type Opts struct {
	DSN    string
	Driver string
}

// Option defines a configuration option for a store.
type Option func(*Opts)

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "postgres"
	}
}

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "sqlite3"
	}
}

// DetectDSNType returns "postgres" for PostgreSQL URLs or key/value connection strings
// and "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the backend selected by opts. Without a DSN it returns an in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("store.New: no database DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	case cfg.Driver == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}
