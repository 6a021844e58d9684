package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *SQLiteStore) ClaimInbound(messageID, userID string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO inbound_dedup (message_id, user_id, received_at) VALUES (?, ?, ?)`,
		messageID, userID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("claim inbound %s: %w", messageID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim inbound %s: rows affected: %w", messageID, err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) LookupInbound(messageID string) (*DedupRecord, error) {
	var rec DedupRecord
	var processedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT message_id, user_id, received_at, processed_at FROM inbound_dedup WHERE message_id = ?`, messageID,
	).Scan(&rec.MessageID, &rec.UserID, &rec.ReceivedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup inbound %s: %w", messageID, err)
	}
	if processedAt.Valid {
		rec.ProcessedAt = &processedAt.Time
	}
	return &rec, nil
}

func (s *SQLiteStore) MarkProcessed(messageID string) error {
	if _, err := s.db.Exec(`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`, time.Now().UTC(), messageID); err != nil {
		return fmt.Errorf("mark inbound %s processed: %w", messageID, err)
	}
	return nil
}

func (s *SQLiteStore) ReleaseInbound(messageID string) error {
	if _, err := s.db.Exec(`DELETE FROM inbound_dedup WHERE message_id = ? AND processed_at IS NULL`, messageID); err != nil {
		return fmt.Errorf("release inbound %s: %w", messageID, err)
	}
	return nil
}
