package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *PostgresStore) ClaimInbound(messageID, userID string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO inbound_dedup (message_id, user_id, received_at) VALUES ($1, $2, $3)
		 ON CONFLICT (message_id) DO NOTHING`,
		messageID, userID, time.Now(),
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

func (s *PostgresStore) LookupInbound(messageID string) (*DedupRecord, error) {
	var rec DedupRecord
	var processedAt sql.NullTime
	err := s.db.QueryRow(
		`SELECT message_id, user_id, received_at, processed_at FROM inbound_dedup WHERE message_id = $1`, messageID,
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

func (s *PostgresStore) MarkProcessed(messageID string) error {
	if _, err := s.db.Exec(`UPDATE inbound_dedup SET processed_at = $1 WHERE message_id = $2`, time.Now(), messageID); err != nil {
		return fmt.Errorf("mark inbound %s processed: %w", messageID, err)
	}
	return nil
}

func (s *PostgresStore) ReleaseInbound(messageID string) error {
	if _, err := s.db.Exec(`DELETE FROM inbound_dedup WHERE message_id = $1 AND processed_at IS NULL`, messageID); err != nil {
		return fmt.Errorf("release inbound %s: %w", messageID, err)
	}
	return nil
}
