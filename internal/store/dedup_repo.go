package store

import "time"

// DedupRecord is the claim a provider message ID holds in the inbound log.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	UserID      string     `json:"user_id"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// Processed reports whether the message was fully handled.
func (r DedupRecord) Processed() bool {
	return r.ProcessedAt != nil
}

// DedupRepo is the inbound log that makes webhook redelivery safe. A message ID is
// claimed before processing, marked processed once its reply is queued, and released
// when processing fails so the provider's retry is handled again.
type DedupRepo interface {
	// ClaimInbound records messageID for userID. It returns false when the ID is
	// already claimed, whether still in flight or processed.
	ClaimInbound(messageID, userID string) (bool, error)

	// LookupInbound returns the claim for messageID, or nil when there is none.
	LookupInbound(messageID string) (*DedupRecord, error)

	// MarkProcessed stamps the claim as handled. Processed claims are never released.
	MarkProcessed(messageID string) error

	// ReleaseInbound drops an unprocessed claim.
	ReleaseInbound(messageID string) error
}
