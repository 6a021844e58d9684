package store

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/MindHaven/internal/models"
	"github.com/BTreeMap/MindHaven/internal/util"
)

// InMemoryStore keeps all records in process memory. It is safe for concurrent use
// and loses everything on restart.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation // by conversation ID
	byUser        map[string]string              // user ID -> conversation ID
	messages      map[string][]models.ChatMessage
	dedup         map[string]DedupRecord
	outbox        map[string]OutboxMessage
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.Conversation),
		byUser:        make(map[string]string),
		messages:      make(map[string][]models.ChatMessage),
		dedup:         make(map[string]DedupRecord),
		outbox:        make(map[string]OutboxMessage),
	}
}

func cloneConversation(c models.Conversation) models.Conversation {
	c.Topics = slices.Clone(c.Topics)
	return c
}

func (s *InMemoryStore) SaveConversation(conv models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conversations[conv.ID]; ok {
		conv.UserID = existing.UserID
		conv.CreatedAt = existing.CreatedAt
	}
	s.conversations[conv.ID] = cloneConversation(conv)
	s.byUser[conv.UserID] = conv.ID
	return nil
}

func (s *InMemoryStore) GetConversationByUser(userID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, nil
	}
	conv := cloneConversation(s.conversations[id])
	return &conv, nil
}

func (s *InMemoryStore) AppendMessage(msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Categories = slices.Clone(msg.Categories)
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

func (s *InMemoryStore) ListMessages(conversationID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.ChatMessage, len(all))
	for i, m := range all {
		m.Categories = slices.Clone(m.Categories)
		out[i] = m
	}
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func (s *InMemoryStore) ClaimInbound(messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = DedupRecord{MessageID: messageID, UserID: userID, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) LookupInbound(messageID string) (*DedupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.dedup[messageID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.dedup[messageID]
	if !ok {
		return nil
	}
	now := time.Now()
	rec.ProcessedAt = &now
	s.dedup[messageID] = rec
	return nil
}

func (s *InMemoryStore) ReleaseInbound(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.dedup[messageID]; ok && !rec.Processed() {
		delete(s.dedup, messageID)
	}
	return nil
}

func (s *InMemoryStore) EnqueueOutboxMessage(recipient, kind, payloadJSON, dedupeKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupeKey != "" {
		for _, m := range s.outbox {
			if m.DedupeKey == dedupeKey && m.Status != OutboxStatusSent && m.Status != OutboxStatusFailed {
				return m.ID, nil
			}
		}
	}
	now := time.Now()
	id := util.GenerateOutboxID()
	s.outbox[id] = OutboxMessage{
		ID:          id,
		Recipient:   recipient,
		Kind:        kind,
		PayloadJSON: payloadJSON,
		Status:      OutboxStatusQueued,
		DedupeKey:   dedupeKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return id, nil
}

func (s *InMemoryStore) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []OutboxMessage
	for _, m := range s.outbox {
		if m.Status == OutboxStatusQueued && (m.NextAttemptAt == nil || !m.NextAttemptAt.After(now)) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		locked := now
		due[i].Status = OutboxStatusSending
		due[i].LockedAt = &locked
		due[i].UpdatedAt = now
		s.outbox[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *InMemoryStore) MarkOutboxMessageSent(id string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusSent
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusQueued
		m.Attempts++
		m.LastError = errMsg
		m.NextAttemptAt = &nextAttemptAt
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) AbandonOutboxMessage(id string, errMsg string) error {
	return s.updateOutbox(id, func(m *OutboxMessage) {
		m.Status = OutboxStatusFailed
		m.Attempts++
		m.LastError = errMsg
		m.LockedAt = nil
	})
}

func (s *InMemoryStore) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, m := range s.outbox {
		if m.Status == OutboxStatusSending && m.LockedAt != nil && m.LockedAt.Before(staleBefore) {
			m.Status = OutboxStatusQueued
			m.LockedAt = nil
			m.UpdatedAt = time.Now()
			s.outbox[id] = m
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) updateOutbox(id string, fn func(*OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return nil
	}
	fn(&m)
	m.UpdatedAt = time.Now()
	s.outbox[id] = m
	return nil
}
