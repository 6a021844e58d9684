// Package store provides the OutboxSender for processing outgoing messages.
package store

import (
	"context"
	"log/slog"
	"time"
)

// OutboxSendFunc is the callback that performs the actual message send.
// It receives the outbox message and should return an error if sending failed.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// Default OutboxSender tuning.
const (
	DefaultOutboxPollInterval = 2 * time.Second
	DefaultOutboxMaxAttempts  = 5
	defaultOutboxBaseBackoff  = 10 * time.Second
	defaultOutboxMaxBackoff   = 10 * time.Minute
)

// OutboxSender periodically claims due outbox messages and attempts to send them.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
	maxAttempts    int
	baseBackoff    time.Duration
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc, pollInterval time.Duration) *OutboxSender {
	if pollInterval <= 0 {
		pollInterval = DefaultOutboxPollInterval
	}
	return &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
		maxAttempts:    DefaultOutboxMaxAttempts,
		baseBackoff:    defaultOutboxBaseBackoff,
	}
}

// RecoverStaleMessages requeues messages stuck in sending state (crash recovery).
// Should be called once at startup.
func (s *OutboxSender) RecoverStaleMessages() error {
	staleBefore := time.Now().Add(-s.staleThreshold)
	n, err := s.repo.RequeueStaleSendingMessages(staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *OutboxSender) Run(ctx context.Context) {
	slog.Info("OutboxSender.Run: starting outbox sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("OutboxSender.Run: stopping")
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll claims and sends one batch of due messages. It returns the number sent.
func (s *OutboxSender) Poll(ctx context.Context) int {
	now := time.Now()
	msgs, err := s.repo.ClaimDueOutboxMessages(now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.poll: claim failed", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		slog.Debug("OutboxSender.poll: sending message", "id", msg.ID, "recipient", msg.Recipient, "kind", msg.Kind)
		if err := s.sendFunc(ctx, msg); err != nil {
			s.fail(msg, err, now)
			continue
		}
		if err := s.repo.MarkOutboxMessageSent(msg.ID); err != nil {
			slog.Error("OutboxSender.poll: mark sent error", "id", msg.ID, "error", err)
		}
		sent++
		slog.Debug("OutboxSender.poll: message sent", "id", msg.ID, "recipient", msg.Recipient)
	}
	return sent
}

func (s *OutboxSender) fail(msg OutboxMessage, sendErr error, now time.Time) {
	if msg.Attempts+1 >= s.maxAttempts {
		slog.Error("OutboxSender.poll: giving up on message", "id", msg.ID, "attempts", msg.Attempts+1, "error", sendErr)
		if err := s.repo.AbandonOutboxMessage(msg.ID, sendErr.Error()); err != nil {
			slog.Error("OutboxSender.poll: abandon message error", "id", msg.ID, "error", err)
		}
		return
	}
	nextAttempt := now.Add(s.backoff(msg.Attempts))
	slog.Warn("OutboxSender.poll: send failed, will retry", "id", msg.ID, "attempt", msg.Attempts+1, "nextAttempt", nextAttempt, "error", sendErr)
	if err := s.repo.FailOutboxMessage(msg.ID, sendErr.Error(), nextAttempt); err != nil {
		slog.Error("OutboxSender.poll: fail message error", "id", msg.ID, "error", err)
	}
}

// backoff doubles from the base delay per attempt, capped.
func (s *OutboxSender) backoff(attempts int) time.Duration {
	d := s.baseBackoff << attempts
	if d <= 0 || d > defaultOutboxMaxBackoff {
		return defaultOutboxMaxBackoff
	}
	return d
}
