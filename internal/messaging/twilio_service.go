package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/MindHaven/internal/store"
	"github.com/BTreeMap/MindHaven/internal/twiliowhatsapp"
)

// DefaultProcessTimeout bounds the handling of one inbound webhook message.
const DefaultProcessTimeout = 30 * time.Second

// emptyTwiML acknowledges a webhook without replying inline; replies go through the outbox.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// SignatureValidator verifies X-Twilio-Signature headers.
type SignatureValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

// ReplyPayload is the outbox payload of a WhatsApp reply.
type ReplyPayload struct {
	Body string `json:"body"`
}

// TwilioService receives Twilio WhatsApp webhooks, runs them through the chat
// service in the background and queues the assistant's reply for delivery.
type TwilioService struct {
	chat       ChatHandler
	dedup      store.DedupRepo
	outbox     store.OutboxRepo
	validator  SignatureValidator
	webhookURL string
	timeout    time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithSignatureValidator rejects webhooks whose signature does not verify.
func WithSignatureValidator(v SignatureValidator) TwilioOption {
	return func(s *TwilioService) { s.validator = v }
}

// WithWebhookURL sets the public URL Twilio signs. Without it the URL is rebuilt from the request.
func WithWebhookURL(url string) TwilioOption {
	return func(s *TwilioService) { s.webhookURL = url }
}

// WithProcessTimeout bounds background processing of each message.
func WithProcessTimeout(d time.Duration) TwilioOption {
	return func(s *TwilioService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewTwilioService creates a TwilioService.
func NewTwilioService(chat ChatHandler, dedup store.DedupRepo, outbox store.OutboxRepo, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{
		chat:    chat,
		dedup:   dedup,
		outbox:  outbox,
		timeout: DefaultProcessTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TwilioWebhookHandler handles inbound Twilio webhook requests.
// It acknowledges immediately and processes the message asynchronously.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService: failed to parse webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !s.validator.Validate(s.signedURL(r), params, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("TwilioService: webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	sid := r.FormValue("MessageSid")

	if from == "" || strings.TrimSpace(body) == "" {
		slog.Warn("TwilioService: webhook missing fields", "from", from, "sid", sid)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	userID, err := ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("TwilioService: invalid sender", "from", from, "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	stopped := s.stopped
	if !stopped {
		s.wg.Add(1)
	}
	s.mu.RUnlock()
	if stopped {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	if sid != "" {
		claimed, err := s.dedup.ClaimInbound(sid, userID)
		if err != nil {
			s.wg.Done()
			slog.Error("TwilioService: dedup claim failed", "sid", sid, "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if !claimed {
			s.wg.Done()
			s.logDuplicate(sid, userID)
			writeTwiML(w)
			return
		}
	}

	slog.Info("TwilioService: inbound WhatsApp message", "userID", userID, "sid", sid, "length", len(body))
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.process(ctx, userID, body, sid); err != nil {
			slog.Error("TwilioService: processing failed", "userID", userID, "sid", sid, "error", err)
		}
	}()

	writeTwiML(w)
}

// process runs one message through the chat service and queues the reply. When no
// reply could be queued the claim on sid is released so a redelivery is handled again.
func (s *TwilioService) process(ctx context.Context, userID, body, sid string) error {
	if err := s.queueReply(ctx, userID, body, sid); err != nil {
		if sid != "" {
			if relErr := s.dedup.ReleaseInbound(sid); relErr != nil {
				slog.Error("TwilioService: failed to release dedup claim", "sid", sid, "error", relErr)
			}
		}
		return err
	}
	if sid != "" {
		if err := s.dedup.MarkProcessed(sid); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
	}
	return nil
}

func (s *TwilioService) queueReply(ctx context.Context, userID, body, sid string) error {
	exchange, err := s.chat.HandleMessage(ctx, userID, body)
	if err != nil {
		return fmt.Errorf("handle message: %w", err)
	}

	payload, err := json.Marshal(ReplyPayload{Body: exchange.AIMessage.Content})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	dedupeKey := ""
	if sid != "" {
		dedupeKey = "reply:" + sid
	}
	id, err := s.outbox.EnqueueOutboxMessage("+"+userID, store.OutboxKindWhatsAppReply, string(payload), dedupeKey)
	if err != nil {
		return fmt.Errorf("enqueue reply: %w", err)
	}
	slog.Debug("TwilioService: reply queued", "userID", userID, "outboxID", id)
	return nil
}

func (s *TwilioService) logDuplicate(sid, userID string) {
	rec, err := s.dedup.LookupInbound(sid)
	switch {
	case err != nil:
		slog.Warn("TwilioService: duplicate webhook ignored, lookup failed", "sid", sid, "userID", userID, "error", err)
	case rec != nil && !rec.Processed():
		slog.Info("TwilioService: duplicate webhook ignored, still in flight", "sid", sid, "userID", userID, "receivedAt", rec.ReceivedAt)
	default:
		slog.Info("TwilioService: duplicate webhook ignored, already processed", "sid", sid, "userID", userID)
	}
}

// Stop refuses new webhooks and waits for in-flight messages to finish.
func (s *TwilioService) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until all in-flight messages are processed.
func (s *TwilioService) Wait() {
	s.wg.Wait()
}

func (s *TwilioService) signedURL(r *http.Request) string {
	if s.webhookURL != "" {
		return s.webhookURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}

// NewOutboxSendFunc delivers queued WhatsApp replies through sender.
// Messages of other kinds are rejected so the outbox marks them failed.
func NewOutboxSendFunc(sender twiliowhatsapp.Sender) store.OutboxSendFunc {
	return func(ctx context.Context, msg store.OutboxMessage) error {
		if msg.Kind != store.OutboxKindWhatsAppReply {
			return fmt.Errorf("%w: unsupported kind %q", ErrInvalidPayload, msg.Kind)
		}
		var payload ReplyPayload
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if payload.Body == "" {
			return fmt.Errorf("%w: empty body", ErrInvalidPayload)
		}
		if msg.Recipient == "" {
			return ErrEmptyRecipient
		}
		return sender.SendMessage(ctx, msg.Recipient, payload.Body)
	}
}
