// Package chat runs the per-user AI chat: it classifies each inbound message, selects a
// reply, and persists both sides of the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/MindHaven/internal/metrics"
	"github.com/BTreeMap/MindHaven/internal/models"
	"github.com/BTreeMap/MindHaven/internal/nlp"
	"github.com/BTreeMap/MindHaven/internal/respond"
	"github.com/BTreeMap/MindHaven/internal/store"
	"github.com/BTreeMap/MindHaven/internal/util"
)

// WelcomeMessage opens every new conversation.
const WelcomeMessage = "Hello! I'm your mental health assistant. How are you feeling today?"

// ErrConversationNotFound is returned by History for users without a conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// Service handles AI chat conversations.
type Service struct {
	store      store.ChatStore
	classifier *nlp.Classifier
	local      *respond.LocalResponder
	responder  respond.Responder
	metrics    *metrics.Collector
	locks      *userLocks
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithResponder sets the reply engine used for non-crisis messages. Defaults to the local responder.
func WithResponder(r respond.Responder) Option {
	return func(s *Service) {
		if r != nil {
			s.responder = r
		}
	}
}

// WithMetrics records classifications and crisis overrides.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a chat Service. Crisis messages are always answered by local.
func NewService(st store.ChatStore, classifier *nlp.Classifier, local *respond.LocalResponder, opts ...Option) *Service {
	s := &Service{
		store:      st,
		classifier: classifier,
		local:      local,
		responder:  local,
		locks:      newUserLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Conversation returns the user's conversation, creating it with a welcome message if needed.
func (s *Service) Conversation(ctx context.Context, userID string) (models.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return models.Conversation{}, models.ErrEmptyUserID
	}
	unlock := s.locks.lock(userID)
	defer unlock()
	return s.conversationLocked(userID)
}

// HandleMessage classifies text, stores it, generates a reply and stores that too.
// Messages from the same user are processed one at a time.
func (s *Service) HandleMessage(ctx context.Context, userID, text string) (models.Exchange, error) {
	req := models.ChatMessageRequest{UserID: userID, Content: text}
	if err := req.Validate(); err != nil {
		return models.Exchange{}, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	conv, err := s.conversationLocked(userID)
	if err != nil {
		return models.Exchange{}, err
	}

	result := s.classifier.Classify(text)
	s.metrics.RecordClassification(result)
	slog.Debug("chat.HandleMessage: classified", "userID", userID, "sentiment", result.Sentiment, "topics", result.Topics, "intent", result.Intent)

	userMsg := models.ChatMessage{
		ID:             util.GenerateMessageID(),
		ConversationID: conv.ID,
		Sender:         userID,
		Content:        text,
		Sentiment:      result.Sentiment,
		Categories:     result.Topics,
		Intent:         result.Intent,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(userMsg); err != nil {
		return models.Exchange{}, fmt.Errorf("store user message: %w", err)
	}

	reply := s.reply(ctx, userID, text, result)

	aiMsg := models.ChatMessage{
		ID:             util.GenerateMessageID(),
		ConversationID: conv.ID,
		Sender:         models.AssistantSenderID,
		Content:        reply.Content,
		Sentiment:      reply.Sentiment,
		Categories:     reply.Categories,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendMessage(aiMsg); err != nil {
		return models.Exchange{}, fmt.Errorf("store assistant message: %w", err)
	}

	conv.MergeTopics(result.Topics)
	if result.IsCrisis() {
		conv.MergeTopics([]models.Category{models.CategoryCrisis})
	}
	conv.UpdatedAt = aiMsg.CreatedAt
	if err := s.store.SaveConversation(conv); err != nil {
		return models.Exchange{}, fmt.Errorf("update conversation: %w", err)
	}

	return models.Exchange{Conversation: conv, UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// History returns the user's conversation with up to limit of its most recent messages.
func (s *Service) History(ctx context.Context, userID string, limit int) (models.ConversationView, error) {
	if strings.TrimSpace(userID) == "" {
		return models.ConversationView{}, models.ErrEmptyUserID
	}
	conv, err := s.store.GetConversationByUser(userID)
	if err != nil {
		return models.ConversationView{}, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return models.ConversationView{}, ErrConversationNotFound
	}
	msgs, err := s.store.ListMessages(conv.ID, limit)
	if err != nil {
		return models.ConversationView{}, fmt.Errorf("load messages: %w", err)
	}
	return models.ConversationView{Conversation: *conv, Messages: msgs}, nil
}

// reply answers crisis messages from the local crisis pool regardless of the configured engine.
func (s *Service) reply(ctx context.Context, userID, text string, result models.ClassificationResult) models.TaggedReply {
	if result.IsCrisis() {
		slog.Warn("chat.reply: crisis message detected, answering with crisis resources", "userID", userID, "engine", s.responder.Name())
		if s.responder != respond.Responder(s.local) {
			s.metrics.ObserveResponder(s.responder.Name(), respond.OutcomeCrisisOverride, 0)
		}
		return s.local.ReplyFor(result)
	}
	return s.responder.Respond(ctx, userID, text)
}

// conversationLocked loads or creates the conversation; the caller holds the user's lock.
func (s *Service) conversationLocked(userID string) (models.Conversation, error) {
	conv, err := s.store.GetConversationByUser(userID)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if conv != nil {
		return *conv, nil
	}

	now := s.now()
	created := models.Conversation{
		ID:        util.GenerateConversationID(),
		UserID:    userID,
		Topics:    []models.Category{models.CategoryGeneral},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveConversation(created); err != nil {
		return models.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	welcome := models.ChatMessage{
		ID:             util.GenerateMessageID(),
		ConversationID: created.ID,
		Sender:         models.AssistantSenderID,
		Content:        WelcomeMessage,
		Sentiment:      models.SentimentPositive,
		Categories:     []models.Category{models.CategoryGeneral},
		CreatedAt:      now,
	}
	if err := s.store.AppendMessage(welcome); err != nil {
		return models.Conversation{}, fmt.Errorf("store welcome message: %w", err)
	}
	slog.Info("chat: conversation created", "userID", userID, "conversationID", created.ID)
	return created, nil
}
