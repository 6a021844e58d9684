package models

import (
	"slices"
	"strings"
	"time"
)

// AssistantSenderID identifies messages authored by the assistant.
const AssistantSenderID = "ai-assistant"

// ChatMessage is one entry of a conversation log, tagged by the classifier.
type ChatMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Sender         string     `json:"sender"`
	Content        string     `json:"content"`
	Sentiment      Sentiment  `json:"sentiment"`
	Categories     []Category `json:"categories"`
	Intent         Intent     `json:"intent,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FromAssistant reports whether the assistant authored the message.
func (m ChatMessage) FromAssistant() bool {
	return m.Sender == AssistantSenderID
}

// Conversation is the AI chat thread owned by a single user.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Topics    []Category `json:"topics"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MergeTopics appends categories not yet present, preserving first-seen order.
// It returns true if the topic set changed.
func (c *Conversation) MergeTopics(categories []Category) bool {
	changed := false
	for _, cat := range categories {
		if !slices.Contains(c.Topics, cat) {
			c.Topics = append(c.Topics, cat)
			changed = true
		}
	}
	return changed
}

// Exchange is the result of handling one inbound chat message.
type Exchange struct {
	Conversation Conversation `json:"conversation"`
	UserMessage  ChatMessage  `json:"user_message"`
	AIMessage    ChatMessage  `json:"ai_message"`
}

// ChatMessageRequest is the body of POST /ai-chat/message.
type ChatMessageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// Validate checks the request fields.
func (r *ChatMessageRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyMessage
	}
	if len(r.Content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// AnalyzeRequest is the body of POST /nlp/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// ConversationView is a conversation together with its messages.
type ConversationView struct {
	Conversation Conversation  `json:"conversation"`
	Messages     []ChatMessage `json:"messages"`
}
