// Package models defines the core data structures for MindHaven.
//
// It includes the closed label sets used by the classifier (categories, sentiments, intents),
// the per-message classification result, and the chat records shared across modules.
package models

import (
	"errors"
	"slices"
)

// Category is a mental-health topic label from a fixed closed set.
type Category string

const (
	CategoryAnxiety    Category = "anxiety"
	CategoryDepression Category = "depression"
	CategorySleep      Category = "sleep"
	CategoryTrauma     Category = "trauma"
	CategoryAddiction  Category = "addiction"
	CategoryGeneral    Category = "general"
	// CategoryCrisis is never produced by topic matching; it tags replies to crisis messages.
	CategoryCrisis Category = "crisis"
)

// TopicOrder is the declaration order in which topic categories are tested and reported.
var TopicOrder = []Category{
	CategoryAnxiety,
	CategoryDepression,
	CategorySleep,
	CategoryTrauma,
	CategoryAddiction,
	CategoryGeneral,
}

// IsValidCategory checks if the given category belongs to the closed set.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryAnxiety, CategoryDepression, CategorySleep, CategoryTrauma,
		CategoryAddiction, CategoryGeneral, CategoryCrisis:
		return true
	default:
		return false
	}
}

// Sentiment is the derived polarity of a text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments lists every sentiment label.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

// IsValidSentiment checks if the given sentiment is one of the three polarities.
func IsValidSentiment(s Sentiment) bool {
	return slices.Contains(Sentiments, s)
}

// Intent is the single highest-priority purpose detected in a message.
type Intent string

const (
	IntentSuicidalIdeation   Intent = "suicidalIdeation"
	IntentSeekingHelp        Intent = "seekingHelp"
	IntentExpressingDistress Intent = "expressingDistress"
	IntentGratitude          Intent = "gratitude"
	IntentGreeting           Intent = "greeting"
	IntentGeneral            Intent = "general"
)

// IntentOrder is the order in which non-crisis intents are tested. Suicidal ideation is
// always tested before these and general is the fallback when none match.
var IntentOrder = []Intent{
	IntentSeekingHelp,
	IntentExpressingDistress,
	IntentGratitude,
	IntentGreeting,
}

// IsValidIntent checks if the given intent is a known label.
func IsValidIntent(i Intent) bool {
	return i == IntentSuicidalIdeation || i == IntentGeneral || slices.Contains(IntentOrder, i)
}

// ClassificationResult is the complete, immutable outcome of classifying one message.
// Topics is never empty; it defaults to [general].
type ClassificationResult struct {
	Sentiment Sentiment  `json:"sentiment"`
	Topics    []Category `json:"topics"`
	Intent    Intent     `json:"intent"`
}

// PrimaryTopic returns the first topic, or general when none are present.
func (r ClassificationResult) PrimaryTopic() Category {
	if len(r.Topics) == 0 {
		return CategoryGeneral
	}
	return r.Topics[0]
}

// IsCrisis reports whether the message expressed suicidal ideation.
func (r ClassificationResult) IsCrisis() bool {
	return r.Intent == IntentSuicidalIdeation
}

// TaggedReply is an assistant reply together with its derived tags.
type TaggedReply struct {
	Content    string     `json:"content"`
	Sentiment  Sentiment  `json:"sentiment"`
	Categories []Category `json:"categories"`
}

// Validation errors shared by the API and the chat pipeline.
var (
	ErrEmptyUserID    = errors.New("user ID is required")
	ErrEmptyMessage   = errors.New("message content is required")
	ErrMessageTooLong = errors.New("message content exceeds maximum length")
)

// MaxMessageLength defines the maximum allowed length for inbound message content.
const MaxMessageLength = 4096

// Fragment is one reply segment returned by a remote dialogue engine.
type Fragment struct {
	Text string `json:"text"`
}
