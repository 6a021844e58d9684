package respond

import (
	"context"
	"slices"
	"time"

	"github.com/BTreeMap/MindHaven/internal/models"
	"github.com/BTreeMap/MindHaven/internal/nlp"
)

// Responder produces a tagged assistant reply for a user message. Implementations never
// fail; errors are absorbed into a fallback reply.
type Responder interface {
	Respond(ctx context.Context, userID, text string) models.TaggedReply
	Name() string
}

// Observer receives one observation per responder call.
type Observer interface {
	ObserveResponder(engine, outcome string, elapsed time.Duration)
}

// Responder outcomes reported to the Observer.
const (
	OutcomeOK             = "ok"
	OutcomeEmpty          = "empty"
	OutcomeFallback       = "fallback"
	OutcomeCrisisOverride = "crisis_override"
)

type nopObserver struct{}

func (nopObserver) ObserveResponder(string, string, time.Duration) {}

// LocalResponder answers from the templated pools without leaving the process.
type LocalResponder struct {
	classifier *nlp.Classifier
	composer   *Composer
	observer   Observer
}

// NewLocalResponder creates a LocalResponder. A nil observer disables observations.
func NewLocalResponder(classifier *nlp.Classifier, composer *Composer, observer Observer) *LocalResponder {
	if observer == nil {
		observer = nopObserver{}
	}
	return &LocalResponder{classifier: classifier, composer: composer, observer: observer}
}

// Name implements Responder.
func (l *LocalResponder) Name() string { return "local" }

// Respond classifies text and tags the selected reply with the classification of the user text.
func (l *LocalResponder) Respond(ctx context.Context, userID, text string) models.TaggedReply {
	start := time.Now()
	reply := l.ReplyFor(l.classifier.Classify(text))
	l.observer.ObserveResponder(l.Name(), OutcomeOK, time.Since(start))
	return reply
}

// ReplyFor builds a tagged reply from an existing classification.
func (l *LocalResponder) ReplyFor(result models.ClassificationResult) models.TaggedReply {
	categories := slices.Clone(result.Topics)
	if result.IsCrisis() {
		categories = withCrisis(categories)
	}
	return models.TaggedReply{
		Content:    l.composer.Reply(result),
		Sentiment:  result.Sentiment,
		Categories: categories,
	}
}

// withCrisis appends the crisis category, replacing a lone general tag.
func withCrisis(categories []models.Category) []models.Category {
	if slices.Contains(categories, models.CategoryCrisis) {
		return categories
	}
	if len(categories) == 0 || (len(categories) == 1 && categories[0] == models.CategoryGeneral) {
		return []models.Category{models.CategoryCrisis}
	}
	return append(categories, models.CategoryCrisis)
}
