package respond

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/MindHaven/internal/models"
	"github.com/BTreeMap/MindHaven/internal/nlp"
)

const (
	// DefaultRemoteTimeout bounds a single call to a remote dialogue engine.
	DefaultRemoteTimeout = 8 * time.Second

	// EmptyReplyContent is used when the engine answers with no text.
	EmptyReplyContent = "I'm not sure how to respond to that. Could you rephrase?"
	// FallbackReplyContent is used when the engine cannot be reached or answers malformed data.
	FallbackReplyContent = "I'm having trouble processing your message right now. Please try again later."

	fragmentSeparator = "\n\n"
)

// DialogueEngine is a remote conversational engine addressed by session.
type DialogueEngine interface {
	Send(ctx context.Context, sessionID, text string) ([]models.Fragment, error)
}

// FallbackReply is the fixed reply returned when a remote engine fails.
func FallbackReply() models.TaggedReply {
	return models.TaggedReply{
		Content:    FallbackReplyContent,
		Sentiment:  models.SentimentNeutral,
		Categories: []models.Category{models.CategoryGeneral},
	}
}

// RemoteResponder delegates reply generation to a DialogueEngine and tags the result locally.
type RemoteResponder struct {
	engine     DialogueEngine
	name       string
	classifier *nlp.Classifier
	timeout    time.Duration
	observer   Observer
}

// RemoteOption configures a RemoteResponder.
type RemoteOption func(*RemoteResponder)

// WithTimeout sets the per-call deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteResponder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithEngineName sets the engine label used in logs and observations.
func WithEngineName(name string) RemoteOption {
	return func(r *RemoteResponder) { r.name = name }
}

// WithObserver registers an Observer for call outcomes.
func WithObserver(o Observer) RemoteOption {
	return func(r *RemoteResponder) {
		if o != nil {
			r.observer = o
		}
	}
}

// NewRemoteResponder creates a RemoteResponder for the given engine.
func NewRemoteResponder(engine DialogueEngine, classifier *nlp.Classifier, opts ...RemoteOption) *RemoteResponder {
	r := &RemoteResponder{
		engine:     engine,
		name:       "remote",
		classifier: classifier,
		timeout:    DefaultRemoteTimeout,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Responder.
func (r *RemoteResponder) Name() string { return r.name }

// Respond forwards text to the engine under the user's session and tags the reply.
// Any engine failure, including a deadline, yields FallbackReply.
func (r *RemoteResponder) Respond(ctx context.Context, userID, text string) models.TaggedReply {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	fragments, err := r.engine.Send(ctx, userID, text)
	elapsed := time.Since(start)
	if err != nil {
		slog.Error("RemoteResponder.Respond: engine call failed", "engine", r.name, "userID", userID, "elapsed", elapsed, "error", err)
		r.observer.ObserveResponder(r.name, OutcomeFallback, elapsed)
		return FallbackReply()
	}

	content := joinFragments(fragments)
	outcome := OutcomeOK
	if content == "" {
		content = EmptyReplyContent
		outcome = OutcomeEmpty
		slog.Warn("RemoteResponder.Respond: engine returned no text", "engine", r.name, "userID", userID)
	}
	r.observer.ObserveResponder(r.name, outcome, elapsed)
	slog.Debug("RemoteResponder.Respond: reply received", "engine", r.name, "userID", userID, "fragments", len(fragments), "elapsed", elapsed)
	return TagReply(r.classifier, content, text)
}

// TagReply derives sentiment and categories for a reply from the reply and the user text
// together. Replies to suicidal-ideation messages are additionally tagged crisis.
func TagReply(classifier *nlp.Classifier, content, userText string) models.TaggedReply {
	combined := content + " " + userText
	categories := classifier.IdentifyTopics(combined)
	if classifier.DetectIntent(userText) == models.IntentSuicidalIdeation {
		categories = withCrisis(categories)
	}
	return models.TaggedReply{
		Content:    content,
		Sentiment:  classifier.AnalyzeSentiment(combined),
		Categories: categories,
	}
}

func joinFragments(fragments []models.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if text := strings.TrimSpace(f.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, fragmentSeparator)
}
