// Package respond selects and tags assistant replies.
//
// The Composer picks a templated reply from the configured pools. Responders wrap either
// the Composer (local) or a remote dialogue engine and return replies tagged with
// sentiment and categories.
package respond

import (
	"github.com/BTreeMap/MindHaven/internal/lexicon"
	"github.com/BTreeMap/MindHaven/internal/models"
	"github.com/BTreeMap/MindHaven/internal/nlp"
)

// Composer selects a reply from the response pools based on a classification.
type Composer struct {
	classifier *nlp.Classifier
	pool       *lexicon.ResponsePool
	rng        RandomSource
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithRandomSource overrides the source used to pick among equivalent replies.
func WithRandomSource(rng RandomSource) ComposerOption {
	return func(c *Composer) { c.rng = rng }
}

// NewComposer creates a Composer over a validated response pool.
func NewComposer(classifier *nlp.Classifier, pool *lexicon.ResponsePool, opts ...ComposerOption) *Composer {
	c := &Composer{
		classifier: classifier,
		pool:       pool,
		rng:        DefaultRandomSource(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose classifies text and returns the selected reply.
func (c *Composer) Compose(text string) string {
	return c.Reply(c.classifier.Classify(text))
}

// Reply selects a reply for an existing classification:
//  1. suicidal ideation always gets a crisis-resources reply;
//  2. any other named intent with a pool gets a reply from that pool;
//  3. otherwise the (primary topic, sentiment) cell is used, falling back to (general, sentiment).
func (c *Composer) Reply(result models.ClassificationResult) string {
	if result.IsCrisis() {
		return c.CrisisReply()
	}

	if result.Intent != models.IntentGeneral {
		if replies, ok := c.pool.IntentReplies(result.Intent); ok {
			return c.pick(replies)
		}
	}

	if replies, ok := c.pool.TopicReplies(result.PrimaryTopic(), result.Sentiment); ok {
		return c.pick(replies)
	}
	replies, _ := c.pool.TopicReplies(models.CategoryGeneral, result.Sentiment)
	return c.pick(replies)
}

// CrisisReply returns a reply from the crisis-resources pool.
func (c *Composer) CrisisReply() string {
	return c.pick(c.pool.CrisisReplies())
}

func (c *Composer) pick(replies []string) string {
	if len(replies) == 0 {
		return ""
	}
	return replies[c.rng.IntN(len(replies))]
}
