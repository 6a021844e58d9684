package nlp

import (
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/MindHaven/internal/lexicon"
	"github.com/BTreeMap/MindHaven/internal/models"
)

// topicStems pairs a category with the stems of its keywords.
type topicStems struct {
	category models.Category
	stems    map[string]struct{}
}

// pattern is one lowercase intent phrase. Whole-word patterns must not touch a letter
// or digit on either side.
type pattern struct {
	text  string
	whole bool
}

func (p pattern) matches(lower string) bool {
	if p.whole {
		return containsWord(lower, p.text)
	}
	return strings.Contains(lower, p.text)
}

type intentPatterns struct {
	intent   models.Intent
	patterns []pattern
}

// Classifier tags text with sentiment, topics and intent using a fixed lexicon.
// Keyword stems are computed once at construction; a Classifier is read-only afterwards.
type Classifier struct {
	positive map[string]struct{}
	negative map[string]struct{}
	topics   []topicStems
	crisis   []string
	intents  []intentPatterns
}

// NewClassifier builds a Classifier from a validated lexicon.
func NewClassifier(lex *lexicon.Lexicon) *Classifier {
	c := &Classifier{
		positive: stemSet(lex.SentimentWords(models.SentimentPositive)),
		negative: stemSet(lex.SentimentWords(models.SentimentNegative)),
		crisis:   lex.Patterns(models.IntentSuicidalIdeation),
	}
	for _, cat := range models.TopicOrder {
		c.topics = append(c.topics, topicStems{category: cat, stems: stemSet(lex.Keywords(cat))})
	}
	for _, in := range models.IntentOrder {
		ip := intentPatterns{intent: in}
		for _, p := range lex.Patterns(in) {
			ip.patterns = append(ip.patterns, pattern{text: p, whole: lex.IsWholeWord(p)})
		}
		c.intents = append(c.intents, ip)
	}
	return c
}

// Classify produces the complete classification of text in one pass.
func (c *Classifier) Classify(text string) models.ClassificationResult {
	stems := Normalize(text)
	return models.ClassificationResult{
		Sentiment: c.sentimentOf(stems),
		Topics:    c.topicsOf(stems),
		Intent:    c.DetectIntent(text),
	}
}

// AnalyzeSentiment counts positive and negative lexicon stems in text. The strictly
// larger count wins; ties, including no matches, are neutral.
func (c *Classifier) AnalyzeSentiment(text string) models.Sentiment {
	return c.sentimentOf(Normalize(text))
}

// IdentifyTopics returns every category with at least one keyword stem present in text,
// in declaration order. It never returns an empty slice.
func (c *Classifier) IdentifyTopics(text string) []models.Category {
	return c.topicsOf(Normalize(text))
}

// DetectIntent matches lowercase phrases against text. Suicidal ideation is tested first
// and wins over every other signal; general is returned when nothing matches.
func (c *Classifier) DetectIntent(text string) models.Intent {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return models.IntentGeneral
	}

	// Crisis phrases match anywhere, including inside longer words.
	for _, p := range c.crisis {
		if strings.Contains(lower, p) {
			return models.IntentSuicidalIdeation
		}
	}

	for _, ip := range c.intents {
		for _, p := range ip.patterns {
			if p.matches(lower) {
				return ip.intent
			}
		}
	}
	return models.IntentGeneral
}

func (c *Classifier) sentimentOf(stems []string) models.Sentiment {
	if len(stems) == 0 {
		return models.SentimentNeutral
	}

	var positive, negative int
	for _, s := range stems {
		if _, ok := c.positive[s]; ok {
			positive++
		}
		if _, ok := c.negative[s]; ok {
			negative++
		}
	}

	switch {
	case positive > negative:
		return models.SentimentPositive
	case negative > positive:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func (c *Classifier) topicsOf(stems []string) []models.Category {
	var topics []models.Category
	for _, ts := range c.topics {
		for _, s := range stems {
			if _, ok := ts.stems[s]; ok {
				topics = append(topics, ts.category)
				break
			}
		}
	}
	if len(topics) == 0 {
		return []models.Category{models.CategoryGeneral}
	}
	return topics
}

// containsWord reports whether word occurs in text with no letter or digit directly
// before or after it.
func containsWord(text, word string) bool {
	for start := 0; start+len(word) <= len(text); {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		pos := start + idx
		end := pos + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:pos])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (pos == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		start = pos + 1
	}
	return false
}
