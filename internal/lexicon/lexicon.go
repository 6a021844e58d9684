// Package lexicon holds the static keyword dictionaries and reply pools used by the
// classifier and the response composer.
//
// Both are loaded once at startup, either from the embedded defaults or from YAML override
// files, validated, and treated as read-only for the lifetime of the process.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/BTreeMap/MindHaven/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/lexicon.yaml
var defaultLexiconYAML []byte

// Validation errors for lexicon files.
var (
	ErrUnknownCategory     = errors.New("unknown topic category")
	ErrUnknownSentiment    = errors.New("unknown sentiment")
	ErrUnknownIntent       = errors.New("unknown intent")
	ErrEmptyEntry          = errors.New("empty lexicon entry")
	ErrMissingCrisisPhrase = errors.New("suicidal ideation patterns must not be empty")
)

// Lexicon maps categories, sentiments and intents to their keyword lists.
// WholeWords names the intent patterns too short to match as raw substrings ("hi" sits
// inside "this"); those only match as complete words.
type Lexicon struct {
	Categories map[models.Category][]string  `yaml:"categories"`
	Sentiments map[models.Sentiment][]string `yaml:"sentiments"`
	Intents    map[models.Intent][]string    `yaml:"intents"`
	WholeWords []string                      `yaml:"wholeWords"`
}

// Keywords returns a copy of the keyword list for a topic category.
func (l *Lexicon) Keywords(c models.Category) []string {
	return slices.Clone(l.Categories[c])
}

// SentimentWords returns a copy of the word list for a sentiment.
func (l *Lexicon) SentimentWords(s models.Sentiment) []string {
	return slices.Clone(l.Sentiments[s])
}

// Patterns returns a copy of the phrase list for an intent.
func (l *Lexicon) Patterns(i models.Intent) []string {
	return slices.Clone(l.Intents[i])
}

// IsWholeWord reports whether an intent pattern only matches as a complete word.
func (l *Lexicon) IsWholeWord(pattern string) bool {
	return slices.Contains(l.WholeWords, pattern)
}

// DefaultLexicon parses the embedded lexicon.
func DefaultLexicon() (*Lexicon, error) {
	return parseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads a lexicon from path, or the embedded default when path is empty.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		slog.Debug("LoadLexicon: using embedded default lexicon")
		return DefaultLexicon()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file %s: %w", path, err)
	}
	lex, err := parseLexicon(data)
	if err != nil {
		return nil, fmt.Errorf("invalid lexicon file %s: %w", path, err)
	}
	slog.Info("Lexicon loaded from file", "path", path,
		"categories", len(lex.Categories), "sentiments", len(lex.Sentiments), "intents", len(lex.Intents))
	return lex, nil
}

func parseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	lex.normalize()
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// normalize lowercases and trims every entry.
func (l *Lexicon) normalize() {
	for k, words := range l.Categories {
		l.Categories[k] = normalizeEntries(words)
	}
	for k, words := range l.Sentiments {
		l.Sentiments[k] = normalizeEntries(words)
	}
	for k, words := range l.Intents {
		l.Intents[k] = normalizeEntries(words)
	}
	l.WholeWords = normalizeEntries(l.WholeWords)
}

func normalizeEntries(entries []string) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = strings.ToLower(strings.TrimSpace(e))
	}
	return out
}

// Validate checks that every key is a known label and every entry is non-empty.
func (l *Lexicon) Validate() error {
	for c, words := range l.Categories {
		if !slices.Contains(models.TopicOrder, c) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		if err := checkEntries(string(c), words); err != nil {
			return err
		}
	}
	for s, words := range l.Sentiments {
		if !models.IsValidSentiment(s) {
			return fmt.Errorf("%w: %q", ErrUnknownSentiment, s)
		}
		if err := checkEntries(string(s), words); err != nil {
			return err
		}
	}
	for i, phrases := range l.Intents {
		if !models.IsValidIntent(i) || i == models.IntentGeneral {
			return fmt.Errorf("%w: %q", ErrUnknownIntent, i)
		}
		if err := checkEntries(string(i), phrases); err != nil {
			return err
		}
	}
	if err := checkEntries("wholeWords", l.WholeWords); err != nil {
		return err
	}
	if len(l.Intents[models.IntentSuicidalIdeation]) == 0 {
		return ErrMissingCrisisPhrase
	}
	return nil
}

func checkEntries(key string, entries []string) error {
	for _, e := range entries {
		if e == "" {
			return fmt.Errorf("%w under %q", ErrEmptyEntry, key)
		}
	}
	return nil
}
