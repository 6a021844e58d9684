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

//go:embed defaults/responses.yaml
var defaultResponsesYAML []byte

// Validation errors for reply pool files.
var (
	// ErrEmptyCrisisPool is fatal: a crisis message must always receive crisis resources.
	ErrEmptyCrisisPool         = errors.New("suicidal ideation response pool must not be empty")
	ErrMissingGeneralTemplates = errors.New("general topic must define replies for every sentiment")
	ErrEmptyTemplate           = errors.New("empty response template")
)

// ResponsePool holds the literal reply templates, keyed by (topic, sentiment) and by intent.
type ResponsePool struct {
	Topics  map[models.Category]map[models.Sentiment][]string `yaml:"topics"`
	Intents map[models.Intent][]string                        `yaml:"intents"`
}

// TopicReplies returns the pool for a (topic, sentiment) cell and whether it is non-empty.
func (p *ResponsePool) TopicReplies(c models.Category, s models.Sentiment) ([]string, bool) {
	replies := p.Topics[c][s]
	return slices.Clone(replies), len(replies) > 0
}

// IntentReplies returns the pool for an intent and whether it is non-empty.
func (p *ResponsePool) IntentReplies(i models.Intent) ([]string, bool) {
	replies := p.Intents[i]
	return slices.Clone(replies), len(replies) > 0
}

// CrisisReplies returns the crisis-resources pool. It is guaranteed non-empty after Validate.
func (p *ResponsePool) CrisisReplies() []string {
	return slices.Clone(p.Intents[models.IntentSuicidalIdeation])
}

// DefaultResponses parses the embedded reply pools.
func DefaultResponses() (*ResponsePool, error) {
	return parseResponses(defaultResponsesYAML)
}

// LoadResponses reads reply pools from path, or the embedded default when path is empty.
func LoadResponses(path string) (*ResponsePool, error) {
	if path == "" {
		slog.Debug("LoadResponses: using embedded default response pool")
		return DefaultResponses()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses file %s: %w", path, err)
	}
	pool, err := parseResponses(data)
	if err != nil {
		return nil, fmt.Errorf("invalid responses file %s: %w", path, err)
	}
	slog.Info("Response pool loaded from file", "path", path, "topics", len(pool.Topics), "intents", len(pool.Intents))
	return pool, nil
}

func parseResponses(data []byte) (*ResponsePool, error) {
	var pool ResponsePool
	if err := yaml.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("failed to parse responses: %w", err)
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	return &pool, nil
}

// Validate enforces the startup invariants of the reply pools.
func (p *ResponsePool) Validate() error {
	for c, cells := range p.Topics {
		if !slices.Contains(models.TopicOrder, c) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		for s, replies := range cells {
			if !models.IsValidSentiment(s) {
				return fmt.Errorf("%w: %q under topic %q", ErrUnknownSentiment, s, c)
			}
			if err := checkTemplates(fmt.Sprintf("%s/%s", c, s), replies); err != nil {
				return err
			}
		}
	}
	for i, replies := range p.Intents {
		if !models.IsValidIntent(i) {
			return fmt.Errorf("%w: %q", ErrUnknownIntent, i)
		}
		if err := checkTemplates(string(i), replies); err != nil {
			return err
		}
	}
	if len(p.Intents[models.IntentSuicidalIdeation]) == 0 {
		return ErrEmptyCrisisPool
	}
	for _, s := range models.Sentiments {
		if len(p.Topics[models.CategoryGeneral][s]) == 0 {
			return fmt.Errorf("%w: missing %q", ErrMissingGeneralTemplates, s)
		}
	}
	return nil
}

func checkTemplates(key string, replies []string) error {
	for _, r := range replies {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w under %q", ErrEmptyTemplate, key)
		}
	}
	return nil
}
