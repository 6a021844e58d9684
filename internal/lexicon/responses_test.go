package lexicon

import (
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/MindHaven/internal/models"
)

func TestDefaultResponses(t *testing.T) {
	pool, err := DefaultResponses()
	if err != nil {
		t.Fatalf("DefaultResponses() error: %v", err)
	}

	crisis := pool.CrisisReplies()
	if len(crisis) == 0 {
		t.Fatal("expected non-empty crisis pool")
	}
	for _, r := range crisis {
		if !strings.Contains(r, "988") {
			t.Errorf("crisis reply lacks hotline reference: %q", r)
		}
	}

	for _, s := range models.Sentiments {
		if _, ok := pool.TopicReplies(models.CategoryGeneral, s); !ok {
			t.Errorf("missing general/%s replies", s)
		}
	}

	if _, ok := pool.TopicReplies(models.CategoryAddiction, models.SentimentNegative); ok {
		t.Error("expected no addiction cell in default pool")
	}
	if _, ok := pool.IntentReplies(models.IntentGratitude); !ok {
		t.Error("expected gratitude replies")
	}
}

func TestParseResponsesValidation(t *testing.T) {
	general := `
topics:
  general:
    positive: ["p"]
    negative: ["n"]
    neutral: ["u"]
`
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "empty crisis pool is fatal",
			yaml:    general + "intents:\n  greeting: [\"hi\"]\n",
			wantErr: ErrEmptyCrisisPool,
		},
		{
			name:    "missing general sentiment cell",
			yaml:    "topics:\n  general:\n    positive: [\"p\"]\nintents:\n  suicidalIdeation: [\"call 988\"]\n",
			wantErr: ErrMissingGeneralTemplates,
		},
		{
			name:    "unknown topic",
			yaml:    general + "  grief:\n    neutral: [\"x\"]\nintents:\n  suicidalIdeation: [\"call 988\"]\n",
			wantErr: ErrUnknownCategory,
		},
		{
			name:    "unknown intent",
			yaml:    general + "intents:\n  suicidalIdeation: [\"call 988\"]\n  farewell: [\"bye\"]\n",
			wantErr: ErrUnknownIntent,
		},
		{
			name:    "blank template",
			yaml:    general + "intents:\n  suicidalIdeation: [\"  \"]\n",
			wantErr: ErrEmptyTemplate,
		},
		{
			name:    "valid minimal pool",
			yaml:    general + "intents:\n  suicidalIdeation: [\"call 988\"]\n",
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseResponses([]byte(tt.yaml))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("parseResponses() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
