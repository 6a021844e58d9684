package nlp

import (
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/BTreeMap/MindHaven/internal/lexicon"
	"github.com/BTreeMap/MindHaven/internal/models"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	lex, err := lexicon.DefaultLexicon()
	if err != nil {
		t.Fatalf("failed to load default lexicon: %v", err)
	}
	return NewClassifier(lex)
}

func TestEmptyInputHasNoSignal(t *testing.T) {
	c := newTestClassifier(t)
	for _, in := range []string{"", "   ", "\n\t", "?!"} {
		if got := c.AnalyzeSentiment(in); got != models.SentimentNeutral {
			t.Errorf("AnalyzeSentiment(%q) = %q, want neutral", in, got)
		}
		if got := c.IdentifyTopics(in); !reflect.DeepEqual(got, []models.Category{models.CategoryGeneral}) {
			t.Errorf("IdentifyTopics(%q) = %v, want [general]", in, got)
		}
		if got := c.DetectIntent(in); got != models.IntentGeneral {
			t.Errorf("DetectIntent(%q) = %q, want general", in, got)
		}
	}
}

func TestAnxiousAndWorried(t *testing.T) {
	c := newTestClassifier(t)
	text := "I feel anxious and worried about everything"

	if got := c.IdentifyTopics(text); !slices.Contains(got, models.CategoryAnxiety) {
		t.Errorf("IdentifyTopics() = %v, want anxiety included", got)
	}
	if got := c.AnalyzeSentiment(text); got != models.SentimentNegative {
		t.Errorf("AnalyzeSentiment() = %q, want negative", got)
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	c := newTestClassifier(t)
	tests := []struct {
		text string
		want models.Sentiment
	}{
		{"I feel good and happy today", models.SentimentPositive},
		{"Things are getting better, I have hope", models.SentimentPositive},
		{"Everything is bad and awful", models.SentimentNegative},
		{"good day, bad night", models.SentimentNeutral},
		{"the weather is cloudy", models.SentimentNeutral},
		{"I am okay I guess", models.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := c.AnalyzeSentiment(tt.text); got != tt.want {
				t.Errorf("AnalyzeSentiment(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestIdentifyTopicsStemmedVariants(t *testing.T) {
	c := newTestClassifier(t)
	for _, word := range []string{"worrying", "worried", "worry"} {
		if got := c.IdentifyTopics(word); !slices.Contains(got, models.CategoryAnxiety) {
			t.Errorf("IdentifyTopics(%q) = %v, want anxiety included", word, got)
		}
	}
}

func TestIdentifyTopicsDeclarationOrder(t *testing.T) {
	c := newTestClassifier(t)
	got := c.IdentifyTopics("I can't sleep because of my anxious thoughts")
	want := []models.Category{models.CategoryAnxiety, models.CategorySleep}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IdentifyTopics() = %v, want %v", got, want)
	}
}

func TestIdentifyTopicsUsesStemEqualityNotSubstring(t *testing.T) {
	c := newTestClassifier(t)
	// "restaurant" contains the sleep keyword "rest" but does not share its stem.
	got := c.IdentifyTopics("we went to a restaurant")
	if !reflect.DeepEqual(got, []models.Category{models.CategoryGeneral}) {
		t.Errorf("IdentifyTopics() = %v, want [general]", got)
	}
}

func TestIdentifyTopicsMultipleCategories(t *testing.T) {
	c := newTestClassifier(t)
	got := c.IdentifyTopics("Nightmares about the abuse keep me awake and I drink alcohol")
	want := []models.Category{models.CategorySleep, models.CategoryTrauma, models.CategoryAddiction}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IdentifyTopics() = %v, want %v", got, want)
	}
}

func TestDetectIntent(t *testing.T) {
	c := newTestClassifier(t)
	tests := []struct {
		text string
		want models.Intent
	}{
		{"I'm so happy and grateful but I want to kill myself", models.IntentSuicidalIdeation},
		{"Hello, sometimes I think about suicide", models.IntentSuicidalIdeation},
		{"everyone would be better off dead without me", models.IntentSuicidalIdeation},
		{"thank you so much, that really helped", models.IntentGratitude},
		{"Thanks for listening", models.IntentGratitude},
		{"I need some advice about my sleep", models.IntentSeekingHelp},
		{"Hello, can you help me?", models.IntentSeekingHelp},
		{"It's so hard, I can't cope", models.IntentExpressingDistress},
		{"I feel overwhelmed at work", models.IntentExpressingDistress},
		{"please help", models.IntentSeekingHelp},
		{"Can you give me some help?", models.IntentSeekingHelp},
		{"Hello there", models.IntentGreeting},
		{"good morning!", models.IntentGreeting},
		{"morning!", models.IntentGreeting},
		{"hi", models.IntentGreeting},
		{"Hi!", models.IntentGreeting},
		{"this is fine", models.IntentGeneral},
		{"they said it was fine", models.IntentGeneral},
		{"I feel anxious and worried about everything", models.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := c.DetectIntent(tt.text); got != tt.want {
				t.Errorf("DetectIntent(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"hi", "hi", true},
		{"hi!", "hi", true},
		{"oh, hi there", "hi", true},
		{"this", "hi", false},
		{"this hi", "hi", true},
		{"they said", "hey", false},
		{"helped a lot", "help", false},
		{"self-help", "help", true},
		{"", "hi", false},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}

func TestClassifyMatchesIndividualOperations(t *testing.T) {
	c := newTestClassifier(t)
	text := "I can't sleep and I'm stressed, please help me"
	got := c.Classify(text)
	want := models.ClassificationResult{
		Sentiment: c.AnalyzeSentiment(text),
		Topics:    c.IdentifyTopics(text),
		Intent:    c.DetectIntent(text),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify() = %+v, want %+v", got, want)
	}
}

func TestClassificationIsIdempotent(t *testing.T) {
	c := newTestClassifier(t)
	texts := []string{
		"I feel anxious and worried about everything",
		"thank you so much, that really helped",
		"",
		"Hello, I keep having flashbacks",
	}
	for _, text := range texts {
		if a, b := c.AnalyzeSentiment(text), c.AnalyzeSentiment(text); a != b {
			t.Errorf("AnalyzeSentiment(%q) not idempotent: %q vs %q", text, a, b)
		}
		if a, b := c.IdentifyTopics(text), c.IdentifyTopics(text); !reflect.DeepEqual(a, b) {
			t.Errorf("IdentifyTopics(%q) not idempotent: %v vs %v", text, a, b)
		}
		if a, b := c.DetectIntent(text), c.DetectIntent(text); a != b {
			t.Errorf("DetectIntent(%q) not idempotent: %q vs %q", text, a, b)
		}
	}
}

func TestClassifyConcurrentUse(t *testing.T) {
	c := newTestClassifier(t)
	text := "I feel anxious and worried about everything"
	want := c.Classify(text)

	var wg sync.WaitGroup
	results := make([]models.ClassificationResult, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Classify(text)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if !reflect.DeepEqual(got, want) {
			t.Errorf("goroutine %d: Classify() = %+v, want %+v", i, got, want)
		}
	}
}
