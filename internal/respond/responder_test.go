package respond

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/MindHaven/internal/models"
)

// fakeEngine is a scripted DialogueEngine.
type fakeEngine struct {
	fragments []models.Fragment
	err       error
	block     bool

	mu       sync.Mutex
	sessions []string
}

func (f *fakeEngine) Send(ctx context.Context, sessionID, text string) ([]models.Fragment, error) {
	f.mu.Lock()
	f.sessions = append(f.sessions, sessionID)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.fragments, f.err
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveResponder(engine, outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, engine+":"+outcome)
}

func TestRemoteResponderJoinsFragments(t *testing.T) {
	classifier, _, _ := newTestPipeline(t)
	engine := &fakeEngine{fragments: []models.Fragment{{Text: "Hi!"}, {Text: "  "}, {Text: "How can I help?"}}}
	obs := &recordingObserver{}
	r := NewRemoteResponder(engine, classifier, WithEngineName("rasa"), WithObserver(obs))

	got := r.Respond(context.Background(), "user-1", "hello")
	if got.Content != "Hi!\n\nHow can I help?" {
		t.Errorf("Content = %q", got.Content)
	}
	if !reflect.DeepEqual(engine.sessions, []string{"user-1"}) {
		t.Errorf("sessions = %v, want [user-1]", engine.sessions)
	}
	if !reflect.DeepEqual(obs.outcomes, []string{"rasa:ok"}) {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestRemoteResponderEmptyReply(t *testing.T) {
	classifier, _, _ := newTestPipeline(t)
	obs := &recordingObserver{}
	r := NewRemoteResponder(&fakeEngine{}, classifier, WithObserver(obs))

	got := r.Respond(context.Background(), "user-1", "hello")
	if got.Content != EmptyReplyContent {
		t.Errorf("Content = %q, want %q", got.Content, EmptyReplyContent)
	}
	if !reflect.DeepEqual(obs.outcomes, []string{"remote:empty"}) {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestRemoteResponderFallbackOnError(t *testing.T) {
	classifier, _, _ := newTestPipeline(t)
	r := NewRemoteResponder(&fakeEngine{err: errors.New("connection refused")}, classifier)

	got := r.Respond(context.Background(), "user-1", "I feel anxious")
	if !reflect.DeepEqual(got, FallbackReply()) {
		t.Errorf("Respond() = %+v, want %+v", got, FallbackReply())
	}
}

func TestRemoteResponderTimeout(t *testing.T) {
	classifier, _, _ := newTestPipeline(t)
	obs := &recordingObserver{}
	r := NewRemoteResponder(&fakeEngine{block: true}, classifier, WithTimeout(20*time.Millisecond), WithObserver(obs))

	start := time.Now()
	got := r.Respond(context.Background(), "user-1", "hello")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Respond() took %v, want it bounded by the timeout", elapsed)
	}
	if got.Content != FallbackReplyContent {
		t.Errorf("Content = %q, want fallback", got.Content)
	}
	if !reflect.DeepEqual(obs.outcomes, []string{"remote:fallback"}) {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestRemoteResponderTagsCombinedText(t *testing.T) {
	classifier, _, _ := newTestPipeline(t)
	engine := &fakeEngine{fragments: []models.Fragment{{Text: "Have you tried a bedtime routine?"}}}
	r := NewRemoteResponder(engine, classifier)

	got := r.Respond(context.Background(), "user-1", "I feel anxious at night and I have insomnia")
	for _, want := range []models.Category{models.CategoryAnxiety, models.CategorySleep} {
		if !slices.Contains(got.Categories, want) {
			t.Errorf("Categories = %v, want %s included", got.Categories, want)
		}
	}
	if slices.Contains(got.Categories, models.CategoryCrisis) {
		t.Errorf("Categories = %v, want no crisis tag", got.Categories)
	}
}

func TestTagReplyAddsCrisis(t *testing.T) {
	classifier, _, _ := newTestPipeline(t)

	got := TagReply(classifier, "Please call 988.", "I want to die")
	if !reflect.DeepEqual(got.Categories, []models.Category{models.CategoryCrisis}) {
		t.Errorf("Categories = %v, want [crisis]", got.Categories)
	}

	got = TagReply(classifier, "I'm here for you.", "I'm so depressed I want to end my life")
	want := []models.Category{models.CategoryDepression, models.CategoryCrisis}
	if !reflect.DeepEqual(got.Categories, want) {
		t.Errorf("Categories = %v, want %v", got.Categories, want)
	}
}

func TestLocalResponderTagsWithUserClassification(t *testing.T) {
	classifier, pool, composer := newTestPipeline(t)
	obs := &recordingObserver{}
	l := NewLocalResponder(classifier, composer, obs)

	text := "I feel anxious and worried about everything"
	got := l.Respond(context.Background(), "user-1", text)
	result := classifier.Classify(text)
	if got.Sentiment != result.Sentiment || !reflect.DeepEqual(got.Categories, result.Topics) {
		t.Errorf("Respond() tags = (%s, %v), want (%s, %v)", got.Sentiment, got.Categories, result.Sentiment, result.Topics)
	}
	if !slices.Contains(mustTopicPool(t, pool, models.CategoryAnxiety, models.SentimentNegative), got.Content) {
		t.Errorf("Content = %q, want an anxiety negative reply", got.Content)
	}
	if !reflect.DeepEqual(obs.outcomes, []string{"local:ok"}) {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestLocalResponderCrisis(t *testing.T) {
	classifier, pool, composer := newTestPipeline(t)
	l := NewLocalResponder(classifier, composer, nil)

	got := l.ReplyFor(classifier.Classify("sometimes I think about suicide"))
	if !slices.Contains(pool.CrisisReplies(), got.Content) {
		t.Errorf("Content = %q, want a crisis reply", got.Content)
	}
	if !slices.Contains(got.Categories, models.CategoryCrisis) {
		t.Errorf("Categories = %v, want crisis included", got.Categories)
	}
}

func TestWithCrisis(t *testing.T) {
	tests := []struct {
		in, want []models.Category
	}{
		{nil, []models.Category{models.CategoryCrisis}},
		{[]models.Category{models.CategoryGeneral}, []models.Category{models.CategoryCrisis}},
		{[]models.Category{models.CategoryDepression}, []models.Category{models.CategoryDepression, models.CategoryCrisis}},
		{[]models.Category{models.CategoryCrisis}, []models.Category{models.CategoryCrisis}},
	}
	for _, tt := range tests {
		if got := withCrisis(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("withCrisis(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
