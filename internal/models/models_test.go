package models

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassificationResultPrimaryTopic(t *testing.T) {
	tests := []struct {
		name   string
		topics []Category
		want   Category
	}{
		{"empty defaults to general", nil, CategoryGeneral},
		{"single topic", []Category{CategorySleep}, CategorySleep},
		{"first of many", []Category{CategoryAnxiety, CategorySleep}, CategoryAnxiety},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ClassificationResult{Topics: tt.topics}
			if got := r.PrimaryTopic(); got != tt.want {
				t.Errorf("PrimaryTopic() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsValidLabels(t *testing.T) {
	if !IsValidCategory(CategoryCrisis) || IsValidCategory("grief") {
		t.Error("IsValidCategory returned wrong result")
	}
	if !IsValidSentiment(SentimentNeutral) || IsValidSentiment("mixed") {
		t.Error("IsValidSentiment returned wrong result")
	}
	if !IsValidIntent(IntentSuicidalIdeation) || !IsValidIntent(IntentGeneral) || IsValidIntent("farewell") {
		t.Error("IsValidIntent returned wrong result")
	}
}

func TestConversationMergeTopics(t *testing.T) {
	c := Conversation{Topics: []Category{CategoryGeneral}}

	if !c.MergeTopics([]Category{CategoryAnxiety, CategoryGeneral, CategorySleep}) {
		t.Fatal("expected topic set to change")
	}
	want := []Category{CategoryGeneral, CategoryAnxiety, CategorySleep}
	if !reflect.DeepEqual(c.Topics, want) {
		t.Errorf("Topics = %v, want %v", c.Topics, want)
	}

	if c.MergeTopics([]Category{CategorySleep}) {
		t.Error("expected no change when merging existing topic")
	}
}

func TestChatMessageRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatMessageRequest
		wantErr error
	}{
		{"valid", ChatMessageRequest{UserID: "u1", Content: "hello"}, nil},
		{"missing user", ChatMessageRequest{Content: "hello"}, ErrEmptyUserID},
		{"blank content", ChatMessageRequest{UserID: "u1", Content: "   "}, ErrEmptyMessage},
		{"too long", ChatMessageRequest{UserID: "u1", Content: strings.Repeat("a", MaxMessageLength+1)}, ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success(map[string]string{"a": "b"})
	if ok.Status != APIStatusOK || ok.Result == nil {
		t.Errorf("Success() = %+v", ok)
	}
	e := Error("boom")
	if e.Status != APIStatusError || e.Message != "boom" || e.Result != nil {
		t.Errorf("Error() = %+v", e)
	}
	m := SuccessWithMessage("ok", nil)
	if m.Status != APIStatusOK || m.Message != "ok" || m.Result != nil {
		t.Errorf("SuccessWithMessage() = %+v", m)
	}
}
