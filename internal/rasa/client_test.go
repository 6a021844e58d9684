package rasa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/MindHaven/internal/models"
)

func TestSendPostsSenderAndMessage(t *testing.T) {
	var got webhookRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != webhookPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`[{"text":"Hi there"},{"text":"How are you?"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	fragments, err := c.Send(context.Background(), "user-42", "hello")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Sender != "user-42" || got.Message != "hello" {
		t.Errorf("request body = %+v", got)
	}
	want := []models.Fragment{{Text: "Hi there"}, {Text: "How are you?"}}
	if len(fragments) != len(want) || fragments[0] != want[0] || fragments[1] != want[1] {
		t.Errorf("fragments = %+v, want %+v", fragments, want)
	}
}

func TestSendEmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	fragments, err := NewClient(srv.URL).Send(context.Background(), "u", "x")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(fragments) != 0 {
		t.Errorf("fragments = %+v, want none", fragments)
	}
}

func TestSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Send(context.Background(), "u", "x")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Send() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestSendMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Send(context.Background(), "u", "x"); err == nil {
		t.Error("Send() error = nil, want decode error")
	}
}

func TestSendRespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := NewClient(srv.URL).Send(ctx, "u", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want deadline exceeded", err)
	}
}

func TestNewClientDefaultURL(t *testing.T) {
	if c := NewClient("  "); c.baseURL != DefaultServerURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultServerURL)
	}
}
