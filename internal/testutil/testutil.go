// Package testutil provides common test fixtures and helpers for MindHaven tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/MindHaven/internal/lexicon"
	"github.com/BTreeMap/MindHaven/internal/nlp"
	"github.com/BTreeMap/MindHaven/internal/respond"
)

// Pipeline bundles the rule-based pipeline built from the embedded defaults.
type Pipeline struct {
	Lexicon    *lexicon.Lexicon
	Pool       *lexicon.ResponsePool
	Classifier *nlp.Classifier
	Composer   *respond.Composer
	Local      *respond.LocalResponder
}

// NewPipeline builds the default pipeline. observer may be nil.
func NewPipeline(t testing.TB, observer respond.Observer, opts ...respond.ComposerOption) Pipeline {
	t.Helper()
	lex, err := lexicon.DefaultLexicon()
	if err != nil {
		t.Fatalf("DefaultLexicon: %v", err)
	}
	pool, err := lexicon.DefaultResponses()
	if err != nil {
		t.Fatalf("DefaultResponses: %v", err)
	}
	classifier := nlp.NewClassifier(lex)
	composer := respond.NewComposer(classifier, pool, opts...)
	return Pipeline{
		Lexicon:    lex,
		Pool:       pool,
		Classifier: classifier,
		Composer:   composer,
		Local:      respond.NewLocalResponder(classifier, composer, observer),
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// Envelope mirrors the API response envelope with an undecoded result.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// AssertJSONResponse decodes the response envelope and checks its status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	if env.Status != expectedStatus {
		t.Errorf("expected status '%s', got '%s' (message %q)", expectedStatus, env.Status, env.Message)
	}
	return env
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
// A string body is sent verbatim so tests can post malformed JSON.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, b))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t testing.TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
