// Package rasa implements a dialogue engine client for a Rasa server's REST channel.
package rasa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/MindHaven/internal/models"
)

// DefaultServerURL is the address of a locally running Rasa server.
const DefaultServerURL = "http://127.0.0.1:5005"

const webhookPath = "/webhooks/rest/webhook"

// maxResponseBytes caps how much of a reply body is read.
const maxResponseBytes = 1 << 20

// ErrUnexpectedStatus is returned when the server answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("rasa: unexpected status")

type webhookRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Client posts user messages to the REST webhook and decodes the reply fragments.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a Client for the server at baseURL. An empty baseURL uses DefaultServerURL.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers text on behalf of sessionID. Deadlines are taken from ctx.
func (c *Client) Send(ctx context.Context, sessionID, text string) ([]models.Fragment, error) {
	body, err := json.Marshal(webhookRequest{Sender: sessionID, Message: text})
	if err != nil {
		return nil, fmt.Errorf("rasa: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+webhookPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rasa: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rasa: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("rasa: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var fragments []models.Fragment
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return nil, fmt.Errorf("rasa: decode response: %w", err)
	}
	slog.Debug("rasa.Client.Send: reply decoded", "sessionID", sessionID, "fragments", len(fragments))
	return fragments, nil
}
