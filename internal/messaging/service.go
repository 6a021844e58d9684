// Package messaging connects external chat channels to the MindHaven chat service.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/BTreeMap/MindHaven/internal/models"
)

var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrInvalidPayload = errors.New("invalid outbox payload")
)

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// ChatHandler turns one inbound user message into a stored exchange.
type ChatHandler interface {
	HandleMessage(ctx context.Context, userID, text string) (models.Exchange, error)
}

// ValidateAndCanonicalizeRecipient strips everything but digits from a phone address
// and requires at least 6 digits.
func ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", ErrEmptyRecipient
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("messaging: canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
