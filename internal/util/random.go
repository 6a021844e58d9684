// Package util provides small helpers shared across MindHaven components.
package util

import (
	"math/rand/v2"
	"strings"
)

const idHexLength = 32

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// It is not suitable for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// GenerateConversationID generates a unique conversation ID with "c_" prefix.
func GenerateConversationID() string {
	return GenerateRandomID("c_", idHexLength)
}

// GenerateMessageID generates a unique chat message ID with "m_" prefix.
func GenerateMessageID() string {
	return GenerateRandomID("m_", idHexLength)
}

// GenerateOutboxID generates a unique outbox record ID with "ob_" prefix.
func GenerateOutboxID() string {
	return GenerateRandomID("ob_", idHexLength)
}
