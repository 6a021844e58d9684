// Package nlp implements the rule-based text pipeline: tokenization, stemming and
// keyword classification of chat messages into sentiment, topics and intent.
//
// Every function in this package is pure and safe for concurrent use.
package nlp

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// Tokenize lowercases text and splits it into runs of letters and digits.
// Empty or whitespace-only input yields an empty slice.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// Stem reduces a single token to its Porter2 stem so that inflected forms
// ("worried", "worrying", "worry") compare equal.
func Stem(token string) string {
	return english.Stem(token, true)
}

// Normalize tokenizes text and stems every token.
func Normalize(text string) []string {
	tokens := Tokenize(text)
	stems := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if s := Stem(tok); s != "" {
			stems = append(stems, s)
		}
	}
	return stems
}

// stemSet stems each word and collects the distinct results.
func stemSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		for _, s := range Normalize(w) {
			set[s] = struct{}{}
		}
	}
	return set
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
