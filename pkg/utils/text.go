// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Truncate returns s cut to at most maxLen runes, with "..." appended if it was cut.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords collapses whitespace in s and keeps at most maxWords words, appending "..."
// when words were dropped.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
