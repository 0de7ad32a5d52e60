package normalize

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis marks a truncated excerpt.
const Ellipsis = "..."

// Key returns the stored form of a conversation key (booking code).
// Normalization trims surrounding whitespace only; keys stay case-sensitive.
func Key(k string) string {
	return strings.TrimSpace(k)
}

// Name collapses runs of whitespace in a display name and falls back to
// fallback when nothing is left.
func Name(n, fallback string) string {
	n = strings.Join(strings.Fields(n), " ")
	if n == "" {
		return fallback
	}
	return n
}

// Excerpt caps s at max runes, appending Ellipsis when it had to cut.
func Excerpt(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + Ellipsis
}
