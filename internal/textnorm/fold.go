// Package textnorm folds free text into comparison keys.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key returns the identity form of s: trimmed, lowercased, NFD-decomposed with
// combining marks removed and inner whitespace collapsed to single spaces.
// "  Limón  Tahití " and "limon tahiti" share the same key.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(StripAccents(strings.ToLower(s))), " ")
}

// StripAccents removes diacritics while keeping the base letters.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Equal reports whether a and b fold to the same key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
