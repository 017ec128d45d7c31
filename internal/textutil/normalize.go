package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeKey strips every non-alphanumeric ASCII character and lowercases
// the remainder. "Greeting::0", "GREETING::0" and "greeting_0" all normalize
// to "greeting0".
func NormalizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}

// Fold returns the case-folded form of s for caseless comparison.
// Casers carry state, so each call builds its own.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// ContainsAnyFold reports whether any needle occurs in haystack ignoring case.
func ContainsAnyFold(haystack string, needles ...string) bool {
	caser := cases.Fold()
	folded := caser.String(haystack)
	for _, needle := range needles {
		if strings.Contains(folded, caser.String(needle)) {
			return true
		}
	}
	return false
}
