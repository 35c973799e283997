package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize produces the canonical matching form of a label: lowercase,
// diacritics stripped, trimmed, internal whitespace collapsed. It is the
// single normalization used everywhere labels are compared; two labels are
// "the same" if and only if their normalized forms are equal.
func Normalize(label string) string {
	lowered := strings.ToLower(strings.TrimSpace(label))

	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripper, lowered)
	if err != nil {
		// Transform failures leave the lowered form; matching degrades to
		// accent-sensitive rather than failing the caller.
		folded = lowered
	}

	return strings.Join(strings.Fields(folded), " ")
}

// NodeKeyFor derives the upsert identity of a node from its kind and display
// label. The key is stable under case, accents and spacing differences.
func NodeKeyFor(kind NodeKind, label string) string {
	normalized := Normalize(label)
	if normalized == "" {
		return ""
	}
	return string(kind) + ":" + normalized
}

// Tokenize splits a normalized label into words.
func Tokenize(label string) []string {
	return strings.Fields(Normalize(label))
}
