package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase", "Fever", "fever"},
		{"diacritics stripped", "Œdème aigu", "œdeme aigu"},
		{"accents stripped", "éruption cutanée", "eruption cutanee"},
		{"whitespace collapsed", "  skin   necrosis  ", "skin necrosis"},
		{"already normal", "crackles", "crackles"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_EquivalentForms(t *testing.T) {
	// Two labels are "the same" iff their normalized forms are equal.
	assert.Equal(t, Normalize("Érythème"), Normalize("erytheme"))
	assert.NotEqual(t, Normalize("fever"), Normalize("fevers"))
}

func TestNodeKeyFor(t *testing.T) {
	assert.Equal(t, "pathology:bacterial pneumonia", NodeKeyFor(KindPathology, "Bacterial  Pneumonia"))
	assert.Equal(t, "protocol:sepsis bundle", NodeKeyFor(KindProtocol, "Sepsis Bundle"))
	assert.Empty(t, NodeKeyFor(KindPathology, "   "))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"acute", "renal", "failure"}, Tokenize("Acute Renal Failure"))
	assert.Empty(t, Tokenize(" "))
}
