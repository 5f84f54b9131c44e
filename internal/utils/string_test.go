package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidInput(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"merhaba", true},
		{"iyi gün", true},
		{"", false},
		{"   ", false},
		{"12345", false},
		{"a$b", false},
		{"www", false},
		{"ww", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidInput(tt.in), tt.in)
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"iyi", "günler", "dilerim"}, Words("  İyi günler, dilerim! "))
	assert.Empty(t, Words(" ... "))
}

func TestLastWord(t *testing.T) {
	assert.Equal(t, "gün", LastWord("iyi gün"))
	assert.Equal(t, "", LastWord("iyi "))
	assert.Equal(t, "", LastWord(""))
	assert.Equal(t, "me", LastWord("me"))
}

func TestApplyCapitalization(t *testing.T) {
	assert.Equal(t, "Merhaba", ApplyCapitalization("merhaba", "Mer"))
	assert.Equal(t, "merhaba", ApplyCapitalization("merhaba", "mer"))
	assert.Equal(t, "ÇOK", ApplyCapitalization("çok", "ÇOK"))
	assert.Equal(t, "AB", ApplyCapitalization("ab", "ABCD"))
}
