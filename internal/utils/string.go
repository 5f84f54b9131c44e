package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsSeparator checks if a rune is a separator character
func IsSeparator(r rune) bool {
	return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/'
}

// HasPrefixIgnoreCase checks if string has prefix case-insensitively
func HasPrefixIgnoreCase(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ContainsSpecialChars checks if a string contains special characters
// (non-alphanumeric characters excluding common separators)
func ContainsSpecialChars(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !IsSeparator(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// IsValidInput checks if input should be processed for completions.
// Returns false for strings that are only numbers, contain special characters, or are repetitive
func IsValidInput(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return false
	}
	if IsOnlyNumbers(s) {
		return false
	}
	if ContainsSpecialChars(s) {
		return false
	}
	return !IsRepetitive(s)
}

// IsRepetitive checks if a string is one character repeated 3+ times ("aaa", "www").
func IsRepetitive(s string) bool {
	if utf8.RuneCountInString(s) <= 2 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	for _, r := range s {
		if r != first {
			return false
		}
	}
	return true
}

// Words lowercases s and splits it on whitespace, trimming punctuation from
// each token. Empty tokens are dropped.
func Words(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// LastWord returns the word being typed at the end of text, or "" when text
// ends in whitespace.
func LastWord(text string) string {
	if text == "" {
		return ""
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if unicode.IsSpace(last) {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// RuneLen is utf8.RuneCountInString.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// ApplyCapitalization copies the upper-case positions of pattern onto word,
// so "Mer" turns "merhaba" into "Merhaba".
func ApplyCapitalization(word, pattern string) string {
	if pattern == "" {
		return word
	}
	pr := []rune(pattern)
	upper := false
	for _, r := range pr {
		if unicode.IsUpper(r) {
			upper = true
			break
		}
	}
	if !upper {
		return word
	}
	wr := []rune(word)
	for i := 0; i < len(wr) && i < len(pr); i++ {
		if unicode.IsUpper(pr[i]) {
			wr[i] = unicode.ToUpper(wr[i])
		}
	}
	return string(wr)
}
