// Package suggest holds the types every provider and the orchestrator agree on:
// suggestions, raw provider candidates, and the Provider capability itself.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCandidate is returned when a RawCandidate cannot be mapped onto a Suggestion.
var ErrInvalidCandidate = errors.New("invalid candidate")

// Kind says what a suggestion does to the text being typed.
type Kind string

const (
	KindCorrection   Kind = "correction"
	KindCompletion   Kind = "completion"
	KindNextWord     Kind = "next_word"
	KindPhrase       Kind = "phrase"
	KindAIGeneration Kind = "ai_generation"
	KindSmartReply   Kind = "smart_reply"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCorrection, KindCompletion, KindNextWord, KindPhrase, KindAIGeneration, KindSmartReply:
		return true
	}
	return false
}

// Source names the provider a candidate came from.
type Source string

const (
	SourceTrie               Source = "trie_index"
	SourceUserDictionary     Source = "user_dictionary"
	SourceNgram              Source = "ngram"
	SourcePhrase             Source = "phrase_completion"
	SourceDomain             Source = "domain_dictionary"
	SourceEmoji              Source = "emoji"
	SourceSmartCompletions   Source = "smart_completions"
	SourceSpellcheck         Source = "spellcheck"
	SourceSearch             Source = "search"
	SourceContextualReply    Source = "contextual_reply"
	SourceModel              Source = "ml_model"
	SourceDictionaryFallback Source = "dictionary_fallback"
)

var knownSources = map[Source]struct{}{
	SourceTrie: {}, SourceUserDictionary: {}, SourceNgram: {}, SourcePhrase: {},
	SourceDomain: {}, SourceEmoji: {}, SourceSmartCompletions: {}, SourceSpellcheck: {},
	SourceSearch: {}, SourceContextualReply: {}, SourceModel: {}, SourceDictionaryFallback: {},
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	_, ok := knownSources[s]
	return ok
}

// Suggestion is one entry of the list returned to a client.
type Suggestion struct {
	Text        string  `msgpack:"w"`
	Score       float64 `msgpack:"s"`
	Kind        Kind    `msgpack:"k"`
	Source      Source  `msgpack:"src"`
	Description string  `msgpack:"d,omitempty"`
}

// RawCandidate is what a Provider hands back before the orchestrator touches it.
type RawCandidate struct {
	Word        string
	Score       float64
	Frequency   int
	Source      Source
	Kind        Kind
	Description string
}

// ToSuggestion converts c without coercion. Anything that does not map cleanly is rejected.
func (c RawCandidate) ToSuggestion() (Suggestion, error) {
	text := strings.TrimSpace(c.Word)
	if text == "" {
		return Suggestion{}, fmt.Errorf("%w: empty word from %q", ErrInvalidCandidate, c.Source)
	}
	if !c.Source.Valid() {
		return Suggestion{}, fmt.Errorf("%w: unknown source %q", ErrInvalidCandidate, c.Source)
	}
	if !c.Kind.Valid() {
		return Suggestion{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCandidate, c.Kind)
	}
	return Suggestion{
		Text:        text,
		Score:       c.Score,
		Kind:        c.Kind,
		Source:      c.Source,
		Description: c.Description,
	}, nil
}

// Tier decides which fan-out stage a provider runs in.
type Tier int

const (
	// TierFast providers read in-memory structures only.
	TierFast Tier = iota
	// TierSmart providers may do heavier or remote work.
	TierSmart
)

func (t Tier) String() string {
	if t == TierFast {
		return "fast"
	}
	return "smart"
}

// Query is the per-request input a provider sees.
type Query struct {
	// Text is the full text typed so far, untrimmed.
	Text string
	// Prefix is the word currently being typed, empty when Text ends in whitespace.
	Prefix string
	// Context is an optional message the user is replying to.
	Context string
	Limit   int
	UserID  string
}

// Provider is the single capability the orchestrator fans out to.
// The budget for a call is the deadline carried by ctx.
type Provider interface {
	Name() Source
	Tier() Tier
	Suggest(ctx context.Context, q Query) ([]RawCandidate, error)
}
