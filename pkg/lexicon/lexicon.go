// Package lexicon loads the word lists that steer relevance and ranking:
// common words, topic keywords, support and blocked terms, intents, emoji,
// domain expansions, curated completions and contextual replies.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Intent maps trigger words in a context message to words a fitting reply contains.
type Intent struct {
	Weight    float64  `yaml:"weight"`
	Triggers  []string `yaml:"triggers"`
	Responses []string `yaml:"responses"`
}

// ReplyRule offers Replies when a context message contains any trigger.
type ReplyRule struct {
	Triggers []string `yaml:"triggers"`
	Replies  []string `yaml:"replies"`
}

// Lexicon is read-only after Parse.
type Lexicon struct {
	CommonWords      []string                       `yaml:"common_words"`
	Topics           map[string][]string            `yaml:"topics"`
	SupportTerms     []string                       `yaml:"support_terms"`
	BlockedTerms     []string                       `yaml:"blocked_terms"`
	Intents          map[string]Intent              `yaml:"intents"`
	Emoji            map[string][]string            `yaml:"emoji"`
	Domains          map[string]map[string][]string `yaml:"domains"`
	SmartCompletions map[string][]string            `yaml:"smart_completions"`
	SmartReplies     []ReplyRule                    `yaml:"smart_replies"`
	Phrases          []string                       `yaml:"phrases"`

	common  map[string]struct{}
	support map[string]struct{}
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the built-in lexicon.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lx, err := decode(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded default is invalid: %v", err))
		}
		lx.index()
		defaultLex = lx
	})
	return defaultLex
}

func decode(data []byte) (*Lexicon, error) {
	lx := &Lexicon{}
	if err := yaml.Unmarshal(data, lx); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return lx, nil
}

// Parse decodes a lexicon. Sections absent from data keep the built-in values.
func Parse(data []byte) (*Lexicon, error) {
	lx, err := decode(data)
	if err != nil {
		return nil, err
	}
	lx.fill(Default())
	lx.index()
	return lx, nil
}

// Load reads a lexicon file. An empty path returns Default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return Parse(data)
}

func (l *Lexicon) fill(d *Lexicon) {
	if l.CommonWords == nil {
		l.CommonWords = d.CommonWords
	}
	if l.Topics == nil {
		l.Topics = d.Topics
	}
	if l.SupportTerms == nil {
		l.SupportTerms = d.SupportTerms
	}
	if l.BlockedTerms == nil {
		l.BlockedTerms = d.BlockedTerms
	}
	if l.Intents == nil {
		l.Intents = d.Intents
	}
	if l.Emoji == nil {
		l.Emoji = d.Emoji
	}
	if l.Domains == nil {
		l.Domains = d.Domains
	}
	if l.SmartCompletions == nil {
		l.SmartCompletions = d.SmartCompletions
	}
	if l.SmartReplies == nil {
		l.SmartReplies = d.SmartReplies
	}
	if l.Phrases == nil {
		l.Phrases = d.Phrases
	}
}

func set(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

func (l *Lexicon) index() {
	l.common = set(l.CommonWords)
	l.support = set(l.SupportTerms)
}

// IsCommon reports whether word is in the curated common-word set.
func (l *Lexicon) IsCommon(word string) bool {
	_, ok := l.common[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// IsSupportTerm reports whether any word of text is support vocabulary.
func (l *Lexicon) IsSupportTerm(text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := l.support[w]; ok {
			return true
		}
	}
	return false
}

// IsBlocked reports whether text mentions a blocked term.
func (l *Lexicon) IsBlocked(text string) bool {
	lower := " " + strings.ToLower(text) + " "
	for _, b := range l.BlockedTerms {
		if strings.Contains(lower, " "+strings.ToLower(b)+" ") {
			return true
		}
	}
	return false
}

// DetectTopic returns the first topic, in name order, with a keyword contained
// in text, or "".
func (l *Lexicon) DetectTopic(text string) string {
	lower := strings.ToLower(text)
	for _, name := range sortedKeys(l.Topics) {
		for _, kw := range l.Topics[name] {
			if strings.Contains(lower, kw) {
				return name
			}
		}
	}
	return ""
}

// TopicMatches reports whether text contains a keyword of topic.
func (l *Lexicon) TopicMatches(topic, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range l.Topics[topic] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectIntents returns the intents whose triggers appear in message, sorted.
func (l *Lexicon) DetectIntents(message string) []string {
	lower := " " + strings.ToLower(message)
	var out []string
	for _, name := range sortedKeys(l.Intents) {
		for _, tr := range l.Intents[name].Triggers {
			if strings.Contains(lower, tr) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// Replies returns the replies of the first rule triggered by message.
func (l *Lexicon) Replies(message string) []string {
	lower := strings.ToLower(message)
	for _, r := range l.SmartReplies {
		for _, tr := range r.Triggers {
			if strings.Contains(lower, tr) {
				return r.Replies
			}
		}
	}
	return nil
}
