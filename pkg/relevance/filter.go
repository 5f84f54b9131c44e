// Package relevance drops candidates that have little to do with what is being typed.
package relevance

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	prefixWeight  = 0.4
	overlapWeight = 0.3
	lexicalWeight = 0.2
	domainWeight  = 0.1

	// Threshold is the minimum relevance a candidate needs to survive.
	Threshold = 0.3
)

// Filter scores and prunes candidates against the input text.
type Filter struct {
	lex *lexicon.Lexicon
}

// New returns a Filter using lex for common words and topics.
func New(lex *lexicon.Lexicon) *Filter {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Filter{lex: lex}
}

// protected candidates skip scoring entirely.
func (f *Filter) protected(s suggest.Suggestion) bool {
	switch s.Source {
	case suggest.SourceSmartCompletions, suggest.SourceContextualReply:
		return true
	}
	return f.lex.IsCommon(s.Text)
}

// Filter drops candidates whose relevance to input is below Threshold.
// Survivors score 0.5*original + 0.5*relevance*10, except common words and
// curated sources which keep their score. The result is sorted by score
// (stable) and truncated to limit.
func (f *Filter) Filter(candidates []suggest.Suggestion, input string, limit int) []suggest.Suggestion {
	out := make([]suggest.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if f.protected(c) {
			out = append(out, c)
			continue
		}
		rel := f.Score(c.Text, input)
		if rel < Threshold {
			continue
		}
		c.Score = 0.5*c.Score + 0.5*rel*10
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Score returns the relevance of candidate to input in [0,1].
func (f *Filter) Score(candidate, input string) float64 {
	input = strings.ToLower(strings.TrimSpace(input))
	candidate = strings.ToLower(strings.TrimSpace(candidate))

	if utf8.RuneCountInString(input) <= 1 {
		if input != "" && strings.HasPrefix(candidate, input) {
			return 0.9
		}
		return 0.2
	}

	in := tokens(input)
	cand := tokens(candidate)
	if len(in) == 0 || len(cand) == 0 {
		return 0.3
	}

	score := prefixWeight*prefixMatch(candidate, input) +
		overlapWeight*overlap(in, cand) +
		lexicalWeight*f.lexical(in, cand, candidate) +
		domainWeight*f.domain(input, candidate)
	return min(score, 1.0)
}

// tokens are words of at least two letters.
func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if utf8.RuneCountInString(w) >= 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

func prefixMatch(candidate, input string) float64 {
	fields := strings.Fields(input)
	last := fields[len(fields)-1]
	if utf8.RuneCountInString(last) < 2 {
		return 0.5
	}
	switch {
	case strings.HasPrefix(candidate, last):
		return 1.0
	case strings.Contains(candidate, last):
		return 0.7
	}
	return 0
}

func overlap(a, b map[string]struct{}) float64 {
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b), 1))
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func (f *Filter) lexical(in, cand map[string]struct{}, candidate string) float64 {
	if f.lex.IsCommon(candidate) {
		return 0.8
	}
	score := 0.0
	for iw := range in {
		if utf8.RuneCountInString(iw) < 3 {
			continue
		}
		for cw := range cand {
			switch {
			case strings.HasPrefix(cw, head(iw, 4)) || strings.HasPrefix(iw, head(cw, 4)):
				score += 0.3
			case strings.Contains(cw, iw) || strings.Contains(iw, cw):
				score += 0.2
			}
		}
	}
	return min(score, 1.0)
}

func (f *Filter) domain(input, candidate string) float64 {
	topic := f.lex.DetectTopic(input)
	if topic == "" {
		return 0.5
	}
	if f.lex.TopicMatches(topic, candidate) {
		return 1.0
	}
	return 0.3
}
