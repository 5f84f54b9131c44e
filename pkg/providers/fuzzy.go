package providers

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	defaultFuzzyWords   = 20000
	defaultSuggestRatio = 0.7
	defaultCorrectRatio = 0.8
	minFuzzyPrefix      = 3
	maxLenDiff          = 2
	fuzzyScale          = 9.0
	ctxCheckEvery       = 256
)

// FuzzyConfig tunes Fuzzy. Zero fields take defaults.
type FuzzyConfig struct {
	TopWords     int
	SuggestRatio float64
	CorrectRatio float64
}

type fuzzyEntry struct {
	word  string
	runes []rune
	freq  int
}

// fuzzyIndex buckets the most frequent words by first rune, most frequent first.
type fuzzyIndex struct {
	buckets map[rune][]fuzzyEntry
	words   map[string]struct{}
}

// Fuzzy finds dictionary words close to a misspelled one. It is both a
// provider and the corrector behind correctedText.
type Fuzzy struct {
	cfg FuzzyConfig
	idx atomic.Pointer[fuzzyIndex]
}

func NewFuzzy(cfg FuzzyConfig) *Fuzzy {
	if cfg.TopWords <= 0 {
		cfg.TopWords = defaultFuzzyWords
	}
	if cfg.SuggestRatio <= 0 {
		cfg.SuggestRatio = defaultSuggestRatio
	}
	if cfg.CorrectRatio <= 0 {
		cfg.CorrectRatio = defaultCorrectRatio
	}
	f := &Fuzzy{cfg: cfg}
	f.idx.Store(&fuzzyIndex{buckets: map[rune][]fuzzyEntry{}, words: map[string]struct{}{}})
	return f
}

// Rebuild replaces the buckets from freq. Concurrent lookups keep the old set.
func (f *Fuzzy) Rebuild(freq map[string]int) {
	entries := make([]fuzzyEntry, 0, len(freq))
	seen := make(map[string]struct{}, len(freq))
	for w, n := range freq {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw == "" {
			continue
		}
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		entries = append(entries, fuzzyEntry{word: lw, runes: []rune(lw), freq: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].freq != entries[j].freq {
			return entries[i].freq > entries[j].freq
		}
		return entries[i].word < entries[j].word
	})
	if len(entries) > f.cfg.TopWords {
		entries = entries[:f.cfg.TopWords]
	}

	idx := &fuzzyIndex{buckets: make(map[rune][]fuzzyEntry), words: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		idx.buckets[e.runes[0]] = append(idx.buckets[e.runes[0]], e)
		idx.words[e.word] = struct{}{}
	}
	f.idx.Store(idx)
}

func (f *Fuzzy) Name() suggest.Source { return suggest.SourceSpellcheck }
func (f *Fuzzy) Tier() suggest.Tier   { return suggest.TierSmart }

type fuzzyHit struct {
	entry fuzzyEntry
	ratio float64
}

// near returns bucket words within maxLenDiff runes of word scoring at least minRatio.
func (f *Fuzzy) near(ctx context.Context, word string, minRatio float64) ([]fuzzyHit, error) {
	wr := []rune(word)
	if len(wr) == 0 {
		return nil, nil
	}
	var hits []fuzzyHit
	for i, e := range f.idx.Load().buckets[wr[0]] {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if e.word == word {
			continue
		}
		if d := len(e.runes) - len(wr); d > maxLenDiff || d < -maxLenDiff {
			continue
		}
		r := levenshtein.RatioForStrings(wr, e.runes, levenshtein.DefaultOptions)
		if r >= minRatio {
			hits = append(hits, fuzzyHit{entry: e, ratio: r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ratio > hits[j].ratio })
	return hits, nil
}

func (f *Fuzzy) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	p := lower(q.Prefix)
	if len([]rune(p)) < minFuzzyPrefix {
		return nil, nil
	}
	hits, err := f.near(ctx, p, f.cfg.SuggestRatio)
	if err != nil {
		return nil, err
	}
	limit := limitOf(q)
	out := make([]suggest.RawCandidate, 0, min(len(hits), limit))
	for _, h := range hits {
		if len(out) >= limit {
			break
		}
		out = append(out, suggest.RawCandidate{
			Word:      h.entry.word,
			Score:     h.ratio * fuzzyScale,
			Frequency: h.entry.freq,
			Source:    suggest.SourceSpellcheck,
			Kind:      suggest.KindCorrection,
		})
	}
	return out, nil
}

// Known reports whether word is one of the indexed words.
func (f *Fuzzy) Known(word string) bool {
	_, ok := f.idx.Load().words[strings.ToLower(word)]
	return ok
}

// Correct returns the closest indexed word when it is a confident match and
// word itself is not indexed.
func (f *Fuzzy) Correct(word string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" || f.Known(w) {
		return "", false
	}
	hits, err := f.near(context.Background(), w, f.cfg.CorrectRatio)
	if err != nil || len(hits) == 0 || hits[0].ratio <= f.cfg.CorrectRatio {
		return "", false
	}
	return hits[0].entry.word, true
}
