// Package ngram learns word sequences from what users type and predicts the
// next word or the rest of a phrase.
package ngram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/store"
	"github.com/bastiangx/wordmux/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Persisted table names.
const (
	TableBigram   = "ngram.bigram"
	TableTrigram  = "ngram.trigram"
	TableQuadgram = "ngram.quadgram"
	TablePhrase   = "ngram.phrase"
)

// Score multipliers per context length. Longer contexts outrank shorter ones.
const (
	quadWeight = 10.0
	triWeight  = 8.0
	biWeight   = 6.0
)

// maxPhraseWords caps how much of a sentence is remembered as a phrase completion.
const maxPhraseWords = 4

type level struct {
	name   string
	order  int // context words
	weight float64
}

// longest context first
var levels = []level{
	{TableQuadgram, 3, quadWeight},
	{TableTrigram, 2, triWeight},
	{TableBigram, 1, biWeight},
}

// Model holds the n-gram counters. Learning is the only writer.
type Model struct {
	mu      sync.RWMutex
	tables  map[string]store.Table
	persist store.Persistence
}

// New returns an empty model. persist may be nil.
func New(persist store.Persistence) *Model {
	m := &Model{
		tables:  make(map[string]store.Table, 4),
		persist: persist,
	}
	for _, name := range []string{TableBigram, TableTrigram, TableQuadgram, TablePhrase} {
		m.tables[name] = store.Table{}
	}
	return m
}

// Load replaces the in-memory tables with the persisted ones.
func (m *Model) Load(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}
	loaded := make(map[string]store.Table, len(m.tables))
	for name := range m.tables {
		t, err := m.persist.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		loaded[name] = t
	}
	m.mu.Lock()
	m.tables = loaded
	m.mu.Unlock()
	log.Debugf("Loaded n-gram tables: %v", m.Stats())
	return nil
}

// LearnSequence counts every adjacent window of sentence and marks the
// changed tables for persistence. Sentences under two words are ignored.
func (m *Model) LearnSequence(sentence string) {
	words := utils.Words(sentence)
	if len(words) < 2 {
		return
	}

	dirty := make(map[string]bool, len(levels)+1)
	m.mu.Lock()
	for i := range words {
		for _, lv := range levels {
			end := i + lv.order
			if end >= len(words) {
				continue
			}
			key := strings.Join(words[i:end], " ")
			m.tables[lv.name].Incr(key, words[end], 1)
			dirty[lv.name] = true
		}
		for k := 1; k <= 3 && i+k < len(words); k++ {
			rest := words[i+k:]
			if len(rest) < 2 {
				continue
			}
			if len(rest) > maxPhraseWords {
				rest = rest[:maxPhraseWords]
			}
			key := strings.Join(words[i:i+k], " ")
			m.tables[TablePhrase].Incr(key, strings.Join(rest, " "), 1)
			dirty[TablePhrase] = true
		}
	}
	m.mu.Unlock()

	if m.persist == nil {
		return
	}
	for name := range dirty {
		m.persist.SaveAsync(name, m.snapshot(name))
	}
}

// snapshot copies a table when the store gets around to writing it, under
// the read lock so predictions keep running.
func (m *Model) snapshot(name string) func() store.Table {
	return func() store.Table {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.tables[name].Clone()
	}
}

type count struct {
	item string
	n    int
}

// sorted returns row ordered by count, then alphabetically.
func sorted(row map[string]int) []count {
	out := make([]count, 0, len(row))
	for item, n := range row {
		out = append(out, count{item, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].item < out[j].item
	})
	return out
}

func tail(words []string, n int) string {
	return strings.Join(words[len(words)-n:], " ")
}

// PredictNext returns likely next words after text. Quadgram hits come
// first, then trigram, then bigram; a word found at a longer context is not
// repeated at a shorter one. Scores are count×10, ×8 and ×6 by level.
//
// An empty result means nothing is known about text; callers pick their
// own fallback.
func (m *Model) PredictNext(text string, limit int) []suggest.Suggestion {
	words := utils.Words(text)
	if len(words) == 0 || limit <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []suggest.Suggestion
	for _, lv := range levels {
		if len(words) < lv.order {
			continue
		}
		for _, c := range sorted(m.tables[lv.name][tail(words, lv.order)]) {
			if seen[c.item] {
				continue
			}
			seen[c.item] = true
			out = append(out, suggest.Suggestion{
				Text:        c.item,
				Score:       float64(c.n) * lv.weight,
				Kind:        suggest.KindNextWord,
				Source:      suggest.SourceNgram,
				Description: strings.TrimPrefix(lv.name, "ngram."),
			})
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// PredictPhrases returns multi-word continuations of the last 1-3 words of text.
func (m *Model) PredictPhrases(text string, limit int) []suggest.Suggestion {
	words := utils.Words(text)
	if len(words) == 0 || limit <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var out []suggest.Suggestion
	for k := min(3, len(words)); k >= 1; k-- {
		for _, c := range sorted(m.tables[TablePhrase][tail(words, k)]) {
			if seen[c.item] {
				continue
			}
			seen[c.item] = true
			out = append(out, suggest.Suggestion{
				Text:   c.item,
				Score:  9 + float64(min(c.n, 10))/10,
				Kind:   suggest.KindPhrase,
				Source: suggest.SourcePhrase,
			})
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// Stats returns the number of context keys per table.
func (m *Model) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.tables))
	for name, t := range m.tables {
		out[name] = len(t)
	}
	return out
}
