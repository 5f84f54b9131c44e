// Package userdict keeps each user's personal vocabulary. Words a user types or
// picks are counted and offered back ahead of the general dictionary.
package userdict

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
	"github.com/tchap/go-patricia/v2/patricia"
)

// TableName is the persisted table: user ID -> word -> count.
const TableName = "userdict"

const minWordLen = 2

// Dictionary is safe for concurrent use.
type Dictionary struct {
	mu      sync.RWMutex
	tries   map[string]*patricia.Trie
	counts  store.Table
	persist store.Persistence
}

// New returns an empty dictionary. persist may be nil.
func New(persist store.Persistence) *Dictionary {
	return &Dictionary{
		tries:   make(map[string]*patricia.Trie),
		counts:  store.Table{},
		persist: persist,
	}
}

// Load rebuilds every user's trie from the persisted table.
func (d *Dictionary) Load(ctx context.Context) error {
	if d.persist == nil {
		return nil
	}
	t, err := d.persist.Load(ctx, TableName)
	if err != nil {
		return fmt.Errorf("load %s: %w", TableName, err)
	}
	tries := make(map[string]*patricia.Trie, len(t))
	for user, words := range t {
		trie := patricia.NewTrie()
		for w, n := range words {
			trie.Set(patricia.Prefix(w), n)
		}
		tries[user] = trie
	}

	d.mu.Lock()
	d.tries = tries
	d.counts = t
	d.mu.Unlock()
	log.Debugf("Loaded user dictionaries for %d users", len(t))
	return nil
}

// Add counts one use of word by userID.
func (d *Dictionary) Add(userID, word string) {
	d.AddText(userID, word)
}

// AddText counts every word of text.
func (d *Dictionary) AddText(userID, text string) {
	words := utils.Words(text)
	var added bool

	d.mu.Lock()
	trie := d.tries[userID]
	if trie == nil {
		trie = patricia.NewTrie()
		d.tries[userID] = trie
	}
	for _, w := range words {
		if utils.RuneLen(w) < minWordLen || utils.IsOnlyNumbers(w) {
			continue
		}
		d.counts.Incr(userID, w, 1)
		trie.Set(patricia.Prefix(w), d.counts[userID][w])
		added = true
	}
	d.mu.Unlock()

	if added && d.persist != nil {
		d.persist.SaveAsync(TableName, d.snapshot)
	}
}

func (d *Dictionary) snapshot() store.Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counts.Clone()
}

// Count returns how often userID used word.
func (d *Dictionary) Count(userID, word string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counts[userID][strings.ToLower(word)]
}

// Len returns the size of userID's vocabulary.
func (d *Dictionary) Len(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.counts[userID])
}

// Complete returns userID's words starting with prefix, most used first.
// A word scores 9.5 plus a tenth of its use count (capped at 20 uses).
func (d *Dictionary) Complete(userID, prefix string, limit int) []suggest.Suggestion {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || limit <= 0 {
		return nil
	}

	type hit struct {
		word string
		n    int
	}
	var hits []hit

	d.mu.RLock()
	trie := d.tries[userID]
	if trie != nil {
		err := trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
			n, ok := item.(int)
			if !ok {
				log.Errorf("Unknown item type: %T for word %s", item, p)
				return nil
			}
			hits = append(hits, hit{string(p), n})
			return nil
		})
		if err != nil {
			log.Errorf("Error visiting user trie: %v", err)
		}
	}
	d.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].n != hits[j].n {
			return hits[i].n > hits[j].n
		}
		return hits[i].word < hits[j].word
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]suggest.Suggestion, len(hits))
	for i, h := range hits {
		out[i] = suggest.Suggestion{
			Text:   h.word,
			Score:  9.5 + float64(min(h.n, 20))/10,
			Kind:   suggest.KindCompletion,
			Source: suggest.SourceUserDictionary,
		}
	}
	return out
}
