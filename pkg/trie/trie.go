// Package trie is the in-memory prefix index over the frequency dictionary.
//
// An Index is built once and then only read. Updates build a fresh Index and
// publish it through Live, so lookups never take a lock.
package trie

import (
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/bastiangx/wordmux/pkg/suggest"
)

type form struct {
	text string
	freq int
}

type node struct {
	keys     []rune // sorted, mirrors children
	children map[rune]*node
	terminal bool
	forms    []form
	freq     int
}

func newNode() *node {
	return &node{}
}

func (n *node) child(r rune) *node {
	if n.children == nil {
		return nil
	}
	return n.children[r]
}

func (n *node) addChild(r rune) *node {
	if c := n.child(r); c != nil {
		return c
	}
	if n.children == nil {
		n.children = make(map[rune]*node, 2)
	}
	c := newNode()
	n.children[r] = c
	i := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= r })
	n.keys = append(n.keys, 0)
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = r
	return c
}

// best returns the surface form with the highest frequency.
func (n *node) best() string {
	top := n.forms[0]
	for _, f := range n.forms[1:] {
		if f.freq > top.freq {
			top = f
		}
	}
	return top.text
}

// Index is a character trie keyed by lowercased words.
type Index struct {
	root  *node
	words int
}

// New returns an empty index.
func New() *Index {
	return &Index{root: newNode()}
}

// Build returns a new index holding every entry of freq.
func Build(freq map[string]int) *Index {
	ix := New()
	for w, f := range freq {
		ix.Insert(w, f)
	}
	return ix
}

// Insert adds word with freq. Words that only differ in case share a node and
// keep their own surface form. Insert must not race with Search; build a new
// Index and publish it through Live instead.
func (ix *Index) Insert(word string, freq int) {
	word = strings.TrimSpace(word)
	if word == "" {
		return
	}
	n := ix.root
	for _, r := range strings.ToLower(word) {
		n = n.addChild(r)
	}
	if !n.terminal {
		n.terminal = true
		ix.words++
	}
	for i := range n.forms {
		if n.forms[i].text == word {
			n.freq += freq - n.forms[i].freq
			n.forms[i].freq = freq
			return
		}
	}
	n.forms = append(n.forms, form{text: word, freq: freq})
	n.freq += freq
}

// Len returns the number of distinct lowercased words.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.words
}

func (ix *Index) walk(prefix string) *node {
	n := ix.root
	for _, r := range strings.ToLower(prefix) {
		if n = n.child(r); n == nil {
			return nil
		}
	}
	return n
}

// Lookup returns the aggregate frequency of word.
func (ix *Index) Lookup(word string) (int, bool) {
	if ix == nil || word == "" {
		return 0, false
	}
	n := ix.walk(word)
	if n == nil || !n.terminal {
		return 0, false
	}
	return n.freq, true
}

// Search returns completions of prefix ordered by score.
//
// It over-collects limit*3 words in ascending character order before sorting, so
// frequent words in a later subtree are still considered. A word scores
// (len(prefix)/len(word))*10 + freq/100.
func (ix *Index) Search(prefix string, limit int) []suggest.Suggestion {
	if ix == nil || prefix == "" || limit <= 0 {
		return nil
	}
	n := ix.walk(prefix)
	if n == nil {
		return nil
	}

	type hit struct {
		word string
		freq int
	}
	want := limit * 3
	hits := make([]hit, 0, want)

	var collect func(*node) bool
	collect = func(n *node) bool {
		if n.terminal {
			hits = append(hits, hit{word: n.best(), freq: n.freq})
			if len(hits) >= want {
				return false
			}
		}
		for _, r := range n.keys {
			if !collect(n.children[r]) {
				return false
			}
		}
		return true
	}
	collect(n)

	plen := float64(utf8.RuneCountInString(prefix))
	out := make([]suggest.Suggestion, len(hits))
	for i, h := range hits {
		wlen := float64(utf8.RuneCountInString(h.word))
		out[i] = suggest.Suggestion{
			Text:   h.word,
			Score:  (plen/wlen)*10 + float64(h.freq)/100,
			Kind:   suggest.KindCompletion,
			Source: suggest.SourceTrie,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Words calls fn for every word in ascending order until fn returns false.
func (ix *Index) Words(fn func(word string, freq int) bool) {
	if ix == nil {
		return
	}
	var visit func(*node) bool
	visit = func(n *node) bool {
		if n.terminal && !fn(n.best(), n.freq) {
			return false
		}
		for _, r := range n.keys {
			if !visit(n.children[r]) {
				return false
			}
		}
		return true
	}
	visit(ix.root)
}

// Live publishes the current Index. Readers load a snapshot and keep it for the
// whole request; writers swap in a fully built replacement.
type Live struct {
	p atomic.Pointer[Index]
}

// NewLive returns a Live holding ix, or an empty index when ix is nil.
func NewLive(ix *Index) *Live {
	if ix == nil {
		ix = New()
	}
	l := &Live{}
	l.p.Store(ix)
	return l
}

// Load returns the current snapshot.
func (l *Live) Load() *Index {
	return l.p.Load()
}

// Swap publishes ix and returns the previous snapshot.
func (l *Live) Swap(ix *Index) *Index {
	return l.p.Swap(ix)
}
