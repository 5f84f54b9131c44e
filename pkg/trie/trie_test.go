package trie

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(t *testing.T, ix *Index, prefix string, limit int) []string {
	t.Helper()
	var out []string
	for _, s := range ix.Search(prefix, limit) {
		out = append(out, s.Text)
	}
	return out
}

func TestSearchEveryPrefix(t *testing.T) {
	dict := map[string]int{
		"merhaba":  100,
		"merak":    10,
		"müşteri":  80,
		"sipariş":  60,
		"siparişi": 5,
		"kargo":    40,
	}
	ix := Build(dict)
	require.Equal(t, len(dict), ix.Len())

	for w := range dict {
		runes := []rune(w)
		for k := 1; k < len(runes); k++ {
			prefix := string(runes[:k])
			assert.Contains(t, texts(t, ix, prefix, 50), w, "prefix %q", prefix)
		}
	}
}

func TestSearchEmptyAndMissing(t *testing.T) {
	ix := Build(map[string]int{"merhaba": 100})
	assert.Empty(t, ix.Search("", 10))
	assert.Empty(t, ix.Search("xyz", 10))
	assert.Empty(t, ix.Search("merhabalar", 10))
	assert.Empty(t, ix.Search("me", 0))

	var nilIndex *Index
	assert.Empty(t, nilIndex.Search("me", 10))
}

func TestSearchScoreOrder(t *testing.T) {
	ix := Build(map[string]int{"merhaba": 100, "merak": 10})
	got := ix.Search("me", 5)
	require.Len(t, got, 2)
	// the shorter match outweighs the frequency gap
	assert.Equal(t, "merak", got[0].Text)
	assert.Equal(t, "merhaba", got[1].Text)
	assert.InDelta(t, (2.0/5.0)*10+0.1, got[0].Score, 1e-9)
	assert.InDelta(t, (2.0/7.0)*10+1.0, got[1].Score, 1e-9)
}

func TestSearchCaseInsensitive(t *testing.T) {
	ix := Build(map[string]int{"Ankara": 50, "ankara": 5, "antalya": 20})
	got := texts(t, ix, "ANK", 5)
	assert.Equal(t, []string{"Ankara"}, got)

	freq, ok := ix.Lookup("ANKARA")
	assert.True(t, ok)
	assert.Equal(t, 55, freq)
	assert.Equal(t, 2, ix.Len())
}

func TestSearchIncludesExactWord(t *testing.T) {
	ix := Build(map[string]int{"iyi": 10, "iyilik": 3})
	assert.Contains(t, texts(t, ix, "iyi", 5), "iyi")
}

func TestSearchOverCollects(t *testing.T) {
	dict := map[string]int{"zzz": 10000}
	for i := 0; i < 20; i++ {
		dict[fmt.Sprintf("za%02d", i)] = 1
	}
	ix := Build(dict)
	// limit*3 candidates are collected in alphabetical order before scoring, so
	// "zzz" (last alphabetically) is outside the window for a tiny limit.
	assert.NotContains(t, texts(t, ix, "z", 1), "zzz")
	assert.Contains(t, texts(t, ix, "z", 7), "zzz")
	assert.Equal(t, "zzz", texts(t, ix, "z", 7)[0])
}

func TestInsertUpdatesFrequency(t *testing.T) {
	ix := New()
	ix.Insert("kargo", 10)
	ix.Insert("kargo", 30)
	ix.Insert("  ", 5)
	freq, ok := ix.Lookup("kargo")
	require.True(t, ok)
	assert.Equal(t, 30, freq)
	assert.Equal(t, 1, ix.Len())
}

func TestWordsAscending(t *testing.T) {
	ix := Build(map[string]int{"c": 1, "a": 2, "b": 3, "ab": 4})
	var got []string
	ix.Words(func(w string, _ int) bool {
		got = append(got, w)
		return true
	})
	assert.Equal(t, []string{"a", "ab", "b", "c"}, got)

	got = got[:0]
	ix.Words(func(w string, _ int) bool {
		got = append(got, w)
		return len(got) < 2
	})
	assert.Equal(t, []string{"a", "ab"}, got)
}

func TestLiveSwapKeepsSnapshot(t *testing.T) {
	live := NewLive(Build(map[string]int{"eski": 1}))
	snap := live.Load()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = live.Load().Search("e", 3)
			}
		}()
	}
	old := live.Swap(Build(map[string]int{"yeni": 1}))
	wg.Wait()

	assert.Same(t, snap, old)
	assert.NotEmpty(t, snap.Search("es", 1))
	assert.Empty(t, live.Load().Search("es", 1))
	assert.NotEmpty(t, live.Load().Search("ye", 1))

	assert.Equal(t, 0, NewLive(nil).Load().Len())
}
