package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	wordField        = "word"
	searchBatchSize  = 1000
	minSearchPrefix  = 2
	minFuzzySearch   = 4
	searchBaseScore  = 8.0
	searchMaxScore   = 9.5
	searchFreqScale  = 100000.0
	searchFuzzyScore = 7.0
)

// searchIndex is one immutable generation of the index. mu guards Close
// against in-flight searches.
type searchIndex struct {
	mu     sync.RWMutex
	idx    bleve.Index
	freq   map[string]int
	closed bool
}

func (s *searchIndex) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.idx.Close()
}

// Search runs prefix and fuzzy queries over an in-memory bleve index of the dictionary.
type Search struct {
	cur atomic.Pointer[searchIndex]
}

func NewSearch() *Search {
	return &Search{}
}

func newWordMapping() mapping.IndexMapping {
	field := bleve.NewTextFieldMapping()
	field.Analyzer = keyword.Name
	field.Store = false
	field.IncludeTermVectors = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(wordField, field)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// Rebuild indexes freq into a fresh index and swaps it in. The previous index
// is closed once searches running against it return.
func (s *Search) Rebuild(ctx context.Context, freq map[string]int) error {
	idx, err := bleve.NewMemOnly(newWordMapping())
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}

	lowered := make(map[string]int, len(freq))
	batch := idx.NewBatch()
	for w, n := range freq {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw == "" {
			continue
		}
		if old, ok := lowered[lw]; ok {
			lowered[lw] = max(old, n)
			continue
		}
		lowered[lw] = n
		if err := batch.Index(lw, map[string]interface{}{wordField: lw}); err != nil {
			idx.Close()
			return fmt.Errorf("index %q: %w", lw, err)
		}
		if batch.Size() >= searchBatchSize {
			if err := ctx.Err(); err != nil {
				idx.Close()
				return err
			}
			if err := idx.Batch(batch); err != nil {
				idx.Close()
				return fmt.Errorf("execute batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("execute batch: %w", err)
	}

	if old := s.cur.Swap(&searchIndex{idx: idx, freq: lowered}); old != nil {
		return old.close()
	}
	return nil
}

// Close releases the current index.
func (s *Search) Close() error {
	if cur := s.cur.Swap(nil); cur != nil {
		return cur.close()
	}
	return nil
}

func (s *Search) Name() suggest.Source { return suggest.SourceSearch }
func (s *Search) Tier() suggest.Tier   { return suggest.TierSmart }

func (s *Search) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	p := lower(q.Prefix)
	if utils.RuneLen(p) < minSearchPrefix {
		return nil, nil
	}
	cur := s.cur.Load()
	if cur == nil {
		return nil, nil
	}
	cur.mu.RLock()
	defer cur.mu.RUnlock()
	if cur.closed {
		return nil, nil
	}

	limit := limitOf(q)
	pq := bleve.NewPrefixQuery(p)
	pq.SetField(wordField)
	req := bleve.NewSearchRequest(pq)
	// prefix hits all score alike; over-fetch and order by frequency
	req.Size = limit * 4
	res, err := cur.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("prefix search: %w", err)
	}

	var out []suggest.RawCandidate
	for _, hit := range res.Hits {
		if hit.ID == p {
			continue
		}
		n := cur.freq[hit.ID]
		out = append(out, suggest.RawCandidate{
			Word:      hit.ID,
			Score:     min(searchBaseScore+float64(n)/searchFreqScale, searchMaxScore),
			Frequency: n,
			Source:    suggest.SourceSearch,
			Kind:      suggest.KindCompletion,
		})
	}
	if len(out) > 0 {
		sortByScoreThenFreq(out)
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	if utils.RuneLen(p) < minFuzzySearch {
		return nil, nil
	}
	fq := bleve.NewFuzzyQuery(p)
	fq.SetField(wordField)
	fq.SetFuzziness(1)
	req = bleve.NewSearchRequest(fq)
	req.Size = limit
	res, err = cur.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}
	for _, hit := range res.Hits {
		if hit.ID == p {
			continue
		}
		out = append(out, suggest.RawCandidate{
			Word:        hit.ID,
			Score:       searchFuzzyScore,
			Frequency:   cur.freq[hit.ID],
			Source:      suggest.SourceSearch,
			Kind:        suggest.KindCorrection,
			Description: "fuzzy",
		})
	}
	sortByScoreThenFreq(out)
	return out, nil
}

// Len is the number of indexed words.
func (s *Search) Len() int {
	cur := s.cur.Load()
	if cur == nil {
		return 0
	}
	return len(cur.freq)
}
