// Package providers holds the built-in suggestion sources. Each one adapts a
// single data structure to suggest.Provider and never blocks past ctx.
package providers

import (
	"context"
	"sort"
	"strings"

	"github.com/bastiangx/wordmux/pkg/suggest"
)

// Func adapts a plain function into a Provider, for model-backed or test sources.
type Func struct {
	Source suggest.Source
	Stage  suggest.Tier
	Fn     func(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error)
}

func (f Func) Name() suggest.Source { return f.Source }
func (f Func) Tier() suggest.Tier   { return f.Stage }

func (f Func) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	return f.Fn(ctx, q)
}

func raw(in []suggest.Suggestion) []suggest.RawCandidate {
	if len(in) == 0 {
		return nil
	}
	out := make([]suggest.RawCandidate, len(in))
	for i, s := range in {
		out[i] = suggest.RawCandidate{
			Word:        s.Text,
			Score:       s.Score,
			Source:      s.Source,
			Kind:        s.Kind,
			Description: s.Description,
		}
	}
	return out
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func limitOf(q suggest.Query) int {
	if q.Limit <= 0 {
		return 10
	}
	return q.Limit
}

func sortByScoreThenFreq(out []suggest.RawCandidate) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Word < out[j].Word
	})
}
