package providers

import (
	"context"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const maxCuratedPrefix = 3

// SmartCompletions offers hand-picked words for very short prefixes, where the
// dictionary alone is too noisy. The first curated word scores 15, each next one 0.25 less.
type SmartCompletions struct {
	lex *lexicon.Lexicon
}

func NewSmartCompletions(lex *lexicon.Lexicon) *SmartCompletions {
	return &SmartCompletions{lex: lex}
}

func (s *SmartCompletions) Name() suggest.Source { return suggest.SourceSmartCompletions }
func (s *SmartCompletions) Tier() suggest.Tier   { return suggest.TierFast }

func (s *SmartCompletions) Suggest(_ context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	p := lower(q.Prefix)
	if p == "" || utils.RuneLen(p) > maxCuratedPrefix {
		return nil, nil
	}
	words := s.lex.SmartCompletions[p]
	limit := limitOf(q)
	var out []suggest.RawCandidate
	for i, w := range words {
		if i >= limit {
			break
		}
		out = append(out, suggest.RawCandidate{
			Word:   w,
			Score:  15 - float64(i)*0.25,
			Source: suggest.SourceSmartCompletions,
			Kind:   suggest.KindCompletion,
		})
	}
	return out, nil
}
