package engine

import (
	"strings"

	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	corroborationBonus = 0.5
	commonWordBoost    = 3.5
	commonLeadBoost    = 2.0
)

type merged struct {
	s       suggest.Suggestion
	sources map[suggest.Source]struct{}
	bonus   float64
}

// merge dedups candidates case-insensitively in arrival order. A duplicate
// keeps the higher score and earns a bonus for each other source that
// produced it. The word being typed is never suggested back.
func merge(candidates []suggest.Suggestion, prefix string, lex *lexicon.Lexicon) []suggest.Suggestion {
	typed := strings.ToLower(strings.TrimSpace(prefix))
	byKey := make(map[string]*merged, len(candidates))
	order := make([]*merged, 0, len(candidates))

	for _, c := range candidates {
		k := strings.ToLower(strings.TrimSpace(c.Text))
		if k == "" || k == typed {
			continue
		}
		m, ok := byKey[k]
		if !ok {
			m = &merged{s: c, sources: map[suggest.Source]struct{}{c.Source: {}}}
			byKey[k] = m
			order = append(order, m)
			continue
		}
		if c.Score > m.s.Score {
			m.s = c
		}
		if _, seen := m.sources[c.Source]; !seen {
			m.sources[c.Source] = struct{}{}
			m.bonus += corroborationBonus
		}
	}

	out := make([]suggest.Suggestion, len(order))
	for i, m := range order {
		s := m.s
		s.Score += m.bonus + commonBoost(s.Text, lex)
		out[i] = s
	}
	return out
}

func commonBoost(text string, lex *lexicon.Lexicon) float64 {
	fields := strings.Fields(strings.ToLower(text))
	switch {
	case len(fields) == 1 && lex.IsCommon(fields[0]):
		return commonWordBoost
	case len(fields) > 1 && lex.IsCommon(fields[0]):
		return commonLeadBoost
	}
	return 0
}
