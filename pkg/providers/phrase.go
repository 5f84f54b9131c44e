package providers

import (
	"context"
	"strings"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/ngram"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	minPhraseInput = 2
	lexPhraseScore = 9.0
)

// Phrase offers multi-word continuations: learned ones from the n-gram model
// first, then stock phrases from the lexicon that extend the typed text.
type Phrase struct {
	model *ngram.Model
	lex   *lexicon.Lexicon
}

func NewPhrase(m *ngram.Model, lex *lexicon.Lexicon) *Phrase {
	return &Phrase{model: m, lex: lex}
}

func (p *Phrase) Name() suggest.Source { return suggest.SourcePhrase }
func (p *Phrase) Tier() suggest.Tier   { return suggest.TierSmart }

func (p *Phrase) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	text := lower(q.Text)
	if utils.RuneLen(text) < minPhraseInput {
		return nil, nil
	}
	limit := limitOf(q)

	var out []suggest.RawCandidate
	if q.Prefix == "" {
		out = raw(p.model.PredictPhrases(text, limit))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, ph := range p.lex.Phrases {
		if len(out) >= limit {
			break
		}
		lp := strings.ToLower(ph)
		if lp == text || !strings.HasPrefix(lp, text) {
			continue
		}
		out = append(out, suggest.RawCandidate{
			Word:   ph,
			Score:  lexPhraseScore,
			Source: suggest.SourcePhrase,
			Kind:   suggest.KindPhrase,
		})
	}
	return out, nil
}
