package providers

import (
	"context"
	"strings"

	"github.com/bastiangx/wordmux/pkg/ngram"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

// NextWord predicts the following word from the n-gram model. While a word is
// being typed, the words before it are the context and predictions must start
// with it.
type NextWord struct {
	model *ngram.Model
}

func NewNextWord(m *ngram.Model) *NextWord {
	return &NextWord{model: m}
}

func (n *NextWord) Name() suggest.Source { return suggest.SourceNgram }
func (n *NextWord) Tier() suggest.Tier   { return suggest.TierSmart }

func (n *NextWord) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	head := q.Text
	prefix := lower(q.Prefix)
	if prefix != "" {
		head = strings.TrimSuffix(strings.TrimRightFunc(q.Text, isSpace), q.Prefix)
	}
	if strings.TrimSpace(head) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := limitOf(q)
	// over-fetch when filtering by prefix
	preds := n.model.PredictNext(head, limit*4)
	var out []suggest.Suggestion
	for _, p := range preds {
		if prefix != "" && (!strings.HasPrefix(p.Text, prefix) || p.Text == prefix) {
			continue
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return raw(out), nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
