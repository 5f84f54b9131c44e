package providers

import (
	"context"

	"github.com/bastiangx/wordmux/pkg/suggest"
	"github.com/bastiangx/wordmux/pkg/trie"
)

// Prefix completes the current word from the dictionary index.
type Prefix struct {
	live *trie.Live
}

func NewPrefix(live *trie.Live) *Prefix {
	return &Prefix{live: live}
}

func (p *Prefix) Name() suggest.Source { return suggest.SourceTrie }
func (p *Prefix) Tier() suggest.Tier   { return suggest.TierFast }

func (p *Prefix) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	if q.Prefix == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return raw(p.live.Load().Search(q.Prefix, limitOf(q))), nil
}
