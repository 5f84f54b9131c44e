package providers

import (
	"context"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	domainPrefixScore = 9.2
	domainKeyScore    = 8.5
	minDomainPrefix   = 2
)

type expansion struct {
	domain string
	text   string
}

// Domain expands the current word into domain vocabulary: typing "kar" offers
// "kargo takibi", "kargo durumu" and so on.
type Domain struct {
	terms *patricia.Trie
}

// NewDomain indexes every domain term of lex. The trie is read-only afterwards.
func NewDomain(lex *lexicon.Lexicon) *Domain {
	terms := patricia.NewTrie()
	for name, entries := range lex.Domains {
		for term, exps := range entries {
			key := patricia.Prefix(strings.ToLower(term))
			var items []expansion
			if existing := terms.Get(key); existing != nil {
				items = existing.([]expansion)
			}
			for _, e := range exps {
				items = append(items, expansion{domain: name, text: e})
			}
			terms.Set(key, items)
		}
	}
	return &Domain{terms: terms}
}

func (d *Domain) Name() suggest.Source { return suggest.SourceDomain }
func (d *Domain) Tier() suggest.Tier   { return suggest.TierSmart }

func (d *Domain) Suggest(ctx context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	p := lower(q.Prefix)
	if utils.RuneLen(p) < minDomainPrefix {
		return nil, nil
	}

	var out []suggest.RawCandidate
	seen := make(map[string]bool)
	err := d.terms.VisitSubtree(patricia.Prefix(p), func(_ patricia.Prefix, item patricia.Item) error {
		items, ok := item.([]expansion)
		if !ok {
			log.Errorf("Unknown domain item type: %T", item)
			return nil
		}
		for _, e := range items {
			if seen[e.text] {
				continue
			}
			seen[e.text] = true
			score := domainKeyScore
			if strings.HasPrefix(strings.ToLower(e.text), p) {
				score = domainPrefixScore
			}
			out = append(out, suggest.RawCandidate{
				Word:        e.text,
				Score:       score,
				Source:      suggest.SourceDomain,
				Kind:        suggest.KindCompletion,
				Description: e.domain,
			})
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Word < out[j].Word
	})
	if limit := limitOf(q); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
