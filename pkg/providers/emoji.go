package providers

import (
	"context"
	"sort"
	"strings"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	emojiExactScore  = 9.0
	emojiPrefixScore = 8.0
	minEmojiPrefix   = 2
)

// Emoji offers emoji for the word being typed, or for the last word once it is finished.
type Emoji struct {
	lex  *lexicon.Lexicon
	keys []string
}

func NewEmoji(lex *lexicon.Lexicon) *Emoji {
	keys := make([]string, 0, len(lex.Emoji))
	for k := range lex.Emoji {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Emoji{lex: lex, keys: keys}
}

func (e *Emoji) Name() suggest.Source { return suggest.SourceEmoji }
func (e *Emoji) Tier() suggest.Tier   { return suggest.TierSmart }

func (e *Emoji) Suggest(_ context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	word := lower(q.Prefix)
	if word == "" {
		if words := utils.Words(q.Text); len(words) > 0 {
			word = words[len(words)-1]
		}
	}
	if utils.RuneLen(word) < minEmojiPrefix {
		return nil, nil
	}

	limit := limitOf(q)
	var out []suggest.RawCandidate
	seen := make(map[string]bool)
	add := func(key string, score float64) {
		for _, em := range e.lex.Emoji[key] {
			if seen[em] || len(out) >= limit {
				continue
			}
			seen[em] = true
			out = append(out, suggest.RawCandidate{
				Word:        em,
				Score:       score,
				Source:      suggest.SourceEmoji,
				Kind:        suggest.KindCompletion,
				Description: "emoji",
			})
		}
	}

	add(word, emojiExactScore)
	for _, k := range e.keys {
		if k != word && strings.HasPrefix(k, word) {
			add(k, emojiPrefixScore)
		}
	}
	return out, nil
}
