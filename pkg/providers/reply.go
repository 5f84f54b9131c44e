package providers

import (
	"context"
	"strings"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	replyScore    = 9.5
	maxReplyInput = 3
)

// ContextualReply proposes whole replies to the message being answered, but
// only before the user has typed more than a few characters.
type ContextualReply struct {
	lex *lexicon.Lexicon
}

func NewContextualReply(lex *lexicon.Lexicon) *ContextualReply {
	return &ContextualReply{lex: lex}
}

func (c *ContextualReply) Name() suggest.Source { return suggest.SourceContextualReply }
func (c *ContextualReply) Tier() suggest.Tier   { return suggest.TierSmart }

func (c *ContextualReply) Suggest(_ context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	text := strings.TrimSpace(q.Text)
	if strings.TrimSpace(q.Context) == "" || utils.RuneLen(text) > maxReplyInput {
		return nil, nil
	}

	limit := limitOf(q)
	var out []suggest.RawCandidate
	for _, r := range c.lex.Replies(q.Context) {
		if text != "" && !utils.HasPrefixIgnoreCase(r, text) {
			continue
		}
		out = append(out, suggest.RawCandidate{
			Word:   r,
			Score:  replyScore,
			Source: suggest.SourceContextualReply,
			Kind:   suggest.KindSmartReply,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
