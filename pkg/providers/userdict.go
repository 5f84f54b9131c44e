package providers

import (
	"context"

	"github.com/bastiangx/wordmux/pkg/suggest"
	"github.com/bastiangx/wordmux/pkg/userdict"
)

// UserDictionary completes the current word from the requesting user's own vocabulary.
type UserDictionary struct {
	dict *userdict.Dictionary
}

func NewUserDictionary(d *userdict.Dictionary) *UserDictionary {
	return &UserDictionary{dict: d}
}

func (u *UserDictionary) Name() suggest.Source { return suggest.SourceUserDictionary }
func (u *UserDictionary) Tier() suggest.Tier   { return suggest.TierFast }

func (u *UserDictionary) Suggest(_ context.Context, q suggest.Query) ([]suggest.RawCandidate, error) {
	if q.UserID == "" || q.Prefix == "" {
		return nil, nil
	}
	return raw(u.dict.Complete(q.UserID, q.Prefix, limitOf(q))), nil
}
