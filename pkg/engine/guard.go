package engine

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// guard applies the per-user rate limit and debounce window. Both keep
// bounded per-user state; the least recently seen users are dropped first.
type guard struct {
	mu       sync.Mutex
	debounce time.Duration
	last     *lru.Cache[string, time.Time]

	perMinute int
	limiters  *lru.Cache[string, *rate.Limiter]
}

func newGuard(size int, debounce time.Duration, perMinute int) (*guard, error) {
	if size <= 0 {
		size = 10000
	}
	last, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("debounce cache: %w", err)
	}
	limiters, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, fmt.Errorf("limiter cache: %w", err)
	}
	return &guard{debounce: debounce, last: last, perMinute: perMinute, limiters: limiters}, nil
}

// admit returns ErrRateLimited or ErrDebounced when the request should not
// be served. Rejected requests do not move the debounce window.
func (g *guard) admit(user string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.perMinute > 0 {
		lim, ok := g.limiters.Get(user)
		if !ok {
			lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.perMinute)), g.perMinute)
			g.limiters.Add(user, lim)
		}
		if !lim.AllowN(now, 1) {
			return fmt.Errorf("%w: user %q", ErrRateLimited, user)
		}
	}

	if g.debounce > 0 {
		if prev, ok := g.last.Get(user); ok && now.Sub(prev) < g.debounce {
			return fmt.Errorf("%w: user %q", ErrDebounced, user)
		}
		g.last.Add(user, now)
	}
	return nil
}
