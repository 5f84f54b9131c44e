package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bastiangx/wordmux/pkg/suggest"
)

// tierResult is what one stage produced, in registration order.
type tierResult struct {
	candidates []suggest.Suggestion
	sources    []suggest.Source
}

// runTier calls every provider of tier concurrently and returns whatever
// finished before the stage deadline. Late providers are not waited for;
// their results are dropped when they do return.
func (e *Engine) runTier(ctx context.Context, tier suggest.Tier, q suggest.Query, timeout time.Duration) tierResult {
	ps := e.registry.Tier(tier)
	if len(ps) == 0 {
		return tierResult{}
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		closed  bool
		results = make([][]suggest.Suggestion, len(ps))
	)
	var g errgroup.Group
	for i, p := range ps {
		g.Go(func() error {
			out, err := e.call(tctx, p, q)
			if err != nil {
				e.countError(err)
				e.log.Debug("provider dropped", "provider", p.Name(), "tier", tier, "err", err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if closed {
				e.countError(fmt.Errorf("%w: %s returned after the deadline", ErrProviderTimeout, p.Name()))
				return nil
			}
			results[i] = out
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-tctx.Done():
	}

	mu.Lock()
	closed = true
	var res tierResult
	for i, out := range results {
		if len(out) == 0 {
			continue
		}
		res.candidates = append(res.candidates, out...)
		res.sources = append(res.sources, ps[i].Name())
	}
	mu.Unlock()
	return res
}

// call runs one provider, converting its candidates. Panics and errors become
// ErrProviderFailure, missed deadlines ErrProviderTimeout. Candidates that do
// not convert are skipped.
func (e *Engine) call(ctx context.Context, p suggest.Provider, q suggest.Query) (out []suggest.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s panicked: %v", ErrProviderFailure, p.Name(), r)
		}
	}()

	raw, err := p.Suggest(ctx, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderTimeout, p.Name(), err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailure, p.Name(), err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderTimeout, p.Name())
	}

	out = make([]suggest.Suggestion, 0, len(raw))
	for _, c := range raw {
		s, err := c.ToSuggestion()
		if err != nil {
			e.log.Debug("candidate rejected", "provider", p.Name(), "err", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) countError(err error) {
	if errors.Is(err, ErrProviderTimeout) {
		e.stats.timeouts.Add(1)
		return
	}
	e.stats.failures.Add(1)
}
