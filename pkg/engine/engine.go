// Package engine is the suggestion orchestrator. An Engine fans a request out
// to every registered provider in two timed stages, merges and ranks what
// comes back, and learns from what the user finally typed or picked.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/wordmux/internal/logger"
	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/cache"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/ngram"
	"github.com/bastiangx/wordmux/pkg/providers"
	"github.com/bastiangx/wordmux/pkg/rank"
	"github.com/bastiangx/wordmux/pkg/relevance"
	"github.com/bastiangx/wordmux/pkg/store"
	"github.com/bastiangx/wordmux/pkg/suggest"
	"github.com/bastiangx/wordmux/pkg/trie"
	"github.com/bastiangx/wordmux/pkg/userdict"
)

type counters struct {
	requests    atomic.Int64
	served      atomic.Int64
	debounced   atomic.Int64
	rateLimited atomic.Int64
	cacheHits   atomic.Int64
	fallbacks   atomic.Int64
	timeouts    atomic.Int64
	failures    atomic.Int64
}

// Stats is a point-in-time view of the engine counters.
type Stats struct {
	Requests         int64          `msgpack:"requests"`
	Served           int64          `msgpack:"served"`
	Debounced        int64          `msgpack:"debounced"`
	RateLimited      int64          `msgpack:"rate_limited"`
	CacheHits        int64          `msgpack:"cache_hits"`
	Fallbacks        int64          `msgpack:"fallbacks"`
	ProviderTimeouts int64          `msgpack:"provider_timeouts"`
	ProviderFailures int64          `msgpack:"provider_failures"`
	Words            int            `msgpack:"words"`
	HistoryUsers     int            `msgpack:"history_users"`
	Ngram            map[string]int `msgpack:"ngram"`
	Providers        []string       `msgpack:"providers"`
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg Config
	log *log.Logger
	now func() time.Time

	lex      *lexicon.Lexicon
	index    *trie.Live
	model    *ngram.Model
	users    *userdict.Dictionary
	history  *rank.History
	ranker   *rank.Engine
	filter   *relevance.Filter
	fuzzy    *providers.Fuzzy
	search   *providers.Search
	cache    cache.Cache[Response]
	persist  store.Persistence
	registry *suggest.Registry
	guard    *guard

	initial    map[string]int
	ownsSearch bool
	stats      counters
	closeOnce  sync.Once
}

// New builds an Engine from opts. Components not injected are created from
// the Config and share the injected Persistence.
//
// When the dictionary ends up empty, New still returns a working Engine
// together with an error wrapping ErrEmptyDictionary.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{cfg: DefaultConfig(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.normalize()
	if e.log == nil {
		e.log = logger.New("engine")
	}
	if e.lex == nil {
		e.lex = lexicon.Default()
	}
	if e.index == nil {
		e.index = trie.NewLive(nil)
	}
	if e.model == nil {
		e.model = ngram.New(e.persist)
	}
	if e.users == nil {
		e.users = userdict.New(e.persist)
	}
	if e.history == nil && e.ranker != nil {
		e.history = e.ranker.History()
	}
	if e.history == nil {
		h, err := rank.NewHistory(e.cfg.HistoryUsers, e.persist)
		if err != nil {
			return nil, err
		}
		e.history = h
	}
	if e.ranker == nil {
		e.ranker = rank.New(e.lex, e.history, e.cfg.Weights)
	}
	e.filter = relevance.New(e.lex)
	if e.fuzzy == nil {
		e.fuzzy = providers.NewFuzzy(e.cfg.Fuzzy)
	}

	if e.registry == nil {
		if e.search == nil && e.cfg.EnableSearch {
			e.search = providers.NewSearch()
			e.ownsSearch = true
		}
		r, err := e.defaultRegistry()
		if err != nil {
			e.Close()
			return nil, err
		}
		e.registry = r
	}

	g, err := newGuard(e.cfg.GuardUsers, e.cfg.Debounce, e.cfg.RateLimitPerMinute)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.guard = g

	if e.initial != nil {
		err := e.ReloadDictionary(context.Background(), e.initial)
		e.initial = nil
		if err != nil && !errors.Is(err, ErrEmptyDictionary) {
			e.Close()
			return nil, err
		}
	}
	if e.index.Load().Len() == 0 {
		return e, fmt.Errorf("engine: %w", ErrEmptyDictionary)
	}
	return e, nil
}

func (e *Engine) defaultRegistry() (*suggest.Registry, error) {
	ps := []suggest.Provider{
		providers.NewPrefix(e.index),
		providers.NewUserDictionary(e.users),
		providers.NewSmartCompletions(e.lex),
		providers.NewNextWord(e.model),
		providers.NewPhrase(e.model, e.lex),
		providers.NewDomain(e.lex),
		providers.NewEmoji(e.lex),
		e.fuzzy,
	}
	if e.search != nil {
		ps = append(ps, e.search)
	}
	ps = append(ps, providers.NewContextualReply(e.lex))
	return suggest.NewRegistry(ps...)
}

// Registry exposes the resolved provider set.
func (e *Engine) Registry() *suggest.Registry { return e.registry }

// Index is the live trie holder shared with dictionary watchers.
func (e *Engine) Index() *trie.Live { return e.index }

// Ranker gives access to weights for hot reloads.
func (e *Engine) Ranker() *rank.Engine { return e.ranker }

// Restore loads the learned state (n-grams, user dictionaries, history)
// from persistence.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.model.Load(ctx); err != nil {
		return err
	}
	if err := e.users.Load(ctx); err != nil {
		return err
	}
	return e.history.Load(ctx)
}

// ReloadDictionary rebuilds the trie, search index and fuzzy buckets from
// freq and publishes them. Requests already running keep the old snapshot.
// An empty freq keeps the current dictionary and reports ErrEmptyDictionary.
func (e *Engine) ReloadDictionary(ctx context.Context, freq map[string]int) error {
	if len(freq) == 0 {
		return fmt.Errorf("reload: %w", ErrEmptyDictionary)
	}
	start := time.Now()
	ix := trie.Build(freq)
	if e.search != nil {
		if err := e.search.Rebuild(ctx, freq); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
	}
	e.fuzzy.Rebuild(freq)
	e.index.Swap(ix)
	if e.cache != nil {
		e.cache.Clear()
	}
	e.log.Info("dictionary loaded", "words", ix.Len(), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Learn feeds a finished piece of text to the sequence model and, for a known
// user, to their dictionary.
func (e *Engine) Learn(userID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.model.LearnSequence(text)
	if userID != "" {
		e.users.AddText(userID, text)
	}
}

// Feedback records that userID picked selected while text was typed. The
// partial word being typed is replaced by the pick before learning.
func (e *Engine) Feedback(userID, text, selected string) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return
	}
	committed := strings.TrimSuffix(text, utils.LastWord(text))
	e.Learn(userID, committed)

	combined := strings.TrimSpace(committed)
	if combined != "" {
		combined += " "
	}
	combined += selected
	e.model.LearnSequence(combined)

	e.history.RecordSelection(userID, selected)
	if userID != "" {
		e.users.AddText(userID, selected)
	}
	if e.cache != nil {
		e.cache.Clear()
	}
}

// Stats snapshots the counters.
func (e *Engine) Stats() Stats {
	names := e.registry.Names()
	ps := make([]string, len(names))
	for i, n := range names {
		ps[i] = string(n)
	}
	return Stats{
		Requests:         e.stats.requests.Load(),
		Served:           e.stats.served.Load(),
		Debounced:        e.stats.debounced.Load(),
		RateLimited:      e.stats.rateLimited.Load(),
		CacheHits:        e.stats.cacheHits.Load(),
		Fallbacks:        e.stats.fallbacks.Load(),
		ProviderTimeouts: e.stats.timeouts.Load(),
		ProviderFailures: e.stats.failures.Load(),
		Words:            e.index.Load().Len(),
		HistoryUsers:     e.history.Len(),
		Ngram:            e.model.Stats(),
		Providers:        ps,
	}
}

// Close releases what New created. Injected components stay with the caller.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.ownsSearch && e.search != nil {
			err = e.search.Close()
		}
	})
	return err
}
