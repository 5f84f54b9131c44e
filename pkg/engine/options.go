package engine

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/wordmux/pkg/cache"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/ngram"
	"github.com/bastiangx/wordmux/pkg/providers"
	"github.com/bastiangx/wordmux/pkg/rank"
	"github.com/bastiangx/wordmux/pkg/store"
	"github.com/bastiangx/wordmux/pkg/suggest"
	"github.com/bastiangx/wordmux/pkg/trie"
	"github.com/bastiangx/wordmux/pkg/userdict"
)

// Option configures an Engine. Anything not supplied is built from Config.
type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithIndex shares a trie snapshot holder, e.g. with a dictionary watcher.
func WithIndex(live *trie.Live) Option {
	return func(e *Engine) { e.index = live }
}

func WithModel(m *ngram.Model) Option {
	return func(e *Engine) { e.model = m }
}

func WithUserDict(d *userdict.Dictionary) Option {
	return func(e *Engine) { e.users = d }
}

func WithRanker(r *rank.Engine) Option {
	return func(e *Engine) { e.ranker = r }
}

func WithHistory(h *rank.History) Option {
	return func(e *Engine) { e.history = h }
}

// WithCache memoizes whole responses. Without it every request is computed.
func WithCache(c cache.Cache[Response]) Option {
	return func(e *Engine) { e.cache = c }
}

// WithPersistence is used by the default model, user dictionary and history.
func WithPersistence(p store.Persistence) Option {
	return func(e *Engine) { e.persist = p }
}

// WithRegistry replaces the default provider set entirely.
func WithRegistry(r *suggest.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

func WithLexicon(l *lexicon.Lexicon) Option {
	return func(e *Engine) { e.lex = l }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now for debounce and rate limiting.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDictionary loads freq into the index before New returns.
func WithDictionary(freq map[string]int) Option {
	return func(e *Engine) { e.initial = freq }
}

// WithFuzzy sets the corrector. It is also registered as a provider when the
// default registry is used.
func WithFuzzy(f *providers.Fuzzy) Option {
	return func(e *Engine) { e.fuzzy = f }
}

func WithSearch(s *providers.Search) Option {
	return func(e *Engine) { e.search = s }
}
