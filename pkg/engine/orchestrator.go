package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/rank"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

// Stage tells a client whether more results are coming.
type Stage string

const (
	StageFast     Stage = "fast"
	StageEnhanced Stage = "enhanced"
)

const sourceCache = "cache"

// PredictRequest is one keystroke's worth of input.
type PredictRequest struct {
	Text           string
	Context        *string // message being replied to, if any
	MaxSuggestions int
	UserID         string
}

// Response is the merged, ranked result. A debounced or rate-limited request
// gets an empty Response with the matching flag set.
type Response struct {
	Suggestions   []suggest.Suggestion
	CorrectedText *string
	SourcesUsed   []string
	Debounced     bool
	RateLimited   bool
	Stage         Stage
	Elapsed       time.Duration
}

// Predict runs both stages and returns the final response. It never fails;
// provider problems only shrink the result.
func (e *Engine) Predict(ctx context.Context, req PredictRequest) Response {
	return e.predict(ctx, req, nil)
}

// PredictStaged calls emit with the fast-stage response as soon as the fast
// tier is joined, then once more with the final one. Rejected and cached
// requests emit only once.
func (e *Engine) PredictStaged(ctx context.Context, req PredictRequest, emit func(Response)) {
	emit(e.predict(ctx, req, emit))
}

func (e *Engine) predict(ctx context.Context, req PredictRequest, early func(Response)) Response {
	start := time.Now()
	e.stats.requests.Add(1)
	l := e.log
	if l.GetLevel() <= log.DebugLevel {
		l = l.With("req", uuid.NewString())
	}

	if err := e.guard.admit(req.UserID, e.now()); err != nil {
		return e.rejected(err)
	}

	limit := e.limit(req.MaxSuggestions)
	key := cacheKey(req, limit)
	if e.cache != nil {
		if hit, ok := e.cache.Get(key); ok {
			e.stats.cacheHits.Add(1)
			hit.Suggestions = append([]suggest.Suggestion(nil), hit.Suggestions...)
			hit.SourcesUsed = []string{sourceCache}
			hit.Elapsed = time.Since(start)
			return hit
		}
	}

	q := suggest.Query{
		Text:   req.Text,
		Prefix: utils.LastWord(req.Text),
		Limit:  limit,
		UserID: req.UserID,
	}
	if req.Context != nil {
		q.Context = *req.Context
	}

	smart := make(chan tierResult, 1)
	go func() {
		smart <- e.runTier(ctx, suggest.TierSmart, q, e.cfg.SmartTimeout)
	}()
	fast := e.runTier(ctx, suggest.TierFast, q, e.cfg.FastTimeout)
	corrected := e.correct(req.Text)

	if early != nil {
		resp := e.assemble(req, q, fast, StageFast)
		resp.CorrectedText = corrected
		resp.Elapsed = time.Since(start)
		early(resp)
	}

	sr := <-smart
	all := tierResult{
		candidates: append(append([]suggest.Suggestion(nil), fast.candidates...), sr.candidates...),
		sources:    append(append([]suggest.Source(nil), fast.sources...), sr.sources...),
	}
	resp := e.assemble(req, q, all, StageEnhanced)
	resp.CorrectedText = corrected
	resp.Elapsed = time.Since(start)
	e.stats.served.Add(1)

	if e.cache != nil {
		e.cache.Set(key, resp, e.cfg.CacheTTL)
	}
	shown := make([]string, len(resp.Suggestions))
	for i, s := range resp.Suggestions {
		shown[i] = s.Text
	}
	e.history.RecordImpressions(req.UserID, shown)

	l.Debug("predicted", "text", req.Text, "results", len(resp.Suggestions), "sources", resp.SourcesUsed, "took", resp.Elapsed)
	return resp
}

func (e *Engine) rejected(err error) Response {
	resp := Response{
		Suggestions: []suggest.Suggestion{},
		SourcesUsed: []string{Reason(err)},
		Stage:       StageEnhanced,
	}
	if errors.Is(err, ErrRateLimited) {
		resp.RateLimited = true
		e.stats.rateLimited.Add(1)
	} else {
		resp.Debounced = true
		e.stats.debounced.Add(1)
	}
	return resp
}

// assemble turns one stage's candidates into a response: merge, filter, rank,
// re-case, and fall back to the dictionary when nothing survived.
func (e *Engine) assemble(req PredictRequest, q suggest.Query, res tierResult, stage Stage) Response {
	list := merge(res.candidates, q.Prefix, e.lex)

	if e.cfg.EnableFilter && q.Prefix != "" &&
		len(list) > e.cfg.FilterMinCandidates &&
		utils.RuneLen(q.Prefix) >= e.cfg.FilterMinWord {
		list = e.filter.Filter(list, req.Text, len(list))
	}

	list = e.ranker.Rank(list, rank.Context{Text: req.Text, Prefix: q.Prefix, Message: q.Context}, req.UserID)
	if len(list) > q.Limit {
		list = list[:q.Limit]
	}
	if q.Prefix != "" {
		for i := range list {
			if utils.HasPrefixIgnoreCase(list[i].Text, q.Prefix) {
				list[i].Text = utils.ApplyCapitalization(list[i].Text, q.Prefix)
			}
		}
	}

	sources := make([]string, 0, len(res.sources)+1)
	for _, s := range res.sources {
		sources = append(sources, string(s))
	}
	if len(list) == 0 && strings.TrimSpace(req.Text) != "" {
		if fb := e.fallback(req.Text, q.Limit); len(fb) > 0 {
			list = fb
			sources = append(sources, string(suggest.SourceDictionaryFallback))
			if stage == StageEnhanced {
				e.stats.fallbacks.Add(1)
			}
		}
	}
	if list == nil {
		list = []suggest.Suggestion{}
	}
	return Response{Suggestions: list, SourcesUsed: sources, Stage: stage}
}

// fallback searches the trie with the last word, dropping one rune at a time
// until something matches.
func (e *Engine) fallback(text string, limit int) []suggest.Suggestion {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	word := fields[len(fields)-1]
	runes := []rune(strings.ToLower(word))
	ix := e.index.Load()
	for n := len(runes); n >= max(e.cfg.FallbackMinPrefix, 1); n-- {
		var out []suggest.Suggestion
		for _, h := range ix.Search(string(runes[:n]), limit+1) {
			if strings.EqualFold(h.Text, word) {
				continue
			}
			out = append(out, suggest.Suggestion{
				Text:   h.Text,
				Score:  e.cfg.FallbackScore,
				Kind:   suggest.KindCompletion,
				Source: suggest.SourceDictionaryFallback,
			})
			if len(out) == limit {
				break
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// correct returns text with its last word fixed, or nil when the word is short,
// already a dictionary word, or has no confident match.
func (e *Engine) correct(text string) *string {
	fields := strings.Fields(text)
	if len(fields) == 0 || e.fuzzy == nil {
		return nil
	}
	word := fields[len(fields)-1]
	if utils.RuneLen(word) <= e.cfg.CorrectionMinLen {
		return nil
	}
	if _, ok := e.index.Load().Lookup(word); ok {
		return nil
	}
	fixed, ok := e.fuzzy.Correct(word)
	if !ok {
		return nil
	}
	fixed = utils.ApplyCapitalization(fixed, word)
	i := strings.LastIndex(text, word)
	out := text[:i] + fixed + text[i+len(word):]
	return &out
}

func (e *Engine) limit(n int) int {
	switch {
	case n <= 0:
		return e.cfg.DefaultLimit
	case e.cfg.MaxLimit > 0 && n > e.cfg.MaxLimit:
		return e.cfg.MaxLimit
	}
	return n
}

func cacheKey(req PredictRequest, limit int) string {
	var msg string
	if req.Context != nil {
		msg = *req.Context
	}
	return fmt.Sprintf("%s|%s|%d|%s", req.UserID, msg, limit, req.Text)
}
