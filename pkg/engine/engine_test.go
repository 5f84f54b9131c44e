package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bastiangx/wordmux/internal/logger"
	"github.com/bastiangx/wordmux/pkg/cache"
	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/providers"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/blevesearch/bleve_index_api.AnalysisWorker"))
}

var testDict = map[string]int{
	"merhaba":  900,
	"merak":    400,
	"kalem":    300,
	"kalemlik": 120,
	"kitap":    250,
	"kargo":    200,
	"xyzabc":   40,
	"xyzdef":   30,
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Debounce = 0
	cfg.EnableSearch = false
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithConfig(testConfig()), WithLogger(logger.Discard()), WithDictionary(testDict)}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func registry(t *testing.T, ps ...suggest.Provider) Option {
	t.Helper()
	r, err := suggest.NewRegistry(ps...)
	require.NoError(t, err)
	return WithRegistry(r)
}

func static(src suggest.Source, tier suggest.Tier, words ...string) providers.Func {
	return providers.Func{Source: src, Stage: tier, Fn: func(context.Context, suggest.Query) ([]suggest.RawCandidate, error) {
		out := make([]suggest.RawCandidate, len(words))
		for i, w := range words {
			out[i] = suggest.RawCandidate{Word: w, Score: 8, Source: src, Kind: suggest.KindCompletion}
		}
		return out, nil
	}}
}

// slow answers after d unless its deadline passes first.
func slow(src suggest.Source, tier suggest.Tier, d time.Duration, word string) providers.Func {
	return providers.Func{Source: src, Stage: tier, Fn: func(ctx context.Context, _ suggest.Query) ([]suggest.RawCandidate, error) {
		select {
		case <-time.After(d):
			return []suggest.RawCandidate{{Word: word, Score: 9, Source: src, Kind: suggest.KindCompletion}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

func texts(r Response) []string {
	out := make([]string, len(r.Suggestions))
	for i, s := range r.Suggestions {
		out[i] = s.Text
	}
	return out
}

func TestMergeCorroboration(t *testing.T) {
	lex := lexicon.Default()
	got := merge([]suggest.Suggestion{
		{Text: "kalem", Score: 5, Kind: suggest.KindCompletion, Source: suggest.SourceTrie},
		{Text: "Kalem ", Score: 7, Kind: suggest.KindCompletion, Source: suggest.SourceNgram},
	}, "", lex)
	require.Len(t, got, 1)
	assert.GreaterOrEqual(t, got[0].Score, 7.5)
	assert.Equal(t, suggest.SourceNgram, got[0].Source)

	got = merge([]suggest.Suggestion{
		{Text: "kalem", Score: 5, Source: suggest.SourceTrie},
		{Text: "kalem", Score: 6, Source: suggest.SourceTrie},
	}, "", lex)
	require.Len(t, got, 1)
	assert.InDelta(t, 6.0, got[0].Score, 1e-9, "same source does not corroborate")
}

func TestMergeBoostsAndPrefix(t *testing.T) {
	got := merge([]suggest.Suggestion{
		{Text: "mer", Score: 9, Source: suggest.SourceTrie},
		{Text: "merhaba", Score: 5, Source: suggest.SourceTrie},
		{Text: "iyi günler", Score: 5, Source: suggest.SourcePhrase},
		{Text: "merak", Score: 5, Source: suggest.SourceTrie},
	}, "Mer", lexicon.Default())
	require.Len(t, got, 3)
	assert.Equal(t, "merhaba", got[0].Text)
	assert.InDelta(t, 8.5, got[0].Score, 1e-9)
	assert.InDelta(t, 7.0, got[1].Score, 1e-9)
	assert.InDelta(t, 5.0, got[2].Score, 1e-9)
}

func TestPredictDefaultProviders(t *testing.T) {
	e := newTestEngine(t)
	resp := e.Predict(t.Context(), PredictRequest{Text: "me", MaxSuggestions: 10})
	assert.Equal(t, StageEnhanced, resp.Stage)
	assert.Contains(t, texts(resp), "merhaba")
	assert.Contains(t, texts(resp), "merak")
	assert.LessOrEqual(t, len(resp.Suggestions), 10)
	assert.Contains(t, resp.SourcesUsed, string(suggest.SourceTrie))
	for _, s := range resp.Suggestions {
		assert.LessOrEqual(t, s.Score, 10.0)
	}
}

func TestPredictCapitalization(t *testing.T) {
	e := newTestEngine(t, registry(t, static(suggest.SourceTrie, suggest.TierFast, "kalem", "kitap")))
	resp := e.Predict(t.Context(), PredictRequest{Text: "ali Kal"})
	assert.Equal(t, []string{"Kalem"}, texts(resp)[:1])
	assert.Contains(t, texts(resp), "kitap")
}

func TestDebounce(t *testing.T) {
	now := time.Unix(1000, 0)
	cfg := testConfig()
	cfg.Debounce = 50 * time.Millisecond
	e := newTestEngine(t, WithConfig(cfg), WithClock(func() time.Time { return now }))

	req := PredictRequest{Text: "me", UserID: "u1"}
	first := e.Predict(t.Context(), req)
	assert.False(t, first.Debounced)
	assert.NotEmpty(t, first.Suggestions)

	now = now.Add(10 * time.Millisecond)
	second := e.Predict(t.Context(), req)
	assert.True(t, second.Debounced)
	assert.Empty(t, second.Suggestions)
	assert.Equal(t, []string{"debounced"}, second.SourcesUsed)

	other := e.Predict(t.Context(), PredictRequest{Text: "me", UserID: "u2"})
	assert.False(t, other.Debounced, "users are debounced separately")

	now = now.Add(60 * time.Millisecond)
	third := e.Predict(t.Context(), req)
	assert.False(t, third.Debounced)
	assert.NotEmpty(t, third.Suggestions)
	assert.Equal(t, int64(1), e.Stats().Debounced)
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	e := newTestEngine(t, WithConfig(cfg), WithClock(func() time.Time { return now }))

	req := PredictRequest{Text: "ka", UserID: "u1"}
	assert.False(t, e.Predict(t.Context(), req).RateLimited)
	assert.False(t, e.Predict(t.Context(), req).RateLimited)
	limited := e.Predict(t.Context(), req)
	assert.True(t, limited.RateLimited)
	assert.Equal(t, []string{"rate_limited"}, limited.SourcesUsed)

	assert.False(t, e.Predict(t.Context(), PredictRequest{Text: "ka", UserID: "u2"}).RateLimited)

	now = now.Add(30 * time.Second)
	assert.False(t, e.Predict(t.Context(), req).RateLimited, "a token refills every 30s")
}

func TestFallback(t *testing.T) {
	e := newTestEngine(t, registry(t))

	resp := e.Predict(t.Context(), PredictRequest{Text: "xyzzyabc"})
	assert.ElementsMatch(t, []string{"xyzabc", "xyzdef"}, texts(resp))
	for _, s := range resp.Suggestions {
		assert.Equal(t, suggest.SourceDictionaryFallback, s.Source)
		assert.Equal(t, 8.0, s.Score)
	}
	assert.Equal(t, []string{string(suggest.SourceDictionaryFallback)}, resp.SourcesUsed)

	none := e.Predict(t.Context(), PredictRequest{Text: "qqqq"})
	require.NotNil(t, none.Suggestions)
	assert.Empty(t, none.Suggestions)
	assert.Empty(t, none.SourcesUsed)

	blank := e.Predict(t.Context(), PredictRequest{Text: "  "})
	assert.Empty(t, blank.Suggestions)
}

func TestSlowFastProvider(t *testing.T) {
	cfg := testConfig()
	cfg.FastTimeout = 30 * time.Millisecond
	e := newTestEngine(t, WithConfig(cfg), registry(t,
		static(suggest.SourceTrie, suggest.TierFast, "kalem"),
		slow(suggest.SourceUserDictionary, suggest.TierFast, 300*time.Millisecond, "kalemtıraş"),
	))

	start := time.Now()
	resp := e.Predict(t.Context(), PredictRequest{Text: "kal"})
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, []string{"kalem"}, texts(resp))
	assert.Equal(t, []string{string(suggest.SourceTrie)}, resp.SourcesUsed)
	assert.Eventually(t, func() bool { return e.Stats().ProviderTimeouts == 1 }, time.Second, 10*time.Millisecond)
}

func TestStagedSlowSmartProvider(t *testing.T) {
	e := newTestEngine(t, registry(t,
		static(suggest.SourceTrie, suggest.TierFast, "kalem"),
		slow(suggest.SourceNgram, suggest.TierSmart, 80*time.Millisecond, "kalemlik"),
	))

	var got []Response
	e.PredictStaged(t.Context(), PredictRequest{Text: "kal"}, func(r Response) { got = append(got, r) })
	require.Len(t, got, 2)

	assert.Equal(t, StageFast, got[0].Stage)
	assert.Equal(t, []string{"kalem"}, texts(got[0]))

	assert.Equal(t, StageEnhanced, got[1].Stage)
	assert.ElementsMatch(t, []string{"kalem", "kalemlik"}, texts(got[1]))
	assert.Equal(t, []string{string(suggest.SourceTrie), string(suggest.SourceNgram)}, got[1].SourcesUsed)
}

func TestSlowSmartProviderPastDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.SmartTimeout = 40 * time.Millisecond
	e := newTestEngine(t, WithConfig(cfg), registry(t,
		static(suggest.SourceTrie, suggest.TierFast, "kalem"),
		slow(suggest.SourceNgram, suggest.TierSmart, time.Second, "kalemlik"),
	))
	resp := e.Predict(t.Context(), PredictRequest{Text: "kal"})
	assert.Equal(t, []string{"kalem"}, texts(resp))
}

func TestProviderFailuresAreIsolated(t *testing.T) {
	panicky := providers.Func{Source: suggest.SourceEmoji, Stage: suggest.TierSmart,
		Fn: func(context.Context, suggest.Query) ([]suggest.RawCandidate, error) { panic("boom") }}
	failing := providers.Func{Source: suggest.SourceDomain, Stage: suggest.TierFast,
		Fn: func(context.Context, suggest.Query) ([]suggest.RawCandidate, error) {
			return nil, errors.New("backend down")
		}}
	sloppy := providers.Func{Source: suggest.SourceModel, Stage: suggest.TierSmart,
		Fn: func(context.Context, suggest.Query) ([]suggest.RawCandidate, error) {
			return []suggest.RawCandidate{
				{Word: "kalemler", Score: 9, Source: suggest.SourceModel, Kind: "guess"},
				{Word: "  ", Score: 9, Source: suggest.SourceModel, Kind: suggest.KindCompletion},
				{Word: "kalemci", Score: 9, Source: suggest.SourceModel, Kind: suggest.KindCompletion},
			}, nil
		}}
	e := newTestEngine(t, registry(t, static(suggest.SourceTrie, suggest.TierFast, "kalem"), panicky, failing, sloppy))

	resp := e.Predict(t.Context(), PredictRequest{Text: "kal"})
	assert.ElementsMatch(t, []string{"kalem", "kalemci"}, texts(resp))
	assert.Equal(t, int64(2), e.Stats().ProviderFailures)
}

func TestParentCancel(t *testing.T) {
	e := newTestEngine(t, registry(t, slow(suggest.SourceNgram, suggest.TierSmart, time.Second, "kalemlik")))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	start := time.Now()
	resp := e.Predict(ctx, PredictRequest{Text: "kal"})
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, []string{"kalem", "kalemlik"}, texts(resp), "fallback still answers from the dictionary")
}

func TestResponseCache(t *testing.T) {
	c, err := cache.NewRistretto[Response](cache.Config{}, nil)
	require.NoError(t, err)
	defer c.Close()

	calls := 0
	counting := providers.Func{Source: suggest.SourceTrie, Stage: suggest.TierFast,
		Fn: func(context.Context, suggest.Query) ([]suggest.RawCandidate, error) {
			calls++
			return []suggest.RawCandidate{{Word: "kalem", Score: 8, Source: suggest.SourceTrie, Kind: suggest.KindCompletion}}, nil
		}}
	e := newTestEngine(t, WithCache(c), registry(t, counting))

	req := PredictRequest{Text: "kal", UserID: "u1"}
	first := e.Predict(t.Context(), req)
	c.Wait()
	second := e.Predict(t.Context(), req)
	assert.Equal(t, 1, calls)
	assert.Equal(t, texts(first), texts(second))
	assert.Equal(t, []string{"cache"}, second.SourcesUsed)

	other := e.Predict(t.Context(), PredictRequest{Text: "kal", UserID: "u2"})
	assert.NotEqual(t, []string{"cache"}, other.SourcesUsed)

	e.Feedback("u1", "kal", "kalem")
	e.Predict(t.Context(), req)
	assert.Equal(t, 3, calls, "feedback invalidates cached responses")
}

func TestLearnAndFeedback(t *testing.T) {
	e := newTestEngine(t)

	e.Learn("u1", "iyi günler dilerim")
	resp := e.Predict(t.Context(), PredictRequest{Text: "iyi ", UserID: "u1"})
	assert.Contains(t, texts(resp), "günler")

	e.Feedback("u1", "merhaba arka", "arkadaşlar")
	resp = e.Predict(t.Context(), PredictRequest{Text: "merhaba ", UserID: "u1"})
	assert.Contains(t, texts(resp), "arkadaşlar")

	resp = e.Predict(t.Context(), PredictRequest{Text: "ark", UserID: "u1"})
	assert.Contains(t, texts(resp), "arkadaşlar", "picked words join the user dictionary")

	resp = e.Predict(t.Context(), PredictRequest{Text: "ark", UserID: "u2"})
	assert.NotContains(t, texts(resp), "arkadaşlar")

	assert.Greater(t, e.ranker.History().Preference("u1", "arkadaşlar"), 0.0)
}

func TestImpressionsRecorded(t *testing.T) {
	e := newTestEngine(t, registry(t, static(suggest.SourceTrie, suggest.TierFast, "kalem", "kitap")))
	for i := 0; i < 4; i++ {
		e.Predict(t.Context(), PredictRequest{Text: "k", UserID: "u1"})
	}
	e.Feedback("u1", "k", "kalem")
	assert.InDelta(t, 0.25, e.ranker.History().CTR("u1", "kalem"), 1e-9)
}

func TestCorrection(t *testing.T) {
	e := newTestEngine(t)

	resp := e.Predict(t.Context(), PredictRequest{Text: "bir Merhba"})
	require.NotNil(t, resp.CorrectedText)
	assert.Equal(t, "bir Merhaba", *resp.CorrectedText)

	resp = e.Predict(t.Context(), PredictRequest{Text: "merhaba"})
	assert.Nil(t, resp.CorrectedText, "dictionary words are left alone")

	resp = e.Predict(t.Context(), PredictRequest{Text: "kalm"})
	assert.Nil(t, resp.CorrectedText, "short words are left alone")
}

func TestReloadDictionary(t *testing.T) {
	e := newTestEngine(t)
	assert.Contains(t, texts(e.Predict(t.Context(), PredictRequest{Text: "kal"})), "kalem")

	require.NoError(t, e.ReloadDictionary(t.Context(), map[string]int{"kitaplık": 10, "kitapçı": 5}))
	resp := e.Predict(t.Context(), PredictRequest{Text: "kit"})
	assert.Contains(t, texts(resp), "kitaplık")
	assert.NotContains(t, texts(e.Predict(t.Context(), PredictRequest{Text: "kal"})), "kalem")
	assert.Equal(t, 2, e.Stats().Words)

	err := e.ReloadDictionary(t.Context(), nil)
	require.ErrorIs(t, err, ErrEmptyDictionary)
	assert.Equal(t, 2, e.Stats().Words, "an empty reload keeps the current dictionary")
}

func TestNewWithoutDictionary(t *testing.T) {
	e, err := New(WithConfig(testConfig()), WithLogger(logger.Discard()))
	require.ErrorIs(t, err, ErrEmptyDictionary)
	require.NotNil(t, e)
	defer e.Close()

	resp := e.Predict(t.Context(), PredictRequest{Text: "me"})
	assert.NotNil(t, resp.Suggestions)
}

func TestDuplicateProviderRejected(t *testing.T) {
	_, err := suggest.NewRegistry(
		static(suggest.SourceTrie, suggest.TierFast, "a"),
		static(suggest.SourceTrie, suggest.TierSmart, "b"),
	)
	require.Error(t, err)
}

func TestConcurrentPredictAndReload(t *testing.T) {
	e := newTestEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				resp := e.Predict(context.Background(), PredictRequest{Text: "ka"})
				assert.NotNil(t, resp.Suggestions)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 5; j++ {
			_ = e.ReloadDictionary(context.Background(), map[string]int{"kalem": j + 1, "kitap": 2})
			e.Learn("u1", "kalem kitap defter")
		}
	}()
	wg.Wait()
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)
	e.Predict(t.Context(), PredictRequest{Text: "me"})
	s := e.Stats()
	assert.Equal(t, int64(1), s.Requests)
	assert.Equal(t, int64(1), s.Served)
	assert.Equal(t, len(testDict), s.Words)
	assert.Contains(t, s.Providers, string(suggest.SourceTrie))
	assert.NotContains(t, s.Providers, string(suggest.SourceSearch))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "rate_limited", Reason(ErrRateLimited))
	assert.Equal(t, "debounced", Reason(ErrDebounced))
	assert.Equal(t, "", Reason(errors.New("other")))
}
