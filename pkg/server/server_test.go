package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/goleak"

	"github.com/bastiangx/wordmux/internal/logger"
	"github.com/bastiangx/wordmux/pkg/engine"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/blevesearch/bleve_index_api.AnalysisWorker"))
}

type fakeEngine struct {
	mu       sync.Mutex
	learned  []string
	feedback [][3]string
	requests []engine.PredictRequest
}

func (f *fakeEngine) response(req engine.PredictRequest, stage engine.Stage) engine.Response {
	return engine.Response{
		Suggestions: []suggest.Suggestion{{Text: req.Text + "em", Score: 9, Kind: suggest.KindCompletion, Source: suggest.SourceTrie}},
		SourcesUsed: []string{string(suggest.SourceTrie)},
		Stage:       stage,
	}
}

func (f *fakeEngine) Predict(_ context.Context, req engine.PredictRequest) engine.Response {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	resp := f.response(req, engine.StageEnhanced)
	if req.Text == "bir kalm" {
		fixed := "bir kalem"
		resp.CorrectedText = &fixed
	}
	return resp
}

func (f *fakeEngine) PredictStaged(_ context.Context, req engine.PredictRequest, emit func(engine.Response)) {
	emit(f.response(req, engine.StageFast))
	emit(f.response(req, engine.StageEnhanced))
}

func (f *fakeEngine) Learn(userID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learned = append(f.learned, userID+":"+text)
}

func (f *fakeEngine) Feedback(userID, text, selected string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, [3]string{userID, text, selected})
}

func (f *fakeEngine) Stats() engine.Stats {
	return engine.Stats{Requests: 3, Words: 42}
}

func encode(t *testing.T, reqs ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	for _, r := range reqs {
		require.NoError(t, enc.Encode(r))
	}
	return &buf
}

// frames decodes every response, skipping the ready frame.
func frames(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	dec := msgpack.NewDecoder(out)
	var got []map[string]any
	for {
		var m map[string]any
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, m)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, "ready", got[0]["status"])
	return got[1:]
}

func byID(t *testing.T, fs []map[string]any, id string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, f := range fs {
		if f["id"] == id {
			out = append(out, f)
		}
	}
	return out
}

func serve(t *testing.T, eng Engine, opts Options, reqs ...any) []map[string]any {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	var out bytes.Buffer
	s := New(eng, encode(t, reqs...), &out, opts)
	require.NoError(t, s.Serve(t.Context()))
	return frames(t, &out)
}

func TestPredict(t *testing.T) {
	eng := &fakeEngine{}
	got := serve(t, eng, Options{MaxLimit: 5},
		Request{ID: "r1", Method: MethodPredict, Text: "kal", Limit: 50, User: "u1"},
		Request{ID: "r2", Text: "bir kalm"},
	)
	require.Len(t, got, 2)

	r1 := byID(t, got, "r1")
	require.Len(t, r1, 1)
	assert.Equal(t, "enhanced", r1[0]["st"])
	assert.EqualValues(t, 1, r1[0]["c"])
	s := r1[0]["s"].([]any)[0].(map[string]any)
	assert.Equal(t, "kalem", s["w"])
	assert.Equal(t, "trie_index", s["src"])

	r2 := byID(t, got, "r2")
	require.Len(t, r2, 1)
	assert.Equal(t, "bir kalem", r2[0]["ct"])

	eng.mu.Lock()
	defer eng.mu.Unlock()
	for _, req := range eng.requests {
		if req.UserID == "u1" {
			assert.Equal(t, 5, req.MaxSuggestions, "limit is capped")
		}
	}
}

func TestStreamStages(t *testing.T) {
	got := serve(t, &fakeEngine{}, Options{},
		Request{ID: "s1", Method: MethodStream, Text: "k"},
		Request{ID: "s2", Method: MethodStream, Text: "ka"},
	)
	s1 := byID(t, got, "s1")
	require.Len(t, s1, 2)
	assert.Equal(t, "fast", s1[0]["st"])
	assert.Equal(t, "enhanced", s1[1]["st"])
	assert.Equal(t, s1[0]["seq"], s1[1]["seq"])

	s2 := byID(t, got, "s2")
	require.Len(t, s2, 2)
	assert.NotEqual(t, s1[0]["seq"], s2[0]["seq"], "each stream request gets its own seq")
}

func TestStreamSeqFollowsReadOrder(t *testing.T) {
	var reqs []any
	for i := range 20 {
		reqs = append(reqs, Request{ID: fmt.Sprintf("s%02d", i), Method: MethodStream, Text: "k"})
	}
	got := serve(t, &fakeEngine{}, Options{Workers: 8}, reqs...)
	for i := range 20 {
		fs := byID(t, got, fmt.Sprintf("s%02d", i))
		require.Len(t, fs, 2)
		assert.EqualValues(t, i+1, fs[0]["seq"], "request %d", i)
		assert.EqualValues(t, i+1, fs[1]["seq"], "request %d", i)
	}
}

func TestLearnFeedbackStats(t *testing.T) {
	eng := &fakeEngine{}
	got := serve(t, eng, Options{},
		Request{ID: "l1", Method: MethodLearn, Text: "iyi günler", User: "u1"},
		Request{ID: "f1", Method: MethodFeedback, Text: "merhaba nas", Selected: "nasılsınız", User: "u1"},
		Request{ID: "f2", Method: MethodFeedback, Text: "merhaba"},
		Request{ID: "st", Method: MethodStats},
	)
	assert.Equal(t, "ok", byID(t, got, "l1")[0]["status"])
	assert.Equal(t, "ok", byID(t, got, "f1")[0]["status"])
	assert.EqualValues(t, 400, byID(t, got, "f2")[0]["c"])

	stats := byID(t, got, "st")[0]["stats"].(map[string]any)
	assert.EqualValues(t, 42, stats["words"])

	assert.Equal(t, []string{"u1:iyi günler"}, eng.learned)
	assert.Equal(t, [][3]string{{"u1", "merhaba nas", "nasılsınız"}}, eng.feedback)
}

func TestReload(t *testing.T) {
	got := serve(t, &fakeEngine{}, Options{}, Request{ID: "x", Method: MethodReload})
	assert.EqualValues(t, 501, byID(t, got, "x")[0]["c"])

	calls := 0
	got = serve(t, &fakeEngine{}, Options{Reload: func(context.Context) error {
		calls++
		if calls > 1 {
			return errors.New("no dictionary files")
		}
		return nil
	}, Workers: 1},
		Request{ID: "ok", Method: MethodReload},
		Request{ID: "bad", Method: MethodReload},
	)
	assert.Equal(t, "ok", byID(t, got, "ok")[0]["status"])
	assert.Equal(t, "no dictionary files", byID(t, got, "bad")[0]["e"])
}

func TestBadRequests(t *testing.T) {
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	got := serve(t, &fakeEngine{}, Options{MinPrefix: 1},
		Request{ID: "u", Method: "dance"},
		Request{ID: "long", Text: string(long)},
		Request{ID: "empty", Text: " "},
		"not a request",
		Request{Method: MethodHealth},
	)
	assert.EqualValues(t, 400, byID(t, got, "u")[0]["c"])
	assert.EqualValues(t, 400, byID(t, got, "long")[0]["c"])

	empty := byID(t, got, "empty")
	require.Len(t, empty, 1)
	assert.EqualValues(t, 0, empty[0]["c"])

	var sawInvalid, sawHealth bool
	for _, f := range got {
		if f["e"] == "invalid msgpack request" {
			sawInvalid = true
		}
		if f["status"] == "ok" {
			sawHealth = true
			assert.NotEmpty(t, f["id"], "missing ids are generated")
		}
	}
	assert.True(t, sawInvalid)
	assert.True(t, sawHealth)
}

func TestServeWithEngine(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.EnableSearch = false
	cfg.Debounce = 0
	eng, err := engine.New(
		engine.WithConfig(cfg),
		engine.WithLogger(logger.Discard()),
		engine.WithDictionary(map[string]int{"merhaba": 900, "merak": 400}),
	)
	require.NoError(t, err)
	defer eng.Close()

	got := serve(t, eng, Options{}, Request{ID: "r", Text: "me", Limit: 10})
	r := byID(t, got, "r")
	require.Len(t, r, 1)
	var words []string
	for _, s := range r[0]["s"].([]any) {
		words = append(words, s.(map[string]any)["w"].(string))
	}
	assert.Contains(t, words, "merhaba")
	assert.Contains(t, words, "merak")
}
