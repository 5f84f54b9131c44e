package rank

import (
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/bastiangx/wordmux/pkg/lexicon"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	// MaxScore caps every ranked score.
	MaxScore = 10.0

	longText      = 20
	lengthDivisor = 50.0
	minLengthMult = 0.1
)

// Context is what a ranking pass knows about the request.
type Context struct {
	Text    string
	Prefix  string
	Message string // optional message being replied to
}

// Engine scores candidates. Weights can be replaced while ranking is running.
type Engine struct {
	weights atomic.Pointer[Weights]
	lex     *lexicon.Lexicon
	history *History
}

// New returns an Engine with w. lex defaults to the built-in lexicon; history may be nil.
func New(lex *lexicon.Lexicon, history *History, w Weights) *Engine {
	if lex == nil {
		lex = lexicon.Default()
	}
	e := &Engine{lex: lex, history: history}
	e.weights.Store(&w)
	return e
}

// Weights returns the active coefficients.
func (e *Engine) Weights() Weights {
	return *e.weights.Load()
}

// SetWeights swaps the coefficients for subsequent Rank calls.
func (e *Engine) SetWeights(w Weights) {
	e.weights.Store(&w)
}

// History returns the selection history, possibly nil.
func (e *Engine) History() *History {
	return e.history
}

// Rank rescores candidates and returns them sorted by score, highest first.
// Equal scores keep their input order. The input slice is not modified.
func (e *Engine) Rank(candidates []suggest.Suggestion, ctx Context, userID string) []suggest.Suggestion {
	w := e.weights.Load()
	out := make([]suggest.Suggestion, len(candidates))
	for i, c := range candidates {
		c.Score = e.score(w, c, ctx, userID)
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (e *Engine) score(w *Weights, c suggest.Suggestion, ctx Context, userID string) float64 {
	var pref, ctr float64
	if e.history != nil {
		pref = e.history.Preference(userID, c.Text)
		ctr = e.history.CTR(userID, c.Text)
	}

	base := w.Frequency*min(c.Score/10, 1.0) +
		w.UserPreference*pref +
		w.Context*e.contextRelevance(c.Text, ctx.Message) +
		w.Typo*typoSimilarity(c.Text, ctx) +
		w.Recency*1.0 +
		w.SourceQuality*sourceQuality(c.Source)
	score := (base + ctr*w.CTRBonus) * 10

	switch {
	case e.lex.IsBlocked(c.Text):
		score *= w.BlockedPenalty
	case e.lex.IsSupportTerm(c.Text):
		score *= w.SupportBoost
	}

	if n := utf8.RuneCountInString(c.Text); n > longText {
		score *= max(1-float64(n)/lengthDivisor, minLengthMult)
	}
	return min(score, MaxScore)
}

func (e *Engine) contextRelevance(text, message string) float64 {
	if strings.TrimSpace(message) == "" {
		return 0.5
	}
	lower := strings.ToLower(text)
	score := 0.0
	for _, name := range e.lex.DetectIntents(message) {
		in := e.lex.Intents[name]
		for _, r := range in.Responses {
			if strings.Contains(lower, r) {
				score += in.Weight
				break
			}
		}
	}
	if topic := e.lex.DetectTopic(message); topic != "" && e.lex.TopicMatches(topic, text) {
		score += 0.2
	}
	return min(score, 1.0)
}

func typoSimilarity(text string, ctx Context) float64 {
	ref := ctx.Prefix
	if ref == "" {
		ref = strings.TrimSpace(ctx.Text)
	}
	if ref == "" || text == "" {
		return 0
	}
	return levenshtein.RatioForStrings(
		[]rune(strings.ToLower(ref)),
		[]rune(strings.ToLower(text)),
		levenshtein.DefaultOptions,
	)
}
