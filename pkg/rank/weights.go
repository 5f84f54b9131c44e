// Package rank orders merged candidates into the final list.
package rank

import "github.com/bastiangx/wordmux/pkg/suggest"

// Weights are the ranking coefficients. The first six weight features in
// [0,1]; the rest scale the result.
type Weights struct {
	Frequency      float64 `toml:"frequency"`
	UserPreference float64 `toml:"user_preference"`
	Context        float64 `toml:"context"`
	Typo           float64 `toml:"typo"`
	Recency        float64 `toml:"recency"`
	SourceQuality  float64 `toml:"source_quality"`

	CTRBonus       float64 `toml:"ctr_bonus"`
	SupportBoost   float64 `toml:"support_boost"`
	BlockedPenalty float64 `toml:"blocked_penalty"`
}

// DefaultWeights returns the stock coefficients.
func DefaultWeights() Weights {
	return Weights{
		Frequency:      0.25,
		UserPreference: 0.20,
		Context:        0.25,
		Typo:           0.15,
		Recency:        0.10,
		SourceQuality:  0.05,
		CTRBonus:       0.15,
		SupportBoost:   3.0,
		BlockedPenalty: 0.1,
	}
}

// SourceQuality is how much each provider is trusted, curated sources first.
var SourceQuality = map[suggest.Source]float64{
	suggest.SourceSmartCompletions:   1.0,
	suggest.SourceContextualReply:    1.0,
	suggest.SourceModel:              0.95,
	suggest.SourcePhrase:             0.95,
	suggest.SourceUserDictionary:     0.92,
	suggest.SourceNgram:              0.9,
	suggest.SourceTrie:               0.88,
	suggest.SourceDomain:             0.85,
	suggest.SourceSearch:             0.82,
	suggest.SourceEmoji:              0.7,
	suggest.SourceSpellcheck:         0.6,
	suggest.SourceDictionaryFallback: 0.5,
}

func sourceQuality(s suggest.Source) float64 {
	if q, ok := SourceQuality[s]; ok {
		return q
	}
	return 0.5
}
