package engine

import (
	"time"

	"github.com/bastiangx/wordmux/pkg/providers"
	"github.com/bastiangx/wordmux/pkg/rank"
)

// Config holds the pipeline tunables. Zero durations and counts disable the
// matching stage where that makes sense (debounce, rate limit).
type Config struct {
	Debounce     time.Duration
	FastTimeout  time.Duration
	SmartTimeout time.Duration

	EnableFilter        bool
	FilterMinCandidates int
	FilterMinWord       int

	FallbackMinPrefix int
	FallbackScore     float64

	RateLimitPerMinute int
	// GuardUsers bounds the per-user debounce and limiter state.
	GuardUsers int

	CorrectionMinLen int

	DefaultLimit int
	MaxLimit     int

	CacheTTL     time.Duration
	HistoryUsers int
	EnableSearch bool

	Fuzzy   providers.FuzzyConfig
	Weights rank.Weights
}

// DefaultConfig returns the stock pipeline settings.
func DefaultConfig() Config {
	return Config{
		Debounce:            50 * time.Millisecond,
		FastTimeout:         100 * time.Millisecond,
		SmartTimeout:        500 * time.Millisecond,
		EnableFilter:        true,
		FilterMinCandidates: 5,
		FilterMinWord:       2,
		FallbackMinPrefix:   1,
		FallbackScore:       8.0,
		RateLimitPerMinute:  1000,
		GuardUsers:          10000,
		CorrectionMinLen:    4,
		DefaultLimit:        10,
		MaxLimit:            64,
		CacheTTL:            30 * time.Second,
		HistoryUsers:        rank.DefaultHistoryUsers,
		EnableSearch:        true,
		Weights:             rank.DefaultWeights(),
	}
}

// normalize fills settings that cannot sensibly be zero.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.FastTimeout <= 0 {
		c.FastTimeout = d.FastTimeout
	}
	if c.SmartTimeout <= 0 {
		c.SmartTimeout = d.SmartTimeout
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.FallbackScore <= 0 {
		c.FallbackScore = d.FallbackScore
	}
	if c.Weights == (rank.Weights{}) {
		c.Weights = d.Weights
	}
	return c
}
