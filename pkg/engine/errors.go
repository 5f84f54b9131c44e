package engine

import "errors"

var (
	// ErrProviderTimeout means a provider missed its stage deadline.
	ErrProviderTimeout = errors.New("provider timed out")
	// ErrProviderFailure covers provider errors and recovered panics.
	ErrProviderFailure = errors.New("provider failed")
	// ErrEmptyDictionary is returned when a dictionary load yields no words.
	// The engine stays usable; prefix completion is just empty.
	ErrEmptyDictionary = errors.New("dictionary is empty")
	// ErrRateLimited rejects a request over the per-user budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrDebounced rejects a request arriving too soon after the previous one.
	ErrDebounced = errors.New("debounced")
)

// Reason is the SourcesUsed tag reported for a rejected request.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrDebounced):
		return "debounced"
	}
	return ""
}
