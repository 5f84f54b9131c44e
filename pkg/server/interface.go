/*
Package server implements msgpack IPC for the suggestion engine.

Clients write msgpack maps to stdin and read msgpack maps from stdout. Frames
are self-delimiting, so no newline framing is used. The first frame the
server writes is {"status": "ready"}.

# Requests

Every request carries an optional id and a method:

	{"id": "r1", "m": "predict", "t": "merhaba nas", "l": 8, "u": "user-1"}
	{"id": "r2", "m": "stream", "t": "kar", "x": "kargom nerede?"}
	{"id": "r3", "m": "learn", "t": "iyi günler dilerim", "u": "user-1"}
	{"id": "r4", "m": "feedback", "t": "merhaba nas", "sel": "nasılsınız", "u": "user-1"}
	{"id": "r5", "m": "stats"}
	{"id": "r6", "m": "reload"}

A missing id is replaced with a generated one. A missing method means predict.

# Responses

predict answers once. stream answers twice for the same id: first with
"st": "fast", then with "st": "enhanced". Each stream request gets a
connection-wide sequence number "seq"; a client should drop staged
responses whose seq is older than the newest one it has seen.

	{"id": "r2", "seq": 7, "st": "fast", "s": [{"w": "kargo", "s": 9.1, "k": "completion", "src": "trie_index"}], "c": 1, "src": ["trie_index"], "t": 1}

Requests are handled concurrently, so responses may arrive out of order;
match them by id.
*/
package server

import (
	"github.com/bastiangx/wordmux/pkg/engine"
	"github.com/bastiangx/wordmux/pkg/suggest"
)

const (
	MethodPredict  = "predict"
	MethodStream   = "stream"
	MethodLearn    = "learn"
	MethodFeedback = "feedback"
	MethodStats    = "stats"
	MethodReload   = "reload"
	MethodHealth   = "health"
)

// Request is one client message.
type Request struct {
	ID       string  `msgpack:"id"`
	Method   string  `msgpack:"m,omitempty"`
	Text     string  `msgpack:"t"`
	Context  *string `msgpack:"x,omitempty"`
	Limit    int     `msgpack:"l,omitempty"`
	User     string  `msgpack:"u,omitempty"`
	Selected string  `msgpack:"sel,omitempty"`
}

// PredictResponse answers predict and stream.
type PredictResponse struct {
	ID          string               `msgpack:"id"`
	Seq         uint64               `msgpack:"seq,omitempty"`
	Stage       string               `msgpack:"st"`
	Suggestions []suggest.Suggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
	Corrected   string               `msgpack:"ct,omitempty"`
	Sources     []string             `msgpack:"src"`
	Debounced   bool                 `msgpack:"db,omitempty"`
	RateLimited bool                 `msgpack:"rl,omitempty"`
	TimeTaken   int64                `msgpack:"t"` // ms
}

// StatusResponse acknowledges learn, feedback, reload and health.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
}

// StatsResponse carries the engine counters.
type StatsResponse struct {
	ID    string       `msgpack:"id"`
	Stats engine.Stats `msgpack:"stats"`
}

// ErrorResponse reports a rejected request. Codes follow HTTP loosely.
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
