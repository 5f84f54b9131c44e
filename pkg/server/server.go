package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bastiangx/wordmux/internal/utils"
	"github.com/bastiangx/wordmux/pkg/engine"
)

// Engine is what the server needs from the suggestion engine.
type Engine interface {
	Predict(ctx context.Context, req engine.PredictRequest) engine.Response
	PredictStaged(ctx context.Context, req engine.PredictRequest, emit func(engine.Response))
	Learn(userID, text string)
	Feedback(userID, text, selected string)
	Stats() engine.Stats
}

// Options limits what the server accepts. Zero values take defaults.
type Options struct {
	MaxLimit  int
	MinPrefix int
	MaxPrefix int
	// Workers bounds requests handled at once.
	Workers int
	// Reload, when set, serves the reload method.
	Reload func(ctx context.Context) error
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxLimit <= 0 {
		o.MaxLimit = 64
	}
	if o.MaxPrefix <= 0 {
		o.MaxPrefix = 60
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Server handles msgpack IPC for one client connection.
type Server struct {
	eng  Engine
	opts Options
	in   io.Reader
	log  *log.Logger

	mu  sync.Mutex
	enc *msgpack.Encoder
	seq atomic.Uint64
}

// New returns a server reading requests from in and writing responses to out.
func New(eng Engine, in io.Reader, out io.Writer, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{eng: eng, opts: opts, in: in, log: opts.Logger, enc: msgpack.NewEncoder(out)}
}

// Serve handles requests until in is exhausted or ctx is cancelled, then waits
// for requests in flight. A malformed frame is answered with an error and
// skipped.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Debug("Starting server")
	s.send(map[string]string{"status": "ready"})

	dec := msgpack.NewDecoder(bufio.NewReader(s.in))
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	var readErr error
	for ctx.Err() == nil {
		raw, err := dec.DecodeRaw()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = fmt.Errorf("read request: %w", err)
			}
			break
		}
		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			s.log.Errorf("Unmarshaling request: %v", err)
			s.sendError("", "invalid msgpack request", 400)
			continue
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		// stream order follows read order, not worker scheduling
		var seq uint64
		if req.Method == MethodStream {
			seq = s.seq.Add(1)
		}
		g.Go(func() error {
			s.handle(ctx, req, seq)
			return nil
		})
	}
	_ = g.Wait()
	s.log.Debug("Server stopped")
	return readErr
}

func (s *Server) handle(ctx context.Context, req Request, seq uint64) {
	switch req.Method {
	case "", MethodPredict:
		pr, ok := s.predictRequest(req)
		if !ok {
			return
		}
		s.send(toWire(req.ID, 0, s.eng.Predict(ctx, pr)))
	case MethodStream:
		pr, ok := s.predictRequest(req)
		if !ok {
			return
		}
		s.eng.PredictStaged(ctx, pr, func(r engine.Response) {
			s.send(toWire(req.ID, seq, r))
		})
	case MethodLearn:
		if strings.TrimSpace(req.Text) == "" {
			s.sendError(req.ID, "missing 't' parameter", 400)
			return
		}
		s.eng.Learn(req.User, req.Text)
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	case MethodFeedback:
		if strings.TrimSpace(req.Selected) == "" {
			s.sendError(req.ID, "missing 'sel' parameter", 400)
			return
		}
		s.eng.Feedback(req.User, req.Text, req.Selected)
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	case MethodStats:
		s.send(StatsResponse{ID: req.ID, Stats: s.eng.Stats()})
	case MethodReload:
		if s.opts.Reload == nil {
			s.sendError(req.ID, "reload is not available", 501)
			return
		}
		if err := s.opts.Reload(ctx); err != nil {
			s.log.Warnf("Reload failed: %v", err)
			s.sendError(req.ID, err.Error(), 500)
			return
		}
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	case MethodHealth:
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown method: %s", req.Method), 400)
	}
}

// predictRequest validates req, answering it directly when it cannot or need
// not reach the engine.
func (s *Server) predictRequest(req Request) (engine.PredictRequest, bool) {
	if n := utils.RuneLen(utils.LastWord(req.Text)); n > s.opts.MaxPrefix {
		s.sendError(req.ID, fmt.Sprintf("prefix exceeds maximum length of %d characters", s.opts.MaxPrefix), 400)
		return engine.PredictRequest{}, false
	}
	if req.Context == nil && utils.RuneLen(strings.TrimSpace(req.Text)) < s.opts.MinPrefix {
		s.send(PredictResponse{ID: req.ID, Stage: string(engine.StageEnhanced)})
		return engine.PredictRequest{}, false
	}
	limit := req.Limit
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	return engine.PredictRequest{
		Text:           req.Text,
		Context:        req.Context,
		MaxSuggestions: limit,
		UserID:         req.User,
	}, true
}

func toWire(id string, seq uint64, r engine.Response) PredictResponse {
	out := PredictResponse{
		ID:          id,
		Seq:         seq,
		Stage:       string(r.Stage),
		Suggestions: r.Suggestions,
		Count:       len(r.Suggestions),
		Sources:     r.SourcesUsed,
		Debounced:   r.Debounced,
		RateLimited: r.RateLimited,
		TimeTaken:   r.Elapsed.Milliseconds(),
	}
	if r.CorrectedText != nil {
		out.Corrected = *r.CorrectedText
	}
	return out
}

// send writes one frame. Writes are serialized across handlers.
func (s *Server) send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		s.log.Errorf("Encoding response: %v", err)
	}
}

func (s *Server) sendError(id, message string, code int) {
	s.send(ErrorResponse{ID: id, Error: message, Code: code})
}
