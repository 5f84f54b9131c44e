// Package store persists learned counters: n-gram tables, user dictionaries and
// selection history. Writes from the request path are fire-and-forget through
// SaveAsync; a single background writer coalesces them per table.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Table maps a key (a word, a context phrase, a user ID) to item counts.
type Table map[string]map[string]int

// Incr adds n to t[key][item].
func (t Table) Incr(key, item string, n int) {
	row := t[key]
	if row == nil {
		row = make(map[string]int)
		t[key] = row
	}
	row[item] += n
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, row := range t {
		cp := make(map[string]int, len(row))
		for item, n := range row {
			cp[item] = n
		}
		out[k] = cp
	}
	return out
}

// Persistence is what learning components depend on.
type Persistence interface {
	// Load returns the stored table, or an empty one if nothing was saved yet.
	Load(ctx context.Context, name string) (Table, error)
	// SaveAsync marks name dirty. snapshot is called later, when the table is
	// written, and must return a copy the caller no longer modifies.
	SaveAsync(name string, snapshot func() Table)
	Close() error
}

// Backend is synchronous storage wrapped by Async.
type Backend interface {
	Load(ctx context.Context, name string) (Table, error)
	Save(ctx context.Context, name string, t Table) error
	Close() error
}

// writeDelay batches bursts of saves into one write per table.
const writeDelay = 100 * time.Millisecond

// Async turns a Backend into a Persistence. Saves for the same table are
// coalesced: a table marked dirty many times is snapshotted and written once.
type Async struct {
	backend Backend
	timeout time.Duration
	delay   time.Duration

	flushMu sync.Mutex // serializes backend writes with reads
	mu      sync.Mutex
	pending map[string]func() Table
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewAsync starts the background writer for b.
func NewAsync(b Backend) *Async {
	a := &Async{
		backend: b,
		timeout: 10 * time.Second,
		delay:   writeDelay,
		pending: make(map[string]func() Table),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Load returns a pending snapshot if one is queued, else reads the backend.
func (a *Async) Load(ctx context.Context, name string) (Table, error) {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	snapshot, ok := a.pending[name]
	a.mu.Unlock()
	if ok {
		return snapshot(), nil
	}
	return a.backend.Load(ctx, name)
}

func (a *Async) SaveAsync(name string, snapshot func() Table) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		log.Debugf("store: dropping save of %q after close", name)
		return
	}
	a.pending[name] = snapshot
	select {
	case a.wake <- struct{}{}:
	default:
	}
	a.mu.Unlock()
}

// Flush writes everything pending and returns the first error.
func (a *Async) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	batch := a.pending
	a.pending = make(map[string]func() Table)
	a.mu.Unlock()

	var first error
	for name, snapshot := range batch {
		if err := a.backend.Save(ctx, name, snapshot()); err != nil {
			log.Warnf("store: failed to save %q: %v", name, err)
			if first == nil {
				first = fmt.Errorf("save %s: %w", name, err)
			}
		}
	}
	return first
}

func (a *Async) run() {
	defer close(a.done)
	for range a.wake {
		select {
		case <-time.After(a.delay):
		case <-a.stop:
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		_ = a.Flush(ctx)
		cancel()
	}
}

// Close flushes pending writes, stops the writer and closes the backend.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.stop)
	close(a.wake)
	a.mu.Unlock()
	<-a.done

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	flushErr := a.Flush(ctx)
	if err := a.backend.Close(); err != nil {
		return err
	}
	return flushErr
}

// Open returns the Persistence selected by backend: "file" (a directory of
// msgpack snapshots), "sqlite" (a database file) or "memory".
func Open(backend, path string) (Persistence, error) {
	switch backend {
	case "", "file":
		fs, err := NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return NewAsync(fs), nil
	case "sqlite":
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "wordmux.db")
		}
		db, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return NewAsync(db), nil
	case "memory":
		return NewAsync(NewMemory()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Memory keeps tables in process memory.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]Table
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]Table)}
}

func (m *Memory) Load(_ context.Context, name string) (Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[name]; ok {
		return t.Clone(), nil
	}
	return Table{}, nil
}

func (m *Memory) Save(_ context.Context, name string, t Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = t.Clone()
	return nil
}

func (m *Memory) Close() error { return nil }
