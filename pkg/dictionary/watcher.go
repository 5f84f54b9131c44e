package dictionary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of writes into one reload.
const DefaultDebounce = 250 * time.Millisecond

// OnLoad receives every freshly loaded dictionary.
type OnLoad func(freq map[string]int) error

// Watcher reloads the dictionary when its files change.
type Watcher struct {
	loader   *Loader
	onLoad   OnLoad
	debounce time.Duration
	fs       *fsnotify.Watcher
	single   bool

	trigger   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatcher watches the loader's path. debounce <= 0 uses DefaultDebounce.
func NewWatcher(l *Loader, debounce time.Duration, onLoad OnLoad) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	info, err := os.Stat(l.Path())
	if err != nil {
		return nil, fmt.Errorf("stat dictionary %s: %w", l.Path(), err)
	}
	dir := l.Path()
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		loader:   l,
		onLoad:   onLoad,
		debounce: debounce,
		fs:       fw,
		single:   !info.IsDir(),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Reload schedules a reload as if a file had changed.
func (w *Watcher) Reload() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Close stops the loop and releases the fsnotify handle.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) relevant(name string) bool {
	if w.single {
		return filepath.Clean(name) == filepath.Clean(w.loader.Path())
	}
	base := strings.ToLower(filepath.Base(name))
	switch filepath.Ext(base) {
	case ".txt":
		return true
	case ".bin":
		return strings.HasPrefix(base, "dict_")
	}
	return false
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				log.Debugf("Dictionary change: %s", ev)
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warnf("Dictionary watcher error: %v", err)
		case <-w.trigger:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	freq, err := w.loader.Load(ctx)
	if err != nil {
		log.Errorf("Failed to reload dictionary: %v", err)
		return
	}
	if err := w.onLoad(freq); err != nil {
		log.Warnf("Dictionary reload rejected: %v", err)
		return
	}
	log.Infof("Dictionary reloaded: %d words", len(freq))
}
