package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/wordmux/internal/utils"
)

const lockName = ".wordmux.lock"

// FileStore keeps one msgpack snapshot per table in a directory. A file lock
// serializes access between processes sharing the directory.
type FileStore struct {
	dir  string
	lock *flock.Flock
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &FileStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockName)),
	}, nil
}

func (f *FileStore) path(name string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
	return filepath.Join(f.dir, safe+".msgpack")
}

func (f *FileStore) Load(ctx context.Context, name string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.lock.RLock(); err != nil {
		return nil, fmt.Errorf("file store: lock: %w", err)
	}
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store: read %s: %w", name, err)
	}

	t := Table{}
	if err := msgpack.Unmarshal(data, &t); err != nil {
		log.Warnf("Snapshot %s is corrupt, starting empty: %v", f.path(name), err)
		return Table{}, nil
	}
	return t, nil
}

func (f *FileStore) Save(ctx context.Context, name string, t Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(t)
	if err != nil {
		return fmt.Errorf("file store: encode %s: %w", name, err)
	}

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("file store: lock: %w", err)
	}
	defer f.lock.Unlock()

	err = utils.WriteFileAtomic(f.path(name), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("file store: save %s: %w", name, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return f.lock.Close()
}
