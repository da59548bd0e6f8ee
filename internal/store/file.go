package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

const (
	filePerm       = 0o644
	lockRetryDelay = 10 * time.Millisecond
)

// FileBackend keeps the document in a JSON file. Writes go through a temporary
// file and an atomic rename, so readers never observe a partial document.
// When locking is enabled an advisory lock on "<path>.lock" serialises writers
// across processes; writers inside one process are serialised by Store.
type FileBackend struct {
	path string
	lock *flock.Flock
}

// NewFileBackend returns a backend for path. The parent directory is created
// when missing.
func NewFileBackend(path string, useLock bool) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	b := &FileBackend{path: path}
	if useLock {
		b.lock = flock.New(path + ".lock")
	}
	return b, nil
}

// Path returns the document file location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	return os.ReadFile(b.path)
}

func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	unlock, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return renameio.WriteFile(b.path, data, filePerm)
}

func (b *FileBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	unlock, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := os.ReadFile(b.path)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return renameio.WriteFile(b.path, next, filePerm)
}

func (b *FileBackend) Ensure(ctx context.Context, seed []byte) (bool, error) {
	unlock, err := b.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, err := os.Stat(b.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := renameio.WriteFile(b.path, seed, filePerm); err != nil {
		return false, err
	}
	return true, nil
}

func (b *FileBackend) Close() error {
	if b.lock == nil {
		return nil
	}
	return b.lock.Close()
}

func (b *FileBackend) acquire(ctx context.Context) (func(), error) {
	if b.lock == nil {
		return func() {}, nil
	}
	locked, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", b.lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", b.lock.Path())
	}
	return func() { _ = b.lock.Unlock() }, nil
}
