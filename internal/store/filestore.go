// Package store keeps dumpd's copy of the dump: the dump file itself, a
// watcher that notices outside edits, and an archive of saved snapshots.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"heroshell/internal/dump"
	"heroshell/internal/logging"
)

// FileStore serves the dump file and caches its content between reads.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	cache  []byte
	cached bool
	hits   int
}

// NewFileStore creates a store for path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the dump file path.
func (s *FileStore) Path() string { return s.path }

// Get returns the dump content. A missing file reads as empty.
func (s *FileStore) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.cached {
		data := s.cache
		s.mu.RUnlock()
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		return data, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dump %s: %w", s.path, err)
	}
	s.cache = data
	s.cached = true
	logging.StoreDebug("Cached %d bytes from %s", len(data), s.path)
	return data, nil
}

// Put replaces the dump file and the cache.
func (s *FileStore) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := dump.WriteFileAtomic(s.path, data); err != nil {
		s.cached = false
		return err
	}
	s.cache = append([]byte(nil), data...)
	s.cached = true
	logging.Store("Wrote %d bytes to %s", len(data), s.path)
	return nil
}

// Invalidate drops the cache so the next Get re-reads the file.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.cached = false
	s.cache = nil
	s.mu.Unlock()
	logging.StoreDebug("Cache invalidated for %s", s.path)
}

// CacheHits returns how many reads were served from the cache.
func (s *FileStore) CacheHits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits
}
