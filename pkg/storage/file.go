package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore implements Store as a single JSON object on disk. Every write
// rewrites the file through a temp file + rename so a crash never leaves a
// half-written document. The document is re-read whenever the file changed
// since the last load, so writes from another process are seen and are not
// clobbered by a stale copy.
type FileStore struct {
	mu      sync.Mutex
	path    string
	data    map[string]string
	modTime time.Time
	size    int64
}

// NewFileStore opens (or creates) the JSON document at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: resolve home: %w", err)
		}
		path = filepath.Join(home, ".finscreen", "state.json")
	}

	fs := &FileStore{path: path, data: make(map[string]string)}
	if err := fs.reloadLocked(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the backing file location.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reloadLocked(); err != nil {
		return "", err
	}
	v, ok := f.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reloadLocked(); err != nil {
		return err
	}
	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flushLocked(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.reloadLocked(); err != nil {
		return err
	}
	changed := false
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.flushLocked()
}

func (f *FileStore) Close() error { return nil }

// reloadLocked replaces data with the file's content when the file's size or
// modification time differs from the last load or write.
func (f *FileStore) reloadLocked() error {
	info, err := os.Stat(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !f.modTime.IsZero() {
			f.data = make(map[string]string)
			f.modTime, f.size = time.Time{}, 0
		}
		return nil
	case err != nil:
		return fmt.Errorf("storage: stat %s: %w", f.path, err)
	}
	if info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return nil
	}

	b, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", f.path, err)
	}
	data := make(map[string]string)
	if len(b) > 0 {
		if err := json.Unmarshal(b, &data); err != nil {
			return fmt.Errorf("storage: parse %s: %w", f.path, err)
		}
	}
	f.data = data
	f.modTime, f.size = info.ModTime(), info.Size()
	return nil
}

func (f *FileStore) flushLocked() error {
	b, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("storage: write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	if info, err := os.Stat(f.path); err == nil {
		f.modTime, f.size = info.ModTime(), info.Size()
	}
	return nil
}
