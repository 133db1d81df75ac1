// Package store persists named JSON collections on disk and serializes
// read-modify-write access to them with per-collection advisory file locks.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/capitao/athena-tasks/internal/apperrors"
)

// Lock acquisition protocol. These constants are a cross-process contract:
// any other process touching the same data directory must honor the same
// retry budget and backoff curve.
const (
	lockRetries    = 5
	lockBackoffMin = 100 * time.Millisecond
	lockBackoffMax = 1000 * time.Millisecond
)

// Store manages the JSON collections under a single data directory.
// Collection names map to <dir>/<name>.json; names may contain slashes
// (e.g. "archive/tasks-2026-08").
type Store struct {
	dir    string
	logger *slog.Logger

	// mu guards cols. The per-collection mutexes serialize goroutines in
	// this process; the flock serializes against other processes.
	mu   sync.Mutex
	cols map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.With("component", "store"),
		cols:   make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the data directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// FilePath returns the on-disk path backing a collection.
func (s *Store) FilePath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) collectionMutex(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.cols[name]
	if !ok {
		m = &sync.Mutex{}
		s.cols[name] = m
	}
	return m
}

// Read returns the records of a collection. An absent or whitespace-only
// file reads as an empty collection. Reads take no lock and observe
// whatever was last fully written.
func (s *Store) Read(name string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.FilePath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	return decodeCollection(name, data)
}

// Export returns the raw bytes of a collection, holding its advisory lock
// for the read so a concurrent Mutate cannot interleave. An absent
// collection exports as an empty array.
func (s *Store) Export(name string) ([]byte, error) {
	cm := s.collectionMutex(name)
	cm.Lock()
	defer cm.Unlock()

	path := s.FilePath(name)
	if err := s.ensureFile(path); err != nil {
		return nil, err
	}

	fl := flock.New(path + ".lock")
	if err := s.acquire(fl, name); err != nil {
		return nil, err
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", "collection", name, "error", err)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	return data, nil
}

// Mutate applies transform to the current contents of a collection and
// persists the result, holding the collection's advisory lock for the whole
// read-modify-write. It is the only sanctioned path to change a collection.
// A transform error aborts the mutation with nothing written; the lock is
// released on all paths.
func (s *Store) Mutate(name string, transform func([]json.RawMessage) ([]json.RawMessage, error)) ([]json.RawMessage, error) {
	cm := s.collectionMutex(name)
	cm.Lock()
	defer cm.Unlock()

	path := s.FilePath(name)
	if err := s.ensureFile(path); err != nil {
		return nil, err
	}

	fl := flock.New(path + ".lock")
	if err := s.acquire(fl, name); err != nil {
		return nil, err
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", "collection", name, "error", err)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	current, err := decodeCollection(name, data)
	if err != nil {
		return nil, err
	}

	next, err := transform(current)
	if err != nil {
		return nil, err
	}

	if err := s.writeAtomic(path, next); err != nil {
		return nil, err
	}
	return next, nil
}

// acquire tries the file lock once and then retries lockRetries more times,
// backing off from lockBackoffMin toward the lockBackoffMax ceiling between
// attempts. The full wait budget is 100+200+400+800+1000ms.
func (s *Store) acquire(fl *flock.Flock, name string) error {
	backoff := lockBackoffMin
	for attempt := 0; attempt <= lockRetries; attempt++ {
		locked, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to lock collection %s: %w", name, err)
		}
		if locked {
			return nil
		}
		if attempt == lockRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > lockBackoffMax {
			backoff = lockBackoffMax
		}
	}
	return apperrors.NewLockTimeout("could not acquire lock for %s after %d attempts", name, lockRetries+1)
}

// ensureFile creates the collection file with an empty array if absent, so
// the lock has a file to attach to.
func (s *Store) ensureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create collection dir: %w", err)
	}
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

// writeAtomic persists the full replacement via write-to-temp-then-rename,
// so readers never observe a partial write.
func (s *Store) writeAtomic(path string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode collection: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// List returns the names of existing collections under a subdirectory of the
// data dir ("" for the root), without the .json extension.
func (s *Store) List(subdir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, subdir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if subdir != "" {
			name = subdir + "/" + name
		}
		names = append(names, name)
	}
	return names, nil
}

// decodeCollection parses collection bytes. Whitespace-only content is an
// empty collection; anything else that fails to parse is surfaced as corrupt
// data, never silently treated as empty.
func decodeCollection(name string, data []byte) ([]json.RawMessage, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewCorruptData("failed to parse collection %s: %v", name, err)
	}
	return records, nil
}

// ReadAs reads a collection decoded into typed records.
func ReadAs[T any](s *Store, name string) ([]T, error) {
	raw, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	return decodeRecords[T](name, raw)
}

// MutateAs runs a typed transform through Mutate and returns the new
// typed contents.
func MutateAs[T any](s *Store, name string, transform func([]T) ([]T, error)) ([]T, error) {
	var out []T
	_, err := s.Mutate(name, func(raw []json.RawMessage) ([]json.RawMessage, error) {
		current, err := decodeRecords[T](name, raw)
		if err != nil {
			return nil, err
		}
		next, err := transform(current)
		if err != nil {
			return nil, err
		}
		encoded := make([]json.RawMessage, 0, len(next))
		for i := range next {
			data, err := json.Marshal(next[i])
			if err != nil {
				return nil, fmt.Errorf("failed to encode record: %w", err)
			}
			encoded = append(encoded, data)
		}
		out = next
		return encoded, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRecords[T any](name string, raw []json.RawMessage) ([]T, error) {
	records := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, apperrors.NewCorruptData("failed to parse record in %s: %v", name, err)
		}
		records = append(records, v)
	}
	return records, nil
}
