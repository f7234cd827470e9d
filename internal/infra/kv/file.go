package kv

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// File is a Store backed by a single JSON document on disk. The whole
// document is loaded on open and rewritten on every mutation, matching
// the storefront's small-state usage (a handful of keys, each a few KB).
// Concurrent processes sharing the same file race with last-writer-wins
// semantics; the store is a soft UX cache, not a system of record.
type File struct {
	path string

	mu    sync.Mutex
	items map[string]json.RawMessage
}

// NewFile opens (or creates) a file-backed store at path. A missing file
// is treated as an empty store; a corrupt file is also treated as empty
// so that one bad write never bricks the client state.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	s := &File{
		path:  path,
		items: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, errors.Wrap(err, "failed to read state file")
	}

	// Corrupt state decodes to an empty map rather than failing open.
	if err := json.Unmarshal(data, &s.items); err != nil {
		s.items = make(map[string]json.RawMessage)
	}

	return s, nil
}

// Get returns the value for key.
func (s *File) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores value under key and flushes the document to disk. The value
// must be valid JSON; the document itself is a JSON object keyed by
// store key.
func (s *File) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return errors.Newf("value for key %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := make(json.RawMessage, len(value))
	copy(v, value)
	s.items[key] = v
	return s.flushLocked()
}

// Delete removes key and flushes.
func (s *File) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return nil
	}
	delete(s.items, key)
	return s.flushLocked()
}

// flushLocked writes the document atomically via a temp file rename.
// Must be called with s.mu held.
func (s *File) flushLocked() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace state file")
	}
	return nil
}
