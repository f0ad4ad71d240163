// internal/store/store.go
//
// Small JSON document store used for every piece of pipeline state:
// the rate-limit window, acquisition checkpoints, staging metadata and
// the review log. Each document is one file, read fully and rewritten
// fully on every mutation so readers always see a consistent snapshot.

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no document has been persisted yet.
var ErrNotFound = errors.New("store: document not found")

// Store persists a single JSON document. Implementations must make
// Save atomic: a crash mid-write may lose the update but never leaves
// a truncated document behind.
type Store interface {
	Load(v any) error
	Save(v any) error
}

// JSONFile stores one document at a fixed path, writing through a
// temporary file and renaming into place.
type JSONFile struct {
	path string
}

// NewJSONFile creates a store rooted at the given file path. Parent
// directories are created on the first Save.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the backing file location.
func (s *JSONFile) Path() string {
	return s.path
}

// Load reads the persisted document into v if present.
func (s *JSONFile) Load(v any) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	return nil
}

// Save writes the document to disk atomically.
func (s *JSONFile) Save(v any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: ensure dir for %s: %w", s.path, err)
	}
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", s.path, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}
	return nil
}

// Memory is an in-process Store for tests. It round-trips documents
// through JSON so tests exercise the same encoding as JSONFile.
type Memory struct {
	data []byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load decodes the last saved document into v.
func (m *Memory) Load(v any) error {
	if m.data == nil {
		return ErrNotFound
	}
	if err := json.Unmarshal(m.data, v); err != nil {
		return fmt.Errorf("store: parse in-memory document: %w", err)
	}
	return nil
}

// Save encodes v and keeps it in memory.
func (m *Memory) Save(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode in-memory document: %w", err)
	}
	m.data = encoded
	return nil
}
