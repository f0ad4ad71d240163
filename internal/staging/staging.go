// internal/staging/staging.go
//
// Local scratch storage for downloaded-but-not-yet-published images:
// one binary per asset name plus a single metadata document recording
// provenance for every staged candidate.

package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/growthlabs/curator/internal/store"
)

// Staged-file statuses tracked in the metadata document.
const (
	StatusPendingReview = "pending_review"
	StatusApplied       = "applied"
	StatusDeleted       = "deleted"
)

// Candidate is a provider search result that passed quality filtering.
// Disqualified results never become Candidates.
type Candidate struct {
	AssetName       string
	ProviderID      string
	SourceURL       string
	TrackingRef     string
	AttributionName string
	AttributionURL  string
	Description     string
	Likes           int
	Width           int
	Height          int
}

// Meta is the persisted record for one staged file.
type Meta struct {
	AssetName       string    `json:"asset_name"`
	Filename        string    `json:"filename"`
	Category        string    `json:"category,omitempty"`
	Purpose         string    `json:"purpose,omitempty"`
	ProviderID      string    `json:"provider_id"`
	SourceURL       string    `json:"source_url"`
	AttributionName string    `json:"attribution_name"`
	AttributionURL  string    `json:"attribution_url"`
	Description     string    `json:"description,omitempty"`
	Likes           int       `json:"likes"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	DownloadedAt    time.Time `json:"downloaded_at"`
	Status          string    `json:"status"`
}

type document struct {
	Entries     map[string]Meta `json:"entries"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Area manages the staging directory and its metadata document.
type Area struct {
	dir  string
	meta store.Store
	doc  document
	now  func() time.Time
}

// NewArea opens the staging area rooted at dir, loading any existing
// metadata.
func NewArea(dir string, meta store.Store) (*Area, error) {
	a := &Area{dir: dir, meta: meta, now: time.Now}
	if err := meta.Load(&a.doc); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("staging: load metadata: %w", err)
		}
	}
	if a.doc.Entries == nil {
		a.doc.Entries = map[string]Meta{}
	}
	return a, nil
}

// Dir returns the staging directory.
func (a *Area) Dir() string {
	return a.dir
}

// BinaryPath returns where the staged binary for name lives.
func (a *Area) BinaryPath(name string) string {
	return filepath.Join(a.dir, name+".jpg")
}

// HasBinary reports whether the staged binary exists on disk.
func (a *Area) HasBinary(name string) bool {
	_, err := os.Stat(a.BinaryPath(name))
	return err == nil
}

// Put records (or replaces) the metadata entry for a staged file and
// flushes the document.
func (a *Area) Put(meta Meta) error {
	meta.Filename = filepath.Base(a.BinaryPath(meta.AssetName))
	if meta.Status == "" {
		meta.Status = StatusPendingReview
	}
	a.doc.Entries[meta.AssetName] = meta
	return a.flush()
}

// Get returns the metadata entry for name.
func (a *Area) Get(name string) (Meta, bool) {
	meta, ok := a.doc.Entries[name]
	return meta, ok
}

// All returns every metadata entry ordered by download time, oldest
// first, with name as a tiebreaker for stable listings.
func (a *Area) All() []Meta {
	out := make([]Meta, 0, len(a.doc.Entries))
	for _, meta := range a.doc.Entries {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DownloadedAt.Equal(out[j].DownloadedAt) {
			return out[i].AssetName < out[j].AssetName
		}
		return out[i].DownloadedAt.Before(out[j].DownloadedAt)
	})
	return out
}

// SetStatus updates an entry's status and flushes.
func (a *Area) SetStatus(name, status string) error {
	meta, ok := a.doc.Entries[name]
	if !ok {
		return fmt.Errorf("staging: no metadata for %q", name)
	}
	meta.Status = status
	a.doc.Entries[name] = meta
	return a.flush()
}

// RemoveBinary deletes the staged binary from disk. Metadata stays so
// the deletion remains visible in listings. A missing file is not an
// error; the curator may have cleaned it up manually.
func (a *Area) RemoveBinary(name string) error {
	if err := os.Remove(a.BinaryPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("staging: remove %s: %w", a.BinaryPath(name), err)
	}
	return nil
}

func (a *Area) flush() error {
	a.doc.LastUpdated = a.now()
	if err := a.meta.Save(a.doc); err != nil {
		return fmt.Errorf("staging: persist metadata: %w", err)
	}
	return nil
}
