// internal/checkpoint/checkpoint.go
//
// Durable record of which named assets have completed acquisition,
// failed, or are still pending. The whole document is rewritten on
// every mutation so a reader always sees a consistent snapshot, and a
// re-run of the batch driver only touches pending or failed names.

package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/growthlabs/curator/internal/store"
)

// State is an asset's acquisition status.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Record is one asset's checkpoint entry.
type Record struct {
	State     State     `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type document struct {
	Assets map[string]Record `json:"assets"`
}

// Store tracks acquisition checkpoints keyed by asset name.
type Store struct {
	backend store.Store
	doc     document
	now     func() time.Time
}

// New loads existing checkpoints from the backend. A missing document
// means nothing has been acquired yet.
func New(backend store.Store) (*Store, error) {
	s := &Store{backend: backend, now: time.Now}
	if err := backend.Load(&s.doc); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("checkpoint: load: %w", err)
		}
	}
	if s.doc.Assets == nil {
		s.doc.Assets = map[string]Record{}
	}
	return s, nil
}

// MarkCompleted records a terminal successful acquisition for name.
func (s *Store) MarkCompleted(name string) error {
	s.doc.Assets[name] = Record{State: StateCompleted, UpdatedAt: s.now()}
	return s.flush()
}

// MarkFailed records a retryable failure with its reason.
func (s *Store) MarkFailed(name, reason string) error {
	s.doc.Assets[name] = Record{State: StateFailed, Reason: reason, UpdatedAt: s.now()}
	return s.flush()
}

// IsCompleted reports whether name has finished acquisition. This is
// the sole gate the batch driver uses to skip assets, which is what
// makes multi-run acquisition idempotent.
func (s *Store) IsCompleted(name string) bool {
	return s.doc.Assets[name].State == StateCompleted
}

// Record returns the stored entry for name. An asset present in
// configuration but absent here is pending.
func (s *Store) Record(name string) Record {
	if rec, ok := s.doc.Assets[name]; ok {
		return rec
	}
	return Record{State: StatePending}
}

// PendingOrFailed filters the configured names down to those still
// needing acquisition, preserving the given order.
func (s *Store) PendingOrFailed(configured []string) []string {
	var out []string
	for _, name := range configured {
		if !s.IsCompleted(name) {
			out = append(out, name)
		}
	}
	return out
}

// Counts partitions the configured names by state.
func (s *Store) Counts(configured []string) (completed, failed, pending int) {
	for _, name := range configured {
		switch s.Record(name).State {
		case StateCompleted:
			completed++
		case StateFailed:
			failed++
		default:
			pending++
		}
	}
	return completed, failed, pending
}

func (s *Store) flush() error {
	if err := s.backend.Save(s.doc); err != nil {
		return fmt.Errorf("checkpoint: persist: %w", err)
	}
	return nil
}
