// internal/review/session.go
//
// The curation pass over staged downloads. Every decision is persisted
// to the review log the moment it is made, so a session interrupted
// part-way loses nothing: applied and deleted assets stay decided,
// skipped assets come back in the next session.

package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/growthlabs/curator/internal/infra"
	"github.com/growthlabs/curator/internal/publish"
	"github.com/growthlabs/curator/internal/staging"
	"github.com/growthlabs/curator/internal/store"
)

// Review decisions as recorded in the log.
const (
	DecisionApplied = "applied"
	DecisionSkipped = "skipped"
	DecisionDeleted = "deleted"
)

// Entry is one recorded decision.
type Entry struct {
	Decision  string    `json:"decision"`
	DecidedAt time.Time `json:"decided_at"`
}

type logDocument struct {
	Decisions   map[string]Entry `json:"decisions"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Attribution credits the photographer of one applied image.
type Attribution struct {
	AssetName        string `json:"asset_name"`
	PhotographerName string `json:"photographer_name"`
	PhotographerURL  string `json:"photographer_url"`
	SourceURL        string `json:"source_url"`
}

type attributionsDocument struct {
	Attributions []Attribution `json:"attributions"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

type publisherAPI interface {
	Publish(ctx context.Context, name, stagedPath string) (publish.PublishedAsset, error)
}

// Session walks the staged candidates and applies curator decisions.
type Session struct {
	area    *staging.Area
	log     store.Store
	attribs store.Store
	pub     publisherAPI
	logger  infra.Logger
	doc     logDocument
	now     func() time.Time
}

// NewSession opens a session over the staging area, loading any prior
// review log.
func NewSession(area *staging.Area, log, attribs store.Store, pub publisherAPI, logger infra.Logger) (*Session, error) {
	s := &Session{
		area:    area,
		log:     log,
		attribs: attribs,
		pub:     pub,
		logger:  logger,
		now:     time.Now,
	}
	if err := log.Load(&s.doc); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("review: load log: %w", err)
		}
	}
	if s.doc.Decisions == nil {
		s.doc.Decisions = map[string]Entry{}
	}
	return s, nil
}

// Pending returns the staged candidates still awaiting a decision,
// oldest download first. Applied and deleted assets are settled;
// previously skipped ones are offered again.
func (s *Session) Pending() []staging.Meta {
	var out []staging.Meta
	for _, meta := range s.area.All() {
		if meta.Status != staging.StatusPendingReview {
			continue
		}
		if entry, ok := s.doc.Decisions[meta.AssetName]; ok && entry.Decision != DecisionSkipped {
			continue
		}
		if !s.area.HasBinary(meta.AssetName) {
			s.logger.Warn().Str("asset", meta.AssetName).Msg("staged binary missing, excluding from review")
			continue
		}
		out = append(out, meta)
	}
	return out
}

// Apply publishes the staged binary into the asset store and, only once
// that succeeds, records the decision. A publish failure leaves the
// asset undecided so it shows up again next session.
func (s *Session) Apply(ctx context.Context, name string) (publish.PublishedAsset, error) {
	meta, ok := s.area.Get(name)
	if !ok {
		return publish.PublishedAsset{}, fmt.Errorf("review: no staged metadata for %q", name)
	}

	asset, err := s.pub.Publish(ctx, name, s.area.BinaryPath(name))
	if err != nil {
		return publish.PublishedAsset{}, fmt.Errorf("review: publish %s: %w", name, err)
	}

	if err := s.area.SetStatus(name, staging.StatusApplied); err != nil {
		return asset, err
	}
	if err := s.record(name, DecisionApplied); err != nil {
		return asset, err
	}
	if err := s.regenerateAttributions(); err != nil {
		return asset, err
	}
	s.logger.Info().Str("asset", name).Str("by", meta.AttributionName).Msg("applied")
	return asset, nil
}

// Skip records that the curator passed on the asset for now. The
// staged binary stays put and the asset is offered again next session.
func (s *Session) Skip(name string) error {
	if _, ok := s.area.Get(name); !ok {
		return fmt.Errorf("review: no staged metadata for %q", name)
	}
	if err := s.record(name, DecisionSkipped); err != nil {
		return err
	}
	s.logger.Info().Str("asset", name).Msg("skipped")
	return nil
}

// Delete rejects the candidate: the staged binary is removed and the
// decision recorded. The metadata entry survives so the rejection is
// visible in status listings.
func (s *Session) Delete(name string) error {
	if _, ok := s.area.Get(name); !ok {
		return fmt.Errorf("review: no staged metadata for %q", name)
	}
	if err := s.area.RemoveBinary(name); err != nil {
		return err
	}
	if err := s.area.SetStatus(name, staging.StatusDeleted); err != nil {
		return err
	}
	if err := s.record(name, DecisionDeleted); err != nil {
		return err
	}
	s.logger.Info().Str("asset", name).Msg("deleted")
	return nil
}

// BinaryPath returns the staged binary location for name, for viewers
// that want to open the image.
func (s *Session) BinaryPath(name string) string {
	return s.area.BinaryPath(name)
}

// Decision returns the recorded decision for name, if any.
func (s *Session) Decision(name string) (Entry, bool) {
	entry, ok := s.doc.Decisions[name]
	return entry, ok
}

// Counts tallies recorded decisions by kind.
func (s *Session) Counts() (applied, skipped, deleted int) {
	for _, entry := range s.doc.Decisions {
		switch entry.Decision {
		case DecisionApplied:
			applied++
		case DecisionSkipped:
			skipped++
		case DecisionDeleted:
			deleted++
		}
	}
	return applied, skipped, deleted
}

// LoadCounts tallies the persisted review log without opening a full
// session, for status reporting.
func LoadCounts(log store.Store) (applied, skipped, deleted int, err error) {
	var doc logDocument
	if err := log.Load(&doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, 0, 0, nil
		}
		return 0, 0, 0, fmt.Errorf("review: load log: %w", err)
	}
	for _, entry := range doc.Decisions {
		switch entry.Decision {
		case DecisionApplied:
			applied++
		case DecisionSkipped:
			skipped++
		case DecisionDeleted:
			deleted++
		}
	}
	return applied, skipped, deleted, nil
}

func (s *Session) record(name, decision string) error {
	s.doc.Decisions[name] = Entry{Decision: decision, DecidedAt: s.now()}
	s.doc.LastUpdated = s.now()
	if err := s.log.Save(s.doc); err != nil {
		return fmt.Errorf("review: persist log: %w", err)
	}
	return nil
}

// regenerateAttributions rebuilds the credit manifest from every
// applied entry, so the file is always a complete picture rather than
// an append log.
func (s *Session) regenerateAttributions() error {
	doc := attributionsDocument{GeneratedAt: s.now()}
	for _, meta := range s.area.All() {
		if meta.Status != staging.StatusApplied {
			continue
		}
		doc.Attributions = append(doc.Attributions, Attribution{
			AssetName:        meta.AssetName,
			PhotographerName: meta.AttributionName,
			PhotographerURL:  meta.AttributionURL,
			SourceURL:        meta.SourceURL,
		})
	}
	sort.Slice(doc.Attributions, func(i, j int) bool {
		return doc.Attributions[i].AssetName < doc.Attributions[j].AssetName
	})
	if err := s.attribs.Save(doc); err != nil {
		return fmt.Errorf("review: persist attributions: %w", err)
	}
	return nil
}
