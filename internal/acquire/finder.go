// internal/acquire/finder.go
//
// Candidate selection: one rate-limited search per query term, tried
// in configured order until a result clears the quality bar.

package acquire

import (
	"context"
	"fmt"

	"github.com/growthlabs/curator/internal/config"
	"github.com/growthlabs/curator/internal/infra"
	"github.com/growthlabs/curator/internal/staging"
	"github.com/growthlabs/curator/internal/unsplash"
)

// searchAPI is the slice of the provider client the finder needs.
type searchAPI interface {
	SearchPhotos(ctx context.Context, req unsplash.SearchRequest) ([]unsplash.Photo, error)
}

// requestGate serializes outbound provider calls against the shared
// quota. Wait blocks until a slot is free; Record must run immediately
// after every actual call, successful or not.
type requestGate interface {
	Wait(ctx context.Context) error
	Record() error
}

// Finder executes ranked searches and returns the single best
// qualifying candidate for an asset request.
type Finder struct {
	api     searchAPI
	gate    requestGate
	quality config.QualityConfig
	perPage int
	logger  infra.Logger
}

// NewFinder wires a finder to the provider client and request gate.
func NewFinder(api searchAPI, gate requestGate, quality config.QualityConfig, perPage int, logger infra.Logger) *Finder {
	return &Finder{api: api, gate: gate, quality: quality, perPage: perPage, logger: logger}
}

// FindBestCandidate tries each query term in order and returns the
// highest-liked qualifying photo from the first term that yields one,
// or nil when no term does. A provider error on one term is logged and
// treated as "no qualifying result for that term"; the next term still
// gets its chance. Errors are only returned for cancellation or for a
// failure to persist the request log, since proceeding past either
// could blow the real provider limit.
func (f *Finder) FindBestCandidate(ctx context.Context, req config.AssetRequest) (*staging.Candidate, error) {
	for _, term := range req.QueryTerms {
		if err := f.gate.Wait(ctx); err != nil {
			return nil, err
		}

		photos, searchErr := f.api.SearchPhotos(ctx, unsplash.SearchRequest{
			Query:       term,
			PerPage:     f.perPage,
			Orientation: req.Orientation,
			Color:       req.Color,
		})
		if err := f.gate.Record(); err != nil {
			return nil, fmt.Errorf("acquire: %w", err)
		}
		if searchErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn().Err(searchErr).
				Str("asset", req.Name).
				Str("term", term).
				Msg("search failed, trying next term")
			continue
		}

		if best := f.selectBest(photos); best != nil {
			f.logger.Debug().
				Str("asset", req.Name).
				Str("term", term).
				Str("photo", best.ID).
				Int("likes", best.Likes).
				Msg("qualifying candidate found")
			return candidateFrom(req.Name, *best), nil
		}
	}
	return nil, nil
}

// selectBest filters photos to those meeting the thresholds and picks
// the most-liked one. Ties keep the provider's native order.
func (f *Finder) selectBest(photos []unsplash.Photo) *unsplash.Photo {
	var best *unsplash.Photo
	for i := range photos {
		p := &photos[i]
		if p.Likes < f.quality.MinLikes || p.Width < f.quality.MinWidth {
			continue
		}
		if best == nil || p.Likes > best.Likes {
			best = p
		}
	}
	return best
}

func candidateFrom(assetName string, p unsplash.Photo) *staging.Candidate {
	description := p.Description
	if description == "" {
		description = p.AltDescription
	}
	return &staging.Candidate{
		AssetName:       assetName,
		ProviderID:      p.ID,
		SourceURL:       p.URLs.Full,
		TrackingRef:     p.Links.DownloadLocation,
		AttributionName: p.User.Name,
		AttributionURL:  p.User.Links.HTML,
		Description:     description,
		Likes:           p.Likes,
		Width:           p.Width,
		Height:          p.Height,
	}
}
