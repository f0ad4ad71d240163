// internal/acquire/downloader.go
//
// Stages a selected candidate: registers the download with the
// provider (a second rate-limited call, per its usage terms), fetches
// the binary into the staging area and records provenance. Checkpoints
// are updated here so every outcome is durable before the driver moves
// on.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/growthlabs/curator/internal/checkpoint"
	"github.com/growthlabs/curator/internal/config"
	"github.com/growthlabs/curator/internal/infra"
	"github.com/growthlabs/curator/internal/staging"
)

// trackAPI is the slice of the provider client the downloader needs.
type trackAPI interface {
	TrackDownload(ctx context.Context, downloadLocation string) error
}

// Downloader fetches candidate binaries into the staging area.
type Downloader struct {
	api         trackAPI
	gate        requestGate
	area        *staging.Area
	checkpoints *checkpoint.Store
	httpClient  *http.Client
	logger      infra.Logger
	now         func() time.Time
}

// NewDownloader wires a downloader. httpClient may be nil, in which
// case a client with a generous timeout is used for the binary fetch.
func NewDownloader(api trackAPI, gate requestGate, area *staging.Area, checkpoints *checkpoint.Store, httpClient *http.Client, logger infra.Logger) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Downloader{
		api:         api,
		gate:        gate,
		area:        area,
		checkpoints: checkpoints,
		httpClient:  httpClient,
		logger:      logger,
		now:         time.Now,
	}
}

// Stage downloads the candidate's binary and records its metadata. On
// success the asset is checkpointed completed; on failure it is
// checkpointed failed with the error text and no partial binary is
// left on disk.
func (d *Downloader) Stage(ctx context.Context, req config.AssetRequest, cand staging.Candidate) (staging.Meta, error) {
	if err := d.track(ctx, cand); err != nil {
		return staging.Meta{}, d.fail(cand.AssetName, err)
	}

	if err := d.fetchBinary(ctx, cand); err != nil {
		return staging.Meta{}, d.fail(cand.AssetName, err)
	}

	meta := staging.Meta{
		AssetName:       cand.AssetName,
		Category:        req.Category,
		Purpose:         req.Description,
		ProviderID:      cand.ProviderID,
		SourceURL:       cand.SourceURL,
		AttributionName: cand.AttributionName,
		AttributionURL:  cand.AttributionURL,
		Description:     cand.Description,
		Likes:           cand.Likes,
		Width:           cand.Width,
		Height:          cand.Height,
		DownloadedAt:    d.now(),
		Status:          staging.StatusPendingReview,
	}
	if err := d.area.Put(meta); err != nil {
		return staging.Meta{}, d.fail(cand.AssetName, err)
	}
	if err := d.checkpoints.MarkCompleted(cand.AssetName); err != nil {
		return staging.Meta{}, err
	}
	d.logger.Info().
		Str("asset", cand.AssetName).
		Str("photo", cand.ProviderID).
		Str("by", cand.AttributionName).
		Msg("staged candidate")
	return meta, nil
}

func (d *Downloader) track(ctx context.Context, cand staging.Candidate) error {
	if err := d.gate.Wait(ctx); err != nil {
		return err
	}
	trackErr := d.api.TrackDownload(ctx, cand.TrackingRef)
	if err := d.gate.Record(); err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	if trackErr != nil {
		return fmt.Errorf("track download: %w", trackErr)
	}
	return nil
}

// fetchBinary writes to a temporary path and renames on success so a
// crash mid-download never leaves a partial staged file.
func (d *Downloader) fetchBinary(ctx context.Context, cand staging.Candidate) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cand.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	final := d.area.BinaryPath(cand.AssetName)
	tmp := final + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize staging file: %w", err)
	}
	return nil
}

// fail records the checkpoint failure and returns the original error
// for the driver's log line. Cancellation is not a failure; the asset
// simply stays pending for the next run.
func (d *Downloader) fail(name string, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	if err := d.checkpoints.MarkFailed(name, cause.Error()); err != nil {
		d.logger.Error().Err(err).Str("asset", name).Msg("could not record failure checkpoint")
	}
	return cause
}
