// internal/acquire/driver.go
//
// Batch acquisition driver: walks the configured asset list in order,
// skips everything already completed, and isolates per-asset failures
// so one broken search never sinks the run.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/growthlabs/curator/internal/checkpoint"
	"github.com/growthlabs/curator/internal/config"
	"github.com/growthlabs/curator/internal/infra"
	"github.com/growthlabs/curator/internal/staging"
	"github.com/growthlabs/curator/internal/store"
)

// ReasonNoCandidate distinguishes "couldn't find a good photo" from a
// broken network in checkpoint records and run summaries.
const ReasonNoCandidate = "no qualifying candidate"

// candidateFinder abstracts Finder for driver tests.
type candidateFinder interface {
	FindBestCandidate(ctx context.Context, req config.AssetRequest) (*staging.Candidate, error)
}

// stager abstracts Downloader for driver tests.
type stager interface {
	Stage(ctx context.Context, req config.AssetRequest, cand staging.Candidate) (staging.Meta, error)
}

// Failure is one asset's failure entry in the run summary.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Summary reports one acquisition run, persisted to state/status.json
// so operators can check the last run without scrolling logs.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Pending    int       `json:"pending"`
	Remaining  int       `json:"remaining_requests"`
	Failures   []Failure `json:"failures,omitempty"`
}

// quotaReader is the read-only limiter view the driver reports from.
type quotaReader interface {
	Remaining() int
}

// Driver runs batch acquisition over the configured asset list.
type Driver struct {
	cfg         *config.Config
	finder      candidateFinder
	downloader  stager
	checkpoints *checkpoint.Store
	quota       quotaReader
	status      store.Store
	logger      infra.Logger
	now         func() time.Time
}

// NewDriver wires the batch driver.
func NewDriver(cfg *config.Config, finder candidateFinder, downloader stager, checkpoints *checkpoint.Store, quota quotaReader, status store.Store, logger infra.Logger) *Driver {
	return &Driver{
		cfg:         cfg,
		finder:      finder,
		downloader:  downloader,
		checkpoints: checkpoints,
		quota:       quota,
		status:      status,
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes every unacquired asset in configured order. It returns
// the run summary together with any error that stopped the batch
// early; per-asset failures are recorded in checkpoints and the
// summary, never returned.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	requests := d.cfg.Requests()
	if len(requests) == 0 {
		return Summary{}, fmt.Errorf("acquire: no assets configured")
	}

	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: d.now(),
		Total:     len(requests),
	}
	d.logger.Info().
		Str("run_id", summary.RunID).
		Int("assets", len(requests)).
		Int("quota_remaining", d.quota.Remaining()).
		Msg("starting acquisition run")

	var runErr error
	for _, req := range requests {
		if d.checkpoints.IsCompleted(req.Name) {
			d.logger.Debug().Str("asset", req.Name).Msg("already acquired, skipping")
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := d.processAsset(ctx, req); err != nil {
			// Only cancellation or a quota-log persistence failure
			// stops the whole batch.
			runErr = err
			break
		}
	}

	summary.FinishedAt = d.now()
	summary.Remaining = d.quota.Remaining()
	d.fillCounts(&summary, requests)
	if err := d.status.Save(summary); err != nil {
		d.logger.Error().Err(err).Msg("could not persist run summary")
	}

	d.logger.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("pending", summary.Pending).
		Int("quota_remaining", summary.Remaining).
		Msg("acquisition run finished")
	return summary, runErr
}

func (d *Driver) processAsset(ctx context.Context, req config.AssetRequest) error {
	cand, err := d.finder.FindBestCandidate(ctx, req)
	if err != nil {
		return err
	}
	if cand == nil {
		d.logger.Warn().Str("asset", req.Name).Msg(ReasonNoCandidate)
		return d.checkpoints.MarkFailed(req.Name, ReasonNoCandidate)
	}

	if _, err := d.downloader.Stage(ctx, req, *cand); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Recorded as a failed checkpoint by the downloader; the batch
		// moves on.
		d.logger.Error().Err(err).Str("asset", req.Name).Msg("staging failed")
	}
	return nil
}

func (d *Driver) fillCounts(summary *Summary, requests []config.AssetRequest) {
	for _, req := range requests {
		rec := d.checkpoints.Record(req.Name)
		switch rec.State {
		case checkpoint.StateCompleted:
			summary.Completed++
		case checkpoint.StateFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Name: req.Name, Reason: rec.Reason})
		default:
			summary.Pending++
		}
	}
}
