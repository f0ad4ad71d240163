// internal/ratelimit/limiter.go
//
// Trailing-window request limiter for the image search provider. The
// window log is persisted after every recorded request so a new
// process inherits the remaining quota; the provider's hourly limit is
// shared across runs, not per process.

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/growthlabs/curator/internal/infra"
	"github.com/growthlabs/curator/internal/store"
)

// windowLog is the persisted document: an ordered list of request
// timestamps inside (or near) the trailing window.
type windowLog struct {
	RequestLog  []time.Time `json:"request_log"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Limiter enforces a maximum number of requests within a trailing
// window. Not safe for concurrent use; the pipeline issues one request
// at a time by design.
type Limiter struct {
	store   store.Store
	max     int
	window  time.Duration
	entries []time.Time
	logger  infra.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// Option customizes Limiter construction for tests.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleep overrides the blocking sleep used by Wait.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New loads the persisted window log and returns a ready limiter.
func New(st store.Store, max int, window time.Duration, logger infra.Logger, opts ...Option) (*Limiter, error) {
	if max < 1 {
		return nil, fmt.Errorf("ratelimit: max must be >= 1")
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive")
	}
	l := &Limiter{
		store:  st,
		max:    max,
		window: window,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}

	var doc windowLog
	if err := st.Load(&doc); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("ratelimit: load window log: %w", err)
		}
	} else {
		l.entries = doc.RequestLog
	}
	return l, nil
}

// CanProceed reports whether another request fits inside the window.
// Expired entries are purged first.
func (l *Limiter) CanProceed() bool {
	l.purge()
	return len(l.entries) < l.max
}

// Remaining returns how many requests are still available right now.
func (l *Limiter) Remaining() int {
	l.purge()
	return l.max - len(l.entries)
}

// Record appends the current timestamp and flushes the log to durable
// storage before returning. Call it immediately after every actual
// outbound request, successful or not — never before the request, so a
// call that never happened cannot consume quota.
func (l *Limiter) Record() error {
	l.purge()
	l.entries = append(l.entries, l.now())
	doc := windowLog{RequestLog: l.entries, LastUpdated: l.now()}
	if err := l.store.Save(doc); err != nil {
		return fmt.Errorf("ratelimit: persist window log: %w", err)
	}
	return nil
}

// WaitTime returns how long until at least one slot frees up. Zero
// means a request can proceed immediately.
func (l *Limiter) WaitTime() time.Duration {
	l.purge()
	if len(l.entries) < l.max {
		return 0
	}
	oldest := l.entries[0]
	return oldest.Add(l.window).Sub(l.now())
}

// Wait blocks until a request slot is available or the context is
// cancelled, sleeping in coarse increments and reporting the remaining
// wait so an operator can tell the tool is alive, not stuck.
func (l *Limiter) Wait(ctx context.Context) error {
	for !l.CanProceed() {
		remaining := l.WaitTime()
		l.logger.Info().
			Str("wait", remaining.Round(time.Second).String()).
			Msg("rate limit reached, waiting for a free slot")
		step := remaining
		if step > time.Minute {
			step = time.Minute
		}
		if step < time.Second {
			step = time.Second
		}
		if err := l.sleep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) purge() {
	cutoff := l.now().Add(-l.window)
	idx := 0
	for idx < len(l.entries) && !l.entries[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.entries = append([]time.Time(nil), l.entries[idx:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
