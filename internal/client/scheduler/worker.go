// Package scheduler drives the sync service: a periodic trigger gated on
// connectivity, on-demand triggers, deduplication of overlapping runs and
// exponential backoff when a run asks to be retried.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/services"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// Defaults for Config.
const (
	DefaultInterval   = 6 * time.Hour
	DefaultBaseDelay  = 30 * time.Second
	DefaultMaxDelay   = 30 * time.Minute
	DefaultMaxRetries = 5
)

const runKey = "sync"

var errRetryRequested = errors.New("sync run requested retry")

// Runner performs a single sync pass.
type Runner interface {
	Run(ctx context.Context) (services.RunReport, error)
}

// HookPolicy selects the runs after which a Hook fires.
type HookPolicy int

const (
	// AfterSuccess fires only when every pending record was synced.
	AfterSuccess HookPolicy = iota
	// AfterSettled also fires when the remaining failures are terminal
	// rejections, once the run and its retries have finished.
	AfterSettled
)

// Hook runs after a sync pass, in registration order.
type Hook struct {
	Name string
	When HookPolicy
	Fn   func(ctx context.Context) error
}

func (h Hook) due(r services.RunReport) bool {
	if h.When == AfterSettled {
		return r.Settled()
	}
	return r.Outcome == services.OutcomeSuccess
}

// Config tunes the worker. Zero fields take the defaults.
type Config struct {
	Interval   time.Duration
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries uint64
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Worker owns the sync lifecycle. At most one run is active at any time:
// concurrent RunOnce callers share the in-flight run, and triggers that
// arrive while a run is active are coalesced into a single follow-up.
type Worker struct {
	runner  Runner
	conn    services.Connectivity
	cfg     Config
	hooks   []Hook
	logger  logging.Logger
	group   singleflight.Group
	trigger chan struct{}
}

func NewWorker(r Runner, c services.Connectivity, cfg Config, l logging.Logger, hooks ...Hook) *Worker {
	return &Worker{
		runner:  r,
		conn:    c,
		cfg:     cfg.withDefaults(),
		hooks:   hooks,
		logger:  l.With("module", "scheduler"),
		trigger: make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate run from the Start loop. It never blocks;
// a trigger already pending absorbs this one.
func (w *Worker) TriggerNow() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start runs the periodic loop until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info(ctx, "sync scheduler started", "interval", w.cfg.Interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "sync scheduler stopped")
			return
		case <-ticker.C:
			if !w.conn.Online() {
				w.logger.Debug(ctx, "periodic sync skipped, offline")
				continue
			}
		case <-w.trigger:
		}
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error(ctx, "sync run failed", "error", err)
		}
	}
}

// RunOnce performs a sync run with backoff and then the post-run hooks
// whose policy matches the final report. A caller arriving while a run is in flight waits for that run and
// receives its result instead of starting another one.
func (w *Worker) RunOnce(ctx context.Context) (services.RunReport, error) {
	v, err, shared := w.group.Do(runKey, func() (any, error) {
		return w.run(ctx)
	})
	if shared {
		w.logger.Debug(ctx, "sync request joined in-flight run")
	}
	report, _ := v.(services.RunReport)
	return report, err
}

func (w *Worker) backoff() retry.Backoff {
	b := retry.NewExponential(w.cfg.BaseDelay)
	b = retry.WithCappedDuration(w.cfg.MaxDelay, b)
	return retry.WithMaxRetries(w.cfg.MaxRetries, b)
}

func (w *Worker) run(ctx context.Context) (services.RunReport, error) {
	if runID, err := common.MakeRandHexString(4); err == nil {
		ctx = logging.ContextWith(ctx, "run_id", runID)
	}
	var report services.RunReport
	attempt := 0

	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempt++
		var err error
		report, err = w.runner.Run(ctx)
		if err != nil {
			return err
		}
		if report.Outcome == services.OutcomeRetry && !report.Offline {
			w.logger.Warn(ctx, "sync run will be retried", "attempt", attempt, "failed", report.Failed())
			return retry.RetryableError(errRetryRequested)
		}
		return nil
	})

	switch {
	case errors.Is(err, errRetryRequested):
		w.logger.Warn(ctx, "sync retries exhausted", "attempts", attempt)
		return report, nil
	case err != nil:
		return report, err
	}

	for _, h := range w.hooks {
		if !h.due(report) {
			continue
		}
		if err := h.Fn(ctx); err != nil {
			w.logger.Error(ctx, "post-sync hook failed", "hook", h.Name, "error", err)
		}
	}
	return report, nil
}
