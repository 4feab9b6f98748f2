// Package watch runs audits on a recurring cron schedule, so environment
// drift (upgrades, removals, broken installs) surfaces without anyone
// re-running the report by hand.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quarry-labs/pkgaudit"
	"github.com/quarry-labs/pkgaudit/store"
)

// WatcherConfig configures the background audit runner.
type WatcherConfig struct {
	Env     pkgaudit.Environment
	Options pkgaudit.Options

	// Cron is the UTC schedule expression (standard five-field form).
	Cron string

	// Store, when set, receives a snapshot of every completed audit.
	Store *store.Store

	// OnReport is called with every completed report.
	OnReport func(*pkgaudit.Report)

	Now    func() time.Time
	Logger *slog.Logger
}

// Watcher periodically audits the configured environment.
type Watcher struct {
	env      pkgaudit.Environment
	options  pkgaudit.Options
	schedule cron.Schedule
	store    *store.Store
	onReport func(*pkgaudit.Report)
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// prev holds the previous pass's records so drift can be logged.
	prev []pkgaudit.PackageRecord
}

// NewWatcher creates a watcher instance.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Env.Registry == nil {
		return nil, errors.New("watcher registry is nil")
	}
	if cfg.Env.Session == nil {
		return nil, errors.New("watcher session is nil")
	}
	schedule, err := parseCronExpressionUTC(cfg.Cron)
	if err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		env:      cfg.Env,
		options:  cfg.Options,
		schedule: schedule,
		store:    cfg.Store,
		onReport: cfg.OnReport,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Start starts the background schedule loop. Calling Start on a watcher that
// is already started is a no-op.
func (w *Watcher) Start() error {
	if w == nil {
		return errors.New("watcher is nil")
	}

	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		for {
			now := w.now().UTC()
			next := w.schedule.Next(now)

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-loopCtx.Done():
				timer.Stop()
				return
			case <-timer.C:
				w.runDue(loopCtx, next)
			}
		}
	}()
	return nil
}

// Stop stops the schedule loop and waits for it to finish.
func (w *Watcher) Stop(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Watcher) runDue(ctx context.Context, scheduledAt time.Time) {
	if !w.tryMarkRunning() {
		w.logger.Warn("skipping scheduled audit, prior run still active", "scheduled_at", scheduledAt)
		return
	}

	go func() {
		defer w.unmarkRunning()
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("scheduled audit failed", "scheduled_at", scheduledAt, "error", err)
		}
	}()
}

// RunOnce executes a single audit pass, saving a snapshot when a store is
// configured.
func (w *Watcher) RunOnce(ctx context.Context) (*pkgaudit.Report, error) {
	if w == nil {
		return nil, errors.New("watcher is not configured")
	}

	report, err := pkgaudit.Audit(w.env, w.options)
	if err != nil {
		return nil, err
	}

	w.logger.Info("scheduled audit complete",
		"packages", len(report.Records),
		"mismatches", report.Mismatches(),
	)
	w.logDrift(report)

	if w.store != nil {
		snap, err := w.store.Save(ctx, report)
		if err != nil {
			w.logger.Error("persist audit snapshot", "error", err)
		} else {
			w.logger.Info("audit snapshot saved", "snapshot_id", snap.ID)
		}
	}

	if w.onReport != nil {
		w.onReport(report)
	}
	return report, nil
}

// logDrift logs each package whose version or flags changed since the
// previous pass. The first pass has no baseline and logs nothing.
func (w *Watcher) logDrift(report *pkgaudit.Report) {
	w.mu.Lock()
	prev := w.prev
	w.prev = report.Records
	w.mu.Unlock()

	if prev == nil {
		return
	}
	entries := store.Diff(store.Snapshot{Records: prev}, store.Snapshot{Records: report.Records})
	for _, entry := range entries {
		w.logger.Warn("package drift",
			"package", entry.Name,
			"change", string(entry.Kind),
			"from", entry.From,
			"to", entry.To,
		)
	}
}

func (w *Watcher) tryMarkRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

func (w *Watcher) unmarkRunning() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
}

// NextRun reports the next scheduled run time after now, in UTC.
func (w *Watcher) NextRun(now time.Time) time.Time {
	return w.schedule.Next(now.UTC())
}
