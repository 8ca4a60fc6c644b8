package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"mediawatch/internal/config"
	"mediawatch/internal/logging"
	"mediawatch/internal/metrics"
	"mediawatch/internal/pipeline"
	"mediawatch/internal/services"
)

// ErrAlreadyRunning is returned by Start when the daemon or another process
// holds the lock.
var ErrAlreadyRunning = errors.New("another mediawatch daemon instance is already running")

// RunFunc executes one pipeline pass.
type RunFunc func(ctx context.Context) (pipeline.Report, error)

// Daemon schedules pipeline runs and enforces single-instance execution.
type Daemon struct {
	schedule   string
	runTimeout time.Duration
	textfile   string
	run        RunFunc
	logger     *slog.Logger
	metrics    *metrics.Registry

	lockPath string
	lock     *flock.Flock

	runMu   sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	lastMu sync.Mutex
	last   *LastRun
}

// LastRun describes the most recent finished run.
type LastRun struct {
	Report pipeline.Report
	Err    error
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Schedule     string
	NextRun      time.Time
	LockFilePath string
	LastRun      *LastRun
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithMetrics attaches a registry that is updated after every run and written
// to the configured textfile.
func WithMetrics(reg *metrics.Registry) Option {
	return func(d *Daemon) {
		d.metrics = reg
	}
}

// New constructs a daemon for the schedule in cfg.
func New(cfg *config.Config, run RunFunc, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || run == nil {
		return nil, errors.New("daemon requires config and run function")
	}
	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "parse schedule", cfg.Schedule.Cron, err)
	}
	d := &Daemon{
		schedule:   cfg.Schedule.Cron,
		runTimeout: cfg.RunTimeout(),
		textfile:   cfg.Metrics.TextfilePath,
		run:        run,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		lockPath:   cfg.Schedule.LockPath,
		lock:       flock.New(cfg.Schedule.LockPath),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Start acquires the daemon lock and begins firing runs on the schedule.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return ErrAlreadyRunning
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.cron = cron.New()
	d.entry, err = d.cron.AddFunc(d.schedule, func() {
		if _, _, err := d.Trigger(d.ctx); err != nil && d.ctx.Err() == nil {
			d.logger.Debug("scheduled run returned error", logging.Error(err))
		}
	})
	if err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		return services.Wrap(services.ErrConfiguration, "daemon", "schedule run", d.schedule, err)
	}
	d.cron.Start()

	d.running.Store(true)
	d.logger.Info("mediawatch daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("schedule", d.schedule),
		logging.String("next_run", d.cron.Entry(d.entry).Next.Format(time.RFC3339)),
	)
	return nil
}

// Stop cancels any in-flight run, waits for it to finish, and releases the
// lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.cron.Stop().Done()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("mediawatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon. It is safe to call more than once.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Trigger runs the pipeline once unless a run is already in flight, in which
// case it returns ran=false without waiting.
func (d *Daemon) Trigger(ctx context.Context) (report pipeline.Report, ran bool, err error) {
	if !d.runMu.TryLock() {
		logging.WarnWithContext(d.logger, "run skipped", "run_skipped",
			logging.String(logging.FieldImpact, "previous run is still in progress"),
		)
		return pipeline.Report{}, false, nil
	}
	defer d.runMu.Unlock()

	runCtx := ctx
	if d.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.runTimeout)
		defer cancel()
	}

	report, err = d.run(runCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		logging.ErrorWithContext(d.logger, "run timed out", "run_timeout",
			logging.Duration("timeout", d.runTimeout),
			logging.String(logging.FieldErrorHint, "raise schedule.run_timeout or lower the library size per run"),
		)
	}

	d.lastMu.Lock()
	d.last = &LastRun{Report: report, Err: err}
	d.lastMu.Unlock()

	if d.metrics != nil {
		d.metrics.ObserveRun(report, err)
		if werr := d.metrics.WriteTextfile(d.textfile); werr != nil {
			logging.WarnWithContext(d.logger, "metrics export failed", "metrics_export_failed",
				logging.Error(werr),
				logging.String("path", d.textfile),
			)
		}
	}
	return report, true, err
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Schedule:     d.schedule,
		LockFilePath: d.lockPath,
	}
	if status.Running && d.cron != nil {
		status.NextRun = d.cron.Entry(d.entry).Next
	}
	d.lastMu.Lock()
	status.LastRun = d.last
	d.lastMu.Unlock()
	return status
}
