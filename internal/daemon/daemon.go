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

	"reelsync/internal/config"
	"reelsync/internal/deps"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/pipeline"
	"reelsync/internal/preflight"
	"reelsync/internal/workspace"
)

// LockFileName is the single-instance lock under paths.state_dir.
const LockFileName = "reelsync.lock"

// Daemon owns the orchestrator, the sweeper schedule, and the API server.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *jobs.Store
	orch   *pipeline.Orchestrator
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	scheduler *cron.Cron
	sweepMu   sync.Mutex
	lastSweep atomic.Pointer[SweepResult]

	depsMu sync.Mutex
	deps   []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	ActiveJobs   int
	JobCounts    map[jobs.State]int
	LastSweep    *SweepResult
	Workspaces   WorkspaceUsage
	Dependencies []deps.Status
}

// WorkspaceUsage summarizes the job workspaces present under work_dir.
// Stale counts directories the next sweep would remove.
type WorkspaceUsage struct {
	Count int
	Stale int
	Bytes int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, orch *pipeline.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		orch:     orch,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, schedules the
// sweeper, and starts the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelsync daemon instance is already running")
	}

	if n, err := d.store.FailInterrupted(ctx); err != nil {
		d.unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		logging.WarnWithContext(d.logger, "failed jobs interrupted by a previous shutdown", "jobs_interrupted",
			logging.Int64("count", n),
			logging.String(logging.FieldImpact, "those jobs must be resubmitted"),
			logging.String(logging.FieldErrorHint, "check the previous daemon log for the reason it stopped"),
		)
	}

	d.refreshDependencies(ctx)

	scheduler := cron.New(cron.WithChain(
		cron.Recover(cronLogger{d.logger}),
		cron.SkipIfStillRunning(cronLogger{d.logger}),
	))
	if _, err := scheduler.AddFunc(d.cfg.Workflow.CleanupSchedule, func() {
		if _, err := d.Sweep(context.Background()); err != nil {
			d.logger.Warn("scheduled sweep failed", logging.Error(err))
		}
	}); err != nil {
		d.unlock()
		return fmt.Errorf("schedule sweeper: %w", err)
	}

	if err := d.api.start(); err != nil {
		d.unlock()
		return err
	}

	scheduler.Start()
	d.scheduler = scheduler
	d.running.Store(true)
	d.logger.Info("reelsync daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()),
		logging.String("cleanup_schedule", d.cfg.Workflow.CleanupSchedule),
	)
	return nil
}

// Stop stops the API, cancels running jobs, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
		d.scheduler = nil
	}
	d.orch.Shutdown()
	d.unlock()
	d.running.Store(false)
	d.logger.Info("reelsync daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	d.depsMu.Lock()
	dependencies := append([]deps.Status(nil), d.deps...)
	d.depsMu.Unlock()
	active := d.orch.Active()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		ActiveJobs:   len(active),
		JobCounts:    counts,
		LastSweep:    d.lastSweep.Load(),
		Workspaces:   d.workspaceUsage(active),
		Dependencies: dependencies,
	}
}

func (d *Daemon) workspaceUsage(active map[string]struct{}) WorkspaceUsage {
	dirs, err := workspace.List(d.cfg.Paths.WorkDir)
	if err != nil {
		d.logger.Warn("workspace listing unavailable", logging.Error(err))
	}
	cutoff := time.Now().Add(-d.cfg.JobTimeout())
	var usage WorkspaceUsage
	for _, dir := range dirs {
		usage.Count++
		usage.Bytes += dir.Size
		if _, running := active[dir.JobID]; !running && dir.ModTime.Before(cutoff) {
			usage.Stale++
		}
	}
	return usage
}

func (d *Daemon) refreshDependencies(ctx context.Context) {
	statuses := preflight.CheckSystemDeps(ctx, d.cfg)
	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(d.logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, missing.Description),
			logging.String(logging.FieldErrorHint, "install it or set its path in the config"),
		)
	}
	for _, check := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "jobs may fail until this is fixed"),
		)
	}
	d.depsMu.Lock()
	d.deps = statuses
	d.depsMu.Unlock()
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
