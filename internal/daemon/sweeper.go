package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"reelsync/internal/logging"
	"reelsync/internal/workspace"
)

// SweepResult summarizes one housekeeping pass.
type SweepResult struct {
	At                time.Time
	ExpiredJobs       int
	RemovedOutputs    int
	RemovedWorkspaces int
	PrunedLogs        int
	Errors            []string
}

// Sweep expires finished jobs past the output retention window, removes
// workspaces no running job owns, and prunes old log files. Passes never
// overlap; a second caller waits for the first.
func (d *Daemon) Sweep(ctx context.Context) (SweepResult, error) {
	d.sweepMu.Lock()
	defer d.sweepMu.Unlock()

	result := SweepResult{At: time.Now()}
	var errs []error

	if retention := d.cfg.OutputRetention(); retention > 0 {
		expired, err := d.store.FinishedBefore(ctx, result.At.Add(-retention))
		if err != nil {
			errs = append(errs, fmt.Errorf("list expired jobs: %w", err))
		}
		for _, job := range expired {
			if job.OutputPath != "" {
				if err := os.Remove(job.OutputPath); err == nil {
					result.RemovedOutputs++
				} else if !errors.Is(err, os.ErrNotExist) {
					errs = append(errs, fmt.Errorf("remove output %s: %w", job.OutputPath, err))
					continue
				}
			}
			removed, err := d.store.Remove(ctx, job.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("remove job %s: %w", job.ID, err))
				continue
			}
			if removed {
				result.ExpiredJobs++
			}
		}
	}

	// A workspace older than the job timeout whose job is not running was
	// left behind by a crash.
	cleaned := workspace.CleanStale(ctx, d.cfg.Paths.WorkDir, d.cfg.JobTimeout(), d.orch.Active(), d.logger)
	result.RemovedWorkspaces = len(cleaned.Removed)
	for _, cleanupErr := range cleaned.Errors {
		errs = append(errs, fmt.Errorf("remove workspace %s: %w", cleanupErr.Path, cleanupErr.Error))
	}

	result.PrunedLogs = logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, "reelsync*.log*",
		filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName), d.cfg.Logging.RetentionDays)

	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}
	d.lastSweep.Store(&result)

	d.logger.Info("sweep complete",
		logging.String(logging.FieldEventType, "sweep_complete"),
		logging.Int("expired_jobs", result.ExpiredJobs),
		logging.Int("removed_outputs", result.RemovedOutputs),
		logging.Int("removed_workspaces", result.RemovedWorkspaces),
		logging.Int("pruned_logs", result.PrunedLogs),
		logging.Int("errors", len(result.Errors)),
	)
	return result, errors.Join(errs...)
}
