package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/services"
	"reelsync/internal/workspace"
)

var errCanceledByUser = errors.New("canceled by request")

// stage is one step of the forward pass.
type stage struct {
	state jobs.State
	run   func(context.Context, *jobRun) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{state: jobs.StateAcquiring, run: o.acquire},
		{state: jobs.StateTranscribing, run: o.transcribe},
		{state: jobs.StateSynchronizing, run: o.synchronize},
		{state: jobs.StatePlanning, run: o.planOutput},
		{state: jobs.StateEncoding, run: o.encode},
	}
}

// execute drives one job to a terminal state. ctx is the job's own context;
// the timeout starts once a worker slot is free.
func (o *Orchestrator) execute(ctx context.Context, job *jobs.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)
	// Terminal bookkeeping must survive the job's own cancellation.
	persistCtx := context.WithoutCancel(ctx)

	if err := o.slots.Acquire(ctx, 1); err != nil {
		o.fail(persistCtx, ctx, logger, job, nil, fmt.Errorf("waiting for worker slot: %w", err))
		return
	}
	defer o.slots.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout())
	defer cancel()

	ws, err := workspace.Create(o.cfg.Paths.WorkDir, job.ID)
	if err != nil {
		o.fail(persistCtx, runCtx, logger, job, nil, services.Wrap(services.ErrResource, "workspace", "create", "", err))
		return
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
				logging.String("path", ws.Dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the next sweep"),
			)
		}
	}()
	job.WorkDir = ws.Dir

	r := &jobRun{job: job, ws: ws}
	jobStart := time.Now()
	for _, st := range o.stages() {
		if err := runCtx.Err(); err != nil {
			o.fail(persistCtx, runCtx, logger, job, r, err)
			return
		}
		if err := job.Advance(st.state); err != nil {
			o.fail(persistCtx, runCtx, logger, job, r, services.Wrap(services.ErrResource, string(st.state), "transition", "", err))
			return
		}
		if err := o.store.Update(persistCtx, job); err != nil {
			o.fail(persistCtx, runCtx, logger, job, r, services.Wrap(services.ErrResource, string(st.state), "persist transition", "", err))
			return
		}

		stageCtx := services.WithStage(runCtx, string(st.state))
		stageLogger := logging.WithContext(stageCtx, o.logger)
		stageStart := time.Now()
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
		if err := st.run(stageCtx, r); err != nil {
			o.fail(persistCtx, stageCtx, stageLogger, job, r, err)
			return
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(stageStart)),
		)
	}

	if err := job.Advance(jobs.StateCompleted); err != nil {
		o.fail(persistCtx, runCtx, logger, job, r, services.Wrap(services.ErrResource, "complete", "transition", "", err))
		return
	}
	if err := o.store.Update(persistCtx, job); err != nil {
		o.fail(persistCtx, runCtx, logger, job, r, services.Wrap(services.ErrResource, "complete", "persist", "", err))
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", job.OutputPath),
		logging.Int("cues", job.CueCount),
		logging.String("overlay", job.Overlay),
		logging.Duration("job_duration", time.Since(jobStart)),
	)
	if err := o.notifier.NotifyJobCompleted(persistCtx, job); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}
}

// fail records the terminal failure once. The kind comes from the job
// context first so a deadline or cancel is never reported as the tool error
// it surfaced through.
func (o *Orchestrator) fail(persistCtx, runCtx context.Context, logger *slog.Logger, job *jobs.Job, r *jobRun, cause error) {
	kind, message := classify(runCtx, cause)
	if r != nil && r.published != "" {
		_ = os.Remove(r.published)
		job.OutputPath = ""
		job.OutputDigest = ""
	}
	if err := job.Fail(kind, message); err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
		return
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.String("error_message", message),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, hintFor(kind)),
	)
	if err := o.store.Update(persistCtx, job); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	if err := o.notifier.NotifyJobFailed(persistCtx, job); err != nil {
		logger.Debug("failure notification failed", logging.Error(err))
	}
}

func classify(ctx context.Context, cause error) (jobs.FailureKind, string) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return jobs.FailureTimeout, "job exceeded its time limit: " + services.Message(cause)
	case ctx.Err() != nil:
		if errors.Is(context.Cause(ctx), errCanceledByUser) {
			return jobs.FailureCanceled, "job canceled"
		}
		return jobs.FailureCanceled, jobs.DaemonStopReason
	}
	kind := services.FailureKind(cause)
	if kind == "" {
		kind = jobs.FailureResource
	}
	return kind, services.Message(cause)
}

func hintFor(kind jobs.FailureKind) string {
	switch kind {
	case jobs.FailureFetch:
		return "check that both URLs are publicly downloadable media files"
	case jobs.FailureRecognition:
		return "check the whisperx installation and the audio format"
	case jobs.FailureEncode:
		return "check the ffmpeg build and the error output above"
	case jobs.FailureTimeout:
		return "raise workflow.job_timeout_seconds or submit shorter audio"
	case jobs.FailureCanceled:
		return "job was stopped before it finished"
	case jobs.FailureValidation:
		return "check the submitted inputs"
	default:
		return "check disk space and directory permissions"
	}
}
