package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"reelsync/internal/composition"
	"reelsync/internal/config"
	"reelsync/internal/encoding"
	"reelsync/internal/fetch"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/notifications"
	"reelsync/internal/recognition"
	"reelsync/internal/services"
	"reelsync/internal/subtitles"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrNotRunning is returned when canceling a job that is not in flight.
	ErrNotRunning = errors.New("job is not running")
	// ErrShuttingDown rejects submissions after Shutdown.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Request is one render submission.
type Request struct {
	AudioURL string
	ImageURL string
	Profile  jobs.Profile
}

// Deps are the collaborators a job calls out to.
type Deps struct {
	Store      *jobs.Store
	Fetcher    fetch.Fetcher
	Recognizer recognition.Recognizer
	Encoder    encoding.Encoder
	Notifier   notifications.Service
	// Probe defaults to ffprobe.Inspect.
	Probe ProbeFunc
}

// Orchestrator owns job execution.
type Orchestrator struct {
	cfg        *config.Config
	store      *jobs.Store
	fetcher    fetch.Fetcher
	recognizer recognition.Recognizer
	encoder    encoding.Encoder
	notifier   notifications.Service
	probe      ProbeFunc
	sync       *subtitles.Synchronizer
	planner    *composition.Planner
	slots      *semaphore.Weighted
	logger     *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	running map[string]*activeJob
	closed  bool
	wg      sync.WaitGroup
}

type activeJob struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// New validates deps and builds an Orchestrator.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	var missing []string
	if deps.Store == nil {
		missing = append(missing, "store")
	}
	if deps.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if deps.Recognizer == nil {
		missing = append(missing, "recognizer")
	}
	if deps.Encoder == nil {
		missing = append(missing, "encoder")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing %s", strings.Join(missing, ", "))
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}
	if deps.Probe == nil {
		deps.Probe = ffprobe.Inspect
	}

	synchronizer, err := subtitles.NewSynchronizer(subtitles.Config{
		MaxChars:      cfg.Subtitles.MaxChars,
		MaxWords:      cfg.Subtitles.MaxWords,
		MaxGapSeconds: cfg.Subtitles.MaxGapSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	settings, err := composition.SettingsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	planner, err := composition.NewPlanner(settings, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	workers := cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		store:      deps.Store,
		fetcher:    deps.Fetcher,
		recognizer: deps.Recognizer,
		encoder:    deps.Encoder,
		notifier:   deps.Notifier,
		probe:      deps.Probe,
		sync:       synchronizer,
		planner:    planner,
		slots:      semaphore.NewWeighted(int64(workers)),
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		running:    make(map[string]*activeJob),
	}, nil
}

// Submit validates and persists a job, then starts it in the background.
// The returned job is a snapshot in the created state.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*jobs.Job, error) {
	req.AudioURL = strings.TrimSpace(req.AudioURL)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	var errs []error
	if err := fetch.Validate(req.AudioURL); err != nil {
		errs = append(errs, fmt.Errorf("audio_url: %w", err))
	}
	if err := fetch.Validate(req.ImageURL); err != nil {
		errs = append(errs, fmt.Errorf("image_url: %w", err))
	}
	profile, err := jobs.ParseProfile(string(req.Profile))
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "validate request", "", err)
	}

	job := &jobs.Job{
		ID:       uuid.NewString(),
		AudioURL: req.AudioURL,
		ImageURL: req.ImageURL,
		Profile:  profile,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrShuttingDown
	}
	if err := o.store.Create(ctx, job); err != nil {
		return nil, services.Wrap(services.ErrResource, "submit", "persist job", "", err)
	}

	jobCtx, cancel := context.WithCancelCause(o.baseCtx)
	active := &activeJob{cancel: cancel, done: make(chan struct{})}
	o.running[job.ID] = active
	o.wg.Add(1)

	snapshot := *job
	requestID, _ := services.RequestIDFromContext(ctx)
	go func() {
		defer o.wg.Done()
		defer close(active.done)
		defer func() {
			o.mu.Lock()
			delete(o.running, job.ID)
			o.mu.Unlock()
			cancel(nil)
		}()
		o.execute(services.WithRequestID(jobCtx, requestID), job)
	}()

	o.logger.Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String("profile", string(job.Profile)),
	)
	return &snapshot, nil
}

// Get returns the stored job.
func (o *Orchestrator) Get(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// Status returns the job's current state.
func (o *Orchestrator) Status(ctx context.Context, id string) (jobs.State, error) {
	job, err := o.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return job.State, nil
}

// Wait blocks until the job reaches a terminal state or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context, id string) (*jobs.Job, error) {
	o.mu.Lock()
	active := o.running[id]
	o.mu.Unlock()
	if active != nil {
		select {
		case <-active.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.Get(ctx, id)
}

// Cancel stops an in-flight job. It ends in failed(canceled).
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	active := o.running[id]
	o.mu.Unlock()
	if active == nil {
		return ErrNotRunning
	}
	active.cancel(errCanceledByUser)
	return nil
}

// Active returns the ids of jobs currently in flight.
func (o *Orchestrator) Active() map[string]struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make(map[string]struct{}, len(o.running))
	for id := range o.running {
		ids[id] = struct{}{}
	}
	return ids
}

// Shutdown rejects new work, cancels every running job, and waits for them
// to record their terminal state.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.baseCancel()
	o.wg.Wait()
}
