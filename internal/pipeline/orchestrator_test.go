package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelsync/internal/composition"
	"reelsync/internal/config"
	"reelsync/internal/encoding"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/pipeline"
	"reelsync/internal/recognition"
	"reelsync/internal/services"
	"reelsync/internal/testsupport"
	"reelsync/internal/transcript"
)

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL, dest string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, []byte("payload:"+rawURL), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

type fakeRecognizer struct {
	words []transcript.Word
	// block makes Transcribe wait for its context.
	block   bool
	started chan struct{}

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRecognizer) Transcribe(ctx context.Context, audioPath, workDir string) (recognition.Transcription, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block {
		<-ctx.Done()
		return recognition.Transcription{}, ctx.Err()
	}
	if _, err := os.Stat(audioPath); err != nil {
		return recognition.Transcription{}, err
	}
	return recognition.Transcription{
		Segments: []transcript.Segment{{Words: f.words}},
		Language: "en",
	}, nil
}

type fakeEncoder struct {
	mu    sync.Mutex
	plans []composition.Plan
	// subtitleSeen records whether the subtitle file existed at encode time.
	subtitleSeen bool
	// overlay overrides the reported overlay to simulate a fallback.
	overlay string
	err     error
}

func (f *fakeEncoder) Encode(ctx context.Context, plan composition.Plan) (encoding.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plans = append(f.plans, plan)
	if plan.HasSubtitles() {
		if info, err := os.Stat(plan.SubtitlePath); err == nil && info.Size() > 0 {
			f.subtitleSeen = true
		}
	}
	if f.err != nil {
		return encoding.Result{}, f.err
	}
	if err := os.WriteFile(plan.OutputPath, []byte("mp4"), 0o644); err != nil {
		return encoding.Result{}, err
	}
	overlay := f.overlay
	if overlay == "" {
		overlay = encoding.OverlayNone
		if plan.HasSubtitles() {
			overlay = string(plan.SubtitleFormat)
		}
	}
	return encoding.Result{Path: plan.OutputPath, Overlay: overlay}, nil
}

func (f *fakeEncoder) lastPlan(t *testing.T) composition.Plan {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.plans) == 0 {
		t.Fatal("encoder was not called")
	}
	return f.plans[len(f.plans)-1]
}

type fakeNotifier struct {
	completed atomic.Int32
	failed    atomic.Int32
}

func (n *fakeNotifier) NotifyJobCompleted(context.Context, *jobs.Job) error {
	n.completed.Add(1)
	return nil
}

func (n *fakeNotifier) NotifyJobFailed(context.Context, *jobs.Job) error {
	n.failed.Add(1)
	return nil
}

func (n *fakeNotifier) TestNotification(context.Context) error { return nil }

func probeFor(audioSeconds string) pipeline.ProbeFunc {
	return func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		if strings.HasPrefix(filepath.Base(path), "audio") {
			return ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "mp3", SampleRate: "44100", Channels: 2}},
				Format:  ffprobe.Format{Duration: audioSeconds},
			}, nil
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "mjpeg", Width: 1280, Height: 720}},
		}, nil
	}
}

type harness struct {
	cfg        *config.Config
	orch       *pipeline.Orchestrator
	store      *jobs.Store
	fetcher    *fakeFetcher
	recognizer *fakeRecognizer
	encoder    *fakeEncoder
	notifier   *fakeNotifier
}

func newHarness(t *testing.T, audioSeconds string, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		cfg:        cfg,
		fetcher:    &fakeFetcher{},
		recognizer: &fakeRecognizer{},
		encoder:    &fakeEncoder{},
		notifier:   &fakeNotifier{},
	}
	return h.build(t, audioSeconds)
}

func (h *harness) build(t *testing.T, audioSeconds string) *harness {
	t.Helper()
	h.store = testsupport.MustOpenStore(t, h.cfg)
	orch, err := pipeline.New(h.cfg, pipeline.Deps{
		Store:      h.store,
		Fetcher:    h.fetcher,
		Recognizer: h.recognizer,
		Encoder:    h.encoder,
		Notifier:   h.notifier,
		Probe:      probeFor(audioSeconds),
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	t.Cleanup(orch.Shutdown)
	h.orch = orch
	return h
}

func (h *harness) run(t *testing.T, profile jobs.Profile) *jobs.Job {
	t.Helper()
	job, err := h.orch.Submit(context.Background(), pipeline.Request{
		AudioURL: "https://example.com/song.mp3",
		ImageURL: "https://example.com/cover.png",
		Profile:  profile,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.State != jobs.StateCreated {
		t.Fatalf("submitted job state = %s", job.State)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done, err := h.orch.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return done
}

func assertWorkspaceGone(t *testing.T, job *jobs.Job) {
	t.Helper()
	if job.WorkDir == "" {
		return
	}
	if _, err := os.Stat(job.WorkDir); !os.IsNotExist(err) {
		t.Fatalf("workspace %s still exists (err=%v)", job.WorkDir, err)
	}
}

func TestJobCompletesWithKaraokeSubtitles(t *testing.T) {
	h := newHarness(t, "10.0")
	h.recognizer.words = []transcript.Word{{Text: "hi", Start: 0, End: 0.5}, {Text: "there", Start: 0.6, End: 1.0}}

	job := h.run(t, jobs.ProfileStandard)
	if job.State != jobs.StateCompleted {
		t.Fatalf("state = %s (%s)", job.StateLabel(), job.ErrorMessage)
	}
	if job.CueCount != 1 || job.WordCount != 2 || job.Language != "en" || job.AudioDuration != 10 {
		t.Fatalf("unexpected job facts %+v", job)
	}
	if job.Overlay != encoding.OverlayASS {
		t.Fatalf("overlay = %q, want ass", job.Overlay)
	}
	wantOutput := filepath.Join(h.cfg.Paths.OutputDir, job.ID+".mp4")
	if job.OutputPath != wantOutput {
		t.Fatalf("output = %q, want %q", job.OutputPath, wantOutput)
	}
	if data, err := os.ReadFile(wantOutput); err != nil || string(data) != "mp4" {
		t.Fatalf("published output %q, err %v", data, err)
	}
	if len(job.OutputDigest) != 64 {
		t.Fatalf("digest = %q", job.OutputDigest)
	}
	assertWorkspaceGone(t, job)

	plan := h.encoder.lastPlan(t)
	if plan.SubtitleFormat != composition.SubtitleASS || !h.encoder.subtitleSeen {
		t.Fatalf("expected ASS track written before encoding, plan=%+v seen=%v", plan, h.encoder.subtitleSeen)
	}
	if plan.CanvasWidth != 1280 || plan.CanvasHeight != 720 || plan.DurationCap != 0 {
		t.Fatalf("unexpected plan %s", composition.Describe(plan))
	}
	if h.notifier.completed.Load() != 1 || h.notifier.failed.Load() != 0 {
		t.Fatalf("notifications completed=%d failed=%d", h.notifier.completed.Load(), h.notifier.failed.Load())
	}
}

func TestJobWithoutSpeechCompletesWithoutOverlay(t *testing.T) {
	h := newHarness(t, "4.0")

	job := h.run(t, jobs.ProfileStandard)
	if job.State != jobs.StateCompleted {
		t.Fatalf("state = %s (%s)", job.StateLabel(), job.ErrorMessage)
	}
	if job.CueCount != 0 || job.Overlay != encoding.OverlayNone {
		t.Fatalf("cue count = %d overlay = %q", job.CueCount, job.Overlay)
	}
	if plan := h.encoder.lastPlan(t); plan.HasSubtitles() {
		t.Fatalf("plan should have no overlay: %+v", plan)
	}
}

func TestJobRecordsOverlayAfterFallback(t *testing.T) {
	h := newHarness(t, "10.0")
	h.recognizer.words = []transcript.Word{{Text: "hi", Start: 0, End: 0.5}}
	h.encoder.overlay = encoding.OverlayNone

	job := h.run(t, jobs.ProfileStandard)
	if job.State != jobs.StateCompleted {
		t.Fatalf("state = %s (%s)", job.StateLabel(), job.ErrorMessage)
	}
	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.CueCount != 1 || stored.Overlay != encoding.OverlayNone {
		t.Fatalf("stored cues=%d overlay=%q, want the dropped overlay recorded", stored.CueCount, stored.Overlay)
	}
}

func TestShortJobTruncatesToCap(t *testing.T) {
	h := newHarness(t, "70.0")
	h.recognizer.words = []transcript.Word{
		{Text: "early", Start: 1, End: 2},
		{Text: "straddle", Start: 58.5, End: 60},
		{Text: "late", Start: 62, End: 63},
	}

	job := h.run(t, jobs.ProfileShort)
	if job.State != jobs.StateCompleted {
		t.Fatalf("state = %s (%s)", job.StateLabel(), job.ErrorMessage)
	}
	plan := h.encoder.lastPlan(t)
	if plan.DurationCap != 59 || plan.OutputDuration() != 59 || plan.CanvasWidth != 1080 || plan.CanvasHeight != 1920 {
		t.Fatalf("unexpected short plan %s", composition.Describe(plan))
	}
	if job.CueCount != 2 {
		t.Fatalf("cue count = %d, want the late cue dropped", job.CueCount)
	}
}

func TestRecognitionTimeoutFailsJobAndCleansUp(t *testing.T) {
	h := newHarness(t, "10.0", testsupport.WithJobTimeout(1))
	h.recognizer.block = true

	start := time.Now()
	job := h.run(t, jobs.ProfileStandard)
	if job.State != jobs.StateFailed || job.FailureKind != jobs.FailureTimeout {
		t.Fatalf("state = %s, want failed(timeout)", job.StateLabel())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took %v", elapsed)
	}
	assertWorkspaceGone(t, job)
	if job.OutputPath != "" {
		t.Fatalf("failed job must not report output, got %q", job.OutputPath)
	}
	if h.notifier.failed.Load() != 1 || h.notifier.completed.Load() != 0 {
		t.Fatalf("notifications completed=%d failed=%d", h.notifier.completed.Load(), h.notifier.failed.Load())
	}
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*harness)
		want  jobs.FailureKind
	}{
		{
			name:  "fetch",
			setup: func(h *harness) { h.fetcher.err = errors.New("status 404") },
			want:  jobs.FailureFetch,
		},
		{
			name:  "encode",
			setup: func(h *harness) { h.encoder.err = errors.New("ffmpeg: exit status 1") },
			want:  jobs.FailureEncode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "10.0")
			h.recognizer.words = []transcript.Word{{Text: "hi", Start: 0, End: 0.5}}
			tt.setup(h)

			job := h.run(t, jobs.ProfileStandard)
			if job.State != jobs.StateFailed || job.FailureKind != tt.want {
				t.Fatalf("state = %s, want failed(%s)", job.StateLabel(), tt.want)
			}
			if job.ErrorMessage == "" {
				t.Fatal("failed job should carry an error message")
			}
			assertWorkspaceGone(t, job)
			entries, _ := os.ReadDir(h.cfg.Paths.OutputDir)
			if len(entries) != 0 {
				t.Fatalf("no output may be published for a failed job, found %d", len(entries))
			}
			if h.notifier.failed.Load() != 1 {
				t.Fatalf("failed notifications = %d", h.notifier.failed.Load())
			}
		})
	}
}

func TestCancelRunningJob(t *testing.T) {
	h := newHarness(t, "10.0")
	h.recognizer.block = true
	h.recognizer.started = make(chan struct{}, 1)

	job, err := h.orch.Submit(context.Background(), pipeline.Request{
		AudioURL: "https://example.com/a.mp3",
		ImageURL: "https://example.com/b.jpg",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-h.recognizer.started
	if state, err := h.orch.Status(context.Background(), job.ID); err != nil || state != jobs.StateTranscribing {
		t.Fatalf("status = %s, err %v", state, err)
	}
	if err := h.orch.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	done, err := h.orch.Wait(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if done.FailureKind != jobs.FailureCanceled || done.ErrorMessage != "job canceled" {
		t.Fatalf("state = %s message=%q", done.StateLabel(), done.ErrorMessage)
	}
	if err := h.orch.Cancel(job.ID); !errors.Is(err, pipeline.ErrNotRunning) {
		t.Fatalf("second cancel err = %v", err)
	}
}

func TestWorkerLimit(t *testing.T) {
	h := newHarness(t, "10.0", testsupport.WithMaxConcurrentJobs(1))
	h.recognizer.words = []transcript.Word{{Text: "hi", Start: 0, End: 0.5}}

	var ids []string
	for range 3 {
		job, err := h.orch.Submit(context.Background(), pipeline.Request{
			AudioURL: "https://example.com/a.mp3",
			ImageURL: "https://example.com/b.jpg",
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		job, err := h.orch.Wait(context.Background(), id)
		if err != nil || job.State != jobs.StateCompleted {
			t.Fatalf("job %s: %v %v", id, job, err)
		}
	}
	if peak := h.recognizer.peak.Load(); peak != 1 {
		t.Fatalf("peak concurrent jobs = %d, want 1", peak)
	}
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t, "10.0")
	tests := []pipeline.Request{
		{AudioURL: "", ImageURL: "https://example.com/b.jpg"},
		{AudioURL: "ftp://example.com/a.mp3", ImageURL: "https://example.com/b.jpg"},
		{AudioURL: "https://example.com/a.mp3", ImageURL: "https://example.com/b.jpg", Profile: "vertical"},
	}
	for _, req := range tests {
		_, err := h.orch.Submit(context.Background(), req)
		if !errors.Is(err, services.ErrValidation) || services.FailureKind(err) != jobs.FailureValidation {
			t.Fatalf("request %+v: err = %v", req, err)
		}
	}
	if _, err := h.orch.Get(context.Background(), "missing"); !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
}

func TestShutdownFailsRunningJobs(t *testing.T) {
	h := newHarness(t, "10.0")
	h.recognizer.block = true
	h.recognizer.started = make(chan struct{}, 1)

	job, err := h.orch.Submit(context.Background(), pipeline.Request{
		AudioURL: "https://example.com/a.mp3",
		ImageURL: "https://example.com/b.jpg",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-h.recognizer.started
	h.orch.Shutdown()

	done, err := h.orch.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if done.FailureKind != jobs.FailureCanceled || done.ErrorMessage != jobs.DaemonStopReason {
		t.Fatalf("state = %s message=%q", done.StateLabel(), done.ErrorMessage)
	}
	assertWorkspaceGone(t, done)
	if _, err := h.orch.Submit(context.Background(), pipeline.Request{
		AudioURL: "https://example.com/a.mp3",
		ImageURL: "https://example.com/b.jpg",
	}); !errors.Is(err, pipeline.ErrShuttingDown) {
		t.Fatalf("Submit after shutdown: %v", err)
	}
}
