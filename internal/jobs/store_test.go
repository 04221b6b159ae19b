package jobs_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reelsync/internal/jobs"
)

func openStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.OpenPath(filepath.Join(t.TempDir(), "state", "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newJob(id string) *jobs.Job {
	return &jobs.Job{
		ID:       id,
		AudioURL: "https://example.com/a.mp3",
		ImageURL: "https://example.com/i.jpg",
		Profile:  jobs.ProfileShort,
	}
}

func TestStoreCreateGetUpdate(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job := newJob("job-1")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.State != jobs.StateCreated || job.CreatedAt.IsZero() {
		t.Fatalf("Create did not initialize job: %+v", job)
	}

	if err := job.Advance(jobs.StateAcquiring); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	job.WorkDir = "/tmp/work/job-1"
	job.AudioDuration = 70.25
	job.WordCount = 12
	job.CueCount = 3
	job.Overlay = jobs.OverlayNone
	job.Language = "en"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected job")
	}
	if got.State != jobs.StateAcquiring || got.Profile != jobs.ProfileShort {
		t.Fatalf("unexpected state/profile: %s %s", got.State, got.Profile)
	}
	if got.AudioDuration != 70.25 || got.WordCount != 12 || got.Language != "en" || got.WorkDir != job.WorkDir {
		t.Fatalf("fields not persisted: %+v", got)
	}
	if got.CueCount != 3 || got.Overlay != jobs.OverlayNone || !got.SubtitlesDropped() {
		t.Fatalf("overlay not persisted: cues=%d overlay=%q", got.CueCount, got.Overlay)
	}
	if got.StartedAt == nil || got.FinishedAt != nil {
		t.Fatalf("unexpected timestamps: started=%v finished=%v", got.StartedAt, got.FinishedAt)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil job for missing id, got %v %v", missing, err)
	}
}

func TestStoreUpdateMissingJob(t *testing.T) {
	store := openStore(t)
	if err := store.Update(context.Background(), newJob("ghost")); err == nil {
		t.Fatal("expected error updating a job that was never created")
	}
}

func TestStoreListFiltersByState(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, newJob(id)); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	failed, _ := store.Get(ctx, "b")
	if err := failed.Fail(jobs.FailureFetch, "404"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	onlyFailed, err := store.List(ctx, jobs.StateFailed)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].ID != "b" || onlyFailed[0].FailureKind != jobs.FailureFetch {
		t.Fatalf("unexpected failed list: %+v", onlyFailed)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StateCreated] != 2 || stats[jobs.StateFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestStoreFailInterrupted(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	running := newJob("running")
	done := newJob("done")
	for _, job := range []*jobs.Job{running, done} {
		if err := store.Create(ctx, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	_ = running.Advance(jobs.StateAcquiring)
	_ = running.Advance(jobs.StateTranscribing)
	if err := store.Update(ctx, running); err != nil {
		t.Fatalf("Update running: %v", err)
	}
	for _, next := range []jobs.State{jobs.StateAcquiring, jobs.StateTranscribing, jobs.StateSynchronizing, jobs.StatePlanning, jobs.StateEncoding, jobs.StateCompleted} {
		if err := done.Advance(next); err != nil {
			t.Fatalf("Advance %s: %v", next, err)
		}
	}
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update done: %v", err)
	}

	n, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one interrupted job, got %d", n)
	}
	got, _ := store.Get(ctx, "running")
	if got.State != jobs.StateFailed || got.FailureKind != jobs.FailureResource || got.ErrorMessage != jobs.DaemonStopReason {
		t.Fatalf("unexpected interrupted job: %+v", got)
	}
	still, _ := store.Get(ctx, "done")
	if still.State != jobs.StateCompleted {
		t.Fatalf("completed job was touched: %s", still.State)
	}
}

func TestStoreFinishedBeforeAndRemove(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job := newJob("old")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := job.Fail(jobs.FailureEncode, "exit 1"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	job.FinishedAt = &past
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.Create(ctx, newJob("fresh")); err != nil {
		t.Fatalf("Create fresh: %v", err)
	}

	expired, err := store.FinishedBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FinishedBefore: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "old" {
		t.Fatalf("unexpected expired set: %+v", expired)
	}

	removed, err := store.Remove(ctx, "old")
	if err != nil || !removed {
		t.Fatalf("Remove: %v %v", removed, err)
	}
	removed, err = store.Remove(ctx, "old")
	if err != nil || removed {
		t.Fatalf("second Remove should report false: %v %v", removed, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := jobs.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := jobs.OpenPath(path); !errors.Is(err, jobs.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
