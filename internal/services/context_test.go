package services_test

import (
	"context"
	"testing"

	"reelsync/internal/services"
)

func TestTraceAccumulates(t *testing.T) {
	base := services.WithRequestID(context.Background(), "req-123")
	job := services.WithJobID(base, "job-42")
	encoding := services.WithStage(job, "encoding")

	want := services.Trace{JobID: "job-42", Stage: "encoding", RequestID: "req-123"}
	if got := services.TraceFromContext(encoding); got != want {
		t.Fatalf("trace = %+v, want %+v", got, want)
	}
	// The parent keeps its own view.
	if stage, ok := services.StageFromContext(job); ok {
		t.Fatalf("parent picked up stage %q", stage)
	}
	if id, ok := services.JobIDFromContext(encoding); !ok || id != "job-42" {
		t.Fatalf("job id = %q %v", id, ok)
	}
	if id, ok := services.RequestIDFromContext(encoding); !ok || id != "req-123" {
		t.Fatalf("request id = %q %v", id, ok)
	}
}

func TestBlankValuesLeaveContextUntouched(t *testing.T) {
	ctx := context.Background()
	if services.WithStage(ctx, "") != ctx || services.WithJobID(ctx, "") != ctx {
		t.Fatal("blank values should return the same context")
	}
	if got := services.TraceFromContext(ctx); got != (services.Trace{}) {
		t.Fatalf("unexpected trace %+v", got)
	}
}
