package jobs

import "testing"

func TestCanTransitionIsStrictlySequential(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateAcquiring, true},
		{StateAcquiring, StateTranscribing, true},
		{StateEncoding, StateCompleted, true},
		{StateCreated, StateTranscribing, false},
		{StateTranscribing, StateTranscribing, false},
		{StatePlanning, StateSynchronizing, false},
		{StateSynchronizing, StateFailed, true},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateCreated, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAdvanceWalksPipelineAndStampsTimes(t *testing.T) {
	job := &Job{ID: "j", State: StateCreated}
	for _, next := range pipelineOrder[1:] {
		if err := job.Advance(next); err != nil {
			t.Fatalf("Advance(%s): %v", next, err)
		}
	}
	if job.State != StateCompleted {
		t.Fatalf("expected completed, got %s", job.State)
	}
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Fatal("expected StartedAt and FinishedAt to be set")
	}
	if err := job.Advance(StateCompleted); err == nil {
		t.Fatal("expected re-entry to be rejected")
	}
}

func TestFailRecordsKindOnce(t *testing.T) {
	job := &Job{ID: "j", State: StateTranscribing}
	if err := job.Fail(FailureTimeout, "  deadline exceeded \n"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if job.StateLabel() != "failed(timeout)" {
		t.Fatalf("unexpected label %q", job.StateLabel())
	}
	if job.ErrorMessage != "deadline exceeded" {
		t.Fatalf("message not trimmed: %q", job.ErrorMessage)
	}
	if err := job.Fail(FailureEncode, "again"); err == nil {
		t.Fatal("expected second failure to be rejected")
	}
	if job.FailureKind != FailureTimeout {
		t.Fatalf("failure kind overwritten: %s", job.FailureKind)
	}
}

func TestAdvanceRefusesFailed(t *testing.T) {
	job := &Job{ID: "j", State: StateCreated}
	if err := job.Advance(StateFailed); err == nil {
		t.Fatal("expected Advance(failed) to point callers at Fail")
	}
}

func TestParseHelpers(t *testing.T) {
	if p, err := ParseProfile(""); err != nil || p != ProfileStandard {
		t.Fatalf("empty profile: %v %v", p, err)
	}
	if p, err := ParseProfile(" Short "); err != nil || p != ProfileShort {
		t.Fatalf("short profile: %v %v", p, err)
	}
	if _, err := ParseProfile("square"); err == nil {
		t.Fatal("expected unknown profile error")
	}
	if s, ok := ParseState("FAILED"); !ok || s != StateFailed {
		t.Fatalf("ParseState failed: %v %v", s, ok)
	}
	if _, ok := ParseState("ripping"); ok {
		t.Fatal("expected unknown state")
	}
	if got := AllStates(); got[len(got)-1] != StateFailed || len(got) != 8 {
		t.Fatalf("unexpected AllStates: %v", got)
	}
}
