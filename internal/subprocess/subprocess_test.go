package subprocess

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCapturesOutput(t *testing.T) {
	script := writeScript(t, "echo out\necho \"$REELSYNC_TEST_VAR\" >&2\nexit 0\n")
	var stdout bytes.Buffer
	result, err := Run(context.Background(), Command{
		Binary: script,
		Env:    []string{"REELSYNC_TEST_VAR=from-env"},
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "out" {
		t.Fatalf("stdout = %q", stdout.String())
	}
	if result.StderrTail != "from-env" || result.ExitCode != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunReportsExitFailure(t *testing.T) {
	script := writeScript(t, "echo boom >&2\nexit 3\n")
	result, err := Run(context.Background(), Command{Binary: script})
	if err == nil {
		t.Fatal("expected error")
	}
	if result.ExitCode != 3 || result.StderrTail != "boom" {
		t.Fatalf("unexpected result %+v", result)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("exit failure must not look like a timeout")
	}
}

func TestRunTimeoutStopsProcessGroup(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "child-survived")
	// SIGTERM goes to the group, so the background child dies with the leader.
	script := writeScript(t, "(sleep 2; touch "+marker+") &\nsleep 30\n")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Run(ctx, Command{Binary: script, Grace: 500 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation took %v", elapsed)
	}
	time.Sleep(2500 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Fatal("child process outlived cancellation")
	}
}

func TestRunKillsAfterGrace(t *testing.T) {
	script := writeScript(t, "trap '' TERM\nsleep 30\n")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Run(ctx, Command{Binary: script, Grace: 300 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill after grace took %v", elapsed)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 4}
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defg"))
	if tb.String() != "defg" {
		t.Fatalf("tail = %q", tb.String())
	}
	_, _ = tb.Write([]byte("0123456789"))
	if tb.String() != "6789" {
		t.Fatalf("tail = %q", tb.String())
	}
}

func TestRunRejectsEmptyBinary(t *testing.T) {
	if _, err := Run(context.Background(), Command{}); err == nil {
		t.Fatal("expected error")
	}
}
