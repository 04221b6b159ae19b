package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"reelsync/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("reelsync", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "reelsync:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("reelsync", statusOK, "Running", true)
	plain := renderStatusLine("reelsync", statusOK, "Running", false)
	if want := (text.Colors{text.FgGreen}).Sprint(plain); got != want {
		t.Fatalf("expected green line %q, got %q", want, got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []api.DependencyStatus{
		{Name: "FFmpeg", Available: false},
		{Name: "FFprobe", Available: true, Command: "/usr/bin/ffprobe"},
		{Name: "uvx", Available: false, Optional: true, Detail: "not installed"},
		{Name: "FFmpeg filters", Available: true, Detail: "missing filter: ass"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %v", len(lines), lines)
	}
	checks := []string{
		"[ERROR] not available",
		"[OK] Ready (command: /usr/bin/ffprobe)",
		"[WARN] not installed",
		"[OK] Ready; missing filter: ass",
		"[ERROR] FFmpeg",
	}
	for i, want := range checks {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}
}

func TestJobCountRowsFollowPipelineOrder(t *testing.T) {
	rows := jobCountRows(map[string]int{"failed": 1, "completed": 3, "created": 2, "encoding": 0})
	var states []string
	for _, row := range rows {
		states = append(states, row[0])
	}
	if !slices.Equal(states, []string{"created", "completed", "failed"}) {
		t.Fatalf("states = %v", states)
	}
}

func TestRenderJobTableTruncatesSource(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 100) + ".mp3"
	out := renderJobTable([]api.Job{{ID: "job-1", Profile: "short", State: "failed", FailureKind: "fetch", AudioURL: long}}, false)
	if !strings.Contains(out, "failed(fetch)") || !strings.Contains(out, "…") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, long) {
		t.Fatal("long source url should be truncated")
	}
}

func TestEllipsize(t *testing.T) {
	if got := ellipsize("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := ellipsize("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestWorkspaceLine(t *testing.T) {
	tests := []struct {
		name  string
		usage api.WorkspaceUsage
		want  string
	}{
		{name: "none", usage: api.WorkspaceUsage{}, want: "[INFO] None"},
		{name: "in use", usage: api.WorkspaceUsage{Count: 2, Bytes: 3 << 20}, want: "[INFO] 2 (3.0 MiB)"},
		{name: "stale", usage: api.WorkspaceUsage{Count: 3, Stale: 1, Bytes: 512}, want: "[WARN] 3 (512 B), 1 stale until the next sweep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workspaceLine(tt.usage, false); !strings.HasSuffix(got, tt.want) {
				t.Fatalf("workspaceLine = %q, want suffix %q", got, tt.want)
			}
		})
	}
}
