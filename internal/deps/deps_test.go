package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsync/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "also-not-present", Optional: true},
		{Name: "Empty"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for empty command: %q", results[3].Detail)
	}

	missing := Missing(results)
	if len(missing) != 2 || missing[0].Name != "Missing" || missing[1].Name != "Empty" {
		t.Fatalf("optional requirements must not count as missing: %#v", missing)
	}
}

const filtersOutput = `Filters:
  T.. = Timeline support
  .S. = Slice threading
  ..C = Command support
  A = Audio input/output
  V = Video input/output
  N = Dynamic number and/or type of input/output
  | = Source or sink filter
 ... abench            A->A       Benchmark part of a filtergraph.
 ... ass               V->V       Render ASS subtitles onto input video using the libass library.
 TSC scale             V->V       Scale the input video size and/or convert the image format.
 ... subtitles         V->V       Render text subtitles onto input video using the libass library.
`

func TestParseFilterNames(t *testing.T) {
	names := parseFilterNames([]byte(filtersOutput))
	want := []string{"abench", "ass", "scale", "subtitles"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", names, want)
	}
}

func TestCheckFFmpegFilters(t *testing.T) {
	tests := []struct {
		name      string
		rows      string
		available bool
		detail    string
	}{
		{
			name:      "libass present",
			rows:      " ... ass               V->V       Render ASS\n ... subtitles         V->V       Render text\n",
			available: true,
		},
		{
			name:      "only subtitles",
			rows:      " ... subtitles         V->V       Render text\n",
			available: true,
			detail:    "missing filter: ass",
		},
		{
			name:   "no libass",
			rows:   " TSC scale             V->V       Scale\n",
			detail: "ffmpeg built without libass (no ass or subtitles filter)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "filters.txt")
			if err := os.WriteFile(out, []byte("Filters:\n  T.. = Timeline support\n"+tt.rows), 0o644); err != nil {
				t.Fatal(err)
			}
			bin := testsupport.WriteScript(t, filepath.Join(dir, "ffmpeg"), "cat "+out+"\n")
			status := CheckFFmpegFilters(context.Background(), bin)
			if status.Available != tt.available || status.Detail != tt.detail {
				t.Fatalf("status = %#v", status)
			}
		})
	}
}

func TestCheckFFmpegFiltersFailure(t *testing.T) {
	bin := testsupport.WriteScript(t, filepath.Join(t.TempDir(), "ffmpeg"), "echo 'bad build' >&2\nexit 1\n")
	status := CheckFFmpegFilters(context.Background(), bin)
	if status.Available || !strings.Contains(status.Detail, "bad build") {
		t.Fatalf("status = %#v", status)
	}
	if status := CheckFFmpegFilters(context.Background(), " "); status.Detail != "command not configured" {
		t.Fatalf("empty binary: %#v", status)
	}
}
