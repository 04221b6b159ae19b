package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte minimum, got: %s", result.Detail)
	}
	result := CheckDiskSpace("disk", dir, 1<<62)
	if result.Passed || !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected failure for an impossible minimum, got: %+v", result)
	}
	if result := CheckDiskSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:     "512 B",
		2048:    "2.0 KiB",
		1 << 30: "1.0 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reelsync/json" || r.URL.Query().Get("poll") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/reelsync/")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/private") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tests := map[string]string{
		"":                   "missing topic url",
		srv.URL + "/private": "topic requires authentication",
		srv.URL + "/broken":  "check failed (502)",
	}
	for topic, want := range tests {
		if result := CheckNtfy(context.Background(), topic); result.Passed || result.Detail != want {
			t.Errorf("CheckNtfy(%q) = %+v, want detail %q", topic, result, want)
		}
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := RunAll(context.Background(), cfg)
	// four directories plus free space in the work dir
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesOptionalChecks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithTranscriptCache())
	cfg.Notifications.NtfyTopic = srv.URL + "/reelsync"

	results := RunAll(context.Background(), cfg)
	names := make(map[string]Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	for _, want := range []string{"Transcript cache", "ntfy"} {
		r, ok := names[want]
		if !ok {
			t.Fatalf("expected %s check in results", want)
		}
		if !r.Passed {
			t.Errorf("%s check failed: %s", want, r.Detail)
		}
	}
}

func TestCheckNtfyFromConfig_Disabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := CheckNtfyFromConfig(context.Background(), cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCheckModelCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := CheckModelCache(cfg)
	if !result.Passed || !strings.Contains(result.Detail, "downloads on first job") {
		t.Fatalf("cold cache: %+v", result)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	statuses := CheckSystemDeps(context.Background(), cfg)
	// ffmpeg, ffprobe, uvx, then the filter check since ffmpeg resolved
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %+v", statuses)
	}
	for _, s := range statuses[:3] {
		if !s.Available {
			t.Errorf("%s should resolve to the stub: %s", s.Name, s.Detail)
		}
	}
	// the stub prints no filter table
	if statuses[3].Available {
		t.Errorf("stub ffmpeg has no libass: %+v", statuses[3])
	}
}
