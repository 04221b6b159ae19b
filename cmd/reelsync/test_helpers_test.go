package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelsync/internal/composition"
	"reelsync/internal/config"
	"reelsync/internal/encoding"
	"reelsync/internal/daemon"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/pipeline"
	"reelsync/internal/recognition"
	"reelsync/internal/testsupport"
	"reelsync/internal/transcript"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, rawURL, dest string) (string, error) {
	return dest, os.WriteFile(dest, []byte(rawURL), 0o644)
}

type stubRecognizer struct{}

func (stubRecognizer) Transcribe(context.Context, string, string) (recognition.Transcription, error) {
	return recognition.Transcription{
		Segments: []transcript.Segment{{Words: []transcript.Word{
			{Text: "hello", Start: 0.2, End: 0.6},
			{Text: "world", Start: 0.7, End: 1.1},
		}}},
		Language: "en",
	}, nil
}

type stubEncoder struct{}

func (stubEncoder) Encode(_ context.Context, plan composition.Plan) (encoding.Result, error) {
	result := encoding.Result{Path: plan.OutputPath, Overlay: encoding.OverlayNone}
	if plan.HasSubtitles() {
		result.Overlay = string(plan.SubtitleFormat)
	}
	return result, os.WriteFile(plan.OutputPath, []byte("mp4-bytes"), 0o644)
}

func stubProbe(_ context.Context, _ string, path string) (ffprobe.Result, error) {
	if strings.HasPrefix(filepath.Base(path), "audio") {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "mp3"}},
			Format:  ffprobe.Format{Duration: "4.0"},
		}, nil
	}
	return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Width: 800, Height: 600}}}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
	baseDir    string
}

// setupCLITestEnv starts a daemon with stub collaborators on a random port and
// writes a matching config file.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("REELSYNC_API_TOKEN", "")
	t.Setenv("REELSYNC_NTFY_TOPIC", "")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	configPath := filepath.Join(base, "reelsync.toml")
	writeTestConfig(t, configPath, cfg)

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	orch, err := pipeline.New(cfg, pipeline.Deps{
		Store:      store,
		Fetcher:    stubFetcher{},
		Recognizer: stubRecognizer{},
		Encoder:    stubEncoder{},
		Probe:      stubProbe,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	d, err := daemon.New(cfg, store, orch, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		configPath: configPath,
		apiAddr:    d.Addr(),
		baseDir:    base,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath, "--api", e.apiAddr}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	p := cfg.Paths
	content := fmt.Sprintf(
		"[paths]\nwork_dir = %q\noutput_dir = %q\nstate_dir = %q\nlog_dir = %q\nmodel_cache_dir = %q\ntranscript_cache_dir = %q\napi_bind = %q\n",
		p.WorkDir, p.OutputDir, p.StateDir, p.LogDir, p.ModelCacheDir, p.TranscriptCacheDir, p.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
