package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsync/internal/api"
	"reelsync/internal/config"
	"reelsync/internal/fileutil"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/pipeline"
)

type renderOptions struct {
	short  bool
	output string
	local  bool
	detach bool
	poll   time.Duration
	json   bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render <audio-url> <image-url>",
		Short: "Render a subtitled video from an audio URL and an image URL",
		Long: `Render submits a job to the running daemon and waits for it, then
downloads the video. With --local the whole pipeline runs in this process
instead and no daemon is needed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := jobs.ProfileStandard
			if opts.short {
				profile = jobs.ProfileShort
			}
			req := api.SubmitRequest{AudioURL: args[0], ImageURL: args[1], Profile: string(profile)}
			if opts.local {
				return renderLocal(cmd, ctx, req, opts)
			}
			return renderRemote(cmd, ctx, req, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.short, "short", false, "Render the 9:16 short profile (capped at 59 seconds)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Where to write the video (default output.mp4 or output_short.mp4)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Run the pipeline in-process instead of through the daemon")
	cmd.Flags().BoolVar(&opts.detach, "detach", false, "Submit and return without waiting (daemon mode only)")
	cmd.Flags().DurationVar(&opts.poll, "poll", 2*time.Second, "Status poll interval while waiting")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the final job as JSON")
	return cmd
}

func (o renderOptions) outputPath(profile string) string {
	if out := strings.TrimSpace(o.output); out != "" {
		return out
	}
	if profile == string(jobs.ProfileShort) {
		return "output_short.mp4"
	}
	return "output.mp4"
}

func renderRemote(cmd *cobra.Command, ctx *commandContext, req api.SubmitRequest, opts renderOptions) error {
	client, err := ctx.apiClient()
	if err != nil {
		return err
	}
	runCtx := cmd.Context()
	out := cmd.OutOrStdout()

	job, err := client.Submit(runCtx, req)
	if err != nil {
		return ctx.wrapAPIError(err)
	}
	if opts.detach {
		if opts.json {
			return writeJSON(cmd, job)
		}
		fmt.Fprintf(out, "Submitted job %s\n", job.ID)
		return nil
	}
	if !opts.json {
		fmt.Fprintf(out, "Submitted job %s (%s)\n", job.ID, job.Profile)
	}

	job, err = pollJob(runCtx, client, job, opts.poll, func(state string) {
		if !opts.json {
			fmt.Fprintf(out, "  %s\n", state)
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Leave nothing half-rendered behind an interrupted terminal.
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.CancelJob(cancelCtx, job.ID)
		}
		return ctx.wrapAPIError(err)
	}
	if job.State != string(jobs.StateCompleted) {
		if opts.json {
			_ = writeJSON(cmd, job)
		}
		return fmt.Errorf("job %s %s: %s", job.ID, job.Label(), job.ErrorMessage)
	}

	dest := opts.outputPath(req.Profile)
	if err := downloadTo(runCtx, client, job.ID, dest); err != nil {
		return err
	}
	if opts.json {
		return writeJSON(cmd, job)
	}
	fmt.Fprintf(out, "Wrote %s (%d cues, %d words)\n", dest, job.CueCount, job.WordCount)
	warnDroppedSubtitles(cmd, job.CueCount, job.Overlay)
	return nil
}

// pollJob polls until job reaches a terminal state, reporting each new state.
func pollJob(ctx context.Context, client *api.Client, job api.Job, interval time.Duration, report func(string)) (api.Job, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := ""
	for {
		if job.State != last {
			last = job.State
			report(job.Label())
		}
		if state, ok := jobs.ParseState(job.State); ok && state.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
		next, err := client.GetJob(ctx, job.ID)
		if err != nil {
			return job, err
		}
		job = next
	}
}

func downloadTo(ctx context.Context, client *api.Client, id, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := dest + ".partial"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	_, copyErr := client.DownloadVideo(ctx, id, file)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("download video: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move video into place: %w", err)
	}
	return nil
}

func renderLocal(cmd *cobra.Command, ctx *commandContext, req api.SubmitRequest, opts renderOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := localLogger(cfg)
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := newOrchestrator(cfg, store, logger)
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	job, err := orch.Submit(cmd.Context(), pipeline.Request{
		AudioURL: req.AudioURL,
		ImageURL: req.ImageURL,
		Profile:  jobs.Profile(req.Profile),
	})
	if err != nil {
		return err
	}
	done, err := orch.Wait(cmd.Context(), job.ID)
	if err != nil {
		_ = orch.Cancel(job.ID)
		return err
	}
	result := api.FromJob(done)
	if done.State != jobs.StateCompleted {
		if opts.json {
			_ = writeJSON(cmd, result)
		}
		return fmt.Errorf("job %s %s: %s", done.ID, result.Label(), done.ErrorMessage)
	}

	dest := opts.outputPath(req.Profile)
	if err := fileutil.CopyFileVerified(done.OutputPath, dest); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	if opts.json {
		return writeJSON(cmd, result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d cues, %d words)\n", dest, done.CueCount, done.WordCount)
	warnDroppedSubtitles(cmd, done.CueCount, done.Overlay)
	return nil
}

func warnDroppedSubtitles(cmd *cobra.Command, cues int, overlay string) {
	if (jobs.Job{CueCount: cues, Overlay: overlay}).SubtitlesDropped() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: subtitle burn-in failed; the video has no subtitles (%d cues dropped)\n", cues)
	}
}

// localLogger keeps in-process pipeline logs on stderr so --json output stays clean.
func localLogger(cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.JSONFile = filepath.Join(dir, logging.LogFileName)
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}
