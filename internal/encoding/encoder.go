package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsync/internal/composition"
	"reelsync/internal/config"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/subprocess"
)

// durationTolerance is how far the rendered duration may drift from the plan.
const durationTolerance = 1.0

// Encoder renders a plan.
type Encoder interface {
	Encode(ctx context.Context, plan composition.Plan) (Result, error)
}

// Result describes a finished render. Overlay names the subtitle track that
// was burned in, which after a fallback is not the one the plan asked for.
type Result struct {
	Path    string
	Overlay string
}

// Overlay values recorded on jobs.
const (
	OverlayASS  = string(composition.SubtitleASS)
	OverlaySRT  = string(composition.SubtitleSRT)
	OverlayNone = jobs.OverlayNone
)

// ProbeFunc inspects a media file; ffprobe.Inspect is the default.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Options configures an FFmpegEncoder.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	Grace         time.Duration
	// Probe verifies the rendered file.
	Probe ProbeFunc
	// SubtitleFallbacks retries a failed karaoke burn-in with the plain
	// track, then without subtitles.
	SubtitleFallbacks bool
}

// OptionsFromConfig maps the encoding config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:      cfg.FFmpegBinary(),
		FFprobeBinary:     cfg.FFprobeBinary(),
		Grace:             cfg.KillGrace(),
		SubtitleFallbacks: cfg.Encoding.SubtitleFallbacks,
	}
}

// FFmpegEncoder runs ffmpeg through the subprocess package.
type FFmpegEncoder struct {
	opts   Options
	logger *slog.Logger
}

// NewFFmpegEncoder returns an encoder using opts.
func NewFFmpegEncoder(opts Options, logger *slog.Logger) *FFmpegEncoder {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.Probe == nil {
		opts.Probe = ffprobe.Inspect
	}
	return &FFmpegEncoder{opts: opts, logger: logging.NewComponentLogger(logger, "encoder")}
}

// Encode implements Encoder.
func (e *FFmpegEncoder) Encode(ctx context.Context, plan composition.Plan) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid plan: %w", err)
	}
	logger := logging.WithContext(ctx, e.logger)

	attempts := e.attempts(plan)
	var errs []error
	for i, attempt := range attempts {
		output, err := e.encodeOnce(ctx, attempt)
		if err == nil {
			if i > 0 {
				attrs := append(logging.DecisionAttrs("subtitle_fallback", overlayLabel(attempt), "primary overlay failed"),
					logging.Int("attempt", i+1),
				)
				logger.Info("subtitle fallback decision", logging.Args(attrs...)...)
			}
			return Result{Path: output, Overlay: overlayLabel(attempt)}, nil
		}
		if ctx.Err() != nil {
			return Result{}, err
		}
		errs = append(errs, err)
		if i < len(attempts)-1 {
			logging.WarnWithContext(logger, "encode attempt failed; retrying with fallback overlay", "encode_fallback",
				logging.String("overlay", overlayLabel(attempt)),
				logging.String("next_overlay", overlayLabel(attempts[i+1])),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the subtitle file and the ffmpeg libass build"),
				logging.String(logging.FieldImpact, "video may be rendered with a simpler subtitle track"),
			)
		}
	}
	return Result{}, errors.Join(errs...)
}

// attempts lists the plans to try in order. Without fallbacks only the plan
// itself is tried.
func (e *FFmpegEncoder) attempts(plan composition.Plan) []composition.Plan {
	out := []composition.Plan{plan}
	if !e.opts.SubtitleFallbacks || !plan.HasSubtitles() {
		return out
	}
	if plan.SubtitleFormat == composition.SubtitleASS {
		srt := strings.TrimSuffix(plan.SubtitlePath, filepath.Ext(plan.SubtitlePath)) + ".srt"
		if info, err := os.Stat(srt); err == nil && info.Size() > 0 {
			out = append(out, plan.WithSubtitles(srt))
		}
	}
	return append(out, plan.WithSubtitles(""))
}

func (e *FFmpegEncoder) encodeOnce(ctx context.Context, plan composition.Plan) (string, error) {
	final := plan.OutputPath
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}
	tmp := tempOutputPath(final)
	_ = os.Remove(tmp)

	args := composition.Args(plan.WithOutput(tmp))
	e.logger.Debug("ffmpeg command",
		logging.String("binary", e.opts.FFmpegBinary),
		logging.String("args", strings.Join(args, " ")),
	)
	result, err := subprocess.Run(ctx, subprocess.Command{
		Binary: e.opts.FFmpegBinary,
		Args:   args,
		Grace:  e.opts.Grace,
	})
	if err != nil {
		_ = os.Remove(tmp)
		if result.StderrTail != "" {
			return "", fmt.Errorf("ffmpeg: %w\n%s", err, result.StderrTail)
		}
		return "", fmt.Errorf("ffmpeg: %w", err)
	}

	if err := e.verify(ctx, tmp, plan); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize output: %w", err)
	}
	e.logger.Info("encode complete",
		logging.String(logging.FieldEventType, "encode_complete"),
		logging.String("output", final),
		logging.String("overlay", overlayLabel(plan)),
		logging.Duration("elapsed", result.Elapsed),
	)
	return final, nil
}

// verify checks that ffmpeg produced a non-empty video of the planned shape.
func (e *FFmpegEncoder) verify(ctx context.Context, path string, plan composition.Plan) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("verify output: file is empty")
	}
	probe, err := e.opts.Probe(ctx, e.opts.FFprobeBinary, path)
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	video, ok := probe.FirstStream("video")
	if !ok {
		return errors.New("verify output: no video stream")
	}
	if video.Width != plan.CanvasWidth || video.Height != plan.CanvasHeight {
		return fmt.Errorf("verify output: video is %dx%d, planned %dx%d", video.Width, video.Height, plan.CanvasWidth, plan.CanvasHeight)
	}
	if _, ok := probe.FirstStream("audio"); !ok {
		return errors.New("verify output: no audio stream")
	}
	if got, want := probe.DurationSeconds(), plan.OutputDuration(); math.Abs(got-want) > durationTolerance {
		return fmt.Errorf("verify output: duration %.3fs, planned %.3fs", got, want)
	}
	return nil
}

func tempOutputPath(final string) string {
	return filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+".partial")
}

func overlayLabel(plan composition.Plan) string {
	if !plan.HasSubtitles() {
		return OverlayNone
	}
	return string(plan.SubtitleFormat)
}
