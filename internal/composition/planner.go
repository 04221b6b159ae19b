package composition

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"reelsync/internal/config"
	"reelsync/internal/jobs"
	"reelsync/internal/logging"
	"reelsync/internal/subtitles"
)

// Settings are the canvas and codec rules the planner applies.
type Settings struct {
	MaxStandardWidth int
	ShortWidth       int
	ShortHeight      int
	ShortDurationCap float64
	ShortFit         Fit
	Preset           string
	CRF              int
	AudioBitrate     string
}

// SettingsFromConfig extracts planner settings from the loaded config.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	fit, err := ParseFit(cfg.Composition.ShortFit)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		MaxStandardWidth: cfg.Composition.MaxStandardWidth,
		ShortWidth:       cfg.Composition.ShortWidth,
		ShortHeight:      cfg.Composition.ShortHeight,
		ShortDurationCap: cfg.Composition.ShortDurationCap,
		ShortFit:         fit,
		Preset:           cfg.Encoding.Preset,
		CRF:              cfg.Encoding.CRF,
		AudioBitrate:     cfg.Encoding.AudioBitrate,
	}, nil
}

// Request carries everything measured about one job's inputs.
type Request struct {
	Profile       jobs.Profile
	ImagePath     string
	AudioPath     string
	OutputPath    string
	AudioDuration float64
	ImageWidth    int
	ImageHeight   int
	Subtitles     subtitles.Result
}

// Planner derives plans. It never re-runs recognition; truncation only
// operates on the cue data already in the request.
type Planner struct {
	settings Settings
	logger   *slog.Logger
}

// NewPlanner validates settings and returns a Planner.
func NewPlanner(settings Settings, logger *slog.Logger) (*Planner, error) {
	var errs []error
	if settings.MaxStandardWidth < 2 {
		errs = append(errs, fmt.Errorf("max standard width %d too small", settings.MaxStandardWidth))
	}
	if settings.ShortWidth < 2 || settings.ShortHeight < 2 || settings.ShortWidth%2 != 0 || settings.ShortHeight%2 != 0 {
		errs = append(errs, fmt.Errorf("short canvas %dx%d must be even and positive", settings.ShortWidth, settings.ShortHeight))
	}
	if settings.ShortDurationCap <= 0 || settings.ShortDurationCap > MaxShortDurationCap {
		errs = append(errs, fmt.Errorf("short duration cap %v outside (0, %v]", settings.ShortDurationCap, MaxShortDurationCap))
	}
	if settings.ShortFit != FitFill && settings.ShortFit != FitPad {
		errs = append(errs, fmt.Errorf("short fit %q must be fill or pad", settings.ShortFit))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("composition settings: %w", err)
	}
	return &Planner{settings: settings, logger: logging.NewComponentLogger(logger, "composition")}, nil
}

// Plan derives the encoder plan and the cue tracks clipped to what the
// video will actually show. The returned plan has no subtitle overlay yet;
// callers attach the rendered track with Plan.WithSubtitles.
func (p *Planner) Plan(req Request) (Plan, subtitles.Result, error) {
	if !(req.AudioDuration > 0) || math.IsInf(req.AudioDuration, 0) {
		return Plan{}, subtitles.Result{}, fmt.Errorf("audio duration %v must be positive", req.AudioDuration)
	}
	if req.ImageWidth <= 0 || req.ImageHeight <= 0 {
		return Plan{}, subtitles.Result{}, fmt.Errorf("image dimensions %dx%d must be positive", req.ImageWidth, req.ImageHeight)
	}

	plan := Plan{
		Profile:       req.Profile,
		ImagePath:     req.ImagePath,
		AudioPath:     req.AudioPath,
		OutputPath:    req.OutputPath,
		AudioDuration: req.AudioDuration,
		Preset:        p.settings.Preset,
		CRF:           p.settings.CRF,
		AudioBitrate:  p.settings.AudioBitrate,
	}
	reason := ""
	switch req.Profile {
	case jobs.ProfileStandard:
		plan.CanvasWidth, plan.CanvasHeight, reason = standardCanvas(req.ImageWidth, req.ImageHeight, p.settings.MaxStandardWidth)
		plan.Fit = FitPreserve
	case jobs.ProfileShort:
		plan.CanvasWidth, plan.CanvasHeight = p.settings.ShortWidth, p.settings.ShortHeight
		plan.Fit = p.settings.ShortFit
		plan.DurationCap = p.settings.ShortDurationCap
		reason = "fixed_short_canvas"
	default:
		return Plan{}, subtitles.Result{}, fmt.Errorf("unknown profile %q", req.Profile)
	}

	end := plan.OutputDuration()
	cues := subtitles.Truncate(req.Subtitles, end)
	dropped := len(req.Subtitles.Plain) - len(cues.Plain)

	if err := plan.Validate(); err != nil {
		return Plan{}, subtitles.Result{}, err
	}

	attrs := logging.DecisionAttrs("composition_plan", string(plan.Profile), reason)
	attrs = append(attrs,
		logging.String("decision_options", "standard, short"),
		logging.String("canvas", fmt.Sprintf("%dx%d", plan.CanvasWidth, plan.CanvasHeight)),
		logging.String("fit", string(plan.Fit)),
		logging.Float64("audio_seconds", plan.AudioDuration),
		logging.Float64("output_seconds", end),
		logging.Int("cues", len(cues.Plain)),
	)
	if plan.Capped() {
		attrs = append(attrs,
			logging.Float64("duration_cap", plan.DurationCap),
			logging.Int("cues_dropped", dropped),
		)
	}
	p.logger.Info("composition planned", logging.Args(attrs...)...)
	return plan, cues, nil
}

// standardCanvas keeps the image aspect ratio, downscales to maxWidth, and
// rounds both sides down to even numbers.
func standardCanvas(width, height, maxWidth int) (int, int, string) {
	reason := "source_dimensions"
	w, h := float64(width), float64(height)
	if width > maxWidth {
		h = math.Round(h * float64(maxWidth) / w)
		w = float64(maxWidth)
		reason = "downscaled_to_max_width"
	}
	return evenFloor(int(w)), evenFloor(int(h)), reason
}

func evenFloor(v int) int {
	v -= v % 2
	if v < 2 {
		return 2
	}
	return v
}

// Describe summarises a plan for status output.
func Describe(plan Plan) string {
	parts := []string{
		string(plan.Profile),
		fmt.Sprintf("%dx%d", plan.CanvasWidth, plan.CanvasHeight),
		string(plan.Fit),
	}
	if plan.DurationCap > 0 {
		parts = append(parts, fmt.Sprintf("cap=%gs", plan.DurationCap))
	}
	if plan.HasSubtitles() {
		parts = append(parts, "subs="+string(plan.SubtitleFormat))
	}
	return strings.Join(parts, " ")
}
