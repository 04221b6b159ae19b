package composition

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"reelsync/internal/jobs"
)

// MaxShortDurationCap is the hard ceiling for short-profile output in seconds.
const MaxShortDurationCap = 59.0

// Fit selects how the image is mapped onto the canvas.
type Fit string

const (
	// FitPreserve scales the image to a canvas of the same aspect ratio.
	FitPreserve Fit = "preserve"
	// FitFill scales the image up to cover the canvas and center-crops it.
	FitFill Fit = "fill"
	// FitPad scales the image down to fit inside the canvas and letterboxes it.
	FitPad Fit = "pad"
)

// ParseFit converts a config value into a Fit.
func ParseFit(value string) (Fit, error) {
	switch Fit(strings.ToLower(strings.TrimSpace(value))) {
	case FitFill:
		return FitFill, nil
	case FitPad:
		return FitPad, nil
	case FitPreserve:
		return FitPreserve, nil
	default:
		return "", fmt.Errorf("unknown fit %q", value)
	}
}

// SubtitleFormat names the overlay filter used for burn-in.
type SubtitleFormat string

const (
	SubtitleNone SubtitleFormat = ""
	SubtitleASS  SubtitleFormat = "ass"
	SubtitleSRT  SubtitleFormat = "srt"
)

// Plan fully determines one encoder invocation.
type Plan struct {
	Profile        jobs.Profile
	CanvasWidth    int
	CanvasHeight   int
	DurationCap    float64
	Fit            Fit
	ImagePath      string
	AudioPath      string
	SubtitlePath   string
	SubtitleFormat SubtitleFormat
	OutputPath     string
	AudioDuration  float64
	Preset         string
	CRF            int
	AudioBitrate   string
}

// HasSubtitles reports whether the plan burns in a subtitle track.
func (p Plan) HasSubtitles() bool {
	return p.SubtitlePath != "" && p.SubtitleFormat != SubtitleNone
}

// Capped reports whether the cap cuts the audio short.
func (p Plan) Capped() bool {
	return p.DurationCap > 0 && p.AudioDuration > p.DurationCap
}

// OutputDuration is the expected length of the rendered video.
func (p Plan) OutputDuration() float64 {
	if p.Capped() {
		return p.DurationCap
	}
	return p.AudioDuration
}

// WithSubtitles returns a copy of the plan overlaying the track at path. The
// overlay filter is chosen from the file extension; an empty path removes
// the overlay.
func (p Plan) WithSubtitles(path string) Plan {
	p.SubtitlePath = path
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ass", ".ssa":
		p.SubtitleFormat = SubtitleASS
	case ".srt":
		p.SubtitleFormat = SubtitleSRT
	default:
		p.SubtitlePath = ""
		p.SubtitleFormat = SubtitleNone
	}
	return p
}

// WithOutput returns a copy of the plan writing to path.
func (p Plan) WithOutput(path string) Plan {
	p.OutputPath = path
	return p
}

// Validate reports every reason the plan cannot be encoded.
func (p Plan) Validate() error {
	var errs []error
	if p.CanvasWidth <= 0 || p.CanvasHeight <= 0 {
		errs = append(errs, fmt.Errorf("canvas %dx%d must be positive", p.CanvasWidth, p.CanvasHeight))
	}
	if p.CanvasWidth%2 != 0 || p.CanvasHeight%2 != 0 {
		errs = append(errs, fmt.Errorf("canvas %dx%d must have even dimensions", p.CanvasWidth, p.CanvasHeight))
	}
	if p.DurationCap < 0 {
		errs = append(errs, fmt.Errorf("duration cap %v is negative", p.DurationCap))
	}
	if p.Profile == jobs.ProfileShort && (p.DurationCap <= 0 || p.DurationCap > MaxShortDurationCap) {
		errs = append(errs, fmt.Errorf("short profile duration cap %v outside (0, %v]", p.DurationCap, MaxShortDurationCap))
	}
	if !(p.AudioDuration > 0) {
		errs = append(errs, errors.New("audio duration must be positive"))
	}
	for name, path := range map[string]string{"image": p.ImagePath, "audio": p.AudioPath, "output": p.OutputPath} {
		if strings.TrimSpace(path) == "" {
			errs = append(errs, fmt.Errorf("%s path is empty", name))
		}
	}
	switch p.Fit {
	case FitPreserve, FitFill, FitPad:
	default:
		errs = append(errs, fmt.Errorf("unknown fit %q", p.Fit))
	}
	return errors.Join(errs...)
}
