package composition

import (
	"fmt"
	"strconv"
	"strings"
)

// Args builds the ffmpeg argument list for a plan. The still image is looped
// for the length of the audio, or until the cap when the audio is longer. The
// video filter maps the image onto the canvas and burns in the subtitle track
// when one is attached.
func Args(plan Plan) []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-loop", "1", "-i", plan.ImagePath,
		"-i", plan.AudioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-vf", VideoFilter(plan),
		"-c:v", "libx264", "-tune", "stillimage",
		"-preset", orDefault(plan.Preset, "medium"),
		"-crf", strconv.Itoa(plan.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", orDefault(plan.AudioBitrate, "192k"),
	}
	if plan.Capped() {
		args = append(args, "-t", formatSeconds(plan.DurationCap))
	} else {
		args = append(args, "-shortest")
	}
	return append(args, "-movflags", "+faststart", "-f", "mp4", plan.OutputPath)
}

// VideoFilter returns the -vf chain for a plan.
func VideoFilter(plan Plan) string {
	w, h := plan.CanvasWidth, plan.CanvasHeight
	var filters []string
	switch plan.Fit {
	case FitFill:
		filters = append(filters,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", w, h),
			fmt.Sprintf("crop=%d:%d", w, h),
		)
	case FitPad:
		filters = append(filters,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", w, h),
		)
	default:
		filters = append(filters, fmt.Sprintf("scale=%d:%d", w, h))
	}
	filters = append(filters, "setsar=1")
	if plan.HasSubtitles() {
		name := "subtitles"
		if plan.SubtitleFormat == SubtitleASS {
			name = "ass"
		}
		filters = append(filters, name+"="+escapeFilterValue(plan.SubtitlePath))
	}
	return strings.Join(filters, ",")
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// escapeFilterValue applies both levels of filtergraph escaping so any path
// survives as a single option value.
func escapeFilterValue(value string) string {
	return graphEscaper.Replace(optionEscaper.Replace(value))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
