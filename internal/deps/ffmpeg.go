package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"reelsync/internal/subprocess"
)

// burnInFilters are the ffmpeg filters the encoder can use to draw subtitles.
// Both come from libass, so a build without it cannot overlay anything.
var burnInFilters = []string{"ass", "subtitles"}

// CheckFFmpegFilters runs `ffmpeg -filters` and reports whether the build can
// burn in subtitles. A missing filter is reported in Detail with Available
// still true when at least one overlay filter exists.
func CheckFFmpegFilters(ctx context.Context, binary string) Status {
	status := Status{
		Name:        "FFmpeg subtitle filters",
		Command:     strings.TrimSpace(binary),
		Description: "Required to burn in karaoke subtitles",
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var stdout bytes.Buffer
	result, err := subprocess.Run(checkCtx, subprocess.Command{
		Binary: status.Command,
		Args:   []string{"-hide_banner", "-filters"},
		Stdout: &stdout,
		Grace:  time.Second,
	})
	if err != nil {
		status.Detail = fmt.Sprintf("ffmpeg -filters failed: %v", err)
		if result.StderrTail != "" {
			status.Detail += ": " + result.StderrTail
		}
		return status
	}

	found := parseFilterNames(stdout.Bytes())
	var missing []string
	for _, name := range burnInFilters {
		if !slices.Contains(found, name) {
			missing = append(missing, name)
		}
	}
	switch {
	case len(missing) == len(burnInFilters):
		status.Detail = "ffmpeg built without libass (no ass or subtitles filter)"
	case len(missing) > 0:
		status.Available = true
		status.Detail = "missing filter: " + strings.Join(missing, ", ")
	default:
		status.Available = true
	}
	return status
}

// parseFilterNames extracts filter names from `ffmpeg -filters` output, whose
// rows look like " T.. ass               V->V       Render ASS subtitles".
// Legend lines never carry the "->" io column.
func parseFilterNames(out []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		names = append(names, fields[1])
	}
	return names
}
