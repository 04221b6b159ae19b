package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// WriteSRT renders cues as SubRip. Cue text is written on one line; every
// cue spans at least one millisecond after rounding.
func WriteSRT(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for i, cue := range cues {
		startMs := toMillis(cue.Start)
		endMs := toMillis(cue.End)
		if endMs <= startMs {
			endMs = startMs + 1
		}
		text := strings.Join(strings.Fields(cue.Text), " ")
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTimestamp(startMs), formatSRTTimestamp(endMs), text); err != nil {
			return fmt.Errorf("write srt cue %d: %w", i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush srt: %w", err)
	}
	return nil
}

func toMillis(seconds float64) int64 {
	if seconds < 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

func formatSRTTimestamp(ms int64) string {
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ParseSRT reads SubRip cues. Multi-line cue text is joined with spaces.
func ParseSRT(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues    []Cue
		current *Cue
		lines   []string
		lineNo  int
	)
	flush := func() {
		if current != nil {
			current.Text = strings.Join(lines, " ")
			cues = append(cues, *current)
		}
		current, lines = nil, nil
	}
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			flush()
			continue
		}
		if current == nil {
			if !strings.Contains(line, "-->") {
				// Cue index line.
				continue
			}
			parts := strings.SplitN(line, "-->", 2)
			start, err := parseSRTTimestamp(parts[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			endField := strings.Fields(parts[1])
			if len(endField) == 0 {
				return nil, fmt.Errorf("line %d: missing end timestamp", lineNo)
			}
			end, err := parseSRTTimestamp(endField[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current = &Cue{Start: start, End: end}
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan srt: %w", err)
	}
	flush()
	return cues, nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// ValidateCues checks cue timing. Returns a list of issues found; an empty
// slice means validation passed. A positive duration also flags cues that
// run past it.
func ValidateCues(cues []Cue, duration float64) []string {
	var issues []string
	const epsilon = 0.0005
	for i, cue := range cues {
		if cue.End <= cue.Start {
			issues = append(issues, fmt.Sprintf("non_positive_duration: cue=%d", i+1))
		}
		if i > 0 {
			prev := cues[i-1]
			if cue.Start < prev.Start {
				issues = append(issues, fmt.Sprintf("out_of_order: cue=%d", i+1))
			} else if cue.Start < prev.End-epsilon {
				issues = append(issues, fmt.Sprintf("overlap: cue=%d overlaps=%.3fs", i+1, prev.End-cue.Start))
			}
		}
		if duration > 0 && cue.End > duration+epsilon {
			issues = append(issues, fmt.Sprintf("past_duration: cue=%d end=%.3fs", i+1, cue.End))
		}
	}
	return issues
}

// ValidateSRTFile parses the file at path and validates its cues.
func ValidateSRTFile(path string, duration float64) []string {
	f, err := os.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("read_error: %v", err)}
	}
	defer f.Close()
	cues, err := ParseSRT(f)
	if err != nil {
		return []string{fmt.Sprintf("timestamp_parse_error: %v", err)}
	}
	if len(cues) == 0 {
		return []string{"empty_subtitle_file"}
	}
	return ValidateCues(cues, duration)
}
