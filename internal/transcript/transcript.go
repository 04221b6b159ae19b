package transcript

import (
	"math"
	"slices"
	"strings"
)

// Word is one recognized token with its time span in seconds from the start
// of the audio.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the length of the word's time span.
func (w Word) Duration() float64 {
	return w.End - w.Start
}

// Segment is the output of one recognition pass over a contiguous span of
// audio. Start, End, and Text describe the span when the engine reports them.
type Segment struct {
	Start float64 `json:"start,omitempty"`
	End   float64 `json:"end,omitempty"`
	Text  string  `json:"text,omitempty"`
	Words []Word  `json:"words"`
}

// NormalizeOptions bounds normalization. A zero Duration disables clamping to
// the audio length.
type NormalizeOptions struct {
	Duration float64
}

// Report counts the corrections Normalize applied.
type Report struct {
	Input      int
	Kept       int
	EmptyText  int
	BadTiming  int
	PastEnd    int
	Clamped    int
	Reordered  int
	Overlapped int
	Collapsed  int
}

// Dropped returns how many input words did not survive normalization.
func (r Report) Dropped() int {
	return r.Input - r.Kept
}

// Adjusted reports whether any word was dropped, clamped, reordered, or shifted.
func (r Report) Adjusted() bool {
	return r.Dropped() > 0 || r.Clamped > 0 || r.Reordered > 0 || r.Overlapped > 0
}

// Normalize flattens segments into one validated Word sequence:
//
//  1. text is trimmed and words with empty text are dropped;
//  2. words with non-finite timestamps are dropped and negative starts clamp to 0;
//  3. with a positive opts.Duration, words starting at or after it are dropped
//     and ends are clamped to it;
//  4. words are stable-sorted by start time;
//  5. a word starting before the previous kept word ends has its start moved
//     to that end, so the earlier word keeps its full window;
//  6. any word left with End <= Start is dropped.
//
// The result is ordered by start, non-overlapping, and every word has a
// positive duration.
func Normalize(segments []Segment, opts NormalizeOptions) ([]Word, Report) {
	var report Report
	limit := opts.Duration
	if math.IsNaN(limit) || math.IsInf(limit, 0) || limit < 0 {
		limit = 0
	}

	candidates := make([]Word, 0, countWords(segments))
	for _, segment := range segments {
		for _, word := range segment.Words {
			report.Input++
			text := strings.Join(strings.Fields(word.Text), " ")
			if text == "" {
				report.EmptyText++
				continue
			}
			if !finite(word.Start) || !finite(word.End) {
				report.BadTiming++
				continue
			}
			start, end := word.Start, word.End
			if start < 0 {
				start = 0
				report.Clamped++
			}
			if limit > 0 {
				if start >= limit {
					report.PastEnd++
					continue
				}
				if end > limit {
					end = limit
					report.Clamped++
				}
			}
			candidates = append(candidates, Word{Text: text, Start: start, End: end})
		}
	}

	if !slices.IsSortedFunc(candidates, byStart) {
		report.Reordered = countInversions(candidates)
		slices.SortStableFunc(candidates, byStart)
	}

	words := make([]Word, 0, len(candidates))
	prevEnd := math.Inf(-1)
	for _, word := range candidates {
		if word.Start < prevEnd {
			word.Start = prevEnd
			report.Overlapped++
		}
		if word.End <= word.Start {
			report.Collapsed++
			continue
		}
		words = append(words, word)
		prevEnd = word.End
	}
	report.Kept = len(words)
	return words, report
}

// Text joins the words with single spaces.
func Text(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

func byStart(a, b Word) int {
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	default:
		return 0
	}
}

// countInversions reports how many words start earlier than some word before them.
func countInversions(words []Word) int {
	count := 0
	maxStart := math.Inf(-1)
	for _, w := range words {
		if w.Start < maxStart {
			count++
			continue
		}
		maxStart = w.Start
	}
	return count
}

func countWords(segments []Segment) int {
	total := 0
	for _, s := range segments {
		total += len(s.Words)
	}
	return total
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
