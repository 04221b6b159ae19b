package subtitles

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"reelsync/internal/transcript"
)

// Config holds the line-breaking thresholds. It is copied into the
// Synchronizer at construction and never read from anywhere else.
type Config struct {
	MaxChars      int
	MaxWords      int
	MaxGapSeconds float64
}

// Validate reports whether every threshold is usable.
func (c Config) Validate() error {
	var errs []error
	if c.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("max chars must be positive, got %d", c.MaxChars))
	}
	if c.MaxWords <= 0 {
		errs = append(errs, fmt.Errorf("max words must be positive, got %d", c.MaxWords))
	}
	if !(c.MaxGapSeconds > 0) || math.IsInf(c.MaxGapSeconds, 0) {
		errs = append(errs, fmt.Errorf("max gap seconds must be positive and finite, got %v", c.MaxGapSeconds))
	}
	return errors.Join(errs...)
}

// Synchronizer groups words into subtitle lines.
type Synchronizer struct {
	cfg Config
}

// NewSynchronizer validates cfg and returns a Synchronizer bound to it.
func NewSynchronizer(cfg Config) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("subtitle config: %w", err)
	}
	return &Synchronizer{cfg: cfg}, nil
}

// Config returns the thresholds the synchronizer was built with.
func (s *Synchronizer) Config() Config {
	return s.cfg
}

// Plain returns whole-line cues.
func (s *Synchronizer) Plain(words []transcript.Word) []Cue {
	return s.Sync(words).Plain
}

// Karaoke returns cues with per-word highlight windows.
func (s *Synchronizer) Karaoke(words []transcript.Word) []KaraokeCue {
	return s.Sync(words).Karaoke
}

// Sync groups words into lines and returns both tracks. Input is passed
// through transcript.Normalize first, so unordered or overlapping words never
// yield overlapping or zero-length cues. Empty input yields an empty Result.
func (s *Synchronizer) Sync(words []transcript.Word) Result {
	clean, _ := transcript.Normalize([]transcript.Segment{{Words: words}}, transcript.NormalizeOptions{})
	var result Result
	for _, line := range s.group(clean) {
		plain := Cue{
			Start: line[0].Start,
			End:   line[len(line)-1].End,
			Text:  transcript.Text(line),
		}
		highlights := make([]Highlight, len(line))
		for i, w := range line {
			highlights[i] = Highlight{Text: w.Text, Start: w.Start - plain.Start, End: w.End - plain.Start}
		}
		result.Plain = append(result.Plain, plain)
		result.Karaoke = append(result.Karaoke, KaraokeCue{Cue: plain, Words: highlights})
	}
	return result
}

// group splits ordered words into lines. A word starts a new line when the
// current line is non-empty and adding it would exceed MaxChars, the line
// already holds MaxWords words, or the silence before it exceeds
// MaxGapSeconds. Any single trigger is enough to break. A word longer than
// MaxChars on its own still forms a one-word line.
func (s *Synchronizer) group(words []transcript.Word) [][]transcript.Word {
	var (
		lines [][]transcript.Word
		line  []transcript.Word
		chars int
	)
	for _, w := range words {
		width := utf8.RuneCountInString(w.Text)
		if len(line) > 0 {
			prev := line[len(line)-1]
			overChars := chars+1+width > s.cfg.MaxChars
			overWords := len(line) >= s.cfg.MaxWords
			overGap := w.Start-prev.End > s.cfg.MaxGapSeconds
			if overChars || overWords || overGap {
				lines = append(lines, line)
				line, chars = nil, 0
			}
		}
		if len(line) > 0 {
			chars++
		}
		line = append(line, w)
		chars += width
	}
	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines
}

// lineText joins highlight texts the same way transcript.Text joins words.
func lineText(words []Highlight) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
