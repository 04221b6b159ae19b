package recognition

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"reelsync/internal/transcript"
)

// whisperXPayload mirrors the WhisperX JSON output. Timestamps are decoded
// as decimals so values like 0.1 keep their exact millisecond meaning.
type whisperXPayload struct {
	Language string            `json:"language"`
	Segments []whisperXSegment `json:"segments"`
}

type whisperXSegment struct {
	Text  string           `json:"text"`
	Start *decimal.Decimal `json:"start"`
	End   *decimal.Decimal `json:"end"`
	Words []whisperXWord   `json:"words"`
}

type whisperXWord struct {
	Word  string           `json:"word"`
	Start *decimal.Decimal `json:"start"`
	End   *decimal.Decimal `json:"end"`
	Score *decimal.Decimal `json:"score"`
}

// DecodeWhisperX reads WhisperX JSON. Words the aligner could not time
// (numerals, symbols) get their missing bounds from neighbouring words or
// from the segment span; anything still untimed is dropped.
func DecodeWhisperX(r io.Reader) (Transcription, error) {
	var payload whisperXPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Transcription{}, fmt.Errorf("decode whisperx json: %w", err)
	}
	out := Transcription{
		Language: strings.TrimSpace(payload.Language),
		Segments: make([]transcript.Segment, 0, len(payload.Segments)),
	}
	for _, seg := range payload.Segments {
		out.Segments = append(out.Segments, convertSegment(seg))
	}
	if out.Language != "" {
		out.LanguageSource = LanguageEngine
	}
	return out, nil
}

// ParseWhisperXFile decodes a WhisperX JSON file from disk.
func ParseWhisperXFile(path string) (Transcription, error) {
	f, err := os.Open(path)
	if err != nil {
		return Transcription{}, fmt.Errorf("open whisperx json: %w", err)
	}
	defer f.Close()
	return DecodeWhisperX(f)
}

func convertSegment(seg whisperXSegment) transcript.Segment {
	out := transcript.Segment{
		Start: seconds(seg.Start),
		End:   seconds(seg.End),
		Text:  strings.TrimSpace(seg.Text),
		Words: make([]transcript.Word, len(seg.Words)),
	}
	for i, w := range seg.Words {
		out.Words[i] = transcript.Word{
			Text:  strings.TrimSpace(w.Word),
			Start: seconds(w.Start),
			End:   seconds(w.End),
		}
	}
	fillMissingTiming(out.Words, out.Start, out.End)
	out.Words = slices.DeleteFunc(out.Words, func(w transcript.Word) bool {
		return math.IsNaN(w.Start) || math.IsNaN(w.End)
	})
	if math.IsNaN(out.Start) {
		out.Start = 0
	}
	if math.IsNaN(out.End) {
		out.End = 0
	}
	return out
}

// fillMissingTiming gives an untimed start the previous word's end (or the
// segment start) and an untimed end the next timed start (or the segment end).
func fillMissingTiming(words []transcript.Word, segStart, segEnd float64) {
	prevEnd := segStart
	for i := range words {
		if math.IsNaN(words[i].Start) {
			words[i].Start = prevEnd
		}
		if math.IsNaN(words[i].End) {
			words[i].End = nextStart(words[i+1:], segEnd)
		}
		if !math.IsNaN(words[i].End) {
			prevEnd = words[i].End
		}
	}
}

func nextStart(words []transcript.Word, fallback float64) float64 {
	for _, w := range words {
		if !math.IsNaN(w.Start) {
			return w.Start
		}
	}
	return fallback
}

// seconds converts a decoded timestamp to float seconds at millisecond
// precision. Absent values become NaN.
func seconds(d *decimal.Decimal) float64 {
	if d == nil {
		return math.NaN()
	}
	return d.Round(3).InexactFloat64()
}
