package recognition

import (
	"context"

	"reelsync/internal/transcript"
)

// Language sources recorded on a Transcription.
const (
	LanguageConfigured = "configured"
	LanguageEngine     = "engine"
	LanguageDetected   = "detected"
)

// Transcription is the recognizer output for one audio file.
type Transcription struct {
	Segments       []transcript.Segment `json:"segments"`
	Language       string               `json:"language,omitempty"`
	LanguageSource string               `json:"language_source,omitempty"`
	Model          string               `json:"model,omitempty"`
	Cached         bool                 `json:"-"`
}

// WordCount returns the number of words across all segments.
func (t Transcription) WordCount() int {
	total := 0
	for _, s := range t.Segments {
		total += len(s.Words)
	}
	return total
}

// Text joins segment text, falling back to word text for segments without it.
func (t Transcription) Text() string {
	var out []byte
	for _, s := range t.Segments {
		text := s.Text
		if text == "" {
			text = transcript.Text(s.Words)
		}
		if text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, text...)
	}
	return string(out)
}

// Recognizer transcribes an audio file. workDir receives any intermediate
// files and is owned by the caller.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath, workDir string) (Transcription, error)
}
