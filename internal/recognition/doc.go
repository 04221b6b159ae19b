// Package recognition produces word-level transcripts from audio.
//
// Engine runs WhisperX through uvx and reads its JSON output with exact
// decimal timestamps. Service wraps an engine with the process-wide model
// cache barrier, an optional content-addressed transcript cache, and a
// language-detection fallback for transcripts the engine left untagged.
//
// Pipeline code depends on the Recognizer interface only.
package recognition
