// Package subtitles turns a word-level transcript into display cues and
// renders them as subtitle files.
//
// A Synchronizer groups words into lines under character, word-count, and
// silence-gap limits and produces two tracks from one grouping pass: plain
// cues (whole lines) and karaoke cues (lines plus per-word highlight windows
// relative to the cue start). Truncate clips both tracks to a duration cap.
// WriteSRT renders the plain track and WriteASS renders the karaoke track as
// one Dialogue event per highlight window.
package subtitles
