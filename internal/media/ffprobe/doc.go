// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes its streams and format sections. Audio and
// Image reduce a Result to the facts the composition planner needs: the audio
// duration, and the display dimensions of a still image with any rotation
// metadata applied.
package ffprobe
