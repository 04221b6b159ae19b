// Package encoding renders a composition plan to an mp4 with ffmpeg.
//
// The encoder writes to a hidden temporary name next to the requested output,
// probes the result, and only then renames it into place, so a canceled or
// failed render never leaves a partial file at the output path. When the
// karaoke track cannot be burned in, the encoder can retry with the plain SRT
// track and finally without an overlay.
package encoding
