// Package transcript holds the normalized word-level representation of
// recognized speech.
//
// Recognition engines hand back segments whose word timings can be noisy:
// overlapping, out of order, or reaching past the end of the audio. Normalize
// flattens those segments into one ordered, non-overlapping Word sequence using
// a fixed tolerant policy, so identical input always yields identical output.
package transcript
