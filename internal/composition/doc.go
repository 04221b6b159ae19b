// Package composition derives the render plan for a job.
//
// A Planner turns the measured inputs (audio duration, image size) and the
// synchronized cue tracks into a Plan: canvas size, fit mode, duration cap,
// and every path and codec setting the encoder needs. Args renders a Plan as
// an ffmpeg argument list, so the encoder invocation is a pure function of the
// plan with no environment lookups at encode time.
//
// The standard profile keeps the image aspect ratio and never caps duration.
// The short profile renders a fixed 9:16 canvas and caps output at
// MaxShortDurationCap seconds, truncating cues that would run past it.
package composition
