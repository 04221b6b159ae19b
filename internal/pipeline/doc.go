// Package pipeline runs render jobs end to end.
//
// The Orchestrator accepts a job, persists it, and drives it through the
// acquiring, transcribing, synchronizing, planning, and encoding stages in a
// single forward pass. Each job owns a scratch workspace that is removed on
// every exit path; the finished video is moved to the output directory first.
// A per-job timeout bounds the whole run and cancels whichever fetch, engine,
// or encoder call is outstanding. A weighted semaphore caps how many jobs run
// at once; the rest wait for a slot before their clock starts.
package pipeline
