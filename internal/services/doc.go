// Package services defines shared utilities consumed by the pipeline stages and
// their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the failure kinds recorded on a job (fetch, recognition,
//     synchronization, encode, timeout, resource).
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
