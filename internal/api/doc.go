// Package api defines the wire-format types of the daemon's HTTP API and a
// client for it. It translates jobs.Job into a transport-friendly DTO so the
// CLI and other consumers never decode internal types.
//
// # Key Types
//
// Job: transport representation of a render job, including the failure kind
// and the rendered output facts once complete.
//
// SubmitRequest: the body of POST /api/jobs, /combine and /combine-short.
// Its fields keep the snake_case names of the original service so existing
// callers of /combine continue to work.
//
// DaemonStatus: running state, job counts, and dependency health.
//
// # Client
//
// Client talks to a running daemon. IsUnavailable reports connection errors
// so the CLI can fall back to reading the job database directly.
package api
