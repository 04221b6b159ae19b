// Package daemon coordinates the long-running reelsync process.
//
// It wires configuration, the job store, and the pipeline orchestrator into a
// single lifecycle with flock-based locking to prevent multiple instances.
// On start it fails jobs a previous process left mid-flight, schedules the
// cron sweeper that expires old outputs and stale workspaces, and serves the
// HTTP API.
//
// Keep orchestration logic here: individual job stages live in pipeline while
// the daemon focuses on startup, shutdown, and housekeeping.
package daemon
