// Package jobs persists pipeline jobs in SQLite and exposes helpers for driving
// their lifecycle.
//
// A Job moves through a single forward pass of states (created, acquiring,
// transcribing, synchronizing, planning, encoding, completed) and may fail from
// any non-terminal state. Advance and Fail enforce that ordering; the Store only
// persists whatever the orchestrator decided.
//
// The database is treated as a record of recent jobs rather than a long-term
// archive. Schema changes bump the version in schema.go; users clear the
// database to adopt the new schema.
package jobs
