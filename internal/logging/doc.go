// Package logging assembles structured slog loggers and formatting helpers used
// across reelsync.
//
// It owns the console and JSON handlers, the optional JSON log file tee, and
// context helpers that tag log lines with job IDs, stages, and correlation IDs.
// NewNop returns a discarding logger for tests and wiring code that cannot fail.
package logging
