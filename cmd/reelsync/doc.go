// Package main hosts the reelsync CLI entrypoint and command graph.
//
// The Cobra command tree either runs the daemon in the foreground (serve),
// talks to a running daemon over its HTTP API (render, jobs, status), or works
// purely offline on local files (subtitles, config). Configuration resolution
// and API client construction live in commandContext so subcommands only deal
// with presentation.
package main
