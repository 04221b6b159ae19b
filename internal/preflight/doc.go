// Package preflight provides readiness checks for the external tools,
// directories, and services reelsync depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure, so a broken
//     ffmpeg build or unwritable output directory shows up before the first
//     job instead of as a failed render.
//   - The CLI "reelsync status" command prints the same results alongside the
//     binary checks from CheckSystemDeps.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
