// Package logs reads the daemon's JSON log file for the CLI.
//
// Last and ReadFrom return raw lines with bounded memory; Follow polls for
// appended lines until its context ends and copes with the file being
// truncated or recreated underneath it. ParseEntry and Filter turn lines into
// records that can be narrowed to one job or a minimum level.
package logs
