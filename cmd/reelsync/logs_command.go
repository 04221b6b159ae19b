package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsync/internal/logging"
	"reelsync/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var jobID string
	var level string
	var component string
	var raw bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := logs.Filter{JobID: strings.TrimSpace(jobID), Component: strings.TrimSpace(component)}
			if level != "" {
				if err := filter.MinLevel.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("invalid --level %q", level)
				}
			}

			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()
			emit := func(line string) {
				printLogLine(out, line, filter, raw)
			}

			// Filtering can drop lines, so read everything when a filter is set.
			window := lines
			if filter != (logs.Filter{}) {
				window = 0
			}
			var tail []string
			var offset int64
			if window > 0 {
				tail, offset, err = logs.Last(path, window)
			} else {
				tail, offset, err = logs.ReadFrom(path, 0)
			}
			if err != nil {
				return err
			}
			if window == 0 {
				tail = lastMatching(tail, filter, lines)
			}
			for _, line := range tail {
				emit(line)
			}

			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, emit)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for this job id")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&component, "component", "", "Only show lines from this component")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unformatted")
	return cmd
}

func lastMatching(lines []string, filter logs.Filter, n int) []string {
	var kept []string
	for _, line := range lines {
		entry, ok := logs.ParseEntry(line)
		if ok && filter.Match(entry) {
			kept = append(kept, line)
		}
	}
	if n > 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

func printLogLine(w io.Writer, line string, filter logs.Filter, raw bool) {
	entry, ok := logs.ParseEntry(line)
	if !ok {
		if filter == (logs.Filter{}) {
			fmt.Fprintln(w, line)
		}
		return
	}
	if !filter.Match(entry) {
		return
	}
	if raw {
		fmt.Fprintln(w, line)
		return
	}
	fmt.Fprintln(w, entry.Format())
}
