package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelsync/internal/api"
	"reelsync/internal/config"
	"reelsync/internal/jobs"
	"reelsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and job status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot := buildStatusSnapshot(cmd.Context(), ctx, cfg)
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			out := cmd.OutOrStdout()
			renderStatus(out, cfg, snapshot, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

type statusSnapshot struct {
	API         string                 `json:"api"`
	Daemon      *api.DaemonStatus      `json:"daemon,omitempty"`
	DaemonError string                 `json:"daemon_error,omitempty"`
	Checks      []preflight.Result     `json:"checks"`
	Deps        []api.DependencyStatus `json:"dependencies"`
}

// buildStatusSnapshot asks the daemon first; local checks always run because
// they describe this host, which may differ from the daemon's view.
func buildStatusSnapshot(parent context.Context, ctx *commandContext, cfg *config.Config) statusSnapshot {
	snapshot := statusSnapshot{API: ctx.apiBind(cfg)}

	client, err := ctx.apiClient()
	if err == nil {
		reqCtx, cancel := context.WithTimeout(parent, 5*time.Second)
		status, statusErr := client.Status(reqCtx)
		cancel()
		if statusErr == nil {
			snapshot.Daemon = &status
		} else {
			err = statusErr
		}
	}
	if err != nil {
		snapshot.DaemonError = err.Error()
	}

	checkCtx, cancel := context.WithTimeout(parent, 15*time.Second)
	defer cancel()
	snapshot.Checks = preflight.RunAll(checkCtx, cfg)
	snapshot.Checks = append(snapshot.Checks,
		preflight.CheckModelCache(cfg),
		preflight.CheckNtfyFromConfig(checkCtx, cfg),
	)
	if snapshot.Daemon != nil && len(snapshot.Daemon.Dependencies) > 0 {
		snapshot.Deps = snapshot.Daemon.Dependencies
	} else {
		snapshot.Deps = api.FromDependencies(preflight.CheckSystemDeps(checkCtx, cfg))
	}
	return snapshot
}

func renderStatus(out io.Writer, cfg *config.Config, snapshot statusSnapshot, colorize bool) {
	section := func(title string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
	}

	section("Daemon")
	if d := snapshot.Daemon; d != nil {
		fmt.Fprintln(out, renderStatusLine("reelsync", statusOK, fmt.Sprintf("Running (pid %d) at %s", d.PID, snapshot.API), colorize))
		fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d/%d busy", d.ActiveJobs, d.MaxJobs), colorize))
		sweep := "Not yet run"
		if d.LastSweep != "" {
			sweep = d.LastSweep
		}
		fmt.Fprintln(out, renderStatusLine("Last sweep", statusInfo, sweep, colorize))
		fmt.Fprintln(out, workspaceLine(d.Workspaces, colorize))
		fmt.Fprintln(out, renderStatusLine("Database", statusInfo, d.DatabasePath, colorize))
	} else {
		detail := "Not running"
		if snapshot.API == "" {
			detail = "API disabled"
		}
		fmt.Fprintln(out, renderStatusLine("reelsync", statusWarn, detail, colorize))
	}
	fmt.Fprintln(out)

	section("System Checks")
	for _, result := range snapshot.Checks {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	fmt.Fprintln(out)

	section("Dependencies")
	for _, line := range dependencyLines(snapshot.Deps, colorize) {
		fmt.Fprintln(out, line)
	}

	if snapshot.Daemon == nil {
		return
	}
	fmt.Fprintln(out)
	section("Jobs")
	rows := jobCountRows(snapshot.Daemon.JobCounts)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No jobs")
		return
	}
	fmt.Fprint(out, renderTable([]column{{Header: "State"}, {Header: "Count", Right: true}}, rows))
	fmt.Fprintln(out)
	if retention := cfg.OutputRetention(); retention > 0 {
		fmt.Fprintf(out, "Finished videos are kept for %s.\n", retention)
	}
}

func dependencyLines(list []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(list)+1)
	var missing []string
	for _, dep := range list {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			if detail := strings.TrimSpace(dep.Detail); detail != "" {
				message += "; " + detail
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

// jobCountRows orders counts by pipeline position, not alphabetically.
func jobCountRows(counts map[string]int) [][]string {
	order := make(map[string]int)
	for i, state := range jobs.AllStates() {
		order[string(state)] = i
	}
	states := make([]string, 0, len(counts))
	for state, n := range counts {
		if n > 0 {
			states = append(states, state)
		}
	}
	sort.Slice(states, func(i, j int) bool { return order[states[i]] < order[states[j]] })
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, strconv.Itoa(counts[state])})
	}
	return rows
}

func workspaceLine(usage api.WorkspaceUsage, colorize bool) string {
	if usage.Count == 0 {
		return renderStatusLine("Workspaces", statusInfo, "None", colorize)
	}
	detail := fmt.Sprintf("%d (%s)", usage.Count, humanize.IBytes(uint64(usage.Bytes)))
	if usage.Stale == 0 {
		return renderStatusLine("Workspaces", statusInfo, detail, colorize)
	}
	return renderStatusLine("Workspaces", statusWarn, fmt.Sprintf("%s, %d stale until the next sweep", detail, usage.Stale), colorize)
}
