package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsync/internal/api"
	"reelsync/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage render jobs on the daemon",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsDownloadCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, state := range states {
				if _, ok := jobs.ParseState(state); !ok {
					return fmt.Errorf("unknown state %q", state)
				}
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			list, err := client.ListJobs(cmd.Context(), states...)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, api.JobListResponse{Jobs: list})
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(list, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only show jobs in these states (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderJobTable(list []api.Job, colorize bool) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		state, _ := jobs.ParseState(job.State)
		rows = append(rows, []string{
			job.ID,
			job.Profile,
			paint(job.Label(), stateKind(state), colorize),
			formatDuration(job.AudioDuration),
			strconv.Itoa(job.CueCount),
			formatAge(job.CreatedAt),
			job.AudioURL,
		})
	}
	return renderTable([]column{
		{Header: "ID"},
		{Header: "Profile"},
		{Header: "State"},
		{Header: "Audio", Right: true},
		{Header: "Cues", Right: true},
		{Header: "Created"},
		{Header: "Source", MaxWidth: 48},
	}, rows)
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("job %s not found", args[0])
				}
				return ctx.wrapAPIError(err)
			}
			if asJSON {
				return writeJSON(cmd, job)
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func printJob(out io.Writer, job api.Job) {
	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}
	field("ID", job.ID)
	field("State", job.Label())
	field("Profile", job.Profile)
	field("Audio", job.AudioURL)
	field("Image", job.ImageURL)
	if job.AudioDuration > 0 {
		field("Duration", formatDuration(job.AudioDuration))
	}
	field("Language", job.Language)
	field("Words", strconv.Itoa(job.WordCount))
	field("Cues", strconv.Itoa(job.CueCount))
	field("Overlay", job.Overlay)
	field("Error", job.ErrorMessage)
	field("Digest", job.OutputDigest)
	field("Video", job.VideoURL)
	field("Created", job.CreatedAt)
	field("Started", job.StartedAt)
	field("Finished", job.FinishedAt)
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var errs []error
			for _, id := range args {
				err := client.CancelJob(cmd.Context(), id)
				var statusErr *api.StatusError
				switch {
				case err == nil:
					fmt.Fprintf(out, "Job %s canceling\n", id)
				case api.IsNotFound(err):
					fmt.Fprintf(out, "Job %s not found\n", id)
				case errors.As(err, &statusErr) && statusErr.Status == 409:
					fmt.Fprintf(out, "Job %s is not running\n", id)
				default:
					errs = append(errs, ctx.wrapAPIError(err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newJobsDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a completed job's video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			dest := strings.TrimSpace(output)
			if dest == "" {
				dest = args[0] + ".mp4"
			}
			if err := downloadTo(cmd.Context(), client, args[0], dest); err != nil {
				return ctx.wrapAPIError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default <id>.mp4)")
	return cmd
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond).String()
}

func formatAge(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Local().Format("2006-01-02")
	}
}
