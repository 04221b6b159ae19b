package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsync/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx), newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			_, statErr := os.Stat(target)
			switch {
			case statErr == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
				return fmt.Errorf("inspect %s: %w", target, statErr)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set notifications.ntfy_topic (or REELSYNC_NTFY_TOPIC) to receive job notifications.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default ~/.config/reelsync/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if flagValue = strings.TrimSpace(flagValue); flagValue != "" {
		return config.ExpandPath(flagValue)
	}
	return config.DefaultConfigPath()
}

// validate loads the file itself so a broken config reports its own error
// instead of failing in the root pre-run hook.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Check the configuration and summarize the effective settings",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			source := path
			if !exists {
				source += " (not found, using defaults)"
			}
			fmt.Fprintf(out, "Config: %s\n", source)
			fmt.Fprintf(out, "API: %s (auth %s)\n", displayBind(cfg.Paths.APIBind), yesNo(cfg.Paths.APIToken != ""))
			writeConfigSummary(out, cfg)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func writeConfigSummary(w io.Writer, cfg *config.Config) {
	short := fmt.Sprintf("%dx%d, %s, cap %gs", cfg.Composition.ShortWidth, cfg.Composition.ShortHeight,
		cfg.Composition.ShortFit, cfg.Composition.ShortDurationCap)
	ntfy := "disabled"
	if cfg.Notifications.NtfyTopic != "" {
		ntfy = cfg.Notifications.NtfyTopic
	}
	rows := [][]string{
		{"Output dir", cfg.Paths.OutputDir},
		{"Whisper model", cfg.Recognition.Model},
		{"Standard profile", "width <= " + strconv.Itoa(cfg.Composition.MaxStandardWidth)},
		{"Short profile", short},
		{"Workers", strconv.Itoa(cfg.Workflow.MaxConcurrentJobs)},
		{"Job timeout", strconv.Itoa(cfg.Workflow.JobTimeoutSeconds) + "s"},
		{"Cleanup", cfg.Workflow.CleanupSchedule},
		{"ntfy", ntfy},
	}
	fmt.Fprintln(w, renderTable([]column{{Header: "Setting"}, {Header: "Value", MaxWidth: 60}}, rows))
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func displayBind(bind string) string {
	if strings.TrimSpace(bind) == "" {
		return "disabled"
	}
	return bind
}
