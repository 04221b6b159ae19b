package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelsync/internal/config"
	"reelsync/internal/recognition"
	"reelsync/internal/subtitles"
	"reelsync/internal/transcript"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Build and check subtitle files offline",
	}
	subCmd.AddCommand(newSubtitlesBuildCommand(ctx))
	subCmd.AddCommand(newSubtitlesCheckCommand())
	return subCmd
}

type subtitleBuildOptions struct {
	format   string
	output   string
	duration float64
	cap      float64
	width    int
	height   int
}

func newSubtitlesBuildCommand(ctx *commandContext) *cobra.Command {
	var opts subtitleBuildOptions
	cmd := &cobra.Command{
		Use:   "build <whisperx.json>",
		Short: "Convert a WhisperX JSON transcript into SRT or karaoke ASS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, report, err := buildSubtitles(cfg, args[0], opts)
			if err != nil {
				return err
			}
			if report.Adjusted() {
				fmt.Fprintf(cmd.ErrOrStderr(), "normalized transcript: kept %d of %d words\n", report.Kept, report.Input)
			}
			if strings.TrimSpace(opts.output) == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(opts.output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("write subtitles: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", opts.output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "srt", "Output format: srt or ass")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().Float64Var(&opts.duration, "duration", 0, "Audio duration in seconds; words past it are dropped")
	cmd.Flags().Float64Var(&opts.cap, "cap", 0, "Truncate cues at this many seconds (59 for shorts)")
	cmd.Flags().IntVar(&opts.width, "width", 1920, "ASS PlayResX")
	cmd.Flags().IntVar(&opts.height, "height", 1080, "ASS PlayResY")
	return cmd
}

func buildSubtitles(cfg *config.Config, path string, opts subtitleBuildOptions) ([]byte, transcript.Report, error) {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format != "srt" && format != "ass" {
		return nil, transcript.Report{}, fmt.Errorf("unsupported format %q (use srt or ass)", opts.format)
	}
	tr, err := recognition.ParseWhisperXFile(path)
	if err != nil {
		return nil, transcript.Report{}, err
	}
	words, report := transcript.Normalize(tr.Segments, transcript.NormalizeOptions{Duration: opts.duration})

	sync, err := subtitles.NewSynchronizer(subtitles.Config{
		MaxChars:      cfg.Subtitles.MaxChars,
		MaxWords:      cfg.Subtitles.MaxWords,
		MaxGapSeconds: cfg.Subtitles.MaxGapSeconds,
	})
	if err != nil {
		return nil, report, err
	}
	result := sync.Sync(words)
	if opts.cap > 0 {
		result = subtitles.Truncate(result, opts.cap)
	}
	if result.Empty() {
		return nil, report, errors.New("transcript contains no usable words")
	}

	var buf bytes.Buffer
	if format == "srt" {
		err = subtitles.WriteSRT(&buf, result.Plain)
	} else {
		s := cfg.Subtitles
		err = subtitles.WriteASS(&buf, result.Karaoke, subtitles.ASSOptions{
			PlayResX:       opts.width,
			PlayResY:       opts.height,
			Font:           s.Font,
			FontSize:       s.FontSize,
			TextColor:      s.TextColor,
			HighlightColor: s.HighlightColor,
			MarginV:        s.MarginV,
		})
	}
	if err != nil {
		return nil, report, err
	}
	return buf.Bytes(), report, nil
}

func newSubtitlesCheckCommand() *cobra.Command {
	var duration float64
	cmd := &cobra.Command{
		Use:         "check <file.srt>",
		Short:       "Validate SRT cue timing",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := subtitles.ValidateSRTFile(args[0], duration)
			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintf(out, "%s: OK\n", args[0])
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "%s: %s\n", args[0], issue)
			}
			return fmt.Errorf("%d subtitle issue(s)", len(issues))
		},
	}
	cmd.Flags().Float64Var(&duration, "duration", 0, "Flag cues ending after this many seconds")
	return cmd
}
