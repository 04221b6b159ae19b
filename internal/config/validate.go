package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/robfig/cron/v3"
)

var hexColorPattern = regexp.MustCompile(`^[0-9A-F]{6}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateComposition(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSubtitles() error {
	if err := ensurePositiveMap(map[string]int{
		"subtitles.max_chars": c.Subtitles.MaxChars,
		"subtitles.max_words": c.Subtitles.MaxWords,
	}); err != nil {
		return err
	}
	if c.Subtitles.MaxGapSeconds <= 0 {
		return errors.New("subtitles.max_gap_seconds must be positive")
	}
	if !hexColorPattern.MatchString(c.Subtitles.TextColor) {
		return fmt.Errorf("subtitles.text_color %q must be RRGGBB hex", c.Subtitles.TextColor)
	}
	if !hexColorPattern.MatchString(c.Subtitles.HighlightColor) {
		return fmt.Errorf("subtitles.highlight_color %q must be RRGGBB hex", c.Subtitles.HighlightColor)
	}
	return nil
}

func (c *Config) validateComposition() error {
	if c.Composition.MaxStandardWidth < 0 {
		return errors.New("composition.max_standard_width must be >= 0 (0 disables downscaling)")
	}
	if c.Composition.ShortWidth%2 != 0 || c.Composition.ShortHeight%2 != 0 {
		return errors.New("composition.short_width and composition.short_height must be even")
	}
	if c.Composition.ShortDurationCap > maxShortDurationCap {
		return fmt.Errorf("composition.short_duration_cap must not exceed %.0f seconds", maxShortDurationCap)
	}
	switch c.Composition.ShortFit {
	case "fill", "pad":
	default:
		return fmt.Errorf("composition.short_fit %q must be fill or pad", c.Composition.ShortFit)
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.CRF < 0 || c.Encoding.CRF > 51 {
		return errors.New("encoding.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.job_timeout_seconds":    c.Workflow.JobTimeoutSeconds,
		"workflow.max_concurrent_jobs":    c.Workflow.MaxConcurrentJobs,
		"workflow.output_retention_hours": c.Workflow.OutputRetentionHours,
		"fetch.timeout_seconds":           c.Fetch.TimeoutSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Workflow.CleanupSchedule); err != nil {
		return fmt.Errorf("workflow.cleanup_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
