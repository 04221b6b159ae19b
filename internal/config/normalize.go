package config

import (
	"fmt"
	"os"
	"strings"

	"reelsync/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRecognition(); err != nil {
		return err
	}
	c.normalizeSubtitles()
	c.normalizeComposition()
	c.normalizeEncoding()
	c.normalizeFetch()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.model_cache_dir", &c.Paths.ModelCacheDir, defaultModelCacheDir},
		{"paths.transcript_cache_dir", &c.Paths.TranscriptCacheDir, defaultTranscriptCacheDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("REELSYNC_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeRecognition() error {
	c.Recognition.Model = strings.TrimSpace(c.Recognition.Model)
	if c.Recognition.Model == "" {
		c.Recognition.Model = defaultRecognitionModel
	}
	c.Recognition.VADMethod = strings.ToLower(strings.TrimSpace(c.Recognition.VADMethod))
	if c.Recognition.VADMethod == "" {
		c.Recognition.VADMethod = defaultVADMethod
	}
	c.Recognition.HuggingFaceToken = strings.TrimSpace(c.Recognition.HuggingFaceToken)
	if c.Recognition.HuggingFaceToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Recognition.HuggingFaceToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Recognition.HuggingFaceToken = strings.TrimSpace(value)
		}
	}
	lang, err := language.Parse(c.Recognition.Language)
	if err != nil {
		return fmt.Errorf("recognition.language: %w", err)
	}
	c.Recognition.Language = lang
	return nil
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Font = strings.TrimSpace(c.Subtitles.Font)
	if c.Subtitles.Font == "" {
		c.Subtitles.Font = defaultFont
	}
	if c.Subtitles.FontSize <= 0 {
		c.Subtitles.FontSize = defaultFontSize
	}
	c.Subtitles.TextColor = normalizeColor(c.Subtitles.TextColor, defaultTextColor)
	c.Subtitles.HighlightColor = normalizeColor(c.Subtitles.HighlightColor, defaultHighlightColor)
	if c.Subtitles.MarginV < 0 {
		c.Subtitles.MarginV = 0
	}
}

// normalizeColor accepts RRGGBB with an optional leading '#'.
func normalizeColor(value, fallback string) string {
	trimmed := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(value), "#"))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func (c *Config) normalizeComposition() {
	if c.Composition.ShortWidth <= 0 {
		c.Composition.ShortWidth = defaultShortWidth
	}
	if c.Composition.ShortHeight <= 0 {
		c.Composition.ShortHeight = defaultShortHeight
	}
	if c.Composition.ShortDurationCap <= 0 {
		c.Composition.ShortDurationCap = defaultShortDurationCap
	}
	c.Composition.ShortFit = strings.ToLower(strings.TrimSpace(c.Composition.ShortFit))
	if c.Composition.ShortFit == "" {
		c.Composition.ShortFit = defaultShortFit
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	if c.Encoding.FFmpegBinary == "" {
		c.Encoding.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoding.FFprobeBinary = strings.TrimSpace(c.Encoding.FFprobeBinary)
	if c.Encoding.FFprobeBinary == "" {
		c.Encoding.FFprobeBinary = defaultFFprobeBinary
	}
	c.Encoding.Preset = strings.ToLower(strings.TrimSpace(c.Encoding.Preset))
	if c.Encoding.Preset == "" {
		c.Encoding.Preset = defaultPreset
	}
	c.Encoding.AudioBitrate = strings.ToLower(strings.TrimSpace(c.Encoding.AudioBitrate))
	if c.Encoding.AudioBitrate == "" {
		c.Encoding.AudioBitrate = defaultAudioBitrate
	}
	if c.Encoding.KillGraceSeconds < 0 {
		c.Encoding.KillGraceSeconds = 0
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Fetch.MaxMiB <= 0 {
		c.Fetch.MaxMiB = defaultFetchMaxMiB
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.CleanupSchedule = strings.TrimSpace(c.Workflow.CleanupSchedule)
	if c.Workflow.CleanupSchedule == "" {
		c.Workflow.CleanupSchedule = defaultCleanupSchedule
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("REELSYNC_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
