package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir            string `toml:"work_dir"`
	OutputDir          string `toml:"output_dir"`
	StateDir           string `toml:"state_dir"`
	LogDir             string `toml:"log_dir"`
	ModelCacheDir      string `toml:"model_cache_dir"`
	TranscriptCacheDir string `toml:"transcript_cache_dir"`
	APIBind            string `toml:"api_bind"`
	APIToken           string `toml:"api_token"`
}

// Recognition contains the WhisperX speech recognition settings.
type Recognition struct {
	Model            string `toml:"model"`
	Language         string `toml:"language"`
	CUDAEnabled      bool   `toml:"cuda_enabled"`
	VADMethod        string `toml:"vad_method"`
	HuggingFaceToken string `toml:"hf_token"`
	TranscriptCache  bool   `toml:"transcript_cache"`
}

// Subtitles contains line-breaking thresholds and burn-in styling.
type Subtitles struct {
	MaxChars       int     `toml:"max_chars"`
	MaxWords       int     `toml:"max_words"`
	MaxGapSeconds  float64 `toml:"max_gap_seconds"`
	Font           string  `toml:"font"`
	FontSize       int     `toml:"font_size"`
	TextColor      string  `toml:"text_color"`
	HighlightColor string  `toml:"highlight_color"`
	MarginV        int     `toml:"margin_v"`
}

// Composition contains canvas sizing rules for both output profiles.
type Composition struct {
	MaxStandardWidth int     `toml:"max_standard_width"`
	ShortWidth       int     `toml:"short_width"`
	ShortHeight      int     `toml:"short_height"`
	ShortDurationCap float64 `toml:"short_duration_cap"`
	ShortFit         string  `toml:"short_fit"`
}

// Encoding contains ffmpeg invocation settings.
type Encoding struct {
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	Preset            string `toml:"preset"`
	CRF               int    `toml:"crf"`
	AudioBitrate      string `toml:"audio_bitrate"`
	KillGraceSeconds  int    `toml:"kill_grace_seconds"`
	PreferASS         bool   `toml:"prefer_ass"`
	SubtitleFallbacks bool   `toml:"subtitle_fallbacks"`
}

// Fetch contains remote download settings.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxMiB         int    `toml:"max_mib"`
	UserAgent      string `toml:"user_agent"`
}

// Workflow contains job scheduling limits and housekeeping cadence.
type Workflow struct {
	JobTimeoutSeconds    int    `toml:"job_timeout_seconds"`
	MaxConcurrentJobs    int    `toml:"max_concurrent_jobs"`
	CleanupSchedule      string `toml:"cleanup_schedule"`
	OutputRetentionHours int    `toml:"output_retention_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelsync.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Recognition: WhisperX model and cache behaviour
//   - Subtitles: line-breaking thresholds and karaoke styling
//   - Composition: canvas rules for the standard and short profiles
//   - Encoding: ffmpeg/ffprobe binaries and codec settings
//   - Fetch: remote download limits
//   - Workflow: job timeout, worker limit, and cleanup cadence
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Recognition   Recognition   `toml:"recognition"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Composition   Composition   `toml:"composition"`
	Encoding      Encoding      `toml:"encoding"`
	Fetch         Fetch         `toml:"fetch"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir, c.Paths.ModelCacheDir}
	if c.Recognition.TranscriptCache {
		dirs = append(dirs, c.Paths.TranscriptCacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobTimeout returns the wall-clock budget for one job.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workflow.JobTimeoutSeconds) * time.Second
}

// OutputRetention returns how long finished outputs are kept before the sweeper removes them.
func (c *Config) OutputRetention() time.Duration {
	return time.Duration(c.Workflow.OutputRetentionHours) * time.Hour
}

// KillGrace returns how long a cancelled subprocess may run after SIGTERM.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Encoding.KillGraceSeconds) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used for encoding.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Encoding.FFmpegBinary); v != "" {
		return v
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Encoding.FFprobeBinary); v != "" {
		return v
	}
	return defaultFFprobeBinary
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML. Secrets are redacted.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	if clone.Paths.APIToken != "" {
		clone.Paths.APIToken = redacted
	}
	if clone.Recognition.HuggingFaceToken != "" {
		clone.Recognition.HuggingFaceToken = redacted
	}
	var sb strings.Builder
	encoder := toml.NewEncoder(&sb)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(clone); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return []byte(sb.String()), nil
}

const redacted = "<redacted>"
