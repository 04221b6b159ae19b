package config

const (
	defaultConfigPath           = "~/.config/reelsync/config.toml"
	defaultWorkDir              = "~/.local/share/reelsync/work"
	defaultOutputDir            = "~/.local/share/reelsync/output"
	defaultStateDir             = "~/.local/share/reelsync/state"
	defaultLogDir               = "~/.local/share/reelsync/logs"
	defaultModelCacheDir        = "~/.cache/reelsync/models"
	defaultTranscriptCacheDir   = "~/.cache/reelsync/transcripts"
	defaultAPIBind              = "127.0.0.1:8005"
	defaultRecognitionModel     = "large-v3-turbo"
	defaultVADMethod            = "silero"
	defaultMaxChars             = 42
	defaultMaxWords             = 7
	defaultMaxGapSeconds        = 0.8
	defaultFont                 = "Arial"
	defaultFontSize             = 56
	defaultTextColor            = "FFFFFF"
	defaultHighlightColor       = "FFD700"
	defaultMarginV              = 60
	defaultMaxStandardWidth     = 1920
	defaultShortWidth           = 1080
	defaultShortHeight          = 1920
	defaultShortDurationCap     = 59.0
	maxShortDurationCap         = 59.0
	defaultShortFit             = "fill"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultPreset               = "medium"
	defaultCRF                  = 23
	defaultAudioBitrate         = "192k"
	defaultKillGraceSeconds     = 5
	defaultFetchTimeoutSeconds  = 30
	defaultFetchMaxMiB          = 512
	defaultFetchUserAgent       = "reelsync/dev"
	defaultJobTimeoutSeconds    = 300
	defaultMaxConcurrentJobs    = 2
	defaultCleanupSchedule      = "@every 15m"
	defaultOutputRetentionHours = 24
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:            defaultWorkDir,
			OutputDir:          defaultOutputDir,
			StateDir:           defaultStateDir,
			LogDir:             defaultLogDir,
			ModelCacheDir:      defaultModelCacheDir,
			TranscriptCacheDir: defaultTranscriptCacheDir,
			APIBind:            defaultAPIBind,
		},
		Recognition: Recognition{
			Model:     defaultRecognitionModel,
			VADMethod: defaultVADMethod,
		},
		Subtitles: Subtitles{
			MaxChars:       defaultMaxChars,
			MaxWords:       defaultMaxWords,
			MaxGapSeconds:  defaultMaxGapSeconds,
			Font:           defaultFont,
			FontSize:       defaultFontSize,
			TextColor:      defaultTextColor,
			HighlightColor: defaultHighlightColor,
			MarginV:        defaultMarginV,
		},
		Composition: Composition{
			MaxStandardWidth: defaultMaxStandardWidth,
			ShortWidth:       defaultShortWidth,
			ShortHeight:      defaultShortHeight,
			ShortDurationCap: defaultShortDurationCap,
			ShortFit:         defaultShortFit,
		},
		Encoding: Encoding{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			Preset:            defaultPreset,
			CRF:               defaultCRF,
			AudioBitrate:      defaultAudioBitrate,
			KillGraceSeconds:  defaultKillGraceSeconds,
			PreferASS:         true,
			SubtitleFallbacks: true,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxMiB:         defaultFetchMaxMiB,
			UserAgent:      defaultFetchUserAgent,
		},
		Workflow: Workflow{
			JobTimeoutSeconds:    defaultJobTimeoutSeconds,
			MaxConcurrentJobs:    defaultMaxConcurrentJobs,
			CleanupSchedule:      defaultCleanupSchedule,
			OutputRetentionHours: defaultOutputRetentionHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
