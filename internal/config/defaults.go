package config

const (
	defaultWorkDir         = "~/.local/share/lingocast/work"
	defaultCheckpointDir   = "~/.local/share/lingocast/checkpoints"
	defaultOutputDir       = "~/Videos/lingocast"
	defaultLogDir          = "~/.local/share/lingocast/logs"
	defaultHistoryDB       = "~/.local/share/lingocast/history.db"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultYTDLPBinary     = "yt-dlp"
	defaultFFmpegBinary    = "ffmpeg"
	defaultUVXBinary       = "uvx"
	defaultWhisperXPackage = "whisperx"
	defaultWhisperXModel   = "large-v3"
	defaultComputeType     = "int8"
	defaultSubtitleMode    = "burn"
	defaultEncoder         = "libx264"
	defaultSoftwareEncoder = "libx264"
	defaultRenderCRF       = 20
	defaultRenderPreset    = "medium"

	defaultTranslationBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel       = "google/gemini-3-flash-preview"
	defaultTranslationReferer     = "https://github.com/lingocast/lingocast"
	defaultTranslationTitle       = "lingocast"
	defaultTranslationTimeout     = 120
	defaultTranslationBatchSize   = 40
	defaultTranslationRetries     = 3
	defaultDownloadTimeoutMinutes = 120
	defaultProbeTimeoutSeconds    = 60
	defaultTranscribeTimeoutMin   = 240
	defaultRenderTimeoutMinutes   = 240

	defaultMinDurationSeconds    = 1
	defaultMaxDurationSeconds    = 4 * 60 * 60
	defaultBaseOverheadMB        = 100
	defaultDownloadMBPerMinute   = 50
	defaultAudioMBPerMinute      = 10
	defaultTranscriptMBPerMinute = 5
	defaultRenderMBPerMinute     = 100
	defaultSafetyFactor          = 1.2
	defaultLowSpaceMarginMB      = 2048
	defaultMemoryHeadroomMB      = 512
	defaultMaxAgeLimit           = 18

	defaultCheckpointMaxAgeHours = 24
	defaultMonitorInterval       = 10
	defaultMonitorWarningPct     = 85
	defaultMonitorCriticalPct    = 95
	defaultRetryDelayMillis      = 1000
	defaultRateLimitDelaySeconds = 30
	defaultStaleWorkDirHours     = 72
	defaultNotifyTimeoutSeconds  = 10
)

var defaultDownloadFormats = []string{
	"bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]",
	"bestvideo[height<=720]+bestaudio/best[height<=720]",
	"best",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:       defaultWorkDir,
			CheckpointDir: defaultCheckpointDir,
			OutputDir:     defaultOutputDir,
			LogDir:        defaultLogDir,
			HistoryDB:     defaultHistoryDB,
		},
		Download: Download{
			Binary:              defaultYTDLPBinary,
			Formats:             append([]string(nil), defaultDownloadFormats...),
			PreferCaptions:      true,
			TimeoutMinutes:      defaultDownloadTimeoutMinutes,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		Transcription: Transcription{
			UVXBinary:      defaultUVXBinary,
			Package:        defaultWhisperXPackage,
			Model:          defaultWhisperXModel,
			ComputeType:    defaultComputeType,
			TimeoutMinutes: defaultTranscribeTimeoutMin,
		},
		Translation: Translation{
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			Referer:        defaultTranslationReferer,
			Title:          defaultTranslationTitle,
			TimeoutSeconds: defaultTranslationTimeout,
			BatchSize:      defaultTranslationBatchSize,
			MaxRetries:     defaultTranslationRetries,
		},
		Rendering: Rendering{
			FFmpegBinary:    defaultFFmpegBinary,
			Encoder:         defaultEncoder,
			SoftwareEncoder: defaultSoftwareEncoder,
			SubtitleMode:    defaultSubtitleMode,
			CRF:             defaultRenderCRF,
			Preset:          defaultRenderPreset,
			TimeoutMinutes:  defaultRenderTimeoutMinutes,
		},
		Preflight: Preflight{
			MinDurationSeconds:       defaultMinDurationSeconds,
			MaxDurationSeconds:       defaultMaxDurationSeconds,
			BaseOverheadMB:           defaultBaseOverheadMB,
			DownloadMBPerMinute:      defaultDownloadMBPerMinute,
			AudioMBPerMinute:         defaultAudioMBPerMinute,
			TranscriptionMBPerMinute: defaultTranscriptMBPerMinute,
			RenderMBPerMinute:        defaultRenderMBPerMinute,
			SafetyFactor:             defaultSafetyFactor,
			LowSpaceMarginMB:         defaultLowSpaceMarginMB,
			MemoryHeadroomMB:         defaultMemoryHeadroomMB,
			MaxAgeLimit:              defaultMaxAgeLimit,
		},
		Checkpoint: Checkpoint{
			MaxAgeHours: defaultCheckpointMaxAgeHours,
		},
		Monitor: Monitor{
			Enabled:         true,
			IntervalSeconds: defaultMonitorInterval,
			WarningPercent:  defaultMonitorWarningPct,
			CriticalPercent: defaultMonitorCriticalPct,
		},
		Workflow: Workflow{
			RetryDelayMillis:      defaultRetryDelayMillis,
			RateLimitDelaySeconds: defaultRateLimitDelaySeconds,
			StaleWorkDirHours:     defaultStaleWorkDirHours,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
			RunCompleted:          true,
			RunFailed:             true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
