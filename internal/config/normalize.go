package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeTranslation()
	c.normalizeRendering()
	c.normalizePreflight()
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
		{"paths.checkpoint_dir", &c.Paths.CheckpointDir, defaultCheckpointDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.log_dir", &c.Paths.LogDir, ""},
		{"paths.history_db", &c.Paths.HistoryDB, ""},
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			trimmed = field.fallback
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultYTDLPBinary
	}
	c.Download.Formats = dedupe(c.Download.Formats)
	if len(c.Download.Formats) == 0 {
		c.Download.Formats = append([]string(nil), defaultDownloadFormats...)
	}
	if c.Download.CookiesFile != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Download.CookiesFile))
		if err != nil {
			return fmt.Errorf("download.cookies_file: %w", err)
		}
		c.Download.CookiesFile = expanded
	}
	if c.Download.TimeoutMinutes <= 0 {
		c.Download.TimeoutMinutes = defaultDownloadTimeoutMinutes
	}
	if c.Download.ProbeTimeoutSeconds <= 0 {
		c.Download.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.UVXBinary = strings.TrimSpace(c.Transcription.UVXBinary)
	if c.Transcription.UVXBinary == "" {
		c.Transcription.UVXBinary = defaultUVXBinary
	}
	c.Transcription.Package = strings.TrimSpace(c.Transcription.Package)
	if c.Transcription.Package == "" {
		c.Transcription.Package = defaultWhisperXPackage
	}
	c.Transcription.Model = strings.ToLower(strings.TrimSpace(c.Transcription.Model))
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcription.ComputeType))
	if c.Transcription.ComputeType == "" {
		c.Transcription.ComputeType = defaultComputeType
	}
	c.Transcription.HuggingFaceToken = strings.TrimSpace(c.Transcription.HuggingFaceToken)
	if c.Transcription.HuggingFaceToken == "" {
		c.Transcription.HuggingFaceToken = firstEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}
	if c.Transcription.TimeoutMinutes <= 0 {
		c.Transcription.TimeoutMinutes = defaultTranscribeTimeoutMin
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	if c.Translation.APIKey == "" {
		c.Translation.APIKey = firstEnv("LINGOCAST_API_KEY", "OPENROUTER_API_KEY")
	}
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultTranslationBaseURL
	}
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	c.Translation.FallbackModels = dedupe(c.Translation.FallbackModels)
	c.Translation.Referer = strings.TrimSpace(c.Translation.Referer)
	if c.Translation.Referer == "" {
		c.Translation.Referer = defaultTranslationReferer
	}
	c.Translation.Title = strings.TrimSpace(c.Translation.Title)
	if c.Translation.Title == "" {
		c.Translation.Title = defaultTranslationTitle
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
	if c.Translation.BatchSize <= 0 {
		c.Translation.BatchSize = defaultTranslationBatchSize
	}
	if c.Translation.MaxRetries <= 0 {
		c.Translation.MaxRetries = defaultTranslationRetries
	}
}

func (c *Config) normalizeRendering() {
	c.Rendering.FFmpegBinary = strings.TrimSpace(c.Rendering.FFmpegBinary)
	if c.Rendering.FFmpegBinary == "" {
		c.Rendering.FFmpegBinary = defaultFFmpegBinary
	}
	c.Rendering.Encoder = strings.TrimSpace(c.Rendering.Encoder)
	if c.Rendering.Encoder == "" {
		c.Rendering.Encoder = defaultEncoder
	}
	c.Rendering.SoftwareEncoder = strings.TrimSpace(c.Rendering.SoftwareEncoder)
	if c.Rendering.SoftwareEncoder == "" {
		c.Rendering.SoftwareEncoder = defaultSoftwareEncoder
	}
	c.Rendering.SubtitleMode = strings.ToLower(strings.TrimSpace(c.Rendering.SubtitleMode))
	if c.Rendering.SubtitleMode == "" {
		c.Rendering.SubtitleMode = defaultSubtitleMode
	}
	c.Rendering.Preset = strings.TrimSpace(c.Rendering.Preset)
	if c.Rendering.Preset == "" {
		c.Rendering.Preset = defaultRenderPreset
	}
	if c.Rendering.TimeoutMinutes <= 0 {
		c.Rendering.TimeoutMinutes = defaultRenderTimeoutMinutes
	}
}

func (c *Config) normalizePreflight() {
	if c.Preflight.SafetyFactor <= 0 {
		c.Preflight.SafetyFactor = defaultSafetyFactor
	}
	if c.Preflight.LowSpaceMarginMB < 0 {
		c.Preflight.LowSpaceMarginMB = 0
	}
	if c.Preflight.MemoryHeadroomMB < 0 {
		c.Preflight.MemoryHeadroomMB = 0
	}
	if c.Preflight.MaxAgeLimit < 0 {
		c.Preflight.MaxAgeLimit = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = firstEnv("LINGOCAST_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
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
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}
