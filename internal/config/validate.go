package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var validSubtitleModes = map[string]struct{}{"burn": {}, "soft": {}, "sidecar": {}}

var validLogLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}

// Validate ensures the configuration is usable. Missing API keys are not a
// configuration error: they surface as API_KEY_MISSING when translation runs.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRendering(); err != nil {
		return err
	}
	if err := c.validatePreflight(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", topic)
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CheckpointDir) == "" {
		return errors.New("paths.checkpoint_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.WorkDir == c.Paths.CheckpointDir {
		return errors.New("paths.work_dir and paths.checkpoint_dir must differ")
	}
	return nil
}

func (c *Config) validateRendering() error {
	if _, ok := validSubtitleModes[c.Rendering.SubtitleMode]; !ok {
		modes := make([]string, 0, len(validSubtitleModes))
		for mode := range validSubtitleModes {
			modes = append(modes, mode)
		}
		sort.Strings(modes)
		return fmt.Errorf("rendering.subtitle_mode must be one of %s (got %q)", strings.Join(modes, ", "), c.Rendering.SubtitleMode)
	}
	if c.Rendering.CRF < 0 || c.Rendering.CRF > 51 {
		return errors.New("rendering.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validatePreflight() error {
	p := c.Preflight
	if p.MinDurationSeconds < 0 {
		return errors.New("preflight.min_duration_seconds must not be negative")
	}
	if p.MaxDurationSeconds > 0 && p.MaxDurationSeconds <= p.MinDurationSeconds {
		return errors.New("preflight.max_duration_seconds must be greater than preflight.min_duration_seconds")
	}
	for key, value := range map[string]float64{
		"preflight.base_overhead_mb":            p.BaseOverheadMB,
		"preflight.download_mb_per_minute":      p.DownloadMBPerMinute,
		"preflight.audio_mb_per_minute":         p.AudioMBPerMinute,
		"preflight.transcription_mb_per_minute": p.TranscriptionMBPerMinute,
		"preflight.render_mb_per_minute":        p.RenderMBPerMinute,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if p.SafetyFactor < 1 {
		return errors.New("preflight.safety_factor must be at least 1")
	}
	return nil
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"checkpoint.max_age_hours":          c.Checkpoint.MaxAgeHours,
		"download.timeout_minutes":          c.Download.TimeoutMinutes,
		"transcription.timeout_minutes":     c.Transcription.TimeoutMinutes,
		"translation.timeout_seconds":       c.Translation.TimeoutSeconds,
		"rendering.timeout_minutes":         c.Rendering.TimeoutMinutes,
		"workflow.stale_work_dir_hours":     c.Workflow.StaleWorkDirHours,
		"workflow.rate_limit_delay_seconds": c.Workflow.RateLimitDelaySeconds,
	}); err != nil {
		return err
	}
	if c.Workflow.RetryDelayMillis < 0 {
		return errors.New("workflow.retry_delay_ms must not be negative")
	}
	if c.Monitor.Enabled {
		if c.Monitor.IntervalSeconds <= 0 {
			return errors.New("monitor.interval_seconds must be positive")
		}
		if c.Monitor.WarningPercent <= 0 || c.Monitor.WarningPercent >= 100 {
			return errors.New("monitor.warning_percent must be between 1 and 99")
		}
		if c.Monitor.CriticalPercent <= c.Monitor.WarningPercent || c.Monitor.CriticalPercent > 100 {
			return errors.New("monitor.critical_percent must be greater than monitor.warning_percent and at most 100")
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
