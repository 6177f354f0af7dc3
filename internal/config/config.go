package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory locations.
type Paths struct {
	WorkDir       string `toml:"work_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	OutputDir     string `toml:"output_dir"`
	LogDir        string `toml:"log_dir"`
	HistoryDB     string `toml:"history_db"`
}

// Download configures yt-dlp.
type Download struct {
	Binary              string   `toml:"binary"`
	Formats             []string `toml:"formats"`
	PreferCaptions      bool     `toml:"prefer_captions"`
	CookiesFile         string   `toml:"cookies_file"`
	TimeoutMinutes      int      `toml:"timeout_minutes"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
}

// Transcription configures WhisperX.
type Transcription struct {
	UVXBinary        string `toml:"uvx_binary"`
	Package          string `toml:"package"`
	Model            string `toml:"model"`
	CUDAEnabled      bool   `toml:"cuda_enabled"`
	ComputeType      string `toml:"compute_type"`
	HuggingFaceToken string `toml:"hf_token"`
	TimeoutMinutes   int    `toml:"timeout_minutes"`
}

// Translation configures the chat completion provider used for subtitle translation.
type Translation struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	FallbackModels []string `toml:"fallback_models"`
	Referer        string   `toml:"referer"`
	Title          string   `toml:"title"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	BatchSize      int      `toml:"batch_size"`
	MaxRetries     int      `toml:"max_retries"`
}

// Rendering configures ffmpeg.
type Rendering struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	Encoder         string `toml:"encoder"`
	SoftwareEncoder string `toml:"software_encoder"`
	SubtitleMode    string `toml:"subtitle_mode"`
	CRF             int    `toml:"crf"`
	Preset          string `toml:"preset"`
	TimeoutMinutes  int    `toml:"timeout_minutes"`
}

// Preflight holds video thresholds and the disk/memory cost model.
type Preflight struct {
	MinDurationSeconds       int     `toml:"min_duration_seconds"`
	MaxDurationSeconds       int     `toml:"max_duration_seconds"`
	BaseOverheadMB           float64 `toml:"base_overhead_mb"`
	DownloadMBPerMinute      float64 `toml:"download_mb_per_minute"`
	AudioMBPerMinute         float64 `toml:"audio_mb_per_minute"`
	TranscriptionMBPerMinute float64 `toml:"transcription_mb_per_minute"`
	RenderMBPerMinute        float64 `toml:"render_mb_per_minute"`
	SafetyFactor             float64 `toml:"safety_factor"`
	LowSpaceMarginMB         int     `toml:"low_space_margin_mb"`
	MemoryHeadroomMB         int     `toml:"memory_headroom_mb"`
	// MaxAgeLimit rejects videos whose age limit is at or above this value. Zero disables the check.
	MaxAgeLimit int `toml:"max_age_limit"`
}

// Checkpoint configures resume snapshots.
type Checkpoint struct {
	MaxAgeHours int `toml:"max_age_hours"`
}

// Monitor configures the background memory monitor.
type Monitor struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
	WarningPercent  int  `toml:"warning_percent"`
	CriticalPercent int  `toml:"critical_percent"`
}

// Workflow contains retry timing.
type Workflow struct {
	RetryDelayMillis      int `toml:"retry_delay_ms"`
	RateLimitDelaySeconds int `toml:"rate_limit_delay_seconds"`
	StaleWorkDirHours     int `toml:"stale_work_dir_hours"`
}

// Notifications configures ntfy run notifications. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	RunCompleted          bool   `toml:"run_completed"`
	RunFailed             bool   `toml:"run_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lingocast.
//
// Configuration sections by subsystem:
//   - Paths: work, checkpoint, output, and log directories plus the history database
//   - Download: yt-dlp binary and the format fallback ladder
//   - Transcription: WhisperX model and device
//   - Translation: chat completion provider and model fallbacks
//   - Rendering: ffmpeg encoder ladder and subtitle mode
//   - Preflight: video thresholds and the disk/memory cost model
//   - Checkpoint: snapshot lifetime
//   - Monitor: background memory warnings
//   - Workflow: retry delays and work directory retention
//   - Notifications: ntfy topic and which run outcomes to announce
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Rendering     Rendering     `toml:"rendering"`
	Preflight     Preflight     `toml:"preflight"`
	Checkpoint    Checkpoint    `toml:"checkpoint"`
	Monitor       Monitor       `toml:"monitor"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lingocast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strings.TrimSpace(strict.String()))
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lingocast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the work, checkpoint, and log directories. The
// output directory is created per job by preflight.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.CheckpointDir, c.Paths.LogDir}
	if db := strings.TrimSpace(c.Paths.HistoryDB); db != "" {
		dirs = append(dirs, filepath.Dir(db))
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

// CheckpointMaxAge returns the checkpoint validity window.
func (c *Config) CheckpointMaxAge() time.Duration {
	return time.Duration(c.Checkpoint.MaxAgeHours) * time.Hour
}

// RetryDelay returns the baseline delay for retryable failures.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Workflow.RetryDelayMillis) * time.Millisecond
}

// RateLimitDelay returns the baseline delay after a rate limit response.
func (c *Config) RateLimitDelay() time.Duration {
	return time.Duration(c.Workflow.RateLimitDelaySeconds) * time.Second
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// TranslationModels returns the primary model followed by the configured
// fallbacks with duplicates removed.
func (c *Config) TranslationModels() []string {
	return dedupe(append([]string{c.Translation.Model}, c.Translation.FallbackModels...))
}

// RenderEncoders returns the configured encoder followed by the software encoder.
func (c *Config) RenderEncoders() []string {
	return dedupe([]string{c.Rendering.Encoder, c.Rendering.SoftwareEncoder})
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
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
