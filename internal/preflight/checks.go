package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"lingocast/internal/config"
	"lingocast/internal/deps"
	"lingocast/internal/failure"
	"lingocast/internal/services/ffmpeg"
	"lingocast/internal/services/llm"
	"lingocast/internal/stage"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM makes one health request against the translation provider.
func CheckLLM(ctx context.Context, name string, cfg config.Translation) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(ctx); err != nil {
		return Result{Name: name, Detail: describeLLMFailure(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", cfg.Model)}
}

// describeLLMFailure prefixes the raw error with its pipeline error code so
// the doctor output matches what a failed run would report.
func describeLLMFailure(err error) string {
	pe := failure.NewMapper().Map(err, stage.Translation)
	if pe.Code == failure.CodeNetworkTimeout {
		return "health check timed out (API unresponsive or unreachable)"
	}
	return fmt.Sprintf("%s: %v", pe.Code, err)
}

// CheckDirectoryAccess requires path to be an existing directory the
// current user can list, read and write.
func CheckDirectoryAccess(name, path string) Result {
	if problem := directoryProblem(path); problem != "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, problem)}
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

func directoryProblem(path string) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "does not exist"
	case err != nil:
		return fmt.Sprintf("stat: %v", err)
	case !info.IsDir():
		return "is not a directory"
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Sprintf("insufficient permissions: %v", err)
	}
	return ""
}

// CheckSystemDeps evaluates the external binaries the pipeline drives. The
// CLI "deps" command and RunAll share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{Name: "yt-dlp", Command: cfg.Download.Binary, Description: "Probes and downloads source videos and captions"},
		{Name: "ffmpeg", Command: cfg.Rendering.FFmpegBinary, Description: "Extracts audio and renders subtitled output"},
		{Name: "ffprobe", Command: ffmpeg.ProbeBinaryFor(cfg.Rendering.FFmpegBinary), Description: "Verifies rendered output"},
		{
			Name:        "uvx",
			Command:     cfg.Transcription.UVXBinary,
			Description: "Launches WhisperX transcription when no captions exist",
			// Captions usually make transcription unnecessary.
			Optional: cfg.Download.PreferCaptions,
		},
	})
}
