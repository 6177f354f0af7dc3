package main

import (
	"log/slog"
	"time"

	"lingocast/internal/checkpoint"
	"lingocast/internal/config"
	"lingocast/internal/failure"
	"lingocast/internal/logging"
	"lingocast/internal/procexec"
	"lingocast/internal/services/ffmpeg"
	"lingocast/internal/services/llm"
	"lingocast/internal/services/whisperx"
	"lingocast/internal/services/ytdlp"
	"lingocast/internal/staging"
	"lingocast/internal/workflow"
)

// newCollaborators wires the external tool clients described by cfg.
func newCollaborators(cfg *config.Config, logger *slog.Logger) workflow.Collaborators {
	runner := procexec.NewRunner()

	downloader := ytdlp.New(ytdlp.Config{
		Binary:       cfg.Download.Binary,
		CookiesFile:  cfg.Download.CookiesFile,
		Timeout:      time.Duration(cfg.Download.TimeoutMinutes) * time.Minute,
		ProbeTimeout: time.Duration(cfg.Download.ProbeTimeoutSeconds) * time.Second,
	}, runner, logging.NewComponentLogger(logger, "ytdlp"))

	transcriber := whisperx.NewService(whisperx.Config{
		UVXBinary:    cfg.Transcription.UVXBinary,
		Package:      cfg.Transcription.Package,
		FFmpegBinary: cfg.Rendering.FFmpegBinary,
		Model:        cfg.Transcription.Model,
		CUDAEnabled:  cfg.Transcription.CUDAEnabled,
		ComputeType:  cfg.Transcription.ComputeType,
		HFToken:      cfg.Transcription.HuggingFaceToken,
		Timeout:      time.Duration(cfg.Transcription.TimeoutMinutes) * time.Minute,
	}, runner, logging.NewComponentLogger(logger, "whisperx"))

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.Translation.APIKey,
		BaseURL:        cfg.Translation.BaseURL,
		Model:          cfg.Translation.Model,
		Referer:        cfg.Translation.Referer,
		Title:          cfg.Translation.Title,
		TimeoutSeconds: cfg.Translation.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(cfg.Translation.MaxRetries))
	translator := llm.NewTranslator(client, cfg.Translation.BatchSize, logging.NewComponentLogger(logger, "translator"))

	renderer := ffmpeg.NewRenderer(ffmpeg.Config{
		Binary:  cfg.Rendering.FFmpegBinary,
		CRF:     cfg.Rendering.CRF,
		Preset:  cfg.Rendering.Preset,
		Timeout: time.Duration(cfg.Rendering.TimeoutMinutes) * time.Minute,
	}, runner, logging.NewComponentLogger(logger, "ffmpeg"))

	return workflow.Collaborators{
		Prober:      downloader,
		Downloader:  downloader,
		Transcriber: transcriber,
		Translator:  translator,
		Renderer:    renderer,
	}
}

func newMapper(cfg *config.Config) *failure.Mapper {
	return failure.NewMapper(failure.WithRetryDelays(cfg.RetryDelay(), cfg.RateLimitDelay()))
}

func newOrchestrator(cfg *config.Config, store *checkpoint.Store, tracker *staging.Tracker, logger *slog.Logger, opts ...workflow.Option) *workflow.Orchestrator {
	return workflow.NewOrchestrator(cfg, newCollaborators(cfg, logger), store, tracker, newMapper(cfg), logger, opts...)
}
