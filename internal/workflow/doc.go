// Package workflow drives one job through the download, caption check,
// transcription, translation, and rendering stages.
//
// The Orchestrator runs preflight, then each stage in order through a
// fallback ladder (download formats, transcription models, translation
// models, render encoders). Failures are classified by failure.Mapper; a
// Retry or RetryWithFallback strategy moves to the next ladder entry after a
// cancellable backoff, anything else ends the run with an Error event.
//
// A checkpoint is written after every completed or skipped stage so an
// interrupted job resumes where it stopped. Cancellation reaches external
// processes through the run's cancellation.Token; temporary files are
// removed while checkpointed artifacts are kept.
//
// Every run keeps a LogEvent journal that is mirrored to slog and, when a
// log directory is configured, to a per-job log file.
package workflow
