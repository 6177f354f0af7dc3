// Package main hosts the lingocast CLI.
//
// The Cobra command tree loads configuration (and an optional .env file),
// wires the yt-dlp, WhisperX, chat completion, and ffmpeg collaborators into
// a workflow.Orchestrator, and renders the run's event stream as a progress
// bar or plain lines, then posts the outcome to ntfy when a topic is set.
// Maintenance commands inspect checkpoints, run history, per-job logs, and
// external tool availability without running the pipeline.
//
// Keep behaviour in the internal packages; commands here only translate
// flags into jobs and events into terminal output.
package main
