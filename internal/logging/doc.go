// Package logging assembles the slog loggers used across lingocast.
//
// It owns the console and JSON handlers, the per-job log file handler, and
// the attribute helpers that keep field names consistent (job_id, stage,
// event_type, error_hint, impact). Context helpers stamp job and stage
// identifiers onto log lines so collaborator code does not have to thread
// them manually. NewNop gives tests and optional wiring a logger that
// discards everything.
package logging
