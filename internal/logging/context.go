package logging

import (
	"context"
	"log/slog"

	"lingocast/internal/services"
)

const (
	// FieldComponent names the subsystem that emitted a line.
	FieldComponent = "component"
	// FieldJobID identifies the pipeline job.
	FieldJobID = "job_id"
	// FieldStage names the pipeline stage.
	FieldStage = "stage"
	// FieldAttempt is the 1-based attempt number within a fallback ladder.
	FieldAttempt = "attempt"
	// FieldCorrelationID identifies one CLI invocation.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering (e.g. stage_complete).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldErrorCode carries the classified pipeline error code.
	FieldErrorCode = "error_code"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

var contextTags = []struct {
	field string
	get   func(context.Context) (string, bool)
}{
	{FieldJobID, services.JobIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the job, stage and correlation tags carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, tag := range contextTags {
		if v, ok := tag.get(ctx); ok {
			fields = append(fields, slog.String(tag.field, v))
		}
	}
	return fields
}

// WithContext returns logger with the ContextFields of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
