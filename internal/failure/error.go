package failure

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lingocast/internal/stage"
)

// PipelineError is the classified form of every failure the pipeline reports.
type PipelineError struct {
	Code             Code
	Stage            stage.Stage
	Message          string
	TechnicalDetails string
	Suggestion       string
	Recoverable      bool
	Retryable        bool
	Timestamp        time.Time

	cause error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Stage.Valid() {
		b.WriteString(e.Stage.String())
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.TechnicalDetails != "" && e.TechnicalDetails != e.Message {
		b.WriteString(" (")
		b.WriteString(e.TechnicalDetails)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the original error.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Category returns the category of the error code.
func (e *PipelineError) Category() Category {
	if e == nil {
		return CategoryUnknown
	}
	return e.Code.Category()
}

// As extracts a *PipelineError from err.
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) && pe != nil {
		return pe, true
	}
	return nil, false
}

// IsCancelled reports whether err is a classified cancellation.
func IsCancelled(err error) bool {
	pe, ok := As(err)
	return ok && pe.Code == CodeCancelled
}

func newError(code Code, s stage.Stage, details string, cause error, now time.Time) *PipelineError {
	info := infoFor(code)
	return &PipelineError{
		Code:             code,
		Stage:            s,
		Message:          info.message,
		TechnicalDetails: strings.TrimSpace(details),
		Suggestion:       info.suggestion,
		Recoverable:      info.recoverable,
		Retryable:        info.retryable,
		Timestamp:        now,
		cause:            cause,
	}
}

// Detailf formats technical details while collapsing whitespace.
func Detailf(format string, args ...any) string {
	return strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
}
