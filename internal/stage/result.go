package stage

import "time"

// Result is the outcome of one stage execution. The concrete types are
// Success, Failure, Partial, and Skipped.
type Result[T any] interface {
	StageOf() Stage
	isResult()
}

// Metric is a named measurement reported by a stage.
type Metric struct {
	Name  string
	Value float64
	Unit  string
}

// Success carries the stage output.
type Success[T any] struct {
	Data     T
	Stage    Stage
	Duration time.Duration
	Metrics  []Metric
}

// Failure reports that the stage could not produce output. Err is usually a
// *failure.PipelineError; Strategy holds the recovery decision made for it.
type Failure[T any] struct {
	Stage    Stage
	Err      error
	Strategy any
	Attempt  int
}

// Partial carries output that covers only part of the work.
type Partial[T any] struct {
	Data             T
	Stage            Stage
	CompletedPortion float64
	Err              error
	Recoverable      bool
}

// Skipped reports that the stage intentionally did nothing.
type Skipped[T any] struct {
	Stage  Stage
	Reason string
}

func (r Success[T]) StageOf() Stage { return r.Stage }
func (r Failure[T]) StageOf() Stage { return r.Stage }
func (r Partial[T]) StageOf() Stage { return r.Stage }
func (r Skipped[T]) StageOf() Stage { return r.Stage }

func (Success[T]) isResult() {}
func (Failure[T]) isResult() {}
func (Partial[T]) isResult() {}
func (Skipped[T]) isResult() {}

// Map transforms the payload of Success and Partial results. Failure and
// Skipped results are rebuilt with identical fields under the new payload type.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	switch v := r.(type) {
	case Success[T]:
		return Success[U]{Data: fn(v.Data), Stage: v.Stage, Duration: v.Duration, Metrics: v.Metrics}
	case Partial[T]:
		return Partial[U]{Data: fn(v.Data), Stage: v.Stage, CompletedPortion: v.CompletedPortion, Err: v.Err, Recoverable: v.Recoverable}
	case Failure[T]:
		return Failure[U]{Stage: v.Stage, Err: v.Err, Strategy: v.Strategy, Attempt: v.Attempt}
	case Skipped[T]:
		return Skipped[U]{Stage: v.Stage, Reason: v.Reason}
	default:
		return nil
	}
}

// IsSuccess reports whether r is a Success.
func IsSuccess[T any](r Result[T]) bool {
	_, ok := r.(Success[T])
	return ok
}
