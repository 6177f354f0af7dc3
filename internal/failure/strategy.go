package failure

import (
	"math"
	"time"
)

// RecoveryStrategy describes how the orchestrator should react to an error.
// The concrete types are Retry, RetryWithFallback, Skip, and Abort.
type RecoveryStrategy interface {
	isStrategy()
	String() string
}

// Retry repeats the same operation after a backoff delay.
type Retry struct {
	MaxAttempts       int
	Delay             time.Duration
	BackoffMultiplier float64
}

// DelayFor returns the wait before the given retry attempt (1-based).
func (r Retry) DelayFor(attempt int) time.Duration {
	if attempt <= 1 || r.BackoffMultiplier <= 1 {
		return r.Delay
	}
	return time.Duration(float64(r.Delay) * math.Pow(r.BackoffMultiplier, float64(attempt-1)))
}

// FallbackKind names what a fallback ladder varies.
type FallbackKind string

const (
	FallbackFormat  FallbackKind = "format"
	FallbackModel   FallbackKind = "model"
	FallbackEncoder FallbackKind = "encoder"
)

// RetryWithFallback moves to the next option of a ladder.
type RetryWithFallback struct {
	Kind    FallbackKind
	Options []string
	Index   int
}

// HasMore reports whether an option after Index exists.
func (r RetryWithFallback) HasMore() bool { return r.Index+1 < len(r.Options) }

// Next returns the strategy advanced to the following option.
func (r RetryWithFallback) Next() (RetryWithFallback, string, bool) {
	if !r.HasMore() {
		return r, "", false
	}
	r.Index++
	return r, r.Options[r.Index], true
}

// WithOptions attaches a concrete ladder to the strategy.
func (r RetryWithFallback) WithOptions(options []string, index int) RetryWithFallback {
	r.Options = append([]string(nil), options...)
	r.Index = index
	return r
}

// Skip continues the pipeline without the failed stage's output.
type Skip struct {
	Reason string
}

type abort struct{}

// Abort stops the pipeline.
var Abort RecoveryStrategy = abort{}

func (Retry) isStrategy()             {}
func (RetryWithFallback) isStrategy() {}
func (Skip) isStrategy()              {}
func (abort) isStrategy()             {}

func (Retry) String() string               { return "retry" }
func (r RetryWithFallback) String() string { return "fallback_" + string(r.Kind) }
func (Skip) String() string                { return "skip" }
func (abort) String() string               { return "abort" }

// CanContinue reports whether the strategy asks for another attempt.
func CanContinue(s RecoveryStrategy) bool {
	switch s.(type) {
	case Retry, RetryWithFallback:
		return true
	default:
		return false
	}
}
