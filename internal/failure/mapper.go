package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/services"
	"lingocast/internal/stage"
)

const (
	defaultRetryDelay     = time.Second
	defaultRateLimitDelay = 30 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoff        = 2.0
)

// Mapper converts raw errors into PipelineErrors and recovery strategies.
type Mapper struct {
	now            func() time.Time
	retryDelay     time.Duration
	rateLimitDelay time.Duration
	maxAttempts    int
}

// MapperOption customizes a Mapper.
type MapperOption func(*Mapper)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MapperOption {
	return func(m *Mapper) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRetryDelays overrides the baseline retry delays. Negative values are ignored.
func WithRetryDelays(base, rateLimited time.Duration) MapperOption {
	return func(m *Mapper) {
		if base >= 0 {
			m.retryDelay = base
		}
		if rateLimited >= 0 {
			m.rateLimitDelay = rateLimited
		}
	}
}

// WithMaxAttempts overrides the attempt budget reported in Retry strategies.
func WithMaxAttempts(n int) MapperOption {
	return func(m *Mapper) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewMapper constructs a mapper with default delays.
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		now:            time.Now,
		retryDelay:     defaultRetryDelay,
		rateLimitDelay: defaultRateLimitDelay,
		maxAttempts:    defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// New builds a PipelineError for a known code.
func (m *Mapper) New(code Code, s stage.Stage, details string) *PipelineError {
	return newError(code, s, details, nil, m.clock())
}

// Map classifies err for the given stage. A nil error maps to nil. Errors that
// are already classified keep their code; the stage is filled in when missing.
func (m *Mapper) Map(err error, s stage.Stage) *PipelineError {
	if err == nil {
		return nil
	}
	if pe, ok := As(err); ok {
		if !pe.Stage.Valid() && s.Valid() {
			clone := *pe
			clone.Stage = s
			return &clone
		}
		return pe
	}
	code := classifyType(err)
	if code == "" {
		code = classifyMessage(err.Error())
	}
	if code == CodeUnknown {
		code = classifyMarker(err)
	}
	return newError(code, s, err.Error(), err, m.clock())
}

// Recover wraps a recovered panic value as an UNKNOWN error.
func (m *Mapper) Recover(value any, s stage.Stage) *PipelineError {
	return newError(CodeUnknown, s, fmt.Sprintf("panic: %v", value), nil, m.clock())
}

// RecoveryStrategy decides how to react to a classified error.
func (m *Mapper) RecoveryStrategy(pe *PipelineError) RecoveryStrategy {
	if pe == nil || !pe.Recoverable {
		return Abort
	}
	if pe.Retryable {
		delay := m.retryDelay
		if pe.Code == CodeRateLimited {
			delay = m.rateLimitDelay
		}
		return Retry{MaxAttempts: m.maxAttempts, Delay: delay, BackoffMultiplier: defaultBackoff}
	}
	switch {
	case pe.Stage == stage.Download && pe.Code == CodeEncodingFailed:
		return RetryWithFallback{Kind: FallbackFormat}
	case pe.Stage == stage.Transcription && pe.Code == CodeInsufficientMemory:
		return RetryWithFallback{Kind: FallbackModel}
	case pe.Stage == stage.Rendering && pe.Code == CodeEncodingFailed:
		return RetryWithFallback{Kind: FallbackEncoder}
	}
	return Abort
}

func (m *Mapper) clock() time.Time {
	if m == nil || m.now == nil {
		return time.Now()
	}
	return m.now()
}

func classifyType(err error) Code {
	switch {
	case errors.Is(err, cancellation.ErrCancelled), errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeNetworkTimeout
	case errors.Is(err, exec.ErrNotFound):
		return CodeBinaryNotFound
	case errors.Is(err, syscall.ENOSPC):
		return CodeDiskFull
	case errors.Is(err, syscall.ENOMEM):
		return CodeInsufficientMemory
	case errors.Is(err, fs.ErrPermission):
		return CodePermissionDenied
	}
	return ""
}

// classifyMarker falls back to the service error markers when no message rule matched.
func classifyMarker(err error) Code {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConfiguration):
		return CodeInvalidInput
	case errors.Is(err, services.ErrTimeout):
		return CodeNetworkTimeout
	}
	return CodeUnknown
}

// messageRule matches when every group has at least one phrase present in
// the lower-cased message.
type messageRule struct {
	groups [][]string
	code   Code
}

func phrases(values ...string) []string { return values }

var messageRules = []messageRule{
	{[][]string{phrases("timed out", "timeout", "deadline exceeded")}, CodeNetworkTimeout},
	{[][]string{phrases("connection refused")}, CodeConnectionRefused},
	{[][]string{phrases("network is unreachable", "no such host", "connection reset", "temporary failure in name resolution", "no route to host")}, CodeNetworkUnavailable},
	{[][]string{phrases("rate limit", "ratelimit", "too many requests", "http 429")}, CodeRateLimited},
	{[][]string{phrases("http 500", "http 502", "http 503", "http 504", "bad gateway", "service unavailable", "gateway timeout")}, CodeNetworkUnavailable},
	{[][]string{phrases("api key"), phrases("invalid", "incorrect", "rejected")}, CodeAPIKeyInvalid},
	{[][]string{phrases("http 401", "unauthorized", "no auth credentials")}, CodeAPIKeyInvalid},
	{[][]string{phrases("api key"), phrases("missing", "required", "not set", "not configured")}, CodeAPIKeyMissing},
	{[][]string{phrases("no space left", "disk full", "disk quota exceeded")}, CodeDiskFull},
	{[][]string{phrases("quota", "insufficient credits", "http 402")}, CodeQuotaExceeded},
	{[][]string{phrases("model"), phrases("not found", "does not exist", "not a valid model", "no endpoints found")}, CodeModelNotFound},
	{[][]string{phrases("out of memory", "cannot allocate memory", "memoryerror", "outofmemory")}, CodeInsufficientMemory},
	{[][]string{phrases("requested format", "encoding failed", "error while encoding", "unknown encoder", "conversion failed", "error initializing output stream", "postprocessing")}, CodeEncodingFailed},
	{[][]string{phrases("private")}, CodePrivateVideo},
	{[][]string{phrases("age-restricted", "age restricted", "confirm your age", "inappropriate for some users")}, CodeAgeRestricted},
	{[][]string{phrases("blocked", "not available", "unavailable"), phrases("country", "region", "geo", "location")}, CodeRegionBlocked},
	{[][]string{phrases("geo-restricted", "geo restricted", "georestricted", "not made this video available")}, CodeRegionBlocked},
	{[][]string{phrases("not available", "unavailable", "has been removed", "does not exist", "http 404", "not found")}, CodeVideoUnavailable},
	{[][]string{phrases("live event", "is live", "live stream", "livestream", "premieres in")}, CodeLiveStream},
	{[][]string{phrases("malformed", "unexpected end of json", "invalid character", "cue count mismatch")}, CodeProcessingFailed},
	{[][]string{phrases("permission denied", "operation not permitted", "access denied")}, CodePermissionDenied},
	{[][]string{phrases("executable file not found", "command not found")}, CodeBinaryNotFound},
}

func classifyMessage(message string) Code {
	lower := strings.ToLower(message)
	for _, rule := range messageRules {
		if rule.matches(lower) {
			return rule.code
		}
	}
	return CodeUnknown
}

func (r messageRule) matches(lower string) bool {
	for _, group := range r.groups {
		hit := false
		for _, phrase := range group {
			if strings.Contains(lower, phrase) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return len(r.groups) > 0
}
