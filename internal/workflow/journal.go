package workflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"lingocast/internal/logging"
	"lingocast/internal/stage"
)

// Level is the severity of a LogEvent.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LogKind classifies a LogEvent.
type LogKind string

const (
	LogRunStarted       LogKind = "run_started"
	LogResumed          LogKind = "resumed"
	LogPreflight        LogKind = "preflight"
	LogStageStarted     LogKind = "stage_started"
	LogStageCompleted   LogKind = "stage_completed"
	LogStageSkipped     LogKind = "stage_skipped"
	LogRecoveryAttempt  LogKind = "recovery_attempt"
	LogCaptionWarning   LogKind = "caption_check_warning"
	LogCheckpointSaved  LogKind = "checkpoint_saved"
	LogMemoryWarning    LogKind = "memory_warning"
	LogCleanup          LogKind = "cleanup"
	LogRunFailed        LogKind = "run_failed"
	LogRunCancelled     LogKind = "run_cancelled"
	LogRunCompleted     LogKind = "run_completed"
	LogHistoryUnwritten LogKind = "history_unwritten"
)

// LogEvent is one journal entry. Stage is zero for run-level entries.
type LogEvent struct {
	Time        time.Time
	Level       Level
	Kind        LogKind
	Stage       stage.Stage
	Message     string
	Details     map[string]string
	Attempt     int
	MaxAttempts int
	Metric      *stage.Metric
}

// Journal is the append-only LogEvent list of one run. Every entry is also
// written to the logger.
type Journal struct {
	mu     sync.Mutex
	events []LogEvent
	logger *slog.Logger
	now    func() time.Time
}

// NewJournal returns an empty journal mirroring to logger.
func NewJournal(logger *slog.Logger, now func() time.Time) *Journal {
	if logger == nil {
		logger = logging.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Journal{logger: logger, now: now}
}

// Add appends e, stamping Time when unset.
func (j *Journal) Add(ctx context.Context, e LogEvent) {
	if e.Time.IsZero() {
		e.Time = j.now()
	}
	j.mu.Lock()
	j.events = append(j.events, e)
	logger := j.logger
	j.mu.Unlock()

	logger.Log(ctx, e.Level.slogLevel(), e.Message, logging.Args(mirrorAttrs(e)...)...)
}

// Events returns a copy of the entries in insertion order.
func (j *Journal) Events() []LogEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]LogEvent, len(j.events))
	copy(out, j.events)
	return out
}

// Reset clears the journal at the start of a run.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = nil
}

func (j *Journal) setLogger(logger *slog.Logger) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logger = logger
}

func mirrorAttrs(e LogEvent) []logging.Attr {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, string(e.Kind))}
	if e.Stage.Valid() {
		attrs = append(attrs, logging.String(logging.FieldStage, e.Stage.String()))
	}
	if e.Attempt > 0 {
		attrs = append(attrs, logging.Int(logging.FieldAttempt, e.Attempt), logging.Int("max_attempts", e.MaxAttempts))
	}
	if e.Metric != nil {
		attrs = append(attrs, logging.Float64(e.Metric.Name, e.Metric.Value))
	}
	keys := make([]string, 0, len(e.Details))
	for key := range e.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		attrs = append(attrs, logging.String(key, e.Details[key]))
	}
	return attrs
}
