package history

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusBlocked   Status = "blocked"
	StatusCancelled Status = "cancelled"
	// StatusAbandoned marks runs left "running" by a process that exited
	// without finishing them.
	StatusAbandoned Status = "abandoned"
)

// Outcome is the result of one stage attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeSkipped Outcome = "skipped"
)

// RunStart describes a run as it begins.
type RunStart struct {
	JobID          string
	Source         string
	Title          string
	SourceLanguage string
	TargetLanguage string
	SubtitleMode   string
	Resumed        bool
	StartStage     string
	StartedAt      time.Time
}

// RunFinish describes how a run ended.
type RunFinish struct {
	Status       Status
	FailedStage  string
	ErrorCode    string
	ErrorMessage string
	OutputPath   string
	FinishedAt   time.Time
}

// Run is a stored run row.
type Run struct {
	ID             int64
	JobID          string
	Source         string
	Title          string
	SourceLanguage string
	TargetLanguage string
	SubtitleMode   string
	Resumed        bool
	StartStage     string
	Status         Status
	FailedStage    string
	ErrorCode      string
	ErrorMessage   string
	OutputPath     string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Duration returns the wall-clock time of a finished run, zero otherwise.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Attempt is one collaborator invocation within a run.
type Attempt struct {
	RunID      int64
	Stage      string
	Attempt    int
	Option     string
	Outcome    Outcome
	ErrorCode  string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}
