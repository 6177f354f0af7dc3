package workflow

import (
	"lingocast/internal/failure"
	"lingocast/internal/job"
	"lingocast/internal/stage"
)

// EventKind names an Event variant.
type EventKind string

const (
	EventIdle             EventKind = "idle"
	EventDownloading      EventKind = "downloading"
	EventCheckingCaptions EventKind = "checking_captions"
	EventTranscribing     EventKind = "transcribing"
	EventTranslating      EventKind = "translating"
	EventRendering        EventKind = "rendering"
	EventComplete         EventKind = "complete"
	EventError            EventKind = "error"
	EventCancelled        EventKind = "cancelled"
)

// Event is one update on a Run's event stream. The concrete types are Idle,
// Progress, Complete, Error, and Cancelled.
type Event interface {
	Kind() EventKind
	isEvent()
}

// Idle is emitted once when a run starts.
type Idle struct{}

// Progress reports work inside a stage. Percent is negative when the
// collaborator cannot estimate completion.
type Progress struct {
	Stage   stage.Stage
	Percent float64
	Message string
	// Option is the ladder entry in use (format, model, or encoder).
	Option string
}

// Complete carries the produced artifact.
type Complete struct {
	Result job.Result
}

// Error reports that the run stopped on a classified failure.
type Error struct {
	Stage      stage.Stage
	Code       failure.Code
	Message    string
	Suggestion string
}

// Cancelled reports that the run stopped on request. The checkpoint of the
// last completed stage is kept.
type Cancelled struct {
	Stage stage.Stage
}

func (Idle) Kind() EventKind      { return EventIdle }
func (Complete) Kind() EventKind  { return EventComplete }
func (Error) Kind() EventKind     { return EventError }
func (Cancelled) Kind() EventKind { return EventCancelled }

func (p Progress) Kind() EventKind {
	switch p.Stage {
	case stage.Download:
		return EventDownloading
	case stage.CaptionCheck:
		return EventCheckingCaptions
	case stage.Transcription:
		return EventTranscribing
	case stage.Translation:
		return EventTranslating
	case stage.Rendering:
		return EventRendering
	}
	return EventIdle
}

func (Idle) isEvent()      {}
func (Progress) isEvent()  {}
func (Complete) isEvent()  {}
func (Error) isEvent()     {}
func (Cancelled) isEvent() {}

// IsTerminal reports whether e ends a run.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Complete, Error, Cancelled:
		return true
	}
	return false
}

// errorEvent carries only the user-facing text; technical details stay in
// the journal and the job log.
func errorEvent(pe *failure.PipelineError) Error {
	return Error{
		Stage:      pe.Stage,
		Code:       pe.Code,
		Message:    pe.Message,
		Suggestion: pe.Suggestion,
	}
}
