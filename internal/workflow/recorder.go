package workflow

import (
	"context"
	"time"

	"lingocast/internal/failure"
	"lingocast/internal/history"
	"lingocast/internal/logging"
	"lingocast/internal/stage"
)

// Recorder persists run history. *history.Store implements it. Recorder
// failures never fail a run, and writes ignore run cancellation so the
// attempts and final row of a cancelled run still land.
type Recorder interface {
	StartRun(ctx context.Context, start history.RunStart) (int64, error)
	SetTitle(ctx context.Context, runID int64, title string) error
	RecordAttempt(ctx context.Context, a history.Attempt) error
	FinishRun(ctx context.Context, runID int64, finish history.RunFinish) error
}

func (o *Orchestrator) historyStart(ctx context.Context, st *runState, start stage.Stage) {
	if o.recorder == nil {
		return
	}
	id, err := o.recorder.StartRun(ctx, history.RunStart{
		JobID:          st.job.ID,
		Source:         st.job.Source,
		Title:          st.metadata[metaTitle],
		SourceLanguage: st.job.SourceLanguage,
		TargetLanguage: st.job.TargetLanguage,
		SubtitleMode:   string(st.job.Output.SubtitleMode),
		Resumed:        st.resumed,
		StartStage:     start.String(),
		StartedAt:      st.startedAt,
	})
	if err != nil {
		o.historyUnwritten(ctx, st, "start run", err)
		return
	}
	st.historyID = id
}

func (o *Orchestrator) historyTitle(ctx context.Context, st *runState, title string) {
	if o.recorder == nil || st.historyID == 0 || title == "" {
		return
	}
	if err := o.recorder.SetTitle(ctx, st.historyID, title); err != nil {
		o.historyUnwritten(ctx, st, "set title", err)
	}
}

func (o *Orchestrator) historyAttempt(ctx context.Context, st *runState, s stage.Stage, attempt int, option string, outcome history.Outcome, pe *failure.PipelineError, message string, started time.Time) {
	if o.recorder == nil || st.historyID == 0 {
		return
	}
	a := history.Attempt{
		RunID:      st.historyID,
		Stage:      s.String(),
		Attempt:    attempt,
		Option:     option,
		Outcome:    outcome,
		Message:    message,
		StartedAt:  started,
		FinishedAt: o.now(),
	}
	if pe != nil {
		a.ErrorCode = string(pe.Code)
		if a.Message == "" {
			a.Message = pe.TechnicalDetails
		}
	}
	if err := o.recorder.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		o.historyUnwritten(ctx, st, "record attempt", err)
	}
}

func (o *Orchestrator) historyFinish(ctx context.Context, st *runState, status history.Status, pe *failure.PipelineError) {
	if o.recorder == nil || st.historyID == 0 {
		return
	}
	finish := history.RunFinish{
		Status:     status,
		OutputPath: st.result.OutputPath,
		FinishedAt: o.now(),
	}
	if pe != nil {
		finish.FailedStage = pe.Stage.String()
		finish.ErrorCode = string(pe.Code)
		finish.ErrorMessage = pe.Error()
	}
	if err := o.recorder.FinishRun(context.WithoutCancel(ctx), st.historyID, finish); err != nil {
		o.historyUnwritten(ctx, st, "finish run", err)
	}
}

func (o *Orchestrator) historyUnwritten(ctx context.Context, st *runState, op string, err error) {
	st.run.journal.Add(ctx, LogEvent{
		Level:   LevelWarning,
		Kind:    LogHistoryUnwritten,
		Message: "run history not recorded",
		Details: map[string]string{"operation": op, "error": err.Error()},
	})
	st.logger.Debug("history write failed", logging.String("operation", op), logging.Error(err))
}
