package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lingocast/internal/checkpoint"
	"lingocast/internal/failure"
	"lingocast/internal/history"
	"lingocast/internal/job"
	"lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/preflight"
	"lingocast/internal/services"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
)

func (o *Orchestrator) execute(parent context.Context, run *Run, j job.Job, cp *checkpoint.Checkpoint) {
	ctx, cancel := run.tok.Context(parent)
	defer cancel()
	ctx = services.WithJobID(ctx, j.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())

	logger, closeLog := o.jobLogger(j.ID)
	defer closeLog()
	logger = logging.WithContext(ctx, logger)
	run.journal.setLogger(logger)
	run.journal.Reset()

	st := &runState{
		run:       run,
		job:       j,
		logger:    logger,
		sampler:   logging.NewProgressSampler(5),
		tracker:   o.tracker,
		workDir:   staging.JobDir(o.cfg.Paths.WorkDir, j.ID),
		startedAt: o.now(),
		current:   stage.First(),
		artifacts: make(map[string]string),
		metadata:  make(map[string]string),
	}
	defer o.tracker.Release(j.ID)
	defer func() {
		if v := recover(); v != nil {
			logger.Error("run panicked", logging.Any("panic", v))
			o.fail(ctx, st, o.mapper.Recover(v, st.current))
		}
	}()

	run.emit(Idle{})
	if err := job.Validate(j); err != nil {
		o.fail(ctx, st, o.mapper.Map(err, stage.First()))
		return
	}

	start := stage.First()
	if cp != nil && cp.JobID == j.ID {
		st.restore(cp)
		next, more := cp.NextStage()
		st.resumed = true
		run.journal.Add(ctx, LogEvent{
			Level:   LevelInfo,
			Kind:    LogResumed,
			Stage:   cp.LastCompletedStage,
			Message: fmt.Sprintf("resuming after %s", cp.LastCompletedStage.Label()),
			Details: map[string]string{"checkpoint_age": cp.Age(o.now()).Round(time.Second).String()},
		})
		if !more {
			o.historyStart(ctx, st, cp.LastCompletedStage)
			o.completeFromCheckpoint(ctx, st)
			return
		}
		start = next
	} else if cp != nil {
		run.journal.Add(ctx, LogEvent{
			Level:   LevelWarning,
			Kind:    LogResumed,
			Message: "checkpoint belongs to another job; starting fresh",
			Details: map[string]string{"checkpoint_job_id": cp.JobID},
		})
	}
	if !st.resumed {
		o.discardStaleCheckpoint(st)
	}
	st.current = start
	o.historyStart(ctx, st, start)
	run.journal.Add(ctx, LogEvent{
		Level:   LevelInfo,
		Kind:    LogRunStarted,
		Message: "run started",
		Details: map[string]string{
			"source":          j.Source,
			"target_language": j.TargetLanguage,
			"start_stage":     start.String(),
			"subtitle_mode":   string(j.Output.SubtitleMode),
		},
	})

	stopMonitor := o.startMonitor(ctx, run.journal, logger)
	defer stopMonitor()

	plan, pe := o.checker.Check(ctx, preflight.Request{Job: j, Start: start, Video: st.video})
	if pe != nil {
		if pe.Code == failure.CodeCancelled || run.tok.Cancelled() {
			o.cancelled(ctx, st)
			return
		}
		o.fail(ctx, st, pe)
		return
	}
	o.adoptPlan(ctx, st, plan)

	for s := start; ; {
		if run.tok.Cancelled() {
			o.cancelled(ctx, st)
			return
		}
		st.current = s
		if pe := o.runStage(ctx, st, s); pe != nil {
			if pe.Code == failure.CodeCancelled || run.tok.Cancelled() {
				o.cancelled(ctx, st)
				return
			}
			o.fail(ctx, st, pe)
			return
		}
		next, ok := stage.Next(s)
		if !ok {
			break
		}
		s = next
	}
	o.complete(ctx, st)
}

func (o *Orchestrator) adoptPlan(ctx context.Context, st *runState, plan preflight.Plan) {
	st.plan = plan
	if st.detectedMatchesTarget() {
		st.plan.SkipTranslation = true
	}
	st.checked = true
	video := plan.Video
	st.video = &video
	mergeMetadata(st.metadata, encodeVideo(video))
	st.run.setTitle(st.title())
	o.historyTitle(ctx, st, video.Title)

	for _, n := range plan.Notices {
		level := LevelInfo
		if n.Level == preflight.NoticeWarning {
			level = LevelWarning
		}
		st.run.journal.Add(ctx, LogEvent{
			Level:   level,
			Kind:    LogPreflight,
			Message: n.Message,
			Details: map[string]string{"notice": n.Kind},
		})
	}
	st.run.journal.Add(ctx, LogEvent{
		Level:   LevelInfo,
		Kind:    LogPreflight,
		Message: "preflight passed",
		Details: map[string]string{"plan": strings.Join(plan.Summary(), "; ")},
		Metric:  &stage.Metric{Name: "disk_required_mb", Value: float64(plan.Disk.RequiredMB), Unit: "MB"},
	})
}

func (o *Orchestrator) runStage(ctx context.Context, st *runState, s stage.Stage) *failure.PipelineError {
	ctx = services.WithStage(ctx, s.String())
	st.run.journal.Add(ctx, LogEvent{Level: LevelInfo, Kind: LogStageStarted, Stage: s, Message: s.Label() + " started"})
	st.run.emit(Progress{Stage: s, Percent: 0, Message: s.Label()})

	var res stage.Result[string]
	switch s {
	case stage.Download:
		res = o.runDownload(ctx, st)
	case stage.CaptionCheck:
		res = o.runCaptionCheck(ctx, st)
	case stage.Transcription:
		res = o.runTranscription(ctx, st)
	case stage.Translation:
		res = o.runTranslation(ctx, st)
	case stage.Rendering:
		res = o.runRendering(ctx, st)
	default:
		return o.mapper.New(failure.CodeInvalidInput, s, "unknown stage")
	}

	switch r := res.(type) {
	case stage.Success[string]:
		st.dropScratch(s)
		st.run.journal.Add(ctx, LogEvent{
			Level:   LevelInfo,
			Kind:    LogStageCompleted,
			Stage:   s,
			Message: s.Label() + " completed",
			Details: map[string]string{"artifact": r.Data},
			Metric:  &stage.Metric{Name: "duration_seconds", Value: r.Duration.Seconds(), Unit: "s"},
		})
	case stage.Skipped[string]:
		st.dropScratch(s)
		o.historyAttempt(ctx, st, s, 0, "", history.OutcomeSkipped, nil, r.Reason, o.now())
		st.run.journal.Add(ctx, LogEvent{
			Level:   LevelInfo,
			Kind:    LogStageSkipped,
			Stage:   s,
			Message: s.Label() + " skipped: " + r.Reason,
		})
	case stage.Partial[string]:
		return o.mapper.Map(r.Err, s)
	case stage.Failure[string]:
		return o.mapper.Map(r.Err, s)
	}

	o.saveCheckpoint(ctx, st, s)
	return nil
}

// discardStaleCheckpoint removes a snapshot left for this job id by an
// earlier run so the fresh run's saves replace it stage by stage.
func (o *Orchestrator) discardStaleCheckpoint(st *runState) {
	if o.checkpoints == nil {
		return
	}
	if err := o.checkpoints.Delete(st.job.ID); err != nil {
		logging.WarnWithContext(st.logger, "stale checkpoint not removed", "checkpoint_delete_failed",
			logging.String(logging.FieldErrorHint, "check the checkpoint directory"),
			logging.String(logging.FieldImpact, "checkpoints for this run may not be saved"),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) saveCheckpoint(ctx context.Context, st *runState, s stage.Stage) {
	if o.checkpoints == nil {
		return
	}
	if _, err := o.checkpoints.Save(st.job.ID, st.job, s, st.artifacts, st.metadata); err != nil {
		logging.WarnWithContext(st.logger, "checkpoint not saved", "checkpoint_write_failed",
			logging.String(logging.FieldStage, s.String()),
			logging.String(logging.FieldErrorHint, "check the checkpoint directory"),
			logging.String(logging.FieldImpact, "a resumed run repeats this stage"),
			logging.Error(err),
		)
		return
	}
	st.run.journal.Add(ctx, LogEvent{Level: LevelDebug, Kind: LogCheckpointSaved, Stage: s, Message: "checkpoint saved"})
}

func (o *Orchestrator) complete(ctx context.Context, st *runState) {
	o.cleanupFinished(ctx, st)
	result := st.result
	result.JobID = st.job.ID
	result.Duration = o.now().Sub(st.startedAt)
	if result.TargetLanguage == "" {
		result.TargetLanguage = st.job.TargetLanguage
	}
	st.result = result
	st.run.journal.Add(ctx, LogEvent{
		Level:   LevelInfo,
		Kind:    LogRunCompleted,
		Message: "run completed",
		Details: map[string]string{"output": result.OutputPath},
		Metric:  &stage.Metric{Name: "wall_clock_seconds", Value: result.Duration.Seconds(), Unit: "s"},
	})
	o.historyFinish(ctx, st, history.StatusCompleted, nil)
	st.run.finish(Complete{Result: result})
}

// completeFromCheckpoint finishes a job whose checkpoint already records
// the final stage.
func (o *Orchestrator) completeFromCheckpoint(ctx context.Context, st *runState) {
	output, ok := st.artifacts[checkpoint.ArtifactOutput]
	if !ok {
		o.fail(ctx, st, o.mapper.New(failure.CodeInvalidInput, stage.Last(), "checkpoint records rendering but no output"))
		return
	}
	st.result = job.Result{
		OutputPath:     output,
		SubtitleMode:   st.job.Output.SubtitleMode,
		SourceLanguage: st.sourceLanguage(),
		TargetLanguage: st.job.TargetLanguage,
		Translated:     !language.Same(st.sourceLanguage(), st.job.TargetLanguage),
	}
	if info, err := os.Stat(output); err == nil {
		st.result.SizeBytes = info.Size()
	}
	o.complete(ctx, st)
}

// cleanupFinished removes everything a successful run left behind.
func (o *Orchestrator) cleanupFinished(ctx context.Context, st *runState) {
	if o.checkpoints != nil {
		if err := o.checkpoints.Delete(st.job.ID); err != nil {
			st.logger.Warn("checkpoint delete failed", logging.Error(err))
		}
	}
	if _, err := o.tracker.Cleanup(st.job.ID); err != nil {
		st.logger.Warn("temporary file cleanup failed", logging.Error(err))
	}
	if err := os.RemoveAll(st.workDir); err != nil {
		st.logger.Warn("work directory cleanup failed", logging.String("path", st.workDir), logging.Error(err))
		return
	}
	st.run.journal.Add(ctx, LogEvent{
		Level:   LevelDebug,
		Kind:    LogCleanup,
		Message: "work directory removed",
		Details: map[string]string{"path": st.workDir},
	})
}

// cleanupTemps removes in-flight scratch files. Checkpointed artifacts and
// the checkpoint itself stay for a later resume.
func (o *Orchestrator) cleanupTemps(ctx context.Context, st *runState) {
	removed, err := o.tracker.Cleanup(st.job.ID)
	if err != nil {
		st.logger.Warn("temporary file cleanup failed", logging.Error(err))
	}
	if len(removed) > 0 {
		st.run.journal.Add(ctx, LogEvent{
			Level:   LevelDebug,
			Kind:    LogCleanup,
			Message: fmt.Sprintf("removed %d temporary paths", len(removed)),
			Details: map[string]string{"paths": strings.Join(removed, ", ")},
		})
	}
}

func (o *Orchestrator) fail(ctx context.Context, st *runState, pe *failure.PipelineError) {
	o.cleanupTemps(ctx, st)
	st.run.journal.Add(ctx, LogEvent{
		Level:   LevelError,
		Kind:    LogRunFailed,
		Stage:   pe.Stage,
		Message: pe.Message,
		Details: map[string]string{
			logging.FieldErrorCode: string(pe.Code),
			logging.FieldErrorHint: pe.Suggestion,
			"technical_details":    pe.TechnicalDetails,
			"category":             string(pe.Category()),
		},
	})
	status := history.StatusFailed
	if !st.checked {
		status = history.StatusBlocked
	}
	o.historyFinish(ctx, st, status, pe)
	st.run.finish(errorEvent(pe))
}

func (o *Orchestrator) cancelled(ctx context.Context, st *runState) {
	o.cleanupTemps(ctx, st)
	st.run.journal.Add(ctx, LogEvent{
		Level:   LevelInfo,
		Kind:    LogRunCancelled,
		Stage:   st.current,
		Message: "run cancelled; checkpoint kept",
	})
	o.historyFinish(ctx, st, history.StatusCancelled, o.mapper.New(failure.CodeCancelled, st.current, ""))
	st.run.finish(Cancelled{Stage: st.current})
}

// jobLogger tees the workflow logger into <log_dir>/<job>.log.
func (o *Orchestrator) jobLogger(jobID string) (*slog.Logger, func()) {
	if strings.TrimSpace(o.cfg.Paths.LogDir) == "" {
		return o.logger, func() {}
	}
	handler, file, err := logging.OpenJobLog(o.cfg.Paths.LogDir, jobID)
	if err != nil {
		logging.WarnWithContext(o.logger, "job log unavailable", "job_log_unavailable",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "run continues without a per-job log file"),
			logging.Error(err),
		)
		return o.logger, func() {}
	}
	return logging.Tee(o.logger, handler), func() { _ = file.Close() }
}

func (o *Orchestrator) startMonitor(ctx context.Context, journal *Journal, logger *slog.Logger) func() {
	if !o.cfg.Monitor.Enabled {
		return func() {}
	}
	monitor := NewMemoryMonitor(o.cfg.Monitor, o.readMemory, journal, logger)
	monitorCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go monitor.StartLoop(monitorCtx, &wg)
	return func() {
		cancel()
		wg.Wait()
	}
}
