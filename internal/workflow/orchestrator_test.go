package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"lingocast/internal/checkpoint"
	"lingocast/internal/failure"
	"lingocast/internal/history"
	"lingocast/internal/job"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
	"lingocast/internal/testsupport"
	"lingocast/internal/workflow"
)

func TestExecuteRunsEveryStage(t *testing.T) {
	h := newHarness(t)
	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	events := collect(t, run)

	if _, ok := events[0].(workflow.Idle); !ok {
		t.Fatalf("first event should be Idle, got %T", events[0])
	}
	done, ok := terminal(t, events).(workflow.Complete)
	if !ok {
		t.Fatalf("expected Complete, got %#v", events[len(events)-1])
	}
	want := filepath.Join(h.cfg.Paths.OutputDir, "Field Notes.es.mp4")
	if done.Result.OutputPath != want {
		t.Fatalf("output = %q, want %q", done.Result.OutputPath, want)
	}
	if run.Title() != "Field Notes" {
		t.Fatalf("run title = %q", run.Title())
	}
	if done.Result.JobID != h.job.ID || !done.Result.Translated || done.Result.CueCount != 2 {
		t.Fatalf("unexpected result: %#v", done.Result)
	}

	var kinds []workflow.EventKind
	for _, e := range events {
		if p, ok := e.(workflow.Progress); ok && p.Percent == 0 {
			kinds = append(kinds, p.Kind())
		}
	}
	wantKinds := []workflow.EventKind{
		workflow.EventDownloading,
		workflow.EventCheckingCaptions,
		workflow.EventTranscribing,
		workflow.EventTranslating,
		workflow.EventRendering,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("stage order = %v, want %v", kinds, wantKinds)
	}

	if cp, err := h.store.Load(h.job.ID); err != nil || cp != nil {
		t.Fatalf("checkpoint should be deleted, got %v %v", cp, err)
	}
	if _, err := os.Stat(staging.JobDir(h.cfg.Paths.WorkDir, h.job.ID)); !os.IsNotExist(err) {
		t.Fatalf("work dir should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.LogDir, h.job.ID+".log")); err != nil {
		t.Fatalf("expected per-job log: %v", err)
	}
	if got := logsOfKind(run.Logs(), workflow.LogRunCompleted); len(got) != 1 || got[0].Metric == nil {
		t.Fatalf("expected one run_completed entry with a metric, got %#v", got)
	}
	if run.Wait() != events[len(events)-1] {
		t.Fatal("Wait should return the terminal event")
	}
}

func TestDownloadFallsBackThroughFormats(t *testing.T) {
	h := newHarness(t)
	formats := h.cfg.Download.Formats
	h.downloader.failures = map[string]error{formats[0]: errors.New("ERROR: requested format not available")}

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, run)).(workflow.Complete); !ok {
		t.Fatal("expected Complete after format fallback")
	}
	if got := h.downloader.formatCalls(); !reflect.DeepEqual(got, formats[:2]) {
		t.Fatalf("formats tried = %v", got)
	}
	recovery := logsOfKind(run.Logs(), workflow.LogRecoveryAttempt)
	if len(recovery) != 1 {
		t.Fatalf("expected one recovery attempt, got %d", len(recovery))
	}
	r := recovery[0]
	if r.Stage != stage.Download || r.Attempt != 2 || r.MaxAttempts != len(formats) || r.Level != workflow.LevelWarning {
		t.Fatalf("unexpected recovery entry: %#v", r)
	}
	if r.Details["error_code"] != string(failure.CodeEncodingFailed) {
		t.Fatalf("unexpected error code %q", r.Details["error_code"])
	}
}

func TestTranscriptionFallsBackToSmallerModel(t *testing.T) {
	h := newHarness(t)
	h.transcriber.failures = map[string]error{"medium": errors.New("RuntimeError: CUDA out of memory")}

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, run)).(workflow.Complete); !ok {
		t.Fatal("expected Complete after model fallback")
	}
	if got := h.transcriber.modelCalls(); !reflect.DeepEqual(got, []string{"medium", "small"}) {
		t.Fatalf("models tried = %v", got)
	}
	recovery := logsOfKind(run.Logs(), workflow.LogRecoveryAttempt)
	if len(recovery) != 1 || recovery[0].Details["strategy"] != "fallback_model" {
		t.Fatalf("unexpected recovery entries: %#v", recovery)
	}
}

func TestRenderFallsBackToSoftwareEncoder(t *testing.T) {
	h := newHarness(t)
	h.renderer.failures = map[string]error{"h264_nvenc": errors.New("Unknown encoder 'h264_nvenc'")}

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, run)).(workflow.Complete); !ok {
		t.Fatal("expected Complete after encoder fallback")
	}
	if got := h.renderer.encoderCalls(); !reflect.DeepEqual(got, []string{"h264_nvenc", "libx264"}) {
		t.Fatalf("encoders tried = %v", got)
	}
}

func TestNonRecoverableErrorAbortsAndKeepsCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.translator.failures = map[string]error{"model-a": errors.New("http 401: invalid api key")}

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	errEvent, ok := terminal(t, collect(t, run)).(workflow.Error)
	if !ok {
		t.Fatal("expected Error")
	}
	if errEvent.Stage != stage.Translation || errEvent.Code != failure.CodeAPIKeyInvalid || errEvent.Suggestion == "" {
		t.Fatalf("unexpected error event: %#v", errEvent)
	}
	if got := h.translator.modelCalls(); len(got) != 1 {
		t.Fatalf("fallback model must not be tried after abort, got %v", got)
	}
	if len(logsOfKind(run.Logs(), workflow.LogRecoveryAttempt)) != 0 {
		t.Fatal("abort must not journal a recovery attempt")
	}

	cp, err := h.store.Load(h.job.ID)
	if err != nil || cp == nil {
		t.Fatalf("checkpoint should be kept: %v %v", cp, err)
	}
	if cp.LastCompletedStage != stage.Transcription {
		t.Fatalf("checkpoint stage = %s", cp.LastCompletedStage)
	}
	if _, ok := cp.Artifact(checkpoint.ArtifactSourceSubtitles); !ok {
		t.Fatal("source subtitles artifact missing")
	}
}

func TestResumeSkipsCompletedStages(t *testing.T) {
	h := newHarness(t)
	h.translator.failures = map[string]error{"model-a": errors.New("invalid api key")}
	first := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, first)).(workflow.Error); !ok {
		t.Fatal("first run should fail")
	}

	cp, err := h.store.Load(h.job.ID)
	if err != nil || cp == nil {
		t.Fatalf("Load: %v %v", cp, err)
	}
	h.translator.failures = nil
	second := h.orchestrator().Execute(context.Background(), h.job, cp)
	done, ok := terminal(t, collect(t, second)).(workflow.Complete)
	if !ok {
		t.Fatal("resumed run should complete")
	}
	if done.Result.OutputPath == "" {
		t.Fatal("missing output path")
	}
	if n := len(h.downloader.formatCalls()); n != 1 {
		t.Fatalf("download ran %d times", n)
	}
	if n := len(h.transcriber.modelCalls()); n != 1 {
		t.Fatalf("transcription ran %d times", n)
	}
	if h.prober.calls != 1 {
		t.Fatalf("resume should reuse probe metadata, prober called %d times", h.prober.calls)
	}
	if len(logsOfKind(second.Logs(), workflow.LogResumed)) != 1 {
		t.Fatal("expected a resumed journal entry")
	}
	for _, e := range second.Logs() {
		if e.Kind == workflow.LogRecoveryAttempt {
			t.Fatal("journal of the first run leaked into the second")
		}
	}
}

func TestCheckpointPastFinalStageOnlyCompletes(t *testing.T) {
	h := newHarness(t)
	output := filepath.Join(t.TempDir(), "done.mp4")
	if err := os.WriteFile(output, []byte("rendered"), 0o644); err != nil {
		t.Fatal(err)
	}
	cp, err := h.store.Save(h.job.ID, h.job, stage.Rendering, map[string]string{checkpoint.ArtifactOutput: output}, map[string]string{"title": "Field Notes"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	run := h.orchestrator().Execute(context.Background(), h.job, cp)
	done, ok := terminal(t, collect(t, run)).(workflow.Complete)
	if !ok {
		t.Fatal("expected Complete")
	}
	if done.Result.OutputPath != output || done.Result.SizeBytes != int64(len("rendered")) {
		t.Fatalf("unexpected result %#v", done.Result)
	}
	if h.prober.calls != 0 || len(h.downloader.formatCalls()) != 0 || len(h.renderer.encoderCalls()) != 0 {
		t.Fatal("no collaborator should run")
	}
	if cp, _ := h.store.Load(h.job.ID); cp != nil {
		t.Fatal("checkpoint should be deleted")
	}
}

func TestCaptionsSkipTranscription(t *testing.T) {
	h := newHarness(t)
	h.cfg.Download.PreferCaptions = true
	h.downloader.captions = sampleSubtitles("en", "captions")

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, run)).(workflow.Complete); !ok {
		t.Fatal("expected Complete")
	}
	if calls := h.transcriber.modelCalls(); len(calls) != 0 {
		t.Fatalf("transcriber should be skipped, got %v", calls)
	}
	skipped := logsOfKind(run.Logs(), workflow.LogStageSkipped)
	if len(skipped) != 1 || skipped[0].Stage != stage.Transcription {
		t.Fatalf("expected transcription skip entry, got %#v", skipped)
	}
}

func TestCaptionFailureFallsBackToTranscription(t *testing.T) {
	h := newHarness(t)
	h.cfg.Download.PreferCaptions = true
	h.downloader.captionErr = errors.New("HTTP Error 429: Too Many Requests")

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, run)).(workflow.Complete); !ok {
		t.Fatal("caption failure must not fail the run")
	}
	if calls := h.transcriber.modelCalls(); len(calls) != 1 {
		t.Fatalf("expected transcription, got %v", calls)
	}
	warnings := logsOfKind(run.Logs(), workflow.LogCaptionWarning)
	if len(warnings) != 1 || warnings[0].Level != workflow.LevelWarning {
		t.Fatalf("expected one caption warning, got %#v", warnings)
	}
}

func TestSameLanguageSkipsTranslation(t *testing.T) {
	h := newHarness(t)
	h.job.SourceLanguage = "es"
	h.job.TargetLanguage = "es-ES"

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	done, ok := terminal(t, collect(t, run)).(workflow.Complete)
	if !ok {
		t.Fatal("expected Complete")
	}
	if calls := h.translator.modelCalls(); len(calls) != 0 {
		t.Fatalf("translator should not run, got %v", calls)
	}
	if done.Result.Translated {
		t.Fatal("result should not be marked translated")
	}
	var warned bool
	for _, e := range logsOfKind(run.Logs(), workflow.LogPreflight) {
		if e.Level == workflow.LevelWarning && e.Details["notice"] == "translation_skipped" {
			warned = true
		}
	}
	if !warned {
		t.Fatal("expected a translation skip warning")
	}
}

func TestDetectedTargetLanguageSkipsTranslation(t *testing.T) {
	h := newHarness(t)
	h.job.SourceLanguage = ""
	h.job.TargetLanguage = "es"
	h.transcriber.lang = "es"

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	done, ok := terminal(t, collect(t, run)).(workflow.Complete)
	if !ok {
		t.Fatal("expected Complete")
	}
	if calls := h.transcriber.modelCalls(); len(calls) != 1 {
		t.Fatalf("expected transcription, got %v", calls)
	}
	if calls := h.translator.modelCalls(); len(calls) != 0 {
		t.Fatalf("translator should not run, got %v", calls)
	}
	if done.Result.Translated {
		t.Fatal("result should not be marked translated")
	}
	var skipped bool
	for _, e := range logsOfKind(run.Logs(), workflow.LogStageSkipped) {
		if e.Stage == stage.Translation && strings.Contains(e.Message, "detected source language") {
			skipped = true
		}
	}
	if !skipped {
		t.Fatalf("expected a translation skip entry, got %#v", logsOfKind(run.Logs(), workflow.LogStageSkipped))
	}
}

func TestPreflightBlockStopsBeforeAnyStage(t *testing.T) {
	h := newHarness(t)
	h.prober.info.IsLive = true

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	events := collect(t, run)
	errEvent, ok := terminal(t, events).(workflow.Error)
	if !ok || errEvent.Code != failure.CodeLiveStream {
		t.Fatalf("expected LIVE_STREAM error, got %#v", events[len(events)-1])
	}
	for _, e := range events {
		if _, ok := e.(workflow.Progress); ok {
			t.Fatal("no stage should start")
		}
	}
	if len(h.downloader.formatCalls()) != 0 {
		t.Fatal("download must not run")
	}
	if cp, _ := h.store.Load(h.job.ID); cp != nil {
		t.Fatal("no checkpoint should be written")
	}
}

func TestInvalidJobIsRejected(t *testing.T) {
	h := newHarness(t)
	h.job.Source = "not a url"

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	errEvent, ok := terminal(t, collect(t, run)).(workflow.Error)
	if !ok || errEvent.Code != failure.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %#v", run.Wait())
	}
	if h.prober.calls != 0 {
		t.Fatal("probe must not run for an invalid job")
	}
}

func TestCancelKeepsCheckpointAndRemovesTemps(t *testing.T) {
	h := newHarness(t)
	h.transcriber.block = true
	run := h.orchestrator().Execute(context.Background(), h.job, nil)

	select {
	case <-h.transcriber.started:
	case <-time.After(5 * time.Second):
		t.Fatal("transcription never started")
	}
	run.Cancel()
	run.Cancel()

	cancelled, ok := terminal(t, collect(t, run)).(workflow.Cancelled)
	if !ok {
		t.Fatalf("expected Cancelled, got %#v", run.Wait())
	}
	if cancelled.Stage != stage.Transcription {
		t.Fatalf("cancelled at %s", cancelled.Stage)
	}
	cp, err := h.store.Load(h.job.ID)
	if err != nil || cp == nil {
		t.Fatalf("checkpoint should survive cancellation: %v %v", cp, err)
	}
	if cp.LastCompletedStage != stage.CaptionCheck {
		t.Fatalf("checkpoint stage = %s", cp.LastCompletedStage)
	}
	if media, ok := cp.Artifact(checkpoint.ArtifactMedia); !ok {
		t.Fatal("media artifact missing")
	} else if _, err := os.Stat(media); err != nil {
		t.Fatalf("media should be kept: %v", err)
	}
	if tracked := h.tracker.Tracked(h.job.ID); len(tracked) != 0 {
		t.Fatalf("temporary paths left tracked: %v", tracked)
	}
	scratch := filepath.Join(staging.JobDir(h.cfg.Paths.WorkDir, h.job.ID), "."+stage.Transcription.String())
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("scratch dir should be removed, stat err = %v", err)
	}
}

func TestFreshRunReplacesStaleCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.translator.failures = map[string]error{"model-a": errors.New("invalid api key")}
	first := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, first)).(workflow.Error); !ok {
		t.Fatal("first run should fail")
	}
	if cp, _ := h.store.Load(h.job.ID); cp == nil || cp.LastCompletedStage != stage.Transcription {
		t.Fatalf("first run checkpoint = %#v", cp)
	}

	// Start over without resuming and stop during transcription.
	h.translator.failures = nil
	h.transcriber.block = true
	second := h.orchestrator().Execute(context.Background(), h.job, nil)
	select {
	case <-h.transcriber.started:
	case <-time.After(5 * time.Second):
		t.Fatal("transcription never started")
	}
	second.Cancel()
	if _, ok := terminal(t, collect(t, second)).(workflow.Cancelled); !ok {
		t.Fatalf("expected Cancelled, got %#v", second.Wait())
	}

	if saved := logsOfKind(second.Logs(), workflow.LogCheckpointSaved); len(saved) == 0 {
		t.Fatal("fresh run saved no checkpoints")
	}
	cp, err := h.store.Load(h.job.ID)
	if err != nil || cp == nil {
		t.Fatalf("Load: %v %v", cp, err)
	}
	if cp.LastCompletedStage != stage.CaptionCheck {
		t.Fatalf("checkpoint stage = %s, want %s", cp.LastCompletedStage, stage.CaptionCheck)
	}
	if _, ok := cp.Artifact(checkpoint.ArtifactSourceSubtitles); ok {
		t.Fatal("source subtitles from the earlier run leaked into the new checkpoint")
	}
}

func TestContextCancellationCancelsRun(t *testing.T) {
	h := newHarness(t)
	h.transcriber.block = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	run := h.orchestrator().Execute(ctx, h.job, nil)

	<-h.transcriber.started
	cancel()
	if _, ok := terminal(t, collect(t, run)).(workflow.Cancelled); !ok {
		t.Fatalf("expected Cancelled, got %#v", run.Wait())
	}
}

func TestCollaboratorPanicBecomesError(t *testing.T) {
	h := newHarness(t)
	h.renderer.panicMsg = "nil subtitle track"

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	errEvent, ok := terminal(t, collect(t, run)).(workflow.Error)
	if !ok {
		t.Fatal("expected Error")
	}
	if errEvent.Code != failure.CodeUnknown || errEvent.Stage != stage.Rendering {
		t.Fatalf("unexpected error event %#v", errEvent)
	}
	if strings.Contains(errEvent.Message, "nil subtitle track") {
		t.Fatalf("panic value leaked into the error message %q", errEvent.Message)
	}
	failed := logsOfKind(run.Logs(), workflow.LogRunFailed)
	if len(failed) != 1 || !strings.Contains(failed[0].Details["technical_details"], "nil subtitle track") {
		t.Fatalf("panic value missing from the journal: %#v", failed)
	}
}

func TestErrorEventHidesTechnicalDetails(t *testing.T) {
	h := newHarness(t)
	trace := "invalid api key\ngoroutine 1 [running]:\nmain.main()\n\t/src/x.go:12"
	h.translator.failures = map[string]error{"model-a": errors.New(trace)}

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	errEvent, ok := terminal(t, collect(t, run)).(workflow.Error)
	if !ok {
		t.Fatal("expected Error")
	}
	if errEvent.Code != failure.CodeAPIKeyInvalid {
		t.Fatalf("code = %s", errEvent.Code)
	}
	for _, raw := range []string{"goroutine", "invalid api key", "x.go"} {
		if strings.Contains(errEvent.Message, raw) {
			t.Fatalf("raw error text %q in message %q", raw, errEvent.Message)
		}
	}
	if errEvent.Message == "" || errEvent.Suggestion == "" {
		t.Fatalf("user-facing text missing: %#v", errEvent)
	}
	failed := logsOfKind(run.Logs(), workflow.LogRunFailed)
	if len(failed) != 1 || !strings.Contains(failed[0].Details["technical_details"], "goroutine 1") {
		t.Fatalf("technical details not journaled: %#v", failed)
	}
}

func TestTerminalEventSurvivesSlowConsumer(t *testing.T) {
	h := newHarness(t)
	h.downloader.progress = 500

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := run.Wait().(workflow.Complete); !ok {
		t.Fatalf("expected Complete, got %#v", run.Wait())
	}
	events := collect(t, run)
	if _, ok := terminal(t, events).(workflow.Complete); !ok {
		t.Fatal("terminal event must be delivered last")
	}
}

func TestHistoryRecordsRun(t *testing.T) {
	h := newHarness(t)
	store := testsupport.MustOpenHistory(t, h.cfg)
	h.opts = append(h.opts, workflow.WithRecorder(store))
	h.renderer.failures = map[string]error{"h264_nvenc": errors.New("encoding failed: Error while encoding stream")}

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	terminal(t, collect(t, run))

	runs, err := store.Recent(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("Recent: %v %v", runs, err)
	}
	rec := runs[0]
	if rec.Status != history.StatusCompleted || rec.Title != "Field Notes" || rec.OutputPath == "" {
		t.Fatalf("unexpected run row %#v", rec)
	}
	attempts, err := store.Attempts(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	var renderFailures, skipped int
	for _, a := range attempts {
		if a.Stage == stage.Rendering.String() && a.Outcome == history.OutcomeFailure {
			renderFailures++
			if a.ErrorCode != string(failure.CodeEncodingFailed) || a.Option != "h264_nvenc" {
				t.Fatalf("unexpected failed attempt %#v", a)
			}
		}
		if a.Outcome == history.OutcomeSkipped {
			skipped++
		}
	}
	if renderFailures != 1 {
		t.Fatalf("expected one failed render attempt, got %d", renderFailures)
	}
	if skipped != 1 {
		t.Fatalf("expected the caption check skip to be recorded, got %d", skipped)
	}
}

func TestHistoryMarksBlockedRuns(t *testing.T) {
	h := newHarness(t)
	store := testsupport.MustOpenHistory(t, h.cfg)
	h.opts = append(h.opts, workflow.WithRecorder(store))
	h.prober.info.Availability = "private"

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	terminal(t, collect(t, run))

	runs, _ := store.ForJob(context.Background(), h.job.ID)
	if len(runs) != 1 || runs[0].Status != history.StatusBlocked || runs[0].ErrorCode != string(failure.CodePrivateVideo) {
		t.Fatalf("unexpected history %#v", runs)
	}
}

func TestStageHealthReportsCheckers(t *testing.T) {
	h := newHarness(t)
	health := h.orchestrator().StageHealth(context.Background())
	if len(health) != 0 {
		t.Fatalf("stub collaborators have no health checks, got %v", health)
	}
}

func TestSidecarModeReachesRenderer(t *testing.T) {
	h := newHarness(t)
	h.job.Output.SubtitleMode = job.SubtitleSidecar

	run := h.orchestrator().Execute(context.Background(), h.job, nil)
	if _, ok := terminal(t, collect(t, run)).(workflow.Complete); !ok {
		t.Fatal("expected Complete")
	}
	h.renderer.mu.Lock()
	defer h.renderer.mu.Unlock()
	if len(h.renderer.requests) != 1 || h.renderer.requests[0].Mode != job.SubtitleSidecar {
		t.Fatalf("unexpected render requests %#v", h.renderer.requests)
	}
	if h.renderer.requests[0].Subtitles.Language != "es" {
		t.Fatalf("renderer got %s subtitles", h.renderer.requests[0].Subtitles.Language)
	}
}
