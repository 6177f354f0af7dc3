package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lingocast/internal/checkpoint"
	"lingocast/internal/config"
	"lingocast/internal/history"
	"lingocast/internal/job"
	"lingocast/internal/logging"
	"lingocast/internal/notifications"
	"lingocast/internal/staging"
	"lingocast/internal/workflow"
)

const (
	exitRunFailed = 2
	exitCancelled = 130
)

// runFailure reports a run that ended without output. The event has already
// been printed, so the message is short.
type runFailure struct {
	code  int
	msg   string
	cause error
}

func (e *runFailure) Error() string { return e.msg }
func (e *runFailure) Unwrap() error { return e.cause }

func exitCode(err error) int {
	var rf *runFailure
	if errors.As(err, &rf) {
		return rf.code
	}
	return 1
}

func outcomeError(e workflow.Event) error {
	switch ev := e.(type) {
	case workflow.Complete:
		return nil
	case workflow.Error:
		return &runFailure{code: exitRunFailed, msg: fmt.Sprintf("run failed: %s", ev.Code)}
	case workflow.Cancelled:
		return &runFailure{code: exitCancelled, msg: "run cancelled", cause: context.Canceled}
	}
	return &runFailure{code: 1, msg: "run ended without a result"}
}

type jobFlags struct {
	from       string
	to         string
	mode       string
	outputDir  string
	fileName   string
	jobID      string
	noCaptions bool
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.to, "to", "t", "", "Target language (BCP 47, e.g. es or pt-BR)")
	cmd.Flags().StringVarP(&f.from, "from", "f", "auto", "Source language, or auto to detect")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Subtitle mode: burn, soft, or sidecar (default from config)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&f.fileName, "name", "", "Output file name stem (default from the video title)")
	cmd.Flags().StringVar(&f.jobID, "id", "", "Job ID (default: random UUID)")
	_ = cmd.MarkFlagRequired("to")
}

func (f *jobFlags) build(cfg *config.Config, source string) (job.Job, error) {
	var mode job.SubtitleMode
	if strings.TrimSpace(f.mode) != "" {
		parsed, err := job.ParseSubtitleMode(f.mode)
		if err != nil {
			return job.Job{}, err
		}
		mode = parsed
	}
	outputDir := strings.TrimSpace(f.outputDir)
	if outputDir != "" {
		expanded, err := config.ExpandPath(outputDir)
		if err != nil {
			return job.Job{}, fmt.Errorf("resolve output dir: %w", err)
		}
		outputDir = expanded
	}
	return job.Prepare(job.Job{
		ID:             strings.TrimSpace(f.jobID),
		Source:         source,
		SourceLanguage: f.from,
		TargetLanguage: f.to,
		Output: job.OutputOptions{
			Directory:    outputDir,
			FileName:     f.fileName,
			SubtitleMode: mode,
		},
	}, job.Defaults{
		OutputDirectory: cfg.Paths.OutputDir,
		SubtitleMode:    job.SubtitleMode(cfg.Rendering.SubtitleMode),
	}, time.Now())
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Download a video and add translated subtitles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if flags.noCaptions {
				cfg.Download.PreferCaptions = false
			}
			j, err := flags.build(cfg, args[0])
			if err != nil {
				return err
			}
			return executeJob(cmd, ctx, j, nil)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.noCaptions, "no-captions", false, "Always transcribe, even when the video has captions")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Continue a failed or cancelled job from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			cp, err := store.Load(jobID)
			if err != nil {
				return err
			}
			if cp == nil {
				return fmt.Errorf("no usable checkpoint for job %s (see `lingocast checkpoints show %s`)", jobID, jobID)
			}
			return executeJob(cmd, ctx, cp.Job, cp)
		},
	}
}

// executeJob runs j to completion while holding its run lock, printing events
// as they arrive. SIGINT and SIGTERM cancel the run cooperatively.
func executeJob(cmd *cobra.Command, ctx *commandContext, j job.Job, cp *checkpoint.Checkpoint) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger := ctx.loggerValue()

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []workflow.Option
	hist, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.history_db"),
			logging.String(logging.FieldImpact, "this run is not recorded in history"),
		)
	} else {
		defer hist.Close()
		if n, err := hist.MarkAbandoned(signalCtx, runningJobs(cfg)...); err != nil {
			logger.Warn("mark abandoned runs failed", logging.Error(err))
		} else if n > 0 {
			logger.Info("marked abandoned runs", logging.Int64("count", n))
		}
		opts = append(opts, workflow.WithRecorder(hist))
	}

	lock, err := acquireRunLock(cfg, j.ID)
	if err != nil {
		return err
	}
	defer releaseRunLock(lock)

	cleaned := staging.CleanStale(cfg.Paths.WorkDir, time.Duration(cfg.Workflow.StaleWorkDirHours)*time.Hour, time.Now(), logger)
	for _, e := range cleaned.Errors {
		logger.Debug("stale work dir not removed", logging.String("path", e.Path), logging.Error(e.Error))
	}

	store, err := ctx.checkpointStore()
	if err != nil {
		return err
	}
	orchestrator := newOrchestrator(cfg, store, staging.NewTracker(), logger, opts...)

	out := cmd.OutOrStdout()
	if !ctx.jsonOutput() {
		fmt.Fprintf(out, "Job %s: %s -> %s\n", j.ID, j.Source, j.TargetLanguage)
	}
	run := orchestrator.Execute(signalCtx, j, cp)
	printer := newEventPrinter(out, ctx.jsonOutput())
	var last workflow.Event
	for e := range run.Events() {
		printer.handle(e)
		last = e
	}
	if last == nil || !workflow.IsTerminal(last) {
		last = run.Wait()
	}
	notifyOutcome(notifications.NewService(cfg), cfg.NotifyTimeout(), logger, run.Title(), j, last)
	return outcomeError(last)
}

// notifyOutcome publishes completed and failed runs. Cancelled runs are not
// announced. The run context may already be cancelled, so a fresh one is used.
func notifyOutcome(svc notifications.Service, timeout time.Duration, logger *slog.Logger, title string, j job.Job, e workflow.Event) {
	if title == "" {
		title = j.Source
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	switch ev := e.(type) {
	case workflow.Complete:
		err = svc.NotifyRunCompleted(ctx, title, ev.Result)
	case workflow.Error:
		err = svc.NotifyRunFailed(ctx, title, notifications.Failure{
			Stage:      ev.Stage.String(),
			Code:       string(ev.Code),
			Message:    ev.Message,
			Suggestion: ev.Suggestion,
		})
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
