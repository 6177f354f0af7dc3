package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"lingocast/internal/config"
	"lingocast/internal/failure"
	"lingocast/internal/job"
	"lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/media"
	"lingocast/internal/services/whisperx"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
)

// Prober fetches source metadata without downloading media.
type Prober interface {
	Probe(ctx context.Context, ref string) (media.VideoInfo, error)
}

// NoticeLevel is the severity of a non-blocking finding.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice kinds.
const (
	KindOutputRenamed      = "output_renamed"
	KindTranslationSkipped = "translation_skipped"
	KindLowDiskSpace       = "low_disk_space"
	KindModelDegraded      = "model_degraded"
	KindMemoryUnchecked    = "memory_unchecked"
	KindDurationUnknown    = "duration_unknown"
)

// Notice is a non-blocking preflight finding the workflow journals.
type Notice struct {
	Level   NoticeLevel
	Kind    string
	Message string
}

// Plan is what preflight decided for a job.
type Plan struct {
	JobID              string
	Video              media.VideoInfo
	StartStage         stage.Stage
	OutputPath         string
	OutputRenamed      bool
	SkipTranslation    bool
	TranscriptionModel string
	Disk               DiskEstimate
	Memory             MemoryEstimate
	Notices            []Notice
}

// Summary renders the plan as short human readable lines.
func (p Plan) Summary() []string {
	lines := []string{
		fmt.Sprintf("Video: %s", p.Video.Summary()),
		fmt.Sprintf("Start stage: %s", p.StartStage),
		fmt.Sprintf("Output: %s", p.OutputPath),
		fmt.Sprintf("Disk: need %s, %s free (%s)", megabytes(p.Disk.RequiredMB), megabytes(p.Disk.AvailableMB), p.Disk.Status),
	}
	if p.Memory.Checked {
		lines = append(lines, fmt.Sprintf("Memory: model %s needs %s, %s available", p.Memory.Model, megabytes(p.Memory.RequiredMB), megabytes(p.Memory.AvailableMB)))
	} else {
		lines = append(lines, fmt.Sprintf("Transcription model: %s", p.TranscriptionModel))
	}
	if p.SkipTranslation {
		lines = append(lines, "Translation: skipped")
	}
	return lines
}

func megabytes(mb uint64) string {
	return humanize.IBytes(mb * 1024 * 1024)
}

// Request is one preflight evaluation.
type Request struct {
	Job   job.Job
	Start stage.Stage
	// Video skips probing when set. Resumed runs pass the metadata recorded
	// in the checkpoint.
	Video *media.VideoInfo
}

// Checker runs the resource preflight. It is safe for concurrent use when
// the tracker is shared between jobs.
type Checker struct {
	cfg            config.Preflight
	workDir        string
	model          string
	preferCaptions bool

	prober  Prober
	tracker *staging.Tracker
	mapper  *failure.Mapper
	logger  *slog.Logger

	freeDisk     func(path string) (uint64, error)
	readMemory   func() (MemoryStats, error)
	outputExists func(path string) bool
}

// Option customizes a Checker.
type Option func(*Checker)

// WithDiskProbe replaces the free space lookup.
func WithDiskProbe(fn func(path string) (uint64, error)) Option {
	return func(c *Checker) {
		if fn != nil {
			c.freeDisk = fn
		}
	}
}

// WithMemoryProbe replaces the memory lookup.
func WithMemoryProbe(fn func() (MemoryStats, error)) Option {
	return func(c *Checker) {
		if fn != nil {
			c.readMemory = fn
		}
	}
}

// WithOutputExists replaces the filesystem check used for output collisions.
func WithOutputExists(fn func(path string) bool) Option {
	return func(c *Checker) {
		c.outputExists = fn
	}
}

// NewChecker builds a Checker from the loaded configuration.
func NewChecker(cfg *config.Config, prober Prober, tracker *staging.Tracker, mapper *failure.Mapper, logger *slog.Logger, opts ...Option) *Checker {
	if tracker == nil {
		tracker = staging.NewTracker()
	}
	if mapper == nil {
		mapper = failure.NewMapper()
	}
	c := &Checker{
		cfg:            cfg.Preflight,
		workDir:        cfg.Paths.WorkDir,
		model:          cfg.Transcription.Model,
		preferCaptions: cfg.Download.PreferCaptions,
		prober:         prober,
		tracker:        tracker,
		mapper:         mapper,
		logger:         logging.NewComponentLogger(logger, "preflight"),
		freeDisk:       FreeDiskMB,
		readMemory:     ReadMemory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check evaluates req. On a blocking issue the reservations made for the
// job are released and the classified error is returned.
func (c *Checker) Check(ctx context.Context, req Request) (Plan, *failure.PipelineError) {
	start := req.Start
	if !start.Valid() {
		start = stage.First()
	}
	plan := Plan{JobID: req.Job.ID, StartStage: start}

	fail := func(pe *failure.PipelineError) (Plan, *failure.PipelineError) {
		c.tracker.Release(req.Job.ID)
		logging.WarnWithContext(c.logger, "preflight blocked job", "preflight_blocked",
			logging.String(logging.FieldJobID, req.Job.ID),
			logging.String(logging.FieldErrorCode, string(pe.Code)),
			logging.String(logging.FieldErrorHint, pe.Suggestion),
			logging.String(logging.FieldImpact, "no stage will run"),
		)
		return plan, pe
	}

	video, pe := c.checkVideo(ctx, req)
	if pe != nil {
		return fail(pe)
	}
	plan.Video = video
	if video.Duration <= 0 {
		plan.note(NoticeWarning, KindDurationUnknown, "video duration is unknown; disk estimate covers fixed overhead only")
	}

	if pe := c.checkOutput(req.Job, &plan); pe != nil {
		return fail(pe)
	}

	c.checkTranslation(req.Job, &plan)

	if pe := c.checkDisk(req.Job.ID, &plan); pe != nil {
		return fail(pe)
	}

	if pe := c.checkMemory(&plan, req.Job.SourceLanguage); pe != nil {
		return fail(pe)
	}

	c.logger.Info("preflight passed",
		logging.String(logging.FieldJobID, req.Job.ID),
		logging.String("start_stage", start.String()),
		logging.String("output", plan.OutputPath),
		logging.Uint64("disk_required_mb", plan.Disk.RequiredMB),
		logging.Uint64("disk_available_mb", plan.Disk.AvailableMB),
		logging.String("model", plan.TranscriptionModel),
		logging.Bool("skip_translation", plan.SkipTranslation),
	)
	return plan, nil
}

func (p *Plan) note(level NoticeLevel, kind, message string) {
	p.Notices = append(p.Notices, Notice{Level: level, Kind: kind, Message: message})
}

func (c *Checker) checkVideo(ctx context.Context, req Request) (media.VideoInfo, *failure.PipelineError) {
	var video media.VideoInfo
	if req.Video != nil {
		video = *req.Video
	} else {
		if c.prober == nil {
			return video, c.mapper.New(failure.CodeInvalidInput, stage.Download, "no prober configured")
		}
		info, err := c.prober.Probe(ctx, req.Job.Source)
		if err != nil {
			return video, c.mapper.Map(err, stage.Download)
		}
		video = info
	}

	switch {
	case video.IsLive:
		return video, c.mapper.New(failure.CodeLiveStream, stage.Download, failure.Detailf("live status %q", video.LiveStatus))
	case video.Restricted():
		return video, c.mapper.New(failure.CodePrivateVideo, stage.Download, failure.Detailf("availability %q", video.Availability))
	case c.cfg.MaxAgeLimit > 0 && video.AgeLimit >= c.cfg.MaxAgeLimit:
		return video, c.mapper.New(failure.CodeAgeRestricted, stage.Download, failure.Detailf("age limit %d", video.AgeLimit))
	}

	if video.Duration > 0 {
		minDur := time.Duration(c.cfg.MinDurationSeconds) * time.Second
		maxDur := time.Duration(c.cfg.MaxDurationSeconds) * time.Second
		if minDur > 0 && video.Duration < minDur {
			return video, c.mapper.New(failure.CodeVideoTooShort, stage.Download,
				failure.Detailf("duration %s is below the %s minimum", video.Duration, minDur))
		}
		if maxDur > 0 && video.Duration > maxDur {
			return video, c.mapper.New(failure.CodeVideoTooLong, stage.Download,
				failure.Detailf("duration %s exceeds the %s maximum", video.Duration, maxDur))
		}
	}
	return video, nil
}

func (c *Checker) checkOutput(j job.Job, plan *Plan) *failure.PipelineError {
	requested := j.OutputPath(plan.Video.Title)
	dir := filepath.Dir(requested)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		code := failure.CodeOutputPathInvalid
		if errors.Is(err, os.ErrPermission) {
			code = failure.CodePermissionDenied
		}
		return c.mapper.New(code, stage.Rendering, failure.Detailf("create output directory %s: %v", dir, err))
	}
	if info, err := os.Stat(requested); err == nil && info.IsDir() {
		return c.mapper.New(failure.CodeOutputPathInvalid, stage.Rendering, failure.Detailf("%s is a directory", requested))
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return c.mapper.New(failure.CodePermissionDenied, stage.Rendering, failure.Detailf("output directory %s is not writable: %v", dir, err))
	}

	claimed, renamed := c.tracker.ClaimOutput(j.ID, requested, c.outputExists)
	plan.OutputPath = claimed
	plan.OutputRenamed = renamed
	if renamed {
		plan.note(NoticeInfo, KindOutputRenamed,
			fmt.Sprintf("%s already exists; writing %s instead", filepath.Base(requested), filepath.Base(claimed)))
	}
	return nil
}

func (c *Checker) checkTranslation(j job.Job, plan *Plan) {
	source := strings.TrimSpace(j.SourceLanguage)
	if source == "" {
		source = plan.Video.Language
	}
	if source == "" || !language.Same(source, j.TargetLanguage) {
		return
	}
	plan.SkipTranslation = true
	plan.note(NoticeWarning, KindTranslationSkipped,
		fmt.Sprintf("source and target language are both %s; translation will be skipped", language.DisplayName(source)))
}

func (c *Checker) checkDisk(jobID string, plan *Plan) *failure.PipelineError {
	required := RequiredDiskMB(c.cfg, plan.Video.Minutes(), plan.StartStage)
	free, err := c.freeDisk(c.workDir)
	if err != nil {
		return c.mapper.New(failure.CodeOutputPathInvalid, plan.StartStage, failure.Detailf("read free space of %s: %v", c.workDir, err))
	}
	reserved := c.tracker.ReservedMB(jobID)
	available := uint64(0)
	if free > reserved {
		available = free - reserved
	}
	margin := uint64(max(c.cfg.LowSpaceMarginMB, 0))
	plan.Disk = DiskEstimate{
		Path:        c.workDir,
		RequiredMB:  required,
		AvailableMB: available,
		ReservedMB:  reserved,
		Status:      GradeDisk(required, available, margin),
	}

	switch plan.Disk.Status {
	case DiskInsufficient:
		return c.mapper.New(failure.CodeDiskFull, plan.StartStage,
			failure.Detailf("need %s in %s, %s available", megabytes(required), c.workDir, megabytes(available)))
	case DiskLowSpace:
		plan.note(NoticeWarning, KindLowDiskSpace,
			fmt.Sprintf("only %s free for an estimated %s; less than %s would remain", megabytes(available), megabytes(required), megabytes(margin)))
	}
	c.tracker.Reserve(jobID, required)
	return nil
}

func (c *Checker) checkMemory(plan *Plan, source string) *failure.PipelineError {
	requested := strings.TrimSpace(c.model)
	plan.TranscriptionModel = requested
	plan.Memory = MemoryEstimate{RequestedModel: requested, Model: requested}
	if plan.StartStage > stage.Transcription {
		return nil
	}
	base, known := whisperx.LookupModel(requested)
	if !known {
		plan.note(NoticeWarning, KindMemoryUnchecked, fmt.Sprintf("model %q is not in the catalog; memory was not checked", requested))
		return nil
	}

	stats, err := c.readMemory()
	if err != nil {
		plan.note(NoticeWarning, KindMemoryUnchecked, fmt.Sprintf("could not read memory: %v", err))
		return nil
	}
	headroom := uint64(max(c.cfg.MemoryHeadroomMB, 0))
	available := uint64(0)
	if stats.AvailableMB > headroom {
		available = stats.AvailableMB - headroom
	}
	plan.Memory.AvailableMB = available
	plan.Memory.Checked = true

	chosen, ok := SelectModel(requested, available)
	if !ok {
		if c.captionsLikely(plan, source) {
			plan.note(NoticeWarning, KindMemoryUnchecked,
				fmt.Sprintf("no transcription model fits in %s; relying on source captions", megabytes(available)))
			return nil
		}
		return c.mapper.New(failure.CodeInsufficientMemory, stage.Transcription,
			failure.Detailf("%s available after headroom, smallest model needs more", megabytes(available)))
	}
	plan.Memory.Model = chosen.Name
	plan.Memory.RequiredMB = chosen.MemoryMB
	plan.TranscriptionModel = chosen.Name
	if chosen.Name != base.Name {
		plan.Memory.Degraded = true
		plan.note(NoticeWarning, KindModelDegraded,
			fmt.Sprintf("model %s needs %s but only %s is available; using %s", requested, megabytes(base.MemoryMB), megabytes(available), chosen.Name))
	}
	return nil
}

// captionsLikely reports whether the caption check will probably make
// transcription unnecessary.
func (c *Checker) captionsLikely(plan *Plan, source string) bool {
	if !c.preferCaptions || plan.StartStage > stage.CaptionCheck {
		return false
	}
	_, ok := plan.Video.CaptionLanguage(source, true)
	return ok
}
