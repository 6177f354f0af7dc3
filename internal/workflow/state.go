package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lingocast/internal/checkpoint"
	"lingocast/internal/fileutil"
	"lingocast/internal/job"
	"lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/media"
	"lingocast/internal/preflight"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
	"lingocast/internal/subtitles"
)

// runState is the mutable state of one run. It is owned by the run goroutine.
type runState struct {
	run       *Run
	job       job.Job
	logger    *slog.Logger
	sampler   *logging.ProgressSampler
	tracker   *staging.Tracker
	workDir   string
	startedAt time.Time
	resumed   bool
	current   stage.Stage
	checked   bool
	historyID int64

	plan      preflight.Plan
	video     *media.VideoInfo
	artifacts map[string]string
	metadata  map[string]string

	source     *subtitles.Subtitles
	translated *subtitles.Subtitles
	result     job.Result
}

func (st *runState) restore(cp *checkpoint.Checkpoint) {
	for k, v := range cp.Artifacts {
		st.artifacts[k] = v
	}
	mergeMetadata(st.metadata, cp.Metadata)
	if video, ok := decodeVideo(cp.Metadata); ok {
		st.video = video
	}
}

func (st *runState) progressFor(s stage.Stage, option string) stage.ProgressFunc {
	return func(p stage.Progress) {
		if st.run.tok.Cancelled() {
			return
		}
		st.run.emit(Progress{Stage: s, Percent: p.Percent, Message: p.Message, Option: option})
		if st.sampler.ShouldLog(s.String(), p.Percent) {
			st.logger.Info("stage progress",
				logging.String(logging.FieldStage, s.String()),
				logging.Float64("percent", p.Percent),
				logging.String("message", p.Message),
			)
		}
	}
}

// scratch returns an empty per-stage directory inside the work dir. It is
// tracked as a temporary path until the stage succeeds.
func (st *runState) scratch(s stage.Stage) (string, error) {
	dir := filepath.Join(st.workDir, "."+s.String())
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("reset scratch dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	st.tracker.Track(st.job.ID, dir)
	return dir, nil
}

func (st *runState) dropScratch(s stage.Stage) {
	dir := filepath.Join(st.workDir, "."+s.String())
	st.tracker.Untrack(st.job.ID, dir)
	_ = os.RemoveAll(dir)
}

// keep moves a collaborator output out of scratch into the work dir.
func (st *runState) keep(path string) (string, error) {
	dest := filepath.Join(st.workDir, filepath.Base(path))
	if dest == path {
		return path, nil
	}
	if err := fileutil.MoveFile(path, dest); err != nil {
		return "", fmt.Errorf("keep %s: %w", filepath.Base(path), err)
	}
	return dest, nil
}

func (st *runState) writeSubtitles(name string, subs *subtitles.Subtitles) (string, error) {
	lang := language.Normalize(subs.Language)
	if lang == "" {
		lang = "und"
	}
	path := filepath.Join(st.workDir, fmt.Sprintf("%s.%s.srt", name, lang))
	if err := subtitles.WriteFile(path, subs); err != nil {
		return "", err
	}
	return path, nil
}

// loadSubtitles returns the cached set or reads the artifact from disk.
func (st *runState) loadSubtitles(cached **subtitles.Subtitles, key string) (*subtitles.Subtitles, error) {
	if *cached != nil {
		return *cached, nil
	}
	path, ok := st.artifacts[key]
	if !ok || path == "" {
		return nil, fmt.Errorf("missing %s artifact", key)
	}
	subs, err := subtitles.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if lang := st.subtitleLanguage(key); lang != "" && subs.Language == "" {
		subs.Language = lang
	}
	*cached = subs
	return subs, nil
}

func (st *runState) subtitleLanguage(key string) string {
	switch key {
	case checkpoint.ArtifactTranslatedSubtitles:
		if !st.plan.SkipTranslation {
			return language.Normalize(st.job.TargetLanguage)
		}
	}
	return st.sourceLanguage()
}

// sourceLanguage prefers the requested language, then the detected one, then
// the language the source declares.
func (st *runState) sourceLanguage() string {
	if st.job.SourceLanguage != "" {
		return language.Normalize(st.job.SourceLanguage)
	}
	if detected := st.metadata[metaSourceLanguage]; detected != "" {
		return language.Normalize(detected)
	}
	if st.video != nil {
		return language.Normalize(st.video.Language)
	}
	return ""
}

// detectedMatchesTarget reports whether an auto-detected source language
// turned out to be the target language.
func (st *runState) detectedMatchesTarget() bool {
	if st.job.SourceLanguage != "" {
		return false
	}
	detected := st.metadata[metaSourceLanguage]
	return detected != "" && language.Same(detected, st.job.TargetLanguage)
}

func (st *runState) title() string {
	if st.video != nil && st.video.Title != "" {
		return st.video.Title
	}
	return st.metadata[metaTitle]
}
