package workflow

import (
	"context"
	"fmt"

	"lingocast/internal/checkpoint"
	"lingocast/internal/failure"
	"lingocast/internal/job"
	"lingocast/internal/language"
	"lingocast/internal/services/ffmpeg"
	"lingocast/internal/stage"
	"lingocast/internal/subtitles"
)

// Each executor returns the path of the artifact it produced.

func (o *Orchestrator) runDownload(ctx context.Context, st *runState) stage.Result[string] {
	dir, err := st.scratch(stage.Download)
	if err != nil {
		return o.stageFailure(stage.Download, err)
	}
	res := runLadder(ctx, o, st, stage.Download, o.downloadLadder(), func(ctx context.Context, format string, progress stage.ProgressFunc) (string, error) {
		path, err := o.collab.Downloader.Download(ctx, st.run.tok, st.job.Source, format, dir, progress)
		if err != nil {
			return "", err
		}
		return st.keep(path)
	})
	if ok, path := succeeded(res); ok {
		st.artifacts[checkpoint.ArtifactMedia] = path
	}
	return res
}

func (o *Orchestrator) runCaptionCheck(ctx context.Context, st *runState) stage.Result[string] {
	st.metadata[metaCaptionsUsed] = "false"
	if !o.cfg.Download.PreferCaptions {
		return stage.Skipped[string]{Stage: stage.CaptionCheck, Reason: "caption lookup disabled"}
	}
	track, ok := st.video.CaptionLanguage(st.job.SourceLanguage, true)
	if !ok {
		return stage.Skipped[string]{Stage: stage.CaptionCheck, Reason: "no caption track for the source language"}
	}
	dir, err := st.scratch(stage.CaptionCheck)
	if err != nil {
		return o.stageFailure(stage.CaptionCheck, err)
	}

	res := runLadder(ctx, o, st, stage.CaptionCheck, singleEntry(track), func(ctx context.Context, track string, progress stage.ProgressFunc) (*subtitles.Subtitles, error) {
		progress.Report(-1, "fetching captions "+track)
		return o.collab.Downloader.ExtractCaptions(ctx, st.run.tok, st.job.Source, track, dir)
	})

	switch r := res.(type) {
	case stage.Success[*subtitles.Subtitles]:
		if r.Data.Len() == 0 {
			return stage.Skipped[string]{Stage: stage.CaptionCheck, Reason: "caption track " + track + " is empty"}
		}
		path, err := st.writeSubtitles("source", r.Data)
		if err != nil {
			return o.stageFailure(stage.CaptionCheck, err)
		}
		st.source = r.Data
		st.artifacts[checkpoint.ArtifactSourceSubtitles] = path
		st.metadata[metaCaptionsUsed] = "true"
		st.metadata[metaSourceLanguage] = language.Normalize(r.Data.Language)
		return stage.Success[string]{Data: path, Stage: stage.CaptionCheck, Duration: r.Duration}
	case stage.Failure[*subtitles.Subtitles]:
		pe, _ := failure.As(r.Err)
		if pe != nil && pe.Code == failure.CodeCancelled {
			return stage.Map(res, func(*subtitles.Subtitles) string { return "" })
		}
		st.run.journal.Add(ctx, LogEvent{
			Level:   LevelWarning,
			Kind:    LogCaptionWarning,
			Stage:   stage.CaptionCheck,
			Message: "caption lookup failed; transcribing instead",
			Details: map[string]string{"error": errorText(r.Err)},
		})
		return stage.Skipped[string]{Stage: stage.CaptionCheck, Reason: "caption lookup failed"}
	}
	return stage.Map(res, func(*subtitles.Subtitles) string { return "" })
}

func (o *Orchestrator) runTranscription(ctx context.Context, st *runState) stage.Result[string] {
	if st.metadata[metaCaptionsUsed] == "true" {
		if _, ok := st.artifacts[checkpoint.ArtifactSourceSubtitles]; ok {
			return stage.Skipped[string]{Stage: stage.Transcription, Reason: "captions available"}
		}
	}
	mediaPath, ok := st.artifacts[checkpoint.ArtifactMedia]
	if !ok {
		return o.stageFailure(stage.Transcription, fmt.Errorf("missing %s artifact", checkpoint.ArtifactMedia))
	}
	dir, err := st.scratch(stage.Transcription)
	if err != nil {
		return o.stageFailure(stage.Transcription, err)
	}

	res := runLadder(ctx, o, st, stage.Transcription, transcriptionLadder(st.plan.TranscriptionModel), func(ctx context.Context, model string, progress stage.ProgressFunc) (string, error) {
		subs, err := o.collab.Transcriber.Transcribe(ctx, st.run.tok, mediaPath, st.job.SourceLanguage, model, dir, progress)
		if err != nil {
			return "", err
		}
		if subs.Language == "" {
			subs.Language = st.sourceLanguage()
		}
		path, err := st.writeSubtitles("source", subs)
		if err != nil {
			return "", err
		}
		st.source = subs
		st.metadata[metaTranscribeModel] = model
		if lang := language.Normalize(subs.Language); lang != "" {
			st.metadata[metaSourceLanguage] = lang
		}
		return path, nil
	})
	if ok, path := succeeded(res); ok {
		st.artifacts[checkpoint.ArtifactSourceSubtitles] = path
	}
	return res
}

func (o *Orchestrator) runTranslation(ctx context.Context, st *runState) stage.Result[string] {
	source, err := st.loadSubtitles(&st.source, checkpoint.ArtifactSourceSubtitles)
	if err != nil {
		return o.stageFailure(stage.Translation, err)
	}
	reason := "source and target languages match"
	if !st.plan.SkipTranslation && st.detectedMatchesTarget() {
		st.plan.SkipTranslation = true
		reason = "detected source language is already " + language.DisplayName(st.job.TargetLanguage)
	}
	if st.plan.SkipTranslation {
		st.translated = source
		st.artifacts[checkpoint.ArtifactTranslatedSubtitles] = st.artifacts[checkpoint.ArtifactSourceSubtitles]
		return stage.Skipped[string]{Stage: stage.Translation, Reason: reason}
	}

	sourceLang := st.sourceLanguage()
	target := language.Normalize(st.job.TargetLanguage)
	res := runLadder(ctx, o, st, stage.Translation, o.translationLadder(), func(ctx context.Context, model string, progress stage.ProgressFunc) (string, error) {
		out, err := o.collab.Translator.Translate(ctx, st.run.tok, source, sourceLang, target, model, progress)
		if err != nil {
			return "", err
		}
		if out.Language == "" {
			out.Language = target
		}
		path, err := st.writeSubtitles("translated", out)
		if err != nil {
			return "", err
		}
		st.translated = out
		st.metadata[metaTranslationModel] = model
		return path, nil
	})
	if ok, path := succeeded(res); ok {
		st.artifacts[checkpoint.ArtifactTranslatedSubtitles] = path
	}
	return res
}

func (o *Orchestrator) runRendering(ctx context.Context, st *runState) stage.Result[string] {
	subs, err := st.loadSubtitles(&st.translated, checkpoint.ArtifactTranslatedSubtitles)
	if err != nil {
		return o.stageFailure(stage.Rendering, err)
	}
	mediaPath, ok := st.artifacts[checkpoint.ArtifactMedia]
	if !ok {
		return o.stageFailure(stage.Rendering, fmt.Errorf("missing %s artifact", checkpoint.ArtifactMedia))
	}
	dir, err := st.scratch(stage.Rendering)
	if err != nil {
		return o.stageFailure(stage.Rendering, err)
	}

	res := runLadder(ctx, o, st, stage.Rendering, o.renderLadder(), func(ctx context.Context, encoder string, progress stage.ProgressFunc) (job.Result, error) {
		result, err := o.collab.Renderer.Render(ctx, st.run.tok, ffmpeg.Request{
			MediaPath:      mediaPath,
			Subtitles:      subs,
			Mode:           st.job.Output.SubtitleMode,
			Encoder:        encoder,
			OutputPath:     st.plan.OutputPath,
			WorkDir:        dir,
			SourceLanguage: st.sourceLanguage(),
			Translated:     !st.plan.SkipTranslation,
		}, progress)
		if err == nil {
			st.metadata[metaEncoder] = encoder
		}
		return result, err
	})
	return stage.Map(res, func(r job.Result) string {
		st.result = r
		st.artifacts[checkpoint.ArtifactOutput] = r.OutputPath
		return r.OutputPath
	})
}

// stageFailure classifies an error raised by the orchestrator itself.
func (o *Orchestrator) stageFailure(s stage.Stage, err error) stage.Result[string] {
	pe := o.mapper.Map(err, s)
	return stage.Failure[string]{Stage: s, Err: pe, Strategy: o.mapper.RecoveryStrategy(pe), Attempt: 1}
}

func succeeded(res stage.Result[string]) (bool, string) {
	if r, ok := res.(stage.Success[string]); ok {
		return true, r.Data
	}
	return false, ""
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
