package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/checkpoint"
	"lingocast/internal/config"
	"lingocast/internal/failure"
	"lingocast/internal/job"
	"lingocast/internal/media"
	"lingocast/internal/preflight"
	"lingocast/internal/services/ffmpeg"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
	"lingocast/internal/subtitles"
	"lingocast/internal/testsupport"
	"lingocast/internal/workflow"
)

type stubProber struct {
	mu    sync.Mutex
	info  media.VideoInfo
	err   error
	calls int
}

func (p *stubProber) Probe(context.Context, string) (media.VideoInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.info, p.err
}

type stubDownloader struct {
	mu         sync.Mutex
	failures   map[string]error
	formats    []string
	progress   int
	captions   *subtitles.Subtitles
	captionErr error
	tracks     []string
}

func (d *stubDownloader) Download(_ context.Context, _ *cancellation.Token, _, format, destDir string, progress stage.ProgressFunc) (string, error) {
	d.mu.Lock()
	d.formats = append(d.formats, format)
	err := d.failures[format]
	updates := d.progress
	d.mu.Unlock()
	if err != nil {
		return "", err
	}
	for i := 1; i <= updates; i++ {
		progress.Report(float64(i)*100/float64(updates), "downloading")
	}
	path := filepath.Join(destDir, "video.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (d *stubDownloader) ExtractCaptions(_ context.Context, _ *cancellation.Token, _, track, _ string) (*subtitles.Subtitles, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracks = append(d.tracks, track)
	return d.captions, d.captionErr
}

func (d *stubDownloader) formatCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.formats...)
}

type stubTranscriber struct {
	mu       sync.Mutex
	failures map[string]error
	models   []string
	// block makes Transcribe wait for cancellation after signalling started.
	block   bool
	started chan struct{}
	once    sync.Once
	// lang is the detected language; empty means "en".
	lang string
}

func (s *stubTranscriber) Transcribe(_ context.Context, tok *cancellation.Token, _, _, model, _ string, progress stage.ProgressFunc) (*subtitles.Subtitles, error) {
	s.mu.Lock()
	s.models = append(s.models, model)
	err := s.failures[model]
	block := s.block
	s.mu.Unlock()
	if block {
		s.once.Do(func() { close(s.started) })
		<-tok.Done()
		return nil, cancellation.ErrCancelled
	}
	if err != nil {
		return nil, err
	}
	progress.Report(50, "transcribing")
	lang := s.lang
	if lang == "" {
		lang = "en"
	}
	return sampleSubtitles(lang, subtitles.OriginTranscription), nil
}

func (s *stubTranscriber) modelCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.models...)
}

type stubTranslator struct {
	mu       sync.Mutex
	failures map[string]error
	models   []string
}

func (s *stubTranslator) Translate(_ context.Context, _ *cancellation.Token, subs *subtitles.Subtitles, _, target, model string, _ stage.ProgressFunc) (*subtitles.Subtitles, error) {
	s.mu.Lock()
	s.models = append(s.models, model)
	err := s.failures[model]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	texts := make([]string, subs.Len())
	for i := range texts {
		texts[i] = "hola " + subs.Cues[i].Text
	}
	return subs.WithTexts(target, subtitles.OriginTranslation, texts)
}

func (s *stubTranslator) modelCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.models...)
}

type stubRenderer struct {
	mu       sync.Mutex
	failures map[string]error
	encoders []string
	requests []ffmpeg.Request
	panicMsg string
}

func (r *stubRenderer) Render(_ context.Context, _ *cancellation.Token, req ffmpeg.Request, _ stage.ProgressFunc) (job.Result, error) {
	r.mu.Lock()
	r.encoders = append(r.encoders, req.Encoder)
	r.requests = append(r.requests, req)
	err := r.failures[req.Encoder]
	panicMsg := r.panicMsg
	r.mu.Unlock()
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return job.Result{}, err
	}
	if err := os.WriteFile(req.OutputPath, []byte("rendered"), 0o644); err != nil {
		return job.Result{}, err
	}
	return job.Result{
		OutputPath:     req.OutputPath,
		SubtitleMode:   req.Mode,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.Subtitles.Language,
		CueCount:       req.Subtitles.Len(),
		SizeBytes:      int64(len("rendered")),
		Translated:     req.Translated,
	}, nil
}

func (r *stubRenderer) encoderCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.encoders...)
}

func sampleSubtitles(lang string, origin subtitles.Origin) *subtitles.Subtitles {
	return &subtitles.Subtitles{
		Language: lang,
		Origin:   origin,
		Cues: []subtitles.Cue{
			{Index: 1, Start: time.Second, End: 3 * time.Second, Text: "hello"},
			{Index: 2, Start: 4 * time.Second, End: 6 * time.Second, Text: "world"},
		},
	}
}

type harness struct {
	t           *testing.T
	cfg         *config.Config
	store       *checkpoint.Store
	tracker     *staging.Tracker
	prober      *stubProber
	downloader  *stubDownloader
	transcriber *stubTranscriber
	translator  *stubTranslator
	renderer    *stubRenderer
	job         job.Job
	opts        []workflow.Option
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Download.PreferCaptions = false
	cfg.Transcription.Model = "medium"
	cfg.Translation.Model = "model-a"
	cfg.Translation.FallbackModels = []string{"model-b"}
	cfg.Rendering.Encoder = "h264_nvenc"
	cfg.Rendering.SoftwareEncoder = "libx264"

	return &harness{
		t:       t,
		cfg:     cfg,
		store:   testsupport.MustCheckpointStore(t, cfg),
		tracker: staging.NewTracker(),
		prober: &stubProber{info: media.VideoInfo{
			ID:           "abc",
			Title:        "Field Notes",
			Duration:     10 * time.Minute,
			Language:     "en",
			Availability: media.AvailabilityPublic,
			Captions:     []string{"en"},
		}},
		downloader:  &stubDownloader{},
		transcriber: &stubTranscriber{started: make(chan struct{})},
		translator:  &stubTranslator{},
		renderer:    &stubRenderer{},
		job: job.Job{
			ID:             "job-1",
			Source:         "https://example.com/watch?v=abc",
			TargetLanguage: "es",
			Output: job.OutputOptions{
				Directory:    cfg.Paths.OutputDir,
				SubtitleMode: job.SubtitleBurn,
			},
		},
	}
}

func (h *harness) orchestrator() *workflow.Orchestrator {
	h.t.Helper()
	opts := append([]workflow.Option{
		workflow.WithPreflightOptions(
			preflight.WithDiskProbe(func(string) (uint64, error) { return 100000, nil }),
			preflight.WithMemoryProbe(func() (preflight.MemoryStats, error) {
				return preflight.MemoryStats{TotalMB: 32000, AvailableMB: 32000}, nil
			}),
		),
	}, h.opts...)
	return workflow.NewOrchestrator(h.cfg, workflow.Collaborators{
		Prober:      h.prober,
		Downloader:  h.downloader,
		Transcriber: h.transcriber,
		Translator:  h.translator,
		Renderer:    h.renderer,
	}, h.store, h.tracker, failure.NewMapper(failure.WithRetryDelays(0, 0)), nil, opts...)
}

// collect drains the event stream and returns every event with the terminal one last.
func collect(t *testing.T, run *workflow.Run) []workflow.Event {
	t.Helper()
	var events []workflow.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-run.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("run did not finish")
			return nil
		}
	}
}

func terminal(t *testing.T, events []workflow.Event) workflow.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	if !workflow.IsTerminal(last) {
		t.Fatalf("last event %T is not terminal", last)
	}
	for _, e := range events[:len(events)-1] {
		if workflow.IsTerminal(e) {
			t.Fatalf("terminal event %T before the end", e)
		}
	}
	return last
}

func logsOfKind(logs []workflow.LogEvent, kind workflow.LogKind) []workflow.LogEvent {
	var out []workflow.LogEvent
	for _, e := range logs {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
