package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/checkpoint"
	"lingocast/internal/config"
	"lingocast/internal/failure"
	"lingocast/internal/job"
	"lingocast/internal/logging"
	"lingocast/internal/media"
	"lingocast/internal/preflight"
	"lingocast/internal/services/ffmpeg"
	"lingocast/internal/stage"
	"lingocast/internal/staging"
	"lingocast/internal/subtitles"
)

// Downloader fetches media and uploader captions.
type Downloader interface {
	Download(ctx context.Context, tok *cancellation.Token, ref, format, destDir string, progress stage.ProgressFunc) (string, error)
	// ExtractCaptions returns nil, nil when the track has no usable captions.
	ExtractCaptions(ctx context.Context, tok *cancellation.Token, ref, track, destDir string) (*subtitles.Subtitles, error)
}

// Prober fetches source metadata.
type Prober interface {
	Probe(ctx context.Context, ref string) (media.VideoInfo, error)
}

// Transcriber produces source-language subtitles from media.
type Transcriber interface {
	Transcribe(ctx context.Context, tok *cancellation.Token, mediaPath, language, model, workDir string, progress stage.ProgressFunc) (*subtitles.Subtitles, error)
}

// Translator translates a subtitle set.
type Translator interface {
	Translate(ctx context.Context, tok *cancellation.Token, subs *subtitles.Subtitles, source, target, model string, progress stage.ProgressFunc) (*subtitles.Subtitles, error)
}

// Renderer writes the final artifact.
type Renderer interface {
	Render(ctx context.Context, tok *cancellation.Token, req ffmpeg.Request, progress stage.ProgressFunc) (job.Result, error)
}

// Collaborators bundles the external services a run drives.
type Collaborators struct {
	Prober      Prober
	Downloader  Downloader
	Transcriber Transcriber
	Translator  Translator
	Renderer    Renderer
}

// Orchestrator executes jobs stage by stage with fallback ladders,
// checkpoints, and cooperative cancellation.
type Orchestrator struct {
	cfg         *config.Config
	collab      Collaborators
	checkpoints *checkpoint.Store
	tracker     *staging.Tracker
	mapper      *failure.Mapper
	checker     *preflight.Checker
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
	readMemory  func() (preflight.MemoryStats, error)

	preflightOpts []preflight.Option
}

// Option configures optional Orchestrator behavior.
type Option func(*Orchestrator)

// WithRecorder journals runs and attempts to a history store.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithClock overrides the clock used for journal timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPreflightOptions passes options to the preflight checker.
func WithPreflightOptions(opts ...preflight.Option) Option {
	return func(o *Orchestrator) {
		o.preflightOpts = append(o.preflightOpts, opts...)
	}
}

// WithMemoryReader replaces the memory sampler used by the memory monitor.
func WithMemoryReader(fn func() (preflight.MemoryStats, error)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.readMemory = fn
		}
	}
}

// NewOrchestrator wires an orchestrator. The tracker is the process-wide
// staging tracker shared by every concurrent run.
func NewOrchestrator(cfg *config.Config, collab Collaborators, store *checkpoint.Store, tracker *staging.Tracker, mapper *failure.Mapper, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tracker == nil {
		tracker = staging.NewTracker()
	}
	if mapper == nil {
		mapper = failure.NewMapper(failure.WithRetryDelays(cfg.RetryDelay(), cfg.RateLimitDelay()))
	}
	o := &Orchestrator{
		cfg:         cfg,
		collab:      collab,
		checkpoints: store,
		tracker:     tracker,
		mapper:      mapper,
		logger:      logging.NewComponentLogger(logger, "workflow"),
		now:         time.Now,
		readMemory:  preflight.ReadMemory,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.checker = preflight.NewChecker(cfg, collab.Prober, tracker, mapper, logger, o.preflightOpts...)
	return o
}

// Run is one execution of a job.
type Run struct {
	jobID   string
	events  chan Event
	tok     *cancellation.Token
	journal *Journal
	done    chan struct{}

	mu       sync.Mutex
	terminal Event
	title    string
}

const eventBuffer = 64

func newRun(jobID string, tok *cancellation.Token, journal *Journal) *Run {
	return &Run{
		jobID:   jobID,
		events:  make(chan Event, eventBuffer),
		tok:     tok,
		journal: journal,
		done:    make(chan struct{}),
	}
}

// JobID returns the job being executed.
func (r *Run) JobID() string { return r.jobID }

// Events returns the event stream. Exactly one terminal event is delivered,
// after which the channel is closed. Progress events are dropped when the
// consumer falls behind; the terminal event never is.
func (r *Run) Events() <-chan Event { return r.events }

// Cancel requests cooperative cancellation. It is safe to call repeatedly.
func (r *Run) Cancel() { r.tok.Cancel() }

// Title returns the video title once preflight has resolved it.
func (r *Run) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

func (r *Run) setTitle(title string) {
	r.mu.Lock()
	r.title = title
	r.mu.Unlock()
}

// Logs returns the run's journal.
func (r *Run) Logs() []LogEvent { return r.journal.Events() }

// Done is closed once the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes and returns its terminal event.
func (r *Run) Wait() Event {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminal
}

// emit delivers a progress event without blocking, keeping one slot free
// for the terminal event.
func (r *Run) emit(e Event) {
	if len(r.events) >= cap(r.events)-1 {
		return
	}
	select {
	case r.events <- e:
	default:
	}
}

func (r *Run) finish(e Event) {
	r.mu.Lock()
	if r.terminal != nil {
		r.mu.Unlock()
		return
	}
	r.terminal = e
	r.mu.Unlock()
	r.events <- e
	close(r.events)
	close(r.done)
}

// Execute starts j in a new goroutine. Passing a checkpoint resumes after its
// last completed stage. Cancelling ctx cancels the run.
func (o *Orchestrator) Execute(ctx context.Context, j job.Job, cp *checkpoint.Checkpoint) *Run {
	if ctx == nil {
		ctx = context.Background()
	}
	tok, stop := cancellation.FromContext(ctx)
	journal := NewJournal(o.logger, o.now)
	run := newRun(j.ID, tok, journal)
	go func() {
		defer stop()
		o.execute(ctx, run, j, cp)
	}()
	return run
}
