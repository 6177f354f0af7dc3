package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/fileutil"
	"lingocast/internal/job"
	"lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/media/ffprobe"
	"lingocast/internal/procexec"
	"lingocast/internal/services"
	"lingocast/internal/stage"
	"lingocast/internal/subtitles"
)

const (
	defaultFFmpeg   = "ffmpeg"
	defaultEncoder  = "libx264"
	defaultPreset   = "medium"
	defaultCRF      = 20
	renderStem      = "render"
	subtitleFileFmt = "subtitles.%s.srt"
)

// Config captures ffmpeg settings.
type Config struct {
	Binary      string
	ProbeBinary string
	CRF         int
	Preset      string
	Timeout     time.Duration
}

// Request describes one render.
type Request struct {
	MediaPath  string
	Subtitles  *subtitles.Subtitles
	Mode       job.SubtitleMode
	Encoder    string
	OutputPath string
	// WorkDir holds the subtitle file and the in-progress output.
	WorkDir        string
	SourceLanguage string
	Translated     bool
}

// Renderer produces the final video with ffmpeg.
type Renderer struct {
	cfg    Config
	runner procexec.Runner
	logger *slog.Logger
	probe  func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewRenderer constructs a Renderer. A nil runner uses procexec.NewRunner.
func NewRenderer(cfg Config, runner procexec.Runner, logger *slog.Logger) *Renderer {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = defaultFFmpeg
	}
	if strings.TrimSpace(cfg.ProbeBinary) == "" {
		cfg.ProbeBinary = ProbeBinaryFor(cfg.Binary)
	}
	if cfg.CRF <= 0 {
		cfg.CRF = defaultCRF
	}
	if cfg.Preset == "" {
		cfg.Preset = defaultPreset
	}
	if runner == nil {
		runner = procexec.NewRunner()
	}
	return &Renderer{
		cfg:    cfg,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "renderer"),
		probe:  ffprobe.Inspect,
	}
}

// ProbeBinaryFor returns the ffprobe that ships next to ffmpegBinary.
func ProbeBinaryFor(ffmpegBinary string) string {
	dir, base := filepath.Split(ffmpegBinary)
	if base == "" || !strings.Contains(base, "ffmpeg") {
		return "ffprobe"
	}
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

// Render writes req.OutputPath and returns the artifact description.
func (r *Renderer) Render(ctx context.Context, tok *cancellation.Token, req Request, progress stage.ProgressFunc) (job.Result, error) {
	if err := validate(req); err != nil {
		return job.Result{}, err
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return job.Result{}, fmt.Errorf("render: ensure work dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return job.Result{}, fmt.Errorf("render: ensure output dir: %w", err)
	}

	lang := language.Normalize(req.Subtitles.Language)
	subName := fmt.Sprintf(subtitleFileFmt, textOr(lang, "und"))
	subPath := filepath.Join(req.WorkDir, subName)
	if err := subtitles.WriteFile(subPath, req.Subtitles); err != nil {
		return job.Result{}, fmt.Errorf("render: %w", err)
	}

	var inputDuration time.Duration
	if probed, err := r.probe(ctx, r.cfg.ProbeBinary, req.MediaPath); err == nil {
		inputDuration = probed.Duration()
	} else {
		r.logger.Debug("input probe failed; progress will be coarse", logging.Error(err))
	}

	tmpOutput := filepath.Join(req.WorkDir, renderStem+filepath.Ext(req.OutputPath))
	_ = os.Remove(tmpOutput)
	progress.Report(0, fmt.Sprintf("rendering (%s)", req.Mode))

	if req.Mode == job.SubtitleSidecar && strings.EqualFold(filepath.Ext(req.MediaPath), filepath.Ext(req.OutputPath)) {
		if err := fileutil.CopyFileVerified(req.MediaPath, tmpOutput); err != nil {
			return job.Result{}, services.Wrap(services.ErrExternalTool, "rendering", "copy media", "", err)
		}
	} else {
		args := r.buildArgs(req, subName, tmpOutput)
		err := r.runner.Run(ctx, tok, procexec.Request{
			Binary:   r.cfg.Binary,
			Args:     args,
			Dir:      req.WorkDir,
			Timeout:  r.cfg.Timeout,
			OnStdout: progressParser(inputDuration, progress),
		})
		if err != nil {
			_ = os.Remove(tmpOutput)
			return job.Result{}, services.Wrap(services.ErrExternalTool, "rendering", "ffmpeg", "encoder "+r.encoder(req), err)
		}
	}

	if err := r.verify(ctx, req.Mode, tmpOutput); err != nil {
		_ = os.Remove(tmpOutput)
		return job.Result{}, err
	}
	if err := fileutil.MoveFile(tmpOutput, req.OutputPath); err != nil {
		return job.Result{}, fmt.Errorf("render: move output into place: %w", err)
	}

	result := job.Result{
		OutputPath:     req.OutputPath,
		SubtitleMode:   req.Mode,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: lang,
		CueCount:       req.Subtitles.Len(),
		Translated:     req.Translated,
	}
	if req.Mode == job.SubtitleSidecar {
		sidecar := strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + ".srt"
		if err := subtitles.WriteFile(sidecar, req.Subtitles); err != nil {
			return job.Result{}, fmt.Errorf("render: write sidecar: %w", err)
		}
		result.SubtitlePath = sidecar
	}
	if info, err := os.Stat(req.OutputPath); err == nil {
		result.SizeBytes = info.Size()
	}
	progress.Report(100, "render complete")
	return result, nil
}

func validate(req Request) error {
	var problem string
	switch {
	case strings.TrimSpace(req.MediaPath) == "":
		problem = "media path required"
	case req.Subtitles.Len() == 0:
		problem = "subtitles required"
	case strings.TrimSpace(req.OutputPath) == "":
		problem = "output path required"
	case strings.TrimSpace(req.WorkDir) == "":
		problem = "work dir required"
	}
	if problem == "" {
		if _, err := job.ParseSubtitleMode(string(req.Mode)); err != nil {
			problem = err.Error()
		}
	}
	if problem != "" {
		return services.Wrap(services.ErrValidation, "rendering", "render", problem, nil)
	}
	return nil
}

func (r *Renderer) encoder(req Request) string {
	return textOr(strings.TrimSpace(req.Encoder), defaultEncoder)
}

// buildArgs returns the ffmpeg arguments for req. Paths to the subtitle file
// are relative to the work dir so the subtitles filter needs no escaping.
func (r *Renderer) buildArgs(req Request, subName, output string) []string {
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error", "-progress", "pipe:1", "-nostats", "-i", req.MediaPath}
	switch req.Mode {
	case job.SubtitleBurn:
		args = append(args,
			"-map", "0:v:0", "-map", "0:a?",
			"-vf", "subtitles="+subName+":charenc=UTF-8",
		)
		args = append(args, r.encoderArgs(r.encoder(req))...)
		args = append(args, "-pix_fmt", "yuv420p", "-c:a", "aac", "-b:a", "192k")
	case job.SubtitleSoft:
		lang := language.ToISO3(req.Subtitles.Language)
		args = append(args,
			"-i", subName,
			"-map", "0:v:0", "-map", "0:a?", "-map", "1:0",
			"-c:v", "copy", "-c:a", "aac", "-b:a", "192k", "-c:s", "mov_text",
			"-metadata:s:s:0", "language="+textOr(lang, "und"),
			"-disposition:s:0", "default",
		)
	case job.SubtitleSidecar:
		args = append(args, "-map", "0:v:0", "-map", "0:a?", "-c:v", "copy", "-c:a", "aac", "-b:a", "192k")
	}
	return append(args, "-movflags", "+faststart", output)
}

func (r *Renderer) encoderArgs(encoder string) []string {
	args := []string{"-c:v", encoder}
	switch {
	case encoder == "libx264" || encoder == "libx265":
		args = append(args, "-crf", strconv.Itoa(r.cfg.CRF), "-preset", r.cfg.Preset)
	case strings.HasSuffix(encoder, "_nvenc"):
		args = append(args, "-cq", strconv.Itoa(r.cfg.CRF))
	}
	return args
}

// verify checks the rendered file has a video stream and, for soft
// subtitles, a subtitle stream.
func (r *Renderer) verify(ctx context.Context, mode job.SubtitleMode, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "rendering", "verify output", "malformed render: output missing or empty", err)
	}
	probed, err := r.probe(ctx, r.cfg.ProbeBinary, path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "rendering", "verify output", "malformed render", err)
	}
	if probed.Count("video") == 0 {
		return services.Wrap(services.ErrExternalTool, "rendering", "verify output", "malformed render: no video stream", nil)
	}
	if mode == job.SubtitleSoft && probed.Count("subtitle") == 0 {
		return services.Wrap(services.ErrExternalTool, "rendering", "verify output", "malformed render: subtitle track missing", nil)
	}
	return nil
}

// progressParser converts `-progress pipe:1` key=value lines into percentages
// of the input duration.
func progressParser(total time.Duration, progress stage.ProgressFunc) func(string) {
	return func(line string) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			return
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// ffmpeg reports both keys in microseconds.
			micros, err := strconv.ParseInt(value, 10, 64)
			if err != nil || micros < 0 || total <= 0 {
				return
			}
			done := time.Duration(micros) * time.Microsecond
			progress.Report(float64(done)*100/float64(total), "rendering")
		case "progress":
			if value == "end" {
				progress.Report(100, "rendering")
			}
		}
	}
}

// HealthCheck reports whether ffmpeg and ffprobe can be found.
func (r *Renderer) HealthCheck(context.Context) stage.Health {
	for _, binary := range []string{r.cfg.Binary, r.cfg.ProbeBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("ffmpeg", fmt.Sprintf("%s not found in PATH", binary))
		}
	}
	return stage.Healthy("ffmpeg")
}

func textOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
