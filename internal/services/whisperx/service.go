package whisperx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"lingocast/internal/cancellation"
	langpkg "lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/procexec"
	"lingocast/internal/services"
	"lingocast/internal/stage"
	"lingocast/internal/subtitles"
)

// Share of the stage progress bar given to audio extraction.
const extractShare = 5.0

var (
	progressPattern = regexp.MustCompile(`(?i)progress:\s*([0-9]+(?:\.[0-9]+)?)\s*%`)
	detectedPattern = regexp.MustCompile(`(?i)detected language:\s*([a-z]{2,3})\b`)
)

// Service provides WhisperX transcription.
type Service struct {
	cfg    Config
	runner procexec.Runner
	logger *slog.Logger
}

// NewService creates a WhisperX service. A nil runner uses procexec.NewRunner.
func NewService(cfg Config, runner procexec.Runner, logger *slog.Logger) *Service {
	if runner == nil {
		runner = procexec.NewRunner()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		runner: runner,
		logger: logging.NewComponentLogger(logger, "whisperx"),
	}
}

// Model returns the configured default model.
func (s *Service) Model() string {
	return s.cfg.Model
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// Transcribe extracts audio from mediaPath into workDir and runs WhisperX
// with model. An empty language lets WhisperX detect it; the detected code is
// reported on the returned subtitles.
func (s *Service) Transcribe(ctx context.Context, tok *cancellation.Token, mediaPath, language, model, workDir string, progress stage.ProgressFunc) (*subtitles.Subtitles, error) {
	if strings.TrimSpace(mediaPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcription", "transcribe", "media path required", nil)
	}
	if strings.TrimSpace(workDir) == "" {
		workDir = filepath.Dir(mediaPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: ensure work dir: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = s.cfg.Model
	}

	audioPath := filepath.Join(workDir, "audio.wav")
	progress.Report(0, "extracting audio")
	if err := ExtractAudio(ctx, tok, s.runner, s.cfg.FFmpegBinary, mediaPath, audioPath); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "extract audio", "", err)
	}
	progress.Report(extractShare, "audio extracted")

	detected := ""
	onLine := func(line string) {
		if m := detectedPattern.FindStringSubmatch(line); m != nil {
			detected = langpkg.Normalize(m[1])
		}
		if m := progressPattern.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
				progress.Report(extractShare+pct*(100-extractShare)/100, "transcribing with "+model)
			}
		}
	}

	s.logger.Debug("whisperx transcription starting",
		logging.String("model", model),
		logging.String("language", language),
		logging.Bool("cuda", s.cfg.CUDAEnabled),
	)
	err := s.runner.Run(ctx, tok, procexec.Request{
		Binary:   s.cfg.UVXBinary,
		Args:     s.buildArgs(audioPath, workDir, language, model),
		Env:      whisperEnv(),
		Timeout:  s.cfg.Timeout,
		OnStdout: onLine,
		OnStderr: onLine,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "model "+model, annotateKilled(tok, err))
	}

	srtPath := filepath.Join(workDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".srt")
	subs, err := subtitles.ReadFile(srtPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "read output", "malformed whisperx output", err)
	}
	subs.Origin = subtitles.OriginTranscription
	subs.Language = langpkg.Normalize(language)
	if subs.Language == "" {
		subs.Language = detected
	}
	progress.Report(100, fmt.Sprintf("transcribed %d cues", subs.Len()))
	return subs, nil
}

// annotateKilled marks processes killed by the kernel (SIGKILL without a
// cancellation) as memory exhaustion so the model ladder steps down.
func annotateKilled(tok *cancellation.Token, err error) error {
	var exitErr *procexec.ExitError
	if !errors.As(err, &exitErr) || tok.Cancelled() {
		return err
	}
	if exitErr.Code == 137 || exitErr.Code == -1 {
		return fmt.Errorf("process killed, likely out of memory: %w", err)
	}
	return err
}

// whisperEnv forces legacy torch.load behaviour so WhisperX and pyannote can
// load their checkpoints under torch 2.6+.
func whisperEnv() []string {
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") != "" {
		return nil
	}
	return append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language, model string) []string {
	args := make([]string, 0, 48)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	if s.cfg.Package != DefaultPackage {
		args = append(args, "--from", s.cfg.Package)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
		"--print_progress", "True",
	)

	args = append(args, "--vad_method", s.cfg.VADMethod)
	if s.cfg.VADMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", s.cfg.ComputeType)
	}

	return args
}

// HealthCheck reports whether uvx and ffmpeg can be found.
func (s *Service) HealthCheck(context.Context) stage.Health {
	for _, binary := range []string{s.cfg.UVXBinary, s.cfg.FFmpegBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("whisperx", fmt.Sprintf("%s not found in PATH", binary))
		}
	}
	return stage.Healthy("whisperx")
}
