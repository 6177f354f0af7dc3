package whisperx

import "time"

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// UVXBinary launches WhisperX without a managed virtualenv.
	UVXBinary string
	// Package is the Python package providing the whisperx entry point.
	Package      string
	FFmpegBinary string
	// Model is used when a call does not name one.
	Model       string
	CUDAEnabled bool
	// ComputeType applies to CPU runs; CUDA uses the WhisperX default.
	ComputeType string
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD.
	HFToken string
	Timeout time.Duration
}

// WhisperX configuration constants.
const (
	DefaultModel      = "large-v3"
	DefaultPackage    = "whisperx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "10"
	BestOf            = "10"
	Temperature       = "0.0"
	Patience          = "1.0"
	SegmentResolution = "sentence"
	OutputFormat      = "srt"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "int8"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)

func (c Config) withDefaults() Config {
	if c.UVXBinary == "" {
		c.UVXBinary = UVXCommand
	}
	if c.Package == "" {
		c.Package = DefaultPackage
	}
	if c.FFmpegBinary == "" {
		c.FFmpegBinary = FFmpegCommand
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.ComputeType == "" {
		c.ComputeType = CPUComputeType
	}
	if c.VADMethod == "" {
		c.VADMethod = VADMethodSilero
	}
	return c
}
