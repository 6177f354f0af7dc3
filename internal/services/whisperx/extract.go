package whisperx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lingocast/internal/cancellation"
	"lingocast/internal/procexec"
)

// buildExtractArgs produces the ffmpeg arguments for a mono 16kHz WAV
// extraction of the first audio stream.
func buildExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

// ExtractAudio writes the first audio stream of source to dest as a WAV file
// suitable for WhisperX.
func ExtractAudio(ctx context.Context, tok *cancellation.Token, runner procexec.Runner, ffmpegBinary, source, dest string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return errors.New("extract audio: source and destination required")
	}
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	err := runner.Run(ctx, tok, procexec.Request{
		Binary: ffmpegBinary,
		Args:   buildExtractArgs(source, dest),
	})
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}
