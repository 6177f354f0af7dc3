package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lingocast/internal/cancellation"
	"lingocast/internal/language"
	"lingocast/internal/logging"
	"lingocast/internal/procexec"
	"lingocast/internal/services"
	"lingocast/internal/subtitles"
)

const captionStem = "captions"

// ExtractCaptions downloads the caption track named track (as listed by
// Probe) into destDir. Uploaded captions are preferred over automatic ones
// when both exist. It returns nil subtitles and a nil error when yt-dlp
// wrote no caption file.
func (c *Client) ExtractCaptions(ctx context.Context, tok *cancellation.Token, ref, track, destDir string) (*subtitles.Subtitles, error) {
	track = strings.TrimSpace(track)
	if track == "" {
		return nil, services.Wrap(services.ErrValidation, "caption_check", "extract captions", "caption language required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract captions: ensure destination: %w", err)
	}
	args := append(c.baseArgs(),
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", track,
		"--sub-format", "srt/vtt/best",
		"--convert-subs", "srt",
		"--output", filepath.Join(destDir, captionStem+".%(ext)s"),
		"--", ref,
	)
	err := c.runner.Run(ctx, tok, procexec.Request{
		Binary:  c.cfg.Binary,
		Args:    args,
		Dir:     destDir,
		Timeout: c.cfg.ProbeTimeout,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "caption_check", "extract captions", "", err)
	}

	path := findCaptionFile(destDir)
	if path == "" {
		return nil, nil
	}
	subs, err := subtitles.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "caption_check", "parse captions", "malformed caption file", err)
	}
	subs.Language = language.Normalize(track)
	subs.Origin = subtitles.OriginCaptions
	stats := subtitles.Clean(subs)
	c.logger.Debug("captions extracted",
		logging.String("path", path),
		logging.Int("cues", subs.Len()),
		logging.Int("removed", stats.RemovedCues),
		logging.Int("merged", stats.MergedRepeats),
	)
	if subs.Len() == 0 {
		return nil, nil
	}
	return subs, nil
}

// findCaptionFile prefers .srt over .vtt among captions.* files.
func findCaptionFile(dir string) string {
	matches, _ := filepath.Glob(filepath.Join(dir, captionStem+".*"))
	sort.Slice(matches, func(i, j int) bool {
		return captionRank(matches[i]) < captionRank(matches[j])
	})
	for _, match := range matches {
		if captionRank(match) < 2 {
			return match
		}
	}
	return ""
}

func captionRank(path string) int {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return 0
	case ".vtt":
		return 1
	default:
		return 2
	}
}
