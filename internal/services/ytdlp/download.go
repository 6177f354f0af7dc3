package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"lingocast/internal/cancellation"
	"lingocast/internal/logging"
	"lingocast/internal/procexec"
	"lingocast/internal/services"
	"lingocast/internal/stage"
)

// mediaStem is the file name (without extension) downloads are written to.
const mediaStem = "media"

var downloadProgressPattern = regexp.MustCompile(`^\[download\]\s+([0-9]+(?:\.[0-9]+)?)%`)

// Download fetches ref with the given format selector into destDir and
// returns the path of the merged file.
func (c *Client) Download(ctx context.Context, tok *cancellation.Token, ref, format, destDir string, progress stage.ProgressFunc) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "download", "download", "source reference required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("download: ensure destination: %w", err)
	}

	var finalPath string
	onStdout := func(line string) {
		trimmed := strings.TrimSpace(line)
		if m := downloadProgressPattern.FindStringSubmatch(trimmed); m != nil {
			if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
				progress.Report(pct, "downloading")
			}
			return
		}
		if filepath.IsAbs(trimmed) && strings.HasPrefix(trimmed, destDir) {
			finalPath = trimmed
		}
	}

	c.logger.Debug("yt-dlp download starting", logging.String("format", format), logging.String("dest", destDir))
	progress.Report(0, "starting download")
	err := c.runner.Run(ctx, tok, procexec.Request{
		Binary:   c.cfg.Binary,
		Args:     c.downloadArgs(ref, format, destDir),
		Dir:      destDir,
		Timeout:  c.cfg.Timeout,
		OnStdout: onStdout,
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "download", "format "+format, err)
	}

	if finalPath == "" {
		finalPath, err = findDownloaded(destDir)
		if err != nil {
			return "", services.Wrap(services.ErrExternalTool, "download", "locate output", "", err)
		}
	}
	if info, err := os.Stat(finalPath); err != nil || info.Size() == 0 {
		return "", services.Wrap(services.ErrExternalTool, "download", "verify output", "malformed download: missing or empty file", err)
	}
	progress.Report(100, "download complete")
	return finalPath, nil
}

func (c *Client) downloadArgs(ref, format, destDir string) []string {
	args := c.baseArgs()
	if strings.TrimSpace(format) != "" {
		args = append(args, "--format", format)
	}
	return append(args,
		"--newline",
		"--progress",
		"--no-part",
		"--merge-output-format", "mp4",
		"--output", filepath.Join(destDir, mediaStem+".%(ext)s"),
		"--print", "after_move:filepath",
		"--", ref,
	)
}

// findDownloaded returns the largest media.* file in dir, ignoring partials.
func findDownloaded(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, mediaStem+".*"))
	if err != nil {
		return "", err
	}
	var best string
	var bestSize int64 = -1
	for _, match := range matches {
		if strings.HasSuffix(match, ".part") || strings.HasSuffix(match, ".ytdl") {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = match, info.Size()
		}
	}
	if best == "" {
		return "", errors.New("yt-dlp finished without writing a media file")
	}
	return best, nil
}
