package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"lingocast/internal/cancellation"
	"lingocast/internal/logging"
	"lingocast/internal/media"
	"lingocast/internal/procexec"
	"lingocast/internal/services"
)

// probePayload is the subset of `yt-dlp -J` output that is read.
type probePayload struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Uploader          string                     `json:"uploader"`
	Channel           string                     `json:"channel"`
	WebpageURL        string                     `json:"webpage_url"`
	Duration          float64                    `json:"duration"`
	IsLive            bool                       `json:"is_live"`
	LiveStatus        string                     `json:"live_status"`
	Availability      string                     `json:"availability"`
	AgeLimit          int                        `json:"age_limit"`
	Language          string                     `json:"language"`
	Subtitles         map[string]json.RawMessage `json:"subtitles"`
	AutomaticCaptions map[string]json.RawMessage `json:"automatic_captions"`
	Filesize          int64                      `json:"filesize"`
	FilesizeApprox    int64                      `json:"filesize_approx"`
}

// Probe fetches metadata for ref without downloading media. Cancelling ctx
// or exceeding the probe timeout kills yt-dlp.
func (c *Client) Probe(ctx context.Context, ref string) (media.VideoInfo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return media.VideoInfo{}, services.Wrap(services.ErrValidation, "download", "probe", "source reference required", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	tok, stop := cancellation.FromContext(ctx)
	defer stop()

	var stdout bytes.Buffer
	args := append(c.baseArgs(), "--dump-single-json", "--skip-download", "--", ref)
	err := c.runner.Run(ctx, tok, procexec.Request{
		Binary: c.cfg.Binary,
		Args:   args,
		Stdout: &stdout,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return media.VideoInfo{}, services.Wrap(services.ErrTimeout, "download", "probe", fmt.Sprintf("timed out after %s", c.cfg.ProbeTimeout), nil)
		}
		return media.VideoInfo{}, services.Wrap(services.ErrExternalTool, "download", "probe", "", err)
	}
	info, err := parseProbe(stdout.Bytes())
	if err != nil {
		return media.VideoInfo{}, services.Wrap(services.ErrExternalTool, "download", "probe", "", err)
	}
	if info.WebpageURL == "" {
		info.WebpageURL = ref
	}
	c.logger.Debug("probe complete", logging.String("video", info.Summary()))
	return info, nil
}

func parseProbe(data []byte) (media.VideoInfo, error) {
	var payload probePayload
	if err := json.Unmarshal(bytes.TrimSpace(data), &payload); err != nil {
		return media.VideoInfo{}, fmt.Errorf("malformed probe output: %w", err)
	}
	uploader := payload.Uploader
	if uploader == "" {
		uploader = payload.Channel
	}
	size := payload.Filesize
	if size <= 0 {
		size = payload.FilesizeApprox
	}
	duration := time.Duration(0)
	if payload.Duration > 0 && !math.IsInf(payload.Duration, 0) {
		duration = time.Duration(payload.Duration * float64(time.Second))
	}
	return media.VideoInfo{
		ID:              payload.ID,
		Title:           strings.TrimSpace(payload.Title),
		Uploader:        uploader,
		WebpageURL:      payload.WebpageURL,
		Duration:        duration,
		IsLive:          payload.IsLive || payload.LiveStatus == "is_live" || payload.LiveStatus == "is_upcoming",
		LiveStatus:      payload.LiveStatus,
		Availability:    payload.Availability,
		AgeLimit:        payload.AgeLimit,
		Language:        payload.Language,
		Captions:        trackLanguages(payload.Subtitles),
		AutoCaptions:    trackLanguages(payload.AutomaticCaptions),
		ApproxSizeBytes: size,
	}, nil
}

// trackLanguages returns the sorted keys of a yt-dlp subtitle map, skipping
// the live chat pseudo-track.
func trackLanguages(tracks map[string]json.RawMessage) []string {
	out := make([]string, 0, len(tracks))
	for lang := range tracks {
		if lang == "live_chat" {
			continue
		}
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
