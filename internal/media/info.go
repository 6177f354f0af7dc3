package media

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"lingocast/internal/language"
)

// Availability values reported by yt-dlp.
const (
	AvailabilityPublic         = "public"
	AvailabilityUnlisted       = "unlisted"
	AvailabilityPrivate        = "private"
	AvailabilityNeedsAuth      = "needs_auth"
	AvailabilitySubscriberOnly = "subscriber_only"
	AvailabilityPremiumOnly    = "premium_only"
)

// VideoInfo is the subset of source metadata the pipeline relies on.
type VideoInfo struct {
	ID           string
	Title        string
	Uploader     string
	WebpageURL   string
	Duration     time.Duration
	IsLive       bool
	LiveStatus   string
	Availability string
	AgeLimit     int
	Language     string
	// Captions lists languages with uploader-provided subtitles.
	Captions []string
	// AutoCaptions lists languages with machine-generated subtitles.
	AutoCaptions []string
	// ApproxSizeBytes is the best format's size estimate, zero when unknown.
	ApproxSizeBytes int64
}

// Minutes returns the duration in fractional minutes.
func (v VideoInfo) Minutes() float64 {
	return v.Duration.Minutes()
}

// Restricted reports whether the availability value means an anonymous
// download will fail.
func (v VideoInfo) Restricted() bool {
	switch v.Availability {
	case AvailabilityPrivate, AvailabilityNeedsAuth, AvailabilitySubscriberOnly, AvailabilityPremiumOnly:
		return true
	}
	return false
}

// CaptionLanguage returns the caption track matching lang. Uploader captions
// win over automatic ones. When lang is empty the video's declared language
// is used. The boolean is false when no suitable track exists.
func (v VideoInfo) CaptionLanguage(lang string, allowAuto bool) (string, bool) {
	want := language.Normalize(lang)
	if want == "" {
		want = language.Normalize(v.Language)
	}
	if want == "" {
		return "", false
	}
	if track, ok := matchTrack(v.Captions, want); ok {
		return track, true
	}
	if allowAuto {
		return matchTrack(v.AutoCaptions, want)
	}
	return "", false
}

func matchTrack(tracks []string, want string) (string, bool) {
	if i := slices.IndexFunc(tracks, func(t string) bool { return strings.EqualFold(t, want) }); i >= 0 {
		return tracks[i], true
	}
	// Regional variants such as "en-US" or "pt-BR".
	for _, track := range tracks {
		if language.Normalize(track) == want {
			return track, true
		}
	}
	return "", false
}

// Summary renders a one-line description for logs.
func (v VideoInfo) Summary() string {
	parts := []string{strconv.Quote(v.Title)}
	if v.Duration > 0 {
		parts = append(parts, v.Duration.Round(time.Second).String())
	}
	if v.Language != "" {
		parts = append(parts, "lang="+v.Language)
	}
	if v.IsLive {
		parts = append(parts, "live")
	}
	return strings.Join(parts, " ")
}
