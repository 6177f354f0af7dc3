package workflow

import (
	"strconv"
	"strings"
	"time"

	"lingocast/internal/media"
)

// Checkpoint metadata keys.
const (
	metaVideoID          = "video_id"
	metaTitle            = "title"
	metaUploader         = "uploader"
	metaWebpageURL       = "webpage_url"
	metaDuration         = "duration_seconds"
	metaVideoLanguage    = "video_language"
	metaAvailability     = "availability"
	metaAgeLimit         = "age_limit"
	metaCaptionTracks    = "caption_tracks"
	metaAutoTracks       = "auto_caption_tracks"
	metaSourceLanguage   = "source_language"
	metaCaptionsUsed     = "captions_used"
	metaTranscribeModel  = "transcription_model"
	metaTranslationModel = "translation_model"
	metaEncoder          = "encoder"
)

// encodeVideo flattens the probe result into checkpoint metadata so a
// resumed run can skip probing.
func encodeVideo(v media.VideoInfo) map[string]string {
	meta := map[string]string{
		metaVideoID:       v.ID,
		metaTitle:         v.Title,
		metaUploader:      v.Uploader,
		metaWebpageURL:    v.WebpageURL,
		metaVideoLanguage: v.Language,
		metaAvailability:  v.Availability,
		metaCaptionTracks: strings.Join(v.Captions, ","),
		metaAutoTracks:    strings.Join(v.AutoCaptions, ","),
	}
	if v.Duration > 0 {
		meta[metaDuration] = strconv.FormatFloat(v.Duration.Seconds(), 'f', 3, 64)
	}
	if v.AgeLimit > 0 {
		meta[metaAgeLimit] = strconv.Itoa(v.AgeLimit)
	}
	return meta
}

// decodeVideo rebuilds probe data from checkpoint metadata. It reports false
// when the metadata predates probing.
func decodeVideo(meta map[string]string) (*media.VideoInfo, bool) {
	if meta[metaTitle] == "" && meta[metaDuration] == "" {
		return nil, false
	}
	v := &media.VideoInfo{
		ID:           meta[metaVideoID],
		Title:        meta[metaTitle],
		Uploader:     meta[metaUploader],
		WebpageURL:   meta[metaWebpageURL],
		Language:     meta[metaVideoLanguage],
		Availability: meta[metaAvailability],
		Captions:     splitList(meta[metaCaptionTracks]),
		AutoCaptions: splitList(meta[metaAutoTracks]),
	}
	if raw := meta[metaDuration]; raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			v.Duration = time.Duration(seconds * float64(time.Second))
		}
	}
	if raw := meta[metaAgeLimit]; raw != "" {
		v.AgeLimit, _ = strconv.Atoi(raw)
	}
	return v, true
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeMetadata(dst, src map[string]string) {
	for k, v := range src {
		if v != "" {
			dst[k] = v
		}
	}
}
