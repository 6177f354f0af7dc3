package subtitles

import (
	"regexp"
	"strings"
)

var (
	vttTagPattern = regexp.MustCompile(`<[^>]*>`)

	adPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)subtitles? by`),
		regexp.MustCompile(`(?i)synced? and corrected`),
		regexp.MustCompile(`(?i)amara\.org`),
		regexp.MustCompile(`(?i)^\s*\[?(music|applause)\]?\s*$`),
	}
)

func stripVTTTags(text string) string {
	text = vttTagPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ").Replace(text)
	return strings.TrimSpace(text)
}

// CleanStats reports the effects of Clean.
type CleanStats struct {
	RemovedCues   int
	MergedRepeats int
}

// Clean drops credit and sound-only cues and folds the rolling duplicates that
// auto-generated captions produce, where a cue repeats the previous cue's text.
// Cues are renumbered afterwards.
func Clean(subs *Subtitles) CleanStats {
	var stats CleanStats
	if subs.Len() == 0 {
		return stats
	}
	kept := subs.Cues[:0]
	for _, cue := range subs.Cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" || isAdvertisement(text) {
			stats.RemovedCues++
			continue
		}
		if n := len(kept); n > 0 && strings.TrimSpace(kept[n-1].Text) == text && cue.Start <= kept[n-1].End {
			if cue.End > kept[n-1].End {
				kept[n-1].End = cue.End
			}
			stats.MergedRepeats++
			continue
		}
		cue.Text = text
		kept = append(kept, cue)
	}
	subs.Cues = kept
	subs.Renumber()
	return stats
}

func isAdvertisement(text string) bool {
	payload := strings.Join(strings.Fields(text), " ")
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}
