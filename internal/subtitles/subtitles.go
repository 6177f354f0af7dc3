package subtitles

import (
	"fmt"
	"strings"
	"time"
)

// Origin records where a subtitle set came from.
type Origin string

const (
	OriginCaptions      Origin = "captions"
	OriginTranscription Origin = "transcription"
	OriginTranslation   Origin = "translation"
)

// Cue is one timed block of text.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Duration returns the on-screen time of the cue.
func (c Cue) Duration() time.Duration {
	return c.End - c.Start
}

// Subtitles is an ordered cue list tagged with its language.
type Subtitles struct {
	Language string
	Origin   Origin
	Cues     []Cue
}

// Len returns the number of cues; nil-safe.
func (s *Subtitles) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Cues)
}

// Texts returns the cue texts in order.
func (s *Subtitles) Texts() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Cues))
	for i, cue := range s.Cues {
		out[i] = cue.Text
	}
	return out
}

// WithTexts returns a copy carrying the same timings with replaced text.
// texts must have exactly one entry per cue.
func (s *Subtitles) WithTexts(language string, origin Origin, texts []string) (*Subtitles, error) {
	if s == nil {
		return nil, fmt.Errorf("subtitles: nil source")
	}
	if len(texts) != len(s.Cues) {
		return nil, fmt.Errorf("subtitles: %d texts for %d cues", len(texts), len(s.Cues))
	}
	out := &Subtitles{Language: language, Origin: origin, Cues: make([]Cue, len(s.Cues))}
	for i, cue := range s.Cues {
		cue.Text = strings.TrimSpace(texts[i])
		out.Cues[i] = cue
	}
	return out, nil
}

// Span returns the first start and last end timestamps.
func (s *Subtitles) Span() (time.Duration, time.Duration) {
	if s.Len() == 0 {
		return 0, 0
	}
	first := s.Cues[0].Start
	var last time.Duration
	for _, cue := range s.Cues {
		if cue.Start < first {
			first = cue.Start
		}
		if cue.End > last {
			last = cue.End
		}
	}
	return first, last
}

// Validate reports structural problems. An empty slice means the set is usable.
// When videoLength is positive, cues ending well past it are flagged.
func (s *Subtitles) Validate(videoLength time.Duration) []string {
	if s.Len() == 0 {
		return []string{"empty_subtitle_set"}
	}
	var issues []string
	var prevStart time.Duration
	for i, cue := range s.Cues {
		if cue.End <= cue.Start {
			issues = append(issues, fmt.Sprintf("cue %d: non-positive duration", i+1))
		}
		if i > 0 && cue.Start < prevStart {
			issues = append(issues, fmt.Sprintf("cue %d: starts before previous cue", i+1))
		}
		prevStart = cue.Start
	}
	if videoLength > 0 {
		if _, last := s.Span(); last > videoLength+10*time.Second {
			issues = append(issues, fmt.Sprintf("duration_mismatch: last cue %s past video end %s", last, videoLength))
		}
	}
	return issues
}

// Renumber assigns sequential 1-based indexes.
func (s *Subtitles) Renumber() {
	if s == nil {
		return
	}
	for i := range s.Cues {
		s.Cues[i].Index = i + 1
	}
}
