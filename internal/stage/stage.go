package stage

import (
	"fmt"
	"strings"
)

// Stage identifies one step of the translation pipeline.
type Stage int

const (
	Download      Stage = 1
	CaptionCheck  Stage = 2
	Transcription Stage = 3
	Translation   Stage = 4
	Rendering     Stage = 5
)

var all = []Stage{Download, CaptionCheck, Transcription, Translation, Rendering}

// All returns every stage in execution order.
func All() []Stage {
	out := make([]Stage, len(all))
	copy(out, all)
	return out
}

// First is the stage a fresh job starts at.
func First() Stage { return Download }

// Last is the final stage of the pipeline.
func Last() Stage { return Rendering }

// Order returns the numeric position of the stage (1-based).
func (s Stage) Order() int { return int(s) }

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s >= Download && s <= Rendering }

// Next returns the stage following s. The boolean is false when s is the
// final stage or not a known stage.
func Next(s Stage) (Stage, bool) {
	if !s.Valid() || s == Last() {
		return 0, false
	}
	return s + 1, true
}

// Before reports whether s runs strictly before other.
func (s Stage) Before(other Stage) bool { return s.Order() < other.Order() }

// String returns the stable identifier used in logs, checkpoints, and the database.
func (s Stage) String() string {
	switch s {
	case Download:
		return "download"
	case CaptionCheck:
		return "caption_check"
	case Transcription:
		return "transcription"
	case Translation:
		return "translation"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Label returns a human readable name.
func (s Stage) Label() string {
	switch s {
	case Download:
		return "Downloading"
	case CaptionCheck:
		return "Checking captions"
	case Transcription:
		return "Transcribing"
	case Translation:
		return "Translating"
	case Rendering:
		return "Rendering"
	default:
		return s.String()
	}
}

// Parse converts an identifier produced by String back into a Stage.
func Parse(raw string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, s := range all {
		if s.String() == normalized {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", raw)
}

// MarshalText encodes the stage as its identifier.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal stage: invalid value %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes an identifier produced by MarshalText.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
