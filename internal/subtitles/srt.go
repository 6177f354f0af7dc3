package subtitles

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lingocast/internal/fileutil"
)

// Parse decodes SRT or WebVTT content. Malformed blocks are skipped; an input
// without a single valid cue is an error.
func Parse(data []byte) (*Subtitles, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")
	vtt := strings.HasPrefix(strings.TrimSpace(content), "WEBVTT")

	subs := &Subtitles{}
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		cue, ok := parseBlock(block)
		if !ok {
			continue
		}
		if vtt {
			cue.Text = stripVTTTags(cue.Text)
			if strings.TrimSpace(cue.Text) == "" {
				continue
			}
		}
		subs.Cues = append(subs.Cues, cue)
	}
	if len(subs.Cues) == 0 {
		return nil, fmt.Errorf("parse subtitles: no cues found")
	}
	subs.Renumber()
	return subs, nil
}

func parseBlock(block string) (Cue, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	timing := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 || timing > 1 || timing == len(lines)-1 {
		return Cue{}, false
	}
	parts := strings.SplitN(lines[timing], "-->", 2)
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return Cue{}, false
	}
	// WebVTT allows cue settings after the end timestamp.
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return Cue{}, false
	}
	end, err := parseTimestamp(endField[0])
	if err != nil {
		return Cue{}, false
	}
	text := make([]string, 0, len(lines)-timing-1)
	for _, line := range lines[timing+1:] {
		if trimmed := strings.TrimRight(line, " \t"); trimmed != "" {
			text = append(text, trimmed)
		}
	}
	if len(text) == 0 {
		return Cue{}, false
	}
	return Cue{Start: start, End: end, Text: strings.Join(text, "\n")}, true
}

// parseTimestamp accepts HH:MM:SS,mmm, HH:MM:SS.mmm and the WebVTT short form MM:SS.mmm.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	clock, fraction, _ := strings.Cut(value, ".")
	fields := strings.Split(clock, ":")
	if len(fields) == 2 {
		fields = append([]string{"0"}, fields...)
	}
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(fields[0])
	minutes, errM := strconv.Atoi(fields[1])
	seconds, errS := strconv.Atoi(fields[2])
	if errH != nil || errM != nil || errS != nil || minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var millis int
	if fraction != "" {
		for len(fraction) < 3 {
			fraction += "0"
		}
		ms, err := strconv.Atoi(fraction[:3])
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		millis = ms
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, ms%1000)
}

// Format encodes the subtitles as SRT with sequential numbering.
func Format(subs *Subtitles) []byte {
	var buf bytes.Buffer
	if subs == nil {
		return buf.Bytes()
	}
	for i, cue := range subs.Cues {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n", i+1, formatTimestamp(cue.Start), formatTimestamp(cue.End), strings.TrimSpace(cue.Text))
	}
	return buf.Bytes()
}

// ReadFile parses the subtitle file at path.
func ReadFile(path string) (*Subtitles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	subs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return subs, nil
}

// WriteFile atomically writes subs to path as SRT.
func WriteFile(path string, subs *Subtitles) error {
	if subs.Len() == 0 {
		return fmt.Errorf("write subtitles: no cues")
	}
	if err := fileutil.WriteFileAtomic(path, Format(subs), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}
