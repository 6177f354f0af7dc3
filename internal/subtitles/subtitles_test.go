package subtitles

import (
	"testing"
	"time"
)

func cues(texts ...string) *Subtitles {
	subs := &Subtitles{Language: "en"}
	for i, text := range texts {
		start := time.Duration(i) * time.Second
		subs.Cues = append(subs.Cues, Cue{Index: i + 1, Start: start, End: start + 900*time.Millisecond, Text: text})
	}
	return subs
}

func TestWithTexts(t *testing.T) {
	src := cues("one", "two")
	out, err := src.WithTexts("es", OriginTranslation, []string{" uno ", "dos"})
	if err != nil {
		t.Fatalf("WithTexts: %v", err)
	}
	if out.Language != "es" || out.Origin != OriginTranslation {
		t.Fatalf("unexpected metadata %+v", out)
	}
	if out.Cues[0].Text != "uno" || out.Cues[1].Start != time.Second {
		t.Fatalf("unexpected cues %+v", out.Cues)
	}
	if src.Cues[0].Text != "one" {
		t.Fatal("source mutated")
	}
	if _, err := src.WithTexts("es", OriginTranslation, []string{"uno"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestValidate(t *testing.T) {
	if issues := cues("a", "b").Validate(time.Minute); len(issues) != 0 {
		t.Fatalf("unexpected issues %v", issues)
	}
	if issues := (&Subtitles{}).Validate(0); len(issues) != 1 {
		t.Fatalf("expected empty issue, got %v", issues)
	}
	bad := cues("a", "b")
	bad.Cues[1].Start = 0
	bad.Cues[1].End = 0
	if issues := bad.Validate(0); len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}
	if issues := cues("a", "b", "c").Validate(time.Second); len(issues) != 0 {
		t.Fatalf("small overrun should be tolerated, got %v", issues)
	}
	long := cues("a")
	long.Cues[0].End = time.Minute
	if issues := long.Validate(10 * time.Second); len(issues) != 1 {
		t.Fatalf("expected duration mismatch, got %v", issues)
	}
}

func TestClean(t *testing.T) {
	subs := cues("[Music]", "hello", "hello", "Subtitles by someone", "bye")
	subs.Cues[2].Start = subs.Cues[1].End - 100*time.Millisecond
	stats := Clean(subs)
	if stats.RemovedCues != 2 || stats.MergedRepeats != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if subs.Len() != 2 || subs.Cues[0].Text != "hello" || subs.Cues[1].Text != "bye" {
		t.Fatalf("unexpected cues %+v", subs.Cues)
	}
	if subs.Cues[1].Index != 2 {
		t.Fatalf("expected renumbering, got %d", subs.Cues[1].Index)
	}
}
