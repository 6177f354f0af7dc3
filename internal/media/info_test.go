package media

import (
	"testing"
	"time"
)

func TestCaptionLanguage(t *testing.T) {
	info := VideoInfo{
		Language:     "en",
		Captions:     []string{"de", "pt-BR"},
		AutoCaptions: []string{"en", "es"},
	}
	tests := []struct {
		lang      string
		allowAuto bool
		want      string
		ok        bool
	}{
		{"de", false, "de", true},
		{"pt", false, "pt-BR", true},
		{"", false, "", false},
		{"", true, "en", true},
		{"English", true, "en", true},
		{"fr", true, "", false},
	}
	for _, tt := range tests {
		got, ok := info.CaptionLanguage(tt.lang, tt.allowAuto)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CaptionLanguage(%q, %v) = %q, %v; want %q, %v", tt.lang, tt.allowAuto, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCaptionLanguageUnknownSource(t *testing.T) {
	if _, ok := (VideoInfo{Captions: []string{"en"}}).CaptionLanguage("", true); ok {
		t.Fatal("expected no caption match without a known language")
	}
}

func TestRestricted(t *testing.T) {
	for _, availability := range []string{AvailabilityPrivate, AvailabilityNeedsAuth, AvailabilityPremiumOnly} {
		if !(VideoInfo{Availability: availability}).Restricted() {
			t.Errorf("%s should be restricted", availability)
		}
	}
	for _, availability := range []string{"", AvailabilityPublic, AvailabilityUnlisted} {
		if (VideoInfo{Availability: availability}).Restricted() {
			t.Errorf("%q should not be restricted", availability)
		}
	}
}

func TestSummary(t *testing.T) {
	info := VideoInfo{Title: "Clip", Duration: 90*time.Second + 400*time.Millisecond, Language: "en"}
	if got := info.Summary(); got != `"Clip" 1m30s lang=en` {
		t.Fatalf("Summary = %q", got)
	}
	if info.Minutes() <= 1.5 {
		t.Fatalf("Minutes = %v", info.Minutes())
	}
}
