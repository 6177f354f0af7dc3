package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{"AC/DC: Live", "AC-DC - Live"},
		{"What? \"Really\"", "What Really"},
		{"  spaced   out  ", "spaced out"},
		{"..hidden", "hidden"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameTruncates(t *testing.T) {
	got := SanitizeFileName(strings.Repeat("a", 300))
	if len([]rune(got)) != maxFileNameRunes {
		t.Fatalf("expected %d runes, got %d", maxFileNameRunes, len([]rune(got)))
	}
}

func TestTitleFromSlug(t *testing.T) {
	if got := TitleFromSlug("my_video-final.mp4", "Untitled"); got != "My Video Final Mp4" {
		t.Fatalf("TitleFromSlug = %q", got)
	}
	if got := TitleFromSlug("--__", "Untitled"); got != "Untitled" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := map[string]string{
		"dQw4w9WgXcQ": "dqw4w9wgxcq",
		"a b/c":       "a_b_c",
		"":            "unknown",
		"???":         "unknown",
	}
	for in, want := range tests {
		if got := SanitizeToken(in); got != want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}
