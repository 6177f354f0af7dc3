package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	present := filepath.Join(t.TempDir(), "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cases := []struct {
		req       Requirement
		available bool
		path      string
		detail    string
	}{
		{req: Requirement{Name: "Present", Command: present}, available: true, path: present},
		{req: Requirement{Name: "Missing", Command: " clearly-not-present-binary "}, detail: `binary "clearly-not-present-binary" not found`},
		{req: Requirement{Name: "Blank", Command: "  "}, detail: "command not configured"},
	}
	reqs := make([]Requirement, len(cases))
	for i, tc := range cases {
		reqs[i] = tc.req
	}

	results := CheckBinaries(reqs)
	if len(results) != len(cases) {
		t.Fatalf("expected %d results, got %d", len(cases), len(results))
	}
	for i, tc := range cases {
		got := results[i]
		if got.Name != tc.req.Name {
			t.Fatalf("result %d out of order: %s", i, got.Name)
		}
		if got.Available != tc.available || got.Path != tc.path || got.Detail != tc.detail {
			t.Errorf("%s: got %#v", tc.req.Name, got)
		}
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []Status{
		{Name: "yt-dlp", Available: true},
		{Name: "ffmpeg"},
		{Name: "uvx", Optional: true},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "ffmpeg" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}
}
