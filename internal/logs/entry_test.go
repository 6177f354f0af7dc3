package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lingocast/internal/logs"
)

const sampleLog = `{"ts":"2026-03-01T10:00:00Z","level":"info","msg":"stage started","component":"workflow","stage":"download","job_id":"job-1"}
{"ts":"2026-03-01T10:00:05Z","level":"warn","msg":"retrying with fallback","component":"workflow","stage":"rendering","event_type":"recovery","option":"libx264","details":{"error":"encoding failed"}}
not json at all
{"ts":"2026-03-01T10:00:09Z","level":"error","msg":"run failed","component":"workflow","stage":"rendering","error_code":"ENCODING_FAILED"}
`

func TestParseEntry(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(sampleLog), "\n")

	entry, ok := logs.ParseEntry(lines[1])
	if !ok {
		t.Fatal("expected JSON line to parse")
	}
	if entry.Level != "warn" || entry.Stage != "rendering" || entry.EventType != "recovery" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if !entry.Time.Equal(time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", entry.Time)
	}
	if entry.Attrs["option"] != "libx264" || entry.Attrs["details"] != `{"error":"encoding failed"}` {
		t.Fatalf("unexpected attrs %v", entry.Attrs)
	}
	if _, ok := entry.Attrs["component"]; ok {
		t.Fatal("reserved keys must not be repeated as attrs")
	}
	formatted := entry.Format()
	if !strings.Contains(formatted, "WARN  [rendering] retrying with fallback") || !strings.HasSuffix(formatted, "option=libx264") {
		t.Fatalf("unexpected format %q", formatted)
	}

	raw, ok := logs.ParseEntry(lines[2])
	if ok || raw.Format() != "not json at all" {
		t.Fatalf("plain lines should pass through, got %+v", raw)
	}
}

func TestFilterMatch(t *testing.T) {
	warn, _ := logs.ParseEntry(`{"level":"warn","msg":"m","stage":"rendering","event_type":"recovery"}`)
	info, _ := logs.ParseEntry(`{"level":"info","msg":"m","stage":"download"}`)

	cases := []struct {
		name   string
		filter logs.Filter
		entry  logs.Entry
		want   bool
	}{
		{"empty", logs.Filter{}, info, true},
		{"level drops info", logs.Filter{MinLevel: "warn"}, info, false},
		{"level keeps warn", logs.Filter{MinLevel: "warn"}, warn, true},
		{"stage", logs.Filter{Stage: "Download"}, info, true},
		{"stage mismatch", logs.Filter{Stage: "download"}, warn, false},
		{"event type", logs.Filter{EventType: "recovery"}, warn, true},
		{"search", logs.Filter{Search: "RENDERING"}, warn, true},
	}
	for _, tc := range cases {
		if got := tc.filter.Match(tc.entry); got != tc.want {
			t.Errorf("%s: Match = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStreamFiltersLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job-1.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}

	var got []logs.Entry
	printed, err := logs.Stream(context.Background(), path, logs.StreamOptions{
		Lines:  10,
		Filter: logs.Filter{Stage: "rendering"},
	}, func(e logs.Entry) { got = append(got, e) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !printed || len(got) != 2 || got[1].Attrs["error_code"] != "ENCODING_FAILED" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestStreamFollowStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job-1.log")
	ctx, cancel := context.WithCancel(context.Background())

	entries := make(chan logs.Entry, 4)
	done := make(chan error, 1)
	go func() {
		_, err := logs.Stream(ctx, path, logs.StreamOptions{Lines: 5, Follow: true, Poll: 100 * time.Millisecond}, func(e logs.Entry) {
			entries <- e
		})
		done <- err
	}()

	time.Sleep(150 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"level":"info","msg":"late arrival"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-entries:
		if e.Message != "late arrival" {
			t.Fatalf("unexpected entry %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not pick up the new file")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stream returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not stop after cancel")
	}
}
