package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "duration": "61.5"},
    {"index": 2, "codec_name": "mov_text", "codec_type": "subtitle", "tags": {"language": "spa"}}
  ],
  "format": {"filename": "out.mp4", "duration": "61.250000", "size": "1048576", "format_name": "mov,mp4"}
}`

func TestParseHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Count("video") != 1 || result.Count("audio") != 1 || result.Count("subtitle") != 1 {
		t.Fatalf("unexpected stream counts: %+v", result.Streams)
	}
	video, ok := result.Video()
	if !ok || video.Height != 1080 {
		t.Fatalf("Video = %+v, %v", video, ok)
	}
	if got := result.Duration(); got != 61250*time.Millisecond {
		t.Fatalf("Duration = %v", got)
	}
	if result.SizeBytes() != 1048576 {
		t.Fatalf("SizeBytes = %d", result.SizeBytes())
	}
	if result.Streams[2].Tags["language"] != "spa" {
		t.Fatalf("tags not decoded: %+v", result.Streams[2])
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{Duration: "bad"}, {Duration: "12.5"}},
		Format:  Format{Duration: "N/A", Size: "-1"},
	}
	if got := result.Duration(); got != 12500*time.Millisecond {
		t.Fatalf("Duration = %v", got)
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("SizeBytes = %d", result.SizeBytes())
	}
	if (Result{}).Duration() != 0 {
		t.Fatal("expected zero duration for empty result")
	}
}

func TestInspectWithStubBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + sampleJSON + "\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), stub, "/media/out.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.Count("subtitle") != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestInspectReportsStderr(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Inspect(context.Background(), stub, "/media/broken.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !contains(got, "moov atom not found") {
		t.Fatalf("stderr missing from error: %v", got)
	}
	if _, err := Inspect(context.Background(), stub, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func contains(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && (s == sub || indexOf(s, sub) >= 0))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
