package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lingocast/internal/config"
	"lingocast/internal/logging"
	"lingocast/internal/services"
)

func TestConsoleLoggerFormatsScopeAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	logger.Info("stage complete",
		logging.String(logging.FieldJobID, "0123456789abcdef"),
		logging.String(logging.FieldStage, "download"),
		logging.String("path", "/tmp/my video.mp4"),
		logging.Error(errors.New("none")),
	)
	line := buf.String()
	for _, want := range []string{"INFO", "[01234567/download]", "workflow: stage complete", `path="/tmp/my video.mp4"`, "error=none"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("info logs should not carry source: %q", line)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("probe")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected source location, got %q", buf.String())
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("low disk", logging.Int("free_mb", 900))
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if decoded["level"] != "warn" || decoded["ts"] == nil || decoded["free_mb"] != float64(900) {
		t.Fatalf("unexpected record: %v", decoded)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "json"
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil || logger == nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "translation")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Info("contextual")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded[logging.FieldJobID] != "job-1" || decoded[logging.FieldStage] != "translation" || decoded[logging.FieldCorrelationID] != "req-9" {
		t.Fatalf("missing context fields: %v", decoded)
	}
}

func TestTeeWritesToJobLog(t *testing.T) {
	var console bytes.Buffer
	base, _ := logging.New(logging.Options{Format: "console", Level: "warn", Writer: &console})
	dir := t.TempDir()
	handler, file, err := logging.OpenJobLog(dir, "job-7")
	if err != nil {
		t.Fatalf("OpenJobLog: %v", err)
	}
	logger := logging.Tee(base, handler)
	logger.Debug("detail only in file")
	logger.Warn("shown everywhere")
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "job-7.log"))
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(data), "detail only in file") || !strings.Contains(string(data), "shown everywhere") {
		t.Fatalf("job log missing records: %s", data)
	}
	if strings.Contains(console.String(), "detail only in file") || !strings.Contains(console.String(), "shown everywhere") {
		t.Fatalf("console filtering wrong: %s", console.String())
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	logging.WarnWithContext(logger, "low space", "disk_low", logging.String(logging.FieldImpact, "job may fail"))
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded[logging.FieldEventType] != "disk_low" || decoded[logging.FieldImpact] != "job may fail" || decoded[logging.FieldErrorHint] == nil {
		t.Fatalf("unexpected record: %v", decoded)
	}
}
