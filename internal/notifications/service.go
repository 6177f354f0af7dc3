package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"lingocast/internal/config"
	"lingocast/internal/job"
)

const userAgent = "lingocast/0.1.0"

// Service announces run outcomes.
type Service interface {
	NotifyRunCompleted(ctx context.Context, title string, result job.Result) error
	NotifyRunFailed(ctx context.Context, title string, failure Failure) error
	TestNotification(ctx context.Context) error
}

// Failure describes a failed run for the notification body.
type Failure struct {
	Stage      string
	Code       string
	Message    string
	Suggestion string
}

// NewService builds an ntfy-backed service. Without a topic it returns a noop.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: cfg.NotifyTimeout()},
		runCompleted: cfg.Notifications.RunCompleted,
		runFailed:    cfg.Notifications.RunFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runCompleted bool
	runFailed    bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, title string, result job.Result) error {
	if !n.runCompleted {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Subtitled: %s\n", displayTitle(title, result.OutputPath))
	lang := result.TargetLanguage
	if result.SourceLanguage != "" && result.Translated {
		lang = result.SourceLanguage + " -> " + result.TargetLanguage
	}
	fmt.Fprintf(&b, "%s, %d cues, %s", lang, result.CueCount, result.SubtitleMode)
	if result.SizeBytes > 0 {
		fmt.Fprintf(&b, ", %s", humanize.Bytes(uint64(result.SizeBytes)))
	}
	if result.Duration > 0 {
		fmt.Fprintf(&b, "\nTook %s", result.Duration.Round(time.Second))
	}
	return n.send(ctx, payload{
		title:   "lingocast - Complete",
		message: b.String(),
		tags:    []string{"lingocast", "completed"},
	})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, title string, f Failure) error {
	if !n.runFailed {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Failed: %s", displayTitle(title, ""))
	if f.Stage != "" {
		fmt.Fprintf(&b, " during %s", f.Stage)
	}
	if f.Code != "" {
		fmt.Fprintf(&b, " [%s]", f.Code)
	}
	if msg := strings.TrimSpace(f.Message); msg != "" {
		b.WriteString("\n" + msg)
	}
	if hint := strings.TrimSpace(f.Suggestion); hint != "" {
		b.WriteString("\nHint: " + hint)
	}
	return n.send(ctx, payload{
		title:    "lingocast - Failed",
		message:  b.String(),
		tags:     []string{"lingocast", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "lingocast - Test",
		message:  "Notification system test",
		tags:     []string{"lingocast", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayTitle(title, path string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	if path != "" {
		return filepath.Base(path)
	}
	return "untitled video"
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, string, job.Result) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, Failure) error      { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
