package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"lingocast/internal/logging"
	"lingocast/internal/procexec"
	"lingocast/internal/stage"
)

const (
	defaultBinary       = "yt-dlp"
	defaultProbeTimeout = time.Minute
)

// Config captures yt-dlp settings.
type Config struct {
	Binary       string
	CookiesFile  string
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// Client runs yt-dlp.
type Client struct {
	cfg    Config
	runner procexec.Runner
	logger *slog.Logger
}

// New constructs a Client. A nil runner uses procexec.NewRunner.
func New(cfg Config, runner procexec.Runner, logger *slog.Logger) *Client {
	cfg.Binary = strings.TrimSpace(cfg.Binary)
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if runner == nil {
		runner = procexec.NewRunner()
	}
	return &Client{cfg: cfg, runner: runner, logger: logging.NewComponentLogger(logger, "ytdlp")}
}

// baseArgs are shared by every invocation.
func (c *Client) baseArgs() []string {
	args := []string{"--no-playlist", "--no-warnings", "--no-color"}
	if c.cfg.CookiesFile != "" {
		args = append(args, "--cookies", c.cfg.CookiesFile)
	}
	return args
}

// HealthCheck reports whether yt-dlp is installed.
func (c *Client) HealthCheck(context.Context) stage.Health {
	if _, err := exec.LookPath(c.cfg.Binary); err != nil {
		return stage.Unhealthy("yt-dlp", fmt.Sprintf("%s not found in PATH", c.cfg.Binary))
	}
	return stage.Healthy("yt-dlp")
}
