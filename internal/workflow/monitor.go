package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"lingocast/internal/config"
	"lingocast/internal/logging"
	"lingocast/internal/preflight"
	"lingocast/internal/stage"
)

const defaultMonitorInterval = 10 * time.Second

type memoryLevel int

const (
	memoryNormal memoryLevel = iota
	memoryHigh
	memoryCritical
)

// MemoryMonitor samples system memory while a run is active and journals a
// warning each time usage crosses into a higher band. It never stops a run.
type MemoryMonitor struct {
	interval        time.Duration
	warningPercent  float64
	criticalPercent float64
	read            func() (preflight.MemoryStats, error)
	journal         *Journal
	logger          *slog.Logger

	mu   sync.Mutex
	last memoryLevel
}

// NewMemoryMonitor creates a monitor from the [monitor] settings.
func NewMemoryMonitor(cfg config.Monitor, read func() (preflight.MemoryStats, error), journal *Journal, logger *slog.Logger) *MemoryMonitor {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	if read == nil {
		read = preflight.ReadMemory
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MemoryMonitor{
		interval:        interval,
		warningPercent:  float64(cfg.WarningPercent),
		criticalPercent: float64(cfg.CriticalPercent),
		read:            read,
		journal:         journal,
		logger:          logging.NewComponentLogger(logger, "workflow-memory-monitor"),
	}
}

// StartLoop samples until ctx is done.
func (m *MemoryMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}

// Sample reads memory once and journals a warning on escalation.
func (m *MemoryMonitor) Sample(ctx context.Context) {
	stats, err := m.read()
	if err != nil {
		m.logger.Debug("memory sample failed", logging.Error(err))
		return
	}
	used := stats.UsedPercent()
	level := memoryNormal
	switch {
	case m.criticalPercent > 0 && used >= m.criticalPercent:
		level = memoryCritical
	case m.warningPercent > 0 && used >= m.warningPercent:
		level = memoryHigh
	}

	m.mu.Lock()
	escalated := level > m.last
	m.last = level
	m.mu.Unlock()
	if !escalated {
		return
	}

	message := fmt.Sprintf("memory usage high: %.0f%% used", used)
	if level == memoryCritical {
		message = fmt.Sprintf("memory usage critical: %.0f%% used; external tools may be killed", used)
	}
	m.journal.Add(ctx, LogEvent{
		Level:   LevelWarning,
		Kind:    LogMemoryWarning,
		Message: message,
		Details: map[string]string{
			"available_mb": strconv.FormatUint(stats.AvailableMB, 10),
			"total_mb":     strconv.FormatUint(stats.TotalMB, 10),
		},
		Metric: &stage.Metric{Name: "memory_used_percent", Value: used, Unit: "%"},
	})
}
