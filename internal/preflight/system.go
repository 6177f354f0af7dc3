package preflight

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const meminfoPath = "/proc/meminfo"

// FreeDiskMB returns the space available to unprivileged users on the
// filesystem holding path. Missing trailing components are skipped so a
// directory that does not exist yet still resolves to its filesystem.
func FreeDiskMB(path string) (uint64, error) {
	target, err := existingAncestor(path)
	if err != nil {
		return 0, err
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(target, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", target, err)
	}
	return stat.Bavail * uint64(stat.Bsize) / (1024 * 1024), nil
}

func existingAncestor(path string) (string, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		current = parent
	}
}

// MemoryStats is a snapshot of system memory in megabytes.
type MemoryStats struct {
	TotalMB     uint64
	AvailableMB uint64
}

// UsedPercent returns the share of memory in use.
func (m MemoryStats) UsedPercent() float64 {
	if m.TotalMB == 0 {
		return 0
	}
	return float64(m.TotalMB-min(m.AvailableMB, m.TotalMB)) / float64(m.TotalMB) * 100
}

// ReadMemory reads MemTotal and MemAvailable from /proc/meminfo, falling back
// to sysinfo(2) on kernels that do not expose MemAvailable.
func ReadMemory() (MemoryStats, error) {
	file, err := os.Open(meminfoPath)
	if err == nil {
		defer file.Close()
		stats, parseErr := parseMeminfo(file)
		if parseErr == nil {
			return stats, nil
		}
	}
	return sysinfoMemory()
}

// parseMeminfo extracts MemTotal and MemAvailable (reported in kB).
func parseMeminfo(r io.Reader) (MemoryStats, error) {
	var stats MemoryStats
	var haveTotal, haveAvail bool
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "MemTotal":
			stats.TotalMB = value / 1024
			haveTotal = true
		case "MemAvailable":
			stats.AvailableMB = value / 1024
			haveAvail = true
		}
	}
	if err := scanner.Err(); err != nil {
		return MemoryStats{}, err
	}
	if !haveTotal || !haveAvail {
		return MemoryStats{}, errors.New("meminfo: MemTotal or MemAvailable missing")
	}
	return stats, nil
}

func sysinfoMemory() (MemoryStats, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return MemoryStats{}, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	const mb = 1024 * 1024
	return MemoryStats{
		TotalMB:     uint64(info.Totalram) * unit / mb,
		AvailableMB: (uint64(info.Freeram) + uint64(info.Bufferram)) * unit / mb,
	}, nil
}
