package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lingocast/internal/logging"
)

// CleanResult contains the outcome of a work directory cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one job work directory.
type DirInfo struct {
	JobID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// JobDir returns the work directory for jobID under root.
func JobDir(root, jobID string) string {
	return filepath.Join(root, jobID)
}

// CleanStale removes job work directories whose modification time is older than maxAge.
func CleanStale(root string, maxAge time.Duration, now time.Time, logger *slog.Logger) CleanResult {
	cutoff := now.Add(-maxAge)
	return sweep(root, logger, "stale", func(dir DirInfo) bool {
		return dir.ModTime.Before(cutoff)
	})
}

// CleanOrphaned removes work directories whose job has no live checkpoint.
// Directories touched within grace are kept because another process may be
// running that job right now.
func CleanOrphaned(root string, activeJobIDs map[string]struct{}, grace time.Duration, now time.Time, logger *slog.Logger) CleanResult {
	cutoff := now.Add(-grace)
	return sweep(root, logger, "orphaned", func(dir DirInfo) bool {
		if _, ok := activeJobIDs[dir.JobID]; ok {
			return false
		}
		return dir.ModTime.Before(cutoff)
	})
}

// ListDirectories returns the job work directories under root ordered by job ID.
func ListDirectories(root string) ([]DirInfo, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		size, _ := dirSize(path)
		dirs = append(dirs, DirInfo{JobID: entry.Name(), Path: path, ModTime: info.ModTime(), Size: size})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].JobID < dirs[j].JobID })
	return dirs, nil
}

func sweep(root string, logger *slog.Logger, reason string, remove func(DirInfo) bool) CleanResult {
	result := CleanResult{}
	dirs, err := ListDirectories(root)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		return result
	}
	for _, dir := range dirs {
		if !remove(dir) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove work directory", "workdir_cleanup_failed",
				logging.String("path", dir.Path),
				logging.String("reason", reason),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.work_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		if logger != nil {
			logger.Info("removed work directory",
				logging.String("path", dir.Path),
				logging.String("reason", reason),
				logging.Int64("bytes", dir.Size),
				logging.String(logging.FieldEventType, "workdir_cleanup"),
			)
		}
	}
	return result
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
