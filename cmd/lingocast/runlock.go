package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"lingocast/internal/config"
)

const runLockSuffix = ".run"

var errJobRunning = errors.New("job is already running in another lingocast process")

func runLockPath(cfg *config.Config, jobID string) string {
	return filepath.Join(cfg.Paths.CheckpointDir, jobID+runLockSuffix)
}

// acquireRunLock takes the per-job lock held for the lifetime of a run.
func acquireRunLock(cfg *config.Config, jobID string) (*flock.Flock, error) {
	lock := flock.New(runLockPath(cfg, jobID))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", jobID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errJobRunning, jobID)
	}
	return lock, nil
}

func releaseRunLock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	_ = lock.Unlock()
}

// runningJobs returns the job IDs whose run lock another process holds.
func runningJobs(cfg *config.Config) []string {
	entries, err := os.ReadDir(cfg.Paths.CheckpointDir)
	if err != nil {
		return nil
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, runLockSuffix) {
			continue
		}
		lock := flock.New(filepath.Join(cfg.Paths.CheckpointDir, name))
		ok, err := lock.TryLock()
		if err != nil {
			continue
		}
		if ok {
			_ = lock.Unlock()
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, runLockSuffix))
	}
	sort.Strings(ids)
	return ids
}
