package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"lingocast/internal/fileutil"
	"lingocast/internal/job"
	"lingocast/internal/logging"
	"lingocast/internal/stage"
)

const (
	fileSuffix = ".json"
	lockSuffix = ".lock"
)

// ErrRegression is returned when Save would move a checkpoint backwards.
var ErrRegression = errors.New("checkpoint regression")

// Store reads and writes checkpoints under one directory.
type Store struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for discarded snapshots.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates dir if needed. A non-positive maxAge disables expiry.
func NewStore(dir string, maxAge time.Duration, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint store: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint store: create directory: %w", err)
	}
	s := &Store{dir: dir, maxAge: maxAge, now: time.Now, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "checkpoint")
	return s, nil
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the snapshot path for jobID.
func (s *Store) Path(jobID string) string {
	return filepath.Join(s.dir, jobID+fileSuffix)
}

func validJobID(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("checkpoint: job id required")
	}
	if strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return fmt.Errorf("checkpoint: invalid job id %q", jobID)
	}
	return nil
}

func (s *Store) lock(jobID string) (*flock.Flock, error) {
	lock := flock.New(s.Path(jobID) + lockSuffix)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("checkpoint: lock %s: %w", jobID, err)
	}
	return lock, nil
}

// Save records that completed finished for j. artifacts is the full artifact
// set for the job; empty values are dropped. Saving a stage earlier than the
// one already on disk fails with ErrRegression.
func (s *Store) Save(jobID string, j job.Job, completed stage.Stage, artifacts, metadata map[string]string) (*Checkpoint, error) {
	if err := validJobID(jobID); err != nil {
		return nil, err
	}
	if !completed.Valid() {
		return nil, fmt.Errorf("checkpoint: invalid stage %d", int(completed))
	}
	lock, err := s.lock(jobID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	if existing, err := s.read(jobID); err == nil && existing.JobID == jobID {
		if completed.Before(existing.LastCompletedStage) {
			return nil, fmt.Errorf("%w: %s is before recorded %s", ErrRegression, completed, existing.LastCompletedStage)
		}
	}

	cp := &Checkpoint{
		Version:            schemaVersion,
		JobID:              jobID,
		Job:                j,
		LastCompletedStage: completed,
		Artifacts:          cloneMap(artifacts),
		Metadata:           cloneMap(metadata),
		Timestamp:          s.now().UTC(),
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.Path(jobID), data, 0o644); err != nil {
		return nil, fmt.Errorf("checkpoint: write %s: %w", jobID, err)
	}
	s.logger.Debug("checkpoint saved",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldStage, completed.String()),
		logging.Int("artifacts", len(cp.Artifacts)),
	)
	return cp, nil
}

// Load returns the usable checkpoint for jobID. Absent, corrupt, expired or
// incomplete snapshots yield nil without an error.
func (s *Store) Load(jobID string) (*Checkpoint, error) {
	if err := validJobID(jobID); err != nil {
		return nil, err
	}
	cp, err := s.read(jobID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if errors.Is(err, errDecode) {
			logging.WarnWithContext(s.logger, "discarding unreadable checkpoint", "checkpoint_corrupt",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job restarts from the first stage"),
			)
			return nil, nil
		}
		return nil, err
	}
	if reason := cp.check(jobID, s.maxAge, s.now()); reason != "" {
		s.logger.Info("ignoring checkpoint",
			logging.String(logging.FieldJobID, jobID),
			logging.String("reason", reason),
		)
		return nil, nil
	}
	return cp, nil
}

var errDecode = errors.New("decode checkpoint")

func (s *Store) read(jobID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.Path(jobID))
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %w", errDecode, err)
	}
	return &cp, nil
}

// Delete removes the snapshot and its lock file. Missing files are not an error.
func (s *Store) Delete(jobID string) error {
	if err := validJobID(jobID); err != nil {
		return err
	}
	lock, err := s.lock(jobID)
	if err != nil {
		return err
	}
	removeErr := os.Remove(s.Path(jobID))
	_ = lock.Unlock()
	_ = os.Remove(s.Path(jobID) + lockSuffix)
	if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: delete %s: %w", jobID, removeErr)
	}
	return nil
}

// Entry describes one snapshot on disk, usable or not.
type Entry struct {
	JobID      string
	Path       string
	Checkpoint *Checkpoint
	Valid      bool
	Reason     string
	ModTime    time.Time
}

// Inspect returns every snapshot in the directory, newest first.
func (s *Store) Inspect() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	now := s.now()
	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		jobID := strings.TrimSuffix(name, fileSuffix)
		entry := Entry{JobID: jobID, Path: filepath.Join(s.dir, name)}
		if info, err := de.Info(); err == nil {
			entry.ModTime = info.ModTime()
		}
		cp, err := s.read(jobID)
		switch {
		case err != nil:
			entry.Reason = "unreadable: " + err.Error()
		default:
			entry.Checkpoint = cp
			entry.Reason = cp.check(jobID, s.maxAge, now)
			entry.Valid = entry.Reason == ""
			entry.ModTime = cp.Timestamp
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.After(entries[j].ModTime)
		}
		return entries[i].JobID < entries[j].JobID
	})
	return entries, nil
}

// List returns the job IDs of usable checkpoints, most recent first.
func (s *Store) List() ([]string, error) {
	entries, err := s.Inspect()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Valid {
			ids = append(ids, entry.JobID)
		}
	}
	return ids, nil
}

// Prune deletes every snapshot that Load would ignore and returns the removed job IDs.
func (s *Store) Prune() ([]string, error) {
	entries, err := s.Inspect()
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, entry := range entries {
		if entry.Valid {
			continue
		}
		if err := s.Delete(entry.JobID); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Info("pruned checkpoint",
			logging.String(logging.FieldJobID, entry.JobID),
			logging.String("reason", entry.Reason),
		)
		removed = append(removed, entry.JobID)
	}
	return removed, errors.Join(errs...)
}
