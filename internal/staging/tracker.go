package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Tracker accounts for temporary files, disk reservations, and output claims
// across every job in the process. All methods are goroutine-safe.
type Tracker struct {
	mu           sync.Mutex
	temps        map[string]map[string]struct{} // job ID → tracked paths
	reservations map[string]uint64              // job ID → reserved MB
	claims       map[string]string              // output path → owning job ID
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		temps:        make(map[string]map[string]struct{}),
		reservations: make(map[string]uint64),
		claims:       make(map[string]string),
	}
}

// Track records a temporary path owned by jobID.
func (t *Tracker) Track(jobID, path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.temps[jobID]
	if !ok {
		set = make(map[string]struct{})
		t.temps[jobID] = set
	}
	set[filepath.Clean(path)] = struct{}{}
}

// Untrack forgets a temporary path, typically after it was promoted to an artifact.
func (t *Tracker) Untrack(jobID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.temps[jobID]; ok {
		delete(set, filepath.Clean(path))
	}
}

// Tracked returns the tracked paths for jobID in sorted order.
func (t *Tracker) Tracked(jobID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.temps[jobID]
	out := make([]string, 0, len(set))
	for path := range set {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Cleanup removes every tracked path of jobID and forgets them. Paths that no
// longer exist are not errors.
func (t *Tracker) Cleanup(jobID string) ([]string, error) {
	t.mu.Lock()
	set := t.temps[jobID]
	delete(t.temps, jobID)
	t.mu.Unlock()

	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var removed []string
	var errs []error
	for _, path := range paths {
		if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// Reserve records disk space committed to jobID, replacing any earlier reservation.
func (t *Tracker) Reserve(jobID string, megabytes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reservations[jobID] = megabytes
}

// ReservedMB sums the reservations held by jobs other than excludeJobID.
func (t *Tracker) ReservedMB(excludeJobID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for id, mb := range t.reservations {
		if id == excludeJobID {
			continue
		}
		total += mb
	}
	return total
}

// Release drops the reservation and output claims of jobID.
func (t *Tracker) Release(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reservations, jobID)
	for path, owner := range t.claims {
		if owner == jobID {
			delete(t.claims, path)
		}
	}
}

// ClaimOutput reserves requested for jobID. When the path exists on disk or
// is claimed by another job, a " (N)" suffix is appended to the file stem
// until a free name is found. The boolean reports whether the path changed.
func (t *Tracker) ClaimOutput(jobID, requested string, exists func(string) bool) (string, bool) {
	if exists == nil {
		exists = pathExists
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	free := func(candidate string) bool {
		owner, claimed := t.claims[candidate]
		if claimed {
			return owner == jobID
		}
		return !exists(candidate)
	}

	if free(requested) {
		t.claims[requested] = jobID
		return requested, false
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 2; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if free(candidate) {
			t.claims[candidate] = jobID
			return candidate, true
		}
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
