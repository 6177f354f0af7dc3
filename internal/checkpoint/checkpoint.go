package checkpoint

import (
	"fmt"
	"os"
	"sort"
	"time"

	"lingocast/internal/job"
	"lingocast/internal/stage"
)

const schemaVersion = 1

// Artifact keys recorded by the workflow.
const (
	ArtifactMedia               = "media"
	ArtifactSourceSubtitles     = "source_subtitles"
	ArtifactTranslatedSubtitles = "translated_subtitles"
	ArtifactOutput              = "output"
)

// Checkpoint is the persisted state of one job.
type Checkpoint struct {
	Version            int               `json:"version"`
	JobID              string            `json:"job_id"`
	Job                job.Job           `json:"job"`
	LastCompletedStage stage.Stage       `json:"last_completed_stage"`
	Artifacts          map[string]string `json:"artifacts"`
	// Metadata carries small facts later stages need on resume (video
	// title, duration, detected language). Values are not paths.
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NextStage returns the first stage that has not completed. The boolean is
// false once the final stage is recorded.
func (c *Checkpoint) NextStage() (stage.Stage, bool) {
	if c == nil || !c.LastCompletedStage.Valid() {
		return stage.First(), true
	}
	return stage.Next(c.LastCompletedStage)
}

// Completed reports whether s finished in a previous run.
func (c *Checkpoint) Completed(s stage.Stage) bool {
	if c == nil || !c.LastCompletedStage.Valid() {
		return false
	}
	return !c.LastCompletedStage.Before(s)
}

// Artifact returns the artifact path stored under key.
func (c *Checkpoint) Artifact(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	path, ok := c.Artifacts[key]
	return path, ok && path != ""
}

// Age returns how long ago the snapshot was written.
func (c *Checkpoint) Age(now time.Time) time.Duration {
	return now.Sub(c.Timestamp)
}

// check returns "" when the snapshot is usable, otherwise the reason it is not.
func (c *Checkpoint) check(jobID string, maxAge time.Duration, now time.Time) string {
	if c.JobID != jobID {
		return fmt.Sprintf("job id mismatch (%s)", c.JobID)
	}
	if !c.LastCompletedStage.Valid() {
		return "no completed stage"
	}
	if maxAge > 0 && c.Age(now) >= maxAge {
		return fmt.Sprintf("expired (age %s)", c.Age(now).Round(time.Second))
	}
	keys := make([]string, 0, len(c.Artifacts))
	for key := range c.Artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := os.Stat(c.Artifacts[key]); err != nil {
			return fmt.Sprintf("missing artifact %s", key)
		}
	}
	return ""
}

func cloneMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
