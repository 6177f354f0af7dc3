package job

import "time"

// Result describes the artifact a successful run produced.
type Result struct {
	JobID          string        `json:"job_id"`
	OutputPath     string        `json:"output_path"`
	SubtitlePath   string        `json:"subtitle_path,omitempty"`
	SubtitleMode   SubtitleMode  `json:"subtitle_mode"`
	SourceLanguage string        `json:"source_language"`
	TargetLanguage string        `json:"target_language"`
	CueCount       int           `json:"cue_count"`
	SizeBytes      int64         `json:"size_bytes"`
	Duration       time.Duration `json:"duration"`
	Translated     bool          `json:"translated"`
}
