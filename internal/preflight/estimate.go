package preflight

import (
	"math"

	"lingocast/internal/config"
	"lingocast/internal/services/whisperx"
	"lingocast/internal/stage"
)

// DiskStatus grades free space against the estimate.
type DiskStatus string

const (
	DiskSufficient   DiskStatus = "sufficient"
	DiskLowSpace     DiskStatus = "low_space"
	DiskInsufficient DiskStatus = "insufficient"
)

// DiskEstimate is the outcome of the disk check.
type DiskEstimate struct {
	Path        string
	RequiredMB  uint64
	AvailableMB uint64
	// ReservedMB is space already promised to other running jobs.
	ReservedMB uint64
	Status     DiskStatus
}

// RequiredDiskMB estimates the scratch space a job needs when it starts at
// start. Download cost only counts when the download stage will run, audio
// and transcript cost only when transcription can still run, and render
// cost only when rendering is pending.
func RequiredDiskMB(cfg config.Preflight, minutes float64, start stage.Stage) uint64 {
	if minutes < 0 {
		minutes = 0
	}
	perMinute := 0.0
	if start <= stage.Download {
		perMinute += cfg.DownloadMBPerMinute
	}
	if start <= stage.Transcription {
		perMinute += cfg.AudioMBPerMinute + cfg.TranscriptionMBPerMinute
	}
	if start <= stage.Rendering {
		perMinute += cfg.RenderMBPerMinute
	}
	safety := cfg.SafetyFactor
	if safety < 1 {
		safety = 1
	}
	required := (cfg.BaseOverheadMB + minutes*perMinute) * safety
	return uint64(math.Ceil(required - 1e-9))
}

// GradeDisk classifies available space against required plus a margin.
func GradeDisk(requiredMB, availableMB, marginMB uint64) DiskStatus {
	switch {
	case availableMB < requiredMB:
		return DiskInsufficient
	case availableMB < requiredMB+marginMB:
		return DiskLowSpace
	default:
		return DiskSufficient
	}
}

// MemoryEstimate is the outcome of the memory check.
type MemoryEstimate struct {
	RequestedModel string
	Model          string
	RequiredMB     uint64
	AvailableMB    uint64
	Degraded       bool
	// Checked is false when transcription cannot run or the model is not in
	// the catalog.
	Checked bool
}

// SelectModel returns the requested model when it fits in availableMB, or
// the largest smaller catalog model that does. The boolean is false when
// nothing fits.
func SelectModel(requested string, availableMB uint64) (whisperx.Model, bool) {
	if m, ok := whisperx.LookupModel(requested); ok && m.MemoryMB <= availableMB {
		return m, true
	}
	for _, m := range whisperx.SmallerModels(requested) {
		if m.MemoryMB <= availableMB {
			return m, true
		}
	}
	return whisperx.Model{}, false
}
