// Package staging owns the per-job work directories and the process-wide
// accounting shared by concurrent pipeline runs.
//
// Tracker is the single piece of mutable state shared across runs: it
// records transient files each job creates (so cancellation can remove
// them), disk space reserved by preflight, and output paths claimed by jobs
// so two runs never render to the same file. CleanStale and CleanOrphaned
// reclaim work directories left behind by crashed runs.
package staging
