// Package checkpoint persists per-job progress so an interrupted run can
// resume at the first incomplete stage.
//
// Each job has one JSON snapshot in the checkpoint directory. Writes go
// through a temp file, fsync and rename while holding a per-job flock, so a
// crash never leaves a torn snapshot and two processes never interleave
// writes. A snapshot is only honoured while it is younger than the configured
// max age and every artifact it references still exists on disk.
package checkpoint
