// Package job defines the unit of work lingocast executes: a source video
// reference, a language pair, and output options. A Job is validated once by
// Prepare and treated as immutable afterwards; the workflow package copies it
// into checkpoints so an interrupted run can be resumed from disk alone.
package job
