// Package history keeps a SQLite journal of pipeline runs and the stage
// attempts inside them.
//
// The journal is diagnostic only: resume state lives in checkpoints, and a
// missing or deleted database never blocks a run. Schema changes bump the
// version in schema.go; users delete the database to adopt the new schema.
package history
