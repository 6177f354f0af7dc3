// Package logs reads the per-job JSON log files written during a run.
//
// Tail returns the last lines of a file or the lines appended since an
// offset, Follow keeps polling until its context ends, and ParseEntry turns a
// line into an Entry that Filter can match.
package logs
