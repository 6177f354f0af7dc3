// Package media describes source videos as reported by the downloader's
// metadata probe. Preflight validates a VideoInfo before any expensive work
// starts and the workflow carries its title and duration through checkpoints.
package media
