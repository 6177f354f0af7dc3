// Package ffprobe decodes `ffprobe -of json` output for local media files.
//
// The renderer uses it twice per job: before encoding to learn the input
// duration (for progress percentages) and afterwards to confirm the output
// has the expected video, audio and subtitle streams.
package ffprobe
