// Package ytdlp wraps the yt-dlp binary: metadata probes, media downloads
// with per-line progress, and caption extraction.
//
// Every call runs through procexec so a cancelled token kills yt-dlp.
// Download takes the format selector to use; the workflow supplies the
// selectors from download.formats one at a time as its fallback ladder.
package ytdlp
