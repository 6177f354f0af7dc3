// Package ffmpeg renders the final artifact: the downloaded video combined
// with the translated subtitles.
//
// Three subtitle modes are supported. Burn re-encodes the video with the
// subtitles filter using the requested encoder. Soft copies the video stream
// and muxes a mov_text subtitle track tagged with the ISO 639-2 language.
// Sidecar keeps the video as is (remuxing only when the container differs)
// and writes an .srt file next to it.
//
// Output is written inside the job work directory first, checked with
// ffprobe, and moved into place only when it looks complete.
package ffmpeg
