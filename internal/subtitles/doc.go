// Package subtitles models timed text cues and reads and writes them as SRT.
//
// Captions extracted by yt-dlp, WhisperX transcripts and translated output
// all travel between stages as *Subtitles. WebVTT input is accepted because
// some providers only publish captions in that format; output is always SRT.
package subtitles
