// Package whisperx transcribes downloaded media into subtitles.
//
// Audio is first extracted with ffmpeg into a mono 16kHz WAV, then WhisperX
// runs through uvx and writes an SRT file next to it. Both calls go through
// procexec so cancellation kills the running process. Catalog lists the
// supported models with their approximate memory needs; preflight and the
// transcription fallback ladder use it to pick a model that fits.
package whisperx
