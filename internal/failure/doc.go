// Package failure classifies pipeline errors and decides how to recover.
//
// Every error surfaced by a collaborator (yt-dlp, WhisperX, the chat
// completion API, ffmpeg) is converted into a *PipelineError by Mapper.Map
// using a fixed, ordered rule table: typed errors first, then
// case-insensitive message phrases. Mapper.RecoveryStrategy turns a classified
// error into Retry, RetryWithFallback, Skip, or Abort. Both operations are
// deterministic for a given input; the clock used for timestamps is injectable.
package failure
