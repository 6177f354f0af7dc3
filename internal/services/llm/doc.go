// Package llm talks to an OpenAI-compatible chat completion endpoint
// (OpenRouter by default) and translates subtitles with it.
//
// Client sends JSON-only completion requests and retries transient failures
// itself: HTTP 408, 429 and 5xx responses, transport timeouts, and responses
// that arrive without content. Retry-After is honoured up to the configured
// maximum delay. Context cancellation stops retries immediately.
//
// Translator splits a subtitle set into batches of cues, asks the model for a
// {"translations":[{"i":N,"t":"..."}]} object per batch, and rebuilds the
// cue list with the original timings. A batch whose answer does not cover
// every cue fails with a "cue count mismatch" error so the caller can retry
// with another model.
package llm
