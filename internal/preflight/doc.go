// Package preflight decides whether a job can run before any expensive
// work starts.
//
// Checker.Check inspects the source video, claims a collision-free output
// path, decides whether translation is needed, estimates disk use against
// free space, and picks a transcription model that fits in memory. It
// returns a Plan or the blocking PipelineError.
//
// RunAll and the Check* helpers verify the environment itself (directories,
// external binaries, the translation API) for the CLI "deps" and
// "preflight" commands.
package preflight
