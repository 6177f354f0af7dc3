// Package services holds the helpers shared by the external collaborators
// (yt-dlp, WhisperX, the chat completion client, ffmpeg) and the workflow.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Error markers plus the Wrap helper so collaborator failures carry
//     stage and operation context into classification.
//
// Collaborator implementations live in the subpackages.
package services
