// Package language normalizes the language codes that flow through a job.
//
// Users, yt-dlp metadata, WhisperX and translation models each spell
// languages differently ("en", "eng", "English", "en-US"). Normalize maps all
// of them to a lowercase ISO 639-1 base code where one exists so stage
// planning can compare source and target with Same.
package language
