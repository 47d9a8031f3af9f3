// Package subtitles models timed cues and reads and writes them as SRT and
// ASS documents.
//
// Writers are atomic so a failed write never leaves a truncated subtitle in
// the workspace. Split implements the modest and aggressive line-splitting
// strategies applied after transcription.
package subtitles
