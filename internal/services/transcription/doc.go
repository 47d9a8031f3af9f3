// Package transcription wraps the speech-to-text engine.
//
// The Adapter keeps a single engine resident and replaces it on every Load,
// releasing the old one first. Transcribe writes an SRT and a styled ASS file
// next to the input audio, applying optional line splitting. The default
// engine launches whisper-ctranslate2 through uvx and reads its JSON output.
package transcription
