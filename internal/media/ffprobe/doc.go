// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns the parsed streams and container
// format; helper methods on Result expose stream counts and duration.
package ffprobe
