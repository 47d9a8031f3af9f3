// Package media wraps ffmpeg for the two container operations the pipeline
// needs: pulling an audio track out of an uploaded video and burning styled
// subtitles into a rendered copy. Outputs are written to a hidden partial
// file and renamed into place only when ffmpeg produced a non-empty result.
package media
