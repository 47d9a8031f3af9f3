package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"subgen/internal/fileutil"
	"subgen/internal/logging"
	"subgen/internal/media/ffprobe"
	"subgen/internal/services"
)

// Extractor derives an audio track from a video container.
type Extractor interface {
	Extract(ctx context.Context, videoPath, outAudioPath string) error
}

// Muxer renders subtitles into a copy of a video.
type Muxer interface {
	BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outVideoPath string) error
}

// CommandRunner executes an external tool.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpeg implements Extractor and Muxer by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	binary      string
	probeBinary string
	logger      *slog.Logger
	run         CommandRunner
	probe       ffprobe.Runner
}

// NewFFmpeg constructs the ffmpeg-backed collaborator.
func NewFFmpeg(binary, probeBinary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	return &FFmpeg{
		binary:      binary,
		probeBinary: probeBinary,
		logger:      logging.NewComponentLogger(logger, "ffmpeg"),
		run:         defaultCommandRunner,
		probe:       ffprobe.DefaultRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (f *FFmpeg) WithCommandRunner(r CommandRunner) {
	if f != nil && r != nil {
		f.run = r
	}
}

// WithProbeRunner allows injecting a custom ffprobe runner for tests.
func (f *FFmpeg) WithProbeRunner(r ffprobe.Runner) {
	if f != nil && r != nil {
		f.probe = r
	}
}

// Extract writes a mono 16 kHz PCM WAV of the first audio stream. The video
// must carry at least one audio stream.
func (f *FFmpeg) Extract(ctx context.Context, videoPath, outAudioPath string) error {
	const stage = "extract"
	if _, err := os.Stat(videoPath); err != nil {
		return services.Wrap(services.KindNotFound, stage, "stat video", videoPath, err)
	}

	probe, err := ffprobe.Inspect(ctx, f.probe, f.probeBinary, videoPath)
	if err != nil {
		return services.Wrap(services.KindInput, stage, "probe video", "container is unreadable", err)
	}
	if probe.AudioStreamCount() == 0 {
		return services.Wrap(services.KindInput, stage, "probe video", "video has no audio stream", nil)
	}

	tmpPath := tempSibling(outAudioPath)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	}
	f.logger.Debug("extracting audio",
		logging.String("video", videoPath),
		logging.String("audio", outAudioPath),
		logging.Any("duration_seconds", probe.DurationSeconds()),
	)
	if err := f.run(ctx, f.binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.KindInference, stage, "ffmpeg", "audio extraction failed", err)
	}
	if err := commitOutput(tmpPath, outAudioPath); err != nil {
		return services.Wrap(services.KindInference, stage, "ffmpeg", "audio extraction produced no output", err)
	}
	f.logger.Info("audio extracted",
		logging.String(logging.FieldEventType, "audio_extracted"),
		logging.String("audio", outAudioPath),
	)
	return nil
}

// BurnSubtitles renders subtitlePath onto videoPath with the ass filter and
// writes outVideoPath. Audio is copied unchanged.
func (f *FFmpeg) BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outVideoPath string) error {
	const stage = "render"
	if _, err := os.Stat(videoPath); err != nil {
		return services.Wrap(services.KindNotFound, stage, "stat video", videoPath, err)
	}
	if _, err := os.Stat(subtitlePath); err != nil {
		return services.Wrap(services.KindNotFound, stage, "stat subtitle", subtitlePath, err)
	}

	tmpPath := tempSibling(outVideoPath)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", "ass=" + escapeFilterValue(subtitlePath),
		"-c:a", "copy",
		tmpPath,
	}
	f.logger.Debug("rendering subtitled video",
		logging.String("video", videoPath),
		logging.String("subtitle", subtitlePath),
	)
	if err := f.run(ctx, f.binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		return services.Wrap(services.KindInference, stage, "ffmpeg", "subtitle render failed", err)
	}
	if err := commitOutput(tmpPath, outVideoPath); err != nil {
		return services.Wrap(services.KindInference, stage, "ffmpeg", "subtitle render produced no output", err)
	}
	f.logger.Info("subtitled video rendered",
		logging.String(logging.FieldEventType, "video_rendered"),
		logging.String("output", outVideoPath),
	)
	return nil
}

// tempSibling keeps the extension so ffmpeg can infer the container.
func tempSibling(path string) string {
	return filepath.Join(filepath.Dir(path), ".partial-"+filepath.Base(path))
}

func commitOutput(tmpPath, finalPath string) error {
	if !fileutil.NonEmpty(tmpPath) {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%s missing or empty", tmpPath)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// escapeFilterValue escapes characters that are special inside an ffmpeg
// filtergraph option value.
func escapeFilterValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '\\', '\'', ':', ',', ';', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
