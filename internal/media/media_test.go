package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subgen/internal/services"
)

const probeWithAudio = `{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio"}],"format":{"duration":"12.5"}}`

func probeReturning(payload string) func(context.Context, string, ...string) ([]byte, error) {
	return func(context.Context, string, ...string) ([]byte, error) { return []byte(payload), nil }
}

// writingRunner emulates ffmpeg by writing bytes to the last argument.
func writingRunner(calls *[][]string) CommandRunner {
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, append([]string{name}, args...))
		return os.WriteFile(args[len(args)-1], []byte("output"), 0o644)
	}
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("input"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractWritesAudioAtomically(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "interview.mp4")
	out := filepath.Join(dir, "interview.wav")

	var calls [][]string
	ff := NewFFmpeg("", "", nil)
	ff.WithProbeRunner(probeReturning(probeWithAudio))
	ff.WithCommandRunner(writingRunner(&calls))

	if err := ff.Extract(context.Background(), video, out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(calls) != 1 || calls[0][0] != "ffmpeg" {
		t.Fatalf("unexpected calls: %v", calls)
	}
	joined := strings.Join(calls[0], " ")
	if !strings.Contains(joined, "-ar 16000") || !strings.Contains(joined, "-ac 1") {
		t.Fatalf("expected mono 16k extraction, got %s", joined)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty audio output, err=%v", err)
	}
	if _, err := os.Stat(tempSibling(out)); !os.IsNotExist(err) {
		t.Fatal("partial file should have been renamed")
	}
}

func TestExtractRejectsVideoWithoutAudio(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "silent.mp4")
	ff := NewFFmpeg("ffmpeg", "ffprobe", nil)
	ff.WithProbeRunner(probeReturning(`{"streams":[{"index":0,"codec_type":"video"}]}`))
	ff.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("ffmpeg must not run without an audio stream")
		return nil
	})
	err := ff.Extract(context.Background(), video, filepath.Join(dir, "silent.wav"))
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestExtractMissingVideoIsNotFound(t *testing.T) {
	ff := NewFFmpeg("ffmpeg", "ffprobe", nil)
	err := ff.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "out.wav")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExtractEmptyOutputFails(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "a.mp4")
	out := filepath.Join(dir, "a.wav")
	ff := NewFFmpeg("ffmpeg", "ffprobe", nil)
	ff.WithProbeRunner(probeReturning(probeWithAudio))
	ff.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		return os.WriteFile(args[len(args)-1], nil, 0o644)
	})
	err := ff.Extract(context.Background(), video, out)
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("no output should be committed")
	}
}

func TestBurnSubtitlesEscapesFilterPath(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "a_temp.mp4")
	sub := writeInput(t, dir, "it's:a.ass")
	out := filepath.Join(dir, "a_output.mp4")

	var calls [][]string
	ff := NewFFmpeg("ffmpeg", "ffprobe", nil)
	ff.WithCommandRunner(writingRunner(&calls))
	if err := ff.BurnSubtitles(context.Background(), video, sub, out); err != nil {
		t.Fatalf("BurnSubtitles: %v", err)
	}
	var filter string
	for i, arg := range calls[0] {
		if arg == "-vf" {
			filter = calls[0][i+1]
		}
	}
	if !strings.HasSuffix(filter, `it\'s\:a.ass`) {
		t.Fatalf("expected escaped filter path, got %q", filter)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected rendered output: %v", err)
	}
}

func TestBurnSubtitlesFailureRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "a_temp.mp4")
	sub := writeInput(t, dir, "a.ass")
	out := filepath.Join(dir, "a_output.mp4")
	ff := NewFFmpeg("ffmpeg", "ffprobe", nil)
	ff.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		_ = os.WriteFile(args[len(args)-1], []byte("half"), 0o644)
		return errors.New("exit status 1")
	})
	err := ff.BurnSubtitles(context.Background(), video, sub, out)
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if _, statErr := os.Stat(tempSibling(out)); !os.IsNotExist(statErr) {
		t.Fatal("partial output should be removed")
	}
}
