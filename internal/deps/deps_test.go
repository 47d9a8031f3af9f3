package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"subgen/internal/config"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	writeStub(t, present)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "also-not-present", Optional: true},
		{Name: "Blank"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[3].Detail)
	}
	if got := Missing(results); !slices.Equal(got, []string{"Missing", "Blank"}) {
		t.Fatalf("unexpected missing list %v", got)
	}
}

func TestResolveFFprobePrefersSidecar(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	writeStub(t, ffmpegPath)
	writeStub(t, ffprobePath)

	if got := ResolveFFprobe(ffmpegPath, ""); got != ffprobePath {
		t.Fatalf("expected sidecar %q, got %q", ffprobePath, got)
	}
}

func TestResolveFFprobeExplicitPathWins(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	writeStub(t, ffmpegPath)
	writeStub(t, filepath.Join(tmp, executableName("ffprobe")))

	if got := ResolveFFprobe(ffmpegPath, "/opt/ffprobe"); got != "/opt/ffprobe" {
		t.Fatalf("explicit ffprobe should be kept, got %q", got)
	}
}

func TestResolveFFprobeFallsBackToName(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	writeStub(t, ffmpegPath)

	if got := ResolveFFprobe(ffmpegPath, "ffprobe"); got != "ffprobe" {
		t.Fatalf("expected PATH lookup name, got %q", got)
	}
	t.Setenv("PATH", "")
	if got := ResolveFFprobe("ffmpeg", ""); got != "ffprobe" {
		t.Fatalf("unresolvable ffmpeg should fall back, got %q", got)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.UVX = "/opt/uv/bin/uvx"
	reqs := Requirements(&cfg)
	if len(reqs) != 3 || reqs[2].Command != "/opt/uv/bin/uvx" {
		t.Fatalf("unexpected requirements %+v", reqs)
	}
	if !reqs[1].Optional {
		t.Fatal("ffprobe is optional while rendering is off")
	}
	cfg.Output.RenderVideo = true
	if Requirements(&cfg)[1].Optional {
		t.Fatal("ffprobe is required when rendering is on")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
