package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"subgen/internal/config"
	"subgen/internal/logging"
	"subgen/internal/pipeline"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/subtitles"
	"subgen/internal/testsupport"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, _ string, outAudioPath string) error {
	return os.WriteFile(outAudioPath, []byte("RIFF"), 0o644)
}

type stubMuxer struct{}

func (stubMuxer) BurnSubtitles(_ context.Context, _, _, outVideoPath string) error {
	return os.WriteFile(outVideoPath, []byte("video"), 0o644)
}

type stubBackend struct{}

func (stubBackend) LoadModel(context.Context, string) error { return nil }

func (stubBackend) Separate(_ context.Context, audioPath string) (string, string, error) {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	primary, secondary := base+"_(Instrumental).wav", base+"_(Vocals).wav"
	for _, p := range []string{primary, secondary} {
		if err := os.WriteFile(p, []byte("stem"), 0o644); err != nil {
			return "", "", err
		}
	}
	return primary, secondary, nil
}

func (stubBackend) Close() error { return nil }

type stubEngine struct{}

func (stubEngine) Transcribe(context.Context, string, string, transcription.Request) ([]subtitles.Cue, error) {
	return []subtitles.Cue{{Index: 1, Start: 0, End: time.Second, Text: "こんにちは"}}, nil
}

func (stubEngine) Close() error { return nil }

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	sourceDir  string

	mu     sync.Mutex
	models []transcription.ModelSpec
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "config.toml"),
		sourceDir:  filepath.Join(base, "sources"),
	}
	if err := os.MkdirAll(env.sourceDir, 0o755); err != nil {
		t.Fatalf("mkdir sources: %v", err)
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	if err := e.cfg.Save(e.configPath); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

func (e *cliTestEnv) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.sourceDir, name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func (e *cliTestEnv) dependencies(*config.Config, *slog.Logger) pipeline.Dependencies {
	return pipeline.Dependencies{
		Extractor: stubExtractor{},
		Muxer:     stubMuxer{},
		SeparationFactory: func(context.Context, separation.BackendConfig) (separation.Backend, error) {
			return stubBackend{}, nil
		},
		TranscriptionFactory: func(_ context.Context, spec transcription.ModelSpec) (transcription.Engine, error) {
			e.mu.Lock()
			e.models = append(e.models, spec)
			e.mu.Unlock()
			return stubEngine{}, nil
		},
	}
}

func (e *cliTestEnv) loadedModels() []transcription.ModelSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]transcription.ModelSpec(nil), e.models...)
}

// run executes one CLI invocation; each call is a separate process as far as
// the session is concerned.
func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFlag := ""
	ctx := newCommandContext(&configFlag)
	ctx.buildDeps = e.dependencies
	ctx.logger = logging.NewNop()
	cmd := newRootCommandWith(ctx, &configFlag)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("subgen %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
