package separation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ErrIncompatible marks a backend failure caused by an engine and runtime
// version mismatch. Backends wrap it at the point of detection.
var ErrIncompatible = errors.New("separation engine version incompatibility")

// BackendConfig is passed to a Factory.
type BackendConfig struct {
	ModelsDir  string
	OutputDir  string
	SampleRate int
}

// Backend is the underlying source-separation engine. LoadModel must leave
// the previously loaded model active when it fails.
type Backend interface {
	LoadModel(ctx context.Context, name string) error
	Separate(ctx context.Context, audioPath string) (primary, secondary string, err error)
	Close() error
}

// Factory constructs a Backend.
type Factory func(ctx context.Context, cfg BackendConfig) (Backend, error)

// OutputRunner executes a command and returns its combined output.
type OutputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLIOptions configures the audio-separator command-line backend.
type CLIOptions struct {
	UVX     string
	Package string
	Run     OutputRunner
}

const (
	separatorCommand = "audio-separator"
	// Printed by audio-separator releases whose model registry no longer
	// matches the installed package.
	incompatibilitySignature = "roformer_download_list"
)

// Stem name markers of the background-removed (voice) output.
var cleanStemMarkers = []string{"(Vocals)", "(No Echo)", "(No Reverb)", "(No Noise)"}

// NewCLIFactory returns a Factory that drives audio-separator through uvx.
func NewCLIFactory(opts CLIOptions) Factory {
	if strings.TrimSpace(opts.UVX) == "" {
		opts.UVX = "uvx"
	}
	if strings.TrimSpace(opts.Package) == "" {
		opts.Package = separatorCommand
	}
	if opts.Run == nil {
		opts.Run = defaultOutputRunner
	}
	return func(ctx context.Context, cfg BackendConfig) (Backend, error) {
		b := &cliBackend{opts: opts, cfg: cfg}
		if cfg.SampleRate <= 0 {
			b.cfg.SampleRate = 44000
		}
		if err := b.probe(ctx); err != nil {
			return nil, err
		}
		return b, nil
	}
}

type cliBackend struct {
	opts  CLIOptions
	cfg   BackendConfig
	model string
}

func (b *cliBackend) command(args ...string) []string {
	return append([]string{"--from", b.opts.Package, separatorCommand}, args...)
}

func (b *cliBackend) exec(ctx context.Context, args ...string) error {
	output, err := b.opts.Run(ctx, b.opts.UVX, b.command(args...)...)
	if err != nil {
		if bytes.Contains(output, []byte(incompatibilitySignature)) {
			return fmt.Errorf("%w: %v", ErrIncompatible, err)
		}
		return fmt.Errorf("%s: %w: %s", separatorCommand, err, lastLine(output))
	}
	return nil
}

func (b *cliBackend) probe(ctx context.Context) error {
	return b.exec(ctx, "--env_info")
}

func (b *cliBackend) LoadModel(ctx context.Context, name string) error {
	if err := b.exec(ctx,
		"--download_model_only",
		"--model_filename", name,
		"--model_file_dir", b.cfg.ModelsDir,
	); err != nil {
		return err
	}
	b.model = name
	return nil
}

func (b *cliBackend) Separate(ctx context.Context, audioPath string) (string, string, error) {
	if b.model == "" {
		return "", "", errors.New("no model loaded")
	}
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outDir := filepath.Join(b.cfg.OutputDir, base+"_stems")
	if err := os.RemoveAll(outDir); err != nil {
		return "", "", fmt.Errorf("reset stem directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create stem directory: %w", err)
	}

	if err := b.exec(ctx,
		audioPath,
		"--model_filename", b.model,
		"--model_file_dir", b.cfg.ModelsDir,
		"--output_dir", outDir,
		"--output_format", "WAV",
		"--sample_rate", strconv.Itoa(b.cfg.SampleRate),
	); err != nil {
		return "", "", err
	}
	return pickStems(outDir)
}

func (b *cliBackend) Close() error {
	b.model = ""
	return nil
}

// pickStems returns (primary, secondary) where secondary is the
// background-removed stem.
func pickStems(dir string) (string, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("read stems: %w", err)
	}
	var stems []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			stems = append(stems, filepath.Join(dir, entry.Name()))
		}
	}
	if len(stems) < 2 {
		return "", "", fmt.Errorf("expected two stems in %s, found %d", dir, len(stems))
	}
	slices.Sort(stems)

	secondary := -1
	for i, stem := range stems {
		name := filepath.Base(stem)
		for _, marker := range cleanStemMarkers {
			if strings.Contains(name, marker) {
				secondary = i
				break
			}
		}
		if secondary >= 0 {
			break
		}
	}
	if secondary < 0 {
		secondary = 1
	}
	primary := 0
	if secondary == 0 {
		primary = 1
	}
	return stems[primary], stems[secondary], nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func defaultOutputRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
