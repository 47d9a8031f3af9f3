package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"subgen/internal/subtitles"
)

// ModelSpec identifies the model an engine is bound to. Path is set when the
// model is loaded from a local directory; Name is then only for display.
type ModelSpec struct {
	Name        string
	Path        string
	Device      Device
	ComputeType string
}

// Source returns the value handed to the engine as the model argument.
func (m ModelSpec) Source() string {
	if m.Path != "" {
		return m.Path
	}
	return m.Name
}

// Request carries the engine-level options of one transcription.
type Request struct {
	Language             string
	VADFilter            bool
	MinSilenceDurationMs *int
	InitialPrompt        string
}

// Engine is a speech-to-text engine bound to one model.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, workDir string, req Request) ([]subtitles.Cue, error)
	Close() error
}

// EngineFactory constructs an Engine for spec.
type EngineFactory func(ctx context.Context, spec ModelSpec) (Engine, error)

// OutputRunner executes a command and returns its combined output.
type OutputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLIOptions configures the whisper-ctranslate2 backend launched through uvx.
type CLIOptions struct {
	UVX     string
	Package string
	Run     OutputRunner
}

const engineCommand = "whisper-ctranslate2"

// NewCLIFactory returns a factory for engines that run whisper-ctranslate2.
func NewCLIFactory(opts CLIOptions) EngineFactory {
	if strings.TrimSpace(opts.UVX) == "" {
		opts.UVX = "uvx"
	}
	if strings.TrimSpace(opts.Package) == "" {
		opts.Package = engineCommand
	}
	if opts.Run == nil {
		opts.Run = defaultOutputRunner
	}
	return func(ctx context.Context, spec ModelSpec) (Engine, error) {
		engine := &cliEngine{opts: opts, spec: spec}
		if _, err := engine.exec(ctx, "--version"); err != nil {
			return nil, err
		}
		return engine, nil
	}
}

type cliEngine struct {
	opts CLIOptions
	spec ModelSpec
}

func (e *cliEngine) exec(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--from", e.opts.Package, engineCommand}, args...)
	output, err := e.opts.Run(ctx, e.opts.UVX, full...)
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", engineCommand, err, lastLine(output))
	}
	return output, nil
}

func (e *cliEngine) buildArgs(audioPath, outDir string, req Request) []string {
	args := []string{audioPath}
	if e.spec.Path != "" {
		args = append(args, "--model_directory", e.spec.Path)
	} else {
		args = append(args, "--model", e.spec.Name)
	}
	args = append(args,
		"--device", string(e.spec.Device),
		"--output_dir", outDir,
		"--output_format", "json",
		"--verbose", "False",
	)
	if e.spec.ComputeType != "" {
		args = append(args, "--compute_type", e.spec.ComputeType)
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	if req.VADFilter {
		args = append(args, "--vad_filter", "True")
		if req.MinSilenceDurationMs != nil {
			args = append(args, "--vad_min_silence_duration_ms", strconv.Itoa(*req.MinSilenceDurationMs))
		}
	}
	if req.InitialPrompt != "" {
		args = append(args, "--initial_prompt", req.InitialPrompt)
	}
	return args
}

func (e *cliEngine) Transcribe(ctx context.Context, audioPath, workDir string, req Request) ([]subtitles.Cue, error) {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outDir, err := os.MkdirTemp(workDir, ".transcribe-"+base+"-")
	if err != nil {
		return nil, fmt.Errorf("create engine output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if _, err := e.exec(ctx, e.buildArgs(audioPath, outDir, req)...); err != nil {
		return nil, err
	}
	return LoadSegments(filepath.Join(outDir, base+".json"))
}

func (e *cliEngine) Close() error { return nil }

// Segment is a transcribed span from the engine's JSON output.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type enginePayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments reads engine JSON output and converts non-blank segments to
// numbered cues.
func LoadSegments(path string) ([]subtitles.Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload enginePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse engine json: %w", err)
	}
	cues := make([]subtitles.Cue, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		cues = append(cues, subtitles.Cue{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  text,
		})
	}
	return subtitles.Renumber(cues), nil
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v*1000)) * time.Millisecond
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func defaultOutputRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
