package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"subgen/internal/logging"
	"subgen/internal/services"
	"subgen/internal/subtitles"
)

const stageName = "transcription"

// Config binds the adapter to the local model layout and output formatting.
type Config struct {
	ModelsDir    string
	ModelPrefix  string
	ComputeType  string
	MaxLineWidth int
	Style        subtitles.Style
}

// Result is the pair of subtitle files written by a transcription.
type Result struct {
	SRTPath string
	ASSPath string
}

// Adapter keeps at most one engine resident.
type Adapter struct {
	mu      sync.Mutex
	cfg     Config
	factory EngineFactory
	engine  Engine
	spec    ModelSpec
	logger  *slog.Logger
}

// NewAdapter returns an adapter with no model loaded.
func NewAdapter(factory EngineFactory, cfg Config, logger *slog.Logger) *Adapter {
	if strings.TrimSpace(cfg.ModelPrefix) == "" {
		cfg.ModelPrefix = "faster-whisper"
	}
	if cfg.Style == (subtitles.Style{}) {
		cfg.Style = subtitles.DefaultStyle()
	}
	return &Adapter{
		cfg:     cfg,
		factory: factory,
		logger:  logging.NewComponentLogger(logger, stageName),
	}
}

// ResolveModel decides where a model is loaded from: an existing custom path,
// then <models_dir>/<prefix>-<id>, then the engine's remote catalogue.
func (a *Adapter) ResolveModel(id string, device Device, customPath string) (ModelSpec, error) {
	spec := ModelSpec{Device: device, ComputeType: a.cfg.ComputeType}

	if customPath = strings.TrimSpace(customPath); customPath != "" {
		if _, err := os.Stat(customPath); err != nil {
			return ModelSpec{}, services.Wrap(services.KindNotFound, stageName, "resolve model",
				fmt.Sprintf("custom model path %s", customPath), err)
		}
		spec.Name = filepath.Base(customPath)
		spec.Path = customPath
		return spec, nil
	}

	id = strings.TrimSpace(id)
	if !IsKnownModel(id) {
		return ModelSpec{}, services.WithHint(
			services.Wrap(services.KindInput, stageName, "resolve model",
				fmt.Sprintf("unknown model %q", id), nil),
			"choose one of "+strings.Join(KnownModels, ", ")+" or pass a custom model path",
		)
	}
	spec.Name = id
	if a.cfg.ModelsDir != "" {
		local := filepath.Join(a.cfg.ModelsDir, a.cfg.ModelPrefix+"-"+id)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			spec.Path = local
		}
	}
	return spec, nil
}

// Load replaces the resident engine with one bound to the resolved model.
// The previous engine is released before the new one is constructed.
func (a *Adapter) Load(ctx context.Context, id string, device Device, customPath string) (ModelSpec, error) {
	if _, err := ParseDevice(string(device)); err != nil {
		return ModelSpec{}, err
	}
	spec, err := a.ResolveModel(id, device, customPath)
	if err != nil {
		return ModelSpec{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.factory == nil {
		return ModelSpec{}, services.Wrap(services.KindEngineInit, stageName, "load model", "no transcription engine configured", nil)
	}
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.logger.Debug("previous engine close failed", logging.Error(err))
		}
		a.engine = nil
		a.spec = ModelSpec{}
	}

	engine, err := a.factory(ctx, spec)
	if err != nil {
		return ModelSpec{}, services.WithHint(
			services.Wrap(services.KindEngineInit, stageName, "load model",
				fmt.Sprintf("load %s on %s", spec.Source(), spec.Device), err),
			"check that uvx can launch the transcription engine and the device is available",
		)
	}
	a.engine = engine
	a.spec = spec
	a.logger.Info("transcription model loaded",
		logging.String(logging.FieldEventType, "transcription_model_loaded"),
		logging.String("model", spec.Name),
		logging.String("source", spec.Source()),
		logging.String("device", string(spec.Device)),
	)
	return spec, nil
}

// Loaded reports whether an engine is resident.
func (a *Adapter) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine != nil
}

// Model returns the resident model, if any.
func (a *Adapter) Model() (ModelSpec, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spec, a.engine != nil
}

// Transcribe runs the resident engine over audioPath and writes
// <dir>/<base>.srt and <dir>/<base>.ass next to the audio.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.engine == nil {
		return Result{}, services.WithHint(
			services.Wrap(services.KindPrecondition, stageName, "transcribe", "no model loaded", nil),
			"run `subgen model load` first",
		)
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, services.Wrap(services.KindNotFound, stageName, "transcribe", audioPath, err)
	}

	dir := filepath.Dir(audioPath)
	cues, err := a.engine.Transcribe(ctx, audioPath, dir, opts.request())
	if err != nil {
		return Result{}, services.Wrap(services.KindInference, stageName, "transcribe",
			fmt.Sprintf("model %s failed on %s", a.spec.Name, filepath.Base(audioPath)), err)
	}
	if opts.TextSplit {
		cues = subtitles.Split(cues, opts.SplitMethod, a.cfg.MaxLineWidth)
	}
	if issues := subtitles.Validate(cues); len(issues) > 0 {
		logging.WarnWithContext(a.logger, "transcript has timing issues", "transcript_validation",
			logging.String(logging.FieldImpact, "subtitles may display out of order"),
			logging.Any("issues", issues),
		)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	result := Result{
		SRTPath: filepath.Join(dir, base+".srt"),
		ASSPath: filepath.Join(dir, base+".ass"),
	}
	if err := subtitles.WriteSRT(result.SRTPath, cues); err != nil {
		return Result{}, services.Wrap(services.KindStorage, stageName, "write srt", result.SRTPath, err)
	}
	doc := subtitles.Document{Language: string(opts.Language), Cues: cues}
	if err := subtitles.WriteASS(result.ASSPath, doc, a.cfg.Style); err != nil {
		return Result{}, services.Wrap(services.KindStorage, stageName, "write ass", result.ASSPath, err)
	}
	a.logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.String("model", a.spec.Name),
		logging.String("language", string(opts.Language)),
		logging.Int("cues", len(cues)),
		logging.String("srt", result.SRTPath),
	)
	return result, nil
}

// Close releases the resident engine.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine == nil {
		return nil
	}
	err := a.engine.Close()
	a.engine = nil
	a.spec = ModelSpec{}
	return err
}
