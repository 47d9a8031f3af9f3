package separation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"subgen/internal/logging"
	"subgen/internal/services"
)

const stageName = "separation"

// IncompatibilityHint is shown when the installed engine cannot run with its
// runtime dependencies.
const IncompatibilityHint = `pin the separator with tools.separator_package = "audio-separator==0.16.5"`

// State tracks the adapter lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config binds the adapter to its model directory and output location.
type Config struct {
	ModelsDir     string
	OutputDir     string
	SampleRate    int
	DefaultModels []string
}

// Adapter owns one separation backend and the model loaded into it.
type Adapter struct {
	mu      sync.Mutex
	cfg     Config
	factory Factory
	backend Backend
	model   string
	state   State
	logger  *slog.Logger
}

// NewAdapter returns an uninitialized adapter. Init must succeed before use.
func NewAdapter(factory Factory, cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:     cfg,
		factory: factory,
		state:   StateUninitialized,
		logger:  logging.NewComponentLogger(logger, stageName),
	}
}

// Init constructs the backend and loads the first usable model: local weight
// files in name order, then the configured defaults.
func (a *Adapter) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateReady {
		return nil
	}
	a.state = StateLoading

	if a.factory == nil {
		a.state = StateFailed
		return services.Wrap(services.KindEngineInit, stageName, "init", "no separation backend configured", nil)
	}

	backend, err := a.factory(ctx, BackendConfig{
		ModelsDir:  a.cfg.ModelsDir,
		OutputDir:  a.cfg.OutputDir,
		SampleRate: a.cfg.SampleRate,
	})
	if err != nil {
		a.state = StateFailed
		if errors.Is(err, ErrIncompatible) {
			return services.Incompatible(services.KindEngineInit, stageName, "init",
				"separation engine is incompatible with its runtime", IncompatibilityHint, err)
		}
		return services.Wrap(services.KindEngineInit, stageName, "init", "construct separation engine", err)
	}

	local, err := LocalModels(a.cfg.ModelsDir)
	if err != nil {
		a.state = StateFailed
		_ = backend.Close()
		return services.Wrap(services.KindStorage, stageName, "init", "list local models", err)
	}

	candidates := append(local, a.cfg.DefaultModels...)
	var (
		attempts     []string
		incompatible error
		lastBad      string
	)
	for _, name := range candidates {
		if err := backend.LoadModel(ctx, name); err != nil {
			attempts = append(attempts, name)
			if errors.Is(err, ErrIncompatible) {
				incompatible, lastBad = err, name
				logging.WarnWithContext(a.logger, "separation model incompatible with engine", "separation_model_incompatible",
					logging.String("model", name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, IncompatibilityHint),
				)
				continue
			}
			a.logger.Debug("separation model failed to load",
				logging.String("model", name),
				logging.Error(err),
			)
			continue
		}
		a.backend = backend
		a.model = name
		a.state = StateReady
		a.logger.Info("separation model loaded",
			logging.String(logging.FieldEventType, "separation_model_loaded"),
			logging.String("model", name),
			logging.Int("skipped", len(attempts)),
		)
		return nil
	}

	a.state = StateFailed
	_ = backend.Close()
	if incompatible != nil {
		return services.Incompatible(services.KindEngineInit, stageName, "load model",
			fmt.Sprintf("no separation model could be loaded (tried %d, %s is incompatible with the installed engine)", len(attempts), lastBad),
			IncompatibilityHint, incompatible)
	}
	return services.WithHint(
		services.Wrap(services.KindEngineInit, stageName, "init",
			fmt.Sprintf("no separation model could be loaded (tried %d)", len(attempts)), nil),
		fmt.Sprintf("place a .pth or .onnx weight file in %s", a.cfg.ModelsDir),
	)
}

// Separate splits audioPath into primary and secondary stems and returns
// their absolute paths. The adapter stays Ready after a failed run.
func (a *Adapter) Separate(ctx context.Context, audioPath string) (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReady || a.backend == nil {
		return "", "", services.Wrap(services.KindPrecondition, stageName, "separate",
			fmt.Sprintf("adapter is %s", a.state), nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", "", services.Wrap(services.KindNotFound, stageName, "separate", audioPath, err)
	}

	primary, secondary, err := a.backend.Separate(ctx, audioPath)
	if err != nil {
		if errors.Is(err, ErrIncompatible) {
			return "", "", services.Incompatible(services.KindInference, stageName, "separate",
				"separation engine is incompatible with its runtime", IncompatibilityHint, err)
		}
		return "", "", services.Wrap(services.KindInference, stageName, "separate",
			fmt.Sprintf("model %s failed on %s", a.model, filepath.Base(audioPath)), err)
	}
	primary, _ = filepath.Abs(primary)
	secondary, _ = filepath.Abs(secondary)
	a.logger.Info("audio separated",
		logging.String(logging.FieldEventType, "audio_separated"),
		logging.String("model", a.model),
		logging.String("primary", primary),
		logging.String("secondary", secondary),
	)
	return primary, secondary, nil
}

// ChangeModel loads name into the backend. On failure the previous model
// remains active.
func (a *Adapter) ChangeModel(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return services.Wrap(services.KindInput, stageName, "change model", "model name is required", nil)
	}
	if a.state != StateReady || a.backend == nil {
		return services.Wrap(services.KindPrecondition, stageName, "change model",
			fmt.Sprintf("adapter is %s", a.state), nil)
	}
	if err := a.backend.LoadModel(ctx, name); err != nil {
		a.logger.Warn("separation model change failed",
			logging.String(logging.FieldEventType, "separation_model_change_failed"),
			logging.String(logging.FieldErrorHint, "check the model name and models directory"),
			logging.String(logging.FieldImpact, "previous model stays active"),
			logging.String("model", name),
			logging.String("active_model", a.model),
			logging.Error(err),
		)
		if errors.Is(err, ErrIncompatible) {
			return services.Incompatible(services.KindEngineInit, stageName, "change model",
				fmt.Sprintf("model %s is incompatible with the installed engine", name), IncompatibilityHint, err)
		}
		return services.Wrap(services.KindEngineInit, stageName, "change model",
			fmt.Sprintf("load %s", name), err)
	}
	a.model = name
	a.logger.Info("separation model changed",
		logging.String(logging.FieldEventType, "separation_model_changed"),
		logging.String("model", name),
	)
	return nil
}

// Model returns the active model name.
func (a *Adapter) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// State returns the lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close releases the backend.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	a.model = ""
	a.state = StateUninitialized
	return err
}

// LocalModels lists *.pth and *.onnx files in dir sorted by name. A missing
// directory is created and yields no models.
func LocalModels(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var models []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pth", ".onnx":
			models = append(models, entry.Name())
		}
	}
	slices.Sort(models)
	return models, nil
}
