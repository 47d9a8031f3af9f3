package preflight

import (
	"fmt"
	"strings"

	"subgen/internal/config"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
)

// CheckModels reports where the configured transcription model will come
// from and which separation weights are available locally. Remote models
// pass: they download on first load.
func CheckModels(cfg *config.Config) []Result {
	return []Result{checkTranscriptionModel(cfg), checkSeparationModels(cfg)}
}

func checkTranscriptionModel(cfg *config.Config) Result {
	const name = "Transcription model"

	device, err := transcription.ParseDevice(cfg.Transcription.Device)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid device %q", cfg.Transcription.Device)}
	}
	resolver := transcription.NewAdapter(nil, transcription.Config{
		ModelsDir:   cfg.Paths.ModelsDir,
		ModelPrefix: cfg.Transcription.ModelPrefix,
	}, nil)
	spec, err := resolver.ResolveModel(cfg.Transcription.ModelName, device, cfg.Transcription.CustomModelPath)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if spec.Path != "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s on %s (local: %s)", spec.Name, device, spec.Path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s on %s (downloaded on first load)", spec.Name, device)}
}

func checkSeparationModels(cfg *config.Config) Result {
	const name = "Separation models"

	local, err := separation.LocalModels(cfg.Separation.ModelsDir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Separation.ModelsDir, err)}
	}
	if len(local) > 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d local: %s", len(local), strings.Join(local, ", "))}
	}
	defaults := cfg.Separation.DefaultModels
	if len(defaults) == 0 {
		defaults = config.DefaultSeparationModels
	}
	return Result{Name: name, Passed: true, Detail: "none local; will download " + defaults[0]}
}
