package main

import (
	"github.com/spf13/cobra"

	"subgen/internal/config"
	"subgen/internal/services/transcription"
	"subgen/internal/session"
	"subgen/internal/subtitles"
)

// transcribeFlags are registered without defaults; unset flags fall back to
// the [transcription] config section when the command runs.
type transcribeFlags struct {
	language    string
	vad         bool
	minSilence  int
	split       bool
	splitMethod string
	prompt      string
}

func (f *transcribeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.language, "language", "l", "", "Spoken language: zh, ja or en (default from config)")
	flags.BoolVar(&f.vad, "vad", false, "Filter silence with voice activity detection")
	flags.IntVar(&f.minSilence, "min-silence", 0, "Minimum silence in milliseconds when --vad is set")
	flags.BoolVar(&f.split, "split", false, "Split long subtitle lines")
	flags.StringVar(&f.splitMethod, "split-method", "", "Line splitting method: modest or aggressive")
	flags.StringVar(&f.prompt, "prompt", "", "Initial prompt passed to the model")
}

func (f *transcribeFlags) options(cmd *cobra.Command, cfg config.Transcription) (transcription.Options, error) {
	changed := cmd.Flags().Changed
	lang := cfg.Language
	if changed("language") {
		lang = f.language
	}
	language, err := transcription.ParseLanguage(lang)
	if err != nil {
		return transcription.Options{}, err
	}

	opts := transcription.Options{
		Language:      language,
		VADFilter:     cfg.VADFilter,
		TextSplit:     cfg.TextSplit,
		SplitMethod:   subtitles.SplitMethod(cfg.SplitMethod),
		InitialPrompt: cfg.InitialPrompt,
	}
	if changed("vad") {
		opts.VADFilter = f.vad
	}
	if changed("split") {
		opts.TextSplit = f.split
	}
	if changed("split-method") {
		opts.SplitMethod = subtitles.SplitMethod(f.splitMethod)
	}
	if changed("prompt") {
		opts.InitialPrompt = f.prompt
	}
	if opts.VADFilter {
		silence := cfg.MinSilenceDurationMs
		if changed("min-silence") {
			silence = f.minSilence
		}
		opts.MinSilenceDurationMs = &silence
	}
	return opts, opts.Validate()
}

// modelFlags select a transcription model; unset flags fall back to config.
type modelFlags struct {
	name   string
	device string
	path   string
}

func (f *modelFlags) register(cmd *cobra.Command, nameFlag string) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, nameFlag, "", "Model name (default from config)")
	flags.StringVar(&f.device, "device", "", "Compute device: cpu or cuda (default from config)")
	flags.StringVar(&f.path, "path", "", "Local model directory, overrides the model name")
}

func (f *modelFlags) selection(cmd *cobra.Command, nameFlag string, cfg config.Transcription) session.ModelSelection {
	changed := cmd.Flags().Changed
	sel := session.ModelSelection{Name: cfg.ModelName, Device: cfg.Device, CustomPath: cfg.CustomModelPath}
	if changed(nameFlag) {
		sel.Name = f.name
		sel.CustomPath = ""
	}
	if changed("device") {
		sel.Device = f.device
	}
	if changed("path") {
		sel.CustomPath = f.path
	}
	return sel
}

// explicit reports whether any model flag was set.
func (f *modelFlags) explicit(cmd *cobra.Command, nameFlag string) bool {
	flags := cmd.Flags()
	return flags.Changed(nameFlag) || flags.Changed("device") || flags.Changed("path")
}
