package pipeline

import (
	"log/slog"

	"subgen/internal/media"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/services/translation"
	"subgen/internal/session"
	"subgen/internal/workspace"
)

// Dependencies are the collaborators an Orchestrator drives. Store may be nil,
// in which case the session lives only in memory and no history is kept.
type Dependencies struct {
	Workspace            *workspace.Manager
	Store                *session.Store
	Extractor            media.Extractor
	Muxer                media.Muxer
	SeparationFactory    separation.Factory
	TranscriptionFactory transcription.EngineFactory
	TranslationOptions   []translation.Option
	Logger               *slog.Logger
}

// PackageOptions controls the packaging stage.
type PackageOptions struct {
	RenderVideo bool
}

// PackageResult lists the artifacts of a packaging run.
type PackageResult struct {
	Bundle        string
	Transcript    session.Transcript
	Translated    *session.Transcript
	RenderedVideo string
}

// RunRequest describes a full pipeline pass. Model is only used when no
// engine is resident; blank falls back to the persisted selection.
type RunRequest struct {
	Source  string
	Kind    session.MediaKind
	Clean   bool
	Model   session.ModelSelection
	Options transcription.Options
	Package PackageOptions
}

// Status is a display snapshot of the session.
type Status struct {
	State           session.State
	Model           transcription.ModelSpec
	ModelLoaded     bool
	SeparationModel string
	SeparationState string
	Provider        translation.Kind
	TargetLanguage  string
	WorkspaceDir    string
	FreeBytes       uint64
}
