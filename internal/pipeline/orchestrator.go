package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"subgen/internal/config"
	"subgen/internal/logging"
	"subgen/internal/media"
	"subgen/internal/services"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/services/translation"
	"subgen/internal/session"
	"subgen/internal/subtitles"
	"subgen/internal/workspace"
)

// Orchestrator runs pipeline stages against a single session.
type Orchestrator struct {
	cfg       *config.Config
	ws        *workspace.Manager
	store     *session.Store
	extractor media.Extractor
	muxer     media.Muxer
	sepFac    separation.Factory
	trOpts    []translation.Option
	logger    *slog.Logger

	mu      sync.Mutex
	state   session.State
	engines session.Engines
	closed  bool
}

// New takes the workspace lock, restores the persisted session and brings
// back the persisted translation provider from the configured credentials.
func New(ctx context.Context, cfg *config.Config, deps Dependencies) (*Orchestrator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.KindConfig, "pipeline", "init", "configuration is required", nil)
	}
	if deps.Workspace == nil {
		return nil, services.Wrap(services.KindConfig, "pipeline", "init", "workspace is required", nil)
	}
	logger := logging.NewComponentLogger(deps.Logger, "pipeline")

	if err := deps.Workspace.Lock(); err != nil {
		return nil, err
	}

	state := session.NewState()
	if deps.Store != nil {
		loaded, err := deps.Store.Load(ctx)
		if err != nil {
			_ = deps.Workspace.Unlock()
			return nil, services.Wrap(services.KindStorage, "pipeline", "load session", "read session store", err)
		}
		state = loaded
	}

	o := &Orchestrator{
		cfg:       cfg,
		ws:        deps.Workspace,
		store:     deps.Store,
		extractor: deps.Extractor,
		muxer:     deps.Muxer,
		sepFac:    deps.SeparationFactory,
		trOpts:    deps.TranslationOptions,
		logger:    logger,
		state:     state,
	}
	o.engines.Transcriber = transcription.NewAdapter(deps.TranscriptionFactory, transcription.Config{
		ModelsDir:    cfg.Paths.ModelsDir,
		ModelPrefix:  cfg.Transcription.ModelPrefix,
		ComputeType:  cfg.Transcription.ComputeType,
		MaxLineWidth: cfg.Transcription.MaxLineWidth,
		Style:        subtitles.DefaultStyle(),
	}, deps.Logger)
	o.restoreTranslator()
	return o, nil
}

func (o *Orchestrator) restoreTranslator() {
	kind, err := translation.ParseKind(o.state.Provider)
	if err != nil || kind == translation.KindNone {
		o.state.Provider = string(translation.KindNone)
		return
	}
	creds := translation.CredentialsFromConfig(o.cfg.Translation)
	if o.state.TargetLanguage != "" {
		creds.TargetLanguage = o.state.TargetLanguage
	}
	tr, err := translation.New(kind, creds, o.logger, o.trOpts...)
	if err != nil {
		logging.WarnWithContext(o.logger, "translation provider not restored", "translation_restore_failed",
			logging.String("provider", string(kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the [translation] config section or run `subgen translate set`"),
			logging.String(logging.FieldImpact, "packaging will skip translation"),
		)
		o.state.Provider = string(translation.KindNone)
		o.state.TargetLanguage = ""
		return
	}
	o.engines.Translator = tr
}

// Close releases the engines and the workspace lock. The store stays open;
// its owner closes it.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return errors.Join(o.engines.Close(), o.ws.Unlock())
}

// track records op as a run around fn and classifies its failure.
func (o *Orchestrator) track(ctx context.Context, op string, fn func(context.Context) ([]string, error)) error {
	if o.closed {
		return services.Wrap(services.KindPrecondition, op, op, "orchestrator is closed", nil)
	}
	run := session.NewRun(op)
	ctx = services.WithRunID(ctx, run.ID)
	ctx = services.WithStage(ctx, op)
	logger := logging.WithContext(ctx, o.logger)
	o.recordRun(ctx, logger, run)

	artifacts, err := fn(ctx)
	err = services.Classify(op, err)
	run.Finish(err, artifacts...)
	o.recordRun(ctx, logger, run)

	if err != nil {
		attrs := []logging.Attr{
			logging.String("operation", op),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.Error(err),
		}
		var classified *services.Error
		if errors.As(err, &classified) && classified.Hint != "" {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, classified.Hint))
		}
		logging.ErrorWithContext(logger, "operation failed", "operation_failed", attrs...)
		return err
	}
	logger.Info("operation complete",
		logging.String(logging.FieldEventType, "operation_complete"),
		logging.String("operation", op),
		logging.Duration("duration", run.Duration()),
		logging.Int("artifacts", len(run.Artifacts)),
	)
	return nil
}

func (o *Orchestrator) recordRun(ctx context.Context, logger *slog.Logger, run session.Run) {
	if o.store == nil {
		return
	}
	if err := o.store.RecordRun(ctx, run); err != nil {
		logging.WarnWithContext(logger, "run history not recorded", "run_record_failed",
			logging.String("operation", run.Operation),
			logging.Error(err),
			logging.String(logging.FieldImpact, "history will miss this run"),
		)
	}
}

// commit persists next and makes it the current state.
func (o *Orchestrator) commit(ctx context.Context, next session.State) error {
	if o.store != nil {
		if err := o.store.Save(ctx, next); err != nil {
			return services.Wrap(services.KindStorage, "pipeline", "save session", "persist session state", err)
		}
	}
	o.state = next
	return nil
}

func precondition(stage, op, message, hint string) error {
	return services.WithHint(services.Wrap(services.KindPrecondition, stage, op, message, nil), hint)
}
