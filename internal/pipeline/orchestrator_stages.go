package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"subgen/internal/logging"
	"subgen/internal/services"
	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/services/translation"
	"subgen/internal/session"
	"subgen/internal/workspace"
)

// Upload brings a source file into the workspace. Derived files that already
// exist for the same base name are reused.
func (o *Orchestrator) Upload(ctx context.Context, source string, kind session.MediaKind) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.track(ctx, "upload", func(ctx context.Context) ([]string, error) {
		return o.upload(ctx, source, kind)
	})
}

func (o *Orchestrator) upload(ctx context.Context, source string, kind session.MediaKind) ([]string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.KindInput, "upload", "upload", "no file provided", nil)
	}
	if kind != session.MediaVideo && kind != session.MediaAudio {
		return nil, services.Wrap(services.KindInput, "upload", "upload",
			fmt.Sprintf("unsupported media kind %q (want video or audio)", kind), nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.KindNotFound, "upload", "upload", source, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.KindInput, "upload", "upload", fmt.Sprintf("%s is a directory", source), nil)
	}

	previous := o.state
	next := o.state.Clone()
	next.ResetMedia()
	next.SourceName = filepath.Base(source)
	next.SourceSize = info.Size()
	next.Kind = kind

	audioPath := o.ws.ResolvePath(source, workspace.SuffixAudio)
	logger := logging.WithContext(ctx, o.logger)

	switch kind {
	case session.MediaVideo:
		if o.extractor == nil {
			return nil, services.Wrap(services.KindConfig, "upload", "extract audio", "no audio extractor configured", nil)
		}
		videoPath := o.ws.ResolvePath(source, workspace.SuffixVideoCopy)
		if o.ws.Exists(videoPath) {
			o.noteReuse(logger, previous, next, videoPath)
		} else if err := o.ws.CopyInto(source, videoPath); err != nil {
			return nil, err
		}
		if o.ws.Exists(audioPath) {
			o.noteReuse(logger, previous, next, audioPath)
		} else if err := o.extractor.Extract(ctx, videoPath, audioPath); err != nil {
			return nil, err
		}
		next.VideoPath = videoPath
		next.VideoName = workspace.BaseName(source)
	case session.MediaAudio:
		if o.ws.Exists(audioPath) {
			o.noteReuse(logger, previous, next, audioPath)
		} else if err := o.ws.CopyInto(source, audioPath); err != nil {
			return nil, err
		}
	}
	next.AudioPath = audioPath
	next.Stage = session.StageMediaLoaded

	if err := o.commit(ctx, next); err != nil {
		return nil, err
	}
	logger.Info("media uploaded",
		logging.String(logging.FieldEventType, "media_uploaded"),
		logging.String("source", next.SourceName),
		logging.String("kind", string(kind)),
		logging.String("audio", next.AudioPath),
	)
	return []string{next.VideoPath, next.AudioPath}, nil
}

// noteReuse logs that a cached derived file is kept, warning when the same
// source name was last uploaded with a different size.
func (o *Orchestrator) noteReuse(logger *slog.Logger, previous, next session.State, path string) {
	stale := previous.SourceName == next.SourceName &&
		previous.SourceSize > 0 && previous.SourceSize != next.SourceSize
	if stale {
		logging.WarnWithContext(logger, "reusing cached file from a different source", "stale_cache",
			logging.String("path", path),
			logging.String("source", next.SourceName),
			logging.Int64("recorded_size", previous.SourceSize),
			logging.Int64("source_size", next.SourceSize),
			logging.String(logging.FieldErrorHint, "run `subgen clear` to rebuild derived files"),
			logging.String(logging.FieldImpact, "results may belong to the earlier upload"),
		)
		return
	}
	logger.Info("reusing cached file",
		logging.String(logging.FieldEventType, "cache_reuse"),
		logging.String("path", path),
	)
}

// Clean separates background audio from the uploaded track and keeps the
// secondary stem as cleaned audio. The separation engine is built on first
// use and kept for later calls.
func (o *Orchestrator) Clean(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.track(ctx, "clean", o.clean)
}

func (o *Orchestrator) clean(ctx context.Context) ([]string, error) {
	if !o.state.HasAudio() {
		return nil, precondition("separation", "clean", "no audio uploaded", "run `subgen upload` first")
	}
	sep, err := o.separator(ctx)
	if err != nil {
		return nil, err
	}
	primary, secondary, err := sep.Separate(ctx, o.state.AudioPath)
	if err != nil {
		return nil, err
	}

	next := o.state.Clone()
	next.CleanedAudioPath = secondary
	dropDerived(&next)
	next.Stage = session.StageAudioCleaned
	if err := o.commit(ctx, next); err != nil {
		return nil, err
	}
	return []string{primary, secondary}, nil
}

// SetSeparationModel switches the separation engine to name, building the
// engine first when needed. The previous model stays active on failure.
func (o *Orchestrator) SetSeparationModel(ctx context.Context, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.track(ctx, "separation_model", func(ctx context.Context) ([]string, error) {
		sep, err := o.separator(ctx)
		if err != nil {
			return nil, err
		}
		return nil, sep.ChangeModel(ctx, name)
	})
}

func (o *Orchestrator) separator(ctx context.Context) (*separation.Adapter, error) {
	if o.engines.Separator != nil {
		return o.engines.Separator, nil
	}
	adapter := separation.NewAdapter(o.sepFac, separation.Config{
		ModelsDir:     o.cfg.Separation.ModelsDir,
		OutputDir:     o.ws.Dir(),
		SampleRate:    o.cfg.Separation.SampleRate,
		DefaultModels: o.cfg.Separation.DefaultModels,
	}, o.logger)
	if err := adapter.Init(ctx); err != nil {
		_ = adapter.Close()
		return nil, err
	}
	o.engines.Separator = adapter
	return adapter, nil
}

// LoadModel loads a transcription model, replacing any resident one, and
// remembers the selection for later sessions.
func (o *Orchestrator) LoadModel(ctx context.Context, selection session.ModelSelection) (transcription.ModelSpec, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var spec transcription.ModelSpec
	err := o.track(ctx, "load_model", func(ctx context.Context) ([]string, error) {
		var err error
		spec, err = o.loadModel(ctx, selection)
		return nil, err
	})
	return spec, err
}

func (o *Orchestrator) loadModel(ctx context.Context, selection session.ModelSelection) (transcription.ModelSpec, error) {
	device, err := transcription.ParseDevice(selection.Device)
	if err != nil {
		return transcription.ModelSpec{}, err
	}
	spec, err := o.engines.Transcriber.Load(ctx, selection.Name, device, selection.CustomPath)
	if err != nil {
		return transcription.ModelSpec{}, err
	}
	next := o.state.Clone()
	next.Model = &session.ModelSelection{
		Name:       strings.TrimSpace(selection.Name),
		Device:     string(device),
		CustomPath: strings.TrimSpace(selection.CustomPath),
	}
	if err := o.commit(ctx, next); err != nil {
		return transcription.ModelSpec{}, err
	}
	return spec, nil
}

// Transcribe runs the resident model over the cleaned audio when present,
// otherwise the uploaded audio. A model selected by an earlier process is
// reloaded first.
func (o *Orchestrator) Transcribe(ctx context.Context, opts transcription.Options) (session.Transcript, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out session.Transcript
	err := o.track(ctx, "transcribe", func(ctx context.Context) ([]string, error) {
		var err error
		out, err = o.transcribe(ctx, opts)
		return out.Paths(), err
	})
	return out, err
}

func (o *Orchestrator) transcribe(ctx context.Context, opts transcription.Options) (session.Transcript, error) {
	audio := o.state.InputAudio()
	if audio == "" {
		return session.Transcript{}, precondition("transcription", "transcribe", "no audio uploaded", "run `subgen upload` first")
	}
	if err := o.ensureModel(ctx, session.ModelSelection{}); err != nil {
		return session.Transcript{}, err
	}
	result, err := o.engines.Transcriber.Transcribe(ctx, audio, opts)
	if err != nil {
		return session.Transcript{}, err
	}

	next := o.state.Clone()
	dropDerived(&next)
	next.Transcript = &session.Transcript{SRTPath: result.SRTPath, ASSPath: result.ASSPath}
	next.Stage = session.StageTranscribed
	if err := o.commit(ctx, next); err != nil {
		return session.Transcript{}, err
	}
	return *next.Transcript, nil
}

// ensureModel loads fallback, then the persisted selection, when no engine is
// resident.
func (o *Orchestrator) ensureModel(ctx context.Context, fallback session.ModelSelection) error {
	if o.engines.Transcriber.Loaded() {
		return nil
	}
	selection := fallback
	if strings.TrimSpace(selection.Name) == "" && strings.TrimSpace(selection.CustomPath) == "" {
		if o.state.Model == nil {
			return precondition("transcription", "transcribe", "no model loaded", "run `subgen model load` first")
		}
		selection = *o.state.Model
		o.logger.Info("restoring transcription model",
			logging.String(logging.FieldEventType, "model_restore"),
			logging.String("model", selection.Name),
			logging.String("device", selection.Device),
		)
	}
	_, err := o.loadModel(ctx, selection)
	return err
}

// SetTranslationProvider replaces the active translator. KindNone clears it.
// Existing translated files are left alone.
func (o *Orchestrator) SetTranslationProvider(ctx context.Context, kind translation.Kind, creds translation.Credentials) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.track(ctx, "translate_set", func(ctx context.Context) ([]string, error) {
		tr, err := translation.New(kind, creds, o.logger, o.trOpts...)
		if err != nil {
			return nil, err
		}
		next := o.state.Clone()
		next.Provider = string(tr.Kind())
		next.TargetLanguage = tr.Target()
		if err := o.commit(ctx, next); err != nil {
			return nil, err
		}
		o.engines.Translator = tr
		return nil, nil
	})
}

// ClearWorkspace removes every derived file and resets the media handles.
func (o *Orchestrator) ClearWorkspace(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.track(ctx, "clear", func(ctx context.Context) ([]string, error) {
		if err := o.ws.Clear(); err != nil {
			return nil, err
		}
		next := o.state.Clone()
		next.ResetMedia()
		return nil, o.commit(ctx, next)
	})
}

// dropDerived forgets every artifact produced after audio preparation.
func dropDerived(state *session.State) {
	state.Transcript = nil
	state.Translated = nil
	state.Bundle = ""
	state.RenderedVideo = ""
}
