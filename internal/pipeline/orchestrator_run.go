package pipeline

import (
	"context"

	"subgen/internal/services/separation"
	"subgen/internal/session"
)

// Run performs a full pass: Upload, optional Clean, model load when none is
// resident, Transcribe and Package. Each completed stage is committed, so a
// failure leaves the session at the last stage that succeeded.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (PackageResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out PackageResult
	err := o.track(ctx, "run", func(ctx context.Context) ([]string, error) {
		var artifacts []string
		uploaded, err := o.upload(ctx, req.Source, req.Kind)
		artifacts = append(artifacts, uploaded...)
		if err != nil {
			return artifacts, err
		}
		if req.Clean {
			cleaned, err := o.clean(ctx)
			artifacts = append(artifacts, cleaned...)
			if err != nil {
				return artifacts, err
			}
		}
		if err := o.ensureModel(ctx, req.Model); err != nil {
			return artifacts, err
		}
		transcript, err := o.transcribe(ctx, req.Options)
		artifacts = append(artifacts, transcript.Paths()...)
		if err != nil {
			return artifacts, err
		}
		out, err = o.pack(ctx, req.Package)
		if err != nil {
			return artifacts, err
		}
		return append(artifacts, out.Bundle, out.RenderedVideo), nil
	})
	return out, err
}

// Status returns a snapshot of the session and its engines.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := Status{
		State:          o.state.Clone(),
		Provider:       o.engines.Translator.Kind(),
		TargetLanguage: o.engines.Translator.Target(),
		WorkspaceDir:   o.ws.Dir(),
	}
	status.Model, status.ModelLoaded = o.engines.Transcriber.Model()
	if sep := o.engines.Separator; sep != nil {
		status.SeparationModel = sep.Model()
		status.SeparationState = sep.State().String()
	} else {
		status.SeparationState = separation.StateUninitialized.String()
	}
	if free, err := o.ws.FreeBytes(); err == nil {
		status.FreeBytes = free
	}
	return status
}

// History lists up to limit recorded runs, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]session.Run, error) {
	if o.store == nil {
		return nil, nil
	}
	return o.store.ListRuns(ctx, limit)
}
