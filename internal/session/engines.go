package session

import (
	"errors"

	"subgen/internal/services/separation"
	"subgen/internal/services/transcription"
	"subgen/internal/services/translation"
)

// Engines holds the heavy engine instances of a session. The orchestrator
// owns it; adapters never touch Session State.
type Engines struct {
	// Transcriber keeps at most one model resident and swaps it on reload.
	Transcriber *transcription.Adapter
	// Separator is created once, on first use, and reused.
	Separator *separation.Adapter
	// Translator is nil when no provider is active.
	Translator *translation.Translator
}

// Close releases every engine.
func (e *Engines) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.Transcriber != nil {
		errs = append(errs, e.Transcriber.Close())
	}
	if e.Separator != nil {
		errs = append(errs, e.Separator.Close())
		e.Separator = nil
	}
	e.Translator = nil
	return errors.Join(errs...)
}
