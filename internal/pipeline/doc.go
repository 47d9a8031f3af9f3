// Package pipeline sequences the subtitle pipeline stages over one session.
//
// The Orchestrator owns the workspace lock, the Session State and the engine
// instances. Every public operation is serialized, recorded as a run in the
// session store and classified into the services error taxonomy. Operations
// work on a copy of the state and commit it only after the stage succeeds,
// so a failure leaves the session at its last successful stage.
//
// Stage order is Upload, optional Clean, Transcribe, then Package, which
// translates when a provider is active and optionally renders the video.
package pipeline
