// Package services defines shared utilities consumed by the pipeline
// orchestrator and the engine adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and stage names for logging.
//   - The classified Error type plus the Wrap helper. Adapters set the Kind
//     (and the Incompatible flag) where a failure is detected so nothing
//     downstream has to infer it from message text.
//   - Classify, used at the orchestrator boundary so no unclassified engine
//     error escapes to callers.
//
// Subpackages hold the engine adapters (transcription, separation,
// translation) and their external-tool backends.
package services
