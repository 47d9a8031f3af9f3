// Package session holds the mutable pipeline record and its SQLite
// persistence.
//
// State carries the file handles produced by each stage plus the active
// translation provider and the last loaded transcription model, so separate
// CLI invocations resume the same session. Engines groups the heavy engine
// instances the orchestrator owns. Store applies embedded SQL migrations on
// open and also keeps a history of orchestrator runs.
package session
