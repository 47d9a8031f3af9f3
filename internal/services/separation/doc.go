// Package separation wraps a source-separation engine that strips background
// music and noise from extracted audio.
//
// The Adapter walks Uninitialized → Loading → Ready, or Failed when no model
// loads, and is memoized by the pipeline once Ready. Backends report known
// version incompatibilities by wrapping ErrIncompatible; the adapter turns
// those into engine errors flagged Incompatible with a remediation hint.
// The default backend drives the audio-separator CLI through uvx.
package separation
