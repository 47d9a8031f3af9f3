// Package main hosts the subgen CLI entrypoint and command graph.
//
// Each stage command opens the persisted session, takes the workspace lock,
// runs one orchestrator operation and releases everything on exit, so a
// sequence of invocations behaves like one interactive session. Engines are
// rebuilt lazily per process; the loaded model and translation provider are
// restored from the session store.
package main
