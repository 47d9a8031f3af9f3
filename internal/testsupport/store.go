package testsupport

import (
	"context"
	"testing"

	"subgen/internal/config"
	"subgen/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg.SessionDBPath())
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedState persists state so a fresh orchestrator resumes from it.
func SeedState(t testing.TB, store *session.Store, state session.State) {
	t.Helper()

	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
}
