package testsupport

import (
	"context"
	"testing"

	"sunny/internal/config"
	"sunny/internal/sessions"
)

// MustOpenStore opens a sessions.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sessions.Store {
	t.Helper()

	store, err := sessions.Open(cfg)
	if err != nil {
		t.Fatalf("sessions.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a meeting session for tests using the provided store.
func NewSession(t testing.TB, store *sessions.Store, meetingURL string, platform sessions.Platform) *sessions.Session {
	t.Helper()

	session, err := store.Create(context.Background(), meetingURL, platform, "notes@example.com", true)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return session
}
