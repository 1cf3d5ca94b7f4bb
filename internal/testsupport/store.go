package testsupport

import (
	"testing"

	"bookscribe/internal/config"
	"bookscribe/internal/speed"
)

// MustOpenSpeedStore opens a speed.Store for tests and registers cleanup.
func MustOpenSpeedStore(t testing.TB, cfg *config.Config) *speed.Store {
	t.Helper()

	store, err := speed.Open(cfg)
	if err != nil {
		t.Fatalf("speed.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
