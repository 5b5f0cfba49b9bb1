package testsupport

import (
	"testing"

	"webar/internal/blobstore"
	"webar/internal/config"
	"webar/internal/registry"
)

// MustOpenRegistry opens a registry.Store for tests and registers cleanup.
func MustOpenRegistry(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenStore opens the blob store configured by cfg.
func MustOpenStore(t testing.TB, cfg *config.Config) *blobstore.Store {
	t.Helper()

	store, err := blobstore.OpenConfig(cfg)
	if err != nil {
		t.Fatalf("blobstore.OpenConfig: %v", err)
	}
	return store
}
