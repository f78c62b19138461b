package testsupport

import (
	"testing"

	"voxdub/internal/config"
	"voxdub/internal/voices"
)

// MustOpenVoices opens the reference-voice catalog for cfg and closes it when
// the test finishes.
func MustOpenVoices(t testing.TB, cfg *config.Config) *voices.Store {
	t.Helper()

	store, err := voices.Open(cfg.VoicesDBPath())
	if err != nil {
		t.Fatalf("open voices store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
