package testsupport

import (
	"testing"

	"lingocast/internal/checkpoint"
	"lingocast/internal/config"
	"lingocast/internal/history"
)

// MustOpenHistory opens the run history database and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCheckpointStore opens the checkpoint store configured by cfg.
func MustCheckpointStore(t testing.TB, cfg *config.Config, opts ...checkpoint.Option) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.NewStore(cfg.Paths.CheckpointDir, cfg.CheckpointMaxAge(), opts...)
	if err != nil {
		t.Fatalf("checkpoint.NewStore: %v", err)
	}
	return store
}
