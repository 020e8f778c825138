package sync

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "catalog.db")}
	store, err := storage.NewStorage(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

const catalogA = `[
	{"id": "a", "name": "Alpha", "url": "http://stream/a"},
	{"id": "b", "name": "Beta", "url": "http://stream/b"}
]`

const catalogB = `{"channels": [
	{"id": "c", "name": "Gamma", "url": "http://stream/c"}
]}`
