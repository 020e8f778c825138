package sync

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

func newTestLocal(t *testing.T) (*SnapshotSynchronizer, *storage.Storage, string) {
	t.Helper()
	store := newTestStorage(t)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	local, err := NewSnapshotSynchronizer(zap.NewNop(), store, path)
	if err != nil {
		t.Fatalf("NewSnapshotSynchronizer: %v", err)
	}
	return local, store, path
}

func TestLocalMissingSnapshot(t *testing.T) {
	local, store, _ := newTestLocal(t)

	ok, err := local.SyncWithLocalData(t.Context(), false)
	if err != nil || ok {
		t.Fatalf("expected no data, got %v %v", ok, err)
	}

	channels := []catalog.Channel{{ID: "a", Name: "Alpha", StreamURL: "http://a"}}
	if err := store.ReplaceChannels(t.Context(), channels, &storage.SyncState{Origin: storage.OriginRemote}); err != nil {
		t.Fatalf("ReplaceChannels: %v", err)
	}
	ok, err = local.SyncWithLocalData(t.Context(), false)
	if err != nil || !ok {
		t.Fatalf("expected cached data to count, got %v %v", ok, err)
	}
}

func TestLocalRestoresSnapshot(t *testing.T) {
	local, store, path := newTestLocal(t)
	channels, err := catalog.Decode([]byte(catalogA))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := catalog.WriteSnapshot(path, catalog.NewSnapshot("primary", channels)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	ok, err := local.SyncWithLocalData(t.Context(), false)
	if err != nil || !ok {
		t.Fatalf("expected restore, got %v %v", ok, err)
	}
	state, err := store.GetSyncState(t.Context())
	if err != nil || state.Origin != storage.OriginLocal || state.ChannelCount != 2 {
		t.Fatalf("unexpected state %#v %v", state, err)
	}
}

func TestLocalEmptySnapshot(t *testing.T) {
	local, _, path := newTestLocal(t)
	if err := catalog.WriteSnapshot(path, catalog.NewSnapshot("primary", nil)); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	ok, err := local.SyncWithLocalData(t.Context(), true)
	if err != nil || ok {
		t.Fatalf("expected false for empty snapshot, got %v %v", ok, err)
	}
}

func TestLocalCorruptSnapshot(t *testing.T) {
	local, _, path := newTestLocal(t)
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := local.SyncWithLocalData(t.Context(), false); !errors.Is(err, catalog.ErrInvalidCatalog) {
		t.Fatalf("expected invalid catalog error, got %v", err)
	}
}

func TestImportFile(t *testing.T) {
	local, _, path := newTestLocal(t)
	src := filepath.Join(t.TempDir(), "sideload.json")
	if err := os.WriteFile(src, []byte(catalogB), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := local.ImportFile(t.Context(), src)
	if err != nil || n != 1 {
		t.Fatalf("ImportFile: %d %v", n, err)
	}
	snap, err := catalog.ReadSnapshot(path)
	if err != nil || snap.Source != "import:sideload.json" {
		t.Fatalf("unexpected snapshot %#v %v", snap, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("[]"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := local.ImportFile(t.Context(), bad); err == nil {
		t.Fatal("expected error for empty catalog")
	}
	if snap, err := catalog.ReadSnapshot(path); err != nil || len(snap.Channels) != 1 {
		t.Fatal("rejected import must not replace the snapshot")
	}
}
