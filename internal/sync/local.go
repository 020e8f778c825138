package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

// SnapshotSynchronizer restores the cache from the last known-good snapshot.
type SnapshotSynchronizer struct {
	logger *zap.Logger
	store  CatalogStore
	path   string
}

// NewSnapshotSynchronizer constructs a local fallback over the snapshot at path.
func NewSnapshotSynchronizer(logger *zap.Logger, store CatalogStore, path string) (*SnapshotSynchronizer, error) {
	if logger == nil {
		return nil, errors.New("sync: logger is required")
	}
	if store == nil {
		return nil, errors.New("sync: catalog store is required")
	}
	if path == "" {
		return nil, errors.New("sync: snapshot path is required")
	}
	return &SnapshotSynchronizer{logger: logger, store: store, path: path}, nil
}

// SyncWithLocalData makes the cache match the local snapshot. It reports
// whether usable channel data is available afterwards.
func (s *SnapshotSynchronizer) SyncWithLocalData(ctx context.Context, force bool) (bool, error) {
	snap, err := catalog.ReadSnapshot(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		count, cerr := s.store.CountChannels(ctx)
		if cerr != nil {
			return false, cerr
		}
		s.logger.Info("no local snapshot", zap.String("path", s.path), zap.Int("cached", count))
		return count > 0, nil
	}
	if err != nil {
		return false, err
	}
	if len(snap.Channels) == 0 {
		return false, nil
	}

	restore := force
	if !restore {
		count, err := s.store.CountChannels(ctx)
		if err != nil {
			return false, err
		}
		state, err := s.store.GetSyncState(ctx)
		if err != nil {
			return false, err
		}
		restore = count == 0 || state == nil || state.Checksum != snap.Checksum
	}
	if !restore {
		return true, nil
	}

	state := &storage.SyncState{
		Origin:     storage.OriginLocal,
		Source:     snap.Source,
		Checksum:   snap.Checksum,
		LastSyncAt: snap.FetchedAt,
	}
	if err := s.store.ReplaceChannels(ctx, snap.Channels, state); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	s.logger.Info("restored local snapshot", zap.String("source", snap.Source), zap.Int("channels", len(snap.Channels)))
	return true, nil
}

// ImportFile validates a sideloaded catalog and installs it as the snapshot.
// The cache itself is refreshed by the next local sync.
func (s *SnapshotSynchronizer) ImportFile(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	channels, err := catalog.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	snap := catalog.NewSnapshot("import:"+filepath.Base(path), channels)
	if err := catalog.WriteSnapshot(s.path, snap); err != nil {
		return 0, err
	}
	s.logger.Info("imported catalog file", zap.String("path", path), zap.Int("channels", len(channels)))
	return len(channels), nil
}
