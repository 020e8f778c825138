package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is the last-known-good copy of the catalog written next to the cache.
type Snapshot struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Checksum  string    `json:"checksum"`
	Channels  []Channel `json:"channels"`
}

// NewSnapshot builds a snapshot for the given channels.
func NewSnapshot(source string, channels []Channel) *Snapshot {
	return &Snapshot{
		Source:    source,
		FetchedAt: time.Now().UTC(),
		Checksum:  Checksum(channels),
		Channels:  channels,
	}
}

// ReadSnapshot loads a snapshot file. A missing file is reported with an error
// satisfying errors.Is(err, fs.ErrNotExist).
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", ErrInvalidCatalog, path, err)
	}
	snap.Channels = normalize(snap.Channels)
	if sum := Checksum(snap.Channels); snap.Checksum == "" {
		snap.Checksum = sum
	} else if snap.Checksum != sum {
		return nil, fmt.Errorf("%w: snapshot %s checksum mismatch", ErrInvalidCatalog, path)
	}
	return &snap, nil
}

// WriteSnapshot persists snap atomically by writing a temp file and renaming it.
func WriteSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
