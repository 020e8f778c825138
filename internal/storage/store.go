package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
)

// Sync origins recorded in SyncState.
const (
	OriginRemote = "remote"
	OriginLocal  = "local"
)

// SyncState stores metadata about the data currently held in the cache.
type SyncState struct {
	Origin       string
	Source       string
	Checksum     string
	ChannelCount int
	LastSyncAt   time.Time
	LastError    string
	UpdatedAt    time.Time
}

// TokenRef stores a reference to a source credential kept in an external keyring.
type TokenRef struct {
	Source    string
	KeyID     string
	TokenType string
	Expiry    time.Time
	UpdatedAt time.Time
}

// ReplaceChannels swaps the cached channel set and its sync state in one transaction.
func (s *Storage) ReplaceChannels(ctx context.Context, channels []catalog.Channel, state *SyncState) error {
	if state == nil {
		return fmt.Errorf("sync_state cannot be nil")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM channels`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO channels (id, name, stream_url, logo, category, country, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, ch := range channels {
		if ch.ID == "" {
			return fmt.Errorf("channel id cannot be empty")
		}
		if _, err := stmt.ExecContext(ctx, ch.ID, ch.Name, ch.StreamURL, ch.Logo, ch.Category, ch.Country, unixTime(now)); err != nil {
			return err
		}
	}

	state.ChannelCount = len(channels)
	if state.LastSyncAt.IsZero() {
		state.LastSyncAt = now
	}
	state.UpdatedAt = now
	if err := upsertSyncState(ctx, tx, state); err != nil {
		return err
	}
	return tx.Commit()
}

// ListChannels returns cached channels ordered by name.
func (s *Storage) ListChannels(ctx context.Context, limit int) ([]catalog.Channel, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, stream_url, logo, category, country
		FROM channels ORDER BY name ASC, id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Channel
	for rows.Next() {
		var ch catalog.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.StreamURL, &ch.Logo, &ch.Category, &ch.Country); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// CountChannels returns the number of cached channels.
func (s *Storage) CountChannels(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetSyncState returns the cache sync metadata, or nil before the first sync.
func (s *Storage) GetSyncState(ctx context.Context) (*SyncState, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT origin, source, checksum, channel_count, last_sync_at, last_error, updated_at
		FROM sync_state WHERE id = 1
	`)
	var state SyncState
	var lastSyncAt, updatedAt int64
	if err := row.Scan(&state.Origin, &state.Source, &state.Checksum, &state.ChannelCount, &lastSyncAt, &state.LastError, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	state.LastSyncAt = fromUnix(lastSyncAt)
	state.UpdatedAt = fromUnix(updatedAt)
	return &state, nil
}

// RecordSyncError stores the last sync error without touching cached data.
func (s *Storage) RecordSyncError(ctx context.Context, msg string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_error, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_error=excluded.last_error,
			updated_at=excluded.updated_at
	`, msg, unixTime(time.Now()))
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSyncState(ctx context.Context, db execer, state *SyncState) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (id, origin, source, checksum, channel_count, last_sync_at, last_error, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			origin=excluded.origin,
			source=excluded.source,
			checksum=excluded.checksum,
			channel_count=excluded.channel_count,
			last_sync_at=excluded.last_sync_at,
			last_error=excluded.last_error,
			updated_at=excluded.updated_at
	`, state.Origin, state.Source, state.Checksum, state.ChannelCount, unixTime(state.LastSyncAt), state.LastError, unixTime(state.UpdatedAt))
	return err
}

// UpsertTokenRef stores a keyring token reference.
func (s *Storage) UpsertTokenRef(ctx context.Context, ref *TokenRef) error {
	if ref == nil {
		return nil
	}
	if ref.Source == "" {
		return fmt.Errorf("token_ref source cannot be empty")
	}
	if ref.KeyID == "" {
		return fmt.Errorf("token_ref key_id cannot be empty")
	}
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO token_refs (source, key_id, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			key_id=excluded.key_id,
			token_type=excluded.token_type,
			expiry=excluded.expiry,
			updated_at=excluded.updated_at
	`, ref.Source, ref.KeyID, ref.TokenType, unixTime(ref.Expiry), unixTime(ref.UpdatedAt))
	return err
}

// GetTokenRef returns the token reference for a source.
func (s *Storage) GetTokenRef(ctx context.Context, source string) (*TokenRef, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT source, key_id, token_type, expiry, updated_at
		FROM token_refs WHERE source = ?
	`, source)
	var ref TokenRef
	var expiry, updatedAt int64
	if err := row.Scan(&ref.Source, &ref.KeyID, &ref.TokenType, &expiry, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	ref.Expiry = fromUnix(expiry)
	ref.UpdatedAt = fromUnix(updatedAt)
	return &ref, nil
}

// DeleteTokenRef removes a token reference for a source.
func (s *Storage) DeleteTokenRef(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("token_ref source cannot be empty")
	}
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM token_refs WHERE source = ?
	`, source)
	return err
}

func unixTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
