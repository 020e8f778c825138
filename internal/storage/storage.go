package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Storage wraps the sqlite catalog cache.
type Storage struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewStorage opens the database and applies pending migrations.
func NewStorage(cfg *config.Config, logger *zap.Logger) (*Storage, error) {
	if cfg.DatabasePath == "" {
		return nil, errors.New("storage: database path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o700); err != nil {
		return nil, err
	}

	dsn := cfg.DatabasePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("storage initialized", zap.String("path", cfg.DatabasePath))
	return &Storage{DB: db, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
