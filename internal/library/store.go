package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Store provides SQLite persistence for the asset index.
type Store struct {
	db *sql.DB
}

// NewStore opens the index database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	// busy_timeout avoids "database locked" errors when merge jobs and API
	// readers overlap.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL CHECK(kind IN ('photo', 'clip', 'merged')),
		rel_path TEXT NOT NULL UNIQUE,
		size_bytes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		device_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_kind_created ON assets(kind, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert adds an asset row.
func (s *Store) Insert(ctx context.Context, a Asset) error {
	query := `
	INSERT INTO assets (id, kind, rel_path, size_bytes, duration_ms, device_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, string(a.Kind), a.RelPath, a.SizeBytes, a.Duration.Milliseconds(), a.DeviceID,
		a.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Get retrieves one asset by ID.
func (s *Store) Get(ctx context.Context, id string) (Asset, error) {
	query := `
	SELECT id, kind, rel_path, size_bytes, duration_ms, device_id, created_at
	FROM assets
	WHERE id = ?
	`
	a, err := scanAsset(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// List returns assets newest first. An empty kind lists every kind.
func (s *Store) List(ctx context.Context, kind AssetKind) ([]Asset, error) {
	query := `
	SELECT id, kind, rel_path, size_bytes, duration_ms, device_id, created_at
	FROM assets
	WHERE (? = '' OR kind = ?)
	ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, string(kind), string(kind))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Delete removes an asset row.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (Asset, error) {
	var a Asset
	var kind, createdAt string
	var durationMs int64
	if err := row.Scan(&a.ID, &kind, &a.RelPath, &a.SizeBytes, &durationMs, &a.DeviceID, &createdAt); err != nil {
		return Asset{}, err
	}
	a.Kind = AssetKind(kind)
	a.Duration = time.Duration(durationMs) * time.Millisecond
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Asset{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	a.CreatedAt = t
	return a, nil
}
