// Package library persists captured media. Files are copied into the
// library root with atomic, durable writes and indexed in SQLite.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/smazurov/dualcam/internal/logging"
)

// Library is the persistent media store. It is safe for concurrent use.
type Library struct {
	root   string
	store  *Store
	logger logging.Logger
	now    func() time.Time
}

// Open opens or creates a library rooted at dir.
func Open(dir string, logger logging.Logger) (*Library, error) {
	for _, kind := range []AssetKind{KindPhoto, KindClip, KindMerged} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create library directory: %w", err)
		}
	}
	store, err := NewStore(filepath.Join(dir, "library.db"))
	if err != nil {
		return nil, err
	}
	return &Library{root: dir, store: store, logger: logger, now: time.Now}, nil
}

// Close releases the index.
func (l *Library) Close() error {
	return l.store.Close()
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Path returns the absolute path of an asset.
func (l *Library) Path(a Asset) string {
	return filepath.Join(l.root, a.RelPath)
}

// Import copies src into the library and indexes it. The source file is
// left in place; the asset is visible only once its data is durable.
func (l *Library) Import(ctx context.Context, src string, opts ImportOptions) (Asset, error) {
	if _, err := ParseKind(string(opts.Kind)); err != nil {
		return Asset{}, err
	}

	id := uuid.NewString()
	rel := filepath.Join(string(opts.Kind), id+filepath.Ext(src))

	size, err := copyAtomic(ctx, src, filepath.Join(l.root, rel))
	if err != nil {
		return Asset{}, fmt.Errorf("import %s: %w", filepath.Base(src), err)
	}

	asset := Asset{
		ID:        id,
		Kind:      opts.Kind,
		RelPath:   rel,
		SizeBytes: size,
		Duration:  opts.Duration,
		DeviceID:  opts.DeviceID,
		CreatedAt: l.now(),
	}
	if err := l.store.Insert(ctx, asset); err != nil {
		_ = os.Remove(filepath.Join(l.root, rel))
		return Asset{}, fmt.Errorf("index asset: %w", err)
	}

	l.logger.Info("Asset imported", "id", id, "kind", string(opts.Kind), "size", size)
	return asset, nil
}

// Get returns an asset by ID.
func (l *Library) Get(ctx context.Context, id string) (Asset, error) {
	return l.store.Get(ctx, id)
}

// List returns assets of kind, newest first. An empty kind lists all.
func (l *Library) List(ctx context.Context, kind AssetKind) ([]Asset, error) {
	return l.store.List(ctx, kind)
}

// Delete removes an asset from the index and its file from disk.
func (l *Library) Delete(ctx context.Context, id string) error {
	asset, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(l.Path(asset)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove asset file: %w", err)
	}
	return nil
}

// copyAtomic copies src to dst through a renameio pending file: fsync before
// rename, so a crash never leaves a truncated asset at dst.
func copyAtomic(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	pendingFile, err := renameio.NewPendingFile(dst)
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	n, err := io.Copy(pendingFile, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		return 0, fmt.Errorf("copy data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("atomically replace: %w", err)
	}
	return n, nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
