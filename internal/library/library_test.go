package library

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportCopiesAndIndexes(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	src := writeSource(t, "clip.mov", "movie-bytes")

	asset, err := lib.Import(ctx, src, ImportOptions{Kind: KindClip, Duration: 10 * time.Second, DeviceID: "back"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	data, err := os.ReadFile(lib.Path(asset))
	if err != nil {
		t.Fatalf("read imported file: %v", err)
	}
	if string(data) != "movie-bytes" || asset.SizeBytes != int64(len("movie-bytes")) {
		t.Errorf("imported content = %q, size %d", data, asset.SizeBytes)
	}
	if filepath.Ext(asset.RelPath) != ".mov" {
		t.Errorf("extension lost: %s", asset.RelPath)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("Import must leave the source in place")
	}

	got, err := lib.Get(ctx, asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Duration != 10*time.Second || got.DeviceID != "back" || got.Kind != KindClip {
		t.Errorf("Get = %+v", got)
	}
}

func TestImportRejectsUnknownKind(t *testing.T) {
	lib := openTestLibrary(t)
	src := writeSource(t, "x.bin", "x")
	if _, err := lib.Import(context.Background(), src, ImportOptions{Kind: "video"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestImportMissingSource(t *testing.T) {
	lib := openTestLibrary(t)
	_, err := lib.Import(context.Background(), "/nonexistent/clip.mov", ImportOptions{Kind: KindClip})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestListFiltersByKind(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	lib.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, kind := range []AssetKind{KindClip, KindClip, KindMerged, KindPhoto} {
		if _, err := lib.Import(ctx, writeSource(t, "f.bin", string(kind)), ImportOptions{Kind: kind}); err != nil {
			t.Fatal(err)
		}
	}

	clips, err := lib.List(ctx, KindClip)
	if err != nil {
		t.Fatal(err)
	}
	if len(clips) != 2 {
		t.Fatalf("clips = %d, want 2", len(clips))
	}
	if !clips[0].CreatedAt.After(clips[1].CreatedAt) {
		t.Error("list should be newest first")
	}

	all, err := lib.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}
}

func TestDeleteRemovesFileAndRow(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	asset, err := lib.Import(ctx, writeSource(t, "p.jpg", "jpeg"), ImportOptions{Kind: KindPhoto})
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.Delete(ctx, asset.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(lib.Path(asset)); !errors.Is(err, os.ErrNotExist) {
		t.Error("file should be removed")
	}
	if _, err := lib.Get(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := lib.Delete(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestReopenKeepsIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lib, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	asset, err := lib.Import(ctx, writeSource(t, "c.mov", "c"), ImportOptions{Kind: KindClip})
	if err != nil {
		t.Fatal(err)
	}
	_ = lib.Close()

	reopened, err := Open(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()
	if _, err := reopened.Get(ctx, asset.ID); err != nil {
		t.Errorf("asset lost after reopen: %v", err)
	}
}
