package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/ffmpeg"
	"github.com/smazurov/dualcam/internal/library"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeComposer struct {
	mu       sync.Mutex
	requests []Request
	err      error
}

func (f *fakeComposer) Compose(_ context.Context, req Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(req.Output, []byte("merged"), 0o644)
}

func (f *fakeComposer) last() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fixture struct {
	lib      *library.Library
	bus      *events.Bus
	composer *fakeComposer
	runner   *Runner
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	lib, err := library.Open(filepath.Join(dir, "library"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	f := &fixture{lib: lib, bus: events.New(), composer: &fakeComposer{}, dir: dir}
	f.runner = NewRunner(f.composer, lib, f.bus, dir, testLogger())
	return f
}

func (f *fixture) clip(t *testing.T, name string, d time.Duration, fps float64) Clip {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
		t.Fatal(err)
	}
	return Clip{Path: path, Duration: d, FrameRate: fps, Width: 1920}
}

func TestRequestDerivedValues(t *testing.T) {
	req := Request{
		Primary:   Clip{Duration: 10 * time.Second, FrameRate: 30, Width: 1281},
		Secondary: Clip{Duration: 9500 * time.Millisecond, FrameRate: 24, Width: 720},
	}
	if req.Duration() != 9500*time.Millisecond {
		t.Errorf("Duration = %v, want shorter clip", req.Duration())
	}
	if req.FrameRate() != 30 {
		t.Errorf("FrameRate = %v, want primary rate", req.FrameRate())
	}
	if req.Width() != 1280 {
		t.Errorf("Width = %d, want even width 1280", req.Width())
	}
	if (Request{}).Width() != 1280 {
		t.Error("zero width should fall back to 1280")
	}
}

func TestRunSuccessDeletesSources(t *testing.T) {
	f := newFixture(t)
	completed := make(chan events.MergeCompletedEvent, 1)
	unsub := f.bus.Subscribe(func(e events.MergeCompletedEvent) { completed <- e })
	defer unsub()

	job := Job{
		ID:        "job-1",
		Primary:   f.clip(t, "a.mov", 10*time.Second, 30),
		Secondary: f.clip(t, "b.mov", 8*time.Second, 24),
	}
	asset, err := f.runner.Run(context.Background(), job, DefaultSettings())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if asset.Kind != library.KindMerged || asset.Duration != 8*time.Second {
		t.Errorf("asset = %+v", asset)
	}
	req := f.composer.last()
	if req.Preset != ffmpeg.DefaultPreset || req.Audio != ffmpeg.AudioPrimary {
		t.Errorf("request settings = %q/%q", req.Preset, req.Audio)
	}
	for _, p := range []string{job.Primary.Path, job.Secondary.Path, req.Output} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be removed after success", filepath.Base(p))
		}
	}

	select {
	case e := <-completed:
		if e.AssetID != asset.ID || e.DurationMs != 8000 {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no MergeCompletedEvent")
	}
}

func TestRunFailureKeepsSources(t *testing.T) {
	f := newFixture(t)
	f.composer.err = errors.New("encoder crashed")
	failed := make(chan events.MergeFailedEvent, 1)
	unsub := f.bus.Subscribe(func(e events.MergeFailedEvent) { failed <- e })
	defer unsub()

	job := Job{
		ID:        "job-2",
		Primary:   f.clip(t, "a.mov", 5*time.Second, 30),
		Secondary: f.clip(t, "b.mov", 5*time.Second, 30),
	}
	if _, err := f.runner.Run(context.Background(), job, DefaultSettings()); err == nil {
		t.Fatal("expected error")
	}
	for _, p := range []string{job.Primary.Path, job.Secondary.Path} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("source %s must survive a failed merge: %v", filepath.Base(p), err)
		}
	}
	merged, _ := f.lib.List(context.Background(), library.KindMerged)
	if len(merged) != 0 {
		t.Error("failed merge must not create an asset")
	}

	select {
	case e := <-failed:
		if e.JobID != "job-2" || !strings.Contains(e.Error, "encoder crashed") {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no MergeFailedEvent")
	}
}

func TestRunRejectsEmptyClip(t *testing.T) {
	f := newFixture(t)
	job := Job{
		ID:        "job-3",
		Primary:   f.clip(t, "a.mov", 0, 30),
		Secondary: f.clip(t, "b.mov", 4*time.Second, 30),
	}
	if _, err := f.runner.Run(context.Background(), job, DefaultSettings()); err == nil {
		t.Fatal("expected error for zero-length clip")
	}
	if len(f.composer.requests) != 0 {
		t.Error("composer should not run")
	}
}

func TestSubmitIsDetachedAndWaitable(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f.runner.SetSettings(Settings{Audio: ffmpeg.AudioMix, Preset: "fast"})

	job := Job{
		ID:        "job-4",
		Primary:   f.clip(t, "a.mov", 3*time.Second, 30),
		Secondary: f.clip(t, "b.mov", 3*time.Second, 30),
	}
	f.runner.Submit(job)
	f.runner.Wait()

	req := f.composer.last()
	if req.Audio != ffmpeg.AudioMix || req.Preset != "fast" {
		t.Errorf("settings not applied: %q/%q", req.Audio, req.Preset)
	}
	merged, err := f.lib.List(context.Background(), library.KindMerged)
	if err != nil || len(merged) != 1 {
		t.Fatalf("merged assets = %d, %v", len(merged), err)
	}
}

func TestSetSettingsFillsDefaults(t *testing.T) {
	f := newFixture(t)
	f.runner.SetSettings(Settings{})
	got := f.runner.Settings()
	if got.Preset != ffmpeg.DefaultPreset || got.Audio != ffmpeg.AudioPrimary || got.Timeout <= 0 {
		t.Errorf("settings = %+v", got)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegComposerRunsCommand(t *testing.T) {
	script := writeScript(t, `for last; do :; done; echo "[info] writing $last"; echo merged > "$last"`)
	c, err := NewFFmpegComposer("sh "+script, testLogger(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.mp4")
	req := Request{
		ID:        "c1",
		Primary:   Clip{Path: "a.mov", Duration: time.Second, FrameRate: 30, Width: 1280},
		Secondary: Clip{Path: "b.mov", Duration: time.Second, FrameRate: 30, Width: 1280},
		Output:    out,
	}
	if err := c.Compose(context.Background(), req); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestFFmpegComposerReportsErrorTail(t *testing.T) {
	script := writeScript(t, `echo "[error] a.mov: Invalid data found" >&2; exit 1`)
	c, err := NewFFmpegComposer("sh "+script, testLogger(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := Request{
		ID:        "c2",
		Primary:   Clip{Path: "a.mov", Duration: time.Second},
		Secondary: Clip{Path: "b.mov", Duration: time.Second},
		Output:    filepath.Join(t.TempDir(), "out.mp4"),
	}
	err = c.Compose(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("Compose err = %v, want ffmpeg error line", err)
	}
}

func TestNewFFmpegComposerRejectsBadCommand(t *testing.T) {
	if _, err := NewFFmpegComposer(`ffmpeg "unclosed`, testLogger(), testLogger()); err == nil {
		t.Error("expected error")
	}
}
