package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/ffmpeg"
	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/metrics"
)

// Settings are the reloadable merge parameters.
type Settings struct {
	Audio   ffmpeg.AudioPolicy
	Preset  string
	Timeout time.Duration
}

// DefaultSettings returns primary-clip audio, the default preset and a
// ten minute job timeout.
func DefaultSettings() Settings {
	return Settings{Audio: ffmpeg.AudioPrimary, Preset: ffmpeg.DefaultPreset, Timeout: 10 * time.Minute}
}

// Job is a pending composition of two recorded clips. The clip files are
// temporary and removed once the merged asset is in the library.
type Job struct {
	ID        string
	Primary   Clip
	Secondary Clip
}

// Runner executes merge jobs detached from the caller that submitted them.
type Runner struct {
	composer Composer
	library  *library.Library
	bus      *events.Bus
	logger   logging.Logger
	workDir  string
	settings atomic.Pointer[Settings]
	wg       sync.WaitGroup
}

// NewRunner creates a runner. Merged files are rendered in workDir before
// they are imported into lib. bus may be nil.
func NewRunner(composer Composer, lib *library.Library, bus *events.Bus, workDir string, logger logging.Logger) *Runner {
	r := &Runner{
		composer: composer,
		library:  lib,
		bus:      bus,
		logger:   logger,
		workDir:  workDir,
	}
	s := DefaultSettings()
	r.settings.Store(&s)
	return r
}

// SetSettings replaces the settings used by jobs submitted afterwards.
func (r *Runner) SetSettings(s Settings) {
	if s.Preset == "" {
		s.Preset = ffmpeg.DefaultPreset
	}
	if s.Audio == "" {
		s.Audio = ffmpeg.AudioPrimary
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultSettings().Timeout
	}
	r.settings.Store(&s)
}

// Settings returns the current settings.
func (r *Runner) Settings() Settings {
	return *r.settings.Load()
}

// Submit starts job in the background and returns immediately. The job
// runs on its own context: it outlives the submitting request and is never
// retried.
func (r *Runner) Submit(job Job) {
	settings := r.Settings()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), settings.Timeout)
		defer cancel()
		_, _ = r.Run(ctx, job, settings)
	}()
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run executes job synchronously. On success the merged asset is imported
// and the two source clips are deleted. On failure sources stay in place.
func (r *Runner) Run(ctx context.Context, job Job, settings Settings) (library.Asset, error) {
	start := time.Now()
	asset, err := r.run(ctx, job, settings)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("Merge failed", "job", job.ID, "error", err)
		metrics.RecordMerge(metrics.ResultFailed, elapsed.Seconds())
		r.publish(events.MergeFailedEvent{
			JobID:     job.ID,
			Error:     err.Error(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return library.Asset{}, err
	}

	for _, clip := range []Clip{job.Primary, job.Secondary} {
		if rmErr := os.Remove(clip.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.logger.Warn("Failed to remove merge source", "job", job.ID, "path", clip.Path, "error", rmErr)
		}
	}

	r.logger.Info("Merge completed", "job", job.ID, "asset", asset.ID, "duration", asset.Duration, "elapsed", elapsed)
	metrics.RecordMerge(metrics.ResultOK, elapsed.Seconds())
	r.publish(events.MergeCompletedEvent{
		JobID:      job.ID,
		AssetID:    asset.ID,
		DurationMs: asset.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	return asset, nil
}

func (r *Runner) run(ctx context.Context, job Job, settings Settings) (library.Asset, error) {
	req := Request{
		ID:        job.ID,
		Primary:   job.Primary,
		Secondary: job.Secondary,
		Output:    filepath.Join(r.workDir, "merge-"+job.ID+".mp4"),
		Audio:     settings.Audio,
		Preset:    settings.Preset,
	}
	if req.Duration() <= 0 {
		return library.Asset{}, fmt.Errorf("nothing to merge: clip durations %s and %s",
			job.Primary.Duration, job.Secondary.Duration)
	}
	defer func() { _ = os.Remove(req.Output) }()

	if err := r.composer.Compose(ctx, req); err != nil {
		return library.Asset{}, fmt.Errorf("compose: %w", err)
	}

	asset, err := r.library.Import(ctx, req.Output, library.ImportOptions{
		Kind:     library.KindMerged,
		Duration: req.Duration(),
	})
	if err != nil {
		return library.Asset{}, fmt.Errorf("persist merged clip: %w", err)
	}
	return asset, nil
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
