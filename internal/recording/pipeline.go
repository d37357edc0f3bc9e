// Package recording coordinates recordings across one or two movie sinks,
// persists the results and hands dual recordings to the merge runner.
package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/merge"
	"github.com/smazurov/dualcam/internal/metrics"
	"github.com/smazurov/dualcam/internal/platform"
)

// Errors returned by the pipeline.
var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrNoTargets        = errors.New("no movie outputs to record")
	ErrNoPrimary        = errors.New("result has no primary artifact")
)

// Artifact is one finished recording in temporary storage.
type Artifact struct {
	ID        string        `json:"id"`
	Location  string        `json:"location"`
	Duration  time.Duration `json:"duration"`
	DeviceID  string        `json:"device_id"`
	FrameRate float64       `json:"frame_rate"`
	Width     int           `json:"width"`
	CreatedAt time.Time     `json:"created_at"`
}

// PairedResult holds the artifacts of one recording. Secondary is nil for
// single-device recordings.
type PairedResult struct {
	Primary   *Artifact `json:"primary"`
	Secondary *Artifact `json:"secondary,omitempty"`
}

// IsDual reports whether both devices produced an artifact.
func (r PairedResult) IsDual() bool {
	return r.Primary != nil && r.Secondary != nil
}

// Saved is the outcome of persisting a PairedResult. MergeJobID is set when
// a background merge was started.
type Saved struct {
	Primary    library.Asset  `json:"primary"`
	Secondary  *library.Asset `json:"secondary,omitempty"`
	MergeJobID string         `json:"merge_job_id,omitempty"`
}

// Target is a movie sink to record together with the device feeding it.
type Target struct {
	Sink   platform.Sink
	Output platform.MovieOutput
	Device catalog.Device
}

type take struct {
	target   Target
	location string
	future   *Future[Artifact]
}

// Pipeline runs one recording at a time.
type Pipeline struct {
	tempDir string
	library *library.Library
	merger  *merge.Runner
	logger  logging.Logger
	now     func() time.Time

	mu     sync.Mutex
	active []*take
}

// NewPipeline creates a pipeline that records into tempDir.
func NewPipeline(tempDir string, lib *library.Library, merger *merge.Runner, logger logging.Logger) *Pipeline {
	return &Pipeline{
		tempDir: tempDir,
		library: lib,
		merger:  merger,
		logger:  logger,
		now:     time.Now,
	}
}

// IsRecording reports whether a recording is in progress.
func (p *Pipeline) IsRecording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active) > 0
}

// Start begins recording on every target at once. If any target fails to
// start, the ones that did start are stopped and the error is returned.
func (p *Pipeline) Start(ctx context.Context, targets []Target) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.active) > 0 {
		return ErrAlreadyRecording
	}

	takes := make([]*take, len(targets))
	started := make([]bool, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		t := &take{
			target:   target,
			location: filepath.Join(p.tempDir, uuid.NewString()+".mov"),
			future:   NewFuture[Artifact](),
		}
		takes[i] = t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := target.Output.StartRecording(t.location, p.completion(t)); err != nil {
				return fmt.Errorf("start %s: %w", target.Sink, err)
			}
			started[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for i, t := range takes {
			if started[i] {
				t.target.Output.StopRecording()
			}
		}
		p.logger.Warn("Recording start failed", "error", err)
		return err
	}

	p.active = takes
	p.logger.Info("Recording started", "outputs", len(takes))
	return nil
}

// completion resolves t's future from the platform callback.
func (p *Pipeline) completion(t *take) func(platform.RecordingResult) {
	return func(r platform.RecordingResult) {
		if r.Err != nil {
			t.future.Resolve(Artifact{}, fmt.Errorf("%s: %w", t.target.Sink, r.Err))
			return
		}
		deviceID := r.DeviceID
		if deviceID == "" {
			deviceID = t.target.Device.ID
		}
		t.future.Resolve(Artifact{
			ID:        uuid.NewString(),
			Location:  r.Location,
			Duration:  r.Duration,
			DeviceID:  deviceID,
			FrameRate: r.FrameRate,
			Width:     t.target.Device.Active.Width,
			CreatedAt: p.now(),
		}, nil)
	}
}

// Stop stops every active output and waits for all of them to finalize.
// A failed secondary degrades the result to the primary artifact alone.
func (p *Pipeline) Stop(ctx context.Context) (PairedResult, error) {
	p.mu.Lock()
	takes := p.active
	p.active = nil
	p.mu.Unlock()
	if len(takes) == 0 {
		return PairedResult{}, ErrNotRecording
	}

	for _, t := range takes {
		t.target.Output.StopRecording()
	}

	artifacts := make([]*Artifact, len(takes))
	errs := make([]error, len(takes))
	var g errgroup.Group
	for i, t := range takes {
		g.Go(func() error {
			a, err := t.future.Wait(ctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			artifacts[i] = &a
			return nil
		})
	}
	_ = g.Wait()

	var result PairedResult
	for i, t := range takes {
		switch t.target.Sink {
		case platform.SinkPrimaryMovie:
			if errs[i] != nil {
				return PairedResult{}, fmt.Errorf("primary recording: %w", errs[i])
			}
			result.Primary = artifacts[i]
		case platform.SinkSecondaryMovie:
			if errs[i] != nil {
				p.logger.Warn("Secondary recording failed, keeping primary only", "error", errs[i])
				continue
			}
			result.Secondary = artifacts[i]
		}
	}
	if result.Primary == nil {
		return PairedResult{}, ErrNoPrimary
	}

	mode := "single"
	if result.IsDual() {
		mode = "dual"
	}
	metrics.RecordRecording(mode)
	p.logger.Info("Recording stopped", "mode", mode, "duration", result.Primary.Duration)
	return result, nil
}

// Save persists both artifacts concurrently and returns once both are in
// the library. For a dual result it then submits a merge job, which runs
// detached from ctx; Save does not wait for it.
func (p *Pipeline) Save(ctx context.Context, result PairedResult) (Saved, error) {
	if result.Primary == nil {
		return Saved{}, ErrNoPrimary
	}

	var saved Saved
	var secondary library.Asset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := p.persist(gctx, result.Primary)
		saved.Primary = a
		return err
	})
	if result.Secondary != nil {
		g.Go(func() error {
			a, err := p.persist(gctx, result.Secondary)
			secondary = a
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Saved{}, fmt.Errorf("persist recording: %w", err)
	}

	if !result.IsDual() {
		p.removeTemp(result.Primary.Location)
		return saved, nil
	}

	saved.Secondary = &secondary
	saved.MergeJobID = uuid.NewString()
	p.merger.Submit(merge.Job{
		ID:        saved.MergeJobID,
		Primary:   clipOf(result.Primary),
		Secondary: clipOf(result.Secondary),
	})
	p.logger.Info("Merge job submitted", "job", saved.MergeJobID)
	return saved, nil
}

// Wait blocks until background merge jobs have finished.
func (p *Pipeline) Wait() {
	p.merger.Wait()
}

func (p *Pipeline) persist(ctx context.Context, a *Artifact) (library.Asset, error) {
	return p.library.Import(ctx, a.Location, library.ImportOptions{
		Kind:     library.KindClip,
		Duration: a.Duration,
		DeviceID: a.DeviceID,
	})
}

func (p *Pipeline) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("Failed to remove temporary recording", "path", path, "error", err)
	}
}

func clipOf(a *Artifact) merge.Clip {
	return merge.Clip{Path: a.Location, Duration: a.Duration, FrameRate: a.FrameRate, Width: a.Width}
}
