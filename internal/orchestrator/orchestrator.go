// Package orchestrator owns the capture session. It sets up single- and
// dual-device configurations, switches device roles and capture modes,
// drives the recording pipeline and reacts to platform interruptions.
//
// Every session mutation runs on one worker goroutine, so reconfiguration
// requests never race. Other components observe the orchestrator through
// the session state machine and the event bus.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/platform"
	"github.com/smazurov/dualcam/internal/recording"
	"github.com/smazurov/dualcam/internal/session"
)

const defaultFeedbackDismiss = 4 * time.Second

// platformEventTimeout bounds the work done in response to one platform event.
const platformEventTimeout = 30 * time.Second

type command struct {
	fn   func() error
	done chan error
}

// Orchestrator coordinates the capture session and its collaborators.
type Orchestrator struct {
	platform platform.Platform
	catalog  *catalog.Catalog
	machine  *session.Machine
	pipeline *recording.Pipeline
	library  *library.Library
	bus      *events.Bus
	logger   logging.Logger
	opts     Options
	autoDual atomic.Bool

	lifeMu sync.Mutex
	cmds   chan command
	quit   chan struct{}
	exited chan struct{}

	// Owned by the worker goroutine.
	primary   *catalog.Device
	secondary *catalog.Device
	audio     *catalog.Device
	rotation  platform.RotationCoordinator

	mu          sync.RWMutex
	sess        platform.Session
	mode        Mode
	zoom        float64
	status      Status
	interrupted bool
	caps        Capabilities
}

// New creates an orchestrator. bus may be nil.
func New(p platform.Platform, pipeline *recording.Pipeline, lib *library.Library, bus *events.Bus, logger logging.Logger, opts Options) *Orchestrator {
	var catOpts []catalog.Option
	if len(opts.Tiers) > 0 {
		catOpts = append(catOpts, catalog.WithTiers(opts.Tiers))
	}
	if opts.FeedbackDismiss == 0 {
		opts.FeedbackDismiss = defaultFeedbackDismiss
	}
	o := &Orchestrator{
		platform: p,
		catalog:  catalog.New(p, logger, catOpts...),
		machine:  session.NewMachine(bus, logger),
		pipeline: pipeline,
		library:  lib,
		bus:      bus,
		logger:   logger,
		opts:     opts,
		mode:     opts.Mode,
		caps:     Capabilities{Mode: opts.Mode},
	}
	o.autoDual.Store(opts.AutoEnableDual)
	return o
}

// Catalog returns the device catalog used for selection.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// SetAutoEnableDual changes whether Start attempts dual-device setup.
func (o *Orchestrator) SetAutoEnableDual(enabled bool) {
	o.autoDual.Store(enabled)
}

// AutoEnableDual reports whether Start attempts dual-device setup.
func (o *Orchestrator) AutoEnableDual() bool {
	return o.autoDual.Load()
}

// Start launches the worker and sets up a single-device session, then a
// dual-device one when auto-enable is on. Calling Start on a running
// orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifeMu.Lock()
	if o.cmds == nil {
		o.cmds = make(chan command)
		o.quit = make(chan struct{})
		o.exited = make(chan struct{})
		go o.worker(o.cmds, o.quit, o.exited)
	}
	o.lifeMu.Unlock()

	return o.do(ctx, func() error { return o.start(ctx) })
}

// Stop tears the session down and ends the worker. Background merges keep
// running; use Wait to join them.
func (o *Orchestrator) Stop(ctx context.Context) error {
	err := o.do(ctx, func() error {
		o.stop(ctx)
		return nil
	})
	if errors.Is(err, ErrNotStarted) {
		return nil
	}

	o.lifeMu.Lock()
	quit, exited := o.quit, o.exited
	o.cmds, o.quit, o.exited = nil, nil, nil
	o.lifeMu.Unlock()
	if quit != nil {
		close(quit)
		<-exited
	}
	return err
}

// Ping round-trips a no-op through the worker. It fails when the worker is
// not running or stays busy past ctx.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.do(ctx, func() error { return nil })
}

// Wait blocks until detached merge jobs have finished.
func (o *Orchestrator) Wait() {
	if o.pipeline != nil {
		o.pipeline.Wait()
	}
}

// EnableDualDevice switches to dual-device capture. It returns false without
// an error when dual capture is not possible or setup fell back to a single
// device; feedback explains which.
func (o *Orchestrator) EnableDualDevice(ctx context.Context) (bool, error) {
	var enabled bool
	err := o.do(ctx, func() error {
		var err error
		enabled, err = o.enableDual(ctx)
		return err
	})
	return enabled, err
}

// DisableDualDevice returns to single-device capture on the current primary.
func (o *Orchestrator) DisableDualDevice(ctx context.Context) error {
	return o.do(ctx, func() error { return o.disableDual(ctx) })
}

// SwitchPrimaryAndSecondary swaps device roles in dual-device mode.
func (o *Orchestrator) SwitchPrimaryAndSecondary(ctx context.Context) error {
	return o.do(ctx, func() error { return o.switchDevices(ctx) })
}

// SetCaptureMode switches between photo and video capture.
func (o *Orchestrator) SetCaptureMode(ctx context.Context, m Mode) error {
	return o.do(ctx, func() error { return o.setMode(m) })
}

// SetZoom applies a zoom factor to the primary device and returns the
// clamped value.
func (o *Orchestrator) SetZoom(ctx context.Context, factor float64) (float64, error) {
	var applied float64
	err := o.do(ctx, func() error {
		var err error
		applied, err = o.setZoom(ctx, factor)
		return err
	})
	return applied, err
}

// StartRecording starts the movie sinks of the current configuration.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	return o.do(ctx, func() error { return o.startRecording(ctx) })
}

// StopRecording stops the active recording and returns its artifacts.
func (o *Orchestrator) StopRecording(ctx context.Context) (recording.PairedResult, error) {
	var result recording.PairedResult
	err := o.do(ctx, func() error {
		var err error
		result, err = o.stopRecording(ctx)
		return err
	})
	return result, err
}

// SaveRecording persists result and starts a background merge for dual
// recordings. It does not touch the session and runs on the caller.
func (o *Orchestrator) SaveRecording(ctx context.Context, result recording.PairedResult) (recording.Saved, error) {
	return o.pipeline.Save(ctx, result)
}

// CapturePhoto takes a still with the primary device and adds it to the library.
func (o *Orchestrator) CapturePhoto(ctx context.Context) (library.Asset, error) {
	var asset library.Asset
	err := o.do(ctx, func() error {
		var err error
		asset, err = o.capturePhoto(ctx)
		return err
	})
	return asset, err
}

// State returns the current session state.
func (o *Orchestrator) State() session.State {
	return o.machine.Current()
}

// Subscribe streams session states, latest first. See session.Machine.Subscribe.
func (o *Orchestrator) Subscribe() (<-chan session.State, func()) {
	return o.machine.Subscribe()
}

// Capabilities returns the capabilities published last.
func (o *Orchestrator) Capabilities() Capabilities {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.caps
}

// Status returns the coarse pipeline status.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// IsRunning reports whether the capture session is running.
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	sess := o.sess
	o.mu.RUnlock()
	return sess != nil && sess.IsRunning()
}

// IsInterrupted reports whether the platform interrupted capture.
func (o *Orchestrator) IsInterrupted() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.interrupted
}

// IsRecording reports whether a recording is in progress.
func (o *Orchestrator) IsRecording() bool {
	return o.pipeline != nil && o.pipeline.IsRecording()
}

// CaptureMode returns the current capture mode.
func (o *Orchestrator) CaptureMode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// Connections returns the committed connections of the session.
func (o *Orchestrator) Connections() []platform.Connection {
	o.mu.RLock()
	sess := o.sess
	o.mu.RUnlock()
	if sess == nil {
		return nil
	}
	return sess.Connections()
}

func (o *Orchestrator) activeSession() platform.Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sess
}

func (o *Orchestrator) setSession(s platform.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sess = s
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

func (o *Orchestrator) setInterrupted(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interrupted = v
}
