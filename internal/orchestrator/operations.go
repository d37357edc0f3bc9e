package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/metrics"
	"github.com/smazurov/dualcam/internal/platform"
	"github.com/smazurov/dualcam/internal/recording"
	"github.com/smazurov/dualcam/internal/session"
)

func (o *Orchestrator) enableDual(ctx context.Context) (bool, error) {
	cur := o.machine.Current()
	if cur.IsDual() {
		return true, nil
	}
	if o.activeSession() == nil || o.primary == nil {
		return false, ErrNotStarted
	}
	if o.IsRecording() {
		return false, ErrRecordingInProgress
	}

	candidate, err := o.dualCandidate(ctx)
	if err != nil {
		o.logger.Warn("Dual device capture not available", "error", err)
		metrics.RecordTransition("enable-dual", metrics.ResultRejected)
		o.feedback(events.FeedbackWarning, "Dual camera not supported with the available devices")
		return false, nil
	}

	o.activity("enable-dual", true)
	defer o.activity("enable-dual", false)

	prev := *o.primary
	to := session.Snapshot{Primary: session.RefOf(candidate.Primary), Secondary: session.RefOf(candidate.Secondary)}
	if err := o.machine.BeginTransition(cur.Snapshot(), to, "enable-dual"); err != nil {
		return false, err
	}

	if err := o.configureDual(ctx, candidate); err != nil {
		return false, o.fallback(ctx, prev, err, false)
	}
	sess := o.activeSession()
	if !sess.IsRunning() {
		if err := sess.StartRunning(ctx); err != nil {
			return false, o.fallback(ctx, prev, setupError(session.ErrDualDeviceConfigFailed, "start dual session", err), true)
		}
	}
	if o.primary.ID != prev.ID {
		o.attachRotation(o.primary.ID)
		o.reapplyZoom(ctx)
	}

	if err := o.machine.CompleteTransition(o.steadyState()); err != nil {
		return false, err
	}
	o.publishCapabilities()
	metrics.SetSessionMode(2)
	metrics.RecordTransition("enable-dual", metrics.ResultOK)
	o.feedback(events.FeedbackSuccess, "Dual camera enabled")
	o.logger.Info("Dual device capture enabled",
		"primary", deviceLabel(o.primary), "secondary", deviceLabel(o.secondary),
		"tier", candidate.Pair.Tier)
	return true, nil
}

// dualCandidate runs the preflight checks. It touches no device.
func (o *Orchestrator) dualCandidate(ctx context.Context) (catalog.DualCandidate, error) {
	if !o.platform.MultiCamSupported() || !o.activeSession().MultiCam() {
		return catalog.DualCandidate{}, errMultiCamUnsupported
	}
	return o.catalog.FindDualCandidate(ctx, o.primary.ID)
}

func (o *Orchestrator) disableDual(ctx context.Context) error {
	cur := o.machine.Current()
	if !cur.IsDual() {
		return nil
	}
	if o.IsRecording() {
		return ErrRecordingInProgress
	}

	o.activity("disable-dual", true)
	defer o.activity("disable-dual", false)

	if err := o.machine.BeginTransition(cur.Snapshot(), session.Snapshot{Primary: cur.Primary}, "disable-dual"); err != nil {
		return err
	}
	prev := *o.primary
	if err := o.recoverSingle(ctx, prev, *o.secondary); err != nil {
		// Every attempt was rolled back, so the dual configuration still runs.
		_ = o.machine.CompleteTransition(o.steadyState())
		metrics.RecordTransition("disable-dual", metrics.ResultFailed)
		o.feedback(events.FeedbackWarning, "Could not switch to a single camera")
		return err
	}
	if o.primary.ID != prev.ID {
		o.attachRotation(o.primary.ID)
		o.reapplyZoom(ctx)
	}
	if err := o.machine.CompleteTransition(o.steadyState()); err != nil {
		return err
	}
	o.publishCapabilities()
	metrics.SetSessionMode(1)
	metrics.RecordTransition("disable-dual", metrics.ResultOK)
	o.logger.Info("Dual device capture disabled", "primary", o.primary.ID)
	return nil
}

// switchDevices swaps device roles by rebuilding only the connections.
// Recordings keep running across the swap.
func (o *Orchestrator) switchDevices(ctx context.Context) error {
	cur := o.machine.Current()
	if !cur.IsDual() || o.secondary == nil {
		return ErrNotDual
	}
	p, s := *o.primary, *o.secondary
	restore := session.Dual(session.RefOf(p), session.RefOf(s))
	swapped := session.Dual(session.RefOf(s), session.RefOf(p))

	if err := o.machine.BeginTransition(cur.Snapshot(), swapped.Snapshot(), "switch"); err != nil {
		return err
	}
	err := o.activeSession().Configure(func(tx platform.Tx) error {
		return o.connectDual(tx, s.ID, p.ID)
	})
	if err != nil {
		_ = o.machine.CompleteTransition(restore)
		metrics.RecordTransition("switch", metrics.ResultFailed)
		o.feedback(events.FeedbackWarning, "Could not switch cameras")
		return err
	}

	o.primary, o.secondary = &s, &p
	o.attachRotation(s.ID)
	o.reapplyZoom(ctx)
	if err := o.machine.CompleteTransition(swapped); err != nil {
		return err
	}
	o.publishCapabilities()
	metrics.RecordTransition("switch", metrics.ResultOK)
	o.logger.Info("Switched primary and secondary", "primary", s.ID, "secondary", p.ID)
	return nil
}

// setMode adds or removes the movie sinks inside one transaction.
func (o *Orchestrator) setMode(m Mode) error {
	if m == o.CaptureMode() {
		return nil
	}
	if o.IsRecording() {
		return ErrRecordingInProgress
	}
	if o.activeSession() == nil || o.primary == nil {
		o.mu.Lock()
		o.mode = m
		o.caps.Mode = m
		o.mu.Unlock()
		return nil
	}

	cur := o.machine.Current()
	if err := o.machine.BeginTransition(cur.Snapshot(), cur.Snapshot(), "mode"); err != nil {
		return err
	}
	dual := o.secondary != nil
	err := o.activeSession().Configure(func(tx platform.Tx) error {
		sinks := movieSinks(dual)
		if m == ModePhoto {
			for _, sink := range sinks {
				tx.RemoveOutput(sink)
			}
			return nil
		}
		for _, sink := range sinks {
			if err := tx.AddOutput(sink, !dual); err != nil {
				return setupError(session.ErrOutputAttachFailed, "attach "+sink.String()+" output", err)
			}
		}
		if dual {
			return o.connectDual(tx, o.primary.ID, o.secondary.ID)
		}
		return nil
	})
	if err != nil {
		_ = o.machine.CompleteTransition(o.steadyState())
		metrics.RecordTransition("mode", metrics.ResultFailed)
		return err
	}

	o.mu.Lock()
	o.mode = m
	o.mu.Unlock()
	if err := o.machine.CompleteTransition(o.steadyState()); err != nil {
		return err
	}
	o.publishCapabilities()
	metrics.RecordTransition("mode", metrics.ResultOK)
	o.logger.Info("Capture mode changed", "mode", m.String())
	return nil
}

func (o *Orchestrator) setZoom(ctx context.Context, factor float64) (float64, error) {
	if o.primary == nil {
		return 0, ErrNoSession
	}
	applied, err := o.catalog.SetZoom(ctx, *o.primary, factor)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	o.zoom = applied
	o.mu.Unlock()
	o.publishCapabilities()
	return applied, nil
}

func (o *Orchestrator) startRecording(ctx context.Context) error {
	sess := o.activeSession()
	if sess == nil || !sess.IsRunning() {
		return ErrNoSession
	}
	if o.CaptureMode() != ModeVideo {
		return ErrNotVideoMode
	}
	if o.IsInterrupted() {
		return setupError(session.ErrInterrupted, "capture interrupted", nil)
	}

	var targets []recording.Target
	roles := []struct {
		sink   platform.Sink
		device *catalog.Device
	}{
		{platform.SinkPrimaryMovie, o.primary},
		{platform.SinkSecondaryMovie, o.secondary},
	}
	for _, r := range roles {
		if r.device == nil {
			continue
		}
		out, ok := sess.MovieOutput(r.sink)
		if !ok {
			return fmt.Errorf("%s: %w", r.sink, platform.ErrNoOutput)
		}
		targets = append(targets, recording.Target{Sink: r.sink, Output: out, Device: *r.device})
	}

	if err := o.pipeline.Start(ctx, targets); err != nil {
		o.feedback(events.FeedbackError, "Recording failed to start")
		return err
	}
	o.activity("recording", true)
	return nil
}

func (o *Orchestrator) stopRecording(ctx context.Context) (recording.PairedResult, error) {
	result, err := o.pipeline.Stop(ctx)
	if errors.Is(err, recording.ErrNotRecording) {
		return result, err
	}
	o.activity("recording", false)
	if err != nil {
		o.feedback(events.FeedbackError, "Recording failed")
		return result, err
	}
	if o.secondary != nil && !result.IsDual() {
		o.feedback(events.FeedbackWarning, "Secondary camera recording was lost")
	}
	return result, nil
}

// finishRecording stops and saves a recording the session is about to lose.
func (o *Orchestrator) finishRecording(ctx context.Context) {
	result, err := o.stopRecording(ctx)
	if err != nil {
		o.logger.Warn("Recording ended with the session", "error", err)
		return
	}
	if _, err := o.pipeline.Save(ctx, result); err != nil {
		o.logger.Error("Failed to save interrupted recording", "error", err)
	}
}

func (o *Orchestrator) capturePhoto(ctx context.Context) (library.Asset, error) {
	sess := o.activeSession()
	if sess == nil || !sess.IsRunning() || o.primary == nil {
		return library.Asset{}, ErrNoSession
	}
	if o.IsInterrupted() {
		return library.Asset{}, setupError(session.ErrInterrupted, "capture interrupted", nil)
	}
	out, ok := sess.PhotoOutput()
	if !ok {
		return library.Asset{}, fmt.Errorf("%s: %w", platform.SinkPhoto, platform.ErrNoOutput)
	}

	var angle float64
	if o.rotation != nil {
		angle = o.rotation.CaptureRotation()
	}
	tmp := filepath.Join(o.opts.TempDir, "photo-"+uuid.NewString()+".jpg")
	if err := out.CapturePhoto(ctx, tmp, angle); err != nil {
		o.feedback(events.FeedbackError, "Photo capture failed")
		return library.Asset{}, fmt.Errorf("capture photo: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			o.logger.Warn("Failed to remove temporary photo", "path", tmp, "error", err)
		}
	}()

	asset, err := o.library.Import(ctx, tmp, library.ImportOptions{Kind: library.KindPhoto, DeviceID: o.primary.ID})
	if err != nil {
		return library.Asset{}, fmt.Errorf("save photo: %w", err)
	}
	o.logger.Info("Photo captured", "asset", asset.ID, "device", o.primary.ID, "rotation", angle)
	return asset, nil
}
