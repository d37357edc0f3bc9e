package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/metrics"
	"github.com/smazurov/dualcam/internal/platform"
	"github.com/smazurov/dualcam/internal/session"
)

var errMultiCamUnsupported = errors.New("multi-cam capture not supported")

func (o *Orchestrator) start(ctx context.Context) error {
	if o.activeSession() != nil {
		return nil
	}

	granted, err := o.platform.RequestAccess(ctx, platform.MediaVideo)
	if err != nil {
		return o.fail("start", setupError(session.ErrSetupFailed, "request camera access", err))
	}
	if !granted {
		o.setStatus(StatusUnauthorized)
		o.machine.SetError(session.ErrPermissionDenied)
		o.feedback(events.FeedbackError, "Camera access denied")
		metrics.RecordTransition("start", metrics.ResultRejected)
		return setupError(session.ErrPermissionDenied, "camera access denied", nil)
	}

	o.audio = nil
	if ok, err := o.platform.RequestAccess(ctx, platform.MediaAudio); err != nil || !ok {
		o.logger.Warn("Microphone access unavailable, continuing without audio", "error", err)
	} else if mic, err := o.platform.AudioDevice(ctx); err != nil {
		o.logger.Warn("No audio device, continuing without audio", "error", err)
	} else {
		o.audio = &mic
	}

	candidates, err := o.catalog.PrimaryCandidates(ctx)
	if err != nil {
		return o.fail("start", setupError(session.ErrDeviceUnavailable, "find primary device", err))
	}
	from := o.machine.Current().Snapshot()
	if err := o.machine.BeginTransition(from, session.Snapshot{Primary: session.RefOf(candidates[0])}, "start"); err != nil {
		return err
	}

	sess, err := o.platform.NewSession(o.platform.MultiCamSupported())
	if err != nil {
		return o.fail("start", setupError(session.ErrSetupFailed, "create capture session", err))
	}
	o.setSession(sess)

	if err := o.configureFirst(ctx, candidates, false); err != nil {
		return o.fail("start", err)
	}
	if err := sess.StartRunning(ctx); err != nil {
		return o.fail("start", setupError(session.ErrSetupFailed, "start capture session", err))
	}
	o.attachRotation(o.primary.ID)
	o.reapplyZoom(ctx)

	if err := o.machine.CompleteTransition(o.steadyState()); err != nil {
		return err
	}
	o.setStatus(StatusRunning)
	o.publishCapabilities()
	metrics.SetSessionMode(1)
	metrics.RecordTransition("start", metrics.ResultOK)
	o.logger.Info("Capture session started", "primary", o.primary.ID, "mode", o.CaptureMode().String())

	if o.autoDual.Load() {
		if _, err := o.enableDual(ctx); err != nil {
			o.logger.Warn("Automatic dual device setup failed", "error", err)
		}
	}
	return nil
}

// stop ends any recording and releases the session.
func (o *Orchestrator) stop(ctx context.Context) {
	o.teardown(ctx)
	o.machine.Reset()
	o.setStatus(StatusUnknown)
	o.setInterrupted(false)
	metrics.SetSessionMode(0)
	o.logger.Info("Capture session stopped")
}

// teardown stops the session and drops every device reference. A recording
// in progress is finalized and saved first.
func (o *Orchestrator) teardown(ctx context.Context) {
	if o.pipeline != nil && o.pipeline.IsRecording() {
		o.finishRecording(ctx)
	}
	if sess := o.activeSession(); sess != nil {
		sess.StopRunning()
	}
	if o.rotation != nil {
		o.rotation.Close()
		o.rotation = nil
	}
	o.setSession(nil)
	o.primary, o.secondary = nil, nil
}

// fail tears the session down and records an unrecoverable error.
func (o *Orchestrator) fail(label string, err error) error {
	o.logger.Error("Capture session failed", "operation", label, "error", err)
	o.teardown(context.Background())
	o.machine.SetError(KindOf(err))
	o.setStatus(StatusFailed)
	o.feedback(events.FeedbackError, "Camera unavailable")
	metrics.RecordTransition(label, metrics.ResultFailed)
	metrics.SetSessionMode(0)
	return err
}

// configureSingle replaces the configuration with device alone, using
// automatic connections. With keepActive, a device that already has an
// active format stays on it when the best format cannot be applied.
func (o *Orchestrator) configureSingle(ctx context.Context, device catalog.Device, keepActive bool) error {
	if f, ok := catalog.BestSingleFormat(device); ok {
		applied, err := o.catalog.ApplyFormat(ctx, device, f)
		switch {
		case err == nil:
			device = applied
		case keepActive && !device.Active.IsZero():
			o.logger.Warn("Keeping active format", "device", device.ID, "format", device.Active.String(), "error", err)
		default:
			return setupError(session.ErrFormatNegotiationFailed, "apply format to "+device.ID, err)
		}
	}

	mode := o.CaptureMode()
	err := o.activeSession().Configure(func(tx platform.Tx) error {
		clearAll(tx)
		if err := tx.AddInput(device.ID, true); err != nil {
			return setupError(session.ErrInputAttachFailed, "attach "+device.ID, err)
		}
		o.attachAudio(tx, true)
		for _, sink := range sinksFor(mode, false) {
			if err := tx.AddOutput(sink, true); err != nil {
				return setupError(session.ErrOutputAttachFailed, "attach "+sink.String()+" output", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.primary = &device
	o.secondary = nil
	return nil
}

// configureFirst configures the first candidate that works as a single
// device. The returned error joins every failed attempt.
func (o *Orchestrator) configureFirst(ctx context.Context, candidates []catalog.Device, keepActive bool) error {
	var errs []error
	for _, d := range candidates {
		err := o.configureSingle(ctx, d, keepActive)
		if err == nil {
			if len(errs) > 0 {
				o.logger.Warn("Using fallback primary device", "device", d.ID, "failed", len(errs))
			}
			return nil
		}
		o.logger.Warn("Device unusable as primary", "device", d.ID, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return setupError(session.ErrDeviceUnavailable, "no video device", nil)
	}
	return errors.Join(errs...)
}

// recoverSingle configures single-device capture on the preferred devices
// in order, then on the remaining ranked candidates.
func (o *Orchestrator) recoverSingle(ctx context.Context, preferred ...catalog.Device) error {
	candidates := slices.Clone(preferred)
	if ranked, err := o.catalog.PrimaryCandidates(ctx); err == nil {
		for _, d := range ranked {
			if !slices.ContainsFunc(candidates, func(c catalog.Device) bool { return c.ID == d.ID }) {
				candidates = append(candidates, d)
			}
		}
	}
	return o.configureFirst(ctx, candidates, true)
}

// configureDual replaces the configuration with both devices of c and
// explicit connections. Nothing is committed when any step fails.
func (o *Orchestrator) configureDual(ctx context.Context, c catalog.DualCandidate) error {
	primary, err := o.catalog.ApplyFormat(ctx, c.Primary, c.Pair.Primary)
	if err != nil {
		return setupError(session.ErrFormatNegotiationFailed, "apply format to "+c.Primary.ID, err)
	}
	secondary, err := o.catalog.ApplyFormat(ctx, c.Secondary, c.Pair.Secondary)
	if err != nil {
		o.restoreFormat(ctx, primary.ID)
		return setupError(session.ErrFormatNegotiationFailed, "apply format to "+c.Secondary.ID, err)
	}

	mode := o.CaptureMode()
	err = o.activeSession().Configure(func(tx platform.Tx) error {
		clearAll(tx)
		for _, d := range []catalog.Device{primary, secondary} {
			if err := tx.AddInput(d.ID, false); err != nil {
				return setupError(session.ErrInputAttachFailed, "attach "+d.ID, err)
			}
		}
		o.attachAudio(tx, false)
		for _, sink := range sinksFor(mode, true) {
			if err := tx.AddOutput(sink, false); err != nil {
				return setupError(session.ErrOutputAttachFailed, "attach "+sink.String()+" output", err)
			}
		}
		return o.connectDual(tx, primary.ID, secondary.ID)
	})
	if err != nil {
		o.restoreFormat(ctx, primary.ID)
		return err
	}

	o.primary, o.secondary = &primary, &secondary
	return nil
}

// connectDual routes the photo and primary movie sinks to primaryID and the
// secondary movie sink to secondaryID. Existing connections of those sinks
// are removed first.
func (o *Orchestrator) connectDual(tx platform.Tx, primaryID, secondaryID string) error {
	pv, err := tx.Port(primaryID, platform.MediaVideo)
	if err != nil {
		return setupError(session.ErrConnectionFailed, "video port of "+primaryID, err)
	}
	sv, err := tx.Port(secondaryID, platform.MediaVideo)
	if err != nil {
		return setupError(session.ErrConnectionFailed, "video port of "+secondaryID, err)
	}
	moviePorts := []platform.Port{pv}
	if o.audio != nil && slices.Contains(tx.Inputs(), o.audio.ID) {
		ap, err := tx.Port(o.audio.ID, platform.MediaAudio)
		if err != nil {
			return setupError(session.ErrConnectionFailed, "audio port of "+o.audio.ID, err)
		}
		moviePorts = append(moviePorts, ap)
	}

	routes := map[platform.Sink][]platform.Port{
		platform.SinkPhoto:          {pv},
		platform.SinkPrimaryMovie:   moviePorts,
		platform.SinkSecondaryMovie: {sv},
	}
	outputs := tx.Outputs()
	for _, sink := range []platform.Sink{platform.SinkPhoto, platform.SinkPrimaryMovie, platform.SinkSecondaryMovie} {
		if !slices.Contains(outputs, sink) {
			continue
		}
		tx.RemoveConnection(sink)
		if err := tx.AddConnection(sink, routes[sink]...); err != nil {
			return setupError(session.ErrConnectionFailed, "connect "+sink.String(), err)
		}
	}
	return nil
}

// attachAudio adds the microphone input. Capture continues without audio
// when it cannot be attached.
func (o *Orchestrator) attachAudio(tx platform.Tx, auto bool) {
	if o.audio == nil {
		return
	}
	if err := tx.AddInput(o.audio.ID, auto); err != nil {
		o.logger.Warn("Audio input unavailable", "device", o.audio.ID, "error", err)
	}
}

// restoreFormat puts the device in use as primary back on its active format
// after a dual setup changed it and then failed.
func (o *Orchestrator) restoreFormat(ctx context.Context, deviceID string) {
	if o.primary == nil || o.primary.ID != deviceID || o.primary.Active.IsZero() {
		return
	}
	if _, err := o.catalog.ApplyFormat(context.WithoutCancel(ctx), *o.primary, o.primary.Active); err != nil {
		o.logger.Warn("Could not restore format", "device", deviceID, "error", err)
	}
}

// fallback restores single-device capture on prev after a failed dual setup.
// When the dual configuration was never committed the single-device
// configuration is still in place and is kept as is.
func (o *Orchestrator) fallback(ctx context.Context, prev catalog.Device, cause error, committed bool) error {
	ctx = context.WithoutCancel(ctx)
	kind := KindOf(cause)
	o.logger.Warn("Dual device setup failed, falling back to single device",
		"kind", string(kind), "committed", committed, "error", cause)
	metrics.RecordDualFallback(string(kind))

	if committed {
		if err := o.recoverSingle(ctx, prev); err != nil {
			return o.fail("enable-dual", setupError(session.ErrSetupFailed, "fall back to single device", errors.Join(cause, err)))
		}
	}
	sess := o.activeSession()
	if !sess.IsRunning() {
		if err := sess.StartRunning(ctx); err != nil {
			return o.fail("enable-dual", setupError(session.ErrSetupFailed, "restart single device session", err))
		}
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
	metrics.RecordTransition("enable-dual", metrics.ResultFallback)
	o.feedback(events.FeedbackWarning, "Dual camera unavailable, using single camera")
	return nil
}

// attachRotation replaces the rotation coordinator with one for deviceID.
func (o *Orchestrator) attachRotation(deviceID string) {
	if o.rotation != nil {
		o.rotation.Close()
		o.rotation = nil
	}
	rc, err := o.platform.NewRotationCoordinator(deviceID)
	if err != nil {
		o.logger.Warn("Rotation coordinator unavailable", "device", deviceID, "error", err)
		return
	}
	o.rotation = rc
}

// reapplyZoom clamps the current zoom factor to the bounds of the primary
// device and applies it. The factor resets when the device rejects it.
func (o *Orchestrator) reapplyZoom(ctx context.Context) {
	o.mu.RLock()
	z := o.zoom
	o.mu.RUnlock()
	if z == 0 || o.primary == nil {
		return
	}
	applied, err := o.catalog.SetZoom(ctx, *o.primary, z)
	if err != nil {
		o.logger.Warn("Zoom not applied", "device", o.primary.ID, "error", err)
		applied = 0
	}
	o.mu.Lock()
	o.zoom = applied
	o.mu.Unlock()
}

// steadyState describes the current device roles as a session state.
func (o *Orchestrator) steadyState() session.State {
	if o.secondary != nil {
		return session.Dual(session.RefOf(*o.primary), session.RefOf(*o.secondary))
	}
	return session.Single(session.RefOf(*o.primary))
}

func clearAll(tx platform.Tx) {
	for _, c := range tx.Connections() {
		tx.RemoveConnection(c.Sink)
	}
	for _, sink := range tx.Outputs() {
		tx.RemoveOutput(sink)
	}
	for _, id := range tx.Inputs() {
		tx.RemoveInput(id)
	}
}

// sinksFor lists the outputs of a configuration in attach order.
func sinksFor(mode Mode, dual bool) []platform.Sink {
	sinks := []platform.Sink{platform.SinkPhoto}
	if mode == ModeVideo {
		sinks = append(sinks, movieSinks(dual)...)
	}
	return sinks
}

func movieSinks(dual bool) []platform.Sink {
	if dual {
		return []platform.Sink{platform.SinkPrimaryMovie, platform.SinkSecondaryMovie}
	}
	return []platform.Sink{platform.SinkPrimaryMovie}
}

func deviceLabel(d *catalog.Device) string {
	if d == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Position)
}
