package orchestrator

import (
	"context"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/platform"
	"github.com/smazurov/dualcam/internal/session"
)

func (o *Orchestrator) handlePlatformEvent(ev platform.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), platformEventTimeout)
	defer cancel()

	o.logger.Info("Platform event", "kind", ev.Kind.String(), "reason", ev.Reason, "error", ev.Err)
	switch ev.Kind {
	case platform.EventInterrupted:
		o.setInterrupted(true)
		if o.IsRecording() {
			o.finishRecording(ctx)
		}
		o.publishInterruption(true, ev.Reason)
		o.feedback(events.FeedbackWarning, "Camera interrupted")

	case platform.EventInterruptionEnded:
		o.setInterrupted(false)
		if sess := o.activeSession(); sess != nil && !sess.IsRunning() {
			if err := sess.StartRunning(ctx); err != nil {
				_ = o.fail("resume", setupError(session.ErrInterrupted, "resume after interruption", err))
				return
			}
		}
		o.publishInterruption(false, "")
		o.feedback(events.FeedbackInfo, "Camera resumed")

	case platform.EventReset:
		o.restart(ctx)

	case platform.EventRuntimeError:
		sess := o.activeSession()
		if sess == nil {
			return
		}
		if err := sess.StartRunning(ctx); err != nil {
			_ = o.fail("runtime-error", setupError(session.ErrSetupFailed, "restart after runtime error", err))
		}
	}
}

// restart rebuilds the session from scratch, keeping dual mode if it was on.
func (o *Orchestrator) restart(ctx context.Context) {
	if o.activeSession() == nil {
		return
	}
	wasDual := o.machine.Current().IsDual()
	o.teardown(ctx)
	o.machine.Reset()

	if err := o.start(ctx); err != nil {
		o.logger.Error("Restart after platform reset failed", "error", err)
		return
	}
	if wasDual && !o.machine.Current().IsDual() {
		if _, err := o.enableDual(ctx); err != nil {
			o.logger.Warn("Dual device not restored after reset", "error", err)
		}
	}
	o.feedback(events.FeedbackInfo, "Camera restarted")
}
