package orchestrator

import (
	"time"

	"github.com/smazurov/dualcam/internal/events"
)

// publishCapabilities recomputes capabilities from the configured devices.
func (o *Orchestrator) publishCapabilities() {
	o.mu.Lock()
	caps := Capabilities{Mode: o.mode, Zoom: o.zoom}
	if o.primary != nil {
		caps.HDR = o.primary.Active.HDR
		caps.MinZoom = o.primary.MinZoom
		caps.MaxZoom = o.primary.MaxZoom
		if caps.Zoom == 0 {
			caps.Zoom = max(o.primary.MinZoom, 1)
		}
	}
	if o.secondary != nil {
		caps.DualDevice = true
		caps.Switchable = true
	}
	o.caps = caps
	o.mu.Unlock()

	if o.bus == nil {
		return
	}
	o.bus.Publish(events.CapabilitiesEvent{
		HDR:        caps.HDR,
		DualDevice: caps.DualDevice,
		Switchable: caps.Switchable,
		Mode:       caps.Mode.String(),
		MinZoom:    caps.MinZoom,
		MaxZoom:    caps.MaxZoom,
		Zoom:       caps.Zoom,
		Timestamp:  timestamp(),
	})
}

// feedback publishes a user-facing message. Errors stay until dismissed.
func (o *Orchestrator) feedback(level, message string) {
	if o.bus == nil {
		return
	}
	ev := events.FeedbackEvent{Level: level, Message: message, Timestamp: timestamp()}
	if level != events.FeedbackError {
		ev.DismissMs = o.opts.FeedbackDismiss.Milliseconds()
	}
	o.bus.Publish(ev)
}

func (o *Orchestrator) activity(operation string, active bool) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.ActivityEvent{Operation: operation, Active: active, Timestamp: timestamp()})
}

func (o *Orchestrator) publishInterruption(interrupted bool, reason string) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.InterruptionEvent{Interrupted: interrupted, Reason: reason, Timestamp: timestamp()})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
