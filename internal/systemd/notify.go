// Package systemd reports service readiness and liveness to the service
// manager. Every call is a no-op when the process does not run under systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/dualcam/internal/logging"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger logging.Logger
	done   chan struct{}
}

// NewNotifier creates a notifier.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready reports that startup finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// StartWatchdog pings the watchdog at half the configured interval while
// healthy returns true. It returns false when the unit has no watchdog.
func (n *Notifier) StartWatchdog(ctx context.Context, healthy func() bool) bool {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", "error", err)
		return false
	}
	if interval <= 0 {
		return false
	}

	n.done = make(chan struct{})
	go func() {
		defer close(n.done)
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if healthy() {
					n.send(daemon.SdNotifyWatchdog)
				} else {
					n.logger.Warn("Skipping watchdog ping, service unhealthy")
				}
			}
		}
	}()
	n.logger.Info("Watchdog enabled", "interval", interval)
	return true
}

// Wait blocks until the watchdog goroutine exits.
func (n *Notifier) Wait() {
	if n.done != nil {
		<-n.done
	}
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
