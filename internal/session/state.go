// Package session holds the capture session state machine. States are
// immutable values; the Machine serializes transitions and fans snapshots
// out to observers.
package session

import (
	"time"

	"github.com/smazurov/dualcam/internal/catalog"
)

// Kind is the top-level session state.
type Kind int

const (
	Uninitialized Kind = iota
	SingleDevice
	DualDevice
	Transitioning
	Error
)

func (k Kind) String() string {
	switch k {
	case Uninitialized:
		return "uninitialized"
	case SingleDevice:
		return "single_device"
	case DualDevice:
		return "dual_device"
	case Transitioning:
		return "transitioning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a failure that put the session in the Error state
// or triggered a fallback.
type ErrorKind string

const (
	ErrDeviceUnavailable       ErrorKind = "device_unavailable"
	ErrInputAttachFailed       ErrorKind = "input_attach_failed"
	ErrOutputAttachFailed      ErrorKind = "output_attach_failed"
	ErrConnectionFailed        ErrorKind = "connection_failed"
	ErrFormatNegotiationFailed ErrorKind = "format_negotiation_failed"
	ErrDualDeviceConfigFailed  ErrorKind = "dual_device_config_failed"
	ErrSetupFailed             ErrorKind = "setup_failed"
	ErrPermissionDenied        ErrorKind = "permission_denied"
	ErrInterrupted             ErrorKind = "interrupted"
)

// DeviceRef is a flattened device descriptor.
type DeviceRef struct {
	ID       string
	Name     string
	Position catalog.Position
}

// RefOf describes d.
func RefOf(d catalog.Device) *DeviceRef {
	return &DeviceRef{ID: d.ID, Name: d.Name, Position: d.Position}
}

// Snapshot names the devices of a configuration. Secondary is nil for a
// single-device configuration.
type Snapshot struct {
	Primary   *DeviceRef
	Secondary *DeviceRef
}

// State is one published session state. From, To and Label are set only
// while Transitioning; Err only in the Error state.
type State struct {
	Kind      Kind
	Primary   *DeviceRef
	Secondary *DeviceRef
	From      Snapshot
	To        Snapshot
	Label     string
	Err       ErrorKind
	Seq       uint64
	At        time.Time
}

// Single returns a single-device state for primary.
func Single(primary *DeviceRef) State {
	return State{Kind: SingleDevice, Primary: primary}
}

// Dual returns a dual-device state.
func Dual(primary, secondary *DeviceRef) State {
	return State{Kind: DualDevice, Primary: primary, Secondary: secondary}
}

// Snapshot returns the devices of s.
func (s State) Snapshot() Snapshot {
	return Snapshot{Primary: s.Primary, Secondary: s.Secondary}
}

// IsDual reports whether two devices are active.
func (s State) IsDual() bool {
	return s.Kind == DualDevice
}
