package catalog

import (
	"context"
	"fmt"
	"slices"
)

// Position is the physical facing of a capture device.
type Position int

// Device positions. Back-facing devices are preferred for the primary role,
// front-facing ones for the secondary role.
const (
	PositionUnspecified Position = iota
	PositionBack
	PositionFront
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unspecified"
	}
}

// ParsePosition parses the String form of a position.
func ParsePosition(s string) (Position, error) {
	for _, p := range []Position{PositionUnspecified, PositionBack, PositionFront} {
		if p.String() == s {
			return p, nil
		}
	}
	return PositionUnspecified, fmt.Errorf("unknown device position %q", s)
}

// Kind describes the lens arrangement of a device. Higher kinds are richer.
type Kind int

// Device kinds ordered from least to most capable.
const (
	KindMicrophone Kind = iota
	KindTelephoto
	KindUltraWide
	KindWide
	KindDual
	KindDualWide
	KindTriple
)

func (k Kind) String() string {
	switch k {
	case KindMicrophone:
		return "microphone"
	case KindTelephoto:
		return "telephoto"
	case KindUltraWide:
		return "ultra-wide"
	case KindWide:
		return "wide"
	case KindDual:
		return "dual"
	case KindDualWide:
		return "dual-wide"
	case KindTriple:
		return "triple"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the String form of a device kind.
func ParseKind(s string) (Kind, error) {
	for k := KindMicrophone; k <= KindTriple; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindMicrophone, fmt.Errorf("unknown device kind %q", s)
}

// FrameRateRange is a supported frame rate interval in frames per second.
type FrameRateRange struct {
	Min float64 `json:"min" toml:"min"`
	Max float64 `json:"max" toml:"max"`
}

// Format is a capture format as enumerated by the platform. Formats are
// values and never change after enumeration.
type Format struct {
	ID          string           `json:"id" toml:"id"`
	Width       int              `json:"width" toml:"width"`
	Height      int              `json:"height" toml:"height"`
	FrameRates  []FrameRateRange `json:"frame_rates" toml:"frame_rates"`
	MultiStream bool             `json:"multi_stream" toml:"multi_stream"`
	HDR         bool             `json:"hdr" toml:"hdr"`
}

// MaxFrameRate returns the highest frame rate the format supports.
func (f Format) MaxFrameRate() float64 {
	var best float64
	for _, r := range f.FrameRates {
		best = max(best, r.Max)
	}
	return best
}

// ShortSide returns the smaller of width and height, so tier ceilings apply
// the same way to portrait and landscape formats.
func (f Format) ShortSide() int {
	return min(f.Width, f.Height)
}

// IsZero reports whether the format is unset.
func (f Format) IsZero() bool {
	return f.ID == "" && f.Width == 0 && f.Height == 0
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d@%g", f.Width, f.Height, f.MaxFrameRate())
}

// Device is a capture device owned by the platform. The orchestrator keeps
// copies while a device is configured; Active reflects the last applied format.
type Device struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Kind     Kind     `json:"kind"`
	Formats  []Format `json:"formats"`
	Active   Format   `json:"active"`
	MinZoom  float64  `json:"min_zoom"`
	MaxZoom  float64  `json:"max_zoom"`
}

// MultiStreamFormats returns the formats that are safe to use while another
// device captures at the same time, in enumeration order.
func (d Device) MultiStreamFormats() []Format {
	var out []Format
	for _, f := range d.Formats {
		if f.MultiStream {
			out = append(out, f)
		}
	}
	return out
}

// HasFormat reports whether the device enumerates a format with the given ID.
func (d Device) HasFormat(id string) bool {
	return slices.ContainsFunc(d.Formats, func(f Format) bool { return f.ID == id })
}

// DeviceLock is an exclusive configuration lock on one device. Every
// acquired lock must be released with Unlock.
type DeviceLock interface {
	SetActiveFormat(f Format) error
	SetFrameRate(r FrameRateRange) error
	SetZoom(factor float64) error
	Unlock()
}

// DeviceProvider enumerates devices and grants configuration locks.
type DeviceProvider interface {
	VideoDevices(ctx context.Context) ([]Device, error)
	AudioDevice(ctx context.Context) (Device, error)
	LockForConfiguration(ctx context.Context, deviceID string) (DeviceLock, error)
}
