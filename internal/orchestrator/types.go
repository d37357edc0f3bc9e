package orchestrator

import (
	"fmt"
	"time"

	"github.com/smazurov/dualcam/internal/catalog"
)

// Mode is the capture mode.
type Mode int

const (
	ModeVideo Mode = iota
	ModePhoto
)

func (m Mode) String() string {
	if m == ModePhoto {
		return "photo"
	}
	return "video"
}

// ParseMode parses "photo" or "video".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "video":
		return ModeVideo, nil
	case "photo":
		return ModePhoto, nil
	default:
		return 0, fmt.Errorf("unknown capture mode %q", s)
	}
}

// Status is the coarse health of the pipeline.
type Status int

const (
	StatusUnknown Status = iota
	StatusRunning
	StatusFailed
	StatusUnauthorized
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Capabilities are recomputed after every successful reconfiguration.
type Capabilities struct {
	HDR        bool
	DualDevice bool
	Switchable bool
	Mode       Mode
	MinZoom    float64
	MaxZoom    float64
	Zoom       float64
}

// Options configures an Orchestrator.
type Options struct {
	// AutoEnableDual attempts dual-device setup right after Start.
	AutoEnableDual bool
	// Mode is the initial capture mode.
	Mode Mode
	// TempDir receives photos before they are imported into the library.
	TempDir string
	// Tiers overrides the catalog's resolution tiers.
	Tiers []catalog.Tier
	// FeedbackDismiss is the auto-dismiss delay attached to transient feedback.
	FeedbackDismiss time.Duration
}
