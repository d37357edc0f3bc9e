// Package platform defines the capture platform the pipeline drives: device
// access, capture sessions with transactional configuration, explicit
// port-to-sink connections and the movie and photo outputs.
//
// Implementations wrap a hardware SDK. The sim subpackage provides an
// in-memory platform for tests and for running the daemon without hardware.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/dualcam/internal/catalog"
)

// Errors shared by platform implementations.
var (
	ErrUnknownDevice    = errors.New("unknown device")
	ErrInputExists      = errors.New("input already attached")
	ErrNoInput          = errors.New("input not attached")
	ErrOutputExists     = errors.New("output already attached")
	ErrNoOutput         = errors.New("output not attached")
	ErrNoPort           = errors.New("no such port")
	ErrSinkConnected    = errors.New("sink already has a connection")
	ErrNotConnected     = errors.New("sink has no active connection")
	ErrMultiCam         = errors.New("multiple video inputs require a multi-cam session")
	ErrNotRunning       = errors.New("session not running")
	ErrAlreadyRecording = errors.New("output already recording")
)

// MediaType identifies the kind of data a port carries.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

func (m MediaType) String() string {
	if m == MediaAudio {
		return "audio"
	}
	return "video"
}

// Sink names an output slot of a session.
type Sink int

const (
	SinkPhoto Sink = iota
	SinkPrimaryMovie
	SinkSecondaryMovie
)

func (s Sink) String() string {
	switch s {
	case SinkPhoto:
		return "photo"
	case SinkPrimaryMovie:
		return "primary-movie"
	case SinkSecondaryMovie:
		return "secondary-movie"
	default:
		return "unknown"
	}
}

// Port is one media stream of an attached input.
type Port struct {
	DeviceID string
	Media    MediaType
}

// Connection routes ports into a sink.
type Connection struct {
	Sink  Sink
	Ports []Port
	Auto  bool
}

// Uses reports whether the connection draws from deviceID.
func (c Connection) Uses(deviceID string) bool {
	for _, p := range c.Ports {
		if p.DeviceID == deviceID {
			return true
		}
	}
	return false
}

// EventKind classifies asynchronous platform notifications.
type EventKind int

const (
	EventInterrupted EventKind = iota
	EventInterruptionEnded
	EventReset
	EventRuntimeError
)

func (k EventKind) String() string {
	switch k {
	case EventInterrupted:
		return "interrupted"
	case EventInterruptionEnded:
		return "interruption-ended"
	case EventReset:
		return "reset"
	case EventRuntimeError:
		return "runtime-error"
	default:
		return "unknown"
	}
}

// Event is an asynchronous notification from the platform.
type Event struct {
	Kind   EventKind
	Reason string
	Err    error
}

// RecordingResult is delivered exactly once per started recording.
type RecordingResult struct {
	Location  string
	Duration  time.Duration
	FrameRate float64
	DeviceID  string
	Err       error
}

// MovieOutput records one connected video stream to a file.
type MovieOutput interface {
	// StartRecording begins writing to location. done is called once, from
	// any goroutine, after the file is finalized.
	StartRecording(location string, done func(RecordingResult)) error
	StopRecording()
	IsRecording() bool
}

// PhotoOutput captures still images from its connected device.
type PhotoOutput interface {
	CapturePhoto(ctx context.Context, location string, rotation float64) error
}

// RotationCoordinator tracks device orientation for one capture device.
type RotationCoordinator interface {
	CaptureRotation() float64
	Close()
}

// Tx mutates a session configuration. Mutations become visible only when
// the enclosing Configure call commits.
type Tx interface {
	AddInput(deviceID string, autoConnect bool) error
	RemoveInput(deviceID string)
	AddOutput(sink Sink, autoConnect bool) error
	RemoveOutput(sink Sink)
	Port(deviceID string, media MediaType) (Port, error)
	AddConnection(sink Sink, ports ...Port) error
	RemoveConnection(sink Sink)
	Inputs() []string
	Outputs() []Sink
	Connections() []Connection
}

// Session is a capture session. It is not safe for concurrent configuration;
// callers serialize access.
type Session interface {
	// Configure runs fn as one transaction. If fn returns an error every
	// mutation it made is discarded.
	Configure(fn func(Tx) error) error
	StartRunning(ctx context.Context) error
	StopRunning()
	IsRunning() bool
	MultiCam() bool
	Inputs() []string
	Outputs() []Sink
	Connections() []Connection
	MovieOutput(sink Sink) (MovieOutput, bool)
	PhotoOutput() (PhotoOutput, bool)
}

// Platform is the capture SDK entry point.
type Platform interface {
	catalog.DeviceProvider
	RequestAccess(ctx context.Context, media MediaType) (bool, error)
	MultiCamSupported() bool
	NewSession(multiCam bool) (Session, error)
	NewRotationCoordinator(deviceID string) (RotationCoordinator, error)
	Events() <-chan Event
}
