package events

// Event type constants for kelindar/event.
const (
	TypeSessionState uint32 = iota + 1
	TypeCapabilities
	TypeFeedback
	TypeActivity
	TypeInterruption
	TypeMergeCompleted
	TypeMergeFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceInfo is the flattened device descriptor carried by session events.
type DeviceInfo struct {
	ID       string `json:"id" example:"back-triple" doc:"Device identifier"`
	Name     string `json:"name" example:"Back Triple Camera" doc:"Human readable device name"`
	Position string `json:"position" example:"back" doc:"Device position: back, front, unspecified"`
}

// SessionStateEvent is published on every session state change.
type SessionStateEvent struct {
	State     string      `json:"state" example:"dual_device" doc:"Session state"`
	Primary   *DeviceInfo `json:"primary,omitempty" doc:"Primary device"`
	Secondary *DeviceInfo `json:"secondary,omitempty" doc:"Secondary device (dual mode only)"`
	Label     string      `json:"label,omitempty" example:"enable-dual" doc:"Transition label while transitioning"`
	Error     string      `json:"error,omitempty" example:"dual_device_config_failed" doc:"Error kind in error state"`
	Seq       uint64      `json:"seq" example:"12" doc:"Monotonic state sequence number"`
	Timestamp string      `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// CapabilitiesEvent carries the capabilities recomputed after a reconfiguration.
type CapabilitiesEvent struct {
	HDR        bool    `json:"hdr" doc:"Active format supports HDR"`
	DualDevice bool    `json:"dual_device" doc:"Dual-device capture is active"`
	Switchable bool    `json:"switchable" doc:"Primary and secondary can be switched"`
	Mode       string  `json:"mode" example:"video" doc:"Capture mode: photo or video"`
	MinZoom    float64 `json:"min_zoom" example:"1" doc:"Minimum zoom factor of the primary device"`
	MaxZoom    float64 `json:"max_zoom" example:"10" doc:"Maximum zoom factor of the primary device"`
	Zoom       float64 `json:"zoom" example:"1" doc:"Current zoom factor"`
	Timestamp  string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CapabilitiesEvent.
func (e CapabilitiesEvent) Type() uint32 { return TypeCapabilities }

// Feedback levels.
const (
	FeedbackInfo    = "info"
	FeedbackSuccess = "success"
	FeedbackWarning = "warning"
	FeedbackError   = "error"
)

// FeedbackEvent is a user-facing notification.
type FeedbackEvent struct {
	Level     string `json:"level" example:"warning" doc:"Feedback level: info, success, warning, error"`
	Message   string `json:"message" example:"Dual camera unavailable, using single camera" doc:"Message"`
	DismissMs int64  `json:"dismiss_ms,omitempty" example:"4000" doc:"Suggested auto-dismiss delay in milliseconds"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FeedbackEvent.
func (e FeedbackEvent) Type() uint32 { return TypeFeedback }

// ActivityEvent signals that a long-running operation started or finished.
type ActivityEvent struct {
	Operation string `json:"operation" example:"enable-dual" doc:"Operation name"`
	Active    bool   `json:"active" doc:"Whether the operation is in progress"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ActivityEvent.
func (e ActivityEvent) Type() uint32 { return TypeActivity }

// InterruptionEvent is published when the platform interrupts or resumes capture.
type InterruptionEvent struct {
	Interrupted bool   `json:"interrupted" doc:"Capture is currently interrupted"`
	Reason      string `json:"reason,omitempty" example:"audio device in use" doc:"Interruption reason"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for InterruptionEvent.
func (e InterruptionEvent) Type() uint32 { return TypeInterruption }

// MergeCompletedEvent is published when a background merge produced an asset.
type MergeCompletedEvent struct {
	JobID      string `json:"job_id" doc:"Merge job identifier"`
	AssetID    string `json:"asset_id" doc:"Library asset of the merged clip"`
	DurationMs int64  `json:"duration_ms" example:"10000" doc:"Merged clip duration in milliseconds"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MergeCompletedEvent.
func (e MergeCompletedEvent) Type() uint32 { return TypeMergeCompleted }

// MergeFailedEvent is published when a background merge gave up.
type MergeFailedEvent struct {
	JobID     string `json:"job_id" doc:"Merge job identifier"`
	Error     string `json:"error" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for MergeFailedEvent.
func (e MergeFailedEvent) Type() uint32 { return TypeMergeFailed }

// Name returns the wire name of an event, shared by the SSE stream and the
// NATS subjects.
func Name(ev Event) string {
	switch ev.(type) {
	case SessionStateEvent:
		return "session-state"
	case CapabilitiesEvent:
		return "capabilities"
	case FeedbackEvent:
		return "feedback"
	case ActivityEvent:
		return "activity"
	case InterruptionEvent:
		return "interruption"
	case MergeCompletedEvent:
		return "merge-completed"
	case MergeFailedEvent:
		return "merge-failed"
	default:
		return "unknown"
	}
}
