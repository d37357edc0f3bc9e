// Package models defines the request and response bodies of the control API.
package models

import (
	"time"
)

// HealthData reports service liveness.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// DeviceRef names a capture device.
type DeviceRef struct {
	ID       string `json:"id" example:"back-triple" doc:"Device identifier"`
	Name     string `json:"name" example:"Back Triple Camera" doc:"Human readable name"`
	Position string `json:"position" example:"back" doc:"Device position"`
}

// Capabilities mirrors the capabilities the orchestrator advertises.
type Capabilities struct {
	HDR        bool    `json:"hdr" doc:"Active format supports HDR"`
	DualDevice bool    `json:"dual_device" doc:"Dual-device capture is active"`
	Switchable bool    `json:"switchable" doc:"Device roles can be switched"`
	Mode       string  `json:"mode" example:"video" doc:"Capture mode"`
	MinZoom    float64 `json:"min_zoom" example:"1" doc:"Minimum zoom factor"`
	MaxZoom    float64 `json:"max_zoom" example:"15" doc:"Maximum zoom factor"`
	Zoom       float64 `json:"zoom" example:"1" doc:"Current zoom factor"`
}

// SessionData is a snapshot of the capture session.
type SessionData struct {
	State        string       `json:"state" example:"dual_device" doc:"Session state"`
	Status       string       `json:"status" example:"running" doc:"Pipeline status: unknown, running, failed, unauthorized"`
	Primary      *DeviceRef   `json:"primary,omitempty" doc:"Primary device"`
	Secondary    *DeviceRef   `json:"secondary,omitempty" doc:"Secondary device"`
	Label        string       `json:"label,omitempty" example:"enable-dual" doc:"Transition in progress"`
	Error        string       `json:"error,omitempty" example:"permission_denied" doc:"Error kind in error state"`
	Running      bool         `json:"running" doc:"Capture session is running"`
	Interrupted  bool         `json:"interrupted" doc:"Capture is interrupted by the platform"`
	Recording    bool         `json:"recording" doc:"A recording is in progress"`
	Capabilities Capabilities `json:"capabilities" doc:"Advertised capabilities"`
	Connections  []Connection `json:"connections" doc:"Committed session connections"`
}

// Connection is one committed route from input ports to a sink.
type Connection struct {
	Sink  string   `json:"sink" example:"primary-movie" doc:"Output sink"`
	Ports []string `json:"ports" example:"[\"back-triple/video\",\"builtin-mic/audio\"]" doc:"Input ports as device/media"`
	Auto  bool     `json:"auto" doc:"Connection was formed automatically"`
}

type SessionResponse struct {
	Body SessionData
}

type DualData struct {
	Enabled bool        `json:"enabled" doc:"Dual-device capture is active after the call"`
	Session SessionData `json:"session" doc:"Session after the call"`
}

type DualResponse struct {
	Body DualData
}

type ModeInput struct {
	Body struct {
		Mode string `json:"mode" enum:"photo,video" example:"photo" doc:"Capture mode"`
	}
}

type ZoomInput struct {
	Body struct {
		Factor float64 `json:"factor" minimum:"0" example:"2" doc:"Requested zoom factor, clamped to device bounds"`
	}
}

type ZoomResponse struct {
	Body struct {
		Zoom float64 `json:"zoom" example:"2" doc:"Applied zoom factor"`
	}
}

// Asset is a library entry.
type Asset struct {
	ID         string    `json:"id" doc:"Asset identifier"`
	Kind       string    `json:"kind" example:"clip" doc:"Asset kind: photo, clip, merged"`
	Path       string    `json:"path" doc:"Path relative to the library root"`
	SizeBytes  int64     `json:"size_bytes" doc:"File size"`
	DurationMs int64     `json:"duration_ms,omitempty" doc:"Media duration in milliseconds"`
	DeviceID   string    `json:"device_id,omitempty" doc:"Device that captured the asset"`
	CreatedAt  time.Time `json:"created_at" doc:"When the asset was added"`
}

type AssetResponse struct {
	Body Asset
}

type LibraryInput struct {
	Kind string `query:"kind" enum:"photo,clip,merged," doc:"Filter by asset kind"`
}

type LibraryResponse struct {
	Body struct {
		Assets []Asset `json:"assets" doc:"Assets, newest first"`
		Count  int     `json:"count" doc:"Number of assets"`
	}
}

type AssetIDInput struct {
	ID string `path:"id" doc:"Asset identifier"`
}

type RecordingStatusResponse struct {
	Body struct {
		Recording bool `json:"recording" doc:"A recording is in progress"`
	}
}

// SavedRecording describes the assets stored for a stopped recording.
type SavedRecording struct {
	Primary    Asset  `json:"primary" doc:"Primary clip"`
	Secondary  *Asset `json:"secondary,omitempty" doc:"Secondary clip of a dual recording"`
	MergeJobID string `json:"merge_job_id,omitempty" doc:"Background merge job, completion is announced on the event stream"`
}

type SavedRecordingResponse struct {
	Body SavedRecording
}

// Format describes one capture format.
type Format struct {
	ID          string  `json:"id" example:"bt-1080" doc:"Format identifier"`
	Width       int     `json:"width" example:"1920" doc:"Width in pixels"`
	Height      int     `json:"height" example:"1080" doc:"Height in pixels"`
	MaxFPS      float64 `json:"max_fps" example:"60" doc:"Highest supported frame rate"`
	MultiStream bool    `json:"multi_stream" doc:"Usable while another device captures"`
	HDR         bool    `json:"hdr" doc:"Supports HDR"`
}

// Device describes a capture device and its formats.
type Device struct {
	DeviceRef
	Kind    string   `json:"kind" example:"triple" doc:"Lens arrangement"`
	MinZoom float64  `json:"min_zoom" doc:"Minimum zoom factor"`
	MaxZoom float64  `json:"max_zoom" doc:"Maximum zoom factor"`
	Active  string   `json:"active,omitempty" example:"1920x1080@60" doc:"Active format"`
	Formats []Format `json:"formats" doc:"Enumerated formats"`
}

type DevicesResponse struct {
	Body struct {
		Devices []Device `json:"devices" doc:"Video devices ranked for the primary role"`
		Pair    *Pair    `json:"pair,omitempty" doc:"Device pair dual capture would use"`
	}
}

// Pair is a dual-device candidate with its negotiated formats.
type Pair struct {
	Primary         string `json:"primary" example:"back-triple" doc:"Primary device"`
	Secondary       string `json:"secondary" example:"front-wide" doc:"Secondary device"`
	PrimaryFormat   string `json:"primary_format" example:"1280x720@60" doc:"Primary format"`
	SecondaryFormat string `json:"secondary_format" example:"1280x720@30" doc:"Secondary format"`
	Tier            string `json:"tier" example:"720p" doc:"Resolution tier, empty for independent selection"`
}
