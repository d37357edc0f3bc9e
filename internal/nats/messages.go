package nats

import (
	"encoding/json"
	"strings"
)

// Subject prefixes.
const (
	SubjectEventsPrefix  = "dualcam.events"
	SubjectControlPrefix = "dualcam.control"
)

// Control actions, the last token of a control subject.
const (
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionEnableDual  = "enable-dual"
	ActionDisableDual = "disable-dual"
	ActionSwitch      = "switch"
	ActionSetMode     = "set-mode"
	ActionSetZoom     = "set-zoom"
	ActionRecordStart = "record-start"
	ActionRecordStop  = "record-stop"
	ActionPhoto       = "photo"
)

// SubjectEvent returns the subject a bus event of the given type is published on.
func SubjectEvent(eventType string) string {
	return SubjectEventsPrefix + "." + eventType
}

// SubjectControl returns the request subject of a control action.
func SubjectControl(action string) string {
	return SubjectControlPrefix + "." + action
}

// actionOf extracts the action from a control subject.
func actionOf(subject string) string {
	return strings.TrimPrefix(subject, SubjectControlPrefix+".")
}

// ControlRequest is the optional payload of a control request.
type ControlRequest struct {
	Mode   string  `json:"mode,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

// ControlReply answers every control request.
type ControlReply struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Result any    `json:"result,omitempty"`
}

// UnmarshalControlRequest parses a request payload. An empty payload is a
// zero request.
func UnmarshalControlRequest(data []byte) (ControlRequest, error) {
	var req ControlRequest
	if len(data) == 0 {
		return req, nil
	}
	err := json.Unmarshal(data, &req)
	return req, err
}

// UnmarshalControlReply parses a reply payload.
func UnmarshalControlReply(data []byte) (ControlReply, error) {
	var reply ControlReply
	err := json.Unmarshal(data, &reply)
	return reply, err
}
