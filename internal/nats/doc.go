// Package nats exposes the capture pipeline over NATS: an optional embedded
// server, a publisher that mirrors bus events and a request/reply control
// responder.
//
// # Subject Hierarchy
//
//	dualcam.events.{type}      # bus events as JSON (session-state, feedback, merge-completed, ...)
//	dualcam.control.{action}   # request/reply commands (start, enable-dual, record-stop, ...)
//
// Core NATS only, no JetStream. Events are fire-and-forget; a subscriber
// that is offline misses them.
//
// # Debugging with nats CLI
//
//	nats sub "dualcam.events.>"
//	nats req dualcam.control.enable-dual ''
//	nats req dualcam.control.set-mode '{"mode":"photo"}'
//	nats req dualcam.control.set-zoom '{"factor":2.5}'
package nats
