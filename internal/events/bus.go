package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(FeedbackEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SessionStateEvent:
		event.Publish(b.dispatcher, e)
	case CapabilitiesEvent:
		event.Publish(b.dispatcher, e)
	case FeedbackEvent:
		event.Publish(b.dispatcher, e)
	case ActivityEvent:
		event.Publish(b.dispatcher, e)
	case InterruptionEvent:
		event.Publish(b.dispatcher, e)
	case MergeCompletedEvent:
		event.Publish(b.dispatcher, e)
	case MergeFailedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FeedbackEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CapabilitiesEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FeedbackEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ActivityEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(InterruptionEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MergeCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MergeFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
