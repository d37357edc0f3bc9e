package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/session"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session state, capabilities, feedback and merge results",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		events.Name(events.SessionStateEvent{}):   events.SessionStateEvent{},
		events.Name(events.CapabilitiesEvent{}):   events.CapabilitiesEvent{},
		events.Name(events.FeedbackEvent{}):       events.FeedbackEvent{},
		events.Name(events.ActivityEvent{}):       events.ActivityEvent{},
		events.Name(events.InterruptionEvent{}):   events.InterruptionEvent{},
		events.Name(events.MergeCompletedEvent{}): events.MergeCompletedEvent{},
		events.Name(events.MergeFailedEvent{}):    events.MergeFailedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStateEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CapabilitiesEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FeedbackEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ActivityEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.InterruptionEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MergeCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MergeFailedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// New clients start from the current state.
		if err := send.Data(session.ToEvent(s.orch.State())); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
