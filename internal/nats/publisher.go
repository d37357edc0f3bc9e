package nats

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/logging"
)

// Publisher mirrors event bus traffic onto NATS subjects.
type Publisher struct {
	url    string
	bus    *events.Bus
	conn   *nats.Conn
	unsubs []func()
	logger logging.Logger
	mu     sync.Mutex
}

// NewPublisher creates a bus-to-NATS publisher.
func NewPublisher(url string, bus *events.Bus, logger logging.Logger) *Publisher {
	return &Publisher{url: url, bus: bus, logger: logger}
}

// Start connects to NATS and subscribes to every bus event type.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := nats.Connect(p.url,
		nats.Name("dualcam-events"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn("NATS publisher disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.logger.Info("NATS publisher reconnected")
		}),
	)
	if err != nil {
		return err
	}
	p.conn = conn

	p.unsubs = []func(){
		forward[events.SessionStateEvent](p),
		forward[events.CapabilitiesEvent](p),
		forward[events.FeedbackEvent](p),
		forward[events.ActivityEvent](p),
		forward[events.InterruptionEvent](p),
		forward[events.MergeCompletedEvent](p),
		forward[events.MergeFailedEvent](p),
	}
	p.logger.Info("NATS publisher connected", "url", p.url)
	return nil
}

func forward[T events.Event](p *Publisher) func() {
	return p.bus.Subscribe(func(e T) { p.publish(e) })
}

func (p *Publisher) publish(ev events.Event) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("Failed to marshal event", "type", events.Name(ev), "error", err)
		return
	}
	subject := SubjectEvent(events.Name(ev))
	if err := conn.Publish(subject, data); err != nil {
		p.logger.Debug("Failed to publish event", "subject", subject, "error", err)
	}
}

// Stop unsubscribes from the bus and drains the connection.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
		p.conn = nil
	}
	p.logger.Info("NATS publisher stopped")
}

// IsConnected reports whether the publisher holds a live connection.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && p.conn.IsConnected()
}
