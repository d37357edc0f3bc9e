package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/logging"
)

// Errors returned by the state machine.
var (
	ErrTransitionInFlight = errors.New("transition already in progress")
	ErrNoTransition       = errors.New("no transition in progress")
	ErrInvalidTarget      = errors.New("transition must end in single or dual device state")
)

// Machine is the single source of truth for the session state. All methods
// are safe for concurrent use; observers only read.
type Machine struct {
	mu     sync.Mutex
	cur    State
	seq    uint64
	subs   map[int]chan State
	nextID int
	bus    *events.Bus
	logger logging.Logger
	now    func() time.Time
}

// NewMachine creates a machine in the Uninitialized state. bus may be nil.
func NewMachine(bus *events.Bus, logger logging.Logger) *Machine {
	return &Machine{
		cur:    State{Kind: Uninitialized},
		subs:   make(map[int]chan State),
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Current returns the latest state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// BeginTransition enters Transitioning. It fails when another transition
// has not completed.
func (m *Machine) BeginTransition(from, to Snapshot, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.Kind == Transitioning {
		return fmt.Errorf("%w: %s", ErrTransitionInFlight, m.cur.Label)
	}
	m.setLocked(State{
		Kind:      Transitioning,
		Primary:   m.cur.Primary,
		Secondary: m.cur.Secondary,
		From:      from,
		To:        to,
		Label:     label,
	})
	return nil
}

// CompleteTransition ends the in-flight transition in to, which must be a
// single or dual device state.
func (m *Machine) CompleteTransition(to State) error {
	if to.Kind != SingleDevice && to.Kind != DualDevice {
		return fmt.Errorf("%w: got %s", ErrInvalidTarget, to.Kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.Kind != Transitioning {
		return ErrNoTransition
	}
	m.setLocked(State{Kind: to.Kind, Primary: to.Primary, Secondary: to.Secondary})
	return nil
}

// SetError moves to the Error state from any state. Device references of
// the previous state are kept for diagnostics.
func (m *Machine) SetError(kind ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(State{Kind: Error, Primary: m.cur.Primary, Secondary: m.cur.Secondary, Err: kind})
}

// Reset returns to Uninitialized, used when the session is torn down.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(State{Kind: Uninitialized})
}

// Subscribe returns a channel that always holds the most recent state not
// yet read. Slow readers skip intermediate states. The returned function
// unsubscribes and closes the channel.
func (m *Machine) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan State, 1)
	ch <- m.cur
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

func (m *Machine) setLocked(s State) {
	m.seq++
	s.Seq = m.seq
	s.At = m.now()
	prev := m.cur
	m.cur = s

	m.logger.Debug("Session state changed", "from", prev.Kind.String(), "to", s.Kind.String(),
		"label", s.Label, "seq", s.Seq)

	for _, ch := range m.subs {
		deliverLatest(ch, s)
	}
	if m.bus != nil {
		m.bus.Publish(ToEvent(s))
	}
}

// deliverLatest replaces an unread value with s. Only setLocked sends, under
// the machine lock, so the second send cannot block.
func deliverLatest(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}

// ToEvent converts a state to its bus representation.
func ToEvent(s State) events.SessionStateEvent {
	return events.SessionStateEvent{
		State:     s.Kind.String(),
		Primary:   eventRef(s.Primary),
		Secondary: eventRef(s.Secondary),
		Label:     s.Label,
		Error:     string(s.Err),
		Seq:       s.Seq,
		Timestamp: s.At.UTC().Format(time.RFC3339Nano),
	}
}

func eventRef(r *DeviceRef) *events.DeviceInfo {
	if r == nil {
		return nil
	}
	return &events.DeviceInfo{ID: r.ID, Name: r.Name, Position: r.Position.String()}
}
