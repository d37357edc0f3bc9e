package session

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	back  = &DeviceRef{ID: "back", Name: "Back", Position: catalog.PositionBack}
	front = &DeviceRef{ID: "front", Name: "Front", Position: catalog.PositionFront}
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil, testLogger())
	if got := m.Current().Kind; got != Uninitialized {
		t.Errorf("initial state = %s, want uninitialized", got)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	m := NewMachine(nil, testLogger())

	if err := m.BeginTransition(Snapshot{}, Snapshot{Primary: back}, "start"); err != nil {
		t.Fatalf("BeginTransition: %v", err)
	}
	cur := m.Current()
	if cur.Kind != Transitioning || cur.Label != "start" || cur.To.Primary != back {
		t.Errorf("unexpected transitioning state: %+v", cur)
	}

	if err := m.CompleteTransition(Single(back)); err != nil {
		t.Fatalf("CompleteTransition: %v", err)
	}
	cur = m.Current()
	if cur.Kind != SingleDevice || cur.Primary.ID != "back" || cur.Secondary != nil {
		t.Errorf("unexpected state after complete: %+v", cur)
	}
	if cur.Label != "" {
		t.Errorf("label should be cleared, got %q", cur.Label)
	}
}

func TestBeginTransitionRejectsConcurrent(t *testing.T) {
	m := NewMachine(nil, testLogger())
	if err := m.BeginTransition(Snapshot{}, Snapshot{Primary: back}, "start"); err != nil {
		t.Fatal(err)
	}
	err := m.BeginTransition(Snapshot{Primary: back}, Snapshot{Primary: back, Secondary: front}, "enable-dual")
	if !errors.Is(err, ErrTransitionInFlight) {
		t.Errorf("err = %v, want ErrTransitionInFlight", err)
	}
	if m.Current().Label != "start" {
		t.Error("rejected transition must not replace the in-flight one")
	}
}

func TestCompleteTransitionRules(t *testing.T) {
	tests := []struct {
		name    string
		begin   bool
		target  State
		wantErr error
	}{
		{"no transition", false, Single(back), ErrNoTransition},
		{"target error", true, State{Kind: Error}, ErrInvalidTarget},
		{"target transitioning", true, State{Kind: Transitioning}, ErrInvalidTarget},
		{"target uninitialized", true, State{Kind: Uninitialized}, ErrInvalidTarget},
		{"dual ok", true, Dual(back, front), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(nil, testLogger())
			if tt.begin {
				if err := m.BeginTransition(Snapshot{}, tt.target.Snapshot(), "x"); err != nil {
					t.Fatal(err)
				}
			}
			err := m.CompleteTransition(tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetErrorFromAnyState(t *testing.T) {
	m := NewMachine(nil, testLogger())
	m.SetError(ErrPermissionDenied)
	if cur := m.Current(); cur.Kind != Error || cur.Err != ErrPermissionDenied {
		t.Fatalf("state = %+v", cur)
	}

	if err := m.BeginTransition(Snapshot{}, Snapshot{Primary: back}, "retry"); err != nil {
		t.Fatalf("recovery from error should be allowed: %v", err)
	}
	m.SetError(ErrSetupFailed)
	if cur := m.Current(); cur.Kind != Error || cur.Err != ErrSetupFailed {
		t.Fatalf("SetError while transitioning: %+v", cur)
	}
}

func TestSeqIsMonotonic(t *testing.T) {
	m := NewMachine(nil, testLogger())
	var last uint64
	for range 3 {
		_ = m.BeginTransition(Snapshot{}, Snapshot{Primary: back}, "x")
		_ = m.CompleteTransition(Single(back))
		seq := m.Current().Seq
		if seq <= last {
			t.Fatalf("seq %d not greater than %d", seq, last)
		}
		last = seq
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	m := NewMachine(nil, testLogger())
	ch, unsub := m.Subscribe()
	defer unsub()

	if s := <-ch; s.Kind != Uninitialized {
		t.Fatalf("first delivery = %s, want current state", s.Kind)
	}

	_ = m.BeginTransition(Snapshot{}, Snapshot{Primary: back}, "start")
	_ = m.CompleteTransition(Single(back))
	_ = m.BeginTransition(Snapshot{Primary: back}, Snapshot{Primary: back, Secondary: front}, "enable-dual")
	_ = m.CompleteTransition(Dual(back, front))

	select {
	case s := <-ch:
		if s.Kind != DualDevice {
			t.Errorf("slow reader got %s, want latest dual_device", s.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	select {
	case s := <-ch:
		t.Errorf("unexpected extra state %s", s.Kind)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewMachine(nil, testLogger())
	ch, unsub := m.Subscribe()
	<-ch
	unsub()
	unsub()

	m.SetError(ErrSetupFailed)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestPublishesToBus(t *testing.T) {
	bus := events.New()
	received := make(chan events.SessionStateEvent, 4)
	unsub := bus.Subscribe(func(e events.SessionStateEvent) { received <- e })
	defer unsub()

	m := NewMachine(bus, testLogger())
	_ = m.BeginTransition(Snapshot{}, Snapshot{Primary: back}, "start")

	select {
	case e := <-received:
		if e.State != "transitioning" || e.Label != "start" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event")
	}

	_ = m.CompleteTransition(Single(back))
	select {
	case e := <-received:
		if e.State != "single_device" || e.Primary == nil || e.Primary.Position != "back" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no bus event")
	}
}
