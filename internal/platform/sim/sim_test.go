package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/dualcam/internal/platform"
)

func TestConfigureRollsBackOnError(t *testing.T) {
	p := New()
	s, err := p.NewSession(true)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = s.Configure(func(tx platform.Tx) error {
		if err := tx.AddInput("back-triple", false); err != nil {
			return err
		}
		if err := tx.AddOutput(platform.SinkPhoto, false); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Configure err = %v, want boom", err)
	}
	if len(s.Inputs()) != 0 || len(s.Outputs()) != 0 {
		t.Errorf("rolled back transaction left inputs=%v outputs=%v", s.Inputs(), s.Outputs())
	}
}

func TestAutoConnections(t *testing.T) {
	p := New()
	s, _ := p.NewSession(false)

	err := s.Configure(func(tx platform.Tx) error {
		if err := tx.AddInput("back-triple", true); err != nil {
			return err
		}
		if err := tx.AddInput(AudioDeviceID, true); err != nil {
			return err
		}
		if err := tx.AddOutput(platform.SinkPhoto, true); err != nil {
			return err
		}
		return tx.AddOutput(platform.SinkPrimaryMovie, true)
	})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}

	conns := s.Connections()
	if len(conns) != 2 {
		t.Fatalf("got %d connections, want 2", len(conns))
	}
	if conns[0].Sink != platform.SinkPhoto || len(conns[0].Ports) != 1 {
		t.Errorf("photo connection = %+v", conns[0])
	}
	if conns[1].Sink != platform.SinkPrimaryMovie || len(conns[1].Ports) != 2 {
		t.Errorf("movie connection = %+v", conns[1])
	}
}

func TestSingleCamSessionRejectsSecondVideoInput(t *testing.T) {
	p := New()
	s, _ := p.NewSession(false)

	err := s.Configure(func(tx platform.Tx) error {
		if err := tx.AddInput("back-triple", true); err != nil {
			return err
		}
		return tx.AddInput("front-wide", true)
	})
	if !errors.Is(err, platform.ErrMultiCam) {
		t.Errorf("err = %v, want ErrMultiCam", err)
	}
}

func TestAddConnectionRejectsOccupiedSink(t *testing.T) {
	p := New()
	s, _ := p.NewSession(true)

	err := s.Configure(func(tx platform.Tx) error {
		for _, id := range []string{"back-triple", "front-wide"} {
			if err := tx.AddInput(id, false); err != nil {
				return err
			}
		}
		if err := tx.AddOutput(platform.SinkPhoto, false); err != nil {
			return err
		}
		back, err := tx.Port("back-triple", platform.MediaVideo)
		if err != nil {
			return err
		}
		front, err := tx.Port("front-wide", platform.MediaVideo)
		if err != nil {
			return err
		}
		if err := tx.AddConnection(platform.SinkPhoto, back); err != nil {
			return err
		}
		return tx.AddConnection(platform.SinkPhoto, front)
	})
	if !errors.Is(err, platform.ErrSinkConnected) {
		t.Errorf("err = %v, want ErrSinkConnected", err)
	}
}

func TestPortMediaMismatch(t *testing.T) {
	p := New()
	s, _ := p.NewSession(true)

	err := s.Configure(func(tx platform.Tx) error {
		if err := tx.AddInput("back-triple", false); err != nil {
			return err
		}
		_, err := tx.Port("back-triple", platform.MediaAudio)
		return err
	})
	if !errors.Is(err, platform.ErrNoPort) {
		t.Errorf("err = %v, want ErrNoPort", err)
	}
}

func TestInjectedFailures(t *testing.T) {
	boom := errors.New("injected")
	p := New()
	p.FailAddInput("front-wide", boom)
	s, _ := p.NewSession(true)

	err := s.Configure(func(tx platform.Tx) error {
		return tx.AddInput("front-wide", false)
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want injected failure", err)
	}

	p.FailAddInput("front-wide", nil)
	err = s.Configure(func(tx platform.Tx) error {
		return tx.AddInput("front-wide", false)
	})
	if err != nil {
		t.Errorf("cleared failure still applied: %v", err)
	}
}

func TestMultiCamUnsupported(t *testing.T) {
	p := New(WithMultiCam(false))
	if _, err := p.NewSession(true); !errors.Is(err, platform.ErrMultiCam) {
		t.Errorf("err = %v, want ErrMultiCam", err)
	}
}

func TestRecordingScriptedDuration(t *testing.T) {
	p := New()
	p.SetRecordingDuration(platform.SinkPrimaryMovie, 10*time.Second)
	s := runningSingleSession(t, p)

	movie, ok := s.MovieOutput(platform.SinkPrimaryMovie)
	if !ok {
		t.Fatal("movie output missing")
	}
	location := filepath.Join(t.TempDir(), "clip.mov")
	results := make(chan platform.RecordingResult, 1)
	if err := movie.StartRecording(location, func(r platform.RecordingResult) { results <- r }); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !movie.IsRecording() {
		t.Error("IsRecording should be true")
	}
	movie.StopRecording()

	select {
	case r := <-results:
		if r.Err != nil {
			t.Fatalf("result error: %v", r.Err)
		}
		if r.Duration != 10*time.Second {
			t.Errorf("duration = %v, want 10s", r.Duration)
		}
		if r.DeviceID != "back-triple" {
			t.Errorf("device = %s", r.DeviceID)
		}
		if _, err := os.Stat(location); err != nil {
			t.Errorf("recording file missing: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("completion callback not called")
	}

	movie.StopRecording()
	select {
	case <-results:
		t.Fatal("completion delivered twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRecordingMeasuredWithClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return now }))
	s := runningSingleSession(t, p)

	movie, _ := s.MovieOutput(platform.SinkPrimaryMovie)
	results := make(chan platform.RecordingResult, 1)
	if err := movie.StartRecording(filepath.Join(t.TempDir(), "a.mov"), func(r platform.RecordingResult) { results <- r }); err != nil {
		t.Fatal(err)
	}
	now = now.Add(3 * time.Second)
	movie.StopRecording()

	if r := <-results; r.Duration != 3*time.Second {
		t.Errorf("duration = %v, want 3s", r.Duration)
	}
}

func TestRecordingRequiresRunningSession(t *testing.T) {
	p := New()
	s, _ := p.NewSession(false)
	_ = s.Configure(func(tx platform.Tx) error {
		_ = tx.AddInput("back-triple", true)
		return tx.AddOutput(platform.SinkPrimaryMovie, true)
	})
	movie, _ := s.MovieOutput(platform.SinkPrimaryMovie)
	err := movie.StartRecording(filepath.Join(t.TempDir(), "x.mov"), func(platform.RecordingResult) {})
	if !errors.Is(err, platform.ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestLocksAndCoordinatorsBalanced(t *testing.T) {
	p := New()
	ctx := context.Background()

	lock, err := p.LockForConfiguration(ctx, "back-triple")
	if err != nil {
		t.Fatal(err)
	}
	if p.LocksHeld() != 1 {
		t.Errorf("locks held = %d, want 1", p.LocksHeld())
	}
	lock.Unlock()
	lock.Unlock()
	if p.LocksHeld() != 0 {
		t.Errorf("locks held = %d after unlock, want 0", p.LocksHeld())
	}

	rc, err := p.NewRotationCoordinator("front-wide")
	if err != nil {
		t.Fatal(err)
	}
	if rc.CaptureRotation() != 270 {
		t.Errorf("front rotation = %v", rc.CaptureRotation())
	}
	rc.Close()
	if p.Coordinators() != 0 {
		t.Errorf("coordinators = %d, want 0", p.Coordinators())
	}
}

func runningSingleSession(t *testing.T, p *Platform) platform.Session {
	t.Helper()
	s, err := p.NewSession(false)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Configure(func(tx platform.Tx) error {
		if err := tx.AddInput("back-triple", true); err != nil {
			return err
		}
		if err := tx.AddInput(AudioDeviceID, true); err != nil {
			return err
		}
		if err := tx.AddOutput(platform.SinkPhoto, true); err != nil {
			return err
		}
		return tx.AddOutput(platform.SinkPrimaryMovie, true)
	})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := s.StartRunning(context.Background()); err != nil {
		t.Fatalf("StartRunning: %v", err)
	}
	t.Cleanup(s.StopRunning)
	return s
}
