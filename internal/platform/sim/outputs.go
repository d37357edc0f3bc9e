package sim

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/smazurov/dualcam/internal/platform"
)

// movieOutput writes a small placeholder file per recording. The reported
// duration comes from the platform clock or a scripted override.
type movieOutput struct {
	s    *session
	sink platform.Sink

	mu        sync.Mutex
	recording bool
	location  string
	deviceID  string
	frameRate float64
	started   time.Time
	done      func(platform.RecordingResult)
}

func (m *movieOutput) StartRecording(location string, done func(platform.RecordingResult)) error {
	p := m.s.p
	p.mu.Lock()
	injected := p.failRecord[m.sink]
	p.mu.Unlock()
	if injected != nil {
		return injected
	}

	conn, err := m.s.connection(m.sink)
	if err != nil {
		return err
	}
	var deviceID string
	for _, port := range conn.Ports {
		if port.Media == platform.MediaVideo {
			deviceID = port.DeviceID
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording {
		return platform.ErrAlreadyRecording
	}
	m.recording = true
	m.location = location
	m.deviceID = deviceID
	m.frameRate = p.frameRate(deviceID)
	m.started = p.now()
	m.done = done
	return nil
}

func (m *movieOutput) StopRecording() {
	m.mu.Lock()
	if !m.recording {
		m.mu.Unlock()
		return
	}
	p := m.s.p
	p.mu.Lock()
	duration, scripted := p.durations[m.sink]
	now := p.now
	p.mu.Unlock()
	if !scripted {
		duration = now().Sub(m.started)
	}

	result := platform.RecordingResult{
		Location:  m.location,
		Duration:  duration,
		FrameRate: m.frameRate,
		DeviceID:  m.deviceID,
	}
	payload := fmt.Sprintf("sim movie sink=%s device=%s duration=%s\n", m.sink, m.deviceID, duration)
	if err := os.WriteFile(m.location, []byte(payload), 0o644); err != nil {
		result.Err = fmt.Errorf("finalize %s: %w", m.location, err)
	}
	done := m.done
	m.recording = false
	m.done = nil
	m.mu.Unlock()

	if done != nil {
		go done(result)
	}
}

func (m *movieOutput) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

type photoOutput struct {
	s *session
}

func (o *photoOutput) CapturePhoto(ctx context.Context, location string, rotation float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := o.s.connection(platform.SinkPhoto)
	if err != nil {
		return err
	}
	payload := fmt.Sprintf("sim photo device=%s rotation=%g\n", conn.Ports[0].DeviceID, rotation)
	if err := os.WriteFile(location, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	return nil
}
