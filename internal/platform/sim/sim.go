// Package sim is an in-memory capture platform. Devices, failures and
// recording durations are scripted by the caller, which makes orchestrator
// behavior reproducible without hardware.
package sim

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/dualcam/internal/catalog"
	"github.com/smazurov/dualcam/internal/platform"
)

// AudioDeviceID is the ID of the simulated microphone.
const AudioDeviceID = "builtin-mic"

// Option configures a simulated platform.
type Option func(*Platform)

// WithDevices replaces the default device set.
func WithDevices(devices ...catalog.Device) Option {
	return func(p *Platform) {
		p.devices = slices.Clone(devices)
	}
}

// WithMultiCam sets whether multi-cam sessions are supported.
func WithMultiCam(supported bool) Option {
	return func(p *Platform) {
		p.multiCam = supported
	}
}

// WithClock replaces the clock used to measure recordings.
func WithClock(now func() time.Time) Option {
	return func(p *Platform) {
		p.now = now
	}
}

// Platform implements platform.Platform in memory.
type Platform struct {
	mu       sync.Mutex
	devices  []catalog.Device
	audio    catalog.Device
	multiCam bool
	now      func() time.Time
	events   chan platform.Event

	denied     map[platform.MediaType]bool
	failInput  map[string]error
	failPort   map[string]error
	failLock   map[string]error
	failConn   map[platform.Sink]error
	failOutput map[platform.Sink]error
	failRecord map[platform.Sink]error
	failStart  error
	durations  map[platform.Sink]time.Duration

	active       map[string]catalog.Format
	zoom         map[string]float64
	locksHeld    int
	sessions     int
	coordinators int
}

// New creates a simulated platform with the default device set unless
// overridden by options.
func New(opts ...Option) *Platform {
	p := &Platform{
		devices:    DefaultDevices(),
		audio:      catalog.Device{ID: AudioDeviceID, Name: "Built-in Microphone", Kind: catalog.KindMicrophone},
		multiCam:   true,
		now:        time.Now,
		events:     make(chan platform.Event, 32),
		denied:     make(map[platform.MediaType]bool),
		failInput:  make(map[string]error),
		failPort:   make(map[string]error),
		failLock:   make(map[string]error),
		failConn:   make(map[platform.Sink]error),
		failOutput: make(map[platform.Sink]error),
		failRecord: make(map[platform.Sink]error),
		durations:  make(map[platform.Sink]time.Duration),
		active:     make(map[string]catalog.Format),
		zoom:       make(map[string]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultDevices returns a phone-like set: a back triple camera, a back
// wide camera and a front wide camera.
func DefaultDevices() []catalog.Device {
	fps := func(maxFPS float64) []catalog.FrameRateRange {
		return []catalog.FrameRateRange{{Min: 1, Max: maxFPS}}
	}
	return []catalog.Device{
		{
			ID: "back-triple", Name: "Back Triple Camera",
			Position: catalog.PositionBack, Kind: catalog.KindTriple,
			MinZoom: 1, MaxZoom: 15,
			Formats: []catalog.Format{
				{ID: "bt-720", Width: 1280, Height: 720, FrameRates: fps(60), MultiStream: true},
				{ID: "bt-1080", Width: 1920, Height: 1080, FrameRates: fps(60), MultiStream: true, HDR: true},
				{ID: "bt-2160", Width: 3840, Height: 2160, FrameRates: fps(30), HDR: true},
			},
		},
		{
			ID: "back-wide", Name: "Back Wide Camera",
			Position: catalog.PositionBack, Kind: catalog.KindWide,
			MinZoom: 1, MaxZoom: 5,
			Formats: []catalog.Format{
				{ID: "bw-720", Width: 1280, Height: 720, FrameRates: fps(30), MultiStream: true},
				{ID: "bw-1080", Width: 1920, Height: 1080, FrameRates: fps(30), MultiStream: true},
			},
		},
		{
			ID: "front-wide", Name: "Front Camera",
			Position: catalog.PositionFront, Kind: catalog.KindWide,
			MinZoom: 1, MaxZoom: 3,
			Formats: []catalog.Format{
				{ID: "fw-720", Width: 1280, Height: 720, FrameRates: fps(30), MultiStream: true},
				{ID: "fw-1080", Width: 1920, Height: 1080, FrameRates: fps(30)},
			},
		},
	}
}

// DenyAccess makes RequestAccess report denied for media.
func (p *Platform) DenyAccess(media platform.MediaType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied[media] = true
}

// SetMultiCamSupported toggles multi-cam support.
func (p *Platform) SetMultiCamSupported(supported bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.multiCam = supported
}

// FailAddInput makes attaching deviceID fail with err. A nil err clears it.
func (p *Platform) FailAddInput(deviceID string, err error) {
	setFailure(&p.mu, p.failInput, deviceID, err)
}

// FailPort makes port lookups on deviceID fail with err.
func (p *Platform) FailPort(deviceID string, err error) {
	setFailure(&p.mu, p.failPort, deviceID, err)
}

// FailLock makes configuration locks on deviceID fail with err.
func (p *Platform) FailLock(deviceID string, err error) {
	setFailure(&p.mu, p.failLock, deviceID, err)
}

// FailConnection makes connecting sink fail with err.
func (p *Platform) FailConnection(sink platform.Sink, err error) {
	setFailure(&p.mu, p.failConn, sink, err)
}

// FailAddOutput makes attaching sink fail with err.
func (p *Platform) FailAddOutput(sink platform.Sink, err error) {
	setFailure(&p.mu, p.failOutput, sink, err)
}

// FailRecording makes StartRecording on sink fail with err.
func (p *Platform) FailRecording(sink platform.Sink, err error) {
	setFailure(&p.mu, p.failRecord, sink, err)
}

// FailStartRunning makes StartRunning fail with err.
func (p *Platform) FailStartRunning(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failStart = err
}

// SetRecordingDuration fixes the duration reported for recordings on sink
// instead of measuring it with the clock.
func (p *Platform) SetRecordingDuration(sink platform.Sink, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.durations[sink] = d
}

// Emit queues an asynchronous platform event. It drops the event when
// nobody drains the queue.
func (p *Platform) Emit(ev platform.Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// LocksHeld returns the number of configuration locks not yet released.
func (p *Platform) LocksHeld() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locksHeld
}

// Sessions returns how many sessions were created.
func (p *Platform) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

// Coordinators returns how many rotation coordinators are open.
func (p *Platform) Coordinators() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coordinators
}

// Zoom returns the zoom factor last applied to deviceID.
func (p *Platform) Zoom(deviceID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zoom[deviceID]
}

// VideoDevices implements catalog.DeviceProvider.
func (p *Platform) VideoDevices(ctx context.Context) ([]catalog.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]catalog.Device, len(p.devices))
	for i, d := range p.devices {
		d.Formats = slices.Clone(d.Formats)
		d.Active = p.active[d.ID]
		out[i] = d
	}
	return out, nil
}

// AudioDevice implements catalog.DeviceProvider.
func (p *Platform) AudioDevice(context.Context) (catalog.Device, error) {
	return p.audio, nil
}

// LockForConfiguration implements catalog.DeviceProvider.
func (p *Platform) LockForConfiguration(ctx context.Context, deviceID string) (catalog.DeviceLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failLock[deviceID]; err != nil {
		return nil, err
	}
	if _, ok := p.deviceLocked(deviceID); !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrUnknownDevice, deviceID)
	}
	p.locksHeld++
	return &deviceLock{p: p, deviceID: deviceID}, nil
}

// RequestAccess implements platform.Platform.
func (p *Platform) RequestAccess(ctx context.Context, media platform.MediaType) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.denied[media], nil
}

// MultiCamSupported implements platform.Platform.
func (p *Platform) MultiCamSupported() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.multiCam
}

// NewSession implements platform.Platform.
func (p *Platform) NewSession(multiCam bool) (platform.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if multiCam && !p.multiCam {
		return nil, platform.ErrMultiCam
	}
	p.sessions++
	return newSession(p, multiCam), nil
}

// NewRotationCoordinator implements platform.Platform.
func (p *Platform) NewRotationCoordinator(deviceID string) (platform.RotationCoordinator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.deviceLocked(deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrUnknownDevice, deviceID)
	}
	angle := 90.0
	if d.Position == catalog.PositionFront {
		angle = 270
	}
	p.coordinators++
	return &rotation{p: p, angle: angle}, nil
}

// Events implements platform.Platform.
func (p *Platform) Events() <-chan platform.Event {
	return p.events
}

func (p *Platform) deviceLocked(id string) (catalog.Device, bool) {
	if id == p.audio.ID {
		return p.audio, true
	}
	i := slices.IndexFunc(p.devices, func(d catalog.Device) bool { return d.ID == id })
	if i < 0 {
		return catalog.Device{}, false
	}
	d := p.devices[i]
	d.Active = p.active[id]
	return d, true
}

func (p *Platform) frameRate(deviceID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.active[deviceID]; ok && f.MaxFrameRate() > 0 {
		return min(30, f.MaxFrameRate())
	}
	return 30
}

func setFailure[K comparable](mu *sync.Mutex, m map[K]error, key K, err error) {
	mu.Lock()
	defer mu.Unlock()
	if err == nil {
		delete(m, key)
		return
	}
	m[key] = err
}

type deviceLock struct {
	p        *Platform
	deviceID string
	once     sync.Once
}

func (l *deviceLock) SetActiveFormat(f catalog.Format) error {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()
	l.p.active[l.deviceID] = f
	return nil
}

func (l *deviceLock) SetFrameRate(catalog.FrameRateRange) error {
	return nil
}

func (l *deviceLock) SetZoom(factor float64) error {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()
	l.p.zoom[l.deviceID] = factor
	return nil
}

func (l *deviceLock) Unlock() {
	l.once.Do(func() {
		l.p.mu.Lock()
		defer l.p.mu.Unlock()
		l.p.locksHeld--
	})
}

type rotation struct {
	p     *Platform
	angle float64
	once  sync.Once
}

func (r *rotation) CaptureRotation() float64 {
	return r.angle
}

func (r *rotation) Close() {
	r.once.Do(func() {
		r.p.mu.Lock()
		defer r.p.mu.Unlock()
		r.p.coordinators--
	})
}
