package sim

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/smazurov/dualcam/internal/platform"
)

type input struct {
	id    string
	audio bool
	auto  bool
}

type output struct {
	sink platform.Sink
	auto bool
}

type config struct {
	inputs  []input
	outputs []output
	conns   map[platform.Sink]platform.Connection
}

func (c config) clone() config {
	return config{
		inputs:  slices.Clone(c.inputs),
		outputs: slices.Clone(c.outputs),
		conns:   maps.Clone(c.conns),
	}
}

func (c config) input(id string) (input, bool) {
	i := slices.IndexFunc(c.inputs, func(in input) bool { return in.id == id })
	if i < 0 {
		return input{}, false
	}
	return c.inputs[i], true
}

func (c config) hasOutput(sink platform.Sink) bool {
	return slices.ContainsFunc(c.outputs, func(o output) bool { return o.sink == sink })
}

func (c config) connections() []platform.Connection {
	out := make([]platform.Connection, 0, len(c.conns))
	for _, conn := range c.conns {
		conn.Ports = slices.Clone(conn.Ports)
		out = append(out, conn)
	}
	slices.SortFunc(out, func(a, b platform.Connection) int { return int(a.Sink) - int(b.Sink) })
	return out
}

// resolveAuto rebuilds implicit connections: every auto output without an
// explicit connection is fed by the first auto video input, plus the auto
// audio input for movie sinks.
func (c *config) resolveAuto() {
	for sink, conn := range c.conns {
		if conn.Auto {
			delete(c.conns, sink)
		}
	}
	var video, audio *input
	for i := range c.inputs {
		in := &c.inputs[i]
		if !in.auto {
			continue
		}
		if in.audio && audio == nil {
			audio = in
		}
		if !in.audio && video == nil {
			video = in
		}
	}
	if video == nil {
		return
	}
	for _, o := range c.outputs {
		if !o.auto {
			continue
		}
		if _, ok := c.conns[o.sink]; ok {
			continue
		}
		ports := []platform.Port{{DeviceID: video.id, Media: platform.MediaVideo}}
		if o.sink != platform.SinkPhoto && audio != nil {
			ports = append(ports, platform.Port{DeviceID: audio.id, Media: platform.MediaAudio})
		}
		c.conns[o.sink] = platform.Connection{Sink: o.sink, Ports: ports, Auto: true}
	}
}

type session struct {
	p        *Platform
	multiCam bool

	mu      sync.Mutex
	cfg     config
	running bool
	movies  map[platform.Sink]*movieOutput
	photo   *photoOutput
}

func newSession(p *Platform, multiCam bool) *session {
	return &session{
		p:        p,
		multiCam: multiCam,
		cfg:      config{conns: make(map[platform.Sink]platform.Connection)},
		movies:   make(map[platform.Sink]*movieOutput),
	}
}

func (s *session) Configure(fn func(platform.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, cfg: s.cfg.clone()}
	if err := fn(t); err != nil {
		return err
	}
	t.cfg.resolveAuto()
	s.commit(t.cfg)
	return nil
}

func (s *session) commit(next config) {
	var finished []*movieOutput
	for sink, m := range s.movies {
		if !next.hasOutput(sink) {
			finished = append(finished, m)
			delete(s.movies, sink)
		}
	}
	if s.photo != nil && !next.hasOutput(platform.SinkPhoto) {
		s.photo = nil
	}
	for _, o := range next.outputs {
		if o.sink == platform.SinkPhoto {
			if s.photo == nil {
				s.photo = &photoOutput{s: s}
			}
			continue
		}
		if _, ok := s.movies[o.sink]; !ok {
			s.movies[o.sink] = &movieOutput{s: s, sink: o.sink}
		}
	}
	s.cfg = next

	for _, m := range finished {
		go m.StopRecording()
	}
}

func (s *session) StartRunning(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.p.mu.Lock()
	failStart := s.p.failStart
	s.p.mu.Unlock()
	if failStart != nil {
		return failStart
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cfg.inputs) == 0 {
		return fmt.Errorf("start session: %w", platform.ErrNoInput)
	}
	s.running = true
	return nil
}

func (s *session) StopRunning() {
	s.mu.Lock()
	s.running = false
	movies := slices.Collect(maps.Values(s.movies))
	s.mu.Unlock()

	for _, m := range movies {
		m.StopRecording()
	}
}

func (s *session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *session) MultiCam() bool {
	return s.multiCam
}

func (s *session) Inputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return inputIDs(s.cfg)
}

func (s *session) Outputs() []platform.Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return outputSinks(s.cfg)
}

func (s *session) Connections() []platform.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.connections()
}

func (s *session) MovieOutput(sink platform.Sink) (platform.MovieOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[sink]
	if !ok {
		return nil, false
	}
	return m, true
}

func (s *session) PhotoOutput() (platform.PhotoOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.photo == nil {
		return nil, false
	}
	return s.photo, true
}

// connection returns the committed connection feeding sink while running.
func (s *session) connection(sink platform.Sink) (platform.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return platform.Connection{}, platform.ErrNotRunning
	}
	conn, ok := s.cfg.conns[sink]
	if !ok {
		return platform.Connection{}, fmt.Errorf("%s: %w", sink, platform.ErrNotConnected)
	}
	return conn, nil
}

func inputIDs(c config) []string {
	out := make([]string, len(c.inputs))
	for i, in := range c.inputs {
		out[i] = in.id
	}
	return out
}

func outputSinks(c config) []platform.Sink {
	out := make([]platform.Sink, len(c.outputs))
	for i, o := range c.outputs {
		out[i] = o.sink
	}
	return out
}

// tx mutates a private copy of the session configuration.
type tx struct {
	s   *session
	cfg config
}

func (t *tx) AddInput(deviceID string, autoConnect bool) error {
	p := t.s.p
	p.mu.Lock()
	injected := p.failInput[deviceID]
	isAudio := deviceID == p.audio.ID
	_, known := p.deviceLocked(deviceID)
	p.mu.Unlock()

	if injected != nil {
		return injected
	}
	if !known {
		return fmt.Errorf("%w: %s", platform.ErrUnknownDevice, deviceID)
	}
	if _, ok := t.cfg.input(deviceID); ok {
		return fmt.Errorf("%w: %s", platform.ErrInputExists, deviceID)
	}
	if !isAudio && !t.s.multiCam {
		for _, in := range t.cfg.inputs {
			if !in.audio {
				return platform.ErrMultiCam
			}
		}
	}
	t.cfg.inputs = append(t.cfg.inputs, input{id: deviceID, audio: isAudio, auto: autoConnect})
	return nil
}

func (t *tx) RemoveInput(deviceID string) {
	t.cfg.inputs = slices.DeleteFunc(t.cfg.inputs, func(in input) bool { return in.id == deviceID })
	for sink, conn := range t.cfg.conns {
		if conn.Uses(deviceID) {
			delete(t.cfg.conns, sink)
		}
	}
}

func (t *tx) AddOutput(sink platform.Sink, autoConnect bool) error {
	p := t.s.p
	p.mu.Lock()
	injected := p.failOutput[sink]
	p.mu.Unlock()

	if injected != nil {
		return injected
	}
	if t.cfg.hasOutput(sink) {
		return fmt.Errorf("%w: %s", platform.ErrOutputExists, sink)
	}
	t.cfg.outputs = append(t.cfg.outputs, output{sink: sink, auto: autoConnect})
	return nil
}

func (t *tx) RemoveOutput(sink platform.Sink) {
	t.cfg.outputs = slices.DeleteFunc(t.cfg.outputs, func(o output) bool { return o.sink == sink })
	delete(t.cfg.conns, sink)
}

func (t *tx) Port(deviceID string, media platform.MediaType) (platform.Port, error) {
	p := t.s.p
	p.mu.Lock()
	injected := p.failPort[deviceID]
	p.mu.Unlock()

	if injected != nil {
		return platform.Port{}, injected
	}
	in, ok := t.cfg.input(deviceID)
	if !ok {
		return platform.Port{}, fmt.Errorf("%w: %s", platform.ErrNoInput, deviceID)
	}
	if in.audio != (media == platform.MediaAudio) {
		return platform.Port{}, fmt.Errorf("%w: %s %s", platform.ErrNoPort, deviceID, media)
	}
	return platform.Port{DeviceID: deviceID, Media: media}, nil
}

func (t *tx) AddConnection(sink platform.Sink, ports ...platform.Port) error {
	p := t.s.p
	p.mu.Lock()
	injected := p.failConn[sink]
	p.mu.Unlock()

	if injected != nil {
		return injected
	}
	if !t.cfg.hasOutput(sink) {
		return fmt.Errorf("%w: %s", platform.ErrNoOutput, sink)
	}
	if _, ok := t.cfg.conns[sink]; ok {
		return fmt.Errorf("%w: %s", platform.ErrSinkConnected, sink)
	}
	for _, port := range ports {
		if _, ok := t.cfg.input(port.DeviceID); !ok {
			return fmt.Errorf("%w: %s", platform.ErrNoInput, port.DeviceID)
		}
	}
	t.cfg.conns[sink] = platform.Connection{Sink: sink, Ports: slices.Clone(ports)}
	return nil
}

func (t *tx) RemoveConnection(sink platform.Sink) {
	delete(t.cfg.conns, sink)
}

func (t *tx) Inputs() []string {
	return inputIDs(t.cfg)
}

func (t *tx) Outputs() []platform.Sink {
	return outputSinks(t.cfg)
}

func (t *tx) Connections() []platform.Connection {
	return t.cfg.connections()
}
