package nats

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/merge"
	"github.com/smazurov/dualcam/internal/orchestrator"
	"github.com/smazurov/dualcam/internal/platform/sim"
	"github.com/smazurov/dualcam/internal/recording"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(ServerOptions{Port: RandomPort, Name: "test-server", Logger: testLogger()})
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func connect(t *testing.T, s *Server) *nats.Conn {
	t.Helper()
	conn, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

type fileComposer struct{}

func (fileComposer) Compose(_ context.Context, req merge.Request) error {
	return os.WriteFile(req.Output, []byte("merged"), 0o644)
}

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	dir := t.TempDir()
	lib, err := library.Open(filepath.Join(dir, "library"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	tempDir := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		t.Fatal(err)
	}
	bus := events.New()
	runner := merge.NewRunner(fileComposer{}, lib, bus, tempDir, testLogger())
	pipeline := recording.NewPipeline(tempDir, lib, runner, testLogger())
	o := orchestrator.New(sim.New(), pipeline, lib, bus, testLogger(), orchestrator.Options{TempDir: tempDir})
	t.Cleanup(func() {
		_ = o.Stop(context.Background())
		o.Wait()
		_ = lib.Close()
	})
	return o
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(ServerOptions{Port: RandomPort, Logger: testLogger()})
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if !s.IsRunning() {
		t.Error("Server should be running after Start()")
	}
	if s.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}
	s.Stop()
	if s.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
}

func TestPublisherMirrorsBusEvents(t *testing.T) {
	s := startServer(t)
	bus := events.New()
	p := NewPublisher(s.ClientURL(), bus, testLogger())
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()
	if !p.IsConnected() {
		t.Fatal("publisher not connected")
	}

	conn := connect(t, s)
	sub, err := conn.SubscribeSync(SubjectEventsPrefix + ".>")
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Flush(); err != nil {
		t.Fatal(err)
	}

	bus.Publish(events.MergeCompletedEvent{JobID: "job-1", AssetID: "asset-1", DurationMs: 10000})

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("no event received: %v", err)
	}
	if msg.Subject != "dualcam.events.merge-completed" {
		t.Errorf("subject = %s", msg.Subject)
	}
	var got events.MergeCompletedEvent
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.JobID != "job-1" || got.DurationMs != 10000 {
		t.Errorf("event = %+v", got)
	}
}

func TestPublisherConnectFailure(t *testing.T) {
	p := NewPublisher("nats://127.0.0.1:1", events.New(), testLogger())
	if err := p.Start(); err == nil {
		p.Stop()
		t.Fatal("Start should fail without a server")
	}
	if p.IsConnected() {
		t.Error("publisher reports a connection after a failed Start")
	}
}

func request(t *testing.T, conn *nats.Conn, action string, payload any) ControlReply {
	t.Helper()
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			t.Fatal(err)
		}
	}
	msg, err := conn.Request(SubjectControl(action), data, 5*time.Second)
	if err != nil {
		t.Fatalf("request %s: %v", action, err)
	}
	reply, err := UnmarshalControlReply(msg.Data)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func TestControlDrivesOrchestrator(t *testing.T) {
	s := startServer(t)
	orch := newOrchestrator(t)
	c := NewControl(s.ClientURL(), orch, 5*time.Second, testLogger())
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()
	conn := connect(t, s)

	if reply := request(t, conn, ActionEnableDual, nil); reply.OK {
		t.Fatalf("enable-dual before start succeeded: %+v", reply)
	}

	steps := []struct {
		action  string
		payload any
	}{
		{ActionStart, nil},
		{ActionEnableDual, nil},
		{ActionSwitch, nil},
		{ActionSetZoom, ControlRequest{Factor: 2}},
		{ActionRecordStart, nil},
		{ActionRecordStop, nil},
		{ActionSetMode, ControlRequest{Mode: "photo"}},
		{ActionPhoto, nil},
		{ActionDisableDual, nil},
		{ActionStop, nil},
	}
	for _, step := range steps {
		reply := request(t, conn, step.action, step.payload)
		if !reply.OK {
			t.Fatalf("%s failed: %s", step.action, reply.Error)
		}
	}
	if orch.IsRunning() {
		t.Error("session still running after stop")
	}
}

func TestControlRejectsBadRequests(t *testing.T) {
	s := startServer(t)
	c := NewControl(s.ClientURL(), newOrchestrator(t), time.Second, testLogger())
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()
	conn := connect(t, s)

	tests := []struct {
		name    string
		action  string
		payload any
	}{
		{"unknown action", "levitate", nil},
		{"invalid mode", ActionSetMode, ControlRequest{Mode: "panorama"}},
		{"malformed payload", ActionSetZoom, "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := request(t, conn, tt.action, tt.payload)
			if reply.OK || reply.Error == "" {
				t.Errorf("reply = %+v, want an error", reply)
			}
		})
	}
}
