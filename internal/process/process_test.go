package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(args ...string) *Process {
	p := New("test", args, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

// runAsync runs the process in a goroutine and returns its result channel.
func runAsync(ctx context.Context, p *Process) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	return done
}

func waitForExit(t *testing.T, done <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return nil
	}
}

func TestRunSuccess(t *testing.T) {
	if err := newTestProcess("true").Run(context.Background()); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestRunExitCode(t *testing.T) {
	err := newTestProcess("sh", "-c", "exit 42").Run(context.Background())
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() = %v, want *ExitError", err)
	}
	if exitErr.Code != 42 {
		t.Errorf("exit code = %d, want 42", exitErr.Code)
	}
}

func TestGracefulShutdown(t *testing.T) {
	p := newTestProcess("sh", "-c", "trap 'exit 0' INT TERM; while :; do sleep 0.1; done")
	p.SetTimeouts(500*time.Millisecond, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(100 * time.Millisecond)
	cancel()

	if err := waitForExit(t, done, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := newTestProcess("sh", "-c", "trap '' INT; sleep 10")
	p.SetTimeouts(50*time.Millisecond, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	cancel()
	waitForExit(t, done, time.Second)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := newTestProcess("sleep", "10").Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	if err := newTestProcess().Run(context.Background()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestRunNonExistentCommand(t *testing.T) {
	err := newTestProcess("/nonexistent/command/that/does/not/exist").Run(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("start failure should not be an ExitError: %v", err)
	}
}

func TestOutputHandler(t *testing.T) {
	handler := &testOutputHandler{}
	p := newTestProcess("sh", "-c", "echo line1; echo line2 >&2")
	p.SetOutputHandler(handler)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	lines := handler.snapshot()
	if !slices.Contains(lines, "stdout:line1") || !slices.Contains(lines, "stderr:line2") {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestStreamOutputLogLevels(t *testing.T) {
	var mu sync.Mutex
	var levels []string
	parser := func(line string) (string, string) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, line)
		return "warning", line
	}
	p := newTestProcess("sh", "-c", "echo one; echo two")
	p.SetLogParser(testLogger(), parser)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(levels) != 2 {
		t.Errorf("parser saw %d lines, want 2", len(levels))
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"ffmpeg", []string{"ffmpeg"}, false},
		{"nice -n 10 ffmpeg", []string{"nice", "-n", "10", "ffmpeg"}, false},
		{`echo hello\ world`, []string{"echo", "hello world"}, false},
		{`sh -c "a 'b' c"`, []string{"sh", "-c", "a 'b' c"}, false},
		{`echo "unclosed`, nil, true},
		{"   ", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SplitCommand(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type testOutputHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *testOutputHandler) HandleLine(source, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, source+":"+line)
}

func (h *testOutputHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.lines)
}
