package systemd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readMessage(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notify message: %v", err)
	}
	return string(buf[:n])
}

func TestNotifierMessages(t *testing.T) {
	conn := listenNotify(t)
	n := NewNotifier(testLogger())

	n.Ready()
	if got := readMessage(t, conn); got != "READY=1" {
		t.Errorf("ready message = %q", got)
	}
	n.Status("dual_device")
	if got := readMessage(t, conn); got != "STATUS=dual_device" {
		t.Errorf("status message = %q", got)
	}
	n.Stopping()
	if got := readMessage(t, conn); got != "STOPPING=1" {
		t.Errorf("stopping message = %q", got)
	}
}

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")
	n := NewNotifier(testLogger())
	n.Ready()
	if n.StartWatchdog(context.Background(), func() bool { return true }) {
		t.Error("watchdog started without WATCHDOG_USEC")
	}
	n.Wait()
}

func TestWatchdogPings(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	conn := listenNotify(t)
	t.Setenv("WATCHDOG_USEC", strconv.Itoa(int((40 * time.Millisecond).Microseconds())))
	t.Setenv("WATCHDOG_PID", "")

	ctx, cancel := context.WithCancel(context.Background())
	n := NewNotifier(testLogger())
	if !n.StartWatchdog(ctx, func() bool { return true }) {
		t.Fatal("watchdog not started")
	}
	if got := readMessage(t, conn); got != "WATCHDOG=1" {
		t.Errorf("watchdog message = %q", got)
	}
	cancel()
	n.Wait()
}
