package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDevicesCmdText(t *testing.T) {
	cmd := CreateDevicesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	text := out.String()
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		t.Fatalf("short output:\n%s", text)
	}
	if fields := strings.Fields(lines[1]); len(fields) < 2 || fields[1] != "back-triple" {
		t.Errorf("back-triple is not ranked first:\n%s", text)
	}
	want := "Dual pair: back-triple 1280x720@60 + front-wide 1280x720@30 (tier 720p)"
	if !strings.Contains(text, want) {
		t.Errorf("output missing %q:\n%s", want, text)
	}
}

func TestDevicesCmdJSONWithoutMultiCam(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "devices.toml")
	content := `
multi_cam = false

[[devices]]
id = "only"
kind = "wide"
position = "back"

[[devices.formats]]
id = "o-1080"
width = 1920
height = 1080
frame_rates = [{ min = 1, max = 30 }]
`
	if err := os.WriteFile(manifest, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := CreateDevicesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--devices-file", manifest, "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var report DevicesReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if report.MultiCam || report.Pair != nil || report.Reason == "" {
		t.Errorf("report = %+v, want no pair with a reason", report)
	}
	if len(report.Devices) != 1 || report.Devices[0].ID != "only" {
		t.Errorf("devices = %+v", report.Devices)
	}
}

func TestMergeDryRun(t *testing.T) {
	cmd := CreateMergeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"top.mov", "bottom.mov",
		"-o", "out.mp4",
		"--duration", "10s",
		"--fps", "60",
		"--width", "1281",
		"--ffmpeg", "nice -n 10 ffmpeg",
		"--dry-run",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	line := strings.TrimSpace(out.String())
	for _, want := range []string{
		"nice -n 10 ffmpeg ",
		"-i top.mov -i bottom.mov",
		"scale=1280:-2",
		"-t 10 ",
		"-r 60 ",
		"-map 0:a?",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("command missing %q: %s", want, line)
		}
	}
	if !strings.HasSuffix(line, "out.mp4") {
		t.Errorf("command does not end with the output: %s", line)
	}
}

func TestMergeFlagsRequest(t *testing.T) {
	tests := []struct {
		name    string
		flags   MergeFlags
		wantErr string
	}{
		{"valid", MergeFlags{Output: "o.mp4", Duration: time.Second, Audio: "mix"}, ""},
		{"no output", MergeFlags{Duration: time.Second}, "--output"},
		{"no duration", MergeFlags{Output: "o.mp4"}, "--duration"},
		{"bad audio", MergeFlags{Output: "o.mp4", Duration: time.Second, Audio: "stereo"}, "audio policy"},
		{"bad preset", MergeFlags{Output: "o.mp4", Duration: time.Second, Preset: "quick"}, "x264 preset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.flags.Request("a", "b")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Request: %v", err)
				}
				if req.Primary.Path != "a" || req.Secondary.Path != "b" {
					t.Errorf("request = %+v", req)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
