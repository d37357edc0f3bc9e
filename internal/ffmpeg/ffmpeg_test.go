package ffmpeg

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Press [q] to stop", "info", "Press [q] to stop"},
		{"[error] Invalid data found", "error", "Invalid data found"},
		{"[h264 @ 0x5581] [warning] non-existing PPS", "warning", "[h264 @ 0x5581] non-existing PPS"},
		{"[Parsed_vstack_0 @ 0x1] plain", "info", "[Parsed_vstack_0 @ 0x1] plain"},
		{"frame=  100 fps=30", "info", "frame=  100 fps=30"},
		{"[]", "info", "[]"},
		{"", "info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel || msg != tt.wantMsg {
				t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)",
					tt.line, level, msg, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}

func TestParseAudioPolicy(t *testing.T) {
	for in, want := range map[string]AudioPolicy{"": AudioPrimary, "primary": AudioPrimary, "mix": AudioMix, "none": AudioNone} {
		got, err := ParseAudioPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseAudioPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAudioPolicy("stereo"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func baseParams() *MergeParams {
	return &MergeParams{
		Top:       "/tmp/a.mov",
		Bottom:    "/tmp/b.mov",
		Output:    "/tmp/out.mp4",
		Width:     1280,
		Duration:  7500 * time.Millisecond,
		FrameRate: 30,
	}
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestBuildMergeArgs(t *testing.T) {
	args, err := BuildMergeArgs(baseParams())
	if err != nil {
		t.Fatalf("BuildMergeArgs: %v", err)
	}

	if args[0] != "ffmpeg" {
		t.Errorf("binary = %q", args[0])
	}
	if got := argAfter(args, "-t"); got != "7.5" {
		t.Errorf("-t = %q, want 7.5", got)
	}
	if got := argAfter(args, "-r"); got != "30" {
		t.Errorf("-r = %q, want 30", got)
	}
	if got := argAfter(args, "-preset"); got != DefaultPreset {
		t.Errorf("-preset = %q, want %s", got, DefaultPreset)
	}
	if got := argAfter(args, "-filter_complex"); !strings.Contains(got, "vstack=inputs=2") || !strings.Contains(got, "scale=1280:-2") {
		t.Errorf("filter = %q", got)
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Errorf("output must be last, got %q", args[len(args)-1])
	}
	if slices.Index(args, "/tmp/a.mov") > slices.Index(args, "/tmp/b.mov") {
		t.Error("primary clip must be the first input")
	}
}

func TestBuildMergeArgsAudioPolicies(t *testing.T) {
	tests := []struct {
		policy  AudioPolicy
		wantMap string
		wantAn  bool
	}{
		{AudioPrimary, "0:a?", false},
		{AudioMix, "[a]", false},
		{AudioNone, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			p := baseParams()
			p.Audio = tt.policy
			args, err := BuildMergeArgs(p)
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantMap != "" && !slices.Contains(args, tt.wantMap) {
				t.Errorf("missing audio map %q in %v", tt.wantMap, args)
			}
			if got := slices.Contains(args, "-an"); got != tt.wantAn {
				t.Errorf("-an present = %v, want %v", got, tt.wantAn)
			}
		})
	}
}

func TestBuildMergeArgsBinaryPrefix(t *testing.T) {
	p := baseParams()
	p.Binary = []string{"nice", "-n", "10", "/opt/ffmpeg"}
	p.Preset = "fast"
	args, err := BuildMergeArgs(p)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(args[:4], p.Binary) {
		t.Errorf("prefix = %v", args[:4])
	}
	if argAfter(args, "-preset") != "fast" {
		t.Error("preset override ignored")
	}
}

func TestBuildMergeArgsValidation(t *testing.T) {
	tests := map[string]func(*MergeParams){
		"missing input":  func(p *MergeParams) { p.Bottom = "" },
		"missing output": func(p *MergeParams) { p.Output = "" },
		"zero duration":  func(p *MergeParams) { p.Duration = 0 },
		"odd width":      func(p *MergeParams) { p.Width = 1279 },
		"same input":     func(p *MergeParams) { p.Bottom = "/tmp/../tmp/a.mov" },
		"zero fps":       func(p *MergeParams) { p.FrameRate = 0 },
		"unknown preset": func(p *MergeParams) { p.Preset = "veryfastt" },
		"unknown audio":  func(p *MergeParams) { p.Audio = "surround" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := baseParams()
			mutate(p)
			if _, err := BuildMergeArgs(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}
