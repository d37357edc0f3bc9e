package ffmpeg

import (
	"fmt"
	"slices"
	"time"
)

// AudioPolicy selects the audio of a merged clip.
type AudioPolicy string

// Audio policies.
const (
	AudioPrimary AudioPolicy = "primary" // audio track of the top clip
	AudioMix     AudioPolicy = "mix"     // both tracks mixed
	AudioNone    AudioPolicy = "none"    // silent output
)

// ParseAudioPolicy validates a policy name. An empty name selects AudioPrimary.
func ParseAudioPolicy(s string) (AudioPolicy, error) {
	switch AudioPolicy(s) {
	case "", AudioPrimary:
		return AudioPrimary, nil
	case AudioMix, AudioNone:
		return AudioPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown audio policy %q", s)
	}
}

// DefaultPreset is the x264 preset used for merged clips.
const DefaultPreset = "veryfast"

// Presets lists the x264 presets from fastest to slowest.
var Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// ValidatePreset reports whether name is an x264 preset. An empty name
// selects DefaultPreset.
func ValidatePreset(name string) error {
	if name == "" || slices.Contains(Presets, name) {
		return nil
	}
	return fmt.Errorf("unknown x264 preset %q", name)
}

// MergeParams describes a vertically stacked composition of two clips.
type MergeParams struct {
	// Inputs
	Top    string // primary clip, rendered on top
	Bottom string // secondary clip

	// Output
	Output    string
	Width     int           // common width both inputs are scaled to
	Duration  time.Duration // output is truncated to this length
	FrameRate float64       // canonical output frame rate

	// Encoder
	Preset string
	Audio  AudioPolicy

	// Binary is the command prefix, e.g. ["ffmpeg"] or ["nice", "-n", "10", "ffmpeg"].
	Binary []string
}
