package ffmpeg

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
)

// Base returns the arguments every invocation starts with. level+info
// prefixes each log line with its level for ParseLogLevel.
func Base() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "level+info", "-y"}
}

// BuildMergeArgs builds the argument list for a vstack merge. The filter
// graph scales both inputs to a common width and stacks them; ffmpeg
// streams frames through it, so memory use does not grow with clip length.
func BuildMergeArgs(p *MergeParams) ([]string, error) {
	if p.Top == "" || p.Bottom == "" {
		return nil, errors.New("merge needs two inputs")
	}
	if filepath.Clean(p.Top) == filepath.Clean(p.Bottom) {
		return nil, fmt.Errorf("merge inputs must differ: %s", p.Top)
	}
	if p.Output == "" {
		return nil, errors.New("merge needs an output path")
	}
	if p.Duration <= 0 {
		return nil, fmt.Errorf("invalid merge duration %s", p.Duration)
	}
	if p.Width <= 0 || p.Width%2 != 0 {
		return nil, fmt.Errorf("invalid merge width %d", p.Width)
	}
	if p.FrameRate <= 0 {
		return nil, fmt.Errorf("invalid merge frame rate %g", p.FrameRate)
	}
	if err := ValidatePreset(p.Preset); err != nil {
		return nil, err
	}
	audio, err := ParseAudioPolicy(string(p.Audio))
	if err != nil {
		return nil, err
	}

	binary := p.Binary
	if len(binary) == 0 {
		binary = []string{"ffmpeg"}
	}
	args := append([]string{}, binary...)
	args = append(args, Base()...)
	args = append(args, "-i", p.Top, "-i", p.Bottom)

	filter := fmt.Sprintf(
		"[0:v]scale=%[1]d:-2,setsar=1[top];[1:v]scale=%[1]d:-2,setsar=1[bottom];[top][bottom]vstack=inputs=2[v]",
		p.Width)

	switch audio {
	case AudioMix:
		filter += ";[0:a][1:a]amix=inputs=2:duration=shortest[a]"
		args = append(args, "-filter_complex", filter, "-map", "[v]", "-map", "[a]")
	case AudioNone:
		args = append(args, "-filter_complex", filter, "-map", "[v]", "-an")
	case AudioPrimary:
		// The trailing ? keeps clips without an audio track mergeable.
		args = append(args, "-filter_complex", filter, "-map", "[v]", "-map", "0:a?")
	}

	preset := p.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	args = append(args,
		"-t", formatSeconds(p.Duration.Seconds()),
		"-c:v", "libx264", "-preset", preset, "-pix_fmt", "yuv420p",
		"-r", formatSeconds(p.FrameRate),
	)
	if audio != AudioNone {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args, "-movflags", "+faststart", p.Output)
	return args, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
