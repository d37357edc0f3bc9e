// Package merge composes paired recordings into one vertically stacked clip
// and runs those compositions as detached background jobs.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/dualcam/internal/ffmpeg"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/process"
)

// Clip is one input of a composition.
type Clip struct {
	Path      string
	Duration  time.Duration
	FrameRate float64
	Width     int
}

// Request describes one composition. Primary is rendered on top.
type Request struct {
	ID        string
	Primary   Clip
	Secondary Clip
	Output    string
	Audio     ffmpeg.AudioPolicy
	Preset    string
}

// Duration is the length of the merged clip: the shorter of the two inputs.
func (r Request) Duration() time.Duration {
	return min(r.Primary.Duration, r.Secondary.Duration)
}

// FrameRate is the canonical output rate, taken from the primary clip.
func (r Request) FrameRate() float64 {
	if r.Primary.FrameRate > 0 {
		return r.Primary.FrameRate
	}
	if r.Secondary.FrameRate > 0 {
		return r.Secondary.FrameRate
	}
	return 30
}

// Width is the common width both inputs are scaled to.
func (r Request) Width() int {
	w := r.Primary.Width
	if w <= 0 {
		w = r.Secondary.Width
	}
	if w <= 0 {
		w = 1280
	}
	return w &^ 1
}

// Composer renders a Request to its Output path.
type Composer interface {
	Compose(ctx context.Context, req Request) error
}

// FFmpegComposer composes with an ffmpeg subprocess.
type FFmpegComposer struct {
	binary       []string
	logger       logging.Logger
	ffmpegLogger logging.Logger
}

// NewFFmpegComposer creates a composer. command is the ffmpeg invocation
// prefix, e.g. "ffmpeg" or "nice -n 10 /usr/bin/ffmpeg".
func NewFFmpegComposer(command string, logger, ffmpegLogger logging.Logger) (*FFmpegComposer, error) {
	binary, err := process.SplitCommand(command)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg command: %w", err)
	}
	if len(binary) == 0 {
		binary = []string{"ffmpeg"}
	}
	return &FFmpegComposer{binary: binary, logger: logger, ffmpegLogger: ffmpegLogger}, nil
}

// Compose runs ffmpeg and returns once the output is complete.
func (c *FFmpegComposer) Compose(ctx context.Context, req Request) error {
	args, err := ffmpeg.BuildMergeArgs(&ffmpeg.MergeParams{
		Top:       req.Primary.Path,
		Bottom:    req.Secondary.Path,
		Output:    req.Output,
		Width:     req.Width(),
		Duration:  req.Duration(),
		FrameRate: req.FrameRate(),
		Preset:    req.Preset,
		Audio:     req.Audio,
		Binary:    c.binary,
	})
	if err != nil {
		return err
	}

	proc := process.New("merge-"+req.ID, args, c.logger)
	proc.SetLogParser(c.ffmpegLogger, ffmpeg.ParseLogLevel)
	tail := &errorTail{max: 5}
	proc.SetOutputHandler(tail)

	if err := proc.Run(ctx); err != nil {
		var exitErr *process.ExitError
		if errors.As(err, &exitErr) {
			if lines := tail.String(); lines != "" {
				return fmt.Errorf("%w: %s", err, lines)
			}
		}
		return err
	}
	return nil
}

// errorTail keeps the last error lines of ffmpeg output for failure reports.
type errorTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *errorTail) HandleLine(_, line string) {
	level, msg := ffmpeg.ParseLogLevel(line)
	if level != "error" && level != "fatal" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, msg)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *errorTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}
