package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/dualcam/internal/ffmpeg"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/merge"
	"github.com/smazurov/dualcam/internal/process"
)

// MergeFlags are the options of the merge command.
type MergeFlags struct {
	Output    string
	Duration  time.Duration
	FrameRate float64
	Width     int
	Audio     string
	Preset    string
	FFmpeg    string
	DryRun    bool
}

// Request builds the composition for two clip paths.
func (f MergeFlags) Request(primary, secondary string) (merge.Request, error) {
	if f.Output == "" {
		return merge.Request{}, fmt.Errorf("--output is required")
	}
	if f.Duration <= 0 {
		return merge.Request{}, fmt.Errorf("--duration must be positive")
	}
	audio, err := ffmpeg.ParseAudioPolicy(f.Audio)
	if err != nil {
		return merge.Request{}, err
	}
	if err := ffmpeg.ValidatePreset(f.Preset); err != nil {
		return merge.Request{}, err
	}
	clip := func(path string) merge.Clip {
		return merge.Clip{Path: path, Duration: f.Duration, FrameRate: f.FrameRate, Width: f.Width}
	}
	return merge.Request{
		ID:        "cli",
		Primary:   clip(primary),
		Secondary: clip(secondary),
		Output:    f.Output,
		Audio:     audio,
		Preset:    f.Preset,
	}, nil
}

// CreateMergeCmd creates the merge command.
func CreateMergeCmd() *cobra.Command {
	var flags MergeFlags
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "merge <primary> <secondary>",
		Short: "Stack two clips vertically into one",
		Long: `Runs the same composition the daemon uses for dual-device recordings: the primary ` +
			`clip on top, the secondary below, both scaled to a common width and cut to the given duration.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("merge")

			req, err := flags.Request(args[0], args[1])
			if err != nil {
				return err
			}

			if flags.DryRun {
				binary, err := process.SplitCommand(flags.FFmpeg)
				if err != nil {
					return err
				}
				argv, err := ffmpeg.BuildMergeArgs(&ffmpeg.MergeParams{
					Top:       req.Primary.Path,
					Bottom:    req.Secondary.Path,
					Output:    req.Output,
					Width:     req.Width(),
					Duration:  req.Duration(),
					FrameRate: req.FrameRate(),
					Preset:    req.Preset,
					Audio:     req.Audio,
					Binary:    binary,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(argv, " "))
				return err
			}

			composer, err := merge.NewFFmpegComposer(flags.FFmpeg, logger, logging.GetLogger("ffmpeg"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			start := time.Now()
			if err := composer.Compose(ctx, req); err != nil {
				return fmt.Errorf("merge failed: %w", err)
			}
			logger.Info("Merge complete", "output", req.Output, "elapsed", time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Output file")
	cmd.Flags().DurationVar(&flags.Duration, "duration", 0, "Length of the merged clip, the shorter input length")
	cmd.Flags().Float64Var(&flags.FrameRate, "fps", 30, "Output frame rate")
	cmd.Flags().IntVar(&flags.Width, "width", 1280, "Common width of both inputs")
	cmd.Flags().StringVar(&flags.Audio, "audio", string(ffmpeg.AudioPrimary), "Audio policy: primary, mix, none")
	cmd.Flags().StringVar(&flags.Preset, "preset", ffmpeg.DefaultPreset, "x264 preset")
	cmd.Flags().StringVar(&flags.FFmpeg, "ffmpeg", "ffmpeg", "ffmpeg command prefix")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Print the ffmpeg command instead of running it")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	return cmd
}
