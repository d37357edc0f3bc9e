package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/dualcam/cmd"
	"github.com/smazurov/dualcam/internal/api"
	"github.com/smazurov/dualcam/internal/config"
	"github.com/smazurov/dualcam/internal/events"
	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/merge"
	"github.com/smazurov/dualcam/internal/metrics"
	natsbus "github.com/smazurov/dualcam/internal/nats"
	"github.com/smazurov/dualcam/internal/orchestrator"
	"github.com/smazurov/dualcam/internal/platform/sim"
	"github.com/smazurov/dualcam/internal/recording"
	"github.com/smazurov/dualcam/internal/systemd"
	"github.com/smazurov/dualcam/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Storage settings
	LibraryDir string `help:"Asset library directory" default:"library" toml:"storage.library_dir" env:"STORAGE_LIBRARY_DIR"`
	TempDir    string `help:"Directory for in-progress recordings, defaults to the system temp dir" default:"" toml:"storage.temp_dir" env:"STORAGE_TEMP_DIR"`

	// Platform settings
	DevicesFile string `help:"Simulated device manifest (TOML), defaults to the built-in set" default:"" toml:"platform.devices_file" env:"PLATFORM_DEVICES_FILE"`

	// Pipeline settings, reloaded while running
	AutoEnableDual  bool   `help:"Enable dual-device capture after start" default:"true" toml:"pipeline.auto_enable_dual" env:"PIPELINE_AUTO_ENABLE_DUAL"`
	MergeAudio      string `help:"Merged clip audio: primary, mix, none" default:"primary" toml:"pipeline.merge_audio" env:"PIPELINE_MERGE_AUDIO"`
	MergePreset     string `help:"x264 preset for merged clips" default:"veryfast" toml:"pipeline.merge_preset" env:"PIPELINE_MERGE_PRESET"`
	MergeTimeout    string `help:"Time limit of one merge job" default:"10m" toml:"pipeline.merge_timeout" env:"PIPELINE_MERGE_TIMEOUT"`
	FFmpegCommand   string `help:"ffmpeg command prefix" default:"ffmpeg" toml:"pipeline.ffmpeg" env:"PIPELINE_FFMPEG"`
	FeedbackDismiss string `help:"Auto-dismiss delay of transient feedback" default:"4s" toml:"pipeline.feedback_dismiss" env:"PIPELINE_FEEDBACK_DISMISS"`
	StartSession    bool   `help:"Start the capture session at launch" default:"true" toml:"pipeline.start_session" env:"PIPELINE_START_SESSION"`

	// NATS settings
	NatsEnabled  bool   `help:"Publish events and accept commands over NATS" default:"false" toml:"nats.enabled" env:"NATS_ENABLED"`
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"true" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsURL      string `help:"External NATS server URL, used when not embedded" default:"nats://127.0.0.1:4222" toml:"nats.url" env:"NATS_URL"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Logging settings
	LoggingLevel        string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat       string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCatalog      string `help:"Catalog logging level" default:"info" toml:"logging.catalog" env:"LOGGING_CATALOG"`
	LoggingSession      string `help:"Session state logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingOrchestrator string `help:"Orchestrator logging level" default:"info" toml:"logging.orchestrator" env:"LOGGING_ORCHESTRATOR"`
	LoggingRecording    string `help:"Recording logging level" default:"info" toml:"logging.recording" env:"LOGGING_RECORDING"`
	LoggingMerge        string `help:"Merge logging level" default:"info" toml:"logging.merge" env:"LOGGING_MERGE"`
	LoggingLibrary      string `help:"Library logging level" default:"info" toml:"logging.library" env:"LOGGING_LIBRARY"`
	LoggingAPI          string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		AutoEnableDual: o.AutoEnableDual,
		MergeAudio:     o.MergeAudio,
		MergePreset:    o.MergePreset,
		MergeTimeout:   o.MergeTimeout,
	}
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"catalog":      o.LoggingCatalog,
			"session":      o.LoggingSession,
			"orchestrator": o.LoggingOrchestrator,
			"recording":    o.LoggingRecording,
			"merge":        o.LoggingMerge,
			"library":      o.LoggingLibrary,
			"api":          o.LoggingAPI,
		},
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")
		logger.Info("dualcam starting", "version", version.String())

		mergeSettings, err := opts.pipelineConfig().MergeSettings(merge.DefaultSettings())
		if err != nil {
			logger.Error("Invalid pipeline settings", "error", err)
			os.Exit(1)
		}
		feedbackDismiss, err := time.ParseDuration(opts.FeedbackDismiss)
		if err != nil {
			logger.Warn("Invalid feedback dismiss delay, using default", "value", opts.FeedbackDismiss)
			feedbackDismiss = 4 * time.Second
		}

		tempDir := opts.TempDir
		if tempDir == "" {
			tempDir = filepath.Join(os.TempDir(), "dualcam")
		}
		if mkErr := os.MkdirAll(tempDir, 0o755); mkErr != nil {
			logger.Error("Failed to create temp dir", "path", tempDir, "error", mkErr)
			os.Exit(1)
		}

		lib, err := library.Open(opts.LibraryDir, logging.GetLogger("library"))
		if err != nil {
			logger.Error("Failed to open library", "path", opts.LibraryDir, "error", err)
			os.Exit(1)
		}

		platform, err := sim.NewFromManifest(opts.DevicesFile)
		if err != nil {
			logger.Error("Failed to create capture platform", "error", err)
			os.Exit(1)
		}

		composer, err := merge.NewFFmpegComposer(opts.FFmpegCommand, logging.GetLogger("merge"), logging.GetLogger("ffmpeg"))
		if err != nil {
			logger.Error("Invalid ffmpeg command", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()
		runner := merge.NewRunner(composer, lib, eventBus, tempDir, logging.GetLogger("merge"))
		runner.SetSettings(mergeSettings)
		pipeline := recording.NewPipeline(tempDir, lib, runner, logging.GetLogger("recording"))

		orch := orchestrator.New(platform, pipeline, lib, eventBus, logging.GetLogger("orchestrator"), orchestrator.Options{
			AutoEnableDual:  opts.AutoEnableDual,
			TempDir:         tempDir,
			FeedbackDismiss: feedbackDismiss,
		})

		server := api.NewServer(&api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			CORSOrigin:     opts.CORSOrigin,
			Orchestrator:   orch,
			Library:        lib,
			EventBus:       eventBus,
			MetricsHandler: metrics.Handler(),
		})

		// Hot reload of the [pipeline] and [logging] tables.
		var watcher *config.Watcher[config.Reloadable]
		if _, statErr := os.Stat(opts.Config); statErr == nil {
			watcher = config.NewConfigWatcher(opts.Config, config.LoadReloadable, logging.GetLogger("config"),
				config.WithErrorHandler[config.Reloadable](func(err error) {
					logger.Warn("Config reload rejected", "error", err)
				}))
			watcher.OnReload(func(r config.Reloadable) {
				settings, mergeErr := r.Pipeline.MergeSettings(merge.DefaultSettings())
				if mergeErr != nil {
					logger.Warn("Ignoring invalid pipeline settings", "error", mergeErr)
					return
				}
				runner.SetSettings(settings)
				orch.SetAutoEnableDual(r.Pipeline.AutoEnableDual)
				logging.SetLevels(r.Logging.Level, r.Logging.Modules)
				logger.Info("Configuration reloaded",
					"auto_enable_dual", r.Pipeline.AutoEnableDual, "merge_audio", settings.Audio)
			})
		}

		var natsServer *natsbus.Server
		var natsPublisher *natsbus.Publisher
		var natsControl *natsbus.Control
		startNATS := func() {
			url := opts.NatsURL
			if opts.NatsEmbedded {
				natsServer = natsbus.NewServer(natsbus.ServerOptions{Port: opts.NatsPort, Logger: logging.GetLogger("nats")})
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start NATS server", "error", startErr)
					natsServer = nil
					return
				}
				url = natsServer.ClientURL()
			}
			natsPublisher = natsbus.NewPublisher(url, eventBus, logging.GetLogger("nats"))
			if startErr := natsPublisher.Start(); startErr != nil {
				logger.Warn("NATS event publishing unavailable", "error", startErr)
				natsPublisher = nil
			}
			natsControl = natsbus.NewControl(url, orch, 30*time.Second, logging.GetLogger("nats"))
			if startErr := natsControl.Start(); startErr != nil {
				logger.Warn("NATS control unavailable", "error", startErr)
				natsControl = nil
			}
		}
		stopNATS := func() {
			if natsControl != nil {
				natsControl.Stop()
			}
			if natsPublisher != nil {
				natsPublisher.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if watcher != nil {
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Failed to watch config file", "error", startErr)
				}
			}

			if opts.NatsEnabled {
				startNATS()
			}

			if opts.StartSession {
				go func() {
					if startErr := orch.Start(ctx); startErr != nil {
						logger.Error("Capture session failed to start", "error", startErr)
					}
					notifier.Status(orch.State().Kind.String())
				}()
			}

			notifier.Ready()
			notifier.StartWatchdog(ctx, func() bool {
				pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
				defer pingCancel()
				pingErr := orch.Ping(pingCtx)
				return pingErr == nil || errors.Is(pingErr, orchestrator.ErrNotStarted)
			})

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			stopNATS()
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}

			// Stop saves an active recording before the session goes away.
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			if stopErr := orch.Stop(stopCtx); stopErr != nil {
				logger.Error("Error stopping capture session", "error", stopErr)
			}
			stopCancel()
			cancel()
			notifier.Wait()

			logger.Info("Waiting for background merges")
			orch.Wait()
			if closeErr := lib.Close(); closeErr != nil {
				logger.Error("Error closing library", "error", closeErr)
			}
		})
	})

	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateMergeCmd())

	cli.Run()
}
