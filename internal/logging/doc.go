// Package logging provides structured logging with per-module log levels.
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"orchestrator": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("orchestrator")
//	logger.Info("Dual-device session committed", "primary", id)
//
// Output goes to stdout when it is a terminal, pipe or file, and to the
// systemd journal (SYSLOG_IDENTIFIER=dualcam) when journald is reachable.
// Levels can be changed at runtime with SetLevels; the config watcher uses
// this when the [logging] table of the config file changes.
package logging
