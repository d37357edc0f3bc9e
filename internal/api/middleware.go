package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/metrics"
)

// quietPaths are polled or long-lived and log at debug level when successful.
var quietPaths = map[string]bool{
	"/api/health": true,
	"/api/events": true,
}

// HTTPLoggingMiddleware logs HTTP requests with levels based on status codes
// and counts them per operation.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path
	logAttrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := ctx.URL().RawQuery; query != "" {
		logAttrs = append(logAttrs, slog.String("query", query))
	}

	next(ctx)

	status := ctx.Status()
	if status == 0 {
		status = http.StatusOK
	}
	logAttrs = append(logAttrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	operation := "unknown"
	if op := ctx.Operation(); op != nil {
		operation = op.OperationID
	}
	metrics.RecordHTTPRequest(operation, status)

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == http.MethodOptions, quietPaths[path]:
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", logAttrs...)
}
