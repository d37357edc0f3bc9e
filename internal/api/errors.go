package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dualcam/internal/library"
	"github.com/smazurov/dualcam/internal/orchestrator"
	"github.com/smazurov/dualcam/internal/recording"
	"github.com/smazurov/dualcam/internal/session"
)

// toHTTPError maps domain errors onto status codes.
func toHTTPError(err error) error {
	var setupErr *orchestrator.SetupError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, library.ErrNotFound):
		return huma.Error404NotFound("Asset not found", err)
	case errors.Is(err, orchestrator.ErrNotStarted),
		errors.Is(err, orchestrator.ErrNoSession),
		errors.Is(err, orchestrator.ErrNotDual),
		errors.Is(err, orchestrator.ErrNotVideoMode),
		errors.Is(err, orchestrator.ErrRecordingInProgress),
		errors.Is(err, recording.ErrAlreadyRecording),
		errors.Is(err, recording.ErrNotRecording),
		errors.Is(err, session.ErrTransitionInFlight):
		return huma.Error409Conflict(err.Error())
	case errors.As(err, &setupErr):
		if setupErr.Kind == session.ErrPermissionDenied {
			return huma.Error403Forbidden(setupErr.Error())
		}
		return huma.NewError(http.StatusServiceUnavailable, setupErr.Error())
	default:
		return huma.Error500InternalServerError("Operation failed", err)
	}
}
