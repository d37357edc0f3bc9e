package orchestrator

import (
	"errors"
	"fmt"

	"github.com/smazurov/dualcam/internal/session"
)

// Errors returned for calls that are not valid in the current state.
var (
	ErrNotStarted          = errors.New("orchestrator not started")
	ErrNotDual             = errors.New("dual device mode is not active")
	ErrRecordingInProgress = errors.New("cannot reconfigure while recording")
	ErrNotVideoMode        = errors.New("capture mode is not video")
	ErrNoSession           = errors.New("capture session not running")
)

// SetupError is a classified failure of session setup or reconfiguration.
type SetupError struct {
	Kind    session.ErrorKind
	Message string
	Cause   error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SetupError) Unwrap() error {
	return e.Cause
}

func setupError(kind session.ErrorKind, message string, cause error) *SetupError {
	return &SetupError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the classification of err, or ErrSetupFailed when err is
// not a SetupError.
func KindOf(err error) session.ErrorKind {
	var se *SetupError
	if errors.As(err, &se) {
		return se.Kind
	}
	return session.ErrSetupFailed
}
