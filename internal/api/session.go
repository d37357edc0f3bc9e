package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dualcam/internal/api/models"
	"github.com/smazurov/dualcam/internal/orchestrator"
	"github.com/smazurov/dualcam/internal/platform"
	"github.com/smazurov/dualcam/internal/session"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/session",
		Summary:     "Get session",
		Description: "Current session state, capabilities and connections",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.SessionResponse, error) {
		return &models.SessionResponse{Body: s.sessionData()}, nil
	})

	s.registerSessionAction("start-session", "/api/session/start", "Start session",
		"Set up a single-device session, then dual-device capture when auto-enable is on",
		s.orch.Start)

	s.registerSessionAction("stop-session", "/api/session/stop", "Stop session",
		"Stop any recording and release the capture session",
		s.orch.Stop)

	huma.Register(s.api, huma.Operation{
		OperationID: "enable-dual",
		Method:      http.MethodPost,
		Path:        "/api/dual/enable",
		Summary:     "Enable dual device",
		Description: "Switch to dual-device capture. Returns enabled=false when the devices do not support it or setup fell back to one device",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.DualResponse, error) {
		enabled, err := s.orch.EnableDualDevice(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.DualResponse{Body: models.DualData{Enabled: enabled, Session: s.sessionData()}}, nil
	})

	s.registerSessionAction("disable-dual", "/api/dual/disable", "Disable dual device",
		"Return to single-device capture on the current primary device",
		s.orch.DisableDualDevice)

	s.registerSessionAction("switch-devices", "/api/dual/switch", "Switch devices",
		"Swap primary and secondary device roles",
		s.orch.SwitchPrimaryAndSecondary)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-mode",
		Method:      http.MethodPut,
		Path:        "/api/mode",
		Summary:     "Set capture mode",
		Description: "Switch between photo and video capture",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 503},
	}, func(ctx context.Context, input *models.ModeInput) (*models.SessionResponse, error) {
		mode, err := orchestrator.ParseMode(input.Body.Mode)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := s.orch.SetCaptureMode(ctx, mode); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.SessionResponse{Body: s.sessionData()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-zoom",
		Method:      http.MethodPut,
		Path:        "/api/zoom",
		Summary:     "Set zoom",
		Description: "Apply a zoom factor to the primary device",
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 503},
	}, func(ctx context.Context, input *models.ZoomInput) (*models.ZoomResponse, error) {
		applied, err := s.orch.SetZoom(ctx, input.Body.Factor)
		if err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.ZoomResponse{}
		resp.Body.Zoom = applied
		return resp, nil
	})
}

// registerSessionAction registers a POST that runs fn and returns the session.
func (s *Server) registerSessionAction(id, path, summary, description string, fn func(context.Context) error) {
	huma.Register(s.api, huma.Operation{
		OperationID: id,
		Method:      http.MethodPost,
		Path:        path,
		Summary:     summary,
		Description: description,
		Tags:        []string{"session"},
		Security:    withAuth(),
		Errors:      []int{401, 403, 409, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.SessionResponse, error) {
		if err := fn(ctx); err != nil {
			return nil, toHTTPError(err)
		}
		return &models.SessionResponse{Body: s.sessionData()}, nil
	})
}

func (s *Server) sessionData() models.SessionData {
	state := s.orch.State()
	caps := s.orch.Capabilities()
	data := models.SessionData{
		State:       state.Kind.String(),
		Status:      s.orch.Status().String(),
		Primary:     toDeviceRef(state.Primary),
		Secondary:   toDeviceRef(state.Secondary),
		Label:       state.Label,
		Error:       string(state.Err),
		Running:     s.orch.IsRunning(),
		Interrupted: s.orch.IsInterrupted(),
		Recording:   s.orch.IsRecording(),
		Capabilities: models.Capabilities{
			HDR:        caps.HDR,
			DualDevice: caps.DualDevice,
			Switchable: caps.Switchable,
			Mode:       caps.Mode.String(),
			MinZoom:    caps.MinZoom,
			MaxZoom:    caps.MaxZoom,
			Zoom:       caps.Zoom,
		},
		Connections: []models.Connection{},
	}
	for _, c := range s.orch.Connections() {
		data.Connections = append(data.Connections, toConnection(c))
	}
	return data
}

func toDeviceRef(r *session.DeviceRef) *models.DeviceRef {
	if r == nil {
		return nil
	}
	return &models.DeviceRef{ID: r.ID, Name: r.Name, Position: r.Position.String()}
}

func toConnection(c platform.Connection) models.Connection {
	out := models.Connection{Sink: c.Sink.String(), Auto: c.Auto}
	for _, p := range c.Ports {
		out.Ports = append(out.Ports, p.DeviceID+"/"+p.Media.String())
	}
	return out
}
