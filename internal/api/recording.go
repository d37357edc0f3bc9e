package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dualcam/internal/api/models"
	"github.com/smazurov/dualcam/internal/library"
)

// saveTimeout bounds stopping and persisting a recording once requested.
const saveTimeout = 2 * time.Minute

func (s *Server) registerRecordingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-recording",
		Method:      http.MethodGet,
		Path:        "/api/recording",
		Summary:     "Recording status",
		Description: "Report whether a recording is in progress",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RecordingStatusResponse, error) {
		resp := &models.RecordingStatusResponse{}
		resp.Body.Recording = s.orch.IsRecording()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-recording",
		Method:      http.MethodPost,
		Path:        "/api/recording/start",
		Summary:     "Start recording",
		Description: "Start recording on every movie output of the session",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.RecordingStatusResponse, error) {
		if err := s.orch.StartRecording(ctx); err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.RecordingStatusResponse{}
		resp.Body.Recording = true
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-recording",
		Method:      http.MethodPost,
		Path:        "/api/recording/stop",
		Summary:     "Stop recording",
		Description: "Stop the recording and save its clips. Dual recordings start a background merge",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.SavedRecordingResponse, error) {
		out, err := s.stopAndSave(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.SavedRecordingResponse{Body: out}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "capture-photo",
		Method:      http.MethodPost,
		Path:        "/api/photo",
		Summary:     "Capture photo",
		Description: "Capture a still from the primary device into the library",
		Tags:        []string{"recording"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 503},
	}, func(ctx context.Context, _ *struct{}) (*models.AssetResponse, error) {
		asset, err := s.orch.CapturePhoto(ctx)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.AssetResponse{Body: toAsset(asset)}, nil
	})
}

func toAsset(a library.Asset) models.Asset {
	return models.Asset{
		ID:         a.ID,
		Kind:       string(a.Kind),
		Path:       a.RelPath,
		SizeBytes:  a.SizeBytes,
		DurationMs: a.Duration.Milliseconds(),
		DeviceID:   a.DeviceID,
		CreatedAt:  a.CreatedAt,
	}
}

// stopAndSave stops the recording and imports its clips. The clips are
// saved even when the client goes away after asking to stop.
func (s *Server) stopAndSave(ctx context.Context) (models.SavedRecording, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	result, err := s.orch.StopRecording(ctx)
	if err != nil {
		return models.SavedRecording{}, err
	}
	saved, err := s.orch.SaveRecording(ctx, result)
	if err != nil {
		return models.SavedRecording{}, err
	}
	out := models.SavedRecording{
		Primary:    toAsset(saved.Primary),
		MergeJobID: saved.MergeJobID,
	}
	if saved.Secondary != nil {
		sec := toAsset(*saved.Secondary)
		out.Secondary = &sec
	}
	return out, nil
}
