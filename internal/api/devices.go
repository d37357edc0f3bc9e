package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dualcam/internal/api/models"
	"github.com/smazurov/dualcam/internal/catalog"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List devices",
		Description: "List video devices ranked for the primary role and the pair dual capture would use",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(ctx context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		cat := s.orch.Catalog()
		devices, err := cat.PrimaryCandidates(ctx)
		if err != nil && !errors.Is(err, catalog.ErrNoDevices) {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}

		resp := &models.DevicesResponse{}
		resp.Body.Devices = make([]models.Device, 0, len(devices))
		for _, d := range devices {
			resp.Body.Devices = append(resp.Body.Devices, toDevice(d))
		}

		var preferred string
		if p := s.orch.State().Primary; p != nil {
			preferred = p.ID
		}
		if cand, err := cat.FindDualCandidate(ctx, preferred); err == nil {
			resp.Body.Pair = &models.Pair{
				Primary:         cand.Primary.ID,
				Secondary:       cand.Secondary.ID,
				PrimaryFormat:   cand.Pair.Primary.String(),
				SecondaryFormat: cand.Pair.Secondary.String(),
				Tier:            cand.Pair.Tier,
			}
		}
		return resp, nil
	})
}

func toDevice(d catalog.Device) models.Device {
	out := models.Device{
		DeviceRef: models.DeviceRef{ID: d.ID, Name: d.Name, Position: d.Position.String()},
		Kind:      d.Kind.String(),
		MinZoom:   d.MinZoom,
		MaxZoom:   d.MaxZoom,
		Formats:   make([]models.Format, 0, len(d.Formats)),
	}
	if !d.Active.IsZero() {
		out.Active = d.Active.String()
	}
	for _, f := range d.Formats {
		out.Formats = append(out.Formats, models.Format{
			ID:          f.ID,
			Width:       f.Width,
			Height:      f.Height,
			MaxFPS:      f.MaxFrameRate(),
			MultiStream: f.MultiStream,
			HDR:         f.HDR,
		})
	}
	return out
}
