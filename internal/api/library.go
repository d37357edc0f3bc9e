package api

import (
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/dualcam/internal/api/models"
	"github.com/smazurov/dualcam/internal/library"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-assets",
		Method:      http.MethodGet,
		Path:        "/api/library",
		Summary:     "List assets",
		Description: "List saved photos, clips and merged recordings",
		Tags:        []string{"library"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 500},
	}, func(ctx context.Context, input *models.LibraryInput) (*models.LibraryResponse, error) {
		var kind library.AssetKind
		if input.Kind != "" {
			parsed, err := library.ParseKind(input.Kind)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			kind = parsed
		}
		assets, err := s.library.List(ctx, kind)
		if err != nil {
			return nil, toHTTPError(err)
		}
		resp := &models.LibraryResponse{}
		resp.Body.Assets = make([]models.Asset, 0, len(assets))
		for _, a := range assets {
			resp.Body.Assets = append(resp.Body.Assets, toAsset(a))
		}
		resp.Body.Count = len(assets)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-asset",
		Method:      http.MethodGet,
		Path:        "/api/library/{id}",
		Summary:     "Get asset",
		Tags:        []string{"library"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *models.AssetIDInput) (*models.AssetResponse, error) {
		asset, err := s.library.Get(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err)
		}
		return &models.AssetResponse{Body: toAsset(asset)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "download-asset",
		Method:      http.MethodGet,
		Path:        "/api/library/{id}/file",
		Summary:     "Download asset",
		Description: "Stream the media file of an asset",
		Tags:        []string{"library"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *models.AssetIDInput) (*huma.StreamResponse, error) {
		asset, err := s.library.Get(ctx, input.ID)
		if err != nil {
			return nil, toHTTPError(err)
		}
		path := s.library.Path(asset)
		f, err := os.Open(path)
		if err != nil {
			return nil, huma.Error404NotFound("Asset file missing", err)
		}
		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				defer f.Close()
				contentType := mime.TypeByExtension(filepath.Ext(path))
				if contentType == "" {
					contentType = "application/octet-stream"
				}
				hctx.SetHeader("Content-Type", contentType)
				hctx.SetHeader("Content-Length", strconv.FormatInt(asset.SizeBytes, 10))
				hctx.SetHeader("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
				if _, err := io.Copy(hctx.BodyWriter(), f); err != nil {
					s.logger.Warn("Asset download interrupted", "id", asset.ID, "error", err)
				}
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-asset",
		Method:        http.MethodDelete,
		Path:          "/api/library/{id}",
		Summary:       "Delete asset",
		Tags:          []string{"library"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
	}, func(ctx context.Context, input *models.AssetIDInput) (*struct{}, error) {
		if err := s.library.Delete(ctx, input.ID); err != nil {
			return nil, toHTTPError(err)
		}
		s.logger.Info("Asset deleted", "id", input.ID)
		return nil, nil
	})
}
