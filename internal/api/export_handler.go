package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-labels/internal/export"
	"github.com/heimdex/heimdex-labels/internal/logging"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		logger := logging.WithLabelHash(cfg.Logger, hash)

		var req export.ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.OutputDir == "" {
			req.OutputDir = cfg.ExportDir
		}
		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		row, err := cfg.Workspace.Open(r.Context(), hash)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		src, err := export.ClipsFromRow(row, req.Instances)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if len(src.Clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no instance frames to export", "UNRESOLVABLE_CLIPS")
			return
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = src.FrameRate
		}

		projectName := req.ProjectName
		if projectName == "" {
			projectName = row.Metadata().DataTitle
		}
		title := export.SanitizeName(projectName, 120)

		edl := export.GenerateEDL(src.Clips, title, frameRate)
		outputPath := filepath.Join(req.OutputDir, export.EDLFileName(projectName))
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			logger.Error("failed to write export file", "path", logging.SanitizePath(outputPath), "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		unresolved := src.Unresolved
		if unresolved == nil {
			unresolved = []string{}
		}
		WriteJSON(w, http.StatusOK, export.ExportResponse{
			Status:              "ok",
			Format:              "edl",
			OutputPath:          outputPath,
			ClipCount:           len(src.Clips),
			UnresolvedInstances: unresolved,
		})
	}
}
