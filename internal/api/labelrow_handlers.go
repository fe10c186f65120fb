package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/logging"
	"github.com/heimdex/heimdex-labels/internal/workspace"
)

// maxPayloadBytes bounds posted label-row payloads.
const maxPayloadBytes = 64 << 20

func listLabelRowsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cached, err := cfg.Workspace.ListCached(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list label rows", "INTERNAL_ERROR")
			return
		}

		remote, _ := strconv.ParseBool(r.URL.Query().Get("remote"))
		if !remote {
			resp := LabelRowsResponse{LabelRows: make([]LabelRowResponse, len(cached))}
			for i, c := range cached {
				resp.LabelRows[i] = CachedRowToResponse(c)
			}
			WriteJSON(w, http.StatusOK, resp)
			return
		}

		summaries, err := cfg.Workspace.ListRemote(ctx)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		byHash := make(map[string]*workspace.CachedRow, len(cached))
		for _, c := range cached {
			byHash[c.LabelHash] = c
		}
		resp := LabelRowsResponse{LabelRows: make([]LabelRowResponse, len(summaries))}
		for i, s := range summaries {
			resp.LabelRows[i] = SummaryToResponse(s, byHash[s.LabelHash])
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func fetchLabelRowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

		cached, err := cfg.Workspace.Fetch(r.Context(), hash, force)
		if err != nil {
			writeServiceError(w, logging.WithLabelHash(cfg.Logger, hash), err)
			return
		}
		WriteJSON(w, http.StatusOK, CachedRowToResponse(cached))
	}
}

func getLabelRowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		cached, row, err := cfg.Workspace.Get(r.Context(), hash)
		if err != nil {
			writeServiceError(w, logging.WithLabelHash(cfg.Logger, hash), err)
			return
		}
		if cached.Version != "" {
			w.Header().Set("ETag", cached.Version)
		}
		WriteJSON(w, http.StatusOK, row)
	}
}

func replaceLabelRowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge, "payload too large", "BAD_REQUEST")
				return
			}
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		row, err := cfg.Workspace.Replace(r.Context(), hash, body)
		if err != nil {
			writeServiceError(w, logging.WithLabelHash(cfg.Logger, hash), err)
			return
		}
		WriteJSON(w, http.StatusOK, row)
	}
}

func discardLabelRowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		if err := cfg.Workspace.Discard(r.Context(), hash); err != nil {
			writeServiceError(w, logging.WithLabelHash(cfg.Logger, hash), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func interpolateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		var req InterpolateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.InstanceHash == "" || req.Frames == "" {
			WriteError(w, http.StatusBadRequest, "instance_hash and frames are required", "BAD_REQUEST")
			return
		}
		target, err := frames.Parse(req.Frames)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		row, err := cfg.Workspace.Interpolate(r.Context(), hash, req.InstanceHash, target)
		if err != nil {
			logger := logging.WithInstanceHash(logging.WithLabelHash(cfg.Logger, hash), req.InstanceHash)
			writeServiceError(w, logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, row)
	}
}

func removeFramesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		instance := chi.URLParam(r, "instance")

		frameSpec := r.URL.Query().Get("frames")
		if frameSpec == "" {
			WriteError(w, http.StatusBadRequest, "frames is required", "BAD_REQUEST")
			return
		}
		target, err := frames.Parse(frameSpec)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		row, err := cfg.Workspace.RemoveFrames(r.Context(), hash, instance, target)
		if err != nil {
			logger := logging.WithInstanceHash(logging.WithLabelHash(cfg.Logger, hash), instance)
			writeServiceError(w, logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, row)
	}
}

func saveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")

		job, err := cfg.Workspace.EnqueueSave(r.Context(), hash)
		if err != nil {
			writeServiceError(w, logging.WithLabelHash(cfg.Logger, hash), err)
			return
		}
		WriteJSON(w, http.StatusAccepted, SaveResponse{JobID: job.ID})
	}
}
