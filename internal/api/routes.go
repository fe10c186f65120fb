package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-labels/internal/media"
	"github.com/heimdex/heimdex-labels/internal/workspace"
)

const Version = "0.1.0"

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()
	streamer := media.NewStreamer(cfg.Logger)

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/label-rows", listLabelRowsHandler(cfg))
		r.Route("/label-rows/{hash}", func(r chi.Router) {
			r.Get("/", getLabelRowHandler(cfg))
			r.Put("/", replaceLabelRowHandler(cfg))
			r.Delete("/", discardLabelRowHandler(cfg))
			r.Post("/fetch", fetchLabelRowHandler(cfg))
			r.Post("/interpolate", interpolateHandler(cfg))
			r.Delete("/instances/{instance}/frames", removeFramesHandler(cfg))
			r.Post("/save", saveHandler(cfg))
			r.Post("/export/edl", exportEDLHandler(cfg))
			r.Get("/media", mediaHandler(cfg, streamer))
			r.Head("/media", mediaHandler(cfg, streamer))
		})

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Post("/runner/pause", pauseRunnerHandler(cfg, true))
		r.Post("/runner/resume", pauseRunnerHandler(cfg, false))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rows, _ := cfg.Workspace.ListCached(ctx)
		jobs, _ := cfg.Workspace.ListJobs(ctx, 50)

		resp := StatusResponse{State: "idle", RowsCached: len(rows)}
		for _, row := range rows {
			if row.Dirty {
				resp.RowsDirty++
			}
		}

		for _, j := range jobs {
			switch j.Status {
			case workspace.JobStatusRunning:
				resp.State = "saving"
				jr := JobToResponse(j)
				resp.ActiveJob = &jr
				resp.JobsRunning++
			case workspace.JobStatusPending:
				resp.JobsPending++
			case workspace.JobStatusFailed:
				if resp.LastError == "" {
					resp.LastError = j.Error
				}
			}
		}

		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			resp.State = "paused"
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Workspace.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Workspace.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func pauseRunnerHandler(cfg ServerConfig, pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "job runner not configured", "UNAVAILABLE")
			return
		}
		if pause {
			cfg.Runner.Pause()
		} else {
			cfg.Runner.Resume()
		}
		WriteJSON(w, http.StatusOK, RunnerResponse{Paused: cfg.Runner.IsPaused()})
	}
}
