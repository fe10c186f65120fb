package api

import (
	"time"

	"github.com/heimdex/heimdex-labels/internal/cloud"
	"github.com/heimdex/heimdex-labels/internal/workspace"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State       string       `json:"state"`
	LastError   string       `json:"last_error,omitempty"`
	RowsCached  int          `json:"rows_cached"`
	RowsDirty   int          `json:"rows_dirty"`
	JobsPending int          `json:"jobs_pending"`
	JobsRunning int          `json:"jobs_running"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

type LabelRowResponse struct {
	LabelHash    string `json:"label_hash"`
	DataTitle    string `json:"data_title"`
	DataType     string `json:"data_type"`
	OntologyHash string `json:"ontology_hash"`
	LabelStatus  string `json:"label_status,omitempty"`
	Cached       bool   `json:"cached"`
	Dirty        bool   `json:"dirty"`
	Version      string `json:"version,omitempty"`
	FetchedAt    string `json:"fetched_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

type LabelRowsResponse struct {
	LabelRows []LabelRowResponse `json:"label_rows"`
}

type InterpolateRequest struct {
	InstanceHash string `json:"instance_hash"`
	Frames       string `json:"frames"`
}

type SaveResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	LabelHash string `json:"label_hash,omitempty"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type RunnerResponse struct {
	Paused bool `json:"paused"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Instance string `json:"instance,omitempty"`
	Frame    *int   `json:"frame,omitempty"`
}

func CachedRowToResponse(c *workspace.CachedRow) LabelRowResponse {
	return LabelRowResponse{
		LabelHash:    c.LabelHash,
		DataTitle:    c.DataTitle,
		DataType:     c.DataType,
		OntologyHash: c.OntologyHash,
		Cached:       true,
		Dirty:        c.Dirty,
		Version:      c.Version,
		FetchedAt:    c.FetchedAt.Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.Format(time.RFC3339),
	}
}

// SummaryToResponse describes a row listed by the platform, merged with the
// local copy when there is one.
func SummaryToResponse(s cloud.LabelRowSummary, cached *workspace.CachedRow) LabelRowResponse {
	resp := LabelRowResponse{
		LabelHash:    s.LabelHash,
		DataTitle:    s.DataTitle,
		DataType:     s.DataType,
		OntologyHash: s.OntologyHash,
		LabelStatus:  s.LabelStatus,
	}
	if cached != nil {
		local := CachedRowToResponse(cached)
		local.LabelStatus = s.LabelStatus
		return local
	}
	return resp
}

func JobToResponse(j *workspace.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		LabelHash: j.LabelHash,
		Attempts:  j.Attempts,
		Error:     j.Error,
		Result:    j.Result,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
