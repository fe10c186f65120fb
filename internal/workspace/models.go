package workspace

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CachedRow is a label row held locally. Payload is the CBOR encoding of
// the row's wire form.
type CachedRow struct {
	LabelHash    string    `json:"label_hash"`
	OntologyHash string    `json:"ontology_hash"`
	DataTitle    string    `json:"data_title"`
	DataType     string    `json:"data_type"`
	Version      string    `json:"version"`
	Payload      []byte    `json:"-"`
	Dirty        bool      `json:"dirty"`
	FetchedAt    time.Time `json:"fetched_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	JobTypeSave = "save"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	LabelHash string    `json:"label_hash,omitempty"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the job is queued or in progress.
func (j *Job) Active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

var (
	// ErrNotFound is returned for label rows or instances that are not in
	// the workspace.
	ErrNotFound = errors.New("not found")
)

func NewID() string {
	return uuid.NewString()
}
