// Package workspace keeps fetched label rows in the local database, applies
// edits to them and queues saves back to the platform.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/heimdex/heimdex-labels/internal/cloud"
	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/labels"
	"github.com/heimdex/heimdex-labels/internal/ontology"
	"github.com/heimdex/heimdex-labels/internal/wire"
)

// ErrDirty is returned when a fetch would overwrite unsaved local edits.
var ErrDirty = errors.New("label row has unsaved changes")

// LabelService is the workspace as seen by the HTTP API.
type LabelService interface {
	ListRemote(ctx context.Context) ([]cloud.LabelRowSummary, error)
	ListCached(ctx context.Context) ([]*CachedRow, error)
	Fetch(ctx context.Context, labelHash string, force bool) (*CachedRow, error)
	Get(ctx context.Context, labelHash string) (*CachedRow, *wire.LabelRow, error)
	Open(ctx context.Context, labelHash string) (*labels.LabelRow, error)
	Replace(ctx context.Context, labelHash string, payload []byte) (*wire.LabelRow, error)
	Interpolate(ctx context.Context, labelHash, instanceHash string, r frames.Range) (*wire.LabelRow, error)
	RemoveFrames(ctx context.Context, labelHash, instanceHash string, r frames.Range) (*wire.LabelRow, error)
	Discard(ctx context.Context, labelHash string) error
	EnqueueSave(ctx context.Context, labelHash string) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}

type Service struct {
	repo       Repository
	client     cloud.Client
	ontologies *ontology.Cached
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repository, client cloud.Client, ontologies *ontology.Cached, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		client:     client,
		ontologies: ontologies,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockRow serialises work on one label row and returns the unlock func.
func (s *Service) lockRow(labelHash string) func() {
	s.mu.Lock()
	m, ok := s.locks[labelHash]
	if !ok {
		m = &sync.Mutex{}
		s.locks[labelHash] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *Service) ListRemote(ctx context.Context) ([]cloud.LabelRowSummary, error) {
	return s.client.ListLabelRows(ctx)
}

func (s *Service) ListCached(ctx context.Context) ([]*CachedRow, error) {
	return s.repo.ListRows(ctx)
}

// Fetch downloads a label row, checks it against its ontology and stores the
// normalised payload. Unsaved edits are only overwritten when force is set.
func (s *Service) Fetch(ctx context.Context, labelHash string, force bool) (*CachedRow, error) {
	unlock := s.lockRow(labelHash)
	defer unlock()

	existing, err := s.repo.GetRow(ctx, labelHash)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Dirty && !force {
		return nil, ErrDirty
	}

	doc, err := s.client.FetchLabelRow(ctx, labelHash)
	if err != nil {
		return nil, fmt.Errorf("fetch label row: %w", err)
	}
	w, err := wire.Parse(doc.Payload)
	if err != nil {
		return nil, &labelerr.MalformedLabelError{Location: labelerr.Nowhere, Reason: "invalid payload", Err: err}
	}
	if w.LabelHash != "" && w.LabelHash != labelHash {
		return nil, &labelerr.MalformedLabelError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("payload is for label row %s", w.LabelHash),
		}
	}
	w.LabelHash = labelHash

	if force {
		// A forced fetch also picks up ontology edits made since the last one.
		if _, err := s.ontologies.Refresh(ctx, w.OntologyHash); err != nil {
			return nil, fmt.Errorf("fetch ontology: %w", err)
		}
	}
	codec, err := s.codec(ctx, w.OntologyHash)
	if err != nil {
		return nil, err
	}
	row, err := codec.Decode(w)
	if err != nil {
		return nil, err
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	payload, err := encodePayload(codec, row)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cached := &CachedRow{
		LabelHash:    labelHash,
		OntologyHash: w.OntologyHash,
		DataTitle:    w.DataTitle,
		DataType:     w.DataType,
		Version:      doc.Version,
		Payload:      payload,
		FetchedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.UpsertRow(ctx, cached); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("label row fetched",
			"label_hash", labelHash,
			"version", doc.Version,
			"objects", len(row.Objects()),
			"classifications", len(row.Classifications()),
		)
	}
	return cached, nil
}

func (s *Service) codec(ctx context.Context, ontologyHash string) (*wire.Codec, error) {
	idx, err := s.ontologies.Get(ctx, ontologyHash)
	if err != nil {
		return nil, fmt.Errorf("load ontology %s: %w", ontologyHash, err)
	}
	return wire.NewCodec(idx, s.logger), nil
}

func encodePayload(codec *wire.Codec, row *labels.LabelRow) ([]byte, error) {
	w, err := codec.Encode(row)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(w)
}

func decodePayload(payload []byte) (*wire.LabelRow, error) {
	var w wire.LabelRow
	if err := cbor.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("decode cached payload: %w", err)
	}
	return &w, nil
}

func (s *Service) cachedRow(ctx context.Context, labelHash string) (*CachedRow, error) {
	cached, err := s.repo.GetRow(ctx, labelHash)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, ErrNotFound
	}
	return cached, nil
}

// Get returns the cached row and its wire payload.
func (s *Service) Get(ctx context.Context, labelHash string) (*CachedRow, *wire.LabelRow, error) {
	unlock := s.lockRow(labelHash)
	defer unlock()

	cached, err := s.cachedRow(ctx, labelHash)
	if err != nil {
		return nil, nil, err
	}
	w, err := decodePayload(cached.Payload)
	if err != nil {
		return nil, nil, err
	}
	return cached, w, nil
}

// Open decodes the working copy of a cached row.
func (s *Service) Open(ctx context.Context, labelHash string) (*labels.LabelRow, error) {
	unlock := s.lockRow(labelHash)
	defer unlock()

	cached, err := s.cachedRow(ctx, labelHash)
	if err != nil {
		return nil, err
	}
	_, row, err := s.load(ctx, cached)
	return row, err
}

func (s *Service) load(ctx context.Context, cached *CachedRow) (*wire.Codec, *labels.LabelRow, error) {
	w, err := decodePayload(cached.Payload)
	if err != nil {
		return nil, nil, err
	}
	codec, err := s.codec(ctx, cached.OntologyHash)
	if err != nil {
		return nil, nil, err
	}
	row, err := codec.Decode(w)
	if err != nil {
		return nil, nil, err
	}
	return codec, row, nil
}

// edit applies fn to the working copy and stores the result when the row is
// still valid afterwards. Nothing is stored if fn or validation fails.
func (s *Service) edit(ctx context.Context, labelHash string, fn func(*labels.LabelRow) error) (*wire.LabelRow, error) {
	unlock := s.lockRow(labelHash)
	defer unlock()

	cached, err := s.cachedRow(ctx, labelHash)
	if err != nil {
		return nil, err
	}
	codec, row, err := s.load(ctx, cached)
	if err != nil {
		return nil, err
	}
	if err := fn(row); err != nil {
		return nil, err
	}
	return s.store(ctx, codec, row)
}

func (s *Service) store(ctx context.Context, codec *wire.Codec, row *labels.LabelRow) (*wire.LabelRow, error) {
	if err := row.Validate(); err != nil {
		return nil, err
	}
	w, err := codec.Encode(row)
	if err != nil {
		return nil, err
	}
	payload, err := cbor.Marshal(w)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRowPayload(ctx, row.Metadata().LabelHash, payload); err != nil {
		return nil, err
	}
	return w, nil
}

// Replace swaps the working copy for a posted JSON payload. The payload must
// be for the same label row and ontology.
func (s *Service) Replace(ctx context.Context, labelHash string, payload []byte) (*wire.LabelRow, error) {
	unlock := s.lockRow(labelHash)
	defer unlock()

	cached, err := s.cachedRow(ctx, labelHash)
	if err != nil {
		return nil, err
	}
	w, err := wire.Parse(payload)
	if err != nil {
		return nil, &labelerr.MalformedLabelError{Location: labelerr.Nowhere, Reason: "invalid payload", Err: err}
	}
	if w.LabelHash != labelHash {
		return nil, &labelerr.ValidationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("payload is for label row %s, not %s", w.LabelHash, labelHash),
		}
	}
	if w.OntologyHash != cached.OntologyHash {
		return nil, &labelerr.OntologyMismatchError{
			Location: labelerr.Nowhere,
			Feature:  w.OntologyHash,
			Reason:   "payload uses a different ontology",
		}
	}

	codec, err := s.codec(ctx, cached.OntologyHash)
	if err != nil {
		return nil, err
	}
	row, err := codec.Decode(w)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, codec, row)
}

// Interpolate fills an object's frames in r between its keyframes.
func (s *Service) Interpolate(ctx context.Context, labelHash, instanceHash string, r frames.Range) (*wire.LabelRow, error) {
	w, err := s.edit(ctx, labelHash, func(row *labels.LabelRow) error {
		return row.Interpolate(instanceHash, r)
	})
	if err == nil && s.logger != nil {
		s.logger.Info("object interpolated", "label_hash", labelHash, "instance_hash", instanceHash, "frames", r.String())
	}
	return w, err
}

// RemoveFrames takes an object or classification instance off the frames in
// r. An instance left on no frames is dropped from the row.
func (s *Service) RemoveFrames(ctx context.Context, labelHash, instanceHash string, r frames.Range) (*wire.LabelRow, error) {
	return s.edit(ctx, labelHash, func(row *labels.LabelRow) error {
		if obj, ok := row.Object(instanceHash); ok {
			obj.RemoveFromFrames(r)
		} else if cls, ok := row.Classification(instanceHash); ok {
			cls.RemoveFromFrames(r)
		} else {
			return fmt.Errorf("instance %s: %w", instanceHash, ErrNotFound)
		}
		row.PruneEmpty()
		return nil
	})
}

// Discard drops the cached row together with any unsaved edits.
func (s *Service) Discard(ctx context.Context, labelHash string) error {
	unlock := s.lockRow(labelHash)
	defer unlock()

	if _, err := s.cachedRow(ctx, labelHash); err != nil {
		return err
	}
	if err := s.repo.DeleteRow(ctx, labelHash); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("label row discarded", "label_hash", labelHash)
	}
	return nil
}

// EnqueueSave queues an upload of the working copy. A save already waiting
// for the same row is returned instead of queueing another.
func (s *Service) EnqueueSave(ctx context.Context, labelHash string) (*Job, error) {
	unlock := s.lockRow(labelHash)
	defer unlock()

	if _, err := s.cachedRow(ctx, labelHash); err != nil {
		return nil, err
	}

	existing, err := s.repo.ActiveJobForRow(ctx, JobTypeSave, labelHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeSave,
		Status:    JobStatusPending,
		LabelHash: labelHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("save queued", "job_id", job.ID, "label_hash", labelHash)
	}
	return job, nil
}

// ExecuteSave uploads the working copy against the version it was fetched
// at and records the new version.
func (s *Service) ExecuteSave(ctx context.Context, job *Job) error {
	unlock := s.lockRow(job.LabelHash)
	defer unlock()

	cached, err := s.cachedRow(ctx, job.LabelHash)
	if err != nil {
		return err
	}
	if !cached.Dirty {
		return s.repo.SetJobResult(ctx, job.ID, cached.Version)
	}

	w, err := decodePayload(cached.Payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(w)
	if err != nil {
		return err
	}

	version, err := s.client.SaveLabelRow(ctx, job.LabelHash, body, cached.Version)
	if err != nil {
		return err
	}
	if err := s.repo.MarkSaved(ctx, job.LabelHash, version); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("label row saved", "job_id", job.ID, "label_hash", job.LabelHash, "version", version)
	}
	return s.repo.SetJobResult(ctx, job.ID, version)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

// IsConflict reports whether err is the platform rejecting a stale version.
func IsConflict(err error) bool {
	var apiErr *cloud.APIError
	return errors.As(err, &apiErr) && apiErr.IsConflict()
}

// IsRetryable reports whether a failed save may succeed if tried again.
func IsRetryable(err error) bool {
	var apiErr *cloud.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
