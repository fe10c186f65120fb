package workspace

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/heimdex/heimdex-labels/internal/cloud"
	"github.com/heimdex/heimdex-labels/internal/db"
	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
	"github.com/heimdex/heimdex-labels/internal/ontology/ontologytest"
)

const testOntology = "ont-1"

const testPayload = `{
  "label_hash": "lr-1",
  "data_hash": "d-1",
  "data_title": "clip.mp4",
  "data_type": "video",
  "ontology_hash": "ont-1",
  "number_of_frames": 10,
  "data_units": {
    "d-1": {
      "data_hash": "d-1", "data_title": "clip.mp4", "data_type": "video/mp4",
      "data_sequence": 0, "width": 1280, "height": 720, "data_fps": 25,
      "labels": {
        "0": {
          "objects": [{
            "name": "Parked Car", "shape": "bounding_box", "objectHash": "car00001", "featureHash": "obj-car",
            "boundingBox": {"h": 0.2, "w": 0.2, "x": 0.1, "y": 0.1}
          }],
          "classifications": [{
            "name": "Weather", "featureHash": "cls-weather", "classificationHash": "wthr0001",
            "answers": [{
              "name": "Weather", "value": "weather", "featureHash": "attr-weather", "manualAnnotation": true,
              "answers": [{"name": "Sunny", "value": "sunny", "featureHash": "opt-sunny"}]
            }]
          }]
        },
        "4": {
          "objects": [{
            "name": "Parked Car", "shape": "bounding_box", "objectHash": "car00001", "featureHash": "obj-car",
            "boundingBox": {"h": 0.2, "w": 0.2, "x": 0.5, "y": 0.1}
          }],
          "classifications": []
        }
      }
    }
  },
  "object_answers": {},
  "classification_answers": {},
  "object_actions": {}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	repo    Repository
	stub    *cloud.StubClient
	service *Service
}

func setupTestEnv(t *testing.T, client func(*cloud.StubClient) cloud.Client) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := testLogger()
	stub := cloud.NewStubClient(logger)
	stub.PutOntology(testOntology, ontologytest.Structure())
	stub.PutLabelRow(cloud.LabelRowSummary{LabelHash: "lr-1", DataType: "video", OntologyHash: testOntology}, []byte(testPayload))

	var c cloud.Client = stub
	if client != nil {
		c = client(stub)
	}

	repo := NewRepository(database.Conn())
	ontologies := ontology.NewCached(c, 0, logger)
	return &testEnv{
		repo:    repo,
		stub:    stub,
		service: NewService(repo, c, ontologies, logger),
	}
}

func mustRange(t *testing.T, s string) frames.Range {
	t.Helper()
	r, err := frames.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return r
}

func TestService_FetchAndOpen(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	cached, err := env.service.Fetch(ctx, "lr-1", false)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if cached.Version != "1" {
		t.Errorf("version = %q, want 1", cached.Version)
	}
	if cached.Dirty {
		t.Error("freshly fetched row should not be dirty")
	}
	if cached.DataType != "video" || cached.OntologyHash != testOntology {
		t.Errorf("cached = %+v", cached)
	}

	row, err := env.service.Open(ctx, "lr-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	car, ok := row.Object("car00001")
	if !ok {
		t.Fatal("car00001 missing after reopening")
	}
	if got := car.Frames().String(); got != "0,4" {
		t.Errorf("car frames = %s, want 0,4", got)
	}
	weather, ok := row.Classification("wthr0001")
	if !ok {
		t.Fatal("wthr0001 missing after reopening")
	}
	if _, ok := weather.GetAnswerForFrame(0); !ok {
		t.Error("weather answer on frame 0 lost")
	}

	rows, err := env.service.ListCached(ctx)
	if err != nil {
		t.Fatalf("ListCached() error = %v", err)
	}
	if len(rows) != 1 || rows[0].LabelHash != "lr-1" {
		t.Errorf("ListCached() = %+v", rows)
	}
}

func TestService_FetchUnknownRow(t *testing.T) {
	env := setupTestEnv(t, nil)

	_, err := env.service.Fetch(context.Background(), "missing", false)
	var apiErr *cloud.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}

func TestService_FetchMalformedPayload(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.stub.PutLabelRow(cloud.LabelRowSummary{LabelHash: "lr-bad"}, []byte(`{"label_hash": "lr-bad", "data_type": "video", "data_units": [}`))

	_, err := env.service.Fetch(context.Background(), "lr-bad", false)
	var malformed *labelerr.MalformedLabelError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedLabelError, got %v", err)
	}
	if cached, _ := env.repo.GetRow(context.Background(), "lr-bad"); cached != nil {
		t.Error("malformed payload should not be cached")
	}
}

func TestService_Interpolate(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	w, err := env.service.Interpolate(ctx, "lr-1", "car00001", mustRange(t, "0-4"))
	if err != nil {
		t.Fatalf("Interpolate() error = %v", err)
	}
	frame2 := w.DataUnits["d-1"].Labels.Frames[2]
	if frame2 == nil || len(frame2.Objects) != 1 {
		t.Fatalf("frame 2 = %+v, want one object", frame2)
	}
	occ := frame2.Objects[0]
	if occ.BoundingBox == nil || math.Abs(occ.BoundingBox.X-0.3) > 1e-9 {
		t.Errorf("frame 2 box = %+v, want x=0.3", occ.BoundingBox)
	}
	if occ.ManualAnnotation == nil || *occ.ManualAnnotation {
		t.Error("interpolated frame should not be manual")
	}

	cached, err := env.repo.GetRow(ctx, "lr-1")
	if err != nil {
		t.Fatalf("GetRow() error = %v", err)
	}
	if !cached.Dirty {
		t.Error("edited row should be dirty")
	}

	row, err := env.service.Open(ctx, "lr-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	car, _ := row.Object("car00001")
	if got := car.Frames().String(); got != "0-4" {
		t.Errorf("car frames = %s, want 0-4", got)
	}
}

func TestService_FailedEditLeavesRowUntouched(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	before, _ := env.repo.GetRow(ctx, "lr-1")

	_, err := env.service.Interpolate(ctx, "lr-1", "nobody00", mustRange(t, "0-4"))
	var verr *labelerr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	after, _ := env.repo.GetRow(ctx, "lr-1")
	if after.Dirty {
		t.Error("failed edit should not mark the row dirty")
	}
	if string(after.Payload) != string(before.Payload) {
		t.Error("failed edit changed the stored payload")
	}
}

func TestService_FetchRefusesToDropEdits(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, err := env.service.Interpolate(ctx, "lr-1", "car00001", mustRange(t, "0-4")); err != nil {
		t.Fatalf("Interpolate() error = %v", err)
	}

	if _, err := env.service.Fetch(ctx, "lr-1", false); !errors.Is(err, ErrDirty) {
		t.Fatalf("Fetch() error = %v, want ErrDirty", err)
	}

	cached, err := env.service.Fetch(ctx, "lr-1", true)
	if err != nil {
		t.Fatalf("forced Fetch() error = %v", err)
	}
	if cached.Dirty {
		t.Error("forced fetch should reset the dirty flag")
	}
}

func TestService_RemoveFrames(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if _, err := env.service.RemoveFrames(ctx, "lr-1", "car00001", mustRange(t, "4")); err != nil {
		t.Fatalf("RemoveFrames() error = %v", err)
	}
	if _, err := env.service.RemoveFrames(ctx, "lr-1", "wthr0001", mustRange(t, "0-9")); err != nil {
		t.Fatalf("RemoveFrames() error = %v", err)
	}

	row, err := env.service.Open(ctx, "lr-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	car, ok := row.Object("car00001")
	if !ok {
		t.Fatal("car00001 should remain on frame 0")
	}
	if got := car.Frames().String(); got != "0" {
		t.Errorf("car frames = %s, want 0", got)
	}
	if _, ok := row.Classification("wthr0001"); ok {
		t.Error("classification removed from every frame should be gone")
	}

	if _, err := env.service.RemoveFrames(ctx, "lr-1", "nobody00", mustRange(t, "0")); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveFrames() error = %v, want ErrNotFound", err)
	}
}

func TestService_Replace(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	edited := strings.Replace(testPayload, `"x": 0.5`, `"x": 0.6`, 1)
	w, err := env.service.Replace(ctx, "lr-1", []byte(edited))
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if got := w.DataUnits["d-1"].Labels.Frames[4].Objects[0].BoundingBox.X; got != 0.6 {
		t.Errorf("frame 4 x = %v, want 0.6", got)
	}

	other := strings.Replace(testPayload, `"label_hash": "lr-1"`, `"label_hash": "lr-2"`, 1)
	var verr *labelerr.ValidationError
	if _, err := env.service.Replace(ctx, "lr-1", []byte(other)); !errors.As(err, &verr) {
		t.Errorf("Replace() with another row's payload error = %v, want ValidationError", err)
	}

	foreign := strings.Replace(testPayload, `"ontology_hash": "ont-1"`, `"ontology_hash": "ont-2"`, 1)
	var merr *labelerr.OntologyMismatchError
	if _, err := env.service.Replace(ctx, "lr-1", []byte(foreign)); !errors.As(err, &merr) {
		t.Errorf("Replace() with another ontology error = %v, want OntologyMismatchError", err)
	}
}

func TestService_Discard(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if err := env.service.Discard(ctx, "lr-1"); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := env.service.Open(ctx, "lr-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() after discard error = %v, want ErrNotFound", err)
	}
	if err := env.service.Discard(ctx, "lr-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Discard() error = %v, want ErrNotFound", err)
	}
}

func TestService_ForcedFetchRefreshesOntology(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	carName := func() string {
		t.Helper()
		row, err := env.service.Open(ctx, "lr-1")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		car, ok := row.Object("car00001")
		if !ok {
			t.Fatal("car00001 missing")
		}
		return car.Feature().Name
	}

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := carName(); got != "Parked Car" {
		t.Fatalf("name = %q, want Parked Car", got)
	}

	renamed := ontologytest.Structure()
	renamed.Objects[0].Name = "Sedan"
	env.stub.PutOntology(testOntology, renamed)

	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := carName(); got != "Parked Car" {
		t.Errorf("plain fetch name = %q, want the cached Parked Car", got)
	}

	if _, err := env.service.Fetch(ctx, "lr-1", true); err != nil {
		t.Fatalf("forced Fetch() error = %v", err)
	}
	if got := carName(); got != "Sedan" {
		t.Errorf("forced fetch name = %q, want Sedan", got)
	}
}

func TestService_EnqueueSaveReusesPendingJob(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.service.EnqueueSave(ctx, "lr-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("EnqueueSave() for uncached row error = %v, want ErrNotFound", err)
	}
	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	first, err := env.service.EnqueueSave(ctx, "lr-1")
	if err != nil {
		t.Fatalf("EnqueueSave() error = %v", err)
	}
	second, err := env.service.EnqueueSave(ctx, "lr-1")
	if err != nil {
		t.Fatalf("EnqueueSave() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second save queued job %s, want existing %s", second.ID, first.ID)
	}

	jobs, err := env.service.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(jobs))
	}
}

func TestService_ConcurrentSavesQueueOneJob(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.service.Fetch(ctx, "lr-1", false); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := env.service.EnqueueSave(ctx, "lr-1")
			errs[i] = err
			if job != nil {
				ids[i] = job.ID
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("EnqueueSave() #%d error = %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Errorf("caller %d got job %s, want %s", i, ids[i], ids[0])
		}
	}
	jobs, err := env.service.ListJobs(ctx, 20)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(jobs))
	}
}
