package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	exportpkg "github.com/heimdex/heimdex-labels/internal/export"
)

func (ts *testServer) export(t *testing.T, hash string, req exportpkg.ExportRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	return ts.do(t, http.MethodPost, "/label-rows/"+hash+"/export/edl", bytes.NewReader(body))
}

func TestExportEDL_HappyPath(t *testing.T) {
	ts := setupTestServer(t)
	ts.fetch(t, "lr-1")
	outDir := t.TempDir()

	resp := ts.export(t, "lr-1", exportpkg.ExportRequest{
		ProjectName: "Project One",
		OutputDir:   outDir,
		Instances:   []string{"car00001", "missing0"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out exportpkg.ExportResponse
	decodeResponse(t, resp, &out)
	if out.Status != "ok" || out.Format != "edl" {
		t.Errorf("response = %+v", out)
	}
	if out.ClipCount != 2 {
		t.Errorf("clip_count = %d, want 2", out.ClipCount)
	}
	if len(out.UnresolvedInstances) != 1 || out.UnresolvedInstances[0] != "missing0" {
		t.Errorf("unresolved = %v, want [missing0]", out.UnresolvedInstances)
	}

	wantPath := filepath.Join(outDir, "Project_One.edl")
	if out.OutputPath != wantPath {
		t.Errorf("output_path = %q, want %q", out.OutputPath, wantPath)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	edl := string(data)
	for _, want := range []string{
		"TITLE: Project One",
		"FCM: NON-DROP FRAME",
		"* FROM CLIP NAME:  Parked Car car00001",
		"* MEDIA PATH:  /media/clip.mp4",
		"00:00:00:04 00:00:00:05",
	} {
		if !strings.Contains(edl, want) {
			t.Errorf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestExportEDL_AllInstancesDefaultsToDataTitle(t *testing.T) {
	ts := setupTestServer(t)
	ts.fetch(t, "lr-1")
	outDir := t.TempDir()

	resp := ts.export(t, "lr-1", exportpkg.ExportRequest{OutputDir: outDir})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out exportpkg.ExportResponse
	decodeResponse(t, resp, &out)
	if out.ClipCount != 3 {
		t.Errorf("clip_count = %d, want 3", out.ClipCount)
	}
	if out.UnresolvedInstances == nil || len(out.UnresolvedInstances) != 0 {
		t.Errorf("unresolved = %#v, want empty list", out.UnresolvedInstances)
	}
	if filepath.Base(out.OutputPath) != "clip.mp4.edl" {
		t.Errorf("output file = %q, want clip.mp4.edl", filepath.Base(out.OutputPath))
	}
}

func TestExportEDL_DefaultExportDir(t *testing.T) {
	exportDir := t.TempDir()
	ts := setupTestServerWith(t, func(cfg *ServerConfig) { cfg.ExportDir = exportDir })
	ts.fetch(t, "lr-1")

	resp := ts.export(t, "lr-1", exportpkg.ExportRequest{ProjectName: "Review"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "Review.edl")); err != nil {
		t.Fatalf("export not written to the default directory: %v", err)
	}
}

func TestExportEDL_InvalidOutputDir(t *testing.T) {
	ts := setupTestServer(t)
	ts.fetch(t, "lr-1")

	for _, dir := range []string{"", "relative/dir", filepath.Join(t.TempDir(), "missing")} {
		resp := ts.export(t, "lr-1", exportpkg.ExportRequest{OutputDir: dir})
		expectError(t, resp, http.StatusBadRequest, "BAD_REQUEST")
	}
}

func TestExportEDL_NothingResolvable(t *testing.T) {
	ts := setupTestServer(t)
	ts.fetch(t, "lr-1")

	resp := ts.export(t, "lr-1", exportpkg.ExportRequest{
		OutputDir: t.TempDir(),
		Instances: []string{"ghost000"},
	})
	expectError(t, resp, http.StatusUnprocessableEntity, "UNRESOLVABLE_CLIPS")
}

func TestExportEDL_NotCached(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.export(t, "lr-1", exportpkg.ExportRequest{OutputDir: t.TempDir()})
	expectError(t, resp, http.StatusNotFound, "NOT_FOUND")
}

func TestExportEDL_InvalidBody(t *testing.T) {
	ts := setupTestServer(t)
	ts.fetch(t, "lr-1")

	resp := ts.do(t, http.MethodPost, "/label-rows/lr-1/export/edl", strings.NewReader("not json"))
	expectError(t, resp, http.StatusBadRequest, "BAD_REQUEST")
}

func TestExportEDL_PreflightThroughRouter(t *testing.T) {
	ts := setupTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.url+"/label-rows/lr-1/export/edl", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Origin", "https://acme.app.heimdex.co")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !containsHeader(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST", resp.Header.Get("Access-Control-Allow-Methods"))
	}
}
