package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology/ontologytest"
	"github.com/heimdex/heimdex-labels/internal/wire"
)

const payload = `{
  "label_hash": "lr-1",
  "data_hash": "d-1",
  "data_title": "clip.mp4",
  "data_type": "video",
  "ontology_hash": "ont-1",
  "number_of_frames": 10,
  "data_units": {
    "d-1": {
      "data_hash": "d-1", "data_title": "clip.mp4", "data_type": "video/mp4",
      "data_sequence": 0, "width": 1280, "height": 720,
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

func writeFiles(t *testing.T) (ontologyPath, inputPath string) {
	t.Helper()
	dir := t.TempDir()

	structure, err := json.Marshal(ontologytest.Structure())
	require.NoError(t, err)
	ontologyPath = filepath.Join(dir, "ontology.json")
	require.NoError(t, os.WriteFile(ontologyPath, structure, 0o644))

	inputPath = filepath.Join(dir, "row.json")
	require.NoError(t, os.WriteFile(inputPath, []byte(payload), 0o644))
	return ontologyPath, inputPath
}

func newTestTool(t *testing.T) *tool {
	t.Helper()
	ontologyPath, inputPath := writeFiles(t)
	tl, err := newTool(ontologyPath, inputPath, nil)
	require.NoError(t, err)
	return tl
}

func TestNormalize(t *testing.T) {
	tl := newTestTool(t)

	var out bytes.Buffer
	require.NoError(t, tl.normalize(&out))

	row, err := wire.Parse(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "lr-1", row.LabelHash)
	assert.Len(t, row.DataUnits["d-1"].Labels.Frames, 2)
	assert.Contains(t, out.String(), "\n  \"label_hash\"")
}

func TestStats(t *testing.T) {
	tl := newTestTool(t)

	var out bytes.Buffer
	require.NoError(t, tl.stats(&out))

	text := out.String()
	assert.Contains(t, text, "label row lr-1 (video, 10 frames)")
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"KIND", "HASH", "NAME", "SHAPE", "FRAMES", "COUNT"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"object", "car00001", "Parked", "Car", "bounding_box", "0,4", "2"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"classification", "wthr0001", "Weather", "-", "0", "1"}, strings.Fields(lines[4]))
}

func TestValidate(t *testing.T) {
	tl := newTestTool(t)

	var out bytes.Buffer
	require.NoError(t, tl.validate(&out))
	assert.Equal(t, "lr-1: ok (1 objects, 1 classifications)\n", out.String())
}

func TestInterpolate(t *testing.T) {
	tl := newTestTool(t)

	var out bytes.Buffer
	require.NoError(t, tl.interpolate(&out, "car00001", "1-3"))

	row, err := wire.Parse(out.Bytes())
	require.NoError(t, err)
	fl := row.DataUnits["d-1"].Labels.Frames
	require.Len(t, fl, 5)
	require.NotNil(t, fl[2].Objects[0].BoundingBox)
	assert.InDelta(t, 0.3, fl[2].Objects[0].BoundingBox.X, 1e-9)
}

func TestInterpolate_Errors(t *testing.T) {
	tl := newTestTool(t)

	err := tl.interpolate(&bytes.Buffer{}, "car00001", "a-b")
	require.Error(t, err)

	err = tl.interpolate(&bytes.Buffer{}, "ghost000", "1-3")
	var verr *labelerr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ghost000", verr.Instance)
}

func TestNewTool_Errors(t *testing.T) {
	ontologyPath, inputPath := writeFiles(t)

	_, err := newTool(filepath.Join(t.TempDir(), "missing.json"), inputPath, nil)
	require.Error(t, err)

	_, err = newTool(ontologyPath, filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = newTool(ontologyPath, bad, nil)
	var malformed *labelerr.MalformedLabelError
	require.ErrorAs(t, err, &malformed)
}

func TestWithOutput_File(t *testing.T) {
	tl := newTestTool(t)
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, withOutput(&bytes.Buffer{}, path, tl.normalize))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = wire.Parse(data)
	require.NoError(t, err)
}

func TestRun(t *testing.T) {
	ontologyPath, inputPath := writeFiles(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"labelrow", "-t", ontologyPath, "-i", inputPath, "validate"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.True(t, strings.HasPrefix(stdout.String(), "lr-1: ok"))
}

func TestRun_UsageErrorsGoToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"labelrow", "validate"}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "labelrow")
}

func TestRun_FailuresGoToStderr(t *testing.T) {
	ontologyPath, inputPath := writeFiles(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"labelrow", "-t", ontologyPath, "-i", inputPath, "interpolate", "-n", "ghost000", "-f", "1-3"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "ghost000")
}
