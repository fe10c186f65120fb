package interpolate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/geometry"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
)

func TestLerpPointIsExact(t *testing.T) {
	g, err := Fill(map[int]geometry.Geometry{
		0:  geometry.Keypoint{X: 0, Y: 0},
		10: geometry.Keypoint{X: 10, Y: 10},
	}, frames.Must(frames.Span(0, 10)))
	require.NoError(t, err)

	assert.Len(t, g, 9)
	assert.Equal(t, geometry.Keypoint{X: 5, Y: 5}, g[5])
	assert.NotContains(t, g, 0)
	assert.NotContains(t, g, 10)
}

func TestLerpShapes(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi geometry.Geometry
		want   geometry.Geometry
	}{
		{
			name: "box",
			lo:   geometry.BoundingBox{X: 0, Y: 0, W: 0.2, H: 0.2},
			hi:   geometry.BoundingBox{X: 0.5, Y: 0.25, W: 0.4, H: 0.2},
			want: geometry.BoundingBox{X: 0.25, Y: 0.125, W: 0.30000000000000004, H: 0.2},
		},
		{
			name: "rotatable box",
			lo:   geometry.RotatableBoundingBox{W: 1, H: 1, Theta: 0},
			hi:   geometry.RotatableBoundingBox{W: 1, H: 1, Theta: 90},
			want: geometry.RotatableBoundingBox{W: 1, H: 1, Theta: 45},
		},
		{
			name: "polygon",
			lo:   geometry.Polygon{Points: []geometry.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}}},
			hi:   geometry.Polygon{Points: []geometry.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}}},
			want: geometry.Polygon{Points: []geometry.Point{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}}},
		},
		{
			name: "polyline",
			lo:   geometry.Polyline{Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}},
			hi:   geometry.Polyline{Points: []geometry.Point{{X: 0, Y: 2}, {X: 1, Y: 3}}},
			want: geometry.Polyline{Points: []geometry.Point{{X: 0, Y: 1}, {X: 1, Y: 2}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lerp(tt.lo, tt.hi, 0.5)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Lerp() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPointCountMismatch(t *testing.T) {
	_, err := Fill(map[int]geometry.Geometry{
		2: geometry.Polygon{Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
		6: geometry.Polygon{Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}},
	}, frames.Must(frames.Span(0, 10)))

	var ie *labelerr.InterpolationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 3, ie.Frame)
}

func TestBitmaskUnsupported(t *testing.T) {
	mask := geometry.Bitmask{Width: 2, Height: 2, RLE: "4"}
	_, err := Fill(map[int]geometry.Geometry{0: mask, 4: mask}, frames.Must(frames.Span(0, 4)))

	var ue *labelerr.UnsupportedShapeError
	assert.True(t, errors.As(err, &ue))

	_, err = Lerp(mask, mask, 0.5)
	assert.True(t, errors.As(err, &ue))
}

func TestTooFewKeyframes(t *testing.T) {
	_, err := Fill(map[int]geometry.Geometry{3: geometry.Keypoint{}}, frames.Must(frames.Span(0, 10)))
	var ie *labelerr.InterpolationError
	assert.True(t, errors.As(err, &ie))
}

func TestFillWorksGapByGap(t *testing.T) {
	keys := map[int]geometry.Geometry{
		0:  geometry.Keypoint{X: 0, Y: 0},
		4:  geometry.Keypoint{X: 4, Y: 0},
		8:  geometry.Keypoint{X: 4, Y: 8},
		20: geometry.Keypoint{X: 0, Y: 0},
	}
	// Frames 2 and 6 come from different gaps; 25 is past the last key.
	target := frames.Must(frames.FromList([]int{2, 6, 25}))

	got, err := Fill(keys, target)
	require.NoError(t, err)

	assert.Equal(t, map[int]geometry.Geometry{
		2: geometry.Keypoint{X: 2, Y: 0},
		6: geometry.Keypoint{X: 4, Y: 4},
	}, got)
}
