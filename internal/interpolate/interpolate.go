// Package interpolate fills geometry between two keyframes of the same
// object by pointwise linear interpolation.
package interpolate

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/geometry"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// Lerp returns the geometry at fraction t between lo (t=0) and hi (t=1).
// Both must be the same shape and, for polygons and polylines, have the
// same number of points.
func Lerp(lo, hi geometry.Geometry, t float64) (geometry.Geometry, error) {
	if lo.Shape() == ontology.ShapeBitmask || hi.Shape() == ontology.ShapeBitmask {
		return nil, &labelerr.UnsupportedShapeError{
			Location:  labelerr.Nowhere,
			Shape:     string(ontology.ShapeBitmask),
			Operation: "interpolation",
		}
	}
	if lo.Shape() != hi.Shape() {
		return nil, &labelerr.InterpolationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("keyframes differ in shape: %s and %s", lo.Shape(), hi.Shape()),
		}
	}

	a, b := vector(lo), vector(hi)
	if len(a) != len(b) {
		return nil, &labelerr.InterpolationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("keyframes have %d and %d points", len(a)/2, len(b)/2),
		}
	}

	diff := make([]float64, len(a))
	floats.SubTo(diff, b, a)
	out := slices.Clone(a)
	floats.AddScaled(out, t, diff)
	return fromVector(lo, out), nil
}

func vector(g geometry.Geometry) []float64 {
	switch v := g.(type) {
	case geometry.BoundingBox:
		return []float64{v.X, v.Y, v.W, v.H}
	case geometry.RotatableBoundingBox:
		return []float64{v.X, v.Y, v.W, v.H, v.Theta}
	case geometry.Keypoint:
		return []float64{v.X, v.Y}
	case geometry.Polygon:
		return flatten(v.Points)
	case geometry.Polyline:
		return flatten(v.Points)
	}
	return nil
}

func flatten(points []geometry.Point) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		out = append(out, p.X, p.Y)
	}
	return out
}

func unflatten(v []float64) []geometry.Point {
	out := make([]geometry.Point, len(v)/2)
	for i := range out {
		out[i] = geometry.Point{X: v[2*i], Y: v[2*i+1]}
	}
	return out
}

func fromVector(like geometry.Geometry, v []float64) geometry.Geometry {
	switch like.(type) {
	case geometry.BoundingBox:
		return geometry.BoundingBox{X: v[0], Y: v[1], W: v[2], H: v[3]}
	case geometry.RotatableBoundingBox:
		return geometry.RotatableBoundingBox{X: v[0], Y: v[1], W: v[2], H: v[3], Theta: v[4]}
	case geometry.Keypoint:
		return geometry.Keypoint{X: v[0], Y: v[1]}
	case geometry.Polygon:
		return geometry.Polygon{Points: unflatten(v)}
	case geometry.Polyline:
		return geometry.Polyline{Points: unflatten(v)}
	}
	return nil
}

// Fill interpolates every frame of target that lies strictly between two
// consecutive keyframes. Each gap is bounded by its two nearest keyframes;
// frames before the first or after the last keyframe are left alone.
func Fill(keys map[int]geometry.Geometry, target frames.Range) (map[int]geometry.Geometry, error) {
	if len(keys) < 2 {
		return nil, &labelerr.InterpolationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("need at least 2 keyframes, have %d", len(keys)),
		}
	}

	order := make([]int, 0, len(keys))
	for f, g := range keys {
		if g.Shape() == ontology.ShapeBitmask {
			return nil, &labelerr.UnsupportedShapeError{
				Location:  labelerr.At("", f),
				Shape:     string(ontology.ShapeBitmask),
				Operation: "interpolation",
			}
		}
		order = append(order, f)
	}
	slices.Sort(order)

	out := make(map[int]geometry.Geometry)
	for i := 1; i < len(order); i++ {
		lo, hi := order[i-1], order[i]
		if hi-lo < 2 {
			continue
		}
		gap, err := frames.Span(lo+1, hi-1)
		if err != nil {
			return nil, err
		}
		gap = gap.Intersect(target)
		if gap.IsEmpty() {
			continue
		}

		for f := range gap.All() {
			t := float64(f-lo) / float64(hi-lo)
			g, err := Lerp(keys[lo], keys[hi], t)
			if err != nil {
				return nil, labelerr.WithLocation(err, labelerr.At("", f))
			}
			out[f] = g
		}
	}
	return out, nil
}
