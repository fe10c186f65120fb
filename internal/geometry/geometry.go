// Package geometry holds the per-frame shapes an object instance carries.
// Coordinates are normalised to the frame size, as the platform stores them.
package geometry

import (
	"fmt"
	"math"
	"slices"

	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/ontology"
)

// Geometry is one of the shape payloads below.
type Geometry interface {
	Shape() ontology.Shape
	// Validate checks the constraints of the shape itself. Errors are
	// *labelerr.InvalidGeometryError without a location.
	Validate() error
	Equal(other Geometry) bool
}

// Point is a 2D coordinate.
type Point struct {
	X float64
	Y float64
}

func (p Point) finite() bool {
	return finite(p.X) && finite(p.Y)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func invalid(shape ontology.Shape, format string, args ...any) error {
	return &labelerr.InvalidGeometryError{
		Location: labelerr.Nowhere,
		Shape:    string(shape),
		Reason:   fmt.Sprintf(format, args...),
	}
}

// BoundingBox is an axis-aligned box anchored at its top-left corner.
type BoundingBox struct {
	X float64
	Y float64
	W float64
	H float64
}

func (b BoundingBox) Shape() ontology.Shape { return ontology.ShapeBoundingBox }

func (b BoundingBox) Validate() error {
	if !finite(b.X, b.Y, b.W, b.H) {
		return invalid(b.Shape(), "non-finite coordinate")
	}
	if b.W < 0 || b.H < 0 {
		return invalid(b.Shape(), "negative size %gx%g", b.W, b.H)
	}
	return nil
}

func (b BoundingBox) Equal(other Geometry) bool {
	o, ok := other.(BoundingBox)
	return ok && o == b
}

// Corners returns the four corners clockwise from the top-left.
func (b BoundingBox) Corners() [4]Point {
	return [4]Point{
		{X: b.X, Y: b.Y},
		{X: b.X + b.W, Y: b.Y},
		{X: b.X + b.W, Y: b.Y + b.H},
		{X: b.X, Y: b.Y + b.H},
	}
}

// BoxFromCorners builds a box from a quadrilateral. Exactly four corners of
// an axis-aligned rectangle are required, in any order.
func BoxFromCorners(corners []Point) (BoundingBox, error) {
	if len(corners) != 4 {
		return BoundingBox{}, invalid(ontology.ShapeBoundingBox, "need exactly 4 corners, got %d", len(corners))
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		if !c.finite() {
			return BoundingBox{}, invalid(ontology.ShapeBoundingBox, "non-finite corner")
		}
		minX, maxX = min(minX, c.X), max(maxX, c.X)
		minY, maxY = min(minY, c.Y), max(maxY, c.Y)
	}
	box := BoundingBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
	var seen [4]bool
	for _, c := range corners {
		onX := c.X == minX || c.X == maxX
		onY := c.Y == minY || c.Y == maxY
		if !onX || !onY {
			return BoundingBox{}, invalid(ontology.ShapeBoundingBox, "corner (%g, %g) is not axis-aligned", c.X, c.Y)
		}
		k := 0
		if c.X == maxX {
			k |= 1
		}
		if c.Y == maxY {
			k |= 2
		}
		seen[k] = true
	}
	if box.W > 0 && box.H > 0 && slices.Contains(seen[:], false) {
		return BoundingBox{}, invalid(ontology.ShapeBoundingBox, "corners do not span a rectangle")
	}
	return box, nil
}

// RotatableBoundingBox is a box rotated by Theta degrees about its centre.
type RotatableBoundingBox struct {
	X     float64
	Y     float64
	W     float64
	H     float64
	Theta float64
}

func (b RotatableBoundingBox) Shape() ontology.Shape { return ontology.ShapeRotatableBoundingBox }

func (b RotatableBoundingBox) Validate() error {
	if !finite(b.X, b.Y, b.W, b.H, b.Theta) {
		return invalid(b.Shape(), "non-finite coordinate")
	}
	if b.W < 0 || b.H < 0 {
		return invalid(b.Shape(), "negative size %gx%g", b.W, b.H)
	}
	return nil
}

func (b RotatableBoundingBox) Equal(other Geometry) bool {
	o, ok := other.(RotatableBoundingBox)
	return ok && o == b
}

// Keypoint is a single point annotation.
type Keypoint struct {
	X float64
	Y float64
}

func (k Keypoint) Shape() ontology.Shape { return ontology.ShapePoint }

func (k Keypoint) Validate() error {
	if !finite(k.X, k.Y) {
		return invalid(k.Shape(), "non-finite coordinate")
	}
	return nil
}

func (k Keypoint) Equal(other Geometry) bool {
	o, ok := other.(Keypoint)
	return ok && o == k
}

// Polygon is a closed outline.
type Polygon struct {
	Points []Point
}

func (p Polygon) Shape() ontology.Shape { return ontology.ShapePolygon }

func (p Polygon) Validate() error {
	return validatePoints(p.Shape(), p.Points)
}

func (p Polygon) Equal(other Geometry) bool {
	o, ok := other.(Polygon)
	return ok && slices.Equal(o.Points, p.Points)
}

// Polyline is an open path.
type Polyline struct {
	Points []Point
}

func (p Polyline) Shape() ontology.Shape { return ontology.ShapePolyline }

func (p Polyline) Validate() error {
	return validatePoints(p.Shape(), p.Points)
}

func (p Polyline) Equal(other Geometry) bool {
	o, ok := other.(Polyline)
	return ok && slices.Equal(o.Points, p.Points)
}

func validatePoints(shape ontology.Shape, points []Point) error {
	if len(points) == 0 {
		return invalid(shape, "at least 1 point required")
	}
	for i, p := range points {
		if !p.finite() {
			return invalid(shape, "point %d is not finite", i)
		}
	}
	return nil
}

// Bitmask is a run-length encoded mask placed at Top/Left within the frame.
type Bitmask struct {
	Top    int
	Left   int
	Width  int
	Height int
	RLE    string
}

func (b Bitmask) Shape() ontology.Shape { return ontology.ShapeBitmask }

func (b Bitmask) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return invalid(b.Shape(), "mask size %dx%d must be positive", b.Width, b.Height)
	}
	if b.Top < 0 || b.Left < 0 {
		return invalid(b.Shape(), "negative offset")
	}
	if b.RLE == "" {
		return invalid(b.Shape(), "empty rle string")
	}
	return nil
}

func (b Bitmask) Equal(other Geometry) bool {
	o, ok := other.(Bitmask)
	return ok && o == b
}

// Check validates g and that it is the shape the ontology object expects.
func Check(want ontology.Shape, g Geometry) error {
	if g == nil {
		return invalid(want, "missing geometry")
	}
	if g.Shape() != want {
		return invalid(want, "object expects %s, got %s", want, g.Shape())
	}
	return g.Validate()
}

// Clone returns a copy of g that shares no memory with it.
func Clone(g Geometry) Geometry {
	switch v := g.(type) {
	case Polygon:
		return Polygon{Points: slices.Clone(v.Points)}
	case Polyline:
		return Polyline{Points: slices.Clone(v.Points)}
	default:
		return g
	}
}
