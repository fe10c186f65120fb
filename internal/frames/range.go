// Package frames implements sets of frame indices stored as sorted,
// disjoint, non-adjacent closed intervals.
package frames

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-labels/internal/labelerr"
)

// MaxFrame is the highest frame index a range may hold. Interval arithmetic
// relies on End+1 not overflowing.
const MaxFrame = math.MaxInt32

// Interval is a closed interval of frames, Start <= End.
type Interval struct {
	Start int
	End   int
}

// Len returns the number of frames in the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start + 1
}

func (iv Interval) String() string {
	if iv.Start == iv.End {
		return strconv.Itoa(iv.Start)
	}
	return fmt.Sprintf("%d-%d", iv.Start, iv.End)
}

func (iv Interval) validate() error {
	if iv.Start < 0 || iv.End < 0 {
		return &labelerr.ValidationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("negative frame in interval [%d, %d]", iv.Start, iv.End),
		}
	}
	if iv.End > MaxFrame {
		return &labelerr.ValidationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("frame %d above the maximum %d", iv.End, MaxFrame),
		}
	}
	if iv.End < iv.Start {
		return &labelerr.ValidationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("interval end %d before start %d", iv.End, iv.Start),
		}
	}
	return nil
}

// Range is an immutable set of frames. The zero value is the empty range.
type Range struct {
	iv []Interval
}

// New builds a Range from intervals in any order, merging overlapping and
// adjacent ones.
func New(intervals ...Interval) (Range, error) {
	for _, iv := range intervals {
		if err := iv.validate(); err != nil {
			return Range{}, err
		}
	}
	return Range{iv: normalize(intervals)}, nil
}

// Single returns the range holding one frame.
func Single(frame int) (Range, error) {
	return New(Interval{Start: frame, End: frame})
}

// Span returns the range holding every frame from start to end inclusive.
func Span(start, end int) (Range, error) {
	return New(Interval{Start: start, End: end})
}

// FromList builds the minimal interval set covering the given frames.
func FromList(list []int) (Range, error) {
	if len(list) == 0 {
		return Range{}, nil
	}
	sorted := slices.Clone(list)
	slices.Sort(sorted)
	if sorted[0] < 0 {
		return Range{}, &labelerr.ValidationError{
			Location: labelerr.At("", sorted[0]),
			Reason:   "negative frame index",
		}
	}
	if top := sorted[len(sorted)-1]; top > MaxFrame {
		return Range{}, &labelerr.ValidationError{
			Location: labelerr.At("", top),
			Reason:   fmt.Sprintf("frame index above the maximum %d", MaxFrame),
		}
	}

	out := []Interval{{Start: sorted[0], End: sorted[0]}}
	for _, f := range sorted[1:] {
		last := &out[len(out)-1]
		if f <= last.End+1 {
			last.End = max(last.End, f)
			continue
		}
		out = append(out, Interval{Start: f, End: f})
	}
	return Range{iv: out}, nil
}

// Must panics if err is non-nil. It is intended for literals in tests and
// package-level tables.
func Must(r Range, err error) Range {
	if err != nil {
		panic(err)
	}
	return r
}

func normalize(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b Interval) int {
		return cmp.Compare(a.Start, b.Start)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End+1 {
			last.End = max(last.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// IsEmpty reports whether the range holds no frames.
func (r Range) IsEmpty() bool {
	return len(r.iv) == 0
}

// Len returns the number of frames in the range.
func (r Range) Len() int {
	n := 0
	for _, iv := range r.iv {
		n += iv.Len()
	}
	return n
}

// First returns the lowest frame. ok is false for the empty range.
func (r Range) First() (frame int, ok bool) {
	if r.IsEmpty() {
		return 0, false
	}
	return r.iv[0].Start, true
}

// Last returns the highest frame. ok is false for the empty range.
func (r Range) Last() (frame int, ok bool) {
	if r.IsEmpty() {
		return 0, false
	}
	return r.iv[len(r.iv)-1].End, true
}

// Contains reports whether frame is in the range.
func (r Range) Contains(frame int) bool {
	_, found := slices.BinarySearchFunc(r.iv, frame, func(iv Interval, f int) int {
		switch {
		case iv.End < f:
			return -1
		case iv.Start > f:
			return 1
		default:
			return 0
		}
	})
	return found
}

// Add returns the union of r and other.
func (r Range) Add(other Range) Range {
	if other.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return other
	}
	merged := make([]Interval, 0, len(r.iv)+len(other.iv))
	merged = append(merged, r.iv...)
	merged = append(merged, other.iv...)
	return Range{iv: normalize(merged)}
}

// Remove returns r without the frames of other. Intervals are split where
// other punches holes in them.
func (r Range) Remove(other Range) Range {
	if r.IsEmpty() || other.IsEmpty() {
		return r
	}
	cut := other.iv
	var out []Interval
	j := 0
	for _, iv := range r.iv {
		for j < len(cut) && cut[j].End < iv.Start {
			j++
		}
		start := iv.Start
		for k := j; k < len(cut) && cut[k].Start <= iv.End; k++ {
			if cut[k].Start > start {
				out = append(out, Interval{Start: start, End: cut[k].Start - 1})
			}
			if cut[k].End+1 > start {
				start = cut[k].End + 1
			}
		}
		if start <= iv.End {
			out = append(out, Interval{Start: start, End: iv.End})
		}
	}
	return Range{iv: out}
}

// Intersect returns the frames present in both r and other.
func (r Range) Intersect(other Range) Range {
	var out []Interval
	i, j := 0, 0
	for i < len(r.iv) && j < len(other.iv) {
		a, b := r.iv[i], other.iv[j]
		lo, hi := max(a.Start, b.Start), min(a.End, b.End)
		if lo <= hi {
			out = append(out, Interval{Start: lo, End: hi})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return Range{iv: out}
}

// Overlaps reports whether r and other share at least one frame.
func (r Range) Overlaps(other Range) bool {
	return !r.Intersect(other).IsEmpty()
}

// Within reports whether every frame of r lies in [lo, hi].
func (r Range) Within(lo, hi int) bool {
	if r.IsEmpty() {
		return true
	}
	first, _ := r.First()
	last, _ := r.Last()
	return first >= lo && last <= hi
}

// Equal reports whether both ranges hold the same frames.
func (r Range) Equal(other Range) bool {
	return slices.Equal(r.iv, other.iv)
}

// Intervals returns a copy of the canonical intervals.
func (r Range) Intervals() []Interval {
	return slices.Clone(r.iv)
}

// Frames returns every frame in ascending order.
func (r Range) Frames() []int {
	out := make([]int, 0, r.Len())
	for f := range r.All() {
		out = append(out, f)
	}
	return out
}

// All iterates the frames in ascending order.
func (r Range) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, iv := range r.iv {
			for f := iv.Start; f <= iv.End; f++ {
				if !yield(f) {
					return
				}
			}
		}
	}
}

// String renders the range as comma-separated intervals, e.g. "0-4,7,9-12".
func (r Range) String() string {
	parts := make([]string, len(r.iv))
	for i, iv := range r.iv {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ",")
}

// MarshalText encodes the range in its String form.
func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes the String form.
func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
