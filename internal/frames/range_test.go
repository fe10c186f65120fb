package frames

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-labels/internal/labelerr"
)

func TestNewNormalizes(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{"empty", nil, nil},
		{"single", []Interval{{3, 5}}, []Interval{{3, 5}}},
		{"unsorted", []Interval{{10, 12}, {0, 2}}, []Interval{{0, 2}, {10, 12}}},
		{"overlapping", []Interval{{0, 5}, {3, 8}}, []Interval{{0, 8}}},
		{"adjacent merged", []Interval{{1, 3}, {4, 6}}, []Interval{{1, 6}}},
		{"contained", []Interval{{0, 10}, {2, 3}}, []Interval{{0, 10}}},
		{"gap of one kept", []Interval{{0, 1}, {3, 4}}, []Interval{{0, 1}, {3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.in...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Intervals())
		})
	}
}

func TestNegativeFrameIsValidationError(t *testing.T) {
	_, err := Span(-1, 4)
	var v *labelerr.ValidationError
	require.True(t, errors.As(err, &v))

	_, err = FromList([]int{3, -2, 5})
	require.True(t, errors.As(err, &v))
	assert.Equal(t, -2, v.Frame)

	_, err = Span(5, 2)
	require.True(t, errors.As(err, &v))
}

func TestFramesAboveMaximumRejected(t *testing.T) {
	var v *labelerr.ValidationError

	_, err := Span(0, math.MaxInt)
	require.True(t, errors.As(err, &v))

	_, err = Single(MaxFrame + 1)
	require.True(t, errors.As(err, &v))

	_, err = FromList([]int{1, math.MaxInt})
	require.True(t, errors.As(err, &v))
	assert.Equal(t, math.MaxInt, v.Frame)

	_, err = Parse(strconv.Itoa(math.MaxInt))
	require.True(t, errors.As(err, &v))
}

func TestRemoveUpToMaxFrame(t *testing.T) {
	top := Must(Span(MaxFrame-2, MaxFrame))
	assert.Equal(t, 3, top.Len())

	got := top.Remove(Must(Single(MaxFrame)))
	assert.Equal(t, []Interval{{MaxFrame - 2, MaxFrame - 1}}, got.Intervals())
	assert.True(t, top.Remove(top).IsEmpty())

	whole := Must(Span(0, MaxFrame))
	assert.Equal(t, MaxFrame+1, whole.Len())
	assert.Equal(t, []Interval{{0, 9}}, whole.Remove(Must(Span(10, MaxFrame))).Intervals())
}

func TestEmptyDistinctFromFrameZero(t *testing.T) {
	var empty Range
	zero := Must(Single(0))

	assert.True(t, empty.IsEmpty())
	assert.False(t, zero.IsEmpty())
	assert.False(t, empty.Contains(0))
	assert.True(t, zero.Contains(0))
	assert.False(t, empty.Equal(zero))
}

func TestRemoveSplitsIntervals(t *testing.T) {
	r := Must(Span(0, 4))
	got := r.Remove(Must(Single(2)))

	assert.Equal(t, []Interval{{0, 1}, {3, 4}}, got.Intervals())
	assert.False(t, got.Contains(2))

	got = Must(New(Interval{0, 10}, Interval{20, 30})).Remove(Must(New(Interval{5, 22}, Interval{25, 25}, Interval{40, 50})))
	assert.Equal(t, []Interval{{0, 4}, {23, 24}, {26, 30}}, got.Intervals())

	got = Must(Span(3, 6)).Remove(Must(Span(0, 100)))
	assert.True(t, got.IsEmpty())
}

func TestIntersect(t *testing.T) {
	a := Must(New(Interval{0, 5}, Interval{10, 15}))
	b := Must(New(Interval{3, 12}, Interval{14, 20}))

	assert.Equal(t, []Interval{{3, 5}, {10, 12}, {14, 15}}, a.Intersect(b).Intervals())
	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(Must(Span(6, 9))))
}

func TestAddIsUnion(t *testing.T) {
	a := Must(New(Interval{0, 2}, Interval{8, 9}))
	b := Must(New(Interval{3, 4}, Interval{6, 6}))

	got := a.Add(b)
	assert.Equal(t, []Interval{{0, 4}, {6, 6}, {8, 9}}, got.Intervals())
	assert.Equal(t, 8, got.Len())
	assert.Equal(t, "0-4,6,8-9", got.String())
}

func TestFrameListRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		list := make([]int, rng.IntN(40))
		for j := range list {
			list[j] = rng.IntN(60)
		}

		r, err := FromList(list)
		require.NoError(t, err)

		want := slices.Compact(slices.Sorted(slices.Values(list)))
		if len(want) == 0 {
			want = []int{}
		}
		assert.Equal(t, want, r.Frames())

		ivs := r.Intervals()
		for k := 1; k < len(ivs); k++ {
			assert.Greater(t, ivs[k].Start, ivs[k-1].End+1, "intervals must be disjoint and non-adjacent")
		}
	}
}

func TestFirstLastWithin(t *testing.T) {
	r := Must(New(Interval{4, 6}, Interval{9, 12}))
	first, ok := r.First()
	require.True(t, ok)
	last, _ := r.Last()

	assert.Equal(t, 4, first)
	assert.Equal(t, 12, last)
	assert.True(t, r.Within(0, 12))
	assert.False(t, r.Within(5, 20))

	_, ok = Range{}.First()
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"empty", "", "", nil},
		{"single frame", "7", "7", nil},
		{"span", "0-4", "0-4", nil},
		{"mixed with spaces", " 9-12, 0-4 ,7", "0-4,7,9-12", nil},
		{"adjacent merge", "0-3,4-6", "0-6", nil},
		{"trailing comma", "0-4,", "", ErrInvalidRange},
		{"garbage", "a-b", "", ErrInvalidRange},
		{"three parts", "1-2-3", "", ErrInvalidRange},
		{"open end", "5-", "", ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseReversedIsValidationError(t *testing.T) {
	_, err := Parse("9-3")
	var v *labelerr.ValidationError
	assert.True(t, errors.As(err, &v))
}

func TestTextMarshalling(t *testing.T) {
	r := Must(New(Interval{1, 3}, Interval{8, 8}))
	text, err := r.MarshalText()
	require.NoError(t, err)

	var back Range
	require.NoError(t, back.UnmarshalText(text))
	assert.True(t, r.Equal(back))
}
