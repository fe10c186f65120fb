package labelerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "instance and frame",
			err:  &InvalidGeometryError{Location: At("a1b2c3d4", 7), Shape: "polygon", Reason: "no points"},
			want: "invalid geometry (instance a1b2c3d4, frame 7): polygon: no points",
		},
		{
			name: "instance only",
			err:  &ConflictingAnswerError{Location: Instance("a1b2c3d4"), Reason: "frames 3-4 already answered"},
			want: "conflicting answer (instance a1b2c3d4): frames 3-4 already answered",
		},
		{
			name: "no location",
			err:  &ValidationError{Location: Nowhere, Reason: "negative frame -1"},
			want: "validation error: negative frame -1",
		},
		{
			name: "unsupported shape",
			err:  &UnsupportedShapeError{Location: Instance("ff00ff00"), Shape: "bitmask", Operation: "interpolation"},
			want: "unsupported shape (instance ff00ff00): bitmask cannot be used for interpolation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestMalformedLabelUnwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("decode: %w", &MalformedLabelError{Location: Nowhere, Reason: "parse payload", Err: cause})

	var malformed *MalformedLabelError
	require.True(t, errors.As(err, &malformed))
	assert.ErrorIs(t, err, cause)
}

func TestWithLocationFillsMissingFields(t *testing.T) {
	err := WithLocation(&ValidationError{Location: Nowhere, Reason: "out of bounds"}, At("0badf00d", 12))

	var v *ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "0badf00d", v.Instance)
	assert.Equal(t, 12, v.Frame)

	err = WithLocation(&ValidationError{Location: At("11111111", 3), Reason: "x"}, At("22222222", 9))
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "11111111", v.Instance)
	assert.Equal(t, 3, v.Frame)
}
