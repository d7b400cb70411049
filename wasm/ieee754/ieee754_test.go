package ieee754

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloat32(t *testing.T) {
	for _, v := range []float32{0, 1.5, -2.25, math.MaxFloat32, float32(math.Inf(-1))} {
		actual, err := DecodeFloat32(bytes.NewReader(EncodeFloat32(v)))
		require.NoError(t, err)
		require.Equal(t, v, actual)
	}
}

func TestFloat64(t *testing.T) {
	for _, v := range []float64{0, 1.5, -2.25, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		actual, err := DecodeFloat64(bytes.NewReader(EncodeFloat64(v)))
		require.NoError(t, err)
		require.Equal(t, v, actual)
	}
}

func TestDecode_Truncated(t *testing.T) {
	_, err := DecodeFloat32(bytes.NewReader([]byte{1, 2}))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	_, err = DecodeFloat64(bytes.NewReader([]byte{1, 2, 3, 4}))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
