package binary

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

func TestCursor_ReadOffset(t *testing.T) {
	c := NewCursorAt([]byte{0x01, 0xe5, 0x8e, 0x26, 'h', 'i'}, 100)

	b, err := c.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, byte(1), b)
	require.Equal(t, 100, c.ReadOffset())

	v, err := c.ReadVarUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(624485), v)
	require.Equal(t, 101, c.ReadOffset())
	require.Equal(t, 104, c.Offset())

	s, err := c.ReadString(2)
	require.NoError(t, err)
	require.Equal(t, "hi", s)
	require.True(t, c.EOF())

	_, err = c.ReadUint8()
	require.Equal(t, io.ErrUnexpectedEOF, err)
	require.EqualError(t, c.Errorf("oops"), "malformed module at offset 106: oops")
}

func TestCursor_TryReadVarUint7(t *testing.T) {
	c := NewCursor([]byte{0x0b, 0x80})

	b, ok, err := c.TryReadVarUint7()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0x0b), b)

	_, _, err = c.TryReadVarUint7()
	require.ErrorIs(t, err, wasm.ErrInvalidByte)

	_, ok, err = c.TryReadVarUint7()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCursor_Reads(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		read     func(c *Cursor) (interface{}, error)
		expected interface{}
	}{
		{
			name:     "varuint1",
			input:    []byte{0x01},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadVarUint1() },
			expected: byte(1),
		},
		{
			name:     "varint7",
			input:    []byte{0x7f},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadVarInt7() },
			expected: int8(-1),
		},
		{
			name:     "varint7 block type",
			input:    []byte{0x40},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadVarInt7() },
			expected: int8(-64),
		},
		{
			name:     "varint33",
			input:    []byte{0x40},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadVarInt33() },
			expected: int64(-64),
		},
		{
			name:     "varint64",
			input:    leb128.EncodeInt64(-1 << 63),
			read:     func(c *Cursor) (interface{}, error) { return c.ReadVarInt64() },
			expected: int64(-1 << 63),
		},
		{
			name:     "varuint64",
			input:    leb128.EncodeUint64(1 << 40),
			read:     func(c *Cursor) (interface{}, error) { return c.ReadVarUint64() },
			expected: uint64(1 << 40),
		},
		{
			name:     "fixed32",
			input:    []byte{0x78, 0x56, 0x34, 0x12},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadFixed32() },
			expected: uint32(0x12345678),
		},
		{
			name:     "float32",
			input:    []byte{0x00, 0x00, 0xc0, 0x3f},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadFloat32() },
			expected: float32(1.5),
		},
		{
			name:     "float64",
			input:    []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadFloat64() },
			expected: float64(1.5),
		},
		{
			name:     "name",
			input:    []byte{0x03, 'a', 'b', 'c'},
			read:     func(c *Cursor) (interface{}, error) { return c.ReadName() },
			expected: "abc",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			c := NewCursor(tc.input)
			actual, err := tc.read(c)
			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)
			require.True(t, c.EOF())
		})
	}
}

func TestCursor_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		read        func(c *Cursor) error
		expectedErr string
	}{
		{
			name:  "varuint1 out of range",
			input: []byte{0x02},
			read: func(c *Cursor) error {
				_, err := c.ReadVarUint1()
				return err
			},
			expectedErr: "invalid byte: 0x2 is not a varuint1",
		},
		{
			name:  "varuint32 too long",
			input: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00},
			read: func(c *Cursor) error {
				_, err := c.ReadVarUint32()
				return err
			},
			expectedErr: "overflows a 32-bit integer",
		},
		{
			name:  "vector size past the end",
			input: []byte{0x03, 0x01, 0x02},
			read: func(c *Cursor) error {
				_, err := c.ReadVectorSize()
				return err
			},
			expectedErr: "size 3 exceeds the 2 remaining bytes",
		},
		{
			name:  "truncated fixed64",
			input: []byte{0x01, 0x02},
			read: func(c *Cursor) error {
				_, err := c.ReadFixed64()
				return err
			},
			expectedErr: "unexpected EOF",
		},
		{
			name:  "truncated float32",
			input: []byte{0x01},
			read: func(c *Cursor) error {
				_, err := c.ReadFloat32()
				return err
			},
			expectedErr: "unexpected EOF",
		},
		{
			name:  "invalid utf8",
			input: []byte{0x02, 0xff, 0xfe},
			read: func(c *Cursor) error {
				_, err := c.ReadName()
				return err
			},
			expectedErr: "name must be valid as utf8",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			require.EqualError(t, tc.read(NewCursor(tc.input)), tc.expectedErr)
		})
	}
}
