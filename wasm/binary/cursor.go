package binary

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/ieee754"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// Cursor is a forward-only reader over a binary which tracks the offset of the read in progress, so failures can
// be reported with a position.
type Cursor struct {
	data []byte
	pos  int
	// base is the offset of data[0] in the enclosing binary.
	base int
	// start is the position where the current typed read began.
	start int
}

// NewCursor returns a cursor at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// NewCursorAt returns a cursor over data, which begins at offset in an enclosing binary.
func NewCursorAt(data []byte, offset int) *Cursor {
	return &Cursor{data: data, base: offset}
}

// Offset is the position of the next byte, relative to the enclosing binary.
func (c *Cursor) Offset() int {
	return c.base + c.pos
}

// ReadOffset is the position where the most recent typed read began, relative to the enclosing binary.
func (c *Cursor) ReadOffset() int {
	return c.base + c.start
}

// Remaining is the count of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// EOF is true when all bytes were read.
func (c *Cursor) EOF() bool {
	return c.pos >= len(c.data)
}

// Error wraps err with the offset of the read in progress.
func (c *Cursor) Error(err error) error {
	return wasm.NewModuleLoadError(c.ReadOffset(), err)
}

// Errorf formats a ModuleLoadError at the offset of the read in progress.
func (c *Cursor) Errorf(format string, args ...interface{}) error {
	return c.Error(fmt.Errorf(format, args...))
}

// ReadByte implements io.ByteReader
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// Read implements io.Reader
func (c *Cursor) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.pos:])
	c.pos += n
	return n, nil
}

func (c *Cursor) begin() {
	c.start = c.pos
}

// ReadUint8 reads one byte.
func (c *Cursor) ReadUint8() (byte, error) {
	c.begin()
	b, err := c.ReadByte()
	if err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	return b, nil
}

// TryReadVarUint7 reads one byte when available. Reaching the end of data is not an error: ok is false.
func (c *Cursor) TryReadVarUint7() (b byte, ok bool, err error) {
	c.begin()
	if c.EOF() {
		return 0, false, nil
	}
	b, _ = c.ReadByte()
	if b >= 0x80 {
		return 0, false, fmt.Errorf("%w: %#x is not a varuint7", wasm.ErrInvalidByte, b)
	}
	return b, true, nil
}

// ReadVarUint1 reads a byte which must be 0 or 1.
func (c *Cursor) ReadVarUint1() (byte, error) {
	b, err := c.ReadUint8()
	if err != nil {
		return 0, err
	}
	if b > 1 {
		return 0, fmt.Errorf("%w: %#x is not a varuint1", wasm.ErrInvalidByte, b)
	}
	return b, nil
}

// ReadVarUint7 reads a byte whose high bit must be clear.
func (c *Cursor) ReadVarUint7() (byte, error) {
	b, err := c.ReadUint8()
	if err != nil {
		return 0, err
	}
	if b >= 0x80 {
		return 0, fmt.Errorf("%w: %#x is not a varuint7", wasm.ErrInvalidByte, b)
	}
	return b, nil
}

// ReadVarInt7 reads a signed 7-bit integer in one byte.
func (c *Cursor) ReadVarInt7() (int8, error) {
	b, err := c.ReadVarUint7()
	if err != nil {
		return 0, err
	}
	return int8(b<<1) >> 1, nil
}

// ReadVarUint32 reads an unsigned LEB128 value of at most 5 bytes.
func (c *Cursor) ReadVarUint32() (uint32, error) {
	c.begin()
	v, _, err := leb128.DecodeUint32(c)
	return v, err
}

// ReadVectorSize reads the element count of a vector. Each element takes at least one byte, so a count larger than
// the unread bytes fails before anything is allocated for it.
func (c *Cursor) ReadVectorSize() (uint32, error) {
	n, err := c.ReadVarUint32()
	if err != nil {
		return 0, err
	}
	if uint64(n) > uint64(c.Remaining()) {
		return 0, fmt.Errorf("size %d exceeds the %d remaining bytes", n, c.Remaining())
	}
	return n, nil
}

// ReadVarUint64 reads an unsigned LEB128 value of at most 10 bytes.
func (c *Cursor) ReadVarUint64() (uint64, error) {
	c.begin()
	v, _, err := leb128.DecodeUint64(c)
	return v, err
}

// ReadVarInt32 reads a signed LEB128 value of at most 5 bytes.
func (c *Cursor) ReadVarInt32() (int32, error) {
	c.begin()
	v, _, err := leb128.DecodeInt32(c)
	return v, err
}

// ReadVarInt33 reads a signed 33-bit LEB128 value, as used by block types.
func (c *Cursor) ReadVarInt33() (int64, error) {
	c.begin()
	v, _, err := leb128.DecodeInt33AsInt64(c)
	return v, err
}

// ReadVarInt64 reads a signed LEB128 value of at most 10 bytes.
func (c *Cursor) ReadVarInt64() (int64, error) {
	c.begin()
	v, _, err := leb128.DecodeInt64(c)
	return v, err
}

// ReadFixed32 reads a little-endian uint32.
func (c *Cursor) ReadFixed32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadFixed64 reads a little-endian uint64.
func (c *Cursor) ReadFixed64() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadFloat32 reads IEEE 754 bits.
func (c *Cursor) ReadFloat32() (float32, error) {
	c.begin()
	v, err := ieee754.DecodeFloat32(c)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return v, err
}

// ReadFloat64 reads IEEE 754 bits.
func (c *Cursor) ReadFloat64() (float64, error) {
	c.begin()
	v, err := ieee754.DecodeFloat64(c)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return v, err
}

// ReadBytes returns a view of the next n bytes.
func (c *Cursor) ReadBytes(n uint32) ([]byte, error) {
	c.begin()
	if uint64(n) > uint64(c.Remaining()) {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.data[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return b, nil
}

// ReadString reads n bytes which must be valid UTF-8.
func (c *Cursor) ReadString(n uint32) (string, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("name must be valid as utf8")
	}
	return string(b), nil
}

// ReadName reads a size-prefixed UTF-8 string.
func (c *Cursor) ReadName() (string, error) {
	n, err := c.ReadVarUint32()
	if err != nil {
		return "", fmt.Errorf("read size of name: %w", err)
	}
	return c.ReadString(n)
}
