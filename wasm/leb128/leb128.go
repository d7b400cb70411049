// Package leb128 implements the variable-length integer encoding used throughout the WebAssembly binary format.
//
// See https://www.w3.org/TR/wasm-core-1/#integers%E2%91%A4
package leb128

import (
	"errors"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = maxVarintLen32
	maxVarintLen64 = 10
)

var (
	ErrOverflow32 = errors.New("overflows a 32-bit integer")
	ErrOverflow33 = errors.New("overflows a 33-bit integer")
	ErrOverflow64 = errors.New("overflows a 64-bit integer")
)

// EncodeInt32 encodes the signed value into a buffer in LEB128 format
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format
func EncodeInt64(value int64) (buf []byte) {
	for {
		b := byte(value & 0x7f)
		// Arithmetic shift keeps the sign.
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// EncodeUint32 encodes the value into a buffer in LEB128 format
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format
func EncodeUint64(value uint64) (buf []byte) {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// DecodeUint32 reads an unsigned 32-bit integer, returning the value and the count of bytes consumed.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	var shift uint32
	for i := 0; i < maxVarintLen32; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, unexpectedEOF(err)
		}
		if b < 0x80 {
			// Unused bits of the last byte must be zero.
			if i == maxVarintLen32-1 && b&0xf0 > 0 {
				return 0, 0, ErrOverflow32
			}
			return ret | uint32(b)<<shift, uint64(i) + 1, nil
		}
		ret |= uint32(b&0x7f) << shift
		shift += 7
	}
	return 0, 0, ErrOverflow32
}

// DecodeUint64 reads an unsigned 64-bit integer, returning the value and the count of bytes consumed.
func DecodeUint64(r io.ByteReader) (ret uint64, bytesRead uint64, err error) {
	var shift uint64
	for i := 0; i < maxVarintLen64; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, unexpectedEOF(err)
		}
		if b < 0x80 {
			if i == maxVarintLen64-1 && b > 1 {
				return 0, 0, ErrOverflow64
			}
			return ret | uint64(b)<<shift, uint64(i) + 1, nil
		}
		ret |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0, ErrOverflow64
}

// DecodeInt32 reads a signed 32-bit integer, returning the value and the count of bytes consumed.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	var shift int
	var b byte
	for i := 0; i < maxVarintLen32; i++ {
		if b, err = r.ReadByte(); err != nil {
			return 0, 0, unexpectedEOF(err)
		}
		ret |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if i == maxVarintLen32-1 &&
				((b&0x40 != 0 && b&0x7f < 0x78) || (b&0x40 == 0 && b&0x7f >= 0x08)) {
				return 0, 0, ErrOverflow32
			}
			if shift < 32 && b&0x40 != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow32
}

// DecodeInt33AsInt64 reads a signed 33-bit integer, used by block types, widened to int64.
func DecodeInt33AsInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for i := 0; i < maxVarintLen33; i++ {
		if b, err = r.ReadByte(); err != nil {
			return 0, 0, unexpectedEOF(err)
		}
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if i == maxVarintLen33-1 &&
				((b&0x40 != 0 && b&0x7f < 0x70) || (b&0x40 == 0 && b&0x7f >= 0x10)) {
				return 0, 0, ErrOverflow33
			}
			if b&0x40 != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow33
}

// DecodeInt64 reads a signed 64-bit integer, returning the value and the count of bytes consumed.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for i := 0; i < maxVarintLen64; i++ {
		if b, err = r.ReadByte(); err != nil {
			return 0, 0, unexpectedEOF(err)
		}
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			// Only the sign bit of the last byte is significant.
			if i == maxVarintLen64-1 && b != 0 && b != 0x7f {
				return 0, 0, ErrOverflow64
			}
			if shift < 64 && b&0x40 != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow64
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
