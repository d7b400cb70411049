package wasm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Memory is the linear memory of an instance: a contiguous byte region sized in whole pages.
//
// Note: Memory is not safe for concurrent use.
// See https://www.w3.org/TR/wasm-core-1/#memory-instances%E2%91%A0
type Memory struct {
	buffer []byte
	// Min is the initial page count.
	Min uint32
	// Max is the page count Grow never exceeds.
	Max uint32
	// mapped is true when buffer is an anonymous mapping which must be released.
	mapped bool
}

// NewMemory allocates minPages zeroed pages which can later grow up to maxPages.
func NewMemory(minPages, maxPages uint32) (*Memory, error) {
	if maxPages > MemoryMaxPages {
		maxPages = MemoryMaxPages
	}
	if minPages > maxPages {
		return nil, fmt.Errorf("memory min %d pages over max %d pages", minPages, maxPages)
	}
	m := &Memory{Min: minPages, Max: maxPages}
	if err := m.resize(minPages); err != nil {
		return nil, err
	}
	return m, nil
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 {
	return uint32(len(m.buffer) >> MemoryPageSizeInBits)
}

// Len returns the current size in bytes. Ex. If the underlying memory has 1 page: 65536
func (m *Memory) Len() uint32 {
	return uint32(len(m.buffer))
}

// Bytes returns the underlying buffer. It is invalidated by Grow and Close.
func (m *Memory) Bytes() []byte {
	return m.buffer
}

// Grow adds delta pages, returning the previous page count, or false if that would exceed Max. The new pages are
// zeroed.
//
// See https://www.w3.org/TR/wasm-core-1/#grow-mem
func (m *Memory) Grow(delta uint32) (previous uint32, ok bool) {
	previous = m.Size()
	if delta == 0 {
		return previous, true
	}
	newPages := uint64(previous) + uint64(delta)
	if newPages > uint64(m.Max) {
		return 0, false
	}
	if err := m.resize(uint32(newPages)); err != nil {
		return 0, false
	}
	return previous, true
}

func (m *Memory) resize(pages uint32) error {
	size := MemoryPagesToBytesNum(pages)
	if size == 0 {
		return nil
	}
	buf, mapped, err := allocateMemory(int(size))
	if err != nil {
		return fmt.Errorf("allocate %d pages: %w", pages, err)
	}
	copy(buf, m.buffer)
	if err = m.release(); err != nil {
		_ = freeMemory(buf, mapped)
		return err
	}
	m.buffer, m.mapped = buf, mapped
	return nil
}

func (m *Memory) release() error {
	buf, mapped := m.buffer, m.mapped
	m.buffer, m.mapped = nil, false
	if buf == nil {
		return nil
	}
	return freeMemory(buf, mapped)
}

// Close releases the memory. Any further access is out of bounds.
func (m *Memory) Close() error {
	return m.release()
}

// CheckRange returns true if the byteCount bytes starting at offset are within the memory.
func (m *Memory) CheckRange(offset uint64, byteCount uint64) bool {
	return offset <= math.MaxUint32 && offset+byteCount <= uint64(len(m.buffer))
}

// Init copies data to offset, failing before any byte is written if it doesn't fit.
func (m *Memory) Init(offset uint32, data []byte) error {
	if !m.CheckRange(uint64(offset), uint64(len(data))) {
		return fmt.Errorf("%w: %d bytes at offset %d exceed memory of %d bytes",
			ErrRuntimeOutOfBoundsMemoryAccess, len(data), offset, len(m.buffer))
	}
	copy(m.buffer[offset:], data)
	return nil
}

// Read returns a view of byteCount bytes at the offset or returns false if out of range.
func (m *Memory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.CheckRange(uint64(offset), uint64(byteCount)) {
		return nil, false
	}
	return m.buffer[offset : offset+byteCount], true
}

// ReadUint8 reads a single byte at the offset or returns false if out of range.
func (m *Memory) ReadUint8(offset uint32) (byte, bool) {
	if !m.CheckRange(uint64(offset), 1) {
		return 0, false
	}
	return m.buffer[offset], true
}

// ReadUint16Le reads a uint16 in little-endian encoding at the offset or returns false if out of range.
func (m *Memory) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.CheckRange(uint64(offset), 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.buffer[offset:]), true
}

// ReadUint32Le reads a uint32 in little-endian encoding at the offset or returns false if out of range.
func (m *Memory) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.CheckRange(uint64(offset), 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.buffer[offset:]), true
}

// ReadUint64Le reads a uint64 in little-endian encoding at the offset or returns false if out of range.
func (m *Memory) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.CheckRange(uint64(offset), 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.buffer[offset:]), true
}

// ReadFloat32Le reads a float32 from 32 IEEE 754 little-endian encoded bits at the offset.
func (m *Memory) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(offset)
	return math.Float32frombits(v), ok
}

// ReadFloat64Le reads a float64 from 64 IEEE 754 little-endian encoded bits at the offset.
func (m *Memory) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(offset)
	return math.Float64frombits(v), ok
}

// Write copies v to the offset or returns false if out of range.
func (m *Memory) Write(offset uint32, v []byte) bool {
	if !m.CheckRange(uint64(offset), uint64(len(v))) {
		return false
	}
	copy(m.buffer[offset:], v)
	return true
}

// WriteUint8 writes a single byte at the offset or returns false if out of range.
func (m *Memory) WriteUint8(offset uint32, v byte) bool {
	if !m.CheckRange(uint64(offset), 1) {
		return false
	}
	m.buffer[offset] = v
	return true
}

// WriteUint16Le writes the value in little-endian encoding at the offset or returns false if out of range.
func (m *Memory) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.CheckRange(uint64(offset), 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.buffer[offset:], v)
	return true
}

// WriteUint32Le writes the value in little-endian encoding at the offset or returns false if out of range.
func (m *Memory) WriteUint32Le(offset, v uint32) bool {
	if !m.CheckRange(uint64(offset), 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buffer[offset:], v)
	return true
}

// WriteUint64Le writes the value in little-endian encoding at the offset or returns false if out of range.
func (m *Memory) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.CheckRange(uint64(offset), 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.buffer[offset:], v)
	return true
}

// WriteFloat32Le writes the value in 32 IEEE 754 little-endian encoded bits at the offset.
func (m *Memory) WriteFloat32Le(offset uint32, v float32) bool {
	return m.WriteUint32Le(offset, math.Float32bits(v))
}

// WriteFloat64Le writes the value in 64 IEEE 754 little-endian encoded bits at the offset.
func (m *Memory) WriteFloat64Le(offset uint32, v float64) bool {
	return m.WriteUint64Le(offset, math.Float64bits(v))
}
