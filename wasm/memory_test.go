package wasm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPagesToBytesNum(t *testing.T) {
	for _, numPage := range []uint32{0, 1, 5, 10} {
		require.Equal(t, uint64(numPage*MemoryPageSize), MemoryPagesToBytesNum(numPage))
	}
	require.Equal(t, uint32(65535), MemoryMaxPages)
}

func TestNewMemory(t *testing.T) {
	m, err := NewMemory(1, 2)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, uint32(1), m.Size())
	require.Equal(t, MemoryPageSize, m.Len())
	for _, b := range m.Bytes() {
		require.Zero(t, b)
	}

	_, err = NewMemory(3, 2)
	require.EqualError(t, err, "memory min 3 pages over max 2 pages")
}

func TestNewMemory_Empty(t *testing.T) {
	m, err := NewMemory(0, 1)
	require.NoError(t, err)
	defer m.Close()

	require.Zero(t, m.Size())
	_, ok := m.ReadUint8(0)
	require.False(t, ok)
}

func TestMemory_Grow(t *testing.T) {
	m, err := NewMemory(1, 3)
	require.NoError(t, err)
	defer m.Close()

	require.True(t, m.WriteUint32Le(10, 0xdeadbeef))

	prev, ok := m.Grow(0)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)

	prev, ok = m.Grow(2)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(3), m.Size())

	// Contents survive the reallocation and new pages are zero.
	v, ok := m.ReadUint32Le(10)
	require.True(t, ok)
	require.Equal(t, uint32(0xdeadbeef), v)
	v, ok = m.ReadUint32Le(2*MemoryPageSize + 8)
	require.True(t, ok)
	require.Zero(t, v)

	_, ok = m.Grow(1)
	require.False(t, ok)
	require.Equal(t, uint32(3), m.Size())
}

func TestMemory_ReadWrite(t *testing.T) {
	m, err := NewMemory(1, 1)
	require.NoError(t, err)
	defer m.Close()

	end := m.Len()

	require.True(t, m.WriteUint8(end-1, 0xff))
	b, ok := m.ReadUint8(end - 1)
	require.True(t, ok)
	require.Equal(t, byte(0xff), b)

	require.True(t, m.WriteUint16Le(0, 0x1234))
	u16, ok := m.ReadUint16Le(0)
	require.True(t, ok)
	require.Equal(t, uint16(0x1234), u16)

	require.True(t, m.WriteUint64Le(end-8, math.MaxUint64))
	u64, ok := m.ReadUint64Le(end - 8)
	require.True(t, ok)
	require.Equal(t, uint64(math.MaxUint64), u64)

	require.True(t, m.WriteFloat32Le(16, 1.5))
	f32, ok := m.ReadFloat32Le(16)
	require.True(t, ok)
	require.Equal(t, float32(1.5), f32)

	require.True(t, m.WriteFloat64Le(32, -2.5))
	f64, ok := m.ReadFloat64Le(32)
	require.True(t, ok)
	require.Equal(t, -2.5, f64)

	require.True(t, m.Write(100, []byte("hello")))
	buf, ok := m.Read(100, 5)
	require.True(t, ok)
	require.Equal(t, "hello", string(buf))

	// Out of range.
	require.False(t, m.WriteUint32Le(end-3, 1))
	_, ok = m.ReadUint64Le(end - 7)
	require.False(t, ok)
	_, ok = m.Read(end, 1)
	require.False(t, ok)
	_, ok = m.ReadUint32Le(math.MaxUint32)
	require.False(t, ok)
}

func TestMemory_Init(t *testing.T) {
	m, err := NewMemory(1, 1)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Init(m.Len()-2, []byte{1, 2}))

	err = m.Init(m.Len()-1, []byte{3, 4})
	require.ErrorIs(t, err, ErrRuntimeOutOfBoundsMemoryAccess)

	// Nothing was copied by the failed init.
	b, _ := m.ReadUint8(m.Len() - 1)
	require.Equal(t, byte(2), b)
}

func TestMemory_Close(t *testing.T) {
	m, err := NewMemory(1, 1)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.Zero(t, m.Len())
	// Idempotent
	require.NoError(t, m.Close())
}
