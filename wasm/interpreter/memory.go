package interpreter

import (
	"math"

	"github.com/dfinity-lab/wasmjit/wasm"
)

// effectiveAddress pops the base address and adds the static offset. The sum is computed in 64 bits, so it never
// wraps around.
func (ce *callEngine) effectiveAddress(offset uint64) uint32 {
	ea := uint64(uint32(ce.pop())) + offset
	if ea > math.MaxUint32 {
		panic(wasm.ErrRuntimeOutOfBoundsMemoryAccess)
	}
	return uint32(ea)
}

func outOfBounds(ok bool) {
	if !ok {
		panic(wasm.ErrRuntimeOutOfBoundsMemoryAccess)
	}
}

func (ce *callEngine) load(memory *wasm.Memory, opcode wasm.Opcode, offset uint64) {
	ea := ce.effectiveAddress(offset)
	var v uint64
	switch opcode {
	case wasm.OpcodeI32Load, wasm.OpcodeF32Load, wasm.OpcodeI64Load32U:
		u, ok := memory.ReadUint32Le(ea)
		outOfBounds(ok)
		v = uint64(u)
	case wasm.OpcodeI64Load, wasm.OpcodeF64Load:
		u, ok := memory.ReadUint64Le(ea)
		outOfBounds(ok)
		v = u
	case wasm.OpcodeI32Load8S:
		b, ok := memory.ReadUint8(ea)
		outOfBounds(ok)
		v = uint64(uint32(int8(b)))
	case wasm.OpcodeI32Load8U, wasm.OpcodeI64Load8U:
		b, ok := memory.ReadUint8(ea)
		outOfBounds(ok)
		v = uint64(b)
	case wasm.OpcodeI32Load16S:
		u, ok := memory.ReadUint16Le(ea)
		outOfBounds(ok)
		v = uint64(uint32(int16(u)))
	case wasm.OpcodeI32Load16U, wasm.OpcodeI64Load16U:
		u, ok := memory.ReadUint16Le(ea)
		outOfBounds(ok)
		v = uint64(u)
	case wasm.OpcodeI64Load8S:
		b, ok := memory.ReadUint8(ea)
		outOfBounds(ok)
		v = uint64(int8(b))
	case wasm.OpcodeI64Load16S:
		u, ok := memory.ReadUint16Le(ea)
		outOfBounds(ok)
		v = uint64(int16(u))
	case wasm.OpcodeI64Load32S:
		u, ok := memory.ReadUint32Le(ea)
		outOfBounds(ok)
		v = uint64(int32(u))
	}
	ce.push(v)
}

func (ce *callEngine) store(memory *wasm.Memory, opcode wasm.Opcode, offset uint64) {
	v := ce.pop()
	ea := ce.effectiveAddress(offset)
	switch opcode {
	case wasm.OpcodeI32Store, wasm.OpcodeF32Store, wasm.OpcodeI64Store32:
		outOfBounds(memory.WriteUint32Le(ea, uint32(v)))
	case wasm.OpcodeI64Store, wasm.OpcodeF64Store:
		outOfBounds(memory.WriteUint64Le(ea, v))
	case wasm.OpcodeI32Store8, wasm.OpcodeI64Store8:
		outOfBounds(memory.WriteUint8(ea, byte(v)))
	case wasm.OpcodeI32Store16, wasm.OpcodeI64Store16:
		outOfBounds(memory.WriteUint16Le(ea, uint16(v)))
	}
}
