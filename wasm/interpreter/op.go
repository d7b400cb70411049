package interpreter

import "github.com/dfinity-lab/wasmjit/wasm"

// opKind is the operation an op performs. Numeric, load and store ops further dispatch on their wasm opcode.
type opKind byte

const (
	kindUnreachable opKind = iota
	kindConst
	kindNumeric
	kindDrop
	kindSelect
	kindLocalGet
	kindLocalSet
	kindLocalTee
	kindGlobalGet
	kindGlobalSet
	kindLoad
	kindStore
	kindMemorySize
	kindMemoryGrow
	kindBr
	kindBrIf
	kindBrIfZero
	kindBrTable
	kindTruncate
	kindCall
	kindCallIndirect
	kindStoreOutput
	kindReturn
)

// branch moves the top keep values to height, relative to the frame, then continues at addr.
//
// Until the body is finished, addr holds the compiler.Label instead of the address.
type branch struct {
	addr   uint64
	keep   int
	height int
}

// op is the non-interface union of all operations.
type op struct {
	kind   opKind
	opcode wasm.Opcode
	// u1 is the constant bits, the memory offset, or a local, global, function or type index. u2 is the local of
	// kindStoreOutput.
	u1, u2 uint64
	br     branch
	// targets of kindBrTable. The last one is the default.
	targets []branch
	// outs are the caller locals receiving results after the first.
	outs []uint32
}

// function is a lowered function body.
type function struct {
	index     uint32
	sig       *wasm.FunctionType
	body      []op
	numLocals int
}
