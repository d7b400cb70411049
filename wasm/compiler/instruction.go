package compiler

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/dfinity-lab/wasmjit/wasm"
	wasmbinary "github.com/dfinity-lab/wasmjit/wasm/binary"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// BlockTypeEmpty is the block type of a block without params or results, encoded as 0x40.
const BlockTypeEmpty int64 = -0x40

// blockValueType returns the single result type of a block type encoded as a negative value type.
func blockValueType(bt int64) (wasm.ValueType, bool) {
	if bt >= -4 && bt <= -1 {
		return wasm.ValueType(bt & 0x7f), true
	}
	return 0, false
}

// Instruction is one decoded instruction of a function body. Only the fields its opcode defines are set, so two
// instructions are equal when all fields are.
type Instruction struct {
	Opcode wasm.Opcode

	// BlockType is set for block, loop and if: BlockTypeEmpty, a single result encoded as a negative value type
	// (-1 is i32), or a non-negative index in the type section.
	BlockType int64

	// Index is the immediate of br, br_if, call, call_indirect (type index), local.* and global.*.
	Index uint32

	// Targets are the label depths of br_table. Its default is Index.
	Targets []uint32

	// Reserved is the zero byte of call_indirect, memory.size and memory.grow.
	Reserved byte

	// Align and Offset are the memory argument of loads and stores.
	Align, Offset uint32

	// Value holds the bits of a constant: i32 is zero-extended, floats are IEEE 754.
	Value uint64
}

// Equal returns true when both instructions have the same opcode and immediates.
func (i *Instruction) Equal(o *Instruction) bool {
	if i.Opcode != o.Opcode || i.BlockType != o.BlockType || i.Index != o.Index || i.Reserved != o.Reserved ||
		i.Align != o.Align || i.Offset != o.Offset || i.Value != o.Value || len(i.Targets) != len(o.Targets) {
		return false
	}
	for k, t := range i.Targets {
		if t != o.Targets[k] {
			return false
		}
	}
	return true
}

// immediateKind selects how the immediates of an opcode are decoded and encoded.
type immediateKind byte

const (
	immediateNone immediateKind = iota
	immediateBlockType
	immediateIndex
	immediateBranchTable
	immediateCallIndirect
	immediateMemory
	immediateReserved
	immediateI32
	immediateI64
	immediateF32
	immediateF64
)

// instructionInfo is the dispatch table entry of an opcode.
type instructionInfo struct {
	immediate immediateKind
	compile   func(c *CompilationContext, in *Instruction) error
}

// instructions is indexed by opcode. A nil entry is an invalid opcode.
var instructions [256]*instructionInfo

func init() {
	set := func(kind immediateKind, compile func(*CompilationContext, *Instruction) error, ops ...wasm.Opcode) {
		for _, op := range ops {
			instructions[op] = &instructionInfo{immediate: kind, compile: compile}
		}
	}

	set(immediateNone, compileUnreachable, wasm.OpcodeUnreachable)
	set(immediateNone, compileNop, wasm.OpcodeNop)
	set(immediateBlockType, compileBlock, wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf)
	set(immediateNone, compileElse, wasm.OpcodeElse)
	set(immediateNone, compileEnd, wasm.OpcodeEnd)
	set(immediateIndex, compileBr, wasm.OpcodeBr)
	set(immediateIndex, compileBrIf, wasm.OpcodeBrIf)
	set(immediateBranchTable, compileBrTable, wasm.OpcodeBrTable)
	set(immediateNone, compileReturn, wasm.OpcodeReturn)
	set(immediateIndex, compileCall, wasm.OpcodeCall)
	set(immediateCallIndirect, compileCallIndirect, wasm.OpcodeCallIndirect)
	set(immediateNone, compileDrop, wasm.OpcodeDrop)
	set(immediateNone, compileSelect, wasm.OpcodeSelect)
	set(immediateIndex, compileLocalGet, wasm.OpcodeLocalGet)
	set(immediateIndex, compileLocalSet, wasm.OpcodeLocalSet)
	set(immediateIndex, compileLocalTee, wasm.OpcodeLocalTee)
	set(immediateIndex, compileGlobalGet, wasm.OpcodeGlobalGet)
	set(immediateIndex, compileGlobalSet, wasm.OpcodeGlobalSet)
	for op := range memoryAccesses {
		set(immediateMemory, compileMemoryAccess, op)
	}
	set(immediateReserved, compileMemorySize, wasm.OpcodeMemorySize)
	set(immediateReserved, compileMemoryGrow, wasm.OpcodeMemoryGrow)
	set(immediateI32, compileConst, wasm.OpcodeI32Const)
	set(immediateI64, compileConst, wasm.OpcodeI64Const)
	set(immediateF32, compileConst, wasm.OpcodeF32Const)
	set(immediateF64, compileConst, wasm.OpcodeF64Const)
	for op := range numericSignatures {
		set(immediateNone, compileNumeric, op)
	}
}

// DecodeInstruction reads the opcode and immediates of one instruction.
func DecodeInstruction(r *wasmbinary.Cursor) (in Instruction, err error) {
	if in.Opcode, err = r.ReadUint8(); err != nil {
		return in, fmt.Errorf("read opcode: %w", err)
	}
	info := instructions[in.Opcode]
	if info == nil {
		return in, fmt.Errorf("%w: invalid opcode %#x", wasm.ErrInvalidByte, in.Opcode)
	}

	switch info.immediate {
	case immediateBlockType:
		if in.BlockType, err = r.ReadVarInt33(); err != nil {
			return in, fmt.Errorf("read block type: %w", err)
		}
		if _, ok := blockValueType(in.BlockType); in.BlockType < 0 && in.BlockType != BlockTypeEmpty && !ok {
			return in, fmt.Errorf("%w: invalid block type %d", wasm.ErrInvalidByte, in.BlockType)
		}
	case immediateIndex:
		if in.Index, err = r.ReadVarUint32(); err != nil {
			return in, fmt.Errorf("read %s index: %w", wasm.InstructionName(in.Opcode), err)
		}
	case immediateBranchTable:
		count, err := r.ReadVarUint32()
		if err != nil {
			return in, fmt.Errorf("read br_table size: %w", err)
		}
		if uint64(count) > uint64(r.Remaining()) {
			return in, fmt.Errorf("br_table size %d exceeds the function body", count)
		}
		in.Targets = make([]uint32, count)
		for k := range in.Targets {
			if in.Targets[k], err = r.ReadVarUint32(); err != nil {
				return in, fmt.Errorf("read br_table target %d: %w", k, err)
			}
		}
		if in.Index, err = r.ReadVarUint32(); err != nil {
			return in, fmt.Errorf("read br_table default: %w", err)
		}
	case immediateCallIndirect:
		if in.Index, err = r.ReadVarUint32(); err != nil {
			return in, fmt.Errorf("read call_indirect type index: %w", err)
		}
		if in.Reserved, err = r.ReadUint8(); err != nil {
			return in, fmt.Errorf("read call_indirect table index: %w", err)
		}
	case immediateMemory:
		if in.Align, err = r.ReadVarUint32(); err != nil {
			return in, fmt.Errorf("read memory alignment: %w", err)
		}
		if in.Offset, err = r.ReadVarUint32(); err != nil {
			return in, fmt.Errorf("read memory offset: %w", err)
		}
	case immediateReserved:
		if in.Reserved, err = r.ReadUint8(); err != nil {
			return in, fmt.Errorf("read memory index: %w", err)
		}
	case immediateI32:
		v, err := r.ReadVarInt32()
		if err != nil {
			return in, fmt.Errorf("read i32.const value: %w", err)
		}
		in.Value = uint64(uint32(v))
	case immediateI64:
		v, err := r.ReadVarInt64()
		if err != nil {
			return in, fmt.Errorf("read i64.const value: %w", err)
		}
		in.Value = uint64(v)
	case immediateF32:
		v, err := r.ReadFixed32()
		if err != nil {
			return in, fmt.Errorf("read f32.const value: %w", err)
		}
		in.Value = uint64(v)
	case immediateF64:
		if in.Value, err = r.ReadFixed64(); err != nil {
			return in, fmt.Errorf("read f64.const value: %w", err)
		}
	}
	return in, nil
}

// Encode returns the instruction in the binary format. DecodeInstruction of the result yields an equal
// instruction.
func (i *Instruction) Encode() []byte {
	ret := []byte{i.Opcode}
	info := instructions[i.Opcode]
	if info == nil {
		return ret
	}

	switch info.immediate {
	case immediateBlockType:
		ret = append(ret, leb128.EncodeInt64(i.BlockType)...)
	case immediateIndex:
		ret = append(ret, leb128.EncodeUint32(i.Index)...)
	case immediateBranchTable:
		ret = append(ret, leb128.EncodeUint32(uint32(len(i.Targets)))...)
		for _, t := range i.Targets {
			ret = append(ret, leb128.EncodeUint32(t)...)
		}
		ret = append(ret, leb128.EncodeUint32(i.Index)...)
	case immediateCallIndirect:
		ret = append(ret, leb128.EncodeUint32(i.Index)...)
		ret = append(ret, i.Reserved)
	case immediateMemory:
		ret = append(ret, leb128.EncodeUint32(i.Align)...)
		ret = append(ret, leb128.EncodeUint32(i.Offset)...)
	case immediateReserved:
		ret = append(ret, i.Reserved)
	case immediateI32:
		ret = append(ret, leb128.EncodeInt32(int32(uint32(i.Value)))...)
	case immediateI64:
		ret = append(ret, leb128.EncodeInt64(int64(i.Value))...)
	case immediateF32:
		ret = binary.LittleEndian.AppendUint32(ret, uint32(i.Value))
	case immediateF64:
		ret = binary.LittleEndian.AppendUint64(ret, i.Value)
	}
	return ret
}

// String returns the instruction in a form similar to the WebAssembly text format, such as "i32.const 1".
func (i *Instruction) String() string {
	name := wasm.InstructionName(i.Opcode)
	info := instructions[i.Opcode]
	if info == nil {
		return name
	}

	switch info.immediate {
	case immediateBlockType:
		switch {
		case i.BlockType == BlockTypeEmpty:
			return name
		case i.BlockType < 0:
			vt, _ := blockValueType(i.BlockType)
			return fmt.Sprintf("%s (result %s)", name, wasm.ValueTypeName(vt))
		default:
			return fmt.Sprintf("%s (type %d)", name, i.BlockType)
		}
	case immediateIndex, immediateCallIndirect:
		return fmt.Sprintf("%s %d", name, i.Index)
	case immediateBranchTable:
		var b strings.Builder
		b.WriteString(name)
		for _, t := range i.Targets {
			fmt.Fprintf(&b, " %d", t)
		}
		fmt.Fprintf(&b, " %d", i.Index)
		return b.String()
	case immediateMemory:
		return fmt.Sprintf("%s offset=%d align=%d", name, i.Offset, 1<<i.Align)
	case immediateI32:
		return fmt.Sprintf("%s %d", name, int32(uint32(i.Value)))
	case immediateI64:
		return fmt.Sprintf("%s %d", name, int64(i.Value))
	case immediateF32:
		return fmt.Sprintf("%s %v", name, math.Float32frombits(uint32(i.Value)))
	case immediateF64:
		return fmt.Sprintf("%s %v", name, math.Float64frombits(i.Value))
	}
	return name
}

// DecodeBody decodes every instruction of a function body, which must end with the end of the function.
func DecodeBody(body []byte, offset int) ([]Instruction, error) {
	r := wasmbinary.NewCursorAt(body, offset)
	var ret []Instruction
	for !r.EOF() {
		in, err := DecodeInstruction(r)
		if err != nil {
			return nil, r.Error(err)
		}
		ret = append(ret, in)
	}
	return ret, nil
}

// EncodeBody is the inverse of DecodeBody.
func EncodeBody(body []Instruction) []byte {
	var ret []byte
	for k := range body {
		ret = append(ret, body[k].Encode()...)
	}
	return ret
}
