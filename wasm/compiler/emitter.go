package compiler

import "github.com/dfinity-lab/wasmjit/wasm"

// Label is a position in the emitted code, created by Emitter.NewLabel and bound by Emitter.MarkLabel. A label may
// be branched to before it is marked.
type Label uint32

// BranchTarget is where a branch lands and how the operand stack is reshaped on the way.
type BranchTarget struct {
	Label Label
	// Keep is the count of values on top of the stack which are moved to Height. Everything else above Height is
	// dropped.
	Keep int
	// Height is the operand stack height of the target block, relative to the function.
	Height int
}

// Emitter receives the validated instruction stream of one function body and produces host code for it.
//
// Every method mirrors the stack effect the validator already checked, so implementations never need to validate.
// Values are passed as uint64: i32 zero-extended, floats as IEEE 754 bits.
type Emitter interface {
	// NewLabel allocates a label which is not yet bound to a position.
	NewLabel() Label
	// MarkLabel binds the label to the current position.
	MarkLabel(l Label)

	// Unreachable traps with wasm.ErrRuntimeUnreachable.
	Unreachable()
	// Const pushes a constant.
	Const(vt wasm.ValueType, bits uint64)
	// Numeric pops the operands of a numeric, comparison or conversion opcode and pushes its result.
	Numeric(op wasm.Opcode)
	// Drop pops one value.
	Drop()
	// Select pops a condition and two values, pushing the first if the condition is non-zero, else the second.
	Select()

	LocalGet(index uint32)
	LocalSet(index uint32)
	LocalTee(index uint32)
	GlobalGet(index uint32)
	GlobalSet(index uint32)

	// Load pops an address and pushes the value at address+offset, trapping when out of bounds.
	Load(op wasm.Opcode, offset uint32)
	// Store pops a value and an address and writes the value at address+offset, trapping when out of bounds.
	Store(op wasm.Opcode, offset uint32)
	MemorySize()
	MemoryGrow()

	// Branch jumps to the target unconditionally.
	Branch(t BranchTarget)
	// BranchIf pops an i32 and jumps to the target if it is non-zero.
	BranchIf(t BranchTarget)
	// BranchIfZero pops an i32 and jumps to the label if it is zero, without reshaping the stack.
	BranchIfZero(l Label)
	// BranchTable pops an i32 index and jumps to the target at that index, or to the default when out of range.
	BranchTable(targets []BranchTarget, defaultTarget BranchTarget)
	// Truncate moves the top keep values to height and drops everything between.
	Truncate(keep, height int)

	// Call pops the params of the function at index and pushes its first result. Other results are written to the
	// caller locals outs, in order.
	Call(index uint32, outs []uint32)
	// CallIndirect pops a table slot, then calls the function there like Call. It traps if the slot is empty or
	// the function's type does not match typeIndex.
	CallIndirect(typeIndex uint32, outs []uint32)
	// StoreOutput writes the value of a local to output parameter index of this function.
	StoreOutput(index int, local uint32)
	// Return pops keep values as the results of this function and returns to the caller.
	Return(keep int)

	// Finish completes the body. numLocals counts params, declared locals and scratch locals.
	Finish(numLocals int) error
}

// Backend creates an Emitter per function body.
type Backend interface {
	// NewEmitter is called once per function defined in the module, in index order.
	NewEmitter(funcIndex uint32, sig *wasm.FunctionType) Emitter
}
