package compiler

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

// StackTooSmallError is returned when an instruction needs more operands than its block has on the stack.
type StackTooSmallError struct {
	Opcode   wasm.Opcode
	Expected int
	Actual   int
}

func (e *StackTooSmallError) Error() string {
	return fmt.Sprintf("%s requires at least %d values on the stack but found %d",
		wasm.InstructionName(e.Opcode), e.Expected, e.Actual)
}

// StackTypeInvalidError is returned when an operand has the wrong type.
type StackTypeInvalidError struct {
	Opcode   wasm.Opcode
	Expected wasm.ValueType
	Actual   wasm.ValueType
}

func (e *StackTypeInvalidError) Error() string {
	return fmt.Sprintf("%s requires %s on the stack but found %s",
		wasm.InstructionName(e.Opcode), wasm.ValueTypeName(e.Expected), wasm.ValueTypeName(e.Actual))
}

// FunctionError locates a compilation failure in a function body. Offset is the position of the failing
// instruction in the module binary.
type FunctionError struct {
	FuncIndex uint32
	Name      string
	Offset    int
	Err       error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("invalid function[%d] %s at offset %d: %v", e.FuncIndex, e.Name, e.Offset, e.Err)
}

func (e *FunctionError) Unwrap() error {
	return e.Err
}
