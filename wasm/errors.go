package wasm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidByte        = errors.New("invalid byte")
	ErrInvalidMagicNumber = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("invalid version header")
	ErrInvalidSectionID   = errors.New("invalid section id")
)

// ModuleLoadError is returned when the binary is malformed. Offset is the position in the binary where the failing
// read started.
type ModuleLoadError struct {
	Offset int
	Err    error
}

func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("malformed module at offset %d: %v", e.Offset, e.Err)
}

func (e *ModuleLoadError) Unwrap() error {
	return e.Err
}

// NewModuleLoadError wraps err with the offset, unless err already carries one.
func NewModuleLoadError(offset int, err error) error {
	var mle *ModuleLoadError
	if errors.As(err, &mle) {
		return err
	}
	return &ModuleLoadError{Offset: offset, Err: err}
}

// CompilerError is a semantic failure found after decoding, such as a missing import.
type CompilerError struct {
	Msg string
}

func (e *CompilerError) Error() string {
	return e.Msg
}

// NewCompilerError formats a CompilerError.
func NewCompilerError(format string, args ...interface{}) error {
	return &CompilerError{Msg: fmt.Sprintf(format, args...)}
}

// All the errors are raised during the execution of Wasm functions, and they indicate that the Wasm virtual
// machine's state is unrecoverable.
var (
	// ErrRuntimeCallStackOverflow indicates that there are too many function calls,
	// and the engine terminated the execution.
	ErrRuntimeCallStackOverflow = errors.New("callstack overflow")
	// ErrRuntimeInvalidConversionToInteger indicates the Wasm function tries to
	// convert NaN floating point value to integers during trunc variant instructions.
	ErrRuntimeInvalidConversionToInteger = errors.New("invalid conversion to integer")
	// ErrRuntimeIntegerOverflow indicates that an integer arithmetic resulted in
	// overflow value. For example, when the program tried to truncate a float value
	// which doesn't fit in the range of target integer.
	ErrRuntimeIntegerOverflow = errors.New("integer overflow")
	// ErrRuntimeIntegerDivideByZero indicates that an integer div or rem instructions
	// was executed with 0 as the divisor.
	ErrRuntimeIntegerDivideByZero = errors.New("integer divide by zero")
	// ErrRuntimeUnreachable means "unreachable" instruction was executed by the program.
	ErrRuntimeUnreachable = errors.New("unreachable")
	// ErrRuntimeOutOfBoundsMemoryAccess indicates that the program tried to access the
	// region beyond the linear memory.
	ErrRuntimeOutOfBoundsMemoryAccess = errors.New("out of bounds memory access")
	// ErrRuntimeInvalidTableAccess means the offset passed to call_indirect was beyond the table.
	ErrRuntimeInvalidTableAccess = errors.New("invalid table access")
	// ErrRuntimeUninitializedElement means call_indirect reached a table slot no element segment populated.
	ErrRuntimeUninitializedElement = errors.New("uninitialized element")
	// ErrRuntimeIndirectCallTypeMismatch indicates that the type check failed during call_indirect.
	ErrRuntimeIndirectCallTypeMismatch = errors.New("indirect call type mismatch")
	// ErrRuntimeCallTerminated means the context of the call was done before it returned.
	ErrRuntimeCallTerminated = errors.New("call terminated")
)
