package wasm

import (
	"bytes"
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm/ieee754"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// ResultType returns the value type a constant expression evaluates to. globals is the global index space,
// consulted for global.get.
func (c *ConstantExpression) ResultType(globals []*GlobalType) (ValueType, error) {
	switch c.Opcode {
	case OpcodeI32Const:
		return ValueTypeI32, nil
	case OpcodeI64Const:
		return ValueTypeI64, nil
	case OpcodeF32Const:
		return ValueTypeF32, nil
	case OpcodeF64Const:
		return ValueTypeF64, nil
	case OpcodeGlobalGet:
		idx, err := c.GlobalIndex()
		if err != nil {
			return 0, err
		}
		if idx >= uint32(len(globals)) {
			return 0, fmt.Errorf("global index %d out of range", idx)
		}
		return globals[idx].ValType, nil
	}
	return 0, fmt.Errorf("%w for const expression opcode: %#x", ErrInvalidByte, c.Opcode)
}

// GlobalIndex returns the immediate of a global.get expression.
func (c *ConstantExpression) GlobalIndex() (uint32, error) {
	if c.Opcode != OpcodeGlobalGet {
		return 0, fmt.Errorf("not a global.get expression: %s", InstructionName(c.Opcode))
	}
	idx, _, err := leb128.DecodeUint32(bytes.NewReader(c.Data))
	return idx, err
}

// Evaluate returns the encoded value of the expression. getGlobal resolves global.get.
func (c *ConstantExpression) Evaluate(getGlobal func(index uint32) uint64) (uint64, error) {
	r := bytes.NewReader(c.Data)
	switch c.Opcode {
	case OpcodeI32Const:
		v, _, err := leb128.DecodeInt32(r)
		return uint64(uint32(v)), err
	case OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(r)
		return uint64(v), err
	case OpcodeF32Const:
		v, err := ieee754.DecodeFloat32(r)
		return EncodeF32(v), err
	case OpcodeF64Const:
		v, err := ieee754.DecodeFloat64(r)
		return EncodeF64(v), err
	case OpcodeGlobalGet:
		idx, err := c.GlobalIndex()
		if err != nil {
			return 0, err
		}
		return getGlobal(idx), nil
	}
	return 0, fmt.Errorf("%w for const expression opcode: %#x", ErrInvalidByte, c.Opcode)
}
