package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

func decodeConstantExpression(r *Cursor) (*wasm.ConstantExpression, error) {
	opcode, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("read opcode: %w", err)
	}

	start := r.pos
	switch opcode {
	case wasm.OpcodeI32Const:
		_, err = r.ReadVarInt32()
	case wasm.OpcodeI64Const:
		_, err = r.ReadVarInt64()
	case wasm.OpcodeF32Const:
		_, err = r.ReadFixed32()
	case wasm.OpcodeF64Const:
		_, err = r.ReadFixed64()
	case wasm.OpcodeGlobalGet:
		_, err = r.ReadVarUint32()
	default:
		return nil, fmt.Errorf("%w for const expression opt code: %#x", wasm.ErrInvalidByte, opcode)
	}
	if err != nil {
		return nil, fmt.Errorf("read value: %w", err)
	}
	data := r.data[start:r.pos]

	end, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("look for end opcode: %w", err)
	}
	if end != wasm.OpcodeEnd {
		return nil, fmt.Errorf("constant expression has been not terminated")
	}

	return &wasm.ConstantExpression{
		Opcode: opcode,
		Data:   data,
	}, nil
}

func encodeConstantExpression(expr *wasm.ConstantExpression) []byte {
	ret := append([]byte{expr.Opcode}, expr.Data...)
	return append(ret, wasm.OpcodeEnd)
}
