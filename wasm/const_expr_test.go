package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstantExpression_Evaluate(t *testing.T) {
	globals := func(index uint32) uint64 { return uint64(index) + 100 }

	tests := []struct {
		name     string
		expr     *ConstantExpression
		expType  ValueType
		expValue uint64
	}{
		{
			name:     "i32.const -1",
			expr:     &ConstantExpression{Opcode: OpcodeI32Const, Data: []byte{0x7f}},
			expType:  ValueTypeI32,
			expValue: 0xffffffff,
		},
		{
			name:     "i64.const -1",
			expr:     &ConstantExpression{Opcode: OpcodeI64Const, Data: []byte{0x7f}},
			expType:  ValueTypeI64,
			expValue: 0xffffffffffffffff,
		},
		{
			name:     "f32.const 1.5",
			expr:     &ConstantExpression{Opcode: OpcodeF32Const, Data: []byte{0, 0, 0xc0, 0x3f}},
			expType:  ValueTypeF32,
			expValue: EncodeF32(1.5),
		},
		{
			name:     "f64.const 1.5",
			expr:     &ConstantExpression{Opcode: OpcodeF64Const, Data: []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f}},
			expType:  ValueTypeF64,
			expValue: EncodeF64(1.5),
		},
		{
			name:     "global.get 1",
			expr:     &ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{0x01}},
			expType:  ValueTypeF64,
			expValue: 101,
		},
	}

	globalTypes := []*GlobalType{{ValType: ValueTypeI32}, {ValType: ValueTypeF64}}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			vt, err := tc.expr.ResultType(globalTypes)
			require.NoError(t, err)
			require.Equal(t, tc.expType, vt)

			v, err := tc.expr.Evaluate(globals)
			require.NoError(t, err)
			require.Equal(t, tc.expValue, v)
		})
	}
}

func TestConstantExpression_Errors(t *testing.T) {
	_, err := (&ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{0x05}}).ResultType(nil)
	require.EqualError(t, err, "global index 5 out of range")

	_, err = (&ConstantExpression{Opcode: OpcodeNop}).Evaluate(nil)
	require.ErrorIs(t, err, ErrInvalidByte)
}
