package compiler

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfinity-lab/wasmjit/wasm"
)

func TestInstruction_EncodeDecode(t *testing.T) {
	tests := []struct {
		in       Instruction
		expected []byte
		str      string
	}{
		{in: Instruction{Opcode: wasm.OpcodeNop}, expected: []byte{0x01}, str: "nop"},
		{in: Instruction{Opcode: wasm.OpcodeBlock, BlockType: BlockTypeEmpty}, expected: []byte{0x02, 0x40}, str: "block"},
		{in: Instruction{Opcode: wasm.OpcodeLoop, BlockType: -1}, expected: []byte{0x03, 0x7f}, str: "loop (result i32)"},
		{in: Instruction{Opcode: wasm.OpcodeIf, BlockType: 3}, expected: []byte{0x04, 0x03}, str: "if (type 3)"},
		{in: Instruction{Opcode: wasm.OpcodeBr, Index: 2}, expected: []byte{0x0c, 0x02}, str: "br 2"},
		{
			in:       Instruction{Opcode: wasm.OpcodeBrTable, Targets: []uint32{0, 1}, Index: 2},
			expected: []byte{0x0e, 0x02, 0x00, 0x01, 0x02},
			str:      "br_table 0 1 2",
		},
		{
			in:       Instruction{Opcode: wasm.OpcodeCallIndirect, Index: 1},
			expected: []byte{0x11, 0x01, 0x00},
			str:      "call_indirect 1",
		},
		{
			in:       Instruction{Opcode: wasm.OpcodeI32Load, Align: 2, Offset: 128},
			expected: []byte{0x28, 0x02, 0x80, 0x01},
			str:      "i32.load offset=128 align=4",
		},
		{in: Instruction{Opcode: wasm.OpcodeMemoryGrow}, expected: []byte{0x40, 0x00}, str: "memory.grow"},
		{
			in:       Instruction{Opcode: wasm.OpcodeI32Const, Value: uint64(uint32(math.MaxUint32))},
			expected: []byte{0x41, 0x7f},
			str:      "i32.const -1",
		},
		{
			in:       Instruction{Opcode: wasm.OpcodeI64Const, Value: 64},
			expected: []byte{0x42, 0xc0, 0x00},
			str:      "i64.const 64",
		},
		{
			in:       Instruction{Opcode: wasm.OpcodeF32Const, Value: uint64(math.Float32bits(1.5))},
			expected: []byte{0x43, 0x00, 0x00, 0xc0, 0x3f},
			str:      "f32.const 1.5",
		},
		{
			in:       Instruction{Opcode: wasm.OpcodeF64Const, Value: math.Float64bits(-2)},
			expected: []byte{0x44, 0, 0, 0, 0, 0, 0, 0, 0xc0},
			str:      "f64.const -2",
		},
		{in: Instruction{Opcode: wasm.OpcodeI64Extend32S}, expected: []byte{0xc4}, str: "i64.extend32_s"},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.str, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.in.Encode())
			require.Equal(t, tc.str, tc.in.String())

			decoded, err := DecodeBody(tc.expected, 0)
			require.NoError(t, err)
			require.Equal(t, 1, len(decoded))
			require.True(t, tc.in.Equal(&decoded[0]), decoded[0].String())
		})
	}
}

func TestEncodeBody(t *testing.T) {
	body := []byte{
		wasm.OpcodeLocalGet, 0,
		wasm.OpcodeIf, 0x7f,
		wasm.OpcodeI32Const, 1,
		wasm.OpcodeElse,
		wasm.OpcodeI32Const, 2,
		wasm.OpcodeEnd,
		wasm.OpcodeEnd,
	}
	decoded, err := DecodeBody(body, 0)
	require.NoError(t, err)
	require.Equal(t, 7, len(decoded))
	require.Equal(t, body, EncodeBody(decoded))
}

func TestDecodeBody_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		expectedErr string
	}{
		{
			name:        "invalid opcode",
			body:        []byte{wasm.OpcodeNop, 0xd0},
			expectedErr: "malformed module at offset 11: invalid byte: invalid opcode 0xd0",
		},
		{
			name:        "invalid block type",
			body:        []byte{wasm.OpcodeBlock, 0x70},
			expectedErr: "malformed module at offset 11: invalid byte: invalid block type -16",
		},
		{
			name:        "truncated immediate",
			body:        []byte{wasm.OpcodeF64Const, 0x00, 0x00},
			expectedErr: "malformed module at offset 11: read f64.const value: unexpected EOF",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeBody(tc.body, 10)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestDecodeBody_UnexpectedEOF(t *testing.T) {
	_, err := DecodeBody([]byte{wasm.OpcodeBr}, 0)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}
