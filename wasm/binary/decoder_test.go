package binary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// preamble returns magic and version followed by the sections.
func preamble(sections ...byte) []byte {
	return append(append(append([]byte{}, magic...), version...), sections...)
}

func i32Const(v int32) *wasm.ConstantExpression {
	return &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(v)}
}

// TestDecodeModule relies on unit tests for Module.Encode, specifically that the encoding is both known and correct.
// This avoids having to copy/paste or share variables to assert against byte arrays.
func TestDecodeModule(t *testing.T) {
	i32, i64, f32 := wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32
	zero, one := uint32(0), uint32(1)

	tests := []struct {
		name  string
		input *wasm.Module // round trip test!
	}{
		{
			name:  "empty",
			input: &wasm.Module{},
		},
		{
			name:  "only name section",
			input: &wasm.Module{NameSection: &wasm.NameSection{ModuleName: "simple"}},
		},
		{
			name: "only custom section",
			input: &wasm.Module{CustomSections: map[string][]byte{
				"meme": {1, 2, 3, 4, 5, 6, 7, 8, 9, 0},
			}},
		},
		{
			name: "name section and a custom section",
			input: &wasm.Module{
				NameSection: &wasm.NameSection{
					ModuleName:    "simple",
					FunctionNames: wasm.NameMap{{Index: 0, Name: "fac"}},
					LocalNames: wasm.IndirectNameMap{
						{Index: 0, NameMap: wasm.NameMap{{Index: 0, Name: "n"}, {Index: 1, Name: "acc"}}},
					},
				},
				CustomSections: map[string][]byte{
					"meme": {1, 2, 3, 4, 5, 6, 7, 8, 9, 0},
				},
			},
		},
		{
			name: "type section",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{
					{},
					{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}, TypeIndex: 1},
					{Params: []wasm.ValueType{i32, i32, i32, i32}, Results: []wasm.ValueType{i32}, TypeIndex: 2},
				},
			},
		},
		{
			name: "multi-value type",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{
					{Params: []wasm.ValueType{i64}, Results: []wasm.ValueType{i32, i64, f32}},
				},
			},
		},
		{
			name: "type and import section",
			input: &wasm.Module{
				TypeSection: []*wasm.FunctionType{
					{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}},
					{Params: []wasm.ValueType{f32, f32}, Results: []wasm.ValueType{f32}, TypeIndex: 1},
				},
				ImportSection: []*wasm.Import{
					{
						Module: "Math", Name: "Mul",
						Kind:     wasm.ImportKindFunc,
						DescFunc: 1,
					}, {
						Module: "Math", Name: "Add",
						Kind:     wasm.ImportKindFunc,
						DescFunc: 0,
					}, {
						Module: "env", Name: "memory",
						Kind:    wasm.ImportKindMemory,
						DescMem: &wasm.MemoryType{Min: 1, Max: &one},
					}, {
						Module: "env", Name: "base",
						Kind:       wasm.ImportKindGlobal,
						DescGlobal: &wasm.GlobalType{ValType: i32},
					},
				},
				DataSection: []*wasm.DataSegment{
					{
						OffsetExpression: &wasm.ConstantExpression{Opcode: wasm.OpcodeGlobalGet, Data: []byte{0}},
						Init:             []byte("hello"),
					},
				},
			},
		},
		{
			name: "element at a non-zero offset",
			input: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{{}},
				FunctionSection: []uint32{0},
				TableSection:    &wasm.TableType{ElemType: wasm.ElemTypeFuncref, Limit: &wasm.LimitsType{Min: 4}},
				ElementSection: []*wasm.ElementSegment{
					{OffsetExpr: i32Const(3), Init: []uint32{0}},
				},
				CodeSection: []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}},
			},
		},
		{
			name: "all index spaces",
			input: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}}},
				FunctionSection: []uint32{0, 0},
				TableSection:    &wasm.TableType{ElemType: wasm.ElemTypeFuncref, Limit: &wasm.LimitsType{Min: 2}},
				MemorySection:   &wasm.MemoryType{Min: 1, Max: &one},
				GlobalSection: []*wasm.Global{
					{Type: &wasm.GlobalType{ValType: i32, Mutable: true}, Init: i32Const(-1)},
				},
				ExportSection: map[string]*wasm.Export{
					"fac":    {Name: "fac", Kind: wasm.ExportKindFunc, Index: 0},
					"id":     {Name: "id", Kind: wasm.ExportKindFunc, Index: 1},
					"table":  {Name: "table", Kind: wasm.ExportKindTable, Index: 0},
					"memory": {Name: "memory", Kind: wasm.ExportKindMemory, Index: 0},
					"g":      {Name: "g", Kind: wasm.ExportKindGlobal, Index: 0},
				},
				StartSection: &zero,
				ElementSection: []*wasm.ElementSegment{
					{OffsetExpr: i32Const(0), Init: []uint32{1, 0}},
				},
				CodeSection: []*wasm.Code{
					{LocalTypes: []wasm.ValueType{i32, i32, i64}, Body: []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeEnd}},
					{Body: []byte{wasm.OpcodeLocalGet, 0, wasm.OpcodeEnd}},
				},
				DataSection: []*wasm.DataSegment{
					{OffsetExpression: i32Const(16), Init: []byte{1, 2, 3}},
				},
			},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			m, e := DecodeModule(EncodeModule(tc.input))
			require.NoError(t, e)
			for _, c := range m.CodeSection {
				require.NotZero(t, c.BodyOffset)
				c.BodyOffset = 0
			}
			require.Equal(t, tc.input, m)
		})
	}
}

func TestDecodeModule_PreMVPVersion(t *testing.T) {
	m, err := DecodeModule([]byte{0x00, 0x61, 0x73, 0x6D, 0x0d, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, &wasm.Module{}, m)
}

func TestDecodeModule_BodyOffset(t *testing.T) {
	input := preamble(
		wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00, // offset 8
		wasm.SectionIDFunction, 0x02, 0x01, 0x00, // offset 14
		wasm.SectionIDCode, 0x04, 0x01, 0x02, 0x00, wasm.OpcodeEnd, // offset 18
	)
	m, err := DecodeModule(input)
	require.NoError(t, err)
	require.Equal(t, 23, m.CodeSection[0].BodyOffset)
	require.Equal(t, []byte{wasm.OpcodeEnd}, m.CodeSection[0].Body)
}

func TestDecodeModule_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		expectedErr string
	}{
		{
			name:        "wrong magic",
			input:       []byte("wasm\x01\x00\x00\x00"),
			expectedErr: "malformed module at offset 0: invalid magic number",
		},
		{
			name:        "wrong version",
			input:       []byte("\x00asm\x01\x00\x00\x01"),
			expectedErr: "malformed module at offset 4: invalid version header",
		},
		{
			name:        "truncated version",
			input:       []byte("\x00asm\x01"),
			expectedErr: "malformed module at offset 4: invalid version header",
		},
		{
			name:        "unknown section",
			input:       preamble(0x0c, 0x00),
			expectedErr: "malformed module at offset 8: invalid section id: 0xc",
		},
		{
			name: "sections out of order",
			input: preamble(
				wasm.SectionIDFunction, 0x01, 0x00,
				wasm.SectionIDType, 0x01, 0x00,
			),
			expectedErr: "malformed module at offset 11: sections out of order; section type encountered after function",
		},
		{
			name: "repeated section",
			input: preamble(
				wasm.SectionIDType, 0x01, 0x00,
				wasm.SectionIDType, 0x01, 0x00,
			),
			expectedErr: "malformed module at offset 11: sections out of order; section type encountered after type",
		},
		{
			name:        "section size past the end",
			input:       preamble(wasm.SectionIDType, 0x05, 0x00),
			expectedErr: "malformed module at offset 9: section type: size 5 exceeds remaining 1 bytes",
		},
		{
			name:        "section size larger than contents",
			input:       preamble(wasm.SectionIDType, 0x02, 0x00, 0x00),
			expectedErr: "malformed module at offset 10: section type: invalid section length: expected to be 2 but got 1",
		},
		{
			name:        "type count larger than the binary",
			input:       preamble(wasm.SectionIDType, 0x05, 0xff, 0xff, 0xff, 0xff, 0x0f),
			expectedErr: "malformed module at offset 10: section type: get size of vector: size 4294967295 exceeds the 0 remaining bytes",
		},
		{
			name: "element count larger than the binary",
			input: preamble(
				wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00,
				wasm.SectionIDFunction, 0x02, 0x01, 0x00,
				wasm.SectionIDTable, 0x04, 0x01, 0x70, 0x00, 0x01,
				wasm.SectionIDElement, 0x0a, 0x01, 0x00, wasm.OpcodeI32Const, 0x00, wasm.OpcodeEnd, 0xff, 0xff, 0xff, 0xff, 0x0f,
			),
			expectedErr: "malformed module at offset 31: section element: read element: get size of vector: size 4294967295 exceeds the 0 remaining bytes",
		},
		{
			name:        "code without function",
			input:       preamble(wasm.SectionIDCode, 0x01, 0x00),
			expectedErr: "malformed module at offset 9: section code: Code section is invalid when Function section is missing.",
		},
		{
			name:        "data without memory",
			input:       preamble(wasm.SectionIDData, 0x01, 0x00),
			expectedErr: "malformed module at offset 9: section data: Data section cannot be used unless a memory section is defined.",
		},
		{
			name: "function without code",
			input: preamble(
				wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00,
				wasm.SectionIDFunction, 0x02, 0x01, 0x00,
			),
			expectedErr: "malformed module at offset 18: function and code section have inconsistent lengths: 1 != 0",
		},
		{
			name: "function type index out of range",
			input: preamble(
				wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00,
				wasm.SectionIDFunction, 0x02, 0x01, 0x01,
			),
			expectedErr: "malformed module at offset 17: section function: invalid type index 1 for function 0: 1 types",
		},
		{
			name: "body without end",
			input: preamble(
				wasm.SectionIDType, 0x04, 0x01, 0x60, 0x00, 0x00,
				wasm.SectionIDFunction, 0x02, 0x01, 0x00,
				wasm.SectionIDCode, 0x04, 0x01, 0x02, 0x00, wasm.OpcodeNop,
			),
			expectedErr: "malformed module at offset 23: section code: expr not end with OpcodeEnd",
		},
		{
			name: "two memories",
			input: preamble(
				wasm.SectionIDMemory, 0x05, 0x02, 0x00, 0x01, 0x00, 0x01,
			),
			expectedErr: "malformed module at offset 10: section memory: multiple memories are not supported",
		},
		{
			name: "memory over 4GiB",
			input: preamble(
				wasm.SectionIDMemory, 0x05, 0x01, 0x00, 0x81, 0x80, 0x04,
			),
			expectedErr: "malformed module at offset 12: section memory: read memory type: memory min must be at most 65536 pages (4GiB)",
		},
		{
			name: "export unknown function",
			input: preamble(
				wasm.SectionIDExport, 0x05, 0x01, 0x01, 'f', wasm.ExportKindFunc, 0x00,
			),
			expectedErr: "malformed module at offset 14: section export: unknown func 0 for export \"f\"",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, e := DecodeModule(tc.input)
			require.EqualError(t, e, tc.expectedErr)
			var mle *wasm.ModuleLoadError
			require.True(t, errors.As(e, &mle))
		})
	}
}

func TestDecoder_MalformedNameSectionIsIgnored(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d := &Decoder{Logger: zap.New(core)}

	m, err := d.Decode(preamble(
		wasm.SectionIDCustom, 0x07,
		0x04, 'n', 'a', 'm', 'e',
		subsectionIDFunctionNames, 0x05, // subsection claims 5 bytes, but has none
	))
	require.NoError(t, err)
	require.Nil(t, m.NameSection)
	require.Equal(t, 1, logs.FilterMessage("ignoring malformed name section").Len())
}
