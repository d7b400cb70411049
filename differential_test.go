package wasmjit

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/binary"
)

// TestDifferential_Wazero runs the same binaries with wazero and compares the results.
func TestDifferential_Wazero(t *testing.T) {
	tests := []struct {
		name   string
		module *wasm.Module
		export string
		params [][]uint64
	}{
		{
			name:   "factorial",
			module: factorialModule(),
			export: "fac",
			params: [][]uint64{{0}, {1}, {5}, {20}, {25}},
		},
		{
			name: "sign extension",
			module: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{i64_i64},
				FunctionSection: []uint32{0},
				ExportSection:   map[string]*wasm.Export{"ext": {Kind: wasm.ExportKindFunc, Name: "ext", Index: 0}},
				CodeSection: []*wasm.Code{{Body: []byte{
					wasm.OpcodeLocalGet, 0, wasm.OpcodeI64Extend8S,
					wasm.OpcodeLocalGet, 0, wasm.OpcodeI64Extend16S, wasm.OpcodeI64Add,
					wasm.OpcodeEnd,
				}}},
			},
			export: "ext",
			params: [][]uint64{{0}, {0x80}, {0x7fff}, {0xffff_ffff_ffff_ff80}},
		},
		{
			name: "unsigned division",
			module: &wasm.Module{
				TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{i32, i32}, Results: []wasm.ValueType{i32}}},
				FunctionSection: []uint32{0},
				ExportSection:   map[string]*wasm.Export{"div": {Kind: wasm.ExportKindFunc, Name: "div", Index: 0}},
				CodeSection: []*wasm.Code{{Body: []byte{
					wasm.OpcodeLocalGet, 0, wasm.OpcodeLocalGet, 1, wasm.OpcodeI32DivU, wasm.OpcodeEnd,
				}}},
			},
			export: "div",
			params: [][]uint64{{10, 3}, {0xffff_ffff, 2}, {1, 0}},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			bin := binary.EncodeModule(tc.module)

			r := wazero.NewRuntime(testCtx)
			defer r.Close(testCtx)
			expectedMod, err := r.Instantiate(testCtx, bin)
			require.NoError(t, err)
			expectedFn := expectedMod.ExportedFunction(tc.export)

			c, err := Compile(bytes.NewReader(bin))
			require.NoError(t, err)
			inst, err := c.NewInstance(testCtx)
			require.NoError(t, err)
			defer inst.Close()
			fn := inst.ExportedFunction(tc.export)

			for _, params := range tc.params {
				expected, expectedErr := expectedFn.Call(testCtx, params...)
				actual, err := fn.Call(testCtx, params...)
				if expectedErr != nil {
					require.Error(t, err, "params %v", params)
					continue
				}
				require.NoError(t, err, "params %v", params)
				require.Equal(t, expected, actual, "params %v", params)
			}
		})
	}
}
