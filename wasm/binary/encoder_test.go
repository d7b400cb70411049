package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfinity-lab/wasmjit/wasm"
)

func TestEncodeStartSection(t *testing.T) {
	require.Equal(t, []byte{wasm.SectionIDStart, 0x01, 0x05}, encodeStartSection(5))
}

func TestEncodeExportSection_Ordered(t *testing.T) {
	exports := map[string]*wasm.Export{
		"b": {Name: "b", Kind: wasm.ExportKindFunc, Index: 1},
		"a": {Name: "a", Kind: wasm.ExportKindFunc, Index: 1},
		"m": {Name: "m", Kind: wasm.ExportKindMemory, Index: 0},
		"z": {Name: "z", Kind: wasm.ExportKindFunc, Index: 0},
	}
	require.Equal(t, []byte{
		wasm.SectionIDExport, 0x11, // 17 bytes
		0x04,                               // 4 exports
		0x01, 'z', wasm.ExportKindFunc, 0x00, // func[0]
		0x01, 'a', wasm.ExportKindFunc, 0x01, // func[1], ties ordered by name
		0x01, 'b', wasm.ExportKindFunc, 0x01,
		0x01, 'm', wasm.ExportKindMemory, 0x00,
	}, encodeExportSection(exports))
}

func TestEncodeCode_GroupsLocals(t *testing.T) {
	i32, i64 := wasm.ValueTypeI32, wasm.ValueTypeI64
	c := &wasm.Code{LocalTypes: []wasm.ValueType{i32, i32, i64, i32}, Body: []byte{wasm.OpcodeEnd}}
	require.Equal(t, []byte{
		0x08,       // size
		0x03,       // 3 groups
		0x02, i32, // 2 x i32
		0x01, i64,
		0x01, i32,
		wasm.OpcodeEnd,
	}, encodeCode(c))
}

func TestEncodeModule_Deterministic(t *testing.T) {
	m := &wasm.Module{
		CustomSections: map[string][]byte{"b": {2}, "a": {1}, "c": {3}},
		ExportSection:  map[string]*wasm.Export{},
	}
	first := EncodeModule(m)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, EncodeModule(m))
	}
}
