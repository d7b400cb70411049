package bench

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dfinity-lab/wasmjit"
	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/binary"
)

const i32 = wasm.ValueTypeI32

// caseWasm exports "fibonacci", computed recursively, and "reverse_array", which reverses the first n i32 values of
// the memory in place.
var caseWasm = binary.EncodeModule(&wasm.Module{
	TypeSection: []*wasm.FunctionType{
		{Params: []wasm.ValueType{i32}, Results: []wasm.ValueType{i32}},
		{Params: []wasm.ValueType{i32}},
	},
	FunctionSection: []uint32{0, 1},
	MemorySection:   &wasm.MemoryType{Min: 1},
	ExportSection: map[string]*wasm.Export{
		"fibonacci":     {Kind: wasm.ExportKindFunc, Name: "fibonacci", Index: 0},
		"reverse_array": {Kind: wasm.ExportKindFunc, Name: "reverse_array", Index: 1},
		"memory":        {Kind: wasm.ExportKindMemory, Name: "memory", Index: 0},
	},
	CodeSection: []*wasm.Code{
		{Body: []byte{
			wasm.OpcodeLocalGet, 0, wasm.OpcodeI32Const, 2, wasm.OpcodeI32LtU,
			wasm.OpcodeIf, i32,
			wasm.OpcodeLocalGet, 0,
			wasm.OpcodeElse,
			wasm.OpcodeLocalGet, 0, wasm.OpcodeI32Const, 1, wasm.OpcodeI32Sub, wasm.OpcodeCall, 0,
			wasm.OpcodeLocalGet, 0, wasm.OpcodeI32Const, 2, wasm.OpcodeI32Sub, wasm.OpcodeCall, 0,
			wasm.OpcodeI32Add,
			wasm.OpcodeEnd,
			wasm.OpcodeEnd,
		}},
		{LocalTypes: []wasm.ValueType{i32, i32, i32}, Body: []byte{
			// lo = 0; hi = (n-1)*4
			wasm.OpcodeI32Const, 0, wasm.OpcodeLocalSet, 1,
			wasm.OpcodeLocalGet, 0, wasm.OpcodeI32Const, 1, wasm.OpcodeI32Sub,
			wasm.OpcodeI32Const, 4, wasm.OpcodeI32Mul, wasm.OpcodeLocalSet, 2,
			wasm.OpcodeBlock, 0x40,
			wasm.OpcodeLoop, 0x40,
			wasm.OpcodeLocalGet, 1, wasm.OpcodeLocalGet, 2, wasm.OpcodeI32GeS, wasm.OpcodeBrIf, 1,
			// tmp = mem[lo]; mem[lo] = mem[hi]; mem[hi] = tmp
			wasm.OpcodeLocalGet, 1, wasm.OpcodeI32Load, 2, 0, wasm.OpcodeLocalSet, 3,
			wasm.OpcodeLocalGet, 1, wasm.OpcodeLocalGet, 2, wasm.OpcodeI32Load, 2, 0, wasm.OpcodeI32Store, 2, 0,
			wasm.OpcodeLocalGet, 2, wasm.OpcodeLocalGet, 3, wasm.OpcodeI32Store, 2, 0,
			// lo += 4; hi -= 4
			wasm.OpcodeLocalGet, 1, wasm.OpcodeI32Const, 4, wasm.OpcodeI32Add, wasm.OpcodeLocalSet, 1,
			wasm.OpcodeLocalGet, 2, wasm.OpcodeI32Const, 4, wasm.OpcodeI32Sub, wasm.OpcodeLocalSet, 2,
			wasm.OpcodeBr, 0,
			wasm.OpcodeEnd,
			wasm.OpcodeEnd,
			wasm.OpcodeEnd,
		}},
	},
})

func newInstance(tb testing.TB) *wasmjit.Instance {
	creator, err := wasmjit.Compile(bytes.NewReader(caseWasm))
	require.NoError(tb, err)
	inst, err := creator.NewInstance(context.Background())
	require.NoError(tb, err)
	return inst
}

// TestCase ensures the benchmarked functions compute the expected results.
func TestCase(t *testing.T) {
	ctx := context.Background()
	inst := newInstance(t)
	defer inst.Close()

	results, err := inst.ExportedFunction("fibonacci").Call(ctx, 20)
	require.NoError(t, err)
	require.Equal(t, []uint64{6765}, results)

	memory := inst.ExportedMemory("memory")
	for i := uint32(0); i < 5; i++ {
		require.True(t, memory.WriteUint32Le(i*4, i))
	}
	_, err = inst.ExportedFunction("reverse_array").Call(ctx, 5)
	require.NoError(t, err)
	for i := uint32(0); i < 5; i++ {
		v, ok := memory.ReadUint32Le(i * 4)
		require.True(t, ok)
		require.Equal(t, 4-i, v)
	}
}

func BenchmarkEngines(b *testing.B) {
	b.Run("init", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			inst := newInstance(b)
			inst.Close()
		}
	})

	inst := newInstance(b)
	defer inst.Close()
	runFibBenches(b, inst)
	runReverseArrayBenches(b, inst)
}

func runFibBenches(b *testing.B, inst *wasmjit.Instance) {
	fn := inst.ExportedFunction("fibonacci")
	for _, num := range []uint64{5, 10, 20} {
		b.Run(fmt.Sprintf("fibonacci_%d", num), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := fn.Call(context.Background(), num); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func runReverseArrayBenches(b *testing.B, inst *wasmjit.Instance) {
	fn := inst.ExportedFunction("reverse_array")
	for _, arraySize := range []uint64{500, 1000, 10000} {
		b.Run(fmt.Sprintf("reverse_array_size_%d", arraySize), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := fn.Call(context.Background(), arraySize); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
