//go:build amd64 && cgo && !windows

// Wasmtime can only be used in amd64 with CGO
// Wasmer doesn't link on Windows
package vs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/dfinity-lab/wasmjit"
	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/binary"
)

// facWasm exports "fac", the recursive factorial of an i64.
var facWasm = binary.EncodeModule(&wasm.Module{
	TypeSection: []*wasm.FunctionType{
		{Params: []wasm.ValueType{wasm.ValueTypeI64}, Results: []wasm.ValueType{wasm.ValueTypeI64}},
	},
	FunctionSection: []uint32{0},
	ExportSection:   map[string]*wasm.Export{"fac": {Kind: wasm.ExportKindFunc, Name: "fac", Index: 0}},
	CodeSection: []*wasm.Code{{Body: []byte{
		wasm.OpcodeLocalGet, 0, wasm.OpcodeI64Eqz,
		wasm.OpcodeIf, wasm.ValueTypeI64,
		wasm.OpcodeI64Const, 1,
		wasm.OpcodeElse,
		wasm.OpcodeLocalGet, 0,
		wasm.OpcodeLocalGet, 0, wasm.OpcodeI64Const, 1, wasm.OpcodeI64Sub,
		wasm.OpcodeCall, 0,
		wasm.OpcodeI64Mul,
		wasm.OpcodeEnd,
		wasm.OpcodeEnd,
	}}},
})

var facArgumentU64 = uint64(30)
var facArgumentI64 = int64(facArgumentU64)

// TestFac ensures that the code in BenchmarkFac works as expected.
func TestFac(t *testing.T) {
	ctx := context.Background()
	expValue := uint64(0x865df5dd54000000)

	t.Run("wasmjit", func(t *testing.T) {
		inst, fn, err := newWasmjitFacBench()
		require.NoError(t, err)
		defer inst.Close()

		for i := 0; i < 10000; i++ {
			res, err := fn.Call(ctx, facArgumentU64)
			require.NoError(t, err)
			require.Equal(t, expValue, res[0])
		}
	})

	t.Run("wazero", func(t *testing.T) {
		r, fn, err := newWazeroFacBench(ctx)
		require.NoError(t, err)
		defer r.Close(ctx)

		for i := 0; i < 10000; i++ {
			res, err := fn.Call(ctx, facArgumentU64)
			require.NoError(t, err)
			require.Equal(t, expValue, res[0])
		}
	})

	t.Run("wasmer-go", func(t *testing.T) {
		store, instance, fn, err := newWasmerForFacBench()
		require.NoError(t, err)
		defer store.Close()
		defer instance.Close()

		for i := 0; i < 10000; i++ {
			res, err := fn(facArgumentI64)
			require.NoError(t, err)
			require.Equal(t, int64(expValue), res)
		}
	})

	t.Run("wasmtime-go", func(t *testing.T) {
		store, run, err := newWasmtimeForFacBench()
		require.NoError(t, err)
		for i := 0; i < 10000; i++ {
			res, err := run.Call(store, facArgumentI64)
			require.NoError(t, err)
			require.Equal(t, int64(expValue), res)
		}
	})
}

// BenchmarkFac_Init tracks the time spent readying a function for use
func BenchmarkFac_Init(b *testing.B) {
	b.Run("wasmjit", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			inst, _, err := newWasmjitFacBench()
			if err != nil {
				b.Fatal(err)
			}
			inst.Close()
		}
	})

	b.Run("wazero", func(b *testing.B) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			r, _, err := newWazeroFacBench(ctx)
			if err != nil {
				b.Fatal(err)
			}
			r.Close(ctx)
		}
	})

	b.Run("wasmer-go", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			store, instance, _, err := newWasmerForFacBench()
			if err != nil {
				b.Fatal(err)
			}
			store.Close()
			instance.Close()
		}
	})

	b.Run("wasmtime-go", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, _, err := newWasmtimeForFacBench(); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkFac_Invoke benchmarks the time spent invoking a factorial calculation.
func BenchmarkFac_Invoke(b *testing.B) {
	b.Run("wasmjit", wasmjitFacInvoke)
	b.Run("wazero", wazeroFacInvoke)
	b.Run("wasmer-go", wasmerGoFacInvoke)
	b.Run("wasmtime-go", wasmtimeGoFacInvoke)
}

func wasmjitFacInvoke(b *testing.B) {
	ctx := context.Background()
	inst, fn, err := newWasmjitFacBench()
	if err != nil {
		b.Fatal(err)
	}
	defer inst.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err = fn.Call(ctx, facArgumentU64); err != nil {
			b.Fatal(err)
		}
	}
}

func wazeroFacInvoke(b *testing.B) {
	ctx := context.Background()
	r, fn, err := newWazeroFacBench(ctx)
	if err != nil {
		b.Fatal(err)
	}
	defer r.Close(ctx)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err = fn.Call(ctx, facArgumentU64); err != nil {
			b.Fatal(err)
		}
	}
}

func wasmerGoFacInvoke(b *testing.B) {
	store, instance, fn, err := newWasmerForFacBench()
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	defer instance.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err = fn(facArgumentI64); err != nil {
			b.Fatal(err)
		}
	}
}

func wasmtimeGoFacInvoke(b *testing.B) {
	store, run, err := newWasmtimeForFacBench()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err = run.Call(store, facArgumentI64); err != nil {
			b.Fatal(err)
		}
	}
}

func newWasmjitFacBench() (*wasmjit.Instance, wasmjit.Function, error) {
	creator, err := wasmjit.Compile(bytes.NewReader(facWasm))
	if err != nil {
		return nil, nil, err
	}
	inst, err := creator.NewInstance(context.Background())
	if err != nil {
		return nil, nil, err
	}
	return inst, inst.ExportedFunction("fac"), nil
}

func newWazeroFacBench(ctx context.Context) (wazero.Runtime, api.Function, error) {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	m, err := r.Instantiate(ctx, facWasm)
	if err != nil {
		return nil, nil, err
	}
	return r, m.ExportedFunction("fac"), nil
}

// newWasmerForFacBench returns the store and instance that scope the factorial function.
// Note: these should be closed
func newWasmerForFacBench() (*wasmer.Store, *wasmer.Instance, wasmer.NativeFunction, error) {
	store := wasmer.NewStore(wasmer.NewEngine())
	importObject := wasmer.NewImportObject()
	module, err := wasmer.NewModule(store, facWasm)
	if err != nil {
		return nil, nil, nil, err
	}
	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := instance.Exports.GetFunction("fac")
	if err != nil {
		return nil, nil, nil, err
	}
	if f == nil {
		return nil, nil, nil, errors.New("not a function")
	}
	return store, instance, f, nil
}

func newWasmtimeForFacBench() (*wasmtime.Store, *wasmtime.Func, error) {
	store := wasmtime.NewStore(wasmtime.NewEngine())
	module, err := wasmtime.NewModule(store.Engine, facWasm)
	if err != nil {
		return nil, nil, err
	}

	instance, err := wasmtime.NewInstance(store, module, nil)
	if err != nil {
		return nil, nil, err
	}

	run := instance.GetFunc(store, "fac")
	if run == nil {
		return nil, nil, errors.New("not a function")
	}
	return store, run, nil
}
