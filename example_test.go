package wasmjit

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/binary"
)

// This is an example of how to compile a module importing a host function and call its export.
func Example() {
	// Choose the context to use for function calls.
	ctx := context.Background()

	// The module imports "env" "log" and exports "add", which logs its sum before returning it.
	i32i32_i32 := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	i32_i32 := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	source := binary.EncodeModule(&wasm.Module{
		TypeSection:     []*wasm.FunctionType{i32i32_i32, i32_i32},
		ImportSection:   []*wasm.Import{{Kind: wasm.ImportKindFunc, Module: "env", Name: "log", DescFunc: 1}},
		FunctionSection: []uint32{0},
		ExportSection:   map[string]*wasm.Export{"add": {Kind: wasm.ExportKindFunc, Name: "add", Index: 1}},
		CodeSection: []*wasm.Code{{Body: []byte{
			wasm.OpcodeLocalGet, 0, wasm.OpcodeLocalGet, 1, wasm.OpcodeI32Add, wasm.OpcodeCall, 0, wasm.OpcodeEnd,
		}}},
	})

	logImport := &FunctionImport{Module: "env", Name: "log", Type: i32_i32,
		Func: func(_ *wasm.HostFunctionCallContext, params []uint64) []uint64 {
			fmt.Println("log:", uint32(params[0]))
			return params
		}}

	creator, err := Compile(bytes.NewReader(source), logImport)
	if err != nil {
		log.Fatal(err)
	}
	instance, err := creator.NewInstance(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer instance.Close()

	x, y := uint64(1), uint64(2)
	results, err := instance.ExportedFunction("add").Call(ctx, x, y)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%d + %d = %d\n", x, y, results[0])

	// Output:
	// log: 3
	// 1 + 2 = 3
}
