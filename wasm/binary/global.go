package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

// decodeGlobalType returns the wasm.GlobalType decoded with the WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-globaltype
func decodeGlobalType(r *Cursor) (*wasm.GlobalType, error) {
	vt, err := decodeValueType(r)
	if err != nil {
		return nil, fmt.Errorf("read value type: %w", err)
	}

	mut, err := r.ReadVarUint1()
	if err != nil {
		return nil, fmt.Errorf("read mutablity: %w", err)
	}
	return &wasm.GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func encodeGlobalType(t *wasm.GlobalType) []byte {
	if t.Mutable {
		return []byte{t.ValType, 1}
	}
	return []byte{t.ValType, 0}
}

// decodeGlobal decodes a global defined by this module. importedGlobals are the only globals its initializer may
// read.
func decodeGlobal(r *Cursor, importedGlobals []*wasm.GlobalType) (*wasm.Global, error) {
	gt, err := decodeGlobalType(r)
	if err != nil {
		return nil, fmt.Errorf("read global type: %w", err)
	}

	init, err := decodeConstantExpression(r)
	if err != nil {
		return nil, fmt.Errorf("get init expression: %w", err)
	}

	vt, err := init.ResultType(importedGlobals)
	if err != nil {
		return nil, fmt.Errorf("init expression: %w", err)
	}
	if vt != gt.ValType {
		return nil, fmt.Errorf("init expression type %s mismatches global type %s",
			wasm.ValueTypeName(vt), wasm.ValueTypeName(gt.ValType))
	}

	return &wasm.Global{
		Type: gt,
		Init: init,
	}, nil
}

func encodeGlobal(g *wasm.Global) []byte {
	return append(encodeGlobalType(g.Type), encodeConstantExpression(g.Init)...)
}
