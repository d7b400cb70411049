package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

func decodeExport(r *Cursor) (i *wasm.Export, err error) {
	i = &wasm.Export{}

	if i.Name, err = r.ReadName(); err != nil {
		return nil, fmt.Errorf("error decoding export name: %w", err)
	}

	if i.Kind, err = r.ReadUint8(); err != nil {
		return nil, fmt.Errorf("error decoding export kind: %w", err)
	}

	switch i.Kind {
	case wasm.ExportKindFunc, wasm.ExportKindTable, wasm.ExportKindMemory, wasm.ExportKindGlobal:
		if i.Index, err = r.ReadVarUint32(); err != nil {
			return nil, fmt.Errorf("error decoding export index: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: invalid byte for exportdesc: %#x", wasm.ErrInvalidByte, i.Kind)
	}
	return
}

// validateExport checks the index is in the namespace of the kind, considering sections decoded so far.
func validateExport(m *wasm.Module, e *wasm.Export) error {
	var count uint32
	switch e.Kind {
	case wasm.ExportKindFunc:
		count = m.FunctionCount()
	case wasm.ExportKindGlobal:
		count = m.GlobalCount()
	case wasm.ExportKindMemory:
		if m.HasMemory() {
			count = 1
		}
	case wasm.ExportKindTable:
		if m.HasTable() {
			count = 1
		}
	}
	if e.Index >= count {
		return fmt.Errorf("unknown %s %d for export %q", wasm.ExportKindName(e.Kind), e.Index, e.Name)
	}
	return nil
}

// encodeExport returns the wasm.Export encoded in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#export-section%E2%91%A0
func encodeExport(i *wasm.Export) []byte {
	data := encodeSizePrefixed([]byte(i.Name))
	data = append(data, i.Kind)
	data = append(data, leb128.EncodeUint32(i.Index)...)
	return data
}
