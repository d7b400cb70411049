package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

func decodeImport(r *Cursor, typeCount uint32) (i *wasm.Import, err error) {
	i = &wasm.Import{}
	if i.Module, err = r.ReadName(); err != nil {
		return nil, fmt.Errorf("error decoding import module: %w", err)
	}

	if i.Name, err = r.ReadName(); err != nil {
		return nil, fmt.Errorf("error decoding import name: %w", err)
	}

	if i.Kind, err = r.ReadUint8(); err != nil {
		return nil, fmt.Errorf("error decoding import kind: %w", err)
	}

	switch i.Kind {
	case wasm.ImportKindFunc:
		if i.DescFunc, err = r.ReadVarUint32(); err != nil {
			return nil, fmt.Errorf("error decoding import func typeindex: %w", err)
		}
		if i.DescFunc >= typeCount {
			return nil, fmt.Errorf("invalid type index %d for import %s.%s: %d types", i.DescFunc, i.Module, i.Name, typeCount)
		}
	case wasm.ImportKindTable:
		if i.DescTable, err = decodeTableType(r); err != nil {
			return nil, fmt.Errorf("error decoding import table desc: %w", err)
		}
	case wasm.ImportKindMemory:
		if i.DescMem, err = decodeMemoryType(r); err != nil {
			return nil, fmt.Errorf("error decoding import mem desc: %w", err)
		}
	case wasm.ImportKindGlobal:
		if i.DescGlobal, err = decodeGlobalType(r); err != nil {
			return nil, fmt.Errorf("error decoding import global desc: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: invalid byte for importdesc: %#x", wasm.ErrInvalidByte, i.Kind)
	}
	return
}

// encodeImport returns the wasm.Import encoded in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-import
func encodeImport(i *wasm.Import) []byte {
	data := encodeSizePrefixed([]byte(i.Module))
	data = append(data, encodeSizePrefixed([]byte(i.Name))...)
	data = append(data, i.Kind)
	switch i.Kind {
	case wasm.ImportKindFunc:
		data = append(data, leb128.EncodeUint32(i.DescFunc)...)
	case wasm.ImportKindTable:
		data = append(data, encodeTableType(i.DescTable)...)
	case wasm.ImportKindMemory:
		data = append(data, encodeMemoryType(i.DescMem)...)
	case wasm.ImportKindGlobal:
		data = append(data, encodeGlobalType(i.DescGlobal)...)
	default:
		panic(fmt.Errorf("invalid ImportKind: %#x", i.Kind))
	}
	return data
}
