package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// decodeLimitsType returns the wasm.LimitsType decoded with the WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#limits%E2%91%A6
func decodeLimitsType(r *Cursor) (*wasm.LimitsType, error) {
	flag, err := r.ReadVarUint1()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %w", err)
	}

	ret := &wasm.LimitsType{}
	if ret.Min, err = r.ReadVarUint32(); err != nil {
		return nil, fmt.Errorf("read min of limit: %w", err)
	}
	if flag == 1 {
		m, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("read max of limit: %w", err)
		}
		if m < ret.Min {
			return nil, fmt.Errorf("min %d is greater than max %d", ret.Min, m)
		}
		ret.Max = &m
	}
	return ret, nil
}

// encodeLimitsType returns the wasm.LimitsType encoded in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#limits%E2%91%A6
func encodeLimitsType(l *wasm.LimitsType) []byte {
	if l.Max == nil {
		return append(leb128.EncodeUint32(0x00), leb128.EncodeUint32(l.Min)...)
	}
	return append(leb128.EncodeUint32(0x01), append(leb128.EncodeUint32(l.Min), leb128.EncodeUint32(*l.Max)...)...)
}

// decodeMemoryType returns the wasm.MemoryType decoded with the WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-memory
func decodeMemoryType(r *Cursor) (*wasm.MemoryType, error) {
	ret, err := decodeLimitsType(r)
	if err != nil {
		return nil, err
	}
	if ret.Min > wasm.MemoryLimitPages {
		return nil, fmt.Errorf("memory min must be at most %d pages (4GiB)", wasm.MemoryLimitPages)
	}
	if ret.Max != nil && *ret.Max > wasm.MemoryLimitPages {
		return nil, fmt.Errorf("memory max must be at most %d pages (4GiB)", wasm.MemoryLimitPages)
	}
	return ret, nil
}

func encodeMemoryType(m *wasm.MemoryType) []byte {
	return encodeLimitsType(m)
}

// decodeTableType returns the wasm.TableType decoded with the WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-table
func decodeTableType(r *Cursor) (*wasm.TableType, error) {
	elemType, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %w", err)
	}
	if elemType != wasm.ElemTypeFuncref {
		return nil, fmt.Errorf("%w: invalid element type %#x != funcref(%#x)", wasm.ErrInvalidByte, elemType, wasm.ElemTypeFuncref)
	}

	limit, err := decodeLimitsType(r)
	if err != nil {
		return nil, fmt.Errorf("read limits: %w", err)
	}
	return &wasm.TableType{ElemType: elemType, Limit: limit}, nil
}

func encodeTableType(t *wasm.TableType) []byte {
	return append([]byte{t.ElemType}, encodeLimitsType(t.Limit)...)
}
