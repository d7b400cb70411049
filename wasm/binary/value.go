package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

var noValType = []byte{0}

// encodedValTypes is a cache of size prefixed binary encoding of known val types.
var encodedValTypes = map[wasm.ValueType][]byte{
	wasm.ValueTypeI32: {1, wasm.ValueTypeI32},
	wasm.ValueTypeI64: {1, wasm.ValueTypeI64},
	wasm.ValueTypeF32: {1, wasm.ValueTypeF32},
	wasm.ValueTypeF64: {1, wasm.ValueTypeF64},
}

// encodeValTypes fast paths binary encoding of common value type lengths
func encodeValTypes(vt []wasm.ValueType) []byte {
	switch len(vt) {
	case 0: // nullary
		return noValType
	case 1: // ex a single param or result
		if encoded, ok := encodedValTypes[vt[0]]; ok {
			return encoded
		}
	}
	count := leb128.EncodeUint32(uint32(len(vt)))
	return append(count, vt...)
}

func decodeValueTypes(r *Cursor, num uint32) ([]wasm.ValueType, error) {
	if num == 0 {
		return nil, nil
	}
	buf, err := r.ReadBytes(num)
	if err != nil {
		return nil, err
	}

	ret := make([]wasm.ValueType, num)
	for i, v := range buf {
		if !wasm.IsValueType(v) {
			return nil, fmt.Errorf("%w: invalid value type: %#x", wasm.ErrInvalidByte, v)
		}
		ret[i] = v
	}
	return ret, nil
}

func decodeValueType(r *Cursor) (wasm.ValueType, error) {
	v, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	if !wasm.IsValueType(v) {
		return 0, fmt.Errorf("%w: invalid value type: %#x", wasm.ErrInvalidByte, v)
	}
	return v, nil
}
