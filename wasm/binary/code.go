package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// maxLocals is the limit of locals declared by a single function body.
const maxLocals = 50000

func decodeCode(r *Cursor) (*wasm.Code, error) {
	ss, err := r.ReadVarUint32()
	if err != nil {
		return nil, fmt.Errorf("get the size of code: %w", err)
	}
	codeOffset := r.Offset()
	buf, err := r.ReadBytes(ss)
	if err != nil {
		return nil, fmt.Errorf("read code of size %d: %w", ss, err)
	}
	cr := NewCursorAt(buf, codeOffset)

	// parse locals
	ls, err := cr.ReadVarUint32()
	if err != nil {
		return nil, cr.Error(fmt.Errorf("get the size locals: %w", err))
	}

	var nums []uint32
	var types []wasm.ValueType
	var sum uint64
	for i := uint32(0); i < ls; i++ {
		n, err := cr.ReadVarUint32()
		if err != nil {
			return nil, cr.Error(fmt.Errorf("read n of locals: %w", err))
		}
		sum += uint64(n)
		if sum > maxLocals {
			return nil, cr.Errorf("too many locals: %d", sum)
		}
		nums = append(nums, n)

		vt, err := decodeValueType(cr)
		if err != nil {
			return nil, cr.Error(fmt.Errorf("read type of local: %w", err))
		}
		types = append(types, vt)
	}

	var localTypes []wasm.ValueType
	for i, num := range nums {
		t := types[i]
		for j := uint32(0); j < num; j++ {
			localTypes = append(localTypes, t)
		}
	}

	bodyOffset := cr.Offset()
	body, err := cr.ReadBytes(uint32(cr.Remaining()))
	if err != nil {
		return nil, cr.Error(fmt.Errorf("read body: %w", err))
	}
	if len(body) == 0 || body[len(body)-1] != wasm.OpcodeEnd {
		return nil, cr.Errorf("expr not end with OpcodeEnd")
	}

	return &wasm.Code{
		Body:       body,
		BodyOffset: bodyOffset,
		LocalTypes: localTypes,
	}, nil
}

// encodeCode returns the wasm.Code encoded in WebAssembly 1.0 (MVP) Binary Format. Adjacent locals of the same type
// are grouped.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-code
func encodeCode(c *wasm.Code) []byte {
	var groups, locals []byte
	var groupCount uint32
	for i := 0; i < len(c.LocalTypes); {
		vt := c.LocalTypes[i]
		n := uint32(0)
		for ; i < len(c.LocalTypes) && c.LocalTypes[i] == vt; i++ {
			n++
		}
		groupCount++
		locals = append(locals, leb128.EncodeUint32(n)...)
		locals = append(locals, vt)
	}
	groups = append(leb128.EncodeUint32(groupCount), locals...)
	return encodeSizePrefixed(append(groups, c.Body...))
}
