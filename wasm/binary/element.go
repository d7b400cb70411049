package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

func decodeElementSegment(r *Cursor, m *wasm.Module) (*wasm.ElementSegment, error) {
	ti, err := r.ReadVarUint32()
	if err != nil {
		return nil, fmt.Errorf("get table index: %w", err)
	}
	if ti != 0 || !m.HasTable() {
		return nil, fmt.Errorf("unknown table %d", ti)
	}

	expr, err := decodeConstantExpression(r)
	if err != nil {
		return nil, fmt.Errorf("read expr for offset: %w", err)
	}
	if expr.Opcode != wasm.OpcodeI32Const {
		return nil, fmt.Errorf("element offset must be i32.const, but was %s", wasm.InstructionName(expr.Opcode))
	}

	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	funcCount := m.FunctionCount()
	init := make([]uint32, vs)
	for i := range init {
		fIdx, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("read function index: %w", err)
		}
		if fIdx >= funcCount {
			return nil, fmt.Errorf("unknown function %d in element[%d]", fIdx, i)
		}
		init[i] = fIdx
	}

	return &wasm.ElementSegment{
		TableIndex: ti,
		OffsetExpr: expr,
		Init:       init,
	}, nil
}

func encodeElementSegment(e *wasm.ElementSegment) []byte {
	data := leb128.EncodeUint32(e.TableIndex)
	data = append(data, encodeConstantExpression(e.OffsetExpr)...)
	data = append(data, leb128.EncodeUint32(uint32(len(e.Init)))...)
	for _, fIdx := range e.Init {
		data = append(data, leb128.EncodeUint32(fIdx)...)
	}
	return data
}

func decodeDataSegment(r *Cursor, m *wasm.Module) (*wasm.DataSegment, error) {
	mi, err := r.ReadVarUint32()
	if err != nil {
		return nil, fmt.Errorf("get memory index: %w", err)
	}
	if mi != 0 {
		return nil, fmt.Errorf("unknown memory %d", mi)
	}

	expr, err := decodeConstantExpression(r)
	if err != nil {
		return nil, fmt.Errorf("read offset expression: %w", err)
	}
	if err = validateDataOffset(m, expr); err != nil {
		return nil, err
	}

	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	b, err := r.ReadBytes(vs)
	if err != nil {
		return nil, fmt.Errorf("read bytes for init: %w", err)
	}

	return &wasm.DataSegment{
		MemoryIndex:      mi,
		OffsetExpression: expr,
		Init:             b,
	}, nil
}

// validateDataOffset accepts i32.const or global.get of an imported immutable i32 global.
func validateDataOffset(m *wasm.Module, expr *wasm.ConstantExpression) error {
	switch expr.Opcode {
	case wasm.OpcodeI32Const:
		return nil
	case wasm.OpcodeGlobalGet:
		idx, err := expr.GlobalIndex()
		if err != nil {
			return err
		}
		var imported []*wasm.GlobalType
		for _, im := range m.ImportSection {
			if im.Kind == wasm.ImportKindGlobal {
				imported = append(imported, im.DescGlobal)
			}
		}
		if idx >= uint32(len(imported)) {
			return fmt.Errorf("data offset must read an imported global, but global %d is not imported", idx)
		}
		if gt := imported[idx]; gt.Mutable || gt.ValType != wasm.ValueTypeI32 {
			return fmt.Errorf("data offset must read an immutable i32 global, but global %d is not", idx)
		}
		return nil
	}
	return fmt.Errorf("data offset must be i32.const or global.get, but was %s", wasm.InstructionName(expr.Opcode))
}

func encodeDataSegment(d *wasm.DataSegment) []byte {
	data := leb128.EncodeUint32(d.MemoryIndex)
	data = append(data, encodeConstantExpression(d.OffsetExpression)...)
	return append(data, encodeSizePrefixed(d.Init)...)
}
