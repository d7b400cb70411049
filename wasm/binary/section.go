package binary

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

// functionTypeForm is the leading byte of a function type.
const functionTypeForm = 0x60

var (
	errCodeWithoutFunction = errors.New("Code section is invalid when Function section is missing.")
	errDataWithoutMemory   = errors.New("Data section cannot be used unless a memory section is defined.")
)

func decodeTypeSection(r *Cursor) ([]*wasm.FunctionType, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.FunctionType, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeFunctionType(r); err != nil {
			return nil, fmt.Errorf("read %d-th type: %w", i, err)
		}
		result[i].TypeIndex = i
	}
	return result, nil
}

// decodeFunctionType decodes a signature. More than one result is allowed: extra results are returned through
// output parameters.
func decodeFunctionType(r *Cursor) (*wasm.FunctionType, error) {
	form, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("read leading byte: %w", err)
	}

	if form != functionTypeForm {
		return nil, fmt.Errorf("%w: %#x != %#x", wasm.ErrInvalidByte, form, functionTypeForm)
	}

	s, err := r.ReadVarUint32()
	if err != nil {
		return nil, fmt.Errorf("could not read parameter count: %w", err)
	}

	paramTypes, err := decodeValueTypes(r, s)
	if err != nil {
		return nil, fmt.Errorf("could not read parameter types: %w", err)
	}

	s, err = r.ReadVarUint32()
	if err != nil {
		return nil, fmt.Errorf("could not read result count: %w", err)
	}

	resultTypes, err := decodeValueTypes(r, s)
	if err != nil {
		return nil, fmt.Errorf("could not read result types: %w", err)
	}

	return &wasm.FunctionType{
		Params:  paramTypes,
		Results: resultTypes,
	}, nil
}

func decodeImportSection(r *Cursor, m *wasm.Module) ([]*wasm.Import, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	typeCount := uint32(len(m.TypeSection))
	var memories, tables int
	result := make([]*wasm.Import, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeImport(r, typeCount); err != nil {
			return nil, fmt.Errorf("read import: %w", err)
		}
		switch result[i].Kind {
		case wasm.ImportKindMemory:
			memories++
		case wasm.ImportKindTable:
			tables++
		}
	}
	if memories > 1 {
		return nil, fmt.Errorf("multiple memories are not supported")
	}
	if tables > 1 {
		return nil, fmt.Errorf("multiple tables are not supported")
	}
	return result, nil
}

func decodeFunctionSection(r *Cursor, m *wasm.Module) ([]uint32, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	typeCount := uint32(len(m.TypeSection))
	result := make([]uint32, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = r.ReadVarUint32(); err != nil {
			return nil, fmt.Errorf("get type index: %w", err)
		}
		if result[i] >= typeCount {
			return nil, fmt.Errorf("invalid type index %d for function %d: %d types", result[i], i, typeCount)
		}
	}
	return result, nil
}

func decodeTableSection(r *Cursor, m *wasm.Module) (*wasm.TableType, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	if vs == 0 {
		return nil, nil
	}
	if vs > 1 || m.ImportedTable() != nil {
		return nil, fmt.Errorf("multiple tables are not supported")
	}

	ret, err := decodeTableType(r)
	if err != nil {
		return nil, fmt.Errorf("read table type: %w", err)
	}
	return ret, nil
}

func decodeMemorySection(r *Cursor, m *wasm.Module) (*wasm.MemoryType, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	if vs == 0 {
		return nil, nil
	}
	if vs > 1 || m.ImportedMemory() != nil {
		return nil, fmt.Errorf("multiple memories are not supported")
	}

	ret, err := decodeMemoryType(r)
	if err != nil {
		return nil, fmt.Errorf("read memory type: %w", err)
	}
	return ret, nil
}

func decodeGlobalSection(r *Cursor, m *wasm.Module) ([]*wasm.Global, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	// Only imported globals are visible to initializers.
	imported := m.GlobalTypes()
	result := make([]*wasm.Global, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeGlobal(r, imported); err != nil {
			return nil, fmt.Errorf("read global[%d]: %w", i, err)
		}
	}
	return result, nil
}

func decodeExportSection(r *Cursor, m *wasm.Module) (map[string]*wasm.Export, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	exportSection := make(map[string]*wasm.Export, vs)
	for i := uint32(0); i < vs; i++ {
		export, err := decodeExport(r)
		if err != nil {
			return nil, fmt.Errorf("read export: %w", err)
		}
		if _, ok := exportSection[export.Name]; ok {
			return nil, fmt.Errorf("export[%d] duplicates name %q", i, export.Name)
		}
		if err = validateExport(m, export); err != nil {
			return nil, err
		}
		exportSection[export.Name] = export
	}
	return exportSection, nil
}

func decodeStartSection(r *Cursor, m *wasm.Module) (*uint32, error) {
	funcIdx, err := r.ReadVarUint32()
	if err != nil {
		return nil, fmt.Errorf("get function index: %w", err)
	}
	if funcIdx >= m.FunctionCount() {
		return nil, fmt.Errorf("invalid start function index %d: %d functions", funcIdx, m.FunctionCount())
	}
	return &funcIdx, nil
}

func decodeElementSection(r *Cursor, m *wasm.Module) ([]*wasm.ElementSegment, error) {
	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.ElementSegment, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeElementSegment(r, m); err != nil {
			return nil, fmt.Errorf("read element: %w", err)
		}
	}
	return result, nil
}

func decodeCodeSection(r *Cursor, m *wasm.Module) ([]*wasm.Code, error) {
	if m.FunctionSection == nil {
		return nil, errCodeWithoutFunction
	}

	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}
	if vs != uint32(len(m.FunctionSection)) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths: %d != %d", len(m.FunctionSection), vs)
	}

	result := make([]*wasm.Code, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeCode(r); err != nil {
			return nil, fmt.Errorf("read %d-th code segment: %w", i, err)
		}
	}
	return result, nil
}

func decodeDataSection(r *Cursor, m *wasm.Module) ([]*wasm.DataSegment, error) {
	if !m.HasMemory() {
		return nil, errDataWithoutMemory
	}

	vs, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	result := make([]*wasm.DataSegment, vs)
	for i := uint32(0); i < vs; i++ {
		if result[i], err = decodeDataSegment(r, m); err != nil {
			return nil, fmt.Errorf("read data segment: %w", err)
		}
	}
	return result, nil
}

// encodeSection encodes the sectionID, the size of its contents in bytes, followed by the contents.
// See https://www.w3.org/TR/wasm-core-1/#sections%E2%91%A0
func encodeSection(sectionID wasm.SectionID, contents []byte) []byte {
	return append([]byte{sectionID}, encodeSizePrefixed(contents)...)
}

// encodeVector encodes a SectionID whose contents are a vector of n items, each encoded by encodeItem.
func encodeVector(sectionID wasm.SectionID, n int, encodeItem func(i int) []byte) []byte {
	contents := leb128.EncodeUint32(uint32(n))
	for i := 0; i < n; i++ {
		contents = append(contents, encodeItem(i)...)
	}
	return encodeSection(sectionID, contents)
}

// encodeTypeSection encodes a SectionIDType for the given imports in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#type-section%E2%91%A0
func encodeTypeSection(types []*wasm.FunctionType) []byte {
	return encodeVector(wasm.SectionIDType, len(types), func(i int) []byte {
		return encodeFunctionType(types[i])
	})
}

// encodeFunctionType returns the wasm.FunctionType encoded in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-functype
func encodeFunctionType(t *wasm.FunctionType) []byte {
	data := append([]byte{functionTypeForm}, encodeValTypes(t.Params)...)
	return append(data, encodeValTypes(t.Results)...)
}

// encodeImportSection encodes a SectionIDImport for the given imports in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#import-section%E2%91%A0
func encodeImportSection(imports []*wasm.Import) []byte {
	return encodeVector(wasm.SectionIDImport, len(imports), func(i int) []byte {
		return encodeImport(imports[i])
	})
}

// encodeFunctionSection encodes a SectionIDFunction for the type indices associated with module-defined functions in
// WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#function-section%E2%91%A0
func encodeFunctionSection(typeIndices []uint32) []byte {
	return encodeVector(wasm.SectionIDFunction, len(typeIndices), func(i int) []byte {
		return leb128.EncodeUint32(typeIndices[i])
	})
}

func encodeTableSection(table *wasm.TableType) []byte {
	return encodeVector(wasm.SectionIDTable, 1, func(int) []byte {
		return encodeTableType(table)
	})
}

// encodeMemorySection encodes a SectionIDMemory for the module-defined function in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#memory-section%E2%91%A0
func encodeMemorySection(memory *wasm.MemoryType) []byte {
	return encodeVector(wasm.SectionIDMemory, 1, func(int) []byte {
		return encodeMemoryType(memory)
	})
}

func encodeGlobalSection(globals []*wasm.Global) []byte {
	return encodeVector(wasm.SectionIDGlobal, len(globals), func(i int) []byte {
		return encodeGlobal(globals[i])
	})
}

// encodeExportSection encodes a SectionIDExport for the given exports in WebAssembly 1.0 (MVP) Binary Format. Exports
// are ordered by kind then index, so the result is deterministic.
//
// See https://www.w3.org/TR/wasm-core-1/#export-section%E2%91%A0
func encodeExportSection(exports map[string]*wasm.Export) []byte {
	sorted := make([]*wasm.Export, 0, len(exports))
	for _, e := range exports {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		if sorted[i].Index != sorted[j].Index {
			return sorted[i].Index < sorted[j].Index
		}
		return sorted[i].Name < sorted[j].Name
	})
	return encodeVector(wasm.SectionIDExport, len(sorted), func(i int) []byte {
		return encodeExport(sorted[i])
	})
}

// encodeStartSection encodes a SectionIDStart for the given function index in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#start-section%E2%91%A0
func encodeStartSection(funcidx uint32) []byte {
	return encodeSection(wasm.SectionIDStart, leb128.EncodeUint32(funcidx))
}

func encodeElementSection(elements []*wasm.ElementSegment) []byte {
	return encodeVector(wasm.SectionIDElement, len(elements), func(i int) []byte {
		return encodeElementSegment(elements[i])
	})
}

// encodeCodeSection encodes a SectionIDCode for the module-defined function in WebAssembly 1.0 (MVP) Binary Format.
//
// See https://www.w3.org/TR/wasm-core-1/#code-section%E2%91%A0
func encodeCodeSection(code []*wasm.Code) []byte {
	return encodeVector(wasm.SectionIDCode, len(code), func(i int) []byte {
		return encodeCode(code[i])
	})
}

func encodeDataSection(data []*wasm.DataSegment) []byte {
	return encodeVector(wasm.SectionIDData, len(data), func(i int) []byte {
		return encodeDataSegment(data[i])
	})
}

// encodeCustomSection encodes the opaque bytes for the given name as a SectionIDCustom
// See https://www.w3.org/TR/wasm-core-1/#binary-customsec
func encodeCustomSection(name string, data []byte) []byte {
	contents := encodeSizePrefixed([]byte(name))
	return encodeSection(wasm.SectionIDCustom, append(contents, data...))
}
