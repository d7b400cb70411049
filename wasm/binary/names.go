package binary

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/leb128"
)

const (
	// subsectionIDModuleName contains only the module name.
	subsectionIDModuleName = uint8(0)
	// subsectionIDFunctionNames is a map of indices to function names, in ascending order by function index
	subsectionIDFunctionNames = uint8(1)
	// subsectionIDLocalNames contain a map of function indices to a map of local indices to their names, in ascending
	// order by function and local index
	subsectionIDLocalNames = uint8(2)
)

// decodeNameSection deserializes the data associated with the "name" key in SectionIDCustom according to the
// standard:
//
// * ModuleName decode from subsection 0
// * FunctionNames decode from subsection 1
// * LocalNames decode from subsection 2
//
// See https://www.w3.org/TR/wasm-core-1/#binary-namesec
func decodeNameSection(data []byte) (*wasm.NameSection, error) {
	r := NewCursor(data)
	result := &wasm.NameSection{}
	for {
		subsectionID, ok, err := r.TryReadVarUint7()
		if err != nil {
			return nil, fmt.Errorf("failed to read a subsection ID: %w", err)
		} else if !ok {
			return result, nil
		}

		subsectionSize, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read the size of subsection[%d]: %w", subsectionID, err)
		}
		content, err := r.ReadBytes(subsectionSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read subsection[%d]: %w", subsectionID, err)
		}
		sr := NewCursor(content)

		switch subsectionID {
		case subsectionIDModuleName:
			if result.ModuleName, err = sr.ReadName(); err != nil {
				return nil, fmt.Errorf("failed to read module name: %w", err)
			}
		case subsectionIDFunctionNames:
			if result.FunctionNames, err = decodeNameMap(sr, "function"); err != nil {
				return nil, err
			}
		case subsectionIDLocalNames:
			if result.LocalNames, err = decodeIndirectNameMap(sr); err != nil {
				return nil, err
			}
		default: // Other subsections were skipped by ReadBytes.
			continue
		}
		if !sr.EOF() {
			return nil, fmt.Errorf("subsection[%d] has %d unread bytes", subsectionID, sr.Remaining())
		}
	}
}

// decodeNameMap decodes a vector of index and name pairs.
// See https://www.w3.org/TR/wasm-core-1/#binary-namemap
func decodeNameMap(r *Cursor, what string) (wasm.NameMap, error) {
	count, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("failed to read the %s count: %w", what, err)
	}

	result := make(wasm.NameMap, 0, count)
	for i := uint32(0); i < count; i++ {
		index, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read a %s index: %w", what, err)
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s[%d] name: %w", what, index, err)
		}
		result = append(result, &wasm.NameAssoc{Index: index, Name: name})
	}
	return result, nil
}

func decodeIndirectNameMap(r *Cursor) (wasm.IndirectNameMap, error) {
	count, err := r.ReadVectorSize()
	if err != nil {
		return nil, fmt.Errorf("failed to read the function count of subsection[%d]: %w", subsectionIDLocalNames, err)
	}

	result := make(wasm.IndirectNameMap, 0, count)
	for i := uint32(0); i < count; i++ {
		funcIndex, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read a function index in subsection[%d]: %w", subsectionIDLocalNames, err)
		}
		locals, err := decodeNameMap(r, fmt.Sprintf("function[%d] local", funcIndex))
		if err != nil {
			return nil, err
		}
		result = append(result, &wasm.NameMapAssoc{Index: funcIndex, NameMap: locals})
	}
	return result, nil
}

// encodeNameSectionData serializes the data for the "name" key in SectionIDCustom according to the standard:
//
// Note: The result can be nil because this does not encode empty subsections
//
// See https://www.w3.org/TR/wasm-core-1/#binary-namesec
func encodeNameSectionData(n *wasm.NameSection) (data []byte) {
	if n.ModuleName != "" {
		data = append(data, encodeNameSubsection(subsectionIDModuleName, encodeSizePrefixed([]byte(n.ModuleName)))...)
	}
	if len(n.FunctionNames) > 0 {
		data = append(data, encodeNameSubsection(subsectionIDFunctionNames, encodeNameMap(n.FunctionNames))...)
	}
	if len(n.LocalNames) > 0 {
		data = append(data, encodeNameSubsection(subsectionIDLocalNames, encodeIndirectNameMap(n.LocalNames))...)
	}
	return
}

// encodeNameMap encodes the entries in their existing order, which the decoder preserves.
func encodeNameMap(m wasm.NameMap) []byte {
	data := leb128.EncodeUint32(uint32(len(m)))
	for _, a := range m {
		data = append(data, encodeNameMapEntry(a.Index, []byte(a.Name))...)
	}
	return data
}

// encodeIndirectNameMap encodes the data for the local name subsection.
// See https://www.w3.org/TR/wasm-core-1/#binary-localnamesec
func encodeIndirectNameMap(m wasm.IndirectNameMap) []byte {
	data := leb128.EncodeUint32(uint32(len(m)))
	for _, a := range m {
		data = append(data, leb128.EncodeUint32(a.Index)...)
		data = append(data, encodeNameMap(a.NameMap)...)
	}
	return data
}

// encodeNameSubsection returns a buffer encoding the given subsection
// See https://www.w3.org/TR/wasm-core-1/#subsections%E2%91%A0
func encodeNameSubsection(subsectionID uint8, content []byte) []byte {
	contentSizeInBytes := leb128.EncodeUint32(uint32(len(content)))
	result := []byte{subsectionID}
	result = append(result, contentSizeInBytes...)
	result = append(result, content...)
	return result
}

// encodeNameMapEntry encodes the index and data prefixed by their size.
// See https://www.w3.org/TR/wasm-core-1/#binary-namemap
func encodeNameMapEntry(i uint32, data []byte) []byte {
	return append(leb128.EncodeUint32(i), encodeSizePrefixed(data)...)
}

// encodeSizePrefixed encodes the data prefixed by their size.
func encodeSizePrefixed(data []byte) []byte {
	size := leb128.EncodeUint32(uint32(len(data)))
	return append(size, data...)
}
