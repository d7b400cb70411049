package wasm

import (
	"fmt"
	"math"
	"strings"
)

// Module is a WebAssembly 1.0 (MVP) module as decoded from its binary format. The compiler only reads it: it is
// never mutated after decoding completes.
//
// Differences from the WebAssembly Core format:
// * The NameSection is decoded, so not present as a key "name" in CustomSections.
// * ExportSection is keyed by name as export names are unique.
//
// See https://www.w3.org/TR/wasm-core-1/#modules%E2%91%A8
type Module struct {
	// TypeSection contains the unique FunctionType of functions imported or defined in this module.
	TypeSection []*FunctionType

	// ImportSection contains imported functions, tables, memories or globals required for instantiation.
	ImportSection []*Import

	// FunctionSection contains the index in TypeSection of each function defined in this module.
	//
	// Note: The function index space begins with imported functions, so the function at FunctionSection[0] has index
	// ImportFuncCount().
	FunctionSection []uint32

	TableSection  *TableType
	MemorySection *MemoryType
	GlobalSection []*Global
	ExportSection map[string]*Export

	// StartSection is the index of a function to call before returning from instantiation, or nil if none.
	StartSection *uint32

	ElementSection []*ElementSegment

	// CodeSection is index-correlated with FunctionSection.
	CodeSection []*Code

	DataSection []*DataSegment

	// NameSection is set when the custom section "name" was present and well-formed.
	NameSection *NameSection

	// CustomSections are any custom sections except "name", keyed by name.
	CustomSections map[string][]byte
}

// ImportFuncCount returns the count of imported functions, which prefix the function index space.
func (m *Module) ImportFuncCount() uint32 {
	return m.importCount(ImportKindFunc)
}

// ImportGlobalCount returns the count of imported globals, which prefix the global index space.
func (m *Module) ImportGlobalCount() uint32 {
	return m.importCount(ImportKindGlobal)
}

func (m *Module) importCount(kind ImportKind) (ret uint32) {
	for _, im := range m.ImportSection {
		if im.Kind == kind {
			ret++
		}
	}
	return
}

// ImportedMemory returns the memory import or nil.
func (m *Module) ImportedMemory() *Import {
	for _, im := range m.ImportSection {
		if im.Kind == ImportKindMemory {
			return im
		}
	}
	return nil
}

// ImportedTable returns the table import or nil.
func (m *Module) ImportedTable() *Import {
	for _, im := range m.ImportSection {
		if im.Kind == ImportKindTable {
			return im
		}
	}
	return nil
}

// HasMemory is true when the module declares or imports a memory.
func (m *Module) HasMemory() bool {
	return m.MemorySection != nil || m.ImportedMemory() != nil
}

// HasTable is true when the module declares or imports a table.
func (m *Module) HasTable() bool {
	return m.TableSection != nil || m.ImportedTable() != nil
}

// FunctionCount is the size of the function index space.
func (m *Module) FunctionCount() uint32 {
	return m.ImportFuncCount() + uint32(len(m.FunctionSection))
}

// GlobalCount is the size of the global index space.
func (m *Module) GlobalCount() uint32 {
	return m.ImportGlobalCount() + uint32(len(m.GlobalSection))
}

// FunctionTypeIndexes returns the type index of every function, imported ones first.
func (m *Module) FunctionTypeIndexes() []uint32 {
	ret := make([]uint32, 0, m.FunctionCount())
	for _, im := range m.ImportSection {
		if im.Kind == ImportKindFunc {
			ret = append(ret, im.DescFunc)
		}
	}
	return append(ret, m.FunctionSection...)
}

// GlobalTypes returns the type of every global, imported ones first.
func (m *Module) GlobalTypes() []*GlobalType {
	ret := make([]*GlobalType, 0, m.GlobalCount())
	for _, im := range m.ImportSection {
		if im.Kind == ImportKindGlobal {
			ret = append(ret, im.DescGlobal)
		}
	}
	for _, g := range m.GlobalSection {
		ret = append(ret, g.Type)
	}
	return ret
}

// FunctionType is a possibly empty function signature.
//
// See https://www.w3.org/TR/wasm-core-1/#function-types%E2%91%A0
type FunctionType struct {
	// Params are the possibly empty sequence of value types accepted by a function with this signature.
	Params []ValueType

	// Results are the possibly empty sequence of value types returned by a function with this signature.
	//
	// Note: Unlike WebAssembly 1.0 (MVP), more than one result is allowed. All results after the first are returned
	// through output parameters.
	Results []ValueType

	// TypeIndex is the position of this type in the TypeSection it was decoded from.
	TypeIndex uint32
}

// EmptyFunctionType is the signature of a function without params or results. It must not be modified.
var EmptyFunctionType = &FunctionType{}

// EqualsSignature returns true if the function type has the same parameters and results, ignoring TypeIndex.
func (t *FunctionType) EqualsSignature(o *FunctionType) bool {
	if len(t.Results) != len(o.Results) || len(t.Params) != len(o.Params) {
		return false
	}
	for i, r := range t.Results {
		if r != o.Results[i] {
			return false
		}
	}
	for i, p := range t.Params {
		if p != o.Params[i] {
			return false
		}
	}
	return true
}

// String returns a stable, human readable form such as "i32i32_i64", or "v_v" for an empty signature.
func (t *FunctionType) String() string {
	return valueTypesString(t.Params) + "_" + valueTypesString(t.Results)
}

func valueTypesString(types []ValueType) string {
	if len(types) == 0 {
		return "v"
	}
	var b strings.Builder
	for _, vt := range types {
		b.WriteString(ValueTypeName(vt))
	}
	return b.String()
}

// Import is the binary representation of an import indicated by Kind
// See https://www.w3.org/TR/wasm-core-1/#binary-import
type Import struct {
	Kind ImportKind
	// Module is the possibly empty primary namespace of this import
	Module string
	// Name is the possibly empty secondary namespace of this import
	Name string
	// DescFunc is the index in Module.TypeSection when Kind equals ImportKindFunc
	DescFunc uint32
	// DescTable is the inlined TableType when Kind equals ImportKindTable
	DescTable *TableType
	// DescMem is the inlined MemoryType when Kind equals ImportKindMemory
	DescMem *MemoryType
	// DescGlobal is the inlined GlobalType when Kind equals ImportKindGlobal
	DescGlobal *GlobalType
}

// LimitsType are the page or element count bounds of a memory or table.
//
// See https://www.w3.org/TR/wasm-core-1/#limits%E2%91%A5
type LimitsType struct {
	Min uint32
	Max *uint32
}

// TableType is a table of ElemTypeFuncref.
type TableType struct {
	ElemType byte
	Limit    *LimitsType
}

// MemoryType is the page limits of a linear memory.
type MemoryType = LimitsType

const (
	// MemoryPageSize is the unit of memory length in WebAssembly, and is defined as 2^16 = 65536.
	// See https://www.w3.org/TR/wasm-core-1/#memory-instances%E2%91%A0
	MemoryPageSize = uint32(65536)

	// MemoryMaxPages is the maximum number of pages a memory may grow to: the count of whole pages addressable by
	// a uint32, so a bounds check can never overflow.
	MemoryMaxPages = uint32(math.MaxUint32 / uint64(MemoryPageSize))

	// MemoryLimitPages is the largest page count the binary format allows in a limits declaration.
	MemoryLimitPages = uint32(65536)

	// MemoryPageSizeInBits satisfies the relation: "1 << MemoryPageSizeInBits == MemoryPageSize".
	MemoryPageSizeInBits = 16
)

// MemoryPagesToBytesNum converts the given pages into the number of bytes contained in these pages.
func MemoryPagesToBytesNum(pages uint32) (bytesNum uint64) {
	return uint64(pages) << MemoryPageSizeInBits
}

// GlobalType is the value type and mutability of a global.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is a global defined by this module and its initializer.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// ConstantExpression is a single constant instruction followed by the end opcode, as used by global initializers
// and segment offsets.
type ConstantExpression struct {
	Opcode Opcode
	// Data is the encoded immediate: a LEB128 integer, IEEE 754 bits, or a global index.
	Data []byte
}

// Export is the binary representation of an export indicated by Kind.
// See https://www.w3.org/TR/wasm-core-1/#binary-export
type Export struct {
	Kind ExportKind
	// Name is what the host refers to this definition as.
	Name string
	// Index is the index of the definition to export, the index namespace is by Kind
	Index uint32
}

// ElementSegment initializes a range of the table with function indexes.
type ElementSegment struct {
	TableIndex uint32
	OffsetExpr *ConstantExpression
	Init       []uint32
}

// DataSegment initializes a range of memory with bytes.
type DataSegment struct {
	MemoryIndex      uint32
	OffsetExpression *ConstantExpression
	Init             []byte
}

// Code is an entry in the Module.CodeSection containing the locals and body of the function.
// See https://www.w3.org/TR/wasm-core-1/#binary-code
type Code struct {
	// LocalTypes are any function-scoped variables in insertion order.
	LocalTypes []ValueType
	// Body is a sequence of expressions ending in OpcodeEnd
	Body []byte
	// BodyOffset is the offset of Body in the module binary, used for error messages.
	BodyOffset int
}

// NameSection represent the known custom name subsections defined in the WebAssembly Binary Format
//
// Note: This can be nil if no names were decoded for any reason including configuration.
// See https://www.w3.org/TR/wasm-core-1/#name-section%E2%91%A0
type NameSection struct {
	// ModuleName is the symbolic identifier for a module. Ex. math
	ModuleName string

	// FunctionNames is an association of a function index to its symbolic identifier. Ex. add
	FunctionNames NameMap

	// LocalNames contains symbolic names for function parameters or locals that have one.
	LocalNames IndirectNameMap
}

// NameMap associates an index with any associated names.
type NameMap []*NameAssoc

// NameAssoc is an index associated its symbolic name.
type NameAssoc struct {
	Index uint32
	Name  string
}

// IndirectNameMap associates an index with an association of names.
type IndirectNameMap []*NameMapAssoc

// NameMapAssoc associates an index with a NameMap.
type NameMapAssoc struct {
	Index   uint32
	NameMap NameMap
}

// FunctionName returns the name of the function index, or a generated one.
func (n *NameSection) FunctionName(funcIdx uint32) string {
	if n != nil {
		for _, a := range n.FunctionNames {
			if a.Index == funcIdx {
				return a.Name
			}
		}
	}
	return fmt.Sprintf("$%d", funcIdx)
}
