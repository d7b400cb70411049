package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dfinity-lab/wasmjit/wasm"
)

// GlobalInfo is what function bodies may assume about a global.
type GlobalInfo struct {
	Type    wasm.ValueType
	Mutable bool
	// RequiresInstance is false for imported globals, whose value the host keeps.
	RequiresInstance bool
}

// ModuleInfo is the module-wide state shared by every function body.
type ModuleInfo struct {
	Types []*wasm.FunctionType
	// TypeIDs is the canonical id of each type. See CanonicalTypeIDs.
	TypeIDs []uint32
	// Functions is the signature of every function, imported ones first.
	Functions             []*wasm.FunctionType
	ImportedFunctionCount uint32
	Globals               []*GlobalInfo
	HasMemory             bool
	HasTable              bool
}

// NewModuleInfo indexes a decoded module. Type indexes were validated by the decoder.
func NewModuleInfo(m *wasm.Module) *ModuleInfo {
	info := &ModuleInfo{
		Types:                 m.TypeSection,
		TypeIDs:               CanonicalTypeIDs(m.TypeSection),
		ImportedFunctionCount: m.ImportFuncCount(),
		HasMemory:             m.HasMemory(),
		HasTable:              m.HasTable(),
	}
	for _, typeIndex := range m.FunctionTypeIndexes() {
		info.Functions = append(info.Functions, m.TypeSection[typeIndex])
	}
	importedGlobals := int(m.ImportGlobalCount())
	for i, gt := range m.GlobalTypes() {
		info.Globals = append(info.Globals, &GlobalInfo{
			Type:             gt.ValType,
			Mutable:          gt.Mutable,
			RequiresInstance: i >= importedGlobals,
		})
	}
	return info
}

// NameResolver names functions in errors and backtraces. *wasm.NameSection implements it, including when nil.
type NameResolver interface {
	FunctionName(funcIndex uint32) string
}

// CompileModule validates every function body of m and emits it through an Emitter of backend.
//
// names may be nil, in which case the module's own name section is used.
func CompileModule(m *wasm.Module, backend Backend, names NameResolver, logger *zap.Logger) (*ModuleInfo, error) {
	if len(m.CodeSection) != len(m.FunctionSection) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths: %d != %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	if names == nil {
		names = m.NameSection
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info := NewModuleInfo(m)
	for i, code := range m.CodeSection {
		funcIndex := info.ImportedFunctionCount + uint32(i)
		e := backend.NewEmitter(funcIndex, info.Functions[funcIndex])
		c := newCompilationContext(info, funcIndex, code, e)
		offset, err := c.compileBody(code.Body, code.BodyOffset)
		if err != nil {
			logger.Debug("function failed to compile",
				zap.Uint32("index", funcIndex),
				zap.String("previous", wasm.InstructionName(c.prev)),
				zap.String("stack", c.stackDump()),
				zap.Error(err))
			return nil, &FunctionError{FuncIndex: funcIndex, Name: names.FunctionName(funcIndex), Offset: offset, Err: err}
		}
		logger.Debug("compiled function",
			zap.Uint32("index", funcIndex),
			zap.String("name", names.FunctionName(funcIndex)),
			zap.Stringer("type", info.Functions[funcIndex]),
			zap.Int("locals", c.numDeclared),
			zap.Int("scratch_locals", len(c.locals)-c.numDeclared))
	}
	return info, nil
}
