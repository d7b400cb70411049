package wasmjit

import (
	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/interpreter"
)

// HostFunction implements an imported function in Go. params holds one value per parameter of the imported type,
// and the function must return one value per result.
//
// Values are encoded as uint64: i32 and i64 as their bits, f32 and f64 via wasm.EncodeF32 and wasm.EncodeF64.
type HostFunction = interpreter.HostFunction

// Import is a host definition satisfying an import of the module, matched by its exact module and name.
//
// Implementations are FunctionImport, MemoryImport and GlobalImport.
type Import interface {
	importKey() importKey
	kind() wasm.ImportKind
}

type importKey struct {
	module, name string
}

// FunctionImport satisfies a function import whose signature equals Type.
type FunctionImport struct {
	Module, Name string
	Type         *wasm.FunctionType
	Func         HostFunction
}

func (i *FunctionImport) importKey() importKey  { return importKey{i.Module, i.Name} }
func (i *FunctionImport) kind() wasm.ImportKind { return wasm.ImportKindFunc }

// MemoryImport satisfies a memory import. Provide is invoked by each NewInstance, and the memory it returns must
// satisfy the imported limits. Instance.Close does not close it.
type MemoryImport struct {
	Module, Name string
	Provide      func() (*wasm.Memory, error)
}

func (i *MemoryImport) importKey() importKey  { return importKey{i.Module, i.Name} }
func (i *MemoryImport) kind() wasm.ImportKind { return wasm.ImportKindMemory }

// GlobalImport satisfies a global import of type Type. Set is required only when the global is imported as
// mutable.
type GlobalImport struct {
	Module, Name string
	Type         wasm.ValueType
	Get          func() uint64
	Set          func(uint64)
}

func (i *GlobalImport) importKey() importKey  { return importKey{i.Module, i.Name} }
func (i *GlobalImport) kind() wasm.ImportKind { return wasm.ImportKindGlobal }

// resolvedImports are the host definitions in the import index spaces of the module.
type resolvedImports struct {
	functions []HostFunction
	memory    *MemoryImport
	globals   []*GlobalImport
}

// resolveImports matches every import of m with a host definition.
func resolveImports(m *wasm.Module, imports []Import) (*resolvedImports, error) {
	byKey := make(map[importKey]Import, len(imports))
	for _, i := range imports {
		byKey[i.importKey()] = i
	}

	ret := &resolvedImports{}
	for _, im := range m.ImportSection {
		i, ok := byKey[importKey{im.Module, im.Name}]
		if !ok {
			return nil, wasm.NewCompilerError("Import not found for %s::%s", im.Module, im.Name)
		}
		if i.kind() != im.Kind {
			return nil, wasm.NewCompilerError("Import kind mismatch for %s::%s: expected %s, but was %s",
				im.Module, im.Name, wasm.ExportKindName(im.Kind), wasm.ExportKindName(i.kind()))
		}

		switch im.Kind {
		case wasm.ImportKindFunc:
			fi := i.(*FunctionImport)
			expected := m.TypeSection[im.DescFunc]
			if fi.Type == nil || !expected.EqualsSignature(fi.Type) {
				return nil, wasm.NewCompilerError("Import signature mismatch for %s::%s: expected %s, but was %s",
					im.Module, im.Name, expected, fi.Type)
			}
			if fi.Func == nil {
				return nil, wasm.NewCompilerError("Import %s::%s has no function", im.Module, im.Name)
			}
			ret.functions = append(ret.functions, fi.Func)
		case wasm.ImportKindMemory:
			mi := i.(*MemoryImport)
			if mi.Provide == nil {
				return nil, wasm.NewCompilerError("Import %s::%s has no memory provider", im.Module, im.Name)
			}
			ret.memory = mi
		case wasm.ImportKindGlobal:
			gi := i.(*GlobalImport)
			if gi.Type != im.DescGlobal.ValType {
				return nil, wasm.NewCompilerError("Import type mismatch for %s::%s: expected %s, but was %s",
					im.Module, im.Name, wasm.ValueTypeName(im.DescGlobal.ValType), wasm.ValueTypeName(gi.Type))
			}
			if gi.Get == nil || (im.DescGlobal.Mutable && gi.Set == nil) {
				return nil, wasm.NewCompilerError("Import %s::%s is missing accessors", im.Module, im.Name)
			}
			ret.globals = append(ret.globals, gi)
		default:
			// Tables can only be defined by the module.
			return nil, wasm.NewCompilerError("Import not found for %s::%s", im.Module, im.Name)
		}
	}
	return ret, nil
}
