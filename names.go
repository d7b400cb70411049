package wasmjit

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

// moduleNames names functions by the "name" custom section, then by the first export in name order, falling back
// to "$<index>".
type moduleNames struct {
	names   map[uint32]string
	exports map[uint32]string
}

func newModuleNames(m *wasm.Module) *moduleNames {
	n := &moduleNames{names: map[uint32]string{}, exports: map[uint32]string{}}
	if m.NameSection != nil {
		for _, a := range m.NameSection.FunctionNames {
			n.names[a.Index] = a.Name
		}
	}
	for name, e := range m.ExportSection {
		if e.Kind != wasm.ExportKindFunc {
			continue
		}
		if prev, ok := n.exports[e.Index]; !ok || name < prev {
			n.exports[e.Index] = name
		}
	}
	return n
}

// FunctionName implements compiler.NameResolver.
func (n *moduleNames) FunctionName(funcIndex uint32) string {
	if name, ok := n.names[funcIndex]; ok {
		return name
	}
	if name, ok := n.exports[funcIndex]; ok {
		return name
	}
	return fmt.Sprintf("$%d", funcIndex)
}
