package wasm

import (
	"fmt"
	"math"
)

// GlobalInstance is the storage of a global: either a slot owned by the instance, or accessors supplied by the host
// for an imported global.
//
// Values are encoded as uint64 the same way function parameters are. See EncodeF32 and EncodeF64.
type GlobalInstance struct {
	Type *GlobalType
	val  uint64
	get  func() uint64
	set  func(uint64)
}

// NewGlobalInstance returns an instance-owned global holding init.
func NewGlobalInstance(typ *GlobalType, init uint64) *GlobalInstance {
	return &GlobalInstance{Type: typ, val: init}
}

// NewHostGlobalInstance returns a global backed by host accessors. set must be non-nil when typ is mutable.
func NewHostGlobalInstance(typ *GlobalType, get func() uint64, set func(uint64)) (*GlobalInstance, error) {
	if get == nil {
		return nil, fmt.Errorf("global getter is nil")
	}
	if typ.Mutable && set == nil {
		return nil, fmt.Errorf("mutable global requires a setter")
	}
	return &GlobalInstance{Type: typ, get: get, set: set}, nil
}

// RequiresInstance is false when the value lives with the host rather than the instance.
func (g *GlobalInstance) RequiresInstance() bool {
	return g.get == nil
}

// Get returns the current value.
func (g *GlobalInstance) Get() uint64 {
	if g.get != nil {
		return CanonicalValue(g.Type.ValType, g.get())
	}
	return g.val
}

// Set assigns the value, bypassing mutability checks: the compiler only emits global.set for mutable globals.
func (g *GlobalInstance) Set(v uint64) {
	if g.set != nil {
		g.set(v)
		return
	}
	g.val = v
}

// ExportedGlobal is the host view of an exported global.
type ExportedGlobal struct {
	g *GlobalInstance
}

// NewExportedGlobal wraps g for the host.
func NewExportedGlobal(g *GlobalInstance) *ExportedGlobal {
	return &ExportedGlobal{g: g}
}

// Type returns the value type of the global.
func (e *ExportedGlobal) Type() ValueType {
	return e.g.Type.ValType
}

// Mutable is true when Set is allowed.
func (e *ExportedGlobal) Mutable() bool {
	return e.g.Type.Mutable
}

// Get returns the encoded value.
func (e *ExportedGlobal) Get() uint64 {
	return e.g.Get()
}

// Set assigns an encoded value, failing on an immutable global.
func (e *ExportedGlobal) Set(v uint64) error {
	if !e.g.Type.Mutable {
		return fmt.Errorf("global is immutable")
	}
	e.g.Set(CanonicalValue(e.g.Type.ValType, v))
	return nil
}

// String implements fmt.Stringer, formatting the value by type.
func (e *ExportedGlobal) String() string {
	v := e.g.Get()
	switch e.g.Type.ValType {
	case ValueTypeI32:
		return fmt.Sprintf("global(%d)", int32(v))
	case ValueTypeI64:
		return fmt.Sprintf("global(%d)", int64(v))
	case ValueTypeF32:
		return fmt.Sprintf("global(%f)", math.Float32frombits(uint32(v)))
	case ValueTypeF64:
		return fmt.Sprintf("global(%f)", math.Float64frombits(v))
	}
	return fmt.Sprintf("global(%#x)", v)
}
