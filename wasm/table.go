package wasm

import "fmt"

// TableElement is a populated table slot: the function and the canonical id of its type, compared at call_indirect.
type TableElement struct {
	FunctionIndex uint32
	TypeID        uint32
	// Initialized is false for slots no element segment wrote.
	Initialized bool
}

// Table is the function table used by call_indirect.
//
// See https://www.w3.org/TR/wasm-core-1/#table-instances%E2%91%A0
type Table struct {
	Elements []TableElement
	Min      uint32
	Max      *uint32
}

// NewTable returns a table of min uninitialized slots.
func NewTable(min uint32, max *uint32) *Table {
	return &Table{Elements: make([]TableElement, min), Min: min, Max: max}
}

// Init writes the function indexes starting at offset, failing before any write if they don't fit.
func (t *Table) Init(offset uint32, funcs []uint32, typeIDs []uint32) error {
	if uint64(offset)+uint64(len(funcs)) > uint64(len(t.Elements)) {
		return fmt.Errorf("%d elements at offset %d exceed table size %d", len(funcs), offset, len(t.Elements))
	}
	for i, f := range funcs {
		t.Elements[offset+uint32(i)] = TableElement{FunctionIndex: f, TypeID: typeIDs[f], Initialized: true}
	}
	return nil
}

// Lookup returns the element at the slot, panicking with a runtime error when it is out of range or empty.
func (t *Table) Lookup(slot uint32) TableElement {
	if uint64(slot) >= uint64(len(t.Elements)) {
		panic(ErrRuntimeInvalidTableAccess)
	}
	e := t.Elements[slot]
	if !e.Initialized {
		panic(ErrRuntimeUninitializedElement)
	}
	return e
}

// Len returns the count of slots.
func (t *Table) Len() uint32 {
	return uint32(len(t.Elements))
}
