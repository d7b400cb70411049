package interpreter

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/compiler"
)

// Backend lowers function bodies into ops for the interpreter. It implements compiler.Backend.
//
// After compiler.CompileModule returns, the Backend is read-only and can be shared by engines.
type Backend struct {
	functions map[uint32]*function
}

// NewBackend returns a Backend without functions.
func NewBackend() *Backend {
	return &Backend{functions: map[uint32]*function{}}
}

// NewEmitter implements compiler.Backend.NewEmitter
func (b *Backend) NewEmitter(funcIndex uint32, sig *wasm.FunctionType) compiler.Emitter {
	f := &function{index: funcIndex, sig: sig}
	b.functions[funcIndex] = f
	return &emitter{f: f}
}

// emitter appends ops to a function body. Branches hold labels until Finish resolves them to addresses.
type emitter struct {
	f *function
	// labels is the address of each label, or -1 while unmarked.
	labels []int64
}

func (e *emitter) emit(o op) {
	e.f.body = append(e.f.body, o)
}

func (e *emitter) NewLabel() compiler.Label {
	e.labels = append(e.labels, -1)
	return compiler.Label(len(e.labels) - 1)
}

func (e *emitter) MarkLabel(l compiler.Label) {
	e.labels[l] = int64(len(e.f.body))
}

func (e *emitter) Unreachable() {
	e.emit(op{kind: kindUnreachable})
}

func (e *emitter) Const(_ wasm.ValueType, bits uint64) {
	e.emit(op{kind: kindConst, u1: bits})
}

func (e *emitter) Numeric(opcode wasm.Opcode) {
	switch opcode {
	case wasm.OpcodeI32ReinterpretF32, wasm.OpcodeI64ReinterpretF64,
		wasm.OpcodeF32ReinterpretI32, wasm.OpcodeF64ReinterpretI64:
		// Values are kept as bits, so reinterpreting is a no-op.
		return
	}
	e.emit(op{kind: kindNumeric, opcode: opcode})
}

func (e *emitter) Drop() {
	e.emit(op{kind: kindDrop})
}

func (e *emitter) Select() {
	e.emit(op{kind: kindSelect})
}

func (e *emitter) LocalGet(index uint32) {
	e.emit(op{kind: kindLocalGet, u1: uint64(index)})
}

func (e *emitter) LocalSet(index uint32) {
	e.emit(op{kind: kindLocalSet, u1: uint64(index)})
}

func (e *emitter) LocalTee(index uint32) {
	e.emit(op{kind: kindLocalTee, u1: uint64(index)})
}

func (e *emitter) GlobalGet(index uint32) {
	e.emit(op{kind: kindGlobalGet, u1: uint64(index)})
}

func (e *emitter) GlobalSet(index uint32) {
	e.emit(op{kind: kindGlobalSet, u1: uint64(index)})
}

func (e *emitter) Load(opcode wasm.Opcode, offset uint32) {
	e.emit(op{kind: kindLoad, opcode: opcode, u1: uint64(offset)})
}

func (e *emitter) Store(opcode wasm.Opcode, offset uint32) {
	e.emit(op{kind: kindStore, opcode: opcode, u1: uint64(offset)})
}

func (e *emitter) MemorySize() {
	e.emit(op{kind: kindMemorySize})
}

func (e *emitter) MemoryGrow() {
	e.emit(op{kind: kindMemoryGrow})
}

func toBranch(t compiler.BranchTarget) branch {
	return branch{addr: uint64(t.Label), keep: t.Keep, height: t.Height}
}

func (e *emitter) Branch(t compiler.BranchTarget) {
	e.emit(op{kind: kindBr, br: toBranch(t)})
}

func (e *emitter) BranchIf(t compiler.BranchTarget) {
	e.emit(op{kind: kindBrIf, br: toBranch(t)})
}

func (e *emitter) BranchIfZero(l compiler.Label) {
	e.emit(op{kind: kindBrIfZero, br: branch{addr: uint64(l)}})
}

func (e *emitter) BranchTable(targets []compiler.BranchTarget, defaultTarget compiler.BranchTarget) {
	o := op{kind: kindBrTable, targets: make([]branch, 0, len(targets)+1)}
	for _, t := range targets {
		o.targets = append(o.targets, toBranch(t))
	}
	o.targets = append(o.targets, toBranch(defaultTarget))
	e.emit(o)
}

func (e *emitter) Truncate(keep, height int) {
	e.emit(op{kind: kindTruncate, br: branch{keep: keep, height: height}})
}

func (e *emitter) Call(index uint32, outs []uint32) {
	e.emit(op{kind: kindCall, u1: uint64(index), outs: append([]uint32(nil), outs...)})
}

func (e *emitter) CallIndirect(typeIndex uint32, outs []uint32) {
	e.emit(op{kind: kindCallIndirect, u1: uint64(typeIndex), outs: append([]uint32(nil), outs...)})
}

func (e *emitter) StoreOutput(index int, local uint32) {
	e.emit(op{kind: kindStoreOutput, u1: uint64(index), u2: uint64(local)})
}

func (e *emitter) Return(int) {
	e.emit(op{kind: kindReturn})
}

// Finish resolves every branch label to its address.
func (e *emitter) Finish(numLocals int) error {
	e.f.numLocals = numLocals
	resolve := func(b *branch) error {
		if b.addr >= uint64(len(e.labels)) || e.labels[b.addr] < 0 {
			return fmt.Errorf("label %d is not defined in function[%d]", b.addr, e.f.index)
		}
		b.addr = uint64(e.labels[b.addr])
		return nil
	}
	for i := range e.f.body {
		o := &e.f.body[i]
		switch o.kind {
		case kindBr, kindBrIf, kindBrIfZero:
			if err := resolve(&o.br); err != nil {
				return err
			}
		case kindBrTable:
			for k := range o.targets {
				if err := resolve(&o.targets[k]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
