package compiler

import (
	"errors"
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

var errMemoryRequired = errors.New("memory instructions require a memory")

func compileMemoryAccess(c *CompilationContext, in *Instruction) error {
	if !c.module.HasMemory {
		return errMemoryRequired
	}
	acc := memoryAccesses[in.Opcode]
	if in.Align > 3 || uint32(1)<<in.Align > acc.width {
		return fmt.Errorf("%s: alignment 2^%d exceeds the natural alignment %d",
			wasm.InstructionName(in.Opcode), in.Align, acc.width)
	}

	if acc.store {
		if err := c.pop(in.Opcode, acc.vt); err != nil {
			return err
		}
		if err := c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
			return err
		}
		c.emitter.Store(in.Opcode, in.Offset)
		return nil
	}

	if err := c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
		return err
	}
	c.push(acc.vt)
	c.emitter.Load(in.Opcode, in.Offset)
	return nil
}

func compileMemorySize(c *CompilationContext, in *Instruction) error {
	if !c.module.HasMemory {
		return errMemoryRequired
	}
	if in.Reserved != 0 {
		return fmt.Errorf("%w: memory.size memory index must be zero", wasm.ErrInvalidByte)
	}
	c.push(wasm.ValueTypeI32)
	c.emitter.MemorySize()
	return nil
}

func compileMemoryGrow(c *CompilationContext, in *Instruction) error {
	if !c.module.HasMemory {
		return errMemoryRequired
	}
	if in.Reserved != 0 {
		return fmt.Errorf("%w: memory.grow memory index must be zero", wasm.ErrInvalidByte)
	}
	if err := c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
		return err
	}
	c.push(wasm.ValueTypeI32)
	c.emitter.MemoryGrow()
	return nil
}

func compileConst(c *CompilationContext, in *Instruction) error {
	var vt wasm.ValueType
	switch in.Opcode {
	case wasm.OpcodeI32Const:
		vt = wasm.ValueTypeI32
	case wasm.OpcodeI64Const:
		vt = wasm.ValueTypeI64
	case wasm.OpcodeF32Const:
		vt = wasm.ValueTypeF32
	case wasm.OpcodeF64Const:
		vt = wasm.ValueTypeF64
	}
	c.push(vt)
	c.emitter.Const(vt, in.Value)
	return nil
}

// compileNumeric handles every comparison, arithmetic and conversion opcode.
func compileNumeric(c *CompilationContext, in *Instruction) error {
	sig := numericSignatures[in.Opcode]
	if err := c.popAll(in.Opcode, sig.params); err != nil {
		return err
	}
	c.push(sig.result)
	c.emitter.Numeric(in.Opcode)
	return nil
}
