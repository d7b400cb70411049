package compiler

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

func (c *CompilationContext) localType(op wasm.Opcode, index uint32) (wasm.ValueType, error) {
	if uint64(index) >= uint64(c.numDeclared) {
		return 0, fmt.Errorf("%s: invalid local index %d: %d locals", wasm.InstructionName(op), index, c.numDeclared)
	}
	return c.locals[index], nil
}

func compileLocalGet(c *CompilationContext, in *Instruction) error {
	vt, err := c.localType(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	c.push(vt)
	c.emitter.LocalGet(in.Index)
	return nil
}

func compileLocalSet(c *CompilationContext, in *Instruction) error {
	vt, err := c.localType(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	if err = c.pop(in.Opcode, vt); err != nil {
		return err
	}
	c.emitter.LocalSet(in.Index)
	return nil
}

func compileLocalTee(c *CompilationContext, in *Instruction) error {
	vt, err := c.localType(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	if err = c.checkTop(in.Opcode, []wasm.ValueType{vt}); err != nil {
		return err
	}
	c.emitter.LocalTee(in.Index)
	return nil
}

func (c *CompilationContext) global(op wasm.Opcode, index uint32) (*GlobalInfo, error) {
	if uint64(index) >= uint64(len(c.module.Globals)) {
		return nil, fmt.Errorf("%s: invalid global index %d: %d globals",
			wasm.InstructionName(op), index, len(c.module.Globals))
	}
	return c.module.Globals[index], nil
}

func compileGlobalGet(c *CompilationContext, in *Instruction) error {
	g, err := c.global(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	c.push(g.Type)
	c.emitter.GlobalGet(in.Index)
	return nil
}

func compileGlobalSet(c *CompilationContext, in *Instruction) error {
	g, err := c.global(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	if !g.Mutable {
		return fmt.Errorf("global.set of immutable global %d", in.Index)
	}
	if err = c.pop(in.Opcode, g.Type); err != nil {
		return err
	}
	c.emitter.GlobalSet(in.Index)
	return nil
}
