package compiler

import (
	"fmt"

	"github.com/dfinity-lab/wasmjit/wasm"
)

func compileUnreachable(c *CompilationContext, _ *Instruction) error {
	c.emitter.Unreachable()
	c.markUnreachable()
	return nil
}

func compileNop(*CompilationContext, *Instruction) error {
	return nil
}

// compileBlock enters block, loop and if.
func compileBlock(c *CompilationContext, in *Instruction) error {
	params, results, err := c.blockSignature(in.BlockType)
	if err != nil {
		return err
	}
	if in.Opcode == wasm.OpcodeIf {
		if err = c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
			return err
		}
	}
	if err = c.checkTop(in.Opcode, params); err != nil {
		return err
	}

	b := BlockEntry{
		Params:  params,
		Results: results,
		Height:  len(c.stack) - len(params),
		Label:   c.emitter.NewLabel(),
	}
	switch in.Opcode {
	case wasm.OpcodeBlock:
		b.Kind = BlockKindBlock
	case wasm.OpcodeLoop:
		b.Kind = BlockKindLoop
		c.emitter.MarkLabel(b.Label)
	case wasm.OpcodeIf:
		b.Kind = BlockKindIf
		b.ElseLabel = c.emitter.NewLabel()
		c.emitter.BranchIfZero(b.ElseLabel)
	}
	c.blocks = append(c.blocks, b)
	return nil
}

func compileElse(c *CompilationContext, in *Instruction) error {
	b := c.top()
	if b.Kind != BlockKindIf || b.HasElse {
		return fmt.Errorf("else without matching if")
	}
	if !b.Unreachable {
		if err := c.checkTop(in.Opcode, b.Results); err != nil {
			return err
		}
		c.emitter.Branch(c.branchTarget(b))
	}
	c.emitter.MarkLabel(b.ElseLabel)

	b.HasElse = true
	b.Unreachable = false
	c.stack = append(c.stack[:b.Height], b.Params...)
	return nil
}

func compileEnd(c *CompilationContext, in *Instruction) error {
	b := c.top()
	if b.Kind == BlockKindFunction {
		return c.compileFunctionEnd(in.Opcode)
	}

	if !b.Unreachable {
		if err := c.checkTop(in.Opcode, b.Results); err != nil {
			return err
		}
		if len(c.stack)-b.Height > len(b.Results) {
			c.emitter.Truncate(len(b.Results), b.Height)
		}
	}
	if b.Kind == BlockKindIf && !b.HasElse {
		if !equalValueTypes(b.Params, b.Results) {
			return fmt.Errorf("if without else must not change the stack: %s",
				&wasm.FunctionType{Params: b.Params, Results: b.Results})
		}
		c.emitter.MarkLabel(b.ElseLabel)
	}
	if b.Kind != BlockKindLoop {
		c.emitter.MarkLabel(b.Label)
	}

	c.stack = append(c.stack[:b.Height], b.Results...)
	c.blocks = c.blocks[:len(c.blocks)-1]
	return nil
}

// compileFunctionEnd closes the body. Every return and branch to the function block lands on its label with the
// results on an otherwise empty stack.
func (c *CompilationContext) compileFunctionEnd(op wasm.Opcode) error {
	b := c.top()
	results := c.sig.Results
	if !b.Unreachable {
		if err := c.checkTop(op, results); err != nil {
			return err
		}
		if len(c.stack) > len(results) {
			c.emitter.Truncate(len(results), 0)
		}
	}
	c.emitter.MarkLabel(b.Label)

	// Results after the first leave through output parameters, the last one first.
	for i := len(results) - 1; i > 0; i-- {
		local := c.acquireScratch(results[i])
		c.emitter.LocalSet(local)
		c.emitter.StoreOutput(i-1, local)
		c.releaseScratch(local)
	}
	c.emitter.Return(min(len(results), 1))

	c.stack = c.stack[:0]
	c.blocks = c.blocks[:0]
	return nil
}

func compileBr(c *CompilationContext, in *Instruction) error {
	b, err := c.block(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	if err = c.checkTop(in.Opcode, b.labelTypes()); err != nil {
		return err
	}
	c.emitter.Branch(c.branchTarget(b))
	c.markUnreachable()
	return nil
}

func compileBrIf(c *CompilationContext, in *Instruction) error {
	b, err := c.block(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	if err = c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
		return err
	}
	if err = c.checkTop(in.Opcode, b.labelTypes()); err != nil {
		return err
	}
	c.emitter.BranchIf(c.branchTarget(b))
	return nil
}

func compileBrTable(c *CompilationContext, in *Instruction) error {
	def, err := c.block(in.Opcode, in.Index)
	if err != nil {
		return err
	}
	types := def.labelTypes()

	targets := make([]BranchTarget, len(in.Targets))
	for i, depth := range in.Targets {
		b, err := c.block(in.Opcode, depth)
		if err != nil {
			return err
		}
		if !equalValueTypes(types, b.labelTypes()) {
			return fmt.Errorf("br_table target %d arity differs from the default: %s != %s", i,
				&wasm.FunctionType{Params: b.labelTypes()}, &wasm.FunctionType{Params: types})
		}
		targets[i] = c.branchTarget(b)
	}

	if err = c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
		return err
	}
	if err = c.checkTop(in.Opcode, types); err != nil {
		return err
	}
	c.emitter.BranchTable(targets, c.branchTarget(def))
	c.markUnreachable()
	return nil
}

func compileReturn(c *CompilationContext, in *Instruction) error {
	fn := &c.blocks[0]
	if err := c.checkTop(in.Opcode, fn.Results); err != nil {
		return err
	}
	c.emitter.Branch(c.branchTarget(fn))
	c.markUnreachable()
	return nil
}

func compileCall(c *CompilationContext, in *Instruction) error {
	if uint64(in.Index) >= uint64(len(c.module.Functions)) {
		return fmt.Errorf("invalid function index %d: %d functions", in.Index, len(c.module.Functions))
	}
	sig := c.module.Functions[in.Index]
	if err := c.popAll(in.Opcode, sig.Params); err != nil {
		return err
	}
	outs := c.callOutputs(sig)
	c.emitter.Call(in.Index, outs)
	c.pushCallResults(sig, outs)
	return nil
}

func compileCallIndirect(c *CompilationContext, in *Instruction) error {
	if !c.module.HasTable {
		return fmt.Errorf("call_indirect requires a table")
	}
	if in.Reserved != 0 {
		return fmt.Errorf("%w: call_indirect table index must be zero", wasm.ErrInvalidByte)
	}
	if uint64(in.Index) >= uint64(len(c.module.Types)) {
		return fmt.Errorf("invalid type index %d: %d types", in.Index, len(c.module.Types))
	}
	sig := c.module.Types[in.Index]
	if err := c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
		return err
	}
	if err := c.popAll(in.Opcode, sig.Params); err != nil {
		return err
	}
	outs := c.callOutputs(sig)
	c.emitter.CallIndirect(in.Index, outs)
	c.pushCallResults(sig, outs)
	return nil
}

// callOutputs allocates a scratch local per result after the first.
func (c *CompilationContext) callOutputs(sig *wasm.FunctionType) []uint32 {
	if len(sig.Results) < 2 {
		return nil
	}
	outs := make([]uint32, 0, len(sig.Results)-1)
	for _, vt := range sig.Results[1:] {
		outs = append(outs, c.acquireScratch(vt))
	}
	return outs
}

// pushCallResults pushes the returned value, then loads the output parameters on top of it.
func (c *CompilationContext) pushCallResults(sig *wasm.FunctionType, outs []uint32) {
	if len(sig.Results) == 0 {
		return
	}
	c.push(sig.Results[0])
	for i, local := range outs {
		c.emitter.LocalGet(local)
		c.push(sig.Results[i+1])
	}
	c.releaseScratch(outs...)
}

func compileDrop(c *CompilationContext, in *Instruction) error {
	if _, err := c.popAny(in.Opcode); err != nil {
		return err
	}
	c.emitter.Drop()
	return nil
}

func compileSelect(c *CompilationContext, in *Instruction) error {
	if err := c.pop(in.Opcode, wasm.ValueTypeI32); err != nil {
		return err
	}
	if c.available() < 2 {
		return &StackTooSmallError{Opcode: in.Opcode, Expected: 3, Actual: c.available() + 1}
	}
	second, _ := c.popAny(in.Opcode)
	first, _ := c.popAny(in.Opcode)
	if first != second {
		return &StackTypeInvalidError{Opcode: in.Opcode, Expected: first, Actual: second}
	}
	c.push(first)
	c.emitter.Select()
	return nil
}

func equalValueTypes(a, b []wasm.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
