package compiler

import (
	"fmt"
	"strings"

	"github.com/dfinity-lab/wasmjit/wasm"
	wasmbinary "github.com/dfinity-lab/wasmjit/wasm/binary"
)

// BlockKind distinguishes the control constructs which push a BlockEntry.
type BlockKind byte

const (
	BlockKindFunction BlockKind = iota
	BlockKindBlock
	BlockKindLoop
	BlockKindIf
)

// BlockEntry is the validation state of one control construct. Entries live in CompilationContext.blocks and are
// addressed by depth, the function body being depth zero.
type BlockEntry struct {
	Kind BlockKind
	// Params are consumed from the enclosing block on entry, and are the label types of a loop.
	Params []wasm.ValueType
	// Results are left on the stack on exit, and are the label types of every other kind.
	Results []wasm.ValueType
	// Height is the operand stack height below Params. Operands under it belong to enclosing blocks.
	Height int
	// Label is the branch destination: the start of a loop, the end of anything else.
	Label Label
	// ElseLabel is where an if jumps when its condition is zero.
	ElseLabel Label
	HasElse   bool
	// Unreachable is set after an instruction which never falls through, until the matching else or end.
	Unreachable bool
}

// labelTypes are the types a branch to this block carries.
func (b *BlockEntry) labelTypes() []wasm.ValueType {
	if b.Kind == BlockKindLoop {
		return b.Params
	}
	return b.Results
}

// CompilationContext validates one function body and drives its Emitter.
type CompilationContext struct {
	module    *ModuleInfo
	funcIndex uint32
	sig       *wasm.FunctionType
	emitter   Emitter

	// locals are params, then declared locals, then scratch locals added while compiling.
	locals []wasm.ValueType
	// numDeclared is the count of locals the body may address.
	numDeclared int
	// scratch holds released scratch locals by type for reuse.
	scratch map[wasm.ValueType][]uint32

	stack  []wasm.ValueType
	blocks []BlockEntry

	// skipDepth counts blocks opened inside unreachable code, which are skipped entirely.
	skipDepth int

	prev wasm.Opcode
}

func newCompilationContext(module *ModuleInfo, funcIndex uint32, code *wasm.Code, e Emitter) *CompilationContext {
	sig := module.Functions[funcIndex]
	c := &CompilationContext{
		module:    module,
		funcIndex: funcIndex,
		sig:       sig,
		emitter:   e,
		scratch:   map[wasm.ValueType][]uint32{},
		prev:      wasm.OpcodeNop,
	}
	c.locals = make([]wasm.ValueType, 0, len(sig.Params)+len(code.LocalTypes))
	c.locals = append(c.locals, sig.Params...)
	c.locals = append(c.locals, code.LocalTypes...)
	c.numDeclared = len(c.locals)
	c.blocks = append(c.blocks, BlockEntry{
		Kind:    BlockKindFunction,
		Results: sig.Results,
		Label:   e.NewLabel(),
	})
	return c
}

// compileBody decodes and compiles every instruction until the function's end.
func (c *CompilationContext) compileBody(body []byte, offset int) (instructionOffset int, err error) {
	r := wasmbinary.NewCursorAt(body, offset)
	for len(c.blocks) > 0 {
		instructionOffset = r.Offset()
		if r.EOF() {
			return instructionOffset, fmt.Errorf("function body ended with %d unclosed blocks", len(c.blocks))
		}
		in, err := DecodeInstruction(r)
		if err != nil {
			return r.ReadOffset(), err
		}
		if err = c.compileInstruction(&in); err != nil {
			return instructionOffset, err
		}
	}
	if !r.EOF() {
		return r.Offset(), fmt.Errorf("%d bytes after the end of the function", r.Remaining())
	}
	return 0, c.emitter.Finish(len(c.locals))
}

// compileInstruction validates and emits one instruction, or skips it inside unreachable code.
func (c *CompilationContext) compileInstruction(in *Instruction) error {
	defer func() { c.prev = in.Opcode }()

	if c.top().Unreachable {
		switch in.Opcode {
		case wasm.OpcodeBlock, wasm.OpcodeLoop, wasm.OpcodeIf:
			c.skipDepth++
			return nil
		case wasm.OpcodeElse:
			if c.skipDepth > 0 {
				return nil
			}
		case wasm.OpcodeEnd:
			if c.skipDepth > 0 {
				c.skipDepth--
				return nil
			}
		default:
			return nil
		}
	}
	return instructions[in.Opcode].compile(c, in)
}

// top returns the innermost block.
func (c *CompilationContext) top() *BlockEntry {
	return &c.blocks[len(c.blocks)-1]
}

// block returns the block a branch of the given relative depth targets.
func (c *CompilationContext) block(op wasm.Opcode, depth uint32) (*BlockEntry, error) {
	if uint64(depth) >= uint64(len(c.blocks)) {
		return nil, fmt.Errorf("%s depth %d exceeds %d enclosing blocks", wasm.InstructionName(op), depth, len(c.blocks))
	}
	return &c.blocks[len(c.blocks)-1-int(depth)], nil
}

// branchTarget returns where a branch to b lands.
func (c *CompilationContext) branchTarget(b *BlockEntry) BranchTarget {
	return BranchTarget{Label: b.Label, Keep: len(b.labelTypes()), Height: b.Height}
}

// available is the count of operands the innermost block can pop.
func (c *CompilationContext) available() int {
	return len(c.stack) - c.top().Height
}

func (c *CompilationContext) push(types ...wasm.ValueType) {
	c.stack = append(c.stack, types...)
}

// pop removes the top operand, which must be of type expected.
func (c *CompilationContext) pop(op wasm.Opcode, expected wasm.ValueType) error {
	if c.available() < 1 {
		return &StackTooSmallError{Opcode: op, Expected: 1, Actual: 0}
	}
	actual := c.stack[len(c.stack)-1]
	if actual != expected {
		return &StackTypeInvalidError{Opcode: op, Expected: expected, Actual: actual}
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// popAny removes the top operand regardless of type.
func (c *CompilationContext) popAny(op wasm.Opcode) (wasm.ValueType, error) {
	if c.available() < 1 {
		return 0, &StackTooSmallError{Opcode: op, Expected: 1, Actual: 0}
	}
	actual := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return actual, nil
}

// checkTop verifies the top operands are exactly types, in order, without popping them.
func (c *CompilationContext) checkTop(op wasm.Opcode, types []wasm.ValueType) error {
	if n := c.available(); n < len(types) {
		return &StackTooSmallError{Opcode: op, Expected: len(types), Actual: n}
	}
	base := len(c.stack) - len(types)
	for i, expected := range types {
		if actual := c.stack[base+i]; actual != expected {
			return &StackTypeInvalidError{Opcode: op, Expected: expected, Actual: actual}
		}
	}
	return nil
}

// popAll checks and removes the top operands.
func (c *CompilationContext) popAll(op wasm.Opcode, types []wasm.ValueType) error {
	if err := c.checkTop(op, types); err != nil {
		return err
	}
	c.stack = c.stack[:len(c.stack)-len(types)]
	return nil
}

// markUnreachable skips the rest of the innermost block.
func (c *CompilationContext) markUnreachable() {
	c.top().Unreachable = true
}

// acquireScratch returns a local of type vt which nothing else uses until releaseScratch.
func (c *CompilationContext) acquireScratch(vt wasm.ValueType) uint32 {
	if free := c.scratch[vt]; len(free) > 0 {
		idx := free[len(free)-1]
		c.scratch[vt] = free[:len(free)-1]
		return idx
	}
	c.locals = append(c.locals, vt)
	return uint32(len(c.locals) - 1)
}

func (c *CompilationContext) releaseScratch(indexes ...uint32) {
	for _, idx := range indexes {
		vt := c.locals[idx]
		c.scratch[vt] = append(c.scratch[vt], idx)
	}
}

// blockSignature resolves a block type into params and results.
func (c *CompilationContext) blockSignature(bt int64) (params, results []wasm.ValueType, err error) {
	if bt == BlockTypeEmpty {
		return nil, nil, nil
	}
	if vt, ok := blockValueType(bt); ok {
		return nil, []wasm.ValueType{vt}, nil
	}
	if bt < 0 || bt >= int64(len(c.module.Types)) {
		return nil, nil, fmt.Errorf("invalid block type index %d: %d types", bt, len(c.module.Types))
	}
	t := c.module.Types[bt]
	return t.Params, t.Results, nil
}

// stackDump is used in debug logs.
func (c *CompilationContext) stackDump() string {
	strs := make([]string, 0, len(c.stack))
	for _, vt := range c.stack {
		strs = append(strs, wasm.ValueTypeName(vt))
	}
	return "[" + strings.Join(strs, ", ") + "]"
}
