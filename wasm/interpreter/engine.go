package interpreter

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"strings"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/buildoptions"
	"github.com/dfinity-lab/wasmjit/wasm/compiler"
)

// HostFunction implements an imported function. It receives one value per param and must return one value per
// result, encoded like the params of Engine.Call.
type HostFunction func(ctx *wasm.HostFunctionCallContext, params []uint64) []uint64

// Store is the instance state which function bodies read and write.
type Store struct {
	// Memory is nil if the module has none.
	Memory  *wasm.Memory
	Globals []*wasm.GlobalInstance
	// Table is nil if the module has none.
	Table *wasm.Table
	// TypeIDs is the canonical id of each type index. See compiler.CanonicalTypeIDs.
	TypeIDs []uint32
}

// EngineConfig are the limits of an Engine.
type EngineConfig struct {
	// CallStackCeiling is the count of nested calls after which a call traps. Zero means
	// buildoptions.CallStackCeiling.
	CallStackCeiling int
	// EnsureTermination checks the context of a call at function entry and on backward branches.
	EnsureTermination bool
}

// engineFunction is an entry of the function index space.
type engineFunction struct {
	name string
	sig  *wasm.FunctionType
	host HostFunction
	code *function
}

// Engine executes the functions of one instance. It is not safe for concurrent calls.
type Engine struct {
	functions         []*engineFunction
	store             *Store
	callStackCeiling  int
	ensureTermination bool
}

// NewEngine links the bodies compiled by b with the host functions implementing the imports.
//
// sigs is the signature of every function, imported ones first, and names labels them in backtraces.
func NewEngine(b *Backend, sigs []*wasm.FunctionType, hosts []HostFunction, names compiler.NameResolver, store *Store, config EngineConfig) (*Engine, error) {
	e := &Engine{
		store:             store,
		callStackCeiling:  config.CallStackCeiling,
		ensureTermination: config.EnsureTermination,
	}
	if e.callStackCeiling <= 0 {
		e.callStackCeiling = buildoptions.CallStackCeiling
	}
	for i, sig := range sigs {
		idx := uint32(i)
		f := &engineFunction{name: names.FunctionName(idx), sig: sig}
		if i < len(hosts) {
			if hosts[i] == nil {
				return nil, fmt.Errorf("function[%d] is imported but has no host function", idx)
			}
			f.host = hosts[i]
		} else if f.code = b.functions[idx]; f.code == nil {
			return nil, fmt.Errorf("function[%d] is not compiled", idx)
		}
		e.functions = append(e.functions, f)
	}
	return e, nil
}

// Call invokes the function at funcIndex and returns all of its results in declared order. A trap is returned as
// an error wrapping the wasm.ErrRuntime* cause, followed by a backtrace.
func (e *Engine) Call(ctx context.Context, funcIndex uint32, params ...uint64) (results []uint64, err error) {
	if uint64(funcIndex) >= uint64(len(e.functions)) {
		return nil, fmt.Errorf("function[%d] does not exist", funcIndex)
	}
	f := e.functions[funcIndex]
	if len(params) != len(f.sig.Params) {
		return nil, fmt.Errorf("expected %d params, but passed %d", len(f.sig.Params), len(params))
	}

	ce := &callEngine{engine: e, ctx: ctx}
	defer func() {
		if v := recover(); v != nil {
			if buildoptions.IsDebugMode {
				debug.PrintStack()
			}
			results, err = nil, ce.trapError(v)
		}
	}()

	results = make([]uint64, len(f.sig.Results))
	var outs []*uint64
	for i := 1; i < len(results); i++ {
		outs = append(outs, &results[i])
	}
	for i, p := range params {
		ce.push(wasm.CanonicalValue(f.sig.Params[i], p))
	}
	ce.call(f, outs)
	if len(results) > 0 {
		results[0] = ce.pop()
	}
	return results, nil
}

// callEngine is the state of one call from the host.
type callEngine struct {
	engine *Engine
	ctx    context.Context
	// stack contains the operands of every frame. All the values are represented as uint64.
	stack  []uint64
	frames []*callFrame
}

type callFrame struct {
	// pc is the index of the current op in f.code.body.
	pc uint64
	f  *engineFunction
	// locals are the params, declared locals and scratch locals.
	locals []uint64
	// outs receive the results after the first.
	outs []*uint64
	// base is the stack height at entry, the origin of branch heights.
	base int
}

// trapError converts a recovered panic into an error listing the functions on the stack, innermost first.
func (ce *callEngine) trapError(v interface{}) error {
	var err error
	if trap, ok := v.(error); ok {
		err = fmt.Errorf("wasm runtime error: %w", trap)
	} else {
		err = fmt.Errorf("wasm runtime error: %v", v)
	}

	traces := make([]string, 0, len(ce.frames))
	for i := len(ce.frames) - 1; i >= 0; i-- {
		traces = append(traces, fmt.Sprintf("\t%d: %s", len(traces), ce.frames[i].f.name))
	}
	ce.frames = ce.frames[:0]
	if len(traces) > 0 {
		err = fmt.Errorf("%w\nwasm backtrace:\n%s", err, strings.Join(traces, "\n"))
	}
	return err
}

func (ce *callEngine) push(v uint64) {
	ce.stack = append(ce.stack, v)
}

func (ce *callEngine) pop() (v uint64) {
	// No need to check stack bound as the compiler validated the body.
	v = ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return
}

func (ce *callEngine) pushFrame(frame *callFrame) {
	if ce.engine.callStackCeiling <= len(ce.frames) {
		panic(wasm.ErrRuntimeCallStackOverflow)
	}
	ce.frames = append(ce.frames, frame)
}

func (ce *callEngine) popFrame() {
	ce.frames = ce.frames[:len(ce.frames)-1]
}

func (ce *callEngine) checkTermination() {
	if ce.ctx.Err() != nil {
		panic(wasm.ErrRuntimeCallTerminated)
	}
}

// call pops the params of f, runs it and pushes its first result. The other results are written to outs.
func (ce *callEngine) call(f *engineFunction, outs []*uint64) {
	n := len(f.sig.Params)
	params := ce.stack[len(ce.stack)-n:]
	frame := &callFrame{f: f, outs: outs}
	if f.host != nil {
		frame.locals = append([]uint64(nil), params...)
	} else {
		frame.locals = make([]uint64, f.code.numLocals)
		copy(frame.locals, params)
	}
	ce.stack = ce.stack[:len(ce.stack)-n]
	frame.base = len(ce.stack)

	ce.pushFrame(frame)
	if f.host != nil {
		ce.callHost(frame)
	} else {
		ce.callNative(frame)
	}
	ce.popFrame()
}

func (ce *callEngine) callHost(frame *callFrame) {
	f := frame.f
	results := f.host(&wasm.HostFunctionCallContext{Context: ce.ctx, Memory: ce.engine.store.Memory}, frame.locals)
	if len(results) != len(f.sig.Results) {
		panic(fmt.Errorf("host function %s returned %d results, expected %d", f.name, len(results), len(f.sig.Results)))
	}
	if len(results) > 0 {
		ce.push(wasm.CanonicalValue(f.sig.Results[0], results[0]))
		for i, out := range frame.outs {
			*out = wasm.CanonicalValue(f.sig.Results[i+1], results[i+1])
		}
	}
}

// branch reshapes the stack for the target and jumps to it.
func (ce *callEngine) branch(frame *callFrame, b *branch) {
	ce.truncate(frame, b)
	if ce.engine.ensureTermination && b.addr <= frame.pc {
		ce.checkTermination()
	}
	frame.pc = b.addr
}

// truncate moves the top b.keep values down to b.height and drops everything above them.
func (ce *callEngine) truncate(frame *callFrame, b *branch) {
	from, to := len(ce.stack)-b.keep, frame.base+b.height
	if from != to {
		copy(ce.stack[to:], ce.stack[from:])
		ce.stack = ce.stack[:to+b.keep]
	}
}

// outputs points at the caller locals receiving extra results.
func (ce *callEngine) outputs(frame *callFrame, locals []uint32) []*uint64 {
	if len(locals) == 0 {
		return nil
	}
	outs := make([]*uint64, len(locals))
	for i, l := range locals {
		outs[i] = &frame.locals[l]
	}
	return outs
}

func (ce *callEngine) callNative(frame *callFrame) {
	store := ce.engine.store
	memory, globals := store.Memory, store.Globals
	if ce.engine.ensureTermination {
		ce.checkTermination()
	}

	body := frame.f.code.body
	bodyLen := uint64(len(body))
	for frame.pc < bodyLen {
		op := &body[frame.pc]
		switch op.kind {
		case kindUnreachable:
			panic(wasm.ErrRuntimeUnreachable)
		case kindConst:
			ce.push(op.u1)
			frame.pc++
		case kindNumeric:
			ce.numeric(op.opcode)
			frame.pc++
		case kindDrop:
			ce.stack = ce.stack[:len(ce.stack)-1]
			frame.pc++
		case kindSelect:
			c := ce.pop()
			v2 := ce.pop()
			if c == 0 {
				ce.stack[len(ce.stack)-1] = v2
			}
			frame.pc++
		case kindLocalGet:
			ce.push(frame.locals[op.u1])
			frame.pc++
		case kindLocalSet:
			frame.locals[op.u1] = ce.pop()
			frame.pc++
		case kindLocalTee:
			frame.locals[op.u1] = ce.stack[len(ce.stack)-1]
			frame.pc++
		case kindGlobalGet:
			ce.push(globals[op.u1].Get())
			frame.pc++
		case kindGlobalSet:
			globals[op.u1].Set(ce.pop())
			frame.pc++
		case kindLoad:
			ce.load(memory, op.opcode, op.u1)
			frame.pc++
		case kindStore:
			ce.store(memory, op.opcode, op.u1)
			frame.pc++
		case kindMemorySize:
			ce.push(uint64(memory.Size()))
			frame.pc++
		case kindMemoryGrow:
			if previous, ok := memory.Grow(uint32(ce.pop())); ok {
				ce.push(uint64(previous))
			} else {
				ce.push(uint64(math.MaxUint32)) // -1 as i32
			}
			frame.pc++
		case kindBr:
			ce.branch(frame, &op.br)
		case kindBrIf:
			if ce.pop() != 0 {
				ce.branch(frame, &op.br)
			} else {
				frame.pc++
			}
		case kindBrIfZero:
			if ce.pop() == 0 {
				frame.pc = op.br.addr
			} else {
				frame.pc++
			}
		case kindBrTable:
			i := ce.pop()
			if last := uint64(len(op.targets) - 1); i > last {
				i = last
			}
			ce.branch(frame, &op.targets[i])
		case kindTruncate:
			ce.truncate(frame, &op.br)
			frame.pc++
		case kindCall:
			ce.call(ce.engine.functions[op.u1], ce.outputs(frame, op.outs))
			frame.pc++
		case kindCallIndirect:
			if store.Table == nil {
				panic(wasm.ErrRuntimeInvalidTableAccess)
			}
			elem := store.Table.Lookup(uint32(ce.pop()))
			if elem.TypeID != store.TypeIDs[op.u1] {
				panic(wasm.ErrRuntimeIndirectCallTypeMismatch)
			}
			ce.call(ce.engine.functions[elem.FunctionIndex], ce.outputs(frame, op.outs))
			frame.pc++
		case kindStoreOutput:
			*frame.outs[op.u1] = frame.locals[op.u2]
			frame.pc++
		case kindReturn:
			return
		}
	}
}
