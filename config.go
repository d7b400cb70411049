package wasmjit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/buildoptions"
	"github.com/dfinity-lab/wasmjit/wasm/compiler"
)

// CompileConfig controls compilation and the instances created from the result, with the default implementation as
// NewCompileConfig.
type CompileConfig struct {
	ctx               context.Context
	memoryMaxPages    uint32
	logger            *zap.Logger
	names             compiler.NameResolver
	callStackCeiling  int
	ensureTermination bool
}

// defaultCompileConfig helps avoid copy/pasting the wrong defaults.
var defaultCompileConfig = &CompileConfig{
	ctx:              context.Background(),
	memoryMaxPages:   wasm.MemoryMaxPages,
	logger:           zap.NewNop(),
	callStackCeiling: buildoptions.CallStackCeiling,
}

// clone ensures all fields are copied even if nil.
func (c *CompileConfig) clone() *CompileConfig {
	ret := *c
	return &ret
}

// NewCompileConfig returns the defaults: a background context, the largest addressable memory, no logging and the
// module's own name section.
func NewCompileConfig() *CompileConfig {
	return defaultCompileConfig.clone()
}

// WithContext sets the default context used to initialize instances. Defaults to context.Background if nil.
//
// Notes:
//   - If the module defines a start function, this is used to invoke it when NewInstance is passed nil.
//   - This is the default context of Function.Call when callers pass nil.
//
// See https://www.w3.org/TR/wasm-core-1/#start-function%E2%91%A0
func (c *CompileConfig) WithContext(ctx context.Context) *CompileConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ret := c.clone()
	ret.ctx = ctx
	return ret
}

// WithMemoryMaxPages reduces the maximum number of pages a memory can grow to from 65535 pages (just under 4GiB).
//
// Notes:
//   - If a module defines no memory max limit, its memory grows up to this value.
//   - A module defining a larger max has it lowered to this value.
//   - A module whose min exceeds this value fails to compile.
//
// See https://www.w3.org/TR/wasm-core-1/#grow-mem
func (c *CompileConfig) WithMemoryMaxPages(memoryMaxPages uint32) *CompileConfig {
	if memoryMaxPages > wasm.MemoryMaxPages {
		memoryMaxPages = wasm.MemoryMaxPages
	}
	ret := c.clone()
	ret.memoryMaxPages = memoryMaxPages
	return ret
}

// WithLogger sets the logger receiving debug events of decoding, compilation and instantiation. Defaults to
// zap.NewNop if nil.
func (c *CompileConfig) WithLogger(logger *zap.Logger) *CompileConfig {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithNameResolver overrides how functions are named in compile errors and trap backtraces. Defaults to the
// "name" custom section of the module, then its export names.
func (c *CompileConfig) WithNameResolver(names compiler.NameResolver) *CompileConfig {
	ret := c.clone()
	ret.names = names
	return ret
}

// WithCallStackCeiling sets the count of nested calls after which a call traps with
// wasm.ErrRuntimeCallStackOverflow. Defaults to buildoptions.CallStackCeiling when not positive.
func (c *CompileConfig) WithCallStackCeiling(ceiling int) *CompileConfig {
	if ceiling <= 0 {
		ceiling = buildoptions.CallStackCeiling
	}
	ret := c.clone()
	ret.callStackCeiling = ceiling
	return ret
}

// WithEnsureTermination makes calls observe the cancellation of their context at function entry and on every
// backward branch, trapping with wasm.ErrRuntimeCallTerminated. Defaults to false as it slows down loops.
func (c *CompileConfig) WithEnsureTermination(enabled bool) *CompileConfig {
	ret := c.clone()
	ret.ensureTermination = enabled
	return ret
}
