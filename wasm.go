// Package wasmjit compiles WebAssembly 1.0 (MVP) binary modules and creates instances of them.
//
// Ex.
//
//	creator, _ := wasmjit.Compile(bytes.NewReader(source))
//	instance, _ := creator.NewInstance(ctx)
//	defer instance.Close()
//	results, _ := instance.ExportedFunction("fac").Call(ctx, 5)
//
// See https://www.w3.org/TR/wasm-core-1/
package wasmjit

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/binary"
	"github.com/dfinity-lab/wasmjit/wasm/compiler"
	"github.com/dfinity-lab/wasmjit/wasm/interpreter"
)

// Compile decodes, validates and compiles the binary module read from source with the default configuration.
//
// Failures are a *wasm.ModuleLoadError for malformed binaries, a *wasm.CompilerError for unsatisfied imports and a
// *compiler.FunctionError for invalid function bodies.
func Compile(source io.Reader, imports ...Import) (*InstanceCreator, error) {
	return CompileWithConfig(source, NewCompileConfig(), imports...)
}

// CompileWithConfig is like Compile, except it uses the given configuration.
func CompileWithConfig(source io.Reader, config *CompileConfig, imports ...Import) (*InstanceCreator, error) {
	if source == nil {
		return nil, errors.New("source == nil")
	}
	if config == nil {
		config = NewCompileConfig()
	}
	b, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	decoder := &binary.Decoder{Logger: config.logger}
	m, err := decoder.Decode(b)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveImports(m, imports)
	if err != nil {
		return nil, err
	}

	c := &InstanceCreator{module: m, imports: resolved, config: config}
	if err = c.setMemoryLimits(); err != nil {
		return nil, err
	}
	if err = validateStart(m); err != nil {
		return nil, err
	}

	c.names = config.names
	if c.names == nil {
		c.names = newModuleNames(m)
	}
	c.backend = interpreter.NewBackend()
	if c.info, err = compiler.CompileModule(m, c.backend, c.names, config.logger); err != nil {
		return nil, err
	}

	config.logger.Debug("compiled module",
		zap.Int("bytes", len(b)),
		zap.Uint32("functions", m.FunctionCount()),
		zap.Int("exports", len(m.ExportSection)))
	return c, nil
}

// setMemoryLimits lowers the memory maximum to the configured ceiling.
func (c *InstanceCreator) setMemoryLimits() error {
	var limits *wasm.MemoryType
	if im := c.module.ImportedMemory(); im != nil {
		limits = im.DescMem
	} else if c.module.MemorySection != nil {
		limits = c.module.MemorySection
	} else {
		return nil
	}

	ceiling := c.config.memoryMaxPages
	if limits.Min > ceiling {
		return wasm.NewCompilerError("memory min %d pages over limit of %d pages", limits.Min, ceiling)
	}
	c.memoryMin, c.memoryMax = limits.Min, ceiling
	if limits.Max != nil && *limits.Max < ceiling {
		c.memoryMax = *limits.Max
	}
	return nil
}

// validateStart ensures the start function takes no params and returns no results.
//
// See https://www.w3.org/TR/wasm-core-1/#start-function%E2%91%A0
func validateStart(m *wasm.Module) error {
	if m.StartSection == nil {
		return nil
	}
	types := m.FunctionTypeIndexes()
	if t := m.TypeSection[types[*m.StartSection]]; len(t.Params) > 0 || len(t.Results) > 0 {
		return wasm.NewCompilerError("start function must have the empty signature, but was %s", t)
	}
	return nil
}
