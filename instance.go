package wasmjit

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/compiler"
	"github.com/dfinity-lab/wasmjit/wasm/interpreter"
)

// InstanceCreator is a compiled module ready to be instantiated any number of times. It is immutable and safe for
// concurrent use.
type InstanceCreator struct {
	module  *wasm.Module
	info    *compiler.ModuleInfo
	backend *interpreter.Backend
	imports *resolvedImports
	names   compiler.NameResolver
	config  *CompileConfig
	// memoryMin and memoryMax are the page limits of the instance memory, if any.
	memoryMin, memoryMax uint32
}

// NewInstance creates an instance: it allocates or imports the memory, initializes the globals, copies the data
// segments, populates the table then invokes the start function, if any.
//
// Data segments are all checked against the memory before any is copied. On failure, resources acquired so far
// are released.
func (c *InstanceCreator) NewInstance(ctx context.Context) (inst *Instance, err error) {
	if ctx == nil {
		ctx = c.config.ctx
	}
	logger := c.config.logger
	inst = &Instance{creator: c}
	defer func() {
		if err != nil {
			logger.Debug("instantiation failed", zap.Error(err))
			err = multierr.Append(err, inst.Close())
			inst = nil
		}
	}()

	if err = inst.buildMemory(); err != nil {
		return
	}
	if err = inst.buildGlobals(); err != nil {
		return
	}
	if err = inst.initData(); err != nil {
		return
	}
	if err = inst.buildTable(); err != nil {
		return
	}

	store := &interpreter.Store{Memory: inst.memory, Globals: inst.globals, Table: inst.table, TypeIDs: c.info.TypeIDs}
	inst.engine, err = interpreter.NewEngine(c.backend, c.info.Functions, c.imports.functions, c.names, store,
		interpreter.EngineConfig{
			CallStackCeiling:  c.config.callStackCeiling,
			EnsureTermination: c.config.ensureTermination,
		})
	if err != nil {
		return
	}

	if start := c.module.StartSection; start != nil {
		if _, err = inst.engine.Call(ctx, *start); err != nil {
			logger.Warn("start function trapped", zap.Uint32("index", *start), zap.Error(err))
			err = fmt.Errorf("start function[%d] failed: %w", *start, err)
			return
		}
	}
	logger.Debug("instantiated module",
		zap.Bool("memory", inst.memory != nil),
		zap.Int("globals", len(inst.globals)),
		zap.Bool("table", inst.table != nil))
	return
}

// Instance is an instantiated module. It is not safe for concurrent calls.
type Instance struct {
	creator *InstanceCreator
	memory  *wasm.Memory
	// ownsMemory is false when the memory was imported.
	ownsMemory bool
	globals    []*wasm.GlobalInstance
	table      *wasm.Table
	engine     *interpreter.Engine
}

func (i *Instance) buildMemory() error {
	c := i.creator
	if mi := c.imports.memory; mi != nil {
		memory, err := mi.Provide()
		if err != nil {
			return fmt.Errorf("import %s::%s: %w", mi.Module, mi.Name, err)
		}
		if memory == nil {
			return fmt.Errorf("import %s::%s: memory is nil", mi.Module, mi.Name)
		}
		if memory.Size() < c.memoryMin {
			return fmt.Errorf("import %s::%s: memory of %d pages is below the minimum %d", mi.Module, mi.Name,
				memory.Size(), c.memoryMin)
		}
		if declared := c.module.ImportedMemory().DescMem.Max; declared != nil && memory.Max > *declared {
			return fmt.Errorf("import %s::%s: memory max of %d pages is over the maximum %d", mi.Module, mi.Name,
				memory.Max, *declared)
		}
		i.memory = memory
		return nil
	}
	if c.module.MemorySection == nil {
		return nil
	}
	memory, err := wasm.NewMemory(c.memoryMin, c.memoryMax)
	if err != nil {
		return err
	}
	i.memory, i.ownsMemory = memory, true
	return nil
}

func (i *Instance) buildGlobals() error {
	c := i.creator
	imported := c.module.ImportGlobalCount()
	types := c.module.GlobalTypes()
	i.globals = make([]*wasm.GlobalInstance, 0, len(types))
	for idx, gi := range c.imports.globals {
		g, err := wasm.NewHostGlobalInstance(types[idx], gi.Get, gi.Set)
		if err != nil {
			return fmt.Errorf("import %s::%s: %w", gi.Module, gi.Name, err)
		}
		i.globals = append(i.globals, g)
	}
	getGlobal := func(index uint32) uint64 {
		return i.globals[index].Get()
	}
	for idx, g := range c.module.GlobalSection {
		v, err := g.Init.Evaluate(getGlobal)
		if err != nil {
			return fmt.Errorf("global[%d]: %w", imported+uint32(idx), err)
		}
		i.globals = append(i.globals, wasm.NewGlobalInstance(g.Type, v))
	}
	return nil
}

// initData checks every data segment against the memory then copies them.
func (i *Instance) initData() error {
	segments := i.creator.module.DataSection
	offsets := make([]uint32, len(segments))
	for idx, d := range segments {
		v, err := d.OffsetExpression.Evaluate(func(index uint32) uint64 { return i.globals[index].Get() })
		if err != nil {
			return fmt.Errorf("data[%d]: %w", idx, err)
		}
		offsets[idx] = uint32(v)
		if !i.memory.CheckRange(uint64(offsets[idx]), uint64(len(d.Init))) {
			return fmt.Errorf("data[%d]: %w: %d bytes at offset %d exceed memory of %d bytes", idx,
				wasm.ErrRuntimeOutOfBoundsMemoryAccess, len(d.Init), offsets[idx], i.memory.Len())
		}
	}
	for idx, d := range segments {
		if err := i.memory.Init(offsets[idx], d.Init); err != nil {
			return fmt.Errorf("data[%d]: %w", idx, err)
		}
	}
	return nil
}

// buildTable populates the table from the element segments, checking all of them before any write.
func (i *Instance) buildTable() error {
	c := i.creator
	tt := c.module.TableSection
	if tt == nil {
		return nil
	}
	table := wasm.NewTable(tt.Limit.Min, tt.Limit.Max)

	offsets := make([]uint32, len(c.module.ElementSection))
	for idx, e := range c.module.ElementSection {
		v, err := e.OffsetExpr.Evaluate(func(index uint32) uint64 { return i.globals[index].Get() })
		if err != nil {
			return fmt.Errorf("element[%d]: %w", idx, err)
		}
		offsets[idx] = uint32(v)
		if uint64(offsets[idx])+uint64(len(e.Init)) > uint64(table.Len()) {
			return fmt.Errorf("element[%d]: %w: %d elements at offset %d exceed table of %d elements", idx,
				wasm.ErrRuntimeInvalidTableAccess, len(e.Init), offsets[idx], table.Len())
		}
	}

	// Table.Init wants the type id of each function index.
	funcTypeIDs := make([]uint32, len(c.info.Functions))
	for f, typeIndex := range c.module.FunctionTypeIndexes() {
		funcTypeIDs[f] = c.info.TypeIDs[typeIndex]
	}
	for idx, e := range c.module.ElementSection {
		if err := table.Init(offsets[idx], e.Init, funcTypeIDs); err != nil {
			return fmt.Errorf("element[%d]: %w", idx, err)
		}
	}
	i.table = table
	return nil
}

// Close releases the memory unless it was imported. It is safe to call more than once.
func (i *Instance) Close() (err error) {
	if i.memory != nil && i.ownsMemory {
		err = multierr.Append(err, i.memory.Close())
	}
	i.memory = nil
	return
}

// Function is an exported function.
type Function interface {
	// ParamTypes are the types of the params, in order.
	ParamTypes() []wasm.ValueType
	// ResultTypes are the types of the results, in order.
	ResultTypes() []wasm.ValueType
	// Call invokes the function with one encoded value per param, returning one per result in declared order. A
	// trap is returned as an error wrapping the wasm.ErrRuntime* cause.
	//
	// ctx defaults to the context of CompileConfig.WithContext if nil.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

type function struct {
	instance *Instance
	index    uint32
	sig      *wasm.FunctionType
}

func (f *function) ParamTypes() []wasm.ValueType  { return f.sig.Params }
func (f *function) ResultTypes() []wasm.ValueType { return f.sig.Results }

func (f *function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	c := f.instance.creator
	if ctx == nil {
		ctx = c.config.ctx
	}
	results, err := f.instance.engine.Call(ctx, f.index, params...)
	if err != nil {
		c.config.logger.Debug("call failed",
			zap.String("function", c.names.FunctionName(f.index)),
			zap.Error(err))
		return nil, err
	}
	return results, nil
}

// export returns the export of the kind named name, or nil.
func (i *Instance) export(name string, kind wasm.ExportKind) *wasm.Export {
	if e, ok := i.creator.module.ExportSection[name]; ok && e.Kind == kind {
		return e
	}
	return nil
}

// ExportedFunction returns the function exported as name, or nil if there is none.
func (i *Instance) ExportedFunction(name string) Function {
	e := i.export(name, wasm.ExportKindFunc)
	if e == nil {
		return nil
	}
	return &function{instance: i, index: e.Index, sig: i.creator.info.Functions[e.Index]}
}

// ExportedFunctionNames returns the names of the exported functions, sorted.
func (i *Instance) ExportedFunctionNames() []string {
	var names []string
	for name, e := range i.creator.module.ExportSection {
		if e.Kind == wasm.ExportKindFunc {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ExportedMemory returns the memory exported as name, or nil if there is none.
func (i *Instance) ExportedMemory(name string) *wasm.Memory {
	if i.export(name, wasm.ExportKindMemory) == nil {
		return nil
	}
	return i.memory
}

// ExportedGlobal returns the global exported as name, or nil if there is none.
func (i *Instance) ExportedGlobal(name string) *wasm.ExportedGlobal {
	e := i.export(name, wasm.ExportKindGlobal)
	if e == nil {
		return nil
	}
	return wasm.NewExportedGlobal(i.globals[e.Index])
}

// ExportedTable returns the table exported as name, or nil if there is none.
func (i *Instance) ExportedTable(name string) *wasm.Table {
	if i.export(name, wasm.ExportKindTable) == nil {
		return nil
	}
	return i.table
}
