package compiler

import "github.com/dfinity-lab/wasmjit/wasm"

// numericSignature is the stack effect of a numeric instruction.
type numericSignature struct {
	params []wasm.ValueType
	result wasm.ValueType
}

var (
	i32, i64, f32, f64 = wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64

	sigI32_I32    = numericSignature{params: []wasm.ValueType{i32}, result: i32}
	sigI32I32_I32 = numericSignature{params: []wasm.ValueType{i32, i32}, result: i32}
	sigI64_I32    = numericSignature{params: []wasm.ValueType{i64}, result: i32}
	sigI64I64_I32 = numericSignature{params: []wasm.ValueType{i64, i64}, result: i32}
	sigI64_I64    = numericSignature{params: []wasm.ValueType{i64}, result: i64}
	sigI64I64_I64 = numericSignature{params: []wasm.ValueType{i64, i64}, result: i64}
	sigF32F32_I32 = numericSignature{params: []wasm.ValueType{f32, f32}, result: i32}
	sigF64F64_I32 = numericSignature{params: []wasm.ValueType{f64, f64}, result: i32}
	sigF32_F32    = numericSignature{params: []wasm.ValueType{f32}, result: f32}
	sigF32F32_F32 = numericSignature{params: []wasm.ValueType{f32, f32}, result: f32}
	sigF64_F64    = numericSignature{params: []wasm.ValueType{f64}, result: f64}
	sigF64F64_F64 = numericSignature{params: []wasm.ValueType{f64, f64}, result: f64}
	sigI32_I64    = numericSignature{params: []wasm.ValueType{i32}, result: i64}
	sigI32_F32    = numericSignature{params: []wasm.ValueType{i32}, result: f32}
	sigI32_F64    = numericSignature{params: []wasm.ValueType{i32}, result: f64}
	sigI64_F32    = numericSignature{params: []wasm.ValueType{i64}, result: f32}
	sigI64_F64    = numericSignature{params: []wasm.ValueType{i64}, result: f64}
	sigF32_I32    = numericSignature{params: []wasm.ValueType{f32}, result: i32}
	sigF32_I64    = numericSignature{params: []wasm.ValueType{f32}, result: i64}
	sigF32_F64    = numericSignature{params: []wasm.ValueType{f32}, result: f64}
	sigF64_I32    = numericSignature{params: []wasm.ValueType{f64}, result: i32}
	sigF64_I64    = numericSignature{params: []wasm.ValueType{f64}, result: i64}
	sigF64_F32    = numericSignature{params: []wasm.ValueType{f64}, result: f32}
)

// numericSignatures covers every opcode compiled by compileNumeric.
var numericSignatures = func() map[wasm.Opcode]numericSignature {
	ret := map[wasm.Opcode]numericSignature{
		wasm.OpcodeI32Eqz: sigI32_I32,
		wasm.OpcodeI64Eqz: sigI64_I32,

		wasm.OpcodeI32WrapI64:        sigI64_I32,
		wasm.OpcodeI32TruncF32S:      sigF32_I32,
		wasm.OpcodeI32TruncF32U:      sigF32_I32,
		wasm.OpcodeI32TruncF64S:      sigF64_I32,
		wasm.OpcodeI32TruncF64U:      sigF64_I32,
		wasm.OpcodeI64ExtendI32S:     sigI32_I64,
		wasm.OpcodeI64ExtendI32U:     sigI32_I64,
		wasm.OpcodeI64TruncF32S:      sigF32_I64,
		wasm.OpcodeI64TruncF32U:      sigF32_I64,
		wasm.OpcodeI64TruncF64S:      sigF64_I64,
		wasm.OpcodeI64TruncF64U:      sigF64_I64,
		wasm.OpcodeF32ConvertI32S:    sigI32_F32,
		wasm.OpcodeF32ConvertI32U:    sigI32_F32,
		wasm.OpcodeF32ConvertI64S:    sigI64_F32,
		wasm.OpcodeF32ConvertI64U:    sigI64_F32,
		wasm.OpcodeF32DemoteF64:      sigF64_F32,
		wasm.OpcodeF64ConvertI32S:    sigI32_F64,
		wasm.OpcodeF64ConvertI32U:    sigI32_F64,
		wasm.OpcodeF64ConvertI64S:    sigI64_F64,
		wasm.OpcodeF64ConvertI64U:    sigI64_F64,
		wasm.OpcodeF64PromoteF32:     sigF32_F64,
		wasm.OpcodeI32ReinterpretF32: sigF32_I32,
		wasm.OpcodeI64ReinterpretF64: sigF64_I64,
		wasm.OpcodeF32ReinterpretI32: sigI32_F32,
		wasm.OpcodeF64ReinterpretI64: sigI64_F64,

		wasm.OpcodeI32Extend8S:  sigI32_I32,
		wasm.OpcodeI32Extend16S: sigI32_I32,
		wasm.OpcodeI64Extend8S:  sigI64_I64,
		wasm.OpcodeI64Extend16S: sigI64_I64,
		wasm.OpcodeI64Extend32S: sigI64_I64,
	}
	ranges := []struct {
		first, last wasm.Opcode
		sig         numericSignature
	}{
		{wasm.OpcodeI32Eq, wasm.OpcodeI32GeU, sigI32I32_I32},
		{wasm.OpcodeI64Eq, wasm.OpcodeI64GeU, sigI64I64_I32},
		{wasm.OpcodeF32Eq, wasm.OpcodeF32Ge, sigF32F32_I32},
		{wasm.OpcodeF64Eq, wasm.OpcodeF64Ge, sigF64F64_I32},
		{wasm.OpcodeI32Clz, wasm.OpcodeI32Popcnt, sigI32_I32},
		{wasm.OpcodeI32Add, wasm.OpcodeI32Rotr, sigI32I32_I32},
		{wasm.OpcodeI64Clz, wasm.OpcodeI64Popcnt, sigI64_I64},
		{wasm.OpcodeI64Add, wasm.OpcodeI64Rotr, sigI64I64_I64},
		{wasm.OpcodeF32Abs, wasm.OpcodeF32Sqrt, sigF32_F32},
		{wasm.OpcodeF32Add, wasm.OpcodeF32Copysign, sigF32F32_F32},
		{wasm.OpcodeF64Abs, wasm.OpcodeF64Sqrt, sigF64_F64},
		{wasm.OpcodeF64Add, wasm.OpcodeF64Copysign, sigF64F64_F64},
	}
	for _, r := range ranges {
		for op := r.first; op <= r.last; op++ {
			ret[op] = r.sig
		}
	}
	return ret
}()

// memoryAccess is the value type and width in bytes of a load or store.
type memoryAccess struct {
	vt    wasm.ValueType
	width uint32
	store bool
}

var memoryAccesses = map[wasm.Opcode]memoryAccess{
	wasm.OpcodeI32Load:    {vt: i32, width: 4},
	wasm.OpcodeI64Load:    {vt: i64, width: 8},
	wasm.OpcodeF32Load:    {vt: f32, width: 4},
	wasm.OpcodeF64Load:    {vt: f64, width: 8},
	wasm.OpcodeI32Load8S:  {vt: i32, width: 1},
	wasm.OpcodeI32Load8U:  {vt: i32, width: 1},
	wasm.OpcodeI32Load16S: {vt: i32, width: 2},
	wasm.OpcodeI32Load16U: {vt: i32, width: 2},
	wasm.OpcodeI64Load8S:  {vt: i64, width: 1},
	wasm.OpcodeI64Load8U:  {vt: i64, width: 1},
	wasm.OpcodeI64Load16S: {vt: i64, width: 2},
	wasm.OpcodeI64Load16U: {vt: i64, width: 2},
	wasm.OpcodeI64Load32S: {vt: i64, width: 4},
	wasm.OpcodeI64Load32U: {vt: i64, width: 4},
	wasm.OpcodeI32Store:   {vt: i32, width: 4, store: true},
	wasm.OpcodeI64Store:   {vt: i64, width: 8, store: true},
	wasm.OpcodeF32Store:   {vt: f32, width: 4, store: true},
	wasm.OpcodeF64Store:   {vt: f64, width: 8, store: true},
	wasm.OpcodeI32Store8:  {vt: i32, width: 1, store: true},
	wasm.OpcodeI32Store16: {vt: i32, width: 2, store: true},
	wasm.OpcodeI64Store8:  {vt: i64, width: 1, store: true},
	wasm.OpcodeI64Store16: {vt: i64, width: 2, store: true},
	wasm.OpcodeI64Store32: {vt: i64, width: 4, store: true},
}

// CanonicalTypeIDs maps each type index to the lowest index of a structurally equal type, so that indirect calls
// compare signatures with one integer comparison.
func CanonicalTypeIDs(types []*wasm.FunctionType) []uint32 {
	ret := make([]uint32, len(types))
	for i, t := range types {
		ret[i] = uint32(i)
		for j := 0; j < i; j++ {
			if types[j].EqualsSignature(t) {
				ret[i] = ret[j]
				break
			}
		}
	}
	return ret
}
