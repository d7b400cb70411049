package interpreter

import (
	"math"
	"math/bits"

	"github.com/dfinity-lab/wasmjit/internal/moremath"
	"github.com/dfinity-lab/wasmjit/wasm"
)

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func zext32(v uint32) uint64 {
	return uint64(v)
}

func asF32(v uint64) float32 {
	return math.Float32frombits(uint32(v))
}

func fromF32(f float32) uint64 {
	return uint64(math.Float32bits(f))
}

func asF64(v uint64) float64 {
	return math.Float64frombits(v)
}

const (
	f32SignMask = uint64(1) << 31
	f64SignMask = uint64(1) << 63
)

// truncFloat returns math.Trunc(f), trapping when f is NaN or the result is outside [min, max).
func truncFloat(f, min, max float64) float64 {
	if math.IsNaN(f) {
		panic(wasm.ErrRuntimeInvalidConversionToInteger)
	}
	t := math.Trunc(f)
	if t < min || t >= max {
		panic(wasm.ErrRuntimeIntegerOverflow)
	}
	return t
}

// numeric pops the operands of opcode and pushes its result. i32 results are zero-extended.
func (ce *callEngine) numeric(opcode wasm.Opcode) {
	switch opcode {
	// Unary.
	case wasm.OpcodeI32Eqz:
		ce.push(b2u(uint32(ce.pop()) == 0))
	case wasm.OpcodeI64Eqz:
		ce.push(b2u(ce.pop() == 0))
	case wasm.OpcodeI32Clz:
		ce.push(uint64(bits.LeadingZeros32(uint32(ce.pop()))))
	case wasm.OpcodeI32Ctz:
		ce.push(uint64(bits.TrailingZeros32(uint32(ce.pop()))))
	case wasm.OpcodeI32Popcnt:
		ce.push(uint64(bits.OnesCount32(uint32(ce.pop()))))
	case wasm.OpcodeI64Clz:
		ce.push(uint64(bits.LeadingZeros64(ce.pop())))
	case wasm.OpcodeI64Ctz:
		ce.push(uint64(bits.TrailingZeros64(ce.pop())))
	case wasm.OpcodeI64Popcnt:
		ce.push(uint64(bits.OnesCount64(ce.pop())))
	case wasm.OpcodeF32Abs:
		ce.push(ce.pop() &^ f32SignMask)
	case wasm.OpcodeF32Neg:
		ce.push(ce.pop() ^ f32SignMask)
	case wasm.OpcodeF32Ceil:
		ce.push(fromF32(float32(math.Ceil(float64(asF32(ce.pop()))))))
	case wasm.OpcodeF32Floor:
		ce.push(fromF32(float32(math.Floor(float64(asF32(ce.pop()))))))
	case wasm.OpcodeF32Trunc:
		ce.push(fromF32(float32(math.Trunc(float64(asF32(ce.pop()))))))
	case wasm.OpcodeF32Nearest:
		ce.push(fromF32(moremath.WasmCompatNearestF32(asF32(ce.pop()))))
	case wasm.OpcodeF32Sqrt:
		ce.push(fromF32(float32(math.Sqrt(float64(asF32(ce.pop()))))))
	case wasm.OpcodeF64Abs:
		ce.push(ce.pop() &^ f64SignMask)
	case wasm.OpcodeF64Neg:
		ce.push(ce.pop() ^ f64SignMask)
	case wasm.OpcodeF64Ceil:
		ce.push(math.Float64bits(math.Ceil(asF64(ce.pop()))))
	case wasm.OpcodeF64Floor:
		ce.push(math.Float64bits(math.Floor(asF64(ce.pop()))))
	case wasm.OpcodeF64Trunc:
		ce.push(math.Float64bits(math.Trunc(asF64(ce.pop()))))
	case wasm.OpcodeF64Nearest:
		ce.push(math.Float64bits(moremath.WasmCompatNearestF64(asF64(ce.pop()))))
	case wasm.OpcodeF64Sqrt:
		ce.push(math.Float64bits(math.Sqrt(asF64(ce.pop()))))

	// Conversions.
	case wasm.OpcodeI32WrapI64:
		ce.push(zext32(uint32(ce.pop())))
	case wasm.OpcodeI32TruncF32S:
		ce.push(zext32(uint32(int32(truncFloat(float64(asF32(ce.pop())), math.MinInt32, -math.MinInt32)))))
	case wasm.OpcodeI32TruncF32U:
		ce.push(zext32(uint32(truncFloat(float64(asF32(ce.pop())), 0, 1<<32))))
	case wasm.OpcodeI32TruncF64S:
		ce.push(zext32(uint32(int32(truncFloat(asF64(ce.pop()), math.MinInt32, -math.MinInt32)))))
	case wasm.OpcodeI32TruncF64U:
		ce.push(zext32(uint32(truncFloat(asF64(ce.pop()), 0, 1<<32))))
	case wasm.OpcodeI64ExtendI32S:
		ce.push(uint64(int64(int32(ce.pop()))))
	case wasm.OpcodeI64ExtendI32U:
		ce.push(uint64(uint32(ce.pop())))
	case wasm.OpcodeI64TruncF32S:
		ce.push(uint64(int64(truncFloat(float64(asF32(ce.pop())), math.MinInt64, -math.MinInt64))))
	case wasm.OpcodeI64TruncF32U:
		ce.push(uint64(truncFloat(float64(asF32(ce.pop())), 0, 1<<64)))
	case wasm.OpcodeI64TruncF64S:
		ce.push(uint64(int64(truncFloat(asF64(ce.pop()), math.MinInt64, -math.MinInt64))))
	case wasm.OpcodeI64TruncF64U:
		ce.push(uint64(truncFloat(asF64(ce.pop()), 0, 1<<64)))
	case wasm.OpcodeF32ConvertI32S:
		ce.push(fromF32(float32(int32(ce.pop()))))
	case wasm.OpcodeF32ConvertI32U:
		ce.push(fromF32(float32(uint32(ce.pop()))))
	case wasm.OpcodeF32ConvertI64S:
		ce.push(fromF32(float32(int64(ce.pop()))))
	case wasm.OpcodeF32ConvertI64U:
		ce.push(fromF32(float32(ce.pop())))
	case wasm.OpcodeF32DemoteF64:
		ce.push(fromF32(float32(asF64(ce.pop()))))
	case wasm.OpcodeF64ConvertI32S:
		ce.push(math.Float64bits(float64(int32(ce.pop()))))
	case wasm.OpcodeF64ConvertI32U:
		ce.push(math.Float64bits(float64(uint32(ce.pop()))))
	case wasm.OpcodeF64ConvertI64S:
		ce.push(math.Float64bits(float64(int64(ce.pop()))))
	case wasm.OpcodeF64ConvertI64U:
		ce.push(math.Float64bits(float64(ce.pop())))
	case wasm.OpcodeF64PromoteF32:
		ce.push(math.Float64bits(float64(asF32(ce.pop()))))

	// Sign extension.
	case wasm.OpcodeI32Extend8S:
		ce.push(zext32(uint32(int32(int8(ce.pop())))))
	case wasm.OpcodeI32Extend16S:
		ce.push(zext32(uint32(int32(int16(ce.pop())))))
	case wasm.OpcodeI64Extend8S:
		ce.push(uint64(int64(int8(ce.pop()))))
	case wasm.OpcodeI64Extend16S:
		ce.push(uint64(int64(int16(ce.pop()))))
	case wasm.OpcodeI64Extend32S:
		ce.push(uint64(int64(int32(ce.pop()))))

	default:
		v2, v1 := ce.pop(), ce.pop()
		ce.push(binaryOp(opcode, v1, v2))
	}
}

// binaryOp computes a two-operand opcode.
func binaryOp(opcode wasm.Opcode, v1, v2 uint64) uint64 {
	switch opcode {
	// i32 comparisons.
	case wasm.OpcodeI32Eq:
		return b2u(uint32(v1) == uint32(v2))
	case wasm.OpcodeI32Ne:
		return b2u(uint32(v1) != uint32(v2))
	case wasm.OpcodeI32LtS:
		return b2u(int32(v1) < int32(v2))
	case wasm.OpcodeI32LtU:
		return b2u(uint32(v1) < uint32(v2))
	case wasm.OpcodeI32GtS:
		return b2u(int32(v1) > int32(v2))
	case wasm.OpcodeI32GtU:
		return b2u(uint32(v1) > uint32(v2))
	case wasm.OpcodeI32LeS:
		return b2u(int32(v1) <= int32(v2))
	case wasm.OpcodeI32LeU:
		return b2u(uint32(v1) <= uint32(v2))
	case wasm.OpcodeI32GeS:
		return b2u(int32(v1) >= int32(v2))
	case wasm.OpcodeI32GeU:
		return b2u(uint32(v1) >= uint32(v2))

	// i64 comparisons.
	case wasm.OpcodeI64Eq:
		return b2u(v1 == v2)
	case wasm.OpcodeI64Ne:
		return b2u(v1 != v2)
	case wasm.OpcodeI64LtS:
		return b2u(int64(v1) < int64(v2))
	case wasm.OpcodeI64LtU:
		return b2u(v1 < v2)
	case wasm.OpcodeI64GtS:
		return b2u(int64(v1) > int64(v2))
	case wasm.OpcodeI64GtU:
		return b2u(v1 > v2)
	case wasm.OpcodeI64LeS:
		return b2u(int64(v1) <= int64(v2))
	case wasm.OpcodeI64LeU:
		return b2u(v1 <= v2)
	case wasm.OpcodeI64GeS:
		return b2u(int64(v1) >= int64(v2))
	case wasm.OpcodeI64GeU:
		return b2u(v1 >= v2)

	// Float comparisons.
	case wasm.OpcodeF32Eq:
		return b2u(asF32(v1) == asF32(v2))
	case wasm.OpcodeF32Ne:
		return b2u(asF32(v1) != asF32(v2))
	case wasm.OpcodeF32Lt:
		return b2u(asF32(v1) < asF32(v2))
	case wasm.OpcodeF32Gt:
		return b2u(asF32(v1) > asF32(v2))
	case wasm.OpcodeF32Le:
		return b2u(asF32(v1) <= asF32(v2))
	case wasm.OpcodeF32Ge:
		return b2u(asF32(v1) >= asF32(v2))
	case wasm.OpcodeF64Eq:
		return b2u(asF64(v1) == asF64(v2))
	case wasm.OpcodeF64Ne:
		return b2u(asF64(v1) != asF64(v2))
	case wasm.OpcodeF64Lt:
		return b2u(asF64(v1) < asF64(v2))
	case wasm.OpcodeF64Gt:
		return b2u(asF64(v1) > asF64(v2))
	case wasm.OpcodeF64Le:
		return b2u(asF64(v1) <= asF64(v2))
	case wasm.OpcodeF64Ge:
		return b2u(asF64(v1) >= asF64(v2))

	// i32 arithmetic.
	case wasm.OpcodeI32Add:
		return zext32(uint32(v1) + uint32(v2))
	case wasm.OpcodeI32Sub:
		return zext32(uint32(v1) - uint32(v2))
	case wasm.OpcodeI32Mul:
		return zext32(uint32(v1) * uint32(v2))
	case wasm.OpcodeI32DivS:
		x, y := int32(v1), int32(v2)
		if y == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		if x == math.MinInt32 && y == -1 {
			panic(wasm.ErrRuntimeIntegerOverflow)
		}
		return zext32(uint32(x / y))
	case wasm.OpcodeI32DivU:
		if uint32(v2) == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		return zext32(uint32(v1) / uint32(v2))
	case wasm.OpcodeI32RemS:
		x, y := int32(v1), int32(v2)
		if y == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		if y == -1 {
			return 0
		}
		return zext32(uint32(x % y))
	case wasm.OpcodeI32RemU:
		if uint32(v2) == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		return zext32(uint32(v1) % uint32(v2))
	case wasm.OpcodeI32And:
		return zext32(uint32(v1) & uint32(v2))
	case wasm.OpcodeI32Or:
		return zext32(uint32(v1) | uint32(v2))
	case wasm.OpcodeI32Xor:
		return zext32(uint32(v1) ^ uint32(v2))
	case wasm.OpcodeI32Shl:
		return zext32(uint32(v1) << (uint32(v2) % 32))
	case wasm.OpcodeI32ShrS:
		return zext32(uint32(int32(v1) >> (uint32(v2) % 32)))
	case wasm.OpcodeI32ShrU:
		return zext32(uint32(v1) >> (uint32(v2) % 32))
	case wasm.OpcodeI32Rotl:
		return zext32(bits.RotateLeft32(uint32(v1), int(uint32(v2)%32)))
	case wasm.OpcodeI32Rotr:
		return zext32(bits.RotateLeft32(uint32(v1), -int(uint32(v2)%32)))

	// i64 arithmetic.
	case wasm.OpcodeI64Add:
		return v1 + v2
	case wasm.OpcodeI64Sub:
		return v1 - v2
	case wasm.OpcodeI64Mul:
		return v1 * v2
	case wasm.OpcodeI64DivS:
		x, y := int64(v1), int64(v2)
		if y == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		if x == math.MinInt64 && y == -1 {
			panic(wasm.ErrRuntimeIntegerOverflow)
		}
		return uint64(x / y)
	case wasm.OpcodeI64DivU:
		if v2 == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		return v1 / v2
	case wasm.OpcodeI64RemS:
		x, y := int64(v1), int64(v2)
		if y == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		if y == -1 {
			return 0
		}
		return uint64(x % y)
	case wasm.OpcodeI64RemU:
		if v2 == 0 {
			panic(wasm.ErrRuntimeIntegerDivideByZero)
		}
		return v1 % v2
	case wasm.OpcodeI64And:
		return v1 & v2
	case wasm.OpcodeI64Or:
		return v1 | v2
	case wasm.OpcodeI64Xor:
		return v1 ^ v2
	case wasm.OpcodeI64Shl:
		return v1 << (v2 % 64)
	case wasm.OpcodeI64ShrS:
		return uint64(int64(v1) >> (v2 % 64))
	case wasm.OpcodeI64ShrU:
		return v1 >> (v2 % 64)
	case wasm.OpcodeI64Rotl:
		return bits.RotateLeft64(v1, int(v2%64))
	case wasm.OpcodeI64Rotr:
		return bits.RotateLeft64(v1, -int(v2%64))

	// f32 arithmetic.
	case wasm.OpcodeF32Add:
		return fromF32(asF32(v1) + asF32(v2))
	case wasm.OpcodeF32Sub:
		return fromF32(asF32(v1) - asF32(v2))
	case wasm.OpcodeF32Mul:
		return fromF32(asF32(v1) * asF32(v2))
	case wasm.OpcodeF32Div:
		return fromF32(asF32(v1) / asF32(v2))
	case wasm.OpcodeF32Min:
		return fromF32(float32(moremath.WasmCompatMin(float64(asF32(v1)), float64(asF32(v2)))))
	case wasm.OpcodeF32Max:
		return fromF32(float32(moremath.WasmCompatMax(float64(asF32(v1)), float64(asF32(v2)))))
	case wasm.OpcodeF32Copysign:
		return v1&^f32SignMask | v2&f32SignMask

	// f64 arithmetic.
	case wasm.OpcodeF64Add:
		return math.Float64bits(asF64(v1) + asF64(v2))
	case wasm.OpcodeF64Sub:
		return math.Float64bits(asF64(v1) - asF64(v2))
	case wasm.OpcodeF64Mul:
		return math.Float64bits(asF64(v1) * asF64(v2))
	case wasm.OpcodeF64Div:
		return math.Float64bits(asF64(v1) / asF64(v2))
	case wasm.OpcodeF64Min:
		return math.Float64bits(moremath.WasmCompatMin(asF64(v1), asF64(v2)))
	case wasm.OpcodeF64Max:
		return math.Float64bits(moremath.WasmCompatMax(asF64(v1), asF64(v2)))
	case wasm.OpcodeF64Copysign:
		return v1&^f64SignMask | v2&f64SignMask
	}
	panic("unreachable: unknown numeric opcode " + wasm.InstructionName(opcode))
}
