// Package moremath holds the floating point operators whose Go counterparts disagree with WebAssembly on NaN,
// signed zero or rounding.
package moremath

import "math"

// WasmCompatMin is math.Min except that a NaN operand wins even over -Inf.
// See https://www.w3.org/TR/wasm-core-1/#op-fmin
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax is math.Max except that a NaN operand wins even over +Inf.
// See https://www.w3.org/TR/wasm-core-1/#op-fmax
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 rounds half to even, unlike math.Round.
func WasmCompatNearestF32(f float32) float32 {
	return float32(math.RoundToEven(float64(f)))
}

// WasmCompatNearestF64 rounds half to even, unlike math.Round.
func WasmCompatNearestF64(f float64) float64 {
	return math.RoundToEven(f)
}
