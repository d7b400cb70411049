// Package wasm includes the decoded module model, the runtime state of an instance (memory, globals and the table)
// and the errors shared by the decoder, the compiler and the engine.
//
// Values cross the host boundary as uint64: I32 and I64 as their bits, F32 and F64 via EncodeF32/EncodeF64.
package wasm

import "math"

// EncodeF32 converts the input so that it can be used as a function F32 parameter or result.
// See DecodeF32
func EncodeF32(input float32) uint64 {
	return uint64(math.Float32bits(input))
}

// DecodeF32 converts the function F32 parameter or result to a float32.
// See EncodeF32
func DecodeF32(input uint64) float32 {
	return math.Float32frombits(uint32(input))
}

// EncodeF64 converts the input so that it can be used as a function F64 parameter or result.
// See DecodeF64
func EncodeF64(input float64) uint64 {
	return math.Float64bits(input)
}

// DecodeF64 converts the function F64 parameter or result to a float64.
// See EncodeF64
func DecodeF64(input uint64) float64 {
	return math.Float64frombits(input)
}
