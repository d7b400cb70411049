//go:build !wasmjit_debug

package buildoptions

// IsDebugMode prints the stack of recovered traps when built with -tags wasmjit_debug.
const IsDebugMode = false
