// Package buildoptions holds defaults which can be changed at build time.
package buildoptions

// CallStackCeiling is the default count of nested calls after which a call fails with
// wasm.ErrRuntimeCallStackOverflow.
const CallStackCeiling = 2000
