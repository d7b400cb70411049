package wasmjit

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dfinity-lab/wasmjit/wasm"
	"github.com/dfinity-lab/wasmjit/wasm/buildoptions"
)

func TestCompileConfig(t *testing.T) {
	logger := zap.NewExample()
	names := &wasm.NameSection{}

	tests := []struct {
		name     string
		with     func(*CompileConfig) *CompileConfig
		expected *CompileConfig
	}{
		{
			name: "WithContext",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithContext(testCtx)
			},
			expected: &CompileConfig{ctx: testCtx},
		},
		{
			name: "WithContext nil",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithContext(nil) //nolint:staticcheck
			},
			expected: &CompileConfig{ctx: context.Background()},
		},
		{
			name: "WithMemoryMaxPages",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithMemoryMaxPages(10)
			},
			expected: &CompileConfig{memoryMaxPages: 10},
		},
		{
			name: "WithMemoryMaxPages over the addressable limit",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithMemoryMaxPages(math.MaxUint32)
			},
			expected: &CompileConfig{memoryMaxPages: wasm.MemoryMaxPages},
		},
		{
			name: "WithLogger",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithLogger(logger)
			},
			expected: &CompileConfig{logger: logger},
		},
		{
			name: "WithNameResolver",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithNameResolver(names)
			},
			expected: &CompileConfig{names: names},
		},
		{
			name: "WithCallStackCeiling",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithCallStackCeiling(5)
			},
			expected: &CompileConfig{callStackCeiling: 5},
		},
		{
			name: "WithCallStackCeiling zero",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithCallStackCeiling(0)
			},
			expected: &CompileConfig{callStackCeiling: buildoptions.CallStackCeiling},
		},
		{
			name: "WithEnsureTermination",
			with: func(c *CompileConfig) *CompileConfig {
				return c.WithEnsureTermination(true)
			},
			expected: &CompileConfig{ensureTermination: true},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			input := &CompileConfig{}
			rc := tc.with(input)
			require.Equal(t, tc.expected, rc)
			// The source wasn't modified
			require.Equal(t, &CompileConfig{}, input)
		})
	}
}

func TestNewCompileConfig(t *testing.T) {
	c := NewCompileConfig()
	require.Equal(t, context.Background(), c.ctx)
	require.Equal(t, wasm.MemoryMaxPages, c.memoryMaxPages)
	require.Equal(t, buildoptions.CallStackCeiling, c.callStackCeiling)
	require.NotNil(t, c.logger)
	require.Nil(t, c.names)
	require.False(t, c.ensureTermination)

	// NewCompileConfig returns a copy of the defaults.
	require.NotSame(t, defaultCompileConfig, c)
	c.WithLogger(nil).memoryMaxPages = 1
	require.Equal(t, wasm.MemoryMaxPages, NewCompileConfig().memoryMaxPages)
}
