package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable_Init(t *testing.T) {
	table := NewTable(3, nil)
	typeIDs := []uint32{0, 1, 0}

	require.NoError(t, table.Init(1, []uint32{2, 1}, typeIDs))
	require.Equal(t, []TableElement{
		{},
		{FunctionIndex: 2, TypeID: 0, Initialized: true},
		{FunctionIndex: 1, TypeID: 1, Initialized: true},
	}, table.Elements)

	err := table.Init(2, []uint32{0, 0}, typeIDs)
	require.EqualError(t, err, "2 elements at offset 2 exceed table size 3")
}

func TestTable_Lookup(t *testing.T) {
	table := NewTable(2, nil)
	require.NoError(t, table.Init(0, []uint32{0}, []uint32{5}))

	require.Equal(t, TableElement{FunctionIndex: 0, TypeID: 5, Initialized: true}, table.Lookup(0))
	require.PanicsWithValue(t, ErrRuntimeUninitializedElement, func() { table.Lookup(1) })
	require.PanicsWithValue(t, ErrRuntimeInvalidTableAccess, func() { table.Lookup(2) })
}
