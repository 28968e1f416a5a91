package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_InternReturnsSameHandle(t *testing.T) {
	table := NewTable()

	x1 := table.Intern("x")
	x2 := table.Intern("x")
	y := table.Intern("y")

	assert.Same(t, x1, x2)
	assert.NotSame(t, x1, y)
	assert.Equal(t, "x", x1.Name())
	assert.Equal(t, 2, table.Len())
}

func TestTable_Lookup(t *testing.T) {
	table := NewTable()
	_, ok := table.Lookup("missing")
	assert.False(t, ok)

	s := table.Intern("present")
	got, ok := table.Lookup("present")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, table.Len(), "Lookup must not intern")
}

func TestSymbol_CompareByText(t *testing.T) {
	table := NewTable()
	// Interned out of alphabetical order so IDs and text disagree.
	b := table.Intern("b")
	a := table.Intern("a")

	assert.Less(t, a.Compare(b), 0)
	assert.Greater(t, b.Compare(a), 0)
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, uint32(0), b.ID())
}

func TestTable_AllInInterningOrder(t *testing.T) {
	table := NewTable()
	for _, n := range []string{"main", "this", "main", "count"} {
		table.Intern(n)
	}
	assert.Equal(t, []string{"main", "this", "count"}, table.All())
}

func TestTable_Reset(t *testing.T) {
	table := NewTable()
	before := table.Intern("x")
	table.Reset()

	assert.Equal(t, 0, table.Len())
	after := table.Intern("x")
	assert.NotSame(t, before, after)
	assert.Equal(t, uint32(0), after.ID())
}
