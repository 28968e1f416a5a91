package check

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/tabby/diag"
	"github.com/chazu/tabby/symbol"
	"github.com/chazu/tabby/types"
)

type fixture struct {
	syms *symbol.Table
	out  *bytes.Buffer
	root *Context
}

func newFixture(returnType types.Type, opts ...Option) *fixture {
	out := &bytes.Buffer{}
	sink := diag.NewReporter(out).File("Test.kit", []byte("x := 1\ny := x\n"))
	return &fixture{
		syms: symbol.NewTable(),
		out:  out,
		root: NewContext(returnType, sink, opts...),
	}
}

func TestContext_SlotsAreDenseInBindingOrder(t *testing.T) {
	f := newFixture(types.Void)
	c := f.root
	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		c = c.Bind(f.syms.Intern(n), types.Int)
	}

	for i, n := range names {
		assert.Equal(t, i, c.SlotOf(f.syms.Intern(n)), "slot of %s", n)
	}
	assert.Equal(t, len(names), c.NextSlot())
}

func TestContext_ShadowingTakesFreshSlot(t *testing.T) {
	f := newFixture(types.Void)
	x := f.syms.Intern("x")

	first := f.root.Bind(x, types.Int)
	second := first.Bind(x, types.Float)

	tp, ok := second.TypeOf(x)
	require.True(t, ok)
	assert.Equal(t, types.Type(types.Float), tp)
	assert.Greater(t, second.SlotOf(x), first.SlotOf(x))

	tp, _ = first.TypeOf(x)
	assert.Equal(t, types.Type(types.Int), tp, "earlier context keeps the old binding")
	assert.Equal(t, 0, first.SlotOf(x))
}

func TestContext_SiblingScopes(t *testing.T) {
	f := newFixture(types.Int)
	parent := f.root.Bind(f.syms.Intern("n"), types.Int)

	thenScope := parent.Bind(f.syms.Intern("a"), types.Bool)
	elseScope := parent.Bind(f.syms.Intern("b"), types.Float)

	assert.Equal(t, Unbound, elseScope.SlotOf(f.syms.Intern("a")))
	assert.Equal(t, Unbound, thenScope.SlotOf(f.syms.Intern("b")))
	assert.Equal(t, Unbound, parent.SlotOf(f.syms.Intern("a")))
	assert.Equal(t, 1, thenScope.SlotOf(f.syms.Intern("a")))
	assert.Equal(t, 1, elseScope.SlotOf(f.syms.Intern("b")))
}

func TestContext_AbsentIsDistinctFromNilType(t *testing.T) {
	f := newFixture(types.Void)
	p := f.syms.Intern("p")
	c := f.root.Bind(p, types.Nil)

	tp, ok := c.TypeOf(p)
	assert.True(t, ok)
	assert.Equal(t, types.Type(types.Nil), tp)

	tp, ok = c.TypeOf(f.syms.Intern("q"))
	assert.False(t, ok)
	assert.Nil(t, tp)
	assert.Equal(t, Unbound, c.SlotOf(f.syms.Intern("q")))
}

func TestContext_ReturnTypeAndOptionsAreInherited(t *testing.T) {
	f := newFixture(types.Bool, WithAssertions())
	c := f.root.BindAs(Receiver, f.syms.Intern("this"), types.NewClass("Main", nil))
	c = c.BindAs(Parameter, f.syms.Intern("arg"), types.Int)

	assert.Equal(t, types.Type(types.Bool), c.ReturnType())
	assert.True(t, c.AllowsAssertions())
	assert.False(t, NewContext(types.Void, nil).AllowsAssertions())

	b, ok := c.Lookup(f.syms.Intern("arg"))
	require.True(t, ok)
	assert.Equal(t, Parameter, b.Kind)
	assert.Equal(t, 1, b.Slot)
	assert.Equal(t, 2, c.Env().Len())
}

func TestContext_ReportIsSharedAndNonFatal(t *testing.T) {
	f := newFixture(types.Void)
	child := f.root.Bind(f.syms.Intern("x"), types.Int)

	assert.False(t, f.root.HasErrors())
	child.Report(12, "x is not a boolean")
	assert.True(t, f.root.HasErrors(), "error flag is run-wide")

	child.Reportf(-1, "missing return of type %s", types.Int)
	assert.Equal(t,
		"Test.kit::2.6: x is not a boolean\nTest.kit::: missing return of type int\n",
		f.out.String())
}
