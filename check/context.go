// Package check holds the immutable context threaded through type checking
// of a method or constructor body.
package check

import (
	"fmt"

	"github.com/chazu/tabby/diag"
	"github.com/chazu/tabby/env"
	"github.com/chazu/tabby/symbol"
	"github.com/chazu/tabby/types"
)

// Unbound is the slot reported for names with no binding.
const Unbound = -1

// ---------------------------------------------------------------------------
// Binding
// ---------------------------------------------------------------------------

// Kind says how a local slot came into existence.
type Kind uint8

const (
	Local Kind = iota
	Parameter
	Receiver // the implicit "this"
)

var kindNames = [...]string{
	Local:     "local",
	Parameter: "parameter",
	Receiver:  "receiver",
}

func (k Kind) String() string { return kindNames[k] }

// Binding is the declared type and slot of a local variable.
type Binding struct {
	Kind Kind
	Type types.Type
	Slot int
}

// Equal reports whether two bindings are interchangeable.
func (b Binding) Equal(other Binding) bool {
	return b.Kind == other.Kind && b.Slot == other.Slot && types.Equal(b.Type, other.Type)
}

func (b Binding) String() string {
	return fmt.Sprintf("%s %s@%d", b.Kind, b.Type, b.Slot)
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// Context is an immutable type-checking state. Declaring a variable yields
// a new Context and leaves the receiver usable, so sibling scopes can be
// checked from the same parent.
type Context struct {
	returnType types.Type
	env        *env.Tree[Binding]
	next       int
	sink       *diag.Sink
	assertions bool
}

// Option configures a root context.
type Option func(*Context)

// WithAssertions allows assert statements in the checked body.
func WithAssertions() Option {
	return func(c *Context) { c.assertions = true }
}

// NewContext creates the root context for a body whose return statements
// must produce returnType. All contexts derived from it report to sink.
func NewContext(returnType types.Type, sink *diag.Sink, opts ...Option) *Context {
	c := &Context{returnType: returnType, sink: sink}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReturnType returns the expected return type. It is the same for every
// context derived from one root.
func (c *Context) ReturnType() types.Type { return c.returnType }

// AllowsAssertions reports whether assert statements are legal here.
func (c *Context) AllowsAssertions() bool { return c.assertions }

// NextSlot returns the slot the next binding will receive, which is also
// the number of local slots used so far along this lineage.
func (c *Context) NextSlot() int { return c.next }

// Env returns the persistent environment of c.
func (c *Context) Env() *env.Tree[Binding] { return c.env }

// Bind declares a local variable. The new binding always takes a fresh
// slot, even when name shadows an earlier declaration.
func (c *Context) Bind(name *symbol.Symbol, t types.Type) *Context {
	return c.BindAs(Local, name, t)
}

// BindAs declares a variable of the given kind.
func (c *Context) BindAs(kind Kind, name *symbol.Symbol, t types.Type) *Context {
	b := Binding{Kind: kind, Type: t, Slot: c.next}
	return &Context{
		returnType: c.returnType,
		env:        c.env.Update(name, b),
		next:       c.next + 1,
		sink:       c.sink,
		assertions: c.assertions,
	}
}

// Lookup returns the binding of name visible in c.
func (c *Context) Lookup(name *symbol.Symbol) (Binding, bool) {
	return c.env.Lookup(name)
}

// TypeOf returns the declared type of name. The boolean is false when name
// is not declared, which is distinct from a declaration of type Nil.
func (c *Context) TypeOf(name *symbol.Symbol) (types.Type, bool) {
	b, ok := c.env.Lookup(name)
	if !ok {
		return nil, false
	}
	return b.Type, true
}

// SlotOf returns the slot of name, or Unbound.
func (c *Context) SlotOf(name *symbol.Symbol) int {
	b, ok := c.env.Lookup(name)
	if !ok {
		return Unbound
	}
	return b.Slot
}

// Report records a diagnostic at byte offset pos. Checking continues.
func (c *Context) Report(pos int, message string) {
	c.sink.Report(pos, message)
}

// Reportf is Report with a formatted message.
func (c *Context) Reportf(pos int, format string, args ...any) {
	c.sink.Reportf(pos, format, args...)
}

// HasErrors reports whether any diagnostic was issued during this run,
// by any context.
func (c *Context) HasErrors() bool {
	return c.sink.Reporter().HasErrors()
}
