package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/tabby/types"
)

// ---------------------------------------------------------------------------
// Instruction: stack-machine instructions held by blocks
// ---------------------------------------------------------------------------

// Instruction is one stack-machine instruction. The set of implementations
// is closed; consumers switch over the concrete pointer types.
type Instruction interface {
	String() string
	instruction()
}

// Nop does nothing. A block holding a single Nop is a placeholder.
type Nop struct{}

// Const pushes a constant. Value is an int64, float64, bool, string or nil,
// matching Type.
type Const struct {
	Type  types.Type
	Value any
}

// Load pushes local Slot.
type Load struct {
	Slot int
	Type types.Type
}

// Store pops into local Slot.
type Store struct {
	Slot int
	Type types.Type
}

// ArithOp names a binary arithmetic operation.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Rem
)

var arithNames = [...]string{Add: "add", Sub: "sub", Mul: "mul", Div: "div", Rem: "rem"}

func (op ArithOp) String() string { return arithNames[op] }

// Arith pops two operands of Type and pushes the result.
type Arith struct {
	Op   ArithOp
	Type types.Type
}

// Neg negates the numeric top of stack.
type Neg struct {
	Type types.Type
}

// Not negates the boolean top of stack.
type Not struct{}

// Compare pops two operands of Type and pushes the boolean outcome of Cond.
// Only the binary conditions are meaningful here.
type Compare struct {
	Cond Cond
	Type types.Type
}

// Dup duplicates the top of stack.
type Dup struct {
	Type types.Type
}

// Pop discards the top of stack.
type Pop struct {
	Type types.Type
}

// New pushes a fresh, uninitialized instance of Class.
type New struct {
	Class *types.Class
}

// NewArray pops a length and pushes a new array of Elem.
type NewArray struct {
	Elem types.Type
}

// ArrayLoad pops an index and an array and pushes the element.
type ArrayLoad struct {
	Elem types.Type
}

// ArrayStore pops a value, an index and an array and stores the value.
type ArrayStore struct {
	Elem types.Type
}

// GetField pops a receiver and pushes the value of Field.
type GetField struct {
	Field *types.FieldSignature
}

// PutField pops a value and a receiver and stores the value into Field.
type PutField struct {
	Field *types.FieldSignature
}

// Return ends the method, returning a value of Type (Void for none).
type Return struct {
	Type types.Type
}

func (*Nop) instruction() {}
func (*Const) instruction() {}
func (*Load) instruction() {}
func (*Store) instruction() {}
func (*Arith) instruction() {}
func (*Neg) instruction() {}
func (*Not) instruction() {}
func (*Compare) instruction() {}
func (*Dup) instruction() {}
func (*Pop) instruction() {}
func (*New) instruction() {}
func (*NewArray) instruction() {}
func (*ArrayLoad) instruction() {}
func (*ArrayStore) instruction() {}
func (*GetField) instruction() {}
func (*PutField) instruction() {}
func (*Return) instruction() {}
func (*If) instruction() {}
func (*Call) instruction() {}

// Constant constructors.

func ConstInt(v int64) *Const { return &Const{Type: types.Int, Value: v} }
func ConstFloat(v float64) *Const { return &Const{Type: types.Float, Value: v} }
func ConstBool(v bool) *Const { return &Const{Type: types.Bool, Value: v} }
func ConstString(v string) *Const { return &Const{Type: types.String, Value: v} }
func ConstNil() *Const { return &Const{Type: types.Nil} }

func (*Nop) String() string { return "nop" }

func (i *Const) String() string {
	switch v := i.Value.(type) {
	case nil:
		return "const nil"
	case string:
		return "const " + strconv.Quote(v)
	default:
		return fmt.Sprintf("const %v", v)
	}
}

func (i *Load) String() string { return fmt.Sprintf("load %d of type %s", i.Slot, i.Type) }
func (i *Store) String() string { return fmt.Sprintf("store %d of type %s", i.Slot, i.Type) }
func (i *Arith) String() string { return fmt.Sprintf("%s %s", i.Op, i.Type) }
func (i *Neg) String() string { return "neg " + i.Type.String() }
func (*Not) String() string { return "not" }
func (i *Compare) String() string {
	return fmt.Sprintf("cmp%s %s", i.Cond, i.Type)
}
func (i *Dup) String() string { return "dup " + i.Type.String() }
func (i *Pop) String() string { return "pop " + i.Type.String() }
func (i *New) String() string { return "new " + i.Class.Name }
func (i *NewArray) String() string { return "newarray " + i.Elem.String() }
func (i *ArrayLoad) String() string { return "arrayload " + i.Elem.String() }
func (i *ArrayStore) String() string { return "arraystore " + i.Elem.String() }
func (i *GetField) String() string { return "getfield " + i.Field.String() }
func (i *PutField) String() string { return "putfield " + i.Field.String() }

func (i *Return) String() string {
	if i.Type == nil || types.Equal(i.Type, types.Void) {
		return "return"
	}
	return "return " + i.Type.String()
}

// ---------------------------------------------------------------------------
// If: branching conditions
// ---------------------------------------------------------------------------

// Cond is the condition tested by a branch or a comparison.
type Cond uint8

const (
	// CondTrue and CondFalse pop one boolean.
	CondTrue Cond = iota
	CondFalse
	// The remaining conditions pop two operands.
	CondEQ
	CondNE
	CondLT
	CondGE
	CondGT
	CondLE
)

var condNames = [...]string{
	CondTrue:  "true",
	CondFalse: "false",
	CondEQ:    "eq",
	CondNE:    "ne",
	CondLT:    "lt",
	CondGE:    "ge",
	CondGT:    "gt",
	CondLE:    "le",
}

func (c Cond) String() string { return condNames[c] }

// Negate returns the condition holding exactly when c does not.
// Conditions are laid out in complementary pairs.
func (c Cond) Negate() Cond { return c ^ 1 }

// Unary reports whether c tests a single boolean.
func (c Cond) Unary() bool { return c == CondTrue || c == CondFalse }

// If is the condition guarding one outgoing edge of a branch. It pops its
// operands and continues only if Cond holds.
type If struct {
	Cond Cond
	Type types.Type // operand type of binary conditions, nil for unary ones
}

// IfTrue tests a boolean on the stack.
func IfTrue() *If { return &If{Cond: CondTrue} }

// IfCompare compares two operands of type t.
func IfCompare(c Cond, t types.Type) *If { return &If{Cond: c, Type: t} }

// Negate returns a new condition testing the opposite outcome.
func (i *If) Negate() *If { return &If{Cond: i.Cond.Negate(), Type: i.Type} }

func (i *If) String() string {
	if i.Cond.Unary() {
		return "if_" + i.Cond.String()
	}
	return fmt.Sprintf("if_cmp%s %s", i.Cond, i.Type)
}

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

// Call invokes Static. Before cleanup the set of targets the call may
// dispatch to at run time must be supplied with Resolve.
type Call struct {
	Static   types.CodeSignature
	targets  []types.CodeSignature
	resolved bool
}

// NewCall creates a call whose dynamic targets are still unknown.
func NewCall(static types.CodeSignature) *Call {
	return &Call{Static: static}
}

// NewConstructorCall creates an already resolved call to a constructor.
// Constructors are never dispatched dynamically.
func NewConstructorCall(k *types.ConstructorSignature) *Call {
	return NewCall(k).Resolve(k)
}

// Resolve records the dynamic targets of c and returns c. An empty list is
// a valid resolution.
func (c *Call) Resolve(targets ...types.CodeSignature) *Call {
	c.targets = append(c.targets[:0:0], targets...)
	c.resolved = true
	return c
}

// Resolved reports whether Resolve was called.
func (c *Call) Resolved() bool { return c.resolved }

// Targets returns the dynamic targets recorded by Resolve.
func (c *Call) Targets() []types.CodeSignature { return c.targets }

func (c *Call) String() string {
	var sb strings.Builder
	sb.WriteString("call ")
	sb.WriteString(c.Static.String())
	if !c.resolved {
		sb.WriteString(" [?]")
		return sb.String()
	}
	sb.WriteString(" [")
	for i, t := range c.targets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.String())
	}
	sb.WriteString("]")
	return sb.String()
}
