package wire

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/chazu/tabby/ir"
	"github.com/chazu/tabby/types"
)

// ErrMalformed is wrapped by every decode error caused by the image content
// rather than its CBOR framing.
var ErrMalformed = errors.New("malformed image")

// Unit is a decoded image.
type Unit struct {
	RunID     uuid.UUID // zero when the image carries none
	Linked    bool
	Classes   []*types.Class
	Entry     types.CodeSignature
	Code      ir.Code
	Reachable []types.Signature // only for linked images
}

// Class returns the decoded class called name, or nil.
func (u *Unit) Class(name string) *types.Class {
	for _, c := range u.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Lookup finds a method or constructor with a body by its printed
// signature, for example "Main.main():void".
func (u *Unit) Lookup(sig string) (types.CodeSignature, bool) {
	for cs := range u.Code {
		if cs.String() == sig {
			return cs, true
		}
	}
	return nil, false
}

// Find resolves an entry name against the bodies of u. name is either a
// full signature or Class.member; the short form must match exactly one
// method or constructor ("<init>" names constructors).
func (u *Unit) Find(name string) (types.CodeSignature, error) {
	if sig, ok := u.Lookup(name); ok {
		return sig, nil
	}
	var found []types.CodeSignature
	for cs := range u.Code {
		if shortName(cs) == name {
			found = append(found, cs)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("wire: no body for %s", name)
	case 1:
		return found[0], nil
	}
	sigs := make([]string, len(found))
	for i, cs := range found {
		sigs[i] = cs.String()
	}
	sort.Strings(sigs)
	return nil, fmt.Errorf("wire: %s is ambiguous: %s", name, strings.Join(sigs, ", "))
}

func shortName(cs types.CodeSignature) string {
	switch s := cs.(type) {
	case *types.MethodSignature:
		return s.Class.Name + "." + s.Name
	case *types.ConstructorSignature:
		return s.Class.Name + ".<init>"
	}
	return cs.String()
}

// Decode reads an image, creating its blocks with blocks.
func Decode(data []byte, blocks *ir.Builder) (*Unit, error) {
	img, err := UnmarshalImage(data)
	if err != nil {
		return nil, err
	}
	if img.Version != Version {
		return nil, malformed("unsupported version %d", img.Version)
	}
	d := &decoder{img: img, blocks: blocks}
	u, err := d.unit()
	if err != nil {
		return nil, err
	}
	logger().Debugf("decoded %d classes, %d bodies, %d blocks", len(u.Classes), len(u.Code), len(d.built))
	return u, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("wire: %w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

type decoder struct {
	img     *Image
	blocks  *ir.Builder
	classes []*types.Class
	members []types.Signature
	built   []*ir.Block
}

func (d *decoder) unit() (*Unit, error) {
	u := &Unit{Linked: d.img.Linked, Code: make(ir.Code)}
	if d.img.RunID != "" {
		id, err := uuid.Parse(d.img.RunID)
		if err != nil {
			return nil, malformed("run id: %v", err)
		}
		u.RunID = id
	}
	if err := d.decodeClasses(); err != nil {
		return nil, err
	}
	if err := d.decodeMembers(); err != nil {
		return nil, err
	}
	if err := d.decodeBlocks(); err != nil {
		return nil, err
	}
	u.Classes = d.classes

	entry, err := d.codeMember(d.img.Entry)
	if err != nil {
		return nil, fmt.Errorf("%w (entry)", err)
	}
	u.Entry = entry

	for i, body := range d.img.Bodies {
		sig, err := d.codeMember(body.Member)
		if err != nil {
			return nil, fmt.Errorf("%w (body %d)", err, i)
		}
		if body.Root < 0 || body.Root >= len(d.built) {
			return nil, malformed("body %d: root %d out of range", i, body.Root)
		}
		if _, dup := u.Code[sig]; dup {
			return nil, malformed("body %d: %s has two bodies", i, sig)
		}
		u.Code[sig] = d.built[body.Root]
	}

	for _, idx := range d.img.Reachable {
		if idx < 0 || idx >= len(d.members) {
			return nil, malformed("reachable member %d out of range", idx)
		}
		u.Reachable = append(u.Reachable, d.members[idx])
	}
	return u, nil
}

func (d *decoder) decodeClasses() error {
	d.classes = make([]*types.Class, len(d.img.Classes))
	for i, c := range d.img.Classes {
		if c.Name == "" {
			return malformed("class %d has no name", i)
		}
		d.classes[i] = types.NewClass(c.Name, nil)
	}
	for i, c := range d.img.Classes {
		if c.Super == 0 {
			continue
		}
		if c.Super < 0 || c.Super > len(d.classes) {
			return malformed("class %s: super %d out of range", c.Name, c.Super)
		}
		super := d.classes[c.Super-1]
		if super.IsSubclassOf(d.classes[i]) {
			return malformed("class %s: inheritance cycle", c.Name)
		}
		d.classes[i].Super = super
	}
	return nil
}

func (d *decoder) decodeMembers() error {
	d.members = make([]types.Signature, len(d.img.Members))
	for i, m := range d.img.Members {
		if m.Class < 0 || m.Class >= len(d.classes) {
			return malformed("member %d: class %d out of range", i, m.Class)
		}
		class := d.classes[m.Class]
		params, err := d.typeList(m.Params)
		if err != nil {
			return fmt.Errorf("%w (member %d)", err, i)
		}
		switch m.Kind {
		case MemberField:
			t, err := d.typ(m.Type)
			if err != nil || t == nil {
				return malformed("member %d: bad field type %q", i, m.Type)
			}
			d.members[i] = class.AddField(m.Name, t)
		case MemberMethod:
			t, err := d.typ(m.Type)
			if err != nil || t == nil {
				return malformed("member %d: bad result type %q", i, m.Type)
			}
			d.members[i] = class.AddMethod(m.Name, t, params...)
		case MemberConstructor:
			d.members[i] = class.AddConstructor(params...)
		default:
			return malformed("member %d: unknown kind %d", i, m.Kind)
		}
	}
	return nil
}

// decodeBlocks creates every block before linking any, so successors may
// refer forwards and backwards.
func (d *decoder) decodeBlocks() error {
	d.built = make([]*ir.Block, len(d.img.Blocks))
	for i, b := range d.img.Blocks {
		if len(b.Code) == 0 {
			return malformed("block %d has no instructions", i)
		}
		code := make([]ir.Instruction, len(b.Code))
		for j, enc := range b.Code {
			instr, err := d.instr(enc)
			if err != nil {
				return fmt.Errorf("%w (block %d, instruction %d)", err, i, j)
			}
			code[j] = instr
		}
		d.built[i] = d.blocks.Plain(code)
		if b.Fixed {
			d.built[i].DoNotMerge()
		}
	}
	for i, b := range d.img.Blocks {
		for _, s := range b.Succs {
			if s < 0 || s >= len(d.built) {
				return malformed("block %d: successor %d out of range", i, s)
			}
			d.built[i].LinkTo(d.built[s])
		}
	}
	return nil
}

func (d *decoder) codeMember(idx int) (types.CodeSignature, error) {
	if idx < 0 || idx >= len(d.members) {
		return nil, malformed("member %d out of range", idx)
	}
	cs, ok := d.members[idx].(types.CodeSignature)
	if !ok {
		return nil, malformed("member %d is not a method or constructor", idx)
	}
	return cs, nil
}

// ref resolves a 1-based member reference held by an instruction.
func (d *decoder) ref(idx int) (types.Signature, error) {
	if idx < 1 || idx > len(d.members) {
		return nil, malformed("member reference %d out of range", idx)
	}
	return d.members[idx-1], nil
}

func (d *decoder) field(idx int) (*types.FieldSignature, error) {
	sig, err := d.ref(idx)
	if err != nil {
		return nil, err
	}
	f, ok := sig.(*types.FieldSignature)
	if !ok {
		return nil, malformed("member reference %d is not a field", idx)
	}
	return f, nil
}

func (d *decoder) callee(idx int) (types.CodeSignature, error) {
	sig, err := d.ref(idx)
	if err != nil {
		return nil, err
	}
	cs, ok := sig.(types.CodeSignature)
	if !ok {
		return nil, malformed("member reference %d is not callable", idx)
	}
	return cs, nil
}

var primitives = map[string]types.Primitive{
	types.Void.String():   types.Void,
	types.Int.String():    types.Int,
	types.Float.String():  types.Float,
	types.Bool.String():   types.Bool,
	types.String.String(): types.String,
	types.Nil.String():    types.Nil,
}

// typ parses the notation written by the encoder. The empty string is the
// absent type.
func (d *decoder) typ(s string) (types.Type, error) {
	switch {
	case s == "":
		return nil, nil
	case strings.HasPrefix(s, "["):
		elem, err := d.typ(s[1:])
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, malformed("array type %q has no element", s)
		}
		return types.ArrayOf(elem), nil
	case strings.HasPrefix(s, "@"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 || n >= len(d.classes) {
			return nil, malformed("bad class reference %q", s)
		}
		return d.classes[n], nil
	}
	if p, ok := primitives[s]; ok {
		return p, nil
	}
	return nil, malformed("unknown type %q", s)
}

func (d *decoder) typeList(ss []string) ([]types.Type, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]types.Type, len(ss))
	for i, s := range ss {
		t, err := d.typ(s)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, malformed("parameter %d has no type", i)
		}
		out[i] = t
	}
	return out, nil
}

func (d *decoder) class(s string) (*types.Class, error) {
	t, err := d.typ(s)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*types.Class)
	if !ok {
		return nil, malformed("%q is not a class", s)
	}
	return c, nil
}

func (d *decoder) instr(enc Instr) (ir.Instruction, error) {
	t, err := d.typ(enc.Type)
	if err != nil {
		return nil, err
	}
	switch enc.Op {
	case OpNop:
		return &ir.Nop{}, nil
	case OpConst:
		return d.constant(enc, t)
	case OpLoad:
		return &ir.Load{Slot: enc.Slot, Type: t}, nil
	case OpStore:
		return &ir.Store{Slot: enc.Slot, Type: t}, nil
	case OpArith:
		if enc.Sub > uint8(ir.Rem) {
			return nil, malformed("unknown arithmetic op %d", enc.Sub)
		}
		return &ir.Arith{Op: ir.ArithOp(enc.Sub), Type: t}, nil
	case OpNeg:
		return &ir.Neg{Type: t}, nil
	case OpNot:
		return &ir.Not{}, nil
	case OpCompare:
		if enc.Sub > uint8(ir.CondLE) {
			return nil, malformed("unknown condition %d", enc.Sub)
		}
		return &ir.Compare{Cond: ir.Cond(enc.Sub), Type: t}, nil
	case OpDup:
		return &ir.Dup{Type: t}, nil
	case OpPop:
		return &ir.Pop{Type: t}, nil
	case OpNew:
		c, err := d.class(enc.Type)
		if err != nil {
			return nil, err
		}
		return &ir.New{Class: c}, nil
	case OpNewArray:
		return &ir.NewArray{Elem: t}, nil
	case OpArrayLoad:
		return &ir.ArrayLoad{Elem: t}, nil
	case OpArrayStore:
		return &ir.ArrayStore{Elem: t}, nil
	case OpGetField:
		f, err := d.field(enc.Member)
		if err != nil {
			return nil, err
		}
		return &ir.GetField{Field: f}, nil
	case OpPutField:
		f, err := d.field(enc.Member)
		if err != nil {
			return nil, err
		}
		return &ir.PutField{Field: f}, nil
	case OpReturn:
		return &ir.Return{Type: t}, nil
	case OpIf:
		if enc.Sub > uint8(ir.CondLE) {
			return nil, malformed("unknown condition %d", enc.Sub)
		}
		return &ir.If{Cond: ir.Cond(enc.Sub), Type: t}, nil
	case OpCall:
		static, err := d.callee(enc.Member)
		if err != nil {
			return nil, err
		}
		call := ir.NewCall(static)
		if !enc.Resolved {
			if len(enc.Targets) > 0 {
				return nil, malformed("unresolved call to %s lists targets", static)
			}
			return call, nil
		}
		targets := make([]types.CodeSignature, len(enc.Targets))
		for i, idx := range enc.Targets {
			if targets[i], err = d.callee(idx); err != nil {
				return nil, err
			}
		}
		return call.Resolve(targets...), nil
	}
	return nil, malformed("unknown opcode %d", enc.Op)
}

func (d *decoder) constant(enc Instr, t types.Type) (*ir.Const, error) {
	switch t {
	case types.Int:
		return ir.ConstInt(enc.Int), nil
	case types.Float:
		return ir.ConstFloat(enc.Float), nil
	case types.Bool:
		return ir.ConstBool(enc.Bool), nil
	case types.String:
		return ir.ConstString(enc.Str), nil
	case types.Nil:
		return ir.ConstNil(), nil
	}
	return nil, malformed("constant of type %q", enc.Type)
}
