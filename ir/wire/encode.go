package wire

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/tabby/ir"
	"github.com/chazu/tabby/types"
)

func logger() commonlog.Logger { return commonlog.GetLogger("tabby.wire") }

// EncodeCode serializes an unlinked program: every body in code, entry
// first and the rest ordered by signature.
func EncodeCode(entry types.CodeSignature, code ir.Code, runID uuid.UUID) ([]byte, error) {
	img, err := newEncoder(runID).image(entry, code, bodyOrder(entry, code))
	if err != nil {
		return nil, err
	}
	return MarshalImage(img)
}

// EncodeProgram serializes a linked program: only the bodies of reachable
// members, in reachable order, plus the reachable set itself.
func EncodeProgram(p *ir.Program, runID uuid.UUID) ([]byte, error) {
	var order []types.CodeSignature
	for _, sig := range p.Reachable().CodeSignatures() {
		if _, ok := p.CodeOf(sig); ok {
			order = append(order, sig)
		}
	}
	e := newEncoder(runID)
	img, err := e.image(p.Entry(), p.Code(), order)
	if err != nil {
		return nil, err
	}
	img.Linked = true
	for _, sig := range p.Reachable().Signatures() {
		img.Reachable = append(img.Reachable, e.member(sig))
	}
	return MarshalImage(img)
}

func bodyOrder(entry types.CodeSignature, code ir.Code) []types.CodeSignature {
	order := make([]types.CodeSignature, 0, len(code))
	for sig := range code {
		if sig != entry {
			order = append(order, sig)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })
	if _, ok := code[entry]; ok {
		order = append([]types.CodeSignature{entry}, order...)
	}
	return order
}

type encoder struct {
	img     *Image
	classes map[*types.Class]int
	members map[types.Signature]int
	blocks  map[*ir.Block]int
}

func newEncoder(runID uuid.UUID) *encoder {
	return &encoder{
		img:     &Image{Version: Version, RunID: runID.String()},
		classes: make(map[*types.Class]int),
		members: make(map[types.Signature]int),
		blocks:  make(map[*ir.Block]int),
	}
}

func (e *encoder) image(entry types.CodeSignature, code ir.Code, order []types.CodeSignature) (*Image, error) {
	e.img.Entry = e.member(entry)
	for _, sig := range order {
		root := code[sig]
		if root == nil {
			return nil, fmt.Errorf("wire: %s has no root block", sig)
		}
		pos, err := e.graph(root)
		if err != nil {
			return nil, fmt.Errorf("wire: %s: %w", sig, err)
		}
		e.img.Bodies = append(e.img.Bodies, Body{Member: e.member(sig), Root: pos})
	}
	logger().Debugf("encoded %d bodies, %d blocks, %d members",
		len(e.img.Bodies), len(e.img.Blocks), len(e.img.Members))
	return e.img, nil
}

// graph assigns positions to every block reachable from root and returns
// the position of root.
func (e *encoder) graph(root *ir.Block) (int, error) {
	if pos, ok := e.blocks[root]; ok {
		return pos, nil
	}
	listed := ir.Walk(root)
	for _, blk := range listed {
		if _, ok := e.blocks[blk]; !ok {
			e.blocks[blk] = len(e.img.Blocks)
			e.img.Blocks = append(e.img.Blocks, Block{})
		}
	}
	for _, blk := range listed {
		enc := &e.img.Blocks[e.blocks[blk]]
		if enc.Succs != nil {
			continue // listed by an earlier body
		}
		enc.Fixed = !blk.Mergeable()
		enc.Succs = make([]int, 0, len(blk.Successors()))
		for _, s := range blk.Successors() {
			if s == nil {
				return 0, fmt.Errorf("block %d has a nil successor", blk.ID())
			}
			enc.Succs = append(enc.Succs, e.blocks[s])
		}
		for _, instr := range blk.Code() {
			enc.Code = append(enc.Code, e.instr(instr))
		}
	}
	return e.blocks[root], nil
}

func (e *encoder) class(c *types.Class) int {
	if i, ok := e.classes[c]; ok {
		return i
	}
	i := len(e.img.Classes)
	e.classes[c] = i
	e.img.Classes = append(e.img.Classes, Class{Name: c.Name})
	if c.Super != nil {
		e.img.Classes[i].Super = e.class(c.Super) + 1
	}
	return i
}

func (e *encoder) member(sig types.Signature) int {
	if i, ok := e.members[sig]; ok {
		return i
	}
	var m Member
	switch s := sig.(type) {
	case *types.FieldSignature:
		m = Member{Kind: MemberField, Class: e.class(s.Class), Name: s.Name, Type: e.typ(s.Type)}
	case *types.MethodSignature:
		m = Member{Kind: MemberMethod, Class: e.class(s.Class), Name: s.Name, Type: e.typ(s.Result), Params: e.types(s.Params)}
	case *types.ConstructorSignature:
		m = Member{Kind: MemberConstructor, Class: e.class(s.Class), Params: e.types(s.Params)}
	default:
		panic(fmt.Sprintf("wire: unknown signature %T", sig))
	}
	i := len(e.img.Members)
	e.members[sig] = i
	e.img.Members = append(e.img.Members, m)
	return i
}

// typ writes a type: primitive names as printed, "@n" for the class at
// 0-based index n, and "[" followed by the element type for arrays.
func (e *encoder) typ(t types.Type) string {
	switch t := t.(type) {
	case nil:
		return ""
	case types.Primitive:
		return t.String()
	case *types.Class:
		return "@" + strconv.Itoa(e.class(t))
	case *types.Array:
		return "[" + e.typ(t.Elem)
	}
	panic(fmt.Sprintf("wire: unknown type %T", t))
}

func (e *encoder) types(ts []types.Type) []string {
	if len(ts) == 0 {
		return nil
	}
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = e.typ(t)
	}
	return out
}

func (e *encoder) instr(instr ir.Instruction) Instr {
	switch i := instr.(type) {
	case *ir.Nop:
		return Instr{Op: OpNop}
	case *ir.Const:
		enc := Instr{Op: OpConst, Type: e.typ(i.Type)}
		switch v := i.Value.(type) {
		case int64:
			enc.Int = v
		case float64:
			enc.Float = v
		case bool:
			enc.Bool = v
		case string:
			enc.Str = v
		}
		return enc
	case *ir.Load:
		return Instr{Op: OpLoad, Slot: i.Slot, Type: e.typ(i.Type)}
	case *ir.Store:
		return Instr{Op: OpStore, Slot: i.Slot, Type: e.typ(i.Type)}
	case *ir.Arith:
		return Instr{Op: OpArith, Sub: uint8(i.Op), Type: e.typ(i.Type)}
	case *ir.Neg:
		return Instr{Op: OpNeg, Type: e.typ(i.Type)}
	case *ir.Not:
		return Instr{Op: OpNot}
	case *ir.Compare:
		return Instr{Op: OpCompare, Sub: uint8(i.Cond), Type: e.typ(i.Type)}
	case *ir.Dup:
		return Instr{Op: OpDup, Type: e.typ(i.Type)}
	case *ir.Pop:
		return Instr{Op: OpPop, Type: e.typ(i.Type)}
	case *ir.New:
		return Instr{Op: OpNew, Type: e.typ(i.Class)}
	case *ir.NewArray:
		return Instr{Op: OpNewArray, Type: e.typ(i.Elem)}
	case *ir.ArrayLoad:
		return Instr{Op: OpArrayLoad, Type: e.typ(i.Elem)}
	case *ir.ArrayStore:
		return Instr{Op: OpArrayStore, Type: e.typ(i.Elem)}
	case *ir.GetField:
		return Instr{Op: OpGetField, Member: e.member(i.Field) + 1}
	case *ir.PutField:
		return Instr{Op: OpPutField, Member: e.member(i.Field) + 1}
	case *ir.Return:
		return Instr{Op: OpReturn, Type: e.typ(i.Type)}
	case *ir.If:
		return Instr{Op: OpIf, Sub: uint8(i.Cond), Type: e.typ(i.Type)}
	case *ir.Call:
		enc := Instr{Op: OpCall, Member: e.member(i.Static) + 1, Resolved: i.Resolved()}
		for _, t := range i.Targets() {
			enc.Targets = append(enc.Targets, e.member(t)+1)
		}
		return enc
	}
	panic(fmt.Sprintf("wire: unknown instruction %T", instr))
}
