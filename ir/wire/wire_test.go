package wire

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/tabby/ir"
	"github.com/chazu/tabby/types"
)

// shape describes the graph under root independently of block ids: one line
// per block in preorder, listing its instructions and the preorder
// positions of its successors.
func shape(root *ir.Block) []string {
	listed := ir.Walk(root)
	pos := make(map[*ir.Block]int, len(listed))
	for i, blk := range listed {
		pos[blk] = i
	}
	out := make([]string, len(listed))
	for i, blk := range listed {
		var sb strings.Builder
		for j, instr := range blk.Code() {
			if j > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(instr.String())
		}
		sb.WriteString(" ->")
		for _, s := range blk.Successors() {
			fmt.Fprintf(&sb, " %d", pos[s])
		}
		if !blk.Mergeable() {
			sb.WriteString(" (fixed)")
		}
		out[i] = sb.String()
	}
	return out
}

type fixture struct {
	entry   types.CodeSignature
	code    ir.Code
	unused  types.CodeSignature
	counter *types.FieldSignature
}

// newFixture builds a small program with a loop, a field, a class hierarchy,
// a constructor call and a dynamically dispatched call.
func newFixture(b *ir.Builder) fixture {
	base := types.NewClass("Shape", nil)
	square := types.NewClass("Square", base)
	main := types.NewClass("Main", nil)

	area := base.AddMethod("area", types.Float)
	squareArea := square.AddMethod("area", types.Float)
	ctor := square.AddConstructor(types.Float)
	counter := main.AddField("counter", types.Int)
	args := main.AddField("args", types.ArrayOf(types.String))
	entry := main.AddMethod("main", types.Void, types.ArrayOf(types.String))
	unused := main.AddMethod("unused", types.Void)

	pivot := b.Pivot()
	exit := b.Terminal(&ir.Return{Type: types.Void})
	body := b.Sequence(pivot,
		&ir.Load{Slot: 0, Type: main},
		&ir.Dup{Type: main},
		&ir.GetField{Field: counter},
		ir.ConstInt(1),
		&ir.Arith{Op: ir.Sub, Type: types.Int},
		&ir.PutField{Field: counter},
		&ir.New{Class: square},
		&ir.Dup{Type: square},
		ir.ConstFloat(2.5),
		ir.NewConstructorCall(ctor),
		ir.NewCall(area).Resolve(area, squareArea),
		&ir.Pop{Type: types.Float},
	)
	test := b.Sequence(b.Branch(ir.IfCompare(ir.CondGT, types.Int), body, exit),
		&ir.Load{Slot: 0, Type: main}, &ir.GetField{Field: counter}, ir.ConstInt(0))
	pivot.LinkTo(test)
	root := b.Sequence(pivot,
		&ir.Load{Slot: 0, Type: main},
		&ir.GetField{Field: args},
		ir.ConstInt(0),
		&ir.ArrayLoad{Elem: types.String},
		&ir.Pop{Type: types.String},
		ir.ConstBool(false),
		&ir.Not{},
		&ir.Pop{Type: types.Bool},
		ir.ConstString("hi"),
		&ir.Pop{Type: types.String},
		ir.ConstNil(),
		&ir.Pop{Type: types.Nil},
	)

	ret := func(t types.Type) *ir.Block { return b.Terminal(&ir.Return{Type: t}) }
	code := ir.Code{
		entry:      root,
		area:       b.Sequence(ret(types.Float), ir.ConstFloat(0)),
		squareArea: b.Sequence(ret(types.Float), ir.ConstFloat(1), &ir.Neg{Type: types.Float}),
		ctor:       ret(types.Void),
		unused:     b.Sequence(ret(types.Void), ir.ConstInt(3), &ir.NewArray{Elem: types.Int}, &ir.Pop{Type: types.ArrayOf(types.Int)}),
	}
	return fixture{entry: entry, code: code, unused: unused, counter: counter}
}

func TestEncodeCode_RoundTrip(t *testing.T) {
	f := newFixture(ir.NewBuilder())
	runID := uuid.New()

	data, err := EncodeCode(f.entry, f.code, runID)
	require.NoError(t, err)

	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)
	assert.Equal(t, runID, u.RunID)
	assert.False(t, u.Linked)
	assert.Empty(t, u.Reachable)
	assert.Equal(t, f.entry.String(), u.Entry.String())
	require.Len(t, u.Code, len(f.code))

	for sig, root := range f.code {
		got, ok := u.Lookup(sig.String())
		require.True(t, ok, sig.String())
		assert.Equal(t, shape(root), shape(u.Code[got]), sig.String())
	}

	square := u.Class("Square")
	require.NotNil(t, square)
	require.NotNil(t, square.Super)
	assert.Equal(t, "Shape", square.Super.Name)
	assert.Same(t, u.Class("Shape"), square.Super)
}

func TestEncodeCode_Deterministic(t *testing.T) {
	f := newFixture(ir.NewBuilder())
	id := uuid.New()
	first, err := EncodeCode(f.entry, f.code, id)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := EncodeCode(f.entry, f.code, id)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeCode_PreservesFixedBlocks(t *testing.T) {
	b := ir.NewBuilder()
	main := types.NewClass("Main", nil)
	entry := main.AddMethod("main", types.Void)
	pivot := b.Pivot()
	pivot.LinkTo(b.Terminal(&ir.Return{Type: types.Void}))

	data, err := EncodeCode(entry, ir.Code{entry: pivot}, uuid.Nil)
	require.NoError(t, err)
	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, u.RunID)

	root := u.Code[u.Entry]
	assert.False(t, root.Mergeable())
	assert.True(t, root.IsPlaceholder())
	assert.NotSame(t, root, root.PrefixedBy(ir.ConstInt(1)))
}

func TestDecode_LinksToTheSameMembers(t *testing.T) {
	f := newFixture(ir.NewBuilder())
	want, err := ir.NewProgram(f.entry, f.code)
	require.NoError(t, err)

	f = newFixture(ir.NewBuilder())
	data, err := EncodeCode(f.entry, f.code, uuid.New())
	require.NoError(t, err)
	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)
	got, err := ir.NewProgram(u.Entry, u.Code)
	require.NoError(t, err)

	assert.Equal(t, names(want.Reachable().Signatures()), names(got.Reachable().Signatures()))
	assert.Equal(t, want.VisitedBlocks(), got.VisitedBlocks())
}

func TestEncodeProgram_KeepsReachableOnly(t *testing.T) {
	f := newFixture(ir.NewBuilder())
	p, err := ir.NewProgram(f.entry, f.code)
	require.NoError(t, err)
	runID := uuid.New()

	data, err := EncodeProgram(p, runID)
	require.NoError(t, err)
	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)

	assert.True(t, u.Linked)
	assert.Equal(t, names(p.Reachable().Signatures()), names(u.Reachable))
	assert.Len(t, u.Code, len(f.code)-1)
	_, ok := u.Lookup(f.unused.String())
	assert.False(t, ok)
	assert.Contains(t, names(u.Reachable), f.counter.String())

	for _, sig := range p.Reachable().CodeSignatures() {
		root, _ := p.CodeOf(sig)
		got, ok := u.Lookup(sig.String())
		require.True(t, ok, sig.String())
		assert.Equal(t, shape(root), shape(u.Code[got]))
	}
}

func TestEncode_MissingRoot(t *testing.T) {
	main := types.NewClass("Main", nil)
	entry := main.AddMethod("main", types.Void)
	_, err := EncodeCode(entry, ir.Code{entry: nil}, uuid.New())
	assert.ErrorContains(t, err, "has no root block")
}

func names[S fmt.Stringer](sigs []S) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.String()
	}
	return out
}

// minimal returns a valid one-body image for corrupting in tests.
func minimal() *Image {
	return &Image{
		Version: Version,
		Classes: []Class{{Name: "Main"}},
		Members: []Member{{Kind: MemberMethod, Class: 0, Name: "main", Type: "void"}},
		Blocks:  []Block{{Code: []Instr{{Op: OpReturn, Type: "void"}}, Succs: []int{}}},
		Bodies:  []Body{{Member: 0, Root: 0}},
		Entry:   0,
	}
}

func TestDecode_Minimal(t *testing.T) {
	data, err := MarshalImage(minimal())
	require.NoError(t, err)
	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)
	assert.Equal(t, "Main.main():void", u.Entry.String())
	assert.Equal(t, []string{"return ->"}, shape(u.Code[u.Entry]))
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(*Image)
		want    string
	}{
		{"version", func(img *Image) { img.Version = 9 }, "unsupported version 9"},
		{"unknown opcode", func(img *Image) { img.Blocks[0].Code[0].Op = 99 }, "unknown opcode 99"},
		{"zero opcode", func(img *Image) { img.Blocks[0].Code[0].Op = 0 }, "unknown opcode 0"},
		{"dangling successor", func(img *Image) { img.Blocks[0].Succs = []int{3} }, "successor 3 out of range"},
		{"dangling root", func(img *Image) { img.Bodies[0].Root = 1 }, "root 1 out of range"},
		{"dangling entry", func(img *Image) { img.Entry = 4 }, "member 4 out of range"},
		{"empty block", func(img *Image) { img.Blocks[0].Code = nil }, "block 0 has no instructions"},
		{"unknown type", func(img *Image) { img.Blocks[0].Code[0].Type = "long" }, `unknown type "long"`},
		{"dangling class type", func(img *Image) { img.Blocks[0].Code[0].Type = "@7" }, `bad class reference "@7"`},
		{"dangling super", func(img *Image) { img.Classes[0].Super = 2 }, "super 2 out of range"},
		{"self super", func(img *Image) { img.Classes[0].Super = 1 }, "inheritance cycle"},
		{"member class", func(img *Image) { img.Members[0].Class = 1 }, "class 1 out of range"},
		{"member kind", func(img *Image) { img.Members[0].Kind = 7 }, "unknown kind 7"},
		{"field entry", func(img *Image) {
			img.Members[0] = Member{Kind: MemberField, Name: "f", Type: "int"}
		}, "not a method or constructor"},
		{"dangling call", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpCall, Member: 5, Resolved: true}, {Op: OpReturn}}
		}, "member reference 5 out of range"},
		{"getfield on method", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpGetField, Member: 1}, {Op: OpReturn}}
		}, "not a field"},
		{"unresolved with targets", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpCall, Member: 1, Targets: []int{1}}, {Op: OpReturn}}
		}, "lists targets"},
		{"condition", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpIf, Sub: 8, Type: "int"}}
		}, "unknown condition 8"},
		{"arith op", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpArith, Sub: 5, Type: "int"}}
		}, "unknown arithmetic op 5"},
		{"new primitive", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpNew, Type: "int"}}
		}, `"int" is not a class`},
		{"constant type", func(img *Image) {
			img.Blocks[0].Code = []Instr{{Op: OpConst, Type: "void"}}
		}, `constant of type "void"`},
		{"run id", func(img *Image) { img.RunID = "nope" }, "run id"},
		{"duplicate body", func(img *Image) { img.Bodies = append(img.Bodies, Body{}) }, "has two bodies"},
		{"reachable", func(img *Image) { img.Reachable = []int{2} }, "reachable member 2 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := minimal()
			tt.corrupt(img)
			data, err := MarshalImage(img)
			require.NoError(t, err)
			_, err = Decode(data, ir.NewBuilder())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDecode_NotCBOR(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00}, ir.NewBuilder())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.ErrorContains(t, err, "wire: unmarshal image")
}

func TestUnit_Find(t *testing.T) {
	f := newFixture(ir.NewBuilder())
	data, err := EncodeCode(f.entry, f.code, uuid.New())
	require.NoError(t, err)
	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)

	sig, err := u.Find("Main.main")
	require.NoError(t, err)
	assert.Same(t, u.Entry, sig)

	sig, err = u.Find("Square.area():float")
	require.NoError(t, err)
	assert.Equal(t, "Square.area():float", sig.String())

	sig, err = u.Find("Square.<init>")
	require.NoError(t, err)
	assert.Equal(t, "Square.<init>(float)", sig.String())

	_, err = u.Find("Main.missing")
	assert.ErrorContains(t, err, "no body for Main.missing")
}

func TestUnit_FindAmbiguous(t *testing.T) {
	b := ir.NewBuilder()
	main := types.NewClass("Main", nil)
	entry := main.AddMethod("main", types.Void)
	run := main.AddMethod("run", types.Void)
	runInt := main.AddMethod("run", types.Void, types.Int)
	code := ir.Code{
		entry:  b.Terminal(&ir.Return{}),
		run:    b.Terminal(&ir.Return{}),
		runInt: b.Terminal(&ir.Return{}),
	}
	data, err := EncodeCode(entry, code, uuid.New())
	require.NoError(t, err)
	u, err := Decode(data, ir.NewBuilder())
	require.NoError(t, err)

	_, err = u.Find("Main.run")
	assert.EqualError(t, err, "wire: Main.run is ambiguous: Main.run():void, Main.run(int):void")
}
