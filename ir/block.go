// Package ir holds the per-method control-flow graphs produced by
// translation and the whole-program cleanup that prunes them and computes
// which class members need code.
package ir

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Builder: allocates blocks
// ---------------------------------------------------------------------------

// Builder creates blocks and hands out their identities. One Builder serves
// a whole compiler run; identities never repeat until Reset.
type Builder struct {
	next int
}

// NewBuilder creates a builder whose first block has identity 0.
func NewBuilder() *Builder {
	return &Builder{}
}

// Issued returns the number of blocks created since the last Reset.
func (b *Builder) Issued() int { return b.next }

// Reset restarts identities from 0. Blocks created before the reset must
// not be mixed with blocks created after it.
func (b *Builder) Reset() { b.next = 0 }

func (b *Builder) newBlock(code []Instruction, succs []*Block, mergeable bool) *Block {
	if len(code) == 0 {
		code = []Instruction{&Nop{}}
	}
	if succs == nil {
		succs = []*Block{}
	}
	blk := &Block{
		id:        b.next,
		code:      code,
		succs:     succs,
		mergeable: mergeable,
		builder:   b,
	}
	b.next++
	return blk
}

// Terminal creates a successor-less block ending the method, typically
// holding a Return.
func (b *Builder) Terminal(instr Instruction) *Block {
	return b.newBlock([]Instruction{instr}, nil, true)
}

// Branch creates a two-way branch on cond. The block itself only holds a
// placeholder; cond is prefixed onto yes and its negation onto no, so the
// test sits at the head of each outgoing edge. Successors are [yes, no].
func (b *Builder) Branch(cond *If, yes, no *Block) *Block {
	if yes == nil || no == nil {
		panic("ir: Branch with nil successor")
	}
	return b.newBlock(nil, []*Block{yes.PrefixedBy(cond), no.PrefixedBy(cond.Negate())}, true)
}

// Pivot creates a placeholder block that is never merged into, so it can
// serve as the re-entry point that LinkTo closes a loop onto.
func (b *Builder) Pivot() *Block {
	return b.newBlock(nil, nil, false)
}

// Plain creates a block with the given code and successors. Empty code is
// replaced by a placeholder.
func (b *Builder) Plain(code []Instruction, succs ...*Block) *Block {
	for _, s := range succs {
		if s == nil {
			panic("ir: Plain with nil successor")
		}
	}
	return b.newBlock(append([]Instruction(nil), code...), append([]*Block(nil), succs...), true)
}

// Sequence prefixes code, last instruction first, onto next and returns the
// resulting head. It is the usual way translation grows straight-line code
// backwards from its continuation.
func (b *Builder) Sequence(next *Block, code ...Instruction) *Block {
	for i := len(code) - 1; i >= 0; i-- {
		next = next.PrefixedBy(code[i])
	}
	return next
}

// ---------------------------------------------------------------------------
// Block
// ---------------------------------------------------------------------------

// Block is a node of a method's control-flow graph: straight-line code
// followed by an ordered list of successors. Blocks are shared; a block does
// not know its predecessors.
type Block struct {
	id        int
	code      []Instruction
	succs     []*Block
	mergeable bool
	builder   *Builder
}

// ID returns the identity assigned at construction.
func (blk *Block) ID() int { return blk.id }

// Code returns the instructions of blk. It is never empty for a block made
// by a Builder. Callers must not modify the slice.
func (blk *Block) Code() []Instruction { return blk.code }

// Successors returns the successors of blk in order. Callers must not modify
// the slice.
func (blk *Block) Successors() []*Block { return blk.succs }

// Mergeable reports whether PrefixedBy may still modify blk in place.
func (blk *Block) Mergeable() bool { return blk.mergeable }

// DoNotMerge forbids any later in-place modification by PrefixedBy. Call it
// once something depends on blk starting where it starts now, such as a
// loop entry or a join point.
func (blk *Block) DoNotMerge() { blk.mergeable = false }

// PrefixedBy puts instr in front of blk. While blk is mergeable the
// instruction is inserted in place and blk is returned; otherwise a new block
// holding only instr, followed by blk, is returned and blk is unchanged.
func (blk *Block) PrefixedBy(instr Instruction) *Block {
	if blk.mergeable {
		code := make([]Instruction, 0, len(blk.code)+1)
		code = append(code, instr)
		blk.code = append(code, blk.code...)
		return blk
	}
	return blk.builder.newBlock([]Instruction{instr}, []*Block{blk}, true)
}

// LinkTo appends succ to the successors of blk, typically closing a loop.
func (blk *Block) LinkTo(succ *Block) {
	if succ == nil {
		panic("ir: LinkTo nil block")
	}
	blk.succs = append(blk.succs, succ)
}

// RemoveFirstInstruction drops the first instruction of blk. A block left
// without instructions gets a placeholder instead.
func (blk *Block) RemoveFirstInstruction() {
	if len(blk.code) <= 1 {
		blk.code = []Instruction{&Nop{}}
		return
	}
	blk.code = blk.code[1:]
}

// IsPlaceholder reports whether blk holds nothing but a single Nop.
func (blk *Block) IsPlaceholder() bool {
	if len(blk.code) != 1 {
		return false
	}
	_, ok := blk.code[0].(*Nop)
	return ok
}

// isDeadLeaf reports whether blk is a placeholder with no way out; such
// successors are dropped by cleanup.
func (blk *Block) isDeadLeaf() bool {
	return blk.IsPlaceholder() && len(blk.succs) == 0
}

func (blk *Block) String() string { return fmt.Sprintf("block %d", blk.id) }

// Dump returns "block <id>" followed by one instruction per line.
func (blk *Block) Dump() string {
	var sb strings.Builder
	sb.WriteString(blk.String())
	for _, instr := range blk.code {
		sb.WriteString("\n")
		sb.WriteString(instr.String())
	}
	return sb.String()
}
