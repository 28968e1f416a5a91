package ir

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/tabby/types"
)

// logger is looked up on use so a backend installed after init still applies.
func logger() commonlog.Logger { return commonlog.GetLogger("tabby.ir") }

// ---------------------------------------------------------------------------
// Structural defects
// ---------------------------------------------------------------------------

// Defects are contract violations by whatever produced the graph. They are
// never reported as source diagnostics.
var (
	ErrNoEntry        = errors.New("entry member has no code")
	ErrMissingCode    = errors.New("call target has no code")
	ErrUnresolvedCall = errors.New("call targets were never resolved")
	ErrNilSuccessor   = errors.New("nil successor")
	ErrEmptyBlock     = errors.New("block has no instructions")
)

// DefectError locates a structural defect found by cleanup.
type DefectError struct {
	Member types.Signature // member whose graph holds Block
	Block  *Block          // nil when the defect is not inside a block
	Err    error
}

func (e *DefectError) Error() string {
	if e.Block == nil {
		return fmt.Sprintf("ir: %s: %v", e.Member, e.Err)
	}
	return fmt.Sprintf("ir: %s, block %d: %v", e.Member, e.Block.id, e.Err)
}

func (e *DefectError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Members: the reachable-member set
// ---------------------------------------------------------------------------

// Members is a set of signatures that remembers insertion order.
type Members struct {
	order []types.Signature
	index map[types.Signature]int
}

func newMembers() *Members {
	return &Members{index: make(map[types.Signature]int)}
}

// Add inserts sig and reports whether it was new.
func (m *Members) Add(sig types.Signature) bool {
	if _, ok := m.index[sig]; ok {
		return false
	}
	m.index[sig] = len(m.order)
	m.order = append(m.order, sig)
	return true
}

// Contains reports whether sig is in the set.
func (m *Members) Contains(sig types.Signature) bool {
	_, ok := m.index[sig]
	return ok
}

// Len returns the number of members.
func (m *Members) Len() int { return len(m.order) }

// Signatures returns the members in insertion order.
func (m *Members) Signatures() []types.Signature {
	return append([]types.Signature(nil), m.order...)
}

// CodeSignatures returns the methods and constructors in insertion order.
func (m *Members) CodeSignatures() []types.CodeSignature {
	var out []types.CodeSignature
	for _, sig := range m.order {
		if cs, ok := sig.(types.CodeSignature); ok {
			out = append(out, cs)
		}
	}
	return out
}

func (m *Members) reset() {
	m.order = m.order[:0]
	clear(m.index)
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Code maps each method and constructor that has a body to the root block
// of its graph.
type Code map[types.CodeSignature]*Block

// Program is a whole program ready for code generation: an entry member,
// the bodies of all translated members and, after Cleanup, the set of
// members that must actually be generated.
type Program struct {
	entry     types.CodeSignature
	code      Code
	reachable *Members
	blocks    int // blocks visited by the last cleanup
}

// NewProgram creates a program starting at entry and runs Cleanup on it.
func NewProgram(entry types.CodeSignature, code Code) (*Program, error) {
	p := &Program{entry: entry, code: code, reachable: newMembers()}
	if err := p.Cleanup(); err != nil {
		return nil, err
	}
	return p, nil
}

// Entry returns the entry member.
func (p *Program) Entry() types.CodeSignature { return p.entry }

// Reachable returns the members found by the last Cleanup.
func (p *Program) Reachable() *Members { return p.reachable }

// CodeOf returns the root block of sig.
func (p *Program) CodeOf(sig types.CodeSignature) (*Block, bool) {
	blk, ok := p.code[sig]
	return blk, ok
}

// Code returns the registry of bodies the program was created with.
func (p *Program) Code() Code { return p.code }

// VisitedBlocks returns how many blocks the last Cleanup processed.
func (p *Program) VisitedBlocks() int { return p.blocks }

// Cleanup walks every graph reachable from the entry, following successors
// and the dynamic targets of calls. It drops successors that are bare
// placeholders with no successors of their own and recomputes Reachable
// from scratch: the entry plus every field and callee referenced by
// reachable code.
//
// Each block is processed once per call, even when shared or on a cycle.
// Successors are walked left to right as stored. On a defect the walk stops
// and Reachable holds what was found so far.
func (p *Program) Cleanup() error {
	p.reachable.reset()
	p.reachable.Add(p.entry)
	p.blocks = 0

	root, ok := p.code[p.entry]
	if !ok || root == nil {
		return &DefectError{Member: p.entry, Err: ErrNoEntry}
	}

	c := &cleaner{program: p, visited: make(map[*Block]struct{})}
	c.push(root, p.entry)
	logger().Debugf("entering %s", p.entry)

	for len(c.stack) > 0 {
		top := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if _, done := c.visited[top.block]; done {
			continue
		}
		c.visited[top.block] = struct{}{}
		if err := c.visit(top.block, top.member); err != nil {
			return err
		}
	}

	p.blocks = len(c.visited)
	logger().Infof("cleanup from %s: %d reachable members, %d blocks", p.entry, p.reachable.Len(), p.blocks)
	return nil
}

// ---------------------------------------------------------------------------
// cleaner: the state of one Cleanup call
// ---------------------------------------------------------------------------

type frame struct {
	block  *Block
	member types.CodeSignature
}

type cleaner struct {
	program *Program
	visited map[*Block]struct{}
	stack   []frame
}

func (c *cleaner) push(blk *Block, member types.CodeSignature) {
	c.stack = append(c.stack, frame{block: blk, member: member})
}

func (c *cleaner) visit(blk *Block, member types.CodeSignature) error {
	if len(blk.code) == 0 {
		return &DefectError{Member: member, Block: blk, Err: ErrEmptyBlock}
	}

	kept := make([]*Block, 0, len(blk.succs))
	for _, s := range blk.succs {
		if s == nil {
			return &DefectError{Member: member, Block: blk, Err: ErrNilSuccessor}
		}
		if !s.isDeadLeaf() {
			kept = append(kept, s)
		}
	}
	blk.succs = kept

	// Callee bodies go on the stack below the successors, so the
	// successors of blk are finished first.
	for _, instr := range blk.code {
		if err := c.record(instr, blk, member); err != nil {
			return err
		}
	}
	for i := len(kept) - 1; i >= 0; i-- {
		c.push(kept[i], member)
	}
	return nil
}

// record adds the members instr refers to and schedules callee bodies.
func (c *cleaner) record(instr Instruction, blk *Block, member types.CodeSignature) error {
	switch i := instr.(type) {
	case *GetField:
		c.program.reachable.Add(i.Field)
	case *PutField:
		c.program.reachable.Add(i.Field)
	case *Call:
		if !i.Resolved() {
			return &DefectError{Member: member, Block: blk, Err: ErrUnresolvedCall}
		}
		targets := i.Targets()
		if len(targets) == 0 {
			// Nothing can dispatch here at run time; keep the static callee
			// if it has a body, otherwise the call is dead.
			if i.Static != nil {
				if body, ok := c.program.code[i.Static]; ok {
					c.enter(i.Static, body)
				}
			}
			return nil
		}
		for _, target := range targets {
			body, ok := c.program.code[target]
			if !ok || body == nil {
				return &DefectError{Member: target, Block: blk, Err: fmt.Errorf("%w (called from %s)", ErrMissingCode, member)}
			}
			c.enter(target, body)
		}
	case *Nop, *Const, *Load, *Store, *Arith, *Neg, *Not, *Compare,
		*Dup, *Pop, *New, *NewArray, *ArrayLoad, *ArrayStore, *Return, *If:
	default:
		panic(fmt.Sprintf("ir: unknown instruction %T", instr))
	}
	return nil
}

func (c *cleaner) enter(target types.CodeSignature, body *Block) {
	if c.program.reachable.Add(target) {
		logger().Debugf("entering %s", target)
	}
	c.push(body, target)
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// Blocks lists the graph of sig in depth-first preorder, successors left to
// right, each block once. It does not follow calls.
func (p *Program) Blocks(sig types.CodeSignature) []*Block {
	root, ok := p.code[sig]
	if !ok {
		return nil
	}
	return Walk(root)
}

// Walk lists the graph rooted at root in depth-first preorder, successors
// left to right, each block once.
func Walk(root *Block) []*Block {
	var out []*Block
	seen := make(map[*Block]struct{})
	stack := []*Block{root}
	for len(stack) > 0 {
		blk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[blk]; ok {
			continue
		}
		seen[blk] = struct{}{}
		out = append(out, blk)
		for i := len(blk.succs) - 1; i >= 0; i-- {
			if s := blk.succs[i]; s != nil {
				stack = append(stack, s)
			}
		}
	}
	return out
}
