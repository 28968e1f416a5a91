// Package env implements the persistent environment used while type checking:
// an immutable search tree from symbols to values with structural sharing.
//
// The nil *Tree is the empty environment. Nodes are never mutated after
// construction, so any tree handed out stays valid forever, and updates copy
// only the path from the root to the affected key.
//
// Ordering: at a node, when the node's key compares below the searched key the
// search continues left, otherwise right. Larger keys therefore live in the
// left subtree. Lookup and Update agree on this, and nothing else depends on it.
//
// The tree is never rebalanced; its depth depends on insertion order.
package env

import "github.com/chazu/tabby/symbol"

// Value is the constraint on what an environment can hold. Equal decides
// whether an update is a no-op.
type Value[V any] interface {
	Equal(other V) bool
}

// Tree is one node of a persistent environment.
type Tree[V Value[V]] struct {
	key   *symbol.Symbol
	value V
	left  *Tree[V]
	right *Tree[V]
}

// Empty returns the empty environment.
func Empty[V Value[V]]() *Tree[V] { return nil }

// IsEmpty reports whether t is the empty environment.
func (t *Tree[V]) IsEmpty() bool { return t == nil }

// Lookup returns the value bound to key in t.
func (t *Tree[V]) Lookup(key *symbol.Symbol) (V, bool) {
	for n := t; n != nil; {
		c := n.key.Compare(key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Update returns an environment where key is bound to value. If key is
// already bound to an equal value, t itself is returned. Otherwise only the
// nodes from the root to key are reallocated; every other subtree is shared
// with t. t is left untouched either way.
func (t *Tree[V]) Update(key *symbol.Symbol, value V) *Tree[V] {
	if t == nil {
		return &Tree[V]{key: key, value: value}
	}

	c := t.key.Compare(key)
	switch {
	case c < 0:
		left := t.left.Update(key, value)
		if left == t.left {
			return t
		}
		return &Tree[V]{key: t.key, value: t.value, left: left, right: t.right}
	case c > 0:
		right := t.right.Update(key, value)
		if right == t.right {
			return t
		}
		return &Tree[V]{key: t.key, value: t.value, left: t.left, right: right}
	default:
		if t.value.Equal(value) {
			return t
		}
		return &Tree[V]{key: t.key, value: value, left: t.left, right: t.right}
	}
}

// Len returns the number of bindings in t.
func (t *Tree[V]) Len() int {
	if t == nil {
		return 0
	}
	return 1 + t.left.Len() + t.right.Len()
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree[V]) Depth() int {
	if t == nil {
		return 0
	}
	return 1 + max(t.left.Depth(), t.right.Depth())
}

// Each calls fn for every binding, in ascending key order.
func (t *Tree[V]) Each(fn func(key *symbol.Symbol, value V)) {
	if t == nil {
		return
	}
	// Larger keys are on the left.
	t.right.Each(fn)
	fn(t.key, t.value)
	t.left.Each(fn)
}
