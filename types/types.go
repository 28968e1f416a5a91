// Package types models the static types of the source language and the
// signatures of class members that code can reference.
package types

import "strings"

// ---------------------------------------------------------------------------
// Type
// ---------------------------------------------------------------------------

// Type is a static type: a Primitive, a *Class or an *Array.
type Type interface {
	String() string
	isType()
}

// Primitive is a built-in, non-class type.
type Primitive uint8

const (
	Void Primitive = iota
	Int
	Float
	Bool
	String
	// Nil is the type of the null reference.
	Nil
)

var primitiveNames = [...]string{
	Void:   "void",
	Int:    "int",
	Float:  "float",
	Bool:   "boolean",
	String: "String",
	Nil:    "nil",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return "unknown"
}

func (Primitive) isType() {}

// IsNumeric reports whether p takes part in arithmetic.
func (p Primitive) IsNumeric() bool { return p == Int || p == Float }

// Array is the type of arrays with elements of type Elem.
type Array struct {
	Elem Type
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem Type) *Array { return &Array{Elem: elem} }

func (a *Array) String() string { return "array of " + a.Elem.String() }

func (*Array) isType() {}

// Equal reports whether t and u denote the same type. Classes are compared
// by identity, arrays structurally.
func Equal(t, u Type) bool {
	switch t := t.(type) {
	case Primitive:
		p, ok := u.(Primitive)
		return ok && p == t
	case *Class:
		c, ok := u.(*Class)
		return ok && c == t
	case *Array:
		a, ok := u.(*Array)
		return ok && Equal(t.Elem, a.Elem)
	case nil:
		return u == nil
	}
	return false
}

// IsReference reports whether values of t are heap references.
func IsReference(t Type) bool {
	switch t := t.(type) {
	case *Class, *Array:
		return true
	case Primitive:
		return t == Nil || t == String
	}
	return false
}

// AssignableTo reports whether a value of type t can be stored where a
// value of type u is expected.
func AssignableTo(t, u Type) bool {
	if Equal(t, u) {
		return true
	}
	switch t := t.(type) {
	case Primitive:
		switch t {
		case Int:
			return Equal(u, Float)
		case Nil:
			return IsReference(u)
		}
	case *Class:
		if c, ok := u.(*Class); ok {
			return t.IsSubclassOf(c)
		}
	case *Array:
		if a, ok := u.(*Array); ok {
			return IsReference(t.Elem) && AssignableTo(t.Elem, a.Elem)
		}
	}
	return false
}

// Least returns the least common supertype of t and u, or nil if none.
func Least(t, u Type) Type {
	switch {
	case AssignableTo(t, u):
		return u
	case AssignableTo(u, t):
		return t
	}
	tc, ok1 := t.(*Class)
	uc, ok2 := u.(*Class)
	if ok1 && ok2 {
		for c := tc; c != nil; c = c.Super {
			if uc.IsSubclassOf(c) {
				return c
			}
		}
	}
	return nil
}

func typeList(ts []Type) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return strings.Join(names, ",")
}

func sameTypes(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
