package types

// ---------------------------------------------------------------------------
// Class: a declared class and its members
// ---------------------------------------------------------------------------

// Class is a user-declared class type. Members are kept in declaration order.
type Class struct {
	Name  string
	Super *Class

	fields       []*FieldSignature
	methods      []*MethodSignature
	constructors []*ConstructorSignature
}

// NewClass creates a class with the given superclass (nil for a root class).
func NewClass(name string, super *Class) *Class {
	return &Class{Name: name, Super: super}
}

func (c *Class) String() string { return c.Name }

func (*Class) isType() {}

// IsSubclassOf returns true if c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Super {
		if current == other {
			return true
		}
	}
	return false
}

// AddField declares a field of type t.
func (c *Class) AddField(name string, t Type) *FieldSignature {
	f := &FieldSignature{Class: c, Name: name, Type: t}
	c.fields = append(c.fields, f)
	return f
}

// AddMethod declares a method.
func (c *Class) AddMethod(name string, result Type, params ...Type) *MethodSignature {
	m := &MethodSignature{Class: c, Name: name, Params: params, Result: result}
	c.methods = append(c.methods, m)
	return m
}

// AddConstructor declares a constructor.
func (c *Class) AddConstructor(params ...Type) *ConstructorSignature {
	k := &ConstructorSignature{Class: c, Params: params}
	c.constructors = append(c.constructors, k)
	return k
}

// Fields returns the fields declared by c itself.
func (c *Class) Fields() []*FieldSignature { return c.fields }

// Methods returns the methods declared by c itself.
func (c *Class) Methods() []*MethodSignature { return c.methods }

// Constructors returns the constructors declared by c.
func (c *Class) Constructors() []*ConstructorSignature { return c.constructors }

// Field finds a field by name in c or its superclasses.
func (c *Class) Field(name string) *FieldSignature {
	for current := c; current != nil; current = current.Super {
		for _, f := range current.fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// Method finds the method with exactly the given name and parameter types,
// searching c first and then its superclasses.
func (c *Class) Method(name string, params ...Type) *MethodSignature {
	for current := c; current != nil; current = current.Super {
		for _, m := range current.methods {
			if m.Name == name && sameTypes(m.Params, params) {
				return m
			}
		}
	}
	return nil
}

// Constructor finds the constructor with exactly the given parameter types.
func (c *Class) Constructor(params ...Type) *ConstructorSignature {
	for _, k := range c.constructors {
		if sameTypes(k.Params, params) {
			return k
		}
	}
	return nil
}

// Members returns every signature c declares: fields, then constructors,
// then methods.
func (c *Class) Members() []Signature {
	out := make([]Signature, 0, len(c.fields)+len(c.constructors)+len(c.methods))
	for _, f := range c.fields {
		out = append(out, f)
	}
	for _, k := range c.constructors {
		out = append(out, k)
	}
	for _, m := range c.methods {
		out = append(out, m)
	}
	return out
}
