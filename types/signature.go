package types

import "fmt"

// ---------------------------------------------------------------------------
// Signatures: references to class members
// ---------------------------------------------------------------------------

// Signature identifies a class member. Signatures are compared by identity:
// each declaration produces exactly one.
type Signature interface {
	Owner() *Class
	String() string
	signature()
}

// CodeSignature is a member with a body: a method or a constructor.
type CodeSignature interface {
	Signature
	ParamTypes() []Type
	ResultType() Type
}

// FieldSignature identifies a field.
type FieldSignature struct {
	Class *Class
	Name  string
	Type  Type
}

func (f *FieldSignature) Owner() *Class { return f.Class }

func (f *FieldSignature) String() string {
	return fmt.Sprintf("%s.%s:%s", f.Class.Name, f.Name, f.Type)
}

func (*FieldSignature) signature() {}

// MethodSignature identifies a method.
type MethodSignature struct {
	Class  *Class
	Name   string
	Params []Type
	Result Type
}

func (m *MethodSignature) Owner() *Class { return m.Class }

func (m *MethodSignature) ParamTypes() []Type { return m.Params }

func (m *MethodSignature) ResultType() Type { return m.Result }

func (m *MethodSignature) String() string {
	return fmt.Sprintf("%s.%s(%s):%s", m.Class.Name, m.Name, typeList(m.Params), m.Result)
}

func (*MethodSignature) signature() {}

// ConstructorSignature identifies a constructor.
type ConstructorSignature struct {
	Class  *Class
	Params []Type
}

func (k *ConstructorSignature) Owner() *Class { return k.Class }

func (k *ConstructorSignature) ParamTypes() []Type { return k.Params }

// ResultType is Void: a constructor initializes the receiver in place.
func (k *ConstructorSignature) ResultType() Type { return Void }

func (k *ConstructorSignature) String() string {
	return fmt.Sprintf("%s.<init>(%s)", k.Class.Name, typeList(k.Params))
}

func (*ConstructorSignature) signature() {}
