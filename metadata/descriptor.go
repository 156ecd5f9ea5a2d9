package metadata

import (
	"fmt"

	"github.com/wippyai/scripthost/boundary"
)

// Kind is the closed set of descriptor kinds.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindField
	KindMethod
	KindAttribute
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindAttribute:
		return "attribute"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= KindType && k <= KindAttribute
}

// ID identifies an interned descriptor.
type ID int32

// Ref converts the id to its boundary form.
func (id ID) Ref() boundary.TypeRef {
	return boundary.TypeRef(id)
}

// Descriptor describes a module (KindType) or one of its members. It is
// comparable and used directly as a map key.
type Descriptor struct {
	Owner     string
	Name      string
	Signature string
	Module    boundary.ModuleID
	Kind      Kind
}

// QualifiedName is the module name for types and owner.name for members.
func (d Descriptor) QualifiedName() string {
	if d.Kind == KindType || d.Owner == "" {
		return d.Name
	}
	return d.Owner + "." + d.Name
}

func (d Descriptor) String() string {
	if d.Signature == "" {
		return d.Kind.String() + " " + d.QualifiedName()
	}
	return d.Kind.String() + " " + d.QualifiedName() + ": " + d.Signature
}
