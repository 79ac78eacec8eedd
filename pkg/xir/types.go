// Package xir defines the typed stack machine IR shared by every frontend.
// A File owns a tree of scopes; function bodies are blocks of instructions
// whose operand stack effects are checked by package validate before any
// code generator sees them.
package xir

import (
	"fmt"
	"strings"
)

// Type is the interface for all IR types
type Type interface {
	implType()
	String() string
}

// ScalarValidity is a set of value guarantees carried by a scalar type
type ScalarValidity uint8

const (
	ValidNonzero ScalarValidity = 1 << iota
	ValidFinite
	ValidNonNaN
)

func (v ScalarValidity) String() string {
	var parts []string
	if v&ValidNonzero != 0 {
		parts = append(parts, "nonzero")
	}
	if v&ValidFinite != 0 {
		parts = append(parts, "finite")
	}
	if v&ValidNonNaN != 0 {
		parts = append(parts, "nonnan")
	}
	return strings.Join(parts, " ")
}

// ScalarHeader holds the size information shared by every scalar kind
type ScalarHeader struct {
	BitSize    uint16
	VectorSize uint16 // 0 for a non-vector scalar
	Validity   ScalarValidity
}

// ScalarKind selects how the bits of a scalar are interpreted
type ScalarKind interface {
	implScalarKind()
}

// EmptyKind is a scalar with no interpretation
type EmptyKind struct{}

// IntegerKind is a two's complement integer. Min and Max are optional
// range restrictions and do not take part in unification.
type IntegerKind struct {
	Signed bool
	Min    *int64
	Max    *int64
}

// FloatKind is a binary or decimal IEEE float
type FloatKind struct {
	Decimal bool
}

// FixedKind is a fixed point number
type FixedKind struct {
	FractBits uint16
}

// CharFlags qualify a character scalar
type CharFlags uint8

const (
	CharSigned CharFlags = 1 << iota
	CharUnicode
)

// CharKind is a character code unit
type CharKind struct {
	Flags CharFlags
}

// LongFloatKind is the target's extended float format
type LongFloatKind struct{}

func (EmptyKind) implScalarKind()     {}
func (IntegerKind) implScalarKind()   {}
func (FloatKind) implScalarKind()     {}
func (FixedKind) implScalarKind()     {}
func (CharKind) implScalarKind()      {}
func (LongFloatKind) implScalarKind() {}

// Abi is the calling convention tag of a function type
type Abi int

const (
	AbiC Abi = iota
	AbiCdecl
	AbiFastcall
	AbiStdcall
	AbiVectorcall
	AbiThiscall
	AbiSysV
	AbiRust
)

var abiNames = []string{"C", "cdecl", "fastcall", "stdcall", "vectorcall", "thiscall", "sysv64", "Rust"}

func (a Abi) String() string {
	if int(a) >= 0 && int(a) < len(abiNames) {
		return abiNames[a]
	}
	return "?"
}

// ParseAbi maps a calling convention name back to its tag
func ParseAbi(s string) (Abi, bool) {
	for i, n := range abiNames {
		if n == s {
			return Abi(i), true
		}
	}
	return AbiC, false
}

// PointerAliasingRule restricts how a pointer may alias other pointers
type PointerAliasingRule int

const (
	AliasNone PointerAliasingRule = iota
	AliasUnique
	AliasReadOnly
	AliasReadShallow
	AliasInvalid
	AliasNonnull
	AliasVolatile
	AliasVolatileWrite
	AliasNullOrInvalid
)

var aliasNames = []string{"none", "unique", "read_only", "read_shallow", "invalid", "nonnull", "volatile", "volatile_write", "null_or_invalid"}

func (r PointerAliasingRule) String() string {
	if int(r) >= 0 && int(r) < len(aliasNames) {
		return aliasNames[r]
	}
	return "?"
}

// ParseAliasingRule maps an aliasing rule name back to its value
func ParseAliasingRule(s string) (PointerAliasingRule, bool) {
	for i, n := range aliasNames {
		if n == s {
			return PointerAliasingRule(i), true
		}
	}
	return AliasNone, false
}

// ValidRangeType describes what the bytes behind a pointer may be used for
type ValidRangeType int

const (
	RangeNone ValidRangeType = iota
	RangeDereference
	RangeDereferenceWrite
	RangeWriteOnly
	RangeNullOrDereference
	RangeNullOrDereferenceWrite
	RangeNullOrWriteOnly
)

var rangeNames = []string{"none", "dereference", "dereference_write", "write_only", "null_or_dereference", "null_or_dereference_write", "null_or_write_only"}

func (r ValidRangeType) String() string {
	if int(r) >= 0 && int(r) < len(rangeNames) {
		return rangeNames[r]
	}
	return "?"
}

// ParseValidRangeType maps a valid-range name back to its value
func ParseValidRangeType(s string) (ValidRangeType, bool) {
	for i, n := range rangeNames {
		if n == s {
			return ValidRangeType(i), true
		}
	}
	return RangeNone, false
}

// ValidRange is the valid-range annotation of a pointer: a kind and a byte count
type ValidRange struct {
	Kind ValidRangeType
	Size uint64
}

// PointerDeclaration records the surface construct a pointer was declared with
type PointerDeclaration int

const (
	DeclDefault PointerDeclaration = iota
	DeclReference
)

// AggregateKind distinguishes structs from unions
type AggregateKind int

const (
	KindStruct AggregateKind = iota
	KindUnion
)

func (k AggregateKind) String() string {
	if k == KindUnion {
		return "union"
	}
	return "struct"
}

// AggregateField is a named field of an aggregate
type AggregateField struct {
	Name string
	Ty   Type
}

// Tnull is the unknown type placeholder; it unifies with every type
type Tnull struct{}

// Tvoid is the empty return type
type Tvoid struct{}

// Tscalar is an integer, float, fixed point or character type, possibly a vector
type Tscalar struct {
	Header ScalarHeader
	Kind   ScalarKind
}

// Tfunction is a function signature
type Tfunction struct {
	Ret      Type
	Params   []Type
	Tag      Abi
	Variadic bool
}

// Tpointer is a pointer to Inner with aliasing and validity annotations
type Tpointer struct {
	Alias      PointerAliasingRule
	ValidRange ValidRange
	Decl       PointerDeclaration
	Inner      Type
}

// Tnamed refers to a global type by path. It never owns the definition;
// the validator resolves it through its type tables.
type Tnamed struct {
	Path Path
}

// Taggregate is an inline aggregate definition
type Taggregate struct {
	Kind        AggregateKind
	Annotations []Annotation
	Fields      []AggregateField
}

// Tproduct is an anonymous tuple of types
type Tproduct struct {
	Elems []Type
}

// Tarray is a fixed length array; Len is normally an Integer value
type Tarray struct {
	Elem Type
	Len  Value
}

// Ttagged wraps a type with an opaque tag. It is transparent to unification.
type Ttagged struct {
	Tag   uint16
	Inner Type
}

// Taligned wraps a type with an alignment requirement. It is transparent to
// unification.
type Taligned struct {
	Align Value
	Inner Type
}

// Marker methods for Type interface
func (Tnull) implType()      {}
func (Tvoid) implType()      {}
func (Tscalar) implType()    {}
func (Tfunction) implType()  {}
func (Tpointer) implType()   {}
func (Tnamed) implType()     {}
func (Taggregate) implType() {}
func (Tproduct) implType()   {}
func (Tarray) implType()     {}
func (Ttagged) implType()    {}
func (Taligned) implType()   {}

func (Tnull) String() string { return "_" }
func (Tvoid) String() string { return "void" }

func (t Tscalar) String() string {
	var sb strings.Builder
	if t.Header.Validity != 0 {
		sb.WriteString(t.Header.Validity.String())
		sb.WriteByte(' ')
	}
	switch k := t.Kind.(type) {
	case IntegerKind:
		if k.Signed {
			fmt.Fprintf(&sb, "i%d", t.Header.BitSize)
		} else {
			fmt.Fprintf(&sb, "u%d", t.Header.BitSize)
		}
		if k.Min != nil || k.Max != nil {
			sb.WriteString(" range(")
			if k.Min != nil {
				fmt.Fprintf(&sb, "%d", *k.Min)
			}
			sb.WriteString("..=")
			if k.Max != nil {
				fmt.Fprintf(&sb, "%d", *k.Max)
			}
			sb.WriteString(")")
		}
	case FloatKind:
		if k.Decimal {
			fmt.Fprintf(&sb, "d%d", t.Header.BitSize)
		} else {
			fmt.Fprintf(&sb, "f%d", t.Header.BitSize)
		}
	case FixedKind:
		fmt.Fprintf(&sb, "fixed%d.%d", t.Header.BitSize, k.FractBits)
	case CharKind:
		switch {
		case k.Flags&CharUnicode != 0:
			fmt.Fprintf(&sb, "uchar%d", t.Header.BitSize)
		case k.Flags&CharSigned != 0:
			fmt.Fprintf(&sb, "schar%d", t.Header.BitSize)
		default:
			fmt.Fprintf(&sb, "char%d", t.Header.BitSize)
		}
	case LongFloatKind:
		fmt.Fprintf(&sb, "longfloat%d", t.Header.BitSize)
	default:
		fmt.Fprintf(&sb, "empty%d", t.Header.BitSize)
	}
	if t.Header.VectorSize != 0 {
		fmt.Fprintf(&sb, "x%d", t.Header.VectorSize)
	}
	return sb.String()
}

func (t Tfunction) String() string {
	var sb strings.Builder
	if t.Tag != AbiC {
		fmt.Fprintf(&sb, "extern %q ", t.Tag.String())
	}
	sb.WriteString("fn(")
	for i, p := range t.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(typeString(p))
	}
	if t.Variadic {
		if len(t.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(") -> ")
	sb.WriteString(typeString(t.Ret))
	return sb.String()
}

func (t Tpointer) String() string {
	var annots []string
	if t.Alias != AliasNone {
		annots = append(annots, t.Alias.String())
	}
	if t.ValidRange.Kind != RangeNone {
		annots = append(annots, fmt.Sprintf("%s(%d)", t.ValidRange.Kind, t.ValidRange.Size))
	}
	if t.Decl == DeclReference {
		annots = append(annots, "ref")
	}
	if len(annots) == 0 {
		return "*" + typeString(t.Inner)
	}
	return "*" + strings.Join(annots, " ") + " " + typeString(t.Inner)
}

func (t Tnamed) String() string { return t.Path.String() }

func (t Taggregate) String() string {
	var sb strings.Builder
	for _, a := range t.Annotations {
		sb.WriteString(a.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(t.Kind.String())
	sb.WriteString(" {")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, " %s: %s", f.Name, typeString(f.Ty))
	}
	sb.WriteString(" }")
	return sb.String()
}

func (t Tproduct) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = typeString(e)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t Tarray) String() string {
	return fmt.Sprintf("[%s; %s]", typeString(t.Elem), valueString(t.Len))
}

func (t Ttagged) String() string {
	return fmt.Sprintf("tagged(%d) %s", t.Tag, typeString(t.Inner))
}

func (t Taligned) String() string {
	return fmt.Sprintf("aligned(%s) %s", valueString(t.Align), typeString(t.Inner))
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func valueString(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
