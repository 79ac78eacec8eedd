package xir

import (
	"fmt"
	"strconv"
)

// Value is a constant operand
type Value interface {
	implValue()
	String() string
}

// Invalid is a value of Ty that must never be observed
type Invalid struct {
	Ty Type
}

// Uninitialized is an indeterminate value of Ty
type Uninitialized struct {
	Ty Type
}

// GenericParameter refers to a generic argument by index
type GenericParameter struct {
	Index uint32
}

// Integer is an integer constant of scalar type Ty
type Integer struct {
	Ty  Tscalar
	Val uint64
}

// GlobalAddress is the address of a global item. A Tnull Ty is filled in
// from the global type table during validation.
type GlobalAddress struct {
	Ty   Type
	Item Path
}

// ByteString is a pointer to a byte array
type ByteString struct {
	Content []byte
}

// StringLit is a string literal of an explicitly given type
type StringLit struct {
	Utf8 string
	Ty   Type
}

// LabelAddress is the address of a target label in the enclosing block
type LabelAddress struct {
	Target uint32
}

// Marker methods for Value interface
func (Invalid) implValue()          {}
func (Uninitialized) implValue()    {}
func (GenericParameter) implValue() {}
func (Integer) implValue()          {}
func (GlobalAddress) implValue()    {}
func (ByteString) implValue()       {}
func (StringLit) implValue()        {}
func (LabelAddress) implValue()     {}

func (v Invalid) String() string       { return "invalid " + typeString(v.Ty) }
func (v Uninitialized) String() string { return "uninit " + typeString(v.Ty) }
func (v GenericParameter) String() string {
	return fmt.Sprintf("%%%d", v.Index)
}
func (v Integer) String() string { return fmt.Sprintf("%s %d", v.Ty, v.Val) }
func (v GlobalAddress) String() string {
	if _, ok := v.Ty.(Tnull); ok || v.Ty == nil {
		return "global_address " + v.Item.String()
	}
	return fmt.Sprintf("global_address %s (%s)", v.Item, v.Ty)
}
func (v ByteString) String() string { return "bytes " + strconv.Quote(string(v.Content)) }
func (v StringLit) String() string {
	return fmt.Sprintf("string %s %s", typeString(v.Ty), strconv.Quote(v.Utf8))
}
func (v LabelAddress) String() string { return fmt.Sprintf("label_address @%d", v.Target) }
