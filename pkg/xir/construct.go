package xir

// Int returns a signed integer scalar of the given width
func Int(bits uint16) Tscalar {
	return Tscalar{Header: ScalarHeader{BitSize: bits}, Kind: IntegerKind{Signed: true}}
}

// UInt returns an unsigned integer scalar of the given width
func UInt(bits uint16) Tscalar {
	return Tscalar{Header: ScalarHeader{BitSize: bits}, Kind: IntegerKind{}}
}

// Float returns a binary float scalar of the given width
func Float(bits uint16) Tscalar {
	return Tscalar{Header: ScalarHeader{BitSize: bits}, Kind: FloatKind{}}
}

// Flag is the 1-bit unsigned type produced by comparisons and overflow checks
func Flag() Tscalar { return UInt(1) }

// Pointer returns an unannotated pointer to inner
func Pointer(inner Type) Tpointer { return Tpointer{Inner: inner} }

// VoidPointer returns the generic code/data pointer type
func VoidPointer() Tpointer { return Tpointer{Inner: Tvoid{}} }

// Named returns a reference to the global type at path
func Named(path string) Tnamed { return Tnamed{Path: ParsePath(path)} }

// IntConst returns an integer constant of a signed type
func IntConst(bits uint16, val uint64) Integer {
	return Integer{Ty: Int(bits), Val: val}
}

// RValue returns a stack item for a computed value
func RValue(ty Type) StackItem { return StackItem{Ty: ty, Kind: KindRValue} }

// LValue returns a stack item for an addressable location
func LValue(ty Type) StackItem { return StackItem{Ty: ty, Kind: KindLValue} }
