package xir

import (
	"fmt"
	"strings"
)

// BlockItem is an element of a Block: either an Expr or a Target label
type BlockItem interface {
	implBlockItem()
}

// Expr is a stack machine instruction. The set of implementations is closed;
// the validator switches over all of them.
type Expr interface {
	BlockItem
	implExpr()
}

// BinaryOp is the operator of a BinaryOp or CompoundAssign instruction
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
	OpRsh
	OpLsh
	OpCmp
	OpCmpInt
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe
	OpCmpEq
	OpCmpNe
)

var binaryOpNames = []string{"add", "sub", "mul", "div", "mod", "bitand", "bitor", "bitxor", "rsh", "lsh", "cmp", "cmp_int", "cmp_lt", "cmp_le", "cmp_gt", "cmp_ge", "cmp_eq", "cmp_ne"}

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// ParseBinaryOp maps an operator name back to its value
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for i, n := range binaryOpNames {
		if n == s {
			return BinaryOp(i), true
		}
	}
	return OpAdd, false
}

// IsShift reports whether the operator is a shift; shifts do not require
// both operands to have the same type
func (op BinaryOp) IsShift() bool { return op == OpLsh || op == OpRsh }

// IsCompare reports whether the operator is a comparison
func (op BinaryOp) IsCompare() bool { return op >= OpCmp }

// UnaryOp is the operator of a UnaryOp instruction
type UnaryOp int

const (
	OpMinus UnaryOp = iota
	OpBitNot
	OpLogicNot
)

var unaryOpNames = []string{"minus", "bitnot", "lnot"}

func (op UnaryOp) String() string {
	if int(op) >= 0 && int(op) < len(unaryOpNames) {
		return unaryOpNames[op]
	}
	return "?"
}

// ParseUnaryOp maps an operator name back to its value
func ParseUnaryOp(s string) (UnaryOp, bool) {
	for i, n := range unaryOpNames {
		if n == s {
			return UnaryOp(i), true
		}
	}
	return OpMinus, false
}

// OverflowBehaviour selects what happens when arithmetic overflows
type OverflowBehaviour int

const (
	Wrap OverflowBehaviour = iota
	Trap
	Checked
	Unchecked
	Saturate
)

var overflowNames = []string{"wrap", "trap", "checked", "unchecked", "saturate"}

func (v OverflowBehaviour) String() string {
	if int(v) >= 0 && int(v) < len(overflowNames) {
		return overflowNames[v]
	}
	return "?"
}

// ParseOverflowBehaviour maps a behaviour name back to its value
func ParseOverflowBehaviour(s string) (OverflowBehaviour, bool) {
	for i, n := range overflowNames {
		if n == s {
			return OverflowBehaviour(i), true
		}
	}
	return Wrap, false
}

// BranchCondition is the condition of a Branch
type BranchCondition int

const (
	Always BranchCondition = iota
	Never
	Less
	LessEqual
	Equal
	NotEqual
	Greater
	GreaterEqual
)

var condNames = []string{"always", "never", "less", "less_equal", "equal", "not_equal", "greater", "greater_equal"}

func (c BranchCondition) String() string {
	if int(c) >= 0 && int(c) < len(condNames) {
		return condNames[c]
	}
	return "?"
}

// ParseBranchCondition maps a condition name back to its value
func ParseBranchCondition(s string) (BranchCondition, bool) {
	for i, n := range condNames {
		if n == s {
			return BranchCondition(i), true
		}
	}
	return Always, false
}

// LValueOpKind is the operation of an LValueOp instruction
type LValueOpKind int

const (
	Xchg LValueOpKind = iota
	Cmpxchg
	Wcmpxchg
	PreInc
	PreDec
	PostInc
	PostDec
)

var lvalueOpNames = []string{"xchg", "cmpxchg", "wcmpxchg", "preinc", "predec", "postinc", "postdec"}

func (op LValueOpKind) String() string {
	if int(op) >= 0 && int(op) < len(lvalueOpNames) {
		return lvalueOpNames[op]
	}
	return "?"
}

// ParseLValueOp maps an lvalue operation name back to its value
func ParseLValueOp(s string) (LValueOpKind, bool) {
	for i, n := range lvalueOpNames {
		if n == s {
			return LValueOpKind(i), true
		}
	}
	return Xchg, false
}

// AccessClass qualifies memory accesses and fences
type AccessClass uint8

const (
	AccessNormal   AccessClass = 0
	AccessAtomic   AccessClass = 1 << 0
	AccessVolatile AccessClass = 1 << 1
	AccessNontemp  AccessClass = 1 << 2
	AccessFreeze   AccessClass = 1 << 3
)

func (a AccessClass) String() string {
	if a == AccessNormal {
		return "normal"
	}
	var parts []string
	if a&AccessAtomic != 0 {
		parts = append(parts, "atomic")
	}
	if a&AccessVolatile != 0 {
		parts = append(parts, "volatile")
	}
	if a&AccessNontemp != 0 {
		parts = append(parts, "nontemporal")
	}
	if a&AccessFreeze != 0 {
		parts = append(parts, "freeze")
	}
	return strings.Join(parts, " ")
}

// ConversionStrength selects how a Convert reinterprets its operand
type ConversionStrength int

const (
	ConvStrong ConversionStrength = iota
	ConvWeak
	ConvReinterpret
)

var convNames = []string{"strong", "weak", "reinterpret"}

func (c ConversionStrength) String() string {
	if int(c) >= 0 && int(c) < len(convNames) {
		return convNames[c]
	}
	return "?"
}

// ParseConversionStrength maps a strength name back to its value
func ParseConversionStrength(s string) (ConversionStrength, bool) {
	for i, n := range convNames {
		if n == s {
			return ConversionStrength(i), true
		}
	}
	return ConvStrong, false
}

// Null does nothing
type Null struct{}

// Const pushes a constant
type Const struct {
	Val Value
}

// ExitBlock leaves the enclosing block with nesting ordinal Blk, carrying the
// top Values stack items out
type ExitBlock struct {
	Blk    uint32
	Values uint16
}

// BinaryOpExpr pops two operands and pushes the result
type BinaryOpExpr struct {
	Op       BinaryOp
	Overflow OverflowBehaviour
}

// UnaryOpExpr pops one operand and pushes the result
type UnaryOpExpr struct {
	Op       UnaryOp
	Overflow OverflowBehaviour
}

// CallFunction pops the arguments for Sig and then the callee
type CallFunction struct {
	Sig Tfunction
}

// Tailcall is a call that replaces the current frame
type Tailcall struct {
	Sig Tfunction
}

// Branch transfers control to the target label of the current block
type Branch struct {
	Cond   BranchCondition
	Target uint32
}

// BranchIndirect jumps to a label address popped from the stack
type BranchIndirect struct{}

// Convert pops a value and pushes it converted to Ty
type Convert struct {
	Strength ConversionStrength
	Ty       Type
}

// Derive evaluates Inner and refines the annotations of the resulting pointer
type Derive struct {
	Ptr   Tpointer
	Inner Expr
}

// Local pushes the local variable N (parameters first, then declared locals)
type Local struct {
	N uint32
}

// Pop discards the top N items
type Pop struct {
	N uint32
}

// Dup duplicates the top N items
type Dup struct {
	N uint32
}

// Pivot moves the top M items below the N items beneath them
type Pivot struct {
	N uint32
	M uint32
}

// Aggregate builds an aggregate of Ty from one value per listed field
type Aggregate struct {
	Ty     Type
	Fields []string
}

// Member projects a field of an aggregate lvalue
type Member struct {
	Name string
}

// MemberIndirect projects a field through a pointer to an aggregate
type MemberIndirect struct {
	Name string
}

// NestedBlock runs a nested block with nesting ordinal N and pushes its exit values
type NestedBlock struct {
	N     uint32
	Block Block
}

// Assign stores an rvalue into an lvalue
type Assign struct {
	Access AccessClass
}

// AsRValue loads the value of an lvalue
type AsRValue struct {
	Access AccessClass
}

// CompoundAssign applies Op to an lvalue in place
type CompoundAssign struct {
	Op       BinaryOp
	Overflow OverflowBehaviour
	Access   AccessClass
}

// LValueOp is a read-modify-write operation on an lvalue
type LValueOp struct {
	Op       LValueOpKind
	Overflow OverflowBehaviour
	Access   AccessClass
}

// Indirect dereferences a pointer into an lvalue
type Indirect struct{}

// AddrOf takes the address of an lvalue
type AddrOf struct{}

// Sequence is a sequence point
type Sequence struct {
	Access AccessClass
}

// Fence is a memory fence
type Fence struct {
	Access AccessClass
}

// Switch dispatches on an integer popped from the stack
type Switch struct {
	Kind SwitchKind
}

// SwitchKind is the dispatch strategy of a Switch
type SwitchKind interface {
	implSwitchKind()
}

// SwitchCase maps one case value to a target label
type SwitchCase struct {
	Val    Value
	Target uint32
}

// HashSwitch dispatches through an arbitrary case table
type HashSwitch struct {
	Cases   []SwitchCase
	Default *uint32
}

// LinearSwitch dispatches through a dense range of cases
type LinearSwitch struct {
	Ty      Tscalar
	Min     uint64
	Scale   uint32
	Default uint32
	Cases   []uint32
}

func (HashSwitch) implSwitchKind()   {}
func (LinearSwitch) implSwitchKind() {}

// Marker methods for the Expr interface
func (Null) implExpr()           {}
func (Const) implExpr()          {}
func (ExitBlock) implExpr()      {}
func (BinaryOpExpr) implExpr()   {}
func (UnaryOpExpr) implExpr()    {}
func (CallFunction) implExpr()   {}
func (Tailcall) implExpr()       {}
func (Branch) implExpr()         {}
func (BranchIndirect) implExpr() {}
func (Convert) implExpr()        {}
func (Derive) implExpr()         {}
func (Local) implExpr()          {}
func (Pop) implExpr()            {}
func (Dup) implExpr()            {}
func (Pivot) implExpr()          {}
func (Aggregate) implExpr()      {}
func (Member) implExpr()         {}
func (MemberIndirect) implExpr() {}
func (NestedBlock) implExpr()    {}
func (Assign) implExpr()         {}
func (AsRValue) implExpr()       {}
func (CompoundAssign) implExpr() {}
func (LValueOp) implExpr()       {}
func (Indirect) implExpr()       {}
func (AddrOf) implExpr()         {}
func (Sequence) implExpr()       {}
func (Fence) implExpr()          {}
func (Switch) implExpr()         {}

func (Null) implBlockItem()           {}
func (Const) implBlockItem()          {}
func (ExitBlock) implBlockItem()      {}
func (BinaryOpExpr) implBlockItem()   {}
func (UnaryOpExpr) implBlockItem()    {}
func (CallFunction) implBlockItem()   {}
func (Tailcall) implBlockItem()       {}
func (Branch) implBlockItem()         {}
func (BranchIndirect) implBlockItem() {}
func (Convert) implBlockItem()        {}
func (Derive) implBlockItem()         {}
func (Local) implBlockItem()          {}
func (Pop) implBlockItem()            {}
func (Dup) implBlockItem()            {}
func (Pivot) implBlockItem()          {}
func (Aggregate) implBlockItem()      {}
func (Member) implBlockItem()         {}
func (MemberIndirect) implBlockItem() {}
func (NestedBlock) implBlockItem()    {}
func (Assign) implBlockItem()         {}
func (AsRValue) implBlockItem()       {}
func (CompoundAssign) implBlockItem() {}
func (LValueOp) implBlockItem()       {}
func (Indirect) implBlockItem()       {}
func (AddrOf) implBlockItem()         {}
func (Sequence) implBlockItem()       {}
func (Fence) implBlockItem()          {}
func (Switch) implBlockItem()         {}
func (Target) implBlockItem()         {}

// Opcode returns the mnemonic used by the printer and the YAML encoding
func Opcode(e Expr) string {
	switch e := e.(type) {
	case Null:
		return "null"
	case Const:
		return "const"
	case ExitBlock:
		return "exit"
	case BinaryOpExpr:
		return e.Op.String()
	case UnaryOpExpr:
		return e.Op.String()
	case CallFunction:
		return "call"
	case Tailcall:
		return "tailcall"
	case Branch:
		return "branch"
	case BranchIndirect:
		return "branch_indirect"
	case Convert:
		return "convert"
	case Derive:
		return "derive"
	case Local:
		return "local"
	case Pop:
		return "pop"
	case Dup:
		return "dup"
	case Pivot:
		return "pivot"
	case Aggregate:
		return "aggregate"
	case Member:
		return "member"
	case MemberIndirect:
		return "member_indirect"
	case NestedBlock:
		return "block"
	case Assign:
		return "assign"
	case AsRValue:
		return "as_rvalue"
	case CompoundAssign:
		return "compound_assign"
	case LValueOp:
		return e.Op.String()
	case Indirect:
		return "indirect"
	case AddrOf:
		return "addr_of"
	case Sequence:
		return "sequence"
	case Fence:
		return "fence"
	case Switch:
		return "switch"
	default:
		return fmt.Sprintf("%T", e)
	}
}
