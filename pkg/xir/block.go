package xir

// StackValueKind tags a stack item as an addressable location or a value
type StackValueKind int

const (
	KindLValue StackValueKind = iota
	KindRValue
)

func (k StackValueKind) String() string {
	if k == KindLValue {
		return "lvalue"
	}
	return "rvalue"
}

// StackItem is one entry of the simulated operand stack
type StackItem struct {
	Ty   Type
	Kind StackValueKind
}

func (s StackItem) String() string {
	return s.Kind.String() + " " + typeString(s.Ty)
}

// Target declares a join point: any control path reaching it must carry
// exactly Stack
type Target struct {
	Num   uint32
	Stack []StackItem
}

// Block is a sequence of expressions and target labels
type Block struct {
	Items []BlockItem
}
