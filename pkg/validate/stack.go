package validate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// exitSlot records the exit stack of one enclosing block. The first
// ExitBlock targeting the block sets it; later exits must match.
type exitSlot struct {
	set   bool
	stack []xir.StackItem
}

// funcChecker holds the state of one function body check. It is not shared
// between goroutines; only ts is.
type funcChecker struct {
	ts     *tables
	locals []xir.Type
	exits  []*exitSlot
	loc    []int
}

// blockState is the live simulated stack of one block and the target
// labels that block declares.
type blockState struct {
	stack   []xir.StackItem
	targets map[uint32][]xir.StackItem
}

func (st *blockState) push(items ...xir.StackItem) {
	st.stack = append(st.stack, items...)
}

// popN removes and returns the top n items, bottom first
func (st *blockState) popN(n int) ([]xir.StackItem, error) {
	if n > len(st.stack) {
		return nil, malformed("stack underflow: need %d items, have %d", n, len(st.stack))
	}
	at := len(st.stack) - n
	out := slices.Clone(st.stack[at:])
	st.stack = st.stack[:at]
	return out, nil
}

func (st *blockState) pop() (xir.StackItem, error) {
	items, err := st.popN(1)
	if err != nil {
		return xir.StackItem{}, err
	}
	return items[0], nil
}

func (st *blockState) popKind(kind xir.StackValueKind, op string) (xir.StackItem, error) {
	item, err := st.pop()
	if err != nil {
		return item, err
	}
	if err := requireKind(item, kind, op); err != nil {
		return item, err
	}
	return item, nil
}

func (st *blockState) popRValue(op string) (xir.StackItem, error) {
	return st.popKind(xir.KindRValue, op)
}

func (st *blockState) popLValue(op string) (xir.StackItem, error) {
	return st.popKind(xir.KindLValue, op)
}

func requireKind(item xir.StackItem, kind xir.StackValueKind, op string) error {
	if item.Kind == kind {
		return nil
	}
	return &Error{
		Code:     ErrCodeKindViolation,
		Message:  fmt.Sprintf("%s requires an %s", op, kind),
		Expected: kind.String(),
		Actual:   item.String(),
	}
}

// target looks up a label declared in the current block
func (st *blockState) target(num uint32) ([]xir.StackItem, error) {
	stack, ok := st.targets[num]
	if !ok {
		return nil, newError(ErrCodeUnresolved, "target @%d is not declared in this block", num)
	}
	return stack, nil
}

// valueType returns the static type of a constant. targets is nil outside
// function bodies.
func (ts *tables) valueType(v xir.Value, targets map[uint32][]xir.StackItem) (xir.Type, error) {
	switch v := v.(type) {
	case xir.Invalid:
		return typed(v.Ty, v)
	case xir.Uninitialized:
		return typed(v.Ty, v)
	case xir.StringLit:
		return typed(v.Ty, v)
	case xir.Integer:
		return v.Ty, nil
	case xir.GenericParameter:
		return nil, unsupported("generic parameter %s", v)
	case xir.GlobalAddress:
		ty, err := ts.globalType(v)
		if err != nil {
			return nil, err
		}
		return xir.Pointer(ty), nil
	case xir.ByteString:
		return xir.Pointer(xir.UInt(8)), nil
	case xir.LabelAddress:
		if targets == nil {
			return nil, malformed("label address @%d outside a function body", v.Target)
		}
		stack, ok := targets[v.Target]
		if !ok {
			return nil, newError(ErrCodeUnresolved, "target @%d is not declared in this block", v.Target)
		}
		if len(stack) != 0 {
			return nil, &Error{
				Code:     ErrCodeStackMismatch,
				Message:  fmt.Sprintf("address of target @%d requires an empty stack", v.Target),
				Expected: "[]",
				Actual:   xir.StackString(stack),
			}
		}
		return xir.VoidPointer(), nil
	case nil:
		return nil, malformed("missing value")
	default:
		return nil, malformed("unhandled value %T", v)
	}
}

func typed(ty xir.Type, v xir.Value) (xir.Type, error) {
	if ty == nil {
		return nil, malformed("value %s has no type", v)
	}
	return ty, nil
}

func isNull(ty xir.Type) bool {
	if ty == nil {
		return true
	}
	_, ok := ty.(xir.Tnull)
	return ok
}

func flagItem() xir.StackItem { return xir.RValue(xir.Flag()) }

// scalarOperand requires ty to reify to a scalar
func (ts *tables) scalarOperand(ty xir.Type, op string) (xir.Tscalar, error) {
	r, err := ts.reify(ty)
	if err != nil {
		return xir.Tscalar{}, err
	}
	switch t := r.(type) {
	case xir.Tscalar:
		return t, nil
	case xir.Tpointer:
		return xir.Tscalar{}, unsupported("%s on pointer type %s", op, ty)
	default:
		return xir.Tscalar{}, &Error{
			Code:     ErrCodeTypeMismatch,
			Message:  fmt.Sprintf("%s requires a scalar operand", op),
			Expected: "scalar",
			Actual:   str(ty),
		}
	}
}

// integerOperand requires ty to reify to an integer scalar
func (ts *tables) integerOperand(ty xir.Type, op string) error {
	r, err := ts.reify(ty)
	if err != nil {
		return err
	}
	if s, ok := r.(xir.Tscalar); ok {
		if _, ok := s.Kind.(xir.IntegerKind); ok {
			return nil
		}
	}
	return &Error{
		Code:     ErrCodeTypeMismatch,
		Message:  fmt.Sprintf("%s requires an integer operand", op),
		Expected: "integer",
		Actual:   str(ty),
	}
}

// pointerOperand requires ty to reify to a pointer
func (ts *tables) pointerOperand(ty xir.Type, op string) (xir.Tpointer, error) {
	r, err := ts.reify(ty)
	if err != nil {
		return xir.Tpointer{}, err
	}
	p, ok := r.(xir.Tpointer)
	if !ok {
		return xir.Tpointer{}, &Error{
			Code:     ErrCodeTypeMismatch,
			Message:  fmt.Sprintf("%s requires a pointer operand", op),
			Expected: "pointer",
			Actual:   str(ty),
		}
	}
	return p, nil
}

// checkExpr replays the stack effect of e. It reports whether control cannot
// fall through to the next item.
func (fc *funcChecker) checkExpr(e xir.Expr, st *blockState) (bool, error) {
	ts := fc.ts
	op := xir.Opcode(e)

	switch e := e.(type) {
	case xir.Null, xir.Sequence, xir.Fence:
		return false, nil

	case xir.Const:
		ty, err := ts.valueType(e.Val, st.targets)
		if err != nil {
			return false, err
		}
		st.push(xir.RValue(ty))
		return false, nil

	case xir.ExitBlock:
		if int(e.Blk) >= len(fc.exits) {
			return false, malformed("exit from block #%d at nesting depth %d", e.Blk, len(fc.exits)-1)
		}
		vals, err := st.popN(int(e.Values))
		if err != nil {
			return false, err
		}
		slot := fc.exits[e.Blk]
		if !slot.set {
			slot.set = true
			slot.stack = vals
			return true, nil
		}
		return true, ts.sameShape(slot.stack, vals)

	case xir.BinaryOpExpr:
		rhs, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		lhs, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		if _, err := ts.scalarOperand(lhs.Ty, op); err != nil {
			return false, err
		}
		if _, err := ts.scalarOperand(rhs.Ty, op); err != nil {
			return false, err
		}
		if !e.Op.IsShift() {
			if err := ts.unify(lhs.Ty, rhs.Ty); err != nil {
				return false, err
			}
		}
		switch {
		case e.Op == xir.OpCmp || e.Op == xir.OpCmpInt:
			st.push(xir.RValue(xir.Int(32)))
		case e.Op.IsCompare():
			st.push(flagItem())
		default:
			st.push(xir.RValue(lhs.Ty))
			if e.Overflow == xir.Checked {
				st.push(flagItem())
			}
		}
		return false, nil

	case xir.UnaryOpExpr:
		val, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		if _, err := ts.scalarOperand(val.Ty, op); err != nil {
			return false, err
		}
		switch e.Op {
		case xir.OpMinus:
			st.push(val)
			if e.Overflow == xir.Checked {
				st.push(flagItem())
			}
		case xir.OpBitNot:
			st.push(val)
		case xir.OpLogicNot:
			st.push(flagItem())
		default:
			return false, malformed("unknown unary operator %d", int(e.Op))
		}
		return false, nil

	case xir.CallFunction:
		return false, fc.checkCall(e.Sig, st)

	case xir.Tailcall:
		return true, unsupported("tail call to %s", e.Sig)

	case xir.Branch:
		if e.Cond != xir.Always && e.Cond != xir.Never {
			ctrl, err := st.popRValue(op)
			if err != nil {
				return false, err
			}
			if err := ts.integerOperand(ctrl.Ty, op); err != nil {
				return false, err
			}
		}
		tstack, err := st.target(e.Target)
		if err != nil {
			return false, err
		}
		if err := ts.unifyStack(st.stack, tstack); err != nil {
			return false, err
		}
		return e.Cond == xir.Always, nil

	case xir.BranchIndirect:
		dest, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		return true, ts.unify(dest.Ty, xir.VoidPointer())

	case xir.Convert:
		val, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		if err := ts.convertible(val.Ty); err != nil {
			return false, err
		}
		if err := ts.convertible(e.Ty); err != nil {
			return false, err
		}
		st.push(xir.RValue(e.Ty))
		return false, nil

	case xir.Derive:
		if e.Inner == nil {
			return false, malformed("derive without an operand")
		}
		diverged, err := fc.checkExpr(e.Inner, st)
		if err != nil {
			return false, err
		}
		val, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		ptr, err := ts.pointerOperand(val.Ty, op)
		if err != nil {
			return false, err
		}
		if err := ts.unify(e.Ptr.Inner, ptr.Inner); err != nil {
			return false, err
		}
		ptr.Alias = e.Ptr.Alias
		ptr.ValidRange = e.Ptr.ValidRange
		ptr.Decl = e.Ptr.Decl
		st.push(xir.RValue(ptr))
		return diverged, nil

	case xir.Local:
		if int(e.N) >= len(fc.locals) {
			return false, malformed("local %d out of range (%d locals)", e.N, len(fc.locals))
		}
		st.push(xir.LValue(fc.locals[e.N]))
		return false, nil

	case xir.Pop:
		_, err := st.popN(int(e.N))
		return false, err

	case xir.Dup:
		items, err := st.popN(int(e.N))
		if err != nil {
			return false, err
		}
		st.push(items...)
		st.push(items...)
		return false, nil

	case xir.Pivot:
		top, err := st.popN(int(e.M))
		if err != nil {
			return false, err
		}
		below, err := st.popN(int(e.N))
		if err != nil {
			return false, err
		}
		st.push(top...)
		st.push(below...)
		return false, nil

	case xir.Aggregate:
		vals, err := st.popN(len(e.Fields))
		if err != nil {
			return false, err
		}
		for i, name := range e.Fields {
			if err := requireKind(vals[i], xir.KindRValue, op); err != nil {
				return false, err
			}
			fty, err := ts.fieldType(e.Ty, name)
			if err != nil {
				return false, err
			}
			if err := ts.unify(fty, vals[i].Ty); err != nil {
				return false, err
			}
		}
		st.push(xir.RValue(e.Ty))
		return false, nil

	case xir.Member:
		val, err := st.popLValue(op)
		if err != nil {
			return false, err
		}
		fty, err := ts.fieldType(val.Ty, e.Name)
		if err != nil {
			return false, err
		}
		st.push(xir.LValue(fty))
		return false, nil

	case xir.MemberIndirect:
		val, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		ptr, err := ts.pointerOperand(val.Ty, op)
		if err != nil {
			return false, err
		}
		fty, err := ts.fieldType(ptr.Inner, e.Name)
		if err != nil {
			return false, err
		}
		st.push(xir.RValue(xir.Pointer(fty)))
		return false, nil

	case xir.NestedBlock:
		if int(e.N) != len(fc.exits) {
			return false, malformed("block ordinal #%d does not match nesting depth %d", e.N, len(fc.exits))
		}
		res, err := fc.checkBlock(e.Block)
		if err != nil {
			return false, err
		}
		st.push(res...)
		return false, nil

	case xir.Assign:
		rv, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		lv, err := st.popLValue(op)
		if err != nil {
			return false, err
		}
		return false, ts.unify(lv.Ty, rv.Ty)

	case xir.AsRValue:
		lv, err := st.popLValue(op)
		if err != nil {
			return false, err
		}
		st.push(xir.RValue(lv.Ty))
		return false, nil

	case xir.CompoundAssign:
		rv, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		lv, err := st.popLValue(op)
		if err != nil {
			return false, err
		}
		if !e.Op.IsShift() {
			if err := ts.unify(lv.Ty, rv.Ty); err != nil {
				return false, err
			}
		}
		r, err := ts.reify(lv.Ty)
		if err != nil {
			return false, err
		}
		if _, ok := r.(xir.Tscalar); !ok {
			return false, unsupported("compound assignment %s on %s", e.Op, lv.Ty)
		}
		if e.Overflow == xir.Checked {
			st.push(flagItem())
		}
		return false, nil

	case xir.LValueOp:
		return false, fc.checkLValueOp(e, st)

	case xir.Indirect:
		val, err := st.popRValue(op)
		if err != nil {
			return false, err
		}
		ptr, err := ts.pointerOperand(val.Ty, op)
		if err != nil {
			return false, err
		}
		st.push(xir.LValue(ptr.Inner))
		return false, nil

	case xir.AddrOf:
		lv, err := st.popLValue(op)
		if err != nil {
			return false, err
		}
		st.push(xir.RValue(xir.Pointer(lv.Ty)))
		return false, nil

	case xir.Switch:
		return fc.checkSwitch(e, st)

	default:
		return false, malformed("unhandled expression %T", e)
	}
}

// convertible requires ty to reify to a scalar or a pointer
func (ts *tables) convertible(ty xir.Type) error {
	r, err := ts.reify(ty)
	if err != nil {
		return err
	}
	switch r.(type) {
	case xir.Tscalar, xir.Tpointer:
		return nil
	}
	return unsupported("conversion involving %s", ty)
}

func (fc *funcChecker) checkCall(sig xir.Tfunction, st *blockState) error {
	ts := fc.ts
	if sig.Variadic {
		return malformed("cannot call with a variadic signature %s", sig)
	}
	args, err := st.popN(len(sig.Params))
	if err != nil {
		return err
	}
	callee, err := st.popRValue("call")
	if err != nil {
		return err
	}
	ptr, err := ts.pointerOperand(callee.Ty, "call")
	if err != nil {
		return err
	}
	inner, err := ts.reify(ptr.Inner)
	if err != nil {
		return err
	}
	fn, ok := inner.(xir.Tfunction)
	if !ok {
		return mismatch(ErrCodeTypeMismatch, "callee is not a function", sig, callee.Ty)
	}

	if fn.Variadic {
		if len(fn.Params) > len(sig.Params) {
			return mismatch(ErrCodeTypeMismatch, "too few arguments for variadic callee", fn, sig)
		}
	} else if len(fn.Params) != len(sig.Params) {
		return mismatch(ErrCodeTypeMismatch, "argument count does not match callee", fn, sig)
	}
	for i := range fn.Params {
		if err := ts.unify(fn.Params[i], sig.Params[i]); err != nil {
			return err
		}
	}
	if err := ts.unify(fn.Ret, sig.Ret); err != nil {
		return err
	}

	for i, arg := range args {
		if err := requireKind(arg, xir.KindRValue, "call argument"); err != nil {
			return err
		}
		if err := ts.unify(sig.Params[i], arg.Ty); err != nil {
			return err
		}
	}
	st.push(xir.RValue(sig.Ret))
	return nil
}

func (fc *funcChecker) checkLValueOp(e xir.LValueOp, st *blockState) error {
	ts := fc.ts
	op := e.Op.String()

	switch e.Op {
	case xir.Xchg:
		a, err := st.popLValue(op)
		if err != nil {
			return err
		}
		b, err := st.popLValue(op)
		if err != nil {
			return err
		}
		return ts.unify(a.Ty, b.Ty)

	case xir.Cmpxchg, xir.Wcmpxchg:
		control, err := st.popRValue(op)
		if err != nil {
			return err
		}
		swap, err := st.popLValue(op)
		if err != nil {
			return err
		}
		dest, err := st.popLValue(op)
		if err != nil {
			return err
		}
		if err := ts.unify(dest.Ty, control.Ty); err != nil {
			return err
		}
		if err := ts.unify(dest.Ty, swap.Ty); err != nil {
			return err
		}
		st.push(flagItem())
		return nil

	case xir.PreInc, xir.PreDec, xir.PostInc, xir.PostDec:
		lv, err := st.popLValue(op)
		if err != nil {
			return err
		}
		r, err := ts.reify(lv.Ty)
		if err != nil {
			return err
		}
		if _, ok := r.(xir.Tscalar); !ok {
			return &Error{
				Code:     ErrCodeTypeMismatch,
				Message:  fmt.Sprintf("%s requires a scalar operand", op),
				Expected: "scalar",
				Actual:   str(lv.Ty),
			}
		}
		if e.Op == xir.PreInc || e.Op == xir.PreDec {
			st.push(lv)
		} else {
			st.push(xir.RValue(lv.Ty))
		}
		if e.Overflow == xir.Checked {
			st.push(flagItem())
		}
		return nil

	default:
		return malformed("unknown lvalue operation %d", int(e.Op))
	}
}

func (fc *funcChecker) checkSwitch(e xir.Switch, st *blockState) (bool, error) {
	ts := fc.ts
	ctrl, err := st.popRValue("switch")
	if err != nil {
		return false, err
	}
	if err := ts.integerOperand(ctrl.Ty, "switch"); err != nil {
		return false, err
	}

	switch k := e.Kind.(type) {
	case xir.HashSwitch:
		var ref []xir.StackItem
		haveRef := false
		checkTarget := func(num uint32) error {
			tstack, err := st.target(num)
			if err != nil {
				return err
			}
			if !haveRef {
				haveRef = true
				ref = tstack
				return ts.unifyStack(st.stack, tstack)
			}
			return ts.sameShape(ref, tstack)
		}
		for _, c := range k.Cases {
			iv, ok := c.Val.(xir.Integer)
			if !ok {
				return false, unsupported("switch case value %s", str(c.Val))
			}
			if err := ts.unify(ctrl.Ty, iv.Ty); err != nil {
				return false, err
			}
			if err := checkTarget(c.Target); err != nil {
				return false, err
			}
		}
		if k.Default != nil {
			if err := checkTarget(*k.Default); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil

	case xir.LinearSwitch:
		return false, unsupported("linear switch")

	default:
		return false, malformed("unhandled switch kind %T", e.Kind)
	}
}

// stamp attaches the current item location to err unless a nested block
// already did
func (fc *funcChecker) stamp(err error) error {
	var ve *Error
	if errors.As(err, &ve) && ve.Location == nil {
		ve.Location = slices.Clone(fc.loc)
	}
	return err
}
