package validate

import (
	"slices"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// checkBlock validates one block and returns its exit stack. Targets are
// collected first so that forward branches can see them; the items are then
// replayed in order. A Target reached by fall through must agree with the
// live stack, and always replaces it.
func (fc *funcChecker) checkBlock(b xir.Block) ([]xir.StackItem, error) {
	slot := &exitSlot{}
	fc.exits = append(fc.exits, slot)
	defer func() { fc.exits = fc.exits[:len(fc.exits)-1] }()

	st := &blockState{targets: make(map[uint32][]xir.StackItem)}
	for i, item := range b.Items {
		t, ok := item.(xir.Target)
		if !ok {
			continue
		}
		if _, dup := st.targets[t.Num]; dup {
			return nil, fc.at(i, malformed("target @%d redeclared", t.Num))
		}
		st.targets[t.Num] = t.Stack
	}

	diverged := false
	for i, item := range b.Items {
		var err error
		fc.loc = append(fc.loc, i)
		switch it := item.(type) {
		case xir.Target:
			if !diverged {
				err = fc.ts.unifyStack(st.stack, it.Stack)
			}
			diverged = false
			st.stack = slices.Clone(it.Stack)
		case xir.Expr:
			diverged, err = fc.checkExpr(it, st)
		case nil:
			err = malformed("missing block item")
		default:
			err = malformed("unhandled block item %T", item)
		}
		if err != nil {
			err = fc.stamp(err)
			fc.loc = fc.loc[:len(fc.loc)-1]
			return nil, err
		}
		fc.loc = fc.loc[:len(fc.loc)-1]
	}
	return slot.stack, nil
}

// at stamps err with the location of item i of the current block
func (fc *funcChecker) at(i int, err error) error {
	fc.loc = append(fc.loc, i)
	err = fc.stamp(err)
	fc.loc = fc.loc[:len(fc.loc)-1]
	return err
}

// checkFunction validates a function body against its signature. The root
// block has nesting ordinal 0; its exit stack is the return value.
func (ts *tables) checkFunction(fn *xir.FunctionDeclaration) error {
	if fn.Body == nil {
		return nil
	}
	locals := make([]xir.Type, 0, len(fn.Ty.Params)+len(fn.Body.Locals))
	locals = append(locals, fn.Ty.Params...)
	locals = append(locals, fn.Body.Locals...)

	fc := &funcChecker{ts: ts, locals: locals}
	ret, err := fc.checkBlock(fn.Body.Block)
	if err != nil {
		return err
	}

	rty, err := ts.reify(fn.Ty.Ret)
	if err != nil {
		return err
	}
	if _, ok := rty.(xir.Tvoid); ok {
		if len(ret) != 0 {
			return &Error{
				Code:     ErrCodeStackMismatch,
				Message:  "void function returns values",
				Expected: "[]",
				Actual:   xir.StackString(ret),
			}
		}
		return nil
	}
	if len(ret) != 1 {
		return &Error{
			Code:     ErrCodeStackMismatch,
			Message:  "function must return exactly one value",
			Expected: "[rvalue " + str(fn.Ty.Ret) + "]",
			Actual:   xir.StackString(ret),
		}
	}
	return ts.unify(fn.Ty.Ret, ret[0].Ty)
}
