package validate

import (
	"github.com/raymyers/ralph-xir/pkg/xir"
)

// unify checks that a and b are structurally compatible. Tnull unifies with
// anything; pointer annotations and integer ranges are ignored.
func (ts *tables) unify(a, b xir.Type) error {
	ra, err := ts.reify(a)
	if err != nil {
		return err
	}
	rb, err := ts.reify(b)
	if err != nil {
		return err
	}
	if _, ok := ra.(xir.Tnull); ok {
		return nil
	}
	if _, ok := rb.(xir.Tnull); ok {
		return nil
	}

	fail := func() error {
		return mismatch(ErrCodeTypeMismatch, "cannot unify types", a, b)
	}

	switch x := ra.(type) {
	case xir.Tvoid:
		if _, ok := rb.(xir.Tvoid); !ok {
			return fail()
		}
		return nil

	case xir.Tscalar:
		y, ok := rb.(xir.Tscalar)
		if !ok || !scalarsUnify(x, y) {
			return fail()
		}
		return nil

	case xir.Tfunction:
		y, ok := rb.(xir.Tfunction)
		if !ok || x.Tag != y.Tag || x.Variadic != y.Variadic || len(x.Params) != len(y.Params) {
			return fail()
		}
		for i := range x.Params {
			if err := ts.unify(x.Params[i], y.Params[i]); err != nil {
				return err
			}
		}
		return ts.unify(x.Ret, y.Ret)

	case xir.Tpointer:
		y, ok := rb.(xir.Tpointer)
		if !ok {
			return fail()
		}
		return ts.unify(x.Inner, y.Inner)

	case xir.Tproduct:
		y, ok := rb.(xir.Tproduct)
		if !ok || len(x.Elems) != len(y.Elems) {
			return fail()
		}
		for i := range x.Elems {
			if err := ts.unify(x.Elems[i], y.Elems[i]); err != nil {
				return err
			}
		}
		return nil

	case xir.Taggregate:
		y, ok := rb.(xir.Taggregate)
		if !ok || x.Kind != y.Kind || !xir.AnnotationsEqual(x.Annotations, y.Annotations) || len(x.Fields) != len(y.Fields) {
			return fail()
		}
		for i := range x.Fields {
			if err := ts.unify(x.Fields[i].Ty, y.Fields[i].Ty); err != nil {
				return err
			}
			if x.Fields[i].Name != y.Fields[i].Name {
				return fail()
			}
		}
		return nil

	case xir.Tarray:
		y, ok := rb.(xir.Tarray)
		if !ok {
			return fail()
		}
		lx, okx := x.Len.(xir.Integer)
		ly, oky := y.Len.(xir.Integer)
		if !okx || !oky {
			return unsupported("array length %s is not an integer constant", lengthString(x, y, okx))
		}
		if !scalarsUnify(lx.Ty, ly.Ty) || lx.Val != ly.Val {
			return fail()
		}
		return ts.unify(x.Elem, y.Elem)

	case xir.Tnamed:
		y, ok := rb.(xir.Tnamed)
		if !ok || !x.Path.Equal(y.Path) {
			return fail()
		}
		return nil

	default:
		return fail()
	}
}

func lengthString(x, y xir.Tarray, xIsInt bool) string {
	if !xIsInt {
		return str(x.Len)
	}
	return str(y.Len)
}

// scalarsUnify compares size, vector width and kind. Validity flags and
// integer ranges are not compared.
func scalarsUnify(a, b xir.Tscalar) bool {
	if a.Header.BitSize != b.Header.BitSize || a.Header.VectorSize != b.Header.VectorSize {
		return false
	}
	switch ka := a.Kind.(type) {
	case xir.IntegerKind:
		kb, ok := b.Kind.(xir.IntegerKind)
		return ok && ka.Signed == kb.Signed
	case xir.FixedKind:
		kb, ok := b.Kind.(xir.FixedKind)
		return ok && ka.FractBits == kb.FractBits
	case xir.CharKind:
		kb, ok := b.Kind.(xir.CharKind)
		return ok && ka.Flags == kb.Flags
	case xir.FloatKind:
		kb, ok := b.Kind.(xir.FloatKind)
		return ok && ka.Decimal == kb.Decimal
	case xir.LongFloatKind:
		_, ok := b.Kind.(xir.LongFloatKind)
		return ok
	case xir.EmptyKind, nil:
		switch b.Kind.(type) {
		case xir.EmptyKind, nil:
			return true
		}
		return false
	default:
		return false
	}
}

// unifyStack checks the top len(target) items of stack against target.
// Items below the window are not inspected.
func (ts *tables) unifyStack(stack, target []xir.StackItem) error {
	if len(stack) < len(target) {
		return &Error{
			Code:     ErrCodeStackMismatch,
			Message:  "stack too short for target",
			Expected: xir.StackString(target),
			Actual:   xir.StackString(stack),
		}
	}
	window := stack[len(stack)-len(target):]
	for i := range target {
		if window[i].Kind != target[i].Kind {
			return mismatch(ErrCodeStackMismatch, "cannot unify stack items", target[i], window[i])
		}
		if err := ts.unify(target[i].Ty, window[i].Ty); err != nil {
			return err
		}
	}
	return nil
}

// sameShape requires two stack shapes to agree item for item
func (ts *tables) sameShape(want, got []xir.StackItem) error {
	if len(want) != len(got) {
		return &Error{
			Code:     ErrCodeStackMismatch,
			Message:  "stack shapes differ in length",
			Expected: xir.StackString(want),
			Actual:   xir.StackString(got),
		}
	}
	return ts.unifyStack(got, want)
}
