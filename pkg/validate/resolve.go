package validate

import (
	"errors"
	"slices"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// resolveBody returns a copy of body in which every GlobalAddress with an
// unknown type carries the declared type of its global. body is not
// modified; unchanged items are shared with the copy.
func (ts *tables) resolveBody(body *xir.FunctionBody) (*xir.FunctionBody, error) {
	r := &resolver{ts: ts}
	blk, err := r.block(body.Block)
	if err != nil {
		return nil, err
	}
	return &xir.FunctionBody{Locals: slices.Clone(body.Locals), Block: blk}, nil
}

type resolver struct {
	ts  *tables
	loc []int
}

func (r *resolver) block(b xir.Block) (xir.Block, error) {
	items := make([]xir.BlockItem, len(b.Items))
	for i, item := range b.Items {
		r.loc = append(r.loc, i)
		e, ok := item.(xir.Expr)
		if !ok {
			items[i] = item
			r.loc = r.loc[:len(r.loc)-1]
			continue
		}
		out, err := r.expr(e)
		if err != nil {
			return xir.Block{}, err
		}
		items[i] = out
		r.loc = r.loc[:len(r.loc)-1]
	}
	return xir.Block{Items: items}, nil
}

func (r *resolver) expr(e xir.Expr) (xir.Expr, error) {
	switch e := e.(type) {
	case xir.Const:
		v, err := r.ts.resolveValue(e.Val)
		if err != nil {
			var ve *Error
			if errors.As(err, &ve) {
				ve.Location = slices.Clone(r.loc)
			}
			return nil, err
		}
		return xir.Const{Val: v}, nil
	case xir.Derive:
		if e.Inner == nil {
			return e, nil
		}
		inner, err := r.expr(e.Inner)
		if err != nil {
			return nil, err
		}
		e.Inner = inner
		return e, nil
	case xir.NestedBlock:
		blk, err := r.block(e.Block)
		if err != nil {
			return nil, err
		}
		e.Block = blk
		return e, nil
	default:
		return e, nil
	}
}

// resolveValue checks a GlobalAddress against the global table and fills
// in its type when left as Tnull
func (ts *tables) resolveValue(v xir.Value) (xir.Value, error) {
	ga, ok := v.(xir.GlobalAddress)
	if !ok {
		return v, nil
	}
	ty, err := ts.globalType(ga)
	if err != nil {
		return nil, err
	}
	ga.Ty = ty
	return ga, nil
}

// globalType returns the type of the global a GlobalAddress names. The
// global must be declared; an explicit type must unify with its
// declaration.
func (ts *tables) globalType(ga xir.GlobalAddress) (xir.Type, error) {
	declared, found := ts.tys[ga.Item.Key()]
	if !found {
		return nil, newError(ErrCodeUnresolved, "global %s is not declared", ga.Item)
	}
	if isNull(ga.Ty) {
		return declared, nil
	}
	if err := ts.unify(declared, ga.Ty); err != nil {
		return nil, err
	}
	return ga.Ty, nil
}
