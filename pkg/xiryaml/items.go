package xiryaml

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// decodeValue reads a constant: {int: i32, value: 2}, {global: ::f},
// {bytes: "..."}, {string: "...", type: T}, {invalid: T}, {uninit: T},
// {param: 0} or {label: 3}.
func decodeValue(n *yaml.Node) (xir.Value, error) {
	n = deref(n)
	if err := expect(n, yaml.MappingNode, "value"); err != nil {
		return nil, err
	}
	if len(n.Content) == 0 {
		return nil, errorf(n, "value: empty mapping")
	}
	key := n.Content[0].Value
	val := deref(n.Content[1])

	switch key {
	case "int":
		if err := checkKeys(n, "int", "int", "value"); err != nil {
			return nil, err
		}
		ty, err := decodeScalarType(val, "int")
		if err != nil {
			return nil, err
		}
		vn, err := required(n, "value", "int")
		if err != nil {
			return nil, err
		}
		b, err := intConst(vn, ty, "int.value")
		if err != nil {
			return nil, err
		}
		return xir.Integer{Ty: ty, Val: b}, nil
	case "global":
		if err := checkKeys(n, "global", "global", "type"); err != nil {
			return nil, err
		}
		p, err := str(val, "global")
		if err != nil {
			return nil, err
		}
		var ty xir.Type = xir.Tnull{}
		if tn := field(n, "type"); tn != nil {
			if ty, err = decodeType(tn); err != nil {
				return nil, err
			}
		}
		return xir.GlobalAddress{Ty: ty, Item: xir.ParsePath(p)}, nil
	case "bytes":
		if err := checkKeys(n, "bytes", "bytes"); err != nil {
			return nil, err
		}
		s, err := str(val, "bytes")
		if err != nil {
			return nil, err
		}
		return xir.ByteString{Content: []byte(s)}, nil
	case "string":
		if err := checkKeys(n, "string", "string", "type"); err != nil {
			return nil, err
		}
		s, err := str(val, "string")
		if err != nil {
			return nil, err
		}
		ty, err := innerType(n, "string")
		if err != nil {
			return nil, err
		}
		return xir.StringLit{Utf8: s, Ty: ty}, nil
	case "invalid":
		ty, err := decodeType(val)
		if err != nil {
			return nil, err
		}
		return xir.Invalid{Ty: ty}, nil
	case "uninit":
		ty, err := decodeType(val)
		if err != nil {
			return nil, err
		}
		return xir.Uninitialized{Ty: ty}, nil
	case "param":
		idx, err := u32(val, "param")
		if err != nil {
			return nil, err
		}
		return xir.GenericParameter{Index: idx}, nil
	case "label":
		num, err := u32(val, "label")
		if err != nil {
			return nil, err
		}
		return xir.LabelAddress{Target: num}, nil
	default:
		return nil, errorf(n.Content[0], "unknown value kind %q", key)
	}
}

// decodeBlock reads a list of block items
func decodeBlock(n *yaml.Node) (xir.Block, error) {
	nodes, err := seq(n, "block")
	if err != nil {
		return xir.Block{}, err
	}
	items := make([]xir.BlockItem, len(nodes))
	for i, in := range nodes {
		if items[i], err = decodeItem(in); err != nil {
			return xir.Block{}, err
		}
	}
	return xir.Block{Items: items}, nil
}

// decodeItem reads one block item. Operand-free instructions may be written
// as a bare mnemonic; everything else is a one-key mapping from the
// mnemonic to its operands.
func decodeItem(n *yaml.Node) (xir.BlockItem, error) {
	if n.Kind == yaml.ScalarNode {
		return decodeExpr(n.Value, nil, n)
	}
	op, val, err := single(n, "item")
	if err != nil {
		return nil, err
	}
	if op == "target" {
		return decodeTarget(val)
	}
	return decodeExpr(op, val, n)
}

func decodeTarget(n *yaml.Node) (xir.Target, error) {
	if err := expect(n, yaml.MappingNode, "target"); err != nil {
		return xir.Target{}, err
	}
	if err := checkKeys(n, "target", "num", "stack"); err != nil {
		return xir.Target{}, err
	}
	nn, err := required(n, "num", "target")
	if err != nil {
		return xir.Target{}, err
	}
	num, err := u32(nn, "target.num")
	if err != nil {
		return xir.Target{}, err
	}
	t := xir.Target{Num: num}
	if sn := field(n, "stack"); sn != nil {
		if t.Stack, err = decodeStack(sn); err != nil {
			return t, err
		}
	}
	return t, nil
}

// decodeStack reads [{rvalue: i32}, {lvalue: T}]
func decodeStack(n *yaml.Node) ([]xir.StackItem, error) {
	nodes, err := seq(n, "stack")
	if err != nil {
		return nil, err
	}
	out := make([]xir.StackItem, len(nodes))
	for i, sn := range nodes {
		kind, tn, err := single(sn, "stack item")
		if err != nil {
			return nil, err
		}
		ty, err := decodeType(tn)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "rvalue":
			out[i] = xir.RValue(ty)
		case "lvalue":
			out[i] = xir.LValue(ty)
		default:
			return nil, errorf(sn, "stack item: expected rvalue or lvalue, got %q", kind)
		}
	}
	return out, nil
}

// decodeExpr builds the instruction for mnemonic op. val is nil for the
// bare form.
func decodeExpr(op string, val *yaml.Node, at *yaml.Node) (xir.Expr, error) {
	need := func() error {
		if val == nil {
			return errorf(at, "%s: missing operands", op)
		}
		return nil
	}

	if bop, ok := xir.ParseBinaryOp(op); ok {
		ov, err := decodeOverflow(val, op)
		if err != nil {
			return nil, err
		}
		return xir.BinaryOpExpr{Op: bop, Overflow: ov}, nil
	}
	if uop, ok := xir.ParseUnaryOp(op); ok {
		ov, err := decodeOverflow(val, op)
		if err != nil {
			return nil, err
		}
		return xir.UnaryOpExpr{Op: uop, Overflow: ov}, nil
	}
	if lop, ok := xir.ParseLValueOp(op); ok {
		ov, access, err := decodeOverflowAccess(val, op)
		if err != nil {
			return nil, err
		}
		return xir.LValueOp{Op: lop, Overflow: ov, Access: access}, nil
	}

	switch op {
	case "null":
		return xir.Null{}, nil
	case "const":
		if err := need(); err != nil {
			return nil, err
		}
		v, err := decodeValue(val)
		if err != nil {
			return nil, err
		}
		return xir.Const{Val: v}, nil
	case "exit":
		if err := need(); err != nil {
			return nil, err
		}
		if err := checkKeys(val, "exit", "blk", "values"); err != nil {
			return nil, err
		}
		e := xir.ExitBlock{}
		var err error
		if bn := field(val, "blk"); bn != nil {
			if e.Blk, err = u32(bn, "exit.blk"); err != nil {
				return nil, err
			}
		}
		if vn := field(val, "values"); vn != nil {
			if e.Values, err = u16(vn, "exit.values"); err != nil {
				return nil, err
			}
		}
		return e, nil
	case "call", "tailcall":
		if err := need(); err != nil {
			return nil, err
		}
		sig, err := decodeFnType(val)
		if err != nil {
			return nil, err
		}
		if op == "tailcall" {
			return xir.Tailcall{Sig: sig}, nil
		}
		return xir.CallFunction{Sig: sig}, nil
	case "branch":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeBranch(val)
	case "branch_indirect":
		return xir.BranchIndirect{}, nil
	case "convert":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeConvert(val)
	case "derive":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeDerive(val)
	case "local", "pop", "dup":
		if err := need(); err != nil {
			return nil, err
		}
		k, err := u32(val, op)
		if err != nil {
			return nil, err
		}
		switch op {
		case "local":
			return xir.Local{N: k}, nil
		case "pop":
			return xir.Pop{N: k}, nil
		default:
			return xir.Dup{N: k}, nil
		}
	case "pivot":
		if err := need(); err != nil {
			return nil, err
		}
		nodes, err := seq(val, "pivot")
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, errorf(val, "pivot: expected [n, m]")
		}
		nn, err := u32(nodes[0], "pivot.n")
		if err != nil {
			return nil, err
		}
		mm, err := u32(nodes[1], "pivot.m")
		if err != nil {
			return nil, err
		}
		return xir.Pivot{N: nn, M: mm}, nil
	case "aggregate":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeAggregateExpr(val)
	case "member", "member_indirect":
		if err := need(); err != nil {
			return nil, err
		}
		name, err := str(val, op)
		if err != nil {
			return nil, err
		}
		if op == "member" {
			return xir.Member{Name: name}, nil
		}
		return xir.MemberIndirect{Name: name}, nil
	case "block":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeNestedBlock(val)
	case "assign", "as_rvalue", "sequence", "fence":
		access, err := decodeAccess(val, op)
		if err != nil {
			return nil, err
		}
		switch op {
		case "assign":
			return xir.Assign{Access: access}, nil
		case "as_rvalue":
			return xir.AsRValue{Access: access}, nil
		case "sequence":
			return xir.Sequence{Access: access}, nil
		default:
			return xir.Fence{Access: access}, nil
		}
	case "compound_assign":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeCompoundAssign(val)
	case "indirect":
		return xir.Indirect{}, nil
	case "addr_of":
		return xir.AddrOf{}, nil
	case "switch":
		if err := need(); err != nil {
			return nil, err
		}
		return decodeSwitch(val)
	default:
		return nil, errorf(at, "unknown instruction %q", op)
	}
}

func decodeOverflow(n *yaml.Node, what string) (xir.OverflowBehaviour, error) {
	if n == nil {
		return xir.Wrap, nil
	}
	s, err := str(n, what)
	if err != nil {
		return xir.Wrap, err
	}
	ov, ok := xir.ParseOverflowBehaviour(s)
	if !ok {
		return xir.Wrap, errorf(n, "%s: unknown overflow behaviour %q", what, s)
	}
	return ov, nil
}

// decodeAccess reads a space separated access class such as "atomic volatile"
func decodeAccess(n *yaml.Node, what string) (xir.AccessClass, error) {
	if n == nil {
		return xir.AccessNormal, nil
	}
	s, err := str(n, what)
	if err != nil {
		return xir.AccessNormal, err
	}
	var a xir.AccessClass
	for _, w := range strings.Fields(s) {
		switch w {
		case "normal":
		case "atomic":
			a |= xir.AccessAtomic
		case "volatile":
			a |= xir.AccessVolatile
		case "nontemporal":
			a |= xir.AccessNontemp
		case "freeze":
			a |= xir.AccessFreeze
		default:
			return a, errorf(n, "%s: unknown access class %q", what, w)
		}
	}
	return a, nil
}

// decodeOverflowAccess reads either a bare overflow behaviour or
// {overflow: checked, access: atomic}
func decodeOverflowAccess(n *yaml.Node, what string) (xir.OverflowBehaviour, xir.AccessClass, error) {
	if n == nil || n.Kind == yaml.ScalarNode {
		ov, err := decodeOverflow(n, what)
		return ov, xir.AccessNormal, err
	}
	if err := checkKeys(n, what, "overflow", "access"); err != nil {
		return xir.Wrap, xir.AccessNormal, err
	}
	ov, err := decodeOverflow(field(n, "overflow"), what)
	if err != nil {
		return ov, xir.AccessNormal, err
	}
	access, err := decodeAccess(field(n, "access"), what)
	return ov, access, err
}

// decodeBranch reads {cond: less, target: 2}, or a bare target number for
// an unconditional branch
func decodeBranch(n *yaml.Node) (xir.Branch, error) {
	if n.Kind == yaml.ScalarNode {
		t, err := u32(n, "branch")
		return xir.Branch{Cond: xir.Always, Target: t}, err
	}
	if err := checkKeys(n, "branch", "cond", "target"); err != nil {
		return xir.Branch{}, err
	}
	b := xir.Branch{Cond: xir.Always}
	if cn := field(n, "cond"); cn != nil {
		cond, ok := xir.ParseBranchCondition(cn.Value)
		if !ok {
			return b, errorf(cn, "unknown branch condition %q", cn.Value)
		}
		b.Cond = cond
	}
	tn, err := required(n, "target", "branch")
	if err != nil {
		return b, err
	}
	b.Target, err = u32(tn, "branch.target")
	return b, err
}

// decodeConvert reads {strength: weak, type: T}
func decodeConvert(n *yaml.Node) (xir.Convert, error) {
	if err := checkKeys(n, "convert", "strength", "type"); err != nil {
		return xir.Convert{}, err
	}
	c := xir.Convert{Strength: xir.ConvStrong}
	if sn := field(n, "strength"); sn != nil {
		s, ok := xir.ParseConversionStrength(sn.Value)
		if !ok {
			return c, errorf(sn, "unknown conversion strength %q", sn.Value)
		}
		c.Strength = s
	}
	ty, err := innerType(n, "convert")
	if err != nil {
		return c, err
	}
	c.Ty = ty
	return c, nil
}

// decodeDerive reads {ptr: <pointer>, expr: <item>}
func decodeDerive(n *yaml.Node) (xir.Derive, error) {
	if err := checkKeys(n, "derive", "ptr", "expr"); err != nil {
		return xir.Derive{}, err
	}
	pn, err := required(n, "ptr", "derive")
	if err != nil {
		return xir.Derive{}, err
	}
	ptr, err := decodePointer(pn)
	if err != nil {
		return xir.Derive{}, err
	}
	en, err := required(n, "expr", "derive")
	if err != nil {
		return xir.Derive{}, err
	}
	item, err := decodeItem(en)
	if err != nil {
		return xir.Derive{}, err
	}
	inner, ok := item.(xir.Expr)
	if !ok {
		return xir.Derive{}, errorf(en, "derive: operand must be an instruction")
	}
	return xir.Derive{Ptr: ptr, Inner: inner}, nil
}

// decodeAggregateExpr reads {type: T, fields: [x, y]}
func decodeAggregateExpr(n *yaml.Node) (xir.Aggregate, error) {
	if err := checkKeys(n, "aggregate", "type", "fields"); err != nil {
		return xir.Aggregate{}, err
	}
	ty, err := innerType(n, "aggregate")
	if err != nil {
		return xir.Aggregate{}, err
	}
	a := xir.Aggregate{Ty: ty}
	if fn := field(n, "fields"); fn != nil {
		names, err := seq(fn, "aggregate.fields")
		if err != nil {
			return a, err
		}
		for _, name := range names {
			a.Fields = append(a.Fields, name.Value)
		}
	}
	return a, nil
}

// decodeNestedBlock reads {n: 1, items: [...]}
func decodeNestedBlock(n *yaml.Node) (xir.NestedBlock, error) {
	if err := checkKeys(n, "block", "n", "items"); err != nil {
		return xir.NestedBlock{}, err
	}
	nn, err := required(n, "n", "block")
	if err != nil {
		return xir.NestedBlock{}, err
	}
	ord, err := u32(nn, "block.n")
	if err != nil {
		return xir.NestedBlock{}, err
	}
	nb := xir.NestedBlock{N: ord}
	if in := field(n, "items"); in != nil {
		if nb.Block, err = decodeBlock(in); err != nil {
			return nb, err
		}
	}
	return nb, nil
}

// decodeCompoundAssign reads {op: add, overflow: wrap, access: normal}
func decodeCompoundAssign(n *yaml.Node) (xir.CompoundAssign, error) {
	if err := checkKeys(n, "compound_assign", "op", "overflow", "access"); err != nil {
		return xir.CompoundAssign{}, err
	}
	on, err := required(n, "op", "compound_assign")
	if err != nil {
		return xir.CompoundAssign{}, err
	}
	bop, ok := xir.ParseBinaryOp(on.Value)
	if !ok {
		return xir.CompoundAssign{}, errorf(on, "unknown binary operator %q", on.Value)
	}
	c := xir.CompoundAssign{Op: bop}
	if c.Overflow, err = decodeOverflow(field(n, "overflow"), "compound_assign"); err != nil {
		return c, err
	}
	c.Access, err = decodeAccess(field(n, "access"), "compound_assign")
	return c, err
}

// decodeSwitch reads {cases: [{value: V, target: 1}], default: 2} or
// {linear: {type: u32, min: 0, scale: 1, default: 3, cases: [1, 2]}}
func decodeSwitch(n *yaml.Node) (xir.Switch, error) {
	if err := expect(n, yaml.MappingNode, "switch"); err != nil {
		return xir.Switch{}, err
	}
	if ln := field(n, "linear"); ln != nil {
		if err := checkKeys(n, "switch", "linear"); err != nil {
			return xir.Switch{}, err
		}
		ls, err := decodeLinearSwitch(ln)
		return xir.Switch{Kind: ls}, err
	}
	if err := checkKeys(n, "switch", "cases", "default"); err != nil {
		return xir.Switch{}, err
	}
	var hs xir.HashSwitch
	if cn := field(n, "cases"); cn != nil {
		cases, err := seq(cn, "switch.cases")
		if err != nil {
			return xir.Switch{}, err
		}
		for _, c := range cases {
			if err := checkKeys(c, "switch case", "value", "target"); err != nil {
				return xir.Switch{}, err
			}
			vn, err := required(c, "value", "switch case")
			if err != nil {
				return xir.Switch{}, err
			}
			v, err := decodeValue(vn)
			if err != nil {
				return xir.Switch{}, err
			}
			tn, err := required(c, "target", "switch case")
			if err != nil {
				return xir.Switch{}, err
			}
			t, err := u32(tn, "switch case target")
			if err != nil {
				return xir.Switch{}, err
			}
			hs.Cases = append(hs.Cases, xir.SwitchCase{Val: v, Target: t})
		}
	}
	if dn := field(n, "default"); dn != nil {
		d, err := u32(dn, "switch.default")
		if err != nil {
			return xir.Switch{}, err
		}
		hs.Default = &d
	}
	return xir.Switch{Kind: hs}, nil
}

func decodeLinearSwitch(n *yaml.Node) (xir.LinearSwitch, error) {
	var ls xir.LinearSwitch
	if err := checkKeys(n, "linear", "type", "min", "scale", "default", "cases"); err != nil {
		return ls, err
	}
	tn, err := required(n, "type", "linear")
	if err != nil {
		return ls, err
	}
	if ls.Ty, err = decodeScalarType(tn, "linear.type"); err != nil {
		return ls, err
	}
	if mn := field(n, "min"); mn != nil {
		if ls.Min, err = bits(mn, "linear.min"); err != nil {
			return ls, err
		}
	}
	ls.Scale = 1
	if sn := field(n, "scale"); sn != nil {
		if ls.Scale, err = u32(sn, "linear.scale"); err != nil {
			return ls, err
		}
	}
	dn, err := required(n, "default", "linear")
	if err != nil {
		return ls, err
	}
	if ls.Default, err = u32(dn, "linear.default"); err != nil {
		return ls, err
	}
	if cn := field(n, "cases"); cn != nil {
		nodes, err := seq(cn, "linear.cases")
		if err != nil {
			return ls, err
		}
		for _, c := range nodes {
			t, err := u32(c, "linear case")
			if err != nil {
				return ls, err
			}
			ls.Cases = append(ls.Cases, t)
		}
	}
	return ls, nil
}

// intConst parses an integer constant and rejects values that do not fit
// the width and signedness of ty
func intConst(n *yaml.Node, ty xir.Tscalar, what string) (uint64, error) {
	v, err := bits(n, what)
	if err != nil {
		return 0, err
	}
	width := uint(ty.Header.BitSize)
	negative := strings.HasPrefix(strings.TrimSpace(n.Value), "-")

	signed := false
	switch k := ty.Kind.(type) {
	case xir.IntegerKind:
		signed = k.Signed
	case xir.CharKind:
		signed = k.Flags&xir.CharSigned != 0
	}

	if !signed {
		if negative {
			return 0, errorf(n, "%s: %s is negative but %s is unsigned", what, n.Value, ty)
		}
		if width < 64 && v >= 1<<width {
			return 0, errorf(n, "%s: %s does not fit in %s", what, n.Value, ty)
		}
		return v, nil
	}

	if width == 0 || width > 64 {
		return v, nil
	}
	lo, hi := -(int64(1) << (width - 1)), int64(uint64(1)<<(width-1)-1)
	if negative {
		if int64(v) < lo {
			return 0, errorf(n, "%s: %s does not fit in %s", what, n.Value, ty)
		}
		return v, nil
	}
	if v > uint64(hi) {
		return 0, errorf(n, "%s: %s does not fit in %s", what, n.Value, ty)
	}
	return v, nil
}
