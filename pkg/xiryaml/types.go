package xiryaml

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// decodeType reads a type. Strings are shorthands: scalar names such as
// i32, u8, f64, fixed32.16 or char8 with an optional xN vector suffix,
// void, _ for the unknown type, ::path for a Named type and *T for a
// pointer. Everything else is a mapping keyed by the type constructor.
func decodeType(n *yaml.Node) (xir.Type, error) {
	n = deref(n)
	if n == nil {
		return nil, errorf(nil, "missing type")
	}
	if n.Kind == yaml.ScalarNode {
		return parseTypeString(n, n.Value)
	}
	if err := expect(n, yaml.MappingNode, "type"); err != nil {
		return nil, err
	}
	if len(n.Content) == 0 {
		return nil, errorf(n, "type: empty mapping")
	}

	key := n.Content[0].Value
	val := deref(n.Content[1])
	switch key {
	case "scalar":
		return decodeScalar(n)
	case "named":
		s, err := str(val, "named")
		if err != nil {
			return nil, err
		}
		return xir.Named(s), nil
	case "pointer":
		return decodePointer(val)
	case "fn":
		return decodeFnType(val)
	case "struct", "union":
		return decodeAggregateType(n, key)
	case "product":
		elems, err := decodeTypes(val, "product")
		if err != nil {
			return nil, err
		}
		return xir.Tproduct{Elems: elems}, nil
	case "array":
		if err := checkKeys(val, "array", "of", "len"); err != nil {
			return nil, err
		}
		of, err := required(val, "of", "array")
		if err != nil {
			return nil, err
		}
		elem, err := decodeType(of)
		if err != nil {
			return nil, err
		}
		ln, err := required(val, "len", "array")
		if err != nil {
			return nil, err
		}
		lv, err := decodeSize(ln, "array.len")
		if err != nil {
			return nil, err
		}
		return xir.Tarray{Elem: elem, Len: lv}, nil
	case "tagged":
		if err := checkKeys(val, "tagged", "tag", "type"); err != nil {
			return nil, err
		}
		tn, err := required(val, "tag", "tagged")
		if err != nil {
			return nil, err
		}
		tag, err := u16(tn, "tagged.tag")
		if err != nil {
			return nil, err
		}
		inner, err := innerType(val, "tagged")
		if err != nil {
			return nil, err
		}
		return xir.Ttagged{Tag: tag, Inner: inner}, nil
	case "aligned":
		if err := checkKeys(val, "aligned", "align", "type"); err != nil {
			return nil, err
		}
		an, err := required(val, "align", "aligned")
		if err != nil {
			return nil, err
		}
		align, err := decodeSize(an, "aligned.align")
		if err != nil {
			return nil, err
		}
		inner, err := innerType(val, "aligned")
		if err != nil {
			return nil, err
		}
		return xir.Taligned{Align: align, Inner: inner}, nil
	default:
		return nil, errorf(n.Content[0], "unknown type constructor %q", key)
	}
}

func innerType(n *yaml.Node, what string) (xir.Type, error) {
	tn, err := required(n, "type", what)
	if err != nil {
		return nil, err
	}
	return decodeType(tn)
}

func decodeTypes(n *yaml.Node, what string) ([]xir.Type, error) {
	nodes, err := seq(n, what)
	if err != nil {
		return nil, err
	}
	out := make([]xir.Type, len(nodes))
	for i, c := range nodes {
		if out[i], err = decodeType(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeSize reads a length or alignment: a plain number is a u64 constant,
// anything else is a full value
func decodeSize(n *yaml.Node, what string) (xir.Value, error) {
	if n.Kind == yaml.ScalarNode {
		v, err := uintN(n, 64, what)
		if err != nil {
			return nil, err
		}
		return xir.Integer{Ty: xir.UInt(64), Val: v}, nil
	}
	return decodeValue(n)
}

func parseTypeString(n *yaml.Node, s string) (xir.Type, error) {
	switch {
	case s == "void":
		return xir.Tvoid{}, nil
	case s == "_" || s == "null" || s == "":
		return xir.Tnull{}, nil
	case strings.HasPrefix(s, "*"):
		inner, err := parseTypeString(n, strings.TrimSpace(s[1:]))
		if err != nil {
			return nil, err
		}
		return xir.Pointer(inner), nil
	case strings.HasPrefix(s, "::"):
		return xir.Named(s), nil
	}
	sc, ok := parseScalar(s)
	if !ok {
		return nil, errorf(n, "unknown type %q (Named types are written ::path)", s)
	}
	return sc, nil
}

// parseScalar reads the scalar shorthand written by Tscalar.String
func parseScalar(s string) (xir.Tscalar, bool) {
	var vec uint16
	if i := strings.LastIndexByte(s, 'x'); i > 0 {
		if n, err := strconv.ParseUint(s[i+1:], 10, 16); err == nil {
			s, vec = s[:i], uint16(n)
		}
	}

	width := func(rest string) (uint16, bool) {
		n, err := strconv.ParseUint(rest, 10, 16)
		return uint16(n), err == nil && n > 0
	}

	var t xir.Tscalar
	var ok bool
	switch {
	case strings.HasPrefix(s, "longfloat"):
		t.Header.BitSize, ok = width(s[len("longfloat"):])
		t.Kind = xir.LongFloatKind{}
	case strings.HasPrefix(s, "fixed"):
		size, fract, found := strings.Cut(s[len("fixed"):], ".")
		if !found {
			return t, false
		}
		var f uint16
		t.Header.BitSize, ok = width(size)
		if fb, err := strconv.ParseUint(fract, 10, 16); err == nil && ok {
			f = uint16(fb)
		} else {
			ok = false
		}
		t.Kind = xir.FixedKind{FractBits: f}
	case strings.HasPrefix(s, "empty"):
		t.Header.BitSize, ok = width(s[len("empty"):])
		t.Kind = xir.EmptyKind{}
	case strings.HasPrefix(s, "uchar"):
		t.Header.BitSize, ok = width(s[len("uchar"):])
		t.Kind = xir.CharKind{Flags: xir.CharUnicode}
	case strings.HasPrefix(s, "schar"):
		t.Header.BitSize, ok = width(s[len("schar"):])
		t.Kind = xir.CharKind{Flags: xir.CharSigned}
	case strings.HasPrefix(s, "char"):
		t.Header.BitSize, ok = width(s[len("char"):])
		t.Kind = xir.CharKind{}
	case strings.HasPrefix(s, "i"):
		t.Header.BitSize, ok = width(s[1:])
		t.Kind = xir.IntegerKind{Signed: true}
	case strings.HasPrefix(s, "u"):
		t.Header.BitSize, ok = width(s[1:])
		t.Kind = xir.IntegerKind{}
	case strings.HasPrefix(s, "f"):
		t.Header.BitSize, ok = width(s[1:])
		t.Kind = xir.FloatKind{}
	case strings.HasPrefix(s, "d"):
		t.Header.BitSize, ok = width(s[1:])
		t.Kind = xir.FloatKind{Decimal: true}
	}
	t.Header.VectorSize = vec
	return t, ok
}

var validityNames = map[string]xir.ScalarValidity{
	"nonzero": xir.ValidNonzero,
	"finite":  xir.ValidFinite,
	"nonnan":  xir.ValidNonNaN,
}

// decodeScalar reads {scalar: i32, validity: [nonzero], min: 0, max: 9}
func decodeScalar(n *yaml.Node) (xir.Tscalar, error) {
	if err := checkKeys(n, "scalar", "scalar", "validity", "min", "max"); err != nil {
		return xir.Tscalar{}, err
	}
	sn := field(n, "scalar")
	s, err := str(sn, "scalar")
	if err != nil {
		return xir.Tscalar{}, err
	}
	t, ok := parseScalar(s)
	if !ok {
		return xir.Tscalar{}, errorf(sn, "unknown scalar type %q", s)
	}
	if vn := field(n, "validity"); vn != nil {
		flags, err := seq(vn, "scalar.validity")
		if err != nil {
			return xir.Tscalar{}, err
		}
		for _, f := range flags {
			v, ok := validityNames[f.Value]
			if !ok {
				return xir.Tscalar{}, errorf(f, "unknown validity %q", f.Value)
			}
			t.Header.Validity |= v
		}
	}
	minN, maxN := field(n, "min"), field(n, "max")
	if minN != nil || maxN != nil {
		ik, isInt := t.Kind.(xir.IntegerKind)
		if !isInt {
			return xir.Tscalar{}, errorf(n, "scalar: min and max apply only to integers")
		}
		if ik.Min, err = int64Ptr(minN, "scalar.min"); err != nil {
			return xir.Tscalar{}, err
		}
		if ik.Max, err = int64Ptr(maxN, "scalar.max"); err != nil {
			return xir.Tscalar{}, err
		}
		t.Kind = ik
	}
	return t, nil
}

// decodeScalarType reads a type that must be a scalar
func decodeScalarType(n *yaml.Node, what string) (xir.Tscalar, error) {
	ty, err := decodeType(n)
	if err != nil {
		return xir.Tscalar{}, err
	}
	sc, ok := ty.(xir.Tscalar)
	if !ok {
		return xir.Tscalar{}, errorf(n, "%s: %s is not a scalar type", what, ty)
	}
	return sc, nil
}

// decodePointer reads {to: T, alias: unique, range: {kind: dereference, size: 4}, ref: true}
func decodePointer(n *yaml.Node) (xir.Tpointer, error) {
	if n.Kind == yaml.ScalarNode {
		inner, err := parseTypeString(n, n.Value)
		if err != nil {
			return xir.Tpointer{}, err
		}
		return xir.Pointer(inner), nil
	}
	if err := checkKeys(n, "pointer", "to", "alias", "range", "ref"); err != nil {
		return xir.Tpointer{}, err
	}
	to, err := required(n, "to", "pointer")
	if err != nil {
		return xir.Tpointer{}, err
	}
	inner, err := decodeType(to)
	if err != nil {
		return xir.Tpointer{}, err
	}
	p := xir.Pointer(inner)

	if an := field(n, "alias"); an != nil {
		rule, ok := xir.ParseAliasingRule(an.Value)
		if !ok {
			return p, errorf(an, "unknown aliasing rule %q", an.Value)
		}
		p.Alias = rule
	}
	if rn := field(n, "range"); rn != nil {
		if err := checkKeys(rn, "pointer.range", "kind", "size"); err != nil {
			return p, err
		}
		kn, err := required(rn, "kind", "pointer.range")
		if err != nil {
			return p, err
		}
		kind, ok := xir.ParseValidRangeType(kn.Value)
		if !ok {
			return p, errorf(kn, "unknown valid range %q", kn.Value)
		}
		p.ValidRange.Kind = kind
		if sn := field(rn, "size"); sn != nil {
			if p.ValidRange.Size, err = uintN(sn, 64, "pointer.range.size"); err != nil {
				return p, err
			}
		}
	}
	ref, err := optBool(n, "ref", "pointer")
	if err != nil {
		return p, err
	}
	if ref {
		p.Decl = xir.DeclReference
	}
	return p, nil
}

// decodeFnType reads {ret: T, params: [T...], variadic: false, abi: C}
func decodeFnType(n *yaml.Node) (xir.Tfunction, error) {
	if err := expect(n, yaml.MappingNode, "fn"); err != nil {
		return xir.Tfunction{}, err
	}
	if err := checkKeys(n, "fn", "ret", "params", "variadic", "abi"); err != nil {
		return xir.Tfunction{}, err
	}
	fn := xir.Tfunction{Ret: xir.Tvoid{}}
	var err error
	if rn := field(n, "ret"); rn != nil {
		if fn.Ret, err = decodeType(rn); err != nil {
			return fn, err
		}
	}
	if pn := field(n, "params"); pn != nil {
		if fn.Params, err = decodeTypes(pn, "fn.params"); err != nil {
			return fn, err
		}
	}
	if fn.Variadic, err = optBool(n, "variadic", "fn"); err != nil {
		return fn, err
	}
	if an := field(n, "abi"); an != nil {
		abi, ok := xir.ParseAbi(an.Value)
		if !ok {
			return fn, errorf(an, "unknown calling convention %q", an.Value)
		}
		fn.Tag = abi
	}
	return fn, nil
}

// decodeFields reads [{x: i32}, {y: i32}] preserving field order
func decodeFields(n *yaml.Node, what string) ([]xir.AggregateField, error) {
	nodes, err := seq(n, what)
	if err != nil {
		return nil, err
	}
	fields := make([]xir.AggregateField, len(nodes))
	for i, fn := range nodes {
		name, tn, err := single(fn, what)
		if err != nil {
			return nil, err
		}
		ty, err := decodeType(tn)
		if err != nil {
			return nil, err
		}
		fields[i] = xir.AggregateField{Name: name, Ty: ty}
	}
	return fields, nil
}

// decodeAggregateType reads {struct: [fields], annotations: [...]}
func decodeAggregateType(n *yaml.Node, key string) (xir.Taggregate, error) {
	kind, fields, annots, err := decodeAggregateBody(n, key)
	if err != nil {
		return xir.Taggregate{}, err
	}
	return xir.Taggregate{Kind: kind, Annotations: annots, Fields: fields}, nil
}

func decodeAggregateBody(n *yaml.Node, key string) (xir.AggregateKind, []xir.AggregateField, []xir.Annotation, error) {
	if err := checkKeys(n, key, key, "annotations"); err != nil {
		return 0, nil, nil, err
	}
	kind := xir.KindStruct
	if key == "union" {
		kind = xir.KindUnion
	}
	fields, err := decodeFields(field(n, key), key)
	if err != nil {
		return 0, nil, nil, err
	}
	var annots []xir.Annotation
	if an := field(n, "annotations"); an != nil {
		if annots, err = decodeAnnotations(an); err != nil {
			return 0, nil, nil, err
		}
	}
	return kind, fields, annots, nil
}

// decodeAnnotations reads [[a, {b: [c]}]]: a list of annotations, each a
// list of items, where a one-key mapping is an item with nested meta
func decodeAnnotations(n *yaml.Node) ([]xir.Annotation, error) {
	nodes, err := seq(n, "annotations")
	if err != nil {
		return nil, err
	}
	out := make([]xir.Annotation, len(nodes))
	for i, an := range nodes {
		a, err := decodeAnnotation(an)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func decodeAnnotation(n *yaml.Node) (xir.Annotation, error) {
	items, err := seq(n, "annotation")
	if err != nil {
		return xir.Annotation{}, err
	}
	var a xir.Annotation
	for _, it := range items {
		if it.Kind == yaml.ScalarNode {
			a.Items = append(a.Items, xir.AnnotationItem{Ident: xir.ParsePath(it.Value)})
			continue
		}
		name, meta, err := single(it, "annotation item")
		if err != nil {
			return a, err
		}
		inner, err := decodeAnnotation(meta)
		if err != nil {
			return a, err
		}
		a.Items = append(a.Items, xir.AnnotationItem{Ident: xir.ParsePath(name), Meta: &inner})
	}
	return a, nil
}
