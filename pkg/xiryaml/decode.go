// Package xiryaml decodes xir files written in YAML.
//
// A file looks like:
//
//	version: 1.0.0
//	target: x86_64-pc-linux-gnu
//	members:
//	  - path: "::add"
//	    function:
//	      sig: {ret: i32, params: [i32, i32]}
//	      body:
//	        - local: 0
//	        - as_rvalue
//	        - local: 1
//	        - as_rvalue
//	        - add: unchecked
//	        - exit: {blk: 0, values: 1}
//
// Paths and pointer shorthands such as "*u8" need quotes: YAML reads a
// leading * as an alias. Anchors and aliases may otherwise be used freely
// to share common types. Unknown keys are rejected. Errors carry the line
// they were found on.
package xiryaml

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// Decode reads one File from r.
func Decode(r io.Reader) (*xir.File, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Msg: "empty document"}
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &DecodeError{Msg: "empty document"}
	}
	return decodeFile(deref(doc.Content[0]))
}

// DecodeFile reads a File from the YAML file at path.
func DecodeFile(path string) (*xir.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

func decodeFile(n *yaml.Node) (*xir.File, error) {
	if err := checkKeys(n, "file", "version", "target", "annotations", "members"); err != nil {
		return nil, err
	}
	f := &xir.File{}
	var err error
	if vn := field(n, "version"); vn != nil {
		if f.Version, err = str(vn, "version"); err != nil {
			return nil, err
		}
	}
	if tn := field(n, "target"); tn != nil {
		if f.Target, err = str(tn, "target"); err != nil {
			return nil, err
		}
	}
	if f.Root, err = decodeScope(n); err != nil {
		return nil, err
	}
	return f, nil
}

// decodeScope reads the annotations and members keys of n
func decodeScope(n *yaml.Node) (xir.Scope, error) {
	var s xir.Scope
	var err error
	if an := field(n, "annotations"); an != nil {
		if s.Annotations, err = decodeAnnotations(an); err != nil {
			return s, err
		}
	}
	mn := field(n, "members")
	if mn == nil {
		return s, nil
	}
	nodes, err := seq(mn, "members")
	if err != nil {
		return s, err
	}
	for _, m := range nodes {
		e, err := decodeMember(m)
		if err != nil {
			return s, err
		}
		s.Members = append(s.Members, e)
	}
	return s, nil
}

var visibilities = map[string]xir.Visibility{
	"public":  xir.Public,
	"origin":  xir.Origin,
	"module":  xir.Module,
	"private": xir.Private,
	"none":    xir.None,
}

var declKeys = []string{"function", "static", "struct", "union", "opaque", "scope"}

func decodeMember(n *yaml.Node) (xir.ScopeEntry, error) {
	var e xir.ScopeEntry
	allowed := append([]string{"path", "visibility", "annotations"}, declKeys...)
	if err := checkKeys(n, "member", allowed...); err != nil {
		return e, err
	}
	pn, err := required(n, "path", "member")
	if err != nil {
		return e, err
	}
	p, err := str(pn, "member.path")
	if err != nil {
		return e, err
	}
	e.Path = xir.ParsePath(p)

	if vn := field(n, "visibility"); vn != nil {
		vis, ok := visibilities[vn.Value]
		if !ok {
			return e, errorf(vn, "unknown visibility %q", vn.Value)
		}
		e.Member.Vis = vis
	}
	if an := field(n, "annotations"); an != nil {
		if e.Member.Annotations, err = decodeAnnotations(an); err != nil {
			return e, err
		}
	}

	var declKey string
	for _, k := range declKeys {
		if field(n, k) == nil {
			continue
		}
		if declKey != "" {
			return e, errorf(n, "member %s: both %s and %s given", p, declKey, k)
		}
		declKey = k
	}
	val := field(n, declKey)

	switch declKey {
	case "":
		e.Member.Decl = xir.EmptyMember{}
	case "function":
		e.Member.Decl, err = decodeFunction(val)
	case "static":
		e.Member.Decl, err = decodeStatic(val)
	case "struct", "union":
		e.Member.Decl, err = decodeAggregateDef(val, declKey)
	case "opaque":
		kind := xir.KindStruct
		switch val.Value {
		case "struct":
		case "union":
			kind = xir.KindUnion
		default:
			return e, errorf(val, "opaque: expected struct or union, got %q", val.Value)
		}
		e.Member.Decl = xir.OpaqueAggregate{Kind: kind}
	case "scope":
		if err := checkKeys(val, "scope", "annotations", "members"); err != nil {
			return e, err
		}
		var sc xir.Scope
		sc, err = decodeScope(val)
		e.Member.Decl = xir.ScopeDecl{Scope: sc}
	}
	if err != nil {
		return e, err
	}
	return e, nil
}

// decodeFunction reads {sig: <fn>, locals: [T...], body: [items]}. A
// function without a body is a declaration.
func decodeFunction(n *yaml.Node) (xir.FunctionDeclaration, error) {
	var fn xir.FunctionDeclaration
	if err := checkKeys(n, "function", "sig", "locals", "body"); err != nil {
		return fn, err
	}
	sn, err := required(n, "sig", "function")
	if err != nil {
		return fn, err
	}
	if fn.Ty, err = decodeFnType(sn); err != nil {
		return fn, err
	}
	bn := field(n, "body")
	ln := field(n, "locals")
	if bn == nil {
		if ln != nil {
			return fn, errorf(ln, "function: locals given without a body")
		}
		return fn, nil
	}
	body := &xir.FunctionBody{}
	if ln != nil {
		if body.Locals, err = decodeTypes(ln, "function.locals"); err != nil {
			return fn, err
		}
	}
	if body.Block, err = decodeBlock(bn); err != nil {
		return fn, err
	}
	fn.Body = body
	return fn, nil
}

// decodeStatic reads {type: T, init: V}
func decodeStatic(n *yaml.Node) (xir.StaticDefinition, error) {
	var sd xir.StaticDefinition
	if err := checkKeys(n, "static", "type", "init"); err != nil {
		return sd, err
	}
	ty, err := innerType(n, "static")
	if err != nil {
		return sd, err
	}
	sd.Ty = ty
	if in := field(n, "init"); in != nil {
		if sd.Init, err = decodeValue(in); err != nil {
			return sd, err
		}
	}
	return sd, nil
}

// decodeAggregateDef reads [fields] or {fields: [...], annotations: [...]}
func decodeAggregateDef(n *yaml.Node, key string) (xir.AggregateDefinition, error) {
	def := xir.AggregateDefinition{Kind: xir.KindStruct}
	if key == "union" {
		def.Kind = xir.KindUnion
	}
	var err error
	if n.Kind == yaml.SequenceNode {
		def.Fields, err = decodeFields(n, key)
		return def, err
	}
	if err := checkKeys(n, key, "fields", "annotations"); err != nil {
		return def, err
	}
	if fn := field(n, "fields"); fn != nil {
		if def.Fields, err = decodeFields(fn, key+".fields"); err != nil {
			return def, err
		}
	}
	if an := field(n, "annotations"); an != nil {
		if def.Annotations, err = decodeAnnotations(an); err != nil {
			return def, err
		}
	}
	return def, nil
}
