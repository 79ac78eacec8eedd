package validate

import (
	"strconv"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// maxReifyDepth bounds chains of Named and wrapper types
const maxReifyDepth = 64

// tables is the global type state built by pass one. It is read-only while
// function bodies are checked, so concurrent checkers may share it.
type tables struct {
	// tys maps a global path key to the type of the function or static
	tys map[string]xir.Type
	// aggregates maps a path key to its definition; nil marks an opaque aggregate
	aggregates map[string]*xir.AggregateDefinition
}

func newTables() *tables {
	return &tables{
		tys:        make(map[string]xir.Type),
		aggregates: make(map[string]*xir.AggregateDefinition),
	}
}

// declared reports whether a path names any global
func (ts *tables) declared(p xir.Path) bool {
	key := p.Key()
	if _, ok := ts.tys[key]; ok {
		return true
	}
	_, ok := ts.aggregates[key]
	return ok
}

// reify strips tagged and aligned wrappers and resolves Named references to
// functions and statics. Named aggregates stay nominal.
func (ts *tables) reify(ty xir.Type) (xir.Type, error) {
	for range maxReifyDepth {
		switch t := ty.(type) {
		case nil:
			return nil, malformed("missing type")
		case xir.Ttagged:
			ty = t.Inner
		case xir.Taligned:
			ty = t.Inner
		case xir.Tnamed:
			key := t.Path.Key()
			if _, ok := ts.aggregates[key]; ok {
				return t, nil
			}
			r, ok := ts.tys[key]
			if !ok {
				return nil, newError(ErrCodeUnresolved, "type %s is not declared", t.Path)
			}
			ty = r
		default:
			return ty, nil
		}
	}
	return nil, malformed("type %s does not resolve within %d steps", ty, maxReifyDepth)
}

// fieldType finds the type of field name in ty, looking through wrappers,
// named aggregates and products (whose fields are named by index).
func (ts *tables) fieldType(ty xir.Type, name string) (xir.Type, error) {
	for range maxReifyDepth {
		switch t := ty.(type) {
		case xir.Ttagged:
			ty = t.Inner
		case xir.Taligned:
			ty = t.Inner
		case xir.Tproduct:
			idx, err := strconv.Atoi(name)
			if err != nil || idx < 0 || idx >= len(t.Elems) {
				return nil, newError(ErrCodeUnresolved, "no field %q in %s", name, t)
			}
			return t.Elems[idx], nil
		case xir.Taggregate:
			return lookupField(t.Fields, name, t)
		case xir.Tnamed:
			key := t.Path.Key()
			if def, ok := ts.aggregates[key]; ok {
				if def == nil {
					return nil, newError(ErrCodeUnresolved, "aggregate %s is opaque; field %q is unknown", t.Path, name)
				}
				return lookupField(def.Fields, name, t)
			}
			r, ok := ts.tys[key]
			if !ok {
				return nil, newError(ErrCodeUnresolved, "type %s is not declared", t.Path)
			}
			ty = r
		case nil:
			return nil, malformed("missing type")
		default:
			return nil, newError(ErrCodeTypeMismatch, "type %s has no field %q", ty, name)
		}
	}
	return nil, malformed("type %s does not resolve within %d steps", ty, maxReifyDepth)
}

func lookupField(fields []xir.AggregateField, name string, owner xir.Type) (xir.Type, error) {
	for _, f := range fields {
		if f.Name == name {
			return f.Ty, nil
		}
	}
	return nil, newError(ErrCodeUnresolved, "no field %q in %s", name, owner)
}

// checkNames verifies that every Named type reachable from ty is declared
func (ts *tables) checkNames(ty xir.Type) error {
	switch t := ty.(type) {
	case xir.Tnamed:
		if !ts.declared(t.Path) {
			return newError(ErrCodeUnresolved, "type %s is not declared", t.Path)
		}
	case xir.Tfunction:
		for _, p := range t.Params {
			if err := ts.checkNames(p); err != nil {
				return err
			}
		}
		return ts.checkNames(t.Ret)
	case xir.Tpointer:
		return ts.checkNames(t.Inner)
	case xir.Taggregate:
		return ts.checkFieldNames(t.Fields)
	case xir.Tproduct:
		for _, e := range t.Elems {
			if err := ts.checkNames(e); err != nil {
				return err
			}
		}
	case xir.Tarray:
		return ts.checkNames(t.Elem)
	case xir.Ttagged:
		return ts.checkNames(t.Inner)
	case xir.Taligned:
		return ts.checkNames(t.Inner)
	case nil:
		return malformed("missing type")
	}
	return nil
}

func (ts *tables) checkFieldNames(fields []xir.AggregateField) error {
	for _, f := range fields {
		if err := ts.checkNames(f.Ty); err != nil {
			return err
		}
	}
	return nil
}
