package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

func i32(v uint64) xir.Const { return xir.Const{Val: xir.IntConst(32, v)} }

func i8(v uint64) xir.Const { return xir.Const{Val: xir.IntConst(8, v)} }

func sig(ret xir.Type, params ...xir.Type) xir.Tfunction {
	return xir.Tfunction{Ret: ret, Params: params}
}

func exit(blk uint32, values uint16) xir.ExitBlock {
	return xir.ExitBlock{Blk: blk, Values: values}
}

func block(n uint32, items ...xir.BlockItem) xir.NestedBlock {
	return xir.NestedBlock{N: n, Block: xir.Block{Items: items}}
}

func target(num uint32, stack ...xir.StackItem) xir.Target {
	return xir.Target{Num: num, Stack: stack}
}

func function(path string, ty xir.Tfunction, locals []xir.Type, items ...xir.BlockItem) xir.ScopeEntry {
	return xir.ScopeEntry{
		Path: xir.ParsePath(path),
		Member: xir.ScopeMember{Decl: xir.FunctionDeclaration{
			Ty:   ty,
			Body: &xir.FunctionBody{Locals: locals, Block: xir.Block{Items: items}},
		}},
	}
}

func declare(path string, ty xir.Tfunction) xir.ScopeEntry {
	return xir.ScopeEntry{
		Path:   xir.ParsePath(path),
		Member: xir.ScopeMember{Decl: xir.FunctionDeclaration{Ty: ty}},
	}
}

func static(path string, ty xir.Type, init xir.Value) xir.ScopeEntry {
	return xir.ScopeEntry{
		Path:   xir.ParsePath(path),
		Member: xir.ScopeMember{Decl: xir.StaticDefinition{Ty: ty, Init: init}},
	}
}

func structDef(path string, fields ...xir.AggregateField) xir.ScopeEntry {
	return xir.ScopeEntry{
		Path:   xir.ParsePath(path),
		Member: xir.ScopeMember{Decl: xir.AggregateDefinition{Kind: xir.KindStruct, Fields: fields}},
	}
}

func opaque(path string) xir.ScopeEntry {
	return xir.ScopeEntry{
		Path:   xir.ParsePath(path),
		Member: xir.ScopeMember{Decl: xir.OpaqueAggregate{Kind: xir.KindStruct}},
	}
}

func fileOf(members ...xir.ScopeEntry) *xir.File {
	return &xir.File{Root: xir.Scope{Members: members}}
}

// checkOne validates a file holding the single function ::f and returns
// its error
func checkOne(t *testing.T, ty xir.Tfunction, locals []xir.Type, items ...xir.BlockItem) error {
	t.Helper()
	return checkIn(t, nil, ty, locals, items...)
}

// checkIn is checkOne with extra members declared next to ::f
func checkIn(t *testing.T, others []xir.ScopeEntry, ty xir.Tfunction, locals []xir.Type, items ...xir.BlockItem) error {
	t.Helper()
	members := append([]xir.ScopeEntry{function("::f", ty, locals, items...)}, others...)
	report, err := File(fileOf(members...), Options{Jobs: 1})
	require.NoError(t, err)
	for _, m := range report.Members {
		if m.Path.String() == "::f" {
			return m.Err
		}
	}
	t.Fatal("no result for ::f")
	return nil
}

// simulate replays exprs on an empty stack inside a root block and returns
// the final stack
func simulate(ts *tables, locals []xir.Type, exprs ...xir.Expr) ([]xir.StackItem, error) {
	fc := &funcChecker{ts: ts, locals: locals, exits: []*exitSlot{{}}}
	st := &blockState{targets: map[uint32][]xir.StackItem{}}
	for _, e := range exprs {
		if _, err := fc.checkExpr(e, st); err != nil {
			return st.stack, err
		}
	}
	return st.stack, nil
}
