package validate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// unifyTables declares ::point as a struct, ::handle as opaque and ::g as a
// function so Named types resolve
func unifyTables() *tables {
	ts := newTables()
	ts.aggregates[xir.ParsePath("::point").Key()] = &xir.AggregateDefinition{
		Fields: []xir.AggregateField{{Name: "x", Ty: xir.Int(32)}, {Name: "y", Ty: xir.Int(32)}},
	}
	ts.aggregates[xir.ParsePath("::handle").Key()] = nil
	ts.tys[xir.ParsePath("::g").Key()] = sig(xir.Int(32), xir.Int(32))
	return ts
}

func arrayOf(elem xir.Type, n uint64) xir.Tarray {
	return xir.Tarray{Elem: elem, Len: xir.Integer{Ty: xir.UInt(64), Val: n}}
}

// sampleTypes returns pairwise distinct types: no two of them unify
func sampleTypes() []xir.Type {
	return []xir.Type{
		xir.Tvoid{},
		xir.Int(8),
		xir.Int(32),
		xir.UInt(32),
		xir.Float(32),
		xir.Float(64),
		xir.Tscalar{Header: xir.ScalarHeader{BitSize: 32}, Kind: xir.FloatKind{Decimal: true}},
		xir.Tscalar{Header: xir.ScalarHeader{BitSize: 32, VectorSize: 4}, Kind: xir.IntegerKind{Signed: true}},
		xir.Tscalar{Header: xir.ScalarHeader{BitSize: 16}, Kind: xir.FixedKind{FractBits: 8}},
		xir.Tscalar{Header: xir.ScalarHeader{BitSize: 32}, Kind: xir.CharKind{Flags: xir.CharUnicode}},
		xir.Tscalar{Header: xir.ScalarHeader{BitSize: 80}, Kind: xir.LongFloatKind{}},
		xir.Tscalar{Header: xir.ScalarHeader{BitSize: 32}, Kind: xir.EmptyKind{}},
		xir.Pointer(xir.Int(32)),
		xir.Pointer(xir.UInt(8)),
		xir.VoidPointer(),
		sig(xir.Int(32)),
		sig(xir.Int(32), xir.Int(32)),
		xir.Tfunction{Ret: xir.Int(32), Params: []xir.Type{xir.Int(32)}, Variadic: true},
		xir.Tfunction{Ret: xir.Int(32), Params: []xir.Type{xir.Int(32)}, Tag: xir.AbiStdcall},
		xir.Tproduct{Elems: []xir.Type{xir.Int(32), xir.Int(32)}},
		xir.Tproduct{Elems: []xir.Type{xir.Int(32)}},
		xir.Taggregate{Fields: []xir.AggregateField{{Name: "x", Ty: xir.Int(32)}}},
		xir.Taggregate{Kind: xir.KindUnion, Fields: []xir.AggregateField{{Name: "x", Ty: xir.Int(32)}}},
		xir.Taggregate{Fields: []xir.AggregateField{{Name: "y", Ty: xir.Int(32)}}},
		arrayOf(xir.Int(32), 4),
		arrayOf(xir.Int(32), 8),
		arrayOf(xir.Int(8), 4),
		xir.Named("::point"),
		xir.Named("::handle"),
	}
}

func TestUnify_Reflexive(t *testing.T) {
	ts := unifyTables()
	for _, ty := range sampleTypes() {
		assert.NoError(t, ts.unify(ty, ty), "%s with itself", ty)
	}
}

func TestUnify_DistinctTypesFailBothWays(t *testing.T) {
	ts := unifyTables()
	types := sampleTypes()
	for i, a := range types {
		for j, b := range types {
			if i == j {
				continue
			}
			t.Run(fmt.Sprintf("%s_vs_%s", a, b), func(t *testing.T) {
				ab := ts.unify(a, b)
				ba := ts.unify(b, a)
				assert.Error(t, ab)
				assert.Error(t, ba)
				assert.Equal(t, CodeOf(ab), CodeOf(ba))
			})
		}
	}
}

func TestUnify_NullUnifiesWithAnything(t *testing.T) {
	ts := unifyTables()
	for _, ty := range sampleTypes() {
		assert.NoError(t, ts.unify(xir.Tnull{}, ty))
		assert.NoError(t, ts.unify(ty, xir.Tnull{}))
	}
}

func TestUnify_WrappersAreTransparent(t *testing.T) {
	ts := unifyTables()
	tagged := xir.Ttagged{Tag: 3, Inner: xir.Int(32)}
	aligned := xir.Taligned{Align: xir.Integer{Ty: xir.UInt(64), Val: 16}, Inner: tagged}

	assert.NoError(t, ts.unify(tagged, xir.Int(32)))
	assert.NoError(t, ts.unify(xir.Int(32), aligned))
	assert.Error(t, ts.unify(aligned, xir.Int(8)))
}

func TestUnify_NamedFunctionResolves(t *testing.T) {
	ts := unifyTables()
	assert.NoError(t, ts.unify(xir.Named("::g"), sig(xir.Int(32), xir.Int(32))))
	assert.NoError(t, ts.unify(xir.Pointer(xir.Named("::g")), xir.Pointer(sig(xir.Int(32), xir.Int(32)))))
}

func TestUnify_NamedAggregateIsNominal(t *testing.T) {
	ts := unifyTables()
	structural := xir.Taggregate{Fields: []xir.AggregateField{{Name: "x", Ty: xir.Int(32)}, {Name: "y", Ty: xir.Int(32)}}}
	err := ts.unify(xir.Named("::point"), structural)
	assert.True(t, IsTypeMismatch(err), "got %v", err)
}

func TestUnify_UndeclaredNamed(t *testing.T) {
	ts := unifyTables()
	err := ts.unify(xir.Named("::nowhere"), xir.Int(32))
	assert.True(t, IsUnresolved(err), "got %v", err)
}

func TestUnify_IgnoresPointerAnnotationsAndRanges(t *testing.T) {
	ts := unifyTables()
	unique := xir.Tpointer{Alias: xir.AliasUnique, ValidRange: xir.ValidRange{Kind: xir.RangeDereference, Size: 4}, Inner: xir.Int(32)}
	assert.NoError(t, ts.unify(unique, xir.Pointer(xir.Int(32))))

	lo, hi := int64(0), int64(9)
	ranged := xir.Tscalar{Header: xir.ScalarHeader{BitSize: 32, Validity: xir.ValidNonzero}, Kind: xir.IntegerKind{Signed: true, Min: &lo, Max: &hi}}
	assert.NoError(t, ts.unify(ranged, xir.Int(32)))
}

func TestUnify_ProductArity(t *testing.T) {
	ts := unifyTables()
	pair := xir.Tproduct{Elems: []xir.Type{xir.Int(32), xir.Int(32)}}
	single := xir.Tproduct{Elems: []xir.Type{xir.Int(32)}}
	assert.True(t, IsTypeMismatch(ts.unify(pair, single)))
	assert.True(t, IsTypeMismatch(ts.unify(single, pair)))
}

func TestUnify_ArrayLengthMustBeConstant(t *testing.T) {
	ts := unifyTables()
	generic := xir.Tarray{Elem: xir.Int(32), Len: xir.GenericParameter{Index: 0}}
	err := ts.unify(generic, arrayOf(xir.Int(32), 4))
	assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)
}

func TestUnify_MismatchCarriesBothSides(t *testing.T) {
	ts := unifyTables()
	err := ts.unify(xir.Int(32), xir.Int(8))
	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, ErrCodeTypeMismatch, ve.Code)
	assert.Equal(t, "i32", ve.Expected)
	assert.Equal(t, "i8", ve.Actual)
}

func TestUnifyStack_ComparesTopWindow(t *testing.T) {
	ts := unifyTables()
	stack := []xir.StackItem{xir.RValue(xir.Float(64)), xir.LValue(xir.Int(32)), xir.RValue(xir.Int(8))}

	assert.NoError(t, ts.unifyStack(stack, []xir.StackItem{xir.RValue(xir.Int(8))}))
	assert.NoError(t, ts.unifyStack(stack, []xir.StackItem{xir.LValue(xir.Int(32)), xir.RValue(xir.Int(8))}))
	assert.NoError(t, ts.unifyStack(stack, nil))

	err := ts.unifyStack(stack, []xir.StackItem{xir.RValue(xir.Int(32)), xir.RValue(xir.Int(8))})
	assert.True(t, IsStackMismatch(err), "kind differs: %v", err)

	err = ts.unifyStack(stack[:1], []xir.StackItem{xir.RValue(xir.Float(64)), xir.RValue(xir.Int(8))})
	assert.True(t, IsStackMismatch(err), "too short: %v", err)
}

func TestSameShape_RequiresEqualLength(t *testing.T) {
	ts := unifyTables()
	one := []xir.StackItem{xir.RValue(xir.Int(32))}
	two := []xir.StackItem{xir.RValue(xir.Int(8)), xir.RValue(xir.Int(32))}

	assert.NoError(t, ts.sameShape(one, one))
	assert.True(t, IsStackMismatch(ts.sameShape(one, two)))
	assert.True(t, IsStackMismatch(ts.sameShape(two, one)))
}
