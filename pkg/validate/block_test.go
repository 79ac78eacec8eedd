package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

func locationOf(t *testing.T, err error) []int {
	t.Helper()
	var ve *Error
	require.True(t, errors.As(err, &ve), "not a validation error: %v", err)
	return ve.Location
}

// mergeBody pushes first, branches on a nonzero condition to @0 with it,
// then falls through into @0 with second
func mergeBody(first, second xir.Const) []xir.BlockItem {
	return []xir.BlockItem{
		first,
		i32(0),
		xir.Branch{Cond: xir.NotEqual, Target: 0},
		xir.Pop{N: 1},
		second,
		target(0, rI32),
		exit(0, 1),
	}
}

func TestBranchMerge_Agreeing(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil, mergeBody(i32(7), i32(5))...)
	assert.NoError(t, err)
}

func TestBranchMerge_FallThroughDisagrees(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil, mergeBody(i32(7), i8(5))...)
	assert.True(t, IsTypeMismatch(err), "got %v", err)
	assert.Equal(t, []int{5}, locationOf(t, err))
}

func TestBranchMerge_BranchDisagrees(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil, mergeBody(i8(7), i32(5))...)
	assert.True(t, IsTypeMismatch(err), "got %v", err)
	assert.Equal(t, []int{2}, locationOf(t, err))
}

func TestBranch_ConditionMustBeInteger(t *testing.T) {
	cond := xir.Const{Val: xir.Uninitialized{Ty: xir.Float(32)}}
	err := checkOne(t, sig(xir.Tvoid{}), nil,
		cond,
		xir.Branch{Cond: xir.Equal, Target: 0},
		target(0),
		exit(0, 0),
	)
	assert.True(t, IsTypeMismatch(err), "got %v", err)
}

func TestBranch_UndeclaredTarget(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil, xir.Branch{Cond: xir.Always, Target: 3})
	assert.True(t, IsUnresolved(err), "got %v", err)
}

func TestBranch_TargetsAreLocalToTheirBlock(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil,
		block(1, xir.Branch{Cond: xir.Always, Target: 0}),
		target(0),
		exit(0, 0),
	)
	assert.True(t, IsUnresolved(err), "got %v", err)
	assert.Equal(t, []int{0, 0}, locationOf(t, err))
}

func TestDivergence_SkipsDeadStack(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil,
		i32(1),
		exit(0, 1),
		target(0, rI32),
		exit(0, 1),
	)
	assert.NoError(t, err)
}

func TestDivergence_LiveStackIsChecked(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil,
		i32(1),
		xir.Pop{N: 1},
		target(0, rI32),
		exit(0, 1),
	)
	assert.True(t, IsStackMismatch(err), "got %v", err)
	assert.Equal(t, []int{2}, locationOf(t, err))
}

func TestDivergence_ThroughDerive(t *testing.T) {
	nonnull := xir.Tpointer{Alias: xir.AliasNonnull, Inner: xir.Int(32)}
	err := checkOne(t, sig(xir.Int(32), xir.Pointer(xir.Int(32))), nil,
		xir.Local{N: 0},
		xir.AsRValue{},
		i32(1),
		xir.Derive{Ptr: nonnull, Inner: exit(0, 1)},
		target(0, rI32),
		exit(0, 1),
	)
	assert.NoError(t, err)
}

// choose returns 1 or 2 from a nested block depending on its parameter
func choose(second xir.Const) []xir.BlockItem {
	return []xir.BlockItem{
		block(1,
			xir.Local{N: 0},
			xir.AsRValue{},
			xir.Branch{Cond: xir.Equal, Target: 1},
			i32(1),
			exit(1, 1),
			target(1),
			second,
			exit(1, 1),
		),
		exit(0, 1),
	}
}

func TestNestedBlock_ExitsAgree(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32), xir.Int(32)), nil, choose(i32(2))...)
	assert.NoError(t, err)
}

func TestNestedBlock_ExitsDisagree(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32), xir.Int(32)), nil, choose(i8(2))...)
	assert.True(t, IsTypeMismatch(err), "got %v", err)

	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "::f", ve.Function)
	assert.Equal(t, []int{0, 7}, ve.Location)
	assert.Equal(t, "0.7", ve.Where())
	assert.Contains(t, ve.Error(), "fn=::f, at=0.7")
}

func TestNestedBlock_ExitToOuterBlock(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil,
		block(1, i32(3), exit(0, 1)),
	)
	assert.NoError(t, err)
}

func TestNestedBlock_OrdinalMustMatchDepth(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil,
		block(2, exit(0, 0)),
	)
	assert.True(t, IsMalformed(err), "got %v", err)
	assert.Equal(t, []int{0}, locationOf(t, err))
}

func TestExit_BeyondNesting(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil, exit(1, 0))
	assert.True(t, IsMalformed(err), "got %v", err)
}

func TestTarget_Redeclared(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil,
		target(0),
		xir.Null{},
		target(0),
		exit(0, 0),
	)
	assert.True(t, IsMalformed(err), "got %v", err)
	assert.Equal(t, []int{2}, locationOf(t, err))
}

func TestBlock_MissingItem(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil, xir.Null{}, nil)
	assert.True(t, IsMalformed(err), "got %v", err)
	assert.Equal(t, []int{1}, locationOf(t, err))
}

func TestReturn_VoidFunctionWithValue(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil, i32(1), exit(0, 1))
	assert.True(t, IsStackMismatch(err), "got %v", err)
}

func TestReturn_MissingValue(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil, xir.Null{})
	assert.True(t, IsStackMismatch(err), "got %v", err)
}

func TestReturn_WrongType(t *testing.T) {
	err := checkOne(t, sig(xir.Int(32)), nil, i8(1), exit(0, 1))
	assert.True(t, IsTypeMismatch(err), "got %v", err)
}

func TestLocals_ParamsComeFirst(t *testing.T) {
	err := checkOne(t, sig(xir.Float(64), xir.Int(32)), []xir.Type{xir.Float(64)},
		xir.Local{N: 1},
		xir.AsRValue{},
		exit(0, 1),
	)
	assert.NoError(t, err)
}

func TestLabelAddress(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil,
		xir.Const{Val: xir.LabelAddress{Target: 0}},
		xir.BranchIndirect{},
		target(0),
		exit(0, 0),
	)
	assert.NoError(t, err)
}

func TestLabelAddress_TargetMustHaveEmptyStack(t *testing.T) {
	err := checkOne(t, sig(xir.Tvoid{}), nil,
		xir.Const{Val: xir.LabelAddress{Target: 0}},
		xir.BranchIndirect{},
		target(0, rI32),
		xir.Pop{N: 1},
		exit(0, 0),
	)
	assert.True(t, IsStackMismatch(err), "got %v", err)
	assert.Equal(t, []int{0}, locationOf(t, err))
}

func hashSwitch(def *uint32, cases ...xir.SwitchCase) xir.Switch {
	return xir.Switch{Kind: xir.HashSwitch{Cases: cases, Default: def}}
}

func switchBody(sw xir.Switch, second xir.Target) []xir.BlockItem {
	return []xir.BlockItem{
		xir.Local{N: 0},
		xir.AsRValue{},
		sw,
		target(0),
		exit(0, 0),
		second,
		exit(0, 0),
	}
}

func TestSwitch_Hash(t *testing.T) {
	def := uint32(1)
	sw := hashSwitch(&def,
		xir.SwitchCase{Val: xir.IntConst(32, 1), Target: 0},
		xir.SwitchCase{Val: xir.IntConst(32, 2), Target: 1},
	)
	err := checkOne(t, sig(xir.Tvoid{}, xir.Int(32)), nil, switchBody(sw, target(1))...)
	assert.NoError(t, err)
}

func TestSwitch_TargetsMustAgree(t *testing.T) {
	sw := hashSwitch(nil,
		xir.SwitchCase{Val: xir.IntConst(32, 1), Target: 0},
		xir.SwitchCase{Val: xir.IntConst(32, 2), Target: 1},
	)
	err := checkOne(t, sig(xir.Tvoid{}, xir.Int(32)), nil, switchBody(sw, target(1, rI32))...)
	assert.True(t, IsStackMismatch(err), "got %v", err)
	assert.Equal(t, []int{2}, locationOf(t, err))
}

func TestSwitch_CaseTypeMustMatchControl(t *testing.T) {
	sw := hashSwitch(nil, xir.SwitchCase{Val: xir.IntConst(8, 1), Target: 0})
	err := checkOne(t, sig(xir.Tvoid{}, xir.Int(32)), nil, switchBody(sw, target(1))...)
	assert.True(t, IsTypeMismatch(err), "got %v", err)
}

func TestSwitch_LinearUnsupported(t *testing.T) {
	sw := xir.Switch{Kind: xir.LinearSwitch{Ty: xir.Int(32), Scale: 1, Default: 1, Cases: []uint32{0}}}
	err := checkOne(t, sig(xir.Tvoid{}, xir.Int(32)), nil, switchBody(sw, target(1))...)
	assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)
}
