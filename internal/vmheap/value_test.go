package vmheap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/types"
)

func TestValueFalseyness(t *testing.T) {
	require.True(t, Nil().IsFalsey())
	require.True(t, Bool(false).IsFalsey())
	require.False(t, Bool(true).IsFalsey())
	require.False(t, Number(0).IsFalsey())
	require.False(t, Str("").IsFalsey())
}

func TestValueEqualsByKindAndValue(t *testing.T) {
	require.True(t, Nil().Equals(Nil()))
	require.True(t, Number(1).Equals(Number(1)))
	require.False(t, Number(1).Equals(Str("1")))
	require.True(t, Str("a").Equals(Str("a")))

	a := NewArray(nil, nil)
	b := NewArray(nil, nil)
	require.True(t, Obj(a).Equals(Obj(a)))
	require.False(t, Obj(a).Equals(Obj(b)), "object equality is by identity")
}

func TestValueRuntimeType(t *testing.T) {
	require.Equal(t, types.NullType(), Nil().RuntimeType())
	require.Equal(t, types.BoolType(), Bool(true).RuntimeType())
	require.Equal(t, types.F64Type(), Number(1).RuntimeType())
	require.Equal(t, types.StrType(), Str("x").RuntimeType())
}

func TestValueInspectRendersIntegerLookingFloatsWithoutDecimals(t *testing.T) {
	require.Equal(t, "3", Number(3).Inspect())
	require.Equal(t, "3.5", Number(3.5).Inspect())
	require.Equal(t, "null", Nil().Inspect())
	require.Equal(t, "true", Bool(true).Inspect())
}

func TestOpcodeStringRendersKnownNames(t *testing.T) {
	require.Equal(t, "ADD", OpAdd.String())
	require.Equal(t, "CHECK_INSTANCE_TYPE", OpCheckInstanceType.String())
}
