package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimitiveSingletons(t *testing.T) {
	require.True(t, I8Type() == I8Type())
	require.True(t, F64Type() == F64Type())
	require.False(t, ArrayType(I8Type()) == ArrayType(I8Type()))
}

func TestIsAssignableAnyIsUniversal(t *testing.T) {
	require.True(t, IsAssignable(AnyType(), I32Type()))
	require.True(t, IsAssignable(I32Type(), AnyType()))
	require.True(t, IsAssignable(AnyType(), AnyType()))
}

func TestIsAssignableNullOnlyToAny(t *testing.T) {
	require.True(t, IsAssignable(NullType(), AnyType()))
	require.False(t, IsAssignable(NullType(), I32Type()))
	require.False(t, IsAssignable(NullType(), StrType()))
}

func TestIsAssignableNumericWidening(t *testing.T) {
	require.True(t, IsAssignable(I8Type(), I32Type()))
	require.False(t, IsAssignable(I32Type(), I8Type()))
	require.True(t, IsAssignable(U16Type(), U64Type()))
	require.False(t, IsAssignable(I16Type(), U16Type()))
	require.True(t, IsAssignable(I32Type(), F64Type()))
	require.True(t, IsAssignable(F32Type(), F32Type()))
	require.False(t, IsAssignable(F64Type(), F32Type()))
}

func TestIsAssignableClassHierarchy(t *testing.T) {
	base := &ClassInfo{Name: "Animal"}
	derived := &ClassInfo{Name: "Dog", Superclass: base}
	unrelated := &ClassInfo{Name: "Rock"}

	require.True(t, IsAssignable(ClassType("Dog", derived), ClassType("Animal", base)))
	require.False(t, IsAssignable(ClassType("Animal", base), ClassType("Dog", derived)))
	require.False(t, IsAssignable(ClassType("Rock", unrelated), ClassType("Animal", base)))
}

func TestIsAssignableArrayDictSetRecurse(t *testing.T) {
	require.True(t, IsAssignable(ArrayType(I8Type()), ArrayType(I32Type())))
	require.False(t, IsAssignable(ArrayType(I32Type()), ArrayType(I8Type())))
	require.True(t, IsAssignable(DictType(StrType(), I8Type()), DictType(StrType(), I32Type())))
	require.True(t, IsAssignable(SetType(AnyType()), SetType(AnyType())))
}

func TestNumericPromotion(t *testing.T) {
	require.Equal(t, F64Type(), NumericPromotion(I32Type(), F64Type()))
	require.Equal(t, F32Type(), NumericPromotion(F32Type(), F32Type()))
	require.Equal(t, I64Type(), NumericPromotion(I8Type(), I64Type()))
	require.Equal(t, U64Type(), NumericPromotion(U8Type(), U64Type()))
	// mixed signedness promotes to f64 to avoid silent sign loss
	require.Equal(t, F64Type(), NumericPromotion(I32Type(), U32Type()))
	require.Nil(t, NumericPromotion(StrType(), I32Type()))
}

func TestBitWidthAndPredicates(t *testing.T) {
	require.Equal(t, 8, I8Type().BitWidth())
	require.Equal(t, 64, F64Type().BitWidth())
	require.True(t, I32Type().IsSigned())
	require.True(t, U32Type().IsUnsigned())
	require.True(t, F32Type().IsFloat())
	require.True(t, I32Type().IsInteger())
	require.False(t, StrType().IsNumeric())
}

func TestStringRendering(t *testing.T) {
	require.Equal(t, "Array<i32>", ArrayType(I32Type()).String())
	require.Equal(t, "Dict<str, any>", DictType(StrType(), nil).String())
	require.Equal(t, "function(i32, any) -> bool", FunctionType([]*Type{I32Type(), nil}, BoolType()).String())
}
