// Package types is the structural representation of the language's static
// types: the TypeInfo lattice, assignability and numeric promotion.
package types

import "strings"

// Kind is the closed set of structural type tags.
type Kind uint8

const (
	I8 Kind = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	USIZE
	F32
	F64
	BOOL
	STR
	NULL
	VOID
	ANY
	CLASS
	FUNCTION
	ARRAY
	DICT
	SET
	OPTIONAL
)

// ClassInfo is the minimal view of a class the type checker needs:
// its name and a walkable superclass chain, used by IsAssignable to
// decide subtyping.
type ClassInfo struct {
	Name       string
	Superclass *ClassInfo
}

// IsSubclassOf reports whether c is base or descends from base.
func (c *ClassInfo) IsSubclassOf(base *ClassInfo) bool {
	for cur := c; cur != nil; cur = cur.Superclass {
		if cur == base {
			return true
		}
	}
	return false
}

// Type is a tagged, immutable-after-construction structural type record.
// Primitive kinds are package-level singletons (reference-equal); composite
// kinds (CLASS, FUNCTION, ARRAY, DICT, SET, OPTIONAL) are freshly
// constructed by their constructor function (ClassType, FunctionType,
// ArrayType, DictType, SetType, OptionalType).
type Type struct {
	Kind Kind

	ClassName string
	ClassRef  *ClassInfo

	ParamTypes []*Type
	ReturnType *Type

	ElementType *Type
	KeyType     *Type
	ValueType   *Type
	InnerType   *Type
}

// Primitive singletons.
var (
	typeI8    = &Type{Kind: I8}
	typeI16   = &Type{Kind: I16}
	typeI32   = &Type{Kind: I32}
	typeI64   = &Type{Kind: I64}
	typeU8    = &Type{Kind: U8}
	typeU16   = &Type{Kind: U16}
	typeU32   = &Type{Kind: U32}
	typeU64   = &Type{Kind: U64}
	typeUsize = &Type{Kind: USIZE}
	typeF32   = &Type{Kind: F32}
	typeF64   = &Type{Kind: F64}
	typeBool  = &Type{Kind: BOOL}
	typeStr   = &Type{Kind: STR}
	typeNull  = &Type{Kind: NULL}
	typeVoid  = &Type{Kind: VOID}
	typeAny   = &Type{Kind: ANY}
)

func I8Type() *Type    { return typeI8 }
func I16Type() *Type   { return typeI16 }
func I32Type() *Type   { return typeI32 }
func I64Type() *Type   { return typeI64 }
func U8Type() *Type    { return typeU8 }
func U16Type() *Type   { return typeU16 }
func U32Type() *Type   { return typeU32 }
func U64Type() *Type   { return typeU64 }
func USizeType() *Type { return typeUsize }
func F32Type() *Type   { return typeF32 }
func F64Type() *Type   { return typeF64 }
func BoolType() *Type  { return typeBool }
func StrType() *Type   { return typeStr }
func NullType() *Type  { return typeNull }
func VoidType() *Type  { return typeVoid }
func AnyType() *Type   { return typeAny }

// ClassType constructs a fresh CLASS type. ref may be nil when the class
// hasn't been resolved yet (e.g. a forward reference during pre-scan).
func ClassType(name string, ref *ClassInfo) *Type {
	return &Type{Kind: CLASS, ClassName: name, ClassRef: ref}
}

// FunctionType constructs a fresh FUNCTION type. An empty params slice
// means "unconstrained arity" per spec (generic/native signatures).
func FunctionType(params []*Type, ret *Type) *Type {
	return &Type{Kind: FUNCTION, ParamTypes: params, ReturnType: ret}
}

func ArrayType(elem *Type) *Type         { return &Type{Kind: ARRAY, ElementType: elem} }
func DictType(key, val *Type) *Type      { return &Type{Kind: DICT, KeyType: key, ValueType: val} }
func SetType(elem *Type) *Type           { return &Type{Kind: SET, ElementType: elem} }
func OptionalType(inner *Type) *Type     { return &Type{Kind: OPTIONAL, InnerType: inner} }

func (t *Type) IsInteger() bool {
	switch t.Kind {
	case I8, I16, I32, I64, U8, U16, U32, U64, USIZE:
		return true
	}
	return false
}

func (t *Type) IsFloat() bool     { return t.Kind == F32 || t.Kind == F64 }
func (t *Type) IsNumeric() bool   { return t.IsInteger() || t.IsFloat() }
func (t *Type) IsSigned() bool {
	switch t.Kind {
	case I8, I16, I32, I64:
		return true
	}
	return false
}
func (t *Type) IsUnsigned() bool {
	switch t.Kind {
	case U8, U16, U32, U64, USIZE:
		return true
	}
	return false
}
func (t *Type) IsAny() bool  { return t.Kind == ANY }
func (t *Type) IsVoid() bool { return t.Kind == VOID }
func (t *Type) IsClass() bool { return t.Kind == CLASS }

// BitWidth returns the storage width of a numeric kind, or 0 for
// non-numeric kinds.
func (t *Type) BitWidth() int {
	switch t.Kind {
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32, F32:
		return 32
	case I64, U64, USIZE, F64:
		return 64
	default:
		return 0
	}
}

// String renders the type the way declarations and diagnostics spell it.
func (t *Type) String() string {
	switch t.Kind {
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case USIZE:
		return "usize"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case BOOL:
		return "bool"
	case STR:
		return "str"
	case NULL:
		return "null"
	case VOID:
		return "void"
	case ANY:
		return "any"
	case CLASS:
		return t.ClassName
	case FUNCTION:
		var b strings.Builder
		b.WriteString("function(")
		for i, p := range t.ParamTypes {
			if i != 0 {
				b.WriteString(", ")
			}
			if p != nil {
				b.WriteString(p.String())
			} else {
				b.WriteString("any")
			}
		}
		b.WriteString(") -> ")
		if t.ReturnType != nil {
			b.WriteString(t.ReturnType.String())
		} else {
			b.WriteString("void")
		}
		return b.String()
	case ARRAY:
		return "Array<" + orAny(t.ElementType) + ">"
	case DICT:
		return "Dict<" + orAny(t.KeyType) + ", " + orAny(t.ValueType) + ">"
	case SET:
		return "Set<" + orAny(t.ElementType) + ">"
	case OPTIONAL:
		return orAny(t.InnerType) + "?"
	default:
		return "<unknown>"
	}
}

func orAny(t *Type) string {
	if t == nil {
		return "any"
	}
	return t.String()
}

func widestSignedInt(bitWidth int) *Type {
	switch {
	case bitWidth <= 8:
		return typeI8
	case bitWidth <= 16:
		return typeI16
	case bitWidth <= 32:
		return typeI32
	default:
		return typeI64
	}
}

func widestUnsignedInt(bitWidth int) *Type {
	switch {
	case bitWidth <= 8:
		return typeU8
	case bitWidth <= 16:
		return typeU16
	case bitWidth <= 32:
		return typeU32
	default:
		return typeU64
	}
}

// IsAssignable reports whether a value of type `from` may be used where
// `to` is expected, per spec.md §4.2.
func IsAssignable(from, to *Type) bool {
	if from == nil || to == nil {
		return false
	}
	if to.IsAny() || from.IsAny() {
		return true
	}

	if from.Kind == to.Kind {
		switch from.Kind {
		case ARRAY, SET:
			return IsAssignable(elemOrAny(from.ElementType), elemOrAny(to.ElementType))
		case DICT:
			return IsAssignable(elemOrAny(from.KeyType), elemOrAny(to.KeyType)) &&
				IsAssignable(elemOrAny(from.ValueType), elemOrAny(to.ValueType))
		case CLASS:
			if from.ClassRef != nil && to.ClassRef != nil {
				return from.ClassRef.IsSubclassOf(to.ClassRef)
			}
			return from.ClassName == to.ClassName
		default:
			return true
		}
	}

	if from.Kind == CLASS && to.Kind == CLASS {
		if from.ClassRef != nil && to.ClassRef != nil {
			return from.ClassRef.IsSubclassOf(to.ClassRef)
		}
	}

	if from.Kind == NULL || to.Kind == NULL {
		return false
	}

	if from.IsNumeric() && to.IsNumeric() {
		if to.Kind == F64 {
			return true
		}
		if to.Kind == F32 {
			return from.Kind == F32
		}
		if from.IsSigned() && to.IsSigned() {
			return from.BitWidth() <= to.BitWidth()
		}
		if from.IsUnsigned() && to.IsUnsigned() {
			return from.BitWidth() <= to.BitWidth()
		}
		return false
	}

	return false
}

func elemOrAny(t *Type) *Type {
	if t == nil {
		return typeAny
	}
	return t
}

// NumericPromotion computes the result type of a binary numeric operation
// between lhs and rhs, per spec.md §4.2. Returns nil if either operand is
// not numeric.
func NumericPromotion(lhs, rhs *Type) *Type {
	if lhs == nil || rhs == nil || !lhs.IsNumeric() || !rhs.IsNumeric() {
		return nil
	}
	if lhs.IsFloat() || rhs.IsFloat() {
		if lhs.Kind == F32 && rhs.Kind == F32 {
			return typeF32
		}
		return typeF64
	}
	if lhs.IsSigned() && rhs.IsSigned() {
		w := lhs.BitWidth()
		if rhs.BitWidth() > w {
			w = rhs.BitWidth()
		}
		return widestSignedInt(w)
	}
	if lhs.IsUnsigned() && rhs.IsUnsigned() {
		w := lhs.BitWidth()
		if rhs.BitWidth() > w {
			w = rhs.BitWidth()
		}
		return widestUnsignedInt(w)
	}
	// mixed signedness: promote to f64 to avoid silent sign loss.
	return typeF64
}
