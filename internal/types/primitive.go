package types

import "github.com/funvibe/scriptlang/internal/token"

// FromPrimitiveToken maps a primitive type-name token kind to its
// singleton Type, or returns (nil, false) if kind does not name one.
func FromPrimitiveToken(kind token.Kind) (*Type, bool) {
	switch kind {
	case token.I8:
		return typeI8, true
	case token.I16:
		return typeI16, true
	case token.I32:
		return typeI32, true
	case token.I64:
		return typeI64, true
	case token.U8:
		return typeU8, true
	case token.U16:
		return typeU16, true
	case token.U32:
		return typeU32, true
	case token.U64:
		return typeU64, true
	case token.USIZE:
		return typeUsize, true
	case token.F32:
		return typeF32, true
	case token.F64:
		return typeF64, true
	case token.BOOL:
		return typeBool, true
	case token.STR:
		return typeStr, true
	default:
		return nil, false
	}
}
