package compiler

import (
	"strconv"

	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// parseNumberLiteral turns a NUMBER token's lexeme into the Value the
// constant pool stores; the VM's numeric Value is always a float64 and
// narrows on assignment/coercion, not at the literal site.
func parseNumberLiteral(lexeme string) vmheap.Value {
	f, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return vmheap.Number(0)
	}
	return vmheap.Number(f)
}

// arithmeticOpcode picks the integer-typed or generic floating-point
// opcode for op, based on the statically known type t, the same decision
// original_source/Compiler.cpp's arithmeticOpcode() makes from its own
// inferred variable type.
func arithmeticOpcode(op token.Kind, t *types.Type) vmheap.Opcode {
	if t != nil && t.IsInteger() {
		if t.IsSigned() {
			switch op {
			case token.PLUS:
				return vmheap.OpIAdd
			case token.MINUS:
				return vmheap.OpISub
			case token.STAR:
				return vmheap.OpIMul
			case token.SLASH:
				return vmheap.OpIDiv
			}
		} else {
			switch op {
			case token.PLUS:
				return vmheap.OpUAdd
			case token.MINUS:
				return vmheap.OpUSub
			case token.STAR:
				return vmheap.OpUMul
			case token.SLASH:
				return vmheap.OpUDiv
			}
		}
	}
	switch op {
	case token.PLUS:
		return vmheap.OpAdd
	case token.MINUS:
		return vmheap.OpSub
	case token.STAR:
		return vmheap.OpMul
	case token.SLASH:
		return vmheap.OpDiv
	default:
		return vmheap.OpAdd
	}
}

// emitCompoundBinary emits the arithmetic opcode for a `target OP= rhs`
// compound assignment; by the time this runs, GET target and the rhs
// value are both already on the stack, leftType is target's (possibly
// any) declared type.
func (c *Compiler) emitCompoundBinary(base token.Kind, leftType, rightType *types.Type, line int) {
	t := leftType
	if t == nil || t.IsAny() {
		t = rightType
	}
	c.emitOp(arithmeticOpcode(base, t), line)
}

// emitCoerceToType emits the narrowing/widening conversion matching an
// `as Type` cast or a typed declaration/parameter/return boundary
// (spec.md §4.4's NARROW_INT/INT_TO_FLOAT/INT_TO_STR/CHECK_INSTANCE_TYPE
// family), grounded on original_source/Compiler.cpp's
// emitCoerceToType/emitCheckInstanceType.
func (c *Compiler) emitCoerceToType(target *types.Type, line int) {
	if target == nil || target.IsAny() {
		return
	}
	switch {
	case target.IsInteger():
		c.emitOpByte(vmheap.OpNarrowInt, byte(narrowKindFor(target)), line)
	case target.Kind == types.F32 || target.Kind == types.F64:
		c.emitOp(vmheap.OpIntToFloat, line)
	case target.Kind == types.STR:
		c.emitOp(vmheap.OpIntToStr, line)
	case target.IsClass():
		c.emitOpByte(vmheap.OpCheckInstanceType, c.identifierConstant(target.ClassName), line)
	}
}

func narrowKindFor(t *types.Type) vmheap.NarrowKind {
	switch {
	case t.Kind == types.I8:
		return vmheap.NarrowI8
	case t.Kind == types.I16:
		return vmheap.NarrowI16
	case t.Kind == types.I32:
		return vmheap.NarrowI32
	case t.Kind == types.I64:
		return vmheap.NarrowI64
	case t.Kind == types.U8:
		return vmheap.NarrowU8
	case t.Kind == types.U16:
		return vmheap.NarrowU16
	case t.Kind == types.U32:
		return vmheap.NarrowU32
	case t.Kind == types.U64:
		return vmheap.NarrowU64
	case t.Kind == types.USIZE:
		return vmheap.NarrowUsize
	default:
		return vmheap.NarrowI64
	}
}
