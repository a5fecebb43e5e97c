package compiler

import "github.com/funvibe/scriptlang/internal/token"

// precedence mirrors original_source/Compiler.cpp's Precedence enum exactly
// (PREC_NONE .. PREC_PRIMARY); parsePrecedence climbs this ladder the same
// way.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precShift
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

// parseFn compiles one prefix or infix construct at the cursor and
// returns the static type information the surrounding call needs (for
// arithmetic-opcode selection and assignment-target validation), mirroring
// how the TypeChecker's ExprInfo flows through its own expression chain.
type parseFn func(canAssign bool) valueInfo

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// getRule is a direct port of original_source/Compiler.cpp's getRule
// switch: every token's {prefix, infix, precedence} triple. `as` is
// registered infix at precCall, binding as tightly as call/dot/subscript.
func (c *Compiler) getRule(kind token.Kind) parseRule {
	switch kind {
	case token.LPAREN:
		return parseRule{c.grouping, c.call, precCall}
	case token.LBRACKET:
		return parseRule{c.arrayLiteral, c.subscript, precCall}
	case token.LBRACE:
		return parseRule{c.dictLiteral, nil, precNone}
	case token.DOT:
		return parseRule{nil, c.dot, precCall}
	case token.NUMBER:
		return parseRule{c.number, nil, precNone}
	case token.IDENT,
		token.I8, token.I16, token.I32, token.I64,
		token.U8, token.U16, token.U32, token.U64, token.USIZE,
		token.F32, token.F64, token.BOOL, token.STR:
		return parseRule{c.variable, nil, precNone}
	case token.THIS:
		return parseRule{c.thisExpression, nil, precNone}
	case token.SUPER:
		return parseRule{c.superExpression, nil, precNone}
	case token.STRING:
		return parseRule{c.stringLiteral, nil, precNone}
	case token.TRUE, token.FALSE, token.NULL:
		return parseRule{c.literal, nil, precNone}
	case token.BANG:
		return parseRule{c.unary, nil, precNone}
	case token.PLUS_PLUS, token.MINUS_MINUS:
		return parseRule{c.prefixUpdate, nil, precNone}
	case token.MINUS:
		return parseRule{c.unary, c.binary, precTerm}
	case token.PLUS:
		return parseRule{nil, c.binary, precTerm}
	case token.SLASH, token.STAR:
		return parseRule{nil, c.binary, precFactor}
	case token.GREATER, token.GREATER_EQUAL, token.LESS, token.LESS_EQUAL:
		return parseRule{nil, c.binary, precComparison}
	case token.LESS_LESS, token.GREATER_GREATER:
		return parseRule{nil, c.binary, precShift}
	case token.EQUAL_EQUAL, token.BANG_EQUAL:
		return parseRule{nil, c.binary, precEquality}
	case token.AND:
		return parseRule{nil, c.andOperator, precAnd}
	case token.OR:
		return parseRule{nil, c.orOperator, precOr}
	case token.AS:
		return parseRule{nil, c.castOperator, precCall}
	default:
		return parseRule{nil, nil, precNone}
	}
}
