package compiler

import (
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// valueInfo is the minimal static-type carrier the compiler threads
// through parsePrecedence: just enough to pick an integer-typed
// arithmetic opcode (spec.md §4.4) or reject an invalid assignment
// target, without duplicating the TypeChecker's full pass.
type valueInfo struct {
	typ          *types.Type
	assignable   bool
	name         string // set for a bare identifier, so namedVariable can re-resolve it
	isClass      bool
}

func namelessInfo(t *types.Type) valueInfo { return valueInfo{typ: t} }

// expression compiles one expression at PREC_ASSIGNMENT, original_source's
// entry point for every expression context.
func (c *Compiler) expression() valueInfo {
	return c.parsePrecedence(precAssignment)
}

// parsePrecedence is a direct port of original_source/Compiler.cpp's
// parsePrecedence: run the prefix rule for the current token, then keep
// folding in infix rules whose precedence is at least prec.
func (c *Compiler) parsePrecedence(prec precedence) valueInfo {
	rule := c.getRule(c.cur.Kind)
	if rule.prefix == nil {
		c.errorAtCurrent("expected an expression")
		c.advance()
		return namelessInfo(types.AnyType())
	}
	canAssign := prec <= precAssignment
	left := rule.prefix(canAssign)

	for {
		rule = c.getRule(c.cur.Kind)
		if prec > rule.precedence {
			break
		}
		left = rule.infix(canAssign)
	}

	if canAssign && isAssignmentOperator(c.cur.Kind) {
		op := c.cur.Kind
		c.errorAtCurrent("Invalid assignment target")
		c.advance()
		if op != token.PLUS_PLUS && op != token.MINUS_MINUS {
			c.parsePrecedence(precAssignment)
		}
	}
	return left
}

func isAssignmentOperator(k token.Kind) bool {
	if k == token.EQUAL || k == token.PLUS_PLUS || k == token.MINUS_MINUS {
		return true
	}
	return isCompoundAssign(k)
}

// --- literals -----------------------------------------------------------

func (c *Compiler) number(canAssign bool) valueInfo {
	line := c.cur.Line
	lit := parseNumberLiteral(c.cur.Lexeme)
	c.advance()
	c.emitConstant(lit, line)
	return namelessInfo(types.F64Type())
}

func (c *Compiler) stringLiteral(canAssign bool) valueInfo {
	line := c.cur.Line
	c.emitConstant(vmheap.Str(c.cur.Lexeme), line)
	c.advance()
	return namelessInfo(types.StrType())
}

func (c *Compiler) literal(canAssign bool) valueInfo {
	line := c.cur.Line
	switch c.cur.Kind {
	case token.TRUE:
		c.emitOp(vmheap.OpTrue, line)
		c.advance()
		return namelessInfo(types.BoolType())
	case token.FALSE:
		c.emitOp(vmheap.OpFalse, line)
		c.advance()
		return namelessInfo(types.BoolType())
	default: // NULL
		c.emitOp(vmheap.OpNil, line)
		c.advance()
		return namelessInfo(types.NullType())
	}
}

func (c *Compiler) grouping(canAssign bool) valueInfo {
	c.advance() // '('
	inner := c.expression()
	c.consume(token.RPAREN, "expected ')' after expression")
	return inner
}

// --- variables ------------------------------------------------------------

func (c *Compiler) variable(canAssign bool) valueInfo {
	name := c.cur
	c.advance()
	return c.namedVariable(name, canAssign)
}

// namedVariable resolves name against the local, upvalue and global
// scopes (in that order, spec.md §4.2) and emits either a read or — when
// canAssign and the next token is an assignment operator — a write.
func (c *Compiler) namedVariable(name token.Token, canAssign bool) valueInfo {
	line := name.Line
	var getOp, setOp vmheap.Opcode
	var operand byte
	var declared *types.Type

	if slot := c.resolveLocal(name.Lexeme); slot != -1 {
		getOp, setOp = vmheap.OpGetLocal, vmheap.OpSetLocal
		operand = byte(slot)
		declared = c.current().locals[slot].declared
	} else if up := c.resolveUpvalue(len(c.funcs)-1, name.Lexeme); up != -1 {
		getOp, setOp = vmheap.OpGetUpvalue, vmheap.OpSetUpvalue
		operand = byte(up)
		declared = types.AnyType()
	} else {
		getOp, setOp = vmheap.OpGetGlobal, vmheap.OpSetGlobal
		operand = c.identifierConstant(name.Lexeme)
		declared = c.globals[name.Lexeme]
		if declared == nil {
			declared = types.AnyType()
		}
	}

	if canAssign && c.check(token.EQUAL) {
		c.advance()
		rhs := c.expression()
		c.emitOpByte(setOp, operand, line)
		_ = rhs
		return valueInfo{typ: declared, assignable: true, name: name.Lexeme}
	}
	if canAssign && isCompoundAssign(c.cur.Kind) {
		op := c.cur
		c.advance()
		c.emitOpByte(getOp, operand, line)
		rhs := c.expression()
		c.emitCompoundBinary(compoundAssignOps[op.Kind], declared, rhs.typ, op.Line)
		c.emitOpByte(setOp, operand, line)
		return valueInfo{typ: declared, assignable: true, name: name.Lexeme}
	}
	c.emitOpByte(getOp, operand, line)
	return valueInfo{typ: declared, assignable: true, name: name.Lexeme, isClass: c.classes[name.Lexeme] != nil}
}

func (c *Compiler) thisExpression(canAssign bool) valueInfo {
	line := c.cur.Line
	if !c.current().inMethod {
		c.errorAtCurrent("'this' outside of a method")
	}
	c.advance()
	c.emitOp(vmheap.OpGetThis, line)
	var t *types.Type
	if c.currentClass != nil {
		t = types.ClassType(c.currentClass.name, c.classes[c.currentClass.name])
	} else {
		t = types.AnyType()
	}
	return namelessInfo(t)
}

func (c *Compiler) superExpression(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // 'super'
	if c.currentClass == nil {
		c.errorAtCurrent("'super' used outside of a class")
	} else if !c.currentClass.hasSuperclass {
		c.errorAtCurrent("'super' used in a class with no superclass")
	}
	c.consume(token.DOT, "expected '.' after 'super'")
	name := c.cur
	c.consume(token.IDENT, "expected superclass method name")
	c.emitOpByte(vmheap.OpGetSuper, c.identifierConstant(name.Lexeme), line)
	return namelessInfo(types.AnyType())
}

// --- call / member access ------------------------------------------------

func (c *Compiler) call(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // '('
	argc := 0
	for !c.check(token.RPAREN) && !c.check(token.EOF) {
		c.expression()
		argc++
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RPAREN, "expected ')' after arguments")
	if argc > 255 {
		c.errorAtCurrent("too many arguments")
	}
	c.emitOpByte(vmheap.OpCall, byte(argc), line)
	return namelessInfo(types.AnyType())
}

func (c *Compiler) dot(canAssign bool) valueInfo {
	c.advance() // '.'
	name := c.cur
	c.consume(token.IDENT, "expected property name after '.'")
	nameIdx := c.identifierConstant(name.Lexeme)

	if canAssign && c.check(token.EQUAL) {
		c.advance()
		c.expression()
		c.emitOpByte(vmheap.OpSetProperty, nameIdx, name.Line)
		return valueInfo{typ: types.AnyType(), assignable: true, name: name.Lexeme}
	}
	if canAssign && (c.check(token.PLUS_PLUS) || c.check(token.MINUS_MINUS)) {
		op := c.cur
		c.advance()
		c.emitOp(vmheap.OpDup, name.Line)
		c.emitOpByte(vmheap.OpGetProperty, nameIdx, name.Line)
		c.emitConstant(vmheap.Number(1), op.Line)
		if op.Kind == token.PLUS_PLUS {
			c.emitOp(vmheap.OpAdd, op.Line)
		} else {
			c.emitOp(vmheap.OpSub, op.Line)
		}
		c.emitOpByte(vmheap.OpSetProperty, nameIdx, name.Line)
		return valueInfo{typ: types.AnyType(), assignable: true, name: name.Lexeme}
	}
	if canAssign && isCompoundAssign(c.cur.Kind) {
		op := c.cur
		c.advance()
		c.emitOp(vmheap.OpDup, name.Line)
		c.emitOpByte(vmheap.OpGetProperty, nameIdx, name.Line)
		rhs := c.expression()
		c.emitCompoundBinary(compoundAssignOps[op.Kind], types.AnyType(), rhs.typ, op.Line)
		c.emitOpByte(vmheap.OpSetProperty, nameIdx, name.Line)
		return valueInfo{typ: types.AnyType(), assignable: true, name: name.Lexeme}
	}
	c.emitOpByte(vmheap.OpGetProperty, nameIdx, name.Line)
	return valueInfo{typ: types.AnyType(), assignable: true, name: name.Lexeme}
}

func (c *Compiler) subscript(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // '['
	c.expression()
	c.consume(token.RBRACKET, "expected ']' after index")

	if canAssign && c.check(token.EQUAL) {
		c.advance()
		c.expression()
		c.emitOp(vmheap.OpSetIndex, line)
		return valueInfo{typ: types.AnyType(), assignable: true}
	}
	if canAssign && (c.check(token.PLUS_PLUS) || c.check(token.MINUS_MINUS)) {
		op := c.cur
		c.advance()
		c.emitOp(vmheap.OpDup2, line)
		c.emitOp(vmheap.OpGetIndex, line)
		c.emitConstant(vmheap.Number(1), op.Line)
		if op.Kind == token.PLUS_PLUS {
			c.emitOp(vmheap.OpAdd, op.Line)
		} else {
			c.emitOp(vmheap.OpSub, op.Line)
		}
		c.emitOp(vmheap.OpSetIndex, line)
		return valueInfo{typ: types.AnyType(), assignable: true}
	}
	if canAssign && isCompoundAssign(c.cur.Kind) {
		op := c.cur
		c.advance()
		c.emitOp(vmheap.OpDup2, line)
		c.emitOp(vmheap.OpGetIndex, line)
		rhs := c.expression()
		c.emitCompoundBinary(compoundAssignOps[op.Kind], types.AnyType(), rhs.typ, op.Line)
		c.emitOp(vmheap.OpSetIndex, line)
		return valueInfo{typ: types.AnyType(), assignable: true}
	}
	c.emitOp(vmheap.OpGetIndex, line)
	return valueInfo{typ: types.AnyType(), assignable: true}
}

// castOperator compiles `expr as Type`, emitting the narrowing/widening
// coercion opcode that matches the target type (spec.md §4.4's
// NARROW_INT/INT_TO_FLOAT/INT_TO_STR family).
func (c *Compiler) castOperator(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // 'as'
	target := c.parseType()
	c.emitCoerceToType(target, line)
	return namelessInfo(target)
}

// --- unary / binary -------------------------------------------------------

func (c *Compiler) unary(canAssign bool) valueInfo {
	op := c.cur
	c.advance()
	operand := c.parsePrecedence(precUnary)
	switch op.Kind {
	case token.BANG:
		c.emitOp(vmheap.OpNot, op.Line)
		return namelessInfo(types.BoolType())
	default: // MINUS
		c.emitOp(vmheap.OpNeg, op.Line)
		return namelessInfo(operand.typ)
	}
}

// prefixUpdate compiles `++x` / `--x`: only a bare identifier is a valid
// operand, the same restriction original_source's prefixUpdate enforces.
func (c *Compiler) prefixUpdate(canAssign bool) valueInfo {
	op := c.cur
	c.advance()
	if !c.check(token.IDENT) {
		c.errorAtCurrent("'++'/'--' requires a variable operand")
		return c.parsePrecedence(precUnary)
	}
	name := c.cur
	c.advance()

	var getOp, setOp vmheap.Opcode
	var operand byte
	var declared *types.Type
	if slot := c.resolveLocal(name.Lexeme); slot != -1 {
		getOp, setOp, operand, declared = vmheap.OpGetLocal, vmheap.OpSetLocal, byte(slot), c.current().locals[slot].declared
	} else if up := c.resolveUpvalue(len(c.funcs)-1, name.Lexeme); up != -1 {
		getOp, setOp, operand, declared = vmheap.OpGetUpvalue, vmheap.OpSetUpvalue, byte(up), types.AnyType()
	} else {
		getOp, setOp = vmheap.OpGetGlobal, vmheap.OpSetGlobal
		operand = c.identifierConstant(name.Lexeme)
		declared = c.globals[name.Lexeme]
		if declared == nil {
			declared = types.AnyType()
		}
	}

	c.emitOpByte(getOp, operand, op.Line)
	c.emitConstant(vmheap.Number(1), op.Line)
	if op.Kind == token.PLUS_PLUS {
		c.emitOp(arithmeticOpcode(token.PLUS, declared), op.Line)
	} else {
		c.emitOp(arithmeticOpcode(token.MINUS, declared), op.Line)
	}
	c.emitCoerceToType(declared, op.Line)
	c.emitOpByte(setOp, operand, op.Line)
	return namelessInfo(declared)
}

func (c *Compiler) binary(canAssign bool) valueInfo {
	op := c.cur
	rule := c.getRule(op.Kind)
	c.advance()
	right := c.parsePrecedence(rule.precedence + 1)

	switch op.Kind {
	case token.PLUS:
		c.emitOp(arithmeticOpcode(token.PLUS, right.typ), op.Line)
		return namelessInfo(numericResult(right.typ))
	case token.MINUS:
		c.emitOp(arithmeticOpcode(token.MINUS, right.typ), op.Line)
		return namelessInfo(numericResult(right.typ))
	case token.STAR:
		c.emitOp(arithmeticOpcode(token.STAR, right.typ), op.Line)
		return namelessInfo(numericResult(right.typ))
	case token.SLASH:
		c.emitOp(arithmeticOpcode(token.SLASH, right.typ), op.Line)
		return namelessInfo(numericResult(right.typ))
	case token.LESS_LESS:
		c.emitOp(vmheap.OpShl, op.Line)
		return namelessInfo(right.typ)
	case token.GREATER_GREATER:
		c.emitOp(vmheap.OpShr, op.Line)
		return namelessInfo(right.typ)
	case token.EQUAL_EQUAL:
		c.emitOp(vmheap.OpEqual, op.Line)
		return namelessInfo(types.BoolType())
	case token.BANG_EQUAL:
		c.emitOp(vmheap.OpNotEqual, op.Line)
		return namelessInfo(types.BoolType())
	case token.LESS:
		c.emitOp(vmheap.OpLess, op.Line)
		return namelessInfo(types.BoolType())
	case token.LESS_EQUAL:
		c.emitOp(vmheap.OpLessEqual, op.Line)
		return namelessInfo(types.BoolType())
	case token.GREATER:
		c.emitOp(vmheap.OpGreater, op.Line)
		return namelessInfo(types.BoolType())
	case token.GREATER_EQUAL:
		c.emitOp(vmheap.OpGreaterEqual, op.Line)
		return namelessInfo(types.BoolType())
	default:
		return namelessInfo(types.AnyType())
	}
}

// andOperator/orOperator short-circuit: the left operand stays on the
// stack as the result when it already determines the outcome, matching
// original_source's andOperator/orOperator jump pattern exactly.
func (c *Compiler) andOperator(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // 'and'
	endJump := c.emitJump(vmheap.OpJumpIfFalse, line)
	c.emitOp(vmheap.OpPop, line)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
	return namelessInfo(types.BoolType())
}

func (c *Compiler) orOperator(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // 'or'
	elseJump := c.emitJump(vmheap.OpJumpIfFalse, line)
	endJump := c.emitJump(vmheap.OpJump, line)
	c.patchJump(elseJump)
	c.emitOp(vmheap.OpPop, line)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
	return namelessInfo(types.BoolType())
}

// --- container literals ----------------------------------------------------

func (c *Compiler) arrayLiteral(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // '['
	count := 0
	for !c.check(token.RBRACKET) && !c.check(token.EOF) {
		c.expression()
		count++
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACKET, "expected ']' to close array literal")
	if count > 255 {
		c.errorAtCurrent("too many array literal elements")
	}
	c.emitOpByte(vmheap.OpBuildArray, byte(count), line)
	return namelessInfo(types.ArrayType(types.AnyType()))
}

func (c *Compiler) dictLiteral(canAssign bool) valueInfo {
	line := c.cur.Line
	c.advance() // '{'
	count := 0
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.expression()
		c.consume(token.COLON, "expected ':' after dict key")
		c.expression()
		count++
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACE, "expected '}' to close dict literal")
	if count > 255 {
		c.errorAtCurrent("too many dict literal entries")
	}
	c.emitOpByte(vmheap.OpBuildDict, byte(count), line)
	return namelessInfo(types.DictType(types.AnyType(), types.AnyType()))
}

func isCompoundAssign(k token.Kind) bool {
	_, ok := compoundAssignOps[k]
	return ok
}

var compoundAssignOps = map[token.Kind]token.Kind{
	token.PLUS_EQUAL:            token.PLUS,
	token.MINUS_EQUAL:           token.MINUS,
	token.STAR_EQUAL:            token.STAR,
	token.SLASH_EQUAL:           token.SLASH,
	token.LESS_LESS_EQUAL:       token.LESS_LESS,
	token.GREATER_GREATER_EQUAL: token.GREATER_GREATER,
}

func numericResult(t *types.Type) *types.Type {
	if t == nil || !t.IsNumeric() {
		return types.F64Type()
	}
	return t
}
