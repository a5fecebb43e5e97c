package typecheck

import (
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
)

func (c *Checker) expression() ExprInfo {
	return c.assignment()
}

var compoundOps = map[token.Kind]bool{
	token.PLUS_EQUAL: true, token.MINUS_EQUAL: true,
	token.STAR_EQUAL: true, token.SLASH_EQUAL: true,
	token.LESS_LESS_EQUAL: true, token.GREATER_GREATER_EQUAL: true,
}

func (c *Checker) assignment() ExprInfo {
	left := c.orExpr()

	if c.check(token.EQUAL) {
		line := c.cur.Line
		c.advance()
		right := c.assignment()
		if !left.IsAssignable {
			c.errorAt(c.cur, "Invalid assignment target")
			return left
		}
		if !types.IsAssignable(right.Type, left.Type) {
			c.errors.Addf(diagnostics.TypeError, line, left.Name, "cannot assign %s to %s", right.Type, left.Type)
		}
		return ExprInfo{Type: left.Type, Line: line}
	}

	if compoundOps[c.cur.Kind] {
		line := c.cur.Line
		c.advance()
		right := c.assignment()
		if !left.IsAssignable {
			c.errorAt(c.cur, "Invalid assignment target")
			return left
		}
		if !left.Type.IsNumeric() && !left.Type.IsAny() {
			c.errors.Addf(diagnostics.TypeError, line, left.Name, "compound assignment requires a numeric target, got %s", left.Type)
			return left
		}
		promoted := types.NumericPromotion(left.Type, right.Type)
		if promoted == nil {
			c.errors.Addf(diagnostics.TypeError, line, left.Name, "compound assignment requires numeric operands")
		} else if !types.IsAssignable(promoted, left.Type) {
			c.errors.Addf(diagnostics.TypeError, line, left.Name, "compound-assignment result %s not assignable back to %s", promoted, left.Type)
		}
		return ExprInfo{Type: left.Type, Line: line}
	}

	return left
}

func (c *Checker) orExpr() ExprInfo {
	left := c.andExpr()
	for c.check(token.OR) {
		line := c.cur.Line
		c.advance()
		right := c.andExpr()
		c.requireBool(left, "or")
		c.requireBool(right, "or")
		left = ExprInfo{Type: types.BoolType(), Line: line}
	}
	return left
}

func (c *Checker) andExpr() ExprInfo {
	left := c.equality()
	for c.check(token.AND) {
		line := c.cur.Line
		c.advance()
		right := c.equality()
		c.requireBool(left, "and")
		c.requireBool(right, "and")
		left = ExprInfo{Type: types.BoolType(), Line: line}
	}
	return left
}

func (c *Checker) requireBool(info ExprInfo, op string) {
	if info.Type.Kind != types.BOOL && !info.Type.IsAny() {
		c.errors.Addf(diagnostics.TypeError, info.Line, "", "'%s' requires bool operands, got %s", op, info.Type)
	}
}

func (c *Checker) equality() ExprInfo {
	left := c.comparison()
	for c.check(token.EQUAL_EQUAL) || c.check(token.BANG_EQUAL) {
		line := c.cur.Line
		c.advance()
		right := c.comparison()
		if !types.IsAssignable(left.Type, right.Type) && !types.IsAssignable(right.Type, left.Type) {
			c.errors.Addf(diagnostics.TypeError, line, "", "cannot compare %s and %s for equality", left.Type, right.Type)
		}
		left = ExprInfo{Type: types.BoolType(), Line: line}
	}
	return left
}

func (c *Checker) comparison() ExprInfo {
	left := c.shift()
	for c.check(token.LESS) || c.check(token.LESS_EQUAL) || c.check(token.GREATER) || c.check(token.GREATER_EQUAL) {
		line := c.cur.Line
		c.advance()
		right := c.shift()
		c.requireNumeric(left, "comparison")
		c.requireNumeric(right, "comparison")
		left = ExprInfo{Type: types.BoolType(), Line: line}
	}
	return left
}

func (c *Checker) requireNumeric(info ExprInfo, context string) {
	if !info.Type.IsNumeric() && !info.Type.IsAny() {
		c.errors.Addf(diagnostics.TypeError, info.Line, "", "%s requires numeric operands, got %s", context, info.Type)
	}
}

func (c *Checker) shift() ExprInfo {
	left := c.term()
	for c.check(token.LESS_LESS) || c.check(token.GREATER_GREATER) {
		line := c.cur.Line
		c.advance()
		right := c.term()
		c.requireNumeric(left, "shift")
		c.requireNumeric(right, "shift")
		left = ExprInfo{Type: left.Type, Line: line}
	}
	return left
}

func (c *Checker) term() ExprInfo {
	left := c.factor()
	for c.check(token.PLUS) || c.check(token.MINUS) {
		op := c.cur
		c.advance()
		right := c.factor()
		if op.Kind == token.PLUS && left.Type.Kind == types.STR && right.Type.Kind == types.STR {
			left = ExprInfo{Type: types.StrType(), Line: op.Line}
			continue
		}
		c.requireNumeric(left, "arithmetic")
		c.requireNumeric(right, "arithmetic")
		promoted := types.NumericPromotion(left.Type, right.Type)
		if promoted == nil {
			promoted = types.AnyType()
		}
		left = ExprInfo{Type: promoted, Line: op.Line}
	}
	return left
}

func (c *Checker) factor() ExprInfo {
	left := c.unary()
	for c.check(token.STAR) || c.check(token.SLASH) {
		op := c.cur
		c.advance()
		right := c.unary()
		c.requireNumeric(left, "arithmetic")
		c.requireNumeric(right, "arithmetic")
		promoted := types.NumericPromotion(left.Type, right.Type)
		if promoted == nil {
			promoted = types.AnyType()
		}
		left = ExprInfo{Type: promoted, Line: op.Line}
	}
	return left
}

func (c *Checker) unary() ExprInfo {
	switch {
	case c.check(token.MINUS), c.check(token.BANG), c.check(token.PLUS_PLUS), c.check(token.MINUS_MINUS):
		op := c.cur
		c.advance()
		operand := c.unary()
		switch op.Kind {
		case token.BANG:
			c.requireBool(operand, "!")
			return ExprInfo{Type: types.BoolType(), Line: op.Line}
		case token.PLUS_PLUS, token.MINUS_MINUS:
			if !operand.Type.IsNumeric() && !operand.Type.IsAny() {
				c.errors.Addf(diagnostics.TypeError, op.Line, "", "update operator requires a numeric target, got %s", operand.Type)
			}
			return ExprInfo{Type: operand.Type, Line: op.Line}
		default: // MINUS
			c.requireNumeric(operand, "unary -")
			return ExprInfo{Type: operand.Type, Line: op.Line}
		}
	default:
		return c.callLevel()
	}
}

// callLevel parses call/dot/subscript/as, all at PREC_CALL in the
// original implementation (original_source/Compiler.cpp's table), after
// a primary expression.
func (c *Checker) callLevel() ExprInfo {
	expr := c.primary()
	for {
		switch {
		case c.check(token.LPAREN):
			expr = c.finishCall(expr)
		case c.check(token.DOT):
			expr = c.finishDot(expr)
		case c.check(token.LBRACKET):
			expr = c.finishSubscript(expr)
		case c.check(token.AS):
			expr = c.finishCast(expr)
		default:
			return expr
		}
	}
}

func (c *Checker) finishCall(callee ExprInfo) ExprInfo {
	line := c.cur.Line
	c.advance() // '('
	var args []ExprInfo
	for !c.check(token.RPAREN) && !c.check(token.EOF) {
		args = append(args, c.expression())
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RPAREN, "expected ')' after arguments")

	if callee.IsClassSymbol {
		return ExprInfo{Type: callee.Type, Line: line}
	}

	if callee.Type.Kind != types.FUNCTION && !callee.Type.IsAny() {
		c.errors.Addf(diagnostics.TypeError, line, callee.Name, "cannot call a value of type %s", callee.Type)
		return ExprInfo{Type: types.AnyType(), Line: line}
	}
	if callee.Type.Kind == types.FUNCTION {
		// spec.md §9 open question (b): empty ParamTypes means
		// unconstrained arity, not zero.
		if len(callee.Type.ParamTypes) > 0 {
			if len(args) != len(callee.Type.ParamTypes) {
				c.errors.Addf(diagnostics.TypeError, line, callee.Name,
					"expected %d argument(s), got %d", len(callee.Type.ParamTypes), len(args))
			} else {
				for i, a := range args {
					if !types.IsAssignable(a.Type, callee.Type.ParamTypes[i]) {
						c.errors.Addf(diagnostics.TypeError, a.Line, "",
							"argument %d: cannot pass %s as %s", i+1, a.Type, callee.Type.ParamTypes[i])
					}
				}
			}
		}
		return ExprInfo{Type: callee.Type.ReturnType, Line: line}
	}
	return ExprInfo{Type: types.AnyType(), Line: line}
}

func (c *Checker) finishDot(receiver ExprInfo) ExprInfo {
	c.advance() // '.'
	name := c.cur
	c.consume(token.IDENT, "expected property name after '.'")
	// Field/method types are only statically known for a receiver with a
	// resolved class reference; otherwise this degrades to `any`, matching
	// the dynamic field map InstanceObject carries at runtime.
	if receiver.Type.Kind == types.CLASS || receiver.Type.IsAny() {
		return ExprInfo{Type: types.AnyType(), IsAssignable: true, Name: name.Lexeme, Line: name.Line}
	}
	c.errors.Addf(diagnostics.TypeError, name.Line, name.Lexeme, "cannot access property on %s", receiver.Type)
	return ExprInfo{Type: types.AnyType(), IsAssignable: true, Name: name.Lexeme, Line: name.Line}
}

func (c *Checker) finishSubscript(receiver ExprInfo) ExprInfo {
	line := c.cur.Line
	c.advance() // '['
	idx := c.expression()
	c.consume(token.RBRACKET, "expected ']' after index")

	elem := types.AnyType()
	switch receiver.Type.Kind {
	case types.ARRAY:
		c.requireNumeric(idx, "array index")
		if receiver.Type.ElementType != nil {
			elem = receiver.Type.ElementType
		}
	case types.DICT:
		if receiver.Type.ValueType != nil {
			elem = receiver.Type.ValueType
		}
	case types.ANY:
		// unresolved, stay permissive
	default:
		c.errors.Addf(diagnostics.TypeError, line, "", "cannot index into %s", receiver.Type)
	}
	return ExprInfo{Type: elem, IsAssignable: true, Line: line}
}

func (c *Checker) finishCast(operand ExprInfo) ExprInfo {
	line := c.cur.Line
	c.advance() // 'as'
	target := c.parseType()
	ok := operand.Type.IsAny() || target.IsAny() ||
		types.IsAssignable(operand.Type, target) || types.IsAssignable(target, operand.Type) ||
		(operand.Type.IsNumeric() && target.IsNumeric()) ||
		(operand.Type.IsNumeric() && target.Kind == types.STR)
	if !ok {
		c.errors.Addf(diagnostics.TypeError, line, "as", "cannot cast %s to %s", operand.Type, target)
	}
	return ExprInfo{Type: target, Line: line}
}

func (c *Checker) primary() ExprInfo {
	line := c.cur.Line
	switch {
	case c.match(token.NUMBER):
		return ExprInfo{Type: types.F64Type(), Line: line}
	case c.match(token.STRING):
		return ExprInfo{Type: types.StrType(), Line: line}
	case c.match(token.TRUE), c.match(token.FALSE):
		return ExprInfo{Type: types.BoolType(), Line: line}
	case c.match(token.NULL):
		return ExprInfo{Type: types.NullType(), Line: line}
	case c.match(token.THIS):
		if c.curClass == nil {
			c.errorAt(c.cur, "'this' outside of a class")
			return ExprInfo{Type: types.AnyType(), Line: line}
		}
		return ExprInfo{Type: types.ClassType(c.curClass.Name, c.curClass), Line: line}
	case c.match(token.SUPER):
		if c.superOf == nil {
			c.errorAt(c.cur, "'super' used outside a class with a superclass")
		}
		c.consume(token.DOT, "expected '.' after 'super'")
		name := c.cur
		c.consume(token.IDENT, "expected superclass method name")
		_ = name
		return ExprInfo{Type: types.AnyType(), Line: line}
	case c.match(token.LPAREN):
		inner := c.expression()
		c.consume(token.RPAREN, "expected ')' after expression")
		return ExprInfo{Type: inner.Type, Line: line}
	case c.match(token.LBRACKET):
		return c.arrayLiteral(line)
	case c.match(token.LBRACE):
		return c.dictLiteral(line)
	case c.check(token.IDENT):
		name := c.cur
		c.advance()
		sym, ok := c.scopes.resolve(name.Lexeme)
		if !ok {
			c.errorAt(name, "undefined name '"+name.Lexeme+"'")
			return ExprInfo{Type: types.AnyType(), IsAssignable: true, Name: name.Lexeme, Line: line}
		}
		return ExprInfo{Type: sym.Type, IsAssignable: !sym.IsClassSymbol, IsClassSymbol: sym.IsClassSymbol, Name: name.Lexeme, Line: line}
	default:
		c.errorAt(c.cur, "expected an expression")
		c.advance()
		return ExprInfo{Type: types.AnyType(), Line: line}
	}
}

func (c *Checker) arrayLiteral(line int) ExprInfo {
	var elemType *types.Type
	for !c.check(token.RBRACKET) && !c.check(token.EOF) {
		el := c.expression()
		if elemType == nil {
			elemType = el.Type
		} else if !types.IsAssignable(el.Type, elemType) {
			elemType = types.AnyType()
		}
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACKET, "expected ']' to close array literal")
	if elemType == nil {
		elemType = types.AnyType()
	}
	return ExprInfo{Type: types.ArrayType(elemType), Line: line}
}

func (c *Checker) dictLiteral(line int) ExprInfo {
	var keyType, valType *types.Type
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		k := c.expression()
		c.consume(token.COLON, "expected ':' after dict key")
		v := c.expression()
		if keyType == nil {
			keyType, valType = k.Type, v.Type
		} else {
			if !types.IsAssignable(k.Type, keyType) {
				keyType = types.AnyType()
			}
			if !types.IsAssignable(v.Type, valType) {
				valType = types.AnyType()
			}
		}
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RBRACE, "expected '}' to close dict literal")
	if keyType == nil {
		keyType, valType = types.AnyType(), types.AnyType()
	}
	return ExprInfo{Type: types.DictType(keyType, valType), Line: line}
}
