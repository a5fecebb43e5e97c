package typecheck

import (
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
)

func (c *Checker) statement() {
	switch {
	case c.match(token.LBRACE):
		c.scopes.push()
		c.block()
		c.scopes.pop()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.PRINT):
		c.expression()
		c.match(token.SEMICOLON)
	default:
		c.expression()
		c.match(token.SEMICOLON)
	}
}

func (c *Checker) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expected '}' to close block")
}

func (c *Checker) requireBoolCondition(info ExprInfo, context string) {
	if info.Type.Kind != types.BOOL && !info.Type.IsAny() {
		c.errors.Addf(diagnostics.TypeError, info.Line, "", "%s condition must be bool, got %s", context, info.Type)
	}
}

func (c *Checker) ifStatement() {
	c.consume(token.LPAREN, "expected '(' after 'if'")
	cond := c.expression()
	c.requireBoolCondition(cond, "if")
	c.consume(token.RPAREN, "expected ')' after condition")
	c.statement()
	if c.match(token.ELSE) {
		c.statement()
	}
}

func (c *Checker) whileStatement() {
	c.consume(token.LPAREN, "expected '(' after 'while'")
	cond := c.expression()
	c.requireBoolCondition(cond, "while")
	c.consume(token.RPAREN, "expected ')' after condition")
	c.statement()
}

// forStatement handles both `for (init; cond; post) body` and
// `for (var x : iterable) body` (spec.md §4.4).
func (c *Checker) forStatement() {
	c.consume(token.LPAREN, "expected '(' after 'for'")
	c.scopes.push()
	defer c.scopes.pop()

	if c.check(token.VAR) && c.isForEachForm() {
		c.advance()
		loopVar := c.cur
		c.consume(token.IDENT, "expected loop variable name")
		c.consume(token.COLON, "expected ':' in for-each")
		iterable := c.expression()
		elemType := types.AnyType()
		if iterable.Type.Kind == types.ARRAY || iterable.Type.Kind == types.SET {
			if iterable.Type.ElementType != nil {
				elemType = iterable.Type.ElementType
			}
		} else if iterable.Type.Kind == types.DICT {
			if iterable.Type.KeyType != nil {
				elemType = iterable.Type.KeyType
			}
		}
		c.consume(token.RPAREN, "expected ')' after for-each clause")
		c.scopes.declare(&Symbol{Name: loopVar.Lexeme, Type: elemType})
		c.statement()
		return
	}

	if !c.match(token.SEMICOLON) {
		c.declaration()
	}
	if !c.check(token.SEMICOLON) {
		cond := c.expression()
		c.requireBoolCondition(cond, "for")
	}
	c.consume(token.SEMICOLON, "expected ';' after loop condition")
	if !c.check(token.RPAREN) {
		c.expression()
	}
	c.consume(token.RPAREN, "expected ')' after for clauses")
	c.statement()
}

// isForEachForm looks past `var IDENT` for a ':' to disambiguate the
// foreach form from the C-style `for (var i = 0; ...)`.
func (c *Checker) isForEachForm() bool {
	return c.peek().Kind == token.IDENT && c.stream.Peek(1).Kind == token.COLON
}

func (c *Checker) returnStatement() {
	line := c.cur.Line
	var fc *funcCtx
	if len(c.funcs) > 0 {
		fc = c.funcs[len(c.funcs)-1]
	}
	if c.check(token.SEMICOLON) || c.check(token.RBRACE) {
		c.match(token.SEMICOLON)
		if fc != nil && !fc.returnType.IsVoid() && !fc.returnType.IsAny() {
			c.errors.Addf(diagnostics.TypeError, line, "return", "bare return not valid for declared return type %s", fc.returnType)
		}
		return
	}
	info := c.expression()
	c.match(token.SEMICOLON)
	if fc != nil && !types.IsAssignable(info.Type, fc.returnType) {
		c.errors.Addf(diagnostics.TypeError, line, "return", "cannot return %s from function declared to return %s", info.Type, fc.returnType)
	}
}
