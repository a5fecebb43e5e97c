package compiler

import (
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

func (c *Compiler) statement() {
	switch {
	case c.match(token.LBRACE):
		c.block()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.PRINT):
		c.printStatement()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	c.beginScope()
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	line := c.cur.Line
	c.consume(token.RBRACE, "expected '}' to close block")
	c.endScope(line)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expected '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "expected ')' after condition")

	line := c.cur.Line
	thenJump := c.emitJump(vmheap.OpJumpIfFalse, line)
	c.emitOp(vmheap.OpPop, line)
	c.statement()

	if c.match(token.ELSE) {
		elseLine := c.cur.Line
		elseJump := c.emitJump(vmheap.OpJump, elseLine)
		c.patchJump(thenJump)
		c.emitOp(vmheap.OpPop, elseLine)
		c.statement()
		c.patchJump(elseJump)
	} else {
		c.patchJump(thenJump)
		c.emitOp(vmheap.OpPop, line)
	}
}

func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()

	c.consume(token.LPAREN, "expected '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "expected ')' after condition")

	line := c.cur.Line
	exitJump := c.emitJump(vmheap.OpJumpIfFalse, line)
	c.emitOp(vmheap.OpPop, line)
	c.statement()
	c.emitLoop(loopStart, line)

	c.patchJump(exitJump)
	c.emitOp(vmheap.OpPop, line)
}

// forStatement handles both the foreach form `for (var x : iterable) body`
// — lowered to the ITER_INIT/ITER_HAS_NEXT/ITER_NEXT sequence
// (spec.md §4.4) — and the C-style `for (init; cond; post) body`,
// matching original_source/Compiler.cpp's forStatement exactly.
func (c *Compiler) forStatement() {
	c.consume(token.LPAREN, "expected '(' after 'for'")
	c.beginScope()

	if c.check(token.SEMICOLON) {
		c.advance()
	} else if c.check(token.VAR) && c.peek().Kind == token.IDENT {
		c.advance() // 'var'
		loopVar := c.cur
		c.consume(token.IDENT, "expected variable name")

		if c.check(token.COLON) {
			c.advance()
			c.addLocal(loopVar.Lexeme, nil)
			line := c.cur.Line
			c.emitOp(vmheap.OpNil, line)
			c.markInitialized()
			loopVarSlot := byte(len(c.current().locals) - 1)

			c.expression()
			c.consume(token.RPAREN, "expected ')' after foreach iterable")

			c.emitOp(vmheap.OpIterInit, line)
			loopStart := c.chunk().Len()
			c.emitOp(vmheap.OpDup, line)
			c.emitOp(vmheap.OpIterHasNext, line)
			exitJump := c.emitJump(vmheap.OpJumpIfFalse, line)
			c.emitOp(vmheap.OpPop, line)

			c.emitOp(vmheap.OpDup, line)
			c.emitOp(vmheap.OpIterNext, line)
			c.emitOpByte(vmheap.OpSetLocal, loopVarSlot, line)
			c.emitOp(vmheap.OpPop, line)

			c.statement()
			c.emitLoop(loopStart, line)

			c.patchJump(exitJump)
			c.emitOp(vmheap.OpPop, line)
			c.emitOp(vmheap.OpPop, line)

			c.endScope(line)
			return
		}

		isLocal, globalIdx := c.parseVariable(loopVar, nil)
		if c.match(token.EQUAL) {
			c.expression()
		} else {
			c.emitOp(vmheap.OpNil, loopVar.Line)
		}
		c.consume(token.SEMICOLON, "expected ';' after variable declaration")
		c.defineVariable(isLocal, globalIdx, loopVar.Line)
	} else {
		c.expressionStatementNoSemi()
	}

	loopStart := c.chunk().Len()
	exitJump := -1

	if !c.check(token.SEMICOLON) {
		c.expression()
		line := c.cur.Line
		c.consume(token.SEMICOLON, "expected ';' after loop condition")
		exitJump = c.emitJump(vmheap.OpJumpIfFalse, line)
		c.emitOp(vmheap.OpPop, line)
	} else {
		c.advance()
	}

	if !c.check(token.RPAREN) {
		line := c.cur.Line
		bodyJump := c.emitJump(vmheap.OpJump, line)
		incrementStart := c.chunk().Len()

		c.expression()
		c.emitOp(vmheap.OpPop, line)
		c.consume(token.RPAREN, "expected ')' after for clauses")

		c.emitLoop(loopStart, line)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.advance()
	}

	c.statement()
	c.emitLoop(loopStart, c.cur.Line)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(vmheap.OpPop, c.cur.Line)
	}

	c.endScope(c.cur.Line)
}

// expressionStatementNoSemi compiles the C-style for-loop initializer
// clause: an expression whose result is discarded, terminated by ';'.
func (c *Compiler) expressionStatementNoSemi() {
	c.expression()
	line := c.cur.Line
	c.consume(token.SEMICOLON, "expected ';' after loop initializer")
	c.emitOp(vmheap.OpPop, line)
}

func (c *Compiler) printStatement() {
	c.expression()
	line := c.cur.Line
	c.match(token.SEMICOLON)
	c.emitOp(vmheap.OpPrint, line)
}

func (c *Compiler) returnStatement() {
	line := c.cur.Line
	fs := c.current()
	if fs.kind != kindFunction {
		c.errorAtCurrent("cannot return from top-level code")
	}

	if c.check(token.SEMICOLON) || c.check(token.RBRACE) {
		c.match(token.SEMICOLON)
		c.emitOp(vmheap.OpNil, line)
		c.emitOp(vmheap.OpReturn, line)
		return
	}

	c.expression()
	c.emitCoerceToType(fs.returnType, line)
	c.match(token.SEMICOLON)
	c.emitOp(vmheap.OpReturn, line)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	line := c.cur.Line
	c.match(token.SEMICOLON)
	c.emitOp(vmheap.OpPop, line)
}
