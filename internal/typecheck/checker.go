// Package typecheck implements the independent second pass over the
// token stream described by spec.md §4.3: a pre-pass that builds a
// symbol table and reports type errors before any code generation is
// attempted. It shares no mutable state with internal/compiler — each
// walks its own lexstream.Stream from scratch.
package typecheck

import (
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/lexstream"
	"github.com/funvibe/scriptlang/internal/stdlib"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
)

// funcCtx tracks the declared return type of the function currently
// being walked, so `return` statements can be checked against it.
type funcCtx struct {
	returnType *types.Type
	inMethod   bool
}

// Checker is the type-checking pre-pass. Check is its sole entry point.
type Checker struct {
	stream *lexstream.Stream
	cur    token.Token

	scopes  *scopeStack
	classes map[string]*types.ClassInfo

	funcs     []*funcCtx
	curClass  *types.ClassInfo
	superOf   *types.ClassInfo // curClass's superclass, or nil

	errors    *diagnostics.List
	panicMode bool
}

// Check runs the full pre-pass over src and returns the accumulated
// diagnostics. An empty list means compilation may proceed.
func Check(src string) *diagnostics.List {
	c := &Checker{
		stream:  lexstream.New(src),
		scopes:  newScopeStack(),
		classes: prescanClasses(src),
		errors:  diagnostics.NewList(),
	}
	for name, sig := range stdlib.Signatures() {
		c.scopes.declare(&Symbol{Name: name, Type: sig})
	}
	for name, sig := range prescanFunctions(src, c.classes) {
		c.scopes.declare(&Symbol{Name: name, Type: sig})
	}
	for name, info := range c.classes {
		c.scopes.declare(&Symbol{Name: name, Type: types.ClassType(name, info), IsClassSymbol: true})
	}

	c.advance()
	for !c.check(token.EOF) {
		c.declaration()
	}
	return c.errors
}

func (c *Checker) advance() {
	c.cur = c.stream.Advance()
	if c.cur.Kind == token.ERROR {
		c.errorAt(c.cur, c.cur.Lexeme)
	}
}

func (c *Checker) peek() token.Token { return c.stream.Peek(0) }

func (c *Checker) check(kind token.Kind) bool { return c.cur.Kind == kind }

func (c *Checker) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Checker) consume(kind token.Kind, message string) bool {
	if c.check(kind) {
		c.advance()
		return true
	}
	c.errorAt(c.cur, message)
	return false
}

func (c *Checker) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.errors.Add(&diagnostics.Diagnostic{Kind: diagnostics.TypeError, Line: tok.Line, Lexeme: tok.Lexeme, Message: message})
}

// synchronize skips tokens until a likely statement boundary, the same
// recovery shape the compiler uses after a syntax error (spec.md §4.4).
func (c *Checker) synchronize() {
	c.panicMode = false
	for !c.check(token.EOF) {
		if c.cur.Kind == token.SEMICOLON {
			c.advance()
			return
		}
		switch c.cur.Kind {
		case token.CLASS, token.FUNCTION, token.VAR, token.FOR, token.IF, token.WHILE, token.RETURN, token.PRINT:
			return
		}
		c.advance()
	}
}

// classLookup adapts c.classes to types.ClassLookup.
func (c *Checker) classLookup(name string) (*types.ClassInfo, bool) {
	info, ok := c.classes[name]
	return info, ok
}

func (c *Checker) parseType() *types.Type {
	t, err := types.ParseTypeExpr(c.cursor(), c.classLookup)
	if err != nil {
		c.errorAt(c.cur, err.Error())
		return types.AnyType()
	}
	return t
}

// cursor adapts the checker's own cur/advance state to types.TokenCursor
// by consulting the live stream for lookahead beyond the current token.
func (c *Checker) cursor() types.TokenCursor { return &checkerCursor{c: c} }

type checkerCursor struct{ c *Checker }

func (cc *checkerCursor) Peek(n int) token.Token {
	if n == 0 {
		return cc.c.cur
	}
	return cc.c.stream.Peek(n - 1)
}

func (cc *checkerCursor) Advance() token.Token {
	t := cc.c.cur
	cc.c.advance()
	return t
}
