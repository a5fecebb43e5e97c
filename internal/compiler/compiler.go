// Package compiler implements the single-pass Pratt parser and bytecode
// emitter described by spec.md §4.4. It never builds an AST: each
// declaration, statement and expression is parsed and immediately
// compiled into the current function's Chunk. It shares no mutable state
// with internal/typecheck — each walks its own lexstream.Stream.
package compiler

import (
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/lexstream"
	"github.com/funvibe/scriptlang/internal/stdlib"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// classContext tracks the class currently being compiled, for `this`/
// `super` validity checks and single-inheritance wiring.
type classContext struct {
	name           string
	hasSuperclass  bool
	enclosing      *classContext
}

// Compiler is the single entry point for turning source text into a
// top-level FunctionObject ready for the VM.
type Compiler struct {
	stream *lexstream.Stream
	cur    token.Token

	funcs []*funcState

	globals      map[string]*types.Type // declared type of every global seen so far
	classes      map[string]*types.ClassInfo
	currentClass *classContext

	gc *vmheap.GC

	errors    *diagnostics.List
	panicMode bool
	hadError  bool
}

// Compile runs the full single-pass compile of src and returns the
// top-level script function, ready to be wrapped in a ClosureObject and
// executed, or the accumulated diagnostics on failure.
func Compile(src string, gc *vmheap.GC) (*vmheap.FunctionObject, *diagnostics.List) {
	c := &Compiler{
		stream:  lexstream.New(src),
		globals: make(map[string]*types.Type),
		classes: prescanClasses(src),
		gc:      gc,
		errors:  diagnostics.NewList(),
	}
	c.funcs = []*funcState{newFuncState(kindScript, false, types.AnyType())}
	// The VM keeps the script's own closure in the frame's base slot, so
	// slot 0 is reserved and top-level block locals start at slot 1.
	c.funcs[0].locals = append(c.funcs[0].locals, local{depth: 0, declared: types.AnyType()})
	for name, sig := range stdlib.Signatures() {
		c.globals[name] = sig
	}

	c.advance()
	for !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.EOF, "expected end of source")
	c.emitOp(vmheap.OpHalt, c.cur.Line)

	script := &vmheap.FunctionObject{
		Name:  "<script>",
		Chunk: c.chunk(),
	}
	script.ParamNames = nil
	script.ParamTypes = nil
	script.ReturnType = types.VoidType()
	if c.gc != nil {
		c.gc.Register(script)
	}
	return script, c.errors
}

func (c *Compiler) advance() {
	c.cur = c.stream.Advance()
	if c.cur.Kind == token.ERROR {
		c.errorAtCurrent(c.cur.Lexeme)
	}
}

func (c *Compiler) peek() token.Token { return c.stream.Peek(0) }

func (c *Compiler) check(kind token.Kind) bool { return c.cur.Kind == kind }

func (c *Compiler) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind token.Kind, message string) bool {
	if c.check(kind) {
		c.advance()
		return true
	}
	c.errorAtCurrent(message)
	return false
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.cur, message) }

func (c *Compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	c.errors.Add(&diagnostics.Diagnostic{Kind: diagnostics.CompileError, Line: tok.Line, Lexeme: tok.Lexeme, Message: message})
}

// synchronize skips to the next likely statement boundary after a syntax
// error, the same recovery point original_source/Compiler.cpp uses.
func (c *Compiler) synchronize() {
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

// --- emission helpers, grounded on funvibe-funxy/internal/vm/compiler_scope.go's
// emit/emitJump/patchJump shape, byte-for-byte compatible with vmheap.Chunk.

func (c *Compiler) emitByte(b byte, line int) { c.chunk().Write(b, line) }

func (c *Compiler) emitOp(op vmheap.Opcode, line int) { c.chunk().WriteOp(op, line) }

func (c *Compiler) emitOpByte(op vmheap.Opcode, operand byte, line int) {
	c.emitOp(op, line)
	c.emitByte(operand, line)
}

// makeConstant appends v to the pool (equal values are not merged) and
// returns its single-byte pool index, matching
// Chunk's 256-entry constant pool (spec.md §3.3).
func (c *Compiler) makeConstant(v vmheap.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx >= 256 {
		c.errorAtCurrent("too many constants in one chunk")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v vmheap.Value, line int) {
	c.emitOpByte(vmheap.OpConst, c.makeConstant(v), line)
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(vmheap.Str(name))
}

func (c *Compiler) emitJump(op vmheap.Opcode, line int) int {
	c.emitOp(op, line)
	c.emitByte(0xff, line)
	c.emitByte(0xff, line)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	if !c.chunk().PatchJump(offset) {
		c.errorAtCurrent("jump target too far")
	}
}

func (c *Compiler) emitLoop(loopStart int, line int) {
	if !c.chunk().WriteLoop(loopStart, line) {
		c.errorAtCurrent("loop body too large")
	}
}

// classLookup adapts c.classes to types.ClassLookup for ParseTypeExpr.
func (c *Compiler) classLookup(name string) (*types.ClassInfo, bool) {
	info, ok := c.classes[name]
	return info, ok
}

func (c *Compiler) parseType() *types.Type {
	t, err := types.ParseTypeExpr(c.cursor(), c.classLookup)
	if err != nil {
		c.errorAt(c.cur, err.Error())
		return types.AnyType()
	}
	return t
}

func (c *Compiler) cursor() types.TokenCursor { return &compilerCursor{c: c} }

type compilerCursor struct{ c *Compiler }

func (cc *compilerCursor) Peek(n int) token.Token {
	if n == 0 {
		return cc.c.cur
	}
	return cc.c.stream.Peek(n - 1)
}

func (cc *compilerCursor) Advance() token.Token {
	t := cc.c.cur
	cc.c.advance()
	return t
}

// isTypeStart reports whether the current token is a primitive type
// keyword. Unlike types.IsTypeStart (which also accepts any bare
// identifier, for ParseTypeExpr's own use once a type is already known to
// start here), callers in declarations.go use isTypeStart alongside their own
// IDENT-lookahead check to decide whether an identifier begins a
// class-typed declaration versus a plain name — matching
// typecheck.Checker's own startsTypedVarDecl/classDeclaration pattern.
func (c *Compiler) isTypeStart() bool { return token.IsPrimitiveType(c.cur.Kind) }
