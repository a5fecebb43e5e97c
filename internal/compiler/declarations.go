package compiler

import (
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.IMPORT):
		c.importDeclaration()
	case c.match(token.EXPORT):
		c.exportDeclaration()
	case c.match(token.FUNCTION):
		c.functionDeclaration()
	case c.match(token.VAR):
		c.varDeclaration()
	case c.startsTypedVarDecl():
		c.typedVarDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

// startsTypedVarDecl looks ahead to decide whether the statement is
// `T x = e;` rather than an expression statement starting with an
// identifier, the same lookahead typecheck's own prescan/declaration
// logic uses.
func (c *Compiler) startsTypedVarDecl() bool {
	if c.isTypeStart() {
		return true
	}
	if c.cur.Kind != token.IDENT {
		return false
	}
	switch c.cur.Lexeme {
	case "Array", "Set", "Dict":
		return c.peek().Kind == token.LESS
	default:
		return c.peek().Kind == token.IDENT
	}
}

// parseVariable declares name either as a new local in the current
// function scope or as a global, returning the bookkeeping defineVariable
// needs to finish the declaration. addLocal/identifierConstant are pure
// compile-time bookkeeping: neither emits bytecode, so callers may invoke
// this before or after compiling the initializer expression.
func (c *Compiler) parseVariable(name token.Token, declared *types.Type) (isLocal bool, globalIdx byte) {
	if c.current().scopeDepth > 0 {
		c.addLocal(name.Lexeme, declared)
		return true, 0
	}
	c.globals[name.Lexeme] = declared
	return false, c.identifierConstant(name.Lexeme)
}

func (c *Compiler) defineVariable(isLocal bool, globalIdx byte, line int) {
	if isLocal {
		c.markInitialized()
		return
	}
	c.emitOpByte(vmheap.OpDefineGlobal, globalIdx, line)
}

func (c *Compiler) typedVarDeclaration() {
	line := c.cur.Line
	declared := c.parseType()
	name := c.cur
	c.consume(token.IDENT, "expected variable name")
	isLocal, globalIdx := c.parseVariable(name, declared)
	c.consume(token.EQUAL, "typed variable declaration requires an initializer")
	c.expression()
	c.emitCoerceToType(declared, line)
	c.match(token.SEMICOLON)
	c.defineVariable(isLocal, globalIdx, line)
}

func (c *Compiler) varDeclaration() {
	name := c.cur
	c.consume(token.IDENT, "expected variable name")
	isLocal, globalIdx := c.parseVariable(name, types.AnyType())
	line := name.Line
	if c.match(token.EQUAL) {
		c.expression()
	} else {
		c.emitOp(vmheap.OpNil, line)
	}
	c.match(token.SEMICOLON)
	c.defineVariable(isLocal, globalIdx, line)
}

func (c *Compiler) functionDeclaration() {
	name := c.cur
	c.consume(token.IDENT, "expected function name")
	isLocal, globalIdx := c.parseVariable(name, types.AnyType())
	fn := c.compileFunction(name.Lexeme, false, nil)
	c.globals[name.Lexeme] = types.FunctionType(fn.ParamTypes, fn.ReturnType)
	c.defineVariable(isLocal, globalIdx, name.Line)
}

// compileFunction parses a parameter list, optional `-> Type` return
// annotation and body, each inside its own funcState/Chunk, then emits
// the enclosing CLOSURE instruction with one (isLocal, index) pair per
// captured upvalue — a direct port of
// original_source/Compiler.cpp's compileFunction.
func (c *Compiler) compileFunction(name string, isMethod bool, declaredReturn *types.Type) *vmheap.FunctionObject {
	if declaredReturn == nil {
		declaredReturn = types.AnyType()
	}
	c.consume(token.LPAREN, "expected '(' after function name")

	fs := newFuncState(kindFunction, isMethod, declaredReturn)
	c.funcs = append(c.funcs, fs)
	c.beginScope()

	var paramNames []string
	var paramTypes []*types.Type
	if !c.check(token.RPAREN) {
		for {
			pt := types.AnyType()
			if c.isTypeStart() || (c.check(token.IDENT) && c.peek().Kind == token.IDENT) {
				pt = c.parseType()
			}
			pname := c.cur
			c.consume(token.IDENT, "expected parameter name")
			paramNames = append(paramNames, pname.Lexeme)
			paramTypes = append(paramTypes, pt)
			c.addLocal(pname.Lexeme, pt)
			c.markInitialized()
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after parameters")

	if c.match(token.ARROW) {
		fs.returnType = c.parseType()
	}
	ret := fs.returnType

	c.consume(token.LBRACE, "expected '{' before function body")

	for i, pt := range paramTypes {
		if !pt.IsClass() {
			continue
		}
		line := c.cur.Line
		c.emitOpByte(vmheap.OpGetLocal, byte(i), line)
		c.emitOpByte(vmheap.OpCheckInstanceType, c.identifierConstant(pt.ClassName), line)
		c.emitOp(vmheap.OpPop, line)
	}

	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expected '}' after function body")
	c.emitOp(vmheap.OpNil, c.cur.Line)
	c.emitOp(vmheap.OpReturn, c.cur.Line)

	upvalues := fs.upvalues
	chunk := fs.chunk
	c.funcs = c.funcs[:len(c.funcs)-1]

	fn := &vmheap.FunctionObject{
		Name:         name,
		ParamNames:   paramNames,
		ParamTypes:   paramTypes,
		ReturnType:   ret,
		Chunk:        chunk,
		UpvalueCount: len(upvalues),
	}
	if c.gc != nil {
		c.gc.Register(fn)
	}

	line := c.cur.Line
	constIdx := c.makeConstant(vmheap.Obj(fn))
	c.emitOpByte(vmheap.OpClosure, constIdx, line)
	for _, up := range upvalues {
		isLocalByte := byte(0)
		if up.isLocal {
			isLocalByte = 1
		}
		c.emitByte(isLocalByte, line)
		c.emitByte(up.index, line)
	}
	return fn
}

// --- classes --------------------------------------------------------------

func (c *Compiler) classDeclaration() {
	name := c.cur
	c.consume(token.IDENT, "expected class name")
	nameConst := c.identifierConstant(name.Lexeme)

	isLocal, globalIdx := c.parseVariable(name, types.ClassType(name.Lexeme, c.classes[name.Lexeme]))
	c.emitOpByte(vmheap.OpClassOp, nameConst, name.Line)
	c.defineVariable(isLocal, globalIdx, name.Line)

	c.namedVariable(name, false)

	prevClass := c.currentClass
	cc := &classContext{name: name.Lexeme, enclosing: prevClass}
	c.currentClass = cc

	if c.match(token.LESS) {
		baseName := c.cur
		c.consume(token.IDENT, "expected superclass name")
		if baseName.Lexeme == name.Lexeme {
			c.errorAtCurrent("a class cannot inherit from itself")
		}
		c.namedVariable(baseName, false)
		c.emitOp(vmheap.OpInherit, baseName.Line)
		cc.hasSuperclass = true
	}

	c.consume(token.LBRACE, "expected '{' to begin class body")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.classMemberDeclaration()
	}
	c.consume(token.RBRACE, "expected '}' to close class body")
	c.emitOp(vmheap.OpPop, c.cur.Line)

	c.currentClass = prevClass
}

func (c *Compiler) classMemberDeclaration() {
	if c.isTypeStart() || (c.check(token.IDENT) && c.peek().Kind == token.IDENT) {
		c.typedClassMemberDeclaration()
		return
	}
	c.methodDeclaration()
}

// typedClassMemberDeclaration handles both `T name;` (a field — nothing
// to emit, InstanceObject's field map is populated dynamically at
// construction) and `T name(...) { ... }` (a method whose declared type
// is its return type).
func (c *Compiler) typedClassMemberDeclaration() {
	declared := c.parseType()
	name := c.cur
	c.consume(token.IDENT, "expected class member name")

	if c.check(token.SEMICOLON) {
		c.advance()
		return
	}
	if !c.check(token.LPAREN) {
		c.errorAtCurrent("expected ';' after typed field or '(' for method")
		return
	}
	nameConst := c.identifierConstant(name.Lexeme)
	c.compileFunction(name.Lexeme, true, declared)
	c.emitOpByte(vmheap.OpMethod, nameConst, name.Line)
}

func (c *Compiler) methodDeclaration() {
	name := c.cur
	c.consume(token.IDENT, "expected method name")
	nameConst := c.identifierConstant(name.Lexeme)
	c.compileFunction(name.Lexeme, true, nil)
	c.emitOpByte(vmheap.OpMethod, nameConst, name.Line)
}

// --- modules ----------------------------------------------------------------

func (c *Compiler) importDeclaration() {
	line := c.cur.Line
	if c.match(token.LBRACE) {
		type binding struct{ exportName, localName token.Token }
		var bindings []binding
		for !c.check(token.RBRACE) && !c.check(token.EOF) {
			exportName := c.cur
			c.consume(token.IDENT, "expected imported name")
			localName := exportName
			if c.match(token.AS) {
				localName = c.cur
				c.consume(token.IDENT, "expected alias name")
			}
			bindings = append(bindings, binding{exportName, localName})
			if !c.match(token.COMMA) {
				break
			}
		}
		c.consume(token.RBRACE, "expected '}' to close import list")
		c.consume(token.FROM, "expected 'from' in import")
		pathTok := c.cur
		c.consume(token.STRING, "expected module path string")
		c.match(token.SEMICOLON)

		c.emitOpByte(vmheap.OpImportModule, c.makeConstant(vmheap.Str(pathTok.Lexeme)), line)
		for _, b := range bindings {
			c.emitOp(vmheap.OpDup, line)
			c.emitOpByte(vmheap.OpGetProperty, c.identifierConstant(b.exportName.Lexeme), line)
			isLocal, globalIdx := c.parseVariable(b.localName, types.AnyType())
			c.defineVariable(isLocal, globalIdx, line)
		}
		c.emitOp(vmheap.OpPop, line)
		return
	}

	alias := c.cur
	c.consume(token.IDENT, "expected module alias or named import list after 'import'")
	c.consume(token.FROM, "expected 'from' in import")
	pathTok := c.cur
	c.consume(token.STRING, "expected module path string")
	c.match(token.SEMICOLON)

	c.emitOpByte(vmheap.OpImportModule, c.makeConstant(vmheap.Str(pathTok.Lexeme)), line)
	isLocal, globalIdx := c.parseVariable(alias, types.AnyType())
	c.defineVariable(isLocal, globalIdx, line)
}

// emitExportName re-reads the just-declared global by name and hands it
// to EXPORT_NAME, the way original_source's emitExportName re-reads it by
// slot; our globals are name-addressed (spec.md §4.4's deliberate
// deviation from the original's slot-indexed global array).
func (c *Compiler) emitExportName(nameTok token.Token) {
	line := nameTok.Line
	nameConst := c.identifierConstant(nameTok.Lexeme)
	c.emitOpByte(vmheap.OpGetGlobal, nameConst, line)
	c.emitOpByte(vmheap.OpExportName, nameConst, line)
	c.emitOp(vmheap.OpPop, line)
}

func (c *Compiler) exportDeclaration() {
	if c.current().scopeDepth != 0 {
		c.errorAtCurrent("'export' is only allowed at the top level")
	}
	switch {
	case c.match(token.FUNCTION):
		if !c.check(token.IDENT) {
			c.errorAtCurrent("expected function name")
			return
		}
		exportName := c.cur
		c.functionDeclaration()
		c.emitExportName(exportName)
	case c.match(token.VAR):
		if !c.check(token.IDENT) {
			c.errorAtCurrent("expected variable name")
			return
		}
		exportName := c.cur
		c.varDeclaration()
		c.emitExportName(exportName)
	case c.match(token.CLASS):
		if !c.check(token.IDENT) {
			c.errorAtCurrent("expected class name")
			return
		}
		exportName := c.cur
		c.classDeclaration()
		c.emitExportName(exportName)
	default:
		c.errorAtCurrent("expected 'function', 'var', or 'class' after 'export'")
	}
}
