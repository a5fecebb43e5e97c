package typecheck

import (
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
)

func (c *Checker) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.FUNCTION):
		c.functionDeclaration(false)
	case c.match(token.VAR):
		c.varDeclaration()
	case c.match(token.IMPORT):
		c.importDeclaration()
	case c.match(token.EXPORT):
		c.exportDeclaration()
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
// identifier (a call, an assignment to an existing name, ...).
func (c *Checker) startsTypedVarDecl() bool {
	if token.IsPrimitiveType(c.cur.Kind) {
		return true
	}
	if c.cur.Kind != token.IDENT {
		return false
	}
	next := c.peek()
	switch c.cur.Lexeme {
	case "Array", "Set", "Dict":
		return next.Kind == token.LESS
	default:
		return next.Kind == token.IDENT
	}
}

func (c *Checker) typedVarDeclaration() {
	line := c.cur.Line
	declared := c.parseType()
	name := c.cur
	c.consume(token.IDENT, "expected variable name")
	c.consume(token.EQUAL, "typed variable declaration requires an initializer")
	init := c.expression()
	if !types.IsAssignable(init.Type, declared) {
		c.errors.Addf(diagnostics.TypeError, line, name.Lexeme,
			"cannot assign %s to declared type %s", init.Type, declared)
	}
	c.match(token.SEMICOLON)
	c.scopes.declare(&Symbol{Name: name.Lexeme, Type: declared})
}

func (c *Checker) varDeclaration() {
	name := c.cur
	c.consume(token.IDENT, "expected variable name")
	declared := types.AnyType()
	if c.match(token.EQUAL) {
		c.expression()
	}
	c.match(token.SEMICOLON)
	c.scopes.declare(&Symbol{Name: name.Lexeme, Type: declared})
}

func (c *Checker) functionDeclaration(isMethod bool) *types.Type {
	name := c.cur
	c.consume(token.IDENT, "expected function name")
	c.consume(token.LPAREN, "expected '(' after function name")

	var paramNames []string
	var paramTypes []*types.Type
	for !c.check(token.RPAREN) && !c.check(token.EOF) {
		pt := c.parseType()
		pname := c.cur
		c.consume(token.IDENT, "expected parameter name")
		paramNames = append(paramNames, pname.Lexeme)
		paramTypes = append(paramTypes, pt)
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.RPAREN, "expected ')' after parameters")

	ret := types.AnyType()
	if c.match(token.ARROW) {
		ret = c.parseType()
	}
	if paramTypes == nil {
		paramTypes = []*types.Type{}
	}
	fnType := types.FunctionType(paramTypes, ret)

	c.scopes.push()
	for i, pn := range paramNames {
		c.scopes.declare(&Symbol{Name: pn, Type: paramTypes[i]})
	}
	if isMethod {
		this := types.AnyType()
		if c.curClass != nil {
			this = types.ClassType(c.curClass.Name, c.curClass)
		}
		c.scopes.declare(&Symbol{Name: "this", Type: this})
	}
	c.funcs = append(c.funcs, &funcCtx{returnType: ret, inMethod: isMethod})

	c.consume(token.LBRACE, "expected '{' to begin function body")
	c.block()

	c.funcs = c.funcs[:len(c.funcs)-1]
	c.scopes.pop()

	if !isMethod {
		c.scopes.declare(&Symbol{Name: name.Lexeme, Type: fnType})
	}
	return fnType
}

func (c *Checker) classDeclaration() {
	name := c.cur
	c.consume(token.IDENT, "expected class name")
	info := c.classes[name.Lexeme]
	if info == nil {
		info = &types.ClassInfo{Name: name.Lexeme}
		c.classes[name.Lexeme] = info
	}

	var super *types.ClassInfo
	if c.match(token.LESS) {
		baseName := c.cur
		c.consume(token.IDENT, "expected superclass name")
		super = c.classes[baseName.Lexeme]
		if super == nil {
			c.errorAt(baseName, "unknown superclass '"+baseName.Lexeme+"'")
		}
		info.Superclass = super
	}

	c.consume(token.LBRACE, "expected '{' to begin class body")

	prevClass, prevSuper := c.curClass, c.superOf
	c.curClass, c.superOf = info, super

	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		if token.IsPrimitiveType(c.cur.Kind) || (c.cur.Kind == token.IDENT && c.peekIsFieldName()) {
			c.parseType()
			c.consume(token.IDENT, "expected field name")
			c.match(token.SEMICOLON)
			continue
		}
		c.functionDeclaration(true)
	}
	c.consume(token.RBRACE, "expected '}' to close class body")

	c.curClass, c.superOf = prevClass, prevSuper
}

// peekIsFieldName distinguishes `Foo bar;` (a typed field) from `Foo(...)` (a
// method named after a class-looking identifier is impossible since method
// names are followed by '(', never a second identifier).
func (c *Checker) peekIsFieldName() bool {
	return c.peek().Kind == token.IDENT
}

func (c *Checker) importDeclaration() {
	line := c.cur.Line
	if c.match(token.LBRACE) {
		for !c.check(token.RBRACE) && !c.check(token.EOF) {
			bound := c.cur
			c.consume(token.IDENT, "expected imported name")
			alias := bound
			if c.match(token.AS) {
				alias = c.cur
				c.consume(token.IDENT, "expected alias name")
			}
			c.scopes.declare(&Symbol{Name: alias.Lexeme, Type: types.AnyType()})
			if !c.match(token.COMMA) {
				break
			}
		}
		c.consume(token.RBRACE, "expected '}' to close import list")
	} else {
		name := c.cur
		c.consume(token.IDENT, "expected imported name")
		c.scopes.declare(&Symbol{Name: name.Lexeme, Type: types.AnyType()})
	}
	c.consume(token.FROM, "expected 'from' in import")
	pathTok := c.cur
	if !c.consume(token.STRING, "expected module path string") {
		_ = line
	}
	_ = pathTok
	c.match(token.SEMICOLON)
}

func (c *Checker) exportDeclaration() {
	switch {
	case c.match(token.FUNCTION):
		c.functionDeclaration(false)
	case c.match(token.VAR):
		c.varDeclaration()
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.startsTypedVarDecl():
		c.typedVarDeclaration()
	default:
		c.errorAt(c.cur, "expected a declaration after 'export'")
	}
}
