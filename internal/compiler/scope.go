package compiler

import (
	"github.com/funvibe/scriptlang/internal/types"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// funcKind distinguishes top-level script code from a function/method body,
// the way original_source/Compiler.cpp's FunctionContext.inFunction does.
type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
)

// local is a single entry in a function's local-variable table.
type local struct {
	name       string
	depth      int // -1 until markInitialized
	isCaptured bool
	declared   *types.Type
}

// upvalueRef records how a function captures a variable from its immediate
// enclosing function: either directly (a local slot) or transitively
// (another of that enclosing function's upvalues).
type upvalueRef struct {
	index   uint8
	isLocal bool
}

// funcState is one entry in the compiler's function-nesting stack. The
// script itself is funcState index 0.
type funcState struct {
	kind       funcKind
	inMethod   bool
	returnType *types.Type
	chunk      *vmheap.Chunk

	locals     []local
	scopeDepth int

	upvalues []upvalueRef
}

func newFuncState(kind funcKind, inMethod bool, returnType *types.Type) *funcState {
	if returnType == nil {
		returnType = types.AnyType()
	}
	return &funcState{kind: kind, inMethod: inMethod, returnType: returnType, chunk: vmheap.NewChunk()}
}

func (c *Compiler) current() *funcState { return c.funcs[len(c.funcs)-1] }

func (c *Compiler) chunk() *vmheap.Chunk { return c.current().chunk }

func (c *Compiler) beginScope() { c.current().scopeDepth++ }

// endScope closes the current scope, emitting POP (or CLOSE_UPVALUE for
// captured locals) for every local that scope introduced.
func (c *Compiler) endScope(line int) {
	fs := c.current()
	fs.scopeDepth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		last := fs.locals[len(fs.locals)-1]
		if last.isCaptured {
			c.emitOp(vmheap.OpCloseUpvalue, line)
		} else {
			c.emitOp(vmheap.OpPop, line)
		}
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

// addLocal declares name in the current scope without marking it
// initialized yet (its initializer, if any, must not see it).
func (c *Compiler) addLocal(name string, declared *types.Type) {
	fs := c.current()
	if len(fs.locals) >= 256 {
		c.errorAtCurrent("too many local variables in function")
		return
	}
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].depth != -1 && fs.locals[i].depth < fs.scopeDepth {
			break
		}
		if fs.locals[i].name == name {
			c.errorAtCurrent("variable '" + name + "' already declared in this scope")
			return
		}
	}
	if declared == nil {
		declared = types.AnyType()
	}
	fs.locals = append(fs.locals, local{name: name, depth: -1, declared: declared})
}

// markInitialized finishes declaring the most recently added local,
// making it visible to subsequent reads.
func (c *Compiler) markInitialized() {
	fs := c.current()
	if fs.scopeDepth == 0 || len(fs.locals) == 0 {
		return
	}
	fs.locals[len(fs.locals)-1].depth = fs.scopeDepth
}

// resolveLocal looks up name in fs's own local table, returning its slot
// or -1.
func resolveLocalIn(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i
		}
	}
	return -1
}

func (c *Compiler) resolveLocal(name string) int {
	return resolveLocalIn(c.current(), name)
}

// resolveUpvalue walks outward through the enclosing function chain,
// adding an upvalue entry at every level between the defining scope and
// the current function, per spec.md §3.3 closure semantics.
func (c *Compiler) resolveUpvalue(depth int, name string) int {
	if depth <= 0 {
		return -1
	}
	enclosing := c.funcs[depth-1]
	if slot := resolveLocalIn(enclosing, name); slot != -1 {
		enclosing.locals[slot].isCaptured = true
		return c.addUpvalue(depth, uint8(slot), true)
	}
	if up := c.resolveUpvalue(depth-1, name); up != -1 {
		return c.addUpvalue(depth, uint8(up), false)
	}
	return -1
}

func (c *Compiler) addUpvalue(depth int, index uint8, isLocal bool) int {
	fs := c.funcs[depth]
	for i, u := range fs.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= 256 {
		c.errorAtCurrent("too many captured variables in function")
		return -1
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}
