// Package vm implements the stack-based bytecode interpreter described by
// spec.md §4.5: a dispatch loop over a Chunk, name-addressed globals
// scoped per executing module, open/closed upvalues, single-inheritance
// classes, and a synchronous tracing GC safe point at each allocation.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/funvibe/scriptlang/internal/config"
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/modules"
	"github.com/funvibe/scriptlang/internal/stdlib"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// frame is one ongoing call's bookkeeping: its closure (for locals'
// upvalue captures and the chunk to execute), instruction pointer, and
// where its locals/arguments start on the shared stack. receiver is set
// only for method frames, backing GET_THIS/GET_SUPER.
type frame struct {
	closure *vmheap.ClosureObject
	ip      int
	// base is where this frame's local-variable slots start (argument 0
	// for a real call). resultSlot is where RETURN/HALT writes the
	// frame's result before resuming the caller: calleeIdx for a real
	// call (base-1), or the frame's own closure slot for a script/module
	// frame, which has no distinct caller slot beneath it.
	base       int
	resultSlot int
	receiver   *vmheap.InstanceObject
}

func (f *frame) chunk() *vmheap.Chunk { return f.closure.Function.Chunk }

// Tracer lets an embedder observe opcode dispatch without the core
// depending on a concrete logging library (see SPEC_FULL.md's ambient
// logging/tracing section) — the dispatch loop calls it, if set, before
// every instruction, mirroring vmheap.Tracer's GC-cycle hooks.
type Tracer interface {
	OnOpcode(op vmheap.Opcode, frameDepth int)
}

// Machine is one interpreter instance: its own stack, call frames, GC and
// module cache. Not safe for concurrent use — spec.md §5 is explicitly
// single-threaded.
type Machine struct {
	stack []vmheap.Value
	frames []frame

	// globalsStack holds one name->Value map per currently-executing
	// module script; GET_GLOBAL/SET_GLOBAL/DEFINE_GLOBAL always address
	// the top entry, which is why importing a module pushes a fresh one
	// and popping it on return keeps module namespaces from colliding
	// (spec.md doesn't name this explicitly, but EXPORT_NAME re-reading a
	// "just-declared global" only makes sense if each module's globals
	// are distinct from its importer's).
	globalsStack []map[string]vmheap.Value
	moduleStack  []*vmheap.ModuleObject
	pathStack    []string

	openUpvalues []*vmheap.UpvalueObject

	gc        *vmheap.GC
	cfg       *config.Config
	resolver  modules.Resolver
	cache     *modules.Cache
	natives   map[string]*vmheap.NativeFunctionObject
	stdout    io.Writer
	tracer    Tracer
}

// SetTracer installs an opcode-dispatch observer, replacing any previous
// one. A nil tracer (the default) disables tracing with no overhead
// beyond the one nil check per instruction.
func (m *Machine) SetTracer(t Tracer) { m.tracer = t }

// New returns a Machine ready to Run a compiled script, wired to gc for
// allocation and cfg for its GC threshold, initial stack capacity and the
// Set() native toggle. A nil cfg falls back to config.Default().
func New(gc *vmheap.GC, cfg *config.Config, resolver modules.Resolver) *Machine {
	if cfg == nil {
		cfg = config.Default()
	}
	gc.Configure(cfg.InitialGCThresholdBytes)
	m := &Machine{
		stack:    make([]vmheap.Value, 0, cfg.EvalStackSize),
		gc:       gc,
		cfg:      cfg,
		resolver: resolver,
		cache:    modules.NewCache(),
		stdout:   os.Stdout,
	}
	m.natives = stdlib.Install(gc)
	if !cfg.RegisterSetNative {
		delete(m.natives, "Set")
	}
	return m
}

// SetStdout redirects PRINT_OP output, for embedding hosts and tests.
func (m *Machine) SetStdout(w io.Writer) { m.stdout = w }

// BindNative registers a NativeBoundMethodObject as an additional global
// in the entry module's scope, for a host that wants to expose Go
// functions bound to a receiver Value without going through
// internal/stdlib's free-function natives.
func (m *Machine) BindNative(name string, receiver vmheap.Value, fn vmheap.NativeFn) {
	nb := &vmheap.NativeBoundMethodObject{Receiver: receiver, Fn: fn, Name: name}
	m.gc.Register(nb)
	m.globalsStack[0][name] = vmheap.Obj(nb)
}

// Run executes script (the FunctionObject Compile returned) as the entry
// module at path, returning a runtime *diagnostics.Diagnostic on failure.
// path is used to resolve that module's own relative imports; it may be
// empty for a script with no imports of its own.
func (m *Machine) Run(script *vmheap.FunctionObject, path string) (*diagnostics.Diagnostic, error) {
	closure := &vmheap.ClosureObject{Function: script}
	m.gc.Register(closure)

	mod := vmheap.NewModule(path)
	m.gc.Register(mod)
	m.cache.Put(path, mod)

	m.pushModuleScope(path, mod)
	m.push(vmheap.Obj(closure))
	m.frames = append(m.frames, frame{closure: closure, base: 0, resultSlot: 0})

	diag := m.run(0)
	m.popModuleScope()
	if diag != nil {
		return diag, fmt.Errorf("%s", diag.Message)
	}
	return nil, nil
}

func (m *Machine) pushModuleScope(path string, mod *vmheap.ModuleObject) {
	g := make(map[string]vmheap.Value, len(m.natives))
	for name, n := range m.natives {
		g[name] = vmheap.Obj(n)
	}
	m.globalsStack = append(m.globalsStack, g)
	m.moduleStack = append(m.moduleStack, mod)
	m.pathStack = append(m.pathStack, path)
}

func (m *Machine) popModuleScope() {
	m.globalsStack = m.globalsStack[:len(m.globalsStack)-1]
	m.moduleStack = m.moduleStack[:len(m.moduleStack)-1]
	m.pathStack = m.pathStack[:len(m.pathStack)-1]
}

func (m *Machine) globals() map[string]vmheap.Value { return m.globalsStack[len(m.globalsStack)-1] }
func (m *Machine) currentModule() *vmheap.ModuleObject {
	return m.moduleStack[len(m.moduleStack)-1]
}
func (m *Machine) currentPath() string { return m.pathStack[len(m.pathStack)-1] }

// --- stack helpers ----------------------------------------------------------

func (m *Machine) push(v vmheap.Value) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() vmheap.Value {
	n := len(m.stack) - 1
	v := m.stack[n]
	m.stack[n] = vmheap.Nil()
	m.stack = m.stack[:n]
	return v
}

func (m *Machine) peek(distance int) vmheap.Value {
	return m.stack[len(m.stack)-1-distance]
}

func (m *Machine) currentFrame() *frame { return &m.frames[len(m.frames)-1] }

// --- GC roots ---------------------------------------------------------------

// GCRoots implements vmheap.Roots: every live Value on the evaluation
// stack, each frame's receiver and closure, every open upvalue, and every
// entry across all currently-open modules' globals (spec.md §5).
func (m *Machine) GCRoots() []vmheap.Value {
	roots := make([]vmheap.Value, 0, len(m.stack)+len(m.frames)*2)
	roots = append(roots, m.stack...)
	for i := range m.frames {
		f := &m.frames[i]
		roots = append(roots, vmheap.Obj(f.closure))
		if f.receiver != nil {
			roots = append(roots, vmheap.Obj(f.receiver))
		}
	}
	for _, uv := range m.openUpvalues {
		roots = append(roots, vmheap.Obj(uv))
	}
	for _, g := range m.globalsStack {
		for _, v := range g {
			roots = append(roots, v)
		}
	}
	for _, mod := range m.moduleStack {
		roots = append(roots, vmheap.Obj(mod))
	}
	return roots
}

// alloc registers obj with the GC and runs a collection if the
// bytesAllocated safe point has been crossed, the allocation wrapper
// every object-producing opcode handler goes through (spec.md §5 "the
// collector runs synchronously at well-defined safe points... at each
// allocation request").
func (m *Machine) alloc(obj vmheap.Object) {
	m.gc.Register(obj)
	m.gc.CollectIfNeeded(m)
}

func (m *Machine) runtimeError(format string, args ...any) *diagnostics.Diagnostic {
	return &diagnostics.Diagnostic{Kind: diagnostics.RuntimeError, Message: fmt.Sprintf(format, args...)}
}
