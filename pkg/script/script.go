// Package script is the single public facade over the interpreter
// pipeline: lex (internally, as part of type-checking) -> type-check ->
// compile -> execute. An embedding host only ever needs this package;
// everything under internal/ is a collaborator the facade wires together
// (spec.md §2's data-flow diagram, §6.5's "source text + path identity
// in, exit status + stdout out" contract).
package script

import (
	"io"
	"os"

	"github.com/funvibe/scriptlang/internal/compiler"
	"github.com/funvibe/scriptlang/internal/config"
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/modules"
	"github.com/funvibe/scriptlang/internal/typecheck"
	"github.com/funvibe/scriptlang/internal/vm"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// Options configures a single Run/Compile call. A zero Options uses
// config.Default() and os.Stdout.
type Options struct {
	// Path identifies the script for relative import resolution; may be
	// empty for a script with no imports of its own. Diagnostics do not
	// include it.
	Path string
	// Config overrides the host's GC/stack/stdlib tuning. Nil uses
	// config.Default().
	Config *config.Config
	// Resolver overrides how import paths turn into source text. Nil
	// uses a modules.FileResolver rooted at Path's directory.
	Resolver modules.Resolver
	// Stdout receives PRINT_OP output. Nil uses os.Stdout.
	Stdout io.Writer
	// OpcodeTracer, if set, observes every instruction the VM dispatches.
	OpcodeTracer vm.Tracer
	// GCTracer, if set, observes every collection cycle.
	GCTracer vmheap.Tracer
}

// Status is the outcome of a Run call: which pipeline stage (if any)
// reported a problem, and the diagnostics it produced.
type Status struct {
	TypeErrors    *diagnostics.List
	CompileErrors *diagnostics.List
	RuntimeError  *diagnostics.Diagnostic
}

// OK reports whether source ran to completion with no diagnostics at any
// stage.
func (s Status) OK() bool {
	if s.TypeErrors != nil && !s.TypeErrors.Empty() {
		return false
	}
	if s.CompileErrors != nil && !s.CompileErrors.Empty() {
		return false
	}
	return s.RuntimeError == nil
}

// Run type-checks, compiles and executes source, in that order, stopping
// at the first stage that reports a problem (spec.md §1's pipeline:
// "static type errors are reported before a single instruction runs").
func Run(source string, opts Options) (Status, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = &modules.FileResolver{}
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if errs := typecheck.Check(source); !errs.Empty() {
		return Status{TypeErrors: errs}, errs.Items()[0]
	}

	gc := vmheap.NewGC()
	gc.Tracer = opts.GCTracer
	fn, errs := compiler.Compile(source, gc)
	if !errs.Empty() {
		return Status{CompileErrors: errs}, errs.Items()[0]
	}

	m := vm.New(gc, cfg, resolver)
	m.SetStdout(stdout)
	m.SetTracer(opts.OpcodeTracer)
	diag, err := m.Run(fn, opts.Path)
	if err != nil {
		return Status{RuntimeError: diag}, err
	}
	return Status{}, nil
}

// Compile type-checks then compiles source without executing it, for a
// host that wants to validate a script (or cache its bytecode) ahead of
// running it.
func Compile(source string, gc *vmheap.GC) (*vmheap.FunctionObject, Status) {
	if errs := typecheck.Check(source); !errs.Empty() {
		return nil, Status{TypeErrors: errs}
	}
	fn, errs := compiler.Compile(source, gc)
	if !errs.Empty() {
		return nil, Status{CompileErrors: errs}
	}
	return fn, Status{}
}
