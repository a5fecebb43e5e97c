// Package diagnostics defines the three disjoint error kinds the pipeline
// produces (type, compile, runtime) and their wire format.
package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Kind distinguishes where in the pipeline a Diagnostic originated.
type Kind uint8

const (
	TypeError Kind = iota
	CompileError
	RuntimeError
)

func (k Kind) String() string {
	switch k {
	case TypeError:
		return "type"
	case CompileError:
		return "compile"
	case RuntimeError:
		return "runtime"
	default:
		return "error"
	}
}

// Diagnostic is a single reported problem. Line and Lexeme are zero/empty
// for runtime errors that have no associated source position (e.g. a
// failed native call); both are populated for type and compile errors.
type Diagnostic struct {
	Kind    Kind
	Line    int
	Lexeme  string
	Message string
}

// Error satisfies the standard error interface using the wire format from
// spec.md §6.5: "[error][compile][line N] at 'lexeme' message" for type
// and compile errors, "Runtime error: message" for runtime errors.
func (d *Diagnostic) Error() string {
	if d.Kind == RuntimeError {
		return "Runtime error: " + d.Message
	}
	if d.Lexeme != "" {
		return fmt.Sprintf("[error][%s][line %d] at '%s' %s", d.Kind, d.Line, d.Lexeme, d.Message)
	}
	return fmt.Sprintf("[error][%s][line %d] %s", d.Kind, d.Line, d.Message)
}

// List accumulates diagnostics in source order, the way the TypeChecker
// and Compiler collect errors instead of aborting on the first one.
type List struct {
	items []*Diagnostic
}

// NewList returns an empty List ready for Add/Addf.
func NewList() *List { return &List{} }

func (l *List) Add(d *Diagnostic) { l.items = append(l.items, d) }

func (l *List) Addf(kind Kind, line int, lexeme, format string, args ...any) {
	l.Add(&Diagnostic{Kind: kind, Line: line, Lexeme: lexeme, Message: fmt.Sprintf(format, args...)})
}

func (l *List) Empty() bool          { return len(l.items) == 0 }
func (l *List) Items() []*Diagnostic { return l.items }

// Format writes every diagnostic in l to w, one per line. When w is a
// terminal (per go-isatty), severity is ANSI-colored; otherwise the plain
// wire format is used. Colorizing is a presentation concern the embedding
// collaborator owns the wiring for (§6.5); this only decides how to render
// a line once handed a destination.
func (l *List) Format(w io.Writer) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, d := range l.items {
		if color {
			fmt.Fprintf(w, "\x1b[31m%s\x1b[0m\n", d.Error())
		} else {
			fmt.Fprintln(w, d.Error())
		}
	}
}
