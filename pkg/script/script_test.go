package script

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/vm"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

type countingOpcodeTracer struct{ n int }

func (ct *countingOpcodeTracer) OnOpcode(op vmheap.Opcode, frameDepth int) { ct.n++ }

func TestRunInvokesOpcodeTracer(t *testing.T) {
	tracer := &countingOpcodeTracer{}
	var out bytes.Buffer
	status, err := Run(`print(1 + 2);`, Options{Stdout: &out, OpcodeTracer: tracer})
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Greater(t, tracer.n, 0)
}

var _ vm.Tracer = (*countingOpcodeTracer)(nil)

func TestRunPrintsOutput(t *testing.T) {
	var out bytes.Buffer
	status, err := Run(`print(1 + 2);`, Options{Stdout: &out})
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Equal(t, "3\n", out.String())
}

func TestRunReportsTypeErrors(t *testing.T) {
	status, err := Run(`f64 x = "not a number";`, Options{})
	require.Error(t, err)
	require.False(t, status.OK())
	require.NotNil(t, status.TypeErrors)
	require.False(t, status.TypeErrors.Empty())
}

func TestRunReportsRuntimeErrors(t *testing.T) {
	var out bytes.Buffer
	status, err := Run(`error("boom");`, Options{Stdout: &out})
	require.Error(t, err)
	require.False(t, status.OK())
	require.NotNil(t, status.RuntimeError)
}

func TestRunExecutesCStyleForLoop(t *testing.T) {
	var out bytes.Buffer
	status, err := Run(`
var sum = 0;
for (var i = 0; i < 3; i = i + 1) {
	sum = sum + i;
}
print(sum);
`, Options{Stdout: &out})
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Equal(t, "3\n", out.String())
}

func TestRunResolvesRelativeImports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.script"), []byte(`
export var value = 21;
`), 0o644))

	mainPath := filepath.Join(dir, "main.script")
	src := `
import { value } from "./lib";
print(value * 2);
`
	var out bytes.Buffer
	status, err := Run(src, Options{Path: mainPath, Stdout: &out})
	require.NoError(t, err)
	require.True(t, status.OK())
	require.Equal(t, "42\n", out.String())
}

func TestCompileWithoutExecuting(t *testing.T) {
	fn, status := Compile(`print(1);`, vmheap.NewGC())
	require.True(t, status.OK())
	require.NotNil(t, fn)
}

func TestCompileReportsCompileErrors(t *testing.T) {
	// passes the type checker, which does not look at top-level returns.
	_, status := Compile(`return 1;`, vmheap.NewGC())
	require.False(t, status.OK())
	require.NotNil(t, status.CompileErrors)
}
