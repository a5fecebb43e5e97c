package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/compiler"
	"github.com/funvibe/scriptlang/internal/config"
	"github.com/funvibe/scriptlang/internal/modules"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// rearmTinyThreshold sets the GC threshold back to 1 byte before every
// instruction. Collect raises the threshold to at least 1 MiB after each
// cycle, so a threshold configured once collects only at the first
// allocation.
type rearmTinyThreshold struct{ gc *vmheap.GC }

func (r rearmTinyThreshold) OnOpcode(vmheap.Opcode, int) { r.gc.Configure(1) }

// runSourceWithTinyThreshold configures the GC to collect on every
// allocation, so any object built but not yet reachable from GCRoots at the
// moment it is registered gets swept out from under its builder.
func runSourceWithTinyThreshold(t *testing.T, src string) string {
	t.Helper()
	gc := vmheap.NewGC()
	fn, errs := compiler.Compile(src, gc)
	require.True(t, errs.Empty(), "unexpected compile errors: %v", errs.Items())

	cfg := config.Default()
	cfg.InitialGCThresholdBytes = 1
	m := New(gc, cfg, &modules.FileResolver{})
	m.SetTracer(rearmTinyThreshold{gc})
	var out bytes.Buffer
	m.SetStdout(&out)
	diag, err := m.Run(fn, "")
	require.NoError(t, err, "unexpected runtime error: %v", diag)
	return out.String()
}

func runSource(t *testing.T, src string) (string, *Machine) {
	t.Helper()
	gc := vmheap.NewGC()
	fn, errs := compiler.Compile(src, gc)
	require.True(t, errs.Empty(), "unexpected compile errors: %v", errs.Items())

	m := New(gc, nil, &modules.FileResolver{})
	var out bytes.Buffer
	m.SetStdout(&out)
	diag, err := m.Run(fn, "")
	require.NoError(t, err, "unexpected runtime error: %v", diag)
	return out.String(), m
}

func runSourceExpectError(t *testing.T, src string) string {
	t.Helper()
	gc := vmheap.NewGC()
	fn, errs := compiler.Compile(src, gc)
	require.True(t, errs.Empty(), "unexpected compile errors: %v", errs.Items())

	m := New(gc, nil, &modules.FileResolver{})
	m.SetStdout(&bytes.Buffer{})
	diag, err := m.Run(fn, "")
	require.Error(t, err)
	require.NotNil(t, diag)
	return diag.Message
}

func TestArithmeticAndPrint(t *testing.T) {
	out, _ := runSource(t, `print(1 + 2 * 3);`)
	require.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, _ := runSource(t, `print("foo" + "bar");`)
	require.Equal(t, "foobar\n", out)
}

func TestAddRejectsMixedOperands(t *testing.T) {
	msg := runSourceExpectError(t, `print(1 + "x");`)
	require.Contains(t, msg, "numbers or two strings")
}

func TestGlobalVariableAssignment(t *testing.T) {
	out, _ := runSource(t, `
var x = 1;
x = x + 41;
print(x);
`)
	require.Equal(t, "42\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, _ := runSource(t, `
var i = 0;
var sum = 0;
while (i < 5) {
	sum = sum + i;
	i = i + 1;
}
print(sum);
`)
	require.Equal(t, "10\n", out)
}

func TestFunctionCallAndReturn(t *testing.T) {
	out, _ := runSource(t, `
function add(a, b) {
	return a + b;
}
print(add(3, 4));
`)
	require.Equal(t, "7\n", out)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, _ := runSource(t, `
function makeCounter() {
	var count = 0;
	function increment() {
		count = count + 1;
		return count;
	}
	return increment;
}
var counter = makeCounter();
print(counter());
print(counter());
print(counter());
`)
	require.Equal(t, "1\n2\n3\n", out)
}

func TestClassInstantiationAndMethodCall(t *testing.T) {
	out, _ := runSource(t, `
class Point {
	init(x, y) {
		this.x = x;
		this.y = y;
	}
	sum() {
		return this.x + this.y;
	}
}
var p = Point(3, 4);
print(p.sum());
`)
	require.Equal(t, "7\n", out)
}

func TestSingleInheritanceAndSuperCall(t *testing.T) {
	out, _ := runSource(t, `
class Animal {
	speak() {
		return "...";
	}
}
class Dog < Animal {
	speak() {
		return "Woof, and also " + super.speak();
	}
}
print(Dog().speak());
`)
	require.Equal(t, "Woof, and also ...\n", out)
}

func TestArrayIndexAndMutation(t *testing.T) {
	out, _ := runSource(t, `
var arr = [1, 2, 3];
arr[1] = 20;
print(arr[0] + arr[1] + arr[2]);
`)
	require.Equal(t, "24\n", out)
}

func TestForeachOverArray(t *testing.T) {
	out, _ := runSource(t, `
var total = 0;
for (var v : [10, 20, 30]) {
	total = total + v;
}
print(total);
`)
	require.Equal(t, "60\n", out)
}

func TestDictGetAndSet(t *testing.T) {
	out, _ := runSource(t, `
var d = {"a": 1, "b": 2};
d["c"] = 3;
print(d["a"] + d["b"] + d["c"]);
`)
	require.Equal(t, "6\n", out)
}

func TestImportExportsModuleValue(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.script")
	require.NoError(t, os.WriteFile(libPath, []byte(`
export var greeting = "hello";
`), 0o644))

	mainPath := filepath.Join(dir, "main.script")
	src := `
import { greeting } from "./lib";
print(greeting);
`
	gc := vmheap.NewGC()
	fn, errs := compiler.Compile(src, gc)
	require.True(t, errs.Empty(), "unexpected compile errors: %v", errs.Items())

	m := New(gc, nil, &modules.FileResolver{})
	var out bytes.Buffer
	m.SetStdout(&out)
	diag, err := m.Run(fn, mainPath)
	require.NoError(t, err, "unexpected runtime error: %v", diag)
	require.Equal(t, "hello\n", out.String())
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	msg := runSourceExpectError(t, `print(missing);`)
	require.Contains(t, msg, "undefined variable")
}

type countingTracer struct{ n int }

func (ct *countingTracer) OnOpcode(op vmheap.Opcode, frameDepth int) { ct.n++ }

func TestTracerObservesEveryOpcode(t *testing.T) {
	gc := vmheap.NewGC()
	fn, errs := compiler.Compile(`print(1 + 2);`, gc)
	require.True(t, errs.Empty())

	m := New(gc, nil, &modules.FileResolver{})
	m.SetStdout(&bytes.Buffer{})
	tracer := &countingTracer{}
	m.SetTracer(tracer)
	_, err := m.Run(fn, "")
	require.NoError(t, err)
	require.Greater(t, tracer.n, 0)
}

func TestBuildOpcodesSurviveCollectionAtEveryAllocation(t *testing.T) {
	out := runSourceWithTinyThreshold(t, `
var arr = [[1, 2], [3, 4]];
print(arr[0][0] + arr[0][1] + arr[1][0] + arr[1][1]);

var d = {"a": [1], "b": [2]};
print(d["a"][0] + d["b"][0]);

var s = Set([10], [20]);
var total = 0;
for (var inner : s) {
	total = total + inner[0];
}
print(total);
`)
	require.Equal(t, "10\n3\n30\n", out)
}

func TestClassInstantiationSurvivesCollectionAtEveryAllocation(t *testing.T) {
	out := runSourceWithTinyThreshold(t, `
class Point {
	init(x, y) {
		this.x = x;
		this.y = y;
	}
	sum() {
		return this.x + this.y;
	}
}
print(Point(3, 4).sum());
`)
	require.Equal(t, "7\n", out)
}

func TestSuperCallSurvivesCollectionAtEveryAllocation(t *testing.T) {
	out := runSourceWithTinyThreshold(t, `
class Animal {
	speak() {
		return "...";
	}
}
class Dog < Animal {
	speak() {
		return "Woof, and also " + super.speak();
	}
}
print(Dog().speak());
`)
	require.Equal(t, "Woof, and also ...\n", out)
}

func TestImportSurvivesCollectionAtEveryAllocation(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.script")
	require.NoError(t, os.WriteFile(libPath, []byte(`
export var greeting = "hello";
`), 0o644))

	mainPath := filepath.Join(dir, "main.script")
	src := `
import { greeting } from "./lib";
print(greeting);
`
	gc := vmheap.NewGC()
	fn, errs := compiler.Compile(src, gc)
	require.True(t, errs.Empty(), "unexpected compile errors: %v", errs.Items())

	cfg := config.Default()
	cfg.InitialGCThresholdBytes = 1
	m := New(gc, cfg, &modules.FileResolver{})
	m.SetTracer(rearmTinyThreshold{gc})
	var out bytes.Buffer
	m.SetStdout(&out)
	diag, err := m.Run(fn, mainPath)
	require.NoError(t, err, "unexpected runtime error: %v", diag)
	require.Equal(t, "hello\n", out.String())
}

func TestCallArityMismatchIsRuntimeError(t *testing.T) {
	msg := runSourceExpectError(t, `
function one(a) { return a; }
one(1, 2);
`)
	require.Contains(t, msg, "expected 1 arguments but got 2")
}
