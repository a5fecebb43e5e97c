package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/vmheap"
)

// instr is a decoded bytecode instruction used to make assertions about
// emitted opcode sequences readable without hand-counting byte offsets.
type instr struct {
	op      vmheap.Opcode
	operand int
	width   int // 0, 1 or 2 operand bytes
}

// disassemble decodes a chunk's code stream into a flat instruction list.
// It knows every opcode's fixed operand width except CLOSURE, whose
// trailing (isLocal, index) pairs are variable-length; callers that
// compile closures should stop asserting past the CLOSURE instruction or
// pass closeUpvalueCount to skip them.
func disassemble(t *testing.T, chunk *vmheap.Chunk) []instr {
	t.Helper()
	var out []instr
	code := chunk.Code
	i := 0
	for i < len(code) {
		op := vmheap.Opcode(code[i])
		i++
		switch op {
		case vmheap.OpJump, vmheap.OpJumpIfFalse, vmheap.OpLoop:
			require.LessOrEqual(t, i+2, len(code)+1)
			operand := int(code[i])<<8 | int(code[i+1])
			out = append(out, instr{op: op, operand: operand, width: 2})
			i += 2
		case vmheap.OpGetLocal, vmheap.OpSetLocal, vmheap.OpGetUpvalue, vmheap.OpSetUpvalue,
			vmheap.OpGetGlobal, vmheap.OpSetGlobal, vmheap.OpDefineGlobal,
			vmheap.OpConst, vmheap.OpCall, vmheap.OpBuildArray, vmheap.OpBuildDict, vmheap.OpBuildSet,
			vmheap.OpGetProperty, vmheap.OpSetProperty, vmheap.OpGetSuper, vmheap.OpCheckInstanceType,
			vmheap.OpClassOp, vmheap.OpMethod, vmheap.OpImportModule, vmheap.OpExportName,
			vmheap.OpGetModuleProperty, vmheap.OpNarrowInt:
			out = append(out, instr{op: op, operand: int(code[i]), width: 1})
			i++
		case vmheap.OpClosure:
			out = append(out, instr{op: op, operand: int(code[i]), width: 1})
			i++
			// the remaining (isLocal, index) pairs can't be skipped
			// generically without knowing the upvalue count, so decoding
			// stops here; tests involving closures inspect the returned
			// FunctionObject directly instead of the raw stream past this
			// point.
			return out
		default:
			out = append(out, instr{op: op, width: 0})
		}
	}
	return out
}

func ops(instrs []instr) []vmheap.Opcode {
	out := make([]vmheap.Opcode, len(instrs))
	for i, in := range instrs {
		out[i] = in.op
	}
	return out
}

func containsOp(instrs []instr, op vmheap.Opcode) bool {
	for _, in := range instrs {
		if in.op == op {
			return true
		}
	}
	return false
}

func mustCompile(t *testing.T, src string) *vmheap.FunctionObject {
	t.Helper()
	gc := vmheap.NewGC()
	fn, errs := Compile(src, gc)
	require.True(t, errs.Empty(), "unexpected compile errors: %v", errs.Items())
	return fn
}

func TestCompileEmptySourceEmitsOnlyHalt(t *testing.T) {
	fn := mustCompile(t, "")
	require.Equal(t, []vmheap.Opcode{vmheap.OpHalt}, ops(disassemble(t, fn.Chunk)))
}

func TestCompileVarDeclarationDefinesGlobal(t *testing.T) {
	fn := mustCompile(t, `var x = 1;`)
	decoded := disassemble(t, fn.Chunk)
	require.Equal(t, []vmheap.Opcode{vmheap.OpConst, vmheap.OpDefineGlobal, vmheap.OpHalt}, ops(decoded))
	require.Equal(t, vmheap.Number(1), fn.Chunk.Constants[decoded[0].operand])
	require.Equal(t, vmheap.Str("x"), fn.Chunk.Constants[decoded[1].operand])
}

func TestTypedVarDeclarationRequiresInitializer(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`i32 x;`, gc)
	require.False(t, errs.Empty())
}

func TestIntegerArithmeticSelectsSignedOpcode(t *testing.T) {
	fn := mustCompile(t, `i32 a = 1; i32 b = 2; i32 c = a + b;`)
	require.True(t, containsOp(disassemble(t, fn.Chunk), vmheap.OpIAdd))
}

func TestUnsignedIntegerArithmeticSelectsUnsignedOpcode(t *testing.T) {
	fn := mustCompile(t, `u32 a = 1; u32 b = 2; u32 c = a - b;`)
	require.True(t, containsOp(disassemble(t, fn.Chunk), vmheap.OpUSub))
}

func TestUntypedArithmeticFallsBackToGenericOpcode(t *testing.T) {
	fn := mustCompile(t, `var a = 1; var b = 2; var c = a + b;`)
	require.True(t, containsOp(disassemble(t, fn.Chunk), vmheap.OpAdd))
	require.False(t, containsOp(disassemble(t, fn.Chunk), vmheap.OpIAdd))
}

func TestTypedDeclarationEmitsNarrowIntCoercion(t *testing.T) {
	fn := mustCompile(t, `i8 a = 1;`)
	require.True(t, containsOp(disassemble(t, fn.Chunk), vmheap.OpNarrowInt))
}

func TestAsCastEmitsCoercionOpcode(t *testing.T) {
	fn := mustCompile(t, `var a = 1; var b = a as f64;`)
	require.True(t, containsOp(disassemble(t, fn.Chunk), vmheap.OpIntToFloat))
}

func TestModuloOperatorIsNotWired(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`var a = 5 % 2;`, gc)
	require.False(t, errs.Empty(), "'%%' is lexed but is not a real operator in this language")
}

// TestPostfixIncrementOnBareIdentifierIsRejected guards against
// re-introducing an invented postfix `x++` grammar rule on bare
// identifiers: the language only defines prefix `++x`/`--x` for plain
// names, and postfix forms after `.property`/`[index]`.
func TestPostfixIncrementOnBareIdentifierIsRejected(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`var x = 1; x++;`, gc)
	require.False(t, errs.Empty())
}

func TestPrefixIncrementOnBareIdentifierCompiles(t *testing.T) {
	fn := mustCompile(t, `var x = 1; ++x;`)
	decoded := disassemble(t, fn.Chunk)
	require.True(t, containsOp(decoded, vmheap.OpGetGlobal))
	require.True(t, containsOp(decoded, vmheap.OpSetGlobal))
}

func TestPrefixIncrementOnTypedLocalCoercesResult(t *testing.T) {
	fn := mustCompile(t, `function f() { i8 x = 1; ++x; return x; }`)
	// the function body lives in its own chunk, reached via the CLOSURE
	// constant emitted for `f`.
	var body *vmheap.FunctionObject
	for _, c := range fn.Chunk.Constants {
		if c.IsObject() {
			if inner, ok := c.AsObject().(*vmheap.FunctionObject); ok {
				body = inner
			}
		}
	}
	require.NotNil(t, body, "expected f's FunctionObject in the script's constant pool")
	decoded := disassemble(t, body.Chunk)
	require.True(t, containsOp(decoded, vmheap.OpNarrowInt), "prefix ++ on a typed local must re-coerce through NARROW_INT")
	// one NARROW_INT coerces the `i8 x = 1` initializer, the other the ++x result.
	narrows := 0
	for _, in := range decoded {
		if in.op == vmheap.OpNarrowInt {
			narrows++
		}
	}
	require.Equal(t, 2, narrows, "prefix ++ on a typed local must re-coerce through NARROW_INT")
}

func TestPropertyPostfixIncrementEmitsGetSetSequence(t *testing.T) {
	fn := mustCompile(t, `class Box { i32 n; } var b = Box(); b.n++;`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpGetProperty)
	require.Contains(t, ops(decoded), vmheap.OpSetProperty)
	require.Contains(t, ops(decoded), vmheap.OpDup)
}

func TestIndexPostfixIncrementEmitsDup2Sequence(t *testing.T) {
	fn := mustCompile(t, `var a = [1, 2, 3]; a[0]++;`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpDup2)
	require.Contains(t, ops(decoded), vmheap.OpGetIndex)
	require.Contains(t, ops(decoded), vmheap.OpSetIndex)
}

func TestForeachLoopLowersToIteratorOpcodes(t *testing.T) {
	fn := mustCompile(t, `var xs = [1, 2, 3]; for (var x : xs) { print x; }`)
	decoded := disassemble(t, fn.Chunk)
	seq := ops(decoded)
	require.Contains(t, seq, vmheap.OpIterInit)
	require.Contains(t, seq, vmheap.OpIterHasNext)
	require.Contains(t, seq, vmheap.OpIterNext)
}

func TestCStyleForLoopCompiles(t *testing.T) {
	fn := mustCompile(t, `for (var i = 0; i < 3; i = i + 1) { print i; }`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpLoop)
	require.Contains(t, ops(decoded), vmheap.OpJumpIfFalse)
}

func TestWhileLoopEmitsBackwardJump(t *testing.T) {
	fn := mustCompile(t, `var i = 0; while (i < 3) { i = i + 1; }`)
	require.Contains(t, ops(disassemble(t, fn.Chunk)), vmheap.OpLoop)
}

func TestIfElseEmitsBothBranches(t *testing.T) {
	fn := mustCompile(t, `var x = 1; if (x == 1) { print x; } else { print 0; }`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpJumpIfFalse)
	require.Contains(t, ops(decoded), vmheap.OpJump)
}

func TestAndOrShortCircuit(t *testing.T) {
	fn := mustCompile(t, `var x = true and false; var y = true or false;`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpJumpIfFalse)
	require.Contains(t, ops(decoded), vmheap.OpJump)
}

func TestFunctionDeclarationEmitsClosureOpcode(t *testing.T) {
	fn := mustCompile(t, `function add(i32 a, i32 b) -> i32 { return a + b; }`)
	decoded := disassemble(t, fn.Chunk)
	require.Equal(t, vmheap.OpClosure, decoded[len(decoded)-1].op)
}

func TestFunctionParamTypeCheckEmitsCheckInstanceType(t *testing.T) {
	fn := mustCompile(t, `class Animal {} function speak(Animal a) { print a; }`)
	var body *vmheap.FunctionObject
	for _, c := range fn.Chunk.Constants {
		if c.IsObject() {
			if inner, ok := c.AsObject().(*vmheap.FunctionObject); ok && inner.Name == "speak" {
				body = inner
			}
		}
	}
	require.NotNil(t, body)
	require.True(t, containsOp(disassemble(t, body.Chunk), vmheap.OpCheckInstanceType))
}

func TestClosureCapturesEnclosingLocal(t *testing.T) {
	fn := mustCompile(t, `
function outer() {
    var counted = 0;
    function inner() {
        counted = counted + 1;
        return counted;
    }
    return inner;
}
`)
	var outer *vmheap.FunctionObject
	for _, c := range fn.Chunk.Constants {
		if c.IsObject() {
			if inner, ok := c.AsObject().(*vmheap.FunctionObject); ok && inner.Name == "outer" {
				outer = inner
			}
		}
	}
	require.NotNil(t, outer)
	var innerFn *vmheap.FunctionObject
	for _, c := range outer.Chunk.Constants {
		if c.IsObject() {
			if f, ok := c.AsObject().(*vmheap.FunctionObject); ok && f.Name == "inner" {
				innerFn = f
			}
		}
	}
	require.NotNil(t, innerFn)
	require.Equal(t, 1, innerFn.UpvalueCount, "inner must capture exactly the one enclosing local it reads/writes")
}

func TestClassDeclarationEmitsClassAndMethodOpcodes(t *testing.T) {
	fn := mustCompile(t, `
class Greeter {
    hello() {
        print "hi";
    }
}
`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpClassOp)
	// hello captures nothing, so the script ends CLOSURE k, METHOD n, POP, HALT.
	code := fn.Chunk.Code
	require.Equal(t, vmheap.OpMethod, vmheap.Opcode(code[len(code)-4]))
}

func TestClassInheritanceEmitsInherit(t *testing.T) {
	fn := mustCompile(t, `
class Animal {}
class Dog < Animal {}
`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpInherit)
}

func TestClassCannotInheritFromItself(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`class Loop < Loop {}`, gc)
	require.False(t, errs.Empty())
}

func TestSuperOutsideClassIsError(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`function f() { super.go(); }`, gc)
	require.False(t, errs.Empty())
}

func TestSuperWithoutSuperclassIsError(t *testing.T) {
	gc := vmheap.NewGC()
	src := `
class Solo {
    greet() {
        super.greet();
    }
}
`
	_, errs := Compile(src, gc)
	require.False(t, errs.Empty())
}

func TestThisOutsideMethodIsError(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`function f() { return this; }`, gc)
	require.False(t, errs.Empty())
}

func TestThisInsideMethodCompiles(t *testing.T) {
	fn := mustCompile(t, `
class Box {
    self() {
        return this;
    }
}
`)
	require.NotEmpty(t, fn.Chunk.Code)
}

func TestImportNamedListCompiles(t *testing.T) {
	fn := mustCompile(t, `import { helper } from "./util";`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpImportModule)
}

func TestImportAliasFormCompiles(t *testing.T) {
	fn := mustCompile(t, `import util from "./util";`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpImportModule)
}

func TestExportFunctionEmitsExportName(t *testing.T) {
	// export var, not export function: a function declaration's CLOSURE
	// instruction has a variable-length upvalue trailer disassemble can't
	// skip past generically, so it would never reach the EXPORT_NAME
	// emitted afterward. export var exercises the same emitExportName
	// path without that complication.
	fn := mustCompile(t, `export var greeting = "hi";`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpExportName)
}

func TestExportAtNonTopLevelIsError(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`function f() { export var x = 1; }`, gc)
	require.False(t, errs.Empty())
}

func TestTooManyConstantsIsReported(t *testing.T) {
	var src string
	for i := 0; i < 300; i++ {
		src += `print "` + string(rune('a'+i%26)) + `";`
	}
	gc := vmheap.NewGC()
	_, errs := Compile(src, gc)
	require.False(t, errs.Empty())
}

func TestSyntaxErrorRecoversAtNextStatement(t *testing.T) {
	gc := vmheap.NewGC()
	fn, errs := Compile(`var = ; var ok = 1;`, gc)
	require.False(t, errs.Empty())
	decoded := disassemble(t, fn.Chunk)
	require.Equal(t, vmheap.OpHalt, decoded[len(decoded)-1].op)
}

func TestArrayLiteralEmitsBuildArray(t *testing.T) {
	fn := mustCompile(t, `var xs = [1, 2, 3];`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpBuildArray)
}

func TestDictLiteralEmitsBuildDict(t *testing.T) {
	fn := mustCompile(t, `var d = {"a": 1, "b": 2};`)
	decoded := disassemble(t, fn.Chunk)
	require.Contains(t, ops(decoded), vmheap.OpBuildDict)
}

func TestCompoundAssignmentOnLocal(t *testing.T) {
	fn := mustCompile(t, `function f() { i32 x = 1; x += 2; return x; }`)
	var body *vmheap.FunctionObject
	for _, c := range fn.Chunk.Constants {
		if c.IsObject() {
			if inner, ok := c.AsObject().(*vmheap.FunctionObject); ok {
				body = inner
			}
		}
	}
	require.NotNil(t, body)
	require.True(t, containsOp(disassemble(t, body.Chunk), vmheap.OpIAdd))
}

func TestReturnOutsideFunctionIsError(t *testing.T) {
	gc := vmheap.NewGC()
	_, errs := Compile(`return 1;`, gc)
	require.False(t, errs.Empty())
}

func TestBareReturnEmitsNilReturn(t *testing.T) {
	fn := mustCompile(t, `function f() { return; }`)
	var body *vmheap.FunctionObject
	for _, c := range fn.Chunk.Constants {
		if c.IsObject() {
			if inner, ok := c.AsObject().(*vmheap.FunctionObject); ok {
				body = inner
			}
		}
	}
	require.NotNil(t, body)
	decoded := disassemble(t, body.Chunk)
	last := ops(decoded)
	require.GreaterOrEqual(t, len(last), 2)
	require.Equal(t, vmheap.OpReturn, last[len(last)-1])
	require.Equal(t, vmheap.OpNil, last[len(last)-2])
}
