package vm

import (
	"fmt"
	"strconv"

	"github.com/funvibe/scriptlang/internal/compiler"
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// run is the main dispatch loop: it executes instructions until the frame
// stack has unwound back to targetDepth, which happens when the frame
// pushed by this call's caller (a real OP_CALL, a class's init call, or an
// imported module's script body) returns or halts. A nested run() call is
// how IMPORT_MODULE and class construction run a callee "to completion"
// before resuming the instruction that triggered them; ordinary calls
// never recurse — OP_CALL just pushes a frame and lets the same loop
// iteration keep going (spec.md §4.5).
func (m *Machine) run(targetDepth int) *diagnostics.Diagnostic {
	for len(m.frames) > targetDepth {
		op := vmheap.Opcode(m.readByte())
		if m.tracer != nil {
			m.tracer.OnOpcode(op, len(m.frames))
		}
		if diag := m.step(op); diag != nil {
			return diag
		}
	}
	return nil
}

func (m *Machine) readByte() byte {
	f := m.currentFrame()
	b := f.chunk().Code[f.ip]
	f.ip++
	return b
}

func (m *Machine) readShort() int {
	f := m.currentFrame()
	hi, lo := f.chunk().Code[f.ip], f.chunk().Code[f.ip+1]
	f.ip += 2
	return int(hi)<<8 | int(lo)
}

func (m *Machine) readConstant() vmheap.Value {
	return m.currentFrame().chunk().Constants[m.readByte()]
}

func (m *Machine) readStringConstant() string {
	return m.readConstant().AsString()
}

// step executes exactly one instruction.
func (m *Machine) step(op vmheap.Opcode) *diagnostics.Diagnostic {
	switch op {
	case vmheap.OpConst:
		m.push(m.readConstant())

	case vmheap.OpNil:
		m.push(vmheap.Nil())
	case vmheap.OpTrue:
		m.push(vmheap.Bool(true))
	case vmheap.OpFalse:
		m.push(vmheap.Bool(false))

	case vmheap.OpPop:
		m.pop()
	case vmheap.OpDup:
		m.push(m.peek(0))
	case vmheap.OpDup2:
		a, b := m.peek(1), m.peek(0)
		m.push(a)
		m.push(b)

	case vmheap.OpAdd, vmheap.OpIAdd, vmheap.OpUAdd:
		return m.binaryAdd()
	case vmheap.OpSub, vmheap.OpISub, vmheap.OpUSub:
		return m.binaryNumeric("-", func(a, b float64) float64 { return a - b })
	case vmheap.OpMul, vmheap.OpIMul, vmheap.OpUMul:
		return m.binaryNumeric("*", func(a, b float64) float64 { return a * b })
	case vmheap.OpDiv, vmheap.OpIDiv, vmheap.OpUDiv:
		return m.binaryNumeric("/", func(a, b float64) float64 { return a / b })
	case vmheap.OpNeg:
		v := m.pop()
		if !v.IsNumber() {
			return m.runtimeError("operand must be a number for unary '-'")
		}
		m.push(vmheap.Number(-v.AsNumber()))

	case vmheap.OpShl:
		return m.binaryNumeric("<<", func(a, b float64) float64 { return float64(int64(a) << uint(int64(b))) })
	case vmheap.OpShr:
		return m.binaryNumeric(">>", func(a, b float64) float64 { return float64(int64(a) >> uint(int64(b))) })

	case vmheap.OpEqual:
		b, a := m.pop(), m.pop()
		m.push(vmheap.Bool(a.Equals(b)))
	case vmheap.OpNotEqual:
		b, a := m.pop(), m.pop()
		m.push(vmheap.Bool(!a.Equals(b)))
	case vmheap.OpLess:
		return m.binaryCompare("<", func(a, b float64) bool { return a < b })
	case vmheap.OpLessEqual:
		return m.binaryCompare("<=", func(a, b float64) bool { return a <= b })
	case vmheap.OpGreater:
		return m.binaryCompare(">", func(a, b float64) bool { return a > b })
	case vmheap.OpGreaterEqual:
		return m.binaryCompare(">=", func(a, b float64) bool { return a >= b })

	case vmheap.OpNot:
		v := m.pop()
		m.push(vmheap.Bool(v.IsFalsey()))

	case vmheap.OpGetLocal:
		slot := int(m.readByte())
		m.push(m.stack[m.currentFrame().base+slot])
	case vmheap.OpSetLocal:
		slot := int(m.readByte())
		m.stack[m.currentFrame().base+slot] = m.peek(0)

	case vmheap.OpGetGlobal:
		name := m.readStringConstant()
		v, ok := m.globals()[name]
		if !ok {
			return m.runtimeError("undefined variable '%s'", name)
		}
		m.push(v)
	case vmheap.OpSetGlobal:
		name := m.readStringConstant()
		if _, ok := m.globals()[name]; !ok {
			return m.runtimeError("undefined variable '%s'", name)
		}
		m.globals()[name] = m.peek(0)
	case vmheap.OpDefineGlobal:
		name := m.readStringConstant()
		m.globals()[name] = m.pop()

	case vmheap.OpGetUpvalue:
		idx := m.readByte()
		m.push(m.currentFrame().closure.Upvalues[idx].Get())
	case vmheap.OpSetUpvalue:
		idx := m.readByte()
		m.currentFrame().closure.Upvalues[idx].Set(m.peek(0))
	case vmheap.OpCloseUpvalue:
		m.closeUpvalues(len(m.stack) - 1)
		m.pop()

	case vmheap.OpJump:
		offset := m.readShort()
		m.currentFrame().ip += offset
	case vmheap.OpJumpIfFalse:
		offset := m.readShort()
		if m.peek(0).IsFalsey() {
			m.currentFrame().ip += offset
		}
	case vmheap.OpLoop:
		offset := m.readShort()
		m.currentFrame().ip -= offset

	case vmheap.OpCall:
		argc := int(m.readByte())
		calleeIdx := len(m.stack) - argc - 1
		if diag := m.callValue(calleeIdx, argc); diag != nil {
			return diag
		}

	case vmheap.OpReturn, vmheap.OpHalt:
		var retVal vmheap.Value
		if op == vmheap.OpReturn {
			retVal = m.pop()
		} else {
			retVal = vmheap.Nil()
		}
		f := m.currentFrame()
		m.closeUpvalues(f.base)
		m.stack = m.stack[:f.resultSlot]
		m.frames = m.frames[:len(m.frames)-1]
		m.push(retVal)

	case vmheap.OpClosure:
		fnVal := m.readConstant()
		fn, ok := fnVal.AsObject().(*vmheap.FunctionObject)
		if !ok {
			return m.runtimeError("CLOSURE constant is not a function")
		}
		closure := &vmheap.ClosureObject{Function: fn, Upvalues: make([]*vmheap.UpvalueObject, fn.UpvalueCount)}
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := m.readByte()
			index := int(m.readByte())
			if isLocal != 0 {
				closure.Upvalues[i] = m.captureUpvalue(m.currentFrame().base + index)
			} else {
				closure.Upvalues[i] = m.currentFrame().closure.Upvalues[index]
			}
		}
		m.push(vmheap.Obj(closure))
		m.alloc(closure)

	case vmheap.OpClassOp:
		name := m.readStringConstant()
		class := vmheap.NewClass(name)
		m.push(vmheap.Obj(class))
		m.alloc(class)

	case vmheap.OpInherit:
		superVal := m.pop()
		superclass, ok := superVal.AsObject().(*vmheap.ClassObject)
		if !superVal.IsObject() || !ok {
			return m.runtimeError("superclass must be a class")
		}
		subVal := m.peek(0)
		subclass, ok := subVal.AsObject().(*vmheap.ClassObject)
		if !ok {
			return m.runtimeError("cannot inherit from a non-class value")
		}
		subclass.Superclass = superclass

	case vmheap.OpMethod:
		name := m.readStringConstant()
		closureVal := m.pop()
		closure, ok := closureVal.AsObject().(*vmheap.ClosureObject)
		if !ok {
			return m.runtimeError("METHOD operand is not a closure")
		}
		classVal := m.peek(0)
		class, ok := classVal.AsObject().(*vmheap.ClassObject)
		if !ok {
			return m.runtimeError("METHOD target is not a class")
		}
		closure.OwnerClass = class
		class.Methods[name] = closure

	case vmheap.OpGetProperty:
		return m.execGetProperty()
	case vmheap.OpSetProperty:
		return m.execSetProperty()
	case vmheap.OpGetSuper:
		return m.execGetSuper()
	case vmheap.OpGetThis:
		f := m.currentFrame()
		if f.receiver == nil {
			return m.runtimeError("'this' used outside of a method")
		}
		m.push(vmheap.Obj(f.receiver))

	case vmheap.OpCheckInstanceType:
		className := m.readStringConstant()
		v := m.peek(0)
		if v.IsNil() {
			break
		}
		inst, ok := v.AsObject().(*vmheap.InstanceObject)
		if !ok || !inst.IsInstanceOf(className) {
			return m.runtimeError("expected an instance of '%s', got %s", className, v.RuntimeType().Inspect())
		}

	case vmheap.OpBuildArray:
		count := int(m.readByte())
		elems := append([]vmheap.Value(nil), m.stack[len(m.stack)-count:]...)
		arr := vmheap.NewArray(elems, nil)
		m.stack = m.stack[:len(m.stack)-count]
		// Push before alloc so arr is already a GC root (reachable via
		// m.stack) by the time CollectIfNeeded can run a cycle — a
		// just-built aggregate not yet on the stack is unreachable from
		// GCRoots and would be swept on the spot (spec.md §5's "collector
		// runs synchronously at each allocation" rooting invariant).
		m.push(vmheap.Obj(arr))
		m.alloc(arr)

	case vmheap.OpBuildDict:
		count := int(m.readByte())
		base := len(m.stack) - count*2
		dict := vmheap.NewDict(nil, nil)
		for i := 0; i < count; i++ {
			key := m.stack[base+i*2]
			val := m.stack[base+i*2+1]
			if err := dict.Set(key, val); err != nil {
				return m.runtimeError("%s", err.Error())
			}
		}
		m.stack = m.stack[:base]
		m.push(vmheap.Obj(dict))
		m.alloc(dict)

	case vmheap.OpBuildSet:
		count := int(m.readByte())
		base := len(m.stack) - count
		set := vmheap.NewSet(nil)
		for i := 0; i < count; i++ {
			set.Add(m.stack[base+i])
		}
		m.stack = m.stack[:base]
		m.push(vmheap.Obj(set))
		m.alloc(set)

	case vmheap.OpGetIndex:
		return m.execGetIndex()
	case vmheap.OpSetIndex:
		return m.execSetIndex()

	case vmheap.OpIterInit:
		collVal := m.pop()
		it, diag := m.makeIterator(collVal)
		if diag != nil {
			return diag
		}
		m.push(vmheap.Obj(it))
		m.alloc(it)
	case vmheap.OpIterHasNext:
		v := m.pop()
		it, ok := v.AsObject().(*vmheap.IteratorObject)
		if !ok {
			return m.runtimeError("ITER_HAS_NEXT operand is not an iterator")
		}
		m.push(vmheap.Bool(it.HasNext()))
	case vmheap.OpIterNext:
		v := m.pop()
		it, ok := v.AsObject().(*vmheap.IteratorObject)
		if !ok {
			return m.runtimeError("ITER_NEXT operand is not an iterator")
		}
		m.push(it.Next())

	case vmheap.OpImportModule:
		return m.execImportModule()
	case vmheap.OpExportName:
		name := m.readStringConstant()
		m.currentModule().Exports[name] = m.peek(0)
	case vmheap.OpGetModuleProperty:
		name := m.readStringConstant()
		v := m.pop()
		mod, ok := v.AsObject().(*vmheap.ModuleObject)
		if !ok {
			return m.runtimeError("GET_MODULE_PROPERTY operand is not a module")
		}
		val, found := mod.Exports[name]
		if !found {
			return m.runtimeError("module '%s' has no export '%s'", mod.Path, name)
		}
		m.push(val)

	case vmheap.OpNarrowInt:
		kind := vmheap.NarrowKind(m.readByte())
		v := m.pop()
		if !v.IsNumber() {
			return m.runtimeError("NARROW_INT operand is not a number")
		}
		m.push(vmheap.Number(narrowInt(v.AsNumber(), kind)))
	case vmheap.OpIntToFloat:
		v := m.pop()
		if !v.IsNumber() {
			return m.runtimeError("INT_TO_FLOAT operand is not a number")
		}
		m.push(v)
	case vmheap.OpIntToStr:
		v := m.pop()
		if !v.IsNumber() {
			return m.runtimeError("INT_TO_STR operand is not a number")
		}
		m.push(vmheap.Str(strconv.FormatInt(int64(v.AsNumber()), 10)))

	case vmheap.OpPrint:
		v := m.pop()
		fmt.Fprintln(m.stdout, v.Inspect())

	default:
		return m.runtimeError("unknown opcode %d", byte(op))
	}
	return nil
}

func (m *Machine) binaryAdd() *diagnostics.Diagnostic {
	b, a := m.pop(), m.pop()
	if a.IsNumber() && b.IsNumber() {
		m.push(vmheap.Number(a.AsNumber() + b.AsNumber()))
		return nil
	}
	if a.IsString() && b.IsString() {
		m.push(vmheap.Str(a.AsString() + b.AsString()))
		return nil
	}
	return m.runtimeError("operands must be two numbers or two strings for '+'")
}

func (m *Machine) binaryNumeric(opName string, fn func(a, b float64) float64) *diagnostics.Diagnostic {
	b, a := m.pop(), m.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return m.runtimeError("operands must be numbers for '%s'", opName)
	}
	m.push(vmheap.Number(fn(a.AsNumber(), b.AsNumber())))
	return nil
}

func (m *Machine) binaryCompare(opName string, fn func(a, b float64) bool) *diagnostics.Diagnostic {
	b, a := m.pop(), m.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return m.runtimeError("operands must be numbers for '%s'", opName)
	}
	m.push(vmheap.Bool(fn(a.AsNumber(), b.AsNumber())))
	return nil
}

// narrowInt re-interprets v as a two's-complement integer of the width and
// signedness kind encodes, then re-lifts the result to float64 (spec.md
// §4.5's NARROW_INT).
func narrowInt(v float64, kind vmheap.NarrowKind) float64 {
	i := int64(v)
	switch kind {
	case vmheap.NarrowI8:
		return float64(int8(i))
	case vmheap.NarrowI16:
		return float64(int16(i))
	case vmheap.NarrowI32:
		return float64(int32(i))
	case vmheap.NarrowI64:
		return float64(i)
	case vmheap.NarrowU8:
		return float64(uint8(i))
	case vmheap.NarrowU16:
		return float64(uint16(i))
	case vmheap.NarrowU32:
		return float64(uint32(i))
	case vmheap.NarrowU64, vmheap.NarrowUsize:
		return float64(uint64(i))
	default:
		return float64(i)
	}
}

func (m *Machine) makeIterator(v vmheap.Value) (*vmheap.IteratorObject, *diagnostics.Diagnostic) {
	if !v.IsObject() {
		return nil, m.runtimeError("value is not iterable")
	}
	switch obj := v.AsObject().(type) {
	case *vmheap.ArrayObject:
		return vmheap.NewArrayIterator(obj), nil
	case *vmheap.DictObject:
		return vmheap.NewDictIterator(obj), nil
	case *vmheap.SetObject:
		return vmheap.NewSetIterator(obj), nil
	default:
		return nil, m.runtimeError("value is not iterable")
	}
}

func (m *Machine) execGetProperty() *diagnostics.Diagnostic {
	name := m.readStringConstant()
	target := m.pop()
	if !target.IsObject() {
		return m.runtimeError("only instances and modules have properties")
	}
	switch obj := target.AsObject().(type) {
	case *vmheap.InstanceObject:
		if v, ok := obj.Fields[name]; ok {
			m.push(v)
			return nil
		}
		if method, ok := obj.Class.FindMethod(name); ok {
			bound := &vmheap.BoundMethodObject{Receiver: obj, Method: method}
			m.push(vmheap.Obj(bound))
			m.alloc(bound)
			return nil
		}
		return m.runtimeError("undefined property '%s'", name)
	case *vmheap.ModuleObject:
		v, ok := obj.Exports[name]
		if !ok {
			return m.runtimeError("module '%s' has no export '%s'", obj.Path, name)
		}
		m.push(v)
		return nil
	default:
		return m.runtimeError("only instances and modules have properties")
	}
}

func (m *Machine) execSetProperty() *diagnostics.Diagnostic {
	name := m.readStringConstant()
	val := m.pop()
	target := m.pop()
	inst, ok := target.AsObject().(*vmheap.InstanceObject)
	if !target.IsObject() || !ok {
		return m.runtimeError("only instances have settable properties")
	}
	inst.Fields[name] = val
	m.push(val)
	return nil
}

// execGetSuper resolves `super.name` against the superclass of the class
// that owns the currently executing method (ClosureObject.OwnerClass), not
// the receiver's dynamic class — so an override further down the chain
// doesn't shadow the explicit super call.
func (m *Machine) execGetSuper() *diagnostics.Diagnostic {
	name := m.readStringConstant()
	f := m.currentFrame()
	if f.receiver == nil || f.closure.OwnerClass == nil || f.closure.OwnerClass.Superclass == nil {
		return m.runtimeError("'super' used outside of a method with a superclass")
	}
	method, ok := f.closure.OwnerClass.Superclass.FindMethod(name)
	if !ok {
		return m.runtimeError("undefined superclass method '%s'", name)
	}
	bound := &vmheap.BoundMethodObject{Receiver: f.receiver, Method: method}
	m.push(vmheap.Obj(bound))
	m.alloc(bound)
	return nil
}

func (m *Machine) execGetIndex() *diagnostics.Diagnostic {
	idx := m.pop()
	coll := m.pop()
	if !coll.IsObject() {
		return m.runtimeError("value is not indexable")
	}
	switch obj := coll.AsObject().(type) {
	case *vmheap.ArrayObject:
		if !idx.IsNumber() {
			return m.runtimeError("array index must be a number")
		}
		i := int(idx.AsNumber())
		if i < 0 || i >= len(obj.Elements) {
			return m.runtimeError("array index %d out of range", i)
		}
		m.push(obj.Elements[i])
		return nil
	case *vmheap.DictObject:
		v, ok := obj.Get(idx)
		if !ok {
			return m.runtimeError("key '%s' not found in dict", idx.Inspect())
		}
		m.push(v)
		return nil
	default:
		return m.runtimeError("value is not indexable")
	}
}

func (m *Machine) execSetIndex() *diagnostics.Diagnostic {
	val := m.pop()
	idx := m.pop()
	coll := m.pop()
	if !coll.IsObject() {
		return m.runtimeError("value is not indexable")
	}
	switch obj := coll.AsObject().(type) {
	case *vmheap.ArrayObject:
		if !idx.IsNumber() {
			return m.runtimeError("array index must be a number")
		}
		i := int(idx.AsNumber())
		if i < 0 || i >= len(obj.Elements) {
			return m.runtimeError("array index %d out of range", i)
		}
		obj.Elements[i] = val
		m.push(val)
		return nil
	case *vmheap.DictObject:
		if err := obj.Set(idx, val); err != nil {
			return m.runtimeError("%s", err.Error())
		}
		m.push(val)
		return nil
	default:
		return m.runtimeError("value is not indexable")
	}
}

// execImportModule implements spec.md §5's synchronous, cache-gated import:
// a resolved path compiles and executes at most once; a concurrent cyclic
// import sees the cached (possibly still-empty) ModuleObject instead of
// recompiling.
func (m *Machine) execImportModule() *diagnostics.Diagnostic {
	path := m.readStringConstant()
	resolvedPath, src, err := m.resolver.Resolve(m.currentPath(), path)
	if err != nil {
		return m.runtimeError("%s", err.Error())
	}
	if cached, ok := m.cache.Get(resolvedPath); ok {
		m.push(vmheap.Obj(cached))
		return nil
	}

	fn, errs := compiler.Compile(src, m.gc)
	if !errs.Empty() {
		return m.runtimeError("module '%s' failed to compile: %s", path, errs.Items()[0].Error())
	}

	mod := vmheap.NewModule(resolvedPath)
	// pushModuleScope roots mod via m.moduleStack (a GCRoots source)
	// before alloc's CollectIfNeeded can run a cycle that would otherwise
	// sweep it as unreachable.
	m.pushModuleScope(resolvedPath, mod)
	m.alloc(mod)
	m.cache.Put(resolvedPath, mod)

	closure := &vmheap.ClosureObject{Function: fn}
	closureIdx := len(m.stack)
	m.push(vmheap.Obj(closure))
	m.alloc(closure)
	depth := len(m.frames)
	m.frames = append(m.frames, frame{closure: closure, base: closureIdx, resultSlot: closureIdx})

	diag := m.run(depth)
	m.popModuleScope()
	if diag != nil {
		return diag
	}

	m.pop() // discard the module script's own return value
	m.push(vmheap.Obj(mod))
	return nil
}
