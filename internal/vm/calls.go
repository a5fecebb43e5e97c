package vm

import (
	"github.com/funvibe/scriptlang/internal/diagnostics"
	"github.com/funvibe/scriptlang/internal/vmheap"
)

// callValue implements the call protocol of spec.md §4.5: calleeIdx is the
// stack slot holding the callable, with argc arguments immediately above
// it. A ClosureObject/BoundMethodObject call pushes a new frame and lets
// the dispatch loop keep running; a NativeFunctionObject/ClassObject call
// finishes synchronously and leaves its result in the callee's slot.
func (m *Machine) callValue(calleeIdx, argc int) *diagnostics.Diagnostic {
	callee := m.stack[calleeIdx]
	if !callee.IsObject() {
		return m.runtimeError("'%s' is not callable", callee.Inspect())
	}
	switch obj := callee.AsObject().(type) {
	case *vmheap.ClosureObject:
		return m.callClosure(obj, nil, calleeIdx, argc)
	case *vmheap.BoundMethodObject:
		return m.callClosure(obj.Method, obj.Receiver, calleeIdx, argc)
	case *vmheap.NativeFunctionObject:
		return m.callNative(obj.Fn, calleeIdx, argc)
	case *vmheap.NativeBoundMethodObject:
		return m.callNative(obj.Fn, calleeIdx, argc)
	case *vmheap.ClassObject:
		return m.callClass(obj, calleeIdx, argc)
	default:
		return m.runtimeError("'%s' is not callable", callee.Inspect())
	}
}

func (m *Machine) callClosure(closure *vmheap.ClosureObject, receiver *vmheap.InstanceObject, calleeIdx, argc int) *diagnostics.Diagnostic {
	arity := len(closure.Function.ParamNames)
	if argc != arity {
		return m.runtimeError("expected %d arguments but got %d calling '%s'", arity, argc, closure.Function.Name)
	}
	m.frames = append(m.frames, frame{
		closure:    closure,
		base:       calleeIdx + 1,
		resultSlot: calleeIdx,
		receiver:   receiver,
	})
	return nil
}

func (m *Machine) callNative(fn vmheap.NativeFn, calleeIdx, argc int) *diagnostics.Diagnostic {
	args := append([]vmheap.Value(nil), m.stack[calleeIdx+1:calleeIdx+1+argc]...)
	result, err := fn(args)
	if err != nil {
		return m.runtimeError("%s", err.Error())
	}
	m.stack = m.stack[:calleeIdx]
	m.push(result)
	return nil
}

// callClass constructs an InstanceObject and, if the class declares init,
// runs it to completion (via a nested run, since its own return value must
// be discarded rather than replacing the instance) before leaving the
// instance in the call's result slot. spec.md §4.5 doesn't say what init's
// own return value does; original_source never gives init a meaningful one
// either, so the constructed instance is always the expression's result.
func (m *Machine) callClass(class *vmheap.ClassObject, calleeIdx, argc int) *diagnostics.Diagnostic {
	instance := vmheap.NewInstance(class)
	// Root instance on the stack before alloc's CollectIfNeeded can run a
	// cycle — it briefly occupies the call's own result slot, overwritten
	// below once its final resting place is decided.
	m.stack[calleeIdx] = vmheap.Obj(instance)
	m.alloc(instance)

	init, hasInit := class.FindMethod("init")
	if !hasInit {
		if argc != 0 {
			return m.runtimeError("class '%s' has no init method but was called with %d arguments", class.Name, argc)
		}
		m.stack = m.stack[:calleeIdx]
		m.push(vmheap.Obj(instance))
		return nil
	}

	arity := len(init.Function.ParamNames)
	if argc != arity {
		return m.runtimeError("expected %d arguments but got %d calling '%s.init'", arity, argc, class.Name)
	}

	depth := len(m.frames)
	m.frames = append(m.frames, frame{
		closure:    init,
		base:       calleeIdx + 1,
		resultSlot: calleeIdx,
		receiver:   instance,
	})
	if diag := m.run(depth); diag != nil {
		return diag
	}
	m.pop() // discard init's own return value
	m.push(vmheap.Obj(instance))
	return nil
}

// captureUpvalue returns the open upvalue aliasing stack[location],
// reusing an existing one so two closures capturing the same local share
// its cell (spec.md §3.5's open-upvalue identity requirement).
func (m *Machine) captureUpvalue(location int) *vmheap.UpvalueObject {
	for _, uv := range m.openUpvalues {
		if uv.IsOpen() && uv.Location == location {
			return uv
		}
	}
	uv := vmheap.NewOpenUpvalue(&m.stack, location)
	m.gc.Register(uv)
	m.openUpvalues = append(m.openUpvalues, uv)
	return uv
}

// closeUpvalues closes every open upvalue whose Location is at or above
// fromStackIdx, copying the live stack value into the upvalue's own cell
// before that slot is popped or reused by a returning frame.
func (m *Machine) closeUpvalues(fromStackIdx int) {
	remaining := m.openUpvalues[:0]
	for _, uv := range m.openUpvalues {
		if uv.IsOpen() && uv.Location >= fromStackIdx {
			uv.Close()
		} else {
			remaining = append(remaining, uv)
		}
	}
	m.openUpvalues = remaining
}
