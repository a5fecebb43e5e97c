package stdlib

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/funvibe/scriptlang/internal/vmheap"
)

// Install builds one NativeFunctionObject per Descriptor, registers each
// with gc so it participates in collection bookkeeping like any other
// heap object, and returns them keyed by name. The VM seeds its globals
// map with these at startup.
func Install(gc *vmheap.GC) map[string]*vmheap.NativeFunctionObject {
	impls := map[string]vmheap.NativeFn{
		"clock":      nativeClock,
		"sqrt":       unaryMath(math.Sqrt),
		"len":        nativeLen,
		"error":      nativeError,
		"num":        nativeNum,
		"type":       nativeType,
		"str":        nativeToString,
		"toString":   nativeToString,
		"parseInt":   nativeParseInt,
		"parseUInt":  nativeParseUInt,
		"parseFloat": nativeParseFloat,
		"abs":        unaryMath(math.Abs),
		"floor":      unaryMath(math.Floor),
		"ceil":       unaryMath(math.Ceil),
		"pow":        nativePow,
		"Set":        nativeSet(gc),
	}

	sigs := Signatures()
	out := make(map[string]*vmheap.NativeFunctionObject, len(Descriptors))
	for _, d := range Descriptors {
		obj := &vmheap.NativeFunctionObject{
			Name: d.Name,
			Fn:   impls[d.Name],
			Sig:  sigs[d.Name],
		}
		gc.Register(obj)
		out[d.Name] = obj
	}
	return out
}

func arityError(name string, want, got int) error {
	return fmt.Errorf("%s expects %d argument(s), got %d", name, want, got)
}

func nativeClock(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 0 {
		return vmheap.Nil(), arityError("clock", 0, len(args))
	}
	return vmheap.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func unaryMath(fn func(float64) float64) vmheap.NativeFn {
	return func(args []vmheap.Value) (vmheap.Value, error) {
		if len(args) != 1 || !args[0].IsNumber() {
			return vmheap.Nil(), fmt.Errorf("expected a single numeric argument")
		}
		return vmheap.Number(fn(args[0].AsNumber())), nil
	}
}

func nativePow(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return vmheap.Nil(), fmt.Errorf("pow expects two numeric arguments")
	}
	return vmheap.Number(math.Pow(args[0].AsNumber(), args[1].AsNumber())), nil
}

// nativeLen reports len(any) per spec.md §6.3: strings, arrays, dicts and
// sets all have a length; anything else is a runtime error.
func nativeLen(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 {
		return vmheap.Nil(), arityError("len", 1, len(args))
	}
	v := args[0]
	switch {
	case v.IsString():
		return vmheap.Number(float64(len([]rune(v.AsString())))), nil
	case v.IsObject():
		switch o := v.AsObject().(type) {
		case *vmheap.ArrayObject:
			return vmheap.Number(float64(len(o.Elements))), nil
		case *vmheap.DictObject:
			return vmheap.Number(float64(o.Len())), nil
		case *vmheap.SetObject:
			return vmheap.Number(float64(o.Len())), nil
		}
	}
	return vmheap.Nil(), fmt.Errorf("len: unsupported operand type %s", v.RuntimeType())
}

// nativeError signals the halt-with-runtime-error-status contract of
// spec.md §7: the VM's call protocol treats a non-nil native error as a
// runtime error and unwinds.
func nativeError(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 || !args[0].IsString() {
		return vmheap.Nil(), fmt.Errorf("error expects a single string argument")
	}
	return vmheap.Nil(), fmt.Errorf("%s", args[0].AsString())
}

func nativeNum(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 {
		return vmheap.Nil(), arityError("num", 1, len(args))
	}
	v := args[0]
	switch {
	case v.IsNumber():
		return v, nil
	case v.IsBool():
		if v.AsBool() {
			return vmheap.Number(1), nil
		}
		return vmheap.Number(0), nil
	case v.IsString():
		f, err := strconv.ParseFloat(v.AsString(), 64)
		if err != nil {
			return vmheap.Nil(), fmt.Errorf("num: cannot convert %q to a number", v.AsString())
		}
		return vmheap.Number(f), nil
	default:
		return vmheap.Nil(), fmt.Errorf("num: unsupported operand type %s", v.RuntimeType())
	}
}

func nativeType(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 {
		return vmheap.Nil(), arityError("type", 1, len(args))
	}
	return vmheap.Str(args[0].RuntimeType().String()), nil
}

func nativeToString(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 {
		return vmheap.Nil(), arityError("toString", 1, len(args))
	}
	return vmheap.Str(args[0].Inspect()), nil
}

func nativeParseInt(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 || !args[0].IsString() {
		return vmheap.Nil(), fmt.Errorf("parseInt expects a single string argument")
	}
	n, err := strconv.ParseInt(args[0].AsString(), 10, 64)
	if err != nil {
		return vmheap.Nil(), fmt.Errorf("parseInt: invalid integer %q", args[0].AsString())
	}
	return vmheap.Number(float64(n)), nil
}

func nativeParseUInt(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 || !args[0].IsString() {
		return vmheap.Nil(), fmt.Errorf("parseUInt expects a single string argument")
	}
	n, err := strconv.ParseUint(args[0].AsString(), 10, 64)
	if err != nil {
		return vmheap.Nil(), fmt.Errorf("parseUInt: invalid unsigned integer %q", args[0].AsString())
	}
	return vmheap.Number(float64(n)), nil
}

func nativeParseFloat(args []vmheap.Value) (vmheap.Value, error) {
	if len(args) != 1 || !args[0].IsString() {
		return vmheap.Nil(), fmt.Errorf("parseFloat expects a single string argument")
	}
	f, err := strconv.ParseFloat(args[0].AsString(), 64)
	if err != nil {
		return vmheap.Nil(), fmt.Errorf("parseFloat: invalid float %q", args[0].AsString())
	}
	return vmheap.Number(f), nil
}

// nativeSet implements the variadic `Set()` constructor (spec.md §6.3);
// it allocates its SetObject through gc like any other heap value.
func nativeSet(gc *vmheap.GC) vmheap.NativeFn {
	return func(args []vmheap.Value) (vmheap.Value, error) {
		s := vmheap.NewSet(nil)
		for _, a := range args {
			s.Add(a)
		}
		gc.Register(s)
		return vmheap.Obj(s), nil
	}
}
