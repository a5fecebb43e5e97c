// Package stdlib holds the fixed native-function surface registered at
// compile start (spec.md §6.3): descriptors for type-checking plus their
// Go implementations for the VM's call protocol.
package stdlib

import "github.com/funvibe/scriptlang/internal/types"

// Descriptor is the type-checking half of a native: its name and
// FUNCTION signature, ported from original_source/StdLib.cpp's
// NativeDescriptor.
type Descriptor struct {
	Name       string
	ParamTypes []*types.Type
	ReturnType *types.Type
}

// Descriptors is the fixed standard library natives list, in the order
// original_source/StdLib.cpp registers them. The type checker leaves the
// arity of a call unchecked whenever ParamTypes is empty, whether nil
// (`Set`, variadic) or an empty slice (`clock`); the natives themselves
// check their own argument counts at run time.
var Descriptors = []Descriptor{
	{"clock", []*types.Type{}, types.F64Type()},
	{"sqrt", []*types.Type{types.F64Type()}, types.F64Type()},
	{"len", []*types.Type{types.AnyType()}, types.I64Type()},
	{"error", []*types.Type{types.StrType()}, types.VoidType()},
	{"num", []*types.Type{types.AnyType()}, types.F64Type()},
	{"type", []*types.Type{types.AnyType()}, types.StrType()},
	{"str", []*types.Type{types.AnyType()}, types.StrType()},
	{"toString", []*types.Type{types.AnyType()}, types.StrType()},
	{"parseInt", []*types.Type{types.StrType()}, types.I64Type()},
	{"parseUInt", []*types.Type{types.StrType()}, types.U64Type()},
	{"parseFloat", []*types.Type{types.StrType()}, types.F64Type()},
	{"abs", []*types.Type{types.F64Type()}, types.F64Type()},
	{"floor", []*types.Type{types.F64Type()}, types.F64Type()},
	{"ceil", []*types.Type{types.F64Type()}, types.F64Type()},
	{"pow", []*types.Type{types.F64Type(), types.F64Type()}, types.F64Type()},
	{"Set", nil, types.SetType(types.AnyType())},
}

// Signatures returns name -> FUNCTION type for every descriptor, the form
// both the type checker and the compiler's stdlib pre-pass seed their
// outermost scope/global table with.
func Signatures() map[string]*types.Type {
	out := make(map[string]*types.Type, len(Descriptors))
	for _, d := range Descriptors {
		out[d.Name] = types.FunctionType(d.ParamTypes, d.ReturnType)
	}
	return out
}
