package vmheap

import (
	"fmt"
	"math"

	"github.com/funvibe/scriptlang/internal/types"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValString
	ValObject
)

// Value is the tagged union of spec.md §3.4: nil, bool, a double-precision
// number, a string, or a reference to a GC heap Object. Numbers are always
// carried as float64; NARROW_INT re-interprets and re-lifts them at
// declared-type boundaries (spec.md §4.5).
type Value struct {
	Kind   ValueKind
	Num    float64
	Str    string
	Object Object
}

func Nil() Value             { return Value{Kind: ValNil} }
func Bool(b bool) Value      { return Value{Kind: ValBool, Num: boolToFloat(b)} }
func Number(n float64) Value { return Value{Kind: ValNumber, Num: n} }
func Str(s string) Value     { return Value{Kind: ValString, Str: s} }
func Obj(o Object) Value     { return Value{Kind: ValObject, Object: o} }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) IsNil() bool    { return v.Kind == ValNil }
func (v Value) IsBool() bool   { return v.Kind == ValBool }
func (v Value) IsNumber() bool { return v.Kind == ValNumber }
func (v Value) IsString() bool { return v.Kind == ValString }
func (v Value) IsObject() bool { return v.Kind == ValObject }

func (v Value) AsBool() bool      { return v.Num != 0 }
func (v Value) AsNumber() float64 { return v.Num }
func (v Value) AsString() string  { return v.Str }
func (v Value) AsObject() Object  { return v.Object }

// IsFalsey follows the usual dynamic-language convention: nil and false
// are falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	if v.IsNil() {
		return true
	}
	if v.IsBool() {
		return !v.AsBool()
	}
	return false
}

// Equals implements spec.md §3.4 equality: nil = nil; bool/number/string
// compare by value; heap-object values compare by identity.
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValNil:
		return true
	case ValBool:
		return v.AsBool() == other.AsBool()
	case ValNumber:
		return v.Num == other.Num
	case ValString:
		return v.Str == other.Str
	case ValObject:
		return v.Object == other.Object
	default:
		return false
	}
}

// RuntimeType returns the dynamic TypeInfo of v, used for `type()`/`str()`
// natives and for instance-type checks.
func (v Value) RuntimeType() *types.Type {
	switch v.Kind {
	case ValNil:
		return types.NullType()
	case ValBool:
		return types.BoolType()
	case ValNumber:
		return types.F64Type()
	case ValString:
		return types.StrType()
	case ValObject:
		if v.Object != nil {
			return v.Object.RuntimeType()
		}
		return types.NullType()
	default:
		return types.AnyType()
	}
}

// Inspect renders v for `print`/`toString`.
func (v Value) Inspect() string {
	switch v.Kind {
	case ValNil:
		return "null"
	case ValBool:
		return fmt.Sprintf("%t", v.AsBool())
	case ValNumber:
		if v.Num == math.Trunc(v.Num) && !math.IsInf(v.Num, 0) {
			return fmt.Sprintf("%d", int64(v.Num))
		}
		return fmt.Sprintf("%g", v.Num)
	case ValString:
		return v.Str
	case ValObject:
		if v.Object != nil {
			return v.Object.Inspect()
		}
		return "<nil>"
	default:
		return "<?>"
	}
}
