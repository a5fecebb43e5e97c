package vmheap

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/funvibe/scriptlang/internal/types"
)

// GCHeader is embedded in every heap object. It carries the mark bit and
// the next-link threading the object through the GC's flat allocation
// list (spec.md §3.5), plus a stable identity assigned by GC.Register.
// Inspect() strings and the GC tracer hooks do not include the identity.
type GCHeader struct {
	Marked bool
	Next   Object
	Size   uintptr
	ID     uuid.UUID
}

func (h *GCHeader) gcHeader() *GCHeader { return h }

// Object is any GC-managed heap value. Trace must call mark on every
// Value it directly holds so the collector can propagate liveness.
type Object interface {
	Inspect() string
	RuntimeType() *types.Type
	Trace(mark func(Value))
	gcHeader() *GCHeader
}

// --- FunctionObject ---------------------------------------------------

// FunctionObject is a compiled function body: its parameter names, owned
// Chunk, and upvalue count. Produced once per `function`/method
// declaration by the compiler.
type FunctionObject struct {
	GCHeader
	Name         string
	ParamNames   []string
	ParamTypes   []*types.Type
	ReturnType   *types.Type
	Chunk        *Chunk
	UpvalueCount int
}

func (f *FunctionObject) Inspect() string { return "<fn " + f.Name + ">" }
func (f *FunctionObject) RuntimeType() *types.Type {
	return types.FunctionType(f.ParamTypes, f.ReturnType)
}
func (f *FunctionObject) Trace(mark func(Value)) {
	for _, v := range f.Chunk.Constants {
		mark(v)
	}
}

// --- ClosureObject ------------------------------------------------------

// ClosureObject pairs a FunctionObject with its captured upvalues.
// OwnerClass is set only for method closures (by OP_METHOD), recording
// which class declared them so GET_SUPER can resolve the lexically
// enclosing class's superclass rather than the receiver's dynamic class.
type ClosureObject struct {
	GCHeader
	Function   *FunctionObject
	Upvalues   []*UpvalueObject
	OwnerClass *ClassObject
}

func (c *ClosureObject) Inspect() string              { return "<closure " + c.Function.Name + ">" }
func (c *ClosureObject) RuntimeType() *types.Type      { return c.Function.RuntimeType() }
func (c *ClosureObject) Trace(mark func(Value)) {
	mark(Obj(c.Function))
	for _, uv := range c.Upvalues {
		mark(Obj(uv))
	}
	if c.OwnerClass != nil {
		mark(Obj(c.OwnerClass))
	}
}

// --- UpvalueObject --------------------------------------------------------

// UpvalueObject is a captured-variable cell. Open: Location indexes the
// shared evaluation stack. Closed: Location is -1 and Closed holds the
// value directly. The open->closed transition happens exactly once, when
// the target stack slot leaves the live stack (spec.md §3.5/§9).
type UpvalueObject struct {
	GCHeader
	Location int
	Closed   Value
	// stackRef lets the VM read/write the live slot while open, without
	// vmheap depending on the VM's stack type.
	stackRef *[]Value
}

// NewOpenUpvalue creates an upvalue aliasing stack[location], where stack
// is the VM's shared evaluation stack.
func NewOpenUpvalue(stack *[]Value, location int) *UpvalueObject {
	return &UpvalueObject{Location: location, stackRef: stack}
}

func (u *UpvalueObject) IsOpen() bool { return u.stackRef != nil }

func (u *UpvalueObject) Get() Value {
	if u.IsOpen() {
		return (*u.stackRef)[u.Location]
	}
	return u.Closed
}

func (u *UpvalueObject) Set(v Value) {
	if u.IsOpen() {
		(*u.stackRef)[u.Location] = v
		return
	}
	u.Closed = v
}

// Close transitions the upvalue from open to closed, copying the current
// stack value into its own cell.
func (u *UpvalueObject) Close() {
	if !u.IsOpen() {
		return
	}
	u.Closed = (*u.stackRef)[u.Location]
	u.stackRef = nil
}

func (u *UpvalueObject) Inspect() string         { return "<upvalue>" }
func (u *UpvalueObject) RuntimeType() *types.Type { return types.AnyType() }
func (u *UpvalueObject) Trace(mark func(Value)) {
	if !u.IsOpen() {
		mark(u.Closed)
	}
}

// --- ClassObject ----------------------------------------------------------

// ClassObject is a class: its name, optional superclass, and a method
// table. INHERIT only links the Superclass pointer; FindMethod walks the
// chain at lookup time, so an override replaces the subclass's own entry
// without touching the superclass's table.
type ClassObject struct {
	GCHeader
	Name       string
	Superclass *ClassObject
	Methods    map[string]*ClosureObject
	FieldTypes map[string]*types.Type
	Info       *types.ClassInfo
}

func NewClass(name string) *ClassObject {
	return &ClassObject{
		Name:       name,
		Methods:    make(map[string]*ClosureObject),
		FieldTypes: make(map[string]*types.Type),
		Info:       &types.ClassInfo{Name: name},
	}
}

func (c *ClassObject) Inspect() string              { return "<class " + c.Name + ">" }
func (c *ClassObject) RuntimeType() *types.Type      { return types.ClassType(c.Name, c.Info) }
func (c *ClassObject) Trace(mark func(Value)) {
	for _, m := range c.Methods {
		mark(Obj(m))
	}
	if c.Superclass != nil {
		mark(Obj(c.Superclass))
	}
}

// FindMethod walks the superclass chain, returning the first method found.
func (c *ClassObject) FindMethod(name string) (*ClosureObject, bool) {
	for cur := c; cur != nil; cur = cur.Superclass {
		if m, ok := cur.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// --- InstanceObject ---------------------------------------------------------

// InstanceObject is an instance of a ClassObject with its own field map.
type InstanceObject struct {
	GCHeader
	Class  *ClassObject
	Fields map[string]Value
}

func NewInstance(class *ClassObject) *InstanceObject {
	return &InstanceObject{Class: class, Fields: make(map[string]Value)}
}

func (i *InstanceObject) Inspect() string         { return "<" + i.Class.Name + " instance>" }
func (i *InstanceObject) RuntimeType() *types.Type { return i.Class.RuntimeType() }
func (i *InstanceObject) Trace(mark func(Value)) {
	mark(Obj(i.Class))
	for _, v := range i.Fields {
		mark(v)
	}
}

// IsInstanceOf reports whether i's class chain includes className, used
// by CHECK_INSTANCE_TYPE.
func (i *InstanceObject) IsInstanceOf(className string) bool {
	for c := i.Class; c != nil; c = c.Superclass {
		if c.Name == className {
			return true
		}
	}
	return false
}

// --- BoundMethodObject --------------------------------------------------

// BoundMethodObject pairs a receiver InstanceObject with a user-defined
// ClosureObject method.
type BoundMethodObject struct {
	GCHeader
	Receiver *InstanceObject
	Method   *ClosureObject
}

func (b *BoundMethodObject) Inspect() string { return "<bound method " + b.Method.Function.Name + ">" }
func (b *BoundMethodObject) RuntimeType() *types.Type { return b.Method.RuntimeType() }
func (b *BoundMethodObject) Trace(mark func(Value)) {
	mark(Obj(b.Receiver))
	mark(Obj(b.Method))
}

// --- Native callables -------------------------------------------------------

// NativeFn is the Go implementation behind a NativeFunctionObject.
type NativeFn func(args []Value) (Value, error)

// NativeFunctionObject wraps a host Go function as a VM-callable value
// (spec.md §6.3 standard library natives).
type NativeFunctionObject struct {
	GCHeader
	Name string
	Fn   NativeFn
	Sig  *types.Type
}

func (n *NativeFunctionObject) Inspect() string         { return "<native fn " + n.Name + ">" }
func (n *NativeFunctionObject) RuntimeType() *types.Type { return n.Sig }
func (n *NativeFunctionObject) Trace(mark func(Value))   {}

// NativeBoundMethodObject binds a receiver Value to a host-registered
// native callable. The bundled standard library never constructs one
// directly (its natives are free functions); this exists for an
// embedding host that wants to expose bound native methods on values it
// hands into the VM as globals — see vm.Machine.BindNative.
type NativeBoundMethodObject struct {
	GCHeader
	Receiver Value
	Fn       NativeFn
	Name     string
}

func (n *NativeBoundMethodObject) Inspect() string { return "<bound native " + n.Name + ">" }
func (n *NativeBoundMethodObject) RuntimeType() *types.Type {
	return types.FunctionType(nil, types.AnyType())
}
func (n *NativeBoundMethodObject) Trace(mark func(Value)) { mark(n.Receiver) }

// --- Containers -------------------------------------------------------------

// ArrayObject is an ordered, mutable sequence of Values.
type ArrayObject struct {
	GCHeader
	Elements    []Value
	ElementType *types.Type
}

func NewArray(elems []Value, elemType *types.Type) *ArrayObject {
	return &ArrayObject{Elements: elems, ElementType: elemType}
}

func (a *ArrayObject) Inspect() string {
	s := "["
	for i, e := range a.Elements {
		if i != 0 {
			s += ", "
		}
		s += e.Inspect()
	}
	return s + "]"
}
func (a *ArrayObject) RuntimeType() *types.Type { return types.ArrayType(elemOrAny(a.ElementType)) }
func (a *ArrayObject) Trace(mark func(Value)) {
	for _, v := range a.Elements {
		mark(v)
	}
}

func elemOrAny(t *types.Type) *types.Type {
	if t == nil {
		return types.AnyType()
	}
	return t
}

// dictKey is a comparable projection of a Value for use as a Go map key.
// Dict keys are restricted to strings and numbers (spec.md §3.5).
type dictKey struct {
	isStr bool
	s     string
	n     float64
}

func toDictKey(v Value) (dictKey, bool) {
	switch v.Kind {
	case ValString:
		return dictKey{isStr: true, s: v.Str}, true
	case ValNumber:
		return dictKey{n: v.Num}, true
	default:
		return dictKey{}, false
	}
}

func fromDictKey(k dictKey) Value {
	if k.isStr {
		return Str(k.s)
	}
	return Number(k.n)
}

// DictObject maps string/number keys to Values, preserving insertion
// order for deterministic iteration.
type DictObject struct {
	GCHeader
	entries map[dictKey]Value
	order   []dictKey
	KeyType *types.Type
	ValType *types.Type
}

func NewDict(keyType, valType *types.Type) *DictObject {
	return &DictObject{entries: make(map[dictKey]Value), KeyType: keyType, ValType: valType}
}

func (d *DictObject) Set(key, value Value) error {
	k, ok := toDictKey(key)
	if !ok {
		return fmt.Errorf("dict keys must be strings or numbers")
	}
	if _, exists := d.entries[k]; !exists {
		d.order = append(d.order, k)
	}
	d.entries[k] = value
	return nil
}

func (d *DictObject) Get(key Value) (Value, bool) {
	k, ok := toDictKey(key)
	if !ok {
		return Nil(), false
	}
	v, found := d.entries[k]
	return v, found
}

func (d *DictObject) Keys() []Value {
	out := make([]Value, len(d.order))
	for i, k := range d.order {
		out[i] = fromDictKey(k)
	}
	return out
}

func (d *DictObject) Len() int { return len(d.order) }

func (d *DictObject) Inspect() string {
	s := "{"
	for i, k := range d.order {
		if i != 0 {
			s += ", "
		}
		s += fromDictKey(k).Inspect() + ": " + d.entries[k].Inspect()
	}
	return s + "}"
}
func (d *DictObject) RuntimeType() *types.Type {
	return types.DictType(elemOrAny(d.KeyType), elemOrAny(d.ValType))
}
func (d *DictObject) Trace(mark func(Value)) {
	for _, k := range d.order {
		mark(fromDictKey(k))
		mark(d.entries[k])
	}
}

// SetObject is an unordered (insertion-ordered for iteration) collection
// with membership by the same equality as `==`.
type SetObject struct {
	GCHeader
	members     map[dictKey]Value
	order       []dictKey
	ElementType *types.Type
}

func NewSet(elemType *types.Type) *SetObject {
	return &SetObject{members: make(map[dictKey]Value), ElementType: elemType}
}

// Add reports whether v was newly inserted. Non-string/number elements
// fall back to linear identity/value scan since they can't be hashed into
// the key map.
func (s *SetObject) Add(v Value) bool {
	if k, ok := toDictKey(v); ok {
		if _, exists := s.members[k]; exists {
			return false
		}
		s.members[k] = v
		s.order = append(s.order, k)
		return true
	}
	for _, existing := range s.Values() {
		if existing.Equals(v) {
			return false
		}
	}
	// store non-hashable members under a synthetic unique key so they
	// still participate in iteration/Len.
	synthetic := dictKey{isStr: true, s: fmt.Sprintf("\x00obj:%p", v.Object)}
	s.members[synthetic] = v
	s.order = append(s.order, synthetic)
	return true
}

func (s *SetObject) Has(v Value) bool {
	for _, existing := range s.Values() {
		if existing.Equals(v) {
			return true
		}
	}
	return false
}

func (s *SetObject) Values() []Value {
	out := make([]Value, len(s.order))
	for i, k := range s.order {
		out[i] = s.members[k]
	}
	return out
}

func (s *SetObject) Len() int { return len(s.order) }

func (s *SetObject) Inspect() string {
	out := "Set("
	for i, v := range s.Values() {
		if i != 0 {
			out += ", "
		}
		out += v.Inspect()
	}
	return out + ")"
}
func (s *SetObject) RuntimeType() *types.Type { return types.SetType(elemOrAny(s.ElementType)) }
func (s *SetObject) Trace(mark func(Value)) {
	for _, v := range s.Values() {
		mark(v)
	}
}

// --- IteratorObject -----------------------------------------------------

// IteratorKind distinguishes what container an IteratorObject walks.
type IteratorKind uint8

const (
	IterArray IteratorKind = iota
	IterDictKeys
	IterSet
)

// IteratorObject is a cursor over an Array, Dict (yields keys) or Set.
type IteratorObject struct {
	GCHeader
	Kind     IteratorKind
	Array    *ArrayObject
	Dict     *DictObject
	dictKeys []Value
	Set      *SetObject
	setVals  []Value
	Position int
}

func NewArrayIterator(a *ArrayObject) *IteratorObject {
	return &IteratorObject{Kind: IterArray, Array: a}
}
func NewDictIterator(d *DictObject) *IteratorObject {
	return &IteratorObject{Kind: IterDictKeys, Dict: d, dictKeys: d.Keys()}
}
func NewSetIterator(s *SetObject) *IteratorObject {
	return &IteratorObject{Kind: IterSet, Set: s, setVals: s.Values()}
}

func (it *IteratorObject) HasNext() bool {
	switch it.Kind {
	case IterArray:
		return it.Position < len(it.Array.Elements)
	case IterDictKeys:
		return it.Position < len(it.dictKeys)
	case IterSet:
		return it.Position < len(it.setVals)
	default:
		return false
	}
}

func (it *IteratorObject) Next() Value {
	var v Value
	switch it.Kind {
	case IterArray:
		v = it.Array.Elements[it.Position]
	case IterDictKeys:
		v = it.dictKeys[it.Position]
	case IterSet:
		v = it.setVals[it.Position]
	}
	it.Position++
	return v
}

func (it *IteratorObject) Inspect() string         { return "<iterator>" }
func (it *IteratorObject) RuntimeType() *types.Type { return types.AnyType() }
func (it *IteratorObject) Trace(mark func(Value)) {
	switch it.Kind {
	case IterArray:
		mark(Obj(it.Array))
	case IterDictKeys:
		mark(Obj(it.Dict))
	case IterSet:
		mark(Obj(it.Set))
	}
}

// --- ModuleObject ----------------------------------------------------------

// ModuleObject holds the exports of one resolved module path. Exactly one
// ModuleObject exists per resolved path (enforced by internal/modules'
// cache), consistent with spec.md §5 "module cache keyed by resolved path
// prevents re-execution".
type ModuleObject struct {
	GCHeader
	Path    string
	Exports map[string]Value
}

func NewModule(path string) *ModuleObject {
	return &ModuleObject{Path: path, Exports: make(map[string]Value)}
}

func (m *ModuleObject) Inspect() string         { return "<module " + m.Path + ">" }
func (m *ModuleObject) RuntimeType() *types.Type { return types.AnyType() }
func (m *ModuleObject) Trace(mark func(Value)) {
	for _, v := range m.Exports {
		mark(v)
	}
}
