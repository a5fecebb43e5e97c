package vmheap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRoots struct {
	values []Value
}

func (f fakeRoots) GCRoots() []Value { return f.values }

func newTrackedArray(gc *GC, elems ...Value) *ArrayObject {
	a := NewArray(elems, nil)
	gc.Register(a)
	return a
}

func TestGCSweepsUnreachableObjects(t *testing.T) {
	gc := NewGC()
	reachable := newTrackedArray(gc)
	garbage := newTrackedArray(gc)
	_ = garbage

	before := gc.BytesAllocated()
	require.True(t, before > 0)

	gc.Collect(fakeRoots{values: []Value{Obj(reachable)}})

	// reachable must survive with its mark cleared for the next cycle.
	require.False(t, reachable.Marked)

	// a second empty-root collection frees everything, including what
	// used to be reachable.
	gc.Collect(fakeRoots{})
	require.EqualValues(t, 0, gc.BytesAllocated())
}

func TestGCThresholdDoublesAfterCollection(t *testing.T) {
	gc := NewGC()
	gc.Configure(64)
	for i := 0; i < 10; i++ {
		newTrackedArray(gc)
	}
	require.True(t, gc.ShouldCollect())
	gc.Collect(fakeRoots{})
	require.Equal(t, defaultThreshold, gc.Threshold())

	// with 20000 live arrays (640000 bytes) twice the live size is above
	// the 1 MiB floor.
	var live []Value
	for i := 0; i < 20000; i++ {
		live = append(live, Obj(newTrackedArray(gc)))
	}
	gc.Collect(fakeRoots{values: live})
	require.EqualValues(t, 2*640000, gc.Threshold())
}

func TestMarkObjectTracesNestedReferences(t *testing.T) {
	gc := NewGC()
	inner := newTrackedArray(gc, Number(1))
	outer := newTrackedArray(gc, Obj(inner))
	before := gc.BytesAllocated()

	gc.Collect(fakeRoots{values: []Value{Obj(outer)}})

	// inner is reachable only through outer's elements; nothing is swept.
	require.Equal(t, before, gc.BytesAllocated())
	require.False(t, outer.Marked)
	require.False(t, inner.Marked)
	require.Len(t, outer.Elements, 1)
}

func TestUpvalueOpenCloseTransition(t *testing.T) {
	stack := []Value{Number(1), Number(2), Number(3)}
	uv := NewOpenUpvalue(&stack, 1)
	require.True(t, uv.IsOpen())
	require.Equal(t, Number(2), uv.Get())

	stack[1] = Number(42)
	require.Equal(t, Number(42), uv.Get())

	uv.Close()
	require.False(t, uv.IsOpen())
	require.Equal(t, Number(42), uv.Get())

	stack[1] = Number(99)
	require.Equal(t, Number(42), uv.Get(), "closed upvalue must not see further stack writes")
}

func TestClassFindMethodWalksSuperclassChain(t *testing.T) {
	base := NewClass("Base")
	base.Methods["greet"] = &ClosureObject{Function: &FunctionObject{Name: "greet"}}
	derived := NewClass("Derived")
	derived.Superclass = base
	derived.Info.Superclass = base.Info

	m, ok := derived.FindMethod("greet")
	require.True(t, ok)
	require.Equal(t, "greet", m.Function.Name)

	_, ok = derived.FindMethod("missing")
	require.False(t, ok)

	require.True(t, derived.Info.IsSubclassOf(base.Info))
}

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict(nil, nil)
	require.NoError(t, d.Set(Str("b"), Number(2)))
	require.NoError(t, d.Set(Str("a"), Number(1)))
	require.NoError(t, d.Set(Str("b"), Number(20)))

	require.Equal(t, []Value{Str("b"), Str("a")}, d.Keys())
	v, ok := d.Get(Str("b"))
	require.True(t, ok)
	require.Equal(t, Number(20), v)
}

func TestSetAddDeduplicates(t *testing.T) {
	s := NewSet(nil)
	require.True(t, s.Add(Number(1)))
	require.False(t, s.Add(Number(1)))
	require.True(t, s.Add(Str("x")))
	require.Equal(t, 2, s.Len())
	require.True(t, s.Has(Number(1)))
	require.False(t, s.Has(Number(2)))
}

func TestArrayIteratorWalksElements(t *testing.T) {
	a := NewArray([]Value{Number(1), Number(2)}, nil)
	it := NewArrayIterator(a)
	require.True(t, it.HasNext())
	require.Equal(t, Number(1), it.Next())
	require.True(t, it.HasNext())
	require.Equal(t, Number(2), it.Next())
	require.False(t, it.HasNext())
}
