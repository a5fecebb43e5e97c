package vmheap

import "github.com/google/uuid"

const defaultThreshold int64 = 1 << 20 // 1 MiB, spec.md §5

// Tracer lets an embedder observe collection cycles without the core
// depending on a concrete logging library (see SPEC_FULL.md's ambient
// logging/tracing section) — the GC calls it, if set, at the start and
// end of every cycle.
type Tracer interface {
	OnGCStart(bytesAllocated int64, threshold int64)
	OnGCEnd(freed int64, bytesAllocated int64, newThreshold int64)
}

// Roots supplies the GC with every live Value outside the heap: the
// evaluation stack, call-frame receivers/closures, open upvalues, and the
// globals table (spec.md §5 "the roots are...").
type Roots interface {
	GCRoots() []Value
}

// GC is a tracing mark-and-sweep collector over the flat allocation list
// threaded through every Object's GCHeader.Next, ported from
// original_source/GC.cpp/.hpp: a gray-stack mark phase followed by a
// sweep that unlinks and drops unmarked objects.
type GC struct {
	objects        Object
	bytesAllocated int64
	threshold      int64
	gray           []Object
	Tracer         Tracer
}

// NewGC returns a GC with the default initial threshold; Configure
// overrides it from internal/config.
func NewGC() *GC {
	return &GC{threshold: defaultThreshold}
}

// Configure sets the initial collection threshold (internal/config's
// gc_initial_threshold_bytes).
func (gc *GC) Configure(initialThreshold int64) {
	if initialThreshold > 0 {
		gc.threshold = initialThreshold
	}
}

func (gc *GC) BytesAllocated() int64 { return gc.bytesAllocated }
func (gc *GC) Threshold() int64      { return gc.threshold }

// sizeOf is a coarse, intentionally approximate per-kind byte accounting
// used only to drive the collection threshold, not to model Go's actual
// memory layout.
func sizeOf(obj Object) int64 {
	switch obj.(type) {
	case *FunctionObject:
		return 64
	case *ClosureObject:
		return 48
	case *UpvalueObject:
		return 32
	case *ClassObject:
		return 64
	case *InstanceObject:
		return 48
	case *BoundMethodObject:
		return 32
	case *NativeFunctionObject:
		return 32
	case *NativeBoundMethodObject:
		return 32
	case *ArrayObject:
		return 32
	case *DictObject:
		return 48
	case *SetObject:
		return 48
	case *IteratorObject:
		return 40
	case *ModuleObject:
		return 48
	default:
		return 16
	}
}

// Register links a freshly-constructed Object into the GC's allocation
// list and accounts for its size, assigning it a stable identity. Every
// constructor in the VM's allocation path (vm.Machine) must call this
// exactly once per object.
func (gc *GC) Register(obj Object) {
	h := obj.gcHeader()
	h.ID = uuid.New()
	h.Next = gc.objects
	h.Size = uintptr(sizeOf(obj))
	gc.objects = obj
	gc.bytesAllocated += int64(h.Size)
}

// ShouldCollect reports whether bytesAllocated has reached the threshold,
// the synchronous safe-point check the VM performs at each allocation
// request (spec.md §5).
func (gc *GC) ShouldCollect() bool {
	return gc.bytesAllocated >= gc.threshold
}

// MarkValue marks v's referenced heap object, if any, pushing it onto the
// gray stack on first visit (ported from GC::markValue, generalized to
// this package's single Value type instead of per-kind accessors).
func (gc *GC) MarkValue(v Value) {
	if v.Kind == ValObject && v.Object != nil {
		gc.MarkObject(v.Object)
	}
}

// MarkObject marks obj, pushing it onto the gray stack on first visit.
func (gc *GC) MarkObject(obj Object) {
	if obj == nil {
		return
	}
	h := obj.gcHeader()
	if h.Marked {
		return
	}
	h.Marked = true
	gc.gray = append(gc.gray, obj)
}

// drainGrayStack pops objects off the gray stack and traces their
// referents until it is empty (ported from GC::drainGrayStack).
func (gc *GC) drainGrayStack() {
	for len(gc.gray) > 0 {
		n := len(gc.gray) - 1
		obj := gc.gray[n]
		gc.gray = gc.gray[:n]
		obj.Trace(gc.MarkValue)
	}
}

// sweep unlinks and drops every unmarked object from the allocation list,
// clearing the mark bit on survivors (ported from GC::sweep). It returns
// the number of bytes freed.
func (gc *GC) sweep() int64 {
	var freed int64
	var prev Object
	cur := gc.objects
	for cur != nil {
		h := cur.gcHeader()
		next := h.Next
		if !h.Marked {
			freed += int64(h.Size)
			if prev == nil {
				gc.objects = next
			} else {
				prev.gcHeader().Next = next
			}
		} else {
			h.Marked = false
			prev = cur
		}
		cur = next
	}
	if gc.bytesAllocated >= freed {
		gc.bytesAllocated -= freed
	} else {
		gc.bytesAllocated = 0
	}
	return freed
}

// Collect runs one full mark-and-sweep cycle rooted at roots.GCRoots(),
// then doubles the threshold per spec.md §5: "max(1 MiB, 2 x
// bytesAllocated)".
func (gc *GC) Collect(roots Roots) {
	if gc.Tracer != nil {
		gc.Tracer.OnGCStart(gc.bytesAllocated, gc.threshold)
	}
	for _, v := range roots.GCRoots() {
		gc.MarkValue(v)
	}
	gc.drainGrayStack()
	freed := gc.sweep()
	gc.threshold = gc.bytesAllocated * 2
	if gc.threshold < defaultThreshold {
		gc.threshold = defaultThreshold
	}
	if gc.Tracer != nil {
		gc.Tracer.OnGCEnd(freed, gc.bytesAllocated, gc.threshold)
	}
}

// CollectIfNeeded runs Collect when ShouldCollect reports the threshold
// has been reached; call sites are the VM's allocation wrapper.
func (gc *GC) CollectIfNeeded(roots Roots) {
	if gc.ShouldCollect() {
		gc.Collect(roots)
	}
}
