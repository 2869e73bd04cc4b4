package runtime

import "schemeimpl.dev/scheme/pkg/scmerr"

// Heap holds every non-immediate Value's backing storage: one arena per
// heap-allocated tag, each a plain Go slice, with a Value's upper bits
// simply an index into the matching arena (withTag/heapIndex in tagged.go).
// An arena of handles stands in for raw tagged pointers — the same
// representation pkg/bytecode uses for instruction nodes, applied one layer
// down to runtime data instead of code. Nothing is ever freed; heap objects
// live for the process lifetime.
type Heap struct {
	pairs     []pairObj
	vectors   [][]Value
	closures  []ClosureObj
	boxes     []Value
	symNames  []string
	symLookup map[string]int
}

type pairObj struct{ car, cdr Value }

// ClosureObj is the heap object a Closure-tagged Value points to: either a
// user-defined procedure (Entry indexes into the caller-supplied bytecode
// graph, Native is nil) or a built-in (Native is set, Entry is unused).
// Representing built-ins as closures keeps them first-class — they flow
// through the same global slots and the same call instruction as any
// user-defined procedure.
//
// Entry is a plain int, not pkg/bytecode.Handle, so this package has no
// dependency on pkg/bytecode; pkg/vm (which depends on both) does the one
// necessary conversion.
type ClosureObj struct {
	Arity    int
	Entry    int
	Captured []Value
	Native   NativeFn
}

// NativeFn is a built-in procedure's implementation.
type NativeFn func(h *Heap, args []Value) (Value, error)

func NewHeap() *Heap {
	return &Heap{symLookup: map[string]int{}}
}

func (h *Heap) NewPair(car, cdr Value) Value {
	h.pairs = append(h.pairs, pairObj{car: car, cdr: cdr})
	return withTag(len(h.pairs)-1, TagPair)
}

func (h *Heap) Pair(v Value) (car, cdr Value, err error) {
	if !IsPair(v) {
		return 0, 0, scmerr.New(scmerr.TypeError, "expected a pair")
	}
	p := h.pairs[heapIndex(v)]
	return p.car, p.cdr, nil
}

func (h *Heap) SetCar(v Value, car Value) error {
	if !IsPair(v) {
		return scmerr.New(scmerr.TypeError, "expected a pair")
	}
	h.pairs[heapIndex(v)].car = car
	return nil
}

func (h *Heap) SetCdr(v Value, cdr Value) error {
	if !IsPair(v) {
		return scmerr.New(scmerr.TypeError, "expected a pair")
	}
	h.pairs[heapIndex(v)].cdr = cdr
	return nil
}

func (h *Heap) NewVector(elems []Value) Value {
	h.vectors = append(h.vectors, elems)
	return withTag(len(h.vectors)-1, TagVector)
}

func (h *Heap) Vector(v Value) ([]Value, error) {
	if !IsVector(v) {
		return nil, scmerr.New(scmerr.TypeError, "expected a vector")
	}
	return h.vectors[heapIndex(v)], nil
}

func (h *Heap) NewBox(v Value) Value {
	h.boxes = append(h.boxes, v)
	return withTag(len(h.boxes)-1, TagBox)
}

func (h *Heap) Unbox(v Value) (Value, error) {
	if !IsBox(v) {
		return 0, scmerr.New(scmerr.TypeError, "expected a box")
	}
	return h.boxes[heapIndex(v)], nil
}

func (h *Heap) SetBox(v Value, newVal Value) error {
	if !IsBox(v) {
		return scmerr.New(scmerr.TypeError, "expected a box")
	}
	h.boxes[heapIndex(v)] = newVal
	return nil
}

func (h *Heap) NewClosure(c ClosureObj) Value {
	h.closures = append(h.closures, c)
	return withTag(len(h.closures)-1, TagClosure)
}

func (h *Heap) Closure(v Value) (*ClosureObj, error) {
	if !IsClosure(v) {
		return nil, scmerr.New(scmerr.TypeError, "expected a closure")
	}
	return &h.closures[heapIndex(v)], nil
}

// Intern mirrors runtime.cpp's schemeInternSymbol pool: the same name
// always yields the same tagged Value, so eq? on symbols is a plain Value
// comparison.
func (h *Heap) Intern(name string) Value {
	if idx, ok := h.symLookup[name]; ok {
		return withTag(idx, TagSymbol)
	}
	idx := len(h.symNames)
	h.symNames = append(h.symNames, name)
	h.symLookup[name] = idx
	return withTag(idx, TagSymbol)
}

func (h *Heap) SymbolName(v Value) (string, error) {
	if !IsSymbol(v) {
		return "", scmerr.New(scmerr.TypeError, "expected a symbol")
	}
	return h.symNames[heapIndex(v)], nil
}
