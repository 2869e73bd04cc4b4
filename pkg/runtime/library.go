package runtime

import "schemeimpl.dev/scheme/pkg/scmerr"

// Library is the runtime-library surface wired to a specific Heap
// instance: pairs, boxes, vectors, the predicates, eq?, all over tagged
// values. This is the tagged-value counterpart of those entries of
// pkg/interp/builtins.go — same arities, different storage (a flat Value word plus
// arena index vs. a live Go interface value). pkg/codegen's native output
// calls these same operations by name.
type Library struct{ Heap *Heap }

func NewLibrary(h *Heap) *Library { return &Library{Heap: h} }

func (l *Library) Cons(car, cdr Value) Value { return l.Heap.NewPair(car, cdr) }

func (l *Library) Car(v Value) (Value, error) {
	car, _, err := l.Heap.Pair(v)
	return car, err
}

func (l *Library) Cdr(v Value) (Value, error) {
	_, cdr, err := l.Heap.Pair(v)
	return cdr, err
}

func (l *Library) Box(v Value) Value { return l.Heap.NewBox(v) }

func (l *Library) Unbox(v Value) (Value, error) { return l.Heap.Unbox(v) }

func (l *Library) SetBox(v, newVal Value) (Value, error) {
	if err := l.Heap.SetBox(v, newVal); err != nil {
		return 0, err
	}
	return Void, nil
}

func (l *Library) BoxPredicate(v Value) Value { return EncodeBoolean(IsBox(v)) }

func (l *Library) MakeVector(size, fill Value) (Value, error) {
	if !IsFixnum(size) {
		return 0, scmerr.New(scmerr.TypeError, "make-vector: expected a fixnum size")
	}
	n := DecodeFixnum(size)
	elems := make([]Value, n)
	for i := range elems {
		elems[i] = fill
	}
	return l.Heap.NewVector(elems), nil
}

func (l *Library) VectorRef(v, idx Value) (Value, error) {
	elems, err := l.Heap.Vector(v)
	if err != nil {
		return 0, err
	}
	i, err := vectorIndex(elems, idx)
	if err != nil {
		return 0, err
	}
	return elems[i], nil
}

func (l *Library) VectorSet(v, idx, newVal Value) (Value, error) {
	elems, err := l.Heap.Vector(v)
	if err != nil {
		return 0, err
	}
	i, err := vectorIndex(elems, idx)
	if err != nil {
		return 0, err
	}
	elems[i] = newVal
	return Void, nil
}

func (l *Library) VectorLength(v Value) (Value, error) {
	elems, err := l.Heap.Vector(v)
	if err != nil {
		return 0, err
	}
	return EncodeFixnum(int64(len(elems))), nil
}

func vectorIndex(elems []Value, idx Value) (int64, error) {
	if !IsFixnum(idx) {
		return 0, scmerr.New(scmerr.TypeError, "expected a fixnum index")
	}
	i := DecodeFixnum(idx)
	if i < 0 || i >= int64(len(elems)) {
		return 0, scmerr.New(scmerr.InternalError, "vector index %d out of bounds (length %d)", i, len(elems))
	}
	return i, nil
}

func (l *Library) NullPred(v Value) Value    { return EncodeBoolean(IsNil(v)) }
func (l *Library) PairPred(v Value) Value    { return EncodeBoolean(IsPair(v)) }
func (l *Library) SymbolPred(v Value) Value  { return EncodeBoolean(IsSymbol(v)) }
func (l *Library) NumberPred(v Value) Value  { return EncodeBoolean(IsFixnum(v)) }
func (l *Library) BooleanPred(v Value) Value { return EncodeBoolean(IsBoolean(v)) }
func (l *Library) VoidPred(v Value) Value    { return EncodeBoolean(IsVoid(v)) }
func (l *Library) VectorPred(v Value) Value  { return EncodeBoolean(IsVector(v)) }

// Eq implements eq?: identity comparison for heap-allocated values (tag
// plus arena index, i.e. the raw tagged word), value comparison for
// fixnums and booleans — one uint64 compare covers both.
func (l *Library) Eq(a, b Value) Value { return EncodeBoolean(a == b) }
