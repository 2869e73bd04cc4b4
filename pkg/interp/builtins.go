package interp

import (
	"fmt"
	"os"

	"schemeimpl.dev/scheme/pkg/env"
	"schemeimpl.dev/scheme/pkg/scmerr"
	"schemeimpl.dev/scheme/pkg/value"
)

// NewTopLevel builds the process-wide top frame, with every built-in name
// bound to a *value.Procedure. Each engine (tree, vm, native) builds its
// own top-level frame in its own value representation from the same name
// list — this is the tree evaluator's.
func NewTopLevel() *value.Env {
	top := env.New[value.Value]()
	for name, proc := range builtinTable() {
		top.Bind(name, proc)
	}
	return top
}

func builtinTable() map[string]*value.Procedure {
	return map[string]*value.Procedure{
		"+": proc2("+", arith(func(a, b int64) int64 { return a + b })),
		"-": proc2("-", arith(func(a, b int64) int64 { return a - b })),
		"*": proc2("*", arith(func(a, b int64) int64 { return a * b })),
		"/": proc2("/", arithChecked(func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, scmerr.New(scmerr.InternalError, "division by zero")
			}
			return a / b, nil
		})),
		"%": proc2("%", arithChecked(func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, scmerr.New(scmerr.InternalError, "modulo by zero")
			}
			return a % b, nil
		})),
		"<":  proc2("<", compare(func(a, b int64) bool { return a < b })),
		"<=": proc2("<=", compare(func(a, b int64) bool { return a <= b })),
		"=":  proc2("=", compare(func(a, b int64) bool { return a == b })),
		">":  proc2(">", compare(func(a, b int64) bool { return a > b })),
		">=": proc2(">=", compare(func(a, b int64) bool { return a >= b })),
		"!=": proc2("!=", compare(func(a, b int64) bool { return a != b })),

		"cons": proc2("cons", func(a, b value.Value) (value.Value, error) {
			return &value.Cons{Car: a, Cdr: b}, nil
		}),
		"car": proc1("car", func(a value.Value) (value.Value, error) {
			pair, ok := a.(*value.Cons)
			if !ok {
				return nil, scmerr.New(scmerr.TypeError, "car: expected a pair, got %T", a)
			}
			return pair.Car, nil
		}),
		"cdr": proc1("cdr", func(a value.Value) (value.Value, error) {
			pair, ok := a.(*value.Cons)
			if !ok {
				return nil, scmerr.New(scmerr.TypeError, "cdr: expected a pair, got %T", a)
			}
			return pair.Cdr, nil
		}),

		"box": proc1("box", func(a value.Value) (value.Value, error) {
			slot := a
			return &value.Box{Slot: &slot}, nil
		}),
		"unbox": proc1("unbox", func(a value.Value) (value.Value, error) {
			box, ok := a.(*value.Box)
			if !ok {
				return nil, scmerr.New(scmerr.TypeError, "unbox: expected a box, got %T", a)
			}
			return *box.Slot, nil
		}),
		"set-box!": proc2("set-box!", func(a, b value.Value) (value.Value, error) {
			box, ok := a.(*value.Box)
			if !ok {
				return nil, scmerr.New(scmerr.TypeError, "set-box!: expected a box, got %T", a)
			}
			*box.Slot = b
			return value.VoidVal, nil
		}),
		"box?": proc1("box?", func(a value.Value) (value.Value, error) {
			_, ok := a.(*value.Box)
			return value.Boolean{Value: ok}, nil
		}),

		"make-vector": proc2("make-vector", func(a, b value.Value) (value.Value, error) {
			n, ok := a.(value.Number)
			if !ok {
				return nil, scmerr.New(scmerr.TypeError, "make-vector: expected a size, got %T", a)
			}
			elems := make([]value.Value, n.Value)
			for i := range elems {
				elems[i] = b
			}
			return &value.Vector{Elems: elems}, nil
		}),
		"vector-ref": proc2("vector-ref", func(a, b value.Value) (value.Value, error) {
			vec, idx, err := asVectorIndex(a, b)
			if err != nil {
				return nil, err
			}
			return vec.Elems[idx], nil
		}),
		"vector-set!": proc3("vector-set!", func(a, b, c value.Value) (value.Value, error) {
			vec, idx, err := asVectorIndex(a, b)
			if err != nil {
				return nil, err
			}
			vec.Elems[idx] = c
			return value.VoidVal, nil
		}),
		"vector-length": proc1("vector-length", func(a value.Value) (value.Value, error) {
			vec, ok := a.(*value.Vector)
			if !ok {
				return nil, scmerr.New(scmerr.TypeError, "vector-length: expected a vector, got %T", a)
			}
			return value.Number{Value: int64(len(vec.Elems))}, nil
		}),
		"vector?": proc1("vector?", func(a value.Value) (value.Value, error) {
			_, ok := a.(*value.Vector)
			return value.Boolean{Value: ok}, nil
		}),

		"null?":    proc1("null?", predicate(func(a value.Value) bool { _, ok := a.(value.Nil); return ok })),
		"pair?":    proc1("pair?", predicate(func(a value.Value) bool { _, ok := a.(*value.Cons); return ok })),
		"symbol?":  proc1("symbol?", predicate(func(a value.Value) bool { _, ok := a.(*value.Symbol); return ok })),
		"number?":  proc1("number?", predicate(func(a value.Value) bool { _, ok := a.(value.Number); return ok })),
		"boolean?": proc1("boolean?", predicate(func(a value.Value) bool { _, ok := a.(value.Boolean); return ok })),
		"void?":    proc1("void?", predicate(func(a value.Value) bool { _, ok := a.(value.Void); return ok })),

		"eq?": proc2("eq?", func(a, b value.Value) (value.Value, error) {
			return value.Boolean{Value: eq(a, b)}, nil
		}),

		"display": proc1("display", func(a value.Value) (value.Value, error) {
			fmt.Fprint(os.Stdout, value.Display(a))
			return value.VoidVal, nil
		}),
	}
}

func asVectorIndex(a, b value.Value) (*value.Vector, int64, error) {
	vec, ok := a.(*value.Vector)
	if !ok {
		return nil, 0, scmerr.New(scmerr.TypeError, "expected a vector, got %T", a)
	}
	idx, ok := b.(value.Number)
	if !ok {
		return nil, 0, scmerr.New(scmerr.TypeError, "expected an index, got %T", b)
	}
	if idx.Value < 0 || idx.Value >= int64(len(vec.Elems)) {
		return nil, 0, scmerr.New(scmerr.InternalError, "vector index %d out of bounds (length %d)", idx.Value, len(vec.Elems))
	}
	return vec, idx.Value, nil
}

func eq(a, b value.Value) bool {
	switch ta := a.(type) {
	case value.Number:
		tb, ok := b.(value.Number)
		return ok && ta.Value == tb.Value
	case value.Boolean:
		tb, ok := b.(value.Boolean)
		return ok && ta.Value == tb.Value
	case value.Nil:
		_, ok := b.(value.Nil)
		return ok
	case value.Void:
		_, ok := b.(value.Void)
		return ok
	default:
		return a == b // pointer identity for *Symbol, *Cons, *Closure, *Procedure, *Box, *Vector
	}
}

func arith(f func(a, b int64) int64) func(a, b value.Value) (value.Value, error) {
	return func(a, b value.Value) (value.Value, error) {
		na, ok := a.(value.Number)
		if !ok {
			return nil, scmerr.New(scmerr.TypeError, "expected a number, got %T", a)
		}
		nb, ok := b.(value.Number)
		if !ok {
			return nil, scmerr.New(scmerr.TypeError, "expected a number, got %T", b)
		}
		return value.Number{Value: f(na.Value, nb.Value)}, nil
	}
}

// arithChecked is arith for operations with their own failure mode —
// division and modulo, whose zero divisor must surface as an error rather
// than a Go runtime panic.
func arithChecked(f func(a, b int64) (int64, error)) func(a, b value.Value) (value.Value, error) {
	return func(a, b value.Value) (value.Value, error) {
		na, ok := a.(value.Number)
		if !ok {
			return nil, scmerr.New(scmerr.TypeError, "expected a number, got %T", a)
		}
		nb, ok := b.(value.Number)
		if !ok {
			return nil, scmerr.New(scmerr.TypeError, "expected a number, got %T", b)
		}
		result, err := f(na.Value, nb.Value)
		if err != nil {
			return nil, err
		}
		return value.Number{Value: result}, nil
	}
}

func compare(f func(a, b int64) bool) func(a, b value.Value) (value.Value, error) {
	return func(a, b value.Value) (value.Value, error) {
		na, ok := a.(value.Number)
		if !ok {
			return nil, scmerr.New(scmerr.TypeError, "expected a number, got %T", a)
		}
		nb, ok := b.(value.Number)
		if !ok {
			return nil, scmerr.New(scmerr.TypeError, "expected a number, got %T", b)
		}
		return value.Boolean{Value: f(na.Value, nb.Value)}, nil
	}
}

func predicate(f func(a value.Value) bool) func(a value.Value) (value.Value, error) {
	return func(a value.Value) (value.Value, error) {
		return value.Boolean{Value: f(a)}, nil
	}
}

func proc1(name string, fn func(a value.Value) (value.Value, error)) *value.Procedure {
	return &value.Procedure{Name: name, Arity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return fn(args[0])
	}}
}

func proc2(name string, fn func(a, b value.Value) (value.Value, error)) *value.Procedure {
	return &value.Procedure{Name: name, Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
		return fn(args[0], args[1])
	}}
}

func proc3(name string, fn func(a, b, c value.Value) (value.Value, error)) *value.Procedure {
	return &value.Procedure{Name: name, Arity: 3, Fn: func(args []value.Value) (value.Value, error) {
		return fn(args[0], args[1], args[2])
	}}
}
