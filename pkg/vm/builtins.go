package vm

import (
	"fmt"
	"os"

	"schemeimpl.dev/scheme/pkg/compiler"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/scmerr"
)

// InstallBuiltins binds every name pkg/interp/builtins.go binds for the tree
// evaluator, this time as tagged-value native closures backed by
// pkg/runtime.Library — the bytecode VM's counterpart table. c must be the
// same Compiler used to compile the program about to run, since the global
// slot each name is bound to (c.BindBuiltin) is what the compiler's Var
// lookups resolve to.
//
// Arithmetic/comparison operator names are bound here too, even though
// pkg/compiler fast-paths a direct two-argument call through Prim: a
// binding must still exist for the case where one of these names is
// referenced as a value rather than called directly (e.g. passed to a
// higher-order procedure), or shadowed and then restored.
func InstallBuiltins(c *compiler.Compiler, heap *runtime.Heap) []runtime.Value {
	table := builtinTable(heap)

	maxSlot := -1
	slots := map[string]int{}
	for name := range table {
		offset := c.BindBuiltin(name)
		idx := globalIndex(offset)
		slots[name] = idx
		if idx > maxSlot {
			maxSlot = idx
		}
	}

	globals := make([]runtime.Value, maxSlot+1)
	for name, fn := range table {
		arity, native := fn.arity, fn.fn
		globals[slots[name]] = heap.NewClosure(runtime.ClosureObj{Arity: arity, Native: native})
	}
	return globals
}

type builtin struct {
	arity int
	fn    runtime.NativeFn
}

func builtinTable(heap *runtime.Heap) map[string]builtin {
	lib := runtime.NewLibrary(heap)

	return map[string]builtin{
		"+": arith2(func(a, b int64) int64 { return a + b }),
		"-": arith2(func(a, b int64) int64 { return a - b }),
		"*": arith2(func(a, b int64) int64 { return a * b }),
		"/": arith2Checked(func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, scmerr.New(scmerr.InternalError, "division by zero")
			}
			return a / b, nil
		}),
		"%": arith2Checked(func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, scmerr.New(scmerr.InternalError, "modulo by zero")
			}
			return a % b, nil
		}),
		"<":  compare2(func(a, b int64) bool { return a < b }),
		"<=": compare2(func(a, b int64) bool { return a <= b }),
		"=":  compare2(func(a, b int64) bool { return a == b }),
		">":  compare2(func(a, b int64) bool { return a > b }),
		">=": compare2(func(a, b int64) bool { return a >= b }),
		"!=": compare2(func(a, b int64) bool { return a != b }),

		"cons": {2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.Cons(args[0], args[1]), nil
		}},
		"car": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.Car(args[0])
		}},
		"cdr": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.Cdr(args[0])
		}},

		"box": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.Box(args[0]), nil
		}},
		"unbox": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.Unbox(args[0])
		}},
		"set-box!": {2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.SetBox(args[0], args[1])
		}},
		"box?": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.BoxPredicate(args[0]), nil
		}},

		"make-vector": {2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.MakeVector(args[0], args[1])
		}},
		"vector-ref": {2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.VectorRef(args[0], args[1])
		}},
		"vector-set!": {3, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.VectorSet(args[0], args[1], args[2])
		}},
		"vector-length": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.VectorLength(args[0])
		}},
		"vector?": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.VectorPred(args[0]), nil
		}},

		"null?":    {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) { return lib.NullPred(args[0]), nil }},
		"pair?":    {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) { return lib.PairPred(args[0]), nil }},
		"symbol?":  {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) { return lib.SymbolPred(args[0]), nil }},
		"number?":  {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) { return lib.NumberPred(args[0]), nil }},
		"boolean?": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) { return lib.BooleanPred(args[0]), nil }},
		"void?":    {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) { return lib.VoidPred(args[0]), nil }},

		"eq?": {2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			return lib.Eq(args[0], args[1]), nil
		}},

		"display": {1, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
			fmt.Fprint(os.Stdout, h.Display(args[0]))
			return runtime.Void, nil
		}},
	}
}

func arith2(f func(a, b int64) int64) builtin {
	return builtin{2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
		a, b := args[0], args[1]
		if !runtime.IsFixnum(a) || !runtime.IsFixnum(b) {
			return 0, scmerr.New(scmerr.TypeError, "expected two fixnums")
		}
		return runtime.EncodeFixnum(f(runtime.DecodeFixnum(a), runtime.DecodeFixnum(b))), nil
	}}
}

// arith2Checked is arith2 for operations with their own failure mode —
// division and modulo, whose zero divisor must surface as an error rather
// than a Go runtime panic.
func arith2Checked(f func(a, b int64) (int64, error)) builtin {
	return builtin{2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
		a, b := args[0], args[1]
		if !runtime.IsFixnum(a) || !runtime.IsFixnum(b) {
			return 0, scmerr.New(scmerr.TypeError, "expected two fixnums")
		}
		result, err := f(runtime.DecodeFixnum(a), runtime.DecodeFixnum(b))
		if err != nil {
			return 0, err
		}
		return runtime.EncodeFixnum(result), nil
	}}
}

func compare2(f func(a, b int64) bool) builtin {
	return builtin{2, func(h *runtime.Heap, args []runtime.Value) (runtime.Value, error) {
		a, b := args[0], args[1]
		if !runtime.IsFixnum(a) || !runtime.IsFixnum(b) {
			return 0, scmerr.New(scmerr.TypeError, "expected two fixnums")
		}
		return runtime.EncodeBoolean(f(runtime.DecodeFixnum(a), runtime.DecodeFixnum(b))), nil
	}}
}
