package runtime_test

import (
	"testing"

	"schemeimpl.dev/scheme/pkg/runtime"
)

// TestDisplay exercises the printer over every variant directly at the
// heap layer (whole-program printing is covered by pkg/compiler+pkg/vm and
// pkg/interp instead).
func TestDisplay(t *testing.T) {
	h := runtime.NewHeap()

	test := func(v runtime.Value, expected string) {
		if got := h.Display(v); got != expected {
			t.Fatalf("Display(%#x) = %q, want %q", v, got, expected)
		}
	}

	t.Run("Fixnum", func(t *testing.T) { test(runtime.EncodeFixnum(7), "7") })
	t.Run("Booleans", func(t *testing.T) {
		test(runtime.True, "#t")
		test(runtime.False, "#f")
	})
	t.Run("Nil", func(t *testing.T) { test(runtime.Nil, "()") })
	t.Run("Void", func(t *testing.T) { test(runtime.Void, "#void") })

	t.Run("Proper list", func(t *testing.T) {
		list := h.NewPair(runtime.EncodeFixnum(1),
			h.NewPair(runtime.EncodeFixnum(2), h.NewPair(runtime.EncodeFixnum(3), runtime.Nil)))
		test(list, "(1 2 3)")
	})

	t.Run("cons chain", func(t *testing.T) {
		v := h.NewPair(runtime.EncodeFixnum(1), h.NewPair(runtime.EncodeFixnum(2), runtime.Nil))
		test(v, "(1 2)")
	})

	t.Run("Dotted pair", func(t *testing.T) {
		v := h.NewPair(runtime.EncodeFixnum(1), runtime.EncodeFixnum(2))
		test(v, "(1 . 2)")
	})

	t.Run("Box", func(t *testing.T) {
		b := h.NewBox(runtime.EncodeFixnum(42))
		test(b, "#&42")
	})

	t.Run("Vector", func(t *testing.T) {
		v := h.NewVector([]runtime.Value{runtime.EncodeFixnum(1), runtime.EncodeFixnum(2)})
		test(v, "#(1 2)")
	})

	t.Run("Symbol printed bare at the top level", func(t *testing.T) {
		test(h.Intern("sym"), "sym")
	})

	t.Run("Closure", func(t *testing.T) {
		c := h.NewClosure(runtime.ClosureObj{Arity: 1})
		test(c, "#<procedure>")
	})
}
