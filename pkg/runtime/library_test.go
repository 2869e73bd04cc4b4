package runtime_test

import (
	"testing"

	"schemeimpl.dev/scheme/pkg/runtime"
)

func TestLibraryConsCarCdr(t *testing.T) {
	h := runtime.NewHeap()
	lib := runtime.NewLibrary(h)

	p := lib.Cons(runtime.EncodeFixnum(1), runtime.EncodeFixnum(2))
	car, err := lib.Car(p)
	if err != nil || runtime.DecodeFixnum(car) != 1 {
		t.Fatalf("Car = (%v, %v), want (1, nil)", car, err)
	}
	cdr, err := lib.Cdr(p)
	if err != nil || runtime.DecodeFixnum(cdr) != 2 {
		t.Fatalf("Cdr = (%v, %v), want (2, nil)", cdr, err)
	}

	if _, err := lib.Car(runtime.EncodeFixnum(5)); err == nil {
		t.Fatal("Car on a non-pair should fail")
	}
}

func TestLibraryBox(t *testing.T) {
	h := runtime.NewHeap()
	lib := runtime.NewLibrary(h)

	b := lib.Box(runtime.EncodeFixnum(0))
	if !runtime.DecodeBoolean(lib.BoxPredicate(b)) {
		t.Fatal("box? on a freshly-boxed value should be true")
	}
	if runtime.DecodeBoolean(lib.BoxPredicate(runtime.EncodeFixnum(0))) {
		t.Fatal("box? on a non-box should be false")
	}

	if _, err := lib.SetBox(b, runtime.EncodeFixnum(42)); err != nil {
		t.Fatalf("SetBox: unexpected error: %s", err)
	}
	v, err := lib.Unbox(b)
	if err != nil || runtime.DecodeFixnum(v) != 42 {
		t.Fatalf("Unbox after SetBox = (%v, %v), want (42, nil)", v, err)
	}
}

func TestLibraryVector(t *testing.T) {
	h := runtime.NewHeap()
	lib := runtime.NewLibrary(h)

	v, err := lib.MakeVector(runtime.EncodeFixnum(3), runtime.EncodeFixnum(0))
	if err != nil {
		t.Fatalf("MakeVector: unexpected error: %s", err)
	}

	length, err := lib.VectorLength(v)
	if err != nil || runtime.DecodeFixnum(length) != 3 {
		t.Fatalf("VectorLength = (%v, %v), want (3, nil)", length, err)
	}

	if _, err := lib.VectorSet(v, runtime.EncodeFixnum(1), runtime.EncodeFixnum(99)); err != nil {
		t.Fatalf("VectorSet: unexpected error: %s", err)
	}
	got, err := lib.VectorRef(v, runtime.EncodeFixnum(1))
	if err != nil || runtime.DecodeFixnum(got) != 99 {
		t.Fatalf("VectorRef(1) = (%v, %v), want (99, nil)", got, err)
	}

	if _, err := lib.VectorRef(v, runtime.EncodeFixnum(5)); err == nil {
		t.Fatal("VectorRef out of bounds should fail")
	}
}

func TestLibraryPredicates(t *testing.T) {
	h := runtime.NewHeap()
	lib := runtime.NewLibrary(h)

	test := func(name string, got runtime.Value, want bool) {
		if runtime.DecodeBoolean(got) != want {
			t.Fatalf("%s = %v, want %v", name, runtime.DecodeBoolean(got), want)
		}
	}

	test("null? on Nil", lib.NullPred(runtime.Nil), true)
	test("null? on a fixnum", lib.NullPred(runtime.EncodeFixnum(0)), false)
	test("pair? on a cons", lib.PairPred(lib.Cons(runtime.EncodeFixnum(1), runtime.Nil)), true)
	test("symbol? on an interned symbol", lib.SymbolPred(h.Intern("x")), true)
	test("number? on a fixnum", lib.NumberPred(runtime.EncodeFixnum(1)), true)
	test("boolean? on #t", lib.BooleanPred(runtime.True), true)
	test("void? on Void", lib.VoidPred(runtime.Void), true)
}

func TestLibraryEq(t *testing.T) {
	h := runtime.NewHeap()
	lib := runtime.NewLibrary(h)

	// Symbol interning is observable through eq?.
	a, b := h.Intern("sym"), h.Intern("sym")
	if !runtime.DecodeBoolean(lib.Eq(a, b)) {
		t.Fatal("eq? on two interned occurrences of the same symbol should be true")
	}

	p1 := lib.Cons(runtime.EncodeFixnum(1), runtime.Nil)
	p2 := lib.Cons(runtime.EncodeFixnum(1), runtime.Nil)
	if runtime.DecodeBoolean(lib.Eq(p1, p2)) {
		t.Fatal("eq? on two distinct cons cells should be false")
	}

	if !runtime.DecodeBoolean(lib.Eq(runtime.EncodeFixnum(5), runtime.EncodeFixnum(5))) {
		t.Fatal("eq? on two equal fixnums should be true")
	}
}
