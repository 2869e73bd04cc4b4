package reader_test

import (
	"testing"

	"schemeimpl.dev/scheme/internal/reader"
	"schemeimpl.dev/scheme/pkg/ast"
)

func mustRead(t *testing.T, source string) ast.Expr {
	t.Helper()
	exprs, err := reader.New().ReadProgram(source)
	if err != nil {
		t.Fatalf("ReadProgram(%q): unexpected error: %s", source, err)
	}
	if len(exprs) != 1 {
		t.Fatalf("ReadProgram(%q): got %d top-level forms, want 1", source, len(exprs))
	}
	return exprs[0]
}

func TestReadLiterals(t *testing.T) {
	if n, ok := mustRead(t, "42").(ast.Number); !ok || n.Value != 42 {
		t.Fatalf("read of \"42\" = %#v, want ast.Number{42}", mustRead(t, "42"))
	}
	if n, ok := mustRead(t, "-7").(ast.Number); !ok || n.Value != -7 {
		t.Fatalf("read of \"-7\" = %#v, want ast.Number{-7}", mustRead(t, "-7"))
	}
	if b, ok := mustRead(t, "#t").(ast.Boolean); !ok || !b.Value {
		t.Fatalf("read of \"#t\" = %#v, want ast.Boolean{true}", mustRead(t, "#t"))
	}
	if b, ok := mustRead(t, "#f").(ast.Boolean); !ok || b.Value {
		t.Fatalf("read of \"#f\" = %#v, want ast.Boolean{false}", mustRead(t, "#f"))
	}
	if v, ok := mustRead(t, "x").(ast.Var); !ok || v.Name != "x" {
		t.Fatalf("read of \"x\" = %#v, want ast.Var{\"x\"}", mustRead(t, "x"))
	}
}

func TestReadQuote(t *testing.T) {
	test := func(source string) ast.Quote {
		q, ok := mustRead(t, source).(ast.Quote)
		if !ok {
			t.Fatalf("read of %q is not a Quote", source)
		}
		return q
	}

	t.Run("Quoted symbol via reader shorthand", func(t *testing.T) {
		q := test("'foo")
		sym, ok := q.Value.(ast.SymbolDatum)
		if !ok || sym.Name != "foo" {
			t.Fatalf("quoted value = %#v, want SymbolDatum{\"foo\"}", q.Value)
		}
	})

	t.Run("Quote special form and shorthand agree", func(t *testing.T) {
		a := test("'(1 2)")
		b := test("(quote (1 2))")
		if a != b {
			// Datum variants are plain structs so direct comparison works
			// for this depth; a mismatch means the two spellings diverged.
			t.Fatalf("'(1 2) and (quote (1 2)) produced different ASTs: %#v vs %#v", a, b)
		}
	})

	t.Run("Nil and Pair structure", func(t *testing.T) {
		q := test("'(1 2 3)")
		pair, ok := q.Value.(ast.PairDatum)
		if !ok {
			t.Fatalf("quoted list is not a PairDatum: %#v", q.Value)
		}
		n, ok := pair.Car.(ast.NumberDatum)
		if !ok || n.Value != 1 {
			t.Fatalf("first element = %#v, want NumberDatum{1}", pair.Car)
		}
	})

	t.Run("Dotted pair", func(t *testing.T) {
		q := test("'(1 . 2)")
		pair, ok := q.Value.(ast.PairDatum)
		if !ok {
			t.Fatalf("quoted dotted pair is not a PairDatum: %#v", q.Value)
		}
		car, _ := pair.Car.(ast.NumberDatum)
		cdr, _ := pair.Cdr.(ast.NumberDatum)
		if car.Value != 1 || cdr.Value != 2 {
			t.Fatalf("dotted pair = (%v . %v), want (1 . 2)", pair.Car, pair.Cdr)
		}
	})
}

func TestReadDefine(t *testing.T) {
	t.Run("Simple value define", func(t *testing.T) {
		d, ok := mustRead(t, "(define x 5)").(ast.Define)
		if !ok || d.Name != "x" {
			t.Fatalf("read of define = %#v", mustRead(t, "(define x 5)"))
		}
	})

	t.Run("Procedure-shorthand define desugars to a Lambda body", func(t *testing.T) {
		d, ok := mustRead(t, "(define (f x y) (+ x y))").(ast.Define)
		if !ok || d.Name != "f" {
			t.Fatalf("read of procedure define = %#v", d)
		}
		lam, ok := d.Body.(ast.Lambda)
		if !ok {
			t.Fatalf("define body is not a Lambda: %#v", d.Body)
		}
		if len(lam.Params) != 2 || lam.Params[0] != "x" || lam.Params[1] != "y" {
			t.Fatalf("lambda params = %v, want [x y]", lam.Params)
		}
	})
}

func TestReadSetBang(t *testing.T) {
	s, ok := mustRead(t, "(set! x 2)").(ast.SetBang)
	if !ok || s.Name != "x" {
		t.Fatalf("read of set! = %#v", mustRead(t, "(set! x 2)"))
	}
}

func TestReadIf(t *testing.T) {
	i, ok := mustRead(t, "(if #t 1 2)").(ast.If)
	if !ok {
		t.Fatalf("read of if = %#v", mustRead(t, "(if #t 1 2)"))
	}
	if _, ok := i.Cond.(ast.Boolean); !ok {
		t.Fatalf("if condition = %#v, want ast.Boolean", i.Cond)
	}
}

func TestReadLetAndLetRec(t *testing.T) {
	l, ok := mustRead(t, "(let ((x 1) (y 2)) (+ x y))").(ast.Let)
	if !ok || len(l.Bindings) != 2 {
		t.Fatalf("read of let = %#v", mustRead(t, "(let ((x 1) (y 2)) (+ x y))"))
	}
	if l.Bindings[0].Name != "x" || l.Bindings[1].Name != "y" {
		t.Fatalf("let binding names = %v", l.Bindings)
	}

	lr, ok := mustRead(t, "(letrec ((f (lambda (n) n))) (f 1))").(ast.LetRec)
	if !ok || len(lr.Bindings) != 1 || lr.Bindings[0].Name != "f" {
		t.Fatalf("read of letrec = %#v", mustRead(t, "(letrec ((f (lambda (n) n))) (f 1))"))
	}
}

func TestReadLambdaAndApply(t *testing.T) {
	lam, ok := mustRead(t, "(lambda (x) x)").(ast.Lambda)
	if !ok || len(lam.Params) != 1 || lam.Params[0] != "x" {
		t.Fatalf("read of lambda = %#v", mustRead(t, "(lambda (x) x)"))
	}

	app, ok := mustRead(t, "(f 1 2 3)").(ast.Apply)
	if !ok || len(app.Operands) != 3 {
		t.Fatalf("read of apply = %#v", mustRead(t, "(f 1 2 3)"))
	}
}

func TestReadMultiBodyLambdaDesugarsToBegin(t *testing.T) {
	lam, ok := mustRead(t, "(lambda (x) (set! x 1) x)").(ast.Lambda)
	if !ok {
		t.Fatal("expected a Lambda")
	}
	if _, ok := lam.Body.(ast.Begin); !ok {
		t.Fatalf("multi-expression lambda body should desugar to Begin, got %#v", lam.Body)
	}
}

func TestReadProgramMultipleForms(t *testing.T) {
	exprs, err := reader.New().ReadProgram("(define x 1) (define y 2) (+ x y)")
	if err != nil {
		t.Fatalf("ReadProgram: unexpected error: %s", err)
	}
	if len(exprs) != 3 {
		t.Fatalf("ReadProgram returned %d forms, want 3", len(exprs))
	}
}

func TestReadErrors(t *testing.T) {
	test := func(source string) {
		if _, err := reader.New().ReadProgram(source); err == nil {
			t.Fatalf("ReadProgram(%q): expected an error", source)
		}
	}
	test("(")
	test(")")
	test("()")
	test("(if #t 1)")
}
