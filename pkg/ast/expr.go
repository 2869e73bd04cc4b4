package ast

// ----------------------------------------------------------------------------
// General information

// This section declares the Expr variants every backend (tree evaluator,
// bytecode compiler, native code generator) walks. The reader (internal/reader)
// is the only producer of these nodes; nothing downstream mutates them, so a
// single Expr tree can be fed to more than one backend (this is how `--engine
// tree|vm` in cmd/scheme shares one parse across engines).
//
// Every Lambda node gets a unique Id at construction time; the native code
// generator (pkg/codegen) names each lambda's Function after it
// (lambda_<Id>).

// Just used to put together every expression shape in the same datatype.
type Expr interface{ isExpr() }

// ----------------------------------------------------------------------------
// Leaves

type Number struct{ Value int64 }

type Boolean struct{ Value bool }

// Var is a reference to a previously bound identifier — a parameter, a
// let/letrec binding, or a top-level Define.
type Var struct{ Name string }

// Quote freezes a Datum: it evaluates to the datum itself, unexamined.
type Quote struct{ Value Datum }

// ----------------------------------------------------------------------------
// Binding forms

type Define struct {
	Name string
	Body Expr
}

type SetBang struct {
	Name string
	Body Expr
}

type Begin struct{ Exprs []Expr }

type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Binding is one name/init pair in a Let or LetRec form.
type Binding struct {
	Name string
	Init Expr
}

// Let evaluates every Init against the enclosing environment (none of the
// Bindings are in scope for each other's Init), then evaluates Body with all
// of them bound simultaneously.
type Let struct {
	Bindings []Binding
	Body     Expr
}

// LetRec binds every name to an as-yet-undefined placeholder first, so each
// Init (and Body) can reference any of the other bound names — required for
// mutually/self-recursive local procedures.
type LetRec struct {
	Bindings []Binding
	Body     Expr
}

// Lambda introduces a procedure of the given Params, evaluating Body in a
// frame extending the lambda's defining environment. Id distinguishes this
// particular lambda occurrence in native function names.
type Lambda struct {
	Id     int
	Params []string
	Body   Expr
}

// Apply calls Operator with Operands, left to right.
type Apply struct {
	Operator Expr
	Operands []Expr
}

func (Number) isExpr()  {}
func (Boolean) isExpr() {}
func (Var) isExpr()     {}
func (Quote) isExpr()   {}
func (Define) isExpr()  {}
func (SetBang) isExpr() {}
func (Begin) isExpr()   {}
func (If) isExpr()      {}
func (Let) isExpr()     {}
func (LetRec) isExpr()  {}
func (Lambda) isExpr()  {}
func (Apply) isExpr()   {}
