// Package interp implements the tree-walking evaluator: the reference
// semantics every other backend must agree with. Plain recursive descent
// over the expression AST, one case per variant, with the lexical
// environment chain carrying live runtime values.
package interp

import (
	"schemeimpl.dev/scheme/pkg/ast"
	"schemeimpl.dev/scheme/pkg/scmerr"
	"schemeimpl.dev/scheme/pkg/value"
)

// Eval evaluates expr in env, returning either a runtime Value or the first
// error encountered. Define and SetBang are the forms that mutate env as a
// side effect instead of merely reading it.
func Eval(expr ast.Expr, e *value.Env) (value.Value, error) {
	switch t := expr.(type) {
	case ast.Number:
		return value.Number{Value: t.Value}, nil

	case ast.Boolean:
		return value.Boolean{Value: t.Value}, nil

	case ast.Var:
		v, err := e.Find(t.Name)
		if err != nil {
			return nil, err
		}
		if _, isUndef := v.(value.Undefined); isUndef {
			return nil, scmerr.New(scmerr.UnboundIdentifier, "referenced a letrec binding before it was initialized")
		}
		return v, nil

	case ast.Quote:
		return datumToValue(t.Value), nil

	case ast.Define:
		v, err := Eval(t.Body, e)
		if err != nil {
			return nil, err
		}
		e.Bind(t.Name, v)
		return value.VoidVal, nil

	case ast.SetBang:
		v, err := Eval(t.Body, e)
		if err != nil {
			return nil, err
		}
		if err := e.Set(t.Name, v); err != nil {
			return nil, err
		}
		return value.VoidVal, nil

	case ast.Begin:
		return evalBegin(t.Exprs, e)

	case ast.If:
		cond, err := Eval(t.Cond, e)
		if err != nil {
			return nil, err
		}
		if value.Truthy(cond) {
			return Eval(t.Then, e)
		}
		return Eval(t.Else, e)

	case ast.Let:
		return evalLet(t, e)

	case ast.LetRec:
		return evalLetRec(t, e)

	case ast.Lambda:
		return &value.Closure{Params: t.Params, Body: t.Body, Env: e}, nil

	case ast.Apply:
		return evalApply(t, e)

	default:
		return nil, scmerr.New(scmerr.InternalError, "unhandled expression type %T", expr)
	}
}

func evalBegin(exprs []ast.Expr, e *value.Env) (value.Value, error) {
	if len(exprs) == 0 {
		return value.VoidVal, nil
	}
	var result value.Value = value.VoidVal
	for _, sub := range exprs {
		v, err := Eval(sub, e)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func evalLet(t ast.Let, e *value.Env) (value.Value, error) {
	inits := make([]value.Value, len(t.Bindings))
	for i, b := range t.Bindings {
		v, err := Eval(b.Init, e)
		if err != nil {
			return nil, err
		}
		inits[i] = v
	}

	inner := e.Extend()
	for i, b := range t.Bindings {
		inner.Bind(b.Name, inits[i])
	}
	return Eval(t.Body, inner)
}

func evalLetRec(t ast.LetRec, e *value.Env) (value.Value, error) {
	inner := e.Extend()
	for _, b := range t.Bindings {
		inner.Bind(b.Name, value.UndefinedVal)
	}
	for _, b := range t.Bindings {
		v, err := Eval(b.Init, inner)
		if err != nil {
			return nil, err
		}
		inner.Bind(b.Name, v)
	}
	return Eval(t.Body, inner)
}

// evalApply evaluates operands left to right, then the operator: in
// ((f) (g) (h)) the observed order is g, h, f. The bytecode compiler's
// Apply rule produces the same order at runtime (operands are pushed
// before the operator's Call), so the two backends are indistinguishable
// to an effectful program.
func evalApply(t ast.Apply, e *value.Env) (value.Value, error) {
	args := make([]value.Value, len(t.Operands))
	for i, operand := range t.Operands {
		v, err := Eval(operand, e)
		if err != nil {
			return nil, err
		}
		if _, isUndef := v.(value.Undefined); isUndef {
			return nil, scmerr.New(scmerr.UnboundIdentifier, "referenced a letrec binding before it was initialized")
		}
		args[i] = v
	}

	operator, err := Eval(t.Operator, e)
	if err != nil {
		return nil, err
	}
	if _, isUndef := operator.(value.Undefined); isUndef {
		return nil, scmerr.New(scmerr.UnboundIdentifier, "referenced a letrec binding before it was initialized")
	}

	return Apply(operator, args)
}

// Apply calls operator (a Closure or a Procedure) with args, checking
// arity in both cases.
func Apply(operator value.Value, args []value.Value) (value.Value, error) {
	switch op := operator.(type) {
	case *value.Closure:
		if len(args) != len(op.Params) {
			return nil, scmerr.New(scmerr.ArityError, "expected %d argument(s), got %d", len(op.Params), len(args))
		}
		frame := op.Env.Extend()
		for i, param := range op.Params {
			frame.Bind(param, args[i])
		}
		return Eval(op.Body, frame)

	case *value.Procedure:
		if len(args) != op.Arity {
			return nil, scmerr.New(scmerr.ArityError, "%s: expected %d argument(s), got %d", op.Name, op.Arity, len(args))
		}
		return op.Fn(args)

	default:
		return nil, scmerr.New(scmerr.TypeError, "cannot apply non-procedure value %T", operator)
	}
}

// datumToValue converts a quoted Datum (pkg/ast) into the runtime Value it
// evaluates to: plain structural data, symbols interned the same way the
// runtime library interns them (pkg/value.Intern mirrors
// runtime.cpp's schemeInternSymbol).
func datumToValue(d ast.Datum) value.Value {
	switch t := d.(type) {
	case ast.NumberDatum:
		return value.Number{Value: t.Value}
	case ast.BooleanDatum:
		return value.Boolean{Value: t.Value}
	case ast.SymbolDatum:
		return value.Intern(t.Name)
	case ast.NilDatum:
		return value.NilVal
	case ast.PairDatum:
		return &value.Cons{Car: datumToValue(t.Car), Cdr: datumToValue(t.Cdr)}
	default:
		return value.VoidVal
	}
}
