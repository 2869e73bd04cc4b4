// Package passes implements the two front-end analyses the backends need
// before they can emit closures: which names get reassigned
// (CollectAssign) and which names a given lambda references without
// binding itself (FreeVars). Both are plain type-switch walkers over the
// expression AST.
package passes

import "schemeimpl.dev/scheme/pkg/ast"

// CollectAssign returns the set of identifier names targeted by a SetBang
// anywhere within expr, including inside nested Lambda bodies. Both
// backends box exactly these names. The rule is "assigned anywhere in its
// scope" — a superset of "assigned or captured-by-assignment", so it is
// always correct, if occasionally boxing a variable that strictly didn't
// need it.
func CollectAssign(expr ast.Expr) map[string]bool {
	assigned := map[string]bool{}
	walkAssign(expr, assigned)
	return assigned
}

func walkAssign(expr ast.Expr, out map[string]bool) {
	switch t := expr.(type) {
	case ast.SetBang:
		out[t.Name] = true
		walkAssign(t.Body, out)
	case ast.Define:
		walkAssign(t.Body, out)
	case ast.Begin:
		for _, e := range t.Exprs {
			walkAssign(e, out)
		}
	case ast.If:
		walkAssign(t.Cond, out)
		walkAssign(t.Then, out)
		walkAssign(t.Else, out)
	case ast.Let:
		for _, b := range t.Bindings {
			walkAssign(b.Init, out)
		}
		walkAssign(t.Body, out)
	case ast.LetRec:
		for _, b := range t.Bindings {
			walkAssign(b.Init, out)
		}
		walkAssign(t.Body, out)
	case ast.Lambda:
		walkAssign(t.Body, out)
	case ast.Apply:
		walkAssign(t.Operator, out)
		for _, o := range t.Operands {
			walkAssign(o, out)
		}
	default:
		// Number, Boolean, Var, Quote: no sub-expressions, nothing assigned.
	}
}

// FreeVars returns, in first-reference order, the names Body references
// that are neither in params nor introduced by a binding form nested inside
// Body itself, and that isGlobal reports false for (top-level defines and
// built-ins are reached through the process-wide frame directly rather
// than captured). This is the analysis pkg/codegen uses to decide a native
// closure's environment struct; the bytecode compiler captures whole
// frames instead and only needs CollectAssign.
func FreeVars(body ast.Expr, params []string, isGlobal func(string) bool) []string {
	bound := map[string]bool{}
	for _, p := range params {
		bound[p] = true
	}
	var order []string
	seen := map[string]bool{}
	walkFree(body, bound, isGlobal, &order, seen)
	return order
}

func walkFree(expr ast.Expr, bound map[string]bool, isGlobal func(string) bool, order *[]string, seen map[string]bool) {
	switch t := expr.(type) {
	case ast.Var:
		if bound[t.Name] || isGlobal(t.Name) || seen[t.Name] {
			return
		}
		seen[t.Name] = true
		*order = append(*order, t.Name)

	case ast.SetBang:
		if !bound[t.Name] && !isGlobal(t.Name) && !seen[t.Name] {
			seen[t.Name] = true
			*order = append(*order, t.Name)
		}
		walkFree(t.Body, bound, isGlobal, order, seen)

	case ast.Define:
		walkFree(t.Body, bound, isGlobal, order, seen)

	case ast.Quote, ast.Number, ast.Boolean:
		// no sub-expressions

	case ast.Begin:
		for _, e := range t.Exprs {
			walkFree(e, bound, isGlobal, order, seen)
		}

	case ast.If:
		walkFree(t.Cond, bound, isGlobal, order, seen)
		walkFree(t.Then, bound, isGlobal, order, seen)
		walkFree(t.Else, bound, isGlobal, order, seen)

	case ast.Let:
		for _, b := range t.Bindings {
			walkFree(b.Init, bound, isGlobal, order, seen)
		}
		inner := extend(bound, bindingNames(t.Bindings))
		walkFree(t.Body, inner, isGlobal, order, seen)

	case ast.LetRec:
		inner := extend(bound, bindingNames(t.Bindings))
		for _, b := range t.Bindings {
			walkFree(b.Init, inner, isGlobal, order, seen)
		}
		walkFree(t.Body, inner, isGlobal, order, seen)

	case ast.Lambda:
		inner := extend(bound, t.Params)
		walkFree(t.Body, inner, isGlobal, order, seen)

	case ast.Apply:
		walkFree(t.Operator, bound, isGlobal, order, seen)
		for _, o := range t.Operands {
			walkFree(o, bound, isGlobal, order, seen)
		}
	}
}

func bindingNames(bindings []ast.Binding) []string {
	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.Name
	}
	return names
}

func extend(bound map[string]bool, names []string) map[string]bool {
	out := make(map[string]bool, len(bound)+len(names))
	for k := range bound {
		out[k] = true
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}
