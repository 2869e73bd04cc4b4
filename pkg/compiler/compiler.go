// Package compiler translates the expression AST into a bytecode graph in
// continuation-passing style: every compile call takes the instruction
// that should run after the compiled form leaves its result in the
// accumulator, and returns the form's entry instruction. Forms compose by
// threading continuations; the only fan-in is at an if's join.
//
// Mutable and recursive local bindings are assignment-converted: a letrec
// binding, a let binding that is the target of a set!, and an assigned
// lambda parameter each live in a heap box rather than directly in their
// stack slot, with reads and writes routed through the box/unbox/set-box!
// built-ins over the ordinary Frame/Call protocol. The stack slot then
// holds the box handle, a plain heap value that a Closure instruction's
// frame snapshot shares by reference — which is what makes recursion
// through letrec and set!-after-capture visible across closures.
package compiler

import (
	"schemeimpl.dev/scheme/pkg/ast"
	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/env"
	"schemeimpl.dev/scheme/pkg/passes"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/scmerr"
)

// slot is what a name resolves to at compile time: a stack-frame offset
// (non-negative, relative to BP) or a global index (negative, see
// allocGlobal), plus whether the slot holds a box handle instead of the
// value itself. Globals are never boxed — the Globals array is shared by
// every frame already, so MemSet on it is visible everywhere.
type slot struct {
	offset int
	boxed  bool
}

// frameEnv pairs the compile-time name→slot chain with the current stack
// depth from BP at this point — the local binding slots in scope plus any
// operand values already pushed ahead of the expression being compiled —
// which a fresh Let/LetRec/Lambda binding's offsets are assigned relative
// to. Global bindings go through a disjoint negative
// numbering (see Compiler.allocGlobal) and never touch depth.
type frameEnv struct {
	*env.Env[slot]
	depth int
}

func (f frameEnv) extend(names []string, boxed func(string) bool) frameEnv {
	child := f.Env.Extend()
	next := f.depth
	for _, n := range names {
		child.Bind(n, slot{offset: next, boxed: boxed(n)})
		next++
	}
	return frameEnv{Env: child, depth: next}
}

// Compiler holds the shared bytecode arena, the runtime heap (quoted
// compound data is allocated directly into it at compile time — unlike
// native codegen, this compiler runs in the same process that will later
// execute the graph, so there is no hoist-to-main step), and the
// process-wide global frame.
type Compiler struct {
	Graph      *bytecode.Graph
	Heap       *runtime.Heap
	Global     *env.Env[slot]
	nextGlobal int
}

func New(graph *bytecode.Graph, heap *runtime.Heap) *Compiler {
	return &Compiler{Graph: graph, Heap: heap, Global: env.New[slot]()}
}

// BindBuiltin reserves a global slot for a built-in name, used once at
// startup for every entry in pkg/vm's built-in table. The caller is
// responsible for populating the matching VM.Globals slot in the same
// order (see pkg/vm.NewMachine). The box/unbox/set-box! entries must be
// among those installed: the boxing sequences below call them by their
// global slot.
func (c *Compiler) BindBuiltin(name string) int {
	offset, _ := c.allocGlobal(name)
	return offset
}

func (c *Compiler) allocGlobal(name string) (offset int, isNew bool) {
	if s, err := c.Global.Find(name); err == nil {
		return s.offset, false
	}
	offset = -(c.nextGlobal + 1)
	c.nextGlobal++
	c.Global.Bind(name, slot{offset: offset})
	return offset, true
}

// GlobalSlots reports how many global slots have been allocated so far —
// the size pkg/vm's Globals array must have before running any compiled
// code (see pkg/vm.NewMachine).
func (c *Compiler) GlobalSlots() int { return c.nextGlobal }

// builtinOffset resolves the global slot a built-in was installed at.
func (c *Compiler) builtinOffset(name string) (int, error) {
	s, err := c.Global.Find(name)
	if err != nil {
		return 0, scmerr.Wrap(scmerr.InternalError, err, "built-in %q is not installed", name)
	}
	return s.offset, nil
}

// topEnv returns a fresh frameEnv rooted at the global frame, used to
// compile one top-level form.
func (c *Compiler) topEnv() frameEnv {
	return frameEnv{Env: c.Global, depth: 0}
}

// CompileTopLevel compiles one top-level form against the process-wide
// global frame, returning its entry instruction. Define binds into that
// global frame wherever it appears — an internal define lands in the same
// namespace as a top-level one.
func (c *Compiler) CompileTopLevel(expr ast.Expr, cont bytecode.Handle) (bytecode.Handle, error) {
	return c.compile(expr, c.topEnv(), cont)
}

func (c *Compiler) compile(expr ast.Expr, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	switch t := expr.(type) {
	case ast.Number:
		return c.Graph.NewImm(runtime.EncodeFixnum(t.Value), cont), nil

	case ast.Boolean:
		return c.Graph.NewImm(runtime.EncodeBoolean(t.Value), cont), nil

	case ast.Var:
		s, err := e.Find(t.Name)
		if err != nil {
			return bytecode.NoHandle, err
		}
		if s.boxed {
			return c.unboxRead(s.offset, cont)
		}
		return c.Graph.NewMemRef(s.offset, cont), nil

	case ast.Quote:
		return c.Graph.NewImm(c.quoteValue(t.Value), cont), nil

	case ast.Define:
		offset, _ := c.allocGlobal(t.Name)
		withVoid := c.Graph.NewImm(runtime.Void, cont)
		return c.compile(t.Body, e, c.Graph.NewMemSet(offset, withVoid))

	case ast.SetBang:
		return c.compileSetBang(t, e, cont)

	case ast.Begin:
		return c.compileBegin(t.Exprs, e, cont)

	case ast.If:
		thenEntry, err := c.compile(t.Then, e, cont)
		if err != nil {
			return bytecode.NoHandle, err
		}
		elseEntry, err := c.compile(t.Else, e, cont)
		if err != nil {
			return bytecode.NoHandle, err
		}
		branch := c.Graph.NewBranch(thenEntry, elseEntry)
		return c.compile(t.Cond, e, branch)

	case ast.Let:
		return c.compileLet(t, e, cont)

	case ast.LetRec:
		return c.compileLetRec(t, e, cont)

	case ast.Lambda:
		return c.compileLambda(t, e, cont)

	case ast.Apply:
		return c.compileApply(t, e, cont)

	default:
		return bytecode.NoHandle, scmerr.New(scmerr.InternalError, "unhandled expression type %T", expr)
	}
}

// ----------------------------------------------------------------------------
// Boxing sequences
//
// Each of these expands to the ordinary Frame/Push/Call protocol against
// one of the box built-ins, exactly as if the source had spelled the call
// out — the built-ins are first-class procedures in the global frame, so
// the compiler can lean on them the same way user code does.

// boxAcc wraps whatever is in ACC in a fresh heap box, leaving the box
// handle in ACC.
func (c *Compiler) boxAcc(cont bytecode.Handle) (bytecode.Handle, error) {
	boxOff, err := c.builtinOffset("box")
	if err != nil {
		return bytecode.NoHandle, err
	}
	call := c.Graph.NewMemRef(boxOff, c.Graph.NewCall())
	return c.Graph.NewFrame(cont, c.Graph.NewPush(call)), nil
}

// unboxRead loads the box handle at offset and leaves its content in ACC.
func (c *Compiler) unboxRead(offset int, cont bytecode.Handle) (bytecode.Handle, error) {
	unboxOff, err := c.builtinOffset("unbox")
	if err != nil {
		return bytecode.NoHandle, err
	}
	call := c.Graph.NewMemRef(unboxOff, c.Graph.NewCall())
	ref := c.Graph.NewMemRef(offset, c.Graph.NewPush(call))
	return c.Graph.NewFrame(cont, ref), nil
}

// setBoxStore evaluates body and stores its result through the box handle
// at offset, leaving Void (set-box!'s own result) in ACC.
func (c *Compiler) setBoxStore(offset int, body ast.Expr, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	setBoxOff, err := c.builtinOffset("set-box!")
	if err != nil {
		return bytecode.NoHandle, err
	}
	call := c.Graph.NewMemRef(setBoxOff, c.Graph.NewCall())
	bodyEntry, err := c.compile(body, frameEnv{Env: e.Env, depth: e.depth + 1}, c.Graph.NewPush(call))
	if err != nil {
		return bytecode.NoHandle, err
	}
	ref := c.Graph.NewMemRef(offset, c.Graph.NewPush(bodyEntry))
	return c.Graph.NewFrame(cont, ref), nil
}

func (c *Compiler) compileSetBang(t ast.SetBang, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	s, err := e.Find(t.Name)
	if err != nil {
		return bytecode.NoHandle, err
	}
	if s.boxed {
		return c.setBoxStore(s.offset, t.Body, e, cont)
	}
	withVoid := c.Graph.NewImm(runtime.Void, cont)
	return c.compile(t.Body, e, c.Graph.NewMemSet(s.offset, withVoid))
}

func (c *Compiler) compileBegin(exprs []ast.Expr, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	if len(exprs) == 0 {
		return c.Graph.NewImm(runtime.Void, cont), nil
	}
	chain := cont
	for i := len(exprs) - 1; i >= 0; i-- {
		entry, err := c.compile(exprs[i], e, chain)
		if err != nil {
			return bytecode.NoHandle, err
		}
		chain = entry
	}
	return chain, nil
}

func (c *Compiler) compileLet(t ast.Let, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	assigned := passes.CollectAssign(t.Body)

	names := make([]string, len(t.Bindings))
	for i, b := range t.Bindings {
		names[i] = b.Name
	}
	inner := e.extend(names, func(n string) bool { return assigned[n] })

	bodyEntry, err := c.compile(t.Body, inner, c.Graph.NewPop(len(t.Bindings), cont))
	if err != nil {
		return bytecode.NoHandle, err
	}

	chain := bodyEntry
	for i := len(t.Bindings) - 1; i >= 0; i-- {
		initCont := c.Graph.NewPush(chain)
		if assigned[t.Bindings[i].Name] {
			initCont, err = c.boxAcc(initCont)
			if err != nil {
				return bytecode.NoHandle, err
			}
		}
		entry, err := c.compile(t.Bindings[i].Init, frameEnv{Env: e.Env, depth: e.depth + i}, initCont)
		if err != nil {
			return bytecode.NoHandle, err
		}
		chain = entry
	}
	return chain, nil
}

// compileLetRec boxes every binding unconditionally: each slot is pushed
// holding a fresh box around the Undefined sentinel, every init is stored
// through the box with set-box!, and reads go through unbox. A lambda init
// capturing its own (or a sibling's) name therefore snapshots the box
// handle, which still points at the right cell once the init completes —
// the frame snapshot alone would freeze the sentinel in place.
func (c *Compiler) compileLetRec(t ast.LetRec, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	names := make([]string, len(t.Bindings))
	for i, b := range t.Bindings {
		names[i] = b.Name
	}
	inner := e.extend(names, func(string) bool { return true })

	bodyEntry, err := c.compile(t.Body, inner, c.Graph.NewPop(len(t.Bindings), cont))
	if err != nil {
		return bytecode.NoHandle, err
	}

	chain := bodyEntry
	for i := len(t.Bindings) - 1; i >= 0; i-- {
		s, ferr := inner.Find(t.Bindings[i].Name)
		if ferr != nil {
			return bytecode.NoHandle, ferr
		}
		entry, err := c.setBoxStore(s.offset, t.Bindings[i].Init, inner, chain)
		if err != nil {
			return bytecode.NoHandle, err
		}
		chain = entry
	}
	for range t.Bindings {
		boxed, err := c.boxAcc(c.Graph.NewPush(chain))
		if err != nil {
			return bytecode.NoHandle, err
		}
		chain = c.Graph.NewImm(runtime.Undefined, boxed)
	}
	return chain, nil
}

// compileLambda boxes each assigned parameter in an entry prologue (load
// the raw argument, box it, store the handle back into the same slot), the
// bytecode rendering of the same per-parameter boxing native codegen does
// in buildLambdaFunction.
func (c *Compiler) compileLambda(t ast.Lambda, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	assigned := passes.CollectAssign(t.Body)
	body := e.extend(t.Params, func(n string) bool { return assigned[n] })

	retOp := c.Graph.NewRet(e.depth + len(t.Params))
	bodyEntry, err := c.compile(t.Body, body, retOp)
	if err != nil {
		return bytecode.NoHandle, err
	}

	entry := bodyEntry
	for i := len(t.Params) - 1; i >= 0; i-- {
		if !assigned[t.Params[i]] {
			continue
		}
		offset := e.depth + i
		boxed, err := c.boxAcc(c.Graph.NewMemSet(offset, entry))
		if err != nil {
			return bytecode.NoHandle, err
		}
		entry = c.Graph.NewMemRef(offset, boxed)
	}

	return c.Graph.NewClosure(entry, e.depth, len(t.Params), cont), nil
}

func (c *Compiler) compileApply(t ast.Apply, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	if operatorVar, ok := t.Operator.(ast.Var); ok && len(t.Operands) == 2 {
		if op, isPrim := bytecode.PrimOps[operatorVar.Name]; isPrim && !shadowedLocally(e, operatorVar.Name) {
			return c.compilePrim(op, t.Operands[0], t.Operands[1], e, cont)
		}
	}

	callEntry, err := c.compile(t.Operator, frameEnv{Env: e.Env, depth: e.depth + len(t.Operands)}, c.Graph.NewCall())
	if err != nil {
		return bytecode.NoHandle, err
	}

	chain := callEntry
	for i := len(t.Operands) - 1; i >= 0; i-- {
		entry, err := c.compile(t.Operands[i], frameEnv{Env: e.Env, depth: e.depth + i}, c.Graph.NewPush(chain))
		if err != nil {
			return bytecode.NoHandle, err
		}
		chain = entry
	}

	return c.Graph.NewFrame(cont, chain), nil
}

// shadowedLocally reports whether name resolves to a non-negative (local
// frame) offset — i.e. a Let/LetRec/Lambda binding shadows the primitive
// operator spelling, so the Prim fast path must not fire (the user's
// local "+" wins over the built-in one). Names that resolve to a negative
// offset (global, including the built-in itself) or don't resolve at all
// still take the fast path.
func shadowedLocally(e frameEnv, name string) bool {
	s, err := e.Find(name)
	return err == nil && s.offset >= 0
}

func (c *Compiler) compilePrim(op bytecode.Op, arg1, arg2 ast.Expr, e frameEnv, cont bytecode.Handle) (bytecode.Handle, error) {
	prim := c.Graph.NewPrim(op, c.Graph.NewPop(2, cont))

	arg2Entry, err := c.compile(arg2, frameEnv{Env: e.Env, depth: e.depth + 1}, c.Graph.NewPush(prim))
	if err != nil {
		return bytecode.NoHandle, err
	}
	return c.compile(arg1, e, c.Graph.NewPush(arg2Entry))
}

// quoteValue allocates (or directly encodes, for immediates) the tagged
// Value a quoted Datum evaluates to.
func (c *Compiler) quoteValue(d ast.Datum) runtime.Value {
	switch t := d.(type) {
	case ast.NumberDatum:
		return runtime.EncodeFixnum(t.Value)
	case ast.BooleanDatum:
		return runtime.EncodeBoolean(t.Value)
	case ast.SymbolDatum:
		return c.Heap.Intern(t.Name)
	case ast.NilDatum:
		return runtime.Nil
	case ast.PairDatum:
		return c.Heap.NewPair(c.quoteValue(t.Car), c.quoteValue(t.Cdr))
	default:
		return runtime.Void
	}
}
