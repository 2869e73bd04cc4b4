// Package codegen implements the native back end: closure-converted
// lowering from the expression AST into pkg/ir's register-based form.
// Structurally this plays the same role pkg/compiler plays for the
// bytecode back end (a struct wrapping compile-time state, one method per
// ast.Expr variant, building output as it walks) — here the output is a
// pkg/ir.Module instead of a bytecode.Graph, and every procedure becomes
// its own pkg/ir.Function rather than a single CPS instruction chain.
//
// Where pkg/compiler captures a closure's whole enclosing frame, this back
// end captures exactly pkg/passes.FreeVars's answer — a real native
// closure has no BP-relative stack to splice a callee's frame into, so it
// must carry precisely what it needs.
package codegen

import (
	"fmt"

	"schemeimpl.dev/scheme/pkg/ast"
	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/env"
	"schemeimpl.dev/scheme/pkg/ir"
	"schemeimpl.dev/scheme/pkg/passes"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/scmerr"
)

// builtinArity lists every reserved built-in procedure name, in the order
// pkg/interp/builtins.go and pkg/vm/builtins.go both declare them,
// together with its fixed arity. Unlike those two tables this one holds no
// Go closure: codegen only ever needs the name and arity to either inline
// a Prim or emit a CallRuntime by that exact spelling.
var builtinArity = map[string]int{
	"+": 2, "-": 2, "*": 2, "/": 2, "%": 2,
	"<": 2, "<=": 2, "=": 2, ">": 2, ">=": 2, "!=": 2,
	"cons": 2, "car": 1, "cdr": 1,
	"box": 1, "unbox": 1, "set-box!": 2, "box?": 1,
	"make-vector": 2, "vector-ref": 2, "vector-set!": 3, "vector-length": 1, "vector?": 1,
	"null?": 1, "pair?": 1, "symbol?": 1, "number?": 1, "boolean?": 1, "void?": 1,
	"eq?": 2, "display": 1,
}

// builtinOrder fixes a deterministic iteration order over builtinArity
// (map order is not deterministic) for the one place that matters: the
// order Main's prologue registers builtin trampolines in.
var builtinOrder = []string{
	"+", "-", "*", "/", "%",
	"<", "<=", "=", ">", ">=", "!=",
	"cons", "car", "cdr",
	"box", "unbox", "set-box!", "box?",
	"make-vector", "vector-ref", "vector-set!", "vector-length", "vector?",
	"null?", "pair?", "symbol?", "number?", "boolean?", "void?",
	"eq?", "display",
}

// binding is what a name resolves to inside one Function's compile-time
// scope: either a stack slot (a parameter or a Let/LetRec binding, read
// via LoadLocal/StoreLocal) or a fixed register materialized once at
// function entry (a captured free variable, read via LoadCaptured).
// Boxed means the slot/register holds a box handle rather than the raw
// value — set for every name pkg/passes.CollectAssign reports as
// assigned, and unconditionally for every LetRec binding (see
// compileLetRec).
type binding struct {
	isSlot bool
	slot   int
	reg    ir.Reg
	boxed  bool
}

// scope is one function's compile-time environment, plus how many local
// slots are already in use — the native-codegen counterpart of
// pkg/compiler's frameEnv. Scopes never cross a Lambda boundary: a nested
// function starts a fresh, parentless scope and reaches anything from its
// defining environment only through a capture recorded in binding.
type scope struct {
	*env.Env[binding]
	depth int
}

// builder accumulates one Function's instruction stream and hands out
// fresh virtual registers. Register numbers are function-scoped and not
// required to be SSA (pkg/ir.Reg's own doc comment: "a Reg may be written
// more than once"); Main's body is assembled from three independently
// numbered builders concatenated end to end (see Generate) — harmless,
// since the only channel between those phases is StoreGlobal/LoadGlobal,
// never a shared register.
type builder struct {
	instrs []ir.Instr
	next   ir.Reg
}

func newBuilder() *builder { return &builder{} }

func (b *builder) reg() ir.Reg {
	r := b.next
	b.next++
	return r
}

func (b *builder) emit(instr ir.Instr) { b.instrs = append(b.instrs, instr) }

// quotedGlobal records one compound quoted datum that must be built once,
// in main's prologue, and bound to a synthesized global name. A pair or
// symbol cannot be a plain immediate operand — it needs the runtime's heap
// and intern table — so every compound datum is hoisted rather than
// materialized inline at each use.
type quotedGlobal struct {
	name  string
	datum ast.Datum
}

// Codegen holds the state shared across every Function a program
// compiles to: which raw Scheme names are bound by a top-level Define
// (so Var/Define/SetBang know to address them through a global, not a
// capture), the quoted data discovered so far, and every Function emitted
// (lambdas and builtin trampolines alike).
type Codegen struct {
	globals    map[string]bool
	quoted     []quotedGlobal
	nextQuoted int
	nextLabel  int
	fns        []ir.Function
}

// Generate translates prog into a native pkg/ir.Module: one Function per
// Lambda (named lambda_<Id>, after the Lambda node's Id), one trampoline Function per built-in (so a built-in referenced as a
// first-class value, not in call position, still has something to point
// a closure at), and a synthesized "main" Function that registers the
// trampolines, initializes every hoisted quoted datum, then runs prog's
// top-level forms in order.
func Generate(prog []ast.Expr) (*ir.Module, error) {
	cg := &Codegen{globals: map[string]bool{}}
	for _, expr := range prog {
		collectDefines(expr, cg.globals)
	}

	bodyBuilder := newBuilder()
	topScope := scope{Env: env.New[binding](), depth: 0}
	lastReg := bodyBuilder.reg()
	bodyBuilder.emit(ir.LoadImm{Dst: lastReg, Value: uint64(runtime.Void)})
	for _, expr := range prog {
		r, err := cg.compileExpr(bodyBuilder, topScope, expr)
		if err != nil {
			return nil, err
		}
		lastReg = r
	}
	bodyBuilder.emit(ir.Ret{Src: lastReg})

	builtinPrologue := newBuilder()
	for _, name := range builtinOrder {
		trampoline := cg.makeBuiltinTrampoline(name)
		cg.fns = append(cg.fns, trampoline)
		dst := builtinPrologue.reg()
		builtinPrologue.emit(ir.MakeClosure{Dst: dst, Entry: trampoline.Name})
		builtinPrologue.emit(ir.StoreGlobal{Name: name, Src: dst})
	}

	// Built after bodyBuilder runs, since compiling prog is what discovers
	// cg.quoted — but its instructions must run before bodyBuilder's, so
	// it is prepended below rather than appended.
	quotedPrologue := newBuilder()
	for _, q := range cg.quoted {
		reg := cg.buildDatum(quotedPrologue, q.datum)
		quotedPrologue.emit(ir.StoreGlobal{Name: q.name, Src: reg})
	}

	mainInstrs := make([]ir.Instr, 0, len(builtinPrologue.instrs)+len(quotedPrologue.instrs)+len(bodyBuilder.instrs))
	mainInstrs = append(mainInstrs, builtinPrologue.instrs...)
	mainInstrs = append(mainInstrs, quotedPrologue.instrs...)
	mainInstrs = append(mainInstrs, bodyBuilder.instrs...)

	cg.fns = append(cg.fns, ir.Function{Name: "main", Body: mainInstrs})

	return &ir.Module{Functions: cg.fns, Main: "main"}, nil
}

// collectDefines finds every name a Define introduces, anywhere in expr
// (including inside a Lambda's body, matching pkg/compiler's own "internal
// defines bind into the same global frame as top-level ones" rule). This
// has to run as a pass separate from compileExpr because a lambda may
// refer to a Define'd name that appears later in program order (mutual
// top-level recursion), so every global name must be known before any
// Var can be classified as global vs. captured.
func collectDefines(expr ast.Expr, out map[string]bool) {
	switch t := expr.(type) {
	case ast.Define:
		out[t.Name] = true
		collectDefines(t.Body, out)
	case ast.SetBang:
		collectDefines(t.Body, out)
	case ast.Begin:
		for _, e := range t.Exprs {
			collectDefines(e, out)
		}
	case ast.If:
		collectDefines(t.Cond, out)
		collectDefines(t.Then, out)
		collectDefines(t.Else, out)
	case ast.Let:
		for _, b := range t.Bindings {
			collectDefines(b.Init, out)
		}
		collectDefines(t.Body, out)
	case ast.LetRec:
		for _, b := range t.Bindings {
			collectDefines(b.Init, out)
		}
		collectDefines(t.Body, out)
	case ast.Lambda:
		collectDefines(t.Body, out)
	case ast.Apply:
		collectDefines(t.Operator, out)
		for _, o := range t.Operands {
			collectDefines(o, out)
		}
	default:
		// Number, Boolean, Var, Quote: no sub-expressions.
	}
}

// isGlobalName reports whether name is reached through the global frame
// directly (a user Define or a built-in) rather than through a closure
// capture — the predicate pkg/passes.FreeVars needs to stop at a lambda's
// true free variables.
func (cg *Codegen) isGlobalName(name string) bool {
	if cg.globals[name] {
		return true
	}
	_, isBuiltin := builtinArity[name]
	return isBuiltin
}

// globalName returns the identifier a LoadGlobal/StoreGlobal of name
// should use: a user Define gets the mangled name (an arbitrary Scheme
// identifier is not always a valid linker symbol); a built-in keeps its
// literal spelling, since it is drawn from a small fixed vocabulary the
// runtime library exports under exactly those names.
func (cg *Codegen) globalName(name string) string {
	if cg.globals[name] {
		return mangle(name)
	}
	return name
}

// mangle turns a Scheme identifier into a linker-safe symbol: every
// non-alphanumeric byte becomes "_<decimal>_", e.g. "set-box!" becomes
// "set_45_box_33_" (45 and 33 are the ASCII codes of '-' and '!').
func mangle(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, []byte(fmt.Sprintf("_%d_", c))...)
		}
	}
	return string(out)
}

func (cg *Codegen) label(prefix string) string {
	n := cg.nextLabel
	cg.nextLabel++
	return fmt.Sprintf("%s_%d", prefix, n)
}

// rawReg returns the register currently holding b's raw content: for a
// slot binding that means a fresh LoadLocal; for a captured-at-entry
// binding it is the register LoadCaptured already wrote, reused directly
// (no new instruction needed). "Raw" means: the box handle if b.boxed,
// the plain value otherwise — callers that want the unboxed value go
// through compileVarRead instead, which adds the LoadBox step.
func (cg *Codegen) rawReg(b *builder, bnd binding) ir.Reg {
	if bnd.isSlot {
		dst := b.reg()
		b.emit(ir.LoadLocal{Dst: dst, Slot: bnd.slot})
		return dst
	}
	return bnd.reg
}

func (cg *Codegen) compileVarRead(b *builder, s scope, name string) (ir.Reg, error) {
	if bnd, err := s.Find(name); err == nil {
		raw := cg.rawReg(b, bnd)
		if !bnd.boxed {
			return raw, nil
		}
		dst := b.reg()
		b.emit(ir.LoadBox{Dst: dst, Box: raw})
		return dst, nil
	}

	dst := b.reg()
	b.emit(ir.LoadGlobal{Dst: dst, Name: cg.globalName(name)})
	return dst, nil
}

func (cg *Codegen) compileExpr(b *builder, s scope, expr ast.Expr) (ir.Reg, error) {
	switch t := expr.(type) {
	case ast.Number:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.EncodeFixnum(t.Value))})
		return dst, nil

	case ast.Boolean:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.EncodeBoolean(t.Value))})
		return dst, nil

	case ast.Var:
		return cg.compileVarRead(b, s, t.Name)

	case ast.Quote:
		return cg.compileQuote(b, t.Value)

	case ast.Define:
		reg, err := cg.compileExpr(b, s, t.Body)
		if err != nil {
			return 0, err
		}
		b.emit(ir.StoreGlobal{Name: cg.globalName(t.Name), Src: reg})
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.Void)})
		return dst, nil

	case ast.SetBang:
		return cg.compileSetBang(b, s, t)

	case ast.Begin:
		return cg.compileBegin(b, s, t.Exprs)

	case ast.If:
		return cg.compileIf(b, s, t)

	case ast.Let:
		return cg.compileLet(b, s, t)

	case ast.LetRec:
		return cg.compileLetRec(b, s, t)

	case ast.Lambda:
		return cg.compileLambdaExpr(b, s, t)

	case ast.Apply:
		return cg.compileApply(b, s, t)

	default:
		return 0, scmerr.New(scmerr.InternalError, "codegen: unhandled expression type %T", expr)
	}
}

func (cg *Codegen) compileSetBang(b *builder, s scope, t ast.SetBang) (ir.Reg, error) {
	reg, err := cg.compileExpr(b, s, t.Body)
	if err != nil {
		return 0, err
	}

	if bnd, err := s.Find(t.Name); err == nil {
		if bnd.boxed {
			box := cg.rawReg(b, bnd)
			b.emit(ir.StoreBox{Box: box, Src: reg})
		} else {
			// Only reachable for an unassigned-looking slot binding that
			// set! nonetheless targets; pkg/passes.CollectAssign always
			// flags such names, so this path exists only as a defensive
			// fallback for a stack slot (never a reg-based capture, which
			// cannot be rewritten in place).
			b.emit(ir.StoreLocal{Slot: bnd.slot, Src: reg})
		}
	} else {
		b.emit(ir.StoreGlobal{Name: cg.globalName(t.Name), Src: reg})
	}

	dst := b.reg()
	b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.Void)})
	return dst, nil
}

func (cg *Codegen) compileBegin(b *builder, s scope, exprs []ast.Expr) (ir.Reg, error) {
	if len(exprs) == 0 {
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.Void)})
		return dst, nil
	}
	var last ir.Reg
	for _, e := range exprs {
		r, err := cg.compileExpr(b, s, e)
		if err != nil {
			return 0, err
		}
		last = r
	}
	return last, nil
}

// compileIf lowers to a then/else/join block triple, with Move into a
// shared Dst standing in for the phi node that would merge the two arms in
// a stricter SSA form.
func (cg *Codegen) compileIf(b *builder, s scope, t ast.If) (ir.Reg, error) {
	condReg, err := cg.compileExpr(b, s, t.Cond)
	if err != nil {
		return 0, err
	}

	thenLabel := cg.label("then")
	elseLabel := cg.label("else")
	joinLabel := cg.label("ifcont")
	b.emit(ir.Branch{Cond: condReg, Then: thenLabel, Else: elseLabel})

	dst := b.reg()

	b.emit(ir.Label{Name: thenLabel})
	thenReg, err := cg.compileExpr(b, s, t.Then)
	if err != nil {
		return 0, err
	}
	b.emit(ir.Move{Dst: dst, Src: thenReg})
	b.emit(ir.Jump{Target: joinLabel})

	b.emit(ir.Label{Name: elseLabel})
	elseReg, err := cg.compileExpr(b, s, t.Else)
	if err != nil {
		return 0, err
	}
	b.emit(ir.Move{Dst: dst, Src: elseReg})
	b.emit(ir.Jump{Target: joinLabel})

	b.emit(ir.Label{Name: joinLabel})
	return dst, nil
}

// compileLet evaluates every Init in the enclosing scope (none of the new
// bindings are visible yet), then extends scope with one slot per
// binding, boxing a name only if it is assigned somewhere within Body.
func (cg *Codegen) compileLet(b *builder, s scope, t ast.Let) (ir.Reg, error) {
	assigned := passes.CollectAssign(t.Body)

	initRegs := make([]ir.Reg, len(t.Bindings))
	for i, bind := range t.Bindings {
		r, err := cg.compileExpr(b, s, bind.Init)
		if err != nil {
			return 0, err
		}
		initRegs[i] = r
	}

	child := s.Env.Extend()
	depth := s.depth
	for i, bind := range t.Bindings {
		slot := depth
		depth++
		boxed := assigned[bind.Name]
		valReg := initRegs[i]
		if boxed {
			boxReg := b.reg()
			b.emit(ir.MakeBox{Dst: boxReg, Init: valReg})
			valReg = boxReg
		}
		b.emit(ir.StoreLocal{Slot: slot, Src: valReg})
		child.Bind(bind.Name, binding{isSlot: true, slot: slot, boxed: boxed})
	}

	return cg.compileExpr(b, scope{Env: child, depth: depth}, t.Body)
}

// compileLetRec unconditionally boxes every binding, regardless of
// whether pkg/passes.CollectAssign flags it as assigned. A recursive or
// mutually-recursive Lambda captures its sibling bindings as free
// variables; since native codegen captures by register value, a plain
// unboxed snapshot taken at MakeClosure time would freeze in the Undefined
// placeholder instead of the finished closure. Boxing makes every capture
// go through a cell that is still live when the LetRec's own MakeClosure
// sites (for the *other* bindings) read it, and gets overwritten with the
// real value before Body runs.
func (cg *Codegen) compileLetRec(b *builder, s scope, t ast.LetRec) (ir.Reg, error) {
	child := s.Env.Extend()
	depth := s.depth
	slots := make([]int, len(t.Bindings))
	for i, bind := range t.Bindings {
		slot := depth
		depth++
		slots[i] = slot

		undef := b.reg()
		b.emit(ir.LoadImm{Dst: undef, Value: uint64(runtime.Undefined)})
		boxReg := b.reg()
		b.emit(ir.MakeBox{Dst: boxReg, Init: undef})
		b.emit(ir.StoreLocal{Slot: slot, Src: boxReg})
		child.Bind(bind.Name, binding{isSlot: true, slot: slot, boxed: true})
	}

	inner := scope{Env: child, depth: depth}
	for i, bind := range t.Bindings {
		valReg, err := cg.compileExpr(b, inner, bind.Init)
		if err != nil {
			return 0, err
		}
		boxReg := b.reg()
		b.emit(ir.LoadLocal{Dst: boxReg, Slot: slots[i]})
		b.emit(ir.StoreBox{Box: boxReg, Src: valReg})
	}

	return cg.compileExpr(b, inner, t.Body)
}

func lambdaFnName(id int) string { return fmt.Sprintf("lambda_%d", id) }

// compileLambdaExpr closes over lam: it builds (once) the Function lam's
// body compiles to, then emits a MakeClosure at this use site that
// captures exactly pkg/passes.FreeVars's answer, each as whatever raw
// register (boxed or not) the enclosing scope currently holds for it.
func (cg *Codegen) compileLambdaExpr(b *builder, s scope, lam ast.Lambda) (ir.Reg, error) {
	free := passes.FreeVars(lam.Body, lam.Params, cg.isGlobalName)

	if err := cg.buildLambdaFunction(s, lam, free); err != nil {
		return 0, err
	}

	captured := make([]ir.Reg, len(free))
	for i, name := range free {
		bnd, err := s.Find(name)
		if err != nil {
			return 0, scmerr.Wrap(scmerr.InternalError, err, "free variable %q not found while closing over lambda %d", name, lam.Id)
		}
		captured[i] = cg.rawReg(b, bnd)
	}

	dst := b.reg()
	b.emit(ir.MakeClosure{Dst: dst, Entry: lambdaFnName(lam.Id), Captured: captured})
	return dst, nil
}

// buildLambdaFunction compiles lam's body into its own Function, appended
// to cg.fns. Captured free variables are materialized once, at entry,
// into fixed registers (LoadCaptured off register 0 — the calling
// convention's reserved slot for the incoming closure-environment handle
// whenever NumCaptured > 0); parameters live in slots 0..len(Params)-1,
// boxed in place at entry if pkg/passes.CollectAssign reports them
// assigned anywhere in Body.
func (cg *Codegen) buildLambdaFunction(s scope, lam ast.Lambda, free []string) error {
	fb := newBuilder()

	var envReg ir.Reg
	if len(free) > 0 {
		envReg = fb.reg()
	}

	inner := env.New[binding]()
	for i, name := range free {
		bnd, err := s.Find(name)
		if err != nil {
			return scmerr.Wrap(scmerr.InternalError, err, "free variable %q not found while building lambda %d", name, lam.Id)
		}
		dst := fb.reg()
		fb.emit(ir.LoadCaptured{Dst: dst, Env: envReg, Index: i})
		inner.Bind(name, binding{isSlot: false, reg: dst, boxed: bnd.boxed})
	}

	assigned := passes.CollectAssign(lam.Body)
	for i, p := range lam.Params {
		boxed := assigned[p]
		if boxed {
			raw := fb.reg()
			fb.emit(ir.LoadLocal{Dst: raw, Slot: i})
			boxReg := fb.reg()
			fb.emit(ir.MakeBox{Dst: boxReg, Init: raw})
			fb.emit(ir.StoreLocal{Slot: i, Src: boxReg})
		}
		inner.Bind(p, binding{isSlot: true, slot: i, boxed: boxed})
	}

	innerScope := scope{Env: inner, depth: len(lam.Params)}
	bodyReg, err := cg.compileExpr(fb, innerScope, lam.Body)
	if err != nil {
		return err
	}
	fb.emit(ir.Ret{Src: bodyReg})

	cg.fns = append(cg.fns, ir.Function{
		Name:        lambdaFnName(lam.Id),
		Params:      lam.Params,
		NumCaptured: len(free),
		Body:        fb.instrs,
	})
	return nil
}

// compileApply evaluates every operand, left to right, before the
// operator, and splits on what the operator is: the eleven
// arithmetic/comparison operators inline as a Prim when not shadowed by a
// local binding; every other built-in, likewise unshadowed, goes through
// CallRuntime by its literal name; anything else — a Var bound locally or
// globally to a closure, or any other operator expression — compiles to
// an indirect Call.
func (cg *Codegen) compileApply(b *builder, s scope, t ast.Apply) (ir.Reg, error) {
	if opVar, ok := t.Operator.(ast.Var); ok && !s.Env.Has(opVar.Name) {
		if op, isPrim := bytecode.PrimOps[opVar.Name]; isPrim && len(t.Operands) == 2 {
			aReg, err := cg.compileExpr(b, s, t.Operands[0])
			if err != nil {
				return 0, err
			}
			bReg, err := cg.compileExpr(b, s, t.Operands[1])
			if err != nil {
				return 0, err
			}
			dst := b.reg()
			b.emit(ir.Prim{Dst: dst, Op: op, A: aReg, B: bReg})
			return dst, nil
		}

		if arity, isBuiltin := builtinArity[opVar.Name]; isBuiltin && arity == len(t.Operands) {
			args, err := cg.compileOperands(b, s, t.Operands)
			if err != nil {
				return 0, err
			}
			dst := b.reg()
			b.emit(ir.CallRuntime{Dst: dst, Name: opVar.Name, Args: args})
			return dst, nil
		}
	}

	args, err := cg.compileOperands(b, s, t.Operands)
	if err != nil {
		return 0, err
	}
	calleeReg, err := cg.compileExpr(b, s, t.Operator)
	if err != nil {
		return 0, err
	}
	dst := b.reg()
	b.emit(ir.Call{Dst: dst, Callee: calleeReg, Args: args})
	return dst, nil
}

func (cg *Codegen) compileOperands(b *builder, s scope, operands []ast.Expr) ([]ir.Reg, error) {
	args := make([]ir.Reg, len(operands))
	for i, o := range operands {
		r, err := cg.compileExpr(b, s, o)
		if err != nil {
			return nil, err
		}
		args[i] = r
	}
	return args, nil
}

func (cg *Codegen) compileQuote(b *builder, d ast.Datum) (ir.Reg, error) {
	switch v := d.(type) {
	case ast.NumberDatum:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.EncodeFixnum(v.Value))})
		return dst, nil
	case ast.BooleanDatum:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.EncodeBoolean(v.Value))})
		return dst, nil
	case ast.NilDatum:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.Nil)})
		return dst, nil
	default:
		name := cg.newQuotedGlobal(d)
		dst := b.reg()
		b.emit(ir.LoadGlobal{Dst: dst, Name: name})
		return dst, nil
	}
}

func (cg *Codegen) newQuotedGlobal(d ast.Datum) string {
	name := fmt.Sprintf("quoted_datum_%d", cg.nextQuoted)
	cg.nextQuoted++
	cg.quoted = append(cg.quoted, quotedGlobal{name: name, datum: d})
	return name
}

// buildDatum recursively materializes a hoisted compound datum, bottom up,
// into b — called only from Main's quoted-data prologue, never from the
// body of a Function that runs more than once, since every quoted
// compound value should be allocated exactly once per program run.
func (cg *Codegen) buildDatum(b *builder, d ast.Datum) ir.Reg {
	switch v := d.(type) {
	case ast.NumberDatum:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.EncodeFixnum(v.Value))})
		return dst
	case ast.BooleanDatum:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.EncodeBoolean(v.Value))})
		return dst
	case ast.NilDatum:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.Nil)})
		return dst
	case ast.SymbolDatum:
		dst := b.reg()
		b.emit(ir.LoadSymbol{Dst: dst, Name: v.Name})
		return dst
	case ast.PairDatum:
		carReg := cg.buildDatum(b, v.Car)
		cdrReg := cg.buildDatum(b, v.Cdr)
		dst := b.reg()
		b.emit(ir.CallRuntime{Dst: dst, Name: "cons", Args: []ir.Reg{carReg, cdrReg}})
		return dst
	default:
		dst := b.reg()
		b.emit(ir.LoadImm{Dst: dst, Value: uint64(runtime.Void)})
		return dst
	}
}

// makeBuiltinTrampoline builds the Function a built-in's first-class
// value (one not used directly in call position) points a closure at:
// read each parameter slot, apply the same Prim/CallRuntime it would get
// inline at a direct call site, and return it.
func (cg *Codegen) makeBuiltinTrampoline(name string) ir.Function {
	arity := builtinArity[name]
	fb := newBuilder()

	argRegs := make([]ir.Reg, arity)
	params := make([]string, arity)
	for i := 0; i < arity; i++ {
		r := fb.reg()
		fb.emit(ir.LoadLocal{Dst: r, Slot: i})
		argRegs[i] = r
		params[i] = fmt.Sprintf("p%d", i)
	}

	var result ir.Reg
	if op, isPrim := bytecode.PrimOps[name]; isPrim && arity == 2 {
		result = fb.reg()
		fb.emit(ir.Prim{Dst: result, Op: op, A: argRegs[0], B: argRegs[1]})
	} else {
		result = fb.reg()
		fb.emit(ir.CallRuntime{Dst: result, Name: name, Args: argRegs})
	}
	fb.emit(ir.Ret{Src: result})

	return ir.Function{
		Name:   fmt.Sprintf("builtin_%s", mangle(name)),
		Params: params,
		Body:   fb.instrs,
	}
}
