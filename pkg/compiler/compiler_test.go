package compiler_test

import (
	"testing"

	"schemeimpl.dev/scheme/internal/reader"
	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/compiler"
	"schemeimpl.dev/scheme/pkg/runtime"
)

// compile parses source's single top-level form and compiles it against a
// fresh Compiler with a Halt continuation, returning the graph and the entry
// handle so each test can walk the linked instruction structure directly.
func compile(t *testing.T, source string) (*bytecode.Graph, bytecode.Handle) {
	t.Helper()
	exprs, err := reader.New().ReadProgram(source)
	if err != nil {
		t.Fatalf("ReadProgram(%q): unexpected error: %s", source, err)
	}
	if len(exprs) != 1 {
		t.Fatalf("ReadProgram(%q): expected one top-level form, got %d", source, len(exprs))
	}

	graph := bytecode.NewGraph()
	c := compiler.New(graph, runtime.NewHeap())
	entry, err := c.CompileTopLevel(exprs[0], graph.NewHalt())
	if err != nil {
		t.Fatalf("CompileTopLevel(%q): unexpected error: %s", source, err)
	}
	return graph, entry
}

// TestCompileLiteralLinksToContinuation pins the CPS contract down at its
// smallest: a literal compiles to one Imm whose Next is exactly the
// continuation the caller passed in.
func TestCompileLiteralLinksToContinuation(t *testing.T) {
	graph, entry := compile(t, "42")

	imm, ok := graph.At(entry).(bytecode.Imm)
	if !ok {
		t.Fatalf("entry is %T, want Imm", graph.At(entry))
	}
	if imm.Value != runtime.EncodeFixnum(42) {
		t.Fatalf("Imm value = %d, want encoded 42", imm.Value)
	}
	if _, ok := graph.At(imm.Next).(bytecode.Halt); !ok {
		t.Fatalf("Imm.Next is %T, want the Halt continuation", graph.At(imm.Next))
	}
}

// TestCompilePrimFastPath covers the recognized-primitive rule: a direct
// two-argument call to an arithmetic operator skips closure dispatch and
// compiles to push/push/prim/pop, with the Pop discarding exactly the two
// operand slots the Prim consumed.
func TestCompilePrimFastPath(t *testing.T) {
	graph, entry := compile(t, "(+ 1 2)")

	imm1, ok := graph.At(entry).(bytecode.Imm)
	if !ok {
		t.Fatalf("entry is %T, want Imm (first operand)", graph.At(entry))
	}
	push1, ok := graph.At(imm1.Next).(bytecode.Push)
	if !ok {
		t.Fatalf("after first operand: %T, want Push", graph.At(imm1.Next))
	}
	imm2, ok := graph.At(push1.Next).(bytecode.Imm)
	if !ok {
		t.Fatalf("after first push: %T, want Imm (second operand)", graph.At(push1.Next))
	}
	push2, ok := graph.At(imm2.Next).(bytecode.Push)
	if !ok {
		t.Fatalf("after second operand: %T, want Push", graph.At(imm2.Next))
	}
	prim, ok := graph.At(push2.Next).(bytecode.Prim)
	if !ok {
		t.Fatalf("after second push: %T, want Prim", graph.At(push2.Next))
	}
	if prim.Op != bytecode.Add {
		t.Fatalf("Prim op = %s, want add", prim.Op)
	}
	pop, ok := graph.At(prim.Next).(bytecode.Pop)
	if !ok {
		t.Fatalf("after Prim: %T, want Pop", graph.At(prim.Next))
	}
	if pop.N != 2 {
		t.Fatalf("Pop count = %d, want 2 (the operand slots)", pop.N)
	}
	if _, ok := graph.At(pop.Next).(bytecode.Halt); !ok {
		t.Fatalf("Pop.Next is %T, want the Halt continuation", graph.At(pop.Next))
	}
}

// TestCompileShadowedPrimTakesCallPath covers the fast path's guard: a local
// binding of an operator spelling must win over the built-in, so the
// application compiles through Frame/Call instead of Prim.
func TestCompileShadowedPrimTakesCallPath(t *testing.T) {
	graph, entry := compile(t, "(let ((+ (lambda (a b) 0))) (+ 1 2))")

	sawPrim, sawCall := false, false
	for h := 0; h < graph.Len(); h++ {
		switch graph.At(bytecode.Handle(h)).(type) {
		case bytecode.Prim:
			sawPrim = true
		case bytecode.Call:
			sawCall = true
		}
	}
	if sawPrim {
		t.Fatal("a shadowed + still compiled through the Prim fast path")
	}
	if !sawCall {
		t.Fatal("the shadowed + application emitted no Call")
	}
	if _, ok := graph.At(entry).(bytecode.Closure); !ok {
		t.Fatalf("entry is %T, want Closure (the shadowing let's init)", graph.At(entry))
	}
}

// TestCompileIfSharesContinuation covers the If rule: both arms are compiled
// against the same continuation, and the predicate's continuation is the
// Branch over them — the fan-in that makes the instruction graph a DAG
// rather than a tree.
func TestCompileIfSharesContinuation(t *testing.T) {
	graph, entry := compile(t, "(if #t 1 2)")

	cond, ok := graph.At(entry).(bytecode.Imm)
	if !ok {
		t.Fatalf("entry is %T, want Imm (the predicate)", graph.At(entry))
	}
	branch, ok := graph.At(cond.Next).(bytecode.Branch)
	if !ok {
		t.Fatalf("predicate continuation is %T, want Branch", graph.At(cond.Next))
	}

	thenImm, ok := graph.At(branch.Then).(bytecode.Imm)
	if !ok {
		t.Fatalf("then arm is %T, want Imm", graph.At(branch.Then))
	}
	elseImm, ok := graph.At(branch.Else).(bytecode.Imm)
	if !ok {
		t.Fatalf("else arm is %T, want Imm", graph.At(branch.Else))
	}
	if thenImm.Next != elseImm.Next {
		t.Fatalf("arms continue to %d and %d, want the same join instruction", thenImm.Next, elseImm.Next)
	}
	if _, ok := graph.At(thenImm.Next).(bytecode.Halt); !ok {
		t.Fatalf("join is %T, want the Halt continuation", graph.At(thenImm.Next))
	}
}

// TestCompileLambda covers the Lambda rule: the site emits a Closure holding
// the body's entry, the declared arity, and the enclosing frame size, and
// the body's terminal Ret pops the whole callee frame (captured slots plus
// arguments).
func TestCompileLambda(t *testing.T) {
	test := func(source string, wantArity, wantFrameSize, wantRetPop int) {
		graph, entry := compile(t, source)

		var closure bytecode.Closure
		found := false
		for h := entry; !found; {
			switch instr := graph.At(h).(type) {
			case bytecode.Closure:
				closure, found = instr, true
			case bytecode.Imm:
				h = instr.Next
			case bytecode.Push:
				h = instr.Next
			case bytecode.Pop:
				h = instr.Next
			default:
				t.Fatalf("%q: walked into %T before any Closure", source, instr)
			}
		}

		if closure.Arity != wantArity {
			t.Fatalf("%q: closure arity = %d, want %d", source, closure.Arity, wantArity)
		}
		if closure.FrameSize != wantFrameSize {
			t.Fatalf("%q: closure frame size = %d, want %d", source, closure.FrameSize, wantFrameSize)
		}

		ret, ok := findRet(graph, closure.Code)
		if !ok {
			t.Fatalf("%q: lambda body has no reachable Ret", source)
		}
		if ret.N != wantRetPop {
			t.Fatalf("%q: Ret pop count = %d, want %d", source, ret.N, wantRetPop)
		}
	}

	t.Run("No free variables", func(t *testing.T) {
		test("(lambda (x y) x)", 2, 0, 2)
	})
	t.Run("One captured let binding", func(t *testing.T) {
		// The lambda sits under one let binding, so its frame snapshot is
		// one slot deep and its Ret drops capture plus argument.
		test("(let ((a 1)) (lambda (x) (+ a x)))", 1, 1, 2)
	})
}

// findRet walks forward from h through single-successor instructions (and
// both Branch arms) until it finds a Ret.
func findRet(graph *bytecode.Graph, h bytecode.Handle) (bytecode.Ret, bool) {
	visited := map[bytecode.Handle]bool{}
	queue := []bytecode.Handle{h}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == bytecode.NoHandle || visited[cur] {
			continue
		}
		visited[cur] = true

		switch instr := graph.At(cur).(type) {
		case bytecode.Ret:
			return instr, true
		case bytecode.Imm:
			queue = append(queue, instr.Next)
		case bytecode.Prim:
			queue = append(queue, instr.Next)
		case bytecode.MemRef:
			queue = append(queue, instr.Next)
		case bytecode.MemSet:
			queue = append(queue, instr.Next)
		case bytecode.Branch:
			queue = append(queue, instr.Then, instr.Else)
		case bytecode.Push:
			queue = append(queue, instr.Next)
		case bytecode.Pop:
			queue = append(queue, instr.Next)
		case bytecode.Closure:
			queue = append(queue, instr.Next)
		case bytecode.Frame:
			queue = append(queue, instr.Next, instr.Ret)
		}
	}
	return bytecode.Ret{}, false
}

// TestCompileApplyGeneralCase covers the general Apply rule: entry is the
// first operand (operands evaluate left to right at runtime), the operator
// compiles last with a Call continuation, and the whole sequence sits under
// a Frame whose Ret is the caller's continuation.
func TestCompileApplyGeneralCase(t *testing.T) {
	graph, entry := compile(t, "((lambda (x) x) 7)")

	frame, ok := graph.At(entry).(bytecode.Frame)
	if !ok {
		t.Fatalf("entry is %T, want Frame", graph.At(entry))
	}
	if _, ok := graph.At(frame.Ret).(bytecode.Halt); !ok {
		t.Fatalf("Frame.Ret is %T, want the Halt continuation", graph.At(frame.Ret))
	}

	arg, ok := graph.At(frame.Next).(bytecode.Imm)
	if !ok {
		t.Fatalf("first thing under the Frame is %T, want Imm (the argument)", graph.At(frame.Next))
	}
	if arg.Value != runtime.EncodeFixnum(7) {
		t.Fatalf("argument Imm = %d, want encoded 7", arg.Value)
	}
	push, ok := graph.At(arg.Next).(bytecode.Push)
	if !ok {
		t.Fatalf("after the argument: %T, want Push", graph.At(arg.Next))
	}
	closure, ok := graph.At(push.Next).(bytecode.Closure)
	if !ok {
		t.Fatalf("after the argument push: %T, want Closure (the operator)", graph.At(push.Next))
	}
	if _, ok := graph.At(closure.Next).(bytecode.Call); !ok {
		t.Fatalf("operator continuation is %T, want Call", graph.At(closure.Next))
	}
}

// TestCompileUnboundVariableFails covers the error path: compiling a Var
// that no frame binds reports UnboundIdentifier at compile time (offsets
// are a compile-time concept for this backend).
func TestCompileUnboundVariableFails(t *testing.T) {
	exprs, err := reader.New().ReadProgram("nowhere")
	if err != nil {
		t.Fatalf("ReadProgram: unexpected error: %s", err)
	}
	graph := bytecode.NewGraph()
	c := compiler.New(graph, runtime.NewHeap())
	if _, err := c.CompileTopLevel(exprs[0], graph.NewHalt()); err == nil {
		t.Fatal("expected an UnboundIdentifier error for an unbound variable")
	}
}

// TestGlobalSlots covers the compiler-owns-offsets contract cmd/scheme and
// pkg/vm build on: BindBuiltin and top-level Define each allocate exactly one
// new slot, re-binding an existing name allocates none.
func TestGlobalSlots(t *testing.T) {
	graph := bytecode.NewGraph()
	c := compiler.New(graph, runtime.NewHeap())

	if got := c.GlobalSlots(); got != 0 {
		t.Fatalf("fresh compiler has %d global slots, want 0", got)
	}

	first := c.BindBuiltin("display")
	if got := c.GlobalSlots(); got != 1 {
		t.Fatalf("after one BindBuiltin: %d slots, want 1", got)
	}
	if again := c.BindBuiltin("display"); again != first {
		t.Fatalf("re-binding display moved it from offset %d to %d", first, again)
	}
	if got := c.GlobalSlots(); got != 1 {
		t.Fatalf("re-binding display grew the slot count to %d", got)
	}

	exprs, err := reader.New().ReadProgram("(define x 1) (define x 2)")
	if err != nil {
		t.Fatalf("ReadProgram: unexpected error: %s", err)
	}
	for _, expr := range exprs {
		if _, err := c.CompileTopLevel(expr, graph.NewHalt()); err != nil {
			t.Fatalf("CompileTopLevel: unexpected error: %s", err)
		}
	}
	if got := c.GlobalSlots(); got != 2 {
		t.Fatalf("after defining x twice: %d slots, want 2 (display plus one x)", got)
	}
}
