// Package vm implements the stack machine the bytecode compiler targets:
// an ACC/IP/BP register file, a value stack, and a dispatch loop walking a
// pkg/bytecode.Graph one instruction at a time — a struct holding the
// machine state plus one handler method per instruction variant, switched
// over in a single dispatch method.
package vm

import (
	"fmt"

	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/scmerr"
	"schemeimpl.dev/scheme/pkg/utils"
)

// Machine is one stack-machine instance: a bytecode graph, the heap backing
// every non-immediate Value it manipulates, the ACC/IP/BP register file,
// and the three stacks the Call/Frame/Ret protocol needs (value stack,
// saved-BP stack, return-address stack). Mutation of
// captured variables needs no machinery here: pkg/compiler boxes every
// binding a closure could observe mutating, so the frame snapshots Closure
// takes share the mutable cell by handle.
type Machine struct {
	Graph *bytecode.Graph
	Heap  *runtime.Heap

	// Globals holds every top-level binding (built-ins and top-level
	// Defines alike), addressed by negative MemRef/MemSet offsets.
	// Index i corresponds to offset -(i+1).
	Globals []runtime.Value

	ACC runtime.Value
	IP  bytecode.Handle
	BP  int

	stack    []runtime.Value
	savedBP  utils.Stack[int]
	retAddrs utils.Stack[bytecode.Handle]
}

// NewMachine builds a Machine over graph/heap with globalSlots pre-sized
// Globals entries (see pkg/compiler.Compiler.GlobalSlots). The caller
// populates Globals before the first Run — typically via
// pkg/vm.InstallBuiltins followed by running every top-level Define form in
// sequence (cmd/scheme does both).
func NewMachine(graph *bytecode.Graph, heap *runtime.Heap, globalSlots int) *Machine {
	return &Machine{
		Graph:   graph,
		Heap:    heap,
		Globals: make([]runtime.Value, globalSlots),
	}
}

// globalIndex converts a compiler-assigned negative global offset into a
// Globals slice index.
func globalIndex(offset int) int { return -(offset + 1) }

// Run executes the graph starting at entry until a Halt instruction is
// reached, returning the final ACC. Top-level forms are each compiled with
// a Halt continuation (see cmd/scheme), so one Run call corresponds to one
// top-level form's evaluation; Globals and the Heap persist across calls.
func (m *Machine) Run(entry bytecode.Handle) (runtime.Value, error) {
	m.IP = entry
	for {
		halted, err := m.step()
		if err != nil {
			return 0, err
		}
		if halted {
			return m.ACC, nil
		}
	}
}

// step executes the instruction at IP, advancing IP (or leaving it set by
// a Branch/Call/Ret), and reports whether a Halt was reached.
func (m *Machine) step() (halted bool, err error) {
	switch instr := m.Graph.At(m.IP).(type) {
	case bytecode.Halt:
		return true, nil
	case bytecode.Imm:
		return false, m.execImm(instr)
	case bytecode.Prim:
		return false, m.execPrim(instr)
	case bytecode.MemRef:
		return false, m.execMemRef(instr)
	case bytecode.MemSet:
		return false, m.execMemSet(instr)
	case bytecode.Branch:
		return false, m.execBranch(instr)
	case bytecode.Push:
		return false, m.execPush(instr)
	case bytecode.Pop:
		return false, m.execPop(instr)
	case bytecode.Closure:
		return false, m.execClosure(instr)
	case bytecode.Frame:
		return false, m.execFrame(instr)
	case bytecode.Call:
		return false, m.execCall()
	case bytecode.Ret:
		return false, m.execRet(instr)
	default:
		return false, scmerr.New(scmerr.InternalError, "unhandled instruction %T", instr)
	}
}

func (m *Machine) execImm(i bytecode.Imm) error {
	m.ACC = i.Value
	m.IP = i.Next
	return nil
}

func (m *Machine) execPrim(i bytecode.Prim) error {
	if len(m.stack) < 2 {
		return scmerr.New(scmerr.InternalError, "prim %s: value stack underflow", i.Op)
	}
	a, b := m.stack[len(m.stack)-2], m.stack[len(m.stack)-1]
	result, err := evalPrim(i.Op, a, b)
	if err != nil {
		return err
	}
	m.ACC = result
	m.IP = i.Next
	return nil
}

func (m *Machine) execMemRef(i bytecode.MemRef) error {
	if i.Offset < 0 {
		idx := globalIndex(i.Offset)
		if idx < 0 || idx >= len(m.Globals) {
			return scmerr.New(scmerr.InternalError, "global offset %d out of range", i.Offset)
		}
		m.ACC = m.Globals[idx]
	} else {
		slot := m.BP + i.Offset
		if slot < 0 || slot >= len(m.stack) {
			return scmerr.New(scmerr.InternalError, "local offset %d out of range (BP=%d, stack=%d)", i.Offset, m.BP, len(m.stack))
		}
		m.ACC = m.stack[slot]
	}
	m.IP = i.Next
	return nil
}

func (m *Machine) execMemSet(i bytecode.MemSet) error {
	if i.Offset < 0 {
		idx := globalIndex(i.Offset)
		if idx >= len(m.Globals) {
			grown := make([]runtime.Value, idx+1)
			copy(grown, m.Globals)
			m.Globals = grown
		}
		m.Globals[idx] = m.ACC
	} else {
		slot := m.BP + i.Offset
		if slot < 0 || slot >= len(m.stack) {
			return scmerr.New(scmerr.InternalError, "local offset %d out of range (BP=%d, stack=%d)", i.Offset, m.BP, len(m.stack))
		}
		m.stack[slot] = m.ACC
	}
	m.IP = i.Next
	return nil
}

// execBranch requires ACC to hold a Boolean, the same way Prim requires
// fixnum operands and Call requires a Closure; the tree evaluator's looser
// any-value-but-#f-is-true rule applies to source-level if, not to this
// instruction's contract.
func (m *Machine) execBranch(i bytecode.Branch) error {
	if !runtime.IsBoolean(m.ACC) {
		return scmerr.New(scmerr.TypeError, "branch: predicate is not a boolean")
	}
	if runtime.DecodeBoolean(m.ACC) {
		m.IP = i.Then
	} else {
		m.IP = i.Else
	}
	return nil
}

func (m *Machine) execPush(i bytecode.Push) error {
	m.stack = append(m.stack, m.ACC)
	m.IP = i.Next
	return nil
}

func (m *Machine) execPop(i bytecode.Pop) error {
	if i.N > len(m.stack) {
		return scmerr.New(scmerr.InternalError, "pop %d exceeds stack size %d", i.N, len(m.stack))
	}
	m.stack = m.stack[:len(m.stack)-i.N]
	m.IP = i.Next
	return nil
}

// execClosure allocates a heap ClosureObj snapshotting the bottom
// FrameSize slots of the current frame (stack[BP:BP+FrameSize]) into
// Captured — whole-frame capture, so enclosing-scope offsets stay valid
// inside the body unchanged. Arity is baked into the instruction at
// compile time; an earlier version of this method tried to recover it by
// scanning forward from Code to the lambda's Ret instead, which breaks for
// tail-recursive bodies (the Ret is reachable only through a Frame's Ret
// field, not its Next), so the compiler now just tells the VM directly.
func (m *Machine) execClosure(i bytecode.Closure) error {
	captured := make([]runtime.Value, i.FrameSize)
	copy(captured, m.stack[m.BP:m.BP+i.FrameSize])

	m.ACC = m.Heap.NewClosure(runtime.ClosureObj{
		Arity:    i.Arity,
		Entry:    int(i.Code),
		Captured: captured,
	})
	m.IP = i.Next
	return nil
}

func (m *Machine) execFrame(i bytecode.Frame) error {
	m.savedBP.Push(m.BP)
	m.retAddrs.Push(i.Ret)
	m.IP = i.Next
	return nil
}

// execCall requires ACC to hold a Closure. A native (built-in) closure is
// invoked immediately, in place, without disturbing BP — the Frame that
// preceded this Call pushed state that no matching Ret will ever run, so
// that state is unwound here instead. A user-defined closure instead
// splices its Captured frame under the already-pushed arguments and
// transfers control to its entry point.
func (m *Machine) execCall() error {
	if runtime.IsUndefined(m.ACC) {
		return scmerr.New(scmerr.UnboundIdentifier, "referenced a letrec binding before it was initialized")
	}
	closureObj, err := m.Heap.Closure(m.ACC)
	if err != nil {
		return scmerr.Wrap(scmerr.TypeError, err, "call: ACC is not a procedure")
	}

	if closureObj.Native != nil {
		return m.execNativeCall(closureObj)
	}

	arity := closureObj.Arity
	if len(m.stack) < arity {
		return scmerr.New(scmerr.ArityError, "call: expected %d arguments, stack has %d", arity, len(m.stack))
	}
	argsBase := len(m.stack) - arity

	spliced := make([]runtime.Value, 0, len(closureObj.Captured)+len(m.stack)-argsBase)
	spliced = append(spliced, closureObj.Captured...)
	spliced = append(spliced, m.stack[argsBase:]...)
	m.stack = append(m.stack[:argsBase], spliced...)

	m.BP = argsBase
	m.IP = bytecode.Handle(closureObj.Entry)
	return nil
}

func (m *Machine) execNativeCall(closureObj *runtime.ClosureObj) error {
	arity := closureObj.Arity
	if len(m.stack) < arity {
		return scmerr.New(scmerr.ArityError, "call: expected %d arguments, stack has %d", arity, len(m.stack))
	}
	args := make([]runtime.Value, arity)
	copy(args, m.stack[len(m.stack)-arity:])
	m.stack = m.stack[:len(m.stack)-arity]

	result, err := closureObj.Native(m.Heap, args)
	if err != nil {
		return err
	}
	m.ACC = result

	bp, err := m.savedBP.Pop()
	if err != nil {
		return scmerr.Wrap(scmerr.InternalError, err, "call: saved-BP stack underflow")
	}
	ret, err := m.retAddrs.Pop()
	if err != nil {
		return scmerr.Wrap(scmerr.InternalError, err, "call: return-address stack underflow")
	}
	m.BP = bp
	m.IP = ret
	return nil
}

func (m *Machine) execRet(i bytecode.Ret) error {
	if i.N > len(m.stack) {
		return scmerr.New(scmerr.InternalError, "ret %d exceeds stack size %d", i.N, len(m.stack))
	}
	m.stack = m.stack[:len(m.stack)-i.N]

	bp, err := m.savedBP.Pop()
	if err != nil {
		return scmerr.Wrap(scmerr.InternalError, err, "ret: saved-BP stack underflow")
	}
	ret, err := m.retAddrs.Pop()
	if err != nil {
		return scmerr.Wrap(scmerr.InternalError, err, "ret: return-address stack underflow")
	}
	m.BP = bp
	m.IP = ret
	return nil
}

func evalPrim(op bytecode.Op, a, b runtime.Value) (runtime.Value, error) {
	if op == bytecode.Add || op == bytecode.Sub || op == bytecode.Mul || op == bytecode.Div || op == bytecode.Mod ||
		op == bytecode.Lt || op == bytecode.Le || op == bytecode.Eq || op == bytecode.Gt || op == bytecode.Ge || op == bytecode.Neq {
		if !runtime.IsFixnum(a) || !runtime.IsFixnum(b) {
			return 0, scmerr.New(scmerr.TypeError, "prim %s: expected two fixnums", op)
		}
	}

	x, y := runtime.DecodeFixnum(a), runtime.DecodeFixnum(b)
	switch op {
	case bytecode.Add:
		return runtime.EncodeFixnum(x + y), nil
	case bytecode.Sub:
		return runtime.EncodeFixnum(x - y), nil
	case bytecode.Mul:
		return runtime.EncodeFixnum(x * y), nil
	case bytecode.Div:
		if y == 0 {
			return 0, scmerr.New(scmerr.InternalError, "division by zero")
		}
		return runtime.EncodeFixnum(x / y), nil
	case bytecode.Mod:
		if y == 0 {
			return 0, scmerr.New(scmerr.InternalError, "modulo by zero")
		}
		return runtime.EncodeFixnum(x % y), nil
	case bytecode.Lt:
		return runtime.EncodeBoolean(x < y), nil
	case bytecode.Le:
		return runtime.EncodeBoolean(x <= y), nil
	case bytecode.Eq:
		return runtime.EncodeBoolean(x == y), nil
	case bytecode.Gt:
		return runtime.EncodeBoolean(x > y), nil
	case bytecode.Ge:
		return runtime.EncodeBoolean(x >= y), nil
	case bytecode.Neq:
		return runtime.EncodeBoolean(x != y), nil
	default:
		return 0, scmerr.New(scmerr.InternalError, "unknown prim op %q", fmt.Sprint(op))
	}
}
