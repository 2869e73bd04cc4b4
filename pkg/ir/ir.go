// Package ir defines the low-level intermediate representation pkg/codegen
// targets: virtual registers, explicit labeled blocks, and one instruction
// per primitive operation — an LLVM-shaped IR reduced to exactly the
// operations a tagged-Value Scheme needs. An Instr sum type plus a flat
// Module/Function container; pkg/codegen produces it, the printer in this
// package renders it.
package ir

import "schemeimpl.dev/scheme/pkg/bytecode"

// Reg is a virtual register: an infinite, function-scoped name for one
// tagged Value. Unlike real LLVM registers this IR does not enforce static
// single assignment — a Reg may be written more than once within a
// Function.
type Reg int

// Instr is any one IR operation. Just used to put together every
// instruction shape in the same datatype.
type Instr interface{ isInstr() }

// Label marks a jump target; it carries no operation of its own.
type Label struct{ Name string }

// LoadImm materializes a tagged immediate (produced by pkg/runtime's
// Encode* functions or one of its immediate constants) into Dst. Hoisted
// quoted data is read with LoadGlobal instead.
type LoadImm struct {
	Dst   Reg
	Value uint64
}

// LoadSymbol materializes the interned symbol named Name — the native
// counterpart of runtime.Heap.Intern, used only while building a hoisted
// quoted datum (quoted symbols never appear as a plain LoadImm since
// interning requires the runtime's symbol table, not just a bit pattern).
type LoadSymbol struct {
	Dst  Reg
	Name string
}

// LoadGlobal/StoreGlobal access a top-level binding by its mangled name —
// native codegen's counterpart to the bytecode VM's negative-offset
// Globals array.
type LoadGlobal struct {
	Dst  Reg
	Name string
}

type StoreGlobal struct {
	Name string
	Src  Reg
}

// LoadLocal/StoreLocal access a stack-allocated local slot (a lambda
// parameter or a Let/LetRec binding). For a boxed binding the slot holds
// the box handle, read and written through LoadBox/StoreBox.
type LoadLocal struct {
	Dst  Reg
	Slot int
}

type StoreLocal struct {
	Slot int
	Src  Reg
}

// LoadCaptured reads free-variable Index out of the closure environment
// Env points at — the precise, FreeVars-driven counterpart of the bytecode
// VM's whole-frame snapshot. Native codegen captures exactly the free
// variables a lambda uses, not the entire enclosing frame, since a native
// closure has no BP-relative stack to splice into.
type LoadCaptured struct {
	Dst   Reg
	Env   Reg
	Index int
}

// MakeBox/LoadBox/StoreBox implement real heap-allocated mutable cells for
// every name pkg/passes.CollectAssign reports as assigned — the same
// assignment conversion the bytecode compiler performs through the box
// built-ins, expressed here as direct instructions. A captured, assigned
// variable is always boxed, so every closure over it shares the same cell.
type MakeBox struct {
	Dst  Reg
	Init Reg
}

type LoadBox struct {
	Dst Reg
	Box Reg
}

type StoreBox struct {
	Box Reg
	Src Reg
}

// Prim evaluates a binary primitive op (the same vocabulary pkg/bytecode
// uses) directly on two tagged Values, producing Dst.
type Prim struct {
	Dst Reg
	Op  bytecode.Op
	A   Reg
	B   Reg
}

// MakeClosure allocates a closure object pointing at the mangled Entry
// function, with Captured holding exactly the registers FreeVars
// identified (each already boxed if CollectAssign flagged it).
type MakeClosure struct {
	Dst      Reg
	Entry    string
	Captured []Reg
}

// Call invokes a closure value (Callee) with Args, indirectly through its
// entry pointer — used for applying a Var/Lambda-valued operator.
type Call struct {
	Dst    Reg
	Callee Reg
	Args   []Reg
}

// CallRuntime invokes one of pkg/runtime/library.go's functions directly
// by name — used for built-ins in call position, which never go through a
// heap-allocated closure the way the bytecode VM's do. The VM represents
// built-ins as native closures because it has no direct-call instruction;
// native codegen has one, so it uses it.
type CallRuntime struct {
	Dst  Reg
	Name string
	Args []Reg
}

// Move copies one register to another — emitted sparingly, mostly to merge
// the two arms of an If into a single Dst register after the join label.
type Move struct {
	Dst Reg
	Src Reg
}

// Branch dispatches to Then or Else based on Cond's truthiness.
type Branch struct {
	Cond Reg
	Then string
	Else string
}

// Jump transfers control unconditionally to Target.
type Jump struct{ Target string }

// Ret returns Src as the enclosing Function's result.
type Ret struct{ Src Reg }

func (Label) isInstr()        {}
func (LoadImm) isInstr()      {}
func (LoadSymbol) isInstr()   {}
func (LoadGlobal) isInstr()   {}
func (StoreGlobal) isInstr()  {}
func (LoadLocal) isInstr()    {}
func (StoreLocal) isInstr()   {}
func (LoadCaptured) isInstr() {}
func (MakeBox) isInstr()      {}
func (LoadBox) isInstr()      {}
func (StoreBox) isInstr()     {}
func (Prim) isInstr()         {}
func (MakeClosure) isInstr()  {}
func (Call) isInstr()         {}
func (CallRuntime) isInstr()  {}
func (Move) isInstr()         {}
func (Branch) isInstr()       {}
func (Jump) isInstr()         {}
func (Ret) isInstr()          {}

// Function is one native procedure: its mangled Name, the slot count its
// Params occupy (always 0..len(Params)-1, matching pkg/compiler's own
// ascending-offset convention for the bytecode backend), how many free
// variables it captures (just the count — Body's LoadCaptured instructions
// carry the actual indices), and its linear instruction stream.
type Function struct {
	Name        string
	Params      []string
	NumCaptured int
	Body        []Instr
}

// Module is one compiled program: every Function emitted (one per Lambda,
// one trampoline per built-in, and the synthesized main function), and Main,
// the mangled name of the function that runs the program's top-level forms
// in sequence.
type Module struct {
	Functions []Function
	Main      string
}
