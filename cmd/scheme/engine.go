package main

import (
	"fmt"

	"schemeimpl.dev/scheme/pkg/ast"
	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/compiler"
	"schemeimpl.dev/scheme/pkg/interp"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/value"
	"schemeimpl.dev/scheme/pkg/vm"
)

// engine evaluates one already-read top-level form and renders its result
// the way the REPL/-e/-f modes print it: one pretty-printed line per form.
// --engine selects the implementation (the native back-end has no runtime
// loop to drive a REPL with — see runNative in main.go).
type engine interface {
	Eval(expr ast.Expr) (string, error)
}

func newEngine(name string) (engine, error) {
	switch name {
	case "tree":
		return &treeEngine{Top: interp.NewTopLevel()}, nil
	case "vm":
		return newVMEngine(), nil
	default:
		return nil, fmt.Errorf("unknown --engine %q (want tree, vm, or native)", name)
	}
}

// treeEngine runs every form through pkg/interp directly against a single
// persistent top-level environment: Define installs new bindings into this
// same frame across calls, so later forms see earlier definitions.
type treeEngine struct {
	Top *value.Env
}

func (e *treeEngine) Eval(expr ast.Expr) (string, error) {
	v, err := interp.Eval(expr, e.Top)
	if err != nil {
		return "", err
	}
	return value.Display(v), nil
}

// vmEngine compiles each form against one persistent Compiler/Machine pair:
// the heap, global frame, and value stack all persist across top-level
// forms, matching treeEngine's persistence — globally installed definitions
// survive a later form's error.
type vmEngine struct {
	Graph    *bytecode.Graph
	Heap     *runtime.Heap
	Compiler *compiler.Compiler
	Machine  *vm.Machine
}

func newVMEngine() *vmEngine {
	graph := bytecode.NewGraph()
	heap := runtime.NewHeap()
	c := compiler.New(graph, heap)
	globals := vm.InstallBuiltins(c, heap)

	m := vm.NewMachine(graph, heap, c.GlobalSlots())
	copy(m.Globals, globals)

	return &vmEngine{Graph: graph, Heap: heap, Compiler: c, Machine: m}
}

func (e *vmEngine) Eval(expr ast.Expr) (string, error) {
	entry, err := e.Compiler.CompileTopLevel(expr, e.Graph.NewHalt())
	if err != nil {
		return "", err
	}
	e.growGlobals()

	result, err := e.Machine.Run(entry)
	if err != nil {
		return "", err
	}
	return e.Heap.Display(result), nil
}

// growGlobals extends Machine.Globals to match however many slots
// Compiler.CompileTopLevel has allocated so far (a top-level Define may
// have grown it during the call just made); new slots start Void, same as
// any other never-yet-assigned global.
func (e *vmEngine) growGlobals() {
	want := e.Compiler.GlobalSlots()
	for len(e.Machine.Globals) < want {
		e.Machine.Globals = append(e.Machine.Globals, runtime.Void)
	}
}
