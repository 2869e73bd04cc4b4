// Command scheme is the single driver binary: a REPL by default, or one of
// `-e`/`-f`/`-d` for non-interactive use, selecting between the
// tree-walking, bytecode-VM, and native back-ends with `--engine`. One
// cli.App built with cli.New/WithOption, one Handler(args, options) int,
// and `func main() { os.Exit(App.Run(...)) }`.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/teris-io/cli"

	"schemeimpl.dev/scheme/internal/reader"
	"schemeimpl.dev/scheme/pkg/ast"
	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/codegen"
	"schemeimpl.dev/scheme/pkg/compiler"
	bcdump "schemeimpl.dev/scheme/pkg/dump"
	"schemeimpl.dev/scheme/pkg/ir"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/vm"
)

var Description = strings.ReplaceAll(`
A Scheme implementation with three interchangeable back-ends sharing one
reader: a tree-walking interpreter, a bytecode compiler + stack VM, and a
native code generator emitting a low-level register IR. With no flags it
starts a REPL; -e/-f evaluate a whole program read from stdin or a file.
`, "\n", " ")

var SchemeApp = cli.New(Description).
	WithOption(cli.NewOption("engine", "Evaluator back-end: tree, vm, or native").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("e", "Read a program from standard input and evaluate it").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("f", "Read a program from the given file and evaluate it").
		WithType(cli.TypeString)).
	WithOption(cli.NewOption("d", "Dump compiled bytecode instead of running it").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	engineName := options["engine"]
	if engineName == "" {
		engineName = "vm"
	}

	_, dumpMode := options["d"]
	_, evalStdin := options["e"]
	file := options["f"]

	source, err := readSource(file, evalStdin || dumpMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	if source == "" {
		return runREPL(engineName)
	}

	exprs, err := reader.New().ReadProgram(source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	if dumpMode {
		return runDump(exprs)
	}

	if engineName == "native" {
		return runNative(exprs)
	}

	e, err := newEngine(engineName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	for _, expr := range exprs {
		out, err := e.Eval(expr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			return 1
		}
		fmt.Println(out)
	}
	return 0
}

// readSource resolves -f/-e's "read from the file or standard input"
// contract: an explicit file path wins, otherwise stdin is read only when
// the caller asked for whole-program evaluation (-e) or a dump (-d);
// with neither, an empty source falls back to the REPL.
func readSource(file string, wantStdin bool) (string, error) {
	if file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("unable to open input file: %w", err)
		}
		return string(content), nil
	}
	if wantStdin {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read standard input: %w", err)
		}
		return string(content), nil
	}
	return "", nil
}

// runDump wraps the whole program in a single Begin (the dump format is
// defined over one reachable graph from one entry instruction) and prints
// its breadth-first disassembly.
func runDump(exprs []ast.Expr) int {
	graph := bytecode.NewGraph()
	heap := runtime.NewHeap()
	c := compiler.New(graph, heap)
	vm.InstallBuiltins(c, heap)

	entry, err := c.CompileTopLevel(ast.Begin{Exprs: exprs}, graph.NewHalt())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	if err := bcdump.Dump(os.Stdout, graph, heap, entry); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}
	return 0
}

// runNative generates the low-level IR and prints its standard textual
// form, exposing the native back-end from the same driver instead of a
// separate binary. The output is what gets linked against the runtime
// library to produce an executable.
func runNative(exprs []ast.Expr) int {
	module, err := codegen.Generate(exprs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}
	if err := ir.Fprint(os.Stdout, *module); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}
	return 0
}

func main() { os.Exit(SchemeApp.Run(os.Args, os.Stdout)) }
