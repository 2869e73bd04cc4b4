package dump_test

import (
	"strings"
	"testing"

	"schemeimpl.dev/scheme/internal/reader"
	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/compiler"
	"schemeimpl.dev/scheme/pkg/dump"
	"schemeimpl.dev/scheme/pkg/runtime"
	"schemeimpl.dev/scheme/pkg/vm"
)

func dumpSource(t *testing.T, source string) string {
	t.Helper()
	exprs, err := reader.New().ReadProgram(source)
	if err != nil {
		t.Fatalf("ReadProgram(%q): unexpected error: %s", source, err)
	}
	graph := bytecode.NewGraph()
	heap := runtime.NewHeap()
	c := compiler.New(graph, heap)
	vm.InstallBuiltins(c, heap)

	entry, err := c.CompileTopLevel(exprs[0], graph.NewHalt())
	if err != nil {
		t.Fatalf("CompileTopLevel(%q): unexpected error: %s", source, err)
	}

	var b strings.Builder
	if err := dump.Dump(&b, graph, heap, entry); err != nil {
		t.Fatalf("Dump(%q): unexpected error: %s", source, err)
	}
	return b.String()
}

// TestDumpLinearBlock covers the plain case: an arithmetic expression
// disassembles to a single straight-line block ending in halt, each line
// addressed by its handle and tab-separated from its mnemonic.
func TestDumpLinearBlock(t *testing.T) {
	out := dumpSource(t, "(+ 1 2)")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) == 0 {
		t.Fatal("expected at least one disassembled line")
	}
	if !strings.Contains(out, "imm\t1") || !strings.Contains(out, "imm\t2") {
		t.Fatalf("expected two immediate loads for 1 and 2, got:\n%s", out)
	}
	if !strings.Contains(out, "add") {
		t.Fatalf("expected an add mnemonic, got:\n%s", out)
	}
	if !strings.HasSuffix(strings.TrimRight(out, "\n"), "halt") {
		t.Fatalf("expected the block to end in halt, got:\n%s", out)
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if !strings.Contains(line, ":\t") {
			t.Fatalf("line %q is not of the form addr:\\tmnemonic", line)
		}
	}
}

// TestDumpBranchSplitsIntoTwoBlocks covers the branch-point splitting
// rule: an if compiles to a branch instruction whose two successors
// (Then/Else) are each their own blank-line-separated block.
func TestDumpBranchSplitsIntoTwoBlocks(t *testing.T) {
	out := dumpSource(t, "(if #t 1 2)")
	if !strings.Contains(out, "branch\t") {
		t.Fatalf("expected a branch instruction, got:\n%s", out)
	}
	blocks := strings.Split(strings.TrimRight(out, "\n"), "\n\n")
	if len(blocks) < 3 {
		t.Fatalf("expected at least 3 blocks (cond, then, else), got %d:\n%s", len(blocks), out)
	}
}

// TestDumpReachesClosureCodeAndFrameReturn pins the two non-Next successors
// the traversal must follow: a lambda's code block (reached via the closure
// instruction's code operand) and the instruction a call returns to
// (reached via frame's saved address). Without either, an application's
// disassembly would silently omit the callee body and the post-call halt.
func TestDumpReachesClosureCodeAndFrameReturn(t *testing.T) {
	out := dumpSource(t, "((lambda (x) x) 7)")
	for _, mnemonic := range []string{"frame", "closure", "jmp", "mread", "ret", "halt"} {
		if !strings.Contains(out, mnemonic) {
			t.Fatalf("disassembly is missing %q:\n%s", mnemonic, out)
		}
	}
}
