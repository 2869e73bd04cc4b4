package ir_test

import (
	"strings"
	"testing"

	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/ir"
)

// TestFprintFunction covers the textual form one Function renders to: a
// header line with params and capture count, two-space indented instructions,
// labels flush left, and a closing brace — the "standard textual form" the
// native back-end prints to stdout.
func TestFprintFunction(t *testing.T) {
	module := ir.Module{
		Main: "main",
		Functions: []ir.Function{
			{
				Name:        "lambda_1",
				Params:      []string{"n"},
				NumCaptured: 1,
				Body: []ir.Instr{
					ir.LoadLocal{Dst: 0, Slot: 0},
					ir.LoadImm{Dst: 1, Value: 8},
					ir.Prim{Dst: 2, Op: bytecode.Lt, A: 0, B: 1},
					ir.Branch{Cond: 2, Then: "then_0", Else: "else_0"},
					ir.Label{Name: "then_0"},
					ir.Move{Dst: 3, Src: 0},
					ir.Jump{Target: "ifcont_0"},
					ir.Label{Name: "else_0"},
					ir.Move{Dst: 3, Src: 1},
					ir.Jump{Target: "ifcont_0"},
					ir.Label{Name: "ifcont_0"},
					ir.Ret{Src: 3},
				},
			},
			{
				Name: "main",
				Body: []ir.Instr{
					ir.MakeClosure{Dst: 0, Entry: "lambda_1", Captured: []ir.Reg{1}},
					ir.Call{Dst: 2, Callee: 0, Args: []ir.Reg{1}},
					ir.CallRuntime{Dst: 3, Name: "display", Args: []ir.Reg{2}},
					ir.Ret{Src: 3},
				},
			},
		},
	}

	var b strings.Builder
	if err := ir.Fprint(&b, module); err != nil {
		t.Fatalf("Fprint: unexpected error: %s", err)
	}
	out := b.String()

	test := func(want string) {
		if !strings.Contains(out, want) {
			t.Fatalf("output is missing %q:\n%s", want, out)
		}
	}
	test("function lambda_1(n) captures=1 {\n")
	test("function main() captures=0 {\n")
	test("  r0 = load_local 0\n")
	test("  r1 = imm 8\n")
	test("  r2 = lt r0, r1\n")
	test("  branch r2, then_0, else_0\n")
	test("then_0:\n") // labels are flush left, everything else is indented
	test("  r3 = r0\n")
	test("  jump ifcont_0\n")
	test("  r0 = make_closure lambda_1(r1)\n")
	test("  r2 = call r0(r1)\n")
	test("  r3 = call_runtime display(r2)\n")
	test("  ret r3\n")

	if !strings.HasSuffix(strings.TrimRight(out, "\n"), "main: main") {
		t.Fatalf("output does not end with the main sentinel line:\n%s", out)
	}
	if strings.Contains(out, "  then_0:") {
		t.Fatalf("label was indented like an instruction:\n%s", out)
	}
}

// TestFprintBoxAndGlobalInstructions covers the remaining instruction
// spellings (box cells, globals, symbols) the function above doesn't reach.
func TestFprintBoxAndGlobalInstructions(t *testing.T) {
	module := ir.Module{
		Main: "main",
		Functions: []ir.Function{
			{
				Name: "main",
				Body: []ir.Instr{
					ir.LoadSymbol{Dst: 0, Name: "tag"},
					ir.MakeBox{Dst: 1, Init: 0},
					ir.LoadBox{Dst: 2, Box: 1},
					ir.StoreBox{Box: 1, Src: 2},
					ir.StoreGlobal{Name: "counter_33_", Src: 1},
					ir.LoadGlobal{Dst: 3, Name: "counter_33_"},
					ir.LoadCaptured{Dst: 4, Env: 3, Index: 2},
					ir.StoreLocal{Slot: 0, Src: 4},
					ir.Ret{Src: 4},
				},
			},
		},
	}

	var b strings.Builder
	if err := ir.Fprint(&b, module); err != nil {
		t.Fatalf("Fprint: unexpected error: %s", err)
	}
	out := b.String()

	test := func(want string) {
		if !strings.Contains(out, want) {
			t.Fatalf("output is missing %q:\n%s", want, out)
		}
	}
	test(`r0 = symbol "tag"`)
	test("r1 = make_box r0")
	test("r2 = load_box r1")
	test("store_box r1, r2")
	test("store_global counter_33_, r1")
	test("r3 = load_global counter_33_")
	test("r4 = load_captured r3[2]")
	test("store_local 0, r4")
}
