// Package dump implements the bytecode disassembler: a breadth-first walk
// of a bytecode.Graph starting at its entry Handle, printing one line per
// reachable instruction, grouped into blank-line separated blocks at every
// branch point. The graph shares continuations at every if-join, so the
// walk carries a visited-set to emit each block exactly once.
package dump

import (
	"fmt"
	"io"

	"schemeimpl.dev/scheme/pkg/bytecode"
	"schemeimpl.dev/scheme/pkg/runtime"
)

// Dump writes the textual disassembly of every instruction reachable from
// entry to w, in breadth-first order. heap resolves Imm operands that point
// at compile-time-allocated compound data (quoted pairs/vectors/symbols);
// it may be nil for graphs that only ever hold fixnum/boolean immediates.
func Dump(w io.Writer, graph *bytecode.Graph, heap *runtime.Heap, entry bytecode.Handle) error {
	visited := make(map[bytecode.Handle]bool)
	queue := []bytecode.Handle{entry}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == bytecode.NoHandle || visited[h] {
			continue
		}

		block, next := block(graph, h, visited)
		for _, addr := range block {
			if err := writeLine(w, graph, heap, addr); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		queue = append(queue, next...)
	}
	return nil
}

// block collects every instruction starting at h that falls through
// linearly (Next-chained), stopping at the first branch/terminal
// instruction, and returns the successors still to be visited. A Closure's
// code entry and a Frame's return target are successors too — they are
// where control goes at Call/Ret time, so their blocks are reachable even
// though neither is the instruction's own Next.
func block(graph *bytecode.Graph, h bytecode.Handle, visited map[bytecode.Handle]bool) ([]bytecode.Handle, []bytecode.Handle) {
	var addrs, next []bytecode.Handle
	for h != bytecode.NoHandle && !visited[h] {
		visited[h] = true
		addrs = append(addrs, h)

		switch instr := graph.At(h).(type) {
		case bytecode.Branch:
			return addrs, append(next, instr.Then, instr.Else)
		case bytecode.Halt, bytecode.Call, bytecode.Ret:
			return addrs, next
		case bytecode.Imm:
			h = instr.Next
		case bytecode.Prim:
			h = instr.Next
		case bytecode.MemRef:
			h = instr.Next
		case bytecode.MemSet:
			h = instr.Next
		case bytecode.Push:
			h = instr.Next
		case bytecode.Pop:
			h = instr.Next
		case bytecode.Closure:
			next = append(next, instr.Code)
			h = instr.Next
		case bytecode.Frame:
			next = append(next, instr.Ret)
			h = instr.Next
		default:
			return addrs, next
		}
	}
	return addrs, next
}

// primMnemonics maps bytecode.Op to its printed mnemonic.
var primMnemonics = map[bytecode.Op]string{
	bytecode.Add: "add", bytecode.Sub: "sub", bytecode.Mul: "mul",
	bytecode.Div: "div", bytecode.Mod: "mod",
	bytecode.Lt: "lt", bytecode.Le: "le", bytecode.Eq: "eq",
	bytecode.Gt: "gt", bytecode.Ge: "ge", bytecode.Neq: "neq",
}

func writeLine(w io.Writer, graph *bytecode.Graph, heap *runtime.Heap, h bytecode.Handle) error {
	var line string
	switch instr := graph.At(h).(type) {
	case bytecode.Halt:
		line = "halt"
	case bytecode.Imm:
		line = fmt.Sprintf("imm\t%s", formatValue(heap, instr.Value))
	case bytecode.Prim:
		line = primMnemonics[instr.Op]
	case bytecode.MemRef:
		line = fmt.Sprintf("mread\t%d", instr.Offset)
	case bytecode.MemSet:
		line = fmt.Sprintf("mset\t%d", instr.Offset)
	case bytecode.Branch:
		line = fmt.Sprintf("branch\t%d %d", instr.Then, instr.Else)
	case bytecode.Push:
		line = "push"
	case bytecode.Pop:
		line = fmt.Sprintf("pop\t%d", instr.N)
	case bytecode.Closure:
		line = fmt.Sprintf("closure\t%d %d %d", instr.Code, instr.FrameSize, instr.Arity)
	case bytecode.Frame:
		line = fmt.Sprintf("frame\t%d", instr.Ret)
	case bytecode.Call:
		// The printed mnemonic is jmp: by the time this instruction runs,
		// the frame bookkeeping already happened, so it is a plain jump
		// into the closure held in the accumulator.
		line = "jmp"
	case bytecode.Ret:
		line = fmt.Sprintf("ret\t%d", instr.N)
	default:
		line = fmt.Sprintf("<unknown %T>", instr)
	}

	_, err := fmt.Fprintf(w, "%d:\t%s\n", h, line)
	return err
}

func formatValue(heap *runtime.Heap, v runtime.Value) string {
	if heap == nil {
		return fmt.Sprintf("%d", v)
	}
	return heap.Display(v)
}
