package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint renders m in its standard textual form: one function per
// top-level/lambda entity, one instruction per line, labels unindented as
// their own line — the same one-line-per-node convention pkg/dump uses for
// bytecode, applied here to a register-based instruction stream instead of
// a linked instruction graph.
func Fprint(w io.Writer, m Module) error {
	for _, fn := range m.Functions {
		if err := fprintFunction(w, fn); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "main: %s\n", m.Main)
	return err
}

func fprintFunction(w io.Writer, fn Function) error {
	if _, err := fmt.Fprintf(w, "function %s(%s) captures=%d {\n", fn.Name, strings.Join(fn.Params, ", "), fn.NumCaptured); err != nil {
		return err
	}
	for _, instr := range fn.Body {
		line := formatInstr(instr)
		if _, isLabel := instr.(Label); isLabel {
			if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func formatInstr(instr Instr) string {
	switch i := instr.(type) {
	case Label:
		return i.Name + ":"
	case LoadImm:
		return fmt.Sprintf("r%d = imm %d", i.Dst, i.Value)
	case LoadSymbol:
		return fmt.Sprintf("r%d = symbol %q", i.Dst, i.Name)
	case LoadGlobal:
		return fmt.Sprintf("r%d = load_global %s", i.Dst, i.Name)
	case StoreGlobal:
		return fmt.Sprintf("store_global %s, r%d", i.Name, i.Src)
	case LoadLocal:
		return fmt.Sprintf("r%d = load_local %d", i.Dst, i.Slot)
	case StoreLocal:
		return fmt.Sprintf("store_local %d, r%d", i.Slot, i.Src)
	case LoadCaptured:
		return fmt.Sprintf("r%d = load_captured r%d[%d]", i.Dst, i.Env, i.Index)
	case MakeBox:
		return fmt.Sprintf("r%d = make_box r%d", i.Dst, i.Init)
	case LoadBox:
		return fmt.Sprintf("r%d = load_box r%d", i.Dst, i.Box)
	case StoreBox:
		return fmt.Sprintf("store_box r%d, r%d", i.Box, i.Src)
	case Prim:
		return fmt.Sprintf("r%d = %s r%d, r%d", i.Dst, i.Op, i.A, i.B)
	case MakeClosure:
		return fmt.Sprintf("r%d = make_closure %s(%s)", i.Dst, i.Entry, formatRegs(i.Captured))
	case Call:
		return fmt.Sprintf("r%d = call r%d(%s)", i.Dst, i.Callee, formatRegs(i.Args))
	case CallRuntime:
		return fmt.Sprintf("r%d = call_runtime %s(%s)", i.Dst, i.Name, formatRegs(i.Args))
	case Move:
		return fmt.Sprintf("r%d = r%d", i.Dst, i.Src)
	case Branch:
		return fmt.Sprintf("branch r%d, %s, %s", i.Cond, i.Then, i.Else)
	case Jump:
		return fmt.Sprintf("jump %s", i.Target)
	case Ret:
		return fmt.Sprintf("ret r%d", i.Src)
	default:
		return fmt.Sprintf("<unknown %T>", instr)
	}
}

func formatRegs(regs []Reg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = fmt.Sprintf("r%d", r)
	}
	return strings.Join(parts, ", ")
}
