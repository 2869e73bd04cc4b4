package runtime

import (
	"fmt"
	"strings"
)

// Display renders a tagged Value exactly like pkg/value.Display renders the
// tree evaluator's Value: no leading quote mark on the outermost call, the
// 'datum punctuation preserved on nested pairs/vectors/boxes/symbols.
func (h *Heap) Display(v Value) string {
	return h.display(v, true)
}

func (h *Heap) display(v Value, top bool) string {
	switch {
	case IsFixnum(v):
		return fmt.Sprintf("%d", DecodeFixnum(v))
	case IsBoolean(v):
		if DecodeBoolean(v) {
			return "#t"
		}
		return "#f"
	case IsNil(v):
		return "()"
	case IsVoid(v):
		return "#void"
	case IsUndefined(v):
		return "#<undefined>"
	case IsSymbol(v):
		name, _ := h.SymbolName(v)
		if top {
			return name
		}
		return "'" + name
	case IsPair(v):
		var b strings.Builder
		if !top {
			b.WriteString("'")
		}
		b.WriteString("(")
		cur, first := v, true
		for IsPair(cur) {
			car, cdr, _ := h.Pair(cur)
			if !first {
				b.WriteString(" ")
			}
			b.WriteString(h.display(car, false))
			first = false
			cur = cdr
		}
		if !IsNil(cur) {
			b.WriteString(" . ")
			b.WriteString(h.display(cur, false))
		}
		b.WriteString(")")
		return b.String()
	case IsVector(v):
		elems, _ := h.Vector(v)
		var b strings.Builder
		if !top {
			b.WriteString("'")
		}
		b.WriteString("#(")
		for i, e := range elems {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(h.display(e, false))
		}
		b.WriteString(")")
		return b.String()
	case IsBox(v):
		inner, _ := h.Unbox(v)
		prefix := ""
		if !top {
			prefix = "'"
		}
		return prefix + "#&" + h.display(inner, false)
	case IsClosure(v):
		return "#<procedure>"
	default:
		return fmt.Sprintf("#<unknown:%x>", uint64(v))
	}
}
