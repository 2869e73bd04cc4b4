package value

import (
	"fmt"
	"strings"
)

// Display renders v the way the `display` built-in and the REPL's
// top-level result printer do: no leading quote mark on the outermost
// call, `'(` / `'#(` / `'#&` punctuation preserved on any nested
// pair/vector/box. The quote mark is reader syntax for re-readable data,
// not part of display's own output grammar, so only nested data carries
// it.
func Display(v Value) string {
	return display(v, true)
}

func display(v Value, top bool) string {
	switch t := v.(type) {
	case Number:
		return fmt.Sprintf("%d", t.Value)
	case Boolean:
		if t.Value {
			return "#t"
		}
		return "#f"
	case *Symbol:
		if top {
			return t.Name
		}
		return "'" + t.Name
	case Nil:
		return "()"
	case Void:
		return "#void"
	case Undefined:
		return "#<undefined>"
	case *Cons:
		var b strings.Builder
		if !top {
			b.WriteString("'")
		}
		b.WriteString("(")
		cur := Value(t)
		first := true
		for {
			pair, ok := cur.(*Cons)
			if !ok {
				break
			}
			if !first {
				b.WriteString(" ")
			}
			b.WriteString(display(pair.Car, false))
			first = false
			cur = pair.Cdr
		}
		if _, isNil := cur.(Nil); !isNil {
			b.WriteString(" . ")
			b.WriteString(display(cur, false))
		}
		b.WriteString(")")
		return b.String()
	case *Vector:
		var b strings.Builder
		if !top {
			b.WriteString("'")
		}
		b.WriteString("#(")
		for i, elem := range t.Elems {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(display(elem, false))
		}
		b.WriteString(")")
		return b.String()
	case *Box:
		prefix := ""
		if !top {
			prefix = "'"
		}
		return prefix + "#&" + display(*t.Slot, false)
	case *Closure, *Procedure:
		return "#<procedure>"
	default:
		return fmt.Sprintf("%v", v)
	}
}
