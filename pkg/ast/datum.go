package ast

import "fmt"

// ----------------------------------------------------------------------------
// General information

// This section defines the Datum variants: the data a quoted form evaluates to.
//
// A Datum is plain, self-evaluating literal data — what `quote` freezes and
// hands back unevaluated. It is a strictly smaller vocabulary than Expr:
// there is no Var, no If, no Lambda here, only the handful of shapes a
// reader can produce directly from source text.

// Just used to put together every literal datum shape in the same datatype.
type Datum interface{ isDatum() }

// ----------------------------------------------------------------------------
// Number / Boolean / Symbol

type NumberDatum struct{ Value int64 }

type BooleanDatum struct{ Value bool }

// Symbol names are plain strings, so two occurrences of the same
// identifier compare equal by value without an explicit intern table here;
// interning for `eq?` purposes happens once more, at the runtime-value
// layer (pkg/value, pkg/runtime), which is the layer that actually needs
// pointer-identity semantics.
type SymbolDatum struct{ Name string }

// ----------------------------------------------------------------------------
// Nil / Pair

// NilDatum is the empty list, (). It carries no fields; NilVal below is the
// single canonical instance every reader/evaluator should share.
type NilDatum struct{}

// NilVal is the canonical empty-list datum. Nothing requires using this
// particular value (NilDatum{} compares equal to it structurally) but
// sharing it avoids allocating a fresh empty NilDatum{} everywhere.
var NilVal = NilDatum{}

type PairDatum struct {
	Car Datum
	Cdr Datum
}

func (NumberDatum) isDatum()  {}
func (BooleanDatum) isDatum() {}
func (SymbolDatum) isDatum()  {}
func (NilDatum) isDatum()     {}
func (PairDatum) isDatum()    {}

// List builds a proper list datum out of elements, terminated by NilVal.
func List(elems ...Datum) Datum {
	result := Datum(NilVal)
	for i := len(elems) - 1; i >= 0; i-- {
		result = PairDatum{Car: elems[i], Cdr: result}
	}
	return result
}

// Stringify renders a Datum as re-readable source text (no leading quote —
// quoting is the caller's concern, not the datum's own grammar).
func Stringify(d Datum) string {
	switch v := d.(type) {
	case NumberDatum:
		return fmt.Sprintf("%d", v.Value)
	case BooleanDatum:
		if v.Value {
			return "#t"
		}
		return "#f"
	case SymbolDatum:
		return v.Name
	case NilDatum:
		return "()"
	case PairDatum:
		out := "("
		cur := Datum(v)
		first := true
		for {
			p, ok := cur.(PairDatum)
			if !ok {
				break
			}
			if !first {
				out += " "
			}
			out += Stringify(p.Car)
			first = false
			cur = p.Cdr
		}
		if _, isNil := cur.(NilDatum); !isNil {
			out += " . " + Stringify(cur)
		}
		return out + ")"
	default:
		return fmt.Sprintf("%v", d)
	}
}
