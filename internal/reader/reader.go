// Package reader turns source text into the expression AST every backend
// consumes. goparsec recognizes the flat sequence of lexical tokens, and a
// plain Go walk over the matched children then builds the typed tree.
//
// The split exists because an s-expression nests arbitrarily
// ("(a (b (c)) d)"). Rather than fight goparsec's combinators into a
// self-referential grammar, this reader asks goparsec only to recognize
// individual tokens (parens, quote, dot, booleans, integers, identifiers)
// and does the nesting itself with an ordinary recursive-descent walk over
// the resulting flat token sequence — a cursor position and two mutually
// recursive functions, readDatum and readList.
package reader

import (
	"strconv"

	pc "github.com/prataprc/goparsec"

	"schemeimpl.dev/scheme/pkg/ast"
	"schemeimpl.dev/scheme/pkg/scmerr"
)

// ----------------------------------------------------------------------------
// Parser Combinator(s)

var astBuilder = pc.NewAST("reader", 0)

var (
	// Parser combinator for an entire source file: a flat sequence of
	// tokens, applied one layer below the s-expression grammar instead of
	// at it.
	pProgram = astBuilder.ManyUntil("program", nil, pToken, pc.End())

	pToken = astBuilder.OrdChoice("token", nil,
		pLParen, pRParen, pQuote, pDot, pBoolean, pc.Int(), pIdent,
	)

	pLParen = pc.Atom("(", "LPAREN")
	pRParen = pc.Atom(")", "RPAREN")
	pQuote  = pc.Atom("'", "QUOTE")
	pDot    = pc.Atom(".", "DOT")

	pBoolean = astBuilder.OrdChoice("boolean", nil, pc.Atom("#t", "TRUE"), pc.Atom("#f", "FALSE"))

	// Identifiers may contain any characters not in `()'#. \t\n` — digits
	// fall in this same class lexically, so pc.Int() above must be tried
	// first or every number would read as an identifier.
	pIdent = pc.Token(`[^()'#.\s]+`, "IDENT")
)

// ----------------------------------------------------------------------------
// Reader

// Reader turns source text into the Expr forms pkg/interp, pkg/compiler,
// and pkg/codegen all consume; a single parse can be fed to more than one
// backend.
type Reader struct{}

func New() Reader { return Reader{} }

// ReadProgram parses every top-level form in source, in order.
func (Reader) ReadProgram(source string) ([]ast.Expr, error) {
	datums, err := ReadDatums(source)
	if err != nil {
		return nil, err
	}
	exprs := make([]ast.Expr, len(datums))
	for i, d := range datums {
		expr, err := ExprFromDatum(d)
		if err != nil {
			return nil, err
		}
		exprs[i] = expr
	}
	return exprs, nil
}

// ReadDatums parses every top-level s-expression in source as raw data,
// without interpreting any special forms — the pure "read" half of a
// read-eval-print loop, exposed separately because Quote needs it (a
// quoted form is read as data, never analyzed into Expr).
func ReadDatums(source string) ([]ast.Datum, error) {
	toks, err := tokenize(source)
	if err != nil {
		return nil, err
	}

	var datums []ast.Datum
	pos := 0
	for pos < len(toks) {
		d, err := readDatum(toks, &pos)
		if err != nil {
			return nil, err
		}
		datums = append(datums, d)
	}
	return datums, nil
}

// ----------------------------------------------------------------------------
// Tokenizing (goparsec half)

type rawToken struct {
	kind string
	text string
}

func tokenize(source string) ([]rawToken, error) {
	// Parsewith's second return value (the leftover scanner) is not
	// consulted: pProgram runs to pc.End(), so a failure to consume the
	// whole input surfaces as a nil root instead.
	root, _ := astBuilder.Parsewith(pProgram, pc.NewScanner([]byte(source)))
	if root == nil {
		return nil, scmerr.New(scmerr.ParseError, "failed to parse source")
	}

	children := root.GetChildren()
	toks := make([]rawToken, len(children))
	for i, child := range children {
		toks[i] = rawToken{kind: child.GetName(), text: child.GetValue()}
	}
	return toks, nil
}

// ----------------------------------------------------------------------------
// Nesting (plain recursive descent over the flat token sequence)

func readDatum(toks []rawToken, pos *int) (ast.Datum, error) {
	if *pos >= len(toks) {
		return nil, scmerr.New(scmerr.ParseError, "unexpected end of input")
	}

	tok := toks[*pos]
	switch tok.kind {
	case "LPAREN":
		*pos++
		return readList(toks, pos)

	case "RPAREN":
		return nil, scmerr.New(scmerr.ParseError, "unexpected ')'")

	case "QUOTE":
		*pos++
		inner, err := readDatum(toks, pos)
		if err != nil {
			return nil, err
		}
		return ast.List(ast.SymbolDatum{Name: "quote"}, inner), nil

	case "DOT":
		return nil, scmerr.New(scmerr.ParseError, "unexpected '.' outside a list")

	case "TRUE":
		*pos++
		return ast.BooleanDatum{Value: true}, nil
	case "FALSE":
		*pos++
		return ast.BooleanDatum{Value: false}, nil

	case "INT":
		*pos++
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, scmerr.Wrap(scmerr.ParseError, err, "invalid integer literal %q", tok.text)
		}
		return ast.NumberDatum{Value: n}, nil

	case "IDENT":
		*pos++
		return ast.SymbolDatum{Name: tok.text}, nil

	default:
		return nil, scmerr.New(scmerr.InternalError, "unrecognized token kind %q", tok.kind)
	}
}

// readList reads the element sequence following an already-consumed '(',
// including the dotted-tail form "(a b . c)", up to and including the
// matching ')'.
func readList(toks []rawToken, pos *int) (ast.Datum, error) {
	var elems []ast.Datum
	for {
		if *pos >= len(toks) {
			return nil, scmerr.New(scmerr.ParseError, "unexpected end of input inside list")
		}

		switch toks[*pos].kind {
		case "RPAREN":
			*pos++
			return ast.List(elems...), nil

		case "DOT":
			*pos++
			tail, err := readDatum(toks, pos)
			if err != nil {
				return nil, err
			}
			if *pos >= len(toks) || toks[*pos].kind != "RPAREN" {
				return nil, scmerr.New(scmerr.ParseError, "expected ')' after dotted tail")
			}
			*pos++
			result := tail
			for i := len(elems) - 1; i >= 0; i-- {
				result = ast.PairDatum{Car: elems[i], Cdr: result}
			}
			return result, nil

		default:
			d, err := readDatum(toks, pos)
			if err != nil {
				return nil, err
			}
			elems = append(elems, d)
		}
	}
}

// ----------------------------------------------------------------------------
// Datum-to-Expr analysis

var nextLambdaId = 0

// ExprFromDatum analyzes one read s-expression into the Expr it denotes,
// recognizing the special forms (quote, define, set!, begin, if, let,
// letrec, lambda) and treating everything else as Apply.
func ExprFromDatum(d ast.Datum) (ast.Expr, error) {
	switch t := d.(type) {
	case ast.NumberDatum:
		return ast.Number{Value: t.Value}, nil
	case ast.BooleanDatum:
		return ast.Boolean{Value: t.Value}, nil
	case ast.SymbolDatum:
		return ast.Var{Name: t.Name}, nil
	case ast.NilDatum:
		return nil, scmerr.New(scmerr.ParseError, "() is not a valid expression")
	case ast.PairDatum:
		return exprFromList(t)
	default:
		return nil, scmerr.New(scmerr.InternalError, "unrecognized datum %T", d)
	}
}

func exprFromList(p ast.PairDatum) (ast.Expr, error) {
	elems, ok := properListElems(p)
	if !ok || len(elems) == 0 {
		return nil, scmerr.New(scmerr.ParseError, "malformed combination (improper or empty list)")
	}

	if head, isSym := elems[0].(ast.SymbolDatum); isSym {
		switch head.Name {
		case "quote":
			if len(elems) != 2 {
				return nil, scmerr.New(scmerr.ParseError, "quote: expected exactly one datum")
			}
			return ast.Quote{Value: elems[1]}, nil

		case "define":
			return analyzeDefine(elems)

		case "set!":
			if len(elems) != 3 {
				return nil, scmerr.New(scmerr.ParseError, "set!: expected (set! <id> <expr>)")
			}
			name, ok := elems[1].(ast.SymbolDatum)
			if !ok {
				return nil, scmerr.New(scmerr.ParseError, "set!: expected an identifier")
			}
			body, err := ExprFromDatum(elems[2])
			if err != nil {
				return nil, err
			}
			return ast.SetBang{Name: name.Name, Body: body}, nil

		case "begin":
			return analyzeBegin(elems[1:])

		case "if":
			if len(elems) != 4 {
				return nil, scmerr.New(scmerr.ParseError, "if: expected (if <pred> <then> <else>)")
			}
			return analyzeIf(elems)

		case "let":
			if len(elems) < 3 {
				return nil, scmerr.New(scmerr.ParseError, "let: expected (let ((<id> <expr>)...) <body>...)")
			}
			return analyzeLet(elems, false)

		case "letrec":
			if len(elems) < 3 {
				return nil, scmerr.New(scmerr.ParseError, "letrec: expected (letrec ((<id> <expr>)...) <body>...)")
			}
			return analyzeLet(elems, true)

		case "lambda":
			if len(elems) < 3 {
				return nil, scmerr.New(scmerr.ParseError, "lambda: expected (lambda (<id>...) <body>...)")
			}
			return analyzeLambda(elems)
		}
	}

	return analyzeApply(elems)
}

func analyzeDefine(elems []ast.Datum) (ast.Expr, error) {
	if len(elems) < 3 {
		return nil, scmerr.New(scmerr.ParseError, "define: expected (define <id> <expr>) or (define (<id> <id>...) <expr>...)")
	}

	switch target := elems[1].(type) {
	case ast.SymbolDatum:
		if len(elems) != 3 {
			return nil, scmerr.New(scmerr.ParseError, "define: expected exactly one value expression")
		}
		body, err := ExprFromDatum(elems[2])
		if err != nil {
			return nil, err
		}
		return ast.Define{Name: target.Name, Body: body}, nil

	case ast.PairDatum:
		// (define (name p1 p2 ...) body...) desugars to
		// (define name (lambda (p1 p2 ...) body...)).
		sig, ok := properListElems(target)
		if !ok || len(sig) == 0 {
			return nil, scmerr.New(scmerr.ParseError, "define: malformed procedure signature")
		}
		name, ok := sig[0].(ast.SymbolDatum)
		if !ok {
			return nil, scmerr.New(scmerr.ParseError, "define: procedure name must be an identifier")
		}
		params, err := symbolNames(sig[1:])
		if err != nil {
			return nil, err
		}
		body, err := analyzeBegin(elems[2:])
		if err != nil {
			return nil, err
		}
		return ast.Define{Name: name.Name, Body: ast.Lambda{Id: newLambdaId(), Params: params, Body: body}}, nil

	default:
		return nil, scmerr.New(scmerr.ParseError, "define: expected an identifier or a procedure signature")
	}
}

func analyzeBegin(rest []ast.Datum) (ast.Expr, error) {
	exprs := make([]ast.Expr, len(rest))
	for i, d := range rest {
		expr, err := ExprFromDatum(d)
		if err != nil {
			return nil, err
		}
		exprs[i] = expr
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return ast.Begin{Exprs: exprs}, nil
}

func analyzeIf(elems []ast.Datum) (ast.Expr, error) {
	cond, err := ExprFromDatum(elems[1])
	if err != nil {
		return nil, err
	}
	then, err := ExprFromDatum(elems[2])
	if err != nil {
		return nil, err
	}
	els, err := ExprFromDatum(elems[3])
	if err != nil {
		return nil, err
	}
	return ast.If{Cond: cond, Then: then, Else: els}, nil
}

func analyzeLet(elems []ast.Datum, recursive bool) (ast.Expr, error) {
	bindingElems, ok := datumAsList(elems[1])
	if !ok {
		return nil, scmerr.New(scmerr.ParseError, "expected a binding list")
	}

	bindings := make([]ast.Binding, len(bindingElems))
	for i, b := range bindingElems {
		pair, ok := b.(ast.PairDatum)
		if !ok {
			return nil, scmerr.New(scmerr.ParseError, "expected a (<id> <expr>) binding")
		}
		bindingPair, ok := properListElems(pair)
		if !ok || len(bindingPair) != 2 {
			return nil, scmerr.New(scmerr.ParseError, "expected a (<id> <expr>) binding")
		}
		name, ok := bindingPair[0].(ast.SymbolDatum)
		if !ok {
			return nil, scmerr.New(scmerr.ParseError, "binding name must be an identifier")
		}
		init, err := ExprFromDatum(bindingPair[1])
		if err != nil {
			return nil, err
		}
		bindings[i] = ast.Binding{Name: name.Name, Init: init}
	}

	body, err := analyzeBegin(elems[2:])
	if err != nil {
		return nil, err
	}
	if recursive {
		return ast.LetRec{Bindings: bindings, Body: body}, nil
	}
	return ast.Let{Bindings: bindings, Body: body}, nil
}

func analyzeLambda(elems []ast.Datum) (ast.Expr, error) {
	paramElems, ok := datumAsList(elems[1])
	if !ok {
		return nil, scmerr.New(scmerr.ParseError, "lambda: expected a parameter list")
	}
	params, err := symbolNames(paramElems)
	if err != nil {
		return nil, err
	}
	body, err := analyzeBegin(elems[2:])
	if err != nil {
		return nil, err
	}
	return ast.Lambda{Id: newLambdaId(), Params: params, Body: body}, nil
}

func analyzeApply(elems []ast.Datum) (ast.Expr, error) {
	operator, err := ExprFromDatum(elems[0])
	if err != nil {
		return nil, err
	}
	operands := make([]ast.Expr, len(elems)-1)
	for i, d := range elems[1:] {
		expr, err := ExprFromDatum(d)
		if err != nil {
			return nil, err
		}
		operands[i] = expr
	}
	return ast.Apply{Operator: operator, Operands: operands}, nil
}

func newLambdaId() int {
	nextLambdaId++
	return nextLambdaId
}

// ----------------------------------------------------------------------------
// Datum list helpers

// properListElems flattens a proper (nil-terminated) list Datum into its
// elements, reporting false if the list is improper (dotted).
func properListElems(p ast.PairDatum) ([]ast.Datum, bool) {
	var elems []ast.Datum
	cur := ast.Datum(p)
	for {
		pair, isPair := cur.(ast.PairDatum)
		if !isPair {
			break
		}
		elems = append(elems, pair.Car)
		cur = pair.Cdr
	}
	_, isNil := cur.(ast.NilDatum)
	return elems, isNil
}

// datumAsList flattens any list-shaped Datum (including Nil, the empty
// list) into its elements.
func datumAsList(d ast.Datum) ([]ast.Datum, bool) {
	if _, isNil := d.(ast.NilDatum); isNil {
		return nil, true
	}
	pair, isPair := d.(ast.PairDatum)
	if !isPair {
		return nil, false
	}
	return properListElems(pair)
}

func symbolNames(elems []ast.Datum) ([]string, error) {
	names := make([]string, len(elems))
	for i, d := range elems {
		sym, ok := d.(ast.SymbolDatum)
		if !ok {
			return nil, scmerr.New(scmerr.ParseError, "expected an identifier, got %v", ast.Stringify(d))
		}
		names[i] = sym.Name
	}
	return names, nil
}
