package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"schemeimpl.dev/scheme/internal/reader"
	"schemeimpl.dev/scheme/internal/token"
)

// runREPL implements the default interactive mode: read lines until the
// parentheses balance, evaluate, print each result with the
// pretty-printer, exit on EOF. A single persistent engine means Define and
// set! from one line are visible to every later one, and a top-level
// evaluation error never aborts the session — only the one form that
// failed.
func runREPL(engineName string) int {
	e, err := newEngine(engineName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		return 1
	}

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder

	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')

		if token.ParenBalance(buf.String()) > 0 {
			continue
		}

		source := strings.TrimSpace(buf.String())
		buf.Reset()
		if source == "" {
			continue
		}

		exprs, err := reader.New().ReadProgram(source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			continue
		}

		for _, expr := range exprs {
			out, err := e.Eval(expr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
				continue
			}
			fmt.Println(out)
		}
	}
	return 0
}
