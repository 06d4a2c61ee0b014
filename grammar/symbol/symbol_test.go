package symbol

import (
	"testing"
)

func TestSymbolTable_ReservedSymbols(t *testing.T) {
	tab := NewSymbolTable()
	r := tab.Reader()

	eof, ok := r.ToSymbol("@end")
	if !ok || eof != SymbolEOF {
		t.Fatalf("the end-of-input symbol must always exist")
	}
	errSym, ok := r.ToSymbol("@error")
	if !ok || errSym != SymbolError {
		t.Fatalf("the error symbol must always exist")
	}

	if !SymbolEOF.IsTerminal() || !SymbolEOF.IsEOF() || SymbolEOF.IsError() {
		t.Fatalf("unexpected end-of-input symbol attributes")
	}
	if !SymbolError.IsTerminal() || !SymbolError.IsError() || SymbolError.IsEOF() {
		t.Fatalf("unexpected error symbol attributes")
	}
	if SymbolEOF.Num() == SymbolError.Num() {
		t.Fatalf("the reserved terminals must have distinct numbers")
	}
}

func TestSymbolTable_Registration(t *testing.T) {
	tab := NewSymbolTable()
	w := tab.Writer()
	r := tab.Reader()

	foo, err := w.RegisterTerminalSymbol("foo")
	if err != nil {
		t.Fatal(err)
	}
	expr, err := w.RegisterVariableSymbol("expr")
	if err != nil {
		t.Fatal(err)
	}
	start, err := w.RegisterStartSymbol("@start")
	if err != nil {
		t.Fatal(err)
	}

	if !foo.IsTerminal() || foo.IsVariable() {
		t.Fatalf("foo must be a terminal")
	}
	if !expr.IsVariable() || expr.IsTerminal() {
		t.Fatalf("expr must be a variable")
	}
	if !start.IsStart() || !start.IsVariable() {
		t.Fatalf("@start must be the start variable")
	}

	// Registration is idempotent.
	foo2, err := w.RegisterTerminalSymbol("foo")
	if err != nil || foo2 != foo {
		t.Fatalf("re-registering a name must return the same symbol")
	}

	if sym, ok := r.ToSymbol("expr"); !ok || sym != expr {
		t.Fatalf("lookup by name failed")
	}
	if text, ok := r.ToText(foo); !ok || text != "foo" {
		t.Fatalf("lookup by symbol failed")
	}

	if got := r.TerminalTexts()[foo.Num().Int()]; got != "foo" {
		t.Fatalf("terminal texts must be indexed by symbol number; got: %v", got)
	}
	if got := r.VariableTexts()[expr.Num().Int()]; got != "expr" {
		t.Fatalf("variable texts must be indexed by symbol number; got: %v", got)
	}
}

func TestSymbolTable_SymbolLists(t *testing.T) {
	tab := NewSymbolTable()
	w := tab.Writer()
	r := tab.Reader()

	if _, err := w.RegisterTerminalSymbol("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RegisterTerminalSymbol("b"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RegisterVariableSymbol("s"); err != nil {
		t.Fatal(err)
	}

	terms := r.TerminalSymbols()
	// @end, @error, a, b
	if len(terms) != 4 {
		t.Fatalf("unexpected terminal count: %v", len(terms))
	}
	for i := 1; i < len(terms); i++ {
		if terms[i-1].Num() >= terms[i].Num() {
			t.Fatalf("terminal symbols must be sorted by number")
		}
	}

	vars := r.VariableSymbols()
	if len(vars) != 1 {
		t.Fatalf("unexpected variable count: %v", len(vars))
	}
}
