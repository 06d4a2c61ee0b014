package symbol

import (
	"fmt"
	"sort"
)

type symbolKind string

const (
	symbolKindVariable = symbolKind("variable")
	symbolKindTerminal = symbolKind("terminal")
)

func (k symbolKind) String() string {
	return string(k)
}

type SymbolNum uint16

func (n SymbolNum) Int() int {
	return int(n)
}

// Symbol is a compact handle for a terminal or a variable. A symbol resolves
// to its name only through the symbol table it was registered in, so values
// carry no back-pointers.
type Symbol uint16

func (s Symbol) String() string {
	kind, reserved, num := s.describe()
	var prefix string
	switch {
	case kind == symbolKindVariable && reserved:
		prefix = "s"
	case kind == symbolKindVariable:
		prefix = "v"
	case kind == symbolKindTerminal && reserved:
		prefix = "r"
	default:
		prefix = "t"
	}
	return fmt.Sprintf("%v%v", prefix, num)
}

const (
	maskKindPart = uint16(0x8000) // 1000 0000 0000 0000
	maskVariable = uint16(0x0000) // 0000 0000 0000 0000
	maskTerminal = uint16(0x8000) // 1000 0000 0000 0000

	// The reserved bit marks the augmented start symbol on the variable side
	// and the end-of-input/error symbols on the terminal side.
	maskReservedPart = uint16(0x4000) // 0100 0000 0000 0000

	maskNumberPart = uint16(0x3fff) // 0011 1111 1111 1111

	symbolNumStart = uint16(0x0001)
	symbolNumEOF   = uint16(0x0001)
	symbolNumError = uint16(0x0002)

	SymbolNil   = Symbol(0)
	symbolStart = Symbol(maskVariable | maskReservedPart | symbolNumStart)
	SymbolEOF   = Symbol(maskTerminal | maskReservedPart | symbolNumEOF)
	SymbolError = Symbol(maskTerminal | maskReservedPart | symbolNumError)

	// The names contain `@` so they cannot collide with names appearing in a
	// grammar description.
	symbolNameEOF   = "@end"
	symbolNameError = "@error"

	variableNumMin = SymbolNum(2) // The number 1 is used by the augmented start symbol.
	terminalNumMin = SymbolNum(3) // The numbers 1 and 2 are used by the end-of-input and error symbols.
	symbolNumMax   = SymbolNum(0x3fff)
)

func newSymbol(kind symbolKind, reserved bool, num SymbolNum) (Symbol, error) {
	if num > symbolNumMax {
		return SymbolNil, fmt.Errorf("a symbol number exceeds the limit; limit: %v, passed: %v", symbolNumMax, num)
	}

	kindMask := maskVariable
	if kind == symbolKindTerminal {
		kindMask = maskTerminal
	}
	reservedMask := uint16(0)
	if reserved {
		reservedMask = maskReservedPart
	}
	return Symbol(kindMask | reservedMask | uint16(num)), nil
}

func (s Symbol) Num() SymbolNum {
	_, _, num := s.describe()
	return num
}

func (s Symbol) Byte() []byte {
	return []byte{byte(uint16(s) >> 8), byte(uint16(s) & 0x00ff)}
}

func (s Symbol) IsNil() bool {
	_, _, num := s.describe()
	return num == 0
}

func (s Symbol) IsStart() bool {
	if s.IsNil() {
		return false
	}
	kind, reserved, _ := s.describe()
	return kind == symbolKindVariable && reserved
}

func (s Symbol) IsEOF() bool {
	return s == SymbolEOF
}

func (s Symbol) IsError() bool {
	return s == SymbolError
}

func (s Symbol) IsVariable() bool {
	if s.IsNil() {
		return false
	}
	kind, _, _ := s.describe()
	return kind == symbolKindVariable
}

func (s Symbol) IsTerminal() bool {
	if s.IsNil() {
		return false
	}
	return !s.IsVariable()
}

func (s Symbol) describe() (symbolKind, bool, SymbolNum) {
	kind := symbolKindVariable
	if uint16(s)&maskKindPart > 0 {
		kind = symbolKindTerminal
	}
	reserved := uint16(s)&maskReservedPart > 0
	num := SymbolNum(uint16(s) & maskNumberPart)
	return kind, reserved, num
}

// SymbolTable interns terminal and variable names. The end-of-input and
// error terminals are always present.
type SymbolTable struct {
	text2Sym  map[string]Symbol
	sym2Text  map[Symbol]string
	varTexts  []string
	termTexts []string
	varNum    SymbolNum
	termNum   SymbolNum
}

type SymbolTableWriter struct {
	*SymbolTable
}

type SymbolTableReader struct {
	*SymbolTable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		text2Sym: map[string]Symbol{
			symbolNameEOF:   SymbolEOF,
			symbolNameError: SymbolError,
		},
		sym2Text: map[Symbol]string{
			SymbolEOF:   symbolNameEOF,
			SymbolError: symbolNameError,
		},
		termTexts: []string{
			"",              // Nil
			symbolNameEOF,   // End-of-input
			symbolNameError, // Error
		},
		varTexts: []string{
			"", // Nil
			"", // Augmented start symbol
		},
		varNum:  variableNumMin,
		termNum: terminalNumMin,
	}
}

func (t *SymbolTable) Writer() *SymbolTableWriter {
	return &SymbolTableWriter{
		SymbolTable: t,
	}
}

func (t *SymbolTable) Reader() *SymbolTableReader {
	return &SymbolTableReader{
		SymbolTable: t,
	}
}

func (w *SymbolTableWriter) RegisterStartSymbol(text string) (Symbol, error) {
	w.text2Sym[text] = symbolStart
	w.sym2Text[symbolStart] = text
	w.varTexts[symbolStart.Num().Int()] = text
	return symbolStart, nil
}

func (w *SymbolTableWriter) RegisterVariableSymbol(text string) (Symbol, error) {
	if sym, ok := w.text2Sym[text]; ok {
		return sym, nil
	}
	sym, err := newSymbol(symbolKindVariable, false, w.varNum)
	if err != nil {
		return SymbolNil, err
	}
	w.varNum++
	w.text2Sym[text] = sym
	w.sym2Text[sym] = text
	w.varTexts = append(w.varTexts, text)
	return sym, nil
}

func (w *SymbolTableWriter) RegisterTerminalSymbol(text string) (Symbol, error) {
	if sym, ok := w.text2Sym[text]; ok {
		return sym, nil
	}
	sym, err := newSymbol(symbolKindTerminal, false, w.termNum)
	if err != nil {
		return SymbolNil, err
	}
	w.termNum++
	w.text2Sym[text] = sym
	w.sym2Text[sym] = text
	w.termTexts = append(w.termTexts, text)
	return sym, nil
}

func (r *SymbolTableReader) ToSymbol(text string) (Symbol, bool) {
	sym, ok := r.text2Sym[text]
	return sym, ok
}

func (r *SymbolTableReader) ToText(sym Symbol) (string, bool) {
	text, ok := r.sym2Text[sym]
	return text, ok
}

func (r *SymbolTableReader) TerminalSymbols() []Symbol {
	syms := make([]Symbol, 0, r.termNum.Int()-1)
	for sym := range r.sym2Text {
		if !sym.IsTerminal() {
			continue
		}
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i].Num() < syms[j].Num()
	})
	return syms
}

func (r *SymbolTableReader) TerminalTexts() []string {
	return r.termTexts
}

func (r *SymbolTableReader) VariableSymbols() []Symbol {
	syms := make([]Symbol, 0, r.varNum.Int()-1)
	for sym := range r.sym2Text {
		if !sym.IsVariable() {
			continue
		}
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i].Num() < syms[j].Num()
	})
	return syms
}

func (r *SymbolTableReader) VariableTexts() []string {
	return r.varTexts
}

func (r *SymbolTableReader) TerminalCount() int {
	return r.termNum.Int()
}

func (r *SymbolTableReader) VariableCount() int {
	return r.varNum.Int()
}
