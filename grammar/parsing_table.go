package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kang-lang/kang/grammar/symbol"
	"github.com/kang-lang/kang/spec"
)

type ActionType string

const (
	ActionTypeShift  = ActionType("shift")
	ActionTypeReduce = ActionType("reduce")
	ActionTypeError  = ActionType("error")
)

type actionEntry int

const actionEntryEmpty = actionEntry(0)

func newShiftActionEntry(state stateNum) actionEntry {
	return actionEntry(state * -1)
}

func newReduceActionEntry(prod productionNum) actionEntry {
	return actionEntry(prod)
}

func (e actionEntry) isEmpty() bool {
	return e == actionEntryEmpty
}

func (e actionEntry) describe() (ActionType, stateNum, productionNum) {
	if e == actionEntryEmpty {
		return ActionTypeError, stateNumInitial, productionNumNil
	}
	if e < 0 {
		return ActionTypeShift, stateNum(e * -1), productionNumNil
	}
	return ActionTypeReduce, stateNumInitial, productionNum(e)
}

// ShiftReduceConflictError reports a shift/reduce conflict the precedence
// rules could not settle. It carries both offending rules and every item of
// the state the conflict occurred in.
type ShiftReduceConflictError struct {
	ShiftRule  string
	ReduceRule string
	Symbol     string
	State      int
	Items      []string
}

func (e *ShiftReduceConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shift/reduce conflict on %v\n", e.Symbol)
	fmt.Fprintf(&b, "shift rule:  %v\n", e.ShiftRule)
	fmt.Fprintf(&b, "reduce rule: %v\n", e.ReduceRule)
	fmt.Fprintf(&b, "state %v:", e.State)
	for _, item := range e.Items {
		fmt.Fprintf(&b, "\n    %v", item)
	}
	return b.String()
}

// ReduceReduceConflictError reports two different reductions proposed for
// the same state and look-ahead.
type ReduceReduceConflictError struct {
	Rule1  string
	Rule2  string
	Symbol string
	State  int
	Items  []string
}

func (e *ReduceReduceConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reduce/reduce conflict on %v\n", e.Symbol)
	fmt.Fprintf(&b, "rule #1: %v\n", e.Rule1)
	fmt.Fprintf(&b, "rule #2: %v\n", e.Rule2)
	fmt.Fprintf(&b, "state %v:", e.State)
	for _, item := range e.Items {
		fmt.Fprintf(&b, "\n    %v", item)
	}
	return b.String()
}

type parsingTable struct {
	actionTable []actionEntry
	goToTable   []int

	// reasonTable is parallel to actionTable and records, for each non-empty
	// entry, the production that proposed it: for a shift action the rule
	// the dotted item belongs to, for a reduce action the reduced rule.
	// It exists only to name both rules when a conflict is detected.
	reasonTable []productionNum

	stateCount    int
	terminalCount int
	variableCount int

	errorTrapperStates []int

	initialState stateNum
}

func (t *parsingTable) readAction(row int, col int) actionEntry {
	return t.actionTable[row*t.terminalCount+col]
}

func (t *parsingTable) writeAction(row int, col int, act actionEntry, reason productionNum) {
	t.actionTable[row*t.terminalCount+col] = act
	t.reasonTable[row*t.terminalCount+col] = reason
}

func (t *parsingTable) readReason(row int, col int) productionNum {
	return t.reasonTable[row*t.terminalCount+col]
}

func (t *parsingTable) writeGoTo(state stateNum, sym symbol.Symbol, nextState stateNum) {
	pos := state.Int()*t.variableCount + sym.Num().Int()
	t.goToTable[pos] = nextState.Int()
}

type lrTableBuilder struct {
	automaton *lr1Automaton
	prods     *productionSet
	gram      *Grammar
	symTab    *symbol.SymbolTableReader
	termCount int
	varCount  int
}

func (b *lrTableBuilder) build() (*parsingTable, error) {
	initialState := b.automaton.states[b.automaton.initialState]
	ptab := &parsingTable{
		actionTable:        make([]actionEntry, len(b.automaton.states)*b.termCount),
		goToTable:          make([]int, len(b.automaton.states)*b.varCount),
		reasonTable:        make([]productionNum, len(b.automaton.states)*b.termCount),
		stateCount:         len(b.automaton.states),
		terminalCount:      b.termCount,
		variableCount:      b.varCount,
		errorTrapperStates: make([]int, len(b.automaton.states)),
		initialState:       initialState.num,
	}

	sortedStates := b.sortedStates()
	for _, state := range sortedStates {
		if state.isErrorTrapper {
			ptab.errorTrapperStates[state.num] = 1
		}

		var nextSyms []symbol.Symbol
		for sym := range state.next {
			nextSyms = append(nextSyms, sym)
		}
		sort.Slice(nextSyms, func(i, j int) bool {
			return nextSyms[i] < nextSyms[j]
		})
		for _, sym := range nextSyms {
			nextState := b.automaton.states[state.next[sym]]
			if sym.IsTerminal() {
				reason, err := b.shiftRuleOf(state, sym)
				if err != nil {
					return nil, err
				}
				err = b.writeShiftAction(ptab, state, sym, nextState.num, reason)
				if err != nil {
					return nil, err
				}
			} else {
				ptab.writeGoTo(state.num, sym, nextState.num)
			}
		}

		for _, item := range state.reducible {
			prod, ok := b.prods.findByID(item.prod)
			if !ok {
				return nil, fmt.Errorf("reducible production not found: %v", item.prod)
			}

			// A complete item of the augmented start rule with the @end
			// look-ahead is the accept action, encoded as a reduction by the
			// start production.
			err := b.writeReduceAction(ptab, state, item.lookAhead, prod)
			if err != nil {
				return nil, err
			}
		}
	}

	return ptab, nil
}

// shiftRuleOf finds the rule that introduces the shift of sym in the given
// state: the rule of an item whose dot is just before sym.
func (b *lrTableBuilder) shiftRuleOf(state *lrState, sym symbol.Symbol) (*production, error) {
	for _, item := range state.closure {
		if item.dottedSymbol != sym {
			continue
		}
		prod, ok := b.prods.findByID(item.prod)
		if !ok {
			break
		}
		return prod, nil
	}
	return nil, fmt.Errorf("no item shifts %v in state %v", sym, state.num)
}

func (b *lrTableBuilder) writeShiftAction(tab *parsingTable, state *lrState, sym symbol.Symbol, nextState stateNum, reason *production) error {
	act := tab.readAction(state.num.Int(), sym.Num().Int())
	if !act.isEmpty() {
		ty, _, p := act.describe()
		if ty == ActionTypeShift {
			// An identical shift was already proposed by another item.
			return nil
		}
		reduceProd, ok := b.prods.findByNum(p)
		if !ok {
			return fmt.Errorf("production not found: %v", p)
		}
		winner, resolved := b.resolveSRConflict(reason, reduceProd)
		if !resolved {
			return b.newShiftReduceConflictError(state, sym, reason, reduceProd)
		}
		if winner == ActionTypeReduce {
			return nil
		}
	}
	tab.writeAction(state.num.Int(), sym.Num().Int(), newShiftActionEntry(nextState), reason.num)
	return nil
}

func (b *lrTableBuilder) writeReduceAction(tab *parsingTable, state *lrState, sym symbol.Symbol, prod *production) error {
	act := tab.readAction(state.num.Int(), sym.Num().Int())
	if !act.isEmpty() {
		ty, _, p := act.describe()
		switch ty {
		case ActionTypeReduce:
			if p == prod.num {
				return nil
			}
			existing, ok := b.prods.findByNum(p)
			if !ok {
				return fmt.Errorf("production not found: %v", p)
			}
			return b.newReduceReduceConflictError(state, sym, existing, prod)
		case ActionTypeShift:
			shiftProd, ok := b.prods.findByNum(tab.readReason(state.num.Int(), sym.Num().Int()))
			if !ok {
				return fmt.Errorf("the shift rule of state %v on %v was not recorded", state.num, sym)
			}
			winner, resolved := b.resolveSRConflict(shiftProd, prod)
			if !resolved {
				return b.newShiftReduceConflictError(state, sym, shiftProd, prod)
			}
			if winner == ActionTypeShift {
				return nil
			}
		}
	}
	tab.writeAction(state.num.Int(), sym.Num().Int(), newReduceActionEntry(prod.num), prod.num)
	return nil
}

// resolveSRConflict applies the precedence rules to a shift/reduce
// conflict. Both rules must belong to the same precedence set; the higher
// level wins, and on a tie left associativity chooses the reduction, right
// associativity the shift. Everything else is unresolvable.
func (b *lrTableBuilder) resolveSRConflict(shiftProd, reduceProd *production) (ActionType, bool) {
	shiftSet, shiftLvl, shiftAssoc := b.gram.effectivePrecedence(shiftProd)
	reduceSet, reduceLvl, _ := b.gram.effectivePrecedence(reduceProd)

	if shiftSet == precNil || shiftSet != reduceSet {
		return ActionTypeError, false
	}
	if shiftLvl > reduceLvl {
		return ActionTypeShift, true
	}
	if shiftLvl < reduceLvl {
		return ActionTypeReduce, true
	}
	switch shiftAssoc {
	case assocTypeLeft:
		return ActionTypeReduce, true
	case assocTypeRight:
		return ActionTypeShift, true
	}
	return ActionTypeError, false
}

func (b *lrTableBuilder) newShiftReduceConflictError(state *lrState, sym symbol.Symbol, shiftProd, reduceProd *production) error {
	return &ShiftReduceConflictError{
		ShiftRule:  b.renderProduction(shiftProd),
		ReduceRule: b.renderProduction(reduceProd),
		Symbol:     b.renderSymbol(sym),
		State:      state.num.Int(),
		Items:      b.renderState(state),
	}
}

func (b *lrTableBuilder) newReduceReduceConflictError(state *lrState, sym symbol.Symbol, prod1, prod2 *production) error {
	return &ReduceReduceConflictError{
		Rule1:  b.renderProduction(prod1),
		Rule2:  b.renderProduction(prod2),
		Symbol: b.renderSymbol(sym),
		State:  state.num.Int(),
		Items:  b.renderState(state),
	}
}

func (b *lrTableBuilder) sortedStates() []*lrState {
	states := make([]*lrState, 0, len(b.automaton.states))
	for _, state := range b.automaton.states {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].num < states[j].num
	})
	return states
}

// renderSymbol prints a symbol by name, quoting names containing characters
// outside ASCII letters, digits, underscores, and spaces. The reserved @end/@error names stay
// bare.
func (b *lrTableBuilder) renderSymbol(sym symbol.Symbol) string {
	text, ok := b.symTab.ToText(sym)
	if !ok {
		return sym.String()
	}
	if strings.HasPrefix(text, "@") {
		return text
	}
	for _, r := range text {
		if r == '_' || r == ' ' {
			continue
		}
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			continue
		}
		return "'" + text + "'"
	}
	return text
}

func (b *lrTableBuilder) renderProduction(prod *production) string {
	var sb strings.Builder
	lhs, _ := b.symTab.ToText(prod.lhs)
	fmt.Fprintf(&sb, "%v →", lhs)
	if prod.rhsLen == 0 {
		sb.WriteString(" ε")
	} else {
		for _, sym := range prod.rhs {
			fmt.Fprintf(&sb, " %v", b.renderSymbol(sym))
		}
	}
	return sb.String()
}

// renderItem prints an LR(1) item like "[E → E · '+' E, @end]".
func (b *lrTableBuilder) renderItem(item *lrItem) string {
	prod, ok := b.prods.findByID(item.prod)
	if !ok {
		return item.id.String()
	}

	var sb strings.Builder
	lhs, _ := b.symTab.ToText(prod.lhs)
	fmt.Fprintf(&sb, "[%v →", lhs)
	for i := 0; i < item.dot; i++ {
		fmt.Fprintf(&sb, " %v", b.renderSymbol(prod.rhs[i]))
	}
	sb.WriteString(" ·")
	for i := item.dot; i < prod.rhsLen; i++ {
		fmt.Fprintf(&sb, " %v", b.renderSymbol(prod.rhs[i]))
	}
	fmt.Fprintf(&sb, ", %v]", b.renderSymbol(item.lookAhead))
	return sb.String()
}

// renderState prints every item of the state's closure, kernel items first.
func (b *lrTableBuilder) renderState(state *lrState) []string {
	items := make([]*lrItem, len(state.closure))
	copy(items, state.closure)
	sort.Slice(items, func(i, j int) bool {
		if items[i].kernel != items[j].kernel {
			return items[i].kernel
		}
		pi, _ := b.prods.findByID(items[i].prod)
		pj, _ := b.prods.findByID(items[j].prod)
		if pi.num != pj.num {
			return pi.num < pj.num
		}
		if items[i].dot != items[j].dot {
			return items[i].dot < items[j].dot
		}
		return items[i].lookAhead < items[j].lookAhead
	})

	rendered := make([]string, len(items))
	for i, item := range items {
		rendered[i] = b.renderItem(item)
	}
	return rendered
}

func (b *lrTableBuilder) genCompiledGrammar(name string, ptab *parsingTable) *spec.CompiledGrammar {
	prodCount := int(b.prods.num)

	action := make([]int, len(ptab.actionTable))
	for i, e := range ptab.actionTable {
		action[i] = int(e)
	}

	lhsSymbols := make([]int, prodCount)
	altSymCounts := make([]int, prodCount)
	errorProds := make([]int, prodCount)
	treeActions := make([][]int, prodCount)
	for _, prod := range b.prods.getAllProductions() {
		num := prod.num.Int()
		lhsSymbols[num] = prod.lhs.Num().Int()
		altSymCounts[num] = prod.rhsLen
		if prod.isError {
			errorProds[num] = 1
		}

		var acts []int
		for i, sym := range prod.rhs {
			switch {
			case sym.IsTerminal():
				if prod.preserved[i] {
					acts = append(acts, i+1)
				}
			case b.gram.isCollapsible(sym):
				acts = append(acts, -(i + 1))
			default:
				acts = append(acts, i+1)
			}
		}
		treeActions[num] = acts
	}

	return &spec.CompiledGrammar{
		Name: name,
		ParsingTable: &spec.ParsingTable{
			Action:                  action,
			GoTo:                    ptab.goToTable,
			StateCount:              ptab.stateCount,
			InitialState:            ptab.initialState.Int(),
			StartProduction:         productionNumStart.Int(),
			LHSSymbols:              lhsSymbols,
			AlternativeSymbolCounts: altSymCounts,
			Terminals:               b.symTab.TerminalTexts(),
			TerminalCount:           ptab.terminalCount,
			NonTerminals:            b.symTab.VariableTexts(),
			NonTerminalCount:        ptab.variableCount,
			EOFSymbol:               symbol.SymbolEOF.Num().Int(),
			ErrorSymbol:             symbol.SymbolError.Num().Int(),
			ErrorTrapperStates:      ptab.errorTrapperStates,
			ErrorProductions:        errorProds,
		},
		TreeAction: &spec.TreeAction{
			Entries: treeActions,
		},
	}
}

func (b *lrTableBuilder) genReport(ptab *parsingTable, first *firstSet) (*spec.Report, error) {
	follow, err := genFollowSet(b.prods, first)
	if err != nil {
		return nil, err
	}

	var terms []*spec.Terminal
	for _, sym := range b.symTab.TerminalSymbols() {
		name, ok := b.symTab.ToText(sym)
		if !ok {
			return nil, fmt.Errorf("symbol not found: %v", sym)
		}
		terms = append(terms, &spec.Terminal{
			Number: sym.Num().Int(),
			Name:   name,
		})
	}

	var nonTerms []*spec.NonTerminal
	for _, sym := range b.symTab.VariableSymbols() {
		name, ok := b.symTab.ToText(sym)
		if !ok {
			return nil, fmt.Errorf("symbol not found: %v", sym)
		}

		nt := &spec.NonTerminal{
			Number: sym.Num().Int(),
			Name:   name,
		}

		if e := first.findBySymbol(sym); e != nil {
			for s := range e.symbols {
				nt.First = append(nt.First, b.renderSymbol(s))
			}
			sort.Strings(nt.First)
			if e.empty {
				nt.First = append(nt.First, "ε")
			}
		}
		if e, err := follow.find(sym); err == nil {
			for s := range e.symbols {
				nt.Follow = append(nt.Follow, b.renderSymbol(s))
			}
			sort.Strings(nt.Follow)
			if e.eof {
				nt.Follow = append(nt.Follow, "@end")
			}
		}

		nonTerms = append(nonTerms, nt)
	}

	var prods []*spec.Production
	for _, prod := range b.prods.getAllProductions() {
		lhs, _ := b.symTab.ToText(prod.lhs)
		var rhs []string
		for _, sym := range prod.rhs {
			rhs = append(rhs, b.renderSymbol(sym))
		}

		set, lvl, assoc := b.gram.effectivePrecedence(prod)
		prods = append(prods, &spec.Production{
			Number:          prod.num.Int(),
			LHS:             lhs,
			RHS:             rhs,
			PrecedenceSet:   set,
			PrecedenceLevel: lvl,
			Associativity:   string(assoc),
		})
	}
	sort.Slice(prods, func(i, j int) bool {
		return prods[i].Number < prods[j].Number
	})

	var states []*spec.State
	for _, state := range b.sortedStates() {
		kernel := make([]string, len(state.items))
		for i, item := range state.items {
			kernel[i] = b.renderItem(item)
		}

		s := &spec.State{
			Number: state.num.Int(),
			Kernel: kernel,
		}

		reduces := map[productionNum]*spec.Reduce{}
		var reduceOrder []productionNum
		for term := 0; term < ptab.terminalCount; term++ {
			act, next, prod := ptab.readAction(state.num.Int(), term).describe()
			switch act {
			case ActionTypeShift:
				s.Shift = append(s.Shift, &spec.Transition{
					Symbol: b.symTab.TerminalTexts()[term],
					State:  next.Int(),
				})
			case ActionTypeReduce:
				if prod == productionNumStart && term == symbol.SymbolEOF.Num().Int() {
					s.Accept = true
					continue
				}
				r, ok := reduces[prod]
				if !ok {
					r = &spec.Reduce{
						Production: prod.Int(),
					}
					reduces[prod] = r
					reduceOrder = append(reduceOrder, prod)
				}
				r.LookAhead = append(r.LookAhead, b.symTab.TerminalTexts()[term])
			}
		}
		for _, prod := range reduceOrder {
			s.Reduce = append(s.Reduce, reduces[prod])
		}

		for v := 0; v < ptab.variableCount; v++ {
			next := ptab.goToTable[state.num.Int()*ptab.variableCount+v]
			if next == 0 {
				continue
			}
			s.GoTo = append(s.GoTo, &spec.Transition{
				Symbol: b.symTab.VariableTexts()[v],
				State:  next,
			})
		}

		states = append(states, s)
	}

	return &spec.Report{
		Terminals:    terms,
		NonTerminals: nonTerms,
		Productions:  prods,
		States:       states,
	}, nil
}

type compileConfig struct {
	reportEnabled bool
}

type CompileOption func(config *compileConfig)

func EnableReporting() CompileOption {
	return func(config *compileConfig) {
		config.reportEnabled = true
	}
}

// Compile augments the grammar with the internal start symbol, generates
// the canonical LR(1) state collection, and fills the ACTION and GOTO
// tables. An unresolved conflict aborts the build with a
// ShiftReduceConflictError or ReduceReduceConflictError.
func Compile(gram *Grammar, opts ...CompileOption) (*spec.CompiledGrammar, *spec.Report, error) {
	config := &compileConfig{}
	for _, opt := range opts {
		opt(config)
	}

	if gram.augmentedStartSymbol.IsNil() {
		augSym, err := gram.symbolTable.Writer().RegisterStartSymbol("@start")
		if err != nil {
			return nil, nil, err
		}
		augProd, err := newProduction(augSym, []symbol.Symbol{gram.startSymbol}, []bool{true})
		if err != nil {
			return nil, nil, err
		}
		gram.productionSet.append(augProd)
		gram.augmentedStartSymbol = augSym
	}

	first, err := genFirstSet(gram.productionSet)
	if err != nil {
		return nil, nil, err
	}

	automaton, err := genLR1Automaton(gram.productionSet, first, gram.augmentedStartSymbol)
	if err != nil {
		return nil, nil, err
	}

	r := gram.symbolTable.Reader()
	b := &lrTableBuilder{
		automaton: automaton,
		prods:     gram.productionSet,
		gram:      gram,
		symTab:    r,
		termCount: r.TerminalCount(),
		varCount:  r.VariableCount(),
	}

	ptab, err := b.build()
	if err != nil {
		return nil, nil, err
	}

	cgram := b.genCompiledGrammar(gram.name, ptab)

	var report *spec.Report
	if config.reportEnabled {
		report, err = b.genReport(ptab, first)
		if err != nil {
			return nil, nil, err
		}
	}

	return cgram, report, nil
}
