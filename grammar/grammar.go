package grammar

import (
	"fmt"

	verr "github.com/kang-lang/kang/error"
	"github.com/kang-lang/kang/grammar/symbol"
	"github.com/kang-lang/kang/spec"
)

type assocType string

const (
	assocTypeNone  = assocType("")
	assocTypeLeft  = assocType("left")
	assocTypeRight = assocType("right")
)

const precNil = -1

// precAndAssoc records the precedence attributes rules carry. Rules outside
// any orderedByPrecedence block have no entries; rules of a collapsible
// auxiliary variable are looked up through their parent rule instead (see
// Grammar.precedenceRuleOf).
type precAndAssoc struct {
	prodPrecSet map[productionNum]int
	prodPrecLvl map[productionNum]int
	prodAssoc   map[productionNum]assocType
}

func newPrecAndAssoc() *precAndAssoc {
	return &precAndAssoc{
		prodPrecSet: map[productionNum]int{},
		prodPrecLvl: map[productionNum]int{},
		prodAssoc:   map[productionNum]assocType{},
	}
}

func (pa *precAndAssoc) precedenceSet(prod productionNum) int {
	set, ok := pa.prodPrecSet[prod]
	if !ok {
		return precNil
	}
	return set
}

func (pa *precAndAssoc) precedenceLevel(prod productionNum) int {
	lvl, ok := pa.prodPrecLvl[prod]
	if !ok {
		return precNil
	}
	return lvl
}

func (pa *precAndAssoc) associativity(prod productionNum) assocType {
	assoc, ok := pa.prodAssoc[prod]
	if !ok {
		return assocTypeNone
	}
	return assoc
}

// Grammar is the elaborated, plain-BNF form of a grammar description. It is
// frozen once built; Compile augments it with the internal start symbol when
// generating tables.
type Grammar struct {
	name                 string
	symbolTable          *symbol.SymbolTable
	productionSet        *productionSet
	startSymbol          symbol.Symbol
	augmentedStartSymbol symbol.Symbol

	// parentRule maps every auxiliary (collapsible) variable to the rule the
	// desugarer created it for.
	parentRule map[symbol.Symbol]productionID

	precAndAssoc *precAndAssoc
}

func (g *Grammar) Name() string {
	return g.name
}

func (g *Grammar) isCollapsible(sym symbol.Symbol) bool {
	_, ok := g.parentRule[sym]
	return ok
}

// precedenceRuleOf resolves the rule whose precedence attributes apply to
// prod: rules of a collapsible variable inherit from their parent rule,
// transitively.
func (g *Grammar) precedenceRuleOf(prod *production) *production {
	p := prod
	for {
		parentID, ok := g.parentRule[p.lhs]
		if !ok {
			return p
		}
		parent, ok := g.productionSet.findByID(parentID)
		if !ok {
			return p
		}
		p = parent
	}
}

func (g *Grammar) effectivePrecedence(prod *production) (int, int, assocType) {
	p := g.precedenceRuleOf(prod)
	return g.precAndAssoc.precedenceSet(p.num),
		g.precAndAssoc.precedenceLevel(p.num),
		g.precAndAssoc.associativity(p.num)
}

type GrammarBuilder struct {
	AST *spec.RootNode

	errs verr.SpecErrors
}

func (b *GrammarBuilder) Build() (*Grammar, error) {
	if b.AST.Name == "" {
		b.errs = append(b.errs, &verr.SpecError{
			Cause: semErrNoGrammarName,
		})
	}

	symTab := symbol.NewSymbolTable()
	w := symTab.Writer()
	r := symTab.Reader()

	discardable := map[symbol.Symbol]struct{}{}
	for _, t := range b.AST.Terminals {
		if _, ok := r.ToSymbol(t.Name); ok {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateTerminal,
				Detail: t.Name,
				Row:    t.Row,
			})
			continue
		}
		sym, err := w.RegisterTerminalSymbol(t.Name)
		if err != nil {
			return nil, err
		}
		if t.Discard {
			discardable[sym] = struct{}{}
		}
	}

	// All variables are registered before any rule is desugared so forward
	// references resolve.
	for _, v := range b.AST.Variables {
		if _, ok := r.ToSymbol(v.Name); ok {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateName,
				Detail: v.Name,
				Row:    v.Row,
			})
			continue
		}
		if _, err := w.RegisterVariableSymbol(v.Name); err != nil {
			return nil, err
		}
	}

	var startSym symbol.Symbol
	if b.AST.Start == "" {
		b.errs = append(b.errs, &verr.SpecError{
			Cause: semErrNoStartVariable,
		})
	} else {
		sym, ok := r.ToSymbol(b.AST.Start)
		if !ok || !sym.IsVariable() {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrUndefinedStart,
				Detail: b.AST.Start,
			})
		} else {
			startSym = sym
		}
	}

	if len(b.errs) > 0 {
		return nil, b.errs
	}

	d := &desugarer{
		symTab:      symTab,
		discardable: discardable,
		parentOf:    map[symbol.Symbol]*ruleSpec{},
	}
	for _, v := range b.AST.Variables {
		d.variable(v)
	}
	if len(d.errs) > 0 {
		return nil, d.errs
	}

	prods := newProductionSet()
	pa := newPrecAndAssoc()
	for _, rs := range d.rules {
		rhs := make([]symbol.Symbol, len(rs.refs))
		preserved := make([]bool, len(rs.refs))
		for i, ref := range rs.refs {
			rhs[i] = ref.sym
			preserved[i] = ref.preserved
		}
		prod, err := newProduction(rs.lhs, rhs, preserved)
		if err != nil {
			return nil, err
		}
		if !prods.append(prod) {
			lhsText, _ := r.ToText(rs.lhs)
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateProduction,
				Detail: lhsText,
				Row:    rs.row,
			})
			existing, _ := prods.findByID(prod.id)
			rs.prod = existing
			continue
		}
		rs.prod = prod

		if rs.precSet != precNil {
			pa.prodPrecSet[prod.num] = rs.precSet
			pa.prodPrecLvl[prod.num] = rs.precLevel
			pa.prodAssoc[prod.num] = rs.assoc
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	// Every variable, user-defined or auxiliary, must derive something.
	for _, sym := range r.VariableSymbols() {
		if sym.IsStart() {
			continue
		}
		if _, ok := prods.findByLHS(sym); !ok {
			text, _ := r.ToText(sym)
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrNoProduction,
				Detail: text,
			})
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	parentRule := map[symbol.Symbol]productionID{}
	for auxSym, parent := range d.parentOf {
		parentRule[auxSym] = parent.prod.id
	}

	return &Grammar{
		name:          b.AST.Name,
		symbolTable:   symTab,
		productionSet: prods,
		startSymbol:   startSym,
		parentRule:    parentRule,
		precAndAssoc:  pa,
	}, nil
}

type ref struct {
	sym       symbol.Symbol
	preserved bool
}

type ruleSpec struct {
	lhs       symbol.Symbol
	refs      []ref
	precSet   int
	precLevel int
	assoc     assocType
	row       int

	// prod is filled in once the spec is turned into a production.
	prod *production
}

// desugarer translates the extended constructs into plain rules over fresh
// auxiliary variables. Auxiliary variables are named `<owner>@<n>`, where n
// skips any number whose name is already registered, so the names cannot
// collide with user names.
type desugarer struct {
	symTab      *symbol.SymbolTable
	discardable map[symbol.Symbol]struct{}

	rules    []*ruleSpec
	parentOf map[symbol.Symbol]*ruleSpec
	auxNum   int

	precSetCount int

	errs verr.SpecErrors
}

func (d *desugarer) variable(v *spec.VariableNode) {
	lhs, _ := d.symTab.Reader().ToSymbol(v.Name)

	for _, r := range v.Rules {
		d.rule(lhs, r, precNil, precNil, assocTypeNone)
	}

	for _, block := range v.PrecBlocks {
		set := d.precSetCount
		d.precSetCount++

		for level, entry := range block.Entries {
			var assoc assocType
			switch entry.Associativity {
			case "left":
				assoc = assocTypeLeft
			case "right":
				assoc = assocTypeRight
			case "", "none":
				assoc = assocTypeNone
			default:
				d.errs = append(d.errs, &verr.SpecError{
					Cause:  semErrInvalidAssoc,
					Detail: entry.Associativity,
					Row:    entry.Row,
				})
				continue
			}

			for _, r := range entry.Rules {
				d.rule(lhs, r, set, level, assoc)
			}
		}
	}
}

func (d *desugarer) rule(lhs symbol.Symbol, r *spec.RuleNode, set, level int, assoc assocType) *ruleSpec {
	rs := &ruleSpec{
		lhs:       lhs,
		precSet:   set,
		precLevel: level,
		assoc:     assoc,
		row:       r.Row,
	}
	d.rules = append(d.rules, rs)
	d.items(rs, r.Items)
	return rs
}

func (d *desugarer) items(rs *ruleSpec, items []*spec.ItemNode) {
	for _, item := range items {
		d.item(rs, item)
	}
}

func (d *desugarer) item(rs *ruleSpec, item *spec.ItemNode) {
	switch item.Kind {
	case spec.ItemKindTerminal:
		sym, ok := d.symTab.Reader().ToSymbol(item.Name)
		if !ok || !sym.IsTerminal() {
			d.errs = append(d.errs, &verr.SpecError{
				Cause:  semErrUndefinedTerminal,
				Detail: item.Name,
				Row:    item.Row,
			})
			return
		}
		_, discard := d.discardable[sym]
		preserved := !discard
		if item.Preserved != nil {
			preserved = *item.Preserved
		}
		rs.refs = append(rs.refs, ref{sym: sym, preserved: preserved})

	case spec.ItemKindVariable:
		sym, ok := d.symTab.Reader().ToSymbol(item.Name)
		if !ok || !sym.IsVariable() {
			d.errs = append(d.errs, &verr.SpecError{
				Cause:  semErrUndefinedVariable,
				Detail: item.Name,
				Row:    item.Row,
			})
			return
		}
		rs.refs = append(rs.refs, ref{sym: sym, preserved: true})

	case spec.ItemKindGroup:
		// aux → items
		aux := d.newAuxVariable(rs)
		sub := d.auxRule(aux, rs, item.Row)
		d.items(sub, item.Children)
		rs.refs = append(rs.refs, ref{sym: aux, preserved: true})

	case spec.ItemKindOptional:
		// aux → items | ε
		aux := d.newAuxVariable(rs)
		sub := d.auxRule(aux, rs, item.Row)
		d.items(sub, item.Children)
		d.auxRule(aux, rs, item.Row)
		rs.refs = append(rs.refs, ref{sym: aux, preserved: true})

	case spec.ItemKindRepeat:
		if item.Bounded {
			if item.Min > item.Max {
				d.errs = append(d.errs, &verr.SpecError{
					Cause:  semErrRepeatBounds,
					Detail: fmt.Sprintf("minimum %v, maximum %v", item.Min, item.Max),
					Row:    item.Row,
				})
				return
			}
			// aux → items^i for each i in [minimum, maximum]
			aux := d.newAuxVariable(rs)
			for i := item.Min; i <= item.Max; i++ {
				sub := d.auxRule(aux, rs, item.Row)
				for j := 0; j < i; j++ {
					d.items(sub, item.Children)
				}
			}
			rs.refs = append(rs.refs, ref{sym: aux, preserved: true})
		} else {
			// aux → aux items | items^minimum
			aux := d.newAuxVariable(rs)
			rec := d.auxRule(aux, rs, item.Row)
			rec.refs = append(rec.refs, ref{sym: aux, preserved: true})
			d.items(rec, item.Children)
			base := d.auxRule(aux, rs, item.Row)
			for j := 0; j < item.Min; j++ {
				d.items(base, item.Children)
			}
			rs.refs = append(rs.refs, ref{sym: aux, preserved: true})
		}

	case spec.ItemKindChoice:
		// aux → alt₁ | … | altₖ
		aux := d.newAuxVariable(rs)
		for _, alt := range item.Children {
			sub := d.auxRule(aux, rs, alt.Row)
			d.item(sub, alt)
		}
		rs.refs = append(rs.refs, ref{sym: aux, preserved: true})

	case spec.ItemKindError:
		rs.refs = append(rs.refs, ref{sym: symbol.SymbolError, preserved: true})

	default:
		d.errs = append(d.errs, &verr.SpecError{
			Cause: newSemanticError(fmt.Sprintf("unknown item kind: %v", item.Kind)),
			Row:   item.Row,
		})
	}
}

func (d *desugarer) newAuxVariable(parent *ruleSpec) symbol.Symbol {
	owner, _ := d.symTab.Reader().ToText(parent.lhs)
	var name string
	for {
		name = fmt.Sprintf("%v@%v", owner, d.auxNum)
		d.auxNum++
		if _, taken := d.symTab.Reader().ToSymbol(name); !taken {
			break
		}
	}
	sym, _ := d.symTab.Writer().RegisterVariableSymbol(name)
	d.parentOf[sym] = parent
	return sym
}

func (d *desugarer) auxRule(lhs symbol.Symbol, parent *ruleSpec, row int) *ruleSpec {
	rs := &ruleSpec{
		lhs:       lhs,
		precSet:   precNil,
		precLevel: precNil,
		row:       row,
	}
	d.rules = append(d.rules, rs)
	return rs
}
