package driver

import (
	"errors"
	"fmt"

	"github.com/kang-lang/kang/spec"
	"github.com/kang-lang/kang/tokenizer"
)

// ErrNoTree is returned when a syntax error cannot be recovered from and no
// parse tree can be produced.
var ErrNoTree = errors.New("syntax errors prevented a parse tree from being built")

// UnknownTokenError is returned when the tokenizer produces a token whose
// class is not a terminal of the grammar.
type UnknownTokenError struct {
	Token tokenizer.Token
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q encountered during parsing at %v", e.Token.TokenClass(), e.Token.Start())
}

// Parser runs the shift/reduce loop over a compiled grammar and builds a
// parse tree. Syntax errors are recovered via the grammar's error rules and
// appear in the tree as error nodes.
type Parser struct {
	gram            *spec.CompiledGrammar
	toks            TokenStream
	classToTerminal map[string]int
	stateStack      []int
	nodeStack       []*Node
	errorMode       bool
}

func NewParser(gram *spec.CompiledGrammar, toks TokenStream) *Parser {
	classToTerminal := map[string]int{}
	for num, name := range gram.ParsingTable.Terminals {
		if name == "" {
			continue
		}
		classToTerminal[name] = num
	}

	return &Parser{
		gram:            gram,
		toks:            toks,
		classToTerminal: classToTerminal,
	}
}

// Parse reads tokens until the input is accepted or recovery fails. On
// success the returned tree contains one error node per recovered syntax
// error; when recovery is impossible Parse returns ErrNoTree.
func (p *Parser) Parse() (*Tree, error) {
	ptab := p.gram.ParsingTable

	p.stateStack = p.stateStack[:0]
	p.nodeStack = p.nodeStack[:0]
	p.errorMode = false
	p.push(ptab.InitialState)

	tok, err := p.toks.Token()
	if err != nil {
		return nil, err
	}

	for {
		term := ptab.EOFSymbol
		if tok != nil {
			t, ok := p.classToTerminal[tok.TokenClass()]
			if !ok {
				return nil, &UnknownTokenError{
					Token: tok,
				}
			}
			term = t
		}

		// Until the error symbol has been shifted, recovery pretends the
		// error symbol is the current token.
		if p.errorMode && !p.toks.TransactionInProgress() {
			term = ptab.ErrorSymbol
		}

		act := p.lookupAction(p.top(), term)
		if act == 0 {
			if p.errorMode {
				// The attempted reduction past the error node failed. Drop
				// the states and nodes of the failed attempt, put the error
				// node back on top, and discard one more token.
				for len(p.nodeStack) > 0 && p.nodeStack[len(p.nodeStack)-1].Type != NodeTypeError {
					p.pop(1)
					p.nodeStack = p.nodeStack[:len(p.nodeStack)-1]
				}
				if len(p.nodeStack) == 0 {
					return nil, fmt.Errorf("error recovery lost its error node")
				}

				if err := p.toks.RollbackTransaction(); err != nil {
					return nil, err
				}

				tok, err = p.toks.Token()
				if err != nil {
					return nil, err
				}
				p.toks.BeginTransaction()

				// Out of tokens with no way to accept the end of input:
				// there is no hope of recovering.
				if tok == nil && p.lookupAction(p.top(), ptab.EOFSymbol) == 0 {
					return nil, ErrNoTree
				}
			} else {
				// Find the topmost state that can shift the error symbol.
				for p.lookupAction(p.top(), ptab.ErrorSymbol) == 0 {
					if len(p.stateStack) <= 1 {
						return nil, ErrNoTree
					}
					p.pop(1)
					p.nodeStack = p.nodeStack[:len(p.nodeStack)-1]
				}
				p.errorMode = true
			}

			continue
		}

		switch {
		case act < 0: // Shift
			nextState := act * -1

			var node *Node
			if term == ptab.ErrorSymbol {
				node = p.newErrorNode(tok)
			} else {
				node = &Node{
					Type:     NodeTypeTerminal,
					KindName: ptab.Terminals[term],
					Text:     tok.Lexeme(),
					Start:    tok.Start(),
					End:      tok.End(),
				}
			}

			p.push(nextState)
			p.nodeStack = append(p.nodeStack, node)

			// Shifting the error symbol consumes no token; instead it opens
			// the transaction recovery rolls back to.
			if node.Type == NodeTypeError {
				p.toks.BeginTransaction()
			} else {
				tok, err = p.toks.Token()
				if err != nil {
					return nil, err
				}
			}

		default: // Reduce
			prod := act

			if prod == ptab.StartProduction {
				// Accept: exactly the start variable's node remains.
				if len(p.nodeStack) != 1 {
					return nil, fmt.Errorf("%v nodes remain at acceptance", len(p.nodeStack))
				}
				return &Tree{
					Root: p.nodeStack[0],
				}, nil
			}

			// A reduction by an error rule ends recovery; the discarded
			// look-ahead window is committed and forgotten.
			if ptab.ErrorProductions[prod] != 0 {
				p.errorMode = false
				if p.toks.TransactionInProgress() {
					if err := p.toks.CommitTransaction(); err != nil {
						return nil, err
					}
				}
			}

			n := ptab.AlternativeSymbolCounts[prod]
			lhs := ptab.LHSSymbols[prod]

			handle := p.nodeStack[len(p.nodeStack)-n:]
			node := p.newVariableNode(prod, lhs, handle)

			p.pop(n)
			p.nodeStack = p.nodeStack[:len(p.nodeStack)-n]
			p.nodeStack = append(p.nodeStack, node)

			p.push(ptab.GoTo[p.top()*ptab.NonTerminalCount+lhs])
		}
	}
}

func (p *Parser) lookupAction(state int, term int) int {
	return p.gram.ParsingTable.Action[state*p.gram.ParsingTable.TerminalCount+term]
}

// newErrorNode records the terminals that would have been valid in the
// current state; the error symbol itself is left out because no input can
// produce it.
func (p *Parser) newErrorNode(tok tokenizer.Token) *Node {
	ptab := p.gram.ParsingTable

	var expected []string
	base := p.top() * ptab.TerminalCount
	for term := 0; term < ptab.TerminalCount; term++ {
		if ptab.Action[base+term] == 0 || term == ptab.ErrorSymbol {
			continue
		}
		expected = append(expected, ptab.Terminals[term])
	}

	node := &Node{
		Type:              NodeTypeError,
		KindName:          ptab.Terminals[ptab.ErrorSymbol],
		ExpectedTerminals: expected,
	}
	if tok != nil {
		node.Text = tok.Lexeme()
		node.Start = tok.Start()
		node.End = tok.End()
	} else {
		pos := p.toks.Position()
		node.Start = pos
		node.End = pos
	}
	return node
}

// newVariableNode builds the replacement node for a reduction, applying
// the production's tree actions: discarded terminals are dropped and the
// children of collapsible variables are spliced in place.
func (p *Parser) newVariableNode(prod int, lhs int, handle []*Node) *Node {
	var children []*Node
	for _, e := range p.gram.TreeAction.Entries[prod] {
		if e > 0 {
			children = append(children, handle[e-1])
		} else {
			children = append(children, handle[-e-1].Children...)
		}
	}

	node := &Node{
		Type:     NodeTypeVariable,
		KindName: p.gram.ParsingTable.NonTerminals[lhs],
		Children: children,
	}
	if len(children) > 0 {
		node.Start = children[0].Start
		node.End = children[len(children)-1].End
	} else {
		// An empty replacement has no span of its own; fall back to the
		// tokenizer's position.
		pos := p.toks.Position()
		node.Start = pos
		node.End = pos
	}
	return node
}

func (p *Parser) top() int {
	return p.stateStack[len(p.stateStack)-1]
}

func (p *Parser) push(state int) {
	p.stateStack = append(p.stateStack, state)
}

func (p *Parser) pop(n int) {
	p.stateStack = p.stateStack[:len(p.stateStack)-n]
}
