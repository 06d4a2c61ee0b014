package spec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	verr "github.com/kang-lang/kang/error"
)

type RootNode struct {
	Name      string
	Start     string
	Terminals []*TerminalNode
	Variables []*VariableNode
}

type TerminalNode struct {
	Name    string
	Discard bool
	Row     int
}

type VariableNode struct {
	Name       string
	Rules      []*RuleNode
	PrecBlocks []*PrecedenceBlockNode
	Row        int
}

type RuleNode struct {
	Items []*ItemNode
	Row   int
}

// PrecedenceBlockNode is an `orderedByPrecedence` element. Each entry gets
// the precedence level equal to its ordinal position within the block, and
// all rules of the block share one fresh precedence set.
type PrecedenceBlockNode struct {
	Entries []*PrecedenceEntryNode
	Row     int
}

// PrecedenceEntryNode is either a bare rule or a group of rules sharing
// associativity.
type PrecedenceEntryNode struct {
	Associativity string
	Rules         []*RuleNode
	Row           int
}

type ItemKind string

const (
	ItemKindTerminal = ItemKind("terminal")
	ItemKindVariable = ItemKind("variable")
	ItemKindGroup    = ItemKind("group")
	ItemKindOptional = ItemKind("optional")
	ItemKindRepeat   = ItemKind("repeat")
	ItemKindChoice   = ItemKind("choice")
	ItemKindError    = ItemKind("error")
)

type ItemNode struct {
	Kind ItemKind

	// Name is set for terminal and variable references.
	Name string

	// Preserved overrides the terminal's default discardability when set.
	Preserved *bool

	// Min and Max bound a repeat item. Max is meaningful only when Bounded
	// is true.
	Min     int
	Max     int
	Bounded bool

	// Children holds the nested items of group, optional, repeat, and
	// choice. For a choice, every child is one alternative.
	Children []*ItemNode

	Row int
}

var (
	synErrInvalidDocument  = errors.New("invalid grammar description")
	synErrUnknownElement   = errors.New("unknown element")
	synErrMissingAttribute = errors.New("missing attribute")
	synErrInvalidAttribute = errors.New("invalid attribute value")
	synErrEmptyReference   = errors.New("a reference needs a non-empty name")
)

// Parse reads an XML grammar description and returns its document tree.
// The extended constructs are kept as-is; desugaring into plain productions
// is the grammar builder's job.
func Parse(r io.Reader) (*RootNode, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	p := &parser{
		d:          xml.NewDecoder(bytes.NewReader(src)),
		lineStarts: genLineStarts(src),
	}
	root, err := p.parseGrammar()
	if err != nil {
		var specErr *verr.SpecError
		if errors.As(err, &specErr) {
			return nil, err
		}
		return nil, &verr.SpecError{
			Cause:  synErrInvalidDocument,
			Detail: err.Error(),
			Row:    p.row(),
		}
	}
	return root, nil
}

func genLineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

type parser struct {
	d          *xml.Decoder
	lineStarts []int
}

// row reports the 1-based row the decoder is currently at.
func (p *parser) row() int {
	offset := int(p.d.InputOffset())
	row := 1
	for _, start := range p.lineStarts[1:] {
		if start > offset {
			break
		}
		row++
	}
	return row
}

func (p *parser) specErr(cause error, format string, args ...interface{}) error {
	return &verr.SpecError{
		Cause:  cause,
		Detail: fmt.Sprintf(format, args...),
		Row:    p.row(),
	}
}

func (p *parser) parseGrammar() (*RootNode, error) {
	start, err := p.nextStart(nil)
	if err != nil {
		return nil, err
	}
	if start == nil || start.Name.Local != "grammar" {
		return nil, p.specErr(synErrInvalidDocument, "the document element must be <grammar>")
	}

	root := &RootNode{
		Name:  attr(start, "name"),
		Start: attr(start, "start"),
	}

	for {
		elem, err := p.nextStart(&start.Name)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return root, nil
		}

		switch elem.Name.Local {
		case "terminal":
			term := &TerminalNode{
				Name:    attr(elem, "name"),
				Discard: attr(elem, "discard") == "yes",
				Row:     p.row(),
			}
			if term.Name == "" {
				return nil, p.specErr(synErrMissingAttribute, "<terminal> needs a name attribute")
			}
			if err := p.d.Skip(); err != nil {
				return nil, err
			}
			root.Terminals = append(root.Terminals, term)
		case "variable":
			v, err := p.parseVariable(elem)
			if err != nil {
				return nil, err
			}
			root.Variables = append(root.Variables, v)
		default:
			return nil, p.specErr(synErrUnknownElement, "<%v>", elem.Name.Local)
		}
	}
}

func (p *parser) parseVariable(start *xml.StartElement) (*VariableNode, error) {
	v := &VariableNode{
		Name: attr(start, "name"),
		Row:  p.row(),
	}
	if v.Name == "" {
		return nil, p.specErr(synErrMissingAttribute, "<variable> needs a name attribute")
	}

	for {
		elem, err := p.nextStart(&start.Name)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return v, nil
		}

		switch elem.Name.Local {
		case "rule":
			rule, err := p.parseRule(elem)
			if err != nil {
				return nil, err
			}
			v.Rules = append(v.Rules, rule)
		case "orderedByPrecedence":
			block, err := p.parsePrecedenceBlock(elem)
			if err != nil {
				return nil, err
			}
			v.PrecBlocks = append(v.PrecBlocks, block)
		default:
			return nil, p.specErr(synErrUnknownElement, "<%v> in <variable>", elem.Name.Local)
		}
	}
}

func (p *parser) parsePrecedenceBlock(start *xml.StartElement) (*PrecedenceBlockNode, error) {
	block := &PrecedenceBlockNode{
		Row: p.row(),
	}

	for {
		elem, err := p.nextStart(&start.Name)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return block, nil
		}

		switch elem.Name.Local {
		case "rule":
			assoc := attr(elem, "associativity")
			rule, err := p.parseRule(elem)
			if err != nil {
				return nil, err
			}
			block.Entries = append(block.Entries, &PrecedenceEntryNode{
				Associativity: assoc,
				Rules:         []*RuleNode{rule},
				Row:           rule.Row,
			})
		case "group":
			entry := &PrecedenceEntryNode{
				Associativity: attr(elem, "associativity"),
				Row:           p.row(),
			}
			for {
				ruleElem, err := p.nextStart(&elem.Name)
				if err != nil {
					return nil, err
				}
				if ruleElem == nil {
					break
				}
				if ruleElem.Name.Local != "rule" {
					return nil, p.specErr(synErrUnknownElement, "<%v> in precedence <group>", ruleElem.Name.Local)
				}
				rule, err := p.parseRule(ruleElem)
				if err != nil {
					return nil, err
				}
				entry.Rules = append(entry.Rules, rule)
			}
			block.Entries = append(block.Entries, entry)
		default:
			return nil, p.specErr(synErrUnknownElement, "<%v> in <orderedByPrecedence>", elem.Name.Local)
		}
	}
}

func (p *parser) parseRule(start *xml.StartElement) (*RuleNode, error) {
	row := p.row()
	items, err := p.parseItems(start)
	if err != nil {
		return nil, err
	}
	return &RuleNode{
		Items: items,
		Row:   row,
	}, nil
}

// parseItems reads the ordered item list nested in the given element. The
// order of mixed child elements is significant, so this walks the raw token
// stream instead of using struct unmarshaling.
func (p *parser) parseItems(parent *xml.StartElement) ([]*ItemNode, error) {
	var items []*ItemNode
	for {
		elem, err := p.nextStart(&parent.Name)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return items, nil
		}

		row := p.row()
		switch elem.Name.Local {
		case "terminal":
			var preserved *bool
			switch attr(elem, "preserved") {
			case "yes":
				t := true
				preserved = &t
			case "no":
				f := false
				preserved = &f
			case "":
			default:
				return nil, p.specErr(synErrInvalidAttribute, "preserved must be yes or no")
			}
			name, err := p.text(elem)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, p.specErr(synErrEmptyReference, "<terminal>")
			}
			items = append(items, &ItemNode{
				Kind:      ItemKindTerminal,
				Name:      name,
				Preserved: preserved,
				Row:       row,
			})
		case "variable":
			name, err := p.text(elem)
			if err != nil {
				return nil, err
			}
			if name == "" {
				return nil, p.specErr(synErrEmptyReference, "<variable>")
			}
			items = append(items, &ItemNode{
				Kind: ItemKindVariable,
				Name: name,
				Row:  row,
			})
		case "group", "optional", "choice":
			children, err := p.parseItems(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, &ItemNode{
				Kind:     ItemKind(elem.Name.Local),
				Children: children,
				Row:      row,
			})
		case "repeat":
			minText := attr(elem, "minimum")
			if minText == "" {
				return nil, p.specErr(synErrMissingAttribute, "<repeat> needs a minimum attribute")
			}
			min, err := strconv.Atoi(minText)
			if err != nil || min < 0 {
				return nil, p.specErr(synErrInvalidAttribute, "minimum: %v", minText)
			}
			item := &ItemNode{
				Kind: ItemKindRepeat,
				Min:  min,
				Row:  row,
			}
			if maxText := attr(elem, "maximum"); maxText != "" {
				max, err := strconv.Atoi(maxText)
				if err != nil || max < 0 {
					return nil, p.specErr(synErrInvalidAttribute, "maximum: %v", maxText)
				}
				item.Max = max
				item.Bounded = true
			}
			item.Children, err = p.parseItems(elem)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		case "error":
			if err := p.d.Skip(); err != nil {
				return nil, err
			}
			items = append(items, &ItemNode{
				Kind: ItemKindError,
				Row:  row,
			})
		default:
			return nil, p.specErr(synErrUnknownElement, "<%v>", elem.Name.Local)
		}
	}
}

// nextStart returns the next child start element, or nil when the end of
// the enclosing element (or the document) is reached. Character data between
// elements must be blank.
func (p *parser) nextStart(enclosing *xml.Name) (*xml.StartElement, error) {
	for {
		tok, err := p.d.Token()
		if err == io.EOF {
			if enclosing != nil {
				return nil, p.specErr(synErrInvalidDocument, "unexpected end of document")
			}
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			start := t.Copy()
			return &start, nil
		case xml.EndElement:
			return nil, nil
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return nil, p.specErr(synErrInvalidDocument, "stray text %q", strings.TrimSpace(string(t)))
			}
		}
	}
}

// text reads the character data content of the given element up to its end
// tag.
func (p *parser) text(start *xml.StartElement) (string, error) {
	var b strings.Builder
	for {
		tok, err := p.d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return strings.TrimSpace(b.String()), nil
		case xml.StartElement:
			return "", p.specErr(synErrInvalidDocument, "<%v> must contain only text", start.Name.Local)
		}
	}
}

func attr(elem *xml.StartElement, name string) string {
	for _, a := range elem.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
