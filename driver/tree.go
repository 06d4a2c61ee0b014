package driver

import (
	"fmt"
	"io"

	"github.com/kang-lang/kang/source"
)

type NodeType string

const (
	// NodeTypeTerminal is a leaf holding one token.
	NodeTypeTerminal = NodeType("terminal")
	// NodeTypeVariable is a non-terminal with the nodes it derived.
	NodeTypeVariable = NodeType("variable")
	// NodeTypeError marks a recovered syntax error.
	NodeTypeError = NodeType("error")
)

// Node is a parse tree node. Children are owned by their parent; there are
// no parent pointers, so callers that need upward traversal carry it as
// context.
type Node struct {
	Type     NodeType
	KindName string

	// Text is the matched lexeme for terminal nodes and the offending
	// lexeme, if any, for error nodes.
	Text string

	Children []*Node

	// ExpectedTerminals lists, for an error node, the terminals that would
	// have been valid where the error occurred.
	ExpectedTerminals []string

	Start source.Position
	End   source.Position
}

// HasError reports whether the subtree rooted at the node contains an
// error node.
func (n *Node) HasError() bool {
	if n.Type == NodeTypeError {
		return true
	}
	for _, child := range n.Children {
		if child.HasError() {
			return true
		}
	}
	return false
}

// Tree is the result of a successful parse: the start variable's node,
// possibly with error nodes embedded where recovery took place.
type Tree struct {
	Root *Node
}

// Errors collects the error nodes embedded in the tree in source order.
func (t *Tree) Errors() []*Node {
	var errs []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Type == NodeTypeError {
			errs = append(errs, n)
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(t.Root)
	return errs
}

func PrintTree(w io.Writer, node *Node) {
	printTree(w, node, "", "")
}

func printTree(w io.Writer, node *Node, ruledLine string, childRuledLinePrefix string) {
	if node == nil {
		return
	}

	switch {
	case node.Type == NodeTypeError:
		fmt.Fprintf(w, "%v!%v %#v\n", ruledLine, node.KindName, node.Text)
	case node.Text != "":
		fmt.Fprintf(w, "%v%v %#v\n", ruledLine, node.KindName, node.Text)
	default:
		fmt.Fprintf(w, "%v%v\n", ruledLine, node.KindName)
	}

	num := len(node.Children)
	for i, child := range node.Children {
		var line string
		if num > 1 && i < num-1 {
			line = "├─ "
		} else {
			line = "└─ "
		}

		var prefix string
		if i >= num-1 {
			prefix = "   "
		} else {
			prefix = "│  "
		}

		printTree(w, child, childRuledLinePrefix+line, childRuledLinePrefix+prefix)
	}
}
