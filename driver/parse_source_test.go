package driver

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kang-lang/kang/lexer"
	"github.com/kang-lang/kang/source"
	"github.com/kang-lang/kang/tokenizer"
)

type discardLogger struct {
	errs []string
}

func (l *discardLogger) Errorf(pos source.Position, format string, args ...interface{}) {
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

func (l *discardLogger) Warnf(pos source.Position, format string, args ...interface{}) {
}

func parseSource(t *testing.T, grammarSrc, src string) *Tree {
	t.Helper()

	cgram := compile(t, grammarSrc)

	log := &discardLogger{}
	lex, err := lexer.New(source.NewReader("test.kang", strings.NewReader(src)), log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}

	tree, err := NewParser(cgram, tokenizer.New(lex)).Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tree
}

const assignGrammar = `
<grammar name="assign" start="program">
  <terminal name="identifier"/>
  <terminal name="="/>
  <terminal name="end of line" discard="yes"/>
  <variable name="program">
    <rule><repeat minimum="0"><variable>stmt</variable></repeat></rule>
  </variable>
  <variable name="stmt">
    <rule>
      <terminal>identifier</terminal>
      <terminal>=</terminal>
      <terminal>identifier</terminal>
      <terminal>end of line</terminal>
    </rule>
  </variable>
</grammar>
`

func TestParser_ParsesLexedSource(t *testing.T) {
	tree := parseSource(t, assignGrammar, "x = y\nz = w\n")

	if got := render(tree.Root); got != "((x = y) (z = w))" {
		t.Fatalf("unexpected tree: %v", got)
	}
}

func TestParser_LineContinuationJoinsLines(t *testing.T) {
	tree := parseSource(t, assignGrammar, "x = …\n  y\n")

	if got := render(tree.Root); got != "((x = y))" {
		t.Fatalf("unexpected tree: %v", got)
	}
}

const blockGrammar = `
<grammar name="blocks" start="program">
  <terminal name="if"/>
  <terminal name="identifier"/>
  <terminal name="end of line" discard="yes"/>
  <terminal name="open block" discard="yes"/>
  <terminal name="close block" discard="yes"/>
  <variable name="program">
    <rule><repeat minimum="0"><variable>stmt</variable></repeat></rule>
  </variable>
  <variable name="stmt">
    <rule>
      <terminal>if</terminal>
      <terminal>identifier</terminal>
      <terminal>end of line</terminal>
      <variable>block</variable>
    </rule>
    <rule>
      <terminal>identifier</terminal>
      <terminal>end of line</terminal>
    </rule>
  </variable>
  <variable name="block">
    <rule>
      <terminal>open block</terminal>
      <variable>program</variable>
      <terminal>close block</terminal>
    </rule>
  </variable>
</grammar>
`

func TestParser_ParsesIndentedBlocks(t *testing.T) {
	tree := parseSource(t, blockGrammar, `if x
  y
z
`)

	if got := render(tree.Root); got != "((if x (((y)))) (z))" {
		t.Fatalf("unexpected tree: %v", got)
	}
}

func TestParser_ParsesNestedBlocks(t *testing.T) {
	tree := parseSource(t, blockGrammar, "if a\n  if b\n    c\n")

	// One stmt at top level wrapping two nested block levels.
	want := "((if a (((if b (((c))))))))"
	if got := render(tree.Root); got != want {
		t.Fatalf("unexpected tree;\nwant: %v\ngot:  %v", want, got)
	}
}
