package lexer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kang-lang/kang/source"
)

type testLogger struct {
	errs  []string
	warns []string
}

func (l *testLogger) Errorf(pos source.Position, format string, args ...interface{}) {
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

func (l *testLogger) Warnf(pos source.Position, format string, args ...interface{}) {
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func lexAll(t *testing.T, src string) ([]*Token, *testLogger) {
	t.Helper()

	log := &testLogger{}
	l, err := New(source.NewReader("test.kang", strings.NewReader(src)), log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var toks []*Token
	for {
		tok, err := l.extractToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok == nil {
			return toks, log
		}
		toks = append(toks, tok)
	}
}

func classes(toks []*Token) []string {
	cs := make([]string, len(toks))
	for i, tok := range toks {
		cs[i] = tok.TokenClass()
	}
	return cs
}

func expectClasses(t *testing.T, toks []*Token, want ...string) {
	t.Helper()
	got := classes(toks)
	if len(got) != len(want) {
		t.Fatalf("unexpected token stream;\nwant: %v\ngot:  %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected token at %v;\nwant: %v\ngot:  %v", i, want, got)
		}
	}
}

func TestLexer_Indentation(t *testing.T) {
	toks, log := lexAll(t, "a\n  b\n  c\nd\n")
	expectClasses(t, toks,
		"identifier",
		"end of line",
		"open block",
		"identifier",
		"end of line",
		"identifier",
		"end of line",
		"close block",
		"identifier",
		"end of line",
	)
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_NestedBlocksCloseAtEndOfInput(t *testing.T) {
	toks, _ := lexAll(t, "a\n  b\n    c")
	expectClasses(t, toks,
		"identifier",
		"end of line",
		"open block",
		"identifier",
		"end of line",
		"open block",
		"identifier",
		"end of line",
		"close block",
		"close block",
	)
}

// Over any input the open and close block counts balance, and no prefix
// closes more blocks than it opened.
func TestLexer_BlockBalance(t *testing.T) {
	srcs := []string{
		"a\n  b\n    c\n  d\ne\n",
		"a\n      b\n  c",
		"if x\n  if y\n    z",
		"a",
		"",
		"\n\n",
	}
	for _, src := range srcs {
		toks, _ := lexAll(t, src)
		depth := 0
		for i, tok := range toks {
			switch tok.Type {
			case TokenTypeOpenBlock:
				depth++
			case TokenTypeCloseBlock:
				depth--
			}
			if depth < 0 {
				t.Fatalf("source %q: close block without open block at token %v", src, i)
			}
		}
		if depth != 0 {
			t.Fatalf("source %q: %v block(s) left open", src, depth)
		}
	}
}

func TestLexer_LineContinuation(t *testing.T) {
	toks, log := lexAll(t, "a + …\n  b")
	expectClasses(t, toks,
		"identifier",
		"+",
		"identifier",
		"end of line",
	)
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_EllipsisErrors(t *testing.T) {
	tests := []struct {
		caption  string
		src      string
		errCount int
	}{
		{
			caption:  "two ellipses on one line",
			src:      "a … …\nb",
			errCount: 1,
		},
		{
			caption:  "ellipsis not at the end of the line",
			src:      "a … b",
			errCount: 1,
		},
		{
			caption:  "ellipsis at the end of the line",
			src:      "a …\nb",
			errCount: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			_, log := lexAll(t, tt.src)
			if len(log.errs) != tt.errCount {
				t.Fatalf("unexpected diagnostics; want: %v, got: %v", tt.errCount, log.errs)
			}
		})
	}
}

func TestLexer_Comments(t *testing.T) {
	toks, _ := lexAll(t, "a -- a comment\nb")
	expectClasses(t, toks,
		"identifier",
		"end of line",
		"identifier",
		"end of line",
	)
}

func TestLexer_SingleDashIsAToken(t *testing.T) {
	toks, _ := lexAll(t, "a - b")
	expectClasses(t, toks,
		"identifier",
		"-",
		"identifier",
		"end of line",
	)
}

func TestLexer_KeywordsAndIdentifiers(t *testing.T) {
	toks, _ := lexAll(t, "if condition while x9")
	expectClasses(t, toks,
		"if",
		"identifier",
		"while",
		"identifier",
		"end of line",
	)
	if toks[0].Type != TokenTypeKeyword {
		t.Fatalf("'if' must lex as a keyword")
	}
	if toks[1].Type != TokenTypeIdentifier {
		t.Fatalf("'condition' must lex as an identifier")
	}
}

func TestLexer_Numbers(t *testing.T) {
	toks, log := lexAll(t, "42 3.14")
	expectClasses(t, toks,
		"integer",
		"real number",
		"end of line",
	)
	if toks[0].IntegerValue != 42 {
		t.Fatalf("unexpected integer value: %v", toks[0].IntegerValue)
	}
	if toks[1].RealValue != 3.14 {
		t.Fatalf("unexpected real value: %v", toks[1].RealValue)
	}
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_MemberAccessIsNotAReal(t *testing.T) {
	toks, log := lexAll(t, "3.x")
	if len(log.errs) != 1 {
		t.Fatalf("expected an invalid number diagnostic, got: %v", log.errs)
	}
	if !strings.Contains(log.errs[0], "3.x") {
		t.Fatalf("the diagnostic must carry the whole erroneous lexeme: %v", log.errs[0])
	}
	// The valid prefix is still emitted so parsing can continue.
	if toks[0].Type != TokenTypeIntegerLiteral || toks[0].Text != "3" {
		t.Fatalf("unexpected token: %v %q", toks[0].Type, toks[0].Text)
	}
}

func TestLexer_InvalidNumber(t *testing.T) {
	_, log := lexAll(t, "7abc")
	if len(log.errs) != 1 || !strings.Contains(log.errs[0], "7abc") {
		t.Fatalf("expected an invalid number diagnostic for 7abc, got: %v", log.errs)
	}
}

func TestLexer_Symbols(t *testing.T) {
	toks, log := lexAll(t, "x ← y × ( z ≤ w )")
	expectClasses(t, toks,
		"identifier",
		"←",
		"identifier",
		"×",
		"(",
		"identifier",
		"≤",
		"identifier",
		")",
		"end of line",
	)
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_InvalidCharacter(t *testing.T) {
	toks, log := lexAll(t, "a ~ b")
	expectClasses(t, toks,
		"identifier",
		"identifier",
		"end of line",
	)
	if len(log.errs) != 1 || !strings.Contains(log.errs[0], "'~'") {
		t.Fatalf("expected an invalid character diagnostic, got: %v", log.errs)
	}
}

func TestLexer_TabsAdvanceToTabStops(t *testing.T) {
	toks, _ := lexAll(t, "a\n\tb")
	expectClasses(t, toks,
		"identifier",
		"end of line",
		"open block",
		"identifier",
		"end of line",
		"close block",
	)
	if toks[3].StartPos.Col != 8 {
		t.Fatalf("a tab must advance the column to the next multiple of 8; got: %v", toks[3].StartPos.Col)
	}
}

func TestLexer_StringLiterals(t *testing.T) {
	toks, log := lexAll(t, `x = "hello world"`)
	expectClasses(t, toks,
		"identifier",
		"=",
		"string",
		"end of line",
	)
	str := toks[2]
	if str.StringValue != "hello world" {
		t.Fatalf("the payload must have the delimiters stripped; got: %q", str.StringValue)
	}
	if str.LeftDelimiter != '"' || str.RightDelimiter != '"' {
		t.Fatalf("unexpected delimiters: %q %q", str.LeftDelimiter, str.RightDelimiter)
	}
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_MultiLineStringSuppressesEndOfLine(t *testing.T) {
	toks, _ := lexAll(t, "\"a\nb\"")
	expectClasses(t, toks,
		"string",
		"end of line",
	)
	if toks[0].StringValue != "a\nb" {
		t.Fatalf("unexpected payload: %q", toks[0].StringValue)
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	_, log := lexAll(t, `"abc`)
	if len(log.errs) != 1 || !strings.Contains(log.errs[0], "unterminated") {
		t.Fatalf("expected an unterminated string diagnostic, got: %v", log.errs)
	}
}

func TestLexer_CharacterLiterals(t *testing.T) {
	toks, log := lexAll(t, "c = 'x'")
	expectClasses(t, toks,
		"identifier",
		"=",
		"character",
		"end of line",
	)
	if toks[2].CharValue != 'x' {
		t.Fatalf("unexpected character value: %q", toks[2].CharValue)
	}
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_EmptyInput(t *testing.T) {
	toks, log := lexAll(t, "")
	if len(toks) != 0 {
		t.Fatalf("unexpected tokens: %v", classes(toks))
	}
	if len(log.errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", log.errs)
	}
}

func TestLexer_BlankLinesProduceNothing(t *testing.T) {
	toks, _ := lexAll(t, "\n\n  \n")
	if len(toks) != 0 {
		t.Fatalf("unexpected tokens: %v", classes(toks))
	}
}
