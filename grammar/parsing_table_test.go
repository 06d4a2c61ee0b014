package grammar

import (
	"strings"
	"testing"
)

func TestCompile_ArithmeticPrecedence(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="expr" start="expression">
  <terminal name="+"/>
  <terminal name="*"/>
  <terminal name="id"/>
  <variable name="expression">
    <orderedByPrecedence>
      <group associativity="left">
        <rule><variable>expression</variable><terminal>+</terminal><variable>expression</variable></rule>
      </group>
      <group associativity="left">
        <rule><variable>expression</variable><terminal>*</terminal><variable>expression</variable></rule>
      </group>
    </orderedByPrecedence>
    <rule><terminal>id</terminal></rule>
  </variable>
</grammar>
`)

	cgram, _, err := Compile(g)
	if err != nil {
		t.Fatalf("the precedence rules must resolve every conflict: %v", err)
	}

	ptab := cgram.ParsingTable
	if ptab.StateCount == 0 {
		t.Fatalf("no states were generated")
	}

	// Every consulted entry is either a shift or a reduce; the table is
	// deterministic by construction, so it only remains to check that an
	// accepting state exists.
	accept := false
	for state := 0; state < ptab.StateCount; state++ {
		if ptab.Action[state*ptab.TerminalCount+ptab.EOFSymbol] == ptab.StartProduction {
			accept = true
		}
	}
	if !accept {
		t.Fatalf("no accepting state exists")
	}
}

func TestCompile_ShiftReduceConflict(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="test" start="s">
  <terminal name="a"/>
  <variable name="s">
    <rule><variable>s</variable><variable>s</variable></rule>
    <rule><terminal>a</terminal></rule>
  </variable>
</grammar>
`)

	_, _, err := Compile(g)
	if err == nil {
		t.Fatalf("a shift/reduce conflict was expected")
	}
	conflict, ok := err.(*ShiftReduceConflictError)
	if !ok {
		t.Fatalf("unexpected error type: %T (%v)", err, err)
	}

	if conflict.ReduceRule != "s → s s" {
		t.Fatalf("unexpected reduce rule: %v", conflict.ReduceRule)
	}
	if conflict.ShiftRule == "" {
		t.Fatalf("the shift rule must be named")
	}

	wantItems := []string{
		"[s → s · s, a]",
		"[s → s · s, @end]",
	}
	for _, want := range wantItems {
		found := false
		for _, item := range conflict.Items {
			if item == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("the state must contain %v; got:\n%v", want, strings.Join(conflict.Items, "\n"))
		}
	}
}

func TestCompile_ReduceReduceConflict(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="test" start="s">
  <terminal name="a"/>
  <variable name="s">
    <rule><variable>x</variable></rule>
    <rule><variable>y</variable></rule>
  </variable>
  <variable name="x">
    <rule><terminal>a</terminal></rule>
  </variable>
  <variable name="y">
    <rule><terminal>a</terminal></rule>
  </variable>
</grammar>
`)

	_, _, err := Compile(g)
	if err == nil {
		t.Fatalf("a reduce/reduce conflict was expected")
	}
	conflict, ok := err.(*ReduceReduceConflictError)
	if !ok {
		t.Fatalf("unexpected error type: %T (%v)", err, err)
	}
	rules := conflict.Rule1 + " / " + conflict.Rule2
	if !strings.Contains(rules, "x → a") || !strings.Contains(rules, "y → a") {
		t.Fatalf("both offending rules must be named; got: %v", rules)
	}
	if len(conflict.Items) == 0 {
		t.Fatalf("the conflict must enumerate the state's items")
	}
}

func TestCompile_NonAssociativeConflictFails(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="test" start="e">
  <terminal name="eq"/>
  <terminal name="id"/>
  <variable name="e">
    <orderedByPrecedence>
      <rule><variable>e</variable><terminal>eq</terminal><variable>e</variable></rule>
    </orderedByPrecedence>
    <rule><terminal>id</terminal></rule>
  </variable>
</grammar>
`)

	_, _, err := Compile(g)
	if err == nil {
		t.Fatalf("a non-associative rule cannot resolve its own shift/reduce conflict")
	}
	if _, ok := err.(*ShiftReduceConflictError); !ok {
		t.Fatalf("unexpected error type: %T (%v)", err, err)
	}
}

func TestCompile_DifferentPrecedenceSetsDoNotResolve(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="test" start="e">
  <terminal name="plus"/>
  <terminal name="id"/>
  <variable name="e">
    <orderedByPrecedence>
      <group associativity="left">
        <rule><variable>e</variable><terminal>plus</terminal><variable>f</variable></rule>
      </group>
    </orderedByPrecedence>
    <rule><variable>f</variable></rule>
  </variable>
  <variable name="f">
    <orderedByPrecedence>
      <group associativity="left">
        <rule><variable>f</variable><terminal>plus</terminal><terminal>id</terminal></rule>
      </group>
    </orderedByPrecedence>
    <rule><terminal>id</terminal></rule>
  </variable>
</grammar>
`)

	_, _, err := Compile(g)
	if err == nil {
		t.Fatalf("rules from different precedence sets must not resolve against each other")
	}
	if _, ok := err.(*ShiftReduceConflictError); !ok {
		t.Fatalf("unexpected error type: %T (%v)", err, err)
	}
}

func TestCompile_ErrorRules(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="test" start="program">
  <terminal name="id"/>
  <terminal name="assign"/>
  <terminal name="semicolon"/>
  <variable name="program">
    <rule><repeat minimum="0"><variable>stmt</variable></repeat></rule>
  </variable>
  <variable name="stmt">
    <rule><terminal>id</terminal><terminal>assign</terminal><terminal>id</terminal><terminal>semicolon</terminal></rule>
    <rule><error/><terminal>semicolon</terminal></rule>
  </variable>
</grammar>
`)

	cgram, _, err := Compile(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ptab := cgram.ParsingTable

	errorProds := 0
	for _, flag := range ptab.ErrorProductions {
		if flag != 0 {
			errorProds++
		}
	}
	if errorProds != 1 {
		t.Fatalf("exactly one production is an error production; got: %v", errorProds)
	}

	trappers := 0
	for _, flag := range ptab.ErrorTrapperStates {
		if flag != 0 {
			trappers++
		}
	}
	if trappers == 0 {
		t.Fatalf("states able to shift the error symbol must be flagged")
	}
}

func TestCompile_Report(t *testing.T) {
	g := buildGrammar(t, `
<grammar name="expr" start="e">
  <terminal name="plus"/>
  <terminal name="id"/>
  <variable name="e">
    <orderedByPrecedence>
      <group associativity="left">
        <rule><variable>e</variable><terminal>plus</terminal><variable>e</variable></rule>
      </group>
    </orderedByPrecedence>
    <rule><terminal>id</terminal></rule>
  </variable>
</grammar>
`)

	_, report, err := Compile(g, EnableReporting())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report == nil {
		t.Fatalf("reporting was enabled but no report was produced")
	}

	if len(report.Terminals) == 0 || len(report.Productions) == 0 || len(report.States) == 0 {
		t.Fatalf("the report must describe terminals, productions, and states")
	}

	foundPrec := false
	for _, p := range report.Productions {
		if p.PrecedenceSet >= 0 {
			foundPrec = true
			if p.Associativity != "left" {
				t.Fatalf("unexpected associativity: %v", p.Associativity)
			}
		}
	}
	if !foundPrec {
		t.Fatalf("the precedence attributes must appear in the report")
	}

	accepts := 0
	for _, s := range report.States {
		if s.Accept {
			accepts++
		}
	}
	if accepts != 1 {
		t.Fatalf("exactly one state accepts; got: %v", accepts)
	}
}
