package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kang-lang/kang/driver"
	"github.com/kang-lang/kang/lexer"
	"github.com/kang-lang/kang/source"
	"github.com/kang-lang/kang/spec"
	"github.com/kang-lang/kang/tokenizer"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "parse <compiled grammar> <source>",
		Short:   "Parse a Kang source file and print its parse tree",
		Example: `  kang parse grammar.json hello.kang`,
		Args:    cobra.ExactArgs(2),
		RunE:    runParse,
	}
	rootCmd.AddCommand(cmd)
}

// ptermLogger reports the lexer's diagnostics on the terminal.
type ptermLogger struct{}

func (ptermLogger) Errorf(pos source.Position, format string, args ...interface{}) {
	pterm.Error.Printfln("%v: %v", pos, fmt.Sprintf(format, args...))
}

func (ptermLogger) Warnf(pos source.Position, format string, args ...interface{}) {
	pterm.Warning.Printfln("%v: %v", pos, fmt.Sprintf(format, args...))
}

func runParse(cmd *cobra.Command, args []string) error {
	cgram, err := readCompiledGrammar(args[0])
	if err != nil {
		return err
	}

	srcFile, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("cannot open the source file %s: %w", args[1], err)
	}
	defer srcFile.Close()

	lex, err := lexer.New(source.NewReader(args[1], srcFile), ptermLogger{})
	if err != nil {
		return err
	}

	p := driver.NewParser(cgram, tokenizer.New(lex))
	tree, err := p.Parse()
	if err != nil {
		return err
	}

	driver.PrintTree(os.Stdout, tree.Root)

	if errs := tree.Errors(); len(errs) > 0 {
		for _, e := range errs {
			pterm.Error.Printfln("%v: syntax error; expected %v", e.Start, e.ExpectedTerminals)
		}
		return fmt.Errorf("%v syntax error(s)", len(errs))
	}

	return nil
}

func readCompiledGrammar(path string) (*spec.CompiledGrammar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read the compiled grammar %s: %w", path, err)
	}
	cgram := &spec.CompiledGrammar{}
	if err := json.Unmarshal(b, cgram); err != nil {
		return nil, err
	}
	return cgram, nil
}
