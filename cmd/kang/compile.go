package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	verr "github.com/kang-lang/kang/error"
	"github.com/kang-lang/kang/grammar"
	"github.com/kang-lang/kang/spec"
	"github.com/spf13/cobra"
)

var compileFlags = struct {
	output *string
	report *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "compile",
		Short:   "Compile a grammar description into canonical LR(1) parsing tables",
		Example: `  kang compile grammar.xml -o grammar.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	compileFlags.output = cmd.Flags().StringP("output", "o", "", "output file path for the compiled grammar (default stdout)")
	compileFlags.report = cmd.Flags().StringP("report", "r", "", "output file path for the compile report")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) (retErr error) {
	var grmPath string
	if len(args) > 0 {
		grmPath = args[0]
	}
	defer func() {
		if retErr == nil {
			return
		}
		sourceName := grmPath
		if sourceName == "" {
			sourceName = "stdin"
		}
		if specErrs, ok := retErr.(verr.SpecErrors); ok {
			for _, err := range specErrs {
				err.SourceName = sourceName
			}
		}
		if specErr, ok := retErr.(*verr.SpecError); ok {
			specErr.SourceName = sourceName
		}
	}()

	gram, err := readGrammar(grmPath)
	if err != nil {
		return err
	}

	opts := []grammar.CompileOption{}
	if *compileFlags.report != "" {
		opts = append(opts, grammar.EnableReporting())
	}

	cgram, report, err := grammar.Compile(gram, opts...)
	if err != nil {
		return err
	}

	err = writeJSON(cgram, *compileFlags.output)
	if err != nil {
		return fmt.Errorf("cannot write the compiled grammar: %w", err)
	}

	if *compileFlags.report != "" {
		err = writeJSON(report, *compileFlags.report)
		if err != nil {
			return fmt.Errorf("cannot write the report: %w", err)
		}
	}

	return nil
}

func readGrammar(path string) (*grammar.Grammar, error) {
	var src io.Reader
	if path == "" {
		src = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open the grammar file %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}

	ast, err := spec.Parse(src)
	if err != nil {
		return nil, err
	}

	b := grammar.GrammarBuilder{
		AST: ast,
	}
	return b.Build()
}

func writeJSON(v interface{}, path string) error {
	var w io.Writer
	if path != "" {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", string(b))
	return nil
}
