package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kang-lang/kang/spec"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:     "show <report>",
		Short:   "Show a compile report in a readable form",
		Example: `  kang show grammar-report.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runShow,
	}
	rootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read the report %s: %w", args[0], err)
	}
	report := &spec.Report{}
	if err := json.Unmarshal(b, report); err != nil {
		return err
	}

	writeTerminals(report)
	writeNonTerminals(report)
	writeProductions(report)
	writeStates(report)

	return nil
}

func writeTerminals(report *spec.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"No.", "Terminal"})
	for _, t := range report.Terminals {
		table.Append([]string{strconv.Itoa(t.Number), t.Name})
	}
	table.Render()
	fmt.Println()
}

func writeNonTerminals(report *spec.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"No.", "Non-Terminal", "First", "Follow"})
	for _, nt := range report.NonTerminals {
		table.Append([]string{
			strconv.Itoa(nt.Number),
			nt.Name,
			strings.Join(nt.First, " "),
			strings.Join(nt.Follow, " "),
		})
	}
	table.Render()
	fmt.Println()
}

func writeProductions(report *spec.Report) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"No.", "Production", "Prec", "Assoc"})
	for _, p := range report.Productions {
		rhs := strings.Join(p.RHS, " ")
		if rhs == "" {
			rhs = "ε"
		}

		prec := ""
		if p.PrecedenceSet >= 0 {
			prec = fmt.Sprintf("%v.%v", p.PrecedenceSet, p.PrecedenceLevel)
		}

		table.Append([]string{
			strconv.Itoa(p.Number),
			fmt.Sprintf("%v → %v", p.LHS, rhs),
			prec,
			p.Associativity,
		})
	}
	table.Render()
	fmt.Println()
}

func writeStates(report *spec.Report) {
	for _, s := range report.States {
		fmt.Printf("state %v\n", s.Number)
		for _, item := range s.Kernel {
			fmt.Printf("    %v\n", item)
		}
		for _, sh := range s.Shift {
			fmt.Printf("    shift %v → state %v\n", sh.Symbol, sh.State)
		}
		for _, r := range s.Reduce {
			fmt.Printf("    reduce by production %v on %v\n", r.Production, strings.Join(r.LookAhead, " "))
		}
		for _, g := range s.GoTo {
			fmt.Printf("    goto %v → state %v\n", g.Symbol, g.State)
		}
		if s.Accept {
			fmt.Printf("    accept on @end\n")
		}
		fmt.Println()
	}
}
