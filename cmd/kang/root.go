package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kang",
	Short: "Compile a grammar into canonical LR(1) parsing tables and parse Kang sources with them",
	Long: `kang provides three features:
- Compiles an XML grammar description into canonical LR(1) parsing tables.
- Parses an indentation-sensitive source file using compiled tables and
  prints the parse tree.
- Shows a human-readable form of a grammar's compile report.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}
