package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sdt",
	Short: "Generate and run syntax-directed translators",
	Long: `sdt provides three features:
- Generates scanner and parser tables from a grammar file.
- Compresses an uncompressed tables file.
- Runs a tables file over an input stream with error repair.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}
