package main

import (
	"fmt"
	"os"

	"github.com/sdtkit/sdt/spec"
	"github.com/sdtkit/sdt/tester"
	"github.com/spf13/cobra"
)

var testFlags = struct {
	listing *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "test <tables file> <test file or directory>",
		Short:   "Run golden-file test cases against a tables file",
		Example: `  sdt test tables.dat testdata/`,
		Args:    cobra.ExactArgs(2),
		RunE:    runTest,
	}
	testFlags.listing = cmd.Flags().BoolP("listing", "l", false, "cases expect the full source listing")
	rootCmd.AddCommand(cmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	t, err := spec.ReadTables(f)
	if err != nil {
		return err
	}

	runner := &tester.Tester{
		Tables:  t,
		Cases:   tester.ListTestCases(args[1]),
		Listing: *testFlags.listing,
	}
	results := runner.Run()
	failed := false
	for _, res := range results {
		fmt.Fprintln(cmd.OutOrStdout(), res)
		if res.Error != nil {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("test failed")
	}
	return nil
}
