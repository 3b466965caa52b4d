package main

import (
	"io"
	"os"

	"github.com/sdtkit/sdt/driver"
	"github.com/sdtkit/sdt/spec"
	"github.com/spf13/cobra"
)

var parseFlags = struct {
	listing *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "parse <tables file> [<input file>]",
		Short:   "Run a tables file over an input stream",
		Example: `  sdt parse tables.dat source.txt`,
		Args:    cobra.RangeArgs(1, 2),
		RunE:    runParse,
	}
	parseFlags.listing = cmd.Flags().BoolP("listing", "l", false, "list the input file as it is parsed")
	rootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	tf, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer tf.Close()
	t, err := spec.ReadTables(tf)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	opts := []driver.Option{driver.WithOutput(cmd.OutOrStdout())}
	if *parseFlags.listing {
		opts = append(opts, driver.WithListing())
	}
	return driver.New(t, src, opts...).Parse()
}
