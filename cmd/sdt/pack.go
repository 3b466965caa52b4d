package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sdtkit/sdt/compressor"
	"github.com/sdtkit/sdt/spec"
	"github.com/spf13/cobra"
)

var packFlags = struct {
	stats  *bool
	output *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "pack [<tables file>]",
		Short:   "Compress an uncompressed tables file",
		Example: `  sdt pack tables.dat -w packed.dat`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runPack,
	}
	packFlags.stats = cmd.Flags().BoolP("tables", "t", false, "list the packed table sizes")
	packFlags.output = cmd.Flags().StringP("write", "w", "tables.dat", "tables file path (\"-\" = stdout)")
	rootCmd.AddCommand(cmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	var src io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	t, err := spec.ReadTables(src)
	if err != nil {
		return err
	}
	if t.Compressed {
		return fmt.Errorf("the tables are already compressed")
	}

	stats, err := compressor.Compress(t)
	if err != nil {
		return err
	}
	if *packFlags.stats {
		writeTableStats(cmd.OutOrStdout(), stats)
	}

	w := os.Stdout
	if *packFlags.output != "-" {
		f, err := os.Create(*packFlags.output)
		if err != nil {
			return fmt.Errorf("can't create %v: %v", *packFlags.output, err)
		}
		defer f.Close()
		w = f
	}
	return t.Write(w)
}
