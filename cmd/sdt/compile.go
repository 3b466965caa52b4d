package main

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/sdtkit/sdt/compressor"
	verr "github.com/sdtkit/sdt/error"
	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/grammar/lexical"
	"github.com/sdtkit/sdt/spec"
	"github.com/spf13/cobra"
)

var compileFlags = struct {
	grammar     *bool
	listing     *bool
	check       *bool
	regexes     *bool
	tables      *bool
	resolutions *bool
	xref        *bool
	debug       *string
	output      *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "compile",
		Short:   "Compile a grammar file into translator tables",
		Example: `  sdt compile grammar.sdt -w tables.dat`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	compileFlags.grammar = cmd.Flags().BoolP("grammar", "g", false, "list the augmented grammar")
	compileFlags.listing = cmd.Flags().BoolP("listing", "l", false, "list the grammar file")
	compileFlags.check = cmd.Flags().BoolP("check", "q", false, "syntax check only, generate no tables")
	compileFlags.regexes = cmd.Flags().BoolP("regexes", "r", false, "list the expanded regular expressions")
	compileFlags.tables = cmd.Flags().BoolP("tables", "t", false, "list the parsing tables")
	compileFlags.resolutions = cmd.Flags().BoolP("resolutions", "v", false, "list shift-reduce and reduce-reduce resolutions")
	compileFlags.xref = cmd.Flags().BoolP("xref", "x", false, "list a cross-reference of symbols")
	compileFlags.debug = cmd.Flags().StringP("debug", "d", "", "dump internal structures selected by letters from \"adefgimnps\"")
	compileFlags.output = cmd.Flags().StringP("write", "w", "tables.dat", "tables file path (\"-\" = stdout)")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) (retErr error) {
	var grmPath string
	if len(args) > 0 {
		grmPath = args[0]
	}
	defer func() {
		if retErr != nil {
			specErrs, ok := retErr.(verr.SpecErrors)
			if !ok {
				return
			}
			name := "stdin"
			if grmPath != "" {
				name = grmPath
			}
			for _, err := range specErrs {
				err.FilePath = grmPath
				err.SourceName = name
			}
		}
	}()

	debug, err := grammar.ParseDebugFlags(*compileFlags.debug)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if grmPath != "" {
		f, err := os.Open(grmPath)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	data, err := ioutil.ReadAll(src)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if *compileFlags.listing {
		writeSourceListing(out, data)
	}

	ast, err := spec.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if debug&grammar.DebugParseTree != 0 {
		dumpParseTree(out, ast)
	}

	// A broken grammar still gets the parse and scanner tree dumps and
	// the -g, -r and -x listings. Table generation is skipped, and with it
	// the generator's debug dumps and the -t and -v listings.
	b := &grammar.GrammarBuilder{AST: ast}
	gram, buildErr := b.Build()
	if debug != 0 {
		gram.Opts.Debug = out
		gram.Opts.DebugFlags = debug
	}
	if debug&grammar.DebugScanTree != 0 {
		fmt.Fprintf(out, "\nScanner syntax tree:\n")
		grammar.DumpRegexTree(out, gram.ScanRoot)
	}

	if *compileFlags.grammar {
		writeGrammarListing(out, gram)
	}
	if *compileFlags.regexes {
		writeRegexListing(out, gram)
	}
	if *compileFlags.xref {
		writeCrossReference(out, gram)
	}
	if buildErr != nil || *compileFlags.check {
		return buildErr
	}

	t, rep, err := grammar.Compile(gram)
	if err != nil {
		return err
	}
	if err := lexical.Compile(gram, t); err != nil {
		return err
	}
	if *compileFlags.resolutions {
		writeResolutions(out, gram, rep)
	}
	if *compileFlags.tables {
		writeTableListing(out, t, rep)
	}

	stats, err := compressor.Compress(t)
	if err != nil {
		return err
	}
	if *compileFlags.tables {
		writeTableStats(out, stats)
	}

	w := os.Stdout
	if *compileFlags.output != "-" {
		f, err := os.Create(*compileFlags.output)
		if err != nil {
			return fmt.Errorf("can't create %v: %v", *compileFlags.output, err)
		}
		defer f.Close()
		w = f
	}
	return t.Write(w)
}
