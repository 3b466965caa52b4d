package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sdtkit/sdt/compressor"
	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/spec"
)

func writeSourceListing(w io.Writer, data []byte) {
	lines := bytes.Split(data, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}
	for i, line := range lines {
		fmt.Fprintf(w, "%6d: %s\n", i+1, line)
	}
}

func tokenName(gram *grammar.Grammar, tok int) string {
	if tok >= 1 && tok <= gram.TNumber {
		if sym := gram.Terms[tok]; sym != nil {
			return grammar.DisplayName(sym)
		}
	}
	if n := tok - gram.TNumber; n >= 1 && n <= gram.NTNumber {
		if sym := gram.NonTerms[n]; sym != nil {
			return grammar.DisplayName(sym)
		}
	}
	return fmt.Sprintf("#%v", tok)
}

func writeGrammarListing(w io.Writer, gram *grammar.Grammar) {
	fmt.Fprintf(w, "\nGrammar:\n")
	for _, prod := range gram.Prods.All()[1:] {
		fmt.Fprintf(w, "%4d  %v ::=", prod.Num, grammar.DisplayName(prod.LHS))
		for _, sym := range prod.RHS {
			fmt.Fprintf(w, " %v", grammar.DisplayName(sym))
		}
		if prod.Semantic != 0 {
			fmt.Fprintf(w, "  {%v}", prod.Semantic)
		}
		fmt.Fprintln(w)
	}
}

// trailingName digs out the reference leaf a scanner branch accepts with.
func trailingName(n *grammar.RegexNode) string {
	for n != nil && len(n.Children) > 0 {
		n = n.Children[len(n.Children)-1]
	}
	if n != nil && n.Leaf == grammar.RegexLeafReference && n.Ref != nil {
		return grammar.DisplayName(n.Ref)
	}
	return "?"
}

func writeRegexListing(w io.Writer, gram *grammar.Grammar) {
	fmt.Fprintf(w, "\nExpanded regular expressions:\n")
	for _, branch := range gram.ScanRoot.Children {
		fmt.Fprintf(w, "%v:\n", trailingName(branch))
		grammar.DumpRegexTree(w, branch)
	}
}

func writeCrossReference(w io.Writer, gram *grammar.Grammar) {
	defined := map[*grammar.Symbol][]int{}
	used := map[*grammar.Symbol][]int{}
	for _, prod := range gram.Prods.All()[1:] {
		defined[prod.LHS] = append(defined[prod.LHS], prod.Num)
		for _, sym := range prod.RHS {
			used[sym] = append(used[sym], prod.Num)
		}
	}

	write := func(sym *grammar.Symbol) {
		fmt.Fprintf(w, "%v\n", grammar.DisplayName(sym))
		if nums := defined[sym]; len(nums) > 0 {
			fmt.Fprintf(w, "   defined:")
			for _, n := range nums {
				fmt.Fprintf(w, " %v", n)
			}
			fmt.Fprintln(w)
		}
		if nums := used[sym]; len(nums) > 0 {
			fmt.Fprintf(w, "   used:")
			for _, n := range nums {
				fmt.Fprintf(w, " %v", n)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintf(w, "\nCross-reference:\n")
	for tok := 1; tok <= gram.TNumber; tok++ {
		if sym := gram.Terms[tok]; sym != nil {
			write(sym)
		}
	}
	for n := 1; n <= gram.NTNumber; n++ {
		if sym := gram.NonTerms[n]; sym != nil {
			write(sym)
		}
	}
}

func writeResolutions(w io.Writer, gram *grammar.Grammar, rep *grammar.Report) {
	if len(rep.Conflicts) == 0 {
		return
	}
	fmt.Fprintf(w, "\nConflicts:\n")
	for _, c := range rep.Conflicts {
		fmt.Fprintf(w, "state %v on %v: %v between", c.State, tokenName(gram, c.Token), c.Kind)
		for _, p := range c.Prods {
			fmt.Fprintf(w, " %v", p)
		}
		if c.ShiftState != 0 {
			fmt.Fprintf(w, " and shift %v", c.ShiftState)
		}
		if c.ResolvedBy != "" {
			if c.ChoseShift {
				fmt.Fprintf(w, "; chose shift by %v", c.ResolvedBy)
			} else {
				fmt.Fprintf(w, "; chose reduce by %v", c.ResolvedBy)
			}
		}
		fmt.Fprintln(w)
	}
}

func writeTableListing(w io.Writer, t *spec.Tables, rep *grammar.Report) {
	fmt.Fprintf(w, "\nParsing tables: %v terminals, %v nonterminals, %v productions, %v states\n",
		rep.Terminals, rep.NonTerminals, rep.Productions, rep.States)
	for s := 1; s <= t.PNumber; s++ {
		fmt.Fprintf(w, "state %v:\n", s)
		row := t.ParseActions[s]
		for tok := 1; tok < len(row); tok++ {
			v := row[tok]
			switch grammar.DecodeAction(v) {
			case grammar.ActionTypeShift:
				fmt.Fprintf(w, "   %v shift %v\n", t.TokenName(tok), v-grammar.ShiftOffset)
			case grammar.ActionTypeShiftReduce:
				fmt.Fprintf(w, "   %v shiftreduce %v\n", t.TokenName(tok), v)
			case grammar.ActionTypeAccept:
				fmt.Fprintf(w, "   %v accept\n", t.TokenName(tok))
			case grammar.ActionTypeReduce:
				fmt.Fprintf(w, "   %v reduce %v\n", t.TokenName(tok), -v)
			}
		}
	}
}

func writeTableStats(w io.Writer, stats *compressor.Stats) {
	fmt.Fprintf(w, "\nPacked tables: %v scanner entries, %v parser entries, longest scanner chain %v (mean %.2f)\n",
		stats.ScannerEntries, stats.ParserEntries, stats.MaxChain, stats.MeanChain)
}

func dumpParseTree(w io.Writer, root *spec.RootNode) {
	fmt.Fprintf(w, "\nParser syntax tree:\n")
	for _, prod := range root.Productions {
		fmt.Fprintf(w, "<%v> ::=\n", prod.LHS)
		for _, alt := range prod.RHS {
			fmt.Fprintf(w, "  |")
			for _, e := range alt.Elements {
				switch e.Kind {
				case spec.ElementKindSymbol:
					fmt.Fprintf(w, " <%v>", e.Name)
				case spec.ElementKindToken:
					fmt.Fprintf(w, " %q", e.Name)
				case spec.ElementKindSemantic:
					fmt.Fprintf(w, " $%v", e.Number)
				}
			}
			fmt.Fprintln(w)
		}
	}
}
