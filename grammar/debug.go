package grammar

import (
	"fmt"
	"io"
	"strings"
)

// DebugFlag selects the internal structures dumped while tables are
// generated. The flags combine as a bitmask.
type DebugFlag uint

const (
	DebugAncestors = DebugFlag(1 << iota) // item ancestry through the update graph
	DebugDFA                              // scanner automaton before minimization
	DebugRepair                           // per-state error repair values
	DebugFollow                           // nonterminal follow sets
	DebugGrammar                          // productions in internal form
	DebugItems                            // canonical collection of LR items
	DebugMinimized                        // scanner automaton after minimization
	DebugNFA                              // scanner position tree
	DebugParseTree                        // parser section syntax tree
	DebugScanTree                         // scanner section syntax tree
)

var debugLetters = map[byte]DebugFlag{
	'a': DebugAncestors,
	'd': DebugDFA,
	'e': DebugRepair,
	'f': DebugFollow,
	'g': DebugGrammar,
	'i': DebugItems,
	'm': DebugMinimized,
	'n': DebugNFA,
	'p': DebugParseTree,
	's': DebugScanTree,
}

// ParseDebugFlags converts a letter set like "gis" into a flag mask.
func ParseDebugFlags(s string) (DebugFlag, error) {
	var flags DebugFlag
	for i := 0; i < len(s); i++ {
		f, ok := debugLetters[s[i]]
		if !ok {
			return 0, fmt.Errorf("unknown debug letter %q (expected a subset of \"adefgimnps\")", s[i])
		}
		flags |= f
	}
	return flags, nil
}

func (g *Grammar) tokenDisplay(tok int) string {
	if tok >= 1 && tok <= g.TNumber {
		if sym := g.Terms[tok]; sym != nil {
			return DisplayName(sym)
		}
	}
	if n := tok - g.TNumber; n >= 1 && n <= g.NTNumber {
		if sym := g.NonTerms[n]; sym != nil {
			return DisplayName(sym)
		}
	}
	return fmt.Sprintf("#%v", tok)
}

// prodString renders a production with an optional dot position; dot < 0
// omits the dot.
func prodString(prod *Production, dot int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v ::=", DisplayName(prod.LHS))
	for i, sym := range prod.RHS {
		if i == dot {
			b.WriteString(" .")
		}
		b.WriteByte(' ')
		b.WriteString(DisplayName(sym))
	}
	if dot >= len(prod.RHS) {
		b.WriteString(" .")
	}
	return b.String()
}

func dumpProductions(w io.Writer, prods *ProductionSet) {
	fmt.Fprintf(w, "\nProductions:\n")
	for _, prod := range prods.All()[1:] {
		fmt.Fprintf(w, "%4d  %v", prod.Num, prodString(prod, -1))
		if prod.Semantic != 0 {
			fmt.Fprintf(w, "  {%v}", prod.Semantic)
		}
		fmt.Fprintf(w, "  (steps %v, insert %v)\n", prod.Steps, prod.Insert)
	}
}

func dumpFollowSets(w io.Writer, g *Grammar, flw *followSet) {
	fmt.Fprintf(w, "\nFollow sets:\n")
	for n := 1; n <= g.NTNumber; n++ {
		sym := g.NonTerms[n]
		if sym == nil {
			continue
		}
		set := flw.find(sym)
		if set == nil {
			continue
		}
		fmt.Fprintf(w, "%v:", DisplayName(sym))
		for _, tok := range set.elements() {
			fmt.Fprintf(w, " %v", g.tokenDisplay(tok))
		}
		fmt.Fprintln(w)
	}
}

func dumpItems(w io.Writer, g *Grammar, automaton *lr0Automaton) {
	fmt.Fprintf(w, "\nLR item collection:\n")
	for n := 1; n <= automaton.count(); n++ {
		st := automaton.state(n)
		fmt.Fprintf(w, "state %v:\n", n)
		for i, it := range st.items {
			mark := ' '
			if i < st.kernelLen {
				mark = '*'
			}
			fmt.Fprintf(w, " %c %v", mark, prodString(it.prod, it.dot))
			if it.reducible {
				fmt.Fprintf(w, "  {")
				for _, tok := range it.la.elements() {
					fmt.Fprintf(w, " %v", g.tokenDisplay(tok))
				}
				fmt.Fprintf(w, " }")
			}
			fmt.Fprintln(w)
		}
		for _, gt := range st.gotos {
			fmt.Fprintf(w, "   goto %v -> %v\n", DisplayName(gt.sym), gt.state)
		}
		for tok, prod := range st.shiftReduces {
			fmt.Fprintf(w, "   shiftreduce %v -> %v\n", g.tokenDisplay(tok), prod)
		}
	}
}

func dumpAncestors(w io.Writer, automaton *lr0Automaton) {
	fmt.Fprintf(w, "\nItem ancestry:\n")
	for n := 1; n <= automaton.count(); n++ {
		st := automaton.state(n)
		for i := 0; i < st.kernelLen; i++ {
			it := st.items[i]
			if len(it.ancestors) == 0 {
				continue
			}
			fmt.Fprintf(w, "state %v item %v:", n, i)
			for _, ref := range it.ancestors {
				fmt.Fprintf(w, " (%v,%v)", ref.state, ref.item)
			}
			fmt.Fprintln(w)
		}
	}
}

func dumpRepairValues(w io.Writer, g *Grammar, repair []int) {
	fmt.Fprintf(w, "\nRepair values:\n")
	for st := 1; st < len(repair); st++ {
		v := repair[st]
		switch {
		case v == 0:
			fmt.Fprintf(w, "state %v: none\n", st)
		case v < 0:
			fmt.Fprintf(w, "state %v: reduce %v\n", st, -v)
		default:
			fmt.Fprintf(w, "state %v: insert %v\n", st, g.tokenDisplay(v))
		}
	}
}

// DumpRegexTree writes an indented rendering of a pattern tree.
func DumpRegexTree(w io.Writer, n *RegexNode) {
	dumpRegexTree(w, n, 0)
}

func dumpRegexTree(w io.Writer, n *RegexNode, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	if n.isLeaf() {
		switch n.Leaf {
		case RegexLeafEpsilon:
			fmt.Fprintf(w, "%vepsilon\n", indent)
		case RegexLeafLookahead:
			fmt.Fprintf(w, "%vlookahead\n", indent)
		case RegexLeafReference:
			fmt.Fprintf(w, "%vref %v\n", indent, n.Ref.Name)
		case RegexLeafCharacter:
			fmt.Fprintf(w, "%vchar %q\n", indent, n.Bytes)
		case RegexLeafClass:
			fmt.Fprintf(w, "%vclass %q\n", indent, n.Bytes)
		case RegexLeafZeroByte:
			fmt.Fprintf(w, "%vchar \\000\n", indent)
		case RegexLeafEndOfFile:
			fmt.Fprintf(w, "%veof\n", indent)
		case RegexLeafSemantic:
			fmt.Fprintf(w, "%vsemantic %v\n", indent, n.N)
		}
		return
	}
	op := "concat"
	switch n.Op {
	case RegexOpAlt:
		op = "alt"
	case RegexOpClosure:
		op = "closure"
	case RegexOpPositive:
		op = "positive"
	case RegexOpDiff:
		op = "diff"
	case RegexOpNot:
		op = "not"
	case RegexOpRange:
		op = "range"
	case RegexOpRepeat:
		op = fmt.Sprintf("repeat %v", n.N)
	case RegexOpLookahead:
		op = "lookahead"
	}
	fmt.Fprintf(w, "%v%v\n", indent, op)
	for _, c := range n.Children {
		dumpRegexTree(w, c, depth+1)
	}
}
