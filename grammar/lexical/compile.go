package lexical

import (
	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/spec"
)

// Compile builds the scanner automaton for gram and fills the scanner
// side of t: the state count, the acceptance tables, and the
// uncompressed transition matrix.
func Compile(gram *grammar.Grammar, t *spec.Tables) error {
	positions, first, err := genPositions(gram.ScanRoot)
	if err != nil {
		return err
	}
	opts := gram.Opts
	if opts.Debug != nil && opts.DebugFlags&grammar.DebugNFA != 0 {
		dumpPositions(opts.Debug, positions)
	}
	states := genDFA(positions, first)
	if opts.Debug != nil && opts.DebugFlags&grammar.DebugDFA != 0 {
		dumpDFA(opts.Debug, "Scanner automaton", states)
	}
	renum, count := minimize(states)

	reps := make([]*dfaState, count+1)
	for i := 1; i < len(states); i++ {
		if g := renum[i]; reps[g] == nil {
			reps[g] = states[i]
		}
	}

	t.SNumber = count
	t.Final = make([]int, count+1)
	t.Install = make([]int, count+1)
	t.TokenIndex = make([]int, count+2)
	t.TokenTable = nil
	t.ScanTrans = make([][]int, count+1)
	for s := 1; s <= count; s++ {
		st := reps[s]
		t.TokenIndex[s] = len(t.TokenTable)
		t.TokenTable = append(t.TokenTable, st.tokens...)
		t.Final[s] = st.final
		if st.install {
			t.Install[s] = 1
		}
		row := make([]int, spec.MapCount)
		for c, n := range st.next {
			row[c] = renum[n]
		}
		t.ScanTrans[s] = row
	}
	t.TokenIndex[count+1] = len(t.TokenTable)
	if opts.Debug != nil && opts.DebugFlags&grammar.DebugMinimized != 0 {
		dumpScannerTables(opts.Debug, t)
	}
	return nil
}
