package grammar

import (
	"strings"
	"testing"
)

// splitSrc needs one look-ahead symbol of right context to tell the two
// reduces of "c" apart, which LALR(1) merging destroys. Splitting the
// merged state restores the distinction.
const splitSrc = `
IDENT split;
OPTIONS SPLITSTATES;
SCANNER
    "a";
    "b";
    "c";
    "d";
    "e";
PARSER
    <s> = "a" <x> "d"
        | "a" <y> "e"
        | "b" <x> "e"
        | "b" <y> "d";
    <x> = "c";
    <y> = "c";
`

func TestCompile_SplitStates(t *testing.T) {
	tab, rep := compileGrammar(t, splitSrc)

	found := false
	for _, c := range rep.Conflicts {
		if c.Kind == "reduce-reduce" && c.ResolvedBy == resolvedBySplit {
			found = true
		}
	}
	if !found {
		t.Error("the report must record the split resolution")
	}

	// Tokens: "a" 1, "b" 2, "c" 3, "d" 4, "e" 5, sentinel 6.
	tests := []struct {
		caption string
		tokens  []int
		want    bool
	}{
		{caption: "acd", tokens: []int{1, 3, 4, 6}, want: true},
		{caption: "ace", tokens: []int{1, 3, 5, 6}, want: true},
		{caption: "bce", tokens: []int{2, 3, 5, 6}, want: true},
		{caption: "bcd", tokens: []int{2, 3, 4, 6}, want: true},
		{caption: "a missing middle", tokens: []int{1, 4, 6}, want: false},
		{caption: "a doubled middle", tokens: []int{1, 3, 3, 6}, want: false},
		{caption: "a truncated tail", tokens: []int{2, 3, 6}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			if got := recognize(t, tab, tt.tokens); got != tt.want {
				t.Errorf("want: %v, got: %v", tt.want, got)
			}
		})
	}

	// The merged "c" state must have been cloned.
	plainStates := 0
	{
		g := buildGrammar(t, splitSrc)
		automaton, err := genLR0Automaton(g.Prods, g.Opts)
		if err != nil {
			t.Fatal(err)
		}
		plainStates = automaton.count()
	}
	if tab.PNumber <= plainStates {
		t.Errorf("splitting must add states; got: %v against %v", tab.PNumber, plainStates)
	}
}

func TestCompile_SplitStatesDisabled(t *testing.T) {
	src := strings.Replace(splitSrc, "OPTIONS SPLITSTATES;\n", "", 1)
	_, _, err := Compile(buildGrammar(t, src))
	if err == nil || !strings.Contains(err.Error(), "reduce-reduce") {
		t.Fatalf("an unresolved reduce-reduce conflict must fail; got: %v", err)
	}
}

func TestCompile_SpontaneousConflict(t *testing.T) {
	// Both reduces of "c" are followed by "d" in the same context, so no
	// amount of backward tracing separates them.
	_, _, err := Compile(buildGrammar(t, `
OPTIONS SPLITSTATES;
SCANNER
    "a";
    "c";
    "d";
PARSER
    <s> = "a" <x> "d"
        | "a" <y> "d";
    <x> = "c";
    <y> = "c";
`))
	if err == nil || !strings.Contains(err.Error(), "spontaneous") {
		t.Fatalf("an inseparable conflict must fail; got: %v", err)
	}
}
