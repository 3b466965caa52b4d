package lexical

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/spec"
)

func buildTables(t *testing.T, src string) *spec.Tables {
	t.Helper()
	ast, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	g, err := (&grammar.GrammarBuilder{AST: ast}).Build()
	if err != nil {
		t.Fatal(err)
	}
	tab := &spec.Tables{}
	if err := Compile(g, tab); err != nil {
		t.Fatal(err)
	}
	return tab
}

// scan walks the transition table over input with maximal munch and
// returns the token of the last accepting state plus the length it
// consumed to get there.
func scan(tab *spec.Tables, input string) (int, int) {
	state := 1
	token, length := 0, 0
	for i := 0; ; i++ {
		if f := tab.Final[state]; f != 0 {
			token, length = f, i
		}
		if i >= len(input) {
			break
		}
		next := tab.ScanAction(state, int(input[i]))
		if next == 0 {
			break
		}
		state = next
	}
	return token, length
}

// walk follows the transitions for input and returns the reached state,
// zero when the walk gets stuck.
func walk(tab *spec.Tables, input string) int {
	state := 1
	for i := 0; i < len(input); i++ {
		state = tab.ScanAction(state, int(input[i]))
		if state == 0 {
			return 0
		}
	}
	return state
}

func stateTokens(tab *spec.Tables, state int) []int {
	return tab.TokenTable[tab.TokenIndex[state]:tab.TokenIndex[state+1]]
}

const wordSrc = `
SCANNER
    "if";
    "id" = [abcdefghijklmnopqrstuvwxyz]+, INSTALL;
    "num" = [0123456789]+;
    [ ]+;
PARSER
    <s> = "if" | "id" | "num";
`

func TestCompile_Scanner(t *testing.T) {
	// Tokens: "if" 1, "id" 2, "num" 3, sentinel 4, the ignored pattern 5.
	tab := buildTables(t, wordSrc)

	if tab.SNumber < 1 {
		t.Fatalf("unexpected state count; got: %v", tab.SNumber)
	}
	if len(tab.ScanTrans) != tab.SNumber+1 || len(tab.Final) != tab.SNumber+1 {
		t.Fatalf("the tables must cover every state; got: %v rows, %v finals",
			len(tab.ScanTrans), len(tab.Final))
	}

	tests := []struct {
		caption string
		input   string
		token   int
		length  int
	}{
		{caption: "a keyword beats the identifier", input: "if", token: 1, length: 2},
		{caption: "a longer identifier wins", input: "ifs", token: 2, length: 3},
		{caption: "a one-letter identifier", input: "i", token: 2, length: 1},
		{caption: "a number", input: "007", token: 3, length: 3},
		{caption: "the ignored pattern accepts too", input: "   ", token: 5, length: 3},
		{caption: "a prefix match stops at the bad byte", input: "ab9", token: 2, length: 2},
		{caption: "an unknown byte matches nothing", input: "@", token: 0, length: 0},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			token, length := scan(tab, tt.input)
			if token != tt.token || length != tt.length {
				t.Errorf("want: token %v length %v, got: token %v length %v",
					tt.token, tt.length, token, length)
			}
		})
	}
}

func TestCompile_EndOfFile(t *testing.T) {
	tab := buildTables(t, wordSrc)
	state := tab.ScanAction(1, spec.EOFChar)
	if state == 0 {
		t.Fatal("the initial state must accept end of file")
	}
	if tab.Final[state] != 4 {
		t.Errorf("end of file scans as the sentinel; got: %v", tab.Final[state])
	}
}

func TestCompile_InstallStates(t *testing.T) {
	tab := buildTables(t, wordSrc)

	ident := walk(tab, "i")
	if tab.Install[ident] != 1 {
		t.Error("a state accepting an install token must be marked")
	}
	keyword := walk(tab, "if")
	if tab.Install[keyword] != 0 {
		t.Error("the keyword state must not inherit the identifier's mark")
	}
	if got := stateTokens(tab, keyword); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("both tokens end their text in the keyword state; got: %v", got)
	}
}

func TestCompile_Lookahead(t *testing.T) {
	tab := buildTables(t, `
SCANNER
    "ab" = "a" / "b";
PARSER
    <s> = "ab";
`)

	mid := walk(tab, "a")
	if tab.Final[mid] != 0 {
		t.Errorf("the pattern is not complete before its context; got: %v", tab.Final[mid])
	}
	if got := stateTokens(tab, mid); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("the token's text ends before the context; got: %v", got)
	}

	end := walk(tab, "ab")
	if tab.Final[end] != 1 {
		t.Errorf("the pattern completes after its context; got: %v", tab.Final[end])
	}
	if got := stateTokens(tab, end); len(got) != 0 {
		t.Errorf("no text ends in the accepting state; got: %v", got)
	}
}

func TestCompile_Minimize(t *testing.T) {
	tab := buildTables(t, `
SCANNER
    "x" = "ab" | "bb";
PARSER
    <s> = "x";
`)

	// The states after "a" and after "b" are indistinguishable, so the
	// automaton needs the initial state, the merged middle, the accepting
	// state, and the end-of-file state.
	if tab.SNumber != 4 {
		t.Errorf("unexpected state count; want: 4, got: %v", tab.SNumber)
	}
	for _, input := range []string{"ab", "bb"} {
		if token, length := scan(tab, input); token != 1 || length != 2 {
			t.Errorf("%q: want: token 1 length 2, got: token %v length %v", input, token, length)
		}
	}
	if walk(tab, "a") != walk(tab, "b") {
		t.Error("the equivalent middle states must be merged")
	}
}
